package conversation

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmstore/dmstore/internal/application/verification"
	"github.com/dmstore/dmstore/internal/domain/conversation"
	"github.com/dmstore/dmstore/internal/domain/mailbox"
	"github.com/dmstore/dmstore/internal/domain/messaging"
	"github.com/dmstore/dmstore/internal/domain/messaging/mocks"
)

type gatedVerifier struct {
	entered chan struct{}
	release chan struct{}
}

func (v *gatedVerifier) Verify(ctx context.Context, _ verification.Request) bool {
	v.entered <- struct{}{}
	select {
	case <-v.release:
	case <-ctx.Done():
	}
	return false
}

func dm(user, text string) *messaging.Message {
	return &messaging.Message{AuthorID: user, AuthorName: user, ChannelID: "dm-" + user, Content: text, Direct: true}
}

func TestDispatcherSerializesPerUser(t *testing.T) {
	var (
		mu      sync.Mutex
		order   []string
		running atomic.Int32
		overlap atomic.Bool
	)
	d := NewDispatcher(func(_ context.Context, msg *messaging.Message) {
		if running.Add(1) > 1 {
			overlap.Store(true)
		}
		time.Sleep(time.Millisecond)
		mu.Lock()
		order = append(order, msg.Content)
		mu.Unlock()
		running.Add(-1)
	})

	ctx := context.Background()
	for _, text := range []string{"a", "b", "c", "d", "e"} {
		d.Submit(ctx, dm("u1", text))
	}
	require.Eventually(t, func() bool { return d.Active() == 0 }, 2*time.Second, time.Millisecond)
	d.Wait()

	assert.False(t, overlap.Load())
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, order)
}

func TestDispatcherDropsAfterWait(t *testing.T) {
	var handled atomic.Int32
	d := NewDispatcher(func(context.Context, *messaging.Message) { handled.Add(1) })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			d.Submit(ctx, dm("u1", "hi"))
		}()
		go func() {
			defer wg.Done()
			d.Wait()
		}()
	}
	wg.Wait()

	d.Submit(context.Background(), dm("u2", "late"))
	d.Wait()
	assert.Equal(t, int32(0), handled.Load())
	assert.Equal(t, 0, d.Active())
}

func TestListenerSlowVerificationDoesNotBlockOthers(t *testing.T) {
	repo := newMemRepo()
	verifier := &gatedVerifier{entered: make(chan struct{}, 1), release: make(chan struct{})}
	engine, err := NewEngine(testIdentity, testStorefront(),
		mailbox.Credential{Address: "shop@example.com", AppPassword: "secret"},
		Deps{Repo: repo, Verifier: verifier}, zerolog.Nop())
	require.NoError(t, err)

	// Park u1 right before the verification step.
	st := conversation.NewState(conversation.Key{Identity: testIdentity, UserID: "slow"}, "slow", time.Now())
	st.Phase = conversation.PhaseAwaitingTransactionID
	st.AddLine(conversation.Line{Description: "Guide", Product: "Guide", Price: 999}, "guide")
	require.NoError(t, repo.Save(context.Background(), st))

	conn := mocks.NewConn("tok")
	l := NewListener(engine, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, l.Prepare(ctx, conn))
	runDone := make(chan error, 1)
	go func() { runDone <- l.Run(ctx, conn) }()

	l.Handle(ctx, conn, dm("slow", validTxID))
	<-verifier.entered

	l.Handle(ctx, conn, dm("fast", "hello"))
	select {
	case s := <-conn.SentCh():
		assert.Equal(t, "dm-fast", s.ChannelID)
		assert.Equal(t, "Hello! Do you want to buy something?", s.Text)
	case <-time.After(2 * time.Second):
		t.Fatal("fast user was blocked by slow verification")
	}

	close(verifier.release)
	select {
	case s := <-conn.SentCh():
		assert.Equal(t, "dm-slow", s.ChannelID)
		assert.Equal(t, replyTxIDNotFound, s.Text)
	case <-time.After(2 * time.Second):
		t.Fatal("slow user never answered")
	}

	cancel()
	select {
	case <-runDone:
	case <-time.After(2 * time.Second):
		t.Fatal("listener did not stop")
	}
}

func TestListenerIgnoresSelfAndGuildMessages(t *testing.T) {
	engine, err := NewEngine(testIdentity, testStorefront(),
		mailbox.Credential{Address: "shop@example.com", AppPassword: "secret"},
		Deps{Repo: newMemRepo(), Verifier: &stubVerifier{}}, zerolog.Nop())
	require.NoError(t, err)

	conn := mocks.NewConn("tok")
	l := NewListener(engine, zerolog.Nop())
	require.NoError(t, l.Prepare(context.Background(), conn))

	self := dm("me", "hi")
	self.FromSelf = true
	guild := dm("u1", "hi")
	guild.Direct = false
	l.Handle(context.Background(), conn, self)
	l.Handle(context.Background(), conn, guild)

	assert.Equal(t, 0, l.dispatcher.Active())
	assert.Empty(t, conn.Sent())
}
