package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmstore/dmstore/internal/domain/catalog"
	"github.com/dmstore/dmstore/internal/domain/conversation"
	"github.com/dmstore/dmstore/internal/domain/mailbox"
	"github.com/dmstore/dmstore/internal/domain/session"
)

func openTempStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "nested", "dmstore.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestConversationRoundTrip(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	key := conversation.Key{Identity: session.FingerprintOf("tok"), UserID: "u1"}

	got, err := store.Load(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, got)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	st := conversation.NewState(key, "buyer", now)
	st.Phase = conversation.PhaseConfirming
	st.AddLine(conversation.Line{Description: "3x Premium", Product: "Premium", Price: 3792}, "premium-code")
	require.NoError(t, store.Save(ctx, st))

	got, err = store.Load(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, key, got.Key)
	assert.Equal(t, conversation.PhaseConfirming, got.Phase)
	assert.Equal(t, st.Cart, got.Cart)
	assert.Equal(t, []string{"premium-code"}, got.Finalized)
	assert.True(t, got.CreatedAt.Equal(now))

	got.StopCommunication = true
	got.Phase = conversation.PhaseDeclined
	got.ClearCart()
	got.UpdatedAt = now.Add(time.Minute)
	require.NoError(t, store.Save(ctx, got))

	again, err := store.Load(ctx, key)
	require.NoError(t, err)
	assert.True(t, again.StopCommunication)
	assert.Empty(t, again.Cart)
	assert.Empty(t, again.Finalized)
	assert.True(t, again.CreatedAt.Equal(now))
	assert.True(t, again.UpdatedAt.Equal(now.Add(time.Minute)))
}

func TestStateSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dmstore.db")
	ctx := context.Background()
	key := conversation.Key{Identity: "abc", UserID: "u1"}

	store, err := Open(ctx, path)
	require.NoError(t, err)
	st := conversation.NewState(key, "buyer", time.Now())
	st.Phase = conversation.PhaseAwaitingTransactionID
	require.NoError(t, store.Save(ctx, st))
	require.NoError(t, store.Close())

	store, err = Open(ctx, path)
	require.NoError(t, err)
	defer store.Close()
	got, err := store.Load(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, conversation.PhaseAwaitingTransactionID, got.Phase)
}

func TestSoldLedger(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.Append(ctx, []*catalog.SoldRecord{
		{RecordID: uuid.New(), Identity: "id", Product: "3x Premium", Price: 3792, BuyerID: "u1", SoldAt: base},
		{Identity: "id", Product: "Guide", Price: 999, BuyerID: "u1", SoldAt: base},
	}))
	require.NoError(t, store.Append(ctx, []*catalog.SoldRecord{
		{RecordID: uuid.New(), Identity: "id", Product: "Basic", Price: 500, BuyerID: "u2", SoldAt: base.Add(time.Hour)},
	}))
	require.NoError(t, store.Append(ctx, nil))

	records, err := store.List(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "Basic", records[0].Product)
	assert.Equal(t, "Guide", records[1].Product)
	assert.Equal(t, catalog.Amount(3792), records[2].Price)
	assert.NotEqual(t, uuid.Nil, records[1].RecordID)

	page, err := store.List(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "Guide", page[0].Product)

	_, err = store.List(ctx, 0, 0)
	assert.Error(t, err)
}

func TestMailboxScans(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	reason := "auth failed"

	require.NoError(t, store.Create(ctx, &mailbox.Scan{
		ScanID: uuid.New(), Identity: "id", UserID: "u1", TransactionID: "ABCDEFGHIJ1234567",
		Messages:  []mailbox.Summary{{Subject: "s", From: "f", Body: "b"}},
		ScannedAt: time.Now(),
	}))
	scan := &mailbox.Scan{ScanID: uuid.New(), Identity: "id", UserID: "u1", Error: &reason, ScannedAt: time.Now()}
	require.NoError(t, store.Create(ctx, scan))
	assert.NotZero(t, scan.ID)

	n, err := store.CountScans(ctx, "id", "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(context.Background(), " ")
	assert.Error(t, err)
}

func TestUpSection(t *testing.T) {
	assert.Equal(t, "\nA\n", upSection("-- +migrate Up\nA\n-- +migrate Down\nB"))
	assert.Equal(t, "plain", upSection("plain"))
}
