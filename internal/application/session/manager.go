package session

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/dmstore/dmstore/internal/domain/messaging"
	"github.com/dmstore/dmstore/internal/domain/session"
)

// Duty is the work a session performs once its connection is ready.
//
// Prepare runs once on the first ready event; an error tears the session down before it is running.
// Run is started after Prepare succeeds and returning ends the session.
// Handle receives inbound messages and must not block.
type Duty interface {
	Prepare(ctx context.Context, conn messaging.Conn) error
	Run(ctx context.Context, conn messaging.Conn) error
	Handle(ctx context.Context, conn messaging.Conn, msg *messaging.Message)
}

// StartInput starts a session.
type StartInput struct {
	Token   string
	Purpose session.Purpose
	Duty    Duty
}

type entry struct {
	sess   *session.Session
	cancel context.CancelFunc
	done   chan struct{}
}

// Manager owns the registry of live sessions. At most one live session exists per key.
type Manager struct {
	gateway messaging.Gateway
	logger  zerolog.Logger

	mu         sync.Mutex
	entries    map[session.Key]*entry
	identities map[session.Key]string
	observers  []session.Observer
	wg         sync.WaitGroup
}

// NewManager creates a session manager.
func NewManager(gateway messaging.Gateway, logger zerolog.Logger) *Manager {
	return &Manager{
		gateway:    gateway,
		logger:     logger.With().Str("service", "session").Logger(),
		entries:    make(map[session.Key]*entry),
		identities: make(map[session.Key]string),
	}
}

// Observe registers an observer for status changes. Call it before the first Start.
func (m *Manager) Observe(o session.Observer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, o)
}

// notify must be called without holding mu.
func (m *Manager) notify(snapshot session.Session) {
	m.mu.Lock()
	observers := m.observers
	m.mu.Unlock()
	for _, o := range observers {
		o.SessionChanged(snapshot)
	}
}

// KeyFor derives the registry key for a token and purpose.
func KeyFor(token string, purpose session.Purpose) (session.Key, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return session.Key{}, session.Invalid("token", "is required")
	}
	if !purpose.Valid() {
		return session.Key{}, session.Invalid("purpose", "must be broadcast or dm-listener")
	}
	return session.Key{Identity: session.FingerprintOf(token), Purpose: purpose}, nil
}

// Start registers a session and connects it in the background. It returns as soon as the
// session is registered as starting.
func (m *Manager) Start(ctx context.Context, in StartInput) (*session.Session, error) {
	key, err := KeyFor(in.Token, in.Purpose)
	if err != nil {
		return nil, err
	}
	if in.Duty == nil {
		return nil, errors.New("duty is required")
	}

	m.mu.Lock()
	if existing, ok := m.entries[key]; ok {
		identity := existing.sess.DisplayIdentity
		m.mu.Unlock()
		return nil, &session.AlreadyRunningError{Identity: identity, Purpose: key.Purpose}
	}
	runCtx, cancel := context.WithCancel(context.Background())
	e := &entry{
		sess:   session.New(key, time.Now().UTC()),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	m.entries[key] = e
	snapshot := *e.sess
	m.wg.Add(1)
	m.mu.Unlock()

	m.logger.Info().
		Str("session_id", snapshot.SessionID.String()).
		Str("purpose", string(key.Purpose)).
		Str("identity", key.Identity.Short()).
		Msg("session starting")
	m.notify(snapshot)

	go m.run(runCtx, strings.TrimSpace(in.Token), e, in.Duty)
	return &snapshot, nil
}

// Stop cancels the session owning key and waits for its teardown.
// Stopping a session that is already tearing itself down waits for the same teardown.
func (m *Manager) Stop(ctx context.Context, key session.Key) error {
	m.mu.Lock()
	e, ok := m.entries[key]
	if !ok {
		m.mu.Unlock()
		return session.ErrNotFound
	}
	changed := e.sess.Status != session.StatusStopping && e.sess.BeginStop() == nil
	snapshot := *e.sess
	m.mu.Unlock()
	if changed {
		m.notify(snapshot)
	}

	e.cancel()
	select {
	case <-e.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// StopAll stops every live session and waits for all session goroutines to exit.
func (m *Manager) StopAll(ctx context.Context) error {
	m.mu.Lock()
	keys := make([]session.Key, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	m.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, k := range keys {
		g.Go(func() error {
			if err := m.Stop(gctx, k); err != nil && !errors.Is(err, session.ErrNotFound) {
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	idle := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(idle)
	}()
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Get returns a snapshot of the live session owning key.
func (m *Manager) Get(key session.Key) (*session.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, session.ErrNotFound
	}
	snapshot := *e.sess
	return &snapshot, nil
}

// List returns snapshots of every live session, oldest first.
func (m *Manager) List() []*session.Session {
	m.mu.Lock()
	out := make([]*session.Session, 0, len(m.entries))
	for _, e := range m.entries {
		snapshot := *e.sess
		out = append(out, &snapshot)
	}
	m.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}

// ResolvedIdentity returns the last display identity reported for key, or Unknown.
func (m *Manager) ResolvedIdentity(key session.Key) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[key]; ok && e.sess.ReadyAt != nil {
		return e.sess.DisplayIdentity
	}
	if name, ok := m.identities[key]; ok {
		return name
	}
	return session.UnknownIdentity
}

func (m *Manager) run(ctx context.Context, token string, e *entry, duty Duty) {
	defer m.wg.Done()
	defer close(e.done)

	key := e.sess.Key
	log := m.logger.With().
		Str("session_id", e.sess.SessionID.String()).
		Str("purpose", string(key.Purpose)).
		Str("identity", key.Identity.Short()).
		Logger()

	conn, err := m.gateway.Open(ctx, token)
	if err != nil {
		log.Error().Err(err).Msg("gateway connection failed")
		m.finish(e, log)
		return
	}

	var dutyWG sync.WaitGroup
	m.serve(ctx, conn, e, duty, &dutyWG, log)

	e.cancel()
	dutyWG.Wait()
	if err := conn.Close(); err != nil {
		log.Warn().Err(err).Msg("gateway close failed")
	}
	m.finish(e, log)
}

// serve pumps gateway events until the session is cancelled, the duty returns, or the gateway fails.
func (m *Manager) serve(ctx context.Context, conn messaging.Conn, e *entry, duty Duty, dutyWG *sync.WaitGroup, log zerolog.Logger) {
	var dutyDone chan error
	events := conn.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-dutyDone:
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("session duty failed")
			} else {
				log.Info().Msg("session duty completed")
			}
			return
		case ev, ok := <-events:
			if !ok {
				log.Warn().Msg("gateway connection closed")
				return
			}
			switch ev.Type {
			case messaging.EventReady:
				m.markReady(e, ev.Self.Display())
				if dutyDone != nil {
					continue
				}
				log.Info().Str("display_identity", ev.Self.Display()).Msg("gateway ready")
				if err := duty.Prepare(ctx, conn); err != nil {
					log.Error().Err(err).Msg("session preparation failed")
					return
				}
				running, ok := m.markRunning(e)
				if !ok {
					return
				}
				m.notify(running)
				dutyDone = make(chan error, 1)
				dutyWG.Add(1)
				go func() {
					defer dutyWG.Done()
					dutyDone <- duty.Run(ctx, conn)
				}()
			case messaging.EventMessage:
				if ev.Message != nil && dutyDone != nil {
					duty.Handle(ctx, conn, ev.Message)
				}
			case messaging.EventFatal:
				log.Error().Err(ev.Err).Msg("gateway fatal error")
				return
			}
		}
	}
}

func (m *Manager) markReady(e *entry, display string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.sess.MarkReady(display, time.Now().UTC())
	m.identities[e.sess.Key] = e.sess.DisplayIdentity
}

// markRunning reports false when a stop was requested before the session became ready.
func (m *Manager) markRunning(e *entry) (session.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := e.sess.Run(); err != nil {
		return session.Session{}, false
	}
	return *e.sess, true
}

func (m *Manager) finish(e *entry, log zerolog.Logger) {
	m.mu.Lock()
	_ = e.sess.BeginStop()
	_ = e.sess.Finish(time.Now().UTC())
	if m.entries[e.sess.Key] == e {
		delete(m.entries, e.sess.Key)
	}
	snapshot := *e.sess
	m.mu.Unlock()
	m.notify(snapshot)
	log.Info().Msg("session stopped")
}
