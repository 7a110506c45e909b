package conversation

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/dmstore/dmstore/internal/domain/messaging"
)

// Listener is the DM-listener session duty. Direct messages are routed to the engine,
// serialized per end-user.
type Listener struct {
	engine     *Engine
	dispatcher *Dispatcher
	conn       messaging.Conn
	logger     zerolog.Logger
}

// NewListener wraps an engine as a session duty.
func NewListener(engine *Engine, logger zerolog.Logger) *Listener {
	l := &Listener{
		engine: engine,
		logger: logger.With().Str("service", "dm-listener").Logger(),
	}
	l.dispatcher = NewDispatcher(l.process)
	return l
}

// Prepare records the connection replies are sent on.
func (l *Listener) Prepare(_ context.Context, conn messaging.Conn) error {
	l.conn = conn
	sf := l.engine.Storefront()
	l.logger.Info().
		Int("groups", len(sf.Catalog.Groups)).
		Int("unlimited", len(sf.Catalog.Unlimited)).
		Int("payment_methods", len(sf.PaymentMethods)).
		Msg("dm listener ready")
	return nil
}

// Run blocks until the session is cancelled, then waits for in-flight conversations.
func (l *Listener) Run(ctx context.Context, _ messaging.Conn) error {
	<-ctx.Done()
	l.dispatcher.Wait()
	return ctx.Err()
}

// Handle queues direct messages from other users.
func (l *Listener) Handle(ctx context.Context, _ messaging.Conn, msg *messaging.Message) {
	if msg.FromSelf || !msg.Direct {
		return
	}
	l.dispatcher.Submit(ctx, msg)
}

func (l *Listener) process(ctx context.Context, msg *messaging.Message) {
	log := l.logger.With().Str("user_id", msg.AuthorID).Logger()
	replies, err := l.engine.Handle(ctx, Inbound{
		UserID:   msg.AuthorID,
		UserName: msg.AuthorName,
		Text:     msg.Content,
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to handle direct message")
		return
	}
	for _, text := range replies {
		if err := l.conn.Send(ctx, msg.ChannelID, text); err != nil {
			log.Error().Err(err).Msg("failed to send reply")
			return
		}
	}
}
