package broadcast

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dmstore/dmstore/internal/domain/messaging"
	"github.com/dmstore/dmstore/internal/domain/session"
)

// Input configures one broadcast session.
type Input struct {
	ChannelID string
	Text      string
	Repeat    bool
}

// Validate checks a broadcast request before a session is registered.
func (in Input) Validate() error {
	if strings.TrimSpace(in.ChannelID) == "" {
		return session.Invalid("channel_id", "is required")
	}
	if strings.TrimSpace(in.Text) == "" {
		return session.Invalid("message", "is required")
	}
	return nil
}

// Loop sends a fixed message into one channel, once or repeatedly at the channel's rate limit.
type Loop struct {
	in          Input
	minInterval time.Duration
	logger      zerolog.Logger

	interval time.Duration
	channel  *messaging.Channel
	sent     int
}

// NewLoop creates a broadcast duty. minInterval floors the delay between sends.
func NewLoop(in Input, minInterval time.Duration, logger zerolog.Logger) *Loop {
	return &Loop{
		in:          in,
		minInterval: minInterval,
		logger: logger.With().
			Str("service", "broadcast").
			Str("channel_id", in.ChannelID).
			Logger(),
	}
}

// Prepare reads the channel rate limit once.
func (l *Loop) Prepare(ctx context.Context, conn messaging.Conn) error {
	ch, err := conn.Channel(ctx, l.in.ChannelID)
	if err != nil {
		return fmt.Errorf("resolve channel %s: %w", l.in.ChannelID, err)
	}
	l.channel = ch
	l.interval = ch.RateLimit
	if l.interval < l.minInterval {
		l.interval = l.minInterval
	}
	l.logger.Info().
		Str("channel", ch.Name).
		Dur("rate_limit", ch.RateLimit).
		Dur("interval", l.interval).
		Bool("repeat", l.in.Repeat).
		Msg("broadcast prepared")
	return nil
}

// Run sends until cancelled. In one-shot mode it returns after the first send.
func (l *Loop) Run(ctx context.Context, conn messaging.Conn) error {
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := conn.Send(ctx, l.in.ChannelID, l.in.Text); err != nil {
			return fmt.Errorf("send broadcast: %w", err)
		}
		l.sent++
		l.logger.Debug().Int("sent", l.sent).Msg("broadcast sent")
		if !l.in.Repeat {
			return nil
		}

		if timer == nil {
			timer = time.NewTimer(l.interval)
		} else {
			timer.Reset(l.interval)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Handle ignores inbound messages.
func (l *Loop) Handle(context.Context, messaging.Conn, *messaging.Message) {}

// Interval returns the delay between sends once prepared.
func (l *Loop) Interval() time.Duration {
	return l.interval
}
