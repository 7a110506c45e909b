// Package discord adapts discordgo to the messaging gateway ports.
package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/dmstore/dmstore/internal/domain/messaging"
)

const (
	botPrefix    = "Bot "
	eventBacklog = 256
	intents      = discordgo.IntentsGuilds | discordgo.IntentsDirectMessages | discordgo.IntentsMessageContent
)

// Gateway opens one discordgo session per identity.
type Gateway struct {
	logger zerolog.Logger
}

// NewGateway creates a gateway.
func NewGateway(logger zerolog.Logger) *Gateway {
	return &Gateway{logger: logger.With().Str("component", "discord").Logger()}
}

func newSession(token string) (*discordgo.Session, error) {
	token = strings.TrimSpace(token)
	if !strings.HasPrefix(token, botPrefix) {
		token = botPrefix + token
	}
	s, err := discordgo.New(token)
	if err != nil {
		return nil, err
	}
	s.Identify.Intents = intents
	// A dropped connection ends the session; the control plane decides whether to start again.
	s.ShouldReconnectOnError = false
	return s, nil
}

// Open connects a websocket session. Ready and fatal conditions are delivered on the returned Conn's events.
func (g *Gateway) Open(ctx context.Context, token string) (messaging.Conn, error) {
	s, err := newSession(token)
	if err != nil {
		return nil, err
	}
	c := &conn{
		s:      s,
		events: make(chan messaging.Event, eventBacklog),
		closed: make(chan struct{}),
		logger: g.logger,
	}
	c.removers = append(c.removers,
		s.AddHandler(c.onReady),
		s.AddHandler(c.onMessage),
		s.AddHandler(c.onDisconnect),
	)

	opened := make(chan error, 1)
	go func() { opened <- s.Open() }()
	select {
	case err := <-opened:
		if err != nil {
			c.detach()
			return nil, classify(err)
		}
	case <-ctx.Done():
		go func() {
			if <-opened == nil {
				_ = s.Close()
			}
		}()
		c.detach()
		return nil, ctx.Err()
	}
	return c, nil
}

type conn struct {
	s        *discordgo.Session
	events   chan messaging.Event
	closed   chan struct{}
	once     sync.Once
	removers []func()
	selfID   string
	mu       sync.RWMutex
	logger   zerolog.Logger
}

func (c *conn) emit(ev messaging.Event) {
	select {
	case c.events <- ev:
	case <-c.closed:
	}
}

func (c *conn) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	self := messaging.User{}
	if r.User != nil {
		self = messaging.User{ID: r.User.ID, Username: r.User.Username, Tag: r.User.Discriminator}
	}
	c.mu.Lock()
	c.selfID = self.ID
	c.mu.Unlock()
	c.emit(messaging.Event{Type: messaging.EventReady, Self: self})
}

func (c *conn) onMessage(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil {
		return
	}
	c.mu.RLock()
	selfID := c.selfID
	c.mu.RUnlock()
	c.emit(messaging.Event{Type: messaging.EventMessage, Message: &messaging.Message{
		ID:         m.ID,
		ChannelID:  m.ChannelID,
		AuthorID:   m.Author.ID,
		AuthorName: m.Author.Username,
		Content:    m.Content,
		Direct:     m.GuildID == "",
		FromSelf:   m.Author.ID == selfID,
		ReceivedAt: time.Now().UTC(),
	}})
}

func (c *conn) onDisconnect(_ *discordgo.Session, _ *discordgo.Disconnect) {
	c.emit(messaging.Event{Type: messaging.EventFatal, Err: errors.New("gateway disconnected")})
}

func (c *conn) Events() <-chan messaging.Event {
	return c.events
}

func (c *conn) Channel(ctx context.Context, channelID string) (*messaging.Channel, error) {
	return describe(ctx, c.s, channelID)
}

func (c *conn) Send(ctx context.Context, channelID, text string) error {
	if _, err := c.s.ChannelMessageSend(channelID, text, discordgo.WithContext(ctx)); err != nil {
		return classify(err)
	}
	return nil
}

// Close detaches handlers before closing so no event is emitted afterwards.
func (c *conn) Close() error {
	var err error
	c.once.Do(func() {
		c.detach()
		err = c.s.Close()
	})
	return err
}

func (c *conn) detach() {
	for _, remove := range c.removers {
		remove()
	}
	c.removers = nil
	select {
	case <-c.closed:
	default:
		close(c.closed)
	}
}

func describe(ctx context.Context, s *discordgo.Session, channelID string) (*messaging.Channel, error) {
	ch, err := s.Channel(channelID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, classify(err)
	}
	out := &messaging.Channel{
		ID:        ch.ID,
		Name:      ch.Name,
		GuildID:   ch.GuildID,
		RateLimit: time.Duration(ch.RateLimitPerUser) * time.Second,
	}
	if ch.GuildID != "" {
		if guild, err := s.Guild(ch.GuildID, discordgo.WithContext(ctx)); err == nil {
			out.GuildName = guild.Name
		}
	}
	return out, nil
}

// classify maps REST status codes onto domain errors.
func classify(err error) error {
	var rest *discordgo.RESTError
	if errors.As(err, &rest) && rest.Response != nil {
		switch rest.Response.StatusCode {
		case http.StatusNotFound:
			return fmt.Errorf("%w: %v", messaging.ErrChannelNotFound, err)
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %v", messaging.ErrUnauthorized, err)
		}
	}
	return err
}

var _ messaging.Gateway = (*Gateway)(nil)
