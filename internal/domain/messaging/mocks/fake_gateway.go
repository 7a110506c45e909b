package mocks

import (
	"context"
	"errors"
	"sync"

	"github.com/dmstore/dmstore/internal/domain/messaging"
)

// Sent is one message recorded by a fake connection.
type Sent struct {
	ChannelID string
	Text      string
}

// Conn is an in-memory messaging.Conn. Tests push events with Emit and read sends with Sent.
type Conn struct {
	Token    string
	Channels map[string]*messaging.Channel
	SendErr  error

	events    chan messaging.Event
	mu        sync.Mutex
	sent      []Sent
	sentCh    chan Sent
	closed    chan struct{}
	closeOnce sync.Once
}

// NewConn creates a fake connection with buffered events.
func NewConn(token string) *Conn {
	return &Conn{
		Token:    token,
		Channels: map[string]*messaging.Channel{},
		events:   make(chan messaging.Event, 64),
		sentCh:   make(chan Sent, 256),
		closed:   make(chan struct{}),
	}
}

// Emit queues an event for the session reading this connection.
func (c *Conn) Emit(ev messaging.Event) {
	c.events <- ev
}

// Ready emits a ready event for the given user.
func (c *Conn) Ready(username string) {
	c.Emit(messaging.Event{Type: messaging.EventReady, Self: messaging.User{ID: "self", Username: username}})
}

func (c *Conn) Events() <-chan messaging.Event {
	return c.events
}

func (c *Conn) Channel(_ context.Context, channelID string) (*messaging.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, ok := c.Channels[channelID]
	if !ok {
		return nil, messaging.ErrChannelNotFound
	}
	cp := *ch
	return &cp, nil
}

func (c *Conn) Send(_ context.Context, channelID, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.SendErr != nil {
		return c.SendErr
	}
	s := Sent{ChannelID: channelID, Text: text}
	c.sent = append(c.sent, s)
	select {
	case c.sentCh <- s:
	default:
	}
	return nil
}

func (c *Conn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

// Sent returns every recorded send.
func (c *Conn) Sent() []Sent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Sent(nil), c.sent...)
}

// SentCh streams recorded sends.
func (c *Conn) SentCh() <-chan Sent {
	return c.sentCh
}

// Closed is closed once Close has been called.
func (c *Conn) Closed() <-chan struct{} {
	return c.closed
}

// Gateway hands out fake connections and records every one it opened.
type Gateway struct {
	OpenErr error
	Setup   func(*Conn)

	mu     sync.Mutex
	conns  []*Conn
	opened chan *Conn
}

// NewGateway creates a fake gateway.
func NewGateway() *Gateway {
	return &Gateway{opened: make(chan *Conn, 16)}
}

func (g *Gateway) Open(_ context.Context, token string) (messaging.Conn, error) {
	if g.OpenErr != nil {
		return nil, g.OpenErr
	}
	c := NewConn(token)
	if g.Setup != nil {
		g.Setup(c)
	}
	g.mu.Lock()
	g.conns = append(g.conns, c)
	g.mu.Unlock()
	g.opened <- c
	return c, nil
}

// Opened streams connections as they are opened.
func (g *Gateway) Opened() <-chan *Conn {
	return g.opened
}

// Directory is a fake messaging.Directory.
type Directory struct {
	Users    map[string]messaging.User
	Channels map[string]*messaging.Channel
}

func (d *Directory) Self(_ context.Context, token string) (messaging.User, error) {
	u, ok := d.Users[token]
	if !ok {
		return messaging.User{}, messaging.ErrUnauthorized
	}
	return u, nil
}

func (d *Directory) Describe(_ context.Context, token, channelID string) (*messaging.Channel, error) {
	if _, ok := d.Users[token]; !ok {
		return nil, messaging.ErrUnauthorized
	}
	ch, ok := d.Channels[channelID]
	if !ok {
		return nil, messaging.ErrChannelNotFound
	}
	return ch, nil
}

var _ messaging.Conn = (*Conn)(nil)
var _ messaging.Gateway = (*Gateway)(nil)
var _ messaging.Directory = (*Directory)(nil)

// ErrSendFailed is a convenience error for send failure tests.
var ErrSendFailed = errors.New("send failed")
