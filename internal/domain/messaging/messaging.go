package messaging

import (
	"context"
	"errors"
	"time"
)

var (
	ErrChannelNotFound = errors.New("channel not found")
	ErrUnauthorized    = errors.New("gateway rejected credentials")
)

// EventType classifies gateway events.
type EventType string

const (
	EventReady   EventType = "READY"
	EventMessage EventType = "MESSAGE"
	EventFatal   EventType = "FATAL"
)

// User is an account as seen by the gateway.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Tag      string `json:"tag"`
}

// Display returns the name shown for a resolved identity.
func (u User) Display() string {
	if u.Tag != "" && u.Tag != "0" {
		return u.Username + "#" + u.Tag
	}
	return u.Username
}

// Message is one inbound message.
type Message struct {
	ID         string    `json:"id"`
	ChannelID  string    `json:"channelId"`
	AuthorID   string    `json:"authorId"`
	AuthorName string    `json:"authorName"`
	Content    string    `json:"content"`
	Direct     bool      `json:"direct"`
	FromSelf   bool      `json:"fromSelf"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// Event is delivered on Conn.Events. Self is set for READY, Message for MESSAGE, Err for FATAL.
type Event struct {
	Type    EventType
	Self    User
	Message *Message
	Err     error
}

// Channel is channel metadata.
type Channel struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	GuildID   string        `json:"guildId,omitempty"`
	GuildName string        `json:"guildName,omitempty"`
	RateLimit time.Duration `json:"rateLimit"`
}

// Sender delivers text to a channel.
type Sender interface {
	Send(ctx context.Context, channelID, text string) error
}

// Conn is one authenticated connection. Events is closed when the connection ends.
type Conn interface {
	Sender
	Events() <-chan Event
	Channel(ctx context.Context, channelID string) (*Channel, error)
	Close() error
}

// Gateway opens connections. Open returns once the connection attempt has started;
// readiness arrives later as an EventReady.
type Gateway interface {
	Open(ctx context.Context, token string) (Conn, error)
}

// Directory answers one-off lookups without holding a session.
type Directory interface {
	Self(ctx context.Context, token string) (User, error)
	Describe(ctx context.Context, token, channelID string) (*Channel, error)
}
