package discord

import (
	"context"

	"github.com/bwmarrin/discordgo"

	"github.com/dmstore/dmstore/internal/domain/messaging"
)

// Directory answers account and channel lookups over REST without opening a websocket.
type Directory struct{}

// NewDirectory creates a REST-only directory.
func NewDirectory() *Directory {
	return &Directory{}
}

// Self returns the account that owns token.
func (d *Directory) Self(ctx context.Context, token string) (messaging.User, error) {
	s, err := newSession(token)
	if err != nil {
		return messaging.User{}, err
	}
	u, err := s.User("@me", discordgo.WithContext(ctx))
	if err != nil {
		return messaging.User{}, classify(err)
	}
	return messaging.User{ID: u.ID, Username: u.Username, Tag: u.Discriminator}, nil
}

// Describe resolves a channel and its guild name as seen by token.
func (d *Directory) Describe(ctx context.Context, token, channelID string) (*messaging.Channel, error) {
	s, err := newSession(token)
	if err != nil {
		return nil, err
	}
	return describe(ctx, s, channelID)
}

var _ messaging.Directory = (*Directory)(nil)
