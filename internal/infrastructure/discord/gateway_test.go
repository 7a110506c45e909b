package discord

import (
	"errors"
	"net/http"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmstore/dmstore/internal/domain/messaging"
)

func TestNewSessionPrefixesToken(t *testing.T) {
	s, err := newSession("  abc.def  ")
	require.NoError(t, err)
	assert.Equal(t, "Bot abc.def", s.Token)
	assert.False(t, s.ShouldReconnectOnError)
	assert.Equal(t, intents, s.Identify.Intents)

	s, err = newSession("Bot xyz")
	require.NoError(t, err)
	assert.Equal(t, "Bot xyz", s.Token)
}

func TestClassify(t *testing.T) {
	notFound := &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusNotFound}}
	assert.ErrorIs(t, classify(notFound), messaging.ErrChannelNotFound)

	denied := &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusUnauthorized}}
	assert.ErrorIs(t, classify(denied), messaging.ErrUnauthorized)

	other := errors.New("boom")
	assert.Equal(t, other, classify(other))
}

func TestConnEmitAfterCloseDoesNotBlock(t *testing.T) {
	c := &conn{events: make(chan messaging.Event), closed: make(chan struct{})}
	c.detach()
	c.onDisconnect(nil, &discordgo.Disconnect{})
	c.onMessage(nil, &discordgo.MessageCreate{Message: &discordgo.Message{Author: &discordgo.User{ID: "1"}}})
	assert.Len(t, c.events, 0)
}

func TestConnTranslatesMessages(t *testing.T) {
	c := &conn{events: make(chan messaging.Event, 4), closed: make(chan struct{})}
	c.onReady(nil, &discordgo.Ready{User: &discordgo.User{ID: "me", Username: "shop", Discriminator: "0"}})
	ready := <-c.events
	assert.Equal(t, messaging.EventReady, ready.Type)
	assert.Equal(t, "shop", ready.Self.Display())

	c.onMessage(nil, &discordgo.MessageCreate{Message: &discordgo.Message{
		ID: "m1", ChannelID: "dm", Content: "hi", Author: &discordgo.User{ID: "u1", Username: "alice"},
	}})
	ev := <-c.events
	require.NotNil(t, ev.Message)
	assert.True(t, ev.Message.Direct)
	assert.False(t, ev.Message.FromSelf)
	assert.Equal(t, "alice", ev.Message.AuthorName)

	c.onMessage(nil, &discordgo.MessageCreate{Message: &discordgo.Message{
		ID: "m2", ChannelID: "c", GuildID: "g", Content: "x", Author: &discordgo.User{ID: "me"},
	}})
	ev = <-c.events
	assert.False(t, ev.Message.Direct)
	assert.True(t, ev.Message.FromSelf)
}
