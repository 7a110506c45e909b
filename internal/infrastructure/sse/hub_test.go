package sse

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmstore/dmstore/internal/domain/session"
)

func TestHubFiltersByPurpose(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	all := NewClient("all", nil)
	listeners := NewClient("listeners", []session.Purpose{session.PurposeDMListener})
	hub.Register(all)
	hub.Register(listeners)
	assert.Equal(t, 2, hub.ClientCount())

	s := session.New(session.Key{Identity: "abc", Purpose: session.PurposeBroadcast}, time.Now())
	hub.SessionChanged(*s)

	require.Len(t, all.Messages, 1)
	assert.Len(t, listeners.Messages, 0)

	msg := <-all.Messages
	assert.Equal(t, "session.STARTING", msg.Event)
	var got session.Session
	require.NoError(t, json.Unmarshal(msg.Data, &got))
	assert.Equal(t, s.SessionID, got.SessionID)
}

func TestHubDropsWhenClientLags(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	c := NewClient("slow", nil)
	hub.Register(c)

	s := session.New(session.Key{Identity: "abc", Purpose: session.PurposeBroadcast}, time.Now())
	for i := 0; i < clientBuffer+5; i++ {
		hub.SessionChanged(*s)
	}
	assert.Len(t, c.Messages, clientBuffer)
}

func TestHubUnregisterOnlyOwnInstance(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	first := NewClient("dup", nil)
	hub.Register(first)
	second := NewClient("dup", nil)
	hub.Register(second)

	_, open := <-first.Messages
	assert.False(t, open)

	hub.Unregister(first)
	assert.Equal(t, 1, hub.ClientCount())

	hub.Unregister(second)
	assert.Equal(t, 0, hub.ClientCount())
	_, open = <-second.Messages
	assert.False(t, open)
}

func TestHubStopClosesClients(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	c := NewClient("c", nil)
	hub.Register(c)
	hub.Stop()
	_, open := <-c.Messages
	assert.False(t, open)
	assert.Equal(t, 0, hub.ClientCount())
}
