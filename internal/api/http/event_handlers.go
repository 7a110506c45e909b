package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/dmstore/dmstore/internal/domain/session"
	"github.com/dmstore/dmstore/internal/infrastructure/sse"
)

// sessionEvents streams session status changes as server-sent events.
func (s *Server) sessionEvents(w http.ResponseWriter, r *http.Request) {
	clientID := r.URL.Query().Get("client_id")
	if clientID == "" {
		clientID = uuid.New().String()
	}
	var purposes []session.Purpose
	for _, p := range splitCSV(r.URL.Query().Get("purpose")) {
		purpose := session.Purpose(p)
		if !purpose.Valid() {
			respondError(w, http.StatusBadRequest, "INVALID_PARAM", "purpose must be broadcast or dm-listener")
			return
		}
		purposes = append(purposes, purpose)
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "streaming not supported")
		return
	}

	client := sse.NewClient(clientID, purposes)
	s.deps.Events.Register(client)
	defer s.deps.Events.Unregister(client)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	ctx := r.Context()
	for {
		select {
		case msg, ok := <-client.Messages:
			if !ok {
				return
			}
			payload, _ := json.Marshal(msg)
			_, _ = w.Write([]byte("event: " + msg.Event + "\ndata: "))
			_, _ = w.Write(payload)
			_, _ = w.Write([]byte("\n\n"))
			flusher.Flush()
		case <-ctx.Done():
			return
		}
	}
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := []string{}
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
