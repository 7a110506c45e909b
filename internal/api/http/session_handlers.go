package httpapi

import (
	"net/http"
	"strings"

	"github.com/dmstore/dmstore/internal/application/broadcast"
	appConversation "github.com/dmstore/dmstore/internal/application/conversation"
	appSession "github.com/dmstore/dmstore/internal/application/session"
	"github.com/dmstore/dmstore/internal/domain/conversation"
	"github.com/dmstore/dmstore/internal/domain/mailbox"
	"github.com/dmstore/dmstore/internal/domain/session"
	"github.com/dmstore/dmstore/internal/infrastructure/storefront"
)

type tokenRequest struct {
	Token string `json:"token"`
}

type broadcastRequest struct {
	Token     string `json:"token"`
	ChannelID string `json:"channelId"`
	Message   string `json:"message"`
	Repeat    bool   `json:"repeat"`
}

type mailboxRequest struct {
	Address     string `json:"address"`
	AppPassword string `json:"appPassword"`
}

type listenerRequest struct {
	Token      string               `json:"token"`
	Mailbox    mailboxRequest       `json:"mailbox"`
	Storefront *storefront.Document `json:"storefront,omitempty"`
}

type identityRequest struct {
	Token   string          `json:"token"`
	Purpose session.Purpose `json:"purpose"`
}

func (s *Server) startBroadcast(w http.ResponseWriter, r *http.Request) {
	var req broadcastRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	in := broadcast.Input{ChannelID: strings.TrimSpace(req.ChannelID), Text: req.Message, Repeat: req.Repeat}
	if err := in.Validate(); err != nil {
		s.respondServiceError(w, err)
		return
	}
	sess, err := s.deps.Sessions.Start(r.Context(), appSession.StartInput{
		Token:   req.Token,
		Purpose: session.PurposeBroadcast,
		Duty:    broadcast.NewLoop(in, s.deps.BroadcastMinInterval, s.base),
	})
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusAccepted, sess)
}

func (s *Server) stopBroadcast(w http.ResponseWriter, r *http.Request) {
	s.stopSession(w, r, session.PurposeBroadcast)
}

func (s *Server) startListener(w http.ResponseWriter, r *http.Request) {
	var req listenerRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	key, err := appSession.KeyFor(req.Token, session.PurposeDMListener)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	sf, err := s.listenerStorefront(req.Storefront)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	cred := mailbox.Credential{
		Address:     strings.TrimSpace(req.Mailbox.Address),
		AppPassword: req.Mailbox.AppPassword,
	}
	engine, err := appConversation.NewEngine(key.Identity, sf, cred, s.deps.Conversation, s.base)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	sess, err := s.deps.Sessions.Start(r.Context(), appSession.StartInput{
		Token:   req.Token,
		Purpose: session.PurposeDMListener,
		Duty:    appConversation.NewListener(engine, s.base),
	})
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusAccepted, sess)
}

// listenerStorefront prefers an inline document over the configured file.
func (s *Server) listenerStorefront(doc *storefront.Document) (conversation.Storefront, error) {
	if doc != nil {
		sf, err := doc.Storefront()
		if err != nil {
			return conversation.Storefront{}, session.Invalid("storefront", err.Error())
		}
		return sf, nil
	}
	sf, err := s.deps.Storefronts.Current()
	if err != nil {
		return conversation.Storefront{}, session.Invalid("storefront", err.Error())
	}
	return sf, nil
}

func (s *Server) stopListener(w http.ResponseWriter, r *http.Request) {
	s.stopSession(w, r, session.PurposeDMListener)
}

func (s *Server) stopSession(w http.ResponseWriter, r *http.Request, purpose session.Purpose) {
	var req tokenRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	key, err := appSession.KeyFor(req.Token, purpose)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	if err := s.deps.Sessions.Stop(r.Context(), key); err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"stopped": true,
		"purpose": purpose,
	})
}

func (s *Server) listSessions(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{"sessions": s.deps.Sessions.List()})
}

func (s *Server) sessionIdentity(w http.ResponseWriter, r *http.Request) {
	var req identityRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	key, err := appSession.KeyFor(req.Token, req.Purpose)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"identity": s.deps.Sessions.ResolvedIdentity(key),
		"purpose":  key.Purpose,
	})
}
