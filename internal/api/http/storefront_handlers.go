package httpapi

import (
	"net/http"
	"strings"

	"github.com/dmstore/dmstore/internal/domain/catalog"
	"github.com/dmstore/dmstore/internal/domain/session"
	"github.com/dmstore/dmstore/internal/infrastructure/storefront"
)

type describeRequest struct {
	Token     string `json:"token"`
	ChannelID string `json:"channelId"`
}

type catalogResponse struct {
	Currency string          `json:"currency"`
	Catalog  catalog.Catalog `json:"catalog"`
}

func (s *Server) accountSelf(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	if strings.TrimSpace(req.Token) == "" {
		s.respondServiceError(w, session.Invalid("token", "is required"))
		return
	}
	u, err := s.deps.Directory.Self(r.Context(), req.Token)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"id":       u.ID,
		"username": u.Username,
		"display":  u.Display(),
	})
}

func (s *Server) describeChannel(w http.ResponseWriter, r *http.Request) {
	var req describeRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	if strings.TrimSpace(req.Token) == "" {
		s.respondServiceError(w, session.Invalid("token", "is required"))
		return
	}
	if strings.TrimSpace(req.ChannelID) == "" {
		s.respondServiceError(w, session.Invalid("channel_id", "is required"))
		return
	}
	ch, err := s.deps.Directory.Describe(r.Context(), req.Token, strings.TrimSpace(req.ChannelID))
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"channelId":        ch.ID,
		"channelName":      ch.Name,
		"serverId":         ch.GuildID,
		"serverName":       ch.GuildName,
		"rateLimitSeconds": int(ch.RateLimit.Seconds()),
	})
}

func (s *Server) getCatalog(w http.ResponseWriter, _ *http.Request) {
	sf, err := s.deps.Storefronts.Current()
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, catalogResponse{Currency: sf.Currency, Catalog: sf.Catalog})
}

func (s *Server) replaceStorefront(w http.ResponseWriter, r *http.Request) {
	var doc storefront.Document
	if err := decodeBody(r, &doc); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	sf, err := doc.Storefront()
	if err != nil {
		s.respondServiceError(w, session.Invalid("storefront", err.Error()))
		return
	}
	if err := s.deps.Storefronts.Replace(sf); err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.logger.Info().
		Int("groups", len(sf.Catalog.Groups)).
		Int("unlimited", len(sf.Catalog.Unlimited)).
		Msg("storefront replaced")
	respondJSON(w, http.StatusOK, catalogResponse{Currency: sf.Currency, Catalog: sf.Catalog})
}

func (s *Server) listSold(w http.ResponseWriter, r *http.Request) {
	limit, offset := parseLimitOffset(r, 50, 500)
	records, err := s.deps.Ledger.List(r.Context(), limit, offset)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	if records == nil {
		records = []*catalog.SoldRecord{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"records": records,
		"limit":   limit,
		"offset":  offset,
	})
}
