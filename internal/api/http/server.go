package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	appConversation "github.com/dmstore/dmstore/internal/application/conversation"
	appSession "github.com/dmstore/dmstore/internal/application/session"
	"github.com/dmstore/dmstore/internal/domain/catalog"
	"github.com/dmstore/dmstore/internal/domain/conversation"
	"github.com/dmstore/dmstore/internal/domain/messaging"
	"github.com/dmstore/dmstore/internal/domain/session"
	"github.com/dmstore/dmstore/internal/infrastructure/sse"
	"github.com/dmstore/dmstore/internal/infrastructure/storefront"
)

// Sessions is the part of the session manager the control plane drives.
type Sessions interface {
	Start(ctx context.Context, in appSession.StartInput) (*session.Session, error)
	Stop(ctx context.Context, key session.Key) error
	List() []*session.Session
	ResolvedIdentity(key session.Key) string
}

// Storefronts supplies the configured storefront and accepts replacements.
type Storefronts interface {
	Current() (conversation.Storefront, error)
	Replace(sf conversation.Storefront) error
}

// Deps are the collaborators behind the control plane.
type Deps struct {
	Sessions             Sessions
	Directory            messaging.Directory
	Storefronts          Storefronts
	Ledger               catalog.Ledger
	Conversation         appConversation.Deps
	Events               *sse.Hub
	BroadcastMinInterval time.Duration

	// APIKey, when set, is required as a bearer token on every /v1 route.
	APIKey string
}

// Server holds dependencies for HTTP handlers. Duties are built with the untagged base logger.
type Server struct {
	deps   Deps
	base   zerolog.Logger
	logger zerolog.Logger
}

func NewServer(deps Deps, logger zerolog.Logger) *Server {
	return &Server{
		deps:   deps,
		base:   logger,
		logger: logger.With().Str("component", "http").Logger(),
	}
}

// Router builds the HTTP router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.health)

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.requireAPIKey)

		// Streams outlive the request timeout.
		if s.deps.Events != nil {
			r.Get("/events", s.sessionEvents)
		}

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(30 * time.Second))

			r.Route("/broadcasts", func(r chi.Router) {
				r.Post("/", s.startBroadcast)
				r.Post("/stop", s.stopBroadcast)
			})

			r.Route("/listeners", func(r chi.Router) {
				r.Post("/", s.startListener)
				r.Post("/stop", s.stopListener)
			})

			r.Route("/sessions", func(r chi.Router) {
				r.Get("/", s.listSessions)
				r.Post("/identity", s.sessionIdentity)
			})

			r.Post("/accounts/self", s.accountSelf)
			r.Post("/channels/describe", s.describeChannel)

			r.Get("/catalog", s.getCatalog)
			r.Put("/storefront", s.replaceStorefront)
			r.Get("/sold", s.listSold)
		})
	})

	return r
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, map[string]interface{}{
		"error":   code,
		"message": message,
	})
}

// respondServiceError maps domain errors onto status codes.
func (s *Server) respondServiceError(w http.ResponseWriter, err error) {
	var running *session.AlreadyRunningError
	switch {
	case session.IsValidation(err):
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	case errors.As(err, &running):
		respondJSON(w, http.StatusConflict, map[string]interface{}{
			"error":    "ALREADY_RUNNING",
			"message":  err.Error(),
			"identity": running.Identity,
		})
	case errors.Is(err, session.ErrNotFound):
		respondError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, messaging.ErrChannelNotFound):
		respondError(w, http.StatusNotFound, "CHANNEL_NOT_FOUND", err.Error())
	case errors.Is(err, messaging.ErrUnauthorized):
		respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", err.Error())
	case errors.Is(err, storefront.ErrNotConfigured):
		respondError(w, http.StatusNotFound, "NOT_CONFIGURED", err.Error())
	default:
		s.logger.Error().Err(err).Msg("request failed")
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
	}
}

func decodeBody(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func parseLimitOffset(r *http.Request, defaultLimit, maxLimit int) (int, int) {
	limit := defaultLimit
	offset := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if l, err := strconv.Atoi(v); err == nil {
			limit = l
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if o, err := strconv.Atoi(v); err == nil {
			offset = o
		}
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
