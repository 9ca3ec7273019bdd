package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"calmiverse/internal/domain"
	"calmiverse/internal/infra/supaauth"
	"calmiverse/internal/middleware"
	"calmiverse/internal/notify"
	"calmiverse/internal/queue"
	"calmiverse/internal/storage"
	"calmiverse/internal/webhook"
)

// App bundles the dependencies the HTTP handlers need. Repositories are
// interfaces so tests can substitute in-memory fakes.
type App struct {
	Users    domain.UserRepository
	Stories  domain.StoryRepository
	Children domain.ChildRepository

	DB      Pinger
	Queue   *queue.Manager
	Feed    *notify.Feed
	Webhook *webhook.Client
	Store   *storage.FileStore
	Auth    supaauth.Verifier

	JWTSecret  string
	SessionTTL time.Duration

	Logger zerolog.Logger
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, errorBody{Error: code, Message: message})
}

func (a *App) currentUserID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}

// domainError maps sentinel domain errors onto HTTP responses; anything
// unrecognized is a 500 with the detail kept out of the body.
func (a *App) domainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", "resource not found")
	case errors.Is(err, domain.ErrUnauthorized):
		a.error(w, http.StatusUnauthorized, "unauthorized", "invalid credentials")
	case errors.Is(err, domain.ErrInvalidPrompt):
		a.error(w, http.StatusBadRequest, "invalid_prompt", err.Error())
	case errors.Is(err, domain.ErrQuotaExceeded):
		a.error(w, http.StatusTooManyRequests, "quota_exceeded", "daily story quota reached")
	case errors.Is(err, domain.ErrDuplicateOperation):
		a.error(w, http.StatusConflict, "duplicate", "operation already in progress")
	default:
		a.Logger.Error().Err(err).Msg("handler: internal error")
		a.error(w, http.StatusInternalServerError, "internal", "internal error")
	}
}
