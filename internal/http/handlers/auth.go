package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"calmiverse/internal/domain"
	"calmiverse/internal/middleware"
)

type sessionRequest struct {
	AccessToken string `json:"access_token"`
}

type userView struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	Name       string `json:"name,omitempty"`
	Locale     string `json:"locale"`
	Plan       string `json:"plan"`
	QuotaDaily int    `json:"quota_daily"`
	QuotaUsed  int    `json:"quota_used"`
}

// Session exchanges a Supabase access token for a service JWT, creating the
// user row on first sign-in.
func (a *App) Session(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if strings.TrimSpace(req.AccessToken) == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "access_token required")
		return
	}

	if a.Auth == nil {
		a.error(w, http.StatusServiceUnavailable, "auth_unavailable", "session exchange is not configured")
		return
	}

	identity, err := a.Auth.Verify(r.Context(), req.AccessToken)
	if err != nil {
		a.domainError(w, err)
		return
	}

	user, err := a.Users.UpsertBySupabaseID(r.Context(), &domain.User{
		ID:         uuid.NewString(),
		SupabaseID: identity.SupabaseID,
		Email:      identity.Email,
		Name:       identity.Name,
		Locale:     middleware.LocaleFromContext(r.Context()),
		Plan:       domain.UserPlanFree,
		QuotaDaily: domain.DefaultQuotaFor(domain.UserPlanFree),
	})
	if err != nil {
		a.domainError(w, err)
		return
	}

	token, err := middleware.SignJWT(a.JWTSecret, user, a.SessionTTL)
	if err != nil {
		a.domainError(w, err)
		return
	}

	a.json(w, http.StatusOK, map[string]any{
		"token": token,
		"user":  viewUser(user, 0),
	})
}

// Me returns the authenticated user's profile and current quota usage.
func (a *App) Me(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}

	user, err := a.Users.GetByID(r.Context(), userID)
	if err != nil {
		a.domainError(w, err)
		return
	}
	usage, err := a.Users.GetDailyUsage(r.Context(), userID)
	if err != nil {
		a.domainError(w, err)
		return
	}

	a.json(w, http.StatusOK, viewUser(user, usage))
}

func viewUser(u *domain.User, used int) userView {
	return userView{
		ID:         u.ID,
		Email:      u.Email,
		Name:       u.Name,
		Locale:     u.Locale,
		Plan:       string(u.Plan),
		QuotaDaily: u.QuotaDaily,
		QuotaUsed:  used,
	}
}
