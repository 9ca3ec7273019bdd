package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"calmiverse/internal/domain"
)

type childRequest struct {
	Name      string   `json:"name"`
	BirthDate string   `json:"birth_date"`
	Gender    string   `json:"gender,omitempty"`
	Interests []string `json:"interests,omitempty"`
	TeddyName string   `json:"teddy_name,omitempty"`
}

type childView struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	BirthDate string   `json:"birth_date"`
	Age       int      `json:"age"`
	Gender    string   `json:"gender,omitempty"`
	Interests []string `json:"interests,omitempty"`
	TeddyName string   `json:"teddy_name,omitempty"`
}

func (r childRequest) toDomain(userID string) (*domain.Child, error) {
	name := strings.TrimSpace(r.Name)
	if name == "" {
		return nil, errBadChild("name is required")
	}
	birth, err := time.Parse("2006-01-02", r.BirthDate)
	if err != nil {
		return nil, errBadChild("birth_date must be YYYY-MM-DD")
	}
	if birth.After(time.Now()) {
		return nil, errBadChild("birth_date is in the future")
	}
	return &domain.Child{
		UserID:    userID,
		Name:      name,
		BirthDate: birth,
		Gender:    r.Gender,
		Interests: r.Interests,
		TeddyName: r.TeddyName,
	}, nil
}

type childValidationError string

func (e childValidationError) Error() string { return string(e) }

func errBadChild(msg string) error { return childValidationError(msg) }

// CreateChild adds a child profile for the authenticated parent.
func (a *App) CreateChild(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}

	var req childRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	child, err := req.toDomain(userID)
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	child.ID = uuid.NewString()

	if err := a.Children.Create(r.Context(), child); err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusCreated, viewChild(child))
}

// ListChildren returns the parent's child profiles.
func (a *App) ListChildren(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}

	children, err := a.Children.ListByUser(r.Context(), userID)
	if err != nil {
		a.domainError(w, err)
		return
	}
	views := make([]childView, 0, len(children))
	for i := range children {
		views = append(views, viewChild(&children[i]))
	}
	a.json(w, http.StatusOK, map[string]any{"children": views})
}

// UpdateChild replaces a child profile. Updating someone else's child is a
// 404.
func (a *App) UpdateChild(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}

	var req childRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	child, err := req.toDomain(userID)
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	child.ID = chi.URLParam(r, "id")

	if err := a.Children.Update(r.Context(), child); err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, viewChild(child))
}

// DeleteChild removes a child profile.
func (a *App) DeleteChild(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}

	if err := a.Children.Delete(r.Context(), chi.URLParam(r, "id"), userID); err != nil {
		a.domainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func viewChild(c *domain.Child) childView {
	return childView{
		ID:        c.ID,
		Name:      c.Name,
		BirthDate: c.BirthDate.Format("2006-01-02"),
		Age:       c.AgeAt(time.Now()),
		Gender:    c.Gender,
		Interests: c.Interests,
		TeddyName: c.TeddyName,
	}
}
