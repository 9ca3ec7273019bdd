package handlers

import (
	"net/http"
	"strconv"
)

// Notifications returns recent in-app feed items, newest first. The feed is
// the fallback channel for clients without push delivery.
func (a *App) Notifications(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	a.json(w, http.StatusOK, map[string]any{"notifications": a.Feed.Recent(userID, limit)})
}
