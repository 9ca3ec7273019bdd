package handlers

import (
	"context"
	"net/http"
	"time"
)

// Pinger is satisfied by pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Health reports process liveness and database reachability.
func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	dbStatus := "ok"
	code := http.StatusOK

	if a.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.DB.Ping(ctx); err != nil {
			status = "degraded"
			dbStatus = "unreachable"
			code = http.StatusServiceUnavailable
		}
	}

	a.json(w, code, map[string]any{
		"status": status,
		"db":     dbStatus,
		"jobs":   len(a.Queue.All()),
	})
}
