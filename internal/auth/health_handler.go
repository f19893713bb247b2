// health_handler.go -- Health check handler for GET /health.
package auth

import (
	"net/http"
)

// CheckHealth handles GET /health. Pings the session store.
// Returns 200 if it answers, 503 otherwise.
func (h *AuthHandler) CheckHealth(w http.ResponseWriter, r *http.Request) {
	redisStatus := "ok"
	status := http.StatusOK

	if err := h.Sessions.CheckHealth(r.Context()); err != nil {
		logError(r, "redis health check failed", "error", err)
		redisStatus = "error"
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, struct {
		Redis     string `json:"redis"`
		Providers int    `json:"providers"`
	}{redisStatus, len(h.Clients)})
}
