package handler

import (
	"encoding/json"
	"net/http"
	"time"
)

// Health returns a liveness handler. It does not call Google; a failing
// upstream shows up in the step failure metrics instead.
func Health(started time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status": "ok",
			"uptime": time.Since(started).Round(time.Second).String(),
		})
	}
}
