package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// HandlePing handles /ping endpoint
func HandlePing(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("pong\n"))
}

// HandleHealth handles /health endpoint
func HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

// StatusFunc returns a JSON-encodable snapshot of the running component.
type StatusFunc func() any

// HandleStatus serves the component's state as JSON.
func HandleStatus(service string, status StatusFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := map[string]any{"service": service}
		if status != nil {
			body["status"] = status()
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		if err := json.NewEncoder(w).Encode(body); err != nil {
			http.Error(w, fmt.Sprintf("failed to encode status: %v", err), http.StatusInternalServerError)
			return
		}
	}
}
