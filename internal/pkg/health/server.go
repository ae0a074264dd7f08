package health

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Vodeneev/openingline/internal/pkg/health/handlers"
)

// NewRouter builds the status surface: /ping, /health, /metrics and /status.
func NewRouter(service string, status handlers.StatusFunc) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/ping", handlers.HandlePing)
	r.Get("/health", handlers.HandleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/status", handlers.HandleStatus(service, status))

	return r
}

// Run serves the router on addr until ctx is done.
func Run(ctx context.Context, addr string, service string, status handlers.StatusFunc, readHeaderTimeout time.Duration) {
	srv := &http.Server{
		Addr:              addr,
		Handler:           NewRouter(service, status),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	go func() {
		slog.Info("Health server listening", "service", service, "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Health server error", "service", service, "error", err)
		}
	}()
}

// AddrFor returns the listen address for port; 0 disables the server.
func AddrFor(port int) (string, bool) {
	if port <= 0 {
		return "", false
	}
	return fmt.Sprintf(":%d", port), true
}
