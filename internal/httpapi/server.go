package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/MainakDebnath6/dbms-weather-analysis/internal/config"
	"github.com/MainakDebnath6/dbms-weather-analysis/internal/observability"
)

// Handler wraps mux with request ids, CORS, logging and metrics.
func Handler(mux *http.ServeMux, metrics *observability.Metrics, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return withRequestID(withCORS(withObservability(mux, metrics, logger)))
}

func NewServer(cfg config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
