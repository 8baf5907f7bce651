package httpapi

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/MainakDebnath6/dbms-weather-analysis/internal/utils"
)

const healthcheckTimeout = 2 * time.Second

type healthchecker interface {
	handleHealthz(w http.ResponseWriter, r *http.Request)
}

type healthcheckerImpl struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewHealthchecker(db *sql.DB, logger *slog.Logger) healthchecker {
	if logger == nil {
		logger = slog.Default()
	}
	return &healthcheckerImpl{db: db, logger: logger}
}

func (h *healthcheckerImpl) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthcheckTimeout)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to check database connectivity", "error", err)
		utils.WriteError(w, http.StatusServiceUnavailable, "failed to check database connectivity")
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func registerHealthcheck(mux *http.ServeMux, db *sql.DB, logger *slog.Logger) {
	healthchecker := NewHealthchecker(db, logger)
	mux.HandleFunc("GET /healthz", healthchecker.handleHealthz)
}
