package controller

import (
	"errors"
	"net/http"
	"strings"

	"github.com/MainakDebnath6/dbms-weather-analysis/internal/modules/weather/repository"
	"github.com/MainakDebnath6/dbms-weather-analysis/internal/modules/weather/service"
	"github.com/MainakDebnath6/dbms-weather-analysis/internal/modules/weather/types"
	"github.com/MainakDebnath6/dbms-weather-analysis/internal/observability"
	"github.com/MainakDebnath6/dbms-weather-analysis/internal/utils"
)

const (
	msgRecorded         = "Data successfully recorded."
	msgInvalidFields    = "Missing or invalid required fields."
	msgDuplicate        = "Data for this city on this date already exists."
	msgTransactionError = "Database transaction failed."
	msgInvalidMetric    = "Invalid metric selected."
	msgAnalysisError    = "Failed to retrieve analysis data."
	msgHistoryError     = "Failed to retrieve history data."
)

type submitResponse struct {
	Message string `json:"message"`
	CityID  int64  `json:"cityId"`
}

func (c *weatherControllerImpl) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req types.ObservationRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		c.logger.DebugContext(r.Context(), "submit: decode failed", "error", err)
		c.service.CountRejected(observability.SourceHTTP)
		utils.WriteError(w, http.StatusBadRequest, msgInvalidFields)
		return
	}

	cityID, err := c.service.SubmitObservation(r.Context(), observability.SourceHTTP, req)
	switch {
	case err == nil:
		utils.WriteJSON(w, http.StatusCreated, submitResponse{Message: msgRecorded, CityID: cityID})
	case errors.Is(err, service.ErrInvalidObservation):
		c.logger.DebugContext(r.Context(), "submit: validation failed", "error", err)
		utils.WriteError(w, http.StatusBadRequest, strings.TrimSpace(msgInvalidFields+" "+validationDetail(err)))
	case errors.Is(err, repository.ErrDuplicateObservation):
		c.logger.InfoContext(r.Context(), "submit: duplicate observation", "city", req.City, "date", req.Date)
		utils.WriteError(w, http.StatusConflict, msgDuplicate)
	default:
		c.logger.ErrorContext(r.Context(), "submit: transaction failed", "city", req.City, "date", req.Date, "error", err)
		utils.WriteError(w, http.StatusInternalServerError, msgTransactionError)
	}
}

func (c *weatherControllerImpl) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	averages, err := c.service.CityAverages(r.Context(), r.URL.Query().Get("metric"))
	if err != nil {
		if errors.Is(err, service.ErrInvalidMetric) {
			utils.WriteError(w, http.StatusBadRequest, msgInvalidMetric)
			return
		}
		c.logger.ErrorContext(r.Context(), "analysis: query failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, msgAnalysisError)
		return
	}
	utils.WriteJSON(w, http.StatusOK, averages)
}

func (c *weatherControllerImpl) handleHistory(w http.ResponseWriter, r *http.Request) {
	history, err := c.service.RecentHistory(r.Context())
	if err != nil {
		c.logger.ErrorContext(r.Context(), "history: query failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, msgHistoryError)
		return
	}
	utils.WriteJSON(w, http.StatusOK, history)
}

// validationDetail strips the sentinel prefix so only the field list is
// echoed back to the client.
func validationDetail(err error) string {
	detail, ok := strings.CutPrefix(err.Error(), service.ErrInvalidObservation.Error()+": ")
	if !ok || detail == "" {
		return ""
	}
	return "(" + detail + ")"
}
