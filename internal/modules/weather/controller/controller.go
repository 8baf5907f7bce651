package controller

import (
	"log/slog"
	"net/http"

	"github.com/MainakDebnath6/dbms-weather-analysis/internal/modules/weather/service"
)

type WeatherController interface {
	RegisterRoutes(mux *http.ServeMux)
}

type weatherControllerImpl struct {
	service *service.Service
	logger  *slog.Logger
}

func NewWeatherController(service *service.Service, logger *slog.Logger) WeatherController {
	if logger == nil {
		logger = slog.Default()
	}
	return &weatherControllerImpl{service: service, logger: logger}
}

func (c *weatherControllerImpl) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/analysis", c.handleAnalysis)
	mux.HandleFunc("POST /api/data", c.handleSubmit)
	mux.HandleFunc("GET /api/history", c.handleHistory)
}
