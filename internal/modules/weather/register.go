package weather

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/jonboulle/clockwork"

	"github.com/MainakDebnath6/dbms-weather-analysis/internal/modules/weather/controller"
	"github.com/MainakDebnath6/dbms-weather-analysis/internal/modules/weather/repository"
	"github.com/MainakDebnath6/dbms-weather-analysis/internal/modules/weather/service"
	"github.com/MainakDebnath6/dbms-weather-analysis/internal/observability"
)

// RegisterFeature wires the weather module onto mux. subscriber may be nil
// when MQTT ingest is disabled.
func RegisterFeature(mux *http.ServeMux, db *sql.DB, clock clockwork.Clock, metrics *observability.Metrics, logger *slog.Logger, subscriber MQTTSubscriber) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("module", "weather")

	weatherRepository := repository.NewRepository(db, clock, logger)
	weatherService := service.NewService(weatherRepository, metrics, logger)
	weatherController := controller.NewWeatherController(weatherService, logger)
	weatherController.RegisterRoutes(mux)

	if subscriber != nil {
		registerMQTTHandler(subscriber, weatherService)
	}
}
