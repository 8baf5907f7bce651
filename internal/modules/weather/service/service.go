package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/MainakDebnath6/dbms-weather-analysis/internal/modules/weather/repository"
	"github.com/MainakDebnath6/dbms-weather-analysis/internal/modules/weather/types"
	"github.com/MainakDebnath6/dbms-weather-analysis/internal/observability"
)

// HistoryLimit is the fixed size of the recent history listing.
const HistoryLimit = 10

var (
	ErrInvalidObservation = errors.New("invalid observation")
	ErrInvalidMetric      = errors.New("invalid metric")
)

type Service struct {
	repository repository.WeatherRepository
	validate   *validator.Validate
	metrics    *observability.Metrics
	logger     *slog.Logger
}

func NewService(repository repository.WeatherRepository, metrics *observability.Metrics, logger *slog.Logger) *Service {
	if metrics == nil {
		metrics = observability.NewMetrics(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repository: repository,
		validate:   newValidator(),
		metrics:    metrics,
		logger:     logger,
	}
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// SubmitObservation validates req and stores it. source labels the ingest
// path for metrics. Validation failures wrap ErrInvalidObservation and never
// reach the store.
func (s *Service) SubmitObservation(ctx context.Context, source string, req types.ObservationRequest) (int64, error) {
	obs, err := s.validateObservation(req)
	if err != nil {
		s.metrics.ObservationsSubmitted.WithLabelValues(source, observability.OutcomeInvalid).Inc()
		return 0, err
	}

	cityID, err := s.repository.RecordObservation(ctx, obs)
	switch {
	case err == nil:
		s.metrics.ObservationsSubmitted.WithLabelValues(source, observability.OutcomeCreated).Inc()
		s.logger.DebugContext(ctx, "observation recorded",
			"source", source, "city", obs.City, "city_id", cityID, "date", obs.Date)
	case errors.Is(err, repository.ErrDuplicateObservation):
		s.metrics.ObservationsSubmitted.WithLabelValues(source, observability.OutcomeConflict).Inc()
	default:
		s.metrics.ObservationsSubmitted.WithLabelValues(source, observability.OutcomeError).Inc()
	}
	return cityID, err
}

// CountRejected records a submission that could not be decoded at all.
func (s *Service) CountRejected(source string) {
	s.metrics.ObservationsSubmitted.WithLabelValues(source, observability.OutcomeInvalid).Inc()
}

func (s *Service) validateObservation(req types.ObservationRequest) (types.NewObservation, error) {
	if err := s.validate.Struct(req); err != nil {
		return types.NewObservation{}, fmt.Errorf("%w: %s", ErrInvalidObservation, describeValidation(err))
	}
	return types.NewObservation{
		City:        req.City,
		Date:        req.Date,
		Temperature: float64(*req.Temperature),
		Humidity:    float64(*req.Humidity),
		WindSpeed:   float64(*req.WindSpeed),
	}, nil
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fe.Field()+" is required")
		case "datetime":
			msgs = append(msgs, fe.Field()+" must be a date formatted as "+fe.Param())
		default:
			msgs = append(msgs, fe.Field()+" is invalid")
		}
	}
	return strings.Join(msgs, "; ")
}

// ParseMetric maps the raw selector onto the allow-list. An empty selector
// means the default metric.
func ParseMetric(raw string) (types.Metric, error) {
	if raw == "" {
		return types.DefaultMetric, nil
	}
	m := types.Metric(raw)
	if !m.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidMetric, raw)
	}
	return m, nil
}

func (s *Service) CityAverages(ctx context.Context, rawMetric string) ([]types.CityAverage, error) {
	metric, err := ParseMetric(rawMetric)
	if err != nil {
		return nil, err
	}
	out, err := s.repository.GetCityAverages(ctx, metric)
	if err != nil {
		s.metrics.StoreQueryErrors.WithLabelValues("analysis").Inc()
		return nil, fmt.Errorf("city averages for %s: %w", metric, err)
	}
	return out, nil
}

func (s *Service) RecentHistory(ctx context.Context) ([]types.HistoryEntry, error) {
	out, err := s.repository.GetRecentObservations(ctx, HistoryLimit)
	if err != nil {
		s.metrics.StoreQueryErrors.WithLabelValues("history").Inc()
		return nil, fmt.Errorf("recent history: %w", err)
	}
	return out, nil
}
