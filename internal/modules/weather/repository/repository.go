package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/MainakDebnath6/dbms-weather-analysis/internal/modules/weather/types"
)

//go:embed sql/get-city-id-by-name.sql
var getCityIDByNameSQL string

//go:embed sql/insert-city.sql
var insertCitySQL string

//go:embed sql/insert-observation.sql
var insertObservationSQL string

//go:embed sql/get-average-temperature.sql
var getAverageTemperatureSQL string

//go:embed sql/get-average-humidity.sql
var getAverageHumiditySQL string

//go:embed sql/get-average-wind-speed.sql
var getAverageWindSpeedSQL string

//go:embed sql/get-recent-observations.sql
var getRecentObservationsSQL string

// averageQueries is the only way a metric reaches SQL: each metric selects
// one fixed statement.
var averageQueries = map[types.Metric]string{
	types.MetricTemperature: getAverageTemperatureSQL,
	types.MetricHumidity:    getAverageHumiditySQL,
	types.MetricWindSpeed:   getAverageWindSpeedSQL,
}

// recordedAtLayout is fixed width so text order matches time order.
const recordedAtLayout = "2006-01-02T15:04:05.000000000Z"

var (
	// ErrDuplicateObservation is returned when the city already has an
	// observation for the given date.
	ErrDuplicateObservation = errors.New("observation already recorded for city and date")
	ErrUnknownMetric        = errors.New("unknown metric")
)

type WeatherRepository interface {
	RecordObservation(ctx context.Context, obs types.NewObservation) (cityID int64, err error)
	GetCityAverages(ctx context.Context, metric types.Metric) ([]types.CityAverage, error)
	GetRecentObservations(ctx context.Context, limit int) ([]types.HistoryEntry, error)
}

type repositoryImpl struct {
	db     *sql.DB
	clock  clockwork.Clock
	logger *slog.Logger
}

func NewRepository(db *sql.DB, clock clockwork.Clock, logger *slog.Logger) WeatherRepository {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &repositoryImpl{db: db, clock: clock, logger: logger}
}

// RecordObservation resolves (or creates) the city and inserts the
// observation in one transaction. Any failure rolls back both steps.
func (r *repositoryImpl) RecordObservation(ctx context.Context, obs types.NewObservation) (cityID int64, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err == nil {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			r.logger.ErrorContext(ctx, "rollback observation tx", "city", obs.City, "error", rbErr)
		}
	}()

	cityID, err = resolveCityID(ctx, tx, obs.City)
	if err != nil {
		return 0, err
	}

	recordedAt := r.clock.Now().UTC().Format(recordedAtLayout)
	_, err = tx.ExecContext(ctx, insertObservationSQL,
		cityID, obs.Date, obs.Temperature, obs.Humidity, obs.WindSpeed, recordedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrDuplicateObservation
		}
		return 0, fmt.Errorf("insert observation: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit observation: %w", err)
	}
	return cityID, nil
}

func resolveCityID(ctx context.Context, tx *sql.Tx, name string) (int64, error) {
	id, found, err := lookupCityID(ctx, tx, name)
	if err != nil || found {
		return id, err
	}

	res, err := tx.ExecContext(ctx, insertCitySQL, name)
	if err != nil {
		return 0, fmt.Errorf("insert city %q: %w", name, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 1 {
		return res.LastInsertId()
	}

	// Another writer created the city between lookup and insert.
	id, found, err = lookupCityID(ctx, tx, name)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, fmt.Errorf("city %q missing after insert", name)
	}
	return id, nil
}

func lookupCityID(ctx context.Context, tx *sql.Tx, name string) (int64, bool, error) {
	var id int64
	err := tx.QueryRowContext(ctx, getCityIDByNameSQL, name).Scan(&id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return 0, false, nil
	case err != nil:
		return 0, false, fmt.Errorf("lookup city %q: %w", name, err)
	}
	return id, true, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

func (r *repositoryImpl) GetCityAverages(ctx context.Context, metric types.Metric) ([]types.CityAverage, error) {
	query, ok := averageQueries[metric]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMetric, metric)
	}

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "close averages rows", "error", err)
		}
	}()

	out := []types.CityAverage{}
	for rows.Next() {
		var (
			avg types.CityAverage
			val float64
		)
		if err := rows.Scan(&avg.CityName, &val); err != nil {
			return nil, err
		}
		avg.AverageValue = types.Decimal2(val)
		out = append(out, avg)
	}
	return out, rows.Err()
}

func (r *repositoryImpl) GetRecentObservations(ctx context.Context, limit int) ([]types.HistoryEntry, error) {
	rows, err := r.db.QueryContext(ctx, getRecentObservationsSQL, limit)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "close history rows", "error", err)
		}
	}()

	out := []types.HistoryEntry{}
	for rows.Next() {
		var (
			e  types.HistoryEntry
			ts string
		)
		if err := rows.Scan(&e.RecordID, &e.CityName, &e.RecordDate, &e.Temperature, &e.Humidity, &e.WindSpeed, &ts); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("parse recorded_at %q: %w", ts, err)
		}
		e.RecordedAt = t
		out = append(out, e)
	}
	return out, rows.Err()
}
