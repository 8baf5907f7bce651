package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/MainakDebnath6/dbms-weather-analysis/internal/config"
	"github.com/MainakDebnath6/dbms-weather-analysis/internal/db"
	"github.com/MainakDebnath6/dbms-weather-analysis/internal/httpapi"
	"github.com/MainakDebnath6/dbms-weather-analysis/internal/migrate"
	"github.com/MainakDebnath6/dbms-weather-analysis/internal/modules/weather"
	"github.com/MainakDebnath6/dbms-weather-analysis/internal/mqtt"
	"github.com/MainakDebnath6/dbms-weather-analysis/internal/observability"
)

const mqttConnectTimeout = 5 * time.Second

type application struct {
	db         *sql.DB
	handler    http.Handler
	subscriber *mqtt.Subscriber
}

// build opens and migrates the database and wires every module. The caller
// owns the returned db.
func build(ctx context.Context, cfg config.Config, clock clockwork.Clock, logger *slog.Logger) (*application, error) {
	dbConn, err := db.Open(cfg, logger)
	if err != nil {
		return nil, err
	}

	applied, err := migrate.Run(ctx, dbConn, logger)
	if err != nil {
		_ = db.Close(dbConn)
		return nil, fmt.Errorf("migrate: %w", err)
	}
	logger.Info("database ready", "migrations_applied", applied)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(reg)

	var subscriber *mqtt.Subscriber
	mux := httpapi.NewMux(dbConn, reg, logger)
	if cfg.MQTTEnabled() {
		subscriber = mqtt.NewSubscriber(cfg, metrics, logger)
		weather.RegisterFeature(mux, dbConn, clock, metrics, logger, subscriber)
	} else {
		weather.RegisterFeature(mux, dbConn, clock, metrics, logger, nil)
	}

	return &application{
		db:         dbConn,
		handler:    httpapi.Handler(mux, metrics, logger),
		subscriber: subscriber,
	}, nil
}

// Run serves HTTP until ctx is canceled, then shuts down within
// cfg.ShutdownTimeout.
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("config loaded",
		"appEnv", cfg.AppEnv,
		"logLevel", cfg.LogLevel.String(),
		"logFormat", cfg.LogFormat,
		"httpAddr", cfg.HTTPAddr,
		"sqlitePath", cfg.SQLitePath,
		"sqliteMaxOpenConns", cfg.SQLiteMaxOpenConns,
		"sqliteMaxIdleConns", cfg.SQLiteMaxIdleConns,
		"sqliteConnMaxLifetime", cfg.SQLiteConnMaxLifetime,
		"mqttBroker", cfg.MQTTBroker,
		"mqttPort", cfg.MQTTPort,
		"mqttTopic", cfg.MQTTTopic,
	)

	a, err := build(ctx, cfg, clockwork.NewRealClock(), logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(a.db); closeErr != nil {
			logger.Error("db close", "error", closeErr)
		}
	}()

	if a.subscriber != nil {
		// A short timeout keeps startup from blocking when the broker is down;
		// the client keeps retrying in the background.
		connectCtx, connectCancel := context.WithTimeout(ctx, mqttConnectTimeout)
		err = a.subscriber.Connect(connectCtx)
		connectCancel()
		if err != nil {
			logger.Warn("mqtt connection failed (continuing without mqtt)", "error", err)
		}
	} else {
		logger.Info("mqtt ingest disabled")
	}

	srv := httpapi.NewServer(cfg, a.handler)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listening", "addr", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if a.subscriber != nil {
			a.subscriber.Disconnect()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if a.subscriber != nil {
		logger.Info("mqtt disconnecting")
		a.subscriber.Disconnect()
	}

	logger.Info("http shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	err = <-errCh
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return ctx.Err()
}
