package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv          string
	LogLevel        slog.Level
	LogFormat       string
	HTTPAddr        string
	ShutdownTimeout time.Duration

	// SQLiteDSN, when set, is used verbatim and SQLitePath is ignored.
	SQLiteDSN             string
	SQLitePath            string
	SQLiteMaxOpenConns    int
	SQLiteMaxIdleConns    int
	SQLiteConnMaxLifetime time.Duration
	SQLiteLogQueries      bool

	// MQTTBroker empty disables MQTT ingest.
	MQTTBroker   string
	MQTTPort     int
	MQTTTopic    string
	MQTTClientID string
}

// MQTTEnabled reports whether an MQTT broker has been configured.
func (c Config) MQTTEnabled() bool {
	return c.MQTTBroker != ""
}

// LoadFromEnv reads an optional .env file, then builds the Config from the
// process environment. Variables already set in the environment win over .env.
func LoadFromEnv() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	appEnv := envOrDefault("APP_ENV", "dev")
	switch appEnv {
	case "dev", "prod":
	default:
		return Config{}, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", appEnv)
	}

	level, err := parseLogLevel(envOrDefault("LOG_LEVEL", "info"))
	if err != nil {
		return Config{}, err
	}

	defaultFormat := "pretty"
	if appEnv == "prod" {
		defaultFormat = "json"
	}
	logFormat := strings.ToLower(envOrDefault("LOG_FORMAT", defaultFormat))
	switch logFormat {
	case "pretty", "json":
	default:
		return Config{}, fmt.Errorf("invalid LOG_FORMAT %q (allowed: pretty, json)", logFormat)
	}

	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return Config{}, err
	}
	if shutdownTimeout <= 0 {
		return Config{}, fmt.Errorf("SHUTDOWN_TIMEOUT must be > 0")
	}

	maxOpenConns, err := parseInt("DB_MAX_OPEN_CONNS", "10")
	if err != nil {
		return Config{}, err
	}
	if maxOpenConns <= 0 {
		return Config{}, fmt.Errorf("DB_MAX_OPEN_CONNS must be > 0")
	}
	maxIdleConns, err := parseInt("DB_MAX_IDLE_CONNS", "2")
	if err != nil {
		return Config{}, err
	}
	connMaxLifetime, err := parseDuration("DB_CONN_MAX_LIFETIME", "0s")
	if err != nil {
		return Config{}, err
	}
	logQueries, err := parseBool("DB_LOG_QUERIES", "false")
	if err != nil {
		return Config{}, err
	}

	mqttPort, err := parseInt("MQTT_PORT", "1883")
	if err != nil {
		return Config{}, err
	}
	if mqttPort <= 0 || mqttPort > 65535 {
		return Config{}, fmt.Errorf("MQTT_PORT %d out of range", mqttPort)
	}

	return Config{
		AppEnv:                appEnv,
		LogLevel:              level,
		LogFormat:             logFormat,
		HTTPAddr:              envOrDefault("HTTP_ADDR", ":8080"),
		ShutdownTimeout:       shutdownTimeout,
		SQLiteDSN:             strings.TrimSpace(os.Getenv("SQLITE_DSN")),
		SQLitePath:            envOrDefault("SQLITE_PATH", "data/weather.db"),
		SQLiteMaxOpenConns:    maxOpenConns,
		SQLiteMaxIdleConns:    maxIdleConns,
		SQLiteConnMaxLifetime: connMaxLifetime,
		SQLiteLogQueries:      logQueries,
		MQTTBroker:            strings.TrimSpace(os.Getenv("MQTT_BROKER")),
		MQTTPort:              mqttPort,
		MQTTTopic:             envOrDefault("MQTT_TOPIC", "weather/observations"),
		MQTTClientID:          envOrDefault("MQTT_CLIENT_ID", "city-weather-server"),
	}, nil
}

func envOrDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func parseInt(key, def string) (int, error) {
	s := envOrDefault(key, def)
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return n, nil
}

func parseDuration(key, def string) (time.Duration, error) {
	s := envOrDefault(key, def)
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return d, nil
}

func parseBool(key, def string) (bool, error) {
	s := envOrDefault(key, def)
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return b, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}
