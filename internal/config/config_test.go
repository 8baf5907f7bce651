package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"APP_ENV", "LOG_LEVEL", "LOG_FORMAT", "HTTP_ADDR", "SHUTDOWN_TIMEOUT",
	"SQLITE_DSN", "SQLITE_PATH", "DB_MAX_OPEN_CONNS", "DB_MAX_IDLE_CONNS",
	"DB_CONN_MAX_LIFETIME", "DB_LOG_QUERIES",
	"MQTT_BROKER", "MQTT_PORT", "MQTT_TOPIC", "MQTT_CLIENT_ID",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	clearEnv(t)

	got, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "dev", got.AppEnv)
	assert.Equal(t, slog.LevelInfo, got.LogLevel)
	assert.Equal(t, "pretty", got.LogFormat)
	assert.Equal(t, ":8080", got.HTTPAddr)
	assert.Equal(t, 10*time.Second, got.ShutdownTimeout)
	assert.Empty(t, got.SQLiteDSN)
	assert.Equal(t, "data/weather.db", got.SQLitePath)
	assert.Equal(t, 10, got.SQLiteMaxOpenConns)
	assert.Equal(t, 2, got.SQLiteMaxIdleConns)
	assert.Equal(t, time.Duration(0), got.SQLiteConnMaxLifetime)
	assert.False(t, got.SQLiteLogQueries)
	assert.False(t, got.MQTTEnabled())
	assert.Equal(t, 1883, got.MQTTPort)
	assert.Equal(t, "weather/observations", got.MQTTTopic)
	assert.Equal(t, "city-weather-server", got.MQTTClientID)
}

func TestLoadFromEnv_CustomEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", "prod")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("HTTP_ADDR", "127.0.0.1:9090")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("SQLITE_PATH", "/tmp/w.db")
	t.Setenv("DB_MAX_OPEN_CONNS", "4")
	t.Setenv("DB_MAX_IDLE_CONNS", "1")
	t.Setenv("DB_CONN_MAX_LIFETIME", "5m")
	t.Setenv("DB_LOG_QUERIES", "true")
	t.Setenv("MQTT_BROKER", "localhost")
	t.Setenv("MQTT_PORT", "11883")
	t.Setenv("MQTT_TOPIC", "cities/obs")
	t.Setenv("MQTT_CLIENT_ID", "test-client")

	got, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "prod", got.AppEnv)
	assert.Equal(t, slog.LevelDebug, got.LogLevel)
	assert.Equal(t, "json", got.LogFormat, "prod defaults to json logs")
	assert.Equal(t, "127.0.0.1:9090", got.HTTPAddr)
	assert.Equal(t, 30*time.Second, got.ShutdownTimeout)
	assert.Equal(t, "/tmp/w.db", got.SQLitePath)
	assert.Equal(t, 4, got.SQLiteMaxOpenConns)
	assert.Equal(t, 1, got.SQLiteMaxIdleConns)
	assert.Equal(t, 5*time.Minute, got.SQLiteConnMaxLifetime)
	assert.True(t, got.SQLiteLogQueries)
	assert.True(t, got.MQTTEnabled())
	assert.Equal(t, "localhost", got.MQTTBroker)
	assert.Equal(t, 11883, got.MQTTPort)
	assert.Equal(t, "cities/obs", got.MQTTTopic)
	assert.Equal(t, "test-client", got.MQTTClientID)
}

func TestLoadFromEnv_AppEnv_Whitespace(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", "\nprod\t")

	got, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "prod", got.AppEnv)
}

func TestLoadFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "app env", key: "APP_ENV", value: "staging"},
		{name: "app env is case sensitive", key: "APP_ENV", value: "DEV"},
		{name: "log level", key: "LOG_LEVEL", value: "verbose"},
		{name: "log format", key: "LOG_FORMAT", value: "xml"},
		{name: "shutdown timeout", key: "SHUTDOWN_TIMEOUT", value: "soon"},
		{name: "zero shutdown timeout", key: "SHUTDOWN_TIMEOUT", value: "0s"},
		{name: "max open conns", key: "DB_MAX_OPEN_CONNS", value: "many"},
		{name: "zero max open conns", key: "DB_MAX_OPEN_CONNS", value: "0"},
		{name: "max idle conns", key: "DB_MAX_IDLE_CONNS", value: "x"},
		{name: "conn lifetime", key: "DB_CONN_MAX_LIFETIME", value: "forever"},
		{name: "log queries", key: "DB_LOG_QUERIES", value: "maybe"},
		{name: "mqtt port", key: "MQTT_PORT", value: "70000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := LoadFromEnv()
			require.Error(t, err)
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{" error ", slog.LevelError},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseLogLevel(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
