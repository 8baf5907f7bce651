package db

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MainakDebnath6/dbms-weather-analysis/internal/config"
)

func TestBuildDSN(t *testing.T) {
	t.Run("dsn wins over path", func(t *testing.T) {
		got, err := buildDSN(config.Config{SQLiteDSN: "file::memory:?cache=shared", SQLitePath: "ignored.db"})
		require.NoError(t, err)
		assert.Equal(t, "file::memory:?cache=shared", got)
	})

	t.Run("plain path gets file prefix and params", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "w.db")
		got, err := buildDSN(config.Config{SQLitePath: path})
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(got, "file:"+path+"?"))
		assert.Contains(t, got, "_foreign_keys=on")
		assert.Contains(t, got, "_txlock=immediate")
		assert.DirExists(t, filepath.Dir(path))
	})

	t.Run("file uri with query appends params", func(t *testing.T) {
		got, err := buildDSN(config.Config{SQLitePath: "file:w.db?mode=memory"})
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(got, "file:w.db?mode=memory&_foreign_keys=on"))
	})

	t.Run("empty path", func(t *testing.T) {
		_, err := buildDSN(config.Config{})
		require.Error(t, err)
	})
}

func TestOpen(t *testing.T) {
	for _, logQueries := range []bool{false, true} {
		cfg := config.Config{
			SQLitePath:         filepath.Join(t.TempDir(), "w.db"),
			SQLiteMaxOpenConns: 3,
			SQLiteMaxIdleConns: 1,
			SQLiteLogQueries:   logQueries,
		}
		conn, err := Open(cfg, nil)
		require.NoError(t, err)

		assert.Equal(t, 3, conn.Stats().MaxOpenConnections)

		var fk int
		require.NoError(t, conn.QueryRow(`PRAGMA foreign_keys`).Scan(&fk))
		assert.Equal(t, 1, fk)

		require.NoError(t, Close(conn))
	}
	assert.NoError(t, Close(nil))
}
