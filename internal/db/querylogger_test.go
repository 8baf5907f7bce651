package db

import (
	"context"
	"database/sql"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureHandler records log records for assertion in tests.
type captureHandler struct {
	mu      sync.Mutex
	records []map[string]slog.Value
}

func (h *captureHandler) Enabled(_ context.Context, _ slog.Level) bool { return true }

func (h *captureHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	m := map[string]slog.Value{"msg": slog.StringValue(r.Message)}
	r.Attrs(func(a slog.Attr) bool {
		m[a.Key] = a.Value
		return true
	})
	h.records = append(h.records, m)
	return nil
}

func (h *captureHandler) WithAttrs(_ []slog.Attr) slog.Handler { return h }

func (h *captureHandler) WithGroup(_ string) slog.Handler { return h }

func (h *captureHandler) sqlRecords() []map[string]slog.Value {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []map[string]slog.Value
	for _, m := range h.records {
		if m["msg"].String() == "sql" {
			out = append(out, m)
		}
	}
	return out
}

func (h *captureHandler) reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = nil
}

func openLogged(t *testing.T, h *captureHandler) *sql.DB {
	t.Helper()
	db := sql.OpenDB(NewQueryLogger(":memory:", slog.New(h)))
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestNewQueryLogger_NilLoggerUsesDefault(t *testing.T) {
	c := NewQueryLogger(":memory:", nil)
	require.NotNil(t, c)
	assert.NotNil(t, c.(*queryLogger).logger)
}

func TestQueryLogger_ExecAndQueryLogged(t *testing.T) {
	h := &captureHandler{}
	db := openLogged(t, h)

	_, err := db.Exec(`CREATE TABLE t (id INTEGER PRIMARY KEY, name TEXT)`)
	require.NoError(t, err)

	recs := h.sqlRecords()
	require.NotEmpty(t, recs)
	last := recs[len(recs)-1]
	assert.Equal(t, "exec", last["op"].String())
	assert.Equal(t, `CREATE TABLE t (id INTEGER PRIMARY KEY, name TEXT)`, last["sql"].String())

	h.reset()
	_, err = db.Exec(`INSERT INTO t (id, name) VALUES (?, ?)`, 1, "Lagos")
	require.NoError(t, err)
	recs = h.sqlRecords()
	require.NotEmpty(t, recs)
	_, hasArgs := recs[len(recs)-1]["args"]
	assert.True(t, hasArgs, "args attribute expected")

	h.reset()
	var name string
	require.NoError(t, db.QueryRow(`SELECT name FROM t WHERE id = ?`, 1).Scan(&name))
	assert.Equal(t, "Lagos", name)
	recs = h.sqlRecords()
	require.NotEmpty(t, recs)
	assert.Equal(t, "query", recs[len(recs)-1]["op"].String())
}

func TestQueryLogger_MultiStatementExecRunsAll(t *testing.T) {
	db := openLogged(t, &captureHandler{})

	_, err := db.Exec(`
		CREATE TABLE a (id INTEGER);
		CREATE TABLE b (id INTEGER);
		INSERT INTO b (id) VALUES (7);
	`)
	require.NoError(t, err)

	var id int
	require.NoError(t, db.QueryRow(`SELECT id FROM b`).Scan(&id))
	assert.Equal(t, 7, id)
}

func TestQueryLogger_ErrorIsLoggedAndReturned(t *testing.T) {
	h := &captureHandler{}
	db := openLogged(t, h)

	_, err := db.Exec(`INSERT INTO missing (id) VALUES (1)`)
	require.Error(t, err)

	recs := h.sqlRecords()
	require.NotEmpty(t, recs)
	_, hasErr := recs[len(recs)-1]["error"]
	assert.True(t, hasErr)
}

func TestQueryLogger_TransactionsAndPing(t *testing.T) {
	h := &captureHandler{}
	db := openLogged(t, h)
	require.NoError(t, db.Ping())

	_, err := db.Exec(`CREATE TABLE t (id INTEGER)`)
	require.NoError(t, err)

	tx, err := db.Begin()
	require.NoError(t, err)
	_, err = tx.Exec(`INSERT INTO t (id) VALUES (1)`)
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM t`).Scan(&n))
	assert.Equal(t, 0, n)

	var sawBegin bool
	for _, r := range h.sqlRecords() {
		if r["op"].String() == "begin" {
			sawBegin = true
		}
	}
	assert.True(t, sawBegin)
}
