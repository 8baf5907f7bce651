package db

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"
)

// queryLogger is a driver.Connector that opens sqlite3 connections and logs
// every statement they run at debug level.
type queryLogger struct {
	dsn    string
	logger *slog.Logger
	driver *sqlite3.SQLiteDriver
}

// NewQueryLogger returns a connector for sql.OpenDB that logs each statement
// with its args, duration and error. A nil logger falls back to slog.Default().
func NewQueryLogger(dsn string, logger *slog.Logger) driver.Connector {
	if logger == nil {
		logger = slog.Default()
	}
	return &queryLogger{dsn: dsn, logger: logger, driver: &sqlite3.SQLiteDriver{}}
}

func (q *queryLogger) Connect(ctx context.Context) (driver.Conn, error) {
	conn, err := q.driver.Open(q.dsn)
	if err != nil {
		return nil, err
	}
	return &loggedConn{Conn: conn, logger: q.logger}, nil
}

func (q *queryLogger) Driver() driver.Driver {
	return q.driver
}

type loggedConn struct {
	driver.Conn
	logger *slog.Logger
}

func (c *loggedConn) PrepareContext(ctx context.Context, query string) (driver.Stmt, error) {
	var (
		stmt driver.Stmt
		err  error
	)
	if p, ok := c.Conn.(driver.ConnPrepareContext); ok {
		stmt, err = p.PrepareContext(ctx, query)
	} else {
		stmt, err = c.Conn.Prepare(query)
	}
	if err != nil {
		c.log(ctx, "prepare", query, nil, 0, err)
		return nil, err
	}
	return &loggedStmt{Stmt: stmt, conn: c, query: query}, nil
}

func (c *loggedConn) BeginTx(ctx context.Context, opts driver.TxOptions) (driver.Tx, error) {
	start := time.Now()
	var (
		tx  driver.Tx
		err error
	)
	if b, ok := c.Conn.(driver.ConnBeginTx); ok {
		tx, err = b.BeginTx(ctx, opts)
	} else {
		//nolint:staticcheck // SA1019 – fallback when underlying conn does not implement ConnBeginTx
		tx, err = c.Conn.Begin()
	}
	c.log(ctx, "begin", "", nil, time.Since(start), err)
	return tx, err
}

// ExecContext and QueryContext are forwarded so multi-statement scripts
// (migrations) run in full instead of stopping at the first statement.
func (c *loggedConn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	e, ok := c.Conn.(driver.ExecerContext)
	if !ok {
		return nil, driver.ErrSkip
	}
	start := time.Now()
	res, err := e.ExecContext(ctx, query, args)
	if !errors.Is(err, driver.ErrSkip) {
		c.log(ctx, "exec", query, args, time.Since(start), err)
	}
	return res, err
}

func (c *loggedConn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	qr, ok := c.Conn.(driver.QueryerContext)
	if !ok {
		return nil, driver.ErrSkip
	}
	start := time.Now()
	rows, err := qr.QueryContext(ctx, query, args)
	if !errors.Is(err, driver.ErrSkip) {
		c.log(ctx, "query", query, args, time.Since(start), err)
	}
	return rows, err
}

func (c *loggedConn) Ping(ctx context.Context) error {
	if p, ok := c.Conn.(driver.Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

func (c *loggedConn) log(ctx context.Context, op, query string, args []driver.NamedValue, took time.Duration, err error) {
	attrs := []any{
		"op", op,
		"duration_ms", took.Milliseconds(),
	}
	if query != "" {
		attrs = append(attrs, "sql", query)
	}
	if len(args) > 0 {
		attrs = append(attrs, "args", formatArgs(args))
	}
	if err != nil {
		attrs = append(attrs, "error", err)
	}
	c.logger.DebugContext(ctx, "sql", attrs...)
}

type loggedStmt struct {
	driver.Stmt
	conn  *loggedConn
	query string
}

func (s *loggedStmt) ExecContext(ctx context.Context, args []driver.NamedValue) (driver.Result, error) {
	start := time.Now()
	var (
		res driver.Result
		err error
	)
	if e, ok := s.Stmt.(driver.StmtExecContext); ok {
		res, err = e.ExecContext(ctx, args)
	} else {
		//nolint:staticcheck // SA1019 – fallback when underlying stmt does not implement StmtExecContext
		res, err = s.Stmt.Exec(namedToValues(args))
	}
	s.conn.log(ctx, "exec", s.query, args, time.Since(start), err)
	return res, err
}

func (s *loggedStmt) QueryContext(ctx context.Context, args []driver.NamedValue) (driver.Rows, error) {
	start := time.Now()
	var (
		rows driver.Rows
		err  error
	)
	if q, ok := s.Stmt.(driver.StmtQueryContext); ok {
		rows, err = q.QueryContext(ctx, args)
	} else {
		//nolint:staticcheck // SA1019 – fallback when underlying stmt does not implement StmtQueryContext
		rows, err = s.Stmt.Query(namedToValues(args))
	}
	s.conn.log(ctx, "query", s.query, args, time.Since(start), err)
	return rows, err
}

func namedToValues(args []driver.NamedValue) []driver.Value {
	out := make([]driver.Value, len(args))
	for i := range args {
		out[i] = args[i].Value
	}
	return out
}

func formatArgs(args []driver.NamedValue) []string {
	out := make([]string, len(args))
	for i, a := range args {
		v := formatArg(a.Value)
		if a.Name != "" {
			v = a.Name + "=" + v
		}
		out[i] = v
	}
	return out
}

func formatArg(v any) string {
	switch t := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(t)
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(t)
	}
}
