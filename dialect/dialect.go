// Package dialect names the supported database backends and defines the
// minimal execution surface the access layer runs statements through.
//
// Each backend is identified by a constant string:
//
//	dialect.MySQL    = "mysql"
//	dialect.Postgres = "postgres"
//	dialect.SQLite   = "sqlite"
//
// The dialect-specific policy objects (quoting, parameter binding,
// insert-id retrieval) live in the dialect/sql package; this package only
// carries what both sides of that boundary need to agree on.
package dialect

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// Supported dialect names.
const (
	MySQL    = "mysql"
	Postgres = "postgres"
	SQLite   = "sqlite"
)

// Names returns the list of supported dialect names.
func Names() []string {
	return []string{MySQL, Postgres, SQLite}
}

// Valid reports whether name is a supported dialect.
func Valid(name string) bool {
	switch name {
	case MySQL, Postgres, SQLite:
		return true
	}
	return false
}

// ExecQuerier is the execution surface shared by *sql.DB and *sql.Tx.
// Everything this layer runs, inside or outside a transaction, goes
// through these two methods.
type ExecQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Debug wraps an ExecQuerier and logs every statement with its arguments
// before passing it through unchanged. The default logger is slog.Default.
func Debug(eq ExecQuerier, logger ...*slog.Logger) ExecQuerier {
	l := slog.Default()
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0]
	}
	return &debugExecQuerier{eq: eq, log: l}
}

type debugExecQuerier struct {
	eq  ExecQuerier
	log *slog.Logger
}

func (d *debugExecQuerier) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	d.log.LogAttrs(ctx, slog.LevelDebug, "exec", slog.String("query", query), slog.String("args", fmt.Sprint(args...)))
	return d.eq.ExecContext(ctx, query, args...)
}

func (d *debugExecQuerier) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	d.log.LogAttrs(ctx, slog.LevelDebug, "query", slog.String("query", query), slog.String("args", fmt.Sprint(args...)))
	return d.eq.QueryContext(ctx, query, args...)
}

var (
	_ ExecQuerier = (*sql.DB)(nil)
	_ ExecQuerier = (*sql.Tx)(nil)
	_ ExecQuerier = (*debugExecQuerier)(nil)
)
