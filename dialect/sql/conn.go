package sql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/crudkit/dbal"
	"github.com/crudkit/dbal/dialect"
)

// DebugFunc receives the rendered statement and its bindings on every
// prepare. It observes; it never alters execution outcomes.
type DebugFunc func(stmt string, bindings []Binding)

// Database owns one native connection, its dialect policy, and at most one
// active transaction. It is the factory for dialect-bound Query instances
// and outlives all of them. There is no internal locking: one caller drives
// the connection at a time.
type Database struct {
	db      *sql.DB
	tx      *sql.Tx
	policy  *Policy
	timeout time.Duration
	debug   DebugFunc
	wrap    func(dialect.ExecQuerier) dialect.ExecQuerier

	cache    dbal.Cache
	cacheTTL time.Duration

	initialized bool
}

// Option configures a Database.
type Option func(*Database)

// WithTimeout sets the per-command timeout. Zero means no timeout.
func WithTimeout(d time.Duration) Option {
	return func(db *Database) { db.timeout = d }
}

// WithDebug sets the debug callback invoked with (rendered SQL, bindings)
// on every prepare.
func WithDebug(fn DebugFunc) Option {
	return func(db *Database) { db.debug = fn }
}

// WithCache attaches a query-result cache. Selects outside a transaction
// are served from and stored into it; writes invalidate their tables.
func WithCache(c dbal.Cache, ttl time.Duration) Option {
	return func(db *Database) {
		db.cache = c
		db.cacheTTL = ttl
	}
}

// WithWrapper wraps the execution runner, inside and outside transactions.
// Used by the stats and debug runners.
func WithWrapper(wrap func(dialect.ExecQuerier) dialect.ExecQuerier) Option {
	return func(db *Database) { db.wrap = wrap }
}

// Open opens a connection for the named dialect. An unsupported name
// returns an error matching dbal.ErrUnknownDialect.
func Open(dialectName, dsn string, opts ...Option) (*Database, error) {
	p, err := policyFor(dialectName)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(p.DriverName, dsn)
	if err != nil {
		return nil, err
	}
	// One native connection per Database; pooling is the caller's concern.
	db.SetMaxOpenConns(1)
	return newDatabase(p, db, opts...), nil
}

// OpenDB wraps an existing handle with the named dialect's policy. The
// handle is pinned to one connection like Open's: session-scoped behavior
// (SQLite's last_insert_rowid follow-up, the init hooks) assumes every
// statement lands on the same connection.
func OpenDB(dialectName string, db *sql.DB, opts ...Option) (*Database, error) {
	p, err := policyFor(dialectName)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return newDatabase(p, db, opts...), nil
}

// FromConfig opens a Database from a validated configuration, wiring the
// timeout, debug logging and result cache it names.
func FromConfig(cfg dbal.Config) (*Database, error) {
	opts := []Option{WithTimeout(time.Duration(cfg.CommandTimeout))}
	if cfg.Debug {
		opts = append(opts, WithDebug(func(stmt string, bindings []Binding) {
			slog.Debug("prepare", "query", stmt, "bindings", fmt.Sprint(bindings))
		}))
	}
	if cfg.Cache.Enabled {
		size := cfg.Cache.Size
		if size <= 0 {
			size = 1024
		}
		opts = append(opts, WithCache(dbal.NewLRUCache(size, time.Duration(cfg.Cache.TTL)), time.Duration(cfg.Cache.TTL)))
	}
	if cfg.SlowQueryThreshold > 0 {
		stats := NewStatsRunner(
			WithSlowThreshold(time.Duration(cfg.SlowQueryThreshold)),
			WithSlowQueryLog(),
		)
		opts = append(opts, WithWrapper(stats.Wrap))
	}
	return Open(cfg.Dialect, cfg.DSN, opts...)
}

func newDatabase(p *Policy, db *sql.DB, opts ...Option) *Database {
	d := &Database{db: db, policy: p}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dialect returns the dialect name of the connection's policy.
func (d *Database) Dialect() string { return d.policy.Name }

// DB returns the underlying handle.
func (d *Database) DB() *sql.DB { return d.db }

// Close closes the underlying connection.
func (d *Database) Close() error { return d.db.Close() }

// InTransaction reports whether a transaction is open.
func (d *Database) InTransaction() bool { return d.tx != nil }

// Transaction begins a transaction. Beginning while one is open returns an
// error matching dbal.ErrTxStarted; there is no nesting.
func (d *Database) Transaction(ctx context.Context) error {
	if d.tx != nil {
		return dbal.ErrTxStarted
	}
	if err := d.initConn(ctx); err != nil {
		return err
	}
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	d.tx = tx
	return nil
}

// Commit commits and clears the active transaction.
func (d *Database) Commit() error {
	if d.tx == nil {
		return dbal.ErrTxNotStarted
	}
	err := d.tx.Commit()
	d.tx = nil
	return err
}

// Rollback rolls back and clears the active transaction.
func (d *Database) Rollback() error {
	if d.tx == nil {
		return dbal.ErrTxNotStarted
	}
	err := d.tx.Rollback()
	d.tx = nil
	return err
}

// NewQuery returns a dialect-bound Query of the given type. The type is
// case-insensitive; an unrecognized one returns an error matching
// dbal.ErrUnknownQueryType.
func (d *Database) NewQuery(typ string) (*Query, error) {
	switch strings.ToLower(typ) {
	case QuerySelect, QueryInsert, QueryUpdate, QueryDelete, QueryRaw:
		return newQuery(d, strings.ToLower(typ)), nil
	}
	return nil, dbal.NewUnknownQueryTypeError(typ)
}

// Select returns a new select query.
func (d *Database) Select() *Query { return newQuery(d, QuerySelect) }

// Insert returns a new insert query.
func (d *Database) Insert() *Query { return newQuery(d, QueryInsert) }

// Update returns a new update query.
func (d *Database) Update() *Query { return newQuery(d, QueryUpdate) }

// Delete returns a new delete query.
func (d *Database) Delete() *Query { return newQuery(d, QueryDelete) }

// Raw returns a query that runs the given SQL text verbatim with zero
// managed bindings, still inside the active transaction and timeout.
func (d *Database) Raw(sqlText string) *Query {
	q := newQuery(d, QueryRaw)
	q.rawSQL = sqlText
	return q
}

// runner returns the execution surface statements go through: the open
// transaction when one exists, the connection otherwise.
func (d *Database) runner() dialect.ExecQuerier {
	var run dialect.ExecQuerier
	if d.tx != nil {
		run = d.tx
	} else {
		run = d.db
	}
	if d.wrap != nil {
		run = d.wrap(run)
	}
	return run
}

// initConn runs the dialect's one-time connection init hook lazily before
// the first statement. The done flag latches only on success, so a failed
// hook is retried on the next statement instead of being skipped.
func (d *Database) initConn(ctx context.Context) error {
	if d.initialized {
		return nil
	}
	if d.policy.InitConn == nil {
		d.initialized = true
		return nil
	}
	ctx, cancel := d.commandContext(ctx)
	defer cancel()
	if err := d.policy.InitConn(ctx, d.db); err != nil {
		return err
	}
	d.initialized = true
	return nil
}

// commandContext bounds one statement with the per-command timeout.
func (d *Database) commandContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d.timeout)
}

// debugTrace invokes the debug callback, if set.
func (d *Database) debugTrace(stmt string, bindings []Binding) {
	if d.debug != nil {
		d.debug(stmt, bindings)
	}
}

// cacheGet serves a select from the result cache. Cache reads are skipped
// inside a transaction so uncommitted writes stay invisible to it.
func (d *Database) cacheGet(ctx context.Context, table, stmt string, args []any) (*Result, bool) {
	if d.cache == nil || d.tx != nil || table == "" {
		return nil, false
	}
	key := dbal.CacheKey{Table: table, Statement: stmt, Args: cacheArgs(args)}
	data, err := d.cache.Get(ctx, key.String())
	if err != nil || data == nil {
		return nil, false
	}
	rs, err := dbal.DecodeRows(data)
	if err != nil {
		return nil, false
	}
	res := &Result{columns: rs.Columns}
	for _, row := range rs.Rows {
		res.rows = append(res.rows, Row(row))
	}
	return res, true
}

// cacheSet stores a select result.
func (d *Database) cacheSet(ctx context.Context, table, stmt string, args []any, res *Result) {
	if d.cache == nil || d.tx != nil || table == "" {
		return
	}
	rs := dbal.RowSet{Columns: res.columns}
	for _, row := range res.rows {
		rs.Rows = append(rs.Rows, map[string]any(row))
	}
	data, err := dbal.EncodeRows(rs)
	if err != nil {
		return
	}
	key := dbal.CacheKey{Table: table, Statement: stmt, Args: cacheArgs(args)}
	_ = d.cache.Set(ctx, key.String(), data, d.cacheTTL)
}

// cacheArgs encodes an argument list so that no two distinct lists share a
// key. Each value is rendered with its Go type and quoting, so adjacent
// strings cannot run together the way a plain join would let them.
func cacheArgs(args []any) string {
	return fmt.Sprintf("%#v", args)
}

// cacheInvalidate drops every cached result for the written tables.
func (d *Database) cacheInvalidate(ctx context.Context, tables []string) {
	if d.cache == nil {
		return
	}
	for _, t := range tables {
		_ = d.cache.DeletePrefix(ctx, dbal.TablePrefix(t))
	}
}
