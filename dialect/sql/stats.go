package sql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/crudkit/dbal/dialect"
)

// QueryStats holds query execution statistics.
type QueryStats struct {
	// TotalQueries is the total number of row-returning statements executed.
	TotalQueries atomic.Int64
	// TotalExecs is the total number of exec statements executed.
	TotalExecs atomic.Int64
	// TotalDuration is the total time spent executing statements.
	TotalDuration atomic.Int64 // nanoseconds
	// SlowQueries is the count of statements exceeding the slow threshold.
	SlowQueries atomic.Int64
	// Errors is the count of statement errors.
	Errors atomic.Int64
}

// Stats returns a snapshot of the current statistics.
func (s *QueryStats) Stats() StatsSnapshot {
	return StatsSnapshot{
		TotalQueries:  s.TotalQueries.Load(),
		TotalExecs:    s.TotalExecs.Load(),
		TotalDuration: time.Duration(s.TotalDuration.Load()),
		SlowQueries:   s.SlowQueries.Load(),
		Errors:        s.Errors.Load(),
	}
}

// Reset resets all statistics to zero.
func (s *QueryStats) Reset() {
	s.TotalQueries.Store(0)
	s.TotalExecs.Store(0)
	s.TotalDuration.Store(0)
	s.SlowQueries.Store(0)
	s.Errors.Store(0)
}

// StatsSnapshot is a point-in-time snapshot of query statistics.
type StatsSnapshot struct {
	TotalQueries  int64
	TotalExecs    int64
	TotalDuration time.Duration
	SlowQueries   int64
	Errors        int64
}

// AvgQueryDuration returns the average statement duration.
func (s StatsSnapshot) AvgQueryDuration() time.Duration {
	total := s.TotalQueries + s.TotalExecs
	if total == 0 {
		return 0
	}
	return s.TotalDuration / time.Duration(total)
}

// String returns a human-readable summary of the statistics.
func (s StatsSnapshot) String() string {
	return fmt.Sprintf(
		"queries=%d execs=%d duration=%s avg=%s slow=%d errors=%d",
		s.TotalQueries, s.TotalExecs, s.TotalDuration, s.AvgQueryDuration(),
		s.SlowQueries, s.Errors,
	)
}

// SlowQueryHook is a function called when a slow statement is detected.
type SlowQueryHook func(ctx context.Context, query string, args []any, duration time.Duration)

// StatsRunner wraps an execution runner with statistics collection.
// Attach it to a Database with WithWrapper(stats.Wrap).
type StatsRunner struct {
	stats         *QueryStats
	slowThreshold time.Duration
	slowHook      SlowQueryHook
	mu            sync.RWMutex
}

// StatsOption configures the StatsRunner.
type StatsOption func(*StatsRunner)

// WithSlowThreshold sets the threshold for slow statement detection.
// Statements taking longer than this duration count as slow. Default 100ms.
func WithSlowThreshold(d time.Duration) StatsOption {
	return func(s *StatsRunner) { s.slowThreshold = d }
}

// WithSlowQueryHook sets a callback invoked whenever a statement exceeds
// the slow threshold.
func WithSlowQueryHook(hook SlowQueryHook) StatsOption {
	return func(s *StatsRunner) { s.slowHook = hook }
}

// WithSlowQueryLog logs slow statements to the default logger.
// This is a convenience wrapper around WithSlowQueryHook.
func WithSlowQueryLog() StatsOption {
	return WithSlowQueryHook(func(_ context.Context, query string, args []any, duration time.Duration) {
		slog.Warn("slow query detected", "duration", duration, "query", query, "args", args)
	})
}

// NewStatsRunner returns a statistics collector whose Wrap method plugs
// into a Database:
//
//	stats := sql.NewStatsRunner(sql.WithSlowThreshold(200*time.Millisecond), sql.WithSlowQueryLog())
//	db, err := sql.Open(dialect.Postgres, dsn, sql.WithWrapper(stats.Wrap))
//
//	// Later, read the counters:
//	fmt.Println(stats.QueryStats().Stats())
func NewStatsRunner(opts ...StatsOption) *StatsRunner {
	s := &StatsRunner{
		stats:         &QueryStats{},
		slowThreshold: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// QueryStats returns the underlying QueryStats for reading statistics.
func (s *StatsRunner) QueryStats() *QueryStats { return s.stats }

// SlowThreshold returns the current slow statement threshold.
func (s *StatsRunner) SlowThreshold() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.slowThreshold
}

// SetSlowThreshold updates the slow statement threshold.
func (s *StatsRunner) SetSlowThreshold(threshold time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slowThreshold = threshold
}

// Wrap returns the given runner instrumented with this collector.
func (s *StatsRunner) Wrap(next dialect.ExecQuerier) dialect.ExecQuerier {
	return &statsExecQuerier{next: next, s: s}
}

type statsExecQuerier struct {
	next dialect.ExecQuerier
	s    *StatsRunner
}

func (w *statsExecQuerier) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	start := time.Now()
	res, err := w.next.ExecContext(ctx, query, args...)
	w.s.record(ctx, query, args, start, err, false)
	return res, err
}

func (w *statsExecQuerier) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	start := time.Now()
	rows, err := w.next.QueryContext(ctx, query, args...)
	w.s.record(ctx, query, args, start, err, true)
	return rows, err
}

func (s *StatsRunner) record(ctx context.Context, query string, args []any, start time.Time, err error, isQuery bool) {
	duration := time.Since(start)
	if isQuery {
		s.stats.TotalQueries.Add(1)
	} else {
		s.stats.TotalExecs.Add(1)
	}
	s.stats.TotalDuration.Add(int64(duration))
	if err != nil {
		s.stats.Errors.Add(1)
	}

	s.mu.RLock()
	threshold := s.slowThreshold
	hook := s.slowHook
	s.mu.RUnlock()

	if duration > threshold {
		s.stats.SlowQueries.Add(1)
		if hook != nil {
			hook(ctx, query, args, duration)
		}
	}
}

// DebugRunner logs every statement with a per-statement trace id before
// passing it through unchanged.
type DebugRunner struct {
	log *slog.Logger
}

// NewDebugRunner returns a debug logger whose Wrap method plugs into a
// Database. A nil logger uses slog.Default.
func NewDebugRunner(logger *slog.Logger) *DebugRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &DebugRunner{log: logger}
}

// Wrap returns the given runner with debug logging.
func (d *DebugRunner) Wrap(next dialect.ExecQuerier) dialect.ExecQuerier {
	return &debugRunner{next: next, log: d.log}
}

type debugRunner struct {
	next dialect.ExecQuerier
	log  *slog.Logger
}

func (w *debugRunner) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	w.log.LogAttrs(ctx, slog.LevelDebug, "exec",
		slog.String("trace_id", uuid.NewString()),
		slog.String("query", query),
		slog.String("args", fmt.Sprint(args...)),
	)
	return w.next.ExecContext(ctx, query, args...)
}

func (w *debugRunner) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	w.log.LogAttrs(ctx, slog.LevelDebug, "query",
		slog.String("trace_id", uuid.NewString()),
		slog.String("query", query),
		slog.String("args", fmt.Sprint(args...)),
	)
	return w.next.QueryContext(ctx, query, args...)
}

// Ensure interfaces are implemented.
var (
	_ dialect.ExecQuerier = (*statsExecQuerier)(nil)
	_ dialect.ExecQuerier = (*debugRunner)(nil)
)
