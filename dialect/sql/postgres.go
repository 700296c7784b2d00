package sql

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/crudkit/dbal/dialect"

	_ "github.com/lib/pq" // registers the "postgres" driver
)

// postgresPolicy returns the Postgres dialect policy: double-quote
// identifier quoting, ':' bind prefix, untyped-value coercion (strongly
// typed backend), and insert-id retrieval through a catalog lookup plus a
// RETURNING clause.
func postgresPolicy() *Policy {
	return &Policy{
		Name:       dialect.Postgres,
		DriverName: "postgres",
		IdentOpen:  `"`,
		IdentClose: `"`,
		FieldQuote: `"`,
		BindPrefix: ':',
		Positional: dollarN,
		Coerce:     coercePostgres,
		InsertID:   newPostgresInsertID(),
	}
}

// coercePostgres resolves untyped text values for the strongly typed
// backend. A declared type always wins; otherwise an integer parse is
// attempted, then a date/time parse when the text looks date-like
// (contains '-' or '/' and no comma), else the text passes through.
// The date sniff is a heuristic kept for parity with the databases this
// layer already serves; it will misread hyphenated non-date text that
// happens to parse as a date.
func coercePostgres(v Value, declared Type) any {
	if declared != TypeUnspecified {
		return coerceDeclared(v, declared)
	}
	if v.Kind() != KindText {
		return v.Native()
	}
	s := v.TextValue()
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if (strings.Contains(s, "-") || strings.Contains(s, "/")) && !strings.Contains(s, ",") {
		if t, ok := parseDateTime(s); ok {
			return t
		}
	}
	return s
}

// dateTimeLayouts are tried in order by parseDateTime.
var dateTimeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02",
	"2006/01/02 15:04:05",
	"2006/01/02",
}

func parseDateTime(s string) (time.Time, bool) {
	for _, layout := range dateTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// coerceDeclared converts a value to its declared type where a conversion
// exists; otherwise the native representation is passed through and the
// backend reports any mismatch.
func coerceDeclared(v Value, declared Type) any {
	if v.IsNull() {
		return nil
	}
	switch declared {
	case TypeInt:
		if v.Kind() == KindText {
			if n, err := strconv.ParseInt(v.TextValue(), 10, 64); err == nil {
				return n
			}
		}
	case TypeDecimal:
		if v.Kind() == KindText {
			if f, err := strconv.ParseFloat(v.TextValue(), 64); err == nil {
				return f
			}
		}
	case TypeDateTime:
		if v.Kind() == KindText {
			if t, ok := parseDateTime(v.TextValue()); ok {
				return t
			}
		}
	case TypeText:
		if v.Kind() != KindText {
			return v.String()
		}
	}
	return v.Native()
}

// pkeyQuery discovers the primary-key column of a table from the catalog.
const pkeyQuery = `SELECT a.attname FROM pg_index i JOIN pg_attribute a ON a.attrelid = i.indrelid AND a.attnum = ANY(i.indkey) WHERE i.indrelid = $1::regclass AND i.indisprimary`

// postgresInsertID appends RETURNING <pkey> AS insert_id to the insert and
// reads the synthetic column from the same execution. The pkey column comes
// from the query's declaration or a catalog lookup; when neither yields one
// the insert runs without the clause and the id comes back empty.
type postgresInsertID struct {
	mu    sync.Mutex
	pkeys map[string]string
	sf    singleflight.Group
}

func newPostgresInsertID() *postgresInsertID {
	return &postgresInsertID{pkeys: make(map[string]string)}
}

func (s *postgresInsertID) ExecInsert(ctx context.Context, run dialect.ExecQuerier, ins InsertStmt) (string, int64, error) {
	pkey := ""
	if len(ins.PKeys) > 0 {
		pkey = ins.PKeys[0]
	} else {
		pkey = s.discover(ctx, run, ins.Table)
	}
	if pkey == "" {
		// Degraded mode: the insert still runs, the id stays empty.
		res, err := run.ExecContext(ctx, ins.SQL, ins.Args...)
		if err != nil {
			return "", 0, err
		}
		affected, _ := res.RowsAffected()
		return "", affected, nil
	}
	stmt := ins.SQL + " RETURNING " + ins.Policy.QuoteIdent(pkey) + " AS " + ins.Policy.QuoteField("insert_id")
	rows, err := run.QueryContext(ctx, stmt, ins.Args...)
	if err != nil {
		return "", 0, err
	}
	defer rows.Close()
	id := ""
	var count int64
	for rows.Next() {
		var v any
		if err := rows.Scan(&v); err != nil {
			return "", count, err
		}
		id = scalarString(v)
		count++
	}
	return id, count, rows.Err()
}

// discover looks up and caches the table's primary-key column. Concurrent
// lookups for the same table collapse into one catalog query. Lookup
// failures degrade to an empty pkey rather than failing the insert.
func (s *postgresInsertID) discover(ctx context.Context, run dialect.ExecQuerier, table string) string {
	s.mu.Lock()
	if pkey, ok := s.pkeys[table]; ok {
		s.mu.Unlock()
		return pkey
	}
	s.mu.Unlock()
	v, _, _ := s.sf.Do(table, func() (any, error) {
		pkey := ""
		rows, err := run.QueryContext(ctx, pkeyQuery, table)
		if err != nil {
			slog.Debug("pkey discovery failed", "table", table, "err", err)
			return "", nil
		}
		defer rows.Close()
		if rows.Next() {
			if err := rows.Scan(&pkey); err != nil {
				slog.Debug("pkey discovery scan failed", "table", table, "err", err)
				return "", nil
			}
		}
		s.mu.Lock()
		s.pkeys[table] = pkey
		s.mu.Unlock()
		return pkey, nil
	})
	pkey, _ := v.(string)
	return pkey
}

// scalarString renders a single scanned column value as the insert-id string.
func scalarString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(x)
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	}
	return fmt.Sprint(v)
}
