package sql

import (
	"context"
	"strconv"
	"strings"

	"github.com/crudkit/dbal"
	"github.com/crudkit/dbal/dialect"
)

// InsertStmt is a compiled insert handed to an insert-id strategy.
type InsertStmt struct {
	Table  string
	SQL    string
	Args   []any
	PKeys  []string // primary-key columns declared on the query, if any
	Policy *Policy
}

// InsertIDStrategy executes an insert and resolves the generated primary-key
// value in the backend's own way. An empty id is the degraded mode for
// backends that cannot discover one; it is not an error.
type InsertIDStrategy interface {
	ExecInsert(ctx context.Context, run dialect.ExecQuerier, ins InsertStmt) (id string, affected int64, err error)
}

// CoerceFunc resolves an untyped bound value into the representation a
// backend accepts. A nil CoerceFunc passes values through natively.
type CoerceFunc func(v Value, declared Type) any

// Policy is the per-backend strategy object that parameterizes Query:
// quoting characters, bind prefix, placeholder style, value coercion,
// insert-id retrieval and the one-time connection init hook.
type Policy struct {
	// Name is the dialect name this policy serves.
	Name string
	// DriverName is the registered database/sql driver.
	DriverName string
	// IdentOpen and IdentClose quote identifiers (tables, columns).
	// Both empty means no identifier quoting.
	IdentOpen  string
	IdentClose string
	// FieldQuote quotes aliases, which may use a different character
	// than identifiers.
	FieldQuote string
	// BindPrefix begins a named parameter placeholder in rendered SQL.
	BindPrefix byte
	// Positional returns the driver's placeholder for the 1-based n-th
	// parameter, e.g. "?" or "$1".
	Positional func(n int) string
	// Coerce resolves untyped values; nil skips coercion entirely.
	Coerce CoerceFunc
	// InsertID is the backend's insert-id retrieval strategy.
	InsertID InsertIDStrategy
	// InitConn runs once per connection before the first statement.
	InitConn func(ctx context.Context, run dialect.ExecQuerier) error
}

// QuoteIdent wraps a bare identifier in the policy's identifier-quote pair.
// Dotted references are quoted per part.
func (p *Policy) QuoteIdent(name string) string {
	if p.IdentOpen == "" && p.IdentClose == "" {
		return name
	}
	if !strings.Contains(name, ".") {
		return p.IdentOpen + name + p.IdentClose
	}
	parts := strings.Split(name, ".")
	for i, part := range parts {
		parts[i] = p.IdentOpen + part + p.IdentClose
	}
	return strings.Join(parts, ".")
}

// QuoteField wraps an alias in the policy's field-quote character.
func (p *Policy) QuoteField(name string) string {
	if p.FieldQuote == "" {
		return name
	}
	return p.FieldQuote + name + p.FieldQuote
}

// Placeholder renders the named placeholder for a binding.
func (p *Policy) Placeholder(name string) string {
	return string(p.BindPrefix) + name
}

// CoerceValue resolves one binding value for the driver.
func (p *Policy) CoerceValue(b Binding) any {
	if p.Coerce == nil {
		return b.Value.Native()
	}
	return p.Coerce(b.Value, b.Type)
}

// Compile rewrites a rendered statement's named placeholders into the
// driver's positional markers, in order of appearance, and returns the
// matching argument list. Placeholder names not present in the binding
// list are left untouched.
func (p *Policy) Compile(stmt string, bindings []Binding) (string, []any) {
	if len(bindings) == 0 {
		return stmt, nil
	}
	byName := make(map[string]Binding, len(bindings))
	for _, b := range bindings {
		byName[b.Name] = b
	}
	var (
		sb   strings.Builder
		args = make([]any, 0, len(bindings))
		n    = 0
	)
	sb.Grow(len(stmt))
	for i := 0; i < len(stmt); {
		c := stmt[i]
		if c != p.BindPrefix {
			sb.WriteByte(c)
			i++
			continue
		}
		j := i + 1
		for j < len(stmt) && isNameByte(stmt[j]) {
			j++
		}
		name := stmt[i+1 : j]
		b, ok := byName[name]
		if !ok {
			sb.WriteString(stmt[i:j])
			i = j
			continue
		}
		n++
		sb.WriteString(p.Positional(n))
		args = append(args, p.CoerceValue(b))
		i = j
	}
	return sb.String(), args
}

func isNameByte(c byte) bool {
	return c == '_' ||
		'a' <= c && c <= 'z' ||
		'A' <= c && c <= 'Z' ||
		'0' <= c && c <= '9'
}

// questionMark is the positional style shared by MySQL and SQLite.
func questionMark(int) string { return "?" }

// dollarN is the Postgres positional style.
func dollarN(n int) string { return "$" + strconv.Itoa(n) }

// policyFor returns a fresh policy for the dialect name, case-insensitively.
// Policies carry per-connection state (the Postgres pkey cache), so every
// Database gets its own instance.
func policyFor(name string) (*Policy, error) {
	switch strings.ToLower(name) {
	case dialect.MySQL:
		return mysqlPolicy(), nil
	case dialect.Postgres:
		return postgresPolicy(), nil
	case dialect.SQLite:
		return sqlitePolicy(), nil
	}
	return nil, dbal.NewUnknownDialectError(name)
}
