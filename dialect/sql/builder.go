package sql

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/crudkit/dbal"
)

// Query types.
const (
	QuerySelect = "select"
	QueryInsert = "insert"
	QueryUpdate = "update"
	QueryDelete = "delete"
	QueryRaw    = "raw"
)

// assignment is one SET column/value pair.
type assignment struct {
	col string
	val Value
	typ Type
}

// join is one accumulated join clause.
type join struct {
	kind  string // "" or "LEFT"
	table string
	left  string
	right string
}

// Query is the mutable builder for one statement. It accumulates tables,
// projected fields, set-assignments, the where tree, joins, ordering and
// pagination, then renders and executes exactly once. The query type is
// fixed at construction. A Query is single-owner: one caller mutates it
// sequentially and then calls Exec.
type Query struct {
	db       *Database
	typ      string
	rawSQL   string
	tables   []string
	fields   []string
	sets     []assignment
	joins    []join
	orderBy  []string
	groupBy  string
	limit    int
	offset   int
	distinct bool
	pkeys    []string

	whereRoot  whereGroup
	groupStack []*whereGroup

	bindings []Binding
	bindSeq  int
	executed bool
}

func newQuery(db *Database, typ string) *Query {
	return &Query{db: db, typ: typ, limit: -1, offset: -1}
}

// Type returns the query type fixed at construction.
func (q *Query) Type() string { return q.typ }

// Table appends one or more tables.
func (q *Query) Table(tables ...string) *Query {
	q.tables = append(q.tables, tables...)
	return q
}

// Get appends projected fields. With no Get calls a select projects "*".
func (q *Query) Get(fields ...string) *Query {
	q.fields = append(q.fields, fields...)
	return q
}

// Set appends a column assignment for inserts and updates.
func (q *Query) Set(col string, value any) *Query {
	a := assignment{col: col, val: AutoValue(value)}
	if tv, ok := value.(TypedValue); ok {
		a.typ = tv.Type
	}
	q.sets = append(q.sets, a)
	return q
}

// PKey declares the primary-key columns of the target table, used by
// insert-id strategies that need the column name up front.
func (q *Query) PKey(cols ...string) *Query {
	q.pkeys = cols
	return q
}

// Join appends an inner join.
func (q *Query) Join(table, left, right string) *Query {
	q.joins = append(q.joins, join{table: table, left: left, right: right})
	return q
}

// LeftJoin appends a left join.
func (q *Query) LeftJoin(table, left, right string) *Query {
	q.joins = append(q.joins, join{kind: "LEFT", table: table, left: left, right: right})
	return q
}

// Order appends an order-by expression such as "name" or "name desc".
// The column part is identifier-quoted; any direction tokens pass through.
func (q *Query) Order(expr string) *Query {
	parts := strings.Fields(expr)
	if len(parts) == 0 {
		return q
	}
	rendered := q.quoteSingle(parts[0])
	if len(parts) > 1 {
		rendered += " " + strings.Join(parts[1:], " ")
	}
	q.orderBy = append(q.orderBy, rendered)
	return q
}

// GroupBy sets the single group-by column, replacing any previous value.
func (q *Query) GroupBy(col string) *Query {
	q.groupBy = col
	return q
}

// Limit sets the row limit, replacing any previous value.
func (q *Query) Limit(n int) *Query {
	q.limit = n
	return q
}

// Offset sets the row offset, replacing any previous value.
func (q *Query) Offset(n int) *Query {
	q.offset = n
	return q
}

// Distinct marks the select as DISTINCT.
func (q *Query) Distinct() *Query {
	q.distinct = true
	return q
}

// quoteIdent protects a field or table reference. Anything containing a
// function-call marker, a '*', or more than two whitespace-separated tokens
// is treated as an unescapable raw expression and passed through verbatim.
// This is a heuristic, not a parser. Aliased references split: the left
// part gets the identifier quote pair, the alias gets the field quote.
func (q *Query) quoteIdent(s string) string {
	s = strings.TrimSpace(s)
	if strings.ContainsAny(s, "(*") {
		return s
	}
	parts := strings.Fields(s)
	switch len(parts) {
	case 1:
		return q.db.policy.QuoteIdent(parts[0])
	case 2:
		return q.db.policy.QuoteIdent(parts[0]) + " " + q.db.policy.QuoteField(parts[1])
	case 3:
		if strings.EqualFold(parts[1], "as") {
			return q.db.policy.QuoteIdent(parts[0]) + " AS " + q.db.policy.QuoteField(parts[2])
		}
	}
	return s
}

// quoteSingle quotes one bare token, passing raw expressions through.
func (q *Query) quoteSingle(s string) string {
	if strings.ContainsAny(s, "(*") {
		return s
	}
	return q.db.policy.QuoteIdent(s)
}

func (q *Query) placeholder(name string) string {
	return q.db.policy.Placeholder(name)
}

// nextBindingName allocates a statement-unique parameter name. A single
// monotonically increasing counter spans all clauses, so repeated use of
// the same column never collides.
func (q *Query) nextBindingName(prefix string) string {
	name := prefix + "_" + strconv.Itoa(q.bindSeq)
	q.bindSeq++
	return name
}

// bindSet allocates a set-assignment binding named after the column.
func (q *Query) bindSet(a assignment) string {
	name := q.nextBindingName(sanitizeName(a.col))
	q.bindings = append(q.bindings, Binding{Name: name, Value: a.val, Type: a.typ})
	return q.placeholder(name)
}

// render assembles the statement text and the binding list from the
// accumulated state. The rendered text carries named placeholders; the
// dialect compiles them to the driver's positional markers at prepare time.
func (q *Query) render() (string, error) {
	q.bindings = q.bindings[:0]
	q.bindSeq = 0
	switch strings.ToLower(q.typ) {
	case QuerySelect:
		return q.renderSelect()
	case QueryInsert:
		return q.renderInsert()
	case QueryUpdate:
		return q.renderUpdate()
	case QueryDelete:
		return q.renderDelete()
	case QueryRaw:
		return q.rawSQL, nil
	}
	return "", dbal.NewUnknownQueryTypeError(q.typ)
}

func (q *Query) renderSelect() (string, error) {
	if len(q.tables) == 0 {
		return "", errors.New("dbal: select query has no table")
	}
	var sb strings.Builder
	sb.WriteString("SELECT ")
	if q.distinct {
		sb.WriteString("DISTINCT ")
	}
	if len(q.fields) == 0 {
		sb.WriteByte('*')
	} else {
		for i, f := range q.fields {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(q.quoteIdent(f))
		}
	}
	sb.WriteString(" FROM ")
	for i, t := range q.tables {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(q.quoteIdent(t))
	}
	for _, j := range q.joins {
		sb.WriteByte(' ')
		if j.kind != "" {
			sb.WriteString(j.kind)
			sb.WriteByte(' ')
		}
		sb.WriteString("JOIN ")
		sb.WriteString(q.quoteIdent(j.table))
		sb.WriteString(" ON ")
		sb.WriteString(q.quoteSingle(j.left))
		sb.WriteString(" = ")
		sb.WriteString(q.quoteSingle(j.right))
	}
	q.renderWhere(&sb)
	if q.groupBy != "" {
		sb.WriteString(" GROUP BY ")
		sb.WriteString(q.quoteSingle(q.groupBy))
	}
	if len(q.orderBy) > 0 {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(q.orderBy, ", "))
	}
	if q.limit >= 0 {
		sb.WriteString(" LIMIT ")
		sb.WriteString(strconv.Itoa(q.limit))
	}
	if q.offset >= 0 {
		sb.WriteString(" OFFSET ")
		sb.WriteString(strconv.Itoa(q.offset))
	}
	return sb.String(), nil
}

func (q *Query) renderInsert() (string, error) {
	if len(q.tables) == 0 {
		return "", errors.New("dbal: insert query has no table")
	}
	if len(q.sets) == 0 {
		return "", errors.New("dbal: insert query has no assignments")
	}
	var sb strings.Builder
	sb.WriteString("INSERT INTO ")
	sb.WriteString(q.quoteIdent(q.tables[0]))
	sb.WriteString(" (")
	for i, a := range q.sets {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(q.db.policy.QuoteIdent(a.col))
	}
	sb.WriteString(") VALUES (")
	for i, a := range q.sets {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(q.bindSet(a))
	}
	sb.WriteByte(')')
	return sb.String(), nil
}

func (q *Query) renderUpdate() (string, error) {
	if len(q.tables) == 0 {
		return "", errors.New("dbal: update query has no table")
	}
	if len(q.sets) == 0 {
		return "", errors.New("dbal: update query has no assignments")
	}
	var sb strings.Builder
	sb.WriteString("UPDATE ")
	sb.WriteString(q.quoteIdent(q.tables[0]))
	sb.WriteString(" SET ")
	for i, a := range q.sets {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(q.db.policy.QuoteIdent(a.col))
		sb.WriteString(" = ")
		sb.WriteString(q.bindSet(a))
	}
	q.renderWhere(&sb)
	return sb.String(), nil
}

func (q *Query) renderDelete() (string, error) {
	if len(q.tables) == 0 {
		return "", errors.New("dbal: delete query has no table")
	}
	var sb strings.Builder
	sb.WriteString("DELETE FROM ")
	sb.WriteString(q.quoteIdent(q.tables[0]))
	q.renderWhere(&sb)
	return sb.String(), nil
}

// Exec renders the statement, compiles the bindings through the dialect,
// and runs it on the connection's current runner (the open transaction if
// one exists). Driver failures propagate unchanged; no retries.
func (q *Query) Exec(ctx context.Context) (*Result, error) {
	if q.executed {
		return nil, errors.New("dbal: query already executed")
	}
	q.executed = true
	if err := q.db.initConn(ctx); err != nil {
		return nil, err
	}
	stmt, err := q.render()
	if err != nil {
		return nil, err
	}
	q.db.debugTrace(stmt, q.bindings)
	run := q.db.runner()
	ctx, cancel := q.db.commandContext(ctx)
	defer cancel()
	p := q.db.policy
	switch strings.ToLower(q.typ) {
	case QuerySelect:
		compiled, args := p.Compile(stmt, q.bindings)
		if res, ok := q.db.cacheGet(ctx, q.cacheTable(), compiled, args); ok {
			return res, nil
		}
		rows, err := run.QueryContext(ctx, compiled, args...)
		if err != nil {
			return nil, err
		}
		res, err := materialize(rows)
		if err != nil {
			return nil, err
		}
		q.db.cacheSet(ctx, q.cacheTable(), compiled, args, res)
		return res, nil
	case QueryInsert:
		compiled, args := p.Compile(stmt, q.bindings)
		id, affected, err := p.InsertID.ExecInsert(ctx, run, InsertStmt{
			Table:  q.tables[0],
			SQL:    compiled,
			Args:   args,
			PKeys:  q.pkeys,
			Policy: p,
		})
		if err != nil {
			return nil, err
		}
		q.db.cacheInvalidate(ctx, q.tables)
		return &Result{insertID: id, affected: affected}, nil
	case QueryUpdate, QueryDelete:
		compiled, args := p.Compile(stmt, q.bindings)
		res, err := run.ExecContext(ctx, compiled, args...)
		if err != nil {
			return nil, err
		}
		affected, _ := res.RowsAffected()
		q.db.cacheInvalidate(ctx, q.tables)
		return &Result{affected: affected}, nil
	case QueryRaw:
		// Zero managed bindings: the text runs as given, still inside
		// the active transaction and command timeout.
		rows, err := run.QueryContext(ctx, stmt)
		if err != nil {
			return nil, err
		}
		return materialize(rows)
	}
	return nil, dbal.NewUnknownQueryTypeError(q.typ)
}

// cacheTable is the invalidation scope of the query: its first table.
func (q *Query) cacheTable() string {
	if len(q.tables) == 0 {
		return ""
	}
	return q.tables[0]
}
