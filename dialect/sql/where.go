package sql

import "strings"

// Connective joins a where node to the condition preceding it.
type Connective uint8

// Connectives.
const (
	And Connective = iota
	Or
)

// String returns the SQL keyword for the connective.
func (c Connective) String() string {
	if c == Or {
		return "OR"
	}
	return "AND"
}

// whereNode is either a leaf condition or a parenthetical group.
type whereNode interface {
	isWhereNode()
}

// whereLeaf is a single condition.
// Exactly one of {col, raw} is set; an in-list leaf carries vals.
type whereLeaf struct {
	conn Connective
	col  string
	op   string
	val  Value
	typ  Type
	vals []Value // IN list; nil otherwise
	in   bool
	raw  string // pre-rendered condition; used when col == ""
}

func (*whereLeaf) isWhereNode() {}

// whereGroup is a parenthetical group of nodes joined by connectives.
type whereGroup struct {
	conn     Connective
	children []whereNode
}

func (*whereGroup) isWhereNode() {}

// empty reports whether the group (including nested groups) contributes
// no condition at all.
func (g *whereGroup) empty() bool {
	return len(g.children) == 0
}

// top returns the group currently receiving conditions: the innermost open
// group, or the root.
func (q *Query) top() *whereGroup {
	if n := len(q.groupStack); n > 0 {
		return q.groupStack[n-1]
	}
	return &q.whereRoot
}

func (q *Query) appendWhere(n whereNode) {
	g := q.top()
	g.children = append(g.children, n)
}

// Where appends an AND-joined condition. The operator defaults to "=" and
// may be overridden with a third argument:
//
//	q.Where("age", 30, ">")
//
// A nil value with operator "=" or "!=" renders IS NULL / IS NOT NULL and
// consumes no binding.
func (q *Query) Where(col string, value any, op ...string) *Query {
	return q.where(And, col, value, op...)
}

// AndWhere is an alias for Where.
func (q *Query) AndWhere(col string, value any, op ...string) *Query {
	return q.where(And, col, value, op...)
}

// OrWhere appends an OR-joined condition.
func (q *Query) OrWhere(col string, value any, op ...string) *Query {
	return q.where(Or, col, value, op...)
}

func (q *Query) where(conn Connective, col string, value any, op ...string) *Query {
	operator := "="
	if len(op) > 0 && op[0] != "" {
		operator = op[0]
	}
	leaf := &whereLeaf{conn: conn, col: col, op: operator, val: AutoValue(value)}
	if tv, ok := value.(TypedValue); ok {
		leaf.typ = tv.Type
	}
	q.appendWhere(leaf)
	return q
}

// WhereRaw appends a pre-rendered condition verbatim, AND-joined.
// The text is the caller's responsibility; no quoting or binding is applied.
func (q *Query) WhereRaw(cond string) *Query {
	q.appendWhere(&whereLeaf{conn: And, raw: cond})
	return q
}

// OrWhereRaw appends a pre-rendered condition verbatim, OR-joined.
func (q *Query) OrWhereRaw(cond string) *Query {
	q.appendWhere(&whereLeaf{conn: Or, raw: cond})
	return q
}

// WhereIn appends an AND-joined IN condition with one binding per value.
// An empty value list is silently a no-op: the query renders as if the
// call never happened.
func (q *Query) WhereIn(col string, values []any) *Query {
	return q.whereIn(And, col, values)
}

// OrWhereIn appends an OR-joined IN condition.
func (q *Query) OrWhereIn(col string, values []any) *Query {
	return q.whereIn(Or, col, values)
}

func (q *Query) whereIn(conn Connective, col string, values []any) *Query {
	if len(values) == 0 {
		return q
	}
	leaf := &whereLeaf{conn: conn, col: col, in: true}
	for _, v := range values {
		leaf.vals = append(leaf.vals, AutoValue(v))
	}
	q.appendWhere(leaf)
	return q
}

// WhereGroup opens a parenthetical group, runs fn to populate it through
// the same builder, and closes it. Groups nest arbitrarily. An empty group
// renders the tautology 1=1 in place of empty parentheses.
func (q *Query) WhereGroup(fn func(*Query)) *Query {
	return q.whereGroup(And, fn)
}

// OrWhereGroup opens an OR-joined parenthetical group.
func (q *Query) OrWhereGroup(fn func(*Query)) *Query {
	return q.whereGroup(Or, fn)
}

func (q *Query) whereGroup(conn Connective, fn func(*Query)) *Query {
	g := &whereGroup{conn: conn}
	q.appendWhere(g)
	q.groupStack = append(q.groupStack, g)
	fn(q)
	q.groupStack = q.groupStack[:len(q.groupStack)-1]
	return q
}

// renderWhere walks the tree and writes the WHERE clause, allocating
// bindings as it goes. Nothing is written when the tree is empty.
func (q *Query) renderWhere(sb *strings.Builder) {
	if q.whereRoot.empty() {
		return
	}
	sb.WriteString(" WHERE ")
	q.renderGroupBody(sb, &q.whereRoot)
}

// renderGroupBody renders the children of a group without the surrounding
// parentheses. The first child never gets a leading connective.
func (q *Query) renderGroupBody(sb *strings.Builder, g *whereGroup) {
	for i, child := range g.children {
		switch n := child.(type) {
		case *whereLeaf:
			if i > 0 {
				sb.WriteByte(' ')
				sb.WriteString(n.conn.String())
				sb.WriteByte(' ')
			}
			q.renderLeaf(sb, n)
		case *whereGroup:
			if i > 0 {
				sb.WriteByte(' ')
				sb.WriteString(n.conn.String())
				sb.WriteByte(' ')
			}
			if n.empty() {
				sb.WriteString("1=1")
				continue
			}
			sb.WriteString("( ")
			q.renderGroupBody(sb, n)
			sb.WriteString(" )")
		}
	}
}

func (q *Query) renderLeaf(sb *strings.Builder, n *whereLeaf) {
	switch {
	case n.raw != "":
		sb.WriteString(n.raw)
	case n.in:
		sb.WriteString(q.quoteIdent(n.col))
		sb.WriteString(" IN (")
		for i, v := range n.vals {
			if i > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(q.bindWhere(v, TypeUnspecified))
		}
		sb.WriteByte(')')
	case n.val.IsNull() && (n.op == "=" || n.op == "!=" || n.op == "<>"):
		sb.WriteString(q.quoteIdent(n.col))
		if n.op == "=" {
			sb.WriteString(" IS NULL")
		} else {
			sb.WriteString(" IS NOT NULL")
		}
	default:
		sb.WriteString(q.quoteIdent(n.col))
		sb.WriteByte(' ')
		sb.WriteString(n.op)
		sb.WriteByte(' ')
		sb.WriteString(q.bindWhere(n.val, n.typ))
	}
}

// bindWhere allocates a where-clause binding and returns its placeholder.
func (q *Query) bindWhere(v Value, t Type) string {
	name := q.nextBindingName("where")
	q.bindings = append(q.bindings, Binding{Name: name, Value: v, Type: t})
	return q.placeholder(name)
}
