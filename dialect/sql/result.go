package sql

import "database/sql"

// Row is one materialized result row, keyed by column name. Column order
// is preserved on the owning Result.
type Row map[string]any

// Result is a cursor over the materialized rows of one executed Query.
// It is created only by execution, never constructed directly.
type Result struct {
	columns  []string
	rows     []Row
	pos      int
	insertID string
	affected int64
}

// Columns returns the ordered column names of the row set.
func (r *Result) Columns() []string { return r.columns }

// Fetch returns the next row and advances the cursor, or nil when the row
// set is exhausted.
func (r *Result) Fetch() Row {
	if r.pos >= len(r.rows) {
		return nil
	}
	row := r.rows[r.pos]
	r.pos++
	return row
}

// FetchAll drains and returns the remaining rows.
func (r *Result) FetchAll() []Row {
	rest := r.rows[min(r.pos, len(r.rows)):]
	r.pos = len(r.rows)
	return rest
}

// Count reports the size of the materialized row set, independent of the
// cursor position.
func (r *Result) Count() int { return len(r.rows) }

// InsertID returns the primary-key value the dialect's insert-id strategy
// resolved for an executed insert, or the empty string when not applicable:
// a non-insert query, or a table with no discoverable primary key.
func (r *Result) InsertID() string { return r.insertID }

// Affected returns the number of rows the statement changed, as reported
// by the driver. It is zero for selects.
func (r *Result) Affected() int64 { return r.affected }

// materialize drains native rows into a Result. Byte slices are converted
// to strings so rows surface as plain field→value maps.
func materialize(rows *sql.Rows) (*Result, error) {
	defer rows.Close()
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	res := &Result{columns: columns}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(Row, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		res.rows = append(res.rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}
