package sql

import (
	"context"
	"strconv"

	"github.com/crudkit/dbal/dialect"

	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// sqlitePolicy returns the SQLite dialect policy: backtick quoting, '@'
// bind prefix, no value coercion (weakly typed backend), and insert-id
// retrieval through a follow-up statement.
func sqlitePolicy() *Policy {
	return &Policy{
		Name:       dialect.SQLite,
		DriverName: "sqlite",
		IdentOpen:  "`",
		IdentClose: "`",
		FieldQuote: "`",
		BindPrefix: '@',
		Positional: questionMark,
		InsertID:   sqliteInsertID{},
		InitConn: func(ctx context.Context, run dialect.ExecQuerier) error {
			_, err := run.ExecContext(ctx, "PRAGMA foreign_keys = ON")
			return err
		},
	}
}

// sqliteInsertID issues an independent follow-up statement reading the
// session-scoped last row id after the insert completes.
type sqliteInsertID struct{}

func (sqliteInsertID) ExecInsert(ctx context.Context, run dialect.ExecQuerier, ins InsertStmt) (string, int64, error) {
	res, err := run.ExecContext(ctx, ins.SQL, ins.Args...)
	if err != nil {
		return "", 0, err
	}
	affected, _ := res.RowsAffected()
	rows, err := run.QueryContext(ctx, "SELECT last_insert_rowid()")
	if err != nil {
		return "", affected, err
	}
	defer rows.Close()
	var id int64
	if rows.Next() {
		if err := rows.Scan(&id); err != nil {
			return "", affected, err
		}
	}
	if err := rows.Err(); err != nil {
		return "", affected, err
	}
	return strconv.FormatInt(id, 10), affected, nil
}
