package sql

import (
	"context"
	"strconv"

	"github.com/crudkit/dbal/dialect"

	_ "github.com/go-sql-driver/mysql" // registers the "mysql" driver
)

// mysqlPolicy returns the MySQL dialect policy: backtick quoting, '@' bind
// prefix, no value coercion (weakly typed backend), and the generated key
// reported by the driver from the same execution.
func mysqlPolicy() *Policy {
	return &Policy{
		Name:       dialect.MySQL,
		DriverName: "mysql",
		IdentOpen:  "`",
		IdentClose: "`",
		FieldQuote: "`",
		BindPrefix: '@',
		Positional: questionMark,
		InsertID:   mysqlInsertID{},
		InitConn: func(ctx context.Context, run dialect.ExecQuerier) error {
			_, err := run.ExecContext(ctx, "SET NAMES utf8mb4")
			return err
		},
	}
}

// mysqlInsertID reads the generated key the driver reports for the insert
// itself. No extra statement and no synthetic column are needed.
type mysqlInsertID struct{}

func (mysqlInsertID) ExecInsert(ctx context.Context, run dialect.ExecQuerier, ins InsertStmt) (string, int64, error) {
	res, err := run.ExecContext(ctx, ins.SQL, ins.Args...)
	if err != nil {
		return "", 0, err
	}
	affected, _ := res.RowsAffected()
	id, err := res.LastInsertId()
	if err != nil || id == 0 {
		// No auto-increment column on the table.
		return "", affected, nil
	}
	return strconv.FormatInt(id, 10), affected, nil
}
