package dbal

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	sqlite "modernc.org/sqlite"
)

// Standard sentinel errors for common failure classes.
var (
	// ErrUnknownDialect is returned when a connection is opened with a
	// dialect name this layer does not support.
	ErrUnknownDialect = errors.New("dbal: unknown dialect")

	// ErrUnknownQueryType is returned when a query is constructed or
	// executed with an unrecognized statement type.
	ErrUnknownQueryType = errors.New("dbal: unknown query type")

	// ErrTxStarted is returned when attempting to start a new transaction
	// while one is already open on the connection.
	ErrTxStarted = errors.New("dbal: cannot start a transaction within a transaction")

	// ErrTxNotStarted is returned when committing or rolling back with no
	// open transaction.
	ErrTxNotStarted = errors.New("dbal: no active transaction")
)

// UnknownDialectError reports an unsupported dialect name.
type UnknownDialectError struct {
	Name string
}

// Error returns the error string.
func (e *UnknownDialectError) Error() string {
	return fmt.Sprintf("dbal: unknown dialect %q", e.Name)
}

// Is reports whether the target error matches ErrUnknownDialect.
func (e *UnknownDialectError) Is(err error) bool {
	return err == ErrUnknownDialect
}

// NewUnknownDialectError returns a new UnknownDialectError for the given name.
func NewUnknownDialectError(name string) *UnknownDialectError {
	return &UnknownDialectError{Name: name}
}

// UnknownQueryTypeError reports an unrecognized statement type.
type UnknownQueryTypeError struct {
	Type string
}

// Error returns the error string.
func (e *UnknownQueryTypeError) Error() string {
	return fmt.Sprintf("dbal: unknown query type %q", e.Type)
}

// Is reports whether the target error matches ErrUnknownQueryType.
func (e *UnknownQueryTypeError) Is(err error) bool {
	return err == ErrUnknownQueryType
}

// NewUnknownQueryTypeError returns a new UnknownQueryTypeError for the given type.
func NewUnknownQueryTypeError(typ string) *UnknownQueryTypeError {
	return &UnknownQueryTypeError{Type: typ}
}

// IsConfiguration returns true if the error is a configuration error:
// an unknown dialect or an unknown query type. Configuration errors are
// fatal and not recoverable by retry.
func IsConfiguration(err error) bool {
	return errors.Is(err, ErrUnknownDialect) || errors.Is(err, ErrUnknownQueryType)
}

// IsTransactionState returns true if the error reports an invalid
// transaction transition: begin while open, or commit/rollback while closed.
func IsTransactionState(err error) bool {
	return errors.Is(err, ErrTxStarted) || errors.Is(err, ErrTxNotStarted)
}

// PostgreSQL SQLSTATE codes for constraint violations (Class 23).
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

// MySQL error numbers for constraint violations.
const (
	mysqlDuplicateEntry         = 1062
	mysqlForeignKeyParent       = 1451 // Cannot delete or update a parent row
	mysqlForeignKeyChild        = 1452 // Cannot add or update a child row
	mysqlCheckConstraintViolate = 3819
)

// SQLite extended result codes for constraint violations.
const (
	sqliteConstraintCheck      = 275
	sqliteConstraintForeignKey = 787
	sqliteConstraintPrimaryKey = 1555
	sqliteConstraintUnique     = 2067
)

// IsConstraintError returns true if the error resulted from a database
// constraint violation of any kind.
func IsConstraintError(err error) bool {
	return IsUniqueConstraintError(err) ||
		IsForeignKeyConstraintError(err) ||
		IsCheckConstraintError(err)
}

// IsUniqueConstraintError reports if the error resulted from a DB uniqueness
// constraint violation. e.g. duplicate value in a unique index.
func IsUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	var pqe *pq.Error
	if errors.As(err, &pqe) && string(pqe.Code) == pgUniqueViolation {
		return true
	}
	var mye *mysql.MySQLError
	if errors.As(err, &mye) && mye.Number == mysqlDuplicateEntry {
		return true
	}
	var lite *sqlite.Error
	if errors.As(err, &lite) {
		code := lite.Code()
		if code == sqliteConstraintUnique || code == sqliteConstraintPrimaryKey {
			return true
		}
	}
	// Fallback to string matching for wrapped or foreign driver errors.
	return containsAny(err.Error(),
		"Error 1062",                 // MySQL
		"violates unique constraint", // Postgres
		"UNIQUE constraint failed",   // SQLite
	)
}

// IsForeignKeyConstraintError reports if the error resulted from a database
// foreign-key constraint violation. e.g. parent row does not exist.
func IsForeignKeyConstraintError(err error) bool {
	if err == nil {
		return false
	}
	var pqe *pq.Error
	if errors.As(err, &pqe) && string(pqe.Code) == pgForeignKeyViolation {
		return true
	}
	var mye *mysql.MySQLError
	if errors.As(err, &mye) && (mye.Number == mysqlForeignKeyParent || mye.Number == mysqlForeignKeyChild) {
		return true
	}
	var lite *sqlite.Error
	if errors.As(err, &lite) && lite.Code() == sqliteConstraintForeignKey {
		return true
	}
	return containsAny(err.Error(),
		"Error 1451",                      // MySQL (parent row)
		"Error 1452",                      // MySQL (child row)
		"violates foreign key constraint", // Postgres
		"FOREIGN KEY constraint failed",   // SQLite
	)
}

// IsCheckConstraintError reports if the error resulted from a database check
// constraint violation. e.g. a value does not satisfy a check condition.
func IsCheckConstraintError(err error) bool {
	if err == nil {
		return false
	}
	var pqe *pq.Error
	if errors.As(err, &pqe) && string(pqe.Code) == pgCheckViolation {
		return true
	}
	var mye *mysql.MySQLError
	if errors.As(err, &mye) && mye.Number == mysqlCheckConstraintViolate {
		return true
	}
	var lite *sqlite.Error
	if errors.As(err, &lite) && lite.Code() == sqliteConstraintCheck {
		return true
	}
	return containsAny(err.Error(),
		"Error 3819",                // MySQL
		"violates check constraint", // Postgres
		"CHECK constraint failed",   // SQLite
	)
}

// containsAny returns true if s contains any of the substrings.
func containsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
