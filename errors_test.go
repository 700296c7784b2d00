package dbal

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnknownDialectError(t *testing.T) {
	err := NewUnknownDialectError("oracle")
	assert.Equal(t, `dbal: unknown dialect "oracle"`, err.Error())
	require.ErrorIs(t, err, ErrUnknownDialect)

	wrapped := fmt.Errorf("open: %w", err)
	require.ErrorIs(t, wrapped, ErrUnknownDialect)
	var ude *UnknownDialectError
	require.ErrorAs(t, wrapped, &ude)
	assert.Equal(t, "oracle", ude.Name)
}

func TestUnknownQueryTypeError(t *testing.T) {
	err := NewUnknownQueryTypeError("upsert")
	assert.Equal(t, `dbal: unknown query type "upsert"`, err.Error())
	require.ErrorIs(t, err, ErrUnknownQueryType)
}

func TestIsConfiguration(t *testing.T) {
	assert.True(t, IsConfiguration(NewUnknownDialectError("oracle")))
	assert.True(t, IsConfiguration(NewUnknownQueryTypeError("upsert")))
	assert.False(t, IsConfiguration(ErrTxStarted))
	assert.False(t, IsConfiguration(nil))
}

func TestIsTransactionState(t *testing.T) {
	assert.True(t, IsTransactionState(ErrTxStarted))
	assert.True(t, IsTransactionState(fmt.Errorf("commit: %w", ErrTxNotStarted)))
	assert.False(t, IsTransactionState(ErrUnknownDialect))
	assert.False(t, IsTransactionState(nil))
}

func TestUniqueConstraintError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"pq unique", &pq.Error{Code: "23505"}, true},
		{"pq foreign key", &pq.Error{Code: "23503"}, false},
		{"mysql duplicate", &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}, true},
		{"mysql other", &mysql.MySQLError{Number: 1064}, false},
		{"wrapped pq", fmt.Errorf("insert: %w", &pq.Error{Code: "23505"}), true},
		{"sqlite message", errors.New("constraint failed: UNIQUE constraint failed: users.email (2067)"), true},
		{"mysql message", errors.New("Error 1062: Duplicate entry 'a' for key 'users.email'"), true},
		{"unrelated", errors.New("connection refused"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsUniqueConstraintError(tt.err))
			if tt.want {
				assert.True(t, IsConstraintError(tt.err))
			}
		})
	}
}

func TestForeignKeyConstraintError(t *testing.T) {
	assert.True(t, IsForeignKeyConstraintError(&pq.Error{Code: "23503"}))
	assert.True(t, IsForeignKeyConstraintError(&mysql.MySQLError{Number: 1451}))
	assert.True(t, IsForeignKeyConstraintError(&mysql.MySQLError{Number: 1452}))
	assert.True(t, IsForeignKeyConstraintError(errors.New("FOREIGN KEY constraint failed (787)")))
	assert.False(t, IsForeignKeyConstraintError(&pq.Error{Code: "23505"}))
	assert.False(t, IsForeignKeyConstraintError(nil))
}

func TestCheckConstraintError(t *testing.T) {
	assert.True(t, IsCheckConstraintError(&pq.Error{Code: "23514"}))
	assert.True(t, IsCheckConstraintError(&mysql.MySQLError{Number: 3819}))
	assert.True(t, IsCheckConstraintError(errors.New(`pq: new row for relation "users" violates check constraint "age_positive"`)))
	assert.False(t, IsCheckConstraintError(&mysql.MySQLError{Number: 1062}))
}
