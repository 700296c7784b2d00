package dialect

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValid(t *testing.T) {
	for _, name := range Names() {
		assert.True(t, Valid(name), name)
	}
	assert.False(t, Valid("oracle"))
	assert.False(t, Valid(""))
	assert.False(t, Valid("MySQL"))
}

func TestDebugLogsStatements(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	eq := Debug(db, logger)

	mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	rows, err := eq.QueryContext(context.Background(), "SELECT 1")
	require.NoError(t, err)
	rows.Close()

	mock.ExpectExec("DELETE FROM t WHERE id = ?").
		WithArgs(7).
		WillReturnResult(sqlmock.NewResult(0, 1))
	_, err = eq.ExecContext(context.Background(), "DELETE FROM t WHERE id = ?", 7)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "SELECT 1")
	assert.Contains(t, out, "DELETE FROM t WHERE id = ?")
	assert.Contains(t, out, "args=7")
	require.NoError(t, mock.ExpectationsWereMet())
}
