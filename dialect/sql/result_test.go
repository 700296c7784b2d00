package sql

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultCursor(t *testing.T) {
	res := &Result{
		columns: []string{"id", "name"},
		rows: []Row{
			{"id": int64(1), "name": "a"},
			{"id": int64(2), "name": "b"},
			{"id": int64(3), "name": "c"},
		},
	}
	assert.Equal(t, 3, res.Count())

	first := res.Fetch()
	require.NotNil(t, first)
	assert.Equal(t, "a", first["name"])

	rest := res.FetchAll()
	require.Len(t, rest, 2)
	assert.Equal(t, "b", rest[0]["name"])

	assert.Nil(t, res.Fetch())
	assert.Empty(t, res.FetchAll())
	// Count is independent of the cursor.
	assert.Equal(t, 3, res.Count())
}

func TestResultEmpty(t *testing.T) {
	res := &Result{columns: []string{"id"}}
	assert.Equal(t, 0, res.Count())
	assert.Nil(t, res.Fetch())
	assert.Empty(t, res.FetchAll())
	assert.Empty(t, res.InsertID())
	assert.Zero(t, res.Affected())
}

func TestMaterializeConvertsBytes(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT name, age FROM t").
		WillReturnRows(sqlmock.NewRows([]string{"name", "age"}).
			AddRow([]byte("Tom"), int64(30)))

	rows, err := db.QueryContext(context.Background(), "SELECT name, age FROM t")
	require.NoError(t, err)
	res, err := materialize(rows)
	require.NoError(t, err)

	assert.Equal(t, []string{"name", "age"}, res.Columns())
	row := res.Fetch()
	require.NotNil(t, row)
	assert.Equal(t, "Tom", row["name"])
	assert.Equal(t, int64(30), row["age"])
	require.NoError(t, mock.ExpectationsWereMet())
}
