package sql

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crudkit/dbal/dialect"
)

func TestStatsRunnerCounts(t *testing.T) {
	stats := NewStatsRunner(WithSlowThreshold(time.Hour))
	db, mock := mockDB(t, dialect.Postgres, WithWrapper(stats.Wrap))
	ctx := context.Background()

	mock.ExpectQuery(`SELECT * FROM "users"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))
	mock.ExpectExec(`DELETE FROM "users" WHERE "id" = $1`).
		WithArgs(int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	_, err := db.Select().Table("users").Exec(ctx)
	require.NoError(t, err)
	_, err = db.Delete().Table("users").Where("id", 1).Exec(ctx)
	require.NoError(t, err)

	snap := stats.QueryStats().Stats()
	assert.Equal(t, int64(1), snap.TotalQueries)
	assert.Equal(t, int64(1), snap.TotalExecs)
	assert.Equal(t, int64(0), snap.SlowQueries)
	assert.Equal(t, int64(0), snap.Errors)
	assert.Greater(t, snap.TotalDuration, time.Duration(0))
	assert.NotEmpty(t, snap.String())

	stats.QueryStats().Reset()
	assert.Zero(t, stats.QueryStats().Stats().TotalQueries)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStatsRunnerSlowHook(t *testing.T) {
	var slow []string
	stats := NewStatsRunner(
		WithSlowThreshold(0),
		WithSlowQueryHook(func(_ context.Context, query string, _ []any, _ time.Duration) {
			slow = append(slow, query)
		}),
	)
	db, mock := mockDB(t, dialect.Postgres, WithWrapper(stats.Wrap))

	mock.ExpectQuery(`SELECT * FROM "users"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := db.Select().Table("users").Exec(context.Background())
	require.NoError(t, err)

	require.Len(t, slow, 1)
	assert.Equal(t, `SELECT * FROM "users"`, slow[0])
	assert.Equal(t, int64(1), stats.QueryStats().Stats().SlowQueries)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStatsRunnerErrors(t *testing.T) {
	stats := NewStatsRunner(WithSlowThreshold(time.Hour))
	db, mock := mockDB(t, dialect.Postgres, WithWrapper(stats.Wrap))

	mock.ExpectQuery(`SELECT * FROM "missing"`).
		WillReturnError(errors.New("relation does not exist"))

	_, err := db.Select().Table("missing").Exec(context.Background())
	require.Error(t, err)
	assert.Equal(t, int64(1), stats.QueryStats().Stats().Errors)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStatsSnapshotAverage(t *testing.T) {
	snap := StatsSnapshot{TotalQueries: 2, TotalExecs: 2, TotalDuration: 4 * time.Second}
	assert.Equal(t, time.Second, snap.AvgQueryDuration())
	assert.Zero(t, StatsSnapshot{}.AvgQueryDuration())
}

func TestSlowThresholdUpdate(t *testing.T) {
	stats := NewStatsRunner()
	assert.Equal(t, 100*time.Millisecond, stats.SlowThreshold())
	stats.SetSlowThreshold(time.Second)
	assert.Equal(t, time.Second, stats.SlowThreshold())
}
