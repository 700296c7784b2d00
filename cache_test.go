package dbal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheKey(t *testing.T) {
	key := CacheKey{Table: "users", Statement: "SELECT 1", Args: "[7]"}
	assert.Equal(t, "users:SELECT 1:[7]", key.String())
	assert.Equal(t, "users:", TablePrefix("users"))
}

func TestEncodeDecodeRows(t *testing.T) {
	rs := RowSet{
		Columns: []string{"id", "name"},
		Rows: []map[string]any{
			{"id": int64(1), "name": "Ann"},
			{"id": int64(2), "name": "Bob"},
		},
	}
	data, err := EncodeRows(rs)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	got, err := DecodeRows(data)
	require.NoError(t, err)
	assert.Equal(t, rs.Columns, got.Columns)
	require.Len(t, got.Rows, 2)
	assert.Equal(t, "Ann", got.Rows[0]["name"])
	assert.Equal(t, "Bob", got.Rows[1]["name"])
}

func TestDecodeRowsCorrupt(t *testing.T) {
	_, err := DecodeRows([]byte("not msgpack"))
	require.Error(t, err)
}

func TestLRUCache(t *testing.T) {
	ctx := context.Background()
	c := NewLRUCache(8, time.Minute)

	v, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, v)

	require.NoError(t, c.Set(ctx, "users:a", []byte("1"), 0))
	require.NoError(t, c.Set(ctx, "users:b", []byte("2"), 0))
	require.NoError(t, c.Set(ctx, "posts:a", []byte("3"), 0))

	v, err = c.Get(ctx, "users:a")
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), v)

	require.NoError(t, c.Delete(ctx, "users:a"))
	v, err = c.Get(ctx, "users:a")
	require.NoError(t, err)
	assert.Nil(t, v)

	require.NoError(t, c.DeletePrefix(ctx, TablePrefix("users")))
	v, err = c.Get(ctx, "users:b")
	require.NoError(t, err)
	assert.Nil(t, v)
	v, err = c.Get(ctx, "posts:a")
	require.NoError(t, err)
	assert.Equal(t, []byte("3"), v)

	require.NoError(t, c.Clear(ctx))
	v, err = c.Get(ctx, "posts:a")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestLRUCacheEviction(t *testing.T) {
	ctx := context.Background()
	c := NewLRUCache(2, time.Minute)
	require.NoError(t, c.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, c.Set(ctx, "b", []byte("2"), 0))
	require.NoError(t, c.Set(ctx, "c", []byte("3"), 0))

	v, err := c.Get(ctx, "a")
	require.NoError(t, err)
	assert.Nil(t, v)
	v, err = c.Get(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, []byte("3"), v)
}
