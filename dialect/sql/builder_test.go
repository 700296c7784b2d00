package sql

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crudkit/dbal"
)

func testDB(t *testing.T, dialectName string) *Database {
	t.Helper()
	p, err := policyFor(dialectName)
	require.NoError(t, err)
	return &Database{policy: p}
}

func TestRenderSelect(t *testing.T) {
	db := testDB(t, "mysql")
	q := db.Select().Table("users").Where("age", 30, ">").Order("name asc").Limit(10)
	stmt, err := q.render()
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM `users` WHERE `age` > @where_0 ORDER BY `name` asc LIMIT 10", stmt)
	require.Len(t, q.bindings, 1)
	assert.Equal(t, "where_0", q.bindings[0].Name)
	assert.Equal(t, int64(30), q.bindings[0].Value.Native())
}

func TestRenderSelectPostgres(t *testing.T) {
	db := testDB(t, "postgres")
	q := db.Select().Table("users").Get("id", "name").Where("status", "active")
	stmt, err := q.render()
	require.NoError(t, err)
	assert.Equal(t, `SELECT "id", "name" FROM "users" WHERE "status" = :where_0`, stmt)
}

func TestRenderWhereGroup(t *testing.T) {
	db := testDB(t, "mysql")
	q := db.Select().Table("t").WhereGroup(func(q *Query) {
		q.Where("a", 1)
		q.OrWhere("b", 2)
	})
	stmt, err := q.render()
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM `t` WHERE ( `a` = @where_0 OR `b` = @where_1 )", stmt)
}

func TestRenderNestedGroups(t *testing.T) {
	db := testDB(t, "mysql")
	q := db.Select().Table("t").
		Where("x", 0).
		WhereGroup(func(q *Query) {
			q.Where("a", 1)
			q.OrWhereGroup(func(q *Query) {
				q.Where("b", 2)
				q.Where("c", 3)
			})
		})
	stmt, err := q.render()
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT * FROM `t` WHERE `x` = @where_0 AND ( `a` = @where_1 OR ( `b` = @where_2 AND `c` = @where_3 ) )",
		stmt)
	where := stmt[strings.Index(stmt, "WHERE"):]
	assert.Equal(t, strings.Count(where, "("), strings.Count(where, ")"))
}

func TestRenderEmptyGroup(t *testing.T) {
	db := testDB(t, "mysql")
	q := db.Select().Table("t").Where("a", 1).WhereGroup(func(*Query) {})
	stmt, err := q.render()
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM `t` WHERE `a` = @where_0 AND 1=1", stmt)
	assert.Len(t, q.bindings, 1)
}

func TestWhereInEmptyIsNoop(t *testing.T) {
	db := testDB(t, "mysql")
	base := db.Select().Table("t").Where("a", 1)
	with := db.Select().Table("t").Where("a", 1).WhereIn("b", nil)
	baseStmt, err := base.render()
	require.NoError(t, err)
	withStmt, err := with.render()
	require.NoError(t, err)
	assert.Equal(t, baseStmt, withStmt)
}

func TestWhereIn(t *testing.T) {
	db := testDB(t, "mysql")
	q := db.Select().Table("t").WhereIn("id", []any{1, 2, 3})
	stmt, err := q.render()
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM `t` WHERE `id` IN (@where_0,@where_1,@where_2)", stmt)
	assert.Len(t, q.bindings, 3)
}

func TestWhereNull(t *testing.T) {
	db := testDB(t, "mysql")

	q := db.Select().Table("t").Where("deleted_at", nil)
	stmt, err := q.render()
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM `t` WHERE `deleted_at` IS NULL", stmt)
	assert.Empty(t, q.bindings)

	q = db.Select().Table("t").Where("deleted_at", nil, "!=")
	stmt, err = q.render()
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM `t` WHERE `deleted_at` IS NOT NULL", stmt)
	assert.Empty(t, q.bindings)
}

func TestBindingNamesDistinct(t *testing.T) {
	db := testDB(t, "mysql")
	q := db.Update().Table("t").
		Set("name", "a").
		Set("name", "b").
		Where("name", "c").
		Where("name", "d", "!=").
		WhereIn("name", []any{"e", "f"})
	_, err := q.render()
	require.NoError(t, err)
	seen := map[string]bool{}
	for _, b := range q.bindings {
		assert.False(t, seen[b.Name], "duplicate binding name %s", b.Name)
		seen[b.Name] = true
	}
	assert.Len(t, q.bindings, 6)
}

func TestBindingNameSanitization(t *testing.T) {
	db := testDB(t, "mysql")
	q := db.Insert().Table("t").Set("user.first-name", "Tom")
	_, err := q.render()
	require.NoError(t, err)
	require.Len(t, q.bindings, 1)
	assert.Equal(t, "user_dot_first_dash_name_0", q.bindings[0].Name)
}

func TestRenderInsert(t *testing.T) {
	db := testDB(t, "mysql")
	q := db.Insert().Table("users").Set("name", "Tom").Set("age", 30)
	stmt, err := q.render()
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO `users` (`name`,`age`) VALUES (@name_0,@age_1)", stmt)
}

func TestRenderUpdate(t *testing.T) {
	db := testDB(t, "mysql")
	q := db.Update().Table("users").Set("name", "Tom").Where("id", 7)
	stmt, err := q.render()
	require.NoError(t, err)
	assert.Equal(t, "UPDATE `users` SET `name` = @name_0 WHERE `id` = @where_1", stmt)
}

func TestRenderDelete(t *testing.T) {
	db := testDB(t, "mysql")
	q := db.Delete().Table("users").Where("id", 7)
	stmt, err := q.render()
	require.NoError(t, err)
	assert.Equal(t, "DELETE FROM `users` WHERE `id` = @where_0", stmt)
}

func TestRenderJoins(t *testing.T) {
	db := testDB(t, "mysql")
	q := db.Select().Table("users").
		LeftJoin("posts", "users.id", "posts.user_id").
		Where("posts.id", nil, "!=")
	stmt, err := q.render()
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT * FROM `users` LEFT JOIN `posts` ON `users`.`id` = `posts`.`user_id` WHERE `posts`.`id` IS NOT NULL",
		stmt)
}

func TestRenderDistinctGroupByOffset(t *testing.T) {
	db := testDB(t, "mysql")
	q := db.Select().Table("t").Get("city").Distinct().GroupBy("region").GroupBy("city").
		Limit(5).Limit(7).Offset(1).Offset(2)
	stmt, err := q.render()
	require.NoError(t, err)
	// GroupBy, Limit and Offset overwrite; the last value wins.
	assert.Equal(t, "SELECT DISTINCT `city` FROM `t` GROUP BY `city` LIMIT 7 OFFSET 2", stmt)
}

func TestQuoteHeuristics(t *testing.T) {
	db := testDB(t, "mysql")
	tests := []struct {
		name  string
		field string
		want  string
	}{
		{"bare", "name", "`name`"},
		{"function call passes through", "count(id)", "count(id)"},
		{"star passes through", "*", "*"},
		{"aliased with as", "name as n", "`name` AS `n`"},
		{"aliased without as", "name n", "`name` `n`"},
		{"multi token passes through", "a b c d", "a b c d"},
		{"dotted", "users.id", "`users`.`id`"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := db.Select()
			assert.Equal(t, tt.want, q.quoteIdent(tt.field))
		})
	}
}

func TestUnknownQueryType(t *testing.T) {
	db := testDB(t, "mysql")
	_, err := db.NewQuery("upsert")
	require.ErrorIs(t, err, dbal.ErrUnknownQueryType)
	assert.True(t, dbal.IsConfiguration(err))

	// The type is case-insensitive.
	q, err := db.NewQuery("SELECT")
	require.NoError(t, err)
	assert.Equal(t, QuerySelect, q.Type())
}

func TestRenderRaw(t *testing.T) {
	db := testDB(t, "mysql")
	q := db.Raw("OPTIMIZE TABLE `users`")
	stmt, err := q.render()
	require.NoError(t, err)
	assert.Equal(t, "OPTIMIZE TABLE `users`", stmt)
	assert.Empty(t, q.bindings)
}
