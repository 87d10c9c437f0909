package query

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder_Build(t *testing.T) {
	q := From("products").
		Select("id", "name", "price").
		Where("`is_active` = ?", true).
		Where("`category` = ?", "sambal").
		OrderBy("name", "ASC").
		Limit(20).
		Offset(40).
		Build()

	assert.Equal(t, "SELECT `id`, `name`, `price` FROM `products` WHERE `is_active` = ? AND `category` = ? ORDER BY `name` ASC LIMIT 20 OFFSET 40", q.SQL)
	assert.Equal(t, []interface{}{true, "sambal"}, q.Params)
}

func TestBuilder_NoConditions(t *testing.T) {
	q := From("orders").Build()
	assert.Equal(t, "SELECT * FROM `orders`", q.SQL)
	assert.Empty(t, q.Params)

	// offset without limit is dropped
	q = From("orders").Offset(10).Build()
	assert.Equal(t, "SELECT * FROM `orders`", q.SQL)
}

func TestBuilder_WhereAnyLike(t *testing.T) {
	q := From("products").
		Select("id").
		WhereAnyLike([]string{"name", "description"}, []string{"bawang", "100%"}).
		Build()

	assert.Equal(t, "SELECT `id` FROM `products` WHERE (`name` LIKE ? OR `description` LIKE ? OR `name` LIKE ? OR `description` LIKE ?)", q.SQL)
	assert.Equal(t, []interface{}{"%bawang%", "%bawang%", `%100\%%`, `%100\%%`}, q.Params)

	empty := From("products").WhereAnyLike(nil, []string{"x"}).Build()
	assert.Equal(t, "SELECT * FROM `products`", empty.SQL)
}

func TestBuilder_SelectRawExpression(t *testing.T) {
	q := From("subscribers").Select("status", "COUNT(*)").Build()
	assert.Equal(t, "SELECT `status`, COUNT(*) FROM `subscribers`", q.SQL)
}

func TestScanRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT").WillReturnRows(
		sqlmock.NewRows([]string{"status", "total"}).
			AddRow([]byte("paid"), int64(3)).
			AddRow("cancelled", int64(1)),
	)

	rows, err := db.Query("SELECT status, COUNT(*) AS total FROM orders GROUP BY status")
	require.NoError(t, err)
	defer rows.Close()

	cols, result, err := ScanRows(rows)
	require.NoError(t, err)
	assert.Equal(t, []string{"status", "total"}, cols)
	require.Len(t, result, 2)
	assert.Equal(t, "paid", result[0]["status"])
	assert.Equal(t, int64(1), result[1]["total"])
}
