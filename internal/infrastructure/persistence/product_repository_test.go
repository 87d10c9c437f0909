package persistence

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func productRow(mock sqlmock.Sqlmock) *sqlmock.Rows {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	return mock.NewRows(productColumns).
		AddRow("p1", "sambal-bawang", "Sambal Bawang", "Shallot sambal", "sambal", 3, "45000", 200, 12, true, false, "", now, now)
}

func TestProductRepository_GetBySlug(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("FROM `products` WHERE `slug` = \\?").
		WithArgs("sambal-bawang").
		WillReturnRows(productRow(mock))

	p, err := NewProductRepository(db).GetBySlug(context.Background(), "sambal-bawang")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "Sambal Bawang", p.Name)
	assert.True(t, p.Price.Equal(decimal.NewFromInt(45000)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepository_GetBySlug_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("FROM `products`").WillReturnRows(mock.NewRows(productColumns))

	p, err := NewProductRepository(db).GetBySlug(context.Background(), "missing")
	assert.NoError(t, err)
	assert.Nil(t, p)
}

func TestProductRepository_ReserveStock(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	stmt := regexp.QuoteMeta("UPDATE products SET stock = stock - ? WHERE id = ? AND stock >= ?")
	mock.ExpectExec(stmt).WithArgs(2, "p1", 2).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(stmt).WithArgs(99, "p1", 99).WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewProductRepository(db)
	ok, err := repo.ReserveStock(context.Background(), db, "p1", 2)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.ReserveStock(context.Background(), db, "p1", 99)
	require.NoError(t, err)
	assert.False(t, ok, "insufficient stock must not reserve")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepository_ListFiltersActive(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("FROM `products` WHERE `is_active` = \\? AND `category` = \\?").
		WithArgs(true, "sambal").
		WillReturnRows(productRow(mock))

	products, err := NewProductRepository(db).List(context.Background(), ProductFilter{Category: "sambal"})
	require.NoError(t, err)
	assert.Len(t, products, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}
