package persistence

import (
	"context"
	"database/sql"

	"github.com/dapursambal/storefront/pkg/query"
)

// ReportRepository runs validated admin report queries
type ReportRepository struct {
	db *sql.DB
}

// NewReportRepository creates a new ReportRepository
func NewReportRepository(db *sql.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// Run executes a SELECT inside a read-only transaction. The statement must
// already have passed validation.
func (r *ReportRepository) Run(ctx context.Context, stmt string) ([]string, []query.Row, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, stmt)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	columns, result, err := query.ScanRows(rows)
	if err != nil {
		return nil, nil, err
	}
	return columns, result, nil
}
