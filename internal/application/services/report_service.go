package services

import (
	"context"
	"database/sql"
	"log"
	"strings"

	"github.com/dapursambal/storefront/internal/infrastructure/persistence"
	"github.com/dapursambal/storefront/pkg/constants"
	"github.com/dapursambal/storefront/pkg/errors"
	"github.com/dapursambal/storefront/pkg/query"
)

// ReportResult is the output of an admin report query
type ReportResult struct {
	SQL     string      `json:"sql"`
	Columns []string    `json:"columns"`
	Rows    []query.Row `json:"rows"`
	// Truncated is true when the row limit was reached
	Truncated bool `json:"truncated"`
}

// ReportService runs ad-hoc read-only SQL for the admin
type ReportService struct {
	repo      *persistence.ReportRepository
	validator *ReportValidator
}

// NewReportService creates a new ReportService
func NewReportService(db *sql.DB) *ReportService {
	return &ReportService{
		repo:      persistence.NewReportRepository(db),
		validator: NewReportValidator(),
	}
}

// Query validates the statement, then runs it read-only
func (s *ReportService) Query(ctx context.Context, statement string) (*ReportResult, error) {
	statement = strings.TrimSpace(statement)
	if statement == "" {
		return nil, errors.NewValidationError("sql", "SQL is required")
	}

	safe, err := s.validator.ValidateAndRewrite(statement)
	if err != nil {
		return nil, errors.NewValidationError("sql", err.Error())
	}

	columns, rows, err := s.repo.Run(ctx, safe)
	if err != nil {
		log.Printf("⚠️ Report query failed: %v", err)
		return nil, errors.NewValidationError("sql", "Query failed: "+err.Error())
	}
	return &ReportResult{
		SQL:       safe,
		Columns:   columns,
		Rows:      rows,
		Truncated: len(rows) >= constants.ReportRowLimit,
	}, nil
}
