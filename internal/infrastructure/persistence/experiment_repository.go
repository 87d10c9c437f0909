package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dapursambal/storefront/internal/domain/models"
	"github.com/dapursambal/storefront/pkg/constants"
)

// VariantStats aggregates assignments for one variant
type VariantStats struct {
	VariantKey  string `json:"variant_key"`
	Exposures   int    `json:"exposures"`
	Conversions int    `json:"conversions"`
}

// ExperimentRepository handles experiments and visitor assignments
type ExperimentRepository struct {
	db *sql.DB
}

// NewExperimentRepository creates a new ExperimentRepository
func NewExperimentRepository(db *sql.DB) *ExperimentRepository {
	return &ExperimentRepository{db: db}
}

const experimentSelect = "SELECT id, exp_key, name, status, targeting, variants, created_date, last_modified_date FROM %s"

func scanExperiment(row Scannable) (*models.Experiment, error) {
	var e models.Experiment
	var variantsJSON []byte
	if err := row.Scan(&e.ID, &e.Key, &e.Name, &e.Status, &e.Targeting, &variantsJSON, &e.CreatedDate, &e.LastModifiedDate); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(variantsJSON, &e.Variants); err != nil {
		return nil, fmt.Errorf("invalid variants for experiment %s: %w", e.Key, err)
	}
	return &e, nil
}

func (r *ExperimentRepository) getBy(ctx context.Context, column, value string) (*models.Experiment, error) {
	stmt := fmt.Sprintf(experimentSelect+" WHERE %s = ? LIMIT 1", constants.TableExperiment, column)
	e, err := scanExperiment(r.db.QueryRowContext(ctx, stmt, value))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// GetByKey retrieves an experiment by its public key
func (r *ExperimentRepository) GetByKey(ctx context.Context, key string) (*models.Experiment, error) {
	return r.getBy(ctx, "exp_key", key)
}

// GetByID retrieves an experiment by id
func (r *ExperimentRepository) GetByID(ctx context.Context, id string) (*models.Experiment, error) {
	return r.getBy(ctx, "id", id)
}

// List returns all experiments, newest first
func (r *ExperimentRepository) List(ctx context.Context) ([]*models.Experiment, error) {
	stmt := fmt.Sprintf(experimentSelect+" ORDER BY created_date DESC", constants.TableExperiment)
	rows, err := r.db.QueryContext(ctx, stmt)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	experiments := make([]*models.Experiment, 0)
	for rows.Next() {
		e, err := scanExperiment(rows)
		if err != nil {
			return nil, err
		}
		experiments = append(experiments, e)
	}
	return experiments, rows.Err()
}

// KeyExists checks for another experiment using key
func (r *ExperimentRepository) KeyExists(ctx context.Context, key, excludeID string) (bool, error) {
	var exists bool
	stmt := fmt.Sprintf("SELECT EXISTS(SELECT 1 FROM %s WHERE exp_key = ? AND id != ?)", constants.TableExperiment)
	err := r.db.QueryRowContext(ctx, stmt, key, excludeID).Scan(&exists)
	return exists, err
}

// Insert creates an experiment
func (r *ExperimentRepository) Insert(ctx context.Context, e *models.Experiment) error {
	variants, err := json.Marshal(e.Variants)
	if err != nil {
		return err
	}
	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, exp_key, name, status, targeting, variants, created_date, last_modified_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, constants.TableExperiment)
	_, err = r.db.ExecContext(ctx, stmt, e.ID, e.Key, e.Name, e.Status, e.Targeting, string(variants), e.CreatedDate, e.LastModifiedDate)
	return err
}

// Update overwrites the editable experiment fields
func (r *ExperimentRepository) Update(ctx context.Context, e *models.Experiment) error {
	variants, err := json.Marshal(e.Variants)
	if err != nil {
		return err
	}
	stmt := fmt.Sprintf(`
		UPDATE %s SET exp_key = ?, name = ?, status = ?, targeting = ?, variants = ?, last_modified_date = ?
		WHERE id = ?`, constants.TableExperiment)
	_, err = r.db.ExecContext(ctx, stmt, e.Key, e.Name, e.Status, e.Targeting, string(variants), e.LastModifiedDate, e.ID)
	return err
}

// CountByStatus returns experiment counts keyed by status
func (r *ExperimentRepository) CountByStatus(ctx context.Context) (map[string]int, error) {
	return countByStatus(ctx, r.db, constants.TableExperiment)
}

// GetAssignment returns the visitor's existing assignment, if any
func (r *ExperimentRepository) GetAssignment(ctx context.Context, experimentID, visitorID string) (*models.ExperimentAssignment, error) {
	stmt := fmt.Sprintf(`
		SELECT id, experiment_id, visitor_id, variant_key, assigned_at, converted_at
		FROM %s WHERE experiment_id = ? AND visitor_id = ? LIMIT 1`, constants.TableExperimentAssignment)

	var a models.ExperimentAssignment
	var convertedAt sql.NullTime
	err := r.db.QueryRowContext(ctx, stmt, experimentID, visitorID).Scan(&a.ID, &a.ExperimentID, &a.VisitorID, &a.VariantKey, &a.AssignedAt, &convertedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	a.ConvertedAt = nullTimePtr(convertedAt)
	return &a, nil
}

// InsertAssignment stores an assignment unless the visitor already has one.
// Returns false when another request won the race.
func (r *ExperimentRepository) InsertAssignment(ctx context.Context, a *models.ExperimentAssignment) (bool, error) {
	stmt := fmt.Sprintf(`
		INSERT IGNORE INTO %s (id, experiment_id, visitor_id, variant_key, assigned_at)
		VALUES (?, ?, ?, ?, ?)`, constants.TableExperimentAssignment)
	return rowsAffected(r.db.ExecContext(ctx, stmt, a.ID, a.ExperimentID, a.VisitorID, a.VariantKey, a.AssignedAt))
}

// MarkConverted sets converted_at the first time only. Returns true if this call converted.
func (r *ExperimentRepository) MarkConverted(ctx context.Context, experimentID, visitorID string, at time.Time) (bool, error) {
	stmt := fmt.Sprintf(`
		UPDATE %s SET converted_at = ?
		WHERE experiment_id = ? AND visitor_id = ? AND converted_at IS NULL`, constants.TableExperimentAssignment)
	return rowsAffected(r.db.ExecContext(ctx, stmt, at, experimentID, visitorID))
}

// Results aggregates exposures and conversions per variant
func (r *ExperimentRepository) Results(ctx context.Context, experimentID string) ([]VariantStats, error) {
	stmt := fmt.Sprintf(`
		SELECT variant_key, COUNT(*), COUNT(converted_at)
		FROM %s WHERE experiment_id = ?
		GROUP BY variant_key`, constants.TableExperimentAssignment)
	rows, err := r.db.QueryContext(ctx, stmt, experimentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := make([]VariantStats, 0)
	for rows.Next() {
		var s VariantStats
		if err := rows.Scan(&s.VariantKey, &s.Exposures, &s.Conversions); err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}
