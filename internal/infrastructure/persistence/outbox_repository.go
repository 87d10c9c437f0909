package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dapursambal/storefront/pkg/constants"
	"github.com/dapursambal/storefront/pkg/utils"
)

// Outbox event statuses
const (
	OutboxPending   = "pending"
	OutboxProcessed = "processed"
	OutboxFailed    = "failed"
)

// OutboxEvent represents a persisted event record
type OutboxEvent struct {
	ID               string
	EventType        string
	Payload          string
	Status           string
	RetryCount       int
	ErrorMessage     string
	CreatedDate      time.Time
	ProcessedDate    sql.NullTime
	LastModifiedDate time.Time
}

// OutboxRepository stores events written in the same transaction as the
// state change that produced them
type OutboxRepository struct {
	db *sql.DB
}

// NewOutboxRepository creates a new OutboxRepository
func NewOutboxRepository(db *sql.DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

// Enqueue inserts a pending event using exec, usually the caller's transaction
func (r *OutboxRepository) Enqueue(ctx context.Context, exec Executor, eventType string, payload interface{}) (string, error) {
	id := utils.GenerateID()

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal event payload: %w", err)
	}

	now := time.Now().UTC()
	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, event_type, payload, status, retry_count, created_date, last_modified_date)
		VALUES (?, ?, ?, ?, 0, ?, ?)`, constants.TableOutboxEvent)

	if _, err := exec.ExecContext(ctx, stmt, id, eventType, string(payloadJSON), OutboxPending, now, now); err != nil {
		return "", fmt.Errorf("failed to enqueue event: %w", err)
	}
	return id, nil
}

// GetPendingEvents retrieves pending events ordered by creation time
func (r *OutboxRepository) GetPendingEvents(ctx context.Context, limit int) ([]OutboxEvent, error) {
	stmt := fmt.Sprintf(`
		SELECT id, event_type, payload, retry_count
		FROM %s
		WHERE status = ?
		ORDER BY created_date ASC
		LIMIT ?`, constants.TableOutboxEvent)

	rows, err := r.db.QueryContext(ctx, stmt, OutboxPending, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending events: %w", err)
	}
	defer rows.Close()

	var events []OutboxEvent
	for rows.Next() {
		var e OutboxEvent
		if err := rows.Scan(&e.ID, &e.EventType, &e.Payload, &e.RetryCount); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// ClaimEvent locks a pending event for processing. Returns "" when another
// worker holds it or it is no longer pending.
func (r *OutboxRepository) ClaimEvent(ctx context.Context, exec Executor, id string) (string, error) {
	stmt := fmt.Sprintf(`
		SELECT id FROM %s
		WHERE id = ? AND status = ?
		FOR UPDATE SKIP LOCKED`, constants.TableOutboxEvent)

	var claimedID string
	err := exec.QueryRowContext(ctx, stmt, id, OutboxPending).Scan(&claimedID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return claimedID, nil
}

// MarkProcessed finalizes a handled event
func (r *OutboxRepository) MarkProcessed(ctx context.Context, exec Executor, id string) error {
	now := time.Now().UTC()
	stmt := fmt.Sprintf(`
		UPDATE %s SET status = ?, processed_date = ?, last_modified_date = ?
		WHERE id = ?`, constants.TableOutboxEvent)
	_, err := exec.ExecContext(ctx, stmt, OutboxProcessed, now, now, id)
	return err
}

// MarkFailed parks an event after its last retry
func (r *OutboxRepository) MarkFailed(ctx context.Context, exec Executor, id, errMessage string) error {
	stmt := fmt.Sprintf(`
		UPDATE %s SET status = ?, error_message = ?, last_modified_date = ?
		WHERE id = ?`, constants.TableOutboxEvent)
	_, err := exec.ExecContext(ctx, stmt, OutboxFailed, errMessage, time.Now().UTC(), id)
	return err
}

// IncrementRetry stores the new retry count and the latest error
func (r *OutboxRepository) IncrementRetry(ctx context.Context, exec Executor, id string, newCount int, errMessage string) error {
	stmt := fmt.Sprintf(`
		UPDATE %s SET retry_count = ?, error_message = ?, last_modified_date = ?
		WHERE id = ?`, constants.TableOutboxEvent)
	_, err := exec.ExecContext(ctx, stmt, newCount, errMessage, time.Now().UTC(), id)
	return err
}

// CountByStatus returns outbox counts keyed by status
func (r *OutboxRepository) CountByStatus(ctx context.Context) (map[string]int, error) {
	return countByStatus(ctx, r.db, constants.TableOutboxEvent)
}

// CleanupProcessed deletes processed events older than cutoff
func (r *OutboxRepository) CleanupProcessed(ctx context.Context, cutoff time.Time) (int64, error) {
	stmt := fmt.Sprintf("DELETE FROM %s WHERE status = ? AND processed_date < ?", constants.TableOutboxEvent)
	result, err := r.db.ExecContext(ctx, stmt, OutboxProcessed, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
