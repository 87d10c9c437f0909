package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dapursambal/storefront/internal/domain/models"
	"github.com/dapursambal/storefront/pkg/constants"
	"github.com/dapursambal/storefront/pkg/query"
)

var subscriberColumns = []string{
	"id", "email", "name", "source", "status", "confirm_token", "unsubscribe_token",
	"subscribed_at", "confirmed_at", "unsubscribed_at",
}

// SubscriberFilterColumns are the identifiers an admin filter expression may use
var SubscriberFilterColumns = map[string]string{
	"email":         "email",
	"name":          "name",
	"source":        "source",
	"status":        "status",
	"subscribed_at": "subscribed_at",
	"confirmed_at":  "confirmed_at",
}

// SubscriberRepository handles database operations for newsletter subscribers
type SubscriberRepository struct {
	db *sql.DB
}

// NewSubscriberRepository creates a new SubscriberRepository
func NewSubscriberRepository(db *sql.DB) *SubscriberRepository {
	return &SubscriberRepository{db: db}
}

func scanSubscriber(row Scannable) (*models.Subscriber, error) {
	var s models.Subscriber
	var confirmedAt, unsubscribedAt sql.NullTime
	if err := row.Scan(&s.ID, &s.Email, &s.Name, &s.Source, &s.Status, &s.ConfirmToken, &s.UnsubscribeToken,
		&s.SubscribedAt, &confirmedAt, &unsubscribedAt); err != nil {
		return nil, err
	}
	s.ConfirmedAt = nullTimePtr(confirmedAt)
	s.UnsubscribedAt = nullTimePtr(unsubscribedAt)
	return &s, nil
}

func (r *SubscriberRepository) getBy(ctx context.Context, column, value string) (*models.Subscriber, error) {
	q := query.From(constants.TableSubscriber).Select(subscriberColumns...).Where(fmt.Sprintf("`%s` = ?", column), value).Limit(1).Build()
	s, err := scanSubscriber(r.db.QueryRowContext(ctx, q.SQL, q.Params...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// GetByID retrieves a subscriber by id
func (r *SubscriberRepository) GetByID(ctx context.Context, id string) (*models.Subscriber, error) {
	return r.getBy(ctx, "id", id)
}

// GetByEmail retrieves a subscriber by normalized email
func (r *SubscriberRepository) GetByEmail(ctx context.Context, email string) (*models.Subscriber, error) {
	return r.getBy(ctx, "email", email)
}

// GetByConfirmToken retrieves a subscriber by double opt-in token
func (r *SubscriberRepository) GetByConfirmToken(ctx context.Context, token string) (*models.Subscriber, error) {
	return r.getBy(ctx, "confirm_token", token)
}

// GetByUnsubscribeToken retrieves a subscriber by unsubscribe token
func (r *SubscriberRepository) GetByUnsubscribeToken(ctx context.Context, token string) (*models.Subscriber, error) {
	return r.getBy(ctx, "unsubscribe_token", token)
}

// Insert creates a subscriber
func (r *SubscriberRepository) Insert(ctx context.Context, exec Executor, s *models.Subscriber) error {
	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, email, name, source, status, confirm_token, unsubscribe_token, subscribed_at, confirmed_at, unsubscribed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, constants.TableSubscriber)

	_, err := exec.ExecContext(ctx, stmt, s.ID, s.Email, s.Name, s.Source, s.Status, s.ConfirmToken, s.UnsubscribeToken,
		s.SubscribedAt, timeArg(s.ConfirmedAt), timeArg(s.UnsubscribedAt))
	return err
}

// Resubscribe puts an unsubscribed address back into pending with a fresh confirm token
func (r *SubscriberRepository) Resubscribe(ctx context.Context, exec Executor, id, name, source, confirmToken string, at time.Time) error {
	stmt := fmt.Sprintf(`
		UPDATE %s SET status = ?, name = ?, source = ?, confirm_token = ?, subscribed_at = ?, confirmed_at = NULL, unsubscribed_at = NULL
		WHERE id = ?`, constants.TableSubscriber)
	_, err := exec.ExecContext(ctx, stmt, models.SubscriberPending, name, source, confirmToken, at, id)
	return err
}

// Activate moves a pending subscriber to active. Returns false if it was not pending.
func (r *SubscriberRepository) Activate(ctx context.Context, exec Executor, id string, at time.Time) (bool, error) {
	stmt := fmt.Sprintf("UPDATE %s SET status = ?, confirmed_at = ? WHERE id = ? AND status = ?", constants.TableSubscriber)
	return rowsAffected(exec.ExecContext(ctx, stmt, models.SubscriberActive, at, id, models.SubscriberPending))
}

// Unsubscribe marks a subscriber unsubscribed. Already-unsubscribed rows are left alone.
func (r *SubscriberRepository) Unsubscribe(ctx context.Context, id string, at time.Time) error {
	stmt := fmt.Sprintf("UPDATE %s SET status = ?, unsubscribed_at = ? WHERE id = ? AND status != ?", constants.TableSubscriber)
	_, err := r.db.ExecContext(ctx, stmt, models.SubscriberUnsubscribed, at, id, models.SubscriberUnsubscribed)
	return err
}

// SubscriberQuery lists subscribers for the dashboard and campaign audiences
type SubscriberQuery struct {
	Status string
	// FilterSQL is a WHERE fragment produced by the expression walker
	FilterSQL  string
	FilterArgs []interface{}
	// ConfirmedFrom/ConfirmedTo bound confirmed_at (inclusive), used by drip campaigns
	ConfirmedFrom *time.Time
	ConfirmedTo   *time.Time
	Limit         int
	Offset        int
}

// List returns subscribers matching q, oldest first
func (r *SubscriberRepository) List(ctx context.Context, q SubscriberQuery) ([]*models.Subscriber, error) {
	b := query.From(constants.TableSubscriber).Select(subscriberColumns...)
	if q.Status != "" {
		b.Where("`status` = ?", q.Status)
	}
	if q.ConfirmedFrom != nil {
		b.Where("`confirmed_at` >= ?", *q.ConfirmedFrom)
	}
	if q.ConfirmedTo != nil {
		b.Where("`confirmed_at` <= ?", *q.ConfirmedTo)
	}
	b.WhereRaw(q.FilterSQL, q.FilterArgs)
	b.OrderBy("subscribed_at", "ASC")
	if q.Limit > 0 {
		b.Limit(q.Limit).Offset(q.Offset)
	}
	built := b.Build()

	rows, err := r.db.QueryContext(ctx, built.SQL, built.Params...)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscribers: %w", err)
	}
	defer rows.Close()

	subscribers := make([]*models.Subscriber, 0)
	for rows.Next() {
		s, err := scanSubscriber(rows)
		if err != nil {
			return nil, err
		}
		subscribers = append(subscribers, s)
	}
	return subscribers, rows.Err()
}

// CountByStatus returns subscriber counts keyed by status
func (r *SubscriberRepository) CountByStatus(ctx context.Context) (map[string]int, error) {
	return countByStatus(ctx, r.db, constants.TableSubscriber)
}

func countByStatus(ctx context.Context, db *sql.DB, table string) (map[string]int, error) {
	stmt := fmt.Sprintf("SELECT status, COUNT(*) FROM %s GROUP BY status", table)
	rows, err := db.QueryContext(ctx, stmt)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
