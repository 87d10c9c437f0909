package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dapursambal/storefront/internal/domain/models"
	"github.com/dapursambal/storefront/pkg/constants"
)

// DeliveryRepository records campaign sends. The unique
// (campaign_id, subscriber_id, run_key) key makes each send claimable once.
type DeliveryRepository struct {
	db *sql.DB
}

// NewDeliveryRepository creates a new DeliveryRepository
func NewDeliveryRepository(db *sql.DB) *DeliveryRepository {
	return &DeliveryRepository{db: db}
}

// Claim inserts the delivery row before sending. It returns false when the
// subscriber already has a row for this campaign run.
func (r *DeliveryRepository) Claim(ctx context.Context, d *models.CampaignDelivery) (bool, error) {
	stmt := fmt.Sprintf(`
		INSERT IGNORE INTO %s (id, campaign_id, subscriber_id, run_key, email, status, error, sent_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, constants.TableCampaignDelivery)
	return rowsAffected(r.db.ExecContext(ctx, stmt, d.ID, d.CampaignID, d.SubscriberID, d.RunKey, d.Email, d.Status, d.Error, d.SentAt))
}

// MarkFailed records a send error on a claimed delivery
func (r *DeliveryRepository) MarkFailed(ctx context.Context, id, errMsg string) error {
	if len(errMsg) > 1000 {
		errMsg = errMsg[:1000]
	}
	stmt := fmt.Sprintf("UPDATE %s SET status = ?, error = ? WHERE id = ?", constants.TableCampaignDelivery)
	_, err := r.db.ExecContext(ctx, stmt, models.DeliveryFailed, errMsg, id)
	return err
}

// DeliveredSubscriberIDs returns the subscribers that already have a row for a run
func (r *DeliveryRepository) DeliveredSubscriberIDs(ctx context.Context, campaignID, runKey string) (map[string]bool, error) {
	stmt := fmt.Sprintf("SELECT subscriber_id FROM %s WHERE campaign_id = ? AND run_key = ?", constants.TableCampaignDelivery)
	rows, err := r.db.QueryContext(ctx, stmt, campaignID, runKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = true
	}
	return ids, rows.Err()
}

// CountByStatus counts deliveries of a campaign keyed by status
func (r *DeliveryRepository) CountByStatus(ctx context.Context, campaignID string) (map[string]int, error) {
	stmt := fmt.Sprintf("SELECT status, COUNT(*) FROM %s WHERE campaign_id = ? GROUP BY status", constants.TableCampaignDelivery)
	rows, err := r.db.QueryContext(ctx, stmt, campaignID)
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
