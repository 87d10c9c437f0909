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

var campaignColumns = []string{
	"id", "name", "subject", "body_template", "segment", "status", "kind", "send_at", "cron_schedule", "timezone",
	"delay_minutes", "next_run_at", "last_run_at", "is_running", "sent_count", "created_date", "last_modified_date",
}

// CampaignRepository handles campaigns and the dispatcher's execution lock
type CampaignRepository struct {
	db *sql.DB
}

// NewCampaignRepository creates a new CampaignRepository
func NewCampaignRepository(db *sql.DB) *CampaignRepository {
	return &CampaignRepository{db: db}
}

func scanCampaign(row Scannable) (*models.Campaign, error) {
	var c models.Campaign
	var sendAt, nextRunAt, lastRunAt sql.NullTime
	if err := row.Scan(&c.ID, &c.Name, &c.Subject, &c.BodyTemplate, &c.Segment, &c.Status, &c.Kind, &sendAt, &c.CronSchedule,
		&c.Timezone, &c.DelayMinutes, &nextRunAt, &lastRunAt, &c.IsRunning, &c.SentCount, &c.CreatedDate, &c.LastModifiedDate); err != nil {
		return nil, err
	}
	c.SendAt = nullTimePtr(sendAt)
	c.NextRunAt = nullTimePtr(nextRunAt)
	c.LastRunAt = nullTimePtr(lastRunAt)
	return &c, nil
}

func (r *CampaignRepository) list(ctx context.Context, q query.QueryResult) ([]*models.Campaign, error) {
	rows, err := r.db.QueryContext(ctx, q.SQL, q.Params...)
	if err != nil {
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}
	defer rows.Close()

	campaigns := make([]*models.Campaign, 0)
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, rows.Err()
}

// List returns all campaigns, newest first
func (r *CampaignRepository) List(ctx context.Context) ([]*models.Campaign, error) {
	return r.list(ctx, query.From(constants.TableCampaign).Select(campaignColumns...).OrderBy("created_date", "DESC").Build())
}

// ListDue returns scheduled campaigns that are not running and either have a
// next run at or before now, or are drips (which are checked on every poll)
func (r *CampaignRepository) ListDue(ctx context.Context, now time.Time) ([]*models.Campaign, error) {
	q := query.From(constants.TableCampaign).Select(campaignColumns...).
		Where("`status` = ?", models.CampaignScheduled).
		Where("`is_running` = ?", false).
		Where("(`kind` = ? OR (`next_run_at` IS NOT NULL AND `next_run_at` <= ?))", models.CampaignDrip, now).
		OrderBy("next_run_at", "ASC").
		Build()
	return r.list(ctx, q)
}

// GetByID retrieves a campaign
func (r *CampaignRepository) GetByID(ctx context.Context, id string) (*models.Campaign, error) {
	q := query.From(constants.TableCampaign).Select(campaignColumns...).Where("`id` = ?", id).Limit(1).Build()
	c, err := scanCampaign(r.db.QueryRowContext(ctx, q.SQL, q.Params...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Insert creates a campaign
func (r *CampaignRepository) Insert(ctx context.Context, c *models.Campaign) error {
	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, name, subject, body_template, segment, status, kind, send_at, cron_schedule, timezone,
			delay_minutes, next_run_at, last_run_at, is_running, sent_count, created_date, last_modified_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, constants.TableCampaign)
	_, err := r.db.ExecContext(ctx, stmt, c.ID, c.Name, c.Subject, c.BodyTemplate, c.Segment, c.Status, c.Kind, timeArg(c.SendAt),
		c.CronSchedule, c.Timezone, c.DelayMinutes, timeArg(c.NextRunAt), timeArg(c.LastRunAt), c.IsRunning, c.SentCount,
		c.CreatedDate, c.LastModifiedDate)
	return err
}

// Update overwrites the editable campaign fields and schedule
func (r *CampaignRepository) Update(ctx context.Context, c *models.Campaign) error {
	stmt := fmt.Sprintf(`
		UPDATE %s SET name = ?, subject = ?, body_template = ?, segment = ?, status = ?, kind = ?, send_at = ?,
			cron_schedule = ?, timezone = ?, delay_minutes = ?, next_run_at = ?, last_modified_date = ?
		WHERE id = ?`, constants.TableCampaign)
	_, err := r.db.ExecContext(ctx, stmt, c.Name, c.Subject, c.BodyTemplate, c.Segment, c.Status, c.Kind, timeArg(c.SendAt),
		c.CronSchedule, c.Timezone, c.DelayMinutes, timeArg(c.NextRunAt), c.LastModifiedDate, c.ID)
	return err
}

// AcquireExecutionLock atomically sets is_running = true if the campaign is not
// already running and is still a draft or scheduled
func (r *CampaignRepository) AcquireExecutionLock(ctx context.Context, id string) (bool, error) {
	stmt := fmt.Sprintf(`
		UPDATE %s
		SET is_running = true
		WHERE id = ? AND (is_running = false OR is_running IS NULL) AND status IN (?, ?)`, constants.TableCampaign)
	return rowsAffected(r.db.ExecContext(ctx, stmt, id, models.CampaignDraft, models.CampaignScheduled))
}

// ReleaseExecutionLock sets is_running = false
func (r *CampaignRepository) ReleaseExecutionLock(ctx context.Context, id string) error {
	stmt := fmt.Sprintf("UPDATE %s SET is_running = false WHERE id = ?", constants.TableCampaign)
	_, err := r.db.ExecContext(ctx, stmt, id)
	return err
}

// RecordRun stores the outcome of a run: new status, last/next run and sent counter.
// A campaign cancelled during the run keeps its cancelled status and has no next run.
func (r *CampaignRepository) RecordRun(ctx context.Context, id, status string, lastRun time.Time, nextRun *time.Time, sent int) error {
	stmt := fmt.Sprintf(`
		UPDATE %s SET
			status = CASE WHEN status = ? THEN status ELSE ? END,
			next_run_at = CASE WHEN status = ? THEN NULL ELSE ? END,
			last_run_at = ?, sent_count = sent_count + ?, last_modified_date = ?
		WHERE id = ?`, constants.TableCampaign)
	_, err := r.db.ExecContext(ctx, stmt, models.CampaignCancelled, status, models.CampaignCancelled, timeArg(nextRun),
		lastRun, sent, time.Now().UTC(), id)
	return err
}

// SetStatus changes campaign status
func (r *CampaignRepository) SetStatus(ctx context.Context, id, status string) error {
	stmt := fmt.Sprintf("UPDATE %s SET status = ?, last_modified_date = ? WHERE id = ?", constants.TableCampaign)
	_, err := r.db.ExecContext(ctx, stmt, status, time.Now().UTC(), id)
	return err
}

// SetRunStatus changes status on behalf of the dispatcher. It never overrides a
// cancellation and reports whether the row changed.
func (r *CampaignRepository) SetRunStatus(ctx context.Context, id, status string) (bool, error) {
	stmt := fmt.Sprintf("UPDATE %s SET status = ?, last_modified_date = ? WHERE id = ? AND status <> ?", constants.TableCampaign)
	return rowsAffected(r.db.ExecContext(ctx, stmt, status, time.Now().UTC(), id, models.CampaignCancelled))
}

// ResetRunning clears execution locks left behind by a process that died mid-run
func (r *CampaignRepository) ResetRunning(ctx context.Context) (int64, error) {
	stmt := fmt.Sprintf(`
		UPDATE %s SET is_running = false, status = CASE WHEN status = ? THEN ? ELSE status END
		WHERE is_running = true`, constants.TableCampaign)
	result, err := r.db.ExecContext(ctx, stmt, models.CampaignSending, models.CampaignScheduled)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
