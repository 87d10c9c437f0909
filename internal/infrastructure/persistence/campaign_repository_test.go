package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dapursambal/storefront/internal/domain/models"
)

func TestCampaignRepository_LockRequiresSchedulableStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("WHERE id = \\? AND \\(is_running = false OR is_running IS NULL\\) AND status IN \\(\\?, \\?\\)").
		WithArgs("c1", models.CampaignDraft, models.CampaignScheduled).
		WillReturnResult(sqlmock.NewResult(0, 0))

	acquired, err := NewCampaignRepository(db).AcquireExecutionLock(context.Background(), "c1")
	require.NoError(t, err)
	assert.False(t, acquired)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCampaignRepository_RecordRunKeepsCancellation(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ranAt := time.Date(2026, 3, 2, 2, 0, 0, 0, time.UTC)
	next := ranAt.Add(24 * time.Hour)

	mock.ExpectExec("status = CASE WHEN status = \\? THEN status ELSE \\? END,\\s+next_run_at = CASE WHEN status = \\? THEN NULL ELSE \\? END").
		WithArgs(models.CampaignCancelled, models.CampaignScheduled, models.CampaignCancelled, next, ranAt, 12, sqlmock.AnyArg(), "c1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = NewCampaignRepository(db).RecordRun(context.Background(), "c1", models.CampaignScheduled, ranAt, &next, 12)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCampaignRepository_SetRunStatusSkipsCancelled(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("WHERE id = \\? AND status <> \\?").
		WithArgs(models.CampaignSending, sqlmock.AnyArg(), "c1", models.CampaignCancelled).
		WillReturnResult(sqlmock.NewResult(0, 0))

	changed, err := NewCampaignRepository(db).SetRunStatus(context.Background(), "c1", models.CampaignSending)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.NoError(t, mock.ExpectationsWereMet())
}
