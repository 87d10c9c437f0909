package services

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dapursambal/storefront/internal/domain/models"
	"github.com/dapursambal/storefront/pkg/errors"
	"github.com/dapursambal/storefront/pkg/expression"
)

func validCampaignInput() CampaignInput {
	return CampaignInput{
		Name:         "Promo Ramadan",
		Subject:      "Halo {{.Name}}, sambal baru!",
		BodyTemplate: `<p>Halo {{.Name}}</p><a href="{{.UnsubscribeURL}}">Berhenti</a>`,
		Kind:         models.CampaignBroadcast,
	}
}

func TestValidateCampaign(t *testing.T) {
	engine := expression.NewEngine()
	sendAt := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		mutate func(in *CampaignInput)
		field  string
	}{
		{name: "valid broadcast", mutate: func(in *CampaignInput) { in.SendAt = &sendAt }},
		{name: "valid recurring", mutate: func(in *CampaignInput) {
			in.Kind = models.CampaignRecurring
			in.CronSchedule = "0 9 * * 1"
		}},
		{name: "valid drip with segment", mutate: func(in *CampaignInput) {
			in.Kind = models.CampaignDrip
			in.DelayMinutes = 60
			in.Segment = `source == "footer" && days_subscribed < 30`
		}},
		{name: "missing name", mutate: func(in *CampaignInput) { in.Name = " " }, field: "name"},
		{name: "unknown kind", mutate: func(in *CampaignInput) { in.Kind = "blast" }, field: "kind"},
		{name: "broadcast with cron", mutate: func(in *CampaignInput) { in.CronSchedule = "* * * * *" }, field: "kind"},
		{name: "recurring without cron", mutate: func(in *CampaignInput) { in.Kind = models.CampaignRecurring }, field: "cron_schedule"},
		{name: "recurring bad cron", mutate: func(in *CampaignInput) {
			in.Kind = models.CampaignRecurring
			in.CronSchedule = "every monday"
		}, field: "cron_schedule"},
		{name: "recurring with seconds field", mutate: func(in *CampaignInput) {
			in.Kind = models.CampaignRecurring
			in.CronSchedule = "0 0 9 * * 1"
		}, field: "cron_schedule"},
		{name: "drip with send_at", mutate: func(in *CampaignInput) {
			in.Kind = models.CampaignDrip
			in.SendAt = &sendAt
		}, field: "kind"},
		{name: "negative delay", mutate: func(in *CampaignInput) {
			in.Kind = models.CampaignDrip
			in.DelayMinutes = -5
		}, field: "delay_minutes"},
		{name: "bad timezone", mutate: func(in *CampaignInput) { in.Timezone = "Mars/Olympus" }, field: "timezone"},
		{name: "bad body template", mutate: func(in *CampaignInput) { in.BodyTemplate = "<p>{{.Name</p>" }, field: "body_template"},
		{name: "bad subject template", mutate: func(in *CampaignInput) { in.Subject = "{{if}}" }, field: "subject"},
		{name: "bad segment", mutate: func(in *CampaignInput) { in.Segment = "source ==" }, field: "segment"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validCampaignInput()
			tt.mutate(&in)
			err := ValidateCampaign(&in, engine)
			if tt.field == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			var ve *errors.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestValidateCampaign_DefaultsTimezone(t *testing.T) {
	in := validCampaignInput()
	require.NoError(t, ValidateCampaign(&in, expression.NewEngine()))
	assert.Equal(t, "Asia/Jakarta", in.Timezone)
}

func TestNextRun(t *testing.T) {
	// Monday 2 March 2026, 08:00 in Jakarta (UTC+7)
	after := time.Date(2026, 3, 2, 1, 0, 0, 0, time.UTC)

	t.Run("recurring uses campaign timezone", func(t *testing.T) {
		c := &models.Campaign{Kind: models.CampaignRecurring, CronSchedule: "0 9 * * 1", Timezone: "Asia/Jakarta"}
		next, err := NextRun(c, after)
		require.NoError(t, err)
		require.NotNil(t, next)
		assert.Equal(t, time.Date(2026, 3, 2, 2, 0, 0, 0, time.UTC), *next)
	})

	t.Run("broadcast uses send_at", func(t *testing.T) {
		sendAt := time.Date(2026, 3, 10, 3, 0, 0, 0, time.UTC)
		next, err := NextRun(&models.Campaign{Kind: models.CampaignBroadcast, SendAt: &sendAt}, after)
		require.NoError(t, err)
		assert.Equal(t, sendAt, *next)
	})

	t.Run("broadcast without send_at cannot be scheduled", func(t *testing.T) {
		_, err := NextRun(&models.Campaign{Kind: models.CampaignBroadcast}, after)
		assert.True(t, errors.IsValidation(err))
	})

	t.Run("drip has no next run", func(t *testing.T) {
		next, err := NextRun(&models.Campaign{Kind: models.CampaignDrip}, after)
		require.NoError(t, err)
		assert.Nil(t, next)
	})
}

func TestCompiledCampaign_Message(t *testing.T) {
	c := &models.Campaign{
		Subject:      "Promo untuk {{.Name}}",
		BodyTemplate: `<p>Halo {{.Name}}</p><a href="{{.UnsubscribeURL}}">stop</a>`,
	}
	compiled, err := compileCampaign(c)
	require.NoError(t, err)

	sub := &models.Subscriber{Email: "budi@example.com", Name: "Budi <b>", UnsubscribeToken: "tok123"}
	msg, err := compiled.message(sub, "https://dapursambal.id")
	require.NoError(t, err)

	assert.Equal(t, "budi@example.com", msg.To)
	assert.Equal(t, "Promo untuk Budi <b>", msg.Subject)
	assert.Contains(t, msg.HTMLBody, "Halo Budi &lt;b&gt;")
	assert.Contains(t, msg.HTMLBody, "https://dapursambal.id/newsletter/unsubscribe/tok123")
	assert.Equal(t, "<https://dapursambal.id/api/newsletter/unsubscribe/tok123>", msg.Headers["List-Unsubscribe"])
	assert.Equal(t, "List-Unsubscribe=One-Click", msg.Headers["List-Unsubscribe-Post"])
}

func TestCompiledCampaign_UnknownFieldFails(t *testing.T) {
	compiled, err := compileCampaign(&models.Campaign{Subject: "Hi", BodyTemplate: "{{.Phone}}"})
	require.NoError(t, err)
	_, _, err = compiled.render(RecipientData{Name: "Sari"})
	assert.Error(t, err)
}

func TestRunKey(t *testing.T) {
	now := time.Date(2026, 3, 2, 2, 0, 30, 0, time.UTC)
	next := time.Date(2026, 3, 2, 2, 0, 0, 0, time.UTC)

	assert.Equal(t, "once", RunKey(&models.Campaign{Kind: models.CampaignBroadcast}, now))
	assert.Equal(t, "drip", RunKey(&models.Campaign{Kind: models.CampaignDrip}, now))
	assert.Equal(t, "20260302T0200", RunKey(&models.Campaign{Kind: models.CampaignRecurring, NextRunAt: &next}, now))
}

var campaignTestColumns = []string{
	"id", "name", "subject", "body_template", "segment", "status", "kind", "send_at", "cron_schedule", "timezone",
	"delay_minutes", "next_run_at", "last_run_at", "is_running", "sent_count", "created_date", "last_modified_date",
}

func campaignRow(mock sqlmock.Sqlmock, c *models.Campaign) *sqlmock.Rows {
	return mock.NewRows(campaignTestColumns).AddRow(c.ID, c.Name, c.Subject, c.BodyTemplate, c.Segment, c.Status, c.Kind,
		nil, c.CronSchedule, c.Timezone, c.DelayMinutes, nil, nil, c.IsRunning, c.SentCount, c.CreatedDate, c.LastModifiedDate)
}

func TestCampaignService_Preview(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	c := &models.Campaign{ID: "c1", Name: "Promo", Subject: "Untuk {{.Name}}", BodyTemplate: "<p>{{.Email}}</p>",
		Status: models.CampaignDraft, Kind: models.CampaignBroadcast, Timezone: "Asia/Jakarta"}
	mock.ExpectQuery("FROM `campaigns` WHERE `id` = \\?").WithArgs("c1").WillReturnRows(campaignRow(mock, c))

	svc := NewCampaignService(db, expression.NewEngine(), nil, "https://dapursambal.id/")
	preview, err := svc.Preview(context.Background(), "c1", "")
	require.NoError(t, err)
	assert.Equal(t, "Untuk Sari", preview.Subject)
	assert.Equal(t, "<p>sari@example.com</p>", preview.HTML)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCampaignService_SendNowRejectsSentCampaign(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	c := &models.Campaign{ID: "c1", Name: "Promo", Subject: "Hi", BodyTemplate: "x",
		Status: models.CampaignSent, Kind: models.CampaignBroadcast, Timezone: "Asia/Jakarta"}
	mock.ExpectQuery("FROM `campaigns` WHERE `id` = \\?").WithArgs("c1").WillReturnRows(campaignRow(mock, c))

	svc := NewCampaignService(db, expression.NewEngine(), nil, "https://dapursambal.id")
	_, err = svc.SendNow(context.Background(), "c1")
	assert.True(t, errors.IsConflict(err))
}

func TestCampaignService_ScheduleRecurring(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	c := &models.Campaign{ID: "c1", Name: "Mingguan", Subject: "Hi", BodyTemplate: "x",
		Status: models.CampaignDraft, Kind: models.CampaignRecurring, CronSchedule: "0 9 * * 1", Timezone: "Asia/Jakarta"}
	mock.ExpectQuery("FROM `campaigns` WHERE `id` = \\?").WithArgs("c1").WillReturnRows(campaignRow(mock, c))
	mock.ExpectExec("UPDATE campaigns SET name = \\?").WillReturnResult(sqlmock.NewResult(0, 1))

	svc := NewCampaignService(db, expression.NewEngine(), nil, "https://dapursambal.id")
	svc.now = func() time.Time { return time.Date(2026, 3, 2, 1, 0, 0, 0, time.UTC) }

	scheduled, err := svc.Schedule(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, models.CampaignScheduled, scheduled.Status)
	require.NotNil(t, scheduled.NextRunAt)
	assert.Equal(t, time.Date(2026, 3, 2, 2, 0, 0, 0, time.UTC), *scheduled.NextRunAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}
