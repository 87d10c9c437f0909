package services

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dapursambal/storefront/internal/domain/models"
	"github.com/dapursambal/storefront/internal/infrastructure/persistence"
	"github.com/dapursambal/storefront/pkg/constants"
	"github.com/dapursambal/storefront/pkg/errors"
	"github.com/dapursambal/storefront/pkg/expression"
	"github.com/dapursambal/storefront/pkg/utils"
)

// cronParser accepts standard 5-field schedules
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// CampaignInput is the editable part of a campaign
type CampaignInput struct {
	Name         string     `json:"name"`
	Subject      string     `json:"subject"`
	BodyTemplate string     `json:"body_template"`
	Segment      string     `json:"segment"`
	Kind         string     `json:"kind"`
	SendAt       *time.Time `json:"send_at"`
	CronSchedule string     `json:"cron_schedule"`
	Timezone     string     `json:"timezone"`
	DelayMinutes int        `json:"delay_minutes"`
}

// CampaignPreview is a rendered campaign email
type CampaignPreview struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

// CampaignService manages email campaigns. Sending is done by the CampaignDispatcher.
type CampaignService struct {
	repo        *persistence.CampaignRepository
	subscribers *persistence.SubscriberRepository
	deliveries  *persistence.DeliveryRepository
	engine      *expression.Engine
	dispatcher  *CampaignDispatcher
	siteURL     string
	now         func() time.Time
}

// NewCampaignService creates a new CampaignService
func NewCampaignService(db *sql.DB, engine *expression.Engine, dispatcher *CampaignDispatcher, siteURL string) *CampaignService {
	return &CampaignService{
		repo:        persistence.NewCampaignRepository(db),
		subscribers: persistence.NewSubscriberRepository(db),
		deliveries:  persistence.NewDeliveryRepository(db),
		engine:      engine,
		dispatcher:  dispatcher,
		siteURL:     strings.TrimRight(siteURL, "/"),
		now:         nowUTC,
	}
}

func (in *CampaignInput) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Subject = strings.TrimSpace(in.Subject)
	in.Segment = strings.TrimSpace(in.Segment)
	in.Kind = strings.TrimSpace(in.Kind)
	in.CronSchedule = strings.TrimSpace(in.CronSchedule)
	in.Timezone = strings.TrimSpace(in.Timezone)
	if in.Timezone == "" {
		in.Timezone = constants.DefaultCampaignTZ
	}
}

// ValidateCampaign checks that the schedule fields match the kind and that
// templates, cron schedule, timezone and segment all compile
func ValidateCampaign(in *CampaignInput, engine *expression.Engine) error {
	in.normalize()
	if in.Name == "" {
		return errors.NewValidationError("name", "Name is required")
	}
	if in.Subject == "" {
		return errors.NewValidationError("subject", "Subject is required")
	}
	if strings.TrimSpace(in.BodyTemplate) == "" {
		return errors.NewValidationError("body_template", "Body is required")
	}
	if _, err := time.LoadLocation(in.Timezone); err != nil {
		return errors.NewValidationError("timezone", "Unknown timezone "+in.Timezone)
	}

	switch in.Kind {
	case models.CampaignBroadcast:
		if in.CronSchedule != "" || in.DelayMinutes != 0 {
			return errors.NewValidationError("kind", "Broadcast campaigns take send_at only")
		}
	case models.CampaignRecurring:
		if in.CronSchedule == "" {
			return errors.NewValidationError("cron_schedule", "Recurring campaigns need a cron schedule")
		}
		if in.SendAt != nil || in.DelayMinutes != 0 {
			return errors.NewValidationError("kind", "Recurring campaigns take cron_schedule only")
		}
		if _, err := cronParser.Parse(in.CronSchedule); err != nil {
			return errors.NewValidationError("cron_schedule", "Invalid cron schedule: "+err.Error())
		}
	case models.CampaignDrip:
		if in.SendAt != nil || in.CronSchedule != "" {
			return errors.NewValidationError("kind", "Drip campaigns take delay_minutes only")
		}
		if in.DelayMinutes < 0 {
			return errors.NewValidationError("delay_minutes", "Delay cannot be negative")
		}
	default:
		return errors.NewValidationError("kind", "Kind must be broadcast, recurring or drip")
	}

	if _, err := compileCampaign(&models.Campaign{Subject: in.Subject, BodyTemplate: in.BodyTemplate}); err != nil {
		return err
	}
	if in.Segment != "" {
		if err := engine.Validate(in.Segment); err != nil {
			return errors.NewValidationError("segment", "Invalid segment: "+err.Error())
		}
	}
	return nil
}

// NextRun returns when a scheduled campaign should next be picked up.
// Drips have no next run: they are checked on every poll.
func NextRun(c *models.Campaign, after time.Time) (*time.Time, error) {
	switch c.Kind {
	case models.CampaignBroadcast:
		if c.SendAt == nil {
			return nil, errors.NewValidationError("send_at", "Set send_at to schedule a broadcast, or send it now")
		}
		at := c.SendAt.UTC()
		return &at, nil
	case models.CampaignRecurring:
		sched, err := cronParser.Parse(c.CronSchedule)
		if err != nil {
			return nil, errors.NewValidationError("cron_schedule", err.Error())
		}
		loc, err := time.LoadLocation(c.Timezone)
		if err != nil {
			return nil, errors.NewValidationError("timezone", err.Error())
		}
		next := sched.Next(after.In(loc)).UTC()
		return &next, nil
	}
	return nil, nil
}

// ListCampaigns returns every campaign
func (s *CampaignService) ListCampaigns(ctx context.Context) ([]*models.Campaign, error) {
	return s.repo.List(ctx)
}

// GetCampaign returns one campaign or NotFound
func (s *CampaignService) GetCampaign(ctx context.Context, id string) (*models.Campaign, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, errors.NewNotFoundError("campaign", id)
	}
	return c, nil
}

// DeliveryStats counts deliveries by status across all runs of a campaign
func (s *CampaignService) DeliveryStats(ctx context.Context, id string) (map[string]int, error) {
	if _, err := s.GetCampaign(ctx, id); err != nil {
		return nil, err
	}
	return s.deliveries.CountByStatus(ctx, id)
}

// CreateCampaign stores a new draft
func (s *CampaignService) CreateCampaign(ctx context.Context, in CampaignInput) (*models.Campaign, error) {
	if err := ValidateCampaign(&in, s.engine); err != nil {
		return nil, err
	}
	now := s.now()
	c := &models.Campaign{
		ID:               utils.GenerateID(),
		Status:           models.CampaignDraft,
		CreatedDate:      now,
		LastModifiedDate: now,
	}
	applyCampaignInput(c, in)
	if err := s.repo.Insert(ctx, c); err != nil {
		return nil, errors.NewInternalError("failed to create campaign", err)
	}
	return c, nil
}

func applyCampaignInput(c *models.Campaign, in CampaignInput) {
	c.Name = in.Name
	c.Subject = in.Subject
	c.BodyTemplate = in.BodyTemplate
	c.Segment = in.Segment
	c.Kind = in.Kind
	c.SendAt = in.SendAt
	c.CronSchedule = in.CronSchedule
	c.Timezone = in.Timezone
	c.DelayMinutes = in.DelayMinutes
}

func (s *CampaignService) editable(ctx context.Context, id string) (*models.Campaign, error) {
	c, err := s.GetCampaign(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.IsRunning {
		return nil, errors.NewConflictError("campaign", "status", "running")
	}
	if c.Status != models.CampaignDraft && c.Status != models.CampaignScheduled {
		return nil, errors.NewConflictError("campaign", "status", c.Status)
	}
	return c, nil
}

// UpdateCampaign edits a draft or scheduled campaign. A scheduled campaign
// gets its next run recomputed.
func (s *CampaignService) UpdateCampaign(ctx context.Context, id string, in CampaignInput) (*models.Campaign, error) {
	if err := ValidateCampaign(&in, s.engine); err != nil {
		return nil, err
	}
	c, err := s.editable(ctx, id)
	if err != nil {
		return nil, err
	}
	applyCampaignInput(c, in)
	c.LastModifiedDate = s.now()
	if c.Status == models.CampaignScheduled {
		if c.NextRunAt, err = NextRun(c, c.LastModifiedDate); err != nil {
			return nil, err
		}
	}
	if err := s.repo.Update(ctx, c); err != nil {
		return nil, errors.NewInternalError("failed to update campaign", err)
	}
	return c, nil
}

// Schedule hands a draft to the dispatcher
func (s *CampaignService) Schedule(ctx context.Context, id string) (*models.Campaign, error) {
	c, err := s.editable(ctx, id)
	if err != nil {
		return nil, err
	}
	c.LastModifiedDate = s.now()
	if c.NextRunAt, err = NextRun(c, c.LastModifiedDate); err != nil {
		return nil, err
	}
	c.Status = models.CampaignScheduled
	if err := s.repo.Update(ctx, c); err != nil {
		return nil, errors.NewInternalError("failed to schedule campaign", err)
	}
	return c, nil
}

// Cancel stops a campaign from being sent again
func (s *CampaignService) Cancel(ctx context.Context, id string) (*models.Campaign, error) {
	c, err := s.editable(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SetStatus(ctx, id, models.CampaignCancelled); err != nil {
		return nil, errors.NewInternalError("failed to cancel campaign", err)
	}
	c.Status = models.CampaignCancelled
	return c, nil
}

// SendNow runs a broadcast immediately and returns how many emails went out
func (s *CampaignService) SendNow(ctx context.Context, id string) (int, error) {
	c, err := s.editable(ctx, id)
	if err != nil {
		return 0, err
	}
	if c.Kind != models.CampaignBroadcast {
		return 0, errors.NewValidationError("kind", "Only broadcast campaigns can be sent now")
	}
	return s.dispatcher.Execute(ctx, c)
}

// Preview renders a campaign for one subscriber, or for a sample recipient
// when subscriberID is empty
func (s *CampaignService) Preview(ctx context.Context, id, subscriberID string) (*CampaignPreview, error) {
	c, err := s.GetCampaign(ctx, id)
	if err != nil {
		return nil, err
	}
	sub := &models.Subscriber{Name: "Sari", Email: "sari@example.com", UnsubscribeToken: "preview"}
	if subscriberID != "" {
		if sub, err = s.subscribers.GetByID(ctx, subscriberID); err != nil {
			return nil, err
		}
		if sub == nil {
			return nil, errors.NewNotFoundError("subscriber", subscriberID)
		}
	}

	compiled, err := compileCampaign(c)
	if err != nil {
		return nil, err
	}
	subject, html, err := compiled.render(recipientData(sub, s.siteURL))
	if err != nil {
		return nil, err
	}
	return &CampaignPreview{To: sub.Email, Subject: subject, HTML: html}, nil
}
