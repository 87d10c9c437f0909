package services

import (
	"context"
	"database/sql"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dapursambal/storefront/internal/domain/models"
	"github.com/dapursambal/storefront/internal/infrastructure/persistence"
)

// RevenueWindow is the period the dashboard revenue figure covers
const RevenueWindow = 30 * 24 * time.Hour

// DashboardSummary is the admin landing page
type DashboardSummary struct {
	Subscribers        map[string]int  `json:"subscribers"`
	UnreadContacts     int             `json:"unread_contacts"`
	Orders             map[string]int  `json:"orders"`
	Revenue30d         decimal.Decimal `json:"revenue_30d"`
	RunningExperiments int             `json:"running_experiments"`
	Outbox             map[string]int  `json:"outbox"`
	GeneratedAt        time.Time       `json:"generated_at"`
}

// DashboardService aggregates counters for the admin dashboard
type DashboardService struct {
	subscribers *persistence.SubscriberRepository
	contacts    *persistence.ContactRepository
	orders      *persistence.OrderRepository
	experiments *persistence.ExperimentRepository
	outbox      *OutboxService
	now         func() time.Time
}

// NewDashboardService creates a new DashboardService
func NewDashboardService(db *sql.DB, outbox *OutboxService) *DashboardService {
	return &DashboardService{
		subscribers: persistence.NewSubscriberRepository(db),
		contacts:    persistence.NewContactRepository(db),
		orders:      persistence.NewOrderRepository(db),
		experiments: persistence.NewExperimentRepository(db),
		outbox:      outbox,
		now:         nowUTC,
	}
}

// Summary gathers every dashboard figure
func (s *DashboardService) Summary(ctx context.Context) (*DashboardSummary, error) {
	now := s.now()
	summary := &DashboardSummary{GeneratedAt: now}

	var err error
	if summary.Subscribers, err = s.subscribers.CountByStatus(ctx); err != nil {
		return nil, err
	}
	if summary.UnreadContacts, err = s.contacts.CountUnread(ctx); err != nil {
		return nil, err
	}
	if summary.Orders, err = s.orders.CountByStatus(ctx); err != nil {
		return nil, err
	}
	if summary.Revenue30d, err = s.orders.RevenueSince(ctx, now.Add(-RevenueWindow)); err != nil {
		return nil, err
	}
	experiments, err := s.experiments.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	summary.RunningExperiments = experiments[models.ExperimentRunning]
	if summary.Outbox, err = s.outbox.Stats(ctx); err != nil {
		return nil, err
	}
	return summary, nil
}
