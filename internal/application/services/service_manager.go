package services

import (
	"context"

	"github.com/dapursambal/storefront/internal/config"
	"github.com/dapursambal/storefront/internal/domain/ports"
	"github.com/dapursambal/storefront/internal/infrastructure/database"
	"github.com/dapursambal/storefront/internal/infrastructure/persistence"
	"github.com/dapursambal/storefront/pkg/auth"
	"github.com/dapursambal/storefront/pkg/constants"
	"github.com/dapursambal/storefront/pkg/expression"
)

// ServiceManager orchestrates all services with dependency injection
type ServiceManager struct {
	db *database.Connection

	TxManager     *persistence.TransactionManager
	EventBus      *EventBus
	Outbox        *OutboxService
	Catalog       *CatalogService
	Content       *ContentService
	Search        *SearchService
	Leads         *LeadsService
	Orders        *OrderService
	Experiments   *ExperimentService
	Campaigns     *CampaignService
	Dispatcher    *CampaignDispatcher
	Notifications *NotificationService
	Auth          *AuthService
	Dashboard     *DashboardService
	Reports       *ReportService
	FloodGuard    *FloodGuard
}

// NewServiceManager creates a new service manager with all dependencies wired
func NewServiceManager(db *database.Connection, settings *config.Settings, mailer ports.Mailer, gateway ports.PaymentGateway) *ServiceManager {
	sm := &ServiceManager{db: db}
	sqlDB := db.DB()
	engine := expression.NewEngine()

	// Initialize services in dependency order
	sm.TxManager = persistence.NewTransactionManager(sqlDB)
	sm.EventBus = NewEventBus()
	sm.Outbox = NewOutboxService(sqlDB, sm.EventBus)

	sm.Catalog = NewCatalogService(sqlDB)
	sm.Content = NewContentService(sqlDB, settings.Site.BaseURL)
	sm.Search = NewSearchService(sqlDB)
	sm.Leads = NewLeadsService(sqlDB, sm.TxManager, sm.Outbox)
	sm.Orders = NewOrderService(sqlDB, sm.Catalog, sm.Leads, gateway, sm.TxManager, sm.Outbox, settings.Site)
	sm.Experiments = NewExperimentService(sqlDB, engine)

	sm.Dispatcher = NewCampaignDispatcher(sqlDB, engine, mailer, settings.Site.BaseURL, settings.Site.CampaignPollInterval)
	sm.Campaigns = NewCampaignService(sqlDB, engine, sm.Dispatcher, settings.Site.BaseURL)

	sm.Auth = NewAuthService(sqlDB, auth.NewTokenIssuer(settings.Auth.JWTSecret, settings.Auth.TokenTTL))
	sm.Dashboard = NewDashboardService(sqlDB, sm.Outbox)
	sm.Reports = NewReportService(sqlDB)
	sm.FloodGuard = NewFloodGuard(settings.Site.FormLimit, settings.Site.FormWindow)

	// Event handlers run from the outbox worker
	sm.Notifications = NewNotificationService(sqlDB, mailer, sm.Experiments, settings.Site, settings.Mail)
	sm.Notifications.Register(sm.EventBus)

	return sm
}

// StartWorkers starts the outbox worker and the campaign dispatcher.
// Call this during server startup.
func (sm *ServiceManager) StartWorkers() {
	sm.Outbox.StartWorker(constants.OutboxPollInterval)
	go sm.Dispatcher.Start()
}

// StopWorkers stops background workers gracefully. Call this during server shutdown.
func (sm *ServiceManager) StopWorkers() {
	sm.Dispatcher.Stop()
	sm.Outbox.StopWorker()
}

// Ping checks the database connection for health probes
func (sm *ServiceManager) Ping(ctx context.Context) error {
	return sm.db.DB().PingContext(ctx)
}
