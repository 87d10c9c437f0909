package services

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"

	"github.com/dapursambal/storefront/internal/config"
	"github.com/dapursambal/storefront/internal/domain/events"
	"github.com/dapursambal/storefront/internal/domain/models"
	"github.com/dapursambal/storefront/internal/domain/ports"
	"github.com/dapursambal/storefront/internal/infrastructure/mailer"
	"github.com/dapursambal/storefront/internal/infrastructure/persistence"
)

// NotificationService turns outbox events into transactional email
type NotificationService struct {
	subscribers *persistence.SubscriberRepository
	contacts    *persistence.ContactRepository
	orders      *persistence.OrderRepository
	experiments *ExperimentService
	mailer      ports.Mailer
	siteURL     string
	adminInbox  string
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(db *sql.DB, m ports.Mailer, experiments *ExperimentService, site config.SiteSettings, mail config.MailSettings) *NotificationService {
	return &NotificationService{
		subscribers: persistence.NewSubscriberRepository(db),
		contacts:    persistence.NewContactRepository(db),
		orders:      persistence.NewOrderRepository(db),
		experiments: experiments,
		mailer:      m,
		siteURL:     strings.TrimRight(site.BaseURL, "/"),
		adminInbox:  mail.AdminInbox,
	}
}

// Register subscribes every handler on the bus
func (s *NotificationService) Register(bus ports.EventPublisher) {
	bus.Subscribe(events.SubscriberCreated, s.onSubscriberCreated)
	bus.Subscribe(events.SubscriberConfirmed, s.onSubscriberConfirmed)
	bus.Subscribe(events.ContactReceived, s.onContactReceived)
	bus.Subscribe(events.OrderPlaced, s.onOrderPlaced)
	bus.Subscribe(events.OrderPaid, s.onOrderPaid)
}

func (s *NotificationService) send(ctx context.Context, template, to, toName string, data map[string]interface{}) error {
	subject, html, err := mailer.Render(template, data)
	if err != nil {
		return err
	}
	if err := s.mailer.Send(ctx, ports.Message{To: to, ToName: toName, Subject: subject, HTMLBody: html}); err != nil {
		return fmt.Errorf("failed to send %s to %s: %w", template, to, err)
	}
	log.Printf("📧 Sent %s to %s", template, to)
	return nil
}

func (s *NotificationService) subscriber(ctx context.Context, id string) (*models.Subscriber, error) {
	sub, err := s.subscribers.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		log.Printf("⚠️ Subscriber %s no longer exists, skipping notification", id)
	}
	return sub, nil
}

func (s *NotificationService) onSubscriberCreated(ctx context.Context, p events.Payload) error {
	sub, err := s.subscriber(ctx, p.SubscriberID)
	if err != nil || sub == nil {
		return err
	}
	if sub.Status != models.SubscriberPending {
		return nil
	}
	return s.send(ctx, mailer.TemplateConfirmation, sub.Email, sub.Name, map[string]interface{}{
		"Name":       sub.Name,
		"ConfirmURL": s.siteURL + "/api/newsletter/confirm/" + sub.ConfirmToken,
	})
}

func (s *NotificationService) onSubscriberConfirmed(ctx context.Context, p events.Payload) error {
	sub, err := s.subscriber(ctx, p.SubscriberID)
	if err != nil || sub == nil {
		return err
	}
	if sub.Status != models.SubscriberActive {
		return nil
	}
	return s.send(ctx, mailer.TemplateWelcome, sub.Email, sub.Name, map[string]interface{}{
		"Name":           sub.Name,
		"SiteURL":        s.siteURL,
		"UnsubscribeURL": s.siteURL + "/newsletter/unsubscribe/" + sub.UnsubscribeToken,
	})
}

func (s *NotificationService) onContactReceived(ctx context.Context, p events.Payload) error {
	msg, err := s.contacts.GetByID(ctx, p.ContactID)
	if err != nil {
		return err
	}
	if msg == nil {
		log.Printf("⚠️ Contact message %s no longer exists, skipping notification", p.ContactID)
		return nil
	}
	return s.send(ctx, mailer.TemplateContactNotification, s.adminInbox, "", map[string]interface{}{"Contact": msg})
}

func (s *NotificationService) order(ctx context.Context, id string) (*models.Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o == nil {
		log.Printf("⚠️ Order %s no longer exists, skipping notification", id)
		return nil, nil
	}
	if o.Items, err = s.orders.ListItems(ctx, o.ID); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *NotificationService) onOrderPlaced(ctx context.Context, p events.Payload) error {
	o, err := s.order(ctx, p.OrderID)
	if err != nil || o == nil {
		return err
	}
	return s.send(ctx, mailer.TemplateOrderNotification, s.adminInbox, "", map[string]interface{}{"Order": o})
}

func (s *NotificationService) onOrderPaid(ctx context.Context, p events.Payload) error {
	o, err := s.order(ctx, p.OrderID)
	if err != nil || o == nil {
		return err
	}
	data := map[string]interface{}{"Order": o}
	if err := s.send(ctx, mailer.TemplateOrderReceipt, o.Email, o.CustomerName, data); err != nil {
		return err
	}
	if err := s.send(ctx, mailer.TemplateOrderNotification, s.adminInbox, "", data); err != nil {
		// the receipt is out; a retry would send it twice
		log.Printf("⚠️ %v", err)
	}
	if err := s.experiments.ConvertVisitor(ctx, p.VisitorID); err != nil {
		log.Printf("⚠️ Failed to record conversion for visitor %s: %v", p.VisitorID, err)
	}
	return nil
}
