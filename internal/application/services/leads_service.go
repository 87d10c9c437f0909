package services

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/dapursambal/storefront/internal/domain/events"
	"github.com/dapursambal/storefront/internal/domain/models"
	"github.com/dapursambal/storefront/internal/infrastructure/metrics"
	"github.com/dapursambal/storefront/internal/infrastructure/persistence"
	"github.com/dapursambal/storefront/pkg/constants"
	"github.com/dapursambal/storefront/pkg/errors"
	"github.com/dapursambal/storefront/pkg/expression"
	"github.com/dapursambal/storefront/pkg/forms"
	"github.com/dapursambal/storefront/pkg/utils"
)

const maxNameRunes = 120

// SubscribeInput is the newsletter form payload. Website is a honeypot.
type SubscribeInput struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Source  string `json:"source"`
	Website string `json:"website"`
}

// ContactInput is the contact form payload. Website is a honeypot.
type ContactInput struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Subject string `json:"subject"`
	Message string `json:"message"`
	Website string `json:"website"`
}

// LeadsService owns newsletter subscriptions and contact messages
type LeadsService struct {
	subscribers *persistence.SubscriberRepository
	contacts    *persistence.ContactRepository
	tx          *persistence.TransactionManager
	outbox      *OutboxService
	now         func() time.Time
}

// NewLeadsService creates a new LeadsService
func NewLeadsService(db *sql.DB, tx *persistence.TransactionManager, outbox *OutboxService) *LeadsService {
	return &LeadsService{
		subscribers: persistence.NewSubscriberRepository(db),
		contacts:    persistence.NewContactRepository(db),
		tx:          tx,
		outbox:      outbox,
		now:         nowUTC,
	}
}

func cleanName(name string) (string, error) {
	name = forms.TitleName(name)
	if forms.RuneLen(name) > maxNameRunes {
		return "", errors.NewValidationError("name", fmt.Sprintf("Name must be at most %d characters", maxNameRunes))
	}
	return name, nil
}

func cleanEmail(email string) (string, error) {
	email = forms.NormalizeEmail(email)
	if email == "" {
		return "", errors.NewValidationError("email", "Email is required")
	}
	if !forms.IsValidEmail(email) {
		return "", errors.NewValidationError("email", "Email address is not valid")
	}
	return email, nil
}

// Subscribe adds an address to the newsletter in pending state and queues the
// confirmation mail. Returns nil for honeypot hits.
func (s *LeadsService) Subscribe(ctx context.Context, in SubscribeInput) (*models.Subscriber, error) {
	if strings.TrimSpace(in.Website) != "" {
		log.Printf("⏭️ Newsletter honeypot triggered, dropping submission")
		metrics.FormSubmissions.WithLabelValues("newsletter", "honeypot").Inc()
		return nil, nil
	}

	email, err := cleanEmail(in.Email)
	if err != nil {
		return nil, err
	}
	name, err := cleanName(in.Name)
	if err != nil {
		return nil, err
	}
	source := strings.ToLower(strings.TrimSpace(in.Source))
	if source == "" {
		source = models.SourceFooter
	}
	if !models.ValidSources[source] {
		return nil, errors.NewValidationError("source", "Unknown signup source")
	}

	existing, err := s.subscribers.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	now := s.now()

	if existing != nil && existing.Status == models.SubscriberActive {
		metrics.FormSubmissions.WithLabelValues("newsletter", "duplicate").Inc()
		return existing, nil
	}

	var result *models.Subscriber
	err = s.tx.WithTransaction(ctx, func(tx *sql.Tx) error {
		switch {
		case existing == nil:
			result = &models.Subscriber{
				ID:               utils.GenerateID(),
				Email:            email,
				Name:             name,
				Source:           source,
				Status:           models.SubscriberPending,
				ConfirmToken:     utils.GenerateToken(),
				UnsubscribeToken: utils.GenerateToken(),
				SubscribedAt:     now,
			}
			if err := s.subscribers.Insert(ctx, tx, result); err != nil {
				return err
			}
		case existing.Status == models.SubscriberUnsubscribed:
			existing.ConfirmToken = utils.GenerateToken()
			if name != "" {
				existing.Name = name
			}
			existing.Source = source
			existing.Status = models.SubscriberPending
			existing.SubscribedAt = now
			existing.ConfirmedAt = nil
			existing.UnsubscribedAt = nil
			if err := s.subscribers.Resubscribe(ctx, tx, existing.ID, existing.Name, source, existing.ConfirmToken, now); err != nil {
				return err
			}
			result = existing
		default:
			// still pending: send the confirmation again
			result = existing
		}
		return s.outbox.Enqueue(ctx, tx, events.SubscriberCreated, events.Payload{SubscriberID: result.ID})
	})
	if err != nil {
		if isDuplicateKey(err) {
			// a concurrent request inserted the same address
			return s.subscribers.GetByEmail(ctx, email)
		}
		return nil, err
	}

	metrics.FormSubmissions.WithLabelValues("newsletter", "accepted").Inc()
	log.Printf("✅ Newsletter signup %s (%s)", result.Email, result.Status)
	return result, nil
}

// Confirm activates the subscriber owning token
func (s *LeadsService) Confirm(ctx context.Context, token string) (*models.Subscriber, error) {
	sub, err := s.subscribers.GetByConfirmToken(ctx, strings.TrimSpace(token))
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, errors.NewNotFoundError("confirmation", token)
	}
	switch sub.Status {
	case models.SubscriberActive:
		return sub, nil
	case models.SubscriberUnsubscribed:
		return nil, errors.NewValidationError("token", "This subscription was cancelled; please sign up again")
	}

	now := s.now()
	err = s.tx.WithTransaction(ctx, func(tx *sql.Tx) error {
		activated, err := s.subscribers.Activate(ctx, tx, sub.ID, now)
		if err != nil {
			return err
		}
		if !activated {
			return nil
		}
		return s.outbox.Enqueue(ctx, tx, events.SubscriberConfirmed, events.Payload{SubscriberID: sub.ID})
	})
	if err != nil {
		return nil, err
	}

	sub.Status = models.SubscriberActive
	sub.ConfirmedAt = &now
	log.Printf("✅ Subscriber confirmed: %s", sub.Email)
	return sub, nil
}

// Unsubscribe opts the token's subscriber out. Repeated calls succeed.
func (s *LeadsService) Unsubscribe(ctx context.Context, token string) error {
	sub, err := s.subscribers.GetByUnsubscribeToken(ctx, strings.TrimSpace(token))
	if err != nil {
		return err
	}
	if sub == nil {
		return errors.NewNotFoundError("subscription", token)
	}
	if sub.Status == models.SubscriberUnsubscribed {
		return nil
	}
	if err := s.subscribers.Unsubscribe(ctx, sub.ID, s.now()); err != nil {
		return err
	}
	log.Printf("👋 Unsubscribed: %s", sub.Email)
	return nil
}

// SubmitContact stores a contact form message and queues the admin notification.
// Returns nil for honeypot hits.
func (s *LeadsService) SubmitContact(ctx context.Context, in ContactInput) (*models.ContactMessage, error) {
	if strings.TrimSpace(in.Website) != "" {
		log.Printf("⏭️ Contact honeypot triggered, dropping submission")
		metrics.FormSubmissions.WithLabelValues("contact", "honeypot").Inc()
		return nil, nil
	}

	msg, err := buildContact(in)
	if err != nil {
		metrics.FormSubmissions.WithLabelValues("contact", "invalid").Inc()
		return nil, err
	}
	msg.ID = utils.GenerateID()
	msg.CreatedDate = s.now()

	err = s.tx.WithTransaction(ctx, func(tx *sql.Tx) error {
		if err := s.contacts.Insert(ctx, tx, msg); err != nil {
			return err
		}
		return s.outbox.Enqueue(ctx, tx, events.ContactReceived, events.Payload{ContactID: msg.ID})
	})
	if err != nil {
		return nil, err
	}

	metrics.FormSubmissions.WithLabelValues("contact", "accepted").Inc()
	log.Printf("✅ Contact message received from %s", msg.Email)
	return msg, nil
}

func buildContact(in ContactInput) (*models.ContactMessage, error) {
	name, err := cleanName(in.Name)
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, errors.NewValidationError("name", "Name is required")
	}
	email, err := cleanEmail(in.Email)
	if err != nil {
		return nil, err
	}

	var phone string
	if strings.TrimSpace(in.Phone) != "" {
		normalized, ok := forms.NormalizePhone(in.Phone)
		if !ok {
			return nil, errors.NewValidationError("phone", "Phone must be an Indonesian number, e.g. 0812xxxxxxx")
		}
		phone = normalized
	}

	body := forms.StripMarkup(in.Message)
	if n := forms.RuneLen(body); n < constants.ContactMessageMinRunes || n > constants.ContactMessageMaxRunes {
		return nil, errors.NewValidationError("message", fmt.Sprintf("Message must be between %d and %d characters",
			constants.ContactMessageMinRunes, constants.ContactMessageMaxRunes))
	}

	subject := forms.StripMarkup(in.Subject)
	if subject == "" {
		subject = "Pesan dari website"
	}
	if forms.RuneLen(subject) > 200 {
		return nil, errors.NewValidationError("subject", "Subject must be at most 200 characters")
	}

	return &models.ContactMessage{
		Name:    name,
		Email:   email,
		Phone:   phone,
		Subject: subject,
		Message: body,
	}, nil
}

// GetSubscriber returns a subscriber by id
func (s *LeadsService) GetSubscriber(ctx context.Context, id string) (*models.Subscriber, error) {
	sub, err := s.subscribers.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, errors.NewNotFoundError("subscriber", id)
	}
	return sub, nil
}

// SubscriberListRequest is the admin subscriber list query
type SubscriberListRequest struct {
	Status string
	// Filter is an expression such as `source == "popup" && contains(email, "@gmail")`
	Filter string
	Limit  int
	Offset int
}

func (s *LeadsService) subscriberQuery(req SubscriberListRequest) (persistence.SubscriberQuery, error) {
	q := persistence.SubscriberQuery{Status: req.Status, Limit: req.Limit, Offset: req.Offset}
	if req.Status != "" && req.Status != models.SubscriberPending && req.Status != models.SubscriberActive && req.Status != models.SubscriberUnsubscribed {
		return q, errors.NewValidationError("status", "Unknown subscriber status")
	}
	if strings.TrimSpace(req.Filter) != "" {
		where, args, err := expression.ToSQL(req.Filter, persistence.SubscriberFilterColumns)
		if err != nil {
			return q, errors.NewValidationError("filter", err.Error())
		}
		q.FilterSQL = where
		q.FilterArgs = args
	}
	return q, nil
}

// ListSubscribers returns one page of subscribers for the dashboard
func (s *LeadsService) ListSubscribers(ctx context.Context, req SubscriberListRequest) ([]*models.Subscriber, error) {
	req.Limit, req.Offset = clampPage(req.Limit, req.Offset, 200)
	q, err := s.subscriberQuery(req)
	if err != nil {
		return nil, err
	}
	return s.subscribers.List(ctx, q)
}

// ExportSubscribersCSV writes every matching subscriber as CSV
func (s *LeadsService) ExportSubscribersCSV(ctx context.Context, req SubscriberListRequest, w io.Writer) error {
	req.Limit, req.Offset = 0, 0
	q, err := s.subscriberQuery(req)
	if err != nil {
		return err
	}
	subs, err := s.subscribers.List(ctx, q)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"email", "name", "source", "status", "subscribed_at", "confirmed_at"}); err != nil {
		return err
	}
	for _, sub := range subs {
		confirmed := ""
		if sub.ConfirmedAt != nil {
			confirmed = sub.ConfirmedAt.Format(time.RFC3339)
		}
		if err := cw.Write([]string{
			csvCell(sub.Email), csvCell(sub.Name), csvCell(sub.Source), sub.Status, sub.SubscribedAt.Format(time.RFC3339), confirmed,
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// csvCell quotes values a spreadsheet would evaluate as a formula
func csvCell(v string) string {
	if v != "" && strings.ContainsRune("=+-@\t\r", rune(v[0])) {
		return "'" + v
	}
	return v
}

// ListContacts returns contact messages, newest first
func (s *LeadsService) ListContacts(ctx context.Context, unreadOnly bool, limit, offset int) ([]*models.ContactMessage, error) {
	limit, offset = clampPage(limit, offset, 100)
	return s.contacts.List(ctx, unreadOnly, limit, offset)
}

// ReadContact returns a message and marks it read
func (s *LeadsService) ReadContact(ctx context.Context, id string) (*models.ContactMessage, error) {
	msg, err := s.GetContact(ctx, id)
	if err != nil {
		return nil, err
	}
	if !msg.IsRead {
		if _, err := s.contacts.MarkRead(ctx, id); err != nil {
			return nil, err
		}
		msg.IsRead = true
	}
	return msg, nil
}

// GetContact returns a message without changing its read state
func (s *LeadsService) GetContact(ctx context.Context, id string) (*models.ContactMessage, error) {
	msg, err := s.contacts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, errors.NewNotFoundError("contact message", id)
	}
	return msg, nil
}
