package services

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dapursambal/storefront/internal/config"
	"github.com/dapursambal/storefront/internal/domain"
	"github.com/dapursambal/storefront/internal/domain/events"
	"github.com/dapursambal/storefront/internal/domain/models"
	"github.com/dapursambal/storefront/internal/domain/ports"
	"github.com/dapursambal/storefront/internal/infrastructure/metrics"
	"github.com/dapursambal/storefront/internal/infrastructure/persistence"
	"github.com/dapursambal/storefront/pkg/constants"
	"github.com/dapursambal/storefront/pkg/errors"
	"github.com/dapursambal/storefront/pkg/forms"
	"github.com/dapursambal/storefront/pkg/utils"
)

var postalCodeRe = regexp.MustCompile(`^[1-9][0-9]{4}$`)

const orderNumberAttempts = 3

// PlaceOrderInput is the pre-order/checkout form payload. Website is a honeypot.
type PlaceOrderInput struct {
	Name            string        `json:"name"`
	Email           string        `json:"email"`
	Phone           string        `json:"phone"`
	ShippingAddress string        `json:"shipping_address"`
	City            string        `json:"city"`
	PostalCode      string        `json:"postal_code"`
	Notes           string        `json:"notes"`
	Items           []LineRequest `json:"items"`
	Newsletter      bool          `json:"newsletter"`
	Website         string        `json:"website"`
	VisitorID       string        `json:"-"`
}

// OrderService takes pre-orders and checkouts and drives the order lifecycle
type OrderService struct {
	orders   *persistence.OrderRepository
	catalog  *CatalogService
	leads    *LeadsService
	gateway  ports.PaymentGateway
	tx       *persistence.TransactionManager
	outbox   *OutboxService
	machine  *domain.OrderStateMachine
	site     config.SiteSettings
	location *time.Location
	now      func() time.Time
}

// NewOrderService creates a new OrderService
func NewOrderService(db *sql.DB, catalog *CatalogService, leads *LeadsService, gateway ports.PaymentGateway,
	tx *persistence.TransactionManager, outbox *OutboxService, site config.SiteSettings) *OrderService {
	loc, err := time.LoadLocation(constants.DefaultCampaignTZ)
	if err != nil {
		loc = time.UTC
	}
	return &OrderService{
		orders:   persistence.NewOrderRepository(db),
		catalog:  catalog,
		leads:    leads,
		gateway:  gateway,
		tx:       tx,
		outbox:   outbox,
		machine:  domain.NewOrderStateMachine(),
		site:     site,
		location: loc,
		now:      nowUTC,
	}
}

// ShippingFee is the flat fee, waived at or above the free-shipping threshold
func ShippingFee(subtotal decimal.Decimal, site config.SiteSettings) decimal.Decimal {
	if site.FreeShippingMin.IsPositive() && subtotal.GreaterThanOrEqual(site.FreeShippingMin) {
		return decimal.Zero
	}
	return site.ShippingFee
}

// OrderNumber formats DS-YYYYMMDD-XXXXXX for the given local date
func OrderNumber(at time.Time) string {
	return fmt.Sprintf("DS-%s-%s", at.Format("20060102"), utils.RandomCode(6))
}

func buildCustomer(in PlaceOrderInput) (*models.Order, error) {
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
	phone, ok := forms.NormalizePhone(in.Phone)
	if !ok {
		return nil, errors.NewValidationError("phone", "Phone must be an Indonesian number, e.g. 0812xxxxxxx")
	}
	address := forms.StripMarkup(in.ShippingAddress)
	if forms.RuneLen(address) < 10 || forms.RuneLen(address) > 500 {
		return nil, errors.NewValidationError("shipping_address", "Shipping address must be between 10 and 500 characters")
	}
	city := forms.TitleName(in.City)
	if city == "" {
		return nil, errors.NewValidationError("city", "City is required")
	}
	postal := strings.TrimSpace(in.PostalCode)
	if !postalCodeRe.MatchString(postal) {
		return nil, errors.NewValidationError("postal_code", "Postal code must be 5 digits")
	}
	notes := forms.StripMarkup(in.Notes)
	if forms.RuneLen(notes) > 1000 {
		return nil, errors.NewValidationError("notes", "Notes must be at most 1000 characters")
	}

	return &models.Order{
		CustomerName:    name,
		Email:           email,
		Phone:           phone,
		ShippingAddress: address,
		City:            city,
		PostalCode:      postal,
		Notes:           notes,
	}, nil
}

// PlaceOrder validates and prices the order, reserves stock and, when payments
// are enabled, opens a hosted checkout. Returns nil for honeypot hits.
func (s *OrderService) PlaceOrder(ctx context.Context, in PlaceOrderInput) (*models.Order, error) {
	if strings.TrimSpace(in.Website) != "" {
		log.Printf("⏭️ Order honeypot triggered, dropping submission")
		metrics.FormSubmissions.WithLabelValues("order", "honeypot").Inc()
		return nil, nil
	}

	order, err := buildCustomer(in)
	if err != nil {
		metrics.FormSubmissions.WithLabelValues("order", "invalid").Inc()
		return nil, err
	}
	priced, err := s.catalog.PriceItems(ctx, in.Items)
	if err != nil {
		metrics.FormSubmissions.WithLabelValues("order", "invalid").Inc()
		return nil, err
	}

	now := s.now()
	order.ID = utils.GenerateID()
	order.VisitorID = in.VisitorID
	order.Subtotal = priced.Subtotal
	order.ShippingFee = ShippingFee(priced.Subtotal, s.site)
	order.Total = order.Subtotal.Add(order.ShippingFee)
	order.CreatedDate = now
	order.LastModifiedDate = now
	order.Items = priced.Items
	for i := range order.Items {
		order.Items[i].ID = utils.GenerateID()
		order.Items[i].OrderID = order.ID
	}

	order.Status = string(domain.OrderPreOrdered)
	if s.gateway.Enabled() {
		order.Status = string(domain.OrderPendingPayment)
	}

	for attempt := 1; ; attempt++ {
		order.OrderNumber = OrderNumber(now.In(s.location))
		err = s.tx.WithTransaction(ctx, func(tx *sql.Tx) error {
			if err := s.catalog.ReserveStock(ctx, tx, priced); err != nil {
				return err
			}
			if err := s.orders.Insert(ctx, tx, order); err != nil {
				return err
			}
			if order.Status == string(domain.OrderPreOrdered) {
				return s.outbox.Enqueue(ctx, tx, events.OrderPlaced, events.Payload{OrderID: order.ID, VisitorID: order.VisitorID})
			}
			return nil
		})
		if err == nil || !isDuplicateKey(err) || attempt == orderNumberAttempts {
			break
		}
		log.Printf("🔄 Order number collision on %s, retrying", order.OrderNumber)
	}
	if err != nil {
		return nil, err
	}

	if order.Status == string(domain.OrderPendingPayment) {
		ref, url, err := s.gateway.CreateCheckout(ctx, order)
		if err != nil {
			log.Printf("❌ Checkout for %s failed: %v", order.OrderNumber, err)
			if _, cancelErr := s.transition(ctx, order, domain.TransitionCancel); cancelErr != nil {
				log.Printf("⚠️ Failed to cancel order %s after checkout error: %v", order.OrderNumber, cancelErr)
			}
			return nil, errors.NewInternalError("Payment provider is unavailable, please try again", err)
		}
		if err := s.orders.SetCheckout(ctx, order.ID, ref, url); err != nil {
			return nil, err
		}
		order.PaymentRef = ref
		order.CheckoutURL = url
	}

	if in.Newsletter {
		if _, err := s.leads.Subscribe(ctx, SubscribeInput{Email: order.Email, Name: order.CustomerName, Source: models.SourceCheckout}); err != nil {
			log.Printf("⚠️ Newsletter opt-in for order %s failed: %v", order.OrderNumber, err)
		}
	}

	metrics.FormSubmissions.WithLabelValues("order", "accepted").Inc()
	metrics.OrdersPlaced.WithLabelValues(order.Status).Inc()
	log.Printf("✅ Order %s placed (%s, total %s)", order.OrderNumber, order.Status, order.Total.StringFixed(0))
	return order, nil
}

// GetOrder returns an order with its items
func (s *OrderService) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, errors.NewNotFoundError("order", id)
	}
	return s.withItems(ctx, o)
}

// LookupOrder is the public status check. The email must match the order.
func (s *OrderService) LookupOrder(ctx context.Context, number, email string) (*models.Order, error) {
	o, err := s.orders.GetByNumber(ctx, strings.ToUpper(strings.TrimSpace(number)))
	if err != nil {
		return nil, err
	}
	if o == nil || o.Email != forms.NormalizeEmail(email) {
		return nil, errors.NewNotFoundError("order", number)
	}
	return s.withItems(ctx, o)
}

func (s *OrderService) withItems(ctx context.Context, o *models.Order) (*models.Order, error) {
	items, err := s.orders.ListItems(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return o, nil
}

// ListOrders returns orders, optionally by status, newest first
func (s *OrderService) ListOrders(ctx context.Context, status string, limit, offset int) ([]*models.Order, error) {
	limit, offset = clampPage(limit, offset, 100)
	return s.orders.List(ctx, status, limit, offset)
}

// Transition applies an admin status change
func (s *OrderService) Transition(ctx context.Context, id, action string) (*models.Order, error) {
	t, ok := domain.ParseOrderTransition(action)
	if !ok {
		return nil, errors.NewValidationError("action", "Action must be pay, fulfill, cancel or refund")
	}
	o, err := s.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, o, t)
}

// transition moves o along the state machine. Paying enqueues order.paid;
// cancelling releases reserved stock.
func (s *OrderService) transition(ctx context.Context, o *models.Order, t domain.OrderTransition) (*models.Order, error) {
	current := domain.OrderStatus(o.Status)
	next, err := s.machine.Transition(current, t)
	if err != nil {
		return nil, errors.NewValidationError("status", err.Error())
	}

	err = s.tx.WithTransaction(ctx, func(tx *sql.Tx) error {
		updated, err := s.orders.UpdateStatus(ctx, tx, o.ID, string(current), string(next))
		if err != nil {
			return err
		}
		if !updated {
			return errors.NewConflictError("order", "status", o.Status)
		}
		switch next {
		case domain.OrderPaid:
			return s.outbox.Enqueue(ctx, tx, events.OrderPaid, events.Payload{OrderID: o.ID, VisitorID: o.VisitorID})
		case domain.OrderCancelled:
			if len(o.Items) == 0 {
				items, err := s.orders.ListItems(ctx, o.ID)
				if err != nil {
					return err
				}
				o.Items = items
			}
			return s.catalog.ReleaseStock(ctx, tx, o.Items)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("🔄 Order %s: %s -> %s", o.OrderNumber, current, next)
	o.Status = string(next)
	o.LastModifiedDate = s.now()
	return o, nil
}

// HandlePaymentWebhook applies a verified provider notification
func (s *OrderService) HandlePaymentWebhook(ctx context.Context, payload []byte, signature string) error {
	if !s.gateway.Enabled() {
		return errors.NewNotFoundError("payments", "webhook")
	}
	evt, err := s.gateway.ParseWebhook(payload, signature)
	if err != nil {
		return errors.NewValidationError("signature", err.Error())
	}

	var action domain.OrderTransition
	switch evt.Type {
	case ports.PaymentCompleted, ports.PaymentAsyncSucceeded:
		if !evt.Paid {
			log.Printf("⏳ Checkout for order %s completed, payment not settled yet", evt.OrderID)
			return nil
		}
		action = domain.TransitionPay
	case ports.PaymentExpired, ports.PaymentAsyncFailed:
		action = domain.TransitionCancel
	default:
		log.Printf("⏭️ Ignoring payment event %s", evt.Type)
		return nil
	}

	o, err := s.orders.GetByID(ctx, evt.OrderID)
	if err != nil {
		return err
	}
	if o == nil {
		log.Printf("⚠️ Payment event %s for unknown order %s", evt.Type, evt.OrderID)
		return nil
	}
	if !s.machine.CanTransition(domain.OrderStatus(o.Status), action) {
		// provider retries and late events for settled orders
		log.Printf("⏭️ Order %s already %s, ignoring %s", o.OrderNumber, o.Status, evt.Type)
		return nil
	}

	_, err = s.transition(ctx, o, action)
	if errors.IsConflict(err) {
		return nil
	}
	return err
}
