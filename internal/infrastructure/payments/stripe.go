// Package payments adapts Stripe Checkout to the order service.
package payments

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/dapursambal/storefront/internal/config"
	"github.com/dapursambal/storefront/internal/domain/models"
	"github.com/dapursambal/storefront/internal/domain/ports"
	"github.com/dapursambal/storefront/pkg/money"
)

const currencyIDR = "idr"

// StripeGateway creates hosted checkout sessions
type StripeGateway struct {
	api      *client.API
	settings config.PaymentSettings
}

var _ ports.PaymentGateway = (*StripeGateway)(nil)

// NewStripeGateway creates a gateway from settings
func NewStripeGateway(settings config.PaymentSettings) *StripeGateway {
	return &StripeGateway{
		api:      client.New(settings.SecretKey, nil),
		settings: settings,
	}
}

// Enabled is always true for Stripe
func (g *StripeGateway) Enabled() bool { return true }

// CreateCheckout opens a checkout session for order and returns its id and URL
func (g *StripeGateway) CreateCheckout(ctx context.Context, order *models.Order) (string, string, error) {
	params := checkoutParams(order, g.settings)
	params.Context = ctx

	sess, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return "", "", fmt.Errorf("stripe checkout for %s failed: %w", order.OrderNumber, err)
	}
	return sess.ID, sess.URL, nil
}

func checkoutParams(order *models.Order, settings config.PaymentSettings) *stripe.CheckoutSessionParams {
	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(order.Items)+1)
	for _, item := range order.Items {
		lineItems = append(lineItems, lineItem(item.Name, money.ToMinorUnits(item.UnitPrice), int64(item.Quantity)))
	}
	if order.ShippingFee.IsPositive() {
		lineItems = append(lineItems, lineItem("Ongkos kirim", money.ToMinorUnits(order.ShippingFee), 1))
	}

	return &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(settings.SuccessURL + "?order=" + order.OrderNumber),
		CancelURL:         stripe.String(settings.CancelURL + "?order=" + order.OrderNumber),
		CustomerEmail:     stripe.String(order.Email),
		ClientReferenceID: stripe.String(order.ID),
		LineItems:         lineItems,
		Metadata: map[string]string{
			"order_id":     order.ID,
			"order_number": order.OrderNumber,
		},
	}
}

func lineItem(name string, unitAmount, qty int64) *stripe.CheckoutSessionLineItemParams {
	return &stripe.CheckoutSessionLineItemParams{
		PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
			Currency:   stripe.String(currencyIDR),
			UnitAmount: stripe.Int64(unitAmount),
			ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
				Name: stripe.String(name),
			},
		},
		Quantity: stripe.Int64(qty),
	}
}

// ParseWebhook verifies the Stripe-Signature header and extracts the order id
// and payment status. Event types that are not checkout session outcomes come
// back with an empty OrderID.
func (g *StripeGateway) ParseWebhook(payload []byte, signatureHeader string) (*ports.PaymentEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, g.settings.WebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("invalid webhook signature: %w", err)
	}

	result := &ports.PaymentEvent{Type: string(event.Type)}
	switch result.Type {
	case ports.PaymentCompleted, ports.PaymentAsyncSucceeded, ports.PaymentAsyncFailed, ports.PaymentExpired:
	default:
		return result, nil
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return nil, fmt.Errorf("invalid checkout session payload: %w", err)
	}
	result.PaymentRef = sess.ID
	result.Paid = sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid
	result.OrderID = sess.Metadata["order_id"]
	if result.OrderID == "" {
		result.OrderID = sess.ClientReferenceID
	}
	return result, nil
}

// NoopGateway is used when payments are disabled; orders become pre-orders
type NoopGateway struct{}

var _ ports.PaymentGateway = NoopGateway{}

func (NoopGateway) Enabled() bool { return false }

func (NoopGateway) CreateCheckout(context.Context, *models.Order) (string, string, error) {
	return "", "", fmt.Errorf("payments are disabled")
}

func (NoopGateway) ParseWebhook([]byte, string) (*ports.PaymentEvent, error) {
	return nil, fmt.Errorf("payments are disabled")
}

// New returns the Stripe gateway when payments are enabled
func New(settings config.PaymentSettings) ports.PaymentGateway {
	if !settings.Enabled {
		return NoopGateway{}
	}
	return NewStripeGateway(settings)
}
