package ports

import (
	"context"

	"github.com/dapursambal/storefront/internal/domain/models"
)

// Payment event kinds the order service reacts to
const (
	PaymentCompleted      = "checkout.session.completed"
	PaymentAsyncSucceeded = "checkout.session.async_payment_succeeded"
	PaymentAsyncFailed    = "checkout.session.async_payment_failed"
	PaymentExpired        = "checkout.session.expired"
)

// PaymentEvent is a verified notification from the payment provider.
// Paid reports whether the funds have settled; a completed checkout paid by
// bank transfer stays unpaid until the async success event arrives.
type PaymentEvent struct {
	Type       string
	OrderID    string
	PaymentRef string
	Paid       bool
}

// PaymentGateway creates hosted checkouts and verifies their webhooks
type PaymentGateway interface {
	// Enabled is false when orders are taken as pre-orders without payment
	Enabled() bool
	CreateCheckout(ctx context.Context, order *models.Order) (ref string, url string, err error)
	ParseWebhook(payload []byte, signatureHeader string) (*PaymentEvent, error)
}
