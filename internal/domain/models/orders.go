package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order is a pre-order or checkout placed through the storefront
type Order struct {
	ID               string          `json:"id"`
	OrderNumber      string          `json:"order_number"`
	CustomerName     string          `json:"customer_name"`
	Email            string          `json:"email"`
	Phone            string          `json:"phone"`
	ShippingAddress  string          `json:"shipping_address"`
	City             string          `json:"city"`
	PostalCode       string          `json:"postal_code"`
	Notes            string          `json:"notes,omitempty"`
	Status           string          `json:"status"`
	Subtotal         decimal.Decimal `json:"subtotal"`
	ShippingFee      decimal.Decimal `json:"shipping_fee"`
	Total            decimal.Decimal `json:"total"`
	PaymentRef       string          `json:"payment_ref,omitempty"`
	CheckoutURL      string          `json:"checkout_url,omitempty"`
	VisitorID        string          `json:"-"`
	Items            []OrderItem     `json:"items,omitempty"`
	CreatedDate      time.Time       `json:"created_date"`
	LastModifiedDate time.Time       `json:"last_modified_date"`
}

// OrderItem is one priced line of an order. IsPreorder is captured when the
// order is placed; stock is only reserved and released for lines without it.
type OrderItem struct {
	ID         string          `json:"id"`
	OrderID    string          `json:"order_id"`
	ProductID  string          `json:"product_id"`
	Name       string          `json:"name"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	Quantity   int             `json:"quantity"`
	LineTotal  decimal.Decimal `json:"line_total"`
	IsPreorder bool            `json:"is_preorder"`
}
