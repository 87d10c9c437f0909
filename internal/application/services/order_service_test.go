package services

import (
	"context"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dapursambal/storefront/internal/config"
	"github.com/dapursambal/storefront/internal/domain/models"
	"github.com/dapursambal/storefront/internal/domain/ports"
	"github.com/dapursambal/storefront/internal/infrastructure/persistence"
	"github.com/dapursambal/storefront/pkg/errors"
)

func TestShippingFee(t *testing.T) {
	site := config.SiteSettings{
		ShippingFee:     decimal.NewFromInt(15000),
		FreeShippingMin: decimal.NewFromInt(200000),
	}

	assert.True(t, ShippingFee(decimal.NewFromInt(199999), site).Equal(decimal.NewFromInt(15000)))
	assert.True(t, ShippingFee(decimal.NewFromInt(200000), site).IsZero())

	site.FreeShippingMin = decimal.Zero
	assert.True(t, ShippingFee(decimal.NewFromInt(1000000), site).Equal(decimal.NewFromInt(15000)))
}

func TestOrderNumber(t *testing.T) {
	n := OrderNumber(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC))
	assert.Regexp(t, regexp.MustCompile(`^DS-20260302-[A-Z0-9]{6}$`), n)
}

func validOrderInput() PlaceOrderInput {
	return PlaceOrderInput{
		Name:            "  siti   aminah ",
		Email:           " Siti@Example.COM ",
		Phone:           "0812-3456-7890",
		ShippingAddress: "Jl. Kaliurang Km 5 No. 12",
		City:            "yogyakarta",
		PostalCode:      "55281",
	}
}

func TestBuildCustomer(t *testing.T) {
	o, err := buildCustomer(validOrderInput())
	require.NoError(t, err)
	assert.Equal(t, "Siti Aminah", o.CustomerName)
	assert.Equal(t, "siti@example.com", o.Email)
	assert.Equal(t, "+6281234567890", o.Phone)
	assert.Equal(t, "Yogyakarta", o.City)

	tests := []struct {
		name   string
		mutate func(in *PlaceOrderInput)
		field  string
	}{
		{"missing name", func(in *PlaceOrderInput) { in.Name = "" }, "name"},
		{"bad email", func(in *PlaceOrderInput) { in.Email = "siti@" }, "email"},
		{"foreign phone", func(in *PlaceOrderInput) { in.Phone = "+1 555 0100" }, "phone"},
		{"short address", func(in *PlaceOrderInput) { in.ShippingAddress = "Jl. A" }, "shipping_address"},
		{"missing city", func(in *PlaceOrderInput) { in.City = " " }, "city"},
		{"postal code leading zero", func(in *PlaceOrderInput) { in.PostalCode = "05528" }, "postal_code"},
		{"postal code too short", func(in *PlaceOrderInput) { in.PostalCode = "5528" }, "postal_code"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validOrderInput()
			tt.mutate(&in)
			_, err := buildCustomer(in)
			var ve *errors.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

var productTestColumns = []string{
	"id", "slug", "name", "description", "category", "heat_level", "price", "weight_grams",
	"stock", "is_active", "is_preorder", "image_url", "created_date", "last_modified_date",
}

var orderTestColumns = []string{
	"id", "order_number", "customer_name", "email", "phone", "shipping_address", "city", "postal_code", "notes",
	"status", "subtotal", "shipping_fee", "total", "payment_ref", "checkout_url", "visitor_id", "created_date", "last_modified_date",
}

var orderItemTestColumns = []string{"id", "order_id", "product_id", "name", "unit_price", "quantity", "line_total", "is_preorder"}

// fakeGateway returns canned checkouts and webhook events
type fakeGateway struct {
	enabled     bool
	checkoutErr error
	event       *ports.PaymentEvent
	checkouts   []string
}

func (g *fakeGateway) Enabled() bool { return g.enabled }

func (g *fakeGateway) CreateCheckout(_ context.Context, order *models.Order) (string, string, error) {
	if g.checkoutErr != nil {
		return "", "", g.checkoutErr
	}
	g.checkouts = append(g.checkouts, order.ID)
	return "cs_test_1", "https://checkout.stripe.com/c/pay/cs_test_1", nil
}

func (g *fakeGateway) ParseWebhook([]byte, string) (*ports.PaymentEvent, error) {
	if g.event == nil {
		return nil, fmt.Errorf("bad signature")
	}
	return g.event, nil
}

func newOrderTestService(t *testing.T, gateway *fakeGateway) (*OrderService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	tx := persistence.NewTransactionManager(db)
	outbox := NewOutboxService(db, NewEventBus())
	site := config.SiteSettings{ShippingFee: decimal.NewFromInt(15000), FreeShippingMin: decimal.NewFromInt(200000)}
	svc := NewOrderService(db, NewCatalogService(db), NewLeadsService(db, tx, outbox), gateway, tx, outbox, site)
	svc.now = func() time.Time { return time.Date(2026, 4, 10, 3, 0, 0, 0, time.UTC) }
	return svc, mock
}

func expectProduct(mock sqlmock.Sqlmock, id, name, price string, stock int, preorder bool) {
	created := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("FROM `products` WHERE `id` = \\?").WithArgs(id).
		WillReturnRows(mock.NewRows(productTestColumns).
			AddRow(id, "sambal-"+id, name, "", "sambal", 3, price, 200, stock, true, preorder, "", created, created))
}

func expectOrder(mock sqlmock.Sqlmock, id, status string) {
	created := time.Date(2026, 4, 9, 3, 0, 0, 0, time.UTC)
	mock.ExpectQuery("FROM `orders` WHERE `id` = \\?").WithArgs(id).
		WillReturnRows(mock.NewRows(orderTestColumns).
			AddRow(id, "DS-20260409-ABC123", "Sari", "sari@example.id", "+6281234567890", "Jl. Kaliurang Km 5 No. 12",
				"Yogyakarta", "55281", "", status, "90000", "15000", "105000", "cs_test_1", "", "v1", created, created))
}

func expectOrderInsert(mock sqlmock.Sqlmock, productID, name, unitPrice string, qty int, lineTotal string, preorder bool) {
	mock.ExpectExec("INSERT INTO orders").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO order_items").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), productID, name, unitPrice, qty, lineTotal, preorder).
		WillReturnResult(sqlmock.NewResult(0, 1))
}

func TestOrderService_PlaceOrder(t *testing.T) {
	t.Run("Pre-order without payments skips stock and enqueues order.placed", func(t *testing.T) {
		svc, mock := newOrderTestService(t, &fakeGateway{})
		expectProduct(mock, "p1", "Sambal Roa", "65000", 0, true)
		mock.ExpectBegin()
		expectOrderInsert(mock, "p1", "Sambal Roa", "65000", 2, "130000", true)
		expectOutbox(mock, "order.placed", sqlmock.AnyArg())
		mock.ExpectCommit()

		in := validOrderInput()
		in.Items = []LineRequest{{ProductID: "p1", Quantity: 2}}
		in.VisitorID = "v1"
		order, err := svc.PlaceOrder(context.Background(), in)
		require.NoError(t, err)
		assert.Equal(t, "pre_ordered", order.Status)
		assert.True(t, order.Total.Equal(decimal.NewFromInt(145000)))
		assert.Empty(t, order.CheckoutURL)
		require.Len(t, order.Items, 1)
		assert.True(t, order.Items[0].IsPreorder)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Checkout reserves stock and stores the session", func(t *testing.T) {
		gateway := &fakeGateway{enabled: true}
		svc, mock := newOrderTestService(t, gateway)
		expectProduct(mock, "p2", "Sambal Bawang", "45000", 10, false)
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE products SET stock = stock - \\? WHERE id = \\? AND stock >= \\?").
			WithArgs(3, "p2", 3).
			WillReturnResult(sqlmock.NewResult(0, 1))
		expectOrderInsert(mock, "p2", "Sambal Bawang", "45000", 3, "135000", false)
		mock.ExpectCommit()
		mock.ExpectExec("UPDATE orders SET payment_ref = \\?, checkout_url = \\?").
			WithArgs("cs_test_1", "https://checkout.stripe.com/c/pay/cs_test_1", sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		in := validOrderInput()
		in.Items = []LineRequest{{ProductID: "p2", Quantity: 3}}
		order, err := svc.PlaceOrder(context.Background(), in)
		require.NoError(t, err)
		assert.Equal(t, "pending_payment", order.Status)
		assert.Equal(t, "cs_test_1", order.PaymentRef)
		assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_test_1", order.CheckoutURL)
		assert.Equal(t, []string{order.ID}, gateway.checkouts)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Sold out during the transaction rolls back", func(t *testing.T) {
		svc, mock := newOrderTestService(t, &fakeGateway{enabled: true})
		expectProduct(mock, "p2", "Sambal Bawang", "45000", 3, false)
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE products SET stock = stock - \\?").
			WithArgs(3, "p2", 3).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		in := validOrderInput()
		in.Items = []LineRequest{{ProductID: "p2", Quantity: 3}}
		_, err := svc.PlaceOrder(context.Background(), in)
		assert.True(t, errors.IsConflict(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Checkout failure cancels the order and releases stock", func(t *testing.T) {
		svc, mock := newOrderTestService(t, &fakeGateway{enabled: true, checkoutErr: fmt.Errorf("stripe unavailable")})
		expectProduct(mock, "p2", "Sambal Bawang", "45000", 10, false)
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE products SET stock = stock - \\?").
			WithArgs(3, "p2", 3).
			WillReturnResult(sqlmock.NewResult(0, 1))
		expectOrderInsert(mock, "p2", "Sambal Bawang", "45000", 3, "135000", false)
		mock.ExpectCommit()
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE orders SET status = \\?, last_modified_date = \\? WHERE id = \\? AND status = \\?").
			WithArgs("cancelled", sqlmock.AnyArg(), sqlmock.AnyArg(), "pending_payment").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("UPDATE products SET stock = stock \\+ \\? WHERE id = \\?").
			WithArgs(3, "p2").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		in := validOrderInput()
		in.Items = []LineRequest{{ProductID: "p2", Quantity: 3}}
		order, err := svc.PlaceOrder(context.Background(), in)
		assert.Nil(t, order)
		var ie *errors.InternalError
		require.ErrorAs(t, err, &ie)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestOrderService_HandlePaymentWebhook(t *testing.T) {
	paid := func(mock sqlmock.Sqlmock) {
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE orders SET status = \\?").
			WithArgs("paid", sqlmock.AnyArg(), "o1", "pending_payment").
			WillReturnResult(sqlmock.NewResult(0, 1))
		expectOutbox(mock, "order.paid", `{"order_id":"o1","visitor_id":"v1"}`)
		mock.ExpectCommit()
	}

	t.Run("Settled checkout marks the order paid", func(t *testing.T) {
		svc, mock := newOrderTestService(t, &fakeGateway{enabled: true,
			event: &ports.PaymentEvent{Type: ports.PaymentCompleted, OrderID: "o1", PaymentRef: "cs_test_1", Paid: true}})
		expectOrder(mock, "o1", "pending_payment")
		paid(mock)

		require.NoError(t, svc.HandlePaymentWebhook(context.Background(), []byte(`{}`), "sig"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Completed checkout awaiting transfer leaves the order pending", func(t *testing.T) {
		svc, mock := newOrderTestService(t, &fakeGateway{enabled: true,
			event: &ports.PaymentEvent{Type: ports.PaymentCompleted, OrderID: "o1", PaymentRef: "cs_test_1"}})

		require.NoError(t, svc.HandlePaymentWebhook(context.Background(), []byte(`{}`), "sig"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Async transfer success marks the order paid", func(t *testing.T) {
		svc, mock := newOrderTestService(t, &fakeGateway{enabled: true,
			event: &ports.PaymentEvent{Type: ports.PaymentAsyncSucceeded, OrderID: "o1", PaymentRef: "cs_test_1", Paid: true}})
		expectOrder(mock, "o1", "pending_payment")
		paid(mock)

		require.NoError(t, svc.HandlePaymentWebhook(context.Background(), []byte(`{}`), "sig"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Expired checkout cancels and releases in-stock lines only", func(t *testing.T) {
		svc, mock := newOrderTestService(t, &fakeGateway{enabled: true,
			event: &ports.PaymentEvent{Type: ports.PaymentExpired, OrderID: "o1", PaymentRef: "cs_test_1"}})
		expectOrder(mock, "o1", "pending_payment")
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE orders SET status = \\?").
			WithArgs("cancelled", sqlmock.AnyArg(), "o1", "pending_payment").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery("FROM order_items WHERE order_id = \\?").WithArgs("o1").
			WillReturnRows(mock.NewRows(orderItemTestColumns).
				AddRow("i1", "o1", "p2", "Sambal Bawang", "45000", 2, "90000", false).
				AddRow("i2", "o1", "p1", "Sambal Roa", "65000", 1, "65000", true))
		mock.ExpectExec("UPDATE products SET stock = stock \\+ \\? WHERE id = \\?").
			WithArgs(2, "p2").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		require.NoError(t, svc.HandlePaymentWebhook(context.Background(), []byte(`{}`), "sig"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Redelivered completion for a paid order is ignored", func(t *testing.T) {
		svc, mock := newOrderTestService(t, &fakeGateway{enabled: true,
			event: &ports.PaymentEvent{Type: ports.PaymentCompleted, OrderID: "o1", Paid: true}})
		expectOrder(mock, "o1", "paid")

		require.NoError(t, svc.HandlePaymentWebhook(context.Background(), []byte(`{}`), "sig"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Late expiry for a paid order is ignored", func(t *testing.T) {
		svc, mock := newOrderTestService(t, &fakeGateway{enabled: true,
			event: &ports.PaymentEvent{Type: ports.PaymentExpired, OrderID: "o1"}})
		expectOrder(mock, "o1", "paid")

		require.NoError(t, svc.HandlePaymentWebhook(context.Background(), []byte(`{}`), "sig"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Concurrent delivery that loses the status race is acknowledged", func(t *testing.T) {
		svc, mock := newOrderTestService(t, &fakeGateway{enabled: true,
			event: &ports.PaymentEvent{Type: ports.PaymentCompleted, OrderID: "o1", Paid: true}})
		expectOrder(mock, "o1", "pending_payment")
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE orders SET status = \\?").
			WithArgs("paid", sqlmock.AnyArg(), "o1", "pending_payment").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		require.NoError(t, svc.HandlePaymentWebhook(context.Background(), []byte(`{}`), "sig"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Unknown order is acknowledged", func(t *testing.T) {
		svc, mock := newOrderTestService(t, &fakeGateway{enabled: true,
			event: &ports.PaymentEvent{Type: ports.PaymentCompleted, OrderID: "gone", Paid: true}})
		mock.ExpectQuery("FROM `orders` WHERE `id` = \\?").WithArgs("gone").
			WillReturnRows(mock.NewRows(orderTestColumns))

		require.NoError(t, svc.HandlePaymentWebhook(context.Background(), []byte(`{}`), "sig"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Bad signature is a validation error", func(t *testing.T) {
		svc, _ := newOrderTestService(t, &fakeGateway{enabled: true})
		err := svc.HandlePaymentWebhook(context.Background(), []byte(`{}`), "sig")
		assert.True(t, errors.IsValidation(err))
	})

	t.Run("Disabled payments have no webhook", func(t *testing.T) {
		svc, _ := newOrderTestService(t, &fakeGateway{})
		err := svc.HandlePaymentWebhook(context.Background(), []byte(`{}`), "sig")
		assert.True(t, errors.IsNotFound(err))
	})
}
