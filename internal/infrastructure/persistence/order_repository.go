package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dapursambal/storefront/internal/domain/models"
	"github.com/dapursambal/storefront/pkg/constants"
	"github.com/dapursambal/storefront/pkg/query"
)

var orderColumns = []string{
	"id", "order_number", "customer_name", "email", "phone", "shipping_address", "city", "postal_code", "notes",
	"status", "subtotal", "shipping_fee", "total", "payment_ref", "checkout_url", "visitor_id", "created_date", "last_modified_date",
}

// OrderRepository handles database operations for orders and their items
type OrderRepository struct {
	db *sql.DB
}

// NewOrderRepository creates a new OrderRepository
func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func scanOrder(row Scannable) (*models.Order, error) {
	var o models.Order
	if err := row.Scan(&o.ID, &o.OrderNumber, &o.CustomerName, &o.Email, &o.Phone, &o.ShippingAddress, &o.City, &o.PostalCode,
		&o.Notes, &o.Status, &o.Subtotal, &o.ShippingFee, &o.Total, &o.PaymentRef, &o.CheckoutURL, &o.VisitorID, &o.CreatedDate, &o.LastModifiedDate); err != nil {
		return nil, err
	}
	return &o, nil
}

// Insert stores the order header and its items
func (r *OrderRepository) Insert(ctx context.Context, exec Executor, o *models.Order) error {
	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, order_number, customer_name, email, phone, shipping_address, city, postal_code, notes,
			status, subtotal, shipping_fee, total, payment_ref, checkout_url, visitor_id, created_date, last_modified_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, constants.TableOrder)

	if _, err := exec.ExecContext(ctx, stmt, o.ID, o.OrderNumber, o.CustomerName, o.Email, o.Phone, o.ShippingAddress, o.City,
		o.PostalCode, o.Notes, o.Status, o.Subtotal.String(), o.ShippingFee.String(), o.Total.String(), o.PaymentRef,
		o.CheckoutURL, o.VisitorID, o.CreatedDate, o.LastModifiedDate); err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	itemStmt := fmt.Sprintf(`
		INSERT INTO %s (id, order_id, product_id, name, unit_price, quantity, line_total, is_preorder)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, constants.TableOrderItem)
	for _, item := range o.Items {
		if _, err := exec.ExecContext(ctx, itemStmt, item.ID, o.ID, item.ProductID, item.Name, item.UnitPrice.String(),
			item.Quantity, item.LineTotal.String(), item.IsPreorder); err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}
	return nil
}

func (r *OrderRepository) getBy(ctx context.Context, column, value string) (*models.Order, error) {
	q := query.From(constants.TableOrder).Select(orderColumns...).Where(fmt.Sprintf("`%s` = ?", column), value).Limit(1).Build()
	o, err := scanOrder(r.db.QueryRowContext(ctx, q.SQL, q.Params...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return o, nil
}

// GetByID retrieves an order header
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	return r.getBy(ctx, "id", id)
}

// GetByNumber retrieves an order header by its public number
func (r *OrderRepository) GetByNumber(ctx context.Context, number string) (*models.Order, error) {
	return r.getBy(ctx, "order_number", number)
}

// ListItems returns the lines of an order
func (r *OrderRepository) ListItems(ctx context.Context, orderID string) ([]models.OrderItem, error) {
	stmt := fmt.Sprintf(`SELECT id, order_id, product_id, name, unit_price, quantity, line_total, is_preorder FROM %s WHERE order_id = ? ORDER BY name ASC`,
		constants.TableOrderItem)
	rows, err := r.db.QueryContext(ctx, stmt, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]models.OrderItem, 0)
	for rows.Next() {
		var it models.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Name, &it.UnitPrice, &it.Quantity, &it.LineTotal, &it.IsPreorder); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// List returns orders newest first, optionally by status
func (r *OrderRepository) List(ctx context.Context, status string, limit, offset int) ([]*models.Order, error) {
	b := query.From(constants.TableOrder).Select(orderColumns...)
	if status != "" {
		b.Where("`status` = ?", status)
	}
	q := b.OrderBy("created_date", "DESC").Limit(limit).Offset(offset).Build()

	rows, err := r.db.QueryContext(ctx, q.SQL, q.Params...)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]*models.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// UpdateStatus moves an order from one status to another. It returns false
// when the order was no longer in the expected status.
func (r *OrderRepository) UpdateStatus(ctx context.Context, exec Executor, id, from, to string) (bool, error) {
	stmt := fmt.Sprintf("UPDATE %s SET status = ?, last_modified_date = ? WHERE id = ? AND status = ?", constants.TableOrder)
	return rowsAffected(exec.ExecContext(ctx, stmt, to, time.Now().UTC(), id, from))
}

// SetCheckout stores the payment provider reference and hosted checkout URL
func (r *OrderRepository) SetCheckout(ctx context.Context, id, ref, url string) error {
	stmt := fmt.Sprintf("UPDATE %s SET payment_ref = ?, checkout_url = ?, last_modified_date = ? WHERE id = ?", constants.TableOrder)
	_, err := r.db.ExecContext(ctx, stmt, ref, url, time.Now().UTC(), id)
	return err
}

// CountByStatus returns order counts keyed by status
func (r *OrderRepository) CountByStatus(ctx context.Context) (map[string]int, error) {
	return countByStatus(ctx, r.db, constants.TableOrder)
}

// RevenueSince sums totals of paid and fulfilled orders created after since
func (r *OrderRepository) RevenueSince(ctx context.Context, since time.Time) (decimal.Decimal, error) {
	stmt := fmt.Sprintf("SELECT COALESCE(SUM(total), 0) FROM %s WHERE status IN (?, ?) AND created_date >= ?", constants.TableOrder)
	var total decimal.Decimal
	err := r.db.QueryRowContext(ctx, stmt, "paid", "fulfilled", since).Scan(&total)
	return total, err
}
