package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dapursambal/storefront/internal/domain/models"
	"github.com/dapursambal/storefront/pkg/constants"
)

// ContactRepository handles database operations for contact form messages
type ContactRepository struct {
	db *sql.DB
}

// NewContactRepository creates a new ContactRepository
func NewContactRepository(db *sql.DB) *ContactRepository {
	return &ContactRepository{db: db}
}

const contactSelect = "SELECT id, name, email, phone, subject, message, is_read, created_date FROM %s"

func scanContact(row Scannable) (*models.ContactMessage, error) {
	var m models.ContactMessage
	if err := row.Scan(&m.ID, &m.Name, &m.Email, &m.Phone, &m.Subject, &m.Message, &m.IsRead, &m.CreatedDate); err != nil {
		return nil, err
	}
	return &m, nil
}

// Insert stores a contact message
func (r *ContactRepository) Insert(ctx context.Context, exec Executor, m *models.ContactMessage) error {
	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, name, email, phone, subject, message, is_read, created_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, constants.TableContactMessage)
	_, err := exec.ExecContext(ctx, stmt, m.ID, m.Name, m.Email, m.Phone, m.Subject, m.Message, m.IsRead, m.CreatedDate)
	return err
}

// GetByID retrieves a contact message
func (r *ContactRepository) GetByID(ctx context.Context, id string) (*models.ContactMessage, error) {
	stmt := fmt.Sprintf(contactSelect+" WHERE id = ? LIMIT 1", constants.TableContactMessage)
	m, err := scanContact(r.db.QueryRowContext(ctx, stmt, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// List returns messages newest first
func (r *ContactRepository) List(ctx context.Context, unreadOnly bool, limit, offset int) ([]*models.ContactMessage, error) {
	stmt := fmt.Sprintf(contactSelect, constants.TableContactMessage)
	args := []interface{}{}
	if unreadOnly {
		stmt += " WHERE is_read = ?"
		args = append(args, false)
	}
	stmt += " ORDER BY created_date DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list contact messages: %w", err)
	}
	defer rows.Close()

	messages := make([]*models.ContactMessage, 0)
	for rows.Next() {
		m, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// MarkRead flags a message as read
func (r *ContactRepository) MarkRead(ctx context.Context, id string) (bool, error) {
	stmt := fmt.Sprintf("UPDATE %s SET is_read = ? WHERE id = ?", constants.TableContactMessage)
	return rowsAffected(r.db.ExecContext(ctx, stmt, true, id))
}

// CountUnread counts messages nobody has opened yet
func (r *ContactRepository) CountUnread(ctx context.Context) (int, error) {
	var n int
	stmt := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE is_read = ?", constants.TableContactMessage)
	err := r.db.QueryRowContext(ctx, stmt, false).Scan(&n)
	return n, err
}
