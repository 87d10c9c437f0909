package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dapursambal/storefront/internal/domain/models"
	"github.com/dapursambal/storefront/pkg/constants"
)

// AdminUserRepository handles admin accounts
type AdminUserRepository struct {
	db *sql.DB
}

// NewAdminUserRepository creates a new AdminUserRepository
func NewAdminUserRepository(db *sql.DB) *AdminUserRepository {
	return &AdminUserRepository{db: db}
}

func (r *AdminUserRepository) getBy(ctx context.Context, column, value string) (*models.AdminUser, error) {
	stmt := fmt.Sprintf(`
		SELECT id, email, name, password, is_active, last_login_date, created_date, last_modified_date
		FROM %s WHERE %s = ? LIMIT 1`, constants.TableAdminUser, column)

	var u models.AdminUser
	var lastLogin sql.NullTime
	err := r.db.QueryRowContext(ctx, stmt, value).Scan(
		&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.IsActive, &lastLogin, &u.CreatedDate, &u.LastModifiedDate,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	u.LastLoginDate = nullTimePtr(lastLogin)
	return &u, nil
}

// GetByEmail retrieves an admin including the password hash
func (r *AdminUserRepository) GetByEmail(ctx context.Context, email string) (*models.AdminUser, error) {
	return r.getBy(ctx, "email", email)
}

// GetByID retrieves an admin by id
func (r *AdminUserRepository) GetByID(ctx context.Context, id string) (*models.AdminUser, error) {
	return r.getBy(ctx, "id", id)
}

// EmailExists checks whether an admin account uses email
func (r *AdminUserRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	stmt := fmt.Sprintf("SELECT EXISTS(SELECT 1 FROM %s WHERE email = ?)", constants.TableAdminUser)
	err := r.db.QueryRowContext(ctx, stmt, email).Scan(&exists)
	return exists, err
}

// Insert creates an admin account
func (r *AdminUserRepository) Insert(ctx context.Context, u *models.AdminUser) error {
	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, email, name, password, is_active, created_date, last_modified_date)
		VALUES (?, ?, ?, ?, ?, ?, ?)`, constants.TableAdminUser)
	_, err := r.db.ExecContext(ctx, stmt, u.ID, u.Email, u.Name, u.PasswordHash, u.IsActive, u.CreatedDate, u.LastModifiedDate)
	return err
}

// UpdatePassword replaces the stored hash
func (r *AdminUserRepository) UpdatePassword(ctx context.Context, id, hash string) error {
	stmt := fmt.Sprintf("UPDATE %s SET password = ?, last_modified_date = ? WHERE id = ?", constants.TableAdminUser)
	_, err := r.db.ExecContext(ctx, stmt, hash, time.Now().UTC(), id)
	return err
}

// UpdateLastLogin stamps a successful login
func (r *AdminUserRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	stmt := fmt.Sprintf("UPDATE %s SET last_login_date = ? WHERE id = ?", constants.TableAdminUser)
	_, err := r.db.ExecContext(ctx, stmt, at, id)
	return err
}
