package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dapursambal/storefront/internal/domain/models"
	"github.com/dapursambal/storefront/pkg/constants"
)

// SessionRepository handles database operations for admin sessions
type SessionRepository struct {
	db *sql.DB
}

// NewSessionRepository creates a new SessionRepository
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// InsertSession records an issued token
func (r *SessionRepository) InsertSession(ctx context.Context, session *models.AdminSession) error {
	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, user_id, expires_at, ip_address, user_agent, is_revoked, last_activity, created_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		constants.TableSession)

	_, err := r.db.ExecContext(ctx, stmt,
		session.ID,
		session.UserID,
		session.ExpiresAt,
		session.IPAddress,
		session.UserAgent,
		session.IsRevoked,
		session.LastActivity,
		session.CreatedDate,
	)
	return err
}

// GetSession retrieves a session by its ID (the JWT jti)
func (r *SessionRepository) GetSession(ctx context.Context, sessionID string) (*models.AdminSession, error) {
	stmt := fmt.Sprintf(`
		SELECT id, user_id, expires_at, ip_address, user_agent, is_revoked, last_activity, created_date
		FROM %s
		WHERE id = ? LIMIT 1`,
		constants.TableSession)

	var s models.AdminSession
	err := r.db.QueryRowContext(ctx, stmt, sessionID).Scan(
		&s.ID,
		&s.UserID,
		&s.ExpiresAt,
		&s.IPAddress,
		&s.UserAgent,
		&s.IsRevoked,
		&s.LastActivity,
		&s.CreatedDate,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// RevokeSession marks a session as revoked
func (r *SessionRepository) RevokeSession(ctx context.Context, sessionID string) error {
	stmt := fmt.Sprintf("UPDATE %s SET is_revoked = 1 WHERE id = ?", constants.TableSession)
	_, err := r.db.ExecContext(ctx, stmt, sessionID)
	return err
}

// RevokeUserSessions revokes every open session of a user except keepID
func (r *SessionRepository) RevokeUserSessions(ctx context.Context, userID, keepID string) error {
	stmt := fmt.Sprintf("UPDATE %s SET is_revoked = 1 WHERE user_id = ? AND id != ? AND is_revoked = 0", constants.TableSession)
	_, err := r.db.ExecContext(ctx, stmt, userID, keepID)
	return err
}

// UpdateLastActivity updates the last activity timestamp
func (r *SessionRepository) UpdateLastActivity(ctx context.Context, sessionID string, at time.Time) error {
	stmt := fmt.Sprintf("UPDATE %s SET last_activity = ? WHERE id = ?", constants.TableSession)
	_, err := r.db.ExecContext(ctx, stmt, at, sessionID)
	return err
}

// DeleteExpired removes sessions that expired before cutoff
func (r *SessionRepository) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	stmt := fmt.Sprintf("DELETE FROM %s WHERE expires_at < ?", constants.TableSession)
	result, err := r.db.ExecContext(ctx, stmt, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
