package services

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/dapursambal/storefront/internal/domain/models"
	"github.com/dapursambal/storefront/internal/infrastructure/persistence"
	"github.com/dapursambal/storefront/pkg/auth"
	"github.com/dapursambal/storefront/pkg/errors"
	"github.com/dapursambal/storefront/pkg/forms"
	"github.com/dapursambal/storefront/pkg/utils"
)

// AuthService handles admin authentication, session management, and password operations
type AuthService struct {
	users    *persistence.AdminUserRepository
	sessions *persistence.SessionRepository
	tokens   *auth.TokenIssuer
	now      func() time.Time
}

// NewAuthService creates a new AuthService
func NewAuthService(db *sql.DB, tokens *auth.TokenIssuer) *AuthService {
	return &AuthService{
		users:    persistence.NewAdminUserRepository(db),
		sessions: persistence.NewSessionRepository(db),
		tokens:   tokens,
		now:      nowUTC,
	}
}

// LoginResult contains the result of a successful login
type LoginResult struct {
	Token     string            `json:"token"`
	User      auth.AdminSession `json:"user"`
	ExpiresAt time.Time         `json:"expires_at"`
}

// Login authenticates an admin and creates a session
func (s *AuthService) Login(ctx context.Context, email, password, ip, userAgent string) (*LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	if user == nil {
		log.Printf("⚠️ Login failed for %s: user not found", email)
		return nil, errors.NewUnauthorizedError("Invalid email or password")
	}
	if !user.IsActive {
		log.Printf("⚠️ Login failed for %s: account disabled", email)
		return nil, errors.NewUnauthorizedError("Invalid email or password")
	}
	if !auth.VerifyPassword(password, user.PasswordHash) {
		log.Printf("⚠️ Login failed for %s: invalid password", email)
		return nil, errors.NewUnauthorizedError("Invalid email or password")
	}

	identity := auth.AdminSession{ID: user.ID, Name: user.Name, Email: user.Email}
	token, claims, err := s.tokens.Generate(identity)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	now := s.now()
	session := &models.AdminSession{
		ID:           claims.ID,
		UserID:       user.ID,
		ExpiresAt:    claims.ExpiresAt.Time.UTC(),
		IPAddress:    ip,
		UserAgent:    userAgent,
		LastActivity: now,
		CreatedDate:  now,
	}
	if err := s.sessions.InsertSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to persist session: %w", err)
	}
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		log.Printf("⚠️ Failed to update last login for %s: %v", user.ID, err)
	}

	log.Printf("🔐 Admin logged in: %s", user.Email)
	return &LoginResult{Token: token, User: identity, ExpiresAt: session.ExpiresAt}, nil
}

// ValidateSession checks the token signature, then that its session row is live
func (s *AuthService) ValidateSession(ctx context.Context, tokenString string) (*auth.Claims, error) {
	claims, err := s.tokens.Validate(tokenString)
	if err != nil {
		return nil, errors.NewUnauthorizedError("Invalid or expired token")
	}

	session, err := s.sessions.GetSession(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	if session == nil {
		return nil, errors.NewUnauthorizedError("Session not found")
	}
	if session.IsRevoked {
		return nil, errors.NewUnauthorizedError("Session has been revoked")
	}
	if !session.ExpiresAt.After(s.now()) {
		return nil, errors.NewUnauthorizedError("Session has expired")
	}
	return claims, nil
}

// TouchSession updates the last activity timestamp for a session
func (s *AuthService) TouchSession(sessionID string) {
	// Fire and forget
	go func() {
		_ = s.sessions.UpdateLastActivity(context.Background(), sessionID, s.now())
	}()
}

// Logout revokes a session
func (s *AuthService) Logout(ctx context.Context, tokenString string) error {
	claims, err := auth.DecodeToken(tokenString)
	if err != nil {
		return errors.NewValidationError("token", "Invalid token")
	}
	if err := s.sessions.RevokeSession(ctx, claims.ID); err != nil {
		return err
	}
	log.Printf("👋 Admin logged out: %s (Session: %s)", claims.Subject, claims.ID)
	return nil
}

// ChangePassword updates an admin's password and revokes their other sessions
func (s *AuthService) ChangePassword(ctx context.Context, userID, sessionID, currentPassword, newPassword string) error {
	if err := auth.ValidatePasswordStrength(newPassword); err != nil {
		return errors.NewValidationError("new_password", err.Error())
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to retrieve user: %w", err)
	}
	if user == nil {
		return errors.NewNotFoundError("admin", userID)
	}
	if !auth.VerifyPassword(currentPassword, user.PasswordHash) {
		return errors.NewUnauthorizedError("Current password is incorrect")
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		return err
	}
	if err := s.sessions.RevokeUserSessions(ctx, userID, sessionID); err != nil {
		log.Printf("⚠️ Failed to revoke other sessions for %s: %v", userID, err)
	}
	log.Printf("🔐 Password changed for admin: %s", userID)
	return nil
}

// CreateAdmin adds an admin account. Used by the CLI.
func (s *AuthService) CreateAdmin(ctx context.Context, email, name, password string) (*models.AdminUser, error) {
	email = forms.NormalizeEmail(email)
	if !forms.IsValidEmail(email) {
		return nil, errors.NewValidationError("email", "Email address is invalid")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.NewValidationError("name", "Name is required")
	}
	if err := auth.ValidatePasswordStrength(password); err != nil {
		return nil, errors.NewValidationError("password", err.Error())
	}

	exists, err := s.users.EmailExists(ctx, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, errors.NewConflictError("admin", "email", email)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	now := s.now()
	user := &models.AdminUser{
		ID:               utils.GenerateID(),
		Email:            email,
		Name:             name,
		PasswordHash:     hash,
		IsActive:         true,
		CreatedDate:      now,
		LastModifiedDate: now,
	}
	if err := s.users.Insert(ctx, user); err != nil {
		if isDuplicateKey(err) {
			return nil, errors.NewConflictError("admin", "email", email)
		}
		return nil, err
	}
	return user, nil
}

// GetAdmin returns the admin behind a session
func (s *AuthService) GetAdmin(ctx context.Context, userID string) (*models.AdminUser, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, errors.NewNotFoundError("admin", userID)
	}
	return user, nil
}

// PurgeExpiredSessions deletes session rows that expired before cutoff
func (s *AuthService) PurgeExpiredSessions(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.sessions.DeleteExpired(ctx, cutoff)
}
