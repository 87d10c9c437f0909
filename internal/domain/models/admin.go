package models

import "time"

// AdminUser is a dashboard operator
type AdminUser struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	Name             string     `json:"name"`
	PasswordHash     string     `json:"-"`
	IsActive         bool       `json:"is_active"`
	LastLoginDate    *time.Time `json:"last_login_date,omitempty"`
	CreatedDate      time.Time  `json:"created_date"`
	LastModifiedDate time.Time  `json:"last_modified_date"`
}

// AdminSession is the server-side record of an issued token. ID is the JWT jti.
type AdminSession struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	ExpiresAt    time.Time `json:"expires_at"`
	IPAddress    string    `json:"ip_address"`
	UserAgent    string    `json:"user_agent"`
	IsRevoked    bool      `json:"is_revoked"`
	LastActivity time.Time `json:"last_activity"`
	CreatedDate  time.Time `json:"created_date"`
}
