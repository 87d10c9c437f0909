package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionRepository_GetSession(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectQuery("FROM admin_sessions").WithArgs("jti-1").
		WillReturnRows(mock.NewRows([]string{"id", "user_id", "expires_at", "ip_address", "user_agent", "is_revoked", "last_activity", "created_date"}).
			AddRow("jti-1", "u1", now.Add(time.Hour), "127.0.0.1", "curl", false, now, now))

	s, err := NewSessionRepository(db).GetSession(context.Background(), "jti-1")
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, "u1", s.UserID)
	assert.False(t, s.IsRevoked)
}

func TestSessionRepository_GetSessionMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("FROM admin_sessions").WillReturnRows(mock.NewRows([]string{"id"}))

	s, err := NewSessionRepository(db).GetSession(context.Background(), "nope")
	assert.NoError(t, err)
	assert.Nil(t, s)
}
