package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "")
	t.Setenv("PORT", "")
	t.Setenv("CAMPAIGN_POLL_SECONDS", "")

	s, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, s.Env)
	assert.Equal(t, "3001", s.HTTP.Port)
	assert.Equal(t, 24*time.Hour, s.Auth.TokenTTL)
	assert.Equal(t, 60*time.Second, s.Site.CampaignPollInterval)
	assert.Equal(t, 5, s.Site.FormLimit)
	assert.Empty(t, s.HTTP.TrustedProxies)
	assert.True(t, s.Site.ShippingFee.Equal(decimal.NewFromInt(15000)))
	assert.NoError(t, s.Validate())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://dapursambal.id, https://www.dapursambal.id")
	t.Setenv("SITE_BASE_URL", "https://dapursambal.id/")
	t.Setenv("FORM_RATE_WINDOW", "30s")

	s, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", s.HTTP.Port)
	assert.Equal(t, []string{"https://dapursambal.id", "https://www.dapursambal.id"}, s.HTTP.AllowedOrigins)
	assert.Equal(t, "https://dapursambal.id", s.Site.BaseURL)
	assert.Equal(t, "https://dapursambal.id/checkout/success", s.Payments.SuccessURL)
	assert.Equal(t, 30*time.Second, s.Site.FormWindow)
}

func TestLoad_TrustedProxies(t *testing.T) {
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 127.0.0.1")

	s, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.0/8", "127.0.0.1"}, s.HTTP.TrustedProxies)
	assert.NoError(t, s.Validate())

	s.HTTP.TrustedProxies = []string{"load-balancer"}
	assert.Error(t, s.Validate())
}

func TestLoad_InvalidNumber(t *testing.T) {
	t.Setenv("SMTP_PORT", "not-a-port")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func(t *testing.T) *Settings {
		s, err := Load()
		require.NoError(t, err)
		return s
	}

	t.Run("production requires a real secret", func(t *testing.T) {
		s := base(t)
		s.Env = EnvProduction
		assert.Error(t, s.Validate())

		s.Auth.JWTSecret = "a-much-longer-production-secret"
		assert.NoError(t, s.Validate())
	})

	t.Run("payments need a stripe key", func(t *testing.T) {
		s := base(t)
		s.Payments.Enabled = true
		s.Payments.SecretKey = ""
		assert.Error(t, s.Validate())
	})

	t.Run("file logger bounds", func(t *testing.T) {
		s := base(t)
		s.Logging.LogType = LogTypeFile
		s.Logging.MaxSize = 0
		assert.Error(t, s.Validate())
	})

	t.Run("unknown log type", func(t *testing.T) {
		s := base(t)
		s.Logging.LogType = "syslog"
		assert.Error(t, s.Validate())
	})
}
