// Package config loads storefront settings from the environment.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Log type constants
const (
	LogTypeConsole = "console"
	LogTypeFile    = "file"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	// DefaultJWTSecret is only accepted outside production
	DefaultJWTSecret = "dev-secret-change-me"
)

// HTTPSettings configures the API server
type HTTPSettings struct {
	Port           string   `validate:"required,numeric"`
	AllowedOrigins []string `validate:"min=1,dive,required"`
	// TrustedProxies may set X-Forwarded-For. Empty means the peer address is the client.
	TrustedProxies []string `validate:"dive,ip|cidr"`
}

// DatabaseSettings holds the MySQL/TiDB connection parameters
type DatabaseSettings struct {
	Host     string
	Port     string `validate:"required,numeric"`
	User     string
	Password string
	Name     string `validate:"required"`
}

// AuthSettings configures admin session tokens
type AuthSettings struct {
	JWTSecret string        `validate:"required,min=12"`
	TokenTTL  time.Duration `validate:"required"`
}

// MailSettings configures outbound email. An empty Host means log-only delivery.
type MailSettings struct {
	Host        string
	Port        int `validate:"omitempty,min=1,max=65535"`
	Username    string
	Password    string
	From        string `validate:"required,email"`
	ReplyTo     string `validate:"omitempty,email"`
	AdminInbox  string `validate:"required,email"`
	TLSRequired bool
}

// PaymentSettings configures Stripe checkout
type PaymentSettings struct {
	Enabled       bool
	SecretKey     string
	WebhookSecret string
	SuccessURL    string `validate:"omitempty,url"`
	CancelURL     string `validate:"omitempty,url"`
}

// LoggingSettings holds log output configuration
type LoggingSettings struct {
	LogType    string `validate:"required,oneof=console file"`
	FilePath   string
	MaxSize    int
	MaxBackups int
	MaxAge     int
	Compress   bool
}

// SiteSettings describes the public storefront
type SiteSettings struct {
	BaseURL              string `validate:"required,url"`
	AssetVersion         string `validate:"required"`
	ShippingFee          decimal.Decimal
	FreeShippingMin      decimal.Decimal
	FormLimit            int           `validate:"min=1"`
	FormWindow           time.Duration `validate:"required"`
	CampaignPollInterval time.Duration `validate:"required"`
}

// Settings groups every configuration section
type Settings struct {
	Env      string `validate:"oneof=development production test"`
	HTTP     HTTPSettings
	Database DatabaseSettings
	Auth     AuthSettings
	Mail     MailSettings
	Payments PaymentSettings
	Logging  LoggingSettings
	Site     SiteSettings
}

// LoadDotEnv loads the first .env file found in paths. Missing files are not an error.
func LoadDotEnv(paths ...string) {
	if len(paths) == 0 {
		paths = []string{".env", "../.env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			if err := godotenv.Load(p); err == nil {
				log.Printf("📁 Loaded .env from %s", p)
				return
			}
		}
	}
}

// Load reads settings from the environment, applying defaults for anything unset
func Load() (*Settings, error) {
	s := &Settings{
		Env: getEnv("APP_ENV", EnvDevelopment),
		HTTP: HTTPSettings{
			Port:           getEnv("PORT", "3001"),
			AllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),
			TrustedProxies: splitList(os.Getenv("TRUSTED_PROXIES")),
		},
		Database: DatabaseSettings{
			Host:     os.Getenv("TIDB_HOST"),
			Port:     getEnv("TIDB_PORT", "4000"),
			User:     os.Getenv("TIDB_USER"),
			Password: os.Getenv("TIDB_PASSWORD"),
			Name:     getEnv("TIDB_DATABASE", "dapur_sambal"),
		},
		Auth: AuthSettings{
			JWTSecret: getEnv("JWT_SECRET", DefaultJWTSecret),
		},
		Mail: MailSettings{
			Host:        os.Getenv("SMTP_HOST"),
			Username:    os.Getenv("SMTP_USERNAME"),
			Password:    os.Getenv("SMTP_PASSWORD"),
			From:        getEnv("MAIL_FROM", "halo@dapursambal.id"),
			ReplyTo:     os.Getenv("MAIL_REPLY_TO"),
			AdminInbox:  getEnv("MAIL_ADMIN_INBOX", "admin@dapursambal.id"),
			TLSRequired: getEnv("SMTP_TLS", "true") == "true",
		},
		Payments: PaymentSettings{
			Enabled:       getEnv("PAYMENTS_ENABLED", "false") == "true",
			SecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
			WebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		},
		Logging: LoggingSettings{
			LogType:  getEnv("LOG_TYPE", LogTypeConsole),
			FilePath: getEnv("LOG_FILE", "logs/storefront.log"),
			Compress: getEnv("LOG_COMPRESS", "true") == "true",
		},
		Site: SiteSettings{
			BaseURL:      strings.TrimRight(getEnv("SITE_BASE_URL", "http://localhost:3000"), "/"),
			AssetVersion: getEnv("SITE_ASSET_VERSION", "v1"),
		},
	}

	var err error
	if s.Auth.TokenTTL, err = getDuration("JWT_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if s.Mail.Port, err = getInt("SMTP_PORT", 587); err != nil {
		return nil, err
	}
	if s.Logging.MaxSize, err = getInt("LOG_MAX_SIZE_MB", 10); err != nil {
		return nil, err
	}
	if s.Logging.MaxBackups, err = getInt("LOG_MAX_BACKUPS", 3); err != nil {
		return nil, err
	}
	if s.Logging.MaxAge, err = getInt("LOG_MAX_AGE_DAYS", 28); err != nil {
		return nil, err
	}
	if s.Site.FormLimit, err = getInt("FORM_RATE_LIMIT", 5); err != nil {
		return nil, err
	}
	if s.Site.FormWindow, err = getDuration("FORM_RATE_WINDOW", time.Minute); err != nil {
		return nil, err
	}
	pollSeconds, err := getInt("CAMPAIGN_POLL_SECONDS", 60)
	if err != nil {
		return nil, err
	}
	s.Site.CampaignPollInterval = time.Duration(pollSeconds) * time.Second

	if s.Site.ShippingFee, err = decimal.NewFromString(getEnv("SHIPPING_FLAT_FEE", "15000")); err != nil {
		return nil, fmt.Errorf("invalid SHIPPING_FLAT_FEE: %w", err)
	}
	if s.Site.FreeShippingMin, err = decimal.NewFromString(getEnv("FREE_SHIPPING_MIN", "150000")); err != nil {
		return nil, fmt.Errorf("invalid FREE_SHIPPING_MIN: %w", err)
	}

	s.Payments.SuccessURL = getEnv("CHECKOUT_SUCCESS_URL", s.Site.BaseURL+"/checkout/success")
	s.Payments.CancelURL = getEnv("CHECKOUT_CANCEL_URL", s.Site.BaseURL+"/checkout/cancel")

	return s, nil
}

// Validate checks that all settings are usable. Production is strict about secrets.
func (s *Settings) Validate() error {
	validate := validator.New()

	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("validation failed for Settings: %w", err)
	}

	if s.Logging.LogType == LogTypeFile {
		if s.Logging.FilePath == "" {
			return fmt.Errorf("file path is required for file logger")
		}
		if s.Logging.MaxSize < 1 || s.Logging.MaxSize > 100 {
			return fmt.Errorf("max size must be between 1 and 100 MB")
		}
		if s.Logging.MaxBackups < 1 || s.Logging.MaxBackups > 10 {
			return fmt.Errorf("max backups must be between 1 and 10")
		}
		if s.Logging.MaxAge < 1 || s.Logging.MaxAge > 365 {
			return fmt.Errorf("max age must be between 1 and 365 days")
		}
	}

	if s.Site.ShippingFee.IsNegative() || s.Site.FreeShippingMin.IsNegative() {
		return fmt.Errorf("shipping amounts must not be negative")
	}

	if s.Payments.Enabled && s.Payments.SecretKey == "" {
		return fmt.Errorf("STRIPE_SECRET_KEY is required when payments are enabled")
	}

	if s.IsProduction() {
		if s.Auth.JWTSecret == DefaultJWTSecret {
			return fmt.Errorf("JWT_SECRET must be set in production")
		}
		if s.Payments.Enabled && s.Payments.WebhookSecret == "" {
			return fmt.Errorf("STRIPE_WEBHOOK_SECRET is required in production")
		}
	}

	return nil
}

// IsProduction reports whether strict production rules apply
func (s *Settings) IsProduction() bool {
	return s.Env == EnvProduction
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
