package database

import (
	"context"
	"crypto/tls"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/dapursambal/storefront/internal/config"
)

// Connection wraps the shared *sql.DB.
// sql.DB is already safe for concurrent use and pools its own connections,
// so no extra locking is layered on top.
type Connection struct {
	db *sql.DB
}

var tlsOnce sync.Once

// DSN builds the driver DSN. Remote hosts (TiDB Cloud) get a registered TLS config.
func DSN(settings config.DatabaseSettings) string {
	tlsParam := ""
	if settings.Host != "" && settings.Host != "127.0.0.1" && settings.Host != "localhost" {
		tlsOnce.Do(func() {
			if err := mysql.RegisterTLSConfig("tidb", &tls.Config{
				MinVersion: tls.VersionTLS12,
				ServerName: settings.Host,
			}); err != nil {
				log.Printf("⚠️ Failed to register TLS config: %v", err)
			}
		})
		tlsParam = "&tls=tidb"
	}

	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC%s",
		settings.User, settings.Password, settings.Host, settings.Port, settings.Name, tlsParam)
}

// Open connects to MySQL/TiDB and verifies the connection
func Open(ctx context.Context, settings config.DatabaseSettings) (*Connection, error) {
	db, err := sql.Open("mysql", DSN(settings))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// MaxIdleConns matches MaxOpenConns so pooled connections are reused
	// instead of churning ephemeral ports.
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(3 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Connection{db: db}, nil
}

// NewConnection wraps an existing handle (sqlmock in tests)
func NewConnection(db *sql.DB) *Connection {
	return &Connection{db: db}
}

// BeginTx starts a new transaction with context
func (c *Connection) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	return c.db.BeginTx(ctx, opts)
}

// DB returns the underlying *sql.DB
func (c *Connection) DB() *sql.DB {
	return c.db
}

// Close closes the database connection
func (c *Connection) Close() error {
	return c.db.Close()
}
