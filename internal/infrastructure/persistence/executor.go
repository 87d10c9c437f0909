package persistence

import (
	"context"
	"database/sql"
	"time"
)

// Executor lets repository methods run on either *sql.DB or *sql.Tx
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Scannable is satisfied by *sql.Row and *sql.Rows
type Scannable interface {
	Scan(dest ...interface{}) error
}

func nullTimePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

func timeArg(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

func rowsAffected(result sql.Result, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
