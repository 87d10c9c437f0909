package database

import (
	"context"
	_ "embed"
	"fmt"
	"log"
	"strings"
)

//go:embed schema.sql
var schemaSQL string

// Statements splits the embedded schema into individual DDL statements.
// The driver runs without multiStatements, so each one is executed on its own.
func Statements() []string {
	var stmts []string
	for _, part := range strings.Split(schemaSQL, ";") {
		var lines []string
		for _, line := range strings.Split(part, "\n") {
			if strings.HasPrefix(strings.TrimSpace(line), "--") {
				continue
			}
			lines = append(lines, line)
		}
		if stmt := strings.TrimSpace(strings.Join(lines, "\n")); stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}

// Migrate creates every table that does not exist yet. Safe to run repeatedly.
func Migrate(ctx context.Context, conn *Connection) error {
	stmts := Statements()
	for i, stmt := range stmts {
		if _, err := conn.DB().ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration statement %d failed: %w", i+1, err)
		}
	}
	log.Printf("✅ Schema ready (%d statements)", len(stmts))
	return nil
}
