// Package query builds parameterized SELECT statements for list and search endpoints.
package query

import (
	"fmt"
	"strings"
)

// QueryResult represents the built SQL query and parameters
type QueryResult struct {
	SQL    string
	Params []interface{}
}

// Builder is a fluent SELECT builder. Column names passed to it are
// trusted identifiers; values always travel as parameters.
type Builder struct {
	table        string
	fields       []string
	whereClauses []string
	params       []interface{}
	orderBy      []string
	limit        *int
	offset       int
}

// From creates a new SELECT query builder
func From(table string) *Builder {
	return &Builder{
		table:        table,
		fields:       make([]string, 0),
		whereClauses: make([]string, 0),
		params:       make([]interface{}, 0),
	}
}

// Select specifies which columns to select
func (b *Builder) Select(fields ...string) *Builder {
	for _, field := range fields {
		if field == "*" || strings.ContainsAny(field, "(`") {
			b.fields = append(b.fields, field)
			continue
		}
		b.fields = append(b.fields, fmt.Sprintf("`%s`", field))
	}
	return b
}

// Where adds a WHERE condition
func (b *Builder) Where(condition string, value ...interface{}) *Builder {
	b.whereClauses = append(b.whereClauses, condition)
	b.params = append(b.params, value...)
	return b
}

// WhereRaw adds a raw WHERE condition with parameters
func (b *Builder) WhereRaw(sql string, params []interface{}) *Builder {
	if sql != "" {
		b.whereClauses = append(b.whereClauses, sql)
		b.params = append(b.params, params...)
	}
	return b
}

// WhereAnyLike matches rows where any column contains any of the terms
func (b *Builder) WhereAnyLike(columns []string, terms []string) *Builder {
	if len(columns) == 0 || len(terms) == 0 {
		return b
	}

	conditions := make([]string, 0, len(columns)*len(terms))
	params := make([]interface{}, 0, len(columns)*len(terms))
	for _, term := range terms {
		pattern := "%" + EscapeLike(term) + "%"
		for _, col := range columns {
			conditions = append(conditions, fmt.Sprintf("`%s` LIKE ?", col))
			params = append(params, pattern)
		}
	}
	return b.WhereRaw(fmt.Sprintf("(%s)", strings.Join(conditions, " OR ")), params)
}

// OrderBy appends an ORDER BY column
func (b *Builder) OrderBy(field string, direction string) *Builder {
	col := field
	if !strings.Contains(field, "`") {
		col = fmt.Sprintf("`%s`", field)
	}
	b.orderBy = append(b.orderBy, fmt.Sprintf("%s %s", col, direction))
	return b
}

// Limit adds LIMIT clause
func (b *Builder) Limit(n int) *Builder {
	b.limit = &n
	return b
}

// Offset adds an OFFSET; only emitted together with a limit
func (b *Builder) Offset(n int) *Builder {
	if n > 0 {
		b.offset = n
	}
	return b
}

// Build constructs the final SQL query
func (b *Builder) Build() QueryResult {
	var parts []string

	fields := "*"
	if len(b.fields) > 0 {
		fields = strings.Join(b.fields, ", ")
	}
	parts = append(parts, fmt.Sprintf("SELECT %s FROM `%s`", fields, b.table))

	if len(b.whereClauses) > 0 {
		parts = append(parts, fmt.Sprintf("WHERE %s", strings.Join(b.whereClauses, " AND ")))
	}

	if len(b.orderBy) > 0 {
		parts = append(parts, "ORDER BY "+strings.Join(b.orderBy, ", "))
	}

	if b.limit != nil {
		parts = append(parts, fmt.Sprintf("LIMIT %d", *b.limit))
		if b.offset > 0 {
			parts = append(parts, fmt.Sprintf("OFFSET %d", b.offset))
		}
	}

	return QueryResult{
		SQL:    strings.Join(parts, " "),
		Params: b.params,
	}
}

// EscapeLike escapes LIKE wildcards so user input matches literally
func EscapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`).Replace(s)
}
