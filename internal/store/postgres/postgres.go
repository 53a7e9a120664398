// Package postgres implements internal/store.Store against PostgreSQL
// using database/sql plus lib/pq, following the teacher's
// BaseStore/SelectBuilder/tx-in-context idiom.
package postgres

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"
)

// Store is the PostgreSQL-backed implementation of store.Store.
type Store struct {
	db *sql.DB
}

// New opens a connection pool against dsn and wraps it as a Store. The
// caller is responsible for running migrations beforehand.
func New(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{db: db}, nil
}

// NewWithDB wraps an already-open *sql.DB, the shape sqlmock-based
// tests construct a Store from.
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

// Close closes the underlying connection pool.
func (s *Store) Close() error { return s.db.Close() }

// SelectBuilder incrementally builds a parameterized SELECT statement
// against PostgreSQL's $N placeholder syntax.
type SelectBuilder struct {
	table      string
	columns    []string
	conditions []string
	args       []any
	orderBy    []string
	limit      int
	argIndex   int
}

// NewSelectBuilder starts a SelectBuilder over table.
func NewSelectBuilder(table string) *SelectBuilder {
	return &SelectBuilder{table: table, argIndex: 1}
}

// Columns sets the projected columns; defaults to "*" if never called.
func (b *SelectBuilder) Columns(cols ...string) *SelectBuilder {
	b.columns = cols
	return b
}

// WhereEq adds a "column = $N" condition.
func (b *SelectBuilder) WhereEq(column string, value any) *SelectBuilder {
	b.conditions = append(b.conditions, fmt.Sprintf("%s = $%d", column, b.argIndex))
	b.args = append(b.args, value)
	b.argIndex++
	return b
}

// WhereIn adds a "column IN ($N, ...)" condition. An empty values slice
// renders an always-false condition rather than invalid SQL.
func (b *SelectBuilder) WhereIn(column string, values []any) *SelectBuilder {
	if len(values) == 0 {
		b.conditions = append(b.conditions, "1 = 0")
		return b
	}
	placeholders := make([]string, len(values))
	for i, v := range values {
		placeholders[i] = fmt.Sprintf("$%d", b.argIndex)
		b.args = append(b.args, v)
		b.argIndex++
	}
	b.conditions = append(b.conditions, fmt.Sprintf("%s IN (%s)", column, strings.Join(placeholders, ", ")))
	return b
}

// OrderBy appends an ORDER BY clause.
func (b *SelectBuilder) OrderBy(column string, desc bool) *SelectBuilder {
	order := "ASC"
	if desc {
		order = "DESC"
	}
	b.orderBy = append(b.orderBy, fmt.Sprintf("%s %s", column, order))
	return b
}

// Limit sets a LIMIT clause; zero or negative means unbounded.
func (b *SelectBuilder) Limit(n int) *SelectBuilder {
	b.limit = n
	return b
}

// Build renders the final query and its positional arguments.
func (b *SelectBuilder) Build() (string, []any) {
	cols := "*"
	if len(b.columns) > 0 {
		cols = strings.Join(b.columns, ", ")
	}
	query := fmt.Sprintf("SELECT %s FROM %s", cols, b.table)
	if len(b.conditions) > 0 {
		query += " WHERE " + strings.Join(b.conditions, " AND ")
	}
	if len(b.orderBy) > 0 {
		query += " ORDER BY " + strings.Join(b.orderBy, ", ")
	}
	if b.limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", b.limit)
	}
	return query, b.args
}
