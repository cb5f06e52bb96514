// Package postgres provides the Postgres-backed analytical result store.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pagepulse/pagepulse/internal/audit"
	"github.com/pagepulse/pagepulse/internal/telemetry"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ResultStoreConfig controls the Postgres connection pool used for audit rows.
type ResultStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type batchCloser interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	Close()
}

// ResultStore writes formatted audit records into a date-partitioned table.
// Only the allow-listed columns are forwarded; unlisted record fields are
// silently dropped.
type ResultStore struct {
	pool    batchCloser
	table   string
	columns []string
}

// allowedColumns derives the column allow-list from the field mapping plus
// the fixed stamp columns the formatter always emits.
func allowedColumns(mapping audit.FieldMapping) []string {
	columns := []string{"date", "timestamp", "time", "url", "mode", "blocked_requests", "performance_score"}
	for _, field := range mapping {
		columns = append(columns, field.Column, field.Column+"_score")
	}
	return columns
}

// NewResultStore creates a Postgres-backed ResultStore using the provided config.
func NewResultStore(ctx context.Context, cfg ResultStoreConfig, mapping audit.FieldMapping) (*ResultStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return newResultStore(pool, cfg.Table, mapping)
}

// NewResultStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewResultStoreWithPool(pool batchCloser, table string, mapping audit.FieldMapping) (*ResultStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return newResultStore(pool, table, mapping)
}

func newResultStore(pool batchCloser, table string, mapping audit.FieldMapping) (*ResultStore, error) {
	if table == "" {
		table = "audit_results"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	if err := mapping.Validate(); err != nil {
		return nil, fmt.Errorf("field mapping: %w", err)
	}
	return &ResultStore{
		pool:    pool,
		table:   table,
		columns: allowedColumns(mapping),
	}, nil
}

// Close releases the underlying pool resources.
func (s *ResultStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// StoreRecords batch-inserts the records, one row per record.
func (s *ResultStore) StoreRecords(ctx context.Context, records []audit.Record) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("result store is not configured")
	}
	if len(records) == 0 {
		return nil
	}

	query := s.insertQuery()
	batch := &pgx.Batch{}
	for _, rec := range records {
		args := make([]any, 0, len(s.columns))
		for _, col := range s.columns {
			args = append(args, rec[col])
		}
		batch.Queue(query, args...)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close() //nolint:errcheck // errors surface via Exec below
	for range records {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("insert audit record: %w", err)
		}
	}
	telemetry.IncRecordsStored(len(records))
	return nil
}

func (s *ResultStore) insertQuery() string {
	placeholders := make([]string, len(s.columns))
	for i := range s.columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		s.table,
		strings.Join(s.columns, ", "),
		strings.Join(placeholders, ", "),
	)
}
