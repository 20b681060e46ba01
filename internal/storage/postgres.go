package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib"

	"dailyanalytics/internal/config"
)

var _ Repository = (*PostgresRepository)(nil)

// PostgresRepository is a Repository backed by database/sql and the pgx driver.
type PostgresRepository struct {
	db *sql.DB
}

// Connect opens and pings the database described by cfg.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	slog.Info("Connecting to the database...")

	conn, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	conn.SetMaxOpenConns(cfg.MaxOpenConns)
	conn.SetMaxIdleConns(cfg.MaxIdleConns)
	conn.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()

	if err := conn.PingContext(pingCtx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	slog.Info("Connected to the database.")
	return conn, nil
}

// NewPostgresRepository wraps an open connection.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("%w: migrate: %v", ErrQueryFailed, err)
	}
	return nil
}

const queryCount = "SELECT COUNT(*) FROM analytics_data"

const queryInsert = `
INSERT INTO analytics_data (metric_name, metric_value)
VALUES ($1, $2)
RETURNING id, metric_name, metric_value, created_at
`

func (r *PostgresRepository) Seed(ctx context.Context) error {
	var n int
	if err := r.db.QueryRowContext(ctx, queryCount).Scan(&n); err != nil {
		return fmt.Errorf("%w: count rows: %v", ErrQueryFailed, err)
	}
	if n > 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin seed: %v", ErrQueryFailed, err)
	}
	defer tx.Rollback()

	for _, s := range sampleData {
		if _, err := tx.ExecContext(ctx, queryInsert, s.name, s.value); err != nil {
			return fmt.Errorf("%w: seed %s: %v", ErrQueryFailed, s.name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit seed: %v", ErrQueryFailed, err)
	}
	return nil
}

func (r *PostgresRepository) Insert(ctx context.Context, name string, value *float64) (Metric, error) {
	if err := validate(name, value); err != nil {
		return Metric{}, err
	}

	var v sql.NullFloat64
	if value != nil {
		v = sql.NullFloat64{Float64: *value, Valid: true}
	}

	m, err := scanMetric(r.db.QueryRowContext(ctx, queryInsert, name, v))
	if err != nil {
		return Metric{}, fmt.Errorf("%w: insert %s: %v", ErrQueryFailed, name, err)
	}
	return m, nil
}

const queryRecent = `
SELECT id, metric_name, metric_value, created_at
FROM analytics_data
WHERE created_at >= CURRENT_DATE - INTERVAL '7 days'
ORDER BY created_at DESC, id DESC
`

func (r *PostgresRepository) Recent(ctx context.Context) ([]Metric, error) {
	rows, err := r.db.QueryContext(ctx, queryRecent)
	if err != nil {
		return nil, fmt.Errorf("%w: recent: %v", ErrQueryFailed, err)
	}
	defer rows.Close()

	var out []Metric
	for rows.Next() {
		m, err := scanMetric(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan: %v", ErrQueryFailed, err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: recent: %v", ErrQueryFailed, err)
	}
	return out, nil
}

func (r *PostgresRepository) Close() error {
	return r.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMetric(s scanner) (Metric, error) {
	var (
		m Metric
		v sql.NullFloat64
	)
	if err := s.Scan(&m.ID, &m.MetricName, &v, &m.CreatedAt); err != nil {
		return Metric{}, err
	}
	if v.Valid {
		m.MetricValue = &v.Float64
	}
	return m, nil
}
