// Package storage persists analytics metrics in the analytics_data table.
package storage

import (
	"context"
	_ "embed"
	"errors"
	"log/slog"
	"math"
	"time"

	"dailyanalytics/internal/config"
)

//go:embed schema.sql
var Schema string

// RecentWindow is how far back Recent looks, counted from the start of today.
const RecentWindow = 7 * 24 * time.Hour

var (
	ErrQueryFailed   = errors.New("storage: query failed")
	ErrInvalidMetric = errors.New("storage: invalid metric")
)

// Metric is one row of analytics_data.
type Metric struct {
	ID          int64     `json:"id"`
	MetricName  string    `json:"metric_name"`
	MetricValue *float64  `json:"metric_value"`
	CreatedAt   time.Time `json:"created_at"`
}

// Repository stores metrics.
type Repository interface {
	// Migrate creates the table if it does not exist.
	Migrate(ctx context.Context) error
	// Seed inserts the sample rows when the table is empty.
	Seed(ctx context.Context) error
	Insert(ctx context.Context, name string, value *float64) (Metric, error)
	// Recent returns rows created since the start of the day seven days ago,
	// newest first.
	Recent(ctx context.Context) ([]Metric, error)
	Close() error
}

type sampleMetric struct {
	name  string
	value float64
}

var sampleData = []sampleMetric{
	{"Total Users", 1000},
	{"Active Sessions", 500},
	{"Revenue", 10000.50},
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// roundDecimal mirrors DECIMAL(15,2).
func roundDecimal(v *float64) *float64 {
	if v == nil {
		return nil
	}
	r := math.Round(*v*100) / 100
	return &r
}

func validate(name string, value *float64) error {
	if name == "" || len(name) > 255 {
		return ErrInvalidMetric
	}
	if value != nil && (math.IsNaN(*value) || math.IsInf(*value, 0) || math.Abs(*value) >= 1e13) {
		return ErrInvalidMetric
	}
	return nil
}

// recentCutoff is CURRENT_DATE - INTERVAL '7 days' for now.
func recentCutoff(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, now.Location()).Add(-RecentWindow)
}

// Open returns a Postgres repository when cfg.DSN is set and an in-memory one
// otherwise. The schema is migrated and, if configured, seeded.
func Open(ctx context.Context, cfg config.DatabaseConfig) (Repository, error) {
	var repo Repository
	if cfg.DSN == "" {
		slog.Info("No database DSN configured, using in-memory metrics store")
		repo = NewMemoryRepository()
	} else {
		conn, err := Connect(ctx, cfg)
		if err != nil {
			return nil, err
		}
		repo = NewPostgresRepository(conn)
	}

	if err := repo.Migrate(ctx); err != nil {
		repo.Close()
		return nil, err
	}
	if cfg.SeedSampleData {
		if err := repo.Seed(ctx); err != nil {
			repo.Close()
			return nil, err
		}
	}
	return repo, nil
}
