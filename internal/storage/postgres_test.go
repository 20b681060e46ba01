package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/ferdiebergado/gopherkit/env"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dailyanalytics/internal/config"
)

// openTestDB connects to ANALYTICS_TEST_DATABASE_DSN, loading .env.testing
// from the module root when present. The test is skipped without a DSN.
func openTestDB(t *testing.T) *PostgresRepository {
	t.Helper()

	if _, err := os.Stat("../../.env.testing"); err == nil {
		if err := env.Load("../../.env.testing"); err != nil {
			t.Fatalf("load .env.testing: %v", err)
		}
	}

	dsn := os.Getenv("ANALYTICS_TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("ANALYTICS_TEST_DATABASE_DSN not set")
	}

	cfg := config.Default().Database
	cfg.DSN = dsn
	cfg.PingTimeout = 5 * time.Second

	conn, err := Connect(context.Background(), cfg)
	require.NoError(t, err)

	repo := NewPostgresRepository(conn)
	require.NoError(t, repo.Migrate(context.Background()))

	_, err = conn.Exec("TRUNCATE analytics_data RESTART IDENTITY")
	require.NoError(t, err)

	t.Cleanup(func() {
		conn.Exec("TRUNCATE analytics_data RESTART IDENTITY")
		repo.Close()
	})
	return repo
}

func TestPostgresRepository(t *testing.T) {
	repo := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, repo.Seed(ctx))
	require.NoError(t, repo.Seed(ctx))

	m, err := repo.Insert(ctx, "Bounce Rate", Float(0.425))
	require.NoError(t, err)
	assert.Positive(t, m.ID)

	_, err = repo.Insert(ctx, "Pending", nil)
	require.NoError(t, err)

	rows, err := repo.Recent(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 5)

	assert.Equal(t, "Pending", rows[0].MetricName)
	assert.Nil(t, rows[0].MetricValue)
	for i := 1; i < len(rows); i++ {
		assert.False(t, rows[i].CreatedAt.After(rows[i-1].CreatedAt))
	}
}
