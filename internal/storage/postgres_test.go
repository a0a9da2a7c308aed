package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danceforge/backoffice/internal/models"
	"github.com/danceforge/backoffice/migrations"
)

func newTestRepository(t *testing.T) *PostgresRepository {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("TEST_DATABASE_DSN not set")
	}

	ctx := context.Background()
	repo, err := NewPostgresRepository(ctx, PostgresConfig{DSN: dsn})
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	require.NoError(t, RunMigrations(ctx, repo.Pool(), migrations.FS, nil))
	// a second pass finds nothing to apply
	require.NoError(t, RunMigrations(ctx, repo.Pool(), migrations.FS, nil))

	_, err = repo.Pool().Exec(ctx, `TRUNCATE readiness_runs`)
	require.NoError(t, err)
	return repo
}

func TestPostgresRuns(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	base := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	old := &models.RunRecord{
		ID: uuid.NewString(), Scope: models.RunScopeAll, Total: 10, Passed: 7, Failed: 3,
		StartedAt: base.Add(-48 * time.Hour), FinishedAt: base.Add(-48*time.Hour + time.Minute),
	}
	recent := &models.RunRecord{
		ID: uuid.NewString(), Scope: models.RunScopeSingle, Target: "dbConnectivity", Total: 1,
		Error: "executing test dbConnectivity: 502", StartedAt: base, FinishedAt: base.Add(time.Second),
	}
	require.NoError(t, repo.RecordRun(ctx, old))
	require.NoError(t, repo.RecordRun(ctx, recent))

	runs, err := repo.ListRuns(ctx, models.RunFilters{})
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, recent.ID, runs[0].ID)
	assert.Equal(t, "dbConnectivity", runs[0].Target)
	assert.False(t, runs[0].Succeeded())
	assert.Equal(t, 7, runs[1].Passed)
	assert.Empty(t, runs[1].Target)

	runs, err = repo.ListRuns(ctx, models.RunFilters{Scope: models.RunScopeAll})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, old.ID, runs[0].ID)

	deleted, err := repo.DeleteRunsBefore(ctx, base.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	runs, err = repo.ListRuns(ctx, models.RunFilters{})
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestPostgresApiClients(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	key := "test-" + uuid.NewString()
	_, err := repo.Pool().Exec(ctx,
		`INSERT INTO api_clients (name, api_key, permissions) VALUES ($1, $2, $3)`,
		"ops", key, `["readiness:*"]`)
	require.NoError(t, err)
	t.Cleanup(func() {
		repo.Pool().Exec(context.Background(), `DELETE FROM api_clients WHERE api_key = $1`, key)
	})

	client, err := repo.GetClientByApiKey(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "ops", client.Name)
	assert.True(t, client.HasPermission(models.PermReadinessRun))
	assert.False(t, client.HasPermission(models.PermCatalogRead))
	assert.Nil(t, client.LastUsedAt)

	require.NoError(t, repo.UpdateClientLastUsed(ctx, key))
	client, err = repo.GetClientByApiKey(ctx, key)
	require.NoError(t, err)
	assert.NotNil(t, client.LastUsedAt)

	_, err = repo.GetClientByApiKey(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
