package storage

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danceforge/backoffice/migrations"
)

func TestPendingMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"002_runs.sql":    {Data: []byte("SELECT 2")},
		"001_clients.sql": {Data: []byte("SELECT 1")},
		"003_notes.sql":   {Data: []byte("SELECT 3")},
		"README.md":       {Data: []byte("docs")},
		"old/004.sql":     {Data: []byte("SELECT 4")},
	}

	pending, err := PendingMigrations(fsys, map[string]bool{"002_runs.sql": true})
	require.NoError(t, err)
	assert.Equal(t, []string{"001_clients.sql", "003_notes.sql"}, pending)
}

func TestEmbeddedMigrations(t *testing.T) {
	pending, err := PendingMigrations(migrations.FS, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"001_api_clients.sql", "002_readiness_runs.sql"}, pending)
}
