package checklist

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danceforge/backoffice/internal/models"
)

func TestDefaultDefinition(t *testing.T) {
	def, err := DefaultDefinition()
	require.NoError(t, err)

	require.NotEmpty(t, def.Categories)
	assert.Equal(t, "database", def.Categories[0].ID)

	ids := def.TestIDMap()
	itemID, ok := ids.Resolve("dbConnectivity")
	require.True(t, ok)
	assert.Equal(t, "database-1", itemID)

	// aliases resolve to the same item, the first declared id stays canonical
	itemID, ok = ids.Resolve("database-connection")
	require.True(t, ok)
	assert.Equal(t, "database-1", itemID)
	canonical, ok := ids.Canonical("database-1")
	require.True(t, ok)
	assert.Equal(t, "dbConnectivity", canonical)

	for _, cat := range def.Tree() {
		for _, item := range cat.Items {
			assert.Equal(t, models.ItemPending, item.Status)
			assert.Nil(t, item.Result)
		}
	}
}

func TestParseDefinitionRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"empty", "categories: []"},
		{"missing category id", "categories:\n  - title: x\n"},
		{"duplicate category", "categories:\n  - id: a\n  - id: a\n"},
		{"duplicate item", `
categories:
  - id: a
    items:
      - id: i1
  - id: b
    items:
      - id: i1
`},
		{"test id claimed twice", `
categories:
  - id: a
    items:
      - id: i1
        test_ids: [t1]
      - id: i2
        test_ids: [t1]
`},
		{"empty test id", `
categories:
  - id: a
    items:
      - id: i1
        test_ids: [""]
`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDefinition([]byte(tt.yaml))
			assert.ErrorIs(t, err, ErrInvalidDefinition)
		})
	}
}

func TestParseDefinitionBadYAML(t *testing.T) {
	_, err := ParseDefinition([]byte("categories: [:"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidDefinition)
}

func TestLoadDefinitionFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checklist.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testDefinition), 0o644))

	def, err := LoadDefinitionFile(path)
	require.NoError(t, err)
	assert.Len(t, def.Categories, 2)

	_, err = LoadDefinitionFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadDefinitionFallsBackToBuiltin(t *testing.T) {
	def, err := LoadDefinition("")
	require.NoError(t, err)
	assert.Equal(t, "database", def.Categories[0].ID)

	path := filepath.Join(t.TempDir(), "checklist.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testDefinition), 0o644))
	def, err = LoadDefinition(path)
	require.NoError(t, err)
	assert.Len(t, def.Categories, 2)
}

func TestTestIDMapFirstAddWins(t *testing.T) {
	m := NewTestIDMap()
	m.Add("b-alias", "item")
	m.Add("a-alias", "item")
	m.Add("b-alias", "other")

	canonical, ok := m.Canonical("item")
	require.True(t, ok)
	assert.Equal(t, "b-alias", canonical)

	itemID, _ := m.Resolve("b-alias")
	assert.Equal(t, "item", itemID)
	assert.Equal(t, 2, m.Len())

	_, ok = m.Canonical("missing")
	assert.False(t, ok)
}
