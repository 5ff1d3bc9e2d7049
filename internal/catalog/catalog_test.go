package catalog_test

import (
	"os"
	"path/filepath"
	"testing"

	"ms-events/internal/catalog"
	"ms-events/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	c, err := catalog.Default()
	require.NoError(t, err)

	all := c.All()
	assert.Len(t, all, 6)
	assert.Equal(t, "Baseball", all[0].Name)

	sport, ok := c.ByName("Basketball")
	assert.True(t, ok)
	assert.Equal(t, 2, sport.ID)

	sport, ok = c.ByID(1)
	assert.True(t, ok)
	assert.Equal(t, "Soccer", sport.Name)

	_, ok = c.ByName("Curling")
	assert.False(t, ok)

	// Lookup is by exact display name
	_, ok = c.ByName("basketball")
	assert.False(t, ok)
}

func TestAllReturnsCopy(t *testing.T) {
	c, err := catalog.Default()
	require.NoError(t, err)

	all := c.All()
	all[0].Name = "Changed"

	sport, ok := c.ByID(5)
	require.True(t, ok)
	assert.Equal(t, "Baseball", sport.Name)
	assert.Equal(t, "Baseball", c.All()[0].Name)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sports.yaml")
	err := os.WriteFile(path, []byte("sports:\n  - id: 7\n    name: Volleyball\n"), 0o644)
	require.NoError(t, err)

	c, err := catalog.Load(path)
	require.NoError(t, err)

	sport, ok := c.ByName("Volleyball")
	assert.True(t, ok)
	assert.Equal(t, 7, sport.ID)

	_, err = catalog.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadEmptyPathUsesDefault(t *testing.T) {
	c, err := catalog.Load("")
	require.NoError(t, err)
	assert.Len(t, c.All(), 6)
}

func TestNewRejectsInvalidEntries(t *testing.T) {
	tests := []struct {
		name   string
		sports []models.Sport
	}{
		{name: "empty", sports: nil},
		{name: "zero id", sports: []models.Sport{{ID: 0, Name: "Soccer"}}},
		{name: "blank name", sports: []models.Sport{{ID: 1, Name: "  "}}},
		{name: "duplicate id", sports: []models.Sport{{ID: 1, Name: "Soccer"}, {ID: 1, Name: "Tennis"}}},
		{name: "duplicate name", sports: []models.Sport{{ID: 1, Name: "Soccer"}, {ID: 2, Name: "Soccer"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := catalog.New(tt.sports)
			assert.Error(t, err)
		})
	}
}

func TestParseInvalidYAML(t *testing.T) {
	_, err := catalog.Parse([]byte("sports: [::"))
	assert.Error(t, err)
}
