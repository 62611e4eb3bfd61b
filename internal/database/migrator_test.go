package database

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListMigrationsSortsUpFiles(t *testing.T) {
	fsys := fstest.MapFS{
		"0002_orders.up.sql":    {Data: []byte("SELECT 2")},
		"0001_catalog.up.sql":   {Data: []byte("SELECT 1")},
		"0001_catalog.down.sql": {Data: []byte("SELECT 0")},
		"notes.txt":             {Data: []byte("x")},
	}

	names, err := ListMigrations(fsys, ".")
	require.NoError(t, err)
	assert.Equal(t, []string{"0001_catalog.up.sql", "0002_orders.up.sql"}, names)
}

func TestBundledMigrationsCoverSchema(t *testing.T) {
	names, err := ListMigrations(Migrations(), ".")
	require.NoError(t, err)
	require.NotEmpty(t, names)
	assert.Equal(t, "0001_catalog.up.sql", names[0])
	assert.Contains(t, names, "0004_conversations.up.sql")
	assert.Equal(t, "0005_checkout_key.up.sql", names[len(names)-1])
}
