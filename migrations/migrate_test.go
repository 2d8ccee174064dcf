package migrations

import (
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOrdersByVersion(t *testing.T) {
	fsys := fstest.MapFS{
		"sql/0002_b.sql": {Data: []byte("SELECT 2;")},
		"sql/0001_a.sql": {Data: []byte("SELECT 1;")},
		"sql/README.md":  {Data: []byte("ignored")},
	}
	got, err := load(fsys)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "0001_a", got[0].Version)
	assert.Equal(t, "0002_b", got[1].Version)
}

func TestEmbeddedSchemaCoversEveryTable(t *testing.T) {
	got, err := Load()
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Equal(t, "0001_init", got[0].Version)

	for _, table := range []string{
		"categories", "products", "customers", "users", "inventory_movements",
		"sales", "sale_items", "reservations", "reservation_items", "audit_logs", "idempotency_keys",
	} {
		assert.True(t, strings.Contains(got[0].SQL, "CREATE TABLE "+table+" ("), "missing table %s", table)
	}
}

func TestItemTablesCarryLineNumbers(t *testing.T) {
	got, err := Load()
	require.NoError(t, err)
	schema := got[0].SQL
	assert.Contains(t, schema, "UNIQUE (sale_id, line_no)")
	assert.Contains(t, schema, "UNIQUE (reservation_id, line_no)")
}
