package migrations

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(files, "sql")
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	ups, downs := map[string]bool{}, map[string]bool{}
	for _, entry := range entries {
		name := entry.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		default:
			t.Errorf("unexpected file %s", name)
		}
	}
	assert.Equal(t, ups, downs)
}

func TestSchemaDeclaresBothTables(t *testing.T) {
	data, err := fs.ReadFile(files, "sql/000001_create_webhooks.up.sql")
	require.NoError(t, err)

	schema := string(data)
	assert.Contains(t, schema, "CREATE TABLE IF NOT EXISTS webhooks")
	assert.Contains(t, schema, "CREATE TABLE IF NOT EXISTS webhook_statuses")
	assert.Contains(t, schema, "operator_required")
}

func TestPayloadIsStoredAsBytes(t *testing.T) {
	data, err := fs.ReadFile(files, "sql/000002_webhook_payload_bytes.up.sql")
	require.NoError(t, err)
	assert.Contains(t, string(data), "payload TYPE BYTEA")
}
