package migrations

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEveryUpMigrationHasDown(t *testing.T) {
	names, err := fs.Glob(FS, "*.up.sql")
	require.NoError(t, err)
	require.NotEmpty(t, names)
	for _, up := range names {
		down := strings.TrimSuffix(up, ".up.sql") + ".down.sql"
		_, err := fs.Stat(FS, down)
		assert.NoError(t, err, "missing %s", down)
	}
}

func TestInitialSchemaCreatesTables(t *testing.T) {
	data, err := fs.ReadFile(FS, "0001_init.up.sql")
	require.NoError(t, err)
	for _, table := range []string{"companies", "data_sources", "financial_records"} {
		assert.Contains(t, string(data), "CREATE TABLE IF NOT EXISTS "+table)
	}
}

func TestRecordColumnsKeepFullValues(t *testing.T) {
	data, err := fs.ReadFile(FS, "0001_init.up.sql")
	require.NoError(t, err)
	schema := string(data)
	assert.Contains(t, schema, "amount          NUMERIC NOT NULL")
	assert.NotContains(t, schema, "NUMERIC(")
	assert.Contains(t, schema, "record_source_name TEXT")
}
