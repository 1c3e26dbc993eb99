package migrations

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScriptsCoverEntryTables(t *testing.T) {
	scripts, err := Scripts()
	require.NoError(t, err)
	require.NotEmpty(t, scripts)
	require.Equal(t, "0001_catalog.sql", scripts[0].Name)

	var all strings.Builder
	for _, s := range scripts {
		all.WriteString(s.SQL)
	}
	for _, table := range []string{
		"units", "products", "product_units", "inventory_balances",
		"entry_documents", "entry_lines", "entry_batches", "entry_sequences",
		"idempotency_keys", "audit_logs",
	} {
		require.Contains(t, all.String(), "CREATE TABLE IF NOT EXISTS "+table+" ", table)
	}
}
