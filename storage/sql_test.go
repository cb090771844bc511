package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricewatch/models"
)

func newTestSQLite(t *testing.T) *SQLStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "obs.sqlite"), "observations")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func TestSQLStore_RoundTripPreservesOrder(t *testing.T) {
	store := newTestSQLite(t)
	ctx := context.Background()

	var rows [][]string
	for i := 0; i < 120; i++ {
		rows = append(rows, []string{
			fmt.Sprintf("2024-03-01 %02d:00:00", i%24), "Walmart", fmt.Sprintf("M%03d", i), "Coca 500ml", "20.5", "0", "1",
		})
	}
	require.NoError(t, store.WriteRows(ctx, rows))

	table, err := store.Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.CanonicalHeader, table.Header)
	require.Len(t, table.Rows, 120)
	assert.Equal(t, "M000", table.Rows[0][2])
	assert.Equal(t, "M119", table.Rows[119][2])
	assert.Equal(t, "2024-03-01 00:00:00", table.Rows[0][0])
}

func TestSQLStore_MigrateIsIdempotent(t *testing.T) {
	store := newTestSQLite(t)
	assert.NoError(t, store.Migrate(context.Background()))
}

func TestSQLStore_RejectsShortRow(t *testing.T) {
	store := newTestSQLite(t)
	err := store.WriteRows(context.Background(), [][]string{{"2024-03-01 10:00:00", "Walmart"}})
	assert.ErrorContains(t, err, "has 2 fields")
}

func TestNewSQLiteStore_InvalidTable(t *testing.T) {
	_, err := NewSQLiteStore(filepath.Join(t.TempDir(), "x.sqlite"), "obs; DROP TABLE x")
	assert.ErrorContains(t, err, "invalid table name")
}

func TestSQLStore_PostgresTimestampsAreZoneFree(t *testing.T) {
	store := &SQLStore{dialect: dialectPostgres, table: "observations"}

	ddl := store.createTableDDL()
	assert.Contains(t, ddl, "CREATE TABLE IF NOT EXISTS observations (")
	assert.Regexp(t, `fecha_hora\s+TIMESTAMP\s+NOT NULL`, ddl)
	assert.NotContains(t, ddl, "TIMESTAMPTZ")

	cols := store.selectColumns()
	assert.True(t, strings.HasPrefix(cols, "to_char(fecha_hora, 'YYYY-MM-DD HH24:MI:SS.US')"), cols)
	assert.True(t, strings.HasSuffix(cols, ", cantidad"), cols)
}

func TestSQLStore_SQLiteSelectsPlainColumns(t *testing.T) {
	store := &SQLStore{dialect: dialectSQLite, table: "observations"}
	assert.Equal(t, strings.Join(sqlColumns, ", "), store.selectColumns())
}
