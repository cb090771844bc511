package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricewatch/config"
	"pricewatch/utils"
)

func TestOpen_CSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "obs.csv")
	require.NoError(t, os.WriteFile(path, []byte("Fecha_Hora,Retailer\nx,y\n"), 0644))

	cfg := &config.Config{SourceKind: config.SourceCSV, CSVPath: path, MaxRetries: 1}
	src, err := Open(context.Background(), cfg, utils.NewNopLogger())
	require.NoError(t, err)
	defer src.Close()

	table, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, table.Rows, 1)
}

func TestOpen_SQLite(t *testing.T) {
	cfg := &config.Config{
		SourceKind:        config.SourceSQLite,
		SQLitePath:        filepath.Join(t.TempDir(), "obs.sqlite"),
		ObservationsTable: "observations",
		MaxRetries:        1,
	}
	src, err := Open(context.Background(), cfg, utils.NewNopLogger())
	require.NoError(t, err)
	defer src.Close()

	table, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Empty(t, table.Rows)
}

func TestOpen_UnknownKind(t *testing.T) {
	_, err := Open(context.Background(), &config.Config{SourceKind: "ftp"}, utils.NewNopLogger())
	assert.Error(t, err)
}

func TestOpenSQLStore_RejectsFileKinds(t *testing.T) {
	_, err := OpenSQLStore(context.Background(), &config.Config{SourceKind: config.SourceCSV})
	assert.ErrorContains(t, err, "not SQL-backed")
}

func TestRetryingSource_RetriesThenFails(t *testing.T) {
	cfg := &config.Config{SourceKind: config.SourceCSV, CSVPath: filepath.Join(t.TempDir(), "missing.csv"), MaxRetries: 2}
	src, err := Open(context.Background(), cfg, utils.NewNopLogger())
	require.NoError(t, err)

	_, err = src.Fetch(context.Background())
	assert.ErrorContains(t, err, "failed after 2 attempts")
}
