package storage

import (
	"context"
	"fmt"
	"time"

	"pricewatch/config"
	"pricewatch/models"
	"pricewatch/utils"
)

// Open builds the Source selected by cfg.SourceKind. Fetches are retried with
// exponential back-off using cfg.MaxRetries.
func Open(ctx context.Context, cfg *config.Config, logger *utils.Logger) (Source, error) {
	var (
		src Source
		err error
	)

	switch cfg.SourceKind {
	case config.SourceCSV:
		src = NewCSVSource(cfg.CSVPath)
	case config.SourceXLSX:
		src = NewXLSXSource(cfg.XLSXPath, cfg.XLSXSheet)
	case config.SourceSheets:
		src, err = NewSheetsSource(ctx, cfg.SheetsCredentialsFile, cfg.SheetsSpreadsheetID, cfg.SheetsRange)
	case config.SourcePostgres, config.SourceSQLite:
		src, err = OpenSQLStore(ctx, cfg)
	default:
		return nil, fmt.Errorf("storage: unknown source kind %q", cfg.SourceKind)
	}
	if err != nil {
		return nil, err
	}

	logger.Info("[storage] Using %s source", cfg.SourceKind)
	return &retryingSource{
		Source: src,
		name:   cfg.SourceKind + " fetch",
		retry: &utils.RetryConfig{
			MaxAttempts: cfg.MaxRetries,
			BaseDelay:   500 * time.Millisecond,
			Logger:      logger,
		},
	}, nil
}

// OpenSQLStore opens and migrates the SQL store for the configured kind.
// It fails for kinds that are not SQL-backed.
func OpenSQLStore(ctx context.Context, cfg *config.Config) (*SQLStore, error) {
	var (
		store *SQLStore
		err   error
	)
	switch cfg.SourceKind {
	case config.SourcePostgres:
		store, err = NewPostgresStore(cfg.DSN(), cfg.ObservationsTable)
	case config.SourceSQLite:
		store, err = NewSQLiteStore(cfg.SQLitePath, cfg.ObservationsTable)
	default:
		return nil, fmt.Errorf("storage: source kind %q is not SQL-backed", cfg.SourceKind)
	}
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

type retryingSource struct {
	Source
	name  string
	retry *utils.RetryConfig
}

func (r *retryingSource) Fetch(ctx context.Context) (*models.RawTable, error) {
	var table *models.RawTable
	err := r.retry.Do(ctx, r.name, func() error {
		var err error
		table, err = r.Source.Fetch(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return table, nil
}
