package storage

import (
	"context"

	"pricewatch/models"
)

// Source is the interface any raw observation backend must satisfy.
type Source interface {
	Fetch(ctx context.Context) (*models.RawTable, error)
	Close() error
}

// RowWriter persists canonical raw rows (see models.CanonicalHeader).
type RowWriter interface {
	WriteRows(ctx context.Context, rows [][]string) error
	Close() error
}
