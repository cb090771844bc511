package services

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"pricewatch/models"
	"pricewatch/utils"
)

// TableSource delivers the raw observation table.
type TableSource interface {
	Fetch(ctx context.Context) (*models.RawTable, error)
}

// SnapshotStore holds the live snapshot. Refresh swaps in a new one
// atomically; readers holding the previous snapshot keep a consistent view.
type SnapshotStore struct {
	current    atomic.Pointer[models.Snapshot]
	normalizer *Normalizer
	logger     *utils.Logger
	now        func() time.Time
}

// NewSnapshotStore creates an empty store.
func NewSnapshotStore(normalizer *Normalizer, logger *utils.Logger) *SnapshotStore {
	return &SnapshotStore{normalizer: normalizer, logger: logger, now: time.Now}
}

// Current returns the live snapshot, or nil before the first load.
func (s *SnapshotStore) Current() *models.Snapshot {
	return s.current.Load()
}

// Replace installs snap as the live snapshot.
func (s *SnapshotStore) Replace(snap *models.Snapshot) {
	s.current.Store(snap)
}

// Refresh fetches and normalizes a fresh table from src. On any failure the
// live snapshot is left untouched.
func (s *SnapshotStore) Refresh(ctx context.Context, src TableSource) (*models.Snapshot, error) {
	table, err := src.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot: fetch: %w", err)
	}
	obs, err := s.normalizer.Normalize(table)
	if err != nil {
		return nil, fmt.Errorf("snapshot: normalize: %w", err)
	}

	snap := models.NewSnapshot(obs, s.now())
	s.current.Store(snap)
	s.logger.Info("[snapshot] Loaded snapshot %s with %d observations", snap.ID, len(obs))
	return snap, nil
}
