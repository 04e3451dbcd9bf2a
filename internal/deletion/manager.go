// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Alexei Velichko

// Package deletion decides between soft and hard deletes and reconciles
// tombstones after a sync run. An item that has been synced (or arrived
// from the cloud) gets a tombstone so the deletion can propagate; an item
// that never left this device is hard-deleted immediately, since no remote
// copy exists and no tombstone is needed.
package deletion

import (
	"context"
	"errors"
	"fmt"

	"github.com/avelichko/clip-keeper/internal/logger"
	"github.com/avelichko/clip-keeper/internal/store"
	"github.com/avelichko/clip-keeper/models"
)

// ItemResult reports the outcome for one item of a batch delete.
type ItemResult struct {
	ID   string
	Hard bool
	Err  error
}

// Manager routes deletes and reconciles tombstones.
type Manager struct {
	store  store.LocalStore
	logger *logger.Logger
}

func NewManager(localStore store.LocalStore, log *logger.Logger) *Manager {
	return &Manager{store: localStore, logger: log}
}

// Delete removes one item, choosing soft- or hard-delete by the decision
// rule: syncStatus == synced OR isCloudData → tombstone (pending);
// otherwise the row never left this device and is dropped outright.
func (m *Manager) Delete(ctx context.Context, id string) (ItemResult, error) {
	item, err := m.store.Get(ctx, id)
	if err != nil {
		return ItemResult{ID: id, Err: err}, err
	}

	if item.SyncStatus == models.SyncStatusSynced || item.IsCloudData {
		if err = m.store.SoftDelete(ctx, id); err != nil {
			return ItemResult{ID: id, Err: err}, err
		}
		return ItemResult{ID: id, Hard: false}, nil
	}

	if err = m.store.HardDelete(ctx, []string{id}); err != nil {
		return ItemResult{ID: id, Err: err}, err
	}
	return ItemResult{ID: id, Hard: true}, nil
}

// DeleteBatch deletes every id, returning per-item results plus an
// aggregated error list. No silent drops: every id appears in the result
// slice exactly once.
func (m *Manager) DeleteBatch(ctx context.Context, ids []string) ([]ItemResult, error) {
	log := logger.FromContext(ctx)

	results := make([]ItemResult, 0, len(ids))
	var errs []error
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		res, err := m.Delete(ctx, id)
		results = append(results, res)
		if err != nil {
			log.Warn().Err(err).Str("id", id).Msg("delete failed for item")
			errs = append(errs, fmt.Errorf("delete %s: %w", id, err))
		}
	}

	return results, errors.Join(errs...)
}

// Reconcile hard-deletes local tombstones whose remote deletion completed
// with zero failures. On any remote failure the tombstones are retained so
// the next sync retries the deletion.
func (m *Manager) Reconcile(ctx context.Context, tombstoneIDs []string, remoteFailed bool) error {
	if len(tombstoneIDs) == 0 {
		return nil
	}
	if remoteFailed {
		m.logger.Debug().
			Int("count", len(tombstoneIDs)).
			Msg("remote deletion had failures, retaining tombstones for retry")
		return nil
	}

	if err := m.store.HardDelete(ctx, tombstoneIDs); err != nil {
		return fmt.Errorf("reconcile tombstones: %w", err)
	}

	m.logger.Debug().
		Int("count", len(tombstoneIDs)).
		Msg("hard-deleted confirmed tombstones")
	return nil
}
