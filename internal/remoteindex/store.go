// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Alexei Velichko

// Package remoteindex loads, validates, caches and rewrites the remote
// fingerprint manifest (sync-index.json). The store is self-healing: any
// invalid or unparseable remote payload is treated as "remote absent"
// instead of propagating a parse error, so a torn write on the object
// store can never wedge a device.
package remoteindex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/avelichko/clip-keeper/internal/fingerprint"
	"github.com/avelichko/clip-keeper/internal/logger"
	"github.com/avelichko/clip-keeper/internal/transport"
	"github.com/avelichko/clip-keeper/internal/utils"
	"github.com/avelichko/clip-keeper/models"
)

// FormatMarker identifies an index payload this implementation can read.
const FormatMarker = "clip-keeper/sync-index/v1"

// ErrIndexAbsent reports that the remote has no (valid) index yet. The
// first upload seeds one via NewEmptyIndex.
var ErrIndexAbsent = errors.New("remote index absent")

// Store caches the remote index with a short TTL so one sync run does not
// re-read the same manifest on every step.
type Store struct {
	objects  transport.ObjectStore
	clock    utils.Clock
	cacheTTL time.Duration
	logger   *logger.Logger

	mu        sync.Mutex
	cached    *models.RemoteSyncIndex
	fetchedAt time.Time
}

// NewStore builds a Store. A non-positive cacheTTL defaults to 30s.
func NewStore(objects transport.ObjectStore, clock utils.Clock, cacheTTL time.Duration, log *logger.Logger) *Store {
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Second
	}
	if clock == nil {
		clock = utils.SystemClock{}
	}
	return &Store{
		objects:  objects,
		clock:    clock,
		cacheTTL: cacheTTL,
		logger:   log,
	}
}

// Load returns the remote index, from cache when fresh. ErrIndexAbsent
// means the remote has no usable index; any other error is a transport
// failure.
func (s *Store) Load(ctx context.Context) (models.RemoteSyncIndex, error) {
	s.mu.Lock()
	if s.cached != nil && s.clock.Now().Sub(s.fetchedAt) < s.cacheTTL {
		idx := *s.cached
		s.mu.Unlock()
		return idx, nil
	}
	s.mu.Unlock()

	raw, err := s.objects.DownloadObject(ctx, transport.IndexObjectPath)
	if err != nil {
		if errors.Is(err, transport.ErrNotFound) {
			return models.RemoteSyncIndex{}, ErrIndexAbsent
		}
		return models.RemoteSyncIndex{}, fmt.Errorf("download remote index: %w", err)
	}

	idx, ok := s.decode(raw)
	if !ok {
		return models.RemoteSyncIndex{}, ErrIndexAbsent
	}

	s.mu.Lock()
	s.cached = &idx
	s.fetchedAt = s.clock.Now()
	s.mu.Unlock()

	return idx, nil
}

// Save uploads the index and refreshes the cache on success.
func (s *Store) Save(ctx context.Context, idx models.RemoteSyncIndex) error {
	payload, err := json.Marshal(idx)
	if err != nil {
		return fmt.Errorf("encode remote index: %w", err)
	}

	if err = s.objects.UploadObject(ctx, transport.IndexObjectPath, payload); err != nil {
		return fmt.Errorf("upload remote index: %w", err)
	}

	s.mu.Lock()
	s.cached = &idx
	s.fetchedAt = s.clock.Now()
	s.mu.Unlock()

	return nil
}

// Invalidate drops the cached copy so the next Load hits the remote.
// Called when the sync mode changes: cached fingerprints for items
// entering or leaving scope must be re-validated, not trusted.
func (s *Store) Invalidate() {
	s.mu.Lock()
	s.cached = nil
	s.fetchedAt = time.Time{}
	s.mu.Unlock()
}

// decode parses and validates a raw index payload. Invalid payloads are
// logged and reported as absent so the next upload rebuilds the index.
func (s *Store) decode(raw []byte) (models.RemoteSyncIndex, bool) {
	var idx models.RemoteSyncIndex
	if err := json.Unmarshal(raw, &idx); err != nil {
		s.logger.Warn().Err(err).Msg("remote index unparseable, treating as absent")
		return models.RemoteSyncIndex{}, false
	}

	switch {
	case idx.FormatMarker != FormatMarker:
		s.logger.Warn().Str("marker", idx.FormatMarker).Msg("remote index has unknown format marker, treating as absent")
		return models.RemoteSyncIndex{}, false
	case idx.Timestamp <= 0:
		s.logger.Warn().Msg("remote index has no timestamp, treating as absent")
		return models.RemoteSyncIndex{}, false
	case idx.DeviceID == "":
		s.logger.Warn().Msg("remote index has no device id, treating as absent")
		return models.RemoteSyncIndex{}, false
	}

	if got := fingerprint.DataChecksum(idx.Items); idx.DataChecksum != "" && got != idx.DataChecksum {
		s.logger.Warn().
			Str("want", idx.DataChecksum).
			Str("got", got).
			Msg("remote index data checksum mismatch, treating as absent")
		return models.RemoteSyncIndex{}, false
	}

	return idx, true
}

// NewEmptyIndex seeds the first-ever sync for a device.
func NewEmptyIndex(deviceID string, clock utils.Clock) models.RemoteSyncIndex {
	if clock == nil {
		clock = utils.SystemClock{}
	}
	idx := models.RemoteSyncIndex{
		FormatMarker: FormatMarker,
		Timestamp:    utils.NowMillis(clock),
		DeviceID:     deviceID,
		Items:        []models.Fingerprint{},
		DeletedItems: []string{},
	}
	idx.DataChecksum = fingerprint.DataChecksum(idx.Items)
	idx.Statistics = computeStatistics(idx.Items)
	return idx
}

// UpdateWithLocalChanges is pure: it returns a copy of idx whose items are
// replaced by fresh fingerprints of all non-deleted local items, with
// deletedIDs merged (deduplicated) into the tombstone list and totals,
// checksum, statistics and timestamp recomputed.
func UpdateWithLocalChanges(
	idx models.RemoteSyncIndex,
	deviceID string,
	localItems []models.ClipboardItem,
	deletedIDs []string,
	clock utils.Clock,
) models.RemoteSyncIndex {
	if clock == nil {
		clock = utils.SystemClock{}
	}

	out := idx
	out.FormatMarker = FormatMarker
	out.DeviceID = deviceID
	out.Timestamp = utils.NowMillis(clock)

	deleted := make(map[string]struct{}, len(idx.DeletedItems)+len(deletedIDs))
	for _, id := range idx.DeletedItems {
		deleted[id] = struct{}{}
	}
	for _, id := range deletedIDs {
		deleted[id] = struct{}{}
	}

	items := make([]models.Fingerprint, 0, len(localItems))
	seen := make(map[string]struct{}, len(localItems))
	for _, item := range localItems {
		if item.Deleted {
			continue
		}
		if _, dup := seen[item.ID]; dup {
			continue
		}
		if _, dead := deleted[item.ID]; dead {
			continue
		}
		seen[item.ID] = struct{}{}
		items = append(items, fingerprint.Of(item))
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })

	out.Items = items
	out.DeletedItems = sortedIDs(deleted)
	out.TotalItems = len(items)
	out.DataChecksum = fingerprint.DataChecksum(items)
	out.Statistics = computeStatistics(items)

	return out
}

func sortedIDs(set map[string]struct{}) []string {
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func computeStatistics(items []models.Fingerprint) models.IndexStatistics {
	stats := models.IndexStatistics{ByType: make(map[models.ItemType]int)}

	var largest int64 = -1
	for _, fp := range items {
		stats.ByType[fp.Type]++
		if fp.Favorite {
			stats.Favorites++
		}
		stats.TotalSize += fp.Size
		if fp.Size > largest {
			largest = fp.Size
			stats.LargestItemID = fp.ID
		}
	}

	return stats
}
