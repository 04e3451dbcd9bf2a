// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Alexei Velichko

// Package conflict detects and resolves true value-level conflicts between
// local and remote copies of the same item. Detection never fires on
// timestamps alone, to avoid false positives from clock skew between
// devices.
package conflict

import (
	"context"
	"fmt"

	"dario.cat/mergo"

	"github.com/avelichko/clip-keeper/internal/fingerprint"
	"github.com/avelichko/clip-keeper/models"
)

// Resolver resolves conflict contexts with a configurable default
// strategy. Resolution is stateless per context and safe to parallelize.
type Resolver struct {
	defaultStrategy models.ConflictStrategy
}

// NewResolver builds a Resolver. An empty strategy defaults to merge.
func NewResolver(defaultStrategy models.ConflictStrategy) *Resolver {
	if defaultStrategy == "" {
		defaultStrategy = models.StrategyMerge
	}
	return &Resolver{defaultStrategy: defaultStrategy}
}

// DetectRealConflicts pairs local and remote items by id and keeps only
// pairs with a value-level difference: content checksum, favorite flag, or
// note. Timestamp divergence alone is not a conflict.
func DetectRealConflicts(local, remote []models.SyncItem) []models.ConflictContext {
	remoteByID := make(map[string]models.SyncItem, len(remote))
	for _, r := range remote {
		remoteByID[r.ID] = r
	}

	var contexts []models.ConflictContext
	for _, l := range local {
		r, ok := remoteByID[l.ID]
		if !ok {
			continue
		}
		if isValueConflict(l, r) {
			contexts = append(contexts, models.ConflictContext{Local: l, Remote: r})
		}
	}
	return contexts
}

func isValueConflict(l, r models.SyncItem) bool {
	if contentChecksum(l) != contentChecksum(r) {
		return true
	}
	if l.Favorite != r.Favorite {
		return true
	}
	return l.Note != r.Note
}

// contentChecksum recomputes rather than trusting the wire checksum;
// a device with a buggy cache must not be able to mask a divergence.
// Attachment items are compared by their byte-level checksum instead,
// since their value is a device-local path.
func contentChecksum(it models.SyncItem) string {
	if (it.Type == models.TypeImage || it.Type == models.TypeFiles) && it.Checksum != "" {
		return it.Checksum
	}
	return fingerprint.ContentChecksum(it.ID, it.Type, it.Value)
}

// Resolve applies the given strategy to one conflict context. An empty
// strategy uses the resolver default.
func (r *Resolver) Resolve(cc models.ConflictContext, strategy models.ConflictStrategy) (models.ConflictResult, error) {
	if strategy == "" {
		strategy = r.defaultStrategy
	}

	switch strategy {
	case models.StrategyLocal:
		resolved, err := backfill(cc.Local, cc.Remote)
		if err != nil {
			return models.ConflictResult{}, err
		}
		return models.ConflictResult{
			Resolved: resolved,
			Strategy: models.StrategyLocal,
			Reason:   "kept local copy, back-filled remote-only metadata",
		}, nil

	case models.StrategyRemote:
		resolved, err := backfill(cc.Remote, cc.Local)
		if err != nil {
			return models.ConflictResult{}, err
		}
		return models.ConflictResult{
			Resolved: resolved,
			Strategy: models.StrategyRemote,
			Reason:   "mirrored remote copy, back-filled local-only metadata",
		}, nil

	case models.StrategyMerge:
		return models.ConflictResult{
			Resolved: merge(cc.Local, cc.Remote),
			Strategy: models.StrategyMerge,
			Reason:   "merged field-by-field, local values preferred",
		}, nil

	default:
		return models.ConflictResult{}, fmt.Errorf("unknown conflict strategy %q", strategy)
	}
}

// ResolveAll resolves every context with the resolver's default strategy.
// Contexts are independent; ctx is checked between items so a large batch
// can be abandoned.
func (r *Resolver) ResolveAll(ctx context.Context, contexts []models.ConflictContext) ([]models.ConflictResult, error) {
	results := make([]models.ConflictResult, 0, len(contexts))
	for _, cc := range contexts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := r.Resolve(cc, "")
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, nil
}

// backfill keeps winner verbatim and fills only its zero-valued metadata
// fields from loser, the same way config sources merge.
func backfill(winner, loser models.SyncItem) (models.SyncItem, error) {
	resolved := winner
	if err := mergo.Merge(&resolved, loser); err != nil {
		return models.SyncItem{}, fmt.Errorf("back-fill conflict metadata: %w", err)
	}
	// Booleans zero-merge poorly: winner's explicit false must survive.
	resolved.Favorite = winner.Favorite
	resolved.Deleted = winner.Deleted
	resolved.Checksum = contentChecksum(resolved)
	return resolved, nil
}

// merge builds the default resolution:
//
//   - value/content: prefer local;
//   - favorite: local's explicit boolean — never an OR, so an explicit
//     local unfavorite beats a stale remote favorite=true;
//   - note: first non-empty, local first;
//   - lastModified: max of both.
func merge(local, remote models.SyncItem) models.SyncItem {
	resolved := local

	if resolved.Note == "" {
		resolved.Note = remote.Note
	}
	if remote.LastModified > resolved.LastModified {
		resolved.LastModified = remote.LastModified
	}
	if resolved.Group == "" {
		resolved.Group = remote.Group
	}
	if resolved.Search == "" {
		resolved.Search = remote.Search
	}
	if resolved.CreateTime == 0 || (remote.CreateTime != 0 && remote.CreateTime < resolved.CreateTime) {
		resolved.CreateTime = remote.CreateTime
	}

	// Attachment identity is the byte-level checksum; hashing the
	// device-local path would stamp a per-device value into the index.
	resolved.Checksum = contentChecksum(resolved)
	return resolved
}
