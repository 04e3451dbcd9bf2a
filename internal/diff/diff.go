// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Alexei Velichko

// Package diff classifies items for a sync run by comparing local and
// remote fingerprint sets. The classifier is pure and idempotent:
// identical inputs always produce identical classification, independent of
// call order, so a re-run after a partial failure converges instead of
// oscillating.
package diff

import (
	"context"
	"sort"

	"github.com/avelichko/clip-keeper/models"
)

// Result is the classification of one detector run. Every non-tombstoned
// local id lands in exactly one of Added / Modified / FavoriteChanged /
// Unchanged; remote-only or remote-newer ids land in ToDownload.
//
// An id can appear in both Modified and ToDownload: that is a genuine
// divergence (including the equal-timestamp, different-checksum case,
// which is never silently resolved here) and is handed to the conflict
// resolver by the orchestrator.
type Result struct {
	Added           []models.Fingerprint
	Modified        []models.Fingerprint
	FavoriteChanged []models.Fingerprint
	Unchanged       []models.Fingerprint
	ToDownload      []models.Fingerprint
}

// Detect classifies local against remote fingerprints.
//
//   - local ids carried in tombstoned are excluded from upload classes
//     entirely; deletion wins over update.
//   - a local id absent remotely is added.
//   - equal content checksum with a differing favorite flag is
//     favoriteChanged, not modified.
//   - a remote id is toDownload when it is not remote-deleted and either
//     has no local counterpart or is newer with a differing checksum.
//
// ctx cancellation is checked per iteration so callers can abort early on
// large histories.
func Detect(
	ctx context.Context,
	local map[string]models.Fingerprint,
	remote map[string]models.Fingerprint,
	tombstoned map[string]struct{},
) (Result, error) {
	var res Result

	for id, lf := range local {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		if _, dead := tombstoned[id]; dead {
			continue
		}

		rf, existsRemotely := remote[id]
		switch {
		case !existsRemotely:
			res.Added = append(res.Added, lf)

		case lf.Checksum == rf.Checksum && lf.Favorite != rf.Favorite:
			res.FavoriteChanged = append(res.FavoriteChanged, lf)

		case lf.Checksum != rf.Checksum:
			res.Modified = append(res.Modified, lf)

		default:
			res.Unchanged = append(res.Unchanged, lf)
		}
	}

	for id, rf := range remote {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		if rf.Deleted {
			continue
		}

		lf, existsLocally := local[id]
		if !existsLocally {
			if _, dead := tombstoned[id]; dead {
				// Deleted locally before this run; the delete step will
				// remove it remotely.
				continue
			}
			res.ToDownload = append(res.ToDownload, rf)
			continue
		}

		if rf.Checksum == lf.Checksum {
			continue
		}

		// Equal timestamps with differing checksums are forwarded too:
		// the id then sits in both Modified and ToDownload and the
		// conflict resolver decides.
		if rf.Timestamp >= lf.Timestamp {
			res.ToDownload = append(res.ToDownload, rf)
		}
	}

	// Map iteration order is random; sort by id so identical inputs yield
	// byte-identical results.
	for _, s := range [][]models.Fingerprint{
		res.Added, res.Modified, res.FavoriteChanged, res.Unchanged, res.ToDownload,
	} {
		sort.Slice(s, func(i, j int) bool { return s[i].ID < s[j].ID })
	}

	return res, nil
}
