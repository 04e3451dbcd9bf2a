// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Alexei Velichko

// Package fingerprint computes deterministic content checksums for
// clipboard items. A checksum is a pure function of a fixed, key-sorted
// field subset, so identical content yields an identical checksum on every
// device regardless of field-insertion order. Transient sync metadata
// (syncStatus, isCloudData, lastModified) never participates.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/avelichko/clip-keeper/models"
)

// ContentChecksum returns the primary identity checksum over id, type and
// value. It is the key used for diffing.
func ContentChecksum(id string, itemType models.ItemType, value string) string {
	return canonicalChecksum(map[string]string{
		"id":    id,
		"type":  string(itemType),
		"value": value,
	})
}

// FavoriteChecksum adds the favorite flag to the content fields. It is
// used only to distinguish "favorite changed, content unchanged" from a
// real content edit.
func FavoriteChecksum(id string, itemType models.ItemType, value string, favorite bool) string {
	fav := "false"
	if favorite {
		fav = "true"
	}
	return canonicalChecksum(map[string]string{
		"id":       id,
		"type":     string(itemType),
		"value":    value,
		"favorite": fav,
	})
}

// ItemChecksum computes the content checksum of a local row.
func ItemChecksum(item models.ClipboardItem) string {
	return ContentChecksum(item.ID, item.Type, item.Value)
}

// Of builds the diffing fingerprint of a local row. For inline content the
// cached row checksum is ignored and recomputed so a stale cache can never
// poison a diff. Attachment rows are the exception: their value is a
// device-local path, so the stored byte-level checksum is the identity.
func Of(item models.ClipboardItem) models.Fingerprint {
	sum := ContentChecksum(item.ID, item.Type, item.Value)
	if item.HasAttachment() && item.Checksum != "" {
		sum = item.Checksum
	}
	return models.Fingerprint{
		ID:        item.ID,
		Checksum:  sum,
		Timestamp: item.LastModified,
		Size:      int64(len(item.Value)),
		Type:      item.Type,
		Favorite:  item.Favorite,
		Deleted:   item.Deleted,
	}
}

// canonicalChecksum encodes fields as k=v pairs joined in ascending key
// order and returns the hex SHA-256 of the encoding. Missing fields are
// treated as empty strings by callers rather than erroring.
func canonicalChecksum(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(fields[k])
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// DataChecksum summarizes a fingerprint set for index corruption
// detection: fingerprints are sorted by id and their id/checksum pairs
// hashed together. Recomputed on every index mutation.
func DataChecksum(fps []models.Fingerprint) string {
	sorted := make([]models.Fingerprint, len(fps))
	copy(sorted, fps)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	h := sha256.New()
	for _, fp := range sorted {
		h.Write([]byte(fp.ID))
		h.Write([]byte{0})
		h.Write([]byte(fp.Checksum))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
