// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Alexei Velichko

package models

// SyncItem is the wire projection of a ClipboardItem exchanged between
// devices. It adds the originating device and size/checksum fields used for
// verification, and drops purely local state (SyncStatus, IsCloudData).
type SyncItem struct {
	ID           string   `json:"id"`
	Type         ItemType `json:"type"`
	Group        string   `json:"group,omitempty"`
	Value        string   `json:"value"`
	Search       string   `json:"search,omitempty"`
	Favorite     bool     `json:"favorite"`
	Note         string   `json:"note,omitempty"`
	CreateTime   int64    `json:"createTime"`
	LastModified int64    `json:"lastModified"`
	Deleted      bool     `json:"deleted,omitempty"`

	Size     int64  `json:"size,omitempty"`
	Checksum string `json:"checksum"`
	DeviceID string `json:"deviceId"`

	FileSize     int64  `json:"fileSize,omitempty"`
	FileType     string `json:"fileType,omitempty"`
	LazyDownload bool   `json:"lazyDownload,omitempty"`

	// PackageID references the FilePackage carrying this item's
	// attachment bytes, when the item is file-backed. Plain id reference;
	// the package itself lives in the package table of the data blob.
	PackageID string `json:"packageId,omitempty"`
}

// Fingerprint is the compact, content-addressable summary of one item used
// for diffing without transferring payloads. Timestamp is the item's
// lastModified in epoch milliseconds.
type Fingerprint struct {
	ID        string   `json:"id"`
	Checksum  string   `json:"checksum"`
	Timestamp int64    `json:"timestamp"`
	Size      int64    `json:"size,omitempty"`
	Type      ItemType `json:"type"`
	Favorite  bool     `json:"favorite"`
	Deleted   bool     `json:"deleted,omitempty"`
}

// IndexStatistics summarizes an index for quick remote inspection.
type IndexStatistics struct {
	ByType        map[ItemType]int `json:"byType"`
	Favorites     int              `json:"favorites"`
	TotalSize     int64            `json:"totalSize"`
	LargestItemID string           `json:"largestItemId,omitempty"`
}

// RemoteSyncIndex is the remote fingerprint manifest stored at
// sync-index.json. DataChecksum is recomputed from the sorted fingerprints
// on every mutation so corrupt or torn writes are cheap to detect.
type RemoteSyncIndex struct {
	FormatMarker string          `json:"formatMarker"`
	Timestamp    int64           `json:"timestamp"`
	DeviceID     string          `json:"deviceId"`
	Items        []Fingerprint   `json:"items"`
	DeletedItems []string        `json:"deletedItems"`
	TotalItems   int             `json:"totalItems"`
	DataChecksum string          `json:"dataChecksum"`
	Statistics   IndexStatistics `json:"statistics"`
}

// SyncReport is the aggregate result of one sync run.
type SyncReport struct {
	Uploaded   int              `json:"uploaded"`
	Downloaded int              `json:"downloaded"`
	Deleted    int              `json:"deleted"`
	Conflicts  []ConflictResult `json:"conflicts,omitempty"`
	Errors     []SyncError      `json:"errors,omitempty"`
	DurationMS int64            `json:"durationMs"`
	Timestamp  int64            `json:"timestamp"`
}
