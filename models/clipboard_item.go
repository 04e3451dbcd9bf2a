// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Alexei Velichko

package models

// ItemType identifies the clipboard payload kind.
type ItemType string

const (
	TypeText  ItemType = "text"
	TypeHTML  ItemType = "html"
	TypeRTF   ItemType = "rtf"
	TypeImage ItemType = "image"
	TypeFiles ItemType = "files"
)

// SyncStatus tracks where an item stands in the sync lifecycle.
type SyncStatus string

const (
	SyncStatusNone    SyncStatus = "none"
	SyncStatusPending SyncStatus = "pending"
	SyncStatusSyncing SyncStatus = "syncing"
	SyncStatusSynced  SyncStatus = "synced"
	SyncStatusError   SyncStatus = "error"
)

// ClipboardItem is the local row schema for one captured clipboard entry.
//
// ID is globally unique and stable across devices (UUIDv7 at capture time,
// never reused). Value holds the content itself for text-like types, or an
// attachment pointer for image/files types. CreateTime and LastModified are
// epoch milliseconds.
type ClipboardItem struct {
	ID           string   `json:"id" db:"id"`
	Type         ItemType `json:"type" db:"type"`
	Group        string   `json:"group" db:"item_group"`
	Value        string   `json:"value" db:"value"`
	Search       string   `json:"search" db:"search"`
	Favorite     bool     `json:"favorite" db:"favorite"`
	Note         string   `json:"note" db:"note"`
	CreateTime   int64    `json:"createTime" db:"create_time"`
	LastModified int64    `json:"lastModified" db:"last_modified"`
	Deleted      bool     `json:"deleted" db:"deleted"`

	SyncStatus  SyncStatus `json:"syncStatus" db:"sync_status"`
	IsCloudData bool       `json:"isCloudData" db:"is_cloud_data"`

	// Checksum caches the content checksum last computed for this row.
	// Transient sync metadata (SyncStatus, IsCloudData, LastModified)
	// never participates in it.
	Checksum string `json:"checksum,omitempty" db:"checksum"`

	FileSize     int64  `json:"fileSize,omitempty" db:"file_size"`
	FileType     string `json:"fileType,omitempty" db:"file_type"`
	LazyDownload bool   `json:"lazyDownload,omitempty" db:"lazy_download"`
}

// HasAttachment reports whether the item's bytes live outside the row and
// travel through the file packager rather than the metadata index.
func (c ClipboardItem) HasAttachment() bool {
	return c.Type == TypeImage || c.Type == TypeFiles
}

// ItemUpdate is a partial update applied to an existing row. Nil fields are
// left untouched.
type ItemUpdate struct {
	Value        *string     `json:"value,omitempty"`
	Search       *string     `json:"search,omitempty"`
	Favorite     *bool       `json:"favorite,omitempty"`
	Note         *string     `json:"note,omitempty"`
	Group        *string     `json:"group,omitempty"`
	LastModified *int64      `json:"lastModified,omitempty"`
	Deleted      *bool       `json:"deleted,omitempty"`
	SyncStatus   *SyncStatus `json:"syncStatus,omitempty"`
	IsCloudData  *bool       `json:"isCloudData,omitempty"`
	Checksum     *string     `json:"checksum,omitempty"`
	LazyDownload *bool       `json:"lazyDownload,omitempty"`
}
