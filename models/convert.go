package models

// ToSyncItem projects a local row onto the wire DTO. The checksum is taken
// from the cached row value; callers that need a guaranteed-fresh checksum
// recompute it through the fingerprint engine first.
func (c ClipboardItem) ToSyncItem(deviceID string) SyncItem {
	return SyncItem{
		ID:           c.ID,
		Type:         c.Type,
		Group:        c.Group,
		Value:        c.Value,
		Search:       c.Search,
		Favorite:     c.Favorite,
		Note:         c.Note,
		CreateTime:   c.CreateTime,
		LastModified: c.LastModified,
		Deleted:      c.Deleted,
		Size:         int64(len(c.Value)),
		Checksum:     c.Checksum,
		DeviceID:     deviceID,
		FileSize:     c.FileSize,
		FileType:     c.FileType,
		LazyDownload: c.LazyDownload,
	}
}

// ToClipboardItem materializes a downloaded wire item as a local row.
// The row arrives marked as cloud data with syncStatus=synced; it only
// becomes pending again on a local edit.
func (s SyncItem) ToClipboardItem() ClipboardItem {
	return ClipboardItem{
		ID:           s.ID,
		Type:         s.Type,
		Group:        s.Group,
		Value:        s.Value,
		Search:       s.Search,
		Favorite:     s.Favorite,
		Note:         s.Note,
		CreateTime:   s.CreateTime,
		LastModified: s.LastModified,
		Deleted:      s.Deleted,
		SyncStatus:   SyncStatusSynced,
		IsCloudData:  true,
		Checksum:     s.Checksum,
		FileSize:     s.FileSize,
		FileType:     s.FileType,
		LazyDownload: s.LazyDownload,
	}
}
