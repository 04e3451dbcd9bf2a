package models

// PackageMember describes one attachment inside a FilePackage.
type PackageMember struct {
	ItemID   string `json:"itemId"`
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	Checksum string `json:"checksum"`
}

// FilePackage is a batched, zip-compressed bundle of binary attachments
// uploaded and downloaded as a unit, independently of item metadata.
// RemoteName is the object path component under zip_files/; a fresh name is
// chosen for every upload attempt so retries never collide with a partial
// previous write.
type FilePackage struct {
	PackageID      string          `json:"packageId"`
	Members        []PackageMember `json:"members"`
	TotalSize      int64           `json:"totalSize"`
	Checksum       string          `json:"checksum"`
	CompressedSize int64           `json:"compressedSize"`
	RemoteName     string          `json:"remoteName"`
	CreatedAt      int64           `json:"createdAt"`
}

// MemberIDs returns the ids of all items carried by the package.
func (p FilePackage) MemberIDs() []string {
	ids := make([]string, 0, len(p.Members))
	for _, m := range p.Members {
		ids = append(ids, m.ItemID)
	}
	return ids
}
