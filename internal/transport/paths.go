package transport

import "fmt"

// Remote file layout, relative to the configured base path.
const (
	// IndexObjectPath holds the RemoteSyncIndex manifest.
	IndexObjectPath = "sync-index.json"
	// DataObjectPath holds the full-payload blob for non-file-backed items.
	DataObjectPath = "sync-data.json"
	// BookmarkObjectPath holds the auxiliary last-writer-wins bookmark blob.
	BookmarkObjectPath = "bookmark-data.json"

	// FilesDir holds single standalone attachments.
	FilesDir = "files"
	// PackagesDir holds zip packages of batched attachments.
	PackagesDir = "zip_files"
)

// FileObjectPath names a standalone attachment object.
func FileObjectPath(itemID string, timestamp int64, name string) string {
	return fmt.Sprintf("%s/%s_%d_%s", FilesDir, itemID, timestamp, name)
}

// PackageObjectPath names a zip package object.
func PackageObjectPath(packageName string) string {
	return fmt.Sprintf("%s/%s.zip", PackagesDir, packageName)
}
