package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/avelichko/clip-keeper/internal/secretbox"
	"github.com/avelichko/clip-keeper/internal/transport"
	"github.com/avelichko/clip-keeper/models"
)

// DataBlob is the full-payload object stored at sync-data.json. Items are
// keyed by item id and packages by package id; items reference their
// package through SyncItem.PackageID — plain id references, never
// embedded pointers.
type DataBlob struct {
	Items    map[string]models.SyncItem    `json:"items"`
	Packages map[string]models.FilePackage `json:"packages"`
}

func newDataBlob() DataBlob {
	return DataBlob{
		Items:    make(map[string]models.SyncItem),
		Packages: make(map[string]models.FilePackage),
	}
}

// loadDataBlob fetches and decodes the remote payload blob. A missing or
// unparseable blob is self-healing: it comes back empty and the next
// commit rewrites it.
func loadDataBlob(ctx context.Context, objects transport.ObjectStore, box *secretbox.Box) (DataBlob, error) {
	raw, err := objects.DownloadObject(ctx, transport.DataObjectPath)
	if err != nil {
		if errors.Is(err, transport.ErrNotFound) {
			return newDataBlob(), nil
		}
		return DataBlob{}, fmt.Errorf("download data blob: %w", err)
	}

	if box != nil {
		if raw, err = box.Open(raw); err != nil {
			return newDataBlob(), nil
		}
	}

	var blob DataBlob
	if err = json.Unmarshal(raw, &blob); err != nil {
		return newDataBlob(), nil
	}
	if blob.Items == nil {
		blob.Items = make(map[string]models.SyncItem)
	}
	if blob.Packages == nil {
		blob.Packages = make(map[string]models.FilePackage)
	}
	return blob, nil
}

// saveDataBlob encodes, optionally seals, and uploads the payload blob.
func saveDataBlob(ctx context.Context, objects transport.ObjectStore, box *secretbox.Box, blob DataBlob) error {
	raw, err := json.Marshal(blob)
	if err != nil {
		return fmt.Errorf("encode data blob: %w", err)
	}

	if box != nil {
		if raw, err = box.Seal(raw); err != nil {
			return fmt.Errorf("seal data blob: %w", err)
		}
	}

	if err = objects.UploadObject(ctx, transport.DataObjectPath, raw); err != nil {
		return fmt.Errorf("upload data blob: %w", err)
	}
	return nil
}
