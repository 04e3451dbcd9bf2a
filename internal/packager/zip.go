package packager

import (
	"archive/zip"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"

	"github.com/avelichko/clip-keeper/models"
)

// manifestName is the reserved zip entry carrying the package manifest.
const manifestName = "manifest.json"

// Attachment is one binary payload travelling through the packager.
type Attachment struct {
	ItemID string
	Name   string
	Data   []byte
}

// writePackage serializes members into a zip archive with an embedded
// manifest and returns the archive bytes plus the completed FilePackage
// description (member checksums, total and compressed sizes).
func writePackage(pkg models.FilePackage, members []Attachment) ([]byte, models.FilePackage, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	pkg.Members = pkg.Members[:0]
	pkg.TotalSize = 0

	h := sha256.New()
	for _, m := range members {
		sum := sha256.Sum256(m.Data)
		pkg.Members = append(pkg.Members, models.PackageMember{
			ItemID:   m.ItemID,
			Name:     m.Name,
			Size:     int64(len(m.Data)),
			Checksum: hex.EncodeToString(sum[:]),
		})
		pkg.TotalSize += int64(len(m.Data))
		h.Write(sum[:])

		w, err := zw.Create(entryName(m.ItemID, m.Name))
		if err != nil {
			return nil, models.FilePackage{}, fmt.Errorf("create zip entry for %s: %w", m.ItemID, err)
		}
		if _, err = w.Write(m.Data); err != nil {
			return nil, models.FilePackage{}, fmt.Errorf("write zip entry for %s: %w", m.ItemID, err)
		}
	}
	pkg.Checksum = hex.EncodeToString(h.Sum(nil))

	manifest, err := json.Marshal(pkg)
	if err != nil {
		return nil, models.FilePackage{}, fmt.Errorf("encode package manifest: %w", err)
	}
	mw, err := zw.Create(manifestName)
	if err != nil {
		return nil, models.FilePackage{}, fmt.Errorf("create manifest entry: %w", err)
	}
	if _, err = mw.Write(manifest); err != nil {
		return nil, models.FilePackage{}, fmt.Errorf("write manifest entry: %w", err)
	}

	if err = zw.Close(); err != nil {
		return nil, models.FilePackage{}, fmt.Errorf("close zip writer: %w", err)
	}

	pkg.CompressedSize = int64(buf.Len())
	return buf.Bytes(), pkg, nil
}

// readPackage parses a package archive back into its manifest and member
// payloads keyed by item id. Member checksums are verified against the
// manifest; a mismatch fails the whole read, which upload verification
// relies on.
func readPackage(raw []byte) (models.FilePackage, map[string][]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return models.FilePackage{}, nil, fmt.Errorf("open package archive: %w", err)
	}

	var pkg models.FilePackage
	payloads := make(map[string][]byte)

	manifestFound := false
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			return models.FilePackage{}, nil, fmt.Errorf("open package entry %s: %w", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return models.FilePackage{}, nil, fmt.Errorf("read package entry %s: %w", f.Name, err)
		}

		if f.Name == manifestName {
			if err = json.Unmarshal(data, &pkg); err != nil {
				return models.FilePackage{}, nil, fmt.Errorf("decode package manifest: %w", err)
			}
			manifestFound = true
			continue
		}

		payloads[itemIDFromEntry(f.Name)] = data
	}

	if !manifestFound {
		return models.FilePackage{}, nil, fmt.Errorf("package has no manifest")
	}

	for _, m := range pkg.Members {
		data, ok := payloads[m.ItemID]
		if !ok {
			return models.FilePackage{}, nil, fmt.Errorf("package member %s missing from archive", m.ItemID)
		}
		sum := sha256.Sum256(data)
		if hex.EncodeToString(sum[:]) != m.Checksum {
			return models.FilePackage{}, nil, fmt.Errorf("package member %s checksum mismatch", m.ItemID)
		}
	}

	return pkg, payloads, nil
}

// entryName prefixes the file name with the item id so two members with
// the same display name never collide inside one archive.
func entryName(itemID, name string) string {
	return itemID + "/" + name
}

func itemIDFromEntry(entry string) string {
	for i := 0; i < len(entry); i++ {
		if entry[i] == '/' {
			return entry[:i]
		}
	}
	return entry
}
