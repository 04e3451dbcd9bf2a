package server

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/avelichko/clip-keeper/internal/transport"
)

var (
	errBadObjectPath  = errors.New("bad object path")
	errObjectExists   = errors.New("object already exists")
	errObjectNotFound = errors.New("object not found")
)

// objectFS stores objects as plain files under a root directory. Objects
// under files/ and zip_files/ are immutable: a second PUT to the same name
// is refused with "already exists", matching the non-overwrite semantics
// clients must resolve with a read-back.
type objectFS struct {
	root string
}

func newObjectFS(root string) *objectFS {
	return &objectFS{root: root}
}

// resolve validates a relative object path and maps it under the root.
func (fs *objectFS) resolve(objectPath string) (string, error) {
	cleaned := strings.Trim(objectPath, "/")
	if cleaned == "" {
		return "", errBadObjectPath
	}
	for _, part := range strings.Split(cleaned, "/") {
		if part == "" || part == "." || part == ".." {
			return "", errBadObjectPath
		}
	}
	return filepath.Join(fs.root, filepath.FromSlash(cleaned)), nil
}

func (fs *objectFS) immutable(objectPath string) bool {
	for _, part := range strings.Split(strings.Trim(objectPath, "/"), "/") {
		if part == transport.FilesDir || part == transport.PackagesDir {
			return true
		}
	}
	return false
}

func (fs *objectFS) put(objectPath string, data []byte) error {
	target, err := fs.resolve(objectPath)
	if err != nil {
		return err
	}

	if fs.immutable(objectPath) {
		if _, statErr := os.Stat(target); statErr == nil {
			return errObjectExists
		}
	}

	if err = os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create object dir: %w", err)
	}

	// Write-then-rename keeps concurrent readers from seeing a torn object.
	tmp := target + ".tmp"
	if err = os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write object: %w", err)
	}
	if err = os.Rename(tmp, target); err != nil {
		return fmt.Errorf("publish object: %w", err)
	}
	return nil
}

func (fs *objectFS) mkdir(objectPath string) error {
	target, err := fs.resolve(objectPath)
	if err != nil {
		return err
	}
	return os.MkdirAll(target, 0o755)
}

func (fs *objectFS) get(objectPath string) ([]byte, error) {
	target, err := fs.resolve(objectPath)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(target)
	if err != nil || info.IsDir() {
		return nil, errObjectNotFound
	}
	data, err := os.ReadFile(target)
	if err != nil {
		return nil, fmt.Errorf("read object: %w", err)
	}
	return data, nil
}

func (fs *objectFS) delete(objectPath string) error {
	target, err := fs.resolve(objectPath)
	if err != nil {
		return err
	}
	if _, err = os.Stat(target); err != nil {
		return errObjectNotFound
	}
	if err = os.RemoveAll(target); err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}
