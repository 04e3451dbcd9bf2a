// Package bookmarks syncs the auxiliary bookmark dataset. Bookmarks are a
// single small blob with last-writer-wins semantics: whichever device wrote
// last wins wholesale, no per-entry merging.
package bookmarks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/avelichko/clip-keeper/internal/logger"
	"github.com/avelichko/clip-keeper/internal/secretbox"
	"github.com/avelichko/clip-keeper/internal/transport"
	"github.com/avelichko/clip-keeper/internal/utils"
	"github.com/avelichko/clip-keeper/models"
)

// Syncer moves the bookmark blob between the local set (a JSON file) and
// the remote object. box may be nil for plaintext payloads.
type Syncer struct {
	objects   transport.ObjectStore
	box       *secretbox.Box
	clock     utils.Clock
	deviceID  string
	localPath string
	logger    *logger.Logger
}

func NewSyncer(objects transport.ObjectStore, box *secretbox.Box, clock utils.Clock, deviceID, localPath string, log *logger.Logger) *Syncer {
	if clock == nil {
		clock = utils.SystemClock{}
	}
	return &Syncer{objects: objects, box: box, clock: clock, deviceID: deviceID, localPath: localPath, logger: log}
}

// Load fetches the remote bookmark blob. A missing or unreadable blob
// yields an empty dataset with a zero timestamp, which any local write
// supersedes.
func (s *Syncer) Load(ctx context.Context) (models.BookmarkData, error) {
	raw, err := s.objects.DownloadObject(ctx, transport.BookmarkObjectPath)
	if err != nil {
		if errors.Is(err, transport.ErrNotFound) {
			return models.BookmarkData{}, nil
		}
		return models.BookmarkData{}, fmt.Errorf("download bookmarks: %w", err)
	}

	if s.box != nil {
		if raw, err = s.box.Open(raw); err != nil {
			s.logger.Warn().Err(err).Msg("bookmark blob undecryptable, treating as empty")
			return models.BookmarkData{}, nil
		}
	}

	var data models.BookmarkData
	if err = json.Unmarshal(raw, &data); err != nil {
		s.logger.Warn().Err(err).Msg("bookmark blob unparseable, treating as empty")
		return models.BookmarkData{}, nil
	}
	return data, nil
}

// Sync reconciles the local bookmark set against the remote blob and
// returns the winning set. The newer timestamp wins wholesale; on a local
// win the blob is rewritten with this device's stamp.
func (s *Syncer) Sync(ctx context.Context, local models.BookmarkData) (models.BookmarkData, error) {
	remote, err := s.Load(ctx)
	if err != nil {
		return models.BookmarkData{}, err
	}

	// Ties go to the remote copy so two devices with equal stamps settle
	// on one version instead of ping-ponging uploads.
	if remote.Timestamp >= local.Timestamp {
		return remote, nil
	}

	local.DeviceID = s.deviceID
	local.Timestamp = utils.NowMillis(s.clock)

	raw, err := json.Marshal(local)
	if err != nil {
		return models.BookmarkData{}, fmt.Errorf("encode bookmarks: %w", err)
	}
	if s.box != nil {
		if raw, err = s.box.Seal(raw); err != nil {
			return models.BookmarkData{}, fmt.Errorf("seal bookmarks: %w", err)
		}
	}
	if err = s.objects.UploadObject(ctx, transport.BookmarkObjectPath, raw); err != nil {
		return models.BookmarkData{}, fmt.Errorf("upload bookmarks: %w", err)
	}

	return local, nil
}

// SyncLocal reconciles the local bookmark file against the remote blob and
// persists the winning set back to disk.
func (s *Syncer) SyncLocal(ctx context.Context) (models.BookmarkData, error) {
	local, err := s.loadLocal()
	if err != nil {
		return models.BookmarkData{}, err
	}

	winner, err := s.Sync(ctx, local)
	if err != nil {
		return models.BookmarkData{}, err
	}

	if winner.Timestamp != local.Timestamp {
		if err = s.saveLocal(winner); err != nil {
			return models.BookmarkData{}, err
		}
	}
	return winner, nil
}

// loadLocal reads the local bookmark file. Missing or unparseable files
// yield an empty set, which the remote copy then supersedes.
func (s *Syncer) loadLocal() (models.BookmarkData, error) {
	raw, err := os.ReadFile(s.localPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return models.BookmarkData{}, nil
		}
		return models.BookmarkData{}, fmt.Errorf("read local bookmarks: %w", err)
	}

	var data models.BookmarkData
	if err = json.Unmarshal(raw, &data); err != nil {
		s.logger.Warn().Err(err).Msg("local bookmark file unparseable, treating as empty")
		return models.BookmarkData{}, nil
	}
	return data, nil
}

func (s *Syncer) saveLocal(data models.BookmarkData) error {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("encode local bookmarks: %w", err)
	}
	if err = os.MkdirAll(filepath.Dir(s.localPath), 0o700); err != nil {
		return fmt.Errorf("create bookmark dir: %w", err)
	}
	if err = os.WriteFile(s.localPath, raw, 0o600); err != nil {
		return fmt.Errorf("write local bookmarks: %w", err)
	}
	return nil
}
