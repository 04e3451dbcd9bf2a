package bookmarks

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avelichko/clip-keeper/internal/logger"
	"github.com/avelichko/clip-keeper/internal/transport"
	"github.com/avelichko/clip-keeper/internal/utils"
	"github.com/avelichko/clip-keeper/models"
)

type memObjects struct {
	objects map[string][]byte
	uploads int
}

func newMemObjects() *memObjects {
	return &memObjects{objects: make(map[string][]byte)}
}

func (m *memObjects) UploadObject(_ context.Context, path string, data []byte) error {
	m.uploads++
	m.objects[path] = append([]byte(nil), data...)
	return nil
}

func (m *memObjects) DownloadObject(_ context.Context, path string) ([]byte, error) {
	data, ok := m.objects[path]
	if !ok {
		return nil, transport.ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

func (m *memObjects) DeleteObject(_ context.Context, path string) error {
	delete(m.objects, path)
	return nil
}

func (m *memObjects) CreateDirectory(context.Context, string) error { return nil }

func newTestSyncer(t *testing.T, objects transport.ObjectStore, nowMillis int64) *Syncer {
	t.Helper()
	clock := utils.FixedClock{T: time.UnixMilli(nowMillis)}
	path := filepath.Join(t.TempDir(), "bookmarks.json")
	return NewSyncer(objects, nil, clock, "dev-a", path, logger.Nop())
}

func seedRemote(t *testing.T, objects *memObjects, data models.BookmarkData) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	objects.objects[transport.BookmarkObjectPath] = raw
}

func TestLoad_MissingBlobIsEmpty(t *testing.T) {
	s := newTestSyncer(t, newMemObjects(), 1000)

	data, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Zero(t, data.Timestamp)
	assert.Empty(t, data.Bookmarks)
}

func TestLoad_UnparseableBlobIsEmpty(t *testing.T) {
	objects := newMemObjects()
	objects.objects[transport.BookmarkObjectPath] = []byte("{torn")
	s := newTestSyncer(t, objects, 1000)

	data, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Zero(t, data.Timestamp)
}

func TestSync_RemoteNewerWins(t *testing.T) {
	objects := newMemObjects()
	seedRemote(t, objects, models.BookmarkData{
		Timestamp: 2000,
		DeviceID:  "dev-b",
		Bookmarks: []models.Bookmark{{ID: "r1", Title: "remote", URL: "https://r"}},
	})
	s := newTestSyncer(t, objects, 5000)

	winner, err := s.Sync(context.Background(), models.BookmarkData{
		Timestamp: 1000,
		Bookmarks: []models.Bookmark{{ID: "l1", Title: "local", URL: "https://l"}},
	})
	require.NoError(t, err)

	assert.Equal(t, "dev-b", winner.DeviceID)
	require.Len(t, winner.Bookmarks, 1)
	assert.Equal(t, "r1", winner.Bookmarks[0].ID)
	assert.Zero(t, objects.uploads, "a remote win must not write anything")
}

func TestSync_TieGoesToRemote(t *testing.T) {
	objects := newMemObjects()
	seedRemote(t, objects, models.BookmarkData{Timestamp: 1000, DeviceID: "dev-b"})
	s := newTestSyncer(t, objects, 5000)

	winner, err := s.Sync(context.Background(), models.BookmarkData{Timestamp: 1000, DeviceID: "dev-a"})
	require.NoError(t, err)

	assert.Equal(t, "dev-b", winner.DeviceID)
	assert.Zero(t, objects.uploads)
}

func TestSync_LocalNewerIsUploadedWithFreshStamp(t *testing.T) {
	objects := newMemObjects()
	seedRemote(t, objects, models.BookmarkData{Timestamp: 1000, DeviceID: "dev-b"})
	s := newTestSyncer(t, objects, 5000)

	winner, err := s.Sync(context.Background(), models.BookmarkData{
		Timestamp: 2000,
		Bookmarks: []models.Bookmark{{ID: "l1", Title: "local", URL: "https://l"}},
	})
	require.NoError(t, err)

	assert.Equal(t, "dev-a", winner.DeviceID)
	assert.Equal(t, int64(5000), winner.Timestamp)
	assert.Equal(t, 1, objects.uploads)

	var stored models.BookmarkData
	require.NoError(t, json.Unmarshal(objects.objects[transport.BookmarkObjectPath], &stored))
	assert.Equal(t, winner.Timestamp, stored.Timestamp)
	require.Len(t, stored.Bookmarks, 1)
	assert.Equal(t, "l1", stored.Bookmarks[0].ID)
}

func TestSyncLocal_AdoptsRemoteIntoFile(t *testing.T) {
	objects := newMemObjects()
	seedRemote(t, objects, models.BookmarkData{
		Timestamp: 2000,
		DeviceID:  "dev-b",
		Bookmarks: []models.Bookmark{{ID: "r1", Title: "remote", URL: "https://r"}},
	})
	s := newTestSyncer(t, objects, 5000)

	winner, err := s.SyncLocal(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2000), winner.Timestamp)

	raw, err := os.ReadFile(s.localPath)
	require.NoError(t, err)
	var onDisk models.BookmarkData
	require.NoError(t, json.Unmarshal(raw, &onDisk))
	assert.Equal(t, winner, onDisk)
}

func TestSyncLocal_PushesLocalFile(t *testing.T) {
	objects := newMemObjects()
	s := newTestSyncer(t, objects, 5000)

	local := models.BookmarkData{
		Timestamp: 1000,
		Bookmarks: []models.Bookmark{{ID: "l1", Title: "local", URL: "https://l"}},
	}
	raw, err := json.Marshal(local)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(s.localPath, raw, 0o600))

	winner, err := s.SyncLocal(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(5000), winner.Timestamp)
	assert.Equal(t, 1, objects.uploads)

	// The local file carries the restamped winner afterwards.
	raw, err = os.ReadFile(s.localPath)
	require.NoError(t, err)
	var onDisk models.BookmarkData
	require.NoError(t, json.Unmarshal(raw, &onDisk))
	assert.Equal(t, int64(5000), onDisk.Timestamp)
}

func TestSyncLocal_CorruptFileSupersededByRemote(t *testing.T) {
	objects := newMemObjects()
	seedRemote(t, objects, models.BookmarkData{Timestamp: 2000, DeviceID: "dev-b"})
	s := newTestSyncer(t, objects, 5000)

	require.NoError(t, os.WriteFile(s.localPath, []byte("{torn"), 0o600))

	winner, err := s.SyncLocal(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "dev-b", winner.DeviceID)
}
