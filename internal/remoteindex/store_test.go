package remoteindex

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avelichko/clip-keeper/internal/fingerprint"
	"github.com/avelichko/clip-keeper/internal/logger"
	"github.com/avelichko/clip-keeper/internal/transport"
	"github.com/avelichko/clip-keeper/internal/utils"
	"github.com/avelichko/clip-keeper/models"
)

// memObjects is an in-memory ObjectStore recording download counts.
type memObjects struct {
	mu        sync.Mutex
	objects   map[string][]byte
	downloads int
}

func newMemObjects() *memObjects {
	return &memObjects{objects: make(map[string][]byte)}
}

func (m *memObjects) UploadObject(_ context.Context, path string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[path] = append([]byte(nil), data...)
	return nil
}

func (m *memObjects) DownloadObject(_ context.Context, path string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.downloads++
	data, ok := m.objects[path]
	if !ok {
		return nil, transport.ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

func (m *memObjects) DeleteObject(_ context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, path)
	return nil
}

func (m *memObjects) CreateDirectory(context.Context, string) error { return nil }

type stepClock struct{ t time.Time }

func (c *stepClock) Now() time.Time          { return c.t }
func (c *stepClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func validIndex(t *testing.T, deviceID string) models.RemoteSyncIndex {
	t.Helper()
	idx := NewEmptyIndex(deviceID, utils.FixedClock{T: time.UnixMilli(1000)})
	idx.Items = []models.Fingerprint{{ID: "a", Checksum: "ca", Timestamp: 5}}
	idx.TotalItems = 1
	idx.DataChecksum = fingerprint.DataChecksum(idx.Items)
	return idx
}

func TestLoad_AbsentIndex(t *testing.T) {
	s := NewStore(newMemObjects(), nil, time.Second, logger.Nop())

	_, err := s.Load(context.Background())
	assert.ErrorIs(t, err, ErrIndexAbsent)
}

func TestLoad_CorruptPayloadTreatedAsAbsent(t *testing.T) {
	payloads := [][]byte{
		[]byte("{not json"),
		[]byte(`{"formatMarker":"something/else","timestamp":1,"deviceId":"d"}`),
		[]byte(`{"formatMarker":"` + FormatMarker + `","timestamp":0,"deviceId":"d"}`),
		[]byte(`{"formatMarker":"` + FormatMarker + `","timestamp":1,"deviceId":""}`),
	}

	for _, payload := range payloads {
		objects := newMemObjects()
		objects.objects[transport.IndexObjectPath] = payload

		s := NewStore(objects, nil, time.Second, logger.Nop())
		_, err := s.Load(context.Background())
		assert.ErrorIs(t, err, ErrIndexAbsent)
	}
}

func TestLoad_DataChecksumMismatchTreatedAsAbsent(t *testing.T) {
	idx := validIndex(t, "dev-a")
	idx.DataChecksum = "tampered"
	raw, err := json.Marshal(idx)
	require.NoError(t, err)

	objects := newMemObjects()
	objects.objects[transport.IndexObjectPath] = raw

	s := NewStore(objects, nil, time.Second, logger.Nop())
	_, err = s.Load(context.Background())
	assert.ErrorIs(t, err, ErrIndexAbsent)
}

func TestLoad_CachesWithinTTL(t *testing.T) {
	objects := newMemObjects()
	raw, err := json.Marshal(validIndex(t, "dev-a"))
	require.NoError(t, err)
	objects.objects[transport.IndexObjectPath] = raw

	clock := &stepClock{t: time.UnixMilli(0)}
	s := NewStore(objects, clock, 30*time.Second, logger.Nop())

	_, err = s.Load(context.Background())
	require.NoError(t, err)
	_, err = s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, objects.downloads, "second load within TTL must be served from cache")

	clock.advance(31 * time.Second)
	_, err = s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, objects.downloads, "expired cache must refetch")
}

func TestInvalidate_DropsCache(t *testing.T) {
	objects := newMemObjects()
	raw, err := json.Marshal(validIndex(t, "dev-a"))
	require.NoError(t, err)
	objects.objects[transport.IndexObjectPath] = raw

	s := NewStore(objects, &stepClock{t: time.UnixMilli(0)}, time.Hour, logger.Nop())

	_, err = s.Load(context.Background())
	require.NoError(t, err)
	s.Invalidate()
	_, err = s.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, objects.downloads)
}

func TestSave_RoundTripsAndRefreshesCache(t *testing.T) {
	objects := newMemObjects()
	s := NewStore(objects, &stepClock{t: time.UnixMilli(0)}, time.Hour, logger.Nop())

	idx := validIndex(t, "dev-a")
	require.NoError(t, s.Save(context.Background(), idx))

	got, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, idx.DataChecksum, got.DataChecksum)
	assert.Equal(t, 0, objects.downloads, "save must warm the cache")
}

func TestSave_TransportErrorPropagates(t *testing.T) {
	s := NewStore(failingObjects{}, nil, time.Second, logger.Nop())
	err := s.Save(context.Background(), validIndex(t, "dev-a"))
	assert.Error(t, err)
}

type failingObjects struct{}

func (failingObjects) UploadObject(context.Context, string, []byte) error {
	return errors.New("boom")
}
func (failingObjects) DownloadObject(context.Context, string) ([]byte, error) {
	return nil, errors.New("boom")
}
func (failingObjects) DeleteObject(context.Context, string) error    { return errors.New("boom") }
func (failingObjects) CreateDirectory(context.Context, string) error { return errors.New("boom") }

func TestUpdateWithLocalChanges(t *testing.T) {
	clock := utils.FixedClock{T: time.UnixMilli(5000)}
	prev := NewEmptyIndex("dev-a", utils.FixedClock{T: time.UnixMilli(1000)})
	prev.DeletedItems = []string{"old-tombstone"}

	items := []models.ClipboardItem{
		{ID: "b", Type: models.TypeText, Value: "2", LastModified: 20},
		{ID: "a", Type: models.TypeText, Value: "1", LastModified: 10, Favorite: true},
		{ID: "a", Type: models.TypeText, Value: "1-dup", LastModified: 11},
		{ID: "dead", Type: models.TypeText, Value: "x", Deleted: true},
	}

	next := UpdateWithLocalChanges(prev, "dev-b", items, []string{"gone", "old-tombstone"}, clock)

	assert.Equal(t, FormatMarker, next.FormatMarker)
	assert.Equal(t, "dev-b", next.DeviceID)
	assert.Equal(t, int64(5000), next.Timestamp)

	// Sorted, deduplicated, tombstoned and deleted rows excluded.
	require.Len(t, next.Items, 2)
	assert.Equal(t, "a", next.Items[0].ID)
	assert.Equal(t, "b", next.Items[1].ID)
	assert.Equal(t, 2, next.TotalItems)

	assert.Equal(t, []string{"gone", "old-tombstone"}, next.DeletedItems)
	assert.Equal(t, fingerprint.DataChecksum(next.Items), next.DataChecksum)
	assert.Equal(t, 1, next.Statistics.Favorites)
	assert.Equal(t, 2, next.Statistics.ByType[models.TypeText])

	// Pure function: the input index is untouched.
	assert.Equal(t, []string{"old-tombstone"}, prev.DeletedItems)
}

func TestUpdateWithLocalChanges_TombstonedItemExcludedFromItems(t *testing.T) {
	prev := NewEmptyIndex("dev-a", utils.FixedClock{T: time.UnixMilli(1000)})
	items := []models.ClipboardItem{{ID: "x", Type: models.TypeText, Value: "v"}}

	next := UpdateWithLocalChanges(prev, "dev-a", items, []string{"x"}, utils.FixedClock{T: time.UnixMilli(2000)})

	assert.Empty(t, next.Items)
	assert.Equal(t, []string{"x"}, next.DeletedItems)
}
