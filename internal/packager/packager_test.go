package packager

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avelichko/clip-keeper/internal/logger"
	"github.com/avelichko/clip-keeper/internal/retry"
	"github.com/avelichko/clip-keeper/internal/transport"
	"github.com/avelichko/clip-keeper/internal/utils"
	"github.com/avelichko/clip-keeper/models"
)

var errTransient = errors.New("connection reset")

// scriptObjects is an in-memory ObjectStore whose PUT behavior can be
// scripted per call.
type scriptObjects struct {
	mu      sync.Mutex
	objects map[string][]byte

	// putErrs is consumed one error per UploadObject call; nil entries
	// mean success. When exhausted, calls succeed.
	putErrs []error
	// storeOnErr stores the payload even when an error is scripted,
	// mimicking a remote that wrote the object but answered ambiguously.
	storeOnErr bool

	puts       []string
	deletes    []string
	deleteErrs map[string]error
}

func newScriptObjects() *scriptObjects {
	return &scriptObjects{objects: make(map[string][]byte), deleteErrs: make(map[string]error)}
}

func (s *scriptObjects) UploadObject(_ context.Context, path string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.puts = append(s.puts, path)

	var err error
	if len(s.putErrs) > 0 {
		err = s.putErrs[0]
		s.putErrs = s.putErrs[1:]
	}
	if err == nil || s.storeOnErr {
		s.objects[path] = append([]byte(nil), data...)
	}
	return err
}

func (s *scriptObjects) DownloadObject(_ context.Context, path string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[path]
	if !ok {
		return nil, transport.ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

func (s *scriptObjects) DeleteObject(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes = append(s.deletes, path)
	if err := s.deleteErrs[path]; err != nil {
		return err
	}
	delete(s.objects, path)
	return nil
}

func (s *scriptObjects) CreateDirectory(context.Context, string) error { return nil }

func testPolicy() retry.Policy {
	return retry.Policy{
		Attempts: 3,
		Delay:    time.Millisecond,
		Sleep:    func(context.Context, time.Duration) error { return nil },
	}
}

func newTestPackager(t *testing.T, objects transport.ObjectStore, cache *Cache) *Packager {
	t.Helper()
	limits := Limits{MaxFileBytes: 10, PackageTargetBytes: 5, UploadAttempts: 3, DeleteConcurrency: 2}
	return New(objects, cache, nil, limits, utils.FixedClock{T: time.UnixMilli(1000)}, testPolicy(), logger.Nop())
}

// ── Plan ─────────────────────────────────────────────────────────────────

func TestPlan_BatchesUpToTarget(t *testing.T) {
	p := newTestPackager(t, newScriptObjects(), nil)

	batches, rejected := p.Plan([]Attachment{
		{ItemID: "a", Data: make([]byte, 2)},
		{ItemID: "b", Data: make([]byte, 2)},
		{ItemID: "c", Data: make([]byte, 2)},
	})

	require.Empty(t, rejected)
	require.Len(t, batches, 2)
	assert.Len(t, batches[0], 2)
	assert.Len(t, batches[1], 1)
}

func TestPlan_SingleLargeFileGetsOwnPackage(t *testing.T) {
	p := newTestPackager(t, newScriptObjects(), nil)

	// 8 bytes: above the 5-byte target, below the 10-byte ceiling.
	batches, rejected := p.Plan([]Attachment{
		{ItemID: "small", Data: make([]byte, 2)},
		{ItemID: "big", Data: make([]byte, 8)},
	})

	require.Empty(t, rejected)
	require.Len(t, batches, 2)
	assert.Equal(t, "small", batches[0][0].ItemID)
	assert.Equal(t, "big", batches[1][0].ItemID)
}

func TestPlan_RejectsAboveCeiling(t *testing.T) {
	p := newTestPackager(t, newScriptObjects(), nil)

	batches, rejected := p.Plan([]Attachment{{ItemID: "huge", Data: make([]byte, 11)}})

	assert.Empty(t, batches)
	require.Len(t, rejected, 1)
	assert.Equal(t, "huge", rejected[0].ItemID)
}

// ── Upload ───────────────────────────────────────────────────────────────

func TestUpload_SuccessVerifiesByReadBack(t *testing.T) {
	objects := newScriptObjects()
	p := newTestPackager(t, objects, nil)

	pkg, err := p.Upload(context.Background(), []Attachment{{ItemID: "a", Name: "f", Data: []byte("x")}})
	require.NoError(t, err)

	assert.NotEmpty(t, pkg.PackageID)
	assert.NotEmpty(t, pkg.RemoteName)
	require.Len(t, pkg.Members, 1)

	raw, ok := objects.objects[transport.PackageObjectPath(pkg.RemoteName)]
	require.True(t, ok)
	parsed, payloads, err := readPackage(raw)
	require.NoError(t, err)
	assert.Equal(t, pkg.Checksum, parsed.Checksum)
	assert.Equal(t, []byte("x"), payloads["a"])
}

func TestUpload_RetriesUnderFreshName(t *testing.T) {
	objects := newScriptObjects()
	objects.putErrs = []error{errTransient, nil}
	p := newTestPackager(t, objects, nil)

	_, err := p.Upload(context.Background(), []Attachment{{ItemID: "a", Name: "f", Data: []byte("x")}})
	require.NoError(t, err)

	require.Len(t, objects.puts, 2)
	assert.NotEqual(t, objects.puts[0], objects.puts[1],
		"every attempt must serialize under a fresh remote name")
}

func TestUpload_AlreadyExistsAcceptedAfterReadBack(t *testing.T) {
	objects := newScriptObjects()
	objects.putErrs = []error{transport.ErrAlreadyExists}
	objects.storeOnErr = true // the ambiguous PUT did land
	p := newTestPackager(t, objects, nil)

	_, err := p.Upload(context.Background(), []Attachment{{ItemID: "a", Name: "f", Data: []byte("x")}})
	require.NoError(t, err)
	assert.Len(t, objects.puts, 1, "verified already-exists must not retry")
}

func TestUpload_AlreadyExistsWithBadObjectRetries(t *testing.T) {
	objects := newScriptObjects()
	// PUT claims the object exists but nothing readable is there.
	objects.putErrs = []error{transport.ErrAlreadyExists, nil}
	p := newTestPackager(t, objects, nil)

	_, err := p.Upload(context.Background(), []Attachment{{ItemID: "a", Name: "f", Data: []byte("x")}})
	require.NoError(t, err)
	assert.Len(t, objects.puts, 2)
}

func TestUpload_BudgetExhausted(t *testing.T) {
	objects := newScriptObjects()
	objects.putErrs = []error{errTransient, errTransient, errTransient}
	p := newTestPackager(t, objects, nil)

	_, err := p.Upload(context.Background(), []Attachment{{ItemID: "a", Name: "f", Data: []byte("x")}})
	require.Error(t, err)
	assert.Len(t, objects.puts, 3, "exactly the attempt budget, no more")
}

func TestUpload_UnauthorizedIsNotRetried(t *testing.T) {
	objects := newScriptObjects()
	objects.putErrs = []error{transport.ErrUnauthorized}
	p := newTestPackager(t, objects, nil)

	_, err := p.Upload(context.Background(), []Attachment{{ItemID: "a", Name: "f", Data: []byte("x")}})
	require.ErrorIs(t, err, transport.ErrUnauthorized)
	assert.Len(t, objects.puts, 1)
}

// ── Download ─────────────────────────────────────────────────────────────

func TestDownload_ServedFromCacheAfterFirstFetch(t *testing.T) {
	objects := newScriptObjects()
	clock := &tickClock{t: time.UnixMilli(0)}
	cache := openTestCache(t, 1<<20, time.Hour, clock)
	p := newTestPackager(t, objects, cache)

	uploaded, err := p.Upload(context.Background(), []Attachment{{ItemID: "a", Name: "f", Data: []byte("x")}})
	require.NoError(t, err)

	// Wipe the remote; the cached copy must still serve the download.
	objects.mu.Lock()
	objects.objects = map[string][]byte{}
	objects.mu.Unlock()

	pkg, payloads, err := p.Download(context.Background(), uploaded.RemoteName)
	require.NoError(t, err)
	assert.Equal(t, uploaded.PackageID, pkg.PackageID)
	assert.Equal(t, []byte("x"), payloads["a"])
}

func TestDownload_MissingPackage(t *testing.T) {
	p := newTestPackager(t, newScriptObjects(), nil)

	_, _, err := p.Download(context.Background(), "no-such-package")
	assert.ErrorIs(t, err, transport.ErrNotFound)
}

// ── Delete ───────────────────────────────────────────────────────────────

func TestDelete_BestEffortCollectsFailures(t *testing.T) {
	objects := newScriptObjects()
	objects.objects[transport.PackageObjectPath("ok-1")] = []byte("x")
	objects.objects[transport.PackageObjectPath("ok-2")] = []byte("x")
	objects.deleteErrs[transport.PackageObjectPath("bad")] = errTransient
	p := newTestPackager(t, objects, nil)

	errs := p.Delete(context.Background(), []string{"ok-1", "bad", "ok-2"})

	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], errTransient)
	assert.Len(t, objects.deletes, 3, "one failure must not stop the others")
}

// ── LoadAttachment ───────────────────────────────────────────────────────

func TestLoadAttachment_EnforcesCeiling(t *testing.T) {
	p := newTestPackager(t, newScriptObjects(), nil)

	path := filepath.Join(t.TempDir(), "big.bin")
	require.NoError(t, os.WriteFile(path, make([]byte, 11), 0o600))

	_, err := p.LoadAttachment(models.ClipboardItem{ID: "a", Type: models.TypeFiles, Value: path})
	assert.ErrorIs(t, err, ErrFileTooLarge)
}

func TestLoadAttachment_ReadsFile(t *testing.T) {
	p := newTestPackager(t, newScriptObjects(), nil)

	path := filepath.Join(t.TempDir(), "clip.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o600))

	att, err := p.LoadAttachment(models.ClipboardItem{ID: "a", Type: models.TypeFiles, Value: path})
	require.NoError(t, err)
	assert.Equal(t, "a", att.ItemID)
	assert.Equal(t, "clip.txt", att.Name)
	assert.Equal(t, []byte("hello"), att.Data)
}
