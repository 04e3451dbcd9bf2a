package deletion

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/avelichko/clip-keeper/internal/logger"
	"github.com/avelichko/clip-keeper/internal/store"
	"github.com/avelichko/clip-keeper/internal/store/mocks"
	"github.com/avelichko/clip-keeper/models"
)

func newTestManager(t *testing.T) (*Manager, *mocks.MockLocalStore) {
	t.Helper()
	ctrl := gomock.NewController(t)
	st := mocks.NewMockLocalStore(ctrl)
	return NewManager(st, logger.Nop()), st
}

func TestDelete_SyncedItemGetsTombstone(t *testing.T) {
	m, st := newTestManager(t)
	ctx := context.Background()

	st.EXPECT().Get(ctx, "a").
		Return(models.ClipboardItem{ID: "a", SyncStatus: models.SyncStatusSynced}, nil)
	st.EXPECT().SoftDelete(ctx, "a").Return(nil)

	res, err := m.Delete(ctx, "a")
	require.NoError(t, err)
	assert.False(t, res.Hard)
}

func TestDelete_CloudDataGetsTombstone(t *testing.T) {
	m, st := newTestManager(t)
	ctx := context.Background()

	// Never marked synced locally, but it came from the remote: other
	// devices hold copies, so the deletion must propagate.
	st.EXPECT().Get(ctx, "a").
		Return(models.ClipboardItem{ID: "a", SyncStatus: models.SyncStatusNone, IsCloudData: true}, nil)
	st.EXPECT().SoftDelete(ctx, "a").Return(nil)

	res, err := m.Delete(ctx, "a")
	require.NoError(t, err)
	assert.False(t, res.Hard)
}

func TestDelete_NeverSyncedItemIsHardDeleted(t *testing.T) {
	m, st := newTestManager(t)
	ctx := context.Background()

	st.EXPECT().Get(ctx, "a").
		Return(models.ClipboardItem{ID: "a", SyncStatus: models.SyncStatusPending}, nil)
	st.EXPECT().HardDelete(ctx, []string{"a"}).Return(nil)

	res, err := m.Delete(ctx, "a")
	require.NoError(t, err)
	assert.True(t, res.Hard)
}

func TestDelete_GetFailurePropagates(t *testing.T) {
	m, st := newTestManager(t)
	ctx := context.Background()

	boom := errors.New("db locked")
	st.EXPECT().Get(ctx, "a").Return(models.ClipboardItem{}, boom)

	_, err := m.Delete(ctx, "a")
	assert.ErrorIs(t, err, boom)
}

func TestDeleteBatch_ReportsEveryItem(t *testing.T) {
	m, st := newTestManager(t)
	ctx := context.Background()

	st.EXPECT().Get(ctx, "a").
		Return(models.ClipboardItem{ID: "a", SyncStatus: models.SyncStatusSynced}, nil)
	st.EXPECT().SoftDelete(ctx, "a").Return(nil)
	st.EXPECT().Get(ctx, "missing").
		Return(models.ClipboardItem{}, store.ErrItemNotFound)
	st.EXPECT().Get(ctx, "c").
		Return(models.ClipboardItem{ID: "c", SyncStatus: models.SyncStatusNone}, nil)
	st.EXPECT().HardDelete(ctx, []string{"c"}).Return(nil)

	results, err := m.DeleteBatch(ctx, []string{"a", "missing", "c"})

	require.Len(t, results, 3)
	assert.Error(t, err)
	assert.NoError(t, results[0].Err)
	assert.ErrorIs(t, results[1].Err, store.ErrItemNotFound)
	assert.NoError(t, results[2].Err)
	assert.True(t, results[2].Hard)
}

func TestReconcile_RemovesTombstonesOnSuccess(t *testing.T) {
	m, st := newTestManager(t)
	ctx := context.Background()

	st.EXPECT().HardDelete(ctx, []string{"a", "b"}).Return(nil)

	require.NoError(t, m.Reconcile(ctx, []string{"a", "b"}, false))
}

func TestReconcile_RetainsTombstonesOnRemoteFailure(t *testing.T) {
	m, st := newTestManager(t)
	_ = st // no store calls expected: tombstones must survive for a retry

	require.NoError(t, m.Reconcile(context.Background(), []string{"a"}, true))
}

func TestReconcile_NoTombstonesIsNoop(t *testing.T) {
	m, _ := newTestManager(t)
	require.NoError(t, m.Reconcile(context.Background(), nil, false))
}
