package store

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	sq "github.com/Masterminds/squirrel"
	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avelichko/clip-keeper/internal/logger"
	"github.com/avelichko/clip-keeper/models"
)

func newMockRepository(t *testing.T) (LocalStore, sqlmock.Sqlmock) {
	t.Helper()

	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	db := &DB{
		DB:      conn,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Question),
		dialect: "sqlite3",
		logger:  logger.Nop(),
	}
	return NewClipboardRepository(db, logger.Nop()), mock
}

func sampleItem() models.ClipboardItem {
	return models.ClipboardItem{
		ID:           "0190e4a2-item",
		Type:         models.TypeText,
		Value:        "copied text",
		Search:       "copied text",
		CreateTime:   1000,
		LastModified: 1000,
		SyncStatus:   models.SyncStatusPending,
		Checksum:     "abc123",
	}
}

func itemRows(items ...models.ClipboardItem) *sqlmock.Rows {
	rows := sqlmock.NewRows(itemColumns)
	for _, it := range items {
		rows.AddRow(
			it.ID, it.Type, it.Group, it.Value, it.Search,
			it.Favorite, it.Note, it.CreateTime, it.LastModified,
			it.Deleted, it.SyncStatus, it.IsCloudData, it.Checksum,
			it.FileSize, it.FileType, it.LazyDownload,
		)
	}
	return rows
}

func TestInsert_Success(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectExec("INSERT INTO clipboard_items").
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.Insert(context.Background(), sampleItem()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsert_DuplicateID(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectExec("INSERT INTO clipboard_items").
		WillReturnError(sqlite3.Error{
			Code:         sqlite3.ErrConstraint,
			ExtendedCode: sqlite3.ErrConstraintPrimaryKey,
		})

	err := repo.Insert(context.Background(), sampleItem())
	assert.ErrorIs(t, err, ErrDuplicateID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdate_EmptyUpdateRejected(t *testing.T) {
	repo, _ := newMockRepository(t)

	err := repo.Update(context.Background(), "id-1", models.ItemUpdate{})
	assert.ErrorIs(t, err, ErrEmptyUpdate)
}

func TestUpdate_MissingRow(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectExec("UPDATE clipboard_items SET").
		WillReturnResult(sqlmock.NewResult(0, 0))

	fav := true
	err := repo.Update(context.Background(), "ghost", models.ItemUpdate{Favorite: &fav})
	assert.ErrorIs(t, err, ErrItemNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdate_AppliesAssignments(t *testing.T) {
	repo, mock := newMockRepository(t)

	fav := true
	status := models.SyncStatusPending
	mock.ExpectExec("UPDATE clipboard_items SET favorite = \\?, sync_status = \\? WHERE id = \\?").
		WithArgs(true, models.SyncStatusPending, "id-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Update(context.Background(), "id-1", models.ItemUpdate{Favorite: &fav, SyncStatus: &status})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsert_FallsBackToInsert(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectExec("UPDATE clipboard_items SET").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO clipboard_items").
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.Upsert(context.Background(), sampleItem()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsert_UpdatesExistingRow(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectExec("UPDATE clipboard_items SET").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Upsert(context.Background(), sampleItem()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGet_Found(t *testing.T) {
	repo, mock := newMockRepository(t)
	want := sampleItem()

	mock.ExpectQuery("SELECT (.+) FROM clipboard_items WHERE id = \\?").
		WithArgs(want.ID).
		WillReturnRows(itemRows(want))

	got, err := repo.Get(context.Background(), want.ID)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestGet_NotFound(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery("SELECT (.+) FROM clipboard_items").
		WillReturnRows(itemRows())

	_, err := repo.Get(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrItemNotFound)
}

func TestQuery_DefaultExcludesDeleted(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery("SELECT (.+) FROM clipboard_items WHERE deleted = \\? ORDER BY last_modified DESC").
		WithArgs(false).
		WillReturnRows(itemRows(sampleItem()))

	items, err := repo.Query(context.Background(), Filter{})
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQuery_FiltersCompose(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery("SELECT (.+) FROM clipboard_items WHERE type IN \\(\\?\\) AND favorite = \\? AND deleted = \\? AND search LIKE \\? ORDER BY last_modified DESC LIMIT 10").
		WithArgs(models.TypeText, true, false, "%hello%").
		WillReturnRows(itemRows())

	_, err := repo.Query(context.Background(), Filter{
		Types:         []models.ItemType{models.TypeText},
		OnlyFavorites: true,
		Search:        "hello",
		Limit:         10,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQuery_IncludeDeletedDropsClause(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery("SELECT (.+) FROM clipboard_items ORDER BY last_modified DESC").
		WillReturnRows(itemRows())

	_, err := repo.Query(context.Background(), Filter{IncludeDeleted: true})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSoftDelete_TombstonesAndMarksPending(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectExec("UPDATE clipboard_items SET deleted = \\?, sync_status = \\? WHERE id = \\?").
		WithArgs(true, models.SyncStatusPending, "id-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SoftDelete(context.Background(), "id-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHardDelete_BatchesIDs(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectExec("DELETE FROM clipboard_items WHERE id IN \\(\\?,\\?\\)").
		WithArgs("a", "b").
		WillReturnResult(sqlmock.NewResult(0, 2))

	require.NoError(t, repo.HardDelete(context.Background(), []string{"a", "b"}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHardDelete_EmptyIsNoop(t *testing.T) {
	repo, mock := newMockRepository(t)

	require.NoError(t, repo.HardDelete(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}
