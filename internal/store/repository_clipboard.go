// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Alexei Velichko

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/avelichko/clip-keeper/internal/logger"
	"github.com/avelichko/clip-keeper/models"
)

const itemsTable = "clipboard_items"

var itemColumns = []string{
	"id", "type", "item_group", "value", "search", "favorite", "note",
	"create_time", "last_modified", "deleted", "sync_status",
	"is_cloud_data", "checksum", "file_size", "file_type", "lazy_download",
}

type clipboardRepository struct {
	*DB
	logger *logger.Logger
}

// NewClipboardRepository builds the LocalStore over an opened DB.
func NewClipboardRepository(db *DB, log *logger.Logger) LocalStore {
	return &clipboardRepository{
		DB:     db,
		logger: log,
	}
}

func (r *clipboardRepository) Insert(ctx context.Context, item models.ClipboardItem) error {
	log := logger.FromContext(ctx)

	query, args, err := r.builder.
		Insert(itemsTable).
		Columns(itemColumns...).
		Values(itemValues(item)...).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert query: %w", err)
	}

	if _, err = r.DB.ExecContext(ctx, query, args...); err != nil {
		if isDuplicateErr(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateID, item.ID)
		}
		log.Err(err).
			Str("func", "clipboardRepository.Insert").
			Str("id", item.ID).
			Msg("failed to execute insert for clipboard item")
		return fmt.Errorf("failed to insert clipboard item (id=%s): %w", item.ID, err)
	}

	return nil
}

// Upsert writes the row id-keyed, replacing any existing copy. Remote
// downloads apply through here so at-least-once delivery is safe to
// repeat.
func (r *clipboardRepository) Upsert(ctx context.Context, item models.ClipboardItem) error {
	log := logger.FromContext(ctx)

	assignments := make(map[string]any, len(itemColumns)-1)
	values := itemValues(item)
	for i, col := range itemColumns {
		if col == "id" {
			continue
		}
		assignments[col] = values[i]
	}

	update := r.builder.Update(itemsTable).SetMap(assignments).Where(sq.Eq{"id": item.ID})
	query, args, err := update.ToSql()
	if err != nil {
		return fmt.Errorf("build upsert update query: %w", err)
	}

	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		log.Err(err).
			Str("func", "clipboardRepository.Upsert").
			Str("id", item.ID).
			Msg("failed to execute upsert update for clipboard item")
		return fmt.Errorf("failed to upsert clipboard item (id=%s): %w", item.ID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected (id=%s): %w", item.ID, err)
	}
	if affected > 0 {
		return nil
	}

	return r.Insert(ctx, item)
}

func (r *clipboardRepository) Update(ctx context.Context, id string, update models.ItemUpdate) error {
	log := logger.FromContext(ctx)

	assignments := updateAssignments(update)
	if len(assignments) == 0 {
		return ErrEmptyUpdate
	}

	query, args, err := r.builder.
		Update(itemsTable).
		SetMap(assignments).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update query: %w", err)
	}

	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		log.Err(err).
			Str("func", "clipboardRepository.Update").
			Str("id", id).
			Msg("failed to execute update for clipboard item")
		return fmt.Errorf("failed to update clipboard item (id=%s): %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected (id=%s): %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrItemNotFound, id)
	}

	return nil
}

func (r *clipboardRepository) Get(ctx context.Context, id string) (models.ClipboardItem, error) {
	log := logger.FromContext(ctx)

	query, args, err := r.builder.
		Select(itemColumns...).
		From(itemsTable).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return models.ClipboardItem{}, fmt.Errorf("build get query: %w", err)
	}

	row := r.DB.QueryRowContext(ctx, query, args...)
	item, err := scanItem(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.ClipboardItem{}, fmt.Errorf("%w: %s", ErrItemNotFound, id)
		}
		log.Err(err).
			Str("func", "clipboardRepository.Get").
			Str("id", id).
			Msg("failed to scan clipboard item row")
		return models.ClipboardItem{}, fmt.Errorf("failed to scan clipboard item row: %w", err)
	}

	return item, nil
}

func (r *clipboardRepository) Query(ctx context.Context, filter Filter) ([]models.ClipboardItem, error) {
	log := logger.FromContext(ctx)

	builder := r.builder.
		Select(itemColumns...).
		From(itemsTable).
		OrderBy("last_modified DESC")

	if len(filter.Types) > 0 {
		builder = builder.Where(sq.Eq{"type": filter.Types})
	}
	if filter.OnlyFavorites {
		builder = builder.Where(sq.Eq{"favorite": true})
	}
	if !filter.IncludeDeleted {
		builder = builder.Where(sq.Eq{"deleted": false})
	}
	if filter.SyncStatus != "" {
		builder = builder.Where(sq.Eq{"sync_status": filter.SyncStatus})
	}
	if filter.Search != "" {
		builder = builder.Where(sq.Like{"search": "%" + filter.Search + "%"})
	}
	if filter.Limit > 0 {
		builder = builder.Limit(filter.Limit)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		log.Err(err).
			Str("func", "clipboardRepository.Query").
			Msg("failed to execute query for clipboard items")
		return nil, fmt.Errorf("failed to query clipboard items: %w", err)
	}
	defer rows.Close()

	var items []models.ClipboardItem
	for rows.Next() {
		item, scanErr := scanItem(rows.Scan)
		if scanErr != nil {
			log.Err(scanErr).
				Str("func", "clipboardRepository.Query").
				Msg("failed to scan clipboard item row")
			return nil, fmt.Errorf("failed to scan clipboard item row: %w", scanErr)
		}
		items = append(items, item)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		log.Err(rowsErr).
			Str("func", "clipboardRepository.Query").
			Msg("error occurred during rows iteration")
		return nil, fmt.Errorf("error iterating clipboard item rows: %w", rowsErr)
	}

	return items, nil
}

// SoftDelete tombstones the row and marks it pending so the deletion
// propagates on the next sync.
func (r *clipboardRepository) SoftDelete(ctx context.Context, id string) error {
	deleted := true
	pending := models.SyncStatusPending
	return r.Update(ctx, id, models.ItemUpdate{
		Deleted:    &deleted,
		SyncStatus: &pending,
	})
}

func (r *clipboardRepository) HardDelete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	log := logger.FromContext(ctx)

	query, args, err := r.builder.
		Delete(itemsTable).
		Where(sq.Eq{"id": ids}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete query: %w", err)
	}

	if _, err = r.DB.ExecContext(ctx, query, args...); err != nil {
		log.Err(err).
			Str("func", "clipboardRepository.HardDelete").
			Int("count", len(ids)).
			Msg("failed to execute hard delete for clipboard items")
		return fmt.Errorf("failed to hard delete clipboard items: %w", err)
	}

	return nil
}

func itemValues(item models.ClipboardItem) []any {
	return []any{
		item.ID, item.Type, item.Group, item.Value, item.Search,
		item.Favorite, item.Note, item.CreateTime, item.LastModified,
		item.Deleted, item.SyncStatus, item.IsCloudData, item.Checksum,
		item.FileSize, item.FileType, item.LazyDownload,
	}
}

func scanItem(scan func(dest ...any) error) (models.ClipboardItem, error) {
	var item models.ClipboardItem
	err := scan(
		&item.ID, &item.Type, &item.Group, &item.Value, &item.Search,
		&item.Favorite, &item.Note, &item.CreateTime, &item.LastModified,
		&item.Deleted, &item.SyncStatus, &item.IsCloudData, &item.Checksum,
		&item.FileSize, &item.FileType, &item.LazyDownload,
	)
	return item, err
}

func updateAssignments(update models.ItemUpdate) map[string]any {
	assignments := make(map[string]any)
	if update.Value != nil {
		assignments["value"] = *update.Value
	}
	if update.Search != nil {
		assignments["search"] = *update.Search
	}
	if update.Favorite != nil {
		assignments["favorite"] = *update.Favorite
	}
	if update.Note != nil {
		assignments["note"] = *update.Note
	}
	if update.Group != nil {
		assignments["item_group"] = *update.Group
	}
	if update.LastModified != nil {
		assignments["last_modified"] = *update.LastModified
	}
	if update.Deleted != nil {
		assignments["deleted"] = *update.Deleted
	}
	if update.SyncStatus != nil {
		assignments["sync_status"] = *update.SyncStatus
	}
	if update.IsCloudData != nil {
		assignments["is_cloud_data"] = *update.IsCloudData
	}
	if update.Checksum != nil {
		assignments["checksum"] = *update.Checksum
	}
	if update.LazyDownload != nil {
		assignments["lazy_download"] = *update.LazyDownload
	}
	return assignments
}

func isDuplicateErr(err error) bool {
	if isUniqueViolation(err) {
		return true
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
