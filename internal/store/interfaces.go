// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Alexei Velichko

// Package store persists clipboard history rows locally. The default
// backend is SQLite; a Postgres DSN selects pgx for shared-host setups.
// Both backends share one repository built on squirrel query builders.
package store

//go:generate mockgen -source=interfaces.go -destination=mocks/store.go -package=mocks

import (
	"context"

	"github.com/avelichko/clip-keeper/models"
)

// Filter narrows Query results. Zero values mean "no restriction".
type Filter struct {
	// Types restricts to the given content types.
	Types []models.ItemType
	// OnlyFavorites keeps favorite items only.
	OnlyFavorites bool
	// IncludeDeleted keeps tombstoned rows in the result set. The sync
	// engine needs them; the UI does not.
	IncludeDeleted bool
	// SyncStatus restricts to rows in the given status.
	SyncStatus models.SyncStatus
	// Search matches a substring of the search snippet.
	Search string
	// Limit caps the row count; 0 means unlimited.
	Limit uint64
}

// LocalStore is the row-store contract consumed by the sync engine and the
// UI. All writes are id-keyed upserts or updates, safe to repeat.
type LocalStore interface {
	Insert(ctx context.Context, item models.ClipboardItem) error
	Update(ctx context.Context, id string, update models.ItemUpdate) error
	Upsert(ctx context.Context, item models.ClipboardItem) error
	Get(ctx context.Context, id string) (models.ClipboardItem, error)
	Query(ctx context.Context, filter Filter) ([]models.ClipboardItem, error)
	SoftDelete(ctx context.Context, id string) error
	HardDelete(ctx context.Context, ids []string) error
}
