// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Alexei Velichko

package config

import (
	"time"

	"github.com/avelichko/clip-keeper/models"
)

// StructuredConfig is the top-level configuration container for
// clip-keeper. It aggregates all sub-configurations and is populated by
// merging values from environment variables, command-line flags, and an
// optional JSON file.
//
// Struct tags:
//   - envPrefix — prefix applied to all nested env tag lookups (caarlos0/env).
//   - env       — direct environment variable name for scalar fields.
type StructuredConfig struct {
	// App holds application-level settings: the device identity and the
	// optional sync password used to seal payloads before upload.
	App App `envPrefix:"APP_"`

	// Storage holds configuration for the local row store and the
	// attachment cache directory.
	Storage Storage `envPrefix:"STORAGE_"`

	// Remote holds the object-store endpoint settings used by the client
	// transport.
	Remote Remote `envPrefix:"REMOTE_"`

	// Sync holds the sync-mode filter and background sync settings.
	Sync Sync `envPrefix:"SYNC_"`

	// Files holds attachment packaging limits.
	Files Files `envPrefix:"FILES_"`

	// Server holds settings for the dev object-store server binary.
	Server Server `envPrefix:"SERVER_"`

	// JSONFilePath is the optional path to a JSON configuration file.
	// When non-empty, the file is parsed and merged on top of the values
	// already loaded from environment variables and flags.
	// Populated via the CONFIG environment variable or the -c / -config flag.
	JSONFilePath string `env:"CONFIG"`
}

// App holds device identity and payload-encryption settings.
type App struct {
	// DeviceID uniquely identifies this device in remote indexes and wire
	// items. Generated and persisted on first run when empty.
	// Env: APP_DEVICE_ID
	DeviceID string `env:"DEVICE_ID"`

	// SyncPassword, when non-empty, enables at-rest encryption of item
	// values and attachment packages before upload. All devices sharing a
	// remote must use the same password.
	// Env: APP_SYNC_PASSWORD
	SyncPassword string `env:"SYNC_PASSWORD"`

	// LogFile is the path of the rotating client log file. Empty means
	// stdout.
	// Env: APP_LOG_FILE
	LogFile string `env:"LOG_FILE"`
}

// Storage groups local persistence settings.
type Storage struct {
	// DB holds the local row-store connection settings.
	DB DB `envPrefix:"DB_"`

	// CacheDir is the directory holding the downloaded-attachment LRU
	// cache and its bbolt index.
	// Env: STORAGE_CACHE_DIR
	CacheDir string `env:"CACHE_DIR"`

	// CacheMaxBytes caps the attachment cache size. Default 100MB.
	// Env: STORAGE_CACHE_MAX_BYTES
	CacheMaxBytes int64 `env:"CACHE_MAX_BYTES"`

	// CacheTTL bounds how long an unused cache entry is kept. Default 168h.
	// Env: STORAGE_CACHE_TTL
	CacheTTL time.Duration `env:"CACHE_TTL"`
}

// DB holds connection settings for the local row store.
type DB struct {
	// Driver selects the backend: "sqlite3" (default) or "pgx" for a
	// shared-host Postgres setup.
	// Env: STORAGE_DB_DRIVER
	Driver string `env:"DRIVER"`

	// DSN is the connection string: a file path for SQLite or a postgres://
	// URI for Postgres.
	// Env: STORAGE_DB_DSN
	DSN string `env:"DSN"`
}

// Remote holds the object-store endpoint settings.
type Remote struct {
	// BaseURL is the object-store endpoint (e.g. "https://dav.example.com").
	// Env: REMOTE_BASE_URL
	BaseURL string `env:"BASE_URL"`

	// BasePath is the path prefix under which all sync objects live
	// (e.g. "/clip-keeper").
	// Env: REMOTE_BASE_PATH
	BasePath string `env:"BASE_PATH"`

	// Token is an optional bearer token sent on every request.
	// Env: REMOTE_TOKEN
	Token string `env:"TOKEN"`

	// RequestTimeout bounds each outbound object-store call.
	// Env: REMOTE_REQUEST_TIMEOUT
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT"`
}

// Sync holds sync scheduling and filtering settings.
type Sync struct {
	// Interval is the period of the background sync worker.
	// Env: SYNC_INTERVAL
	Interval time.Duration `env:"INTERVAL"`

	// IndexTTL bounds how long a fetched remote index is served from cache
	// within one process. Default 30s.
	// Env: SYNC_INDEX_TTL
	IndexTTL time.Duration `env:"INDEX_TTL"`

	// Mode is the active content-type / favorites filter.
	Mode models.SyncMode `envPrefix:"MODE_"`
}

// Files holds attachment packaging limits.
type Files struct {
	// MaxFileBytes is the hard per-file ceiling; larger files are rejected
	// outright and never uploaded. Default 10MB.
	// Env: FILES_MAX_FILE_BYTES
	MaxFileBytes int64 `env:"MAX_FILE_BYTES"`

	// PackageTargetBytes is the target package size files are batched up
	// to. Default 5MB.
	// Env: FILES_PACKAGE_TARGET_BYTES
	PackageTargetBytes int64 `env:"PACKAGE_TARGET_BYTES"`

	// UploadAttempts is the fixed retry budget for a package upload.
	// Default 3.
	// Env: FILES_UPLOAD_ATTEMPTS
	UploadAttempts int `env:"UPLOAD_ATTEMPTS"`

	// DeleteConcurrency caps in-flight remote package deletions. Default 3.
	// Env: FILES_DELETE_CONCURRENCY
	DeleteConcurrency int `env:"DELETE_CONCURRENCY"`
}

// Server holds dev object-store server settings.
type Server struct {
	// HTTPAddress is the TCP address the dev server listens on, in
	// "host:port" format.
	// Env: SERVER_ADDRESS
	HTTPAddress string `env:"ADDRESS"`

	// TokenSignKey signs and verifies bearer tokens issued by the dev
	// server.
	// Env: SERVER_TOKEN_SIGN_KEY
	TokenSignKey string `env:"TOKEN_SIGN_KEY"`

	// DataDir is the directory objects are persisted under. Empty keeps
	// everything in memory.
	// Env: SERVER_DATA_DIR
	DataDir string `env:"DATA_DIR"`

	// RequestTimeout is the maximum duration allowed for a single inbound
	// request.
	// Env: SERVER_REQUEST_TIMEOUT
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT"`
}

// GetStructuredConfig loads, merges, and validates the application
// configuration from all available sources in the following priority order
// (first non-zero value wins per field):
//  1. Environment variables
//  2. Command-line flags
//  3. JSON file (path resolved from sources 1 and 2)
//
// Returns a fully populated *StructuredConfig or an error if any source
// fails to load or the final config fails validation.
func GetStructuredConfig() (*StructuredConfig, error) {
	return newConfigBuilder().
		withEnv().
		withFlags().
		withJSON().
		build()
}
