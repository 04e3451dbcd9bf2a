// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Alexei Velichko

package config

import (
	"strings"
	"time"
)

// Defaults applied after merging when the corresponding fields were left
// unset by every source.
const (
	DefaultIndexTTL           = 30 * time.Second
	DefaultSyncInterval       = 5 * time.Minute
	DefaultRequestTimeout     = 15 * time.Second
	DefaultMaxFileBytes       = 10 << 20
	DefaultPackageTargetBytes = 5 << 20
	DefaultUploadAttempts     = 3
	DefaultDeleteConcurrency  = 3
	DefaultCacheMaxBytes      = 100 << 20
	DefaultCacheTTL           = 7 * 24 * time.Hour
)

func (cfg *StructuredConfig) applyDefaults() {
	if cfg.Storage.DB.Driver == "" {
		cfg.Storage.DB.Driver = "sqlite3"
	}
	if cfg.Storage.CacheMaxBytes == 0 {
		cfg.Storage.CacheMaxBytes = DefaultCacheMaxBytes
	}
	if cfg.Storage.CacheTTL == 0 {
		cfg.Storage.CacheTTL = DefaultCacheTTL
	}
	if cfg.Remote.RequestTimeout == 0 {
		cfg.Remote.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.Sync.Interval == 0 {
		cfg.Sync.Interval = DefaultSyncInterval
	}
	if cfg.Sync.IndexTTL == 0 {
		cfg.Sync.IndexTTL = DefaultIndexTTL
	}
	if cfg.Files.MaxFileBytes == 0 {
		cfg.Files.MaxFileBytes = DefaultMaxFileBytes
	}
	if cfg.Files.PackageTargetBytes == 0 {
		cfg.Files.PackageTargetBytes = DefaultPackageTargetBytes
	}
	if cfg.Files.UploadAttempts == 0 {
		cfg.Files.UploadAttempts = DefaultUploadAttempts
	}
	if cfg.Files.DeleteConcurrency == 0 {
		cfg.Files.DeleteConcurrency = DefaultDeleteConcurrency
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = DefaultRequestTimeout
	}
}

// validate checks that the merged [StructuredConfig] satisfies the
// invariants required before startup.
//
// The remote endpoint is only required for the client binary; the dev
// server runs without one. Per-binary requirements are therefore checked
// by ValidateClient / ValidateServer rather than here.
func (cfg *StructuredConfig) validate() error {
	if cfg.Files.MaxFileBytes < cfg.Files.PackageTargetBytes {
		return ErrInvalidFilesConfigs
	}
	return nil
}

// ValidateClient checks the invariants the client binary depends on.
func (cfg *StructuredConfig) ValidateClient() error {
	if cfg.Storage.DB.DSN == "" || strings.Contains(cfg.Storage.DB.DSN, "memory") {
		return ErrInvalidStorageConfigs
	}

	if cfg.Remote.BaseURL == "" || cfg.Remote.RequestTimeout == 0 {
		return ErrInvalidRemoteConfigs
	}

	if cfg.Sync.Interval <= 0 {
		return ErrInvalidSyncConfigs
	}

	return nil
}

// ValidateServer checks the invariants the dev server binary depends on.
func (cfg *StructuredConfig) ValidateServer() error {
	if cfg.Server.HTTPAddress == "" {
		return ErrInvalidServerConfigs
	}
	return nil
}
