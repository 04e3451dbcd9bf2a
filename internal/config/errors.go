package config

import "errors"

// Validation errors returned when required configuration groups are
// incomplete or invalid.
var (
	// ErrInvalidRemoteConfigs indicates invalid object-store settings
	// (for example, missing base URL or zero request timeout).
	ErrInvalidRemoteConfigs = errors.New("invalid remote configuration")
	// ErrInvalidStorageConfigs indicates invalid local storage settings
	// (for example, empty DSN or unsupported in-memory DSN).
	ErrInvalidStorageConfigs = errors.New("invalid storage configuration")
	// ErrInvalidSyncConfigs indicates invalid sync scheduling settings
	// (for example, a non-positive sync interval).
	ErrInvalidSyncConfigs = errors.New("invalid sync configuration")
	// ErrInvalidFilesConfigs indicates inconsistent packaging limits
	// (for example, a package target above the per-file ceiling).
	ErrInvalidFilesConfigs = errors.New("invalid files configuration")
	// ErrInvalidServerConfigs indicates invalid dev server settings.
	ErrInvalidServerConfigs = errors.New("invalid server configuration")
)
