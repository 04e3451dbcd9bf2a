package models

// ConflictStrategy selects how a value-level conflict is resolved.
type ConflictStrategy string

const (
	// StrategyLocal keeps the local item verbatim and only back-fills
	// metadata that exists remotely but not locally.
	StrategyLocal ConflictStrategy = "local"
	// StrategyRemote mirrors the remote item, back-filling local-only
	// metadata absent remotely.
	StrategyRemote ConflictStrategy = "remote"
	// StrategyMerge is the default: local value, local explicit favorite,
	// first non-empty note (local first), max lastModified.
	StrategyMerge ConflictStrategy = "merge"
)

// ConflictContext pairs the two diverging copies of one item.
type ConflictContext struct {
	Local  SyncItem `json:"local"`
	Remote SyncItem `json:"remote"`
}

// ConflictResult reports how one conflict was resolved. Reason is a short
// human-readable explanation kept for testability and the sync report.
type ConflictResult struct {
	Resolved SyncItem         `json:"resolved"`
	Strategy ConflictStrategy `json:"strategy"`
	Reason   string           `json:"reason"`
}
