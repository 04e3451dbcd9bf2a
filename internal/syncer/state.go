package syncer

// State is the orchestrator's position in one sync run.
type State string

const (
	StateIdle              State = "idle"
	StateGathering         State = "gathering"
	StateDiffing           State = "diffing"
	StateConflictResolving State = "conflict_resolving"
	StateTransferring      State = "transferring"
	StateIndexCommit       State = "index_commit"
	StateDone              State = "done"
	StateFailed            State = "failed"
)
