package models

import "fmt"

// ErrorCategory classifies a sync failure. Only fatal categories abort a
// run; everything else is recorded and reconciled by the next cycle.
type ErrorCategory string

const (
	ErrCategoryNetwork    ErrorCategory = "network"
	ErrCategoryFileOp     ErrorCategory = "file_operation"
	ErrCategoryLocalStore ErrorCategory = "local_store"
	ErrCategoryParsing    ErrorCategory = "parsing"
	ErrCategoryValidation ErrorCategory = "validation"
	ErrCategoryAuth       ErrorCategory = "auth"
	ErrCategoryConfig     ErrorCategory = "config"
)

// Fatal reports whether the category aborts the whole run.
func (c ErrorCategory) Fatal() bool {
	return c == ErrCategoryAuth || c == ErrCategoryConfig
}

// SyncError is one recorded failure from a sync run, attributed to the step
// and (when known) the item that produced it.
type SyncError struct {
	Category ErrorCategory `json:"category"`
	Step     string        `json:"step"`
	ItemID   string        `json:"itemId,omitempty"`
	Message  string        `json:"message"`

	err error
}

// NewSyncError wraps err with a category and the step it occurred in.
func NewSyncError(category ErrorCategory, step string, err error) SyncError {
	se := SyncError{Category: category, Step: step}
	if err != nil {
		se.Message = err.Error()
		se.err = err
	}
	return se
}

// WithItem attributes the error to a specific item id.
func (e SyncError) WithItem(id string) SyncError {
	e.ItemID = id
	return e
}

func (e SyncError) Error() string {
	if e.ItemID != "" {
		return fmt.Sprintf("%s error in %s (item %s): %s", e.Category, e.Step, e.ItemID, e.Message)
	}
	return fmt.Sprintf("%s error in %s: %s", e.Category, e.Step, e.Message)
}

func (e SyncError) Unwrap() error { return e.err }
