package store

import "errors"

var (
	// ErrItemNotFound is returned when no row matches the requested id.
	ErrItemNotFound = errors.New("clipboard item not found")
	// ErrDuplicateID is returned when an insert collides with an existing
	// id. Item ids are unique and never reused.
	ErrDuplicateID = errors.New("clipboard item id already exists")
	// ErrEmptyUpdate is returned when an Update carries no fields.
	ErrEmptyUpdate = errors.New("no fields to update")
)
