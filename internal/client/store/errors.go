package store

import "errors"

var (
	// ErrStorageUnavailable means the database could not be opened, migrated
	// or was upgraded by a newer build.
	ErrStorageUnavailable = errors.New("local storage unavailable")
	ErrWrite              = errors.New("local storage write failed")
	ErrRead               = errors.New("local storage read failed")
)
