package storage

import "errors"

// ErrTradeNotFound is returned when no active trade exists for an ID.
var ErrTradeNotFound = errors.New("active trade not found")

// ErrSnapshotNotFound is returned when no price snapshot matches a lookup.
var ErrSnapshotNotFound = errors.New("price snapshot not found")
