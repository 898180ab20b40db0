package recordstore

import (
	"context"
	"errors"
)

// Collection names
const (
	CollectionUsers            = "users"
	CollectionTrackedCompanies = "tracked_companies"
	CollectionReviews          = "reviews"
	CollectionJobLogs          = "job_logs"
)

// ErrVersionConflict is returned by CompareAndReplace when the stored
// collection changed since it was loaded
var ErrVersionConflict = errors.New("collection version conflict")

// Document is one serialized collection and the version it was read at.
// A collection that was never written has nil Data and Version 0.
type Document struct {
	Data    []byte
	Version int64
}

// Store persists named collections as whole documents
type Store interface {
	// Load returns the current document. A missing collection is not an error.
	Load(ctx context.Context, name string) (Document, error)

	// Replace overwrites the whole collection, last write wins
	Replace(ctx context.Context, name string, data []byte) error

	// CompareAndReplace overwrites the collection only if it is still at version
	CompareAndReplace(ctx context.Context, name string, data []byte, version int64) error

	Close() error
}
