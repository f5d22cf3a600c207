// Package store provides the durable memory store interface and its SQLite
// implementation.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/rcliao/companion-brain/internal/model"
)

// ErrNotFound is returned when a session or record does not exist.
var ErrNotFound = errors.New("not found")

// ErrInvalidRecord is returned when a record violates a store invariant.
var ErrInvalidRecord = errors.New("invalid record")

// StorageError reports that the durable medium could not serve an operation.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

// ScanFilter narrows ScanByOwner.
type ScanFilter struct {
	// WithEmbedding restricts to records that carry a vector.
	WithEmbedding bool
	// Moods restricts to records whose mood tag is in the set.
	Moods []string
	// ByImportance orders by importance descending before recency.
	ByImportance bool
}

// Store defines the memory storage interface.
type Store interface {
	// StartSession creates the session if absent and returns its id. An
	// empty id generates a new one.
	StartSession(ctx context.Context, ownerID, sessionID string) (string, error)

	// Insert persists a record, assigning id and creation time when absent.
	Insert(ctx context.Context, rec model.MemoryRecord) (model.MemoryRecord, error)

	// ScanBySession returns the session's records, most recent first.
	ScanBySession(ctx context.Context, sessionID string, limit int) ([]model.MemoryRecord, error)

	// ScanByOwner returns the owner's records, most recent first unless
	// the filter orders by importance.
	ScanByOwner(ctx context.Context, ownerID string, limit int, f ScanFilter) ([]model.MemoryRecord, error)

	// UpdateSession mirrors live window counters into the sessions table.
	UpdateSession(ctx context.Context, s model.Session) error

	// GetSession returns the durable session row.
	GetSession(ctx context.Context, sessionID string) (*model.Session, error)

	// PurgeSession deletes every record of the session and returns how
	// many were removed.
	PurgeSession(ctx context.Context, sessionID string) (int, error)

	// Stats summarizes an owner's memories.
	Stats(ctx context.Context, ownerID string) (*Stats, error)

	// Close closes the store.
	Close() error
}
