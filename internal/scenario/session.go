package scenario

import (
	"context"

	"github.com/roach88/replcheck/internal/command"
	"github.com/roach88/replcheck/internal/replica"
)

// Session mutates and inspects the storage system on the engine's behalf.
// Every method addresses objects by logical path and locations by key.
type Session interface {
	// ScratchCollection is the collection scenario collections are made in.
	ScratchCollection() string

	// Resource resolves a location key to a resource name.
	Resource(key string) (string, error)

	// Options are the command options operations run with.
	Options() command.Options

	MakeCollection(ctx context.Context, path string) error

	// Put creates the object with its first replica at key.
	Put(ctx context.Context, path, key string) error

	// Replicate adds a replica at key.
	Replicate(ctx context.Context, path, key string) error

	// SetStatus forces the recorded status of the replica at key.
	SetStatus(ctx context.Context, path, key string, status replica.Status) error

	// Replicas lists the object's replicas. A missing object has none.
	Replicas(ctx context.Context, path string) ([]replica.Replica, error)

	Exists(ctx context.Context, path string) (bool, error)

	// Remove deletes path and everything under it.
	Remove(ctx context.Context, path string) error
}
