// Package persistence defines the contract between a planting session and the store its projects
// are saved to, and the record format trees are written in.
package persistence

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

// ErrRemoteUnavailable is matched by every error a gateway returns for a failed round trip.
var ErrRemoteUnavailable = errors.New("remote store unavailable")

// TreeRecord is one stored tree. Each pose field holds one column of the pose as "x;y;z;w", in the
// order basis X, basis Y, basis Z, translation.
type TreeRecord struct {
	Name   string `json:"name" bson:"name"`
	First  string `json:"first" bson:"first"`
	Second string `json:"second" bson:"second"`
	Third  string `json:"third" bson:"third"`
	Forth  string `json:"forth" bson:"forth"`
}

// Location is where a project was planted.
type Location struct {
	Longitude float64 `json:"longitude" bson:"longitude"`
	Latitude  float64 `json:"latitude" bson:"latitude"`
}

// Gateway reads and writes projects. Trees of a project are addressed by a dense index starting at
// zero; TreeCount is the next free index.
type Gateway interface {
	TreeCount(ctx context.Context, project string) (int, error)
	WriteTree(ctx context.Context, project string, index int, record TreeRecord) error
	WriteLocation(ctx context.Context, project string, loc Location) error
	// ReadTrees returns the trees of a project in index order. An unknown project has no trees.
	ReadTrees(ctx context.Context, project string) ([]TreeRecord, error)
	// ReadLocation returns nil when the project has no recorded location.
	ReadLocation(ctx context.Context, project string) (*Location, error)
	Close(ctx context.Context) error
}

// RemoteError is a failed gateway operation.
type RemoteError struct {
	Op  string
	Err error
}

// NewRemoteError wraps err as a failure of op. A nil err stays nil.
func NewRemoteError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &RemoteError{Op: op, Err: err}
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrRemoteUnavailable, e.Op, e.Err)
}

// Unwrap exposes both ErrRemoteUnavailable and the underlying cause to errors.Is.
func (e *RemoteError) Unwrap() []error {
	return []error{ErrRemoteUnavailable, e.Err}
}
