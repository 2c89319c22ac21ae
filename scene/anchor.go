// Package scene holds the per-session ledger of placed and pending tree anchors together with the
// session settings that drive placement.
package scene

import (
	"github.com/google/uuid"

	"go.reforestar.dev/planting/spatialmath"
)

// NamedAnchor is a tree instance: the model it renders as and where it stands.
type NamedAnchor struct {
	ID   uuid.UUID
	Name string
	Pose spatialmath.Pose
}

// NewNamedAnchor returns an anchor with a fresh identifier.
func NewNamedAnchor(name string, pose spatialmath.Pose) NamedAnchor {
	return NamedAnchor{ID: uuid.New(), Name: name, Pose: pose}
}
