package command

import (
	"github.com/google/uuid"

	"go.reforestar.dev/planting/scene"
)

// Handle identifies something a Renderer materialized.
type Handle uuid.UUID

// Renderer draws anchors. Calls are made while the coordinator holds its lock, so implementations
// must not call back into the coordinator.
type Renderer interface {
	Materialize(anchor scene.NamedAnchor) Handle
	Dematerialize(h Handle)
	DematerializeAll()
}
