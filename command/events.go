package command

import (
	"fmt"

	geo "github.com/kellydunn/golang-geo"
	"github.com/pkg/errors"
)

// EventType names the outcome a command ended with.
type EventType int

// Every command ends with exactly one of these.
const (
	LastAnchorRemoved EventType = iota
	NothingToRemove
	AllAnchorsCleared
	NothingToClear
	SaveSucceeded
	SaveFailedNoAnchors
	SaveFailedNoProject
	SaveFailed
	LoadPrepared
	LoadFailed
	NothingToLoad
	PlacementSucceeded
	PlacementFailedNoSpace
	PlacementFailedNoSurface
	TooFarFromTarget
	LocationUnavailable
	PendingPlaced
)

// Status codes carried by save and placement events.
const (
	CodeSaveSucceeded     = 1
	CodeSaveNoAnchors     = 2
	CodeSaveNoProject     = 3
	CodeSaveRemoteFailure = 4

	CodePlacementSucceeded = 1
	CodePlacementNoSpace   = 2
	CodePlacementNoSurface = 3
)

var (
	// ErrNoProjectSelected is the cause of a save or load attempted before picking a project.
	ErrNoProjectSelected = errors.New("no project selected")
	// ErrNoAnchorsToSave is the cause of a save with nothing placed.
	ErrNoAnchorsToSave = errors.New("no anchors to save")
	// ErrNoSurfaceDetected is the cause of a tap that did not hit a surface.
	ErrNoSurfaceDetected = errors.New("no surface detected")
	// ErrLocationUnavailable is the cause of a gated placement when either location is unknown.
	ErrLocationUnavailable = errors.New("user or project location unavailable")
	// ErrClosed is the cause of a save or load requested after Close.
	ErrClosed = errors.New("coordinator is closed")
)

func (t EventType) String() string {
	switch t {
	case LastAnchorRemoved:
		return "LastAnchorRemoved"
	case NothingToRemove:
		return "NothingToRemove"
	case AllAnchorsCleared:
		return "AllAnchorsCleared"
	case NothingToClear:
		return "NothingToClear"
	case SaveSucceeded:
		return "SaveSucceeded"
	case SaveFailedNoAnchors:
		return "SaveFailedNoAnchors"
	case SaveFailedNoProject:
		return "SaveFailedNoProject"
	case SaveFailed:
		return "SaveFailed"
	case LoadPrepared:
		return "LoadPrepared"
	case LoadFailed:
		return "LoadFailed"
	case NothingToLoad:
		return "NothingToLoad"
	case PlacementSucceeded:
		return "PlacementSucceeded"
	case PlacementFailedNoSpace:
		return "PlacementFailedNoSpace"
	case PlacementFailedNoSurface:
		return "PlacementFailedNoSurface"
	case TooFarFromTarget:
		return "TooFarFromTarget"
	case LocationUnavailable:
		return "LocationUnavailable"
	case PendingPlaced:
		return "PendingPlaced"
	default:
		return fmt.Sprintf("EventType(%d)", int(t))
	}
}

// Failed reports whether the event ends a command that did not do what was asked.
func (t EventType) Failed() bool {
	switch t {
	case LastAnchorRemoved, AllAnchorsCleared, SaveSucceeded, LoadPrepared, PlacementSucceeded, PendingPlaced:
		return false
	default:
		return true
	}
}

// Event is published once per command.
type Event struct {
	Type EventType
	// Code is set on save and placement events, zero otherwise.
	Code int
	// Distance is the distance in meters between the user and the project, on TooFarFromTarget.
	Distance float64
	// Location is the project location on LoadPrepared and TooFarFromTarget. It may be nil when the
	// project has no recorded location.
	Location *geo.Point
	// Count is the number of placed anchors after a placement, undo or clear, the number of records
	// written by a save, or the number of anchors queued by a load.
	Count int
	// Err is the cause of a failure event.
	Err error
}

func (e Event) String() string {
	s := e.Type.String()
	if e.Code != 0 {
		s += fmt.Sprintf(" code=%d", e.Code)
	}
	switch e.Type {
	case TooFarFromTarget:
		s += fmt.Sprintf(" distance=%.1fm", e.Distance)
	case LoadPrepared:
		if e.Location != nil {
			s += fmt.Sprintf(" location=(%.6f, %.6f)", e.Location.Lat(), e.Location.Lng())
		}
	}
	if e.Count != 0 {
		s += fmt.Sprintf(" count=%d", e.Count)
	}
	if e.Err != nil {
		s += fmt.Sprintf(" error=%q", e.Err.Error())
	}
	return s
}
