package scene

import (
	"slices"

	geo "github.com/kellydunn/golang-geo"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"go.reforestar.dev/planting/spatialmath"
)

const (
	// NoProject is the selected project of a session that has not picked one.
	NoProject = "none"
	// DefaultModelName is the tree model used until the user picks another.
	DefaultModelName = "quercus_suber"
)

var (
	// ErrEmptyStore is returned when removing from a store with no placed anchors.
	ErrEmptyStore = errors.New("no anchors placed")
	// ErrEmptyName is returned when appending an anchor without a model name.
	ErrEmptyName = errors.New("anchor name cannot be empty")
	// ErrAlreadyPending is returned when loading while a previous load has not been placed yet.
	ErrAlreadyPending = errors.New("previously loaded anchors are still waiting to be placed")
)

// Settings are the user-selected placement parameters of a session.
type Settings struct {
	ModelName         string
	NumberOfTrees     uint
	ScaleCompensation float64
}

// DefaultSettings returns the settings of a fresh session.
func DefaultSettings() Settings {
	return Settings{
		ModelName:         DefaultModelName,
		NumberOfTrees:     1,
		ScaleCompensation: 1,
	}
}

// Validate ensures the settings can drive a placement.
func (s Settings) Validate() error {
	if s.ModelName == "" {
		return ErrEmptyName
	}
	if !(s.ScaleCompensation > 0) {
		return errors.Errorf("scale compensation must be positive, got %v", s.ScaleCompensation)
	}
	return nil
}

// Store is the authoritative ledger of one session. It has no internal locking: it is owned by a
// single coordinator which serialises every access.
type Store struct {
	placed  []NamedAnchor
	pending []NamedAnchor

	selectedProject   string
	desiredLocation   *geo.Point
	userLocation      *geo.Point
	reforestationPlan bool

	settings Settings
}

// NewStore returns an empty session with no project selected.
func NewStore(settings Settings) (*Store, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return &Store{
		selectedProject: NoProject,
		settings:        settings,
	}, nil
}

// Append adds a placed anchor at the tail.
func (s *Store) Append(anchor NamedAnchor) error {
	if anchor.Name == "" {
		return ErrEmptyName
	}
	s.placed = append(s.placed, anchor)
	return nil
}

// RemoveLast removes and returns the most recently placed anchor.
func (s *Store) RemoveLast() (NamedAnchor, error) {
	if len(s.placed) == 0 {
		return NamedAnchor{}, ErrEmptyStore
	}
	last := s.placed[len(s.placed)-1]
	s.placed = slices.Delete(s.placed, len(s.placed)-1, len(s.placed))
	return last, nil
}

// ClearAll drops every placed anchor.
func (s *Store) ClearAll() error {
	if len(s.placed) == 0 {
		return ErrEmptyStore
	}
	s.placed = nil
	return nil
}

// Len returns the number of placed anchors.
func (s *Store) Len() int {
	return len(s.placed)
}

// Placed returns a copy of the placed anchors in placement order.
func (s *Store) Placed() []NamedAnchor {
	return slices.Clone(s.placed)
}

// Positions returns the poses of the placed anchors in placement order.
func (s *Store) Positions() []spatialmath.Pose {
	return lo.Map(s.placed, func(a NamedAnchor, _ int) spatialmath.Pose {
		return a.Pose
	})
}

// LoadPending queues anchors read from the remote store until the user picks a spot for them,
// and records where the project was planted. A load must be placed before another one starts.
func (s *Store) LoadPending(anchors []NamedAnchor, desired *geo.Point) error {
	if len(s.pending) > 0 {
		return ErrAlreadyPending
	}
	for _, a := range anchors {
		if a.Name == "" {
			return ErrEmptyName
		}
	}
	s.pending = slices.Clone(anchors)
	s.desiredLocation = desired
	return nil
}

// ConsumePending returns the pending anchors and empties the queue.
func (s *Store) ConsumePending() []NamedAnchor {
	out := s.pending
	s.pending = nil
	return out
}

// Pending returns a copy of the pending anchors.
func (s *Store) Pending() []NamedAnchor {
	return slices.Clone(s.pending)
}

// HasPending reports whether loaded anchors are waiting to be placed.
func (s *Store) HasPending() bool {
	return len(s.pending) > 0
}

// SetSelectedProject selects the project saves and loads go to. An empty name deselects.
func (s *Store) SetSelectedProject(name string) {
	if name == "" {
		name = NoProject
	}
	s.selectedProject = name
}

// SelectedProject returns the selected project, or NoProject.
func (s *Store) SelectedProject() string {
	return s.selectedProject
}

// HasProject reports whether a project is selected.
func (s *Store) HasProject() bool {
	return s.selectedProject != NoProject
}

// SetUserLocation records the current position of the user. nil means unknown.
func (s *Store) SetUserLocation(loc *geo.Point) {
	s.userLocation = loc
}

// UserLocation returns the last known position of the user, or nil.
func (s *Store) UserLocation() *geo.Point {
	return s.userLocation
}

// DesiredLocation returns where the loaded project was planted, or nil.
func (s *Store) DesiredLocation() *geo.Point {
	return s.desiredLocation
}

// SetReforestationPlan turns the proximity gate on pending placements on or off.
func (s *Store) SetReforestationPlan(enabled bool) {
	s.reforestationPlan = enabled
}

// ReforestationPlan reports whether the proximity gate is on.
func (s *Store) ReforestationPlan() bool {
	return s.reforestationPlan
}

// Settings returns the current placement settings.
func (s *Store) Settings() Settings {
	return s.settings
}

// SetSettings replaces the placement settings after validating them.
func (s *Store) SetSettings(settings Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	s.settings = settings
	return nil
}
