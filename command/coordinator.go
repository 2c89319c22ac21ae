// Package command turns user intents into session changes and reports each outcome as an event.
//
// Undo, clear and taps complete before their method returns. Saves and loads check their
// preconditions synchronously and then finish in the background, so their events may arrive after
// the call has returned.
package command

import (
	"context"
	"fmt"
	"sync"

	"github.com/golang/geo/r3"
	geo "github.com/kellydunn/golang-geo"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"go.reforestar.dev/planting/logging"
	"go.reforestar.dev/planting/persistence"
	"go.reforestar.dev/planting/placement"
	"go.reforestar.dev/planting/scene"
	"go.reforestar.dev/planting/spatialmath"
	"go.reforestar.dev/planting/utils"
)

// Command is one of the button intents.
type Command int

// The button intents.
const (
	CommandUndoLast Command = iota
	CommandClearAll
	CommandSaveProgress
	CommandLoadProgress
)

func (c Command) String() string {
	switch c {
	case CommandUndoLast:
		return "undo"
	case CommandClearAll:
		return "clear"
	case CommandSaveProgress:
		return "save"
	case CommandLoadProgress:
		return "load"
	default:
		return fmt.Sprintf("Command(%d)", int(c))
	}
}

// Coordinator owns a session. Every access to the store and the list of rendered handles happens
// under mu; events are published after it is released.
type Coordinator struct {
	mu       sync.Mutex
	store    *scene.Store
	engine   *placement.Engine
	renderer Renderer
	handles  []Handle

	// persistMu runs saves and loads one at a time, so a save counts every tree an earlier save
	// wrote.
	persistMu sync.Mutex
	gateway   persistence.Gateway
	workers   *utils.StoppableWorkers
	bus       *Bus
	opts      options
	logger    logging.Logger
}

// NewCoordinator returns a coordinator driving store. The caller keeps ownership of gateway and
// closes it after Close.
func NewCoordinator(
	store *scene.Store,
	engine *placement.Engine,
	gateway persistence.Gateway,
	renderer Renderer,
	logger logging.Logger,
	opts ...Option,
) (*Coordinator, error) {
	if store == nil || engine == nil || gateway == nil || renderer == nil {
		return nil, errors.New("coordinator requires a store, an engine, a gateway and a renderer")
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.timeout <= 0 {
		return nil, errors.Errorf("timeout must be positive, got %s", o.timeout)
	}
	if o.proximityThreshold < 0 {
		return nil, errors.Errorf("proximity threshold cannot be negative, got %v", o.proximityThreshold)
	}
	if o.distance == nil {
		return nil, errors.New("distance function cannot be nil")
	}
	if o.bus == nil {
		o.bus = NewBus()
	}
	return &Coordinator{
		store:    store,
		engine:   engine,
		renderer: renderer,
		gateway:  gateway,
		workers:  utils.NewStoppableWorkers(context.Background()),
		bus:      o.bus,
		opts:     o,
		logger:   logger,
	}, nil
}

// Subscribe registers fn for every event of this session.
func (c *Coordinator) Subscribe(fn func(Event)) (unsubscribe func()) {
	return c.bus.Subscribe(fn)
}

// Execute runs a button intent.
func (c *Coordinator) Execute(cmd Command) error {
	switch cmd {
	case CommandUndoLast:
		c.UndoLast()
	case CommandClearAll:
		c.ClearAll()
	case CommandSaveProgress:
		c.SaveProgress()
	case CommandLoadProgress:
		c.LoadProgress()
	default:
		return errors.Errorf("unknown command %v", cmd)
	}
	return nil
}

// Session is what Update exposes of the session: selections, settings and read-only views of the
// anchors. Anchors only change through the commands, which keep the rendered handles in step.
type Session interface {
	Placed() []scene.NamedAnchor
	Pending() []scene.NamedAnchor
	Settings() scene.Settings
	SetSettings(settings scene.Settings) error
	SelectedProject() string
	SetSelectedProject(name string)
	UserLocation() *geo.Point
	SetUserLocation(loc *geo.Point)
	DesiredLocation() *geo.Point
	ReforestationPlan() bool
	SetReforestationPlan(enabled bool)
}

type sessionView struct {
	Session
}

// Update runs fn with exclusive access to the session.
func (c *Coordinator) Update(fn func(session Session) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return fn(sessionView{c.store})
}

// UndoLast removes the most recently placed anchor.
func (c *Coordinator) UndoLast() {
	c.mu.Lock()
	ev := c.undoLastLocked()
	c.mu.Unlock()
	c.bus.Publish(ev)
}

func (c *Coordinator) undoLastLocked() Event {
	removed, err := c.store.RemoveLast()
	if err != nil {
		return Event{Type: NothingToRemove, Err: err}
	}
	if n := len(c.handles); n > 0 {
		c.renderer.Dematerialize(c.handles[n-1])
		c.handles = c.handles[:n-1]
	}
	c.logger.Debugw("removed anchor", "name", removed.Name, "id", removed.ID)
	return Event{Type: LastAnchorRemoved, Count: c.store.Len()}
}

// ClearAll removes every placed anchor.
func (c *Coordinator) ClearAll() {
	c.mu.Lock()
	ev := c.clearAllLocked()
	c.mu.Unlock()
	c.bus.Publish(ev)
}

func (c *Coordinator) clearAllLocked() Event {
	if err := c.store.ClearAll(); err != nil {
		return Event{Type: NothingToClear, Err: err}
	}
	c.renderer.DematerializeAll()
	c.handles = nil
	return Event{Type: AllAnchorsCleared}
}

// SaveProgress appends every placed anchor to the selected project, after the trees already
// stored there, and records the user location when known.
func (c *Coordinator) SaveProgress() {
	c.mu.Lock()
	project := c.store.SelectedProject()
	if !c.store.HasProject() {
		c.mu.Unlock()
		c.bus.Publish(Event{Type: SaveFailedNoProject, Code: CodeSaveNoProject, Err: ErrNoProjectSelected})
		return
	}
	if c.store.Len() == 0 {
		c.mu.Unlock()
		c.bus.Publish(Event{Type: SaveFailedNoAnchors, Code: CodeSaveNoAnchors, Err: ErrNoAnchorsToSave})
		return
	}
	records := lo.Map(c.store.Placed(), func(a scene.NamedAnchor, _ int) persistence.TreeRecord {
		return persistence.EncodeAnchor(a)
	})
	user := c.store.UserLocation()
	c.mu.Unlock()

	if !c.workers.AddWorkers(func(ctx context.Context) { c.save(ctx, project, records, user) }) {
		c.bus.Publish(Event{Type: SaveFailed, Code: CodeSaveRemoteFailure, Err: ErrClosed})
	}
}

func (c *Coordinator) save(ctx context.Context, project string, records []persistence.TreeRecord, user *geo.Point) {
	c.persistMu.Lock()
	defer c.persistMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, c.opts.timeout)
	defer cancel()

	if err := c.writeProject(ctx, project, records, user); err != nil {
		err = asRemoteError("save", err)
		c.logger.Warnw("save failed", "project", project, "error", err)
		c.bus.Publish(Event{Type: SaveFailed, Code: CodeSaveRemoteFailure, Err: err})
		return
	}
	c.logger.Infow("saved project", "project", project, "trees", len(records))
	c.bus.Publish(Event{Type: SaveSucceeded, Code: CodeSaveSucceeded, Count: len(records)})
}

func (c *Coordinator) writeProject(ctx context.Context, project string, records []persistence.TreeRecord, user *geo.Point) error {
	count, err := c.gateway.TreeCount(ctx, project)
	if err != nil {
		return err
	}
	for i, rec := range records {
		if err := c.gateway.WriteTree(ctx, project, count+i, rec); err != nil {
			return errors.Wrapf(err, "tree %d", count+i)
		}
	}
	if user == nil {
		return nil
	}
	return c.gateway.WriteLocation(ctx, project, persistence.Location{Longitude: user.Lng(), Latitude: user.Lat()})
}

// LoadProgress reads the selected project and queues its trees until the next tap places them.
func (c *Coordinator) LoadProgress() {
	c.mu.Lock()
	project := c.store.SelectedProject()
	hasProject, hasPending := c.store.HasProject(), c.store.HasPending()
	c.mu.Unlock()

	switch {
	case !hasProject:
		c.bus.Publish(Event{Type: LoadFailed, Err: ErrNoProjectSelected})
	case hasPending:
		c.bus.Publish(Event{Type: LoadFailed, Err: scene.ErrAlreadyPending})
	case !c.workers.AddWorkers(func(ctx context.Context) { c.load(ctx, project) }):
		c.bus.Publish(Event{Type: LoadFailed, Err: ErrClosed})
	}
}

func (c *Coordinator) load(ctx context.Context, project string) {
	c.persistMu.Lock()
	defer c.persistMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, c.opts.timeout)
	defer cancel()

	var (
		records []persistence.TreeRecord
		loc     *persistence.Location
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		records, err = c.gateway.ReadTrees(gctx, project)
		return err
	})
	g.Go(func() error {
		var err error
		loc, err = c.gateway.ReadLocation(gctx, project)
		return err
	})
	if err := g.Wait(); err != nil {
		err = asRemoteError("load", err)
		c.logger.Warnw("load failed", "project", project, "error", err)
		c.bus.Publish(Event{Type: LoadFailed, Err: err})
		return
	}

	anchors, malformed := persistence.DecodeRecords(records)
	for _, err := range malformed {
		c.logger.Warnw("skipping malformed tree record", "project", project, "error", err)
	}
	if len(anchors) == 0 {
		c.logger.Infow("nothing to load", "project", project, "records", len(records))
		c.bus.Publish(Event{Type: NothingToLoad})
		return
	}

	var desired *geo.Point
	if loc != nil {
		desired = geo.NewPoint(loc.Latitude, loc.Longitude)
	}

	c.mu.Lock()
	err := c.store.LoadPending(anchors, desired)
	c.mu.Unlock()
	if err != nil {
		c.bus.Publish(Event{Type: LoadFailed, Err: err})
		return
	}
	c.logger.Infow("loaded project", "project", project, "trees", len(anchors), "skipped", len(malformed))
	c.bus.Publish(Event{Type: LoadPrepared, Location: desired, Count: len(anchors)})
}

// Tap places trees at hit, the tap projected onto a detected surface. A nil hit means the tap
// missed every surface. Loaded trees waiting to be placed take precedence over a new layout.
func (c *Coordinator) Tap(hit *spatialmath.Pose) {
	c.mu.Lock()
	ev := c.tapLocked(hit)
	c.mu.Unlock()
	c.bus.Publish(ev)
}

func (c *Coordinator) tapLocked(hit *spatialmath.Pose) Event {
	if hit == nil {
		return Event{Type: PlacementFailedNoSurface, Code: CodePlacementNoSurface, Err: ErrNoSurfaceDetected}
	}
	if c.store.HasPending() {
		return c.placePendingLocked(*hit)
	}
	return c.placeLayoutLocked(*hit)
}

func (c *Coordinator) placePendingLocked(hit spatialmath.Pose) Event {
	if c.store.ReforestationPlan() {
		user, desired := c.store.UserLocation(), c.store.DesiredLocation()
		if user == nil || desired == nil {
			return Event{Type: LocationUnavailable, Location: desired, Err: ErrLocationUnavailable}
		}
		if d := c.opts.distance(user, desired); d > c.opts.proximityThreshold {
			c.logger.Debugw("too far from project", "distance", d, "threshold", c.opts.proximityThreshold)
			return Event{Type: TooFarFromTarget, Distance: d, Location: desired}
		}
	}

	// Only height and depth follow the tap, keeping the loaded layout's spread.
	tap := hit.Translation()
	offset := r3.Vector{Y: tap.Y, Z: tap.Z}
	for _, anchor := range c.store.ConsumePending() {
		anchor.Pose = anchor.Pose.WithTranslation(anchor.Pose.Translation().Add(offset))
		c.placeLocked(anchor)
	}
	return Event{Type: PendingPlaced, Count: c.store.Len()}
}

func (c *Coordinator) placeLayoutLocked(hit spatialmath.Pose) Event {
	settings := c.store.Settings()
	poses, err := c.engine.ComputeLayout(placement.Request{
		Origin:      hit,
		Count:       settings.NumberOfTrees,
		KnownPoses:  c.store.Positions(),
		ScaleFactor: settings.ScaleCompensation,
	})
	if err != nil {
		return Event{
			Type: PlacementFailedNoSurface,
			Code: CodePlacementNoSurface,
			Err:  errors.Wrap(ErrNoSurfaceDetected, err.Error()),
		}
	}
	if len(poses) == 0 {
		return Event{
			Type:  PlacementFailedNoSpace,
			Code:  CodePlacementNoSpace,
			Count: c.store.Len(),
			Err:   placement.ErrNoSpaceAvailable,
		}
	}
	for _, pose := range poses {
		c.placeLocked(scene.NewNamedAnchor(settings.ModelName, pose))
	}
	return Event{Type: PlacementSucceeded, Code: CodePlacementSucceeded, Count: c.store.Len()}
}

func (c *Coordinator) placeLocked(anchor scene.NamedAnchor) {
	if err := c.store.Append(anchor); err != nil {
		c.logger.Errorw("cannot place anchor", "id", anchor.ID, "error", err)
		return
	}
	c.handles = append(c.handles, c.renderer.Materialize(anchor))
}

// Wait blocks until every save and load started so far has published its event.
func (c *Coordinator) Wait() {
	c.workers.Wait()
}

// Close cancels in-flight saves and loads and waits for them. Later saves and loads fail with
// ErrClosed; local commands keep working.
func (c *Coordinator) Close() {
	c.workers.Stop()
}

func asRemoteError(op string, err error) error {
	if errors.Is(err, persistence.ErrRemoteUnavailable) {
		return err
	}
	return persistence.NewRemoteError(op, err)
}
