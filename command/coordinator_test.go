package command

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/golang/geo/r3"
	"github.com/google/uuid"
	geo "github.com/kellydunn/golang-geo"
	"github.com/pkg/errors"
	"go.uber.org/zap/zaptest/observer"
	"go.viam.com/test"

	"go.reforestar.dev/planting/logging"
	"go.reforestar.dev/planting/persistence"
	"go.reforestar.dev/planting/persistence/memory"
	"go.reforestar.dev/planting/placement"
	"go.reforestar.dev/planting/scene"
	"go.reforestar.dev/planting/spatialmath"
)

type fakeRenderer struct {
	mu     sync.Mutex
	live   map[Handle]scene.NamedAnchor
	drawn  int
	clears int
}

func newFakeRenderer() *fakeRenderer {
	return &fakeRenderer{live: map[Handle]scene.NamedAnchor{}}
}

func (r *fakeRenderer) Materialize(anchor scene.NamedAnchor) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	h := Handle(uuid.New())
	r.live[h] = anchor
	r.drawn++
	return h
}

func (r *fakeRenderer) Dematerialize(h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.live, h)
}

func (r *fakeRenderer) DematerializeAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.live = map[Handle]scene.NamedAnchor{}
	r.clears++
}

func (r *fakeRenderer) liveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.live)
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) record(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *recorder) last(t *testing.T) Event {
	t.Helper()
	events := r.all()
	test.That(t, events, test.ShouldNotBeEmpty)
	return events[len(events)-1]
}

type harness struct {
	coord    *Coordinator
	gateway  *memory.Gateway
	renderer *fakeRenderer
	events   *recorder
	logs     *observer.ObservedLogs
}

func newHarness(t *testing.T, engineCfg placement.Config, opts ...Option) *harness {
	t.Helper()
	logger, logs := logging.NewObservedTestLogger(t)

	store, err := scene.NewStore(scene.DefaultSettings())
	test.That(t, err, test.ShouldBeNil)
	engine, err := placement.NewEngine(engineCfg, rand.New(rand.NewSource(7)), logger)
	test.That(t, err, test.ShouldBeNil)

	h := &harness{
		gateway:  memory.NewGateway(logger),
		renderer: newFakeRenderer(),
		events:   &recorder{},
		logs:     logs,
	}
	h.coord, err = NewCoordinator(store, engine, h.gateway, h.renderer, logger, opts...)
	test.That(t, err, test.ShouldBeNil)
	h.coord.Subscribe(h.events.record)
	t.Cleanup(h.coord.Close)
	return h
}

func (h *harness) update(t *testing.T, fn func(session Session) error) {
	t.Helper()
	test.That(t, h.coord.Update(fn), test.ShouldBeNil)
}

func (h *harness) placed(t *testing.T) []scene.NamedAnchor {
	t.Helper()
	var placed []scene.NamedAnchor
	h.update(t, func(session Session) error {
		placed = session.Placed()
		return nil
	})
	return placed
}

func (h *harness) pending(t *testing.T) []scene.NamedAnchor {
	t.Helper()
	var pending []scene.NamedAnchor
	h.update(t, func(session Session) error {
		pending = session.Pending()
		return nil
	})
	return pending
}

func surfaceAt(x, y, z float64) *spatialmath.Pose {
	p := spatialmath.NewPoseFromTranslation(r3.Vector{X: x, Y: y, Z: z})
	return &p
}

func TestTapPlacesLayout(t *testing.T) {
	h := newHarness(t, placement.DefaultConfig())
	h.update(t, func(session Session) error {
		return session.SetSettings(scene.Settings{ModelName: "pinus_pinea", NumberOfTrees: 5, ScaleCompensation: 1})
	})

	h.coord.Tap(surfaceAt(0, -1.2, -2))
	ev := h.events.last(t)
	test.That(t, ev.Type, test.ShouldEqual, PlacementSucceeded)
	test.That(t, ev.Code, test.ShouldEqual, CodePlacementSucceeded)
	test.That(t, ev.Count, test.ShouldEqual, 5)

	placed := h.placed(t)
	test.That(t, placed, test.ShouldHaveLength, 5)
	for _, a := range placed {
		test.That(t, a.Name, test.ShouldEqual, "pinus_pinea")
		test.That(t, a.Pose.Translation().Y, test.ShouldAlmostEqual, -1.2)
	}
	test.That(t, h.renderer.liveCount(), test.ShouldEqual, 5)

	// A second tap nearby keeps clear of the first batch.
	h.coord.Tap(surfaceAt(0.2, -1.2, -2))
	test.That(t, h.events.last(t).Type, test.ShouldEqual, PlacementSucceeded)
	placed = h.placed(t)
	test.That(t, placed, test.ShouldHaveLength, 10)
	clearance := placement.DefaultConfig().ClearanceRadius
	for i := range placed {
		for j := i + 1; j < len(placed); j++ {
			d := spatialmath.PlanarDistance(placed[i].Pose.Translation(), placed[j].Pose.Translation(), r3.Vector{Y: 1})
			test.That(t, d, test.ShouldBeGreaterThanOrEqualTo, clearance-1e-9)
		}
	}
}

func TestTapWithoutSurface(t *testing.T) {
	h := newHarness(t, placement.DefaultConfig())
	h.coord.Tap(nil)
	ev := h.events.last(t)
	test.That(t, ev.Type, test.ShouldEqual, PlacementFailedNoSurface)
	test.That(t, ev.Code, test.ShouldEqual, CodePlacementNoSurface)
	test.That(t, errors.Is(ev.Err, ErrNoSurfaceDetected), test.ShouldBeTrue)
	test.That(t, h.placed(t), test.ShouldBeEmpty)
	test.That(t, h.renderer.drawn, test.ShouldEqual, 0)
}

func TestTapWithoutSpace(t *testing.T) {
	cfg := placement.DefaultConfig()
	cfg.MaxAttempts = 1
	h := newHarness(t, cfg)
	h.coord.Tap(surfaceAt(0, 0, 0))
	test.That(t, h.events.last(t).Type, test.ShouldEqual, PlacementSucceeded)

	// The nearest site is now taken and one attempt is all a slot gets.
	h.coord.Tap(surfaceAt(0, 0, 0))
	ev := h.events.last(t)
	test.That(t, ev.Type, test.ShouldEqual, PlacementFailedNoSpace)
	test.That(t, ev.Code, test.ShouldEqual, CodePlacementNoSpace)
	test.That(t, errors.Is(ev.Err, placement.ErrNoSpaceAvailable), test.ShouldBeTrue)
	test.That(t, h.placed(t), test.ShouldHaveLength, 1)
}

func TestUndoAndClear(t *testing.T) {
	h := newHarness(t, placement.DefaultConfig())

	h.coord.UndoLast()
	ev := h.events.last(t)
	test.That(t, ev.Type, test.ShouldEqual, NothingToRemove)
	test.That(t, errors.Is(ev.Err, scene.ErrEmptyStore), test.ShouldBeTrue)

	h.coord.ClearAll()
	test.That(t, h.events.last(t).Type, test.ShouldEqual, NothingToClear)

	h.update(t, func(session Session) error {
		return session.SetSettings(scene.Settings{ModelName: "quercus_suber", NumberOfTrees: 3, ScaleCompensation: 0.5})
	})
	h.coord.Tap(surfaceAt(0, 0, -1))
	test.That(t, h.renderer.liveCount(), test.ShouldEqual, 3)
	lastPlaced := h.placed(t)[2]

	h.coord.UndoLast()
	ev = h.events.last(t)
	test.That(t, ev.Type, test.ShouldEqual, LastAnchorRemoved)
	test.That(t, ev.Count, test.ShouldEqual, 2)
	test.That(t, h.renderer.liveCount(), test.ShouldEqual, 2)
	for _, a := range h.renderer.live {
		test.That(t, a.ID, test.ShouldNotEqual, lastPlaced.ID)
	}

	h.coord.ClearAll()
	test.That(t, h.events.last(t).Type, test.ShouldEqual, AllAnchorsCleared)
	test.That(t, h.renderer.liveCount(), test.ShouldEqual, 0)
	test.That(t, h.renderer.clears, test.ShouldEqual, 1)

	h.coord.UndoLast()
	test.That(t, h.events.last(t).Type, test.ShouldEqual, NothingToRemove)
}

func TestSaveWithoutProject(t *testing.T) {
	h := newHarness(t, placement.DefaultConfig())
	var calls []string
	h.gateway.SetHook(func(_ context.Context, op string) error {
		calls = append(calls, op)
		return nil
	})
	h.coord.Tap(surfaceAt(0, 0, -1))

	h.coord.SaveProgress()
	h.coord.Wait()
	ev := h.events.last(t)
	test.That(t, ev.Type, test.ShouldEqual, SaveFailedNoProject)
	test.That(t, ev.Code, test.ShouldEqual, CodeSaveNoProject)
	test.That(t, calls, test.ShouldBeEmpty)
}

func TestSaveWithoutAnchors(t *testing.T) {
	h := newHarness(t, placement.DefaultConfig())
	h.update(t, func(session Session) error {
		session.SetSelectedProject("leiria")
		return nil
	})
	h.coord.SaveProgress()
	h.coord.Wait()
	ev := h.events.last(t)
	test.That(t, ev.Type, test.ShouldEqual, SaveFailedNoAnchors)
	test.That(t, ev.Code, test.ShouldEqual, CodeSaveNoAnchors)
}

func TestSaveAppendsAfterStoredTrees(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, placement.DefaultConfig())
	existing := persistence.EncodeAnchor(scene.NewNamedAnchor("pinus_pinea", spatialmath.NewZeroPose()))
	test.That(t, h.gateway.WriteTree(ctx, "leiria", 0, existing), test.ShouldBeNil)
	test.That(t, h.gateway.WriteTree(ctx, "leiria", 1, existing), test.ShouldBeNil)

	user := geo.NewPoint(39.7436, -8.8071)
	h.update(t, func(session Session) error {
		session.SetSelectedProject("leiria")
		session.SetUserLocation(user)
		return session.SetSettings(scene.Settings{ModelName: "quercus_suber", NumberOfTrees: 3, ScaleCompensation: 1})
	})
	h.coord.Tap(surfaceAt(0, 0, -1))
	placed := h.placed(t)

	h.coord.SaveProgress()
	h.coord.Wait()
	ev := h.events.last(t)
	test.That(t, ev.Type, test.ShouldEqual, SaveSucceeded)
	test.That(t, ev.Code, test.ShouldEqual, CodeSaveSucceeded)
	test.That(t, ev.Count, test.ShouldEqual, 3)

	recs, err := h.gateway.ReadTrees(ctx, "leiria")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, recs, test.ShouldHaveLength, 5)
	for i, a := range placed {
		test.That(t, recs[2+i], test.ShouldResemble, persistence.EncodeAnchor(a))
	}

	loc, err := h.gateway.ReadLocation(ctx, "leiria")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, loc.Latitude, test.ShouldEqual, user.Lat())
	test.That(t, loc.Longitude, test.ShouldEqual, user.Lng())

	// Saving leaves the session as it was.
	test.That(t, h.placed(t), test.ShouldResemble, placed)
}

func TestSaveRemoteFailure(t *testing.T) {
	h := newHarness(t, placement.DefaultConfig())
	h.update(t, func(session Session) error {
		session.SetSelectedProject("leiria")
		return nil
	})
	h.coord.Tap(surfaceAt(0, 0, -1))
	before := h.placed(t)

	h.gateway.SetHook(func(_ context.Context, op string) error {
		if op == memory.OpWriteTree {
			return errors.New("quota exceeded")
		}
		return nil
	})
	h.coord.SaveProgress()
	h.coord.Wait()
	ev := h.events.last(t)
	test.That(t, ev.Type, test.ShouldEqual, SaveFailed)
	test.That(t, ev.Code, test.ShouldEqual, CodeSaveRemoteFailure)
	test.That(t, errors.Is(ev.Err, persistence.ErrRemoteUnavailable), test.ShouldBeTrue)
	test.That(t, h.placed(t), test.ShouldResemble, before)
	test.That(t, h.logs.FilterMessage("save failed").Len(), test.ShouldEqual, 1)
}

func TestSaveTimesOut(t *testing.T) {
	h := newHarness(t, placement.DefaultConfig(), WithTimeout(20*time.Millisecond))
	h.update(t, func(session Session) error {
		session.SetSelectedProject("leiria")
		return nil
	})
	h.coord.Tap(surfaceAt(0, 0, -1))

	h.gateway.SetHook(func(ctx context.Context, _ string) error {
		<-ctx.Done()
		return ctx.Err()
	})
	h.coord.SaveProgress()
	h.coord.Wait()
	ev := h.events.last(t)
	test.That(t, ev.Type, test.ShouldEqual, SaveFailed)
	test.That(t, errors.Is(ev.Err, persistence.ErrRemoteUnavailable), test.ShouldBeTrue)
	test.That(t, errors.Is(ev.Err, context.DeadlineExceeded), test.ShouldBeTrue)
}

func TestBackToBackSavesAppend(t *testing.T) {
	h := newHarness(t, placement.DefaultConfig())
	h.update(t, func(session Session) error {
		session.SetSelectedProject("leiria")
		return nil
	})
	h.coord.Tap(surfaceAt(0, 0, -1))

	// Both saves would read the same count if their round trips overlapped.
	h.gateway.SetHook(func(ctx context.Context, op string) error {
		if op == memory.OpTreeCount {
			time.Sleep(50 * time.Millisecond)
		}
		return nil
	})
	h.coord.SaveProgress()
	h.coord.SaveProgress()
	h.coord.Wait()

	events := h.events.all()
	test.That(t, events[len(events)-2].Type, test.ShouldEqual, SaveSucceeded)
	test.That(t, events[len(events)-1].Type, test.ShouldEqual, SaveSucceeded)
	recs, err := h.gateway.ReadTrees(context.Background(), "leiria")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, recs, test.ShouldHaveLength, 2)
	test.That(t, recs[0], test.ShouldResemble, recs[1])
}

func TestUpdateHidesStore(t *testing.T) {
	h := newHarness(t, placement.DefaultConfig())
	h.update(t, func(session Session) error {
		_, isStore := session.(*scene.Store)
		test.That(t, isStore, test.ShouldBeFalse)
		return nil
	})
	test.That(t, h.coord.Update(func(Session) error { return errors.New("rejected") }).Error(),
		test.ShouldEqual, "rejected")
}

func seedProject(t *testing.T, gw *memory.Gateway, project string, loc *persistence.Location, recs ...persistence.TreeRecord) {
	t.Helper()
	ctx := context.Background()
	for i, rec := range recs {
		test.That(t, gw.WriteTree(ctx, project, i, rec), test.ShouldBeNil)
	}
	if loc != nil {
		test.That(t, gw.WriteLocation(ctx, project, *loc), test.ShouldBeNil)
	}
}

func treeRecord(name string, x, y, z float64) persistence.TreeRecord {
	return persistence.EncodeAnchor(scene.NewNamedAnchor(name, *surfaceAt(x, y, z)))
}

func TestLoadWithoutProject(t *testing.T) {
	h := newHarness(t, placement.DefaultConfig())
	h.coord.LoadProgress()
	h.coord.Wait()
	ev := h.events.last(t)
	test.That(t, ev.Type, test.ShouldEqual, LoadFailed)
	test.That(t, errors.Is(ev.Err, ErrNoProjectSelected), test.ShouldBeTrue)
}

func TestLoadSkipsMalformedRecords(t *testing.T) {
	h := newHarness(t, placement.DefaultConfig())
	malformed := treeRecord("quercus_suber", 9, 9, 9)
	malformed.Second = "0;1;0"
	seedProject(t, h.gateway, "leiria", &persistence.Location{Longitude: -8.8056, Latitude: 39.7395},
		treeRecord("quercus_suber", 1, 0, -2),
		malformed,
		treeRecord("pinus_pinea", -1, 0, -2),
	)
	h.update(t, func(session Session) error {
		session.SetSelectedProject("leiria")
		return nil
	})

	h.coord.Execute(CommandLoadProgress)
	h.coord.Wait()
	ev := h.events.last(t)
	test.That(t, ev.Type, test.ShouldEqual, LoadPrepared)
	test.That(t, ev.Count, test.ShouldEqual, 2)
	test.That(t, ev.Location.Lat(), test.ShouldEqual, 39.7395)
	test.That(t, ev.Location.Lng(), test.ShouldEqual, -8.8056)

	pending := h.pending(t)
	test.That(t, pending, test.ShouldHaveLength, 2)
	test.That(t, pending[0].Name, test.ShouldEqual, "quercus_suber")
	test.That(t, pending[1].Name, test.ShouldEqual, "pinus_pinea")
	test.That(t, h.logs.FilterMessage("skipping malformed tree record").Len(), test.ShouldEqual, 1)
	test.That(t, h.placed(t), test.ShouldBeEmpty)
}

func TestLoadNothing(t *testing.T) {
	h := newHarness(t, placement.DefaultConfig())
	h.update(t, func(session Session) error {
		session.SetSelectedProject("empty")
		return nil
	})
	h.coord.LoadProgress()
	h.coord.Wait()
	test.That(t, h.events.last(t).Type, test.ShouldEqual, NothingToLoad)
	test.That(t, h.pending(t), test.ShouldBeEmpty)
}

func TestLoadFailureLeavesSessionUnchanged(t *testing.T) {
	h := newHarness(t, placement.DefaultConfig())
	seedProject(t, h.gateway, "leiria", nil, treeRecord("quercus_suber", 0, 0, 0))
	h.update(t, func(session Session) error {
		session.SetSelectedProject("leiria")
		return nil
	})
	h.gateway.SetHook(func(_ context.Context, op string) error {
		if op == memory.OpReadLocation {
			return errors.New("connection reset")
		}
		return nil
	})

	h.coord.LoadProgress()
	h.coord.Wait()
	ev := h.events.last(t)
	test.That(t, ev.Type, test.ShouldEqual, LoadFailed)
	test.That(t, errors.Is(ev.Err, persistence.ErrRemoteUnavailable), test.ShouldBeTrue)
	test.That(t, h.pending(t), test.ShouldBeEmpty)
}

func TestSecondLoadWhilePendingIsRefused(t *testing.T) {
	h := newHarness(t, placement.DefaultConfig())
	seedProject(t, h.gateway, "leiria", nil, treeRecord("quercus_suber", 0, 0, 0))
	seedProject(t, h.gateway, "pombal", nil, treeRecord("pinus_pinea", 0, 0, 0), treeRecord("pinus_pinea", 1, 0, 0))
	h.update(t, func(session Session) error {
		session.SetSelectedProject("leiria")
		return nil
	})
	h.coord.LoadProgress()
	h.coord.Wait()
	test.That(t, h.events.last(t).Type, test.ShouldEqual, LoadPrepared)

	h.update(t, func(session Session) error {
		session.SetSelectedProject("pombal")
		return nil
	})
	h.coord.LoadProgress()
	h.coord.Wait()
	ev := h.events.last(t)
	test.That(t, ev.Type, test.ShouldEqual, LoadFailed)
	test.That(t, errors.Is(ev.Err, scene.ErrAlreadyPending), test.ShouldBeTrue)

	pending := h.pending(t)
	test.That(t, pending, test.ShouldHaveLength, 1)
	test.That(t, pending[0].Name, test.ShouldEqual, "quercus_suber")
}

// loadThree queues three anchors planted at desired and returns them.
func loadThree(t *testing.T, h *harness, desired *geo.Point) []scene.NamedAnchor {
	t.Helper()
	seedProject(t, h.gateway, "leiria", &persistence.Location{Longitude: desired.Lng(), Latitude: desired.Lat()},
		treeRecord("quercus_suber", 1, 0.5, -2),
		treeRecord("quercus_suber", 2, 0.5, -2.5),
		treeRecord("quercus_suber", 3, 0.5, -3),
	)
	h.update(t, func(session Session) error {
		session.SetSelectedProject("leiria")
		return nil
	})
	h.coord.LoadProgress()
	h.coord.Wait()
	test.That(t, h.events.last(t).Type, test.ShouldEqual, LoadPrepared)
	pending := h.pending(t)
	test.That(t, pending, test.ShouldHaveLength, 3)
	return pending
}

func TestTapTooFarFromTarget(t *testing.T) {
	h := newHarness(t, placement.DefaultConfig())
	desired := geo.NewPoint(39.7395, -8.8056)
	loadThree(t, h, desired)

	user := desired.PointAtDistanceAndBearing(0.05, 90)
	h.update(t, func(session Session) error {
		session.SetReforestationPlan(true)
		session.SetUserLocation(user)
		return nil
	})

	h.coord.Tap(surfaceAt(0, -1, -1))
	ev := h.events.last(t)
	test.That(t, ev.Type, test.ShouldEqual, TooFarFromTarget)
	test.That(t, ev.Distance, test.ShouldAlmostEqual, 50, 1e-3)
	test.That(t, h.pending(t), test.ShouldHaveLength, 3)
	test.That(t, h.placed(t), test.ShouldBeEmpty)
	test.That(t, h.renderer.drawn, test.ShouldEqual, 0)
}

func TestTapWithUnknownUserLocation(t *testing.T) {
	h := newHarness(t, placement.DefaultConfig())
	loadThree(t, h, geo.NewPoint(39.7395, -8.8056))
	h.update(t, func(session Session) error {
		session.SetReforestationPlan(true)
		return nil
	})

	h.coord.Tap(surfaceAt(0, -1, -1))
	ev := h.events.last(t)
	test.That(t, ev.Type, test.ShouldEqual, LocationUnavailable)
	test.That(t, errors.Is(ev.Err, ErrLocationUnavailable), test.ShouldBeTrue)
	test.That(t, h.pending(t), test.ShouldHaveLength, 3)
}

func TestTapPlacesPending(t *testing.T) {
	// Distance is reported as 4m regardless of where the user stands.
	h := newHarness(t, placement.DefaultConfig(), WithDistanceFunc(func(a, b *geo.Point) float64 { return 4 }))
	desired := geo.NewPoint(39.7395, -8.8056)
	pending := loadThree(t, h, desired)
	h.update(t, func(session Session) error {
		session.SetReforestationPlan(true)
		session.SetUserLocation(desired)
		return nil
	})

	h.coord.Tap(surfaceAt(7, -1.5, -0.5))
	ev := h.events.last(t)
	test.That(t, ev.Type, test.ShouldEqual, PendingPlaced)
	test.That(t, ev.Count, test.ShouldEqual, 3)
	test.That(t, h.pending(t), test.ShouldBeEmpty)
	test.That(t, h.renderer.liveCount(), test.ShouldEqual, 3)

	placed := h.placed(t)
	test.That(t, placed, test.ShouldHaveLength, 3)
	for i, a := range placed {
		before := pending[i].Pose.Translation()
		after := a.Pose.Translation()
		test.That(t, a.ID, test.ShouldEqual, pending[i].ID)
		test.That(t, after.X, test.ShouldAlmostEqual, before.X)
		test.That(t, after.Y, test.ShouldAlmostEqual, before.Y-1.5)
		test.That(t, after.Z, test.ShouldAlmostEqual, before.Z-0.5)
	}

	// The queue is drained, so the next tap lays out new trees.
	h.coord.Tap(surfaceAt(0, 0, -6))
	test.That(t, h.events.last(t).Type, test.ShouldEqual, PlacementSucceeded)
	test.That(t, h.placed(t), test.ShouldHaveLength, 4)
}

func TestTapPlacesPendingWithoutPlan(t *testing.T) {
	h := newHarness(t, placement.DefaultConfig())
	loadThree(t, h, geo.NewPoint(39.7395, -8.8056))
	h.coord.Tap(surfaceAt(0, 0, 0))
	test.That(t, h.events.last(t).Type, test.ShouldEqual, PendingPlaced)
	test.That(t, h.placed(t), test.ShouldHaveLength, 3)
}

func TestExecute(t *testing.T) {
	h := newHarness(t, placement.DefaultConfig())
	for _, tc := range []struct {
		cmd  Command
		want EventType
	}{
		{CommandUndoLast, NothingToRemove},
		{CommandClearAll, NothingToClear},
		{CommandSaveProgress, SaveFailedNoProject},
		{CommandLoadProgress, LoadFailed},
	} {
		test.That(t, h.coord.Execute(tc.cmd), test.ShouldBeNil)
		h.coord.Wait()
		test.That(t, h.events.last(t).Type, test.ShouldEqual, tc.want)
	}
	test.That(t, h.coord.Execute(Command(42)), test.ShouldNotBeNil)
	test.That(t, h.events.all(), test.ShouldHaveLength, 4)
}

func TestClosedCoordinator(t *testing.T) {
	h := newHarness(t, placement.DefaultConfig())
	h.update(t, func(session Session) error {
		session.SetSelectedProject("leiria")
		return nil
	})
	h.coord.Tap(surfaceAt(0, 0, -1))
	h.coord.Close()

	h.coord.SaveProgress()
	ev := h.events.last(t)
	test.That(t, ev.Type, test.ShouldEqual, SaveFailed)
	test.That(t, errors.Is(ev.Err, ErrClosed), test.ShouldBeTrue)

	h.coord.LoadProgress()
	test.That(t, errors.Is(h.events.last(t).Err, ErrClosed), test.ShouldBeTrue)

	// Local commands keep working.
	h.coord.UndoLast()
	test.That(t, h.events.last(t).Type, test.ShouldEqual, LastAnchorRemoved)
}

func TestNewCoordinatorValidates(t *testing.T) {
	logger := logging.NewTestLogger(t)
	store, err := scene.NewStore(scene.DefaultSettings())
	test.That(t, err, test.ShouldBeNil)
	engine, err := placement.NewEngine(placement.DefaultConfig(), rand.New(rand.NewSource(1)), logger)
	test.That(t, err, test.ShouldBeNil)
	gw := memory.NewGateway(logger)

	_, err = NewCoordinator(nil, engine, gw, newFakeRenderer(), logger)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = NewCoordinator(store, engine, gw, newFakeRenderer(), logger, WithTimeout(0))
	test.That(t, err, test.ShouldNotBeNil)
	_, err = NewCoordinator(store, engine, gw, newFakeRenderer(), logger, WithProximityThreshold(-1))
	test.That(t, err, test.ShouldNotBeNil)
	_, err = NewCoordinator(store, engine, gw, newFakeRenderer(), logger, WithDistanceFunc(nil))
	test.That(t, err, test.ShouldNotBeNil)
}
