// Package placement computes where a batch of trees goes when the user taps a detected surface.
//
// The engine lays candidate sites out on a hexagonal lattice in the plane of the touch point,
// accepts them greedily while they keep clear of everything already standing, and then gives the
// accepted poses some cosmetic rotation and size variety. It keeps no state between calls.
package placement

import (
	"math"
	"math/rand"
	"slices"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.reforestar.dev/planting/logging"
	"go.reforestar.dev/planting/spatialmath"
	"go.reforestar.dev/planting/utils"
)

// ErrNoSpaceAvailable is what callers report when a layout comes back empty.
var ErrNoSpaceAvailable = errors.New("no space available for placement")

// Request describes one placement: the surface-anchored touch point, how many trees to place, the
// poses already occupied in the session, and the requested size.
type Request struct {
	Origin      spatialmath.Pose
	Count       uint
	KnownPoses  []spatialmath.Pose
	ScaleFactor float64
}

// Validate checks the request can be laid out.
func (req Request) Validate() error {
	if !(req.ScaleFactor > 0) || math.IsInf(req.ScaleFactor, 0) {
		return errors.Errorf("scale factor must be a positive number, got %v", req.ScaleFactor)
	}
	if !req.Origin.IsFinite() {
		return errors.New("origin pose has non-finite components")
	}
	return nil
}

// Engine computes layouts. All randomness comes from the injected source, so two engines seeded
// alike produce identical layouts for identical requests.
type Engine struct {
	cfg    Config
	rng    *rand.Rand
	logger logging.Logger
}

// NewEngine returns an engine drawing its jitter from rng.
func NewEngine(cfg Config, rng *rand.Rand, logger logging.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if rng == nil {
		return nil, errors.New("placement engine requires a random source")
	}
	return &Engine{cfg: cfg, rng: rng, logger: logger}, nil
}

// Config returns the configuration the engine was built with.
func (e *Engine) Config() Config {
	return e.cfg
}

// ComputeLayout returns up to req.Count poses in generation order. Every returned pose is at
// least the clearance radius away, in the plane of the origin, from every known pose and from
// every other returned pose. An empty result with a nil error means no space was found.
func (e *Engine) ComputeLayout(req Request) ([]spatialmath.Pose, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.Count == 0 {
		return []spatialmath.Pose{}, nil
	}

	normal := req.Origin.Normal()
	occupied := make([]r3.Vector, 0, len(req.KnownPoses)+int(req.Count))
	for _, known := range req.KnownPoses {
		occupied = append(occupied, known.Translation())
	}

	sites := e.candidateSites(req.Origin)
	cursor := 0
	accepted := make([]spatialmath.Pose, 0, req.Count)
	for slot := uint(0); slot < req.Count; slot++ {
		site, attempts, ok := e.nextFreeSite(sites, &cursor, occupied, normal)
		if !ok {
			e.logger.Debugw("no free site for slot", "slot", slot, "attempts", attempts)
			continue
		}
		occupied = append(occupied, site)
		accepted = append(accepted, req.Origin.WithTranslation(site))
	}

	for i := range accepted {
		if i%2 == 0 && req.ScaleFactor > e.cfg.RotationThreshold {
			accepted[i] = spatialmath.RotateAboutNormal(accepted[i], e.randomYaw())
		}
		accepted[i] = spatialmath.ScaleBasis(accepted[i], e.randomScale(req.ScaleFactor))
	}

	e.logger.Debugw("layout computed",
		"requested", req.Count, "placed", len(accepted), "known", len(req.KnownPoses), "candidates", len(sites))
	return accepted, nil
}

// nextFreeSite walks the candidate list from cursor until it finds a site clear of every occupied
// position, giving up after MaxAttempts rejections or when the list runs out.
func (e *Engine) nextFreeSite(
	sites []r3.Vector,
	cursor *int,
	occupied []r3.Vector,
	normal r3.Vector,
) (r3.Vector, int, bool) {
	attempts := 0
	for *cursor < len(sites) && attempts < e.cfg.MaxAttempts {
		site := sites[*cursor]
		*cursor++
		attempts++
		if e.isClear(site, occupied, normal) {
			return site, attempts, true
		}
	}
	return r3.Vector{}, attempts, false
}

func (e *Engine) isClear(site r3.Vector, occupied []r3.Vector, normal r3.Vector) bool {
	for _, other := range occupied {
		if spatialmath.PlanarDistance(site, other, normal) < e.cfg.ClearanceRadius {
			return false
		}
	}
	return true
}

// candidateSites returns the lattice sites within the spread radius of the origin, nearest first.
// The lattice is turned by a random phase and each site is nudged so layouts do not look gridded.
func (e *Engine) candidateSites(origin spatialmath.Pose) []r3.Vector {
	center := origin.Translation()
	u, v := planeAxes(origin)

	spacing := e.cfg.spacing()
	phase := e.rng.Float64() * math.Pi / 3
	sinP, cosP := math.Sincos(phase)

	type site struct {
		dist   float64
		du, dv float64
	}
	var lattice []site
	// Hex distance k is at least k*spacing*sqrt(3)/2 away in the plane.
	maxRing := int(math.Floor(e.cfg.SpreadRadius/(spacing*math.Sqrt(3)/2))) + 1
	for q := -maxRing; q <= maxRing; q++ {
		for r := -maxRing; r <= maxRing; r++ {
			if hexDistance(q, r) > maxRing {
				continue
			}
			x := spacing * (float64(q) + float64(r)/2)
			y := spacing * float64(r) * math.Sqrt(3) / 2
			dist := math.Hypot(x, y)
			if dist > e.cfg.SpreadRadius+1e-9 {
				continue
			}
			lattice = append(lattice, site{dist, x*cosP - y*sinP, x*sinP + y*cosP})
		}
	}
	slices.SortStableFunc(lattice, func(a, b site) int {
		switch {
		case a.dist < b.dist-1e-9:
			return -1
		case a.dist > b.dist+1e-9:
			return 1
		default:
			return 0
		}
	})

	nudge := e.cfg.nudge()
	out := make([]r3.Vector, 0, len(lattice))
	for _, s := range lattice {
		du, dv := s.du, s.dv
		if nudge > 0 {
			radius := nudge * math.Sqrt(e.rng.Float64())
			sinA, cosA := math.Sincos(e.rng.Float64() * 2 * math.Pi)
			du += radius * cosA
			dv += radius * sinA
		}
		out = append(out, center.Add(u.Mul(du)).Add(v.Mul(dv)))
	}
	return out
}

func (e *Engine) randomYaw() float64 {
	angle := e.cfg.MinRotation + e.rng.Float64()*(e.cfg.MaxRotation-e.cfg.MinRotation)
	if e.rng.Intn(2) == 0 {
		return -angle
	}
	return angle
}

func (e *Engine) randomScale(scaleFactor float64) float64 {
	return scaleFactor * (1 + (2*e.rng.Float64()-1)*e.cfg.ScaleJitter)
}

// planeAxes returns two orthonormal directions spanning the surface plane of the origin.
func planeAxes(origin spatialmath.Pose) (r3.Vector, r3.Vector) {
	n := origin.Normal()
	u := origin.Axis(spatialmath.BasisX)
	// Remove any normal component so that the axes stay in the plane even for sheared input.
	u = u.Sub(n.Mul(u.Dot(n)))
	if u.Norm() < 1e-9 {
		u = n.Ortho()
	}
	u = u.Normalize()
	return u, n.Cross(u).Normalize()
}

func hexDistance(q, r int) int {
	return (utils.AbsInt(q) + utils.AbsInt(r) + utils.AbsInt(q+r)) / 2
}
