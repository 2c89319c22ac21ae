package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/golang/geo/r3"
	"github.com/google/uuid"
	geo "github.com/kellydunn/golang-geo"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"go.reforestar.dev/planting/command"
	"go.reforestar.dev/planting/config"
	"go.reforestar.dev/planting/logging"
	"go.reforestar.dev/planting/persistence"
	// register.
	_ "go.reforestar.dev/planting/persistence/register"
	"go.reforestar.dev/planting/placement"
	"go.reforestar.dev/planting/scene"
	"go.reforestar.dev/planting/spatialmath"
)

// SessionAction runs a planting session driven by commands read line by line.
func SessionAction(c *cli.Context) error {
	logger, cfg, err := loggerAndConfig(c)
	if err != nil {
		return err
	}
	in, closeIn, err := sessionInput(c)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeIn(); err != nil {
			logger.Warnw("cannot close script", "error", err)
		}
	}()
	return RunSession(contextOf(c), cfg, c.Int64(flagSeed), in, c.App.Writer, logger)
}

// RunSession opens the configured store, then executes each line of in against a new session and
// prints its events to out. It returns once in is exhausted and every save and load has finished.
func RunSession(
	ctx context.Context,
	cfg *config.Config,
	seed int64,
	in io.Reader,
	out io.Writer,
	logger logging.Logger,
) (retErr error) {
	gateway, err := persistence.Open(ctx, *cfg.Persistence, logger.Sublogger("persistence"))
	if err != nil {
		return err
	}
	defer func() {
		retErr = multierr.Combine(retErr, gateway.Close(context.Background()))
	}()

	timeout, err := cfg.Persistence.TimeoutDuration()
	if err != nil {
		return err
	}
	store, err := scene.NewStore(cfg.Session.Settings())
	if err != nil {
		return err
	}
	store.SetReforestationPlan(cfg.Session.ReforestationPlan)
	engine, err := placement.NewEngine(cfg.Placement.EngineConfig(), newRand(seed), logger.Sublogger("placement"))
	if err != nil {
		return err
	}
	coord, err := command.NewCoordinator(store, engine, gateway, &logRenderer{logger: logger.Sublogger("renderer")},
		logger.Sublogger("coordinator"),
		command.WithTimeout(timeout),
		command.WithProximityThreshold(cfg.Session.ProximityThresholdMeters),
	)
	if err != nil {
		return err
	}
	defer coord.Close()

	s := &session{coord: coord, out: &lockedWriter{w: out}}
	unsubscribe := coord.Subscribe(func(ev command.Event) {
		s.printf("event: %s\n", ev)
	})
	defer unsubscribe()

	scanner := bufio.NewScanner(in)
	for lineNum := 1; scanner.Scan(); lineNum++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := s.run(strings.Fields(line)); err != nil {
			s.printf("error: line %d: %v\n", lineNum, err)
		}
	}
	coord.Wait()
	return scanner.Err()
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (lw *lockedWriter) Write(p []byte) (int, error) {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	return lw.w.Write(p)
}

type session struct {
	coord *command.Coordinator
	out   io.Writer
}

func (s *session) printf(format string, args ...interface{}) {
	//nolint:errcheck
	fmt.Fprintf(s.out, format, args...)
}

func (s *session) run(args []string) error {
	verb, rest := args[0], args[1:]
	switch verb {
	case "undo":
		return s.coord.Execute(command.CommandUndoLast)
	case "clear":
		return s.coord.Execute(command.CommandClearAll)
	case "save":
		return s.coord.Execute(command.CommandSaveProgress)
	case "load":
		return s.coord.Execute(command.CommandLoadProgress)
	case "wait":
		s.coord.Wait()
		return nil
	case "miss":
		s.coord.Tap(nil)
		return nil
	case "tap":
		v, err := parseFloats(rest, 3)
		if err != nil {
			return err
		}
		hit := spatialmath.NewPoseFromTranslation(r3.Vector{X: v[0], Y: v[1], Z: v[2]})
		s.coord.Tap(&hit)
		return nil
	case "list":
		return s.coord.Update(func(sess command.Session) error {
			s.printf("%s\n", anchorsTable(sess.Placed(), sess.Pending()))
			return nil
		})
	}
	return s.coord.Update(func(sess command.Session) error {
		return applySetting(sess, verb, rest)
	})
}

// applySetting changes the selection or settings a verb names.
func applySetting(sess command.Session, verb string, args []string) error {
	settings := sess.Settings()
	switch verb {
	case "project":
		if len(args) != 1 {
			return errors.New("usage: project NAME")
		}
		sess.SetSelectedProject(args[0])
		return nil
	case "plan":
		if len(args) != 1 || (args[0] != "on" && args[0] != "off") {
			return errors.New("usage: plan on|off")
		}
		sess.SetReforestationPlan(args[0] == "on")
		return nil
	case "location":
		v, err := parseFloats(args, 2)
		if err != nil {
			return errors.Wrap(err, "usage: location LAT LNG")
		}
		sess.SetUserLocation(geo.NewPoint(v[0], v[1]))
		return nil
	case "model":
		if len(args) != 1 {
			return errors.New("usage: model NAME")
		}
		settings.ModelName = args[0]
	case "count":
		if len(args) != 1 {
			return errors.New("usage: count N")
		}
		n, err := strconv.ParseUint(args[0], 10, 32)
		if err != nil {
			return errors.Wrap(err, "usage: count N")
		}
		settings.NumberOfTrees = uint(n)
	case "scale":
		v, err := parseFloats(args, 1)
		if err != nil {
			return errors.Wrap(err, "usage: scale F")
		}
		settings.ScaleCompensation = v[0]
	default:
		return errors.Errorf("unknown command %q", verb)
	}
	return sess.SetSettings(settings)
}

func parseFloats(args []string, n int) ([]float64, error) {
	if len(args) != n {
		return nil, errors.Errorf("expected %d numbers, got %d", n, len(args))
	}
	out := make([]float64, n)
	for i, arg := range args {
		v, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// logRenderer stands in for a scene renderer by logging what would be drawn.
type logRenderer struct {
	logger logging.Logger
}

func (r *logRenderer) Materialize(anchor scene.NamedAnchor) command.Handle {
	tra := anchor.Pose.Translation()
	r.logger.Debugw("materialize", "id", anchor.ID, "name", anchor.Name, "x", tra.X, "y", tra.Y, "z", tra.Z)
	return command.Handle(anchor.ID)
}

func (r *logRenderer) Dematerialize(h command.Handle) {
	r.logger.Debugw("dematerialize", "id", uuid.UUID(h))
}

func (r *logRenderer) DematerializeAll() {
	r.logger.Debug("dematerialize all")
}
