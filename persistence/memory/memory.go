// Package memory implements a process-local persistence gateway. It backs the CLI when no remote
// store is configured and lets tests inject failures and delays.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/pkg/errors"

	"go.reforestar.dev/planting/logging"
	"go.reforestar.dev/planting/persistence"
)

func init() {
	persistence.RegisterBackend(persistence.BackendMemory, func(
		ctx context.Context,
		conf persistence.Config,
		logger logging.Logger,
	) (persistence.Gateway, error) {
		return NewGateway(logger), nil
	})
}

// Operation names passed to a Hook.
const (
	OpTreeCount     = "tree count"
	OpWriteTree     = "write tree"
	OpWriteLocation = "write location"
	OpReadTrees     = "read trees"
	OpReadLocation  = "read location"
)

var errClosed = errors.New("gateway is closed")

// A Hook runs before every operation. A non-nil error fails the operation without touching
// stored data.
type Hook func(ctx context.Context, op string) error

type project struct {
	trees    map[int]persistence.TreeRecord
	location *persistence.Location
}

// Gateway keeps projects in memory.
type Gateway struct {
	mu       sync.Mutex
	projects map[string]*project
	hook     Hook
	closed   bool
	logger   logging.Logger
}

// NewGateway returns an empty gateway.
func NewGateway(logger logging.Logger) *Gateway {
	return &Gateway{projects: map[string]*project{}, logger: logger}
}

// SetHook installs hook, replacing any previous one. nil removes it.
func (gw *Gateway) SetHook(hook Hook) {
	gw.mu.Lock()
	defer gw.mu.Unlock()
	gw.hook = hook
}

// before runs the hook without holding the lock.
func (gw *Gateway) before(ctx context.Context, op string) error {
	gw.mu.Lock()
	hook, closed := gw.hook, gw.closed
	gw.mu.Unlock()
	if closed {
		return persistence.NewRemoteError(op, errClosed)
	}
	if err := ctx.Err(); err != nil {
		return persistence.NewRemoteError(op, err)
	}
	if hook != nil {
		if err := hook(ctx, op); err != nil {
			return persistence.NewRemoteError(op, err)
		}
	}
	return nil
}

func (gw *Gateway) projectLocked(name string) *project {
	p, ok := gw.projects[name]
	if !ok {
		p = &project{trees: map[int]persistence.TreeRecord{}}
		gw.projects[name] = p
	}
	return p
}

// TreeCount returns the next free tree index of a project.
func (gw *Gateway) TreeCount(ctx context.Context, name string) (int, error) {
	if err := gw.before(ctx, OpTreeCount); err != nil {
		return 0, err
	}
	gw.mu.Lock()
	defer gw.mu.Unlock()
	p, ok := gw.projects[name]
	if !ok {
		return 0, nil
	}
	return len(p.trees), nil
}

// WriteTree stores record at index, replacing what was there.
func (gw *Gateway) WriteTree(ctx context.Context, name string, index int, record persistence.TreeRecord) error {
	if err := gw.before(ctx, OpWriteTree); err != nil {
		return err
	}
	gw.mu.Lock()
	defer gw.mu.Unlock()
	gw.projectLocked(name).trees[index] = record
	gw.logger.Debugw("wrote tree", "project", name, "index", index, "name", record.Name)
	return nil
}

// WriteLocation records where a project was planted.
func (gw *Gateway) WriteLocation(ctx context.Context, name string, loc persistence.Location) error {
	if err := gw.before(ctx, OpWriteLocation); err != nil {
		return err
	}
	gw.mu.Lock()
	defer gw.mu.Unlock()
	gw.projectLocked(name).location = &loc
	return nil
}

// ReadTrees returns the trees of a project in index order.
func (gw *Gateway) ReadTrees(ctx context.Context, name string) ([]persistence.TreeRecord, error) {
	if err := gw.before(ctx, OpReadTrees); err != nil {
		return nil, err
	}
	gw.mu.Lock()
	defer gw.mu.Unlock()
	p, ok := gw.projects[name]
	if !ok {
		return nil, nil
	}
	out := make([]persistence.TreeRecord, 0, len(p.trees))
	for _, idx := range slices.Sorted(maps.Keys(p.trees)) {
		out = append(out, p.trees[idx])
	}
	return out, nil
}

// ReadLocation returns the recorded location of a project, or nil.
func (gw *Gateway) ReadLocation(ctx context.Context, name string) (*persistence.Location, error) {
	if err := gw.before(ctx, OpReadLocation); err != nil {
		return nil, err
	}
	gw.mu.Lock()
	defer gw.mu.Unlock()
	p, ok := gw.projects[name]
	if !ok || p.location == nil {
		return nil, nil
	}
	loc := *p.location
	return &loc, nil
}

// Close makes every later operation fail.
func (gw *Gateway) Close(ctx context.Context) error {
	gw.mu.Lock()
	defer gw.mu.Unlock()
	gw.closed = true
	return nil
}
