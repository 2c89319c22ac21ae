package persistence

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"go.reforestar.dev/planting/logging"
)

// Backend names understood by Open.
const (
	BackendMemory  = "memory"
	BackendSQLite  = "sqlite"
	BackendMongoDB = "mongodb"
)

// DefaultTimeout bounds every gateway round trip made on behalf of a save or load.
const DefaultTimeout = 10 * time.Second

// Config selects and configures a gateway.
type Config struct {
	Backend  string `json:"backend"`
	Path     string `json:"path,omitempty"`
	URI      string `json:"uri,omitempty"`
	Database string `json:"database,omitempty"`
	Timeout  string `json:"timeout,omitempty"`
}

// DefaultConfig is an in-memory gateway.
func DefaultConfig() Config {
	return Config{Backend: BackendMemory, Timeout: DefaultTimeout.String()}
}

// Validate ensures all parts of the config are valid.
func (conf *Config) Validate(path string) error {
	switch conf.Backend {
	case BackendMemory:
	case BackendSQLite:
		if conf.Path == "" {
			return goutils.NewConfigValidationFieldRequiredError(path, "path")
		}
	case BackendMongoDB:
		if conf.URI == "" {
			return goutils.NewConfigValidationFieldRequiredError(path, "uri")
		}
		if conf.Database == "" {
			return goutils.NewConfigValidationFieldRequiredError(path, "database")
		}
	case "":
		return goutils.NewConfigValidationFieldRequiredError(path, "backend")
	default:
		return goutils.NewConfigValidationError(path, errors.Errorf("unknown backend %q", conf.Backend))
	}
	if _, err := conf.TimeoutDuration(); err != nil {
		return goutils.NewConfigValidationError(path, err)
	}
	return nil
}

// TimeoutDuration parses Timeout, falling back to DefaultTimeout when unset.
func (conf *Config) TimeoutDuration() (time.Duration, error) {
	if conf.Timeout == "" {
		return DefaultTimeout, nil
	}
	d, err := time.ParseDuration(conf.Timeout)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid timeout %q", conf.Timeout)
	}
	if d <= 0 {
		return 0, errors.Errorf("timeout must be positive, got %s", d)
	}
	return d, nil
}

// A Constructor opens a gateway of one backend.
type Constructor func(ctx context.Context, conf Config, logger logging.Logger) (Gateway, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Constructor{}
)

// RegisterBackend makes a backend available to Open. Backend packages call it from init; it panics
// on a duplicate or nil registration.
func RegisterBackend(name string, constructor Constructor) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if constructor == nil {
		panic(errors.Errorf("cannot register a nil constructor for backend %q", name))
	}
	if _, old := registry[name]; old {
		panic(errors.Errorf("trying to register two backends named %q", name))
	}
	registry[name] = constructor
}

// RegisteredBackends returns the names of all registered backends, sorted.
func RegisteredBackends() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Open validates conf and opens the gateway of its backend. The backend package must have been
// imported for its registration to run.
func Open(ctx context.Context, conf Config, logger logging.Logger) (Gateway, error) {
	if err := conf.Validate("persistence"); err != nil {
		return nil, err
	}
	registryMu.RLock()
	constructor, ok := registry[conf.Backend]
	registryMu.RUnlock()
	if !ok {
		return nil, errors.Errorf("backend %q is not registered", conf.Backend)
	}
	gw, err := constructor(ctx, conf, logger.Sublogger(conf.Backend))
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open %s backend", conf.Backend)
	}
	return gw, nil
}
