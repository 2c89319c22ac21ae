package config

import (
	"bytes"
	"context"
	"encoding/json"
	"io"

	"github.com/a8m/envsubst"
	"github.com/pkg/errors"

	"go.reforestar.dev/planting/logging"
)

// Read reads a config from the given file. Environment variables referenced as ${NAME} are
// substituted before parsing, which keeps credentials such as a MongoDB URI out of the file.
func Read(
	ctx context.Context,
	filePath string,
	logger logging.Logger,
) (*Config, error) {
	buf, err := envsubst.ReadFile(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read config %q", filePath)
	}

	return FromReader(ctx, filePath, bytes.NewReader(buf), logger)
}

// FromReader reads a config from the given reader and specifies
// where, if applicable, the file the reader originated from.
func FromReader(
	ctx context.Context,
	originalPath string,
	r io.Reader,
	logger logging.Logger,
) (*Config, error) {
	cfg := &Config{ConfigFilePath: originalPath}
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, errors.Wrap(err, "failed to decode Config from json")
	}
	if err := cfg.Ensure(); err != nil {
		return nil, errors.Wrap(err, "failed to process Config")
	}
	logger.Debugw("read config",
		"path", originalPath,
		"backend", cfg.Persistence.Backend,
		"model", cfg.Session.DefaultModel,
		"trees", cfg.Session.NumberOfTrees)
	return cfg, nil
}
