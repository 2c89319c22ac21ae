// Package sqlite implements a persistence gateway on a local SQLite file, for planting offline.
package sqlite

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	_ "modernc.org/sqlite" // pure go sqlite driver

	"go.reforestar.dev/planting/logging"
	"go.reforestar.dev/planting/persistence"
)

func init() {
	persistence.RegisterBackend(persistence.BackendSQLite, func(
		ctx context.Context,
		conf persistence.Config,
		logger logging.Logger,
	) (persistence.Gateway, error) {
		return NewGateway(ctx, conf.Path, logger)
	})
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS trees (
		project TEXT NOT NULL,
		idx INTEGER NOT NULL,
		name TEXT NOT NULL,
		first TEXT NOT NULL,
		second TEXT NOT NULL,
		third TEXT NOT NULL,
		forth TEXT NOT NULL,
		PRIMARY KEY (project, idx)
	)`,
	`CREATE TABLE IF NOT EXISTS locations (
		project TEXT PRIMARY KEY,
		longitude REAL NOT NULL,
		latitude REAL NOT NULL
	)`,
}

// Gateway stores projects in a SQLite database.
type Gateway struct {
	db     *sql.DB
	path   string
	logger logging.Logger
}

// NewGateway opens or creates the database at path.
func NewGateway(ctx context.Context, path string, logger logging.Logger) (*Gateway, error) {
	if path == "" {
		return nil, errors.New("sqlite path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, errors.Wrap(err, "create dirs")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	// A single connection keeps concurrent saves from failing with SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, errors.Wrap(multierr.Combine(err, db.Close()), "create schema")
		}
	}
	logger.Debugw("opened sqlite store", "path", path)
	return &Gateway{db: db, path: path, logger: logger}, nil
}

// TreeCount returns the number of trees stored for project.
func (gw *Gateway) TreeCount(ctx context.Context, project string) (int, error) {
	var count int
	err := gw.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM trees WHERE project = ?`, project).Scan(&count)
	if err != nil {
		return 0, persistence.NewRemoteError("tree count", err)
	}
	return count, nil
}

// WriteTree stores record at index, replacing what was there.
func (gw *Gateway) WriteTree(ctx context.Context, project string, index int, record persistence.TreeRecord) error {
	_, err := gw.db.ExecContext(ctx, `INSERT INTO trees (project, idx, name, first, second, third, forth)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (project, idx) DO UPDATE SET
			name = excluded.name, first = excluded.first, second = excluded.second,
			third = excluded.third, forth = excluded.forth`,
		project, index, record.Name, record.First, record.Second, record.Third, record.Forth)
	return persistence.NewRemoteError("write tree", err)
}

// WriteLocation records where project was planted.
func (gw *Gateway) WriteLocation(ctx context.Context, project string, loc persistence.Location) error {
	_, err := gw.db.ExecContext(ctx, `INSERT INTO locations (project, longitude, latitude) VALUES (?, ?, ?)
		ON CONFLICT (project) DO UPDATE SET longitude = excluded.longitude, latitude = excluded.latitude`,
		project, loc.Longitude, loc.Latitude)
	return persistence.NewRemoteError("write location", err)
}

// ReadTrees returns the trees of project in index order.
func (gw *Gateway) ReadTrees(ctx context.Context, project string) (_ []persistence.TreeRecord, retErr error) {
	rows, err := gw.db.QueryContext(ctx,
		`SELECT name, first, second, third, forth FROM trees WHERE project = ? ORDER BY idx`, project)
	if err != nil {
		return nil, persistence.NewRemoteError("read trees", err)
	}
	defer func() {
		retErr = multierr.Combine(retErr, persistence.NewRemoteError("read trees", rows.Close()))
	}()

	var out []persistence.TreeRecord
	for rows.Next() {
		var rec persistence.TreeRecord
		if err := rows.Scan(&rec.Name, &rec.First, &rec.Second, &rec.Third, &rec.Forth); err != nil {
			return nil, persistence.NewRemoteError("read trees", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, persistence.NewRemoteError("read trees", err)
	}
	return out, nil
}

// ReadLocation returns the recorded location of project, or nil.
func (gw *Gateway) ReadLocation(ctx context.Context, project string) (*persistence.Location, error) {
	var loc persistence.Location
	err := gw.db.QueryRowContext(ctx,
		`SELECT longitude, latitude FROM locations WHERE project = ?`, project).Scan(&loc.Longitude, &loc.Latitude)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, persistence.NewRemoteError("read location", err)
	}
	return &loc, nil
}

// Close closes the database.
func (gw *Gateway) Close(ctx context.Context) error {
	return gw.db.Close()
}
