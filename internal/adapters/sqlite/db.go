// Package sqlite persists upload sessions and measurements in a SQLite
// database. One database file serves both the session registry and the
// measurement store.
package sqlite

import (
	"context"
	"fmt"
	"runtime"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/cyface-de/cyup/internal/ports"
)

// Config holds the parameters for opening the database.
type Config struct {
	// Path is the database file. The parent directory must exist.
	Path string

	// PoolSize is the number of connections. Defaults to max(NumCPU, 4).
	PoolSize int

	Logger ports.Logger
}

// DB is a pool of SQLite connections with the cyup schema applied.
// DB is safe for concurrent use; connections are not.
type DB struct {
	pool   *sqlitex.Pool
	logger ports.Logger
	path   string
}

// Open creates the connection pool. The database file and schema are
// created if missing. The caller must call Close.
func Open(cfg Config) (*DB, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite: Path is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("sqlite: Logger is required")
	}

	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = max(runtime.NumCPU(), 4)
	}

	pool, err := sqlitex.NewPool(cfg.Path, sqlitex.PoolOptions{
		PoolSize:    poolSize,
		PrepareConn: prepareConnection,
	})
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening %s: %w", cfg.Path, err)
	}

	cfg.Logger.Info("sqlite database opened",
		ports.String("path", cfg.Path),
		ports.Int("pool_size", poolSize),
	)
	return &DB{pool: pool, logger: cfg.Logger, path: cfg.Path}, nil
}

// Close closes all connections. Blocks until borrowed connections return.
func (db *DB) Close() error {
	if err := db.pool.Close(); err != nil {
		return fmt.Errorf("sqlite: closing %s: %w", db.path, err)
	}
	db.logger.Info("sqlite database closed", ports.String("path", db.path))
	return nil
}

// with borrows a connection for the duration of fn.
func (db *DB) with(ctx context.Context, fn func(conn *sqlite.Conn) error) error {
	conn, err := db.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("sqlite: take: %w", err)
	}
	defer db.pool.Put(conn)
	return fn(conn)
}

// prepareConnection applies pragmas and the schema once per connection.
func prepareConnection(conn *sqlite.Conn) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=OFF",
	}
	for _, pragma := range pragmas {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return fmt.Errorf("sqlite: %s: %w", pragma, err)
		}
	}
	if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
		return fmt.Errorf("sqlite: schema: %w", err)
	}
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS upload_sessions (
	measurement_id INTEGER PRIMARY KEY,
	location       TEXT    NOT NULL DEFAULT '',
	created_at     INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS upload_events (
	seq            INTEGER PRIMARY KEY AUTOINCREMENT,
	measurement_id INTEGER NOT NULL,
	request_type   TEXT    NOT NULL,
	status_code    INTEGER NOT NULL,
	message        TEXT    NOT NULL DEFAULT '',
	error          TEXT    NOT NULL DEFAULT '',
	at             INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS upload_events_by_measurement
	ON upload_events (measurement_id, seq);

CREATE TABLE IF NOT EXISTS measurements (
	id           INTEGER PRIMARY KEY,
	finished     INTEGER NOT NULL DEFAULT 0,
	synchronized INTEGER NOT NULL DEFAULT 0,
	distance     REAL    NOT NULL DEFAULT 0,
	modality     TEXT    NOT NULL DEFAULT '',
	track_count  INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS geo_locations (
	measurement_id INTEGER NOT NULL,
	track          INTEGER NOT NULL,
	seq            INTEGER NOT NULL,
	ts             INTEGER NOT NULL,
	lat            REAL    NOT NULL,
	lon            REAL    NOT NULL,
	speed          REAL    NOT NULL,
	accuracy       REAL    NOT NULL,
	PRIMARY KEY (measurement_id, track, seq)
);

CREATE TABLE IF NOT EXISTS altitudes (
	measurement_id INTEGER NOT NULL,
	track          INTEGER NOT NULL,
	seq            INTEGER NOT NULL,
	ts             INTEGER NOT NULL,
	value          REAL    NOT NULL,
	PRIMARY KEY (measurement_id, track, seq)
);

CREATE TABLE IF NOT EXISTS sensor_values (
	measurement_id INTEGER NOT NULL,
	track          INTEGER NOT NULL,
	kind           INTEGER NOT NULL,
	seq            INTEGER NOT NULL,
	ts             INTEGER NOT NULL,
	x              REAL    NOT NULL,
	y              REAL    NOT NULL,
	z              REAL    NOT NULL,
	PRIMARY KEY (measurement_id, track, kind, seq)
);
`
