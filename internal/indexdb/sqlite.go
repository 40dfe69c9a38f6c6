// Package indexdb keeps the per-world bookkeeping of the cache in SQLite:
// the vein type dictionary, the scan history and the spawn re-cache marker.
package indexdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/OCharnyshevich/oreveincache/internal/veintype"
)

const schemaVersion = "1"

// Index is the SQLite bookkeeping database shared by every world cached
// under one cache directory.
type Index struct {
	db *sql.DB
}

// ScanRecord is one finished scan of a dimension.
type ScanRecord struct {
	Kind         string // world, section or spawn
	DimensionID  int
	Strategy     string
	Files        int
	CorruptFiles int
	OreChunks    int64
	Resolved     int64
	StartedAt    time.Time
	FinishedAt   time.Time
}

// OpenSQLite opens or creates the index database at path.
func OpenSQLite(path string) (*Index, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init pragmas: %w", err)
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &Index{db: db}, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS worlds (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			dir TEXT NOT NULL,
			first_seen TEXT NOT NULL,
			last_seen TEXT NOT NULL,
			spawn_recached_at TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS vein_types (
			world_id TEXT NOT NULL REFERENCES worlds(id),
			id INTEGER NOT NULL,
			name TEXT NOT NULL,
			PRIMARY KEY (world_id, id),
			UNIQUE (world_id, name)
		);`,
		`CREATE TABLE IF NOT EXISTS scans (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			world_id TEXT NOT NULL REFERENCES worlds(id),
			kind TEXT NOT NULL,
			dimension INTEGER NOT NULL,
			strategy TEXT NOT NULL,
			files INTEGER NOT NULL,
			corrupt_files INTEGER NOT NULL,
			ore_chunks INTEGER NOT NULL,
			resolved INTEGER NOT NULL,
			started_at TEXT NOT NULL,
			finished_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS scans_world ON scans(world_id, id);`,
		`INSERT OR IGNORE INTO meta(key,value) VALUES('schema_version','` + schemaVersion + `');`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database.
func (ix *Index) Close() error {
	return ix.db.Close()
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// TouchWorld registers a world or refreshes its name, directory and last
// seen time.
func (ix *Index) TouchWorld(ctx context.Context, worldID, name, dir string) error {
	ts := now()
	_, err := ix.db.ExecContext(ctx, `INSERT INTO worlds(id,name,dir,first_seen,last_seen) VALUES(?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET name=excluded.name, dir=excluded.dir, last_seen=excluded.last_seen`,
		worldID, name, dir, ts, ts)
	if err != nil {
		return fmt.Errorf("touch world %s: %w", worldID, err)
	}
	return nil
}

// VeinTypes returns the persisted vein type dictionary of a world ordered
// by id.
func (ix *Index) VeinTypes(ctx context.Context, worldID string) ([]veintype.Entry, error) {
	rows, err := ix.db.QueryContext(ctx, `SELECT id,name FROM vein_types WHERE world_id=? ORDER BY id`, worldID)
	if err != nil {
		return nil, fmt.Errorf("query vein types: %w", err)
	}
	defer rows.Close()

	var out []veintype.Entry
	for rows.Next() {
		var e veintype.Entry
		if err := rows.Scan(&e.ID, &e.Name); err != nil {
			return nil, fmt.Errorf("scan vein type: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// AddVeinTypes appends dictionary rows. Existing ids are never rewritten.
func (ix *Index) AddVeinTypes(ctx context.Context, worldID string, entries []veintype.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO vein_types(world_id,id,name) VALUES(?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, worldID, e.ID, e.Name); err != nil {
			return fmt.Errorf("add vein type %q: %w", e.Name, err)
		}
	}
	return tx.Commit()
}

// SpawnRecached reports whether the spawn area of the world was re-cached.
func (ix *Index) SpawnRecached(ctx context.Context, worldID string) (bool, error) {
	var at sql.NullString
	err := ix.db.QueryRowContext(ctx, `SELECT spawn_recached_at FROM worlds WHERE id=?`, worldID).Scan(&at)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query spawn marker: %w", err)
	}
	return at.Valid, nil
}

// MarkSpawnRecached records that the spawn area of the world was re-cached.
func (ix *Index) MarkSpawnRecached(ctx context.Context, worldID string) error {
	res, err := ix.db.ExecContext(ctx, `UPDATE worlds SET spawn_recached_at=? WHERE id=?`, now(), worldID)
	if err != nil {
		return fmt.Errorf("set spawn marker: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("set spawn marker: unknown world %s", worldID)
	}
	return nil
}

// RecordScan appends a finished scan to the history of the world.
func (ix *Index) RecordScan(ctx context.Context, worldID string, r ScanRecord) error {
	_, err := ix.db.ExecContext(ctx, `INSERT INTO scans(world_id,kind,dimension,strategy,files,corrupt_files,ore_chunks,resolved,started_at,finished_at)
		VALUES(?,?,?,?,?,?,?,?,?,?)`,
		worldID, r.Kind, r.DimensionID, r.Strategy, r.Files, r.CorruptFiles, r.OreChunks, r.Resolved,
		r.StartedAt.UTC().Format(time.RFC3339Nano), r.FinishedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("record scan: %w", err)
	}
	return nil
}

// Scans returns the scan history of the world, oldest first.
func (ix *Index) Scans(ctx context.Context, worldID string) ([]ScanRecord, error) {
	rows, err := ix.db.QueryContext(ctx, `SELECT kind,dimension,strategy,files,corrupt_files,ore_chunks,resolved,started_at,finished_at
		FROM scans WHERE world_id=? ORDER BY id`, worldID)
	if err != nil {
		return nil, fmt.Errorf("query scans: %w", err)
	}
	defer rows.Close()

	var out []ScanRecord
	for rows.Next() {
		var (
			r                 ScanRecord
			started, finished string
		)
		if err := rows.Scan(&r.Kind, &r.DimensionID, &r.Strategy, &r.Files, &r.CorruptFiles,
			&r.OreChunks, &r.Resolved, &started, &finished); err != nil {
			return nil, fmt.Errorf("scan scan row: %w", err)
		}
		r.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		r.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished)
		out = append(out, r)
	}
	return out, rows.Err()
}
