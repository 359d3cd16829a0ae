package meshstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opennav/groundmesh/internal/navmesh"
)

// ErrNotFound is returned when no snapshot exists under the given name.
var ErrNotFound = errors.New("meshstore: snapshot not found")

// Store wraps a pgx connection pool for snapshot operations.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to PostgreSQL and returns a store handle.
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close closes the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Save captures the model under the given name and upserts it. When the
// stored content hash already matches, the write is skipped.
func (s *Store) Save(ctx context.Context, name string, m *navmesh.Model) (Snapshot, error) {
	snap := CaptureSnapshot(name, m)

	var existing string
	err := s.pool.QueryRow(ctx,
		`SELECT content_hash FROM mesh_snapshots WHERE name = $1`, name,
	).Scan(&existing)
	if err == nil && existing == snap.Hash {
		slog.Debug("snapshot unchanged, skipping write", "name", name, "hash", snap.Hash)
		return snap, nil
	}
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return snap, fmt.Errorf("querying snapshot %q: %w", name, err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return snap, fmt.Errorf("beginning snapshot tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var snapID int64
	err = tx.QueryRow(ctx,
		`INSERT INTO mesh_snapshots (name, content_hash, tile_size, updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (name) DO UPDATE
		 SET content_hash = EXCLUDED.content_hash,
		     tile_size = EXCLUDED.tile_size,
		     updated_at = now()
		 RETURNING id`,
		name, snap.Hash, snap.TileSize,
	).Scan(&snapID)
	if err != nil {
		return snap, fmt.Errorf("upserting snapshot %q: %w", name, err)
	}

	if _, err := tx.Exec(ctx,
		`DELETE FROM mesh_nodes WHERE snapshot_id = $1`, snapID); err != nil {
		return snap, fmt.Errorf("clearing snapshot %q nodes: %w", name, err)
	}
	if _, err := tx.Exec(ctx,
		`DELETE FROM mesh_surfaces WHERE snapshot_id = $1`, snapID); err != nil {
		return snap, fmt.Errorf("clearing snapshot %q surfaces: %w", name, err)
	}

	for _, surf := range snap.Surfaces {
		if _, err := tx.Exec(ctx,
			`INSERT INTO mesh_surfaces (snapshot_id, surface_id, elevation)
			 VALUES ($1, $2, $3)`,
			snapID, surf.ID, surf.Elevation); err != nil {
			return snap, fmt.Errorf("inserting surface %d: %w", surf.ID, err)
		}

		rows := make([][]any, 0, len(surf.Nodes))
		for _, n := range surf.Nodes {
			rows = append(rows, []any{snapID, surf.ID, n.X, n.Y, n.Elevation, n.Deviation})
		}
		_, err := tx.CopyFrom(ctx,
			pgx.Identifier{"mesh_nodes"},
			[]string{"snapshot_id", "surface_id", "x", "y", "elevation", "deviation"},
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			return snap, fmt.Errorf("inserting nodes for surface %d: %w", surf.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return snap, fmt.Errorf("committing snapshot %q: %w", name, err)
	}

	slog.Info("snapshot saved", "name", name, "surfaces", len(snap.Surfaces), "hash", snap.Hash)
	return snap, nil
}

// Load returns the snapshot stored under the given name.
func (s *Store) Load(ctx context.Context, name string) (Snapshot, error) {
	var (
		snap   = Snapshot{Name: name}
		snapID int64
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, content_hash, tile_size FROM mesh_snapshots WHERE name = $1`, name,
	).Scan(&snapID, &snap.Hash, &snap.TileSize)
	if errors.Is(err, pgx.ErrNoRows) {
		return snap, ErrNotFound
	}
	if err != nil {
		return snap, fmt.Errorf("querying snapshot %q: %w", name, err)
	}

	surfByID := make(map[int64]*SurfaceData)
	rows, err := s.pool.Query(ctx,
		`SELECT surface_id, elevation FROM mesh_surfaces
		 WHERE snapshot_id = $1 ORDER BY surface_id`, snapID)
	if err != nil {
		return snap, fmt.Errorf("querying surfaces of %q: %w", name, err)
	}
	defer rows.Close()
	for rows.Next() {
		var sd SurfaceData
		if err := rows.Scan(&sd.ID, &sd.Elevation); err != nil {
			return snap, fmt.Errorf("scanning surface of %q: %w", name, err)
		}
		snap.Surfaces = append(snap.Surfaces, sd)
	}
	if err := rows.Err(); err != nil {
		return snap, fmt.Errorf("iterating surfaces of %q: %w", name, err)
	}
	for i := range snap.Surfaces {
		surfByID[snap.Surfaces[i].ID] = &snap.Surfaces[i]
	}

	nodeRows, err := s.pool.Query(ctx,
		`SELECT surface_id, x, y, elevation, deviation FROM mesh_nodes
		 WHERE snapshot_id = $1 ORDER BY surface_id, x, y`, snapID)
	if err != nil {
		return snap, fmt.Errorf("querying nodes of %q: %w", name, err)
	}
	defer nodeRows.Close()
	for nodeRows.Next() {
		var (
			sid int64
			n   NodeData
		)
		if err := nodeRows.Scan(&sid, &n.X, &n.Y, &n.Elevation, &n.Deviation); err != nil {
			return snap, fmt.Errorf("scanning node of %q: %w", name, err)
		}
		if sd, ok := surfByID[sid]; ok {
			sd.Nodes = append(sd.Nodes, n)
		}
	}
	if err := nodeRows.Err(); err != nil {
		return snap, fmt.Errorf("iterating nodes of %q: %w", name, err)
	}

	return snap, nil
}

// List returns the stored snapshot names with their content hashes.
func (s *Store) List(ctx context.Context) (map[string]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT name, content_hash FROM mesh_snapshots ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var name, hash string
		if err := rows.Scan(&name, &hash); err != nil {
			return nil, fmt.Errorf("scanning snapshot row: %w", err)
		}
		out[name] = hash
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating snapshots: %w", err)
	}
	return out, nil
}
