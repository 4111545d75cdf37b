package dataset

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"

	_ "modernc.org/sqlite"
)

// SQLiteSource serves nodes and adjacency lists from a SQLite database.
type SQLiteSource struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

// NewSQLiteSource creates a source for the database at path. The database is
// opened, and its schema created if needed, on Prime.
func NewSQLiteSource(path string) *SQLiteSource {
	return &SQLiteSource{path: path}
}

const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS nodes (
		id TEXT PRIMARY KEY,
		vector BLOB NOT NULL
	);

	-- One row per adjacency entry; position keeps the source order.
	CREATE TABLE IF NOT EXISTS edges (
		source TEXT NOT NULL,
		position INTEGER NOT NULL,
		target TEXT NOT NULL,
		PRIMARY KEY (source, position)
	);
`

// Prime opens the database and ensures the schema exists.
func (s *SQLiteSource) Prime(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return fmt.Errorf("%w: opening database: %w", ErrPrimeFailed, err)
	}
	db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return fmt.Errorf("%w: creating schema: %w", ErrPrimeFailed, err)
	}

	s.db = db
	return nil
}

// Close closes the database connection.
func (s *SQLiteSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteSource) conn() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, ErrNotPrimed
	}
	return s.db, nil
}

// Vector returns the stored vector of id, or ErrNotFound.
func (s *SQLiteSource) Vector(ctx context.Context, id string) ([]float32, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}

	var blob []byte
	err = db.QueryRowContext(ctx, `SELECT vector FROM nodes WHERE id = ?`, id).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying vector of %s: %w", id, err)
	}
	vec, err := decodeVector(blob)
	if err != nil {
		return nil, err
	}
	if err := CheckVector(id, vec); err != nil {
		return nil, err
	}
	return vec, nil
}

// Neighbors returns the adjacency list of id in stored order.
func (s *SQLiteSource) Neighbors(ctx context.Context, id string) ([]string, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `SELECT target FROM edges WHERE source = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("querying neighbors of %s: %w", id, err)
	}
	defer rows.Close()

	neighbors := []string{}
	for rows.Next() {
		var target string
		if err := rows.Scan(&target); err != nil {
			return nil, fmt.Errorf("scanning neighbor: %w", err)
		}
		neighbors = append(neighbors, target)
	}
	return neighbors, rows.Err()
}

// List returns up to limit node ids greater than after, in ascending order.
func (s *SQLiteSource) List(ctx context.Context, after string, limit int) ([]string, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `SELECT id FROM nodes WHERE id > ? ORDER BY id LIMIT ?`, after, limit)
	if err != nil {
		return nil, fmt.Errorf("listing nodes: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning node id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Count returns the number of stored nodes.
func (s *SQLiteSource) Count(ctx context.Context) (int, error) {
	db, err := s.conn()
	if err != nil {
		return 0, err
	}
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM nodes`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting nodes: %w", err)
	}
	return n, nil
}

// Import copies every node and adjacency list of store into the database,
// replacing rows with the same ids. It runs in a single transaction.
func (s *SQLiteSource) Import(ctx context.Context, store *MemoryStore) (int, error) {
	db, err := s.conn()
	if err != nil {
		return 0, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	nodeStmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO nodes (id, vector) VALUES (?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("preparing node insert: %w", err)
	}
	defer nodeStmt.Close()

	edgeStmt, err := tx.PrepareContext(ctx, `INSERT INTO edges (source, position, target) VALUES (?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("preparing edge insert: %w", err)
	}
	defer edgeStmt.Close()

	n := 0
	var importErr error
	store.Each(func(id string, vec []float32, neighbors []string) bool {
		if vec != nil {
			if _, importErr = nodeStmt.ExecContext(ctx, id, encodeVector(vec)); importErr != nil {
				importErr = fmt.Errorf("inserting node %s: %w", id, importErr)
				return false
			}
			n++
		}
		if _, importErr = tx.ExecContext(ctx, `DELETE FROM edges WHERE source = ?`, id); importErr != nil {
			importErr = fmt.Errorf("clearing edges of %s: %w", id, importErr)
			return false
		}
		for pos, target := range neighbors {
			if _, importErr = edgeStmt.ExecContext(ctx, id, pos, target); importErr != nil {
				importErr = fmt.Errorf("inserting edge %s->%s: %w", id, target, importErr)
				return false
			}
		}
		return true
	})
	if importErr != nil {
		return 0, importErr
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing import: %w", err)
	}
	return n, nil
}

// encodeVector stores float32 values as little-endian IEEE 754 words.
func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(buf []byte) ([]float32, error) {
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("corrupt vector blob of %d bytes", len(buf))
	}
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec, nil
}
