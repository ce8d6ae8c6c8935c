// Package owner persists the owner ids that scope project-level settings.
//
// An owner id is generated the first time a project key is seen and then
// returned unchanged for the life of the database, so the repository paths
// of a project stay stable across restarts.
package owner

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/input-output-hk/catalyst-forge-libs/settingsync/errors"
	"github.com/input-output-hk/catalyst-forge-libs/settingsync/pathmap"
)

// FileName is the database file name inside the data directory.
const FileName = "owners.db"

const schema = `
CREATE TABLE IF NOT EXISTS owners (
    project_key TEXT PRIMARY KEY,
    owner_id    TEXT NOT NULL UNIQUE,
    created_at  INTEGER NOT NULL
);
`

// Store maps project keys to owner ids.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func validKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return errors.New(errors.CodeInvalidInput, "owner", "project key is required")
	}
	return nil
}

// Ensure returns the owner id of key, generating and storing one on first use.
func (s *Store) Ensure(ctx context.Context, key string) (pathmap.OwnerID, error) {
	if err := validKey(key); err != nil {
		return "", err
	}

	// A concurrent Ensure for the same key loses the insert and reads the winner's id.
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO owners (project_key, owner_id, created_at)
		VALUES (?, ?, ?)`,
		key, uuid.NewString(), s.now().UnixNano(),
	)
	if err != nil {
		return "", fmt.Errorf("insert owner: %w", err)
	}

	id, ok, err := s.Get(ctx, key)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", errors.New(errors.CodeInternal, "owner.ensure", "owner for %q vanished", key)
	}
	return id, nil
}

// Get returns the owner id of key. The boolean is false when none was generated yet.
func (s *Store) Get(ctx context.Context, key string) (pathmap.OwnerID, bool, error) {
	if err := validKey(key); err != nil {
		return "", false, err
	}

	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT owner_id FROM owners WHERE project_key = ?`, key).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("query owner: %w", err)
	}
	return pathmap.OwnerID(id), true, nil
}

// Entry is one stored project.
type Entry struct {
	Key       string
	Owner     pathmap.OwnerID
	CreatedAt time.Time
}

// List returns every stored project ordered by key.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT project_key, owner_id, created_at FROM owners ORDER BY project_key`)
	if err != nil {
		return nil, fmt.Errorf("query owners: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e       Entry
			id      string
			created int64
		)
		if err := rows.Scan(&e.Key, &id, &created); err != nil {
			return nil, fmt.Errorf("scan owner: %w", err)
		}
		e.Owner = pathmap.OwnerID(id)
		e.CreatedAt = time.Unix(0, created)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
