package state

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SaveEnvironment inserts or replaces an installed environment.
func (s *SQLiteStore) SaveEnvironment(env *Environment) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	if env.InstalledAt.IsZero() {
		env.InstalledAt = time.Now().UTC()
	}

	_, err := s.db.Exec(
		`INSERT INTO environments (name, manifest_path, manifest_hash, installed_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (name) DO UPDATE SET
		   manifest_path = excluded.manifest_path,
		   manifest_hash = excluded.manifest_hash,
		   installed_at = excluded.installed_at`,
		env.Name, env.ManifestPath, env.ManifestHash, env.InstalledAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save environment: %w", err)
	}
	return nil
}

// GetEnvironment retrieves an environment by name.
// Returns nil without error when it was never installed.
func (s *SQLiteStore) GetEnvironment(name string) (*Environment, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	env := &Environment{}
	err := s.db.QueryRow(
		`SELECT name, manifest_path, manifest_hash, installed_at FROM environments WHERE name = ?`,
		name,
	).Scan(&env.Name, &env.ManifestPath, &env.ManifestHash, &env.InstalledAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get environment: %w", err)
	}
	return env, nil
}
