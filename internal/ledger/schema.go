package ledger

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
)

// schema.sql always describes the latest layout; migrations carry older
// ledgers forward one version at a time.
//
//go:embed schema.sql
var schemaSQL string

const schemaVersion = 2

// migrations[v] upgrades a version v-1 ledger to v.
var migrations = map[int][]string{
	2: {
		"ALTER TABLE conversions ADD COLUMN batch_id TEXT",
		"ALTER TABLE conversions ADD COLUMN signal TEXT",
		"CREATE INDEX idx_conversions_batch ON conversions(batch_id)",
	},
}

// ErrSchemaMismatch is returned for a ledger written by a newer omrpipe.
var ErrSchemaMismatch = errors.New("schema version mismatch")

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	switch {
	case version == schemaVersion:
		return nil
	case version > schemaVersion || version < 1:
		return fmt.Errorf("%w: %s has version %d, this build reads up to %d",
			ErrSchemaMismatch, s.path, version, schemaVersion)
	default:
		return s.migrate(ctx, version)
	}
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create ledger tables: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	return tx.Commit()
}

// migrate applies every step after from in one transaction, so a failed
// upgrade leaves the ledger at its old version.
func (s *Store) migrate(ctx context.Context, from int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for version := from + 1; version <= schemaVersion; version++ {
		for _, stmt := range migrations[version] {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("migrate ledger to version %d: %w", version, err)
			}
		}
	}
	if _, err := tx.ExecContext(ctx, "UPDATE schema_version SET version = ?", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration: %w", err)
	}
	return nil
}
