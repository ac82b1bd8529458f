package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/chainspool/indexer/internal/logging"
)

// Migration is one ordered, named, idempotent schema change applied to
// a shard database. Adapted from turbo-geth's migrations/migrations.go
// ordered-slice-plus-applied-tracking shape: migrations there skip
// already-applied entries by walking a `dbutils.Migrations` bucket;
// here the equivalent is a `shard_migrations` table row per applied
// name.
type Migration struct {
	Name string
	Up   func(ctx context.Context, tx *sqlx.Tx) error
}

// Migrator applies an ordered Migration list to a shard schema,
// tracking what has already run so Apply is safe to call on every
// process start.
type Migrator struct {
	Migrations []Migration
	log        *logging.Logger
}

// NewMigrator builds a Migrator over an ordered migration list. Order
// matters: migrations apply in slice order, never re-ordered by name.
func NewMigrator(migrations []Migration) *Migrator {
	return &Migrator{Migrations: migrations, log: logging.New("store.migrate")}
}

// Apply runs every not-yet-applied migration against db inside its own
// transaction, recording it in shard_migrations on success. A failed
// migration aborts Apply immediately; nothing after it runs.
func (m *Migrator) Apply(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, `create table if not exists shard_migrations (name text primary key, applied_at timestamptz not null default now())`); err != nil {
		return fmt.Errorf("store: create shard_migrations: %w", err)
	}

	applied := map[string]bool{}
	rows, err := db.QueryContext(ctx, `select name from shard_migrations`)
	if err != nil {
		return fmt.Errorf("store: list applied migrations: %w", err)
	}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return err
		}
		applied[name] = true
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	for _, mig := range m.Migrations {
		if applied[mig.Name] {
			continue
		}
		m.log.Info("applying shard migration", "name", mig.Name)
		tx, err := db.BeginTxx(ctx, nil)
		if err != nil {
			return err
		}
		if err := mig.Up(ctx, tx); err != nil {
			tx.Rollback()
			return fmt.Errorf("store: migration %q: %w", mig.Name, err)
		}
		if _, err := tx.ExecContext(ctx, `insert into shard_migrations (name) values ($1)`, mig.Name); err != nil {
			tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}
