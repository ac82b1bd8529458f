package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/chainspool/indexer/schema"
)

// BootstrapMigrations builds the ordered Migration list a freshly
// placed deployment's shard needs: the deployment_pointer row store.go
// updates every block, then one migration per entity table in layout
// (spec §3.1/§4.2 table-per-entity-type).
func BootstrapMigrations(layout schema.Layout) []Migration {
	migrations := []Migration{
		{
			Name: "0001_deployment_pointer",
			Up: func(ctx context.Context, tx *sqlx.Tx) error {
				_, err := tx.ExecContext(ctx, `create table if not exists deployment_pointer (
					hash text primary key,
					got_block integer not null default 0,
					latest_block_hash bytea,
					latest_block_number integer not null default 0
				)`)
				return err
			},
		},
	}
	for i, t := range layout.Tables {
		stmts := schema.Layout{Tables: []schema.Table{t}, Enums: layout.Enums}.CreateTableStatements()
		migrations = append(migrations, Migration{
			Name: fmt.Sprintf("0002_entity_table_%02d", i),
			Up: func(ctx context.Context, tx *sqlx.Tx) error {
				for _, stmt := range stmts {
					if _, err := tx.ExecContext(ctx, stmt); err != nil {
						return err
					}
				}
				return nil
			},
		})
	}
	return migrations
}
