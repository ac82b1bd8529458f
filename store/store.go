package store

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jmoiron/sqlx"

	"github.com/chainspool/indexer/indexerrors"
	"github.com/chainspool/indexer/model"
	"github.com/chainspool/indexer/relational"
	"github.com/chainspool/indexer/schema"
)

// Store implements the three operations of spec §4.5: get, get_many,
// transact_block_operations, against one deployment's shard schema.
type Store struct {
	shard    *ShardPool
	primary  *PrimaryPool
	layout   schema.Layout
	builder  *relational.Builder
	deployment model.DeploymentHash
	maxElapsed time.Duration
}

// New constructs a Store for one deployment. maxElapsed bounds the
// backoff retry wrapped around Get/GetMany (store errors there are
// transient connection faults, not deterministic data errors); <= 0
// selects a 5s default.
func New(shard *ShardPool, primary *PrimaryPool, deployment model.DeploymentHash, layout schema.Layout, builder *relational.Builder, maxElapsed time.Duration) *Store {
	if maxElapsed <= 0 {
		maxElapsed = 5 * time.Second
	}
	return &Store{shard: shard, primary: primary, layout: layout, builder: builder, deployment: deployment, maxElapsed: maxElapsed}
}

func (s *Store) newRetry() backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.MaxElapsedTime = s.maxElapsed
	return eb
}

func tableFor(layout schema.Layout, typ model.EntityType) (schema.Table, bool) {
	return layout.TableByObjectName(string(typ))
}

// Get resolves through the layout, reading the latest-version row
// (spec §4.5 get(key)).
func (s *Store) Get(ctx context.Context, key model.EntityKey) (model.Entity, bool, error) {
	t, ok := tableFor(s.layout, key.Type)
	if !ok {
		return model.Entity{}, false, indexerrors.New(indexerrors.KindFatal, "store: no table for entity type "+string(key.Type))
	}

	var entity model.Entity
	var found bool
	op := func() error {
		q := s.builder.FindQuery(t, key.ID, model.MaxBlockNumber)
		rows, err := s.shard.DB().QueryxContext(ctx, q.SQL, q.Args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		if rows.Next() {
			row := map[string]interface{}{}
			if err := rows.MapScan(row); err != nil {
				return err
			}
			entity, err = relational.RowToEntity(t, row)
			if err != nil {
				return backoff.Permanent(err)
			}
			found = true
		}
		return rows.Err()
	}
	if err := backoff.Retry(op, s.newRetry()); err != nil {
		return model.Entity{}, false, indexerrors.Wrap(indexerrors.KindStore, err, "store: get")
	}
	return entity, found, nil
}

// GetMany performs a batched prefetch grouped by entity type (spec
// §4.5 get_many), and satisfies entitycache.Baseline.
func (s *Store) GetMany(ctx context.Context, deployment model.DeploymentHash, idsByType map[model.EntityType][]string) (map[model.EntityKey]model.Entity, error) {
	tables := map[model.EntityType]schema.Table{}
	for typ := range idsByType {
		t, ok := tableFor(s.layout, typ)
		if !ok {
			return nil, indexerrors.New(indexerrors.KindFatal, "store: no table for entity type "+string(typ))
		}
		tables[typ] = t
	}

	out := map[model.EntityKey]model.Entity{}
	op := func() error {
		q, err := s.builder.FindManyQuery(tables, idsByType, model.MaxBlockNumber)
		if err != nil {
			return backoff.Permanent(err)
		}
		if q.SQL == "" {
			return nil
		}
		rows, err := s.shard.DB().QueryxContext(ctx, q.SQL, q.Args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			row := map[string]interface{}{}
			if err := rows.MapScan(row); err != nil {
				return err
			}
			typName, _ := row["__entity_type"].(string)
			typ := model.EntityType(typName)
			t := tables[typ]
			entity, err := relational.RowToEntity(t, row)
			if err != nil {
				return backoff.Permanent(err)
			}
			id, err := entity.ID()
			if err != nil {
				return backoff.Permanent(err)
			}
			out[model.EntityKey{Deployment: deployment, Type: typ, ID: id}] = entity
		}
		return rows.Err()
	}
	if err := backoff.Retry(op, s.newRetry()); err != nil {
		return nil, indexerrors.Wrap(indexerrors.KindStore, err, "store: get_many")
	}
	return out, nil
}

// groupedMods buckets modifications by kind, then by entity type, in
// the order spec §4.5 processes them: overwrite, insert, remove.
type groupedMods struct {
	overwrite map[model.EntityType][]model.EntityModification
	insert    map[model.EntityType][]model.EntityModification
	remove    map[model.EntityType][]model.EntityModification
}

func groupMods(mods []model.EntityModification) groupedMods {
	g := groupedMods{
		overwrite: map[model.EntityType][]model.EntityModification{},
		insert:    map[model.EntityType][]model.EntityModification{},
		remove:    map[model.EntityType][]model.EntityModification{},
	}
	for _, m := range mods {
		switch m.Kind {
		case model.ModOverwrite:
			g.overwrite[m.Key.Type] = append(g.overwrite[m.Key.Type], m)
		case model.ModInsert:
			g.insert[m.Key.Type] = append(g.insert[m.Key.Type], m)
		case model.ModRemove:
			g.remove[m.Key.Type] = append(g.remove[m.Key.Type], m)
		}
	}
	return g
}

func toRows(mods []model.EntityModification) []relational.Row {
	rows := make([]relational.Row, len(mods))
	for i, m := range mods {
		rows[i] = relational.Row{ID: m.Key.ID, Values: m.Data.Attributes()}
	}
	return rows
}

func ids(mods []model.EntityModification) []string {
	out := make([]string, len(mods))
	for i, m := range mods {
		out[i] = m.Key.ID
	}
	return out
}

// SeedPointer inserts the shard-local deployment_pointer row the first
// time a deployment is loaded, so resume logic always has a row to
// read back. It is a no-op if the row already exists (a respawn or
// process restart must resume from whatever got_block this shard last
// committed, never reset it to the manifest's static start block).
func (s *Store) SeedPointer(ctx context.Context, startBlock int32) error {
	_, err := s.shard.DB().ExecContext(ctx,
		`insert into deployment_pointer (hash, got_block, latest_block_hash, latest_block_number)
		 values ($1, $2, null, $2) on conflict (hash) do nothing`,
		string(s.deployment), startBlock,
	)
	if err != nil {
		return indexerrors.Wrap(indexerrors.KindStore, err, "store: seed deployment pointer")
	}
	return nil
}

// GotBlock reads the shard-local deployment_pointer's committed
// progress, the authoritative resume point for this deployment: it
// reflects every TransactBlockOperations commit, including ones from a
// prior process lifetime the in-memory DeploymentRecord a respawn
// reuses never learns about.
func (s *Store) GotBlock(ctx context.Context) (int32, error) {
	var gotBlock int32
	err := s.shard.DB().GetContext(ctx, &gotBlock,
		`select got_block from deployment_pointer where hash = $1`, string(s.deployment),
	)
	if err != nil {
		return 0, indexerrors.Wrap(indexerrors.KindStore, err, "store: read deployment pointer")
	}
	return gotBlock, nil
}

// TransactBlockOperations applies mods in a single database
// transaction and advances the deployment pointer, per spec §4.5's
// six-step procedure. No partial block is ever visible: any error
// rolls the whole transaction back.
func (s *Store) TransactBlockOperations(ctx context.Context, blockPtrTo model.BlockPtr, mods []model.EntityModification) error {
	g := groupMods(mods)

	err := s.shard.WithTx(ctx, func(tx *sqlx.Tx) error {
		for typ, group := range g.overwrite {
			t, ok := tableFor(s.layout, typ)
			if !ok {
				return indexerrors.New(indexerrors.KindFatal, "store: no table for entity type "+string(typ))
			}
			clamp := s.builder.ClampRangeQuery(t, ids(group), blockPtrTo.Number)
			if _, err := tx.ExecContext(ctx, clamp.SQL, clamp.Args...); err != nil {
				return err
			}
			inserts, err := s.builder.InsertQuery(t, toRows(group), blockPtrTo.Number)
			if err != nil {
				return indexerrors.Wrap(indexerrors.KindDeterministic, err, "store: overwrite insert")
			}
			for _, q := range inserts {
				if _, err := tx.ExecContext(ctx, q.SQL, q.Args...); err != nil {
					return err
				}
			}
		}
		for typ, group := range g.insert {
			t, ok := tableFor(s.layout, typ)
			if !ok {
				return indexerrors.New(indexerrors.KindFatal, "store: no table for entity type "+string(typ))
			}
			inserts, err := s.builder.InsertQuery(t, toRows(group), blockPtrTo.Number)
			if err != nil {
				return indexerrors.Wrap(indexerrors.KindDeterministic, err, "store: insert")
			}
			for _, q := range inserts {
				if _, err := tx.ExecContext(ctx, q.SQL, q.Args...); err != nil {
					return err
				}
			}
		}
		for typ, group := range g.remove {
			t, ok := tableFor(s.layout, typ)
			if !ok {
				return indexerrors.New(indexerrors.KindFatal, "store: no table for entity type "+string(typ))
			}
			clamp := s.builder.ClampRangeQuery(t, ids(group), blockPtrTo.Number)
			if _, err := tx.ExecContext(ctx, clamp.SQL, clamp.Args...); err != nil {
				return err
			}
		}

		_, err := tx.ExecContext(ctx,
			`insert into deployment_pointer (hash, got_block, latest_block_hash, latest_block_number)
			 values ($4, $1, $2, $3)
			 on conflict (hash) do update set
			   got_block = excluded.got_block,
			   latest_block_hash = excluded.latest_block_hash,
			   latest_block_number = excluded.latest_block_number`,
			blockPtrTo.Number, blockPtrTo.Hash, blockPtrTo.Number, string(s.deployment),
		)
		return err
	})
	if err != nil {
		return indexerrors.Wrap(indexerrors.KindStore, err, "store: transact_block_operations")
	}

	// The primary schema's deployment record is updated only after the
	// shard transaction has committed and its connection released, per
	// the never-hold-primary-while-acquiring-shard discipline.
	return s.primary.WithConn(ctx, func(conn *sqlx.Conn) error {
		_, err := conn.ExecContext(ctx,
			`update primary.deployments set got_block = $1, latest_block_hash = $2, latest_block_number = $3 where hash = $4`,
			blockPtrTo.Number, blockPtrTo.Hash, blockPtrTo.Number, string(s.deployment),
		)
		if err != nil {
			return indexerrors.Wrap(indexerrors.KindStore, err, "store: update primary deployment record")
		}
		return nil
	})
}
