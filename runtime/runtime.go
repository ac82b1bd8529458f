package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/chainspool/indexer/blockstream"
	"github.com/chainspool/indexer/entitycache"
	"github.com/chainspool/indexer/external"
	"github.com/chainspool/indexer/hostexports"
	"github.com/chainspool/indexer/indexerrors"
	"github.com/chainspool/indexer/internal/logging"
	"github.com/chainspool/indexer/model"
	"github.com/chainspool/indexer/relational"
	"github.com/chainspool/indexer/schema"
	"github.com/chainspool/indexer/store"
)

// Config assembles everything one deployment's Runtime needs. The
// Manager (component C9) constructs one Config per deployment it
// discovers and spawns a Runtime from it.
type Config struct {
	Deployment   model.DeploymentHash
	Namespace    string
	ManifestHash string
	ChainTarget  string // blockstream.Dial target for the data source's chain

	IPFS     external.IPFSFetcher
	Registry *hostexports.Registry
	Shard    *store.ShardPool
	Primary  *store.PrimaryPool

	EntityCacheBytes int
	History          HistorySource // nil disables backfill entirely

	// ResumeFrom is the deployment's committed got_block at spawn time
	// (external.DeploymentRecord.GotBlock), used only to seed the
	// shard-local deployment_pointer row the first time this deployment
	// is ever loaded. Every subsequent resume, including a same-process
	// respawn after a crash, reads the authoritative value back out of
	// that row instead (spec §4.8 "resumed from got_block + 1").
	ResumeFrom int32
}

// Runtime drives one deployment through the state machine of spec
// §4.8: Resolving fetches and compiles the manifest/schema; Loaded
// constructs the store, cache and mapping; Streaming feeds blocks
// through the mapping handlers and flushes modifications each block.
// Grounded on turbo-geth's header-downloader select-loop shape and
// original_source/indexer-manager/src/manager/runtime.rs.
type Runtime struct {
	cfg Config
	log *logging.Logger

	mu    sync.RWMutex
	state State
	err   error

	manifest      Manifest
	layout        schema.Layout
	builder       *relational.Builder
	st            *store.Store
	cache         *entitycache.Cache
	mapping       hostexports.Mapping
	stream        *blockstream.Client
	resumeBlock   int32
	activeSources []DataSourceManifest
}

// New constructs a Runtime in StateCreated. Run must be called to
// drive it forward.
func New(cfg Config) *Runtime {
	return &Runtime{cfg: cfg, log: logging.New("runtime").With("deployment", string(cfg.Deployment)), state: StateCreated}
}

// State reports the current step of the state machine.
func (r *Runtime) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

func (r *Runtime) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

func (r *Runtime) setFailed(s State, err error) {
	r.mu.Lock()
	r.state = s
	r.err = err
	r.mu.Unlock()
}

// Run drives the deployment from Created through Streaming until ctx
// is cancelled or a non-resolve error ends it for good. A
// KindResolve error re-enters Resolving on a timer rather than
// returning, since a transient manifest fetch fault must not be
// mistaken for a permanently broken deployment (spec §7).
func (r *Runtime) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := r.resolve(ctx); err != nil {
			if indexerrors.Is(err, indexerrors.KindResolve) {
				r.setFailed(StateResolveFailed, err)
				r.log.Warn("resolve failed, retrying", "err", err.Error())
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(30 * time.Second):
				}
				continue
			}
			r.setFailed(StateFatal, err)
			return err
		}
		break
	}

	if err := r.load(ctx); err != nil {
		r.setFailed(StateFatal, err)
		return err
	}

	return r.streamLoop(ctx)
}

// resolve fetches the manifest, schema and mapping artifact by
// content hash and compiles the schema into a relational Layout (spec
// §4.8 Resolving -> Verified).
func (r *Runtime) resolve(ctx context.Context) error {
	r.setState(StateResolving)

	raw, err := r.cfg.IPFS.CatAll(ctx, r.cfg.ManifestHash, 1<<20)
	if err != nil {
		return indexerrors.Wrap(indexerrors.KindResolve, err, "runtime: fetch manifest")
	}
	var m Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return indexerrors.Wrap(indexerrors.KindResolve, err, "runtime: parse manifest")
	}
	if err := m.Validate(); err != nil {
		return indexerrors.Wrap(indexerrors.KindResolve, err, "runtime: validate manifest")
	}

	ds := m.PrimaryDataSource()
	schemaSrc, err := r.cfg.IPFS.CatAll(ctx, ds.Mapping.SchemaHash, 1<<20)
	if err != nil {
		return indexerrors.Wrap(indexerrors.KindResolve, err, "runtime: fetch schema")
	}
	doc, err := schema.ParseAndValidate(string(schemaSrc))
	if err != nil {
		return indexerrors.Wrap(indexerrors.KindResolve, err, "runtime: parse/validate schema")
	}
	layout, err := schema.Compile(doc)
	if err != nil {
		return indexerrors.Wrap(indexerrors.KindResolve, err, "runtime: compile schema")
	}

	mapping, ok := r.cfg.Registry.Resolve(ds.Mapping.ArtifactHash)
	if !ok {
		return indexerrors.New(indexerrors.KindResolve, fmt.Sprintf("runtime: no mapping registered for artifact %q", ds.Mapping.ArtifactHash))
	}

	r.mu.Lock()
	r.manifest = m
	r.layout = layout
	r.mapping = mapping
	r.mu.Unlock()
	r.setState(StateVerified)
	return nil
}

// load constructs the store, builder and entity cache for the
// verified layout (spec §4.8 Verified -> Loaded).
func (r *Runtime) load(ctx context.Context) error {
	r.mu.RLock()
	layout := r.layout
	manifest := r.manifest
	r.mu.RUnlock()
	ds := manifest.PrimaryDataSource()

	migrator := store.NewMigrator(store.BootstrapMigrations(layout))
	if err := migrator.Apply(ctx, r.cfg.Shard.DB()); err != nil {
		return indexerrors.Wrap(indexerrors.KindStore, err, "runtime: apply shard migrations")
	}

	builder := relational.NewBuilder(relational.DefaultMaxParams)
	st := store.New(r.cfg.Shard, r.cfg.Primary, r.cfg.Deployment, layout, builder, 10*time.Second)

	seedFrom := r.cfg.ResumeFrom
	if seedFrom <= 0 {
		seedFrom = ds.StartBlock
	}
	if err := st.SeedPointer(ctx, seedFrom); err != nil {
		return indexerrors.Wrap(indexerrors.KindStore, err, "runtime: seed deployment pointer")
	}
	gotBlock, err := st.GotBlock(ctx)
	if err != nil {
		return indexerrors.Wrap(indexerrors.KindStore, err, "runtime: read deployment pointer")
	}
	resumeBlock := ds.StartBlock
	if gotBlock > 0 {
		resumeBlock = gotBlock + 1
	}

	cacheBytes := r.cfg.EntityCacheBytes
	if cacheBytes <= 0 {
		cacheBytes = 16 << 20
	}
	cache := entitycache.NewCache(r.cfg.Deployment, cacheBytes)

	stream, err := blockstream.Dial(ctx, blockstream.DefaultConfig(r.cfg.ChainTarget))
	if err != nil {
		return indexerrors.Wrap(indexerrors.KindStore, err, "runtime: dial block stream")
	}

	r.mu.Lock()
	r.builder = builder
	r.st = st
	r.cache = cache
	r.stream = stream
	r.resumeBlock = resumeBlock
	r.activeSources = []DataSourceManifest{ds}
	r.mu.Unlock()
	r.setState(StateLoaded)
	return nil
}

// streamLoop drives blocks through the mapping handlers and flushes
// accumulated modifications through the store each block (spec §4.8
// Loaded -> Streaming <-> Reconnecting). It never returns on its own
// for a possible-reorg fault: blockstream.Client.Run already retries
// those internally, so a non-nil return here is always KindFatal,
// KindStore, or ctx cancellation.
func (r *Runtime) streamLoop(ctx context.Context) error {
	r.setState(StateStreaming)

	r.mu.RLock()
	manifest := r.manifest
	resumeBlock := r.resumeBlock
	r.mu.RUnlock()
	ds := manifest.PrimaryDataSource()

	// blockstream.Client.Run retries any handler error as a stream
	// reconnect forever, which is correct for KindPossibleReorg but
	// wrong for KindStore/KindFatal: those must stop this runtime, not
	// just the stream. streamCtx is cancelled the moment handle()
	// observes one of those, so Run's retry loop exits immediately and
	// the stored error, not ctx.Err(), is what streamLoop returns.
	streamCtx, stopStream := context.WithCancel(ctx)
	defer stopStream()
	var haltErr error
	var haltOnce sync.Once
	halt := func(err error) {
		haltOnce.Do(func() {
			haltErr = err
			stopStream()
		})
	}

	var backlog <-chan blockstream.BlockRecord
	firstBlock := true

	handle := func(ctx context.Context, rec blockstream.BlockRecord) error {
		if firstBlock {
			firstBlock = false
			// Empty-filter deployments have no tracked address to replay
			// history for; backfill is skipped entirely in that case
			// (spec's explicit resolution of the empty-filter edge case).
			if r.cfg.History != nil && len(ds.Address) > 0 && NeedsBackfill(resumeBlock-1, rec.Number) {
				bf := NewHistoryBackfill(r.cfg.History, 64)
				backlog = bf.Out()
				go func() {
					if err := bf.Run(context.Background(), ds.Address, resumeBlock, rec.Number); err != nil {
						r.log.Warn("history backfill failed", "err", err.Error())
					}
				}()
			}
		}
		if backlog != nil {
			for drained := true; drained; {
				select {
				case histRec, ok := <-backlog:
					if !ok {
						backlog = nil
						drained = false
						continue
					}
					if err := r.handleBlock(ctx, histRec); err != nil {
						if !indexerrors.Is(err, indexerrors.KindPossibleReorg) {
							halt(err)
						}
						return err
					}
				default:
					drained = false
				}
			}
		}
		if err := r.handleBlock(ctx, rec); err != nil {
			if !indexerrors.Is(err, indexerrors.KindPossibleReorg) {
				halt(err)
			}
			return err
		}
		return nil
	}

	err := r.stream.Run(streamCtx, r.cfg.Deployment, manifest.ChainKind, ds.Network, ds.Address, resumeBlock, handle)
	if haltErr != nil {
		return haltErr
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return indexerrors.Wrap(indexerrors.KindFatal, err, "runtime: block stream ended")
}

// BlockSummary is the per-block operator-visibility record logged at
// commit: how many triggers matched this block's data source and how
// many entity modifications the handlers produced.
type BlockSummary struct {
	Block            model.BlockPtr
	TriggersMatched  int
	EntitiesModified int
}

// handleBlock frames one block through the entity cache, invokes every
// active data source's block handlers (the manifest's primary source
// plus any dynamic ones instantiated by an earlier block's
// dataSource.create), and flushes the resulting modifications
// transactionally (spec §4.4, §4.6). Once the block commits, any
// dataSource.create calls queued during this block are instantiated
// against the matching manifest template and added to the active set
// for the next block — never before commit, so a rolled-back block
// never leaves behind a data source with no corresponding entities.
func (r *Runtime) handleBlock(ctx context.Context, rec blockstream.BlockRecord) error {
	r.mu.RLock()
	cache := r.cache
	mapping := r.mapping
	st := r.st
	manifest := r.manifest
	sources := append([]DataSourceManifest(nil), r.activeSources...)
	r.mu.RUnlock()

	blockPtr := model.BlockPtr{Hash: rec.Hash, Number: rec.Number}
	triggersMatched := 0
	var pending []hostexports.DynamicDataSourceRequest

	for _, ds := range sources {
		bridge := hostexports.NewBridge(cache, ds.Name, ds.Address, ds.Network, ds.Context, r.log)
		for _, bh := range ds.Mapping.BlockHandlers {
			if err := cache.EnterHandler(); err != nil {
				return indexerrors.Wrap(indexerrors.KindFatal, err, "runtime: enter handler")
			}
			trigger := hostexports.Trigger{Handler: bh.Handler, Block: blockPtr}
			triggersMatched++
			err := mapping.HandleTrigger(ctx, bridge, trigger)
			if err != nil && indexerrors.Is(err, indexerrors.KindDeterministic) {
				r.log.Warn("deterministic handler failure, discarding handler writes", "handler", bh.Handler, "block", blockPtr.Number, "err", err.Error())
				cache.ExitHandlerAndDiscardChanges()
				continue
			}
			if err != nil {
				cache.ExitHandlerAndDiscardChanges()
				return err
			}
			cache.ExitHandler()
		}
		pending = append(pending, bridge.DrainPendingDataSources()...)
	}

	result, err := cache.Flush(ctx, st)
	if err != nil {
		return indexerrors.Wrap(indexerrors.KindStore, err, "runtime: flush cache")
	}
	if err := st.TransactBlockOperations(ctx, blockPtr, result.Modifications); err != nil {
		return err
	}

	blocksCommittedTotal.Inc()
	summary := BlockSummary{Block: blockPtr, TriggersMatched: triggersMatched, EntitiesModified: len(result.Modifications)}
	r.log.Info("block committed", "block", summary.Block.Number, "triggers_matched", summary.TriggersMatched, "entities_modified", summary.EntitiesModified)

	r.mu.Lock()
	r.cache = result.Cache
	for _, req := range pending {
		tmpl, ok := manifest.TemplateByName(req.TemplateName)
		if !ok {
			r.log.Warn("dataSource.create: unknown template, skipping", "template", req.TemplateName, "id", req.ID)
			continue
		}
		r.activeSources = append(r.activeSources, DataSourceManifest{
			Name:       tmpl.Name + "#" + req.ID,
			Network:    tmpl.Network,
			Address:    req.Address,
			StartBlock: blockPtr.Number,
			ABIs:       tmpl.ABIs,
			Mapping:    tmpl.Mapping,
			Context:    req.Context,
		})
		r.log.Info("dynamic data source instantiated", "template", tmpl.Name, "id", req.ID, "block", blockPtr.Number)
	}
	r.mu.Unlock()
	return nil
}
