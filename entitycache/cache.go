package entitycache

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru"

	"github.com/chainspool/indexer/model"
)

// Baseline is the read-side the cache needs to reconcile a flush
// against: a batched prefetch of persisted entities, grouped by type,
// mirroring IndexerStore.GetMany (spec §4.5). Kept as a narrow
// interface here (rather than importing package store) so entitycache
// has no dependency on the storage layer.
type Baseline interface {
	GetMany(ctx context.Context, deployment model.DeploymentHash, idsByType map[model.EntityType][]string) (map[model.EntityKey]model.Entity, error)
}

// currentEntry distinguishes "confirmed absent" (Present=false) from
// "not yet loaded" (absent from the cache entirely) in the `current`
// view (spec §4.4).
type currentEntry struct {
	present bool
	entity  model.Entity
}

func entrySize(key model.EntityKey, e currentEntry) int {
	size := len(key.Deployment) + len(key.Type) + len(key.ID) + 16
	if !e.present {
		return size
	}
	for _, name := range e.entity.SortedAttributeNames() {
		size += len(name) + 24
		if v, ok := e.entity.Get(name); ok && v.Kind() == model.KindString {
			size += len(v.AsString())
		}
		if v, ok := e.entity.Get(name); ok && v.Kind() == model.KindBytes {
			size += len(v.AsBytes())
		}
	}
	return size
}

// Cache is the per-block write buffer (spec §4.4). A Cache is created
// at runtime start or immediately after a flush, mutated by mapping
// calls within one block and drained by Flush, which clears the pending
// updates and returns the same Cache for the next block.
type Cache struct {
	deployment model.DeploymentHash

	current    *lru.Cache
	currentSz  map[model.EntityKey]int
	totalBytes int
	maxBytes   int

	updates        map[model.EntityKey]Op
	handlerUpdates map[model.EntityKey]Op
	inHandler      bool
}

// NewCache builds an empty Cache bounded by maxBytes (spec §6.5
// ENTITY_CACHE_SIZE, in bytes here; cmd/indexer converts from KB).
func NewCache(deployment model.DeploymentHash, maxBytes int) *Cache {
	// A large nominal capacity: eviction is driven by totalBytes, not
	// by entry count, so the count-based lru.Cache is just the ordered
	// structure RemoveOldest() walks.
	backing, err := lru.New(1 << 20)
	if err != nil {
		panic(err) // only fails for non-positive size, which 1<<20 never is
	}
	return &Cache{
		deployment:     deployment,
		current:        backing,
		currentSz:      make(map[model.EntityKey]int),
		maxBytes:       maxBytes,
		updates:        make(map[model.EntityKey]Op),
		handlerUpdates: make(map[model.EntityKey]Op),
	}
}

// PreloadCurrent seeds the current view across a flush boundary, so a
// cache hit from a prior block survives into the next one (spec §3.3).
func (c *Cache) PreloadCurrent(key model.EntityKey, entity *model.Entity) {
	c.setCurrent(key, entity)
}

func (c *Cache) setCurrent(key model.EntityKey, entity *model.Entity) {
	entry := currentEntry{present: entity != nil}
	if entity != nil {
		entry.entity = *entity
	}
	if old, ok := c.current.Peek(key); ok {
		c.totalBytes -= entrySize(key, old.(currentEntry))
	}
	c.current.Add(key, entry)
	size := entrySize(key, entry)
	c.currentSz[key] = size
	c.totalBytes += size
	c.evictOverBudget()
}

func (c *Cache) evictOverBudget() {
	for c.totalBytes > c.maxBytes && c.current.Len() > 0 {
		k, v, ok := c.current.RemoveOldest()
		if !ok {
			return
		}
		key := k.(model.EntityKey)
		c.totalBytes -= entrySize(key, v.(currentEntry))
		delete(c.currentSz, key)
	}
}

// CurrentGet returns the cached view for key: (entity, true, true) if
// present, (zero, false, true) if confirmed absent, (zero, false,
// false) if unknown (must be loaded from the store).
func (c *Cache) CurrentGet(key model.EntityKey) (model.Entity, bool, bool) {
	v, ok := c.current.Get(key)
	if !ok {
		return model.Entity{}, false, false
	}
	entry := v.(currentEntry)
	return entry.entity, entry.present, true
}

// --- Handler framing (spec §4.4) ---

// EnterHandler asserts no nested handler is live and opens a fresh
// scratch space for the handler about to run.
func (c *Cache) EnterHandler() error {
	if c.inHandler {
		return fmt.Errorf("entitycache: handler already in progress")
	}
	c.inHandler = true
	c.handlerUpdates = make(map[model.EntityKey]Op)
	return nil
}

// ExitHandler promotes handler_updates into updates on handler success.
func (c *Cache) ExitHandler() {
	for k, op := range c.handlerUpdates {
		if existing, ok := c.updates[k]; ok {
			c.updates[k] = existing.Accumulate(op)
		} else {
			c.updates[k] = op
		}
	}
	c.handlerUpdates = make(map[model.EntityKey]Op)
	c.inHandler = false
}

// ExitHandlerAndDiscardChanges drops handler_updates, used when the
// mapping handler fails deterministically so the cache remains
// consistent with "this handler never ran" (spec §4.4, §4.6).
func (c *Cache) ExitHandlerAndDiscardChanges() {
	c.handlerUpdates = make(map[model.EntityKey]Op)
	c.inHandler = false
}

// --- Mapping-facing mutators (invoked through the host bridge, C6) ---

func (c *Cache) scratch() map[model.EntityKey]Op {
	if c.inHandler {
		return c.handlerUpdates
	}
	return c.updates
}

// Set accumulates an Update op for key (store.set).
func (c *Cache) Set(key model.EntityKey, data model.Entity) {
	m := c.scratch()
	next := UpdateOp(data)
	if existing, ok := m[key]; ok {
		m[key] = existing.Accumulate(next)
	} else {
		m[key] = next
	}
}

// Overwrite accumulates an Overwrite op for key.
func (c *Cache) Overwrite(key model.EntityKey, data model.Entity) {
	m := c.scratch()
	next := OverwriteOp(data)
	if existing, ok := m[key]; ok {
		m[key] = existing.Accumulate(next)
	} else {
		m[key] = next
	}
}

// Remove accumulates a Remove op for key (store.remove).
func (c *Cache) Remove(key model.EntityKey) {
	m := c.scratch()
	m[key] = RemoveOp()
}

// Get resolves key through the handler's own pending writes first (a
// handler must see its own writes within the same block), then the
// finalized updates, then the current view, matching the read-through
// semantics mapping code expects from store.get.
func (c *Cache) Get(key model.EntityKey) (model.Entity, bool) {
	base, present, known := c.CurrentGet(key)
	var cur *model.Entity
	if known && present {
		cur = &base
	}
	if op, ok := c.updates[key]; ok {
		cur = op.ApplyTo(cur)
	}
	if c.inHandler {
		if op, ok := c.handlerUpdates[key]; ok {
			cur = op.ApplyTo(cur)
		}
	}
	if cur == nil {
		return model.Entity{}, false
	}
	return *cur, true
}

// ModificationsAndCache is the result of Flush: the modifications to
// apply transactionally, and the cache's updated `current` view for the
// caller to carry into the next block (spec §4.4).
type ModificationsAndCache struct {
	Modifications []model.EntityModification
	Cache         *Cache
}

// Flush computes the minimal EntityModification list for everything
// touched this block (spec §4.4 as_modifications), then returns an
// updated Cache whose `current` reflects the new state so the caller
// can carry it into the next block.
func (c *Cache) Flush(ctx context.Context, baseline Baseline) (ModificationsAndCache, error) {
	if len(c.updates) == 0 {
		return ModificationsAndCache{Cache: c}, nil
	}

	idsByType := map[model.EntityType][]string{}
	needsLoad := map[model.EntityKey]bool{}
	for key := range c.updates {
		if _, _, known := c.CurrentGet(key); !known {
			idsByType[key.Type] = append(idsByType[key.Type], key.ID)
			needsLoad[key] = true
		}
	}
	if len(needsLoad) > 0 {
		loaded, err := baseline.GetMany(ctx, c.deployment, idsByType)
		if err != nil {
			return ModificationsAndCache{}, fmt.Errorf("entitycache: baseline load failed: %w", err)
		}
		for key := range needsLoad {
			if e, ok := loaded[key]; ok {
				ec := e
				c.setCurrent(key, &ec)
			} else {
				c.setCurrent(key, nil)
			}
		}
	}

	var mods []model.EntityModification
	for key, op := range c.updates {
		_, present, _ := c.CurrentGet(key)
		var baselineEntity *model.Entity
		if present {
			be, _, _ := c.CurrentGet(key)
			baselineEntity = &be
		}
		next := op.ApplyTo(baselineEntity)

		switch {
		case baselineEntity == nil && next == nil:
			// no-op
		case baselineEntity == nil && next != nil:
			clean := next.RemoveNullFields()
			mods = append(mods, model.Insert(key, clean))
			c.setCurrent(key, &clean)
		case baselineEntity != nil && next == nil:
			mods = append(mods, model.Remove(key))
			c.setCurrent(key, nil)
		default:
			clean := next.RemoveNullFields()
			if !baselineEntity.Equal(clean) {
				mods = append(mods, model.Overwrite(key, clean))
				c.setCurrent(key, &clean)
			}
		}
	}

	c.updates = make(map[model.EntityKey]Op)
	return ModificationsAndCache{Modifications: mods, Cache: c}, nil
}
