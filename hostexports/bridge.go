package hostexports

import (
	"github.com/google/uuid"

	"github.com/chainspool/indexer/entitycache"
	"github.com/chainspool/indexer/indexerrors"
	"github.com/chainspool/indexer/internal/logging"
	"github.com/chainspool/indexer/model"
)

// LogLevel names the severity `log.log` is called with (spec §4.6).
type LogLevel int

const (
	LogDebug LogLevel = iota
	LogInfo
	LogWarning
	LogError
	LogCritical
)

// DynamicDataSourceRequest is what `dataSource.create`/
// `dataSource.createWithContext` enqueues: a new data source to be
// instantiated after the current block commits (spec §4.6). ID
// distinguishes multiple instances created from the same template in
// the same or different blocks (e.g. one per factory-deployed
// contract), generated fresh per request rather than derived from
// TemplateName+Address so re-creating the same address is never
// silently deduplicated.
type DynamicDataSourceRequest struct {
	ID           string
	TemplateName string
	Address      []byte
	Context      map[string]model.Value
}

// Bridge is the per-invocation context object every mapping handler
// call receives fresh: store access scoped to one EntityCache, a
// per-block call cache, a pending dynamic-data-source queue, and the
// data source's own name/address/network/context (spec §4.6, §9 "no
// process-wide mutable slot").
type Bridge struct {
	Cache              *entitycache.Cache
	Calls              *CallCache
	DataSourceName     string
	DataSourceAddress  []byte
	DataSourceNetwork  string
	DataSourceContext  map[string]model.Value
	log                *logging.Logger

	pendingDataSources []DynamicDataSourceRequest
}

// NewBridge constructs a Bridge scoped to one handler invocation.
func NewBridge(cache *entitycache.Cache, dsName string, dsAddress []byte, dsNetwork string, dsContext map[string]model.Value, log *logging.Logger) *Bridge {
	return &Bridge{
		Cache:             cache,
		Calls:             NewCallCache(),
		DataSourceName:    dsName,
		DataSourceAddress: dsAddress,
		DataSourceNetwork: dsNetwork,
		DataSourceContext: dsContext,
		log:               log,
	}
}

// StoreGet reads through the cache (spec §4.6 store.get).
func (b *Bridge) StoreGet(entityType model.EntityType, id string, deployment model.DeploymentHash) (model.Entity, bool) {
	return b.Cache.Get(model.EntityKey{Deployment: deployment, Type: entityType, ID: id})
}

// StoreSet issues Update(data) after enforcing data.id == id or absent
// (spec §4.6 store.set).
func (b *Bridge) StoreSet(entityType model.EntityType, id string, deployment model.DeploymentHash, data model.Entity) error {
	if existingID, ok := data.Get("id"); ok && !existingID.IsNull() {
		if existingID.Kind() != model.KindString || existingID.AsString() != id {
			return indexerrors.New(indexerrors.KindDeterministic, "hostexports: store.set: data.id does not match id")
		}
	} else {
		data = data.Insert("id", model.NewString(id))
	}
	b.Cache.Set(model.EntityKey{Deployment: deployment, Type: entityType, ID: id}, data)
	return nil
}

// StoreRemove issues Remove (spec §4.6 store.remove).
func (b *Bridge) StoreRemove(entityType model.EntityType, id string, deployment model.DeploymentHash) {
	b.Cache.Remove(model.EntityKey{Deployment: deployment, Type: entityType, ID: id})
}

// Log dispatches a structured log line at the named level; critical is
// a fatal deterministic error that aborts the current handler (spec
// §4.6 log.log).
func (b *Bridge) Log(level LogLevel, msg string) error {
	switch level {
	case LogDebug:
		b.log.Debug(msg)
	case LogInfo:
		b.log.Info(msg)
	case LogWarning:
		b.log.Warn(msg)
	case LogError:
		b.log.Error(msg)
	case LogCritical:
		b.log.Error(msg, "level", "critical")
		return indexerrors.New(indexerrors.KindDeterministic, "hostexports: log.log(critical): "+msg)
	}
	return nil
}

// DataSourceCreate enqueues a dynamic data source, to be instantiated
// after the current block commits (spec §4.6 dataSource.create).
func (b *Bridge) DataSourceCreate(templateName string, address []byte) {
	b.pendingDataSources = append(b.pendingDataSources, DynamicDataSourceRequest{ID: uuid.New().String(), TemplateName: templateName, Address: address})
}

// DataSourceCreateWithContext is DataSourceCreate plus an attached
// context map (spec §4.6 dataSource.createWithContext).
func (b *Bridge) DataSourceCreateWithContext(templateName string, address []byte, context map[string]model.Value) {
	b.pendingDataSources = append(b.pendingDataSources, DynamicDataSourceRequest{ID: uuid.New().String(), TemplateName: templateName, Address: address, Context: context})
}

// DataSourceAddressExport is the dataSource.address export.
func (b *Bridge) DataSourceAddressExport() []byte { return b.DataSourceAddress }

// DataSourceNetworkExport is the dataSource.network export.
func (b *Bridge) DataSourceNetworkExport() string { return b.DataSourceNetwork }

// DataSourceContextExport is the dataSource.context export.
func (b *Bridge) DataSourceContextExport() map[string]model.Value { return b.DataSourceContext }

// DrainPendingDataSources returns and clears the queued dynamic data
// sources. The runtime drains it after a data source's handlers for a
// block have run, before the block is flushed, and instantiates the
// drained requests only after the block has committed.
func (b *Bridge) DrainPendingDataSources() []DynamicDataSourceRequest {
	pending := b.pendingDataSources
	b.pendingDataSources = nil
	return pending
}
