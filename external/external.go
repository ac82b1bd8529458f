// Package external names the interfaces to collaborators outside this
// module's process boundary (spec §6): content-addressed artifact
// fetch and the primary metadata store's deployment discovery feed.
// Concrete implementations are wired at cmd/indexer/main.go.
package external

import (
	"context"

	"github.com/chainspool/indexer/model"
)

// IPFSFetcher is the single content-addressed fetch operation of spec
// §6.3. sizeLimit <= 0 means unbounded.
type IPFSFetcher interface {
	CatAll(ctx context.Context, hash string, sizeLimit int64) ([]byte, error)
}

// DeploymentRecord is one row of the primary metadata schema (spec
// §6.2): a deployment's identity and progress pointer.
type DeploymentRecord struct {
	Hash              model.DeploymentHash
	Namespace         string
	Network           string
	GotBlock          int32
	LatestBlockHash   []byte
	LatestBlockNumber int32
}

// DeploymentDirectory enumerates and watches deployments known to the
// primary store, the feed component C9 discovers from (spec §4.9:
// "deployment add/remove is driven by primary-store notifications").
type DeploymentDirectory interface {
	ListDeployments(ctx context.Context) ([]DeploymentRecord, error)
	WatchChanges(ctx context.Context) (<-chan DeploymentChange, error)
}

// DeploymentChangeKind tags a DeploymentDirectory notification.
type DeploymentChangeKind int

const (
	DeploymentAdded DeploymentChangeKind = iota
	DeploymentRemoved
)

// DeploymentChange is one notification from WatchChanges.
type DeploymentChange struct {
	Kind   DeploymentChangeKind
	Record DeploymentRecord
}

// PlacementPolicy is the opaque `place(name, network) -> (shard,
// nodes)` policy spec §4.9 hands deployment placement to.
type PlacementPolicy interface {
	Place(name, network string) (shard string, nodes []string, err error)
}
