package external

// SingleShardPlacement is the simplest PlacementPolicy: every
// deployment lands on the same configured shard and node set. A
// multi-shard policy (consistent hashing by namespace, least-loaded
// node) is future work; spec §4.9 leaves the policy's internals opaque
// to C9 by design.
type SingleShardPlacement struct {
	Shard string
	Nodes []string
}

// Place always returns the configured shard and node set.
func (p SingleShardPlacement) Place(name, network string) (string, []string, error) {
	return p.Shard, p.Nodes, nil
}
