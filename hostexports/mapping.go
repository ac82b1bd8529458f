package hostexports

import (
	"context"
	"fmt"
	"sync"

	"github.com/chainspool/indexer/model"
)

// Trigger is one unit of work delivered to a Mapping: either a block
// handler invocation or an event/instruction trigger matched against a
// data source's manifest declarations.
type Trigger struct {
	Handler   string
	Block     model.BlockPtr
	EventData []byte // ABI-decoded event args, JSON-encoded for a language-agnostic boundary
}

// Mapping is the artifact-side contract a deployment's compiled
// mapping code implements. It replaces a wasm sandbox: rather than
// loading untrusted bytecode into a VM, mapping logic is a Go-native
// implementation of this interface, registered ahead of time and
// resolved by the manifest's artifact hash. Every call receives a
// fresh *Bridge, never a shared global, satisfying the "no process-
// wide mutable slot" requirement the wasm design this replaces called
// for.
type Mapping interface {
	HandleTrigger(ctx context.Context, bridge *Bridge, trigger Trigger) error
}

// Registry resolves a manifest's artifact hash to its Mapping
// implementation. One process may host many deployments' mappings.
type Registry struct {
	mu       sync.RWMutex
	mappings map[string]Mapping
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{mappings: map[string]Mapping{}}
}

// Register binds artifactHash to m. Re-registering the same hash with
// a different Mapping is rejected: artifact hashes are content-
// addressed and therefore immutable.
func (r *Registry) Register(artifactHash string, m Mapping) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.mappings[artifactHash]; ok && existing != m {
		return fmt.Errorf("hostexports: artifact %q already registered with a different Mapping", artifactHash)
	}
	r.mappings[artifactHash] = m
	return nil
}

// Resolve looks up the Mapping registered for artifactHash.
func (r *Registry) Resolve(artifactHash string) (Mapping, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.mappings[artifactHash]
	return m, ok
}
