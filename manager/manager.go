// Package manager is the fleet controller (component C9): it watches
// the primary store's deployment directory, places each deployment on
// a shard, and supervises one Runtime per deployment, respawning on
// crash with bounded backoff. Grounded on
// original_source/manager/src/indexer/instance_manager.rs for the
// spawn/supervise/respawn shape and turbo-geth's top-level Download()
// wiring (listen, spawn goroutine, supervise).
package manager

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/chainspool/indexer/external"
	"github.com/chainspool/indexer/indexerrors"
	"github.com/chainspool/indexer/internal/logging"
	"github.com/chainspool/indexer/model"
)

// Runnable is the supervised unit: runtime.Runtime satisfies this, but
// the Manager depends only on the narrow interface so it can be
// supervised without pulling in store/blockstream construction in
// tests.
type Runnable interface {
	Run(ctx context.Context) error
}

// RuntimeFactory builds a Runnable for a newly placed deployment. The
// Manager doesn't know how to build a runtime.Config itself (that
// needs shard routing, manifest hashes, and IPFS wiring owned by the
// caller), so it asks for one through this seam.
type RuntimeFactory func(rec external.DeploymentRecord, shard string, nodes []string) (Runnable, error)

// Manager owns the supervised set of running deployments.
type Manager struct {
	directory external.DeploymentDirectory
	placement external.PlacementPolicy
	build     RuntimeFactory
	log       *logging.Logger

	mu       sync.Mutex
	tasks    map[model.DeploymentHash]*supervisedTask
}

// New constructs a Manager. Run must be called to start discovery.
func New(directory external.DeploymentDirectory, placement external.PlacementPolicy, build RuntimeFactory) *Manager {
	return &Manager{
		directory: directory,
		placement: placement,
		build:     build,
		log:       logging.New("manager"),
		tasks:     make(map[model.DeploymentHash]*supervisedTask),
	}
}

type supervisedTask struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Run lists the current deployment set, spawns a supervised Runtime
// for each, then watches for add/remove notifications until ctx is
// cancelled (spec §4.9: "deployment add/remove is driven by
// primary-store notifications").
func (m *Manager) Run(ctx context.Context) error {
	initial, err := m.directory.ListDeployments(ctx)
	if err != nil {
		return err
	}
	for _, rec := range initial {
		m.spawn(ctx, rec)
	}

	changes, err := m.directory.WatchChanges(ctx)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			m.stopAll()
			return ctx.Err()
		case change, ok := <-changes:
			if !ok {
				m.stopAll()
				return nil
			}
			switch change.Kind {
			case external.DeploymentAdded:
				m.spawn(ctx, change.Record)
			case external.DeploymentRemoved:
				m.stop(change.Record.Hash)
			}
		}
	}
}

// spawn places the deployment and starts its supervised Runtime loop.
// A placement failure is logged and the deployment is skipped rather
// than aborting the whole fleet; the next WatchChanges cycle or a
// manual re-add can retry it.
func (m *Manager) spawn(ctx context.Context, rec external.DeploymentRecord) {
	m.mu.Lock()
	if _, exists := m.tasks[rec.Hash]; exists {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	shard, nodes, err := m.placement.Place(rec.Namespace, rec.Network)
	if err != nil {
		m.log.Error("placement failed, skipping deployment", "deployment", string(rec.Hash), "err", err.Error())
		return
	}

	taskCtx, cancel := context.WithCancel(ctx)
	task := &supervisedTask{cancel: cancel, done: make(chan struct{})}

	m.mu.Lock()
	m.tasks[rec.Hash] = task
	m.mu.Unlock()

	go m.supervise(taskCtx, task, rec, shard, nodes)
}

// supervise runs the deployment's Runtime, respawning it on non-fatal
// failure with exponential backoff capped at 60s (spec §4.9). A
// KindFatal error returned by Run ends supervision for good: an operator must intervene before this deployment runs
// again.
func (m *Manager) supervise(ctx context.Context, task *supervisedTask, rec external.DeploymentRecord, shard string, nodes []string) {
	defer close(task.done)
	defer m.forget(rec.Hash)

	eb := backoff.NewExponentialBackOff()
	eb.MaxElapsedTime = 0 // never give up on its own; only ctx cancellation or a fatal error stops it
	eb.MaxInterval = 60 * time.Second

	for {
		if ctx.Err() != nil {
			return
		}

		rt, err := m.build(rec, shard, nodes)
		if err != nil {
			m.log.Error("failed to build runtime", "deployment", string(rec.Hash), "err", err.Error())
			return
		}

		runErr := rt.Run(ctx)
		if ctx.Err() != nil {
			return
		}
		if runErr == nil {
			return
		}
		if indexerrors.Is(runErr, indexerrors.KindFatal) {
			m.log.Error("runtime failed fatally, not respawning", "deployment", string(rec.Hash), "err", runErr.Error())
			return
		}

		wait := eb.NextBackOff()
		m.log.Warn("runtime exited, respawning", "deployment", string(rec.Hash), "err", runErr.Error(), "backoff", wait.String())
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

func (m *Manager) forget(hash model.DeploymentHash) {
	m.mu.Lock()
	delete(m.tasks, hash)
	m.mu.Unlock()
}

// stop cancels and waits for a single deployment's supervised task.
func (m *Manager) stop(hash model.DeploymentHash) {
	m.mu.Lock()
	task, ok := m.tasks[hash]
	m.mu.Unlock()
	if !ok {
		return
	}
	task.cancel()
	<-task.done
}

// stopAll cancels every running supervised task and waits for each to
// exit, used on Manager shutdown.
func (m *Manager) stopAll() {
	m.mu.Lock()
	tasks := make([]*supervisedTask, 0, len(m.tasks))
	for _, t := range m.tasks {
		tasks = append(tasks, t)
	}
	m.mu.Unlock()
	for _, t := range tasks {
		t.cancel()
		<-t.done
	}
}
