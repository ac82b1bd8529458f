package manager

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chainspool/indexer/external"
	"github.com/chainspool/indexer/indexerrors"
	"github.com/chainspool/indexer/model"
)

type fakeDirectory struct {
	initial []external.DeploymentRecord
	changes chan external.DeploymentChange
}

func (f *fakeDirectory) ListDeployments(ctx context.Context) ([]external.DeploymentRecord, error) {
	return f.initial, nil
}

func (f *fakeDirectory) WatchChanges(ctx context.Context) (<-chan external.DeploymentChange, error) {
	return f.changes, nil
}

type fixedPlacement struct{}

func (fixedPlacement) Place(name, network string) (string, []string, error) {
	return "shard-1", []string{"node-1"}, nil
}

type failingPlacement struct{}

func (failingPlacement) Place(name, network string) (string, []string, error) {
	return "", nil, errors.New("no capacity")
}

type fakeRunnable struct {
	runs   int32
	err    error
	blockC chan struct{}
}

func (r *fakeRunnable) Run(ctx context.Context) error {
	atomic.AddInt32(&r.runs, 1)
	if r.blockC != nil {
		<-r.blockC
	}
	return r.err
}

func TestManagerSpawnsAndStopsOnRemoval(t *testing.T) {
	dep := external.DeploymentRecord{Hash: model.DeploymentHash("Qm1")}
	dir := &fakeDirectory{initial: []external.DeploymentRecord{dep}, changes: make(chan external.DeploymentChange, 1)}
	runnable := &fakeRunnable{blockC: make(chan struct{})}

	m := New(dir, fixedPlacement{}, func(rec external.DeploymentRecord, shard string, nodes []string) (Runnable, error) {
		require.Equal(t, "shard-1", shard)
		return runnable, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&runnable.runs) == 1
	}, time.Second, 5*time.Millisecond)

	dir.changes <- external.DeploymentChange{Kind: external.DeploymentRemoved, Record: dep}
	close(runnable.blockC)

	require.Eventually(t, func() bool {
		m.mu.Lock()
		defer m.mu.Unlock()
		_, exists := m.tasks[dep.Hash]
		return !exists
	}, time.Second, 5*time.Millisecond)
}

func TestManagerSkipsDeploymentOnPlacementFailure(t *testing.T) {
	dep := external.DeploymentRecord{Hash: model.DeploymentHash("Qm2")}
	dir := &fakeDirectory{initial: []external.DeploymentRecord{dep}, changes: make(chan external.DeploymentChange)}
	called := false

	m := New(dir, failingPlacement{}, func(rec external.DeploymentRecord, shard string, nodes []string) (Runnable, error) {
		called = true
		return nil, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	time.Sleep(20 * time.Millisecond)
	require.False(t, called)
	m.mu.Lock()
	require.Empty(t, m.tasks)
	m.mu.Unlock()
}

func TestManagerRespawnsOnNonFatalError(t *testing.T) {
	dep := external.DeploymentRecord{Hash: model.DeploymentHash("Qm3")}
	dir := &fakeDirectory{initial: []external.DeploymentRecord{dep}, changes: make(chan external.DeploymentChange)}
	runnable := &fakeRunnable{err: indexerrors.New(indexerrors.KindStore, "connection reset")}

	m := New(dir, fixedPlacement{}, func(rec external.DeploymentRecord, shard string, nodes []string) (Runnable, error) {
		return runnable, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&runnable.runs) >= 2
	}, 2*time.Second, 5*time.Millisecond)
}

func TestManagerDoesNotRespawnOnFatalError(t *testing.T) {
	dep := external.DeploymentRecord{Hash: model.DeploymentHash("Qm4")}
	dir := &fakeDirectory{initial: []external.DeploymentRecord{dep}, changes: make(chan external.DeploymentChange)}
	runnable := &fakeRunnable{err: indexerrors.New(indexerrors.KindFatal, "invariant violated")}

	m := New(dir, fixedPlacement{}, func(rec external.DeploymentRecord, shard string, nodes []string) (Runnable, error) {
		return runnable, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	time.Sleep(100 * time.Millisecond)
	require.EqualValues(t, 1, atomic.LoadInt32(&runnable.runs))
}
