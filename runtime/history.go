package runtime

import (
	"context"

	"github.com/chainspool/indexer/blockstream"
	"github.com/chainspool/indexer/internal/logging"
)

// HistorySource reconstructs historical blocks for a tracked address,
// the external collaborator a HistoryBackfill task asks for
// signatures/blocks older than the deployment pointer (spec §4.8).
type HistorySource interface {
	FetchRange(ctx context.Context, address []byte, fromBlock, toBlock int32) ([]blockstream.BlockRecord, error)
}

// HistoryBackfill is the parallel task spec §4.8 describes: when the
// first live block's number exceeds the persisted pointer by more than
// one, it requests the missing range and feeds reconstructed blocks to
// the same handler path via a bounded channel. The live loop drains
// this channel before each incoming live batch (spec §5 ordering
// guarantee).
type HistoryBackfill struct {
	source HistorySource
	out    chan blockstream.BlockRecord
	log    *logging.Logger
}

// NewHistoryBackfill constructs a backfill task with a bounded output
// channel; bufSize matches the live loop's batch size so neither side
// blocks the other for long.
func NewHistoryBackfill(source HistorySource, bufSize int) *HistoryBackfill {
	if bufSize <= 0 {
		bufSize = 64
	}
	return &HistoryBackfill{source: source, out: make(chan blockstream.BlockRecord, bufSize), log: logging.New("runtime.history")}
}

// Out is the channel the live loop drains before each live batch.
func (h *HistoryBackfill) Out() <-chan blockstream.BlockRecord { return h.out }

// Run fetches [fromBlock, toBlock) in order and feeds it to Out,
// closing the channel when done or ctx is cancelled.
func (h *HistoryBackfill) Run(ctx context.Context, address []byte, fromBlock, toBlock int32) error {
	defer close(h.out)
	if fromBlock >= toBlock {
		return nil
	}
	records, err := h.source.FetchRange(ctx, address, fromBlock, toBlock)
	if err != nil {
		h.log.Warn("history backfill fetch failed", "from", fromBlock, "to", toBlock, "err", err.Error())
		return err
	}
	for _, rec := range records {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case h.out <- rec:
		}
	}
	return nil
}

// NeedsBackfill reports whether the first live block observed is more
// than one block ahead of the persisted pointer (spec §4.8).
func NeedsBackfill(persistedPointer, firstLiveBlock int32) bool {
	return firstLiveBlock-persistedPointer > 1
}
