package runtime

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chainspool/indexer/blockstream"
)

type fakeHistorySource struct {
	records []blockstream.BlockRecord
}

func (f fakeHistorySource) FetchRange(ctx context.Context, address []byte, from, to int32) ([]blockstream.BlockRecord, error) {
	return f.records, nil
}

func TestHistoryBackfillFeedsRecordsInOrderThenCloses(t *testing.T) {
	src := fakeHistorySource{records: []blockstream.BlockRecord{{Number: 10}, {Number: 11}, {Number: 12}}}
	h := NewHistoryBackfill(src, 8)

	go func() {
		require.NoError(t, h.Run(context.Background(), []byte{0x01}, 10, 13))
	}()

	var got []int32
	for rec := range h.Out() {
		got = append(got, rec.Number)
	}
	require.Equal(t, []int32{10, 11, 12}, got)
}

func TestNeedsBackfill(t *testing.T) {
	require.False(t, NeedsBackfill(100, 101))
	require.True(t, NeedsBackfill(100, 102))
}
