package blockstream

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chainspool/indexer/model"
	pb "github.com/chainspool/indexer/proto"
)

func TestBuildBlockRequestDefaultsToEthereum(t *testing.T) {
	req := buildBlockRequest("QmTest", model.ChainEthereum, "mainnet", nil, 100)
	require.Equal(t, "QmTest", req.IndexerHash)
	require.Equal(t, uint64(100), req.StartBlockNumber)
	require.True(t, req.HasStartBlockNumber)
	require.Equal(t, pb.ChainKind_ETHEREUM, req.ChainKind)
}

func TestBuildBlockRequestSolana(t *testing.T) {
	req := buildBlockRequest("QmTest", model.ChainSolana, "mainnet-beta", []byte("addr"), 1)
	require.Equal(t, pb.ChainKind_SOLANA, req.ChainKind)
	require.Equal(t, []byte("addr"), req.Filter)
}
