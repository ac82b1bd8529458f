// Package blockstream is the gRPC streaming client to the chain reader
// (component C7), grounded on turbo-geth's cmd/headers/download/
// downloader.go dial-option set (keepalive, backoff connect params,
// datasize-bounded recv buffer, grpc_prometheus/grpc_middleware
// interceptors), plus package-level prometheus counters tracking
// blocks received and stream reconnects (metrics.go).
package blockstream

import (
	"context"
	"encoding/json"
	"time"

	"github.com/c2h5oh/datasize"
	grpc_middleware "github.com/grpc-ecosystem/go-grpc-middleware"
	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/backoff"
	"google.golang.org/grpc/keepalive"

	"github.com/chainspool/indexer/internal/logging"
	"github.com/chainspool/indexer/model"
	pb "github.com/chainspool/indexer/proto"
)

// BlockRecord is one decoded element of a BlockResponse's JSON payload
// array (spec §6.1).
type BlockRecord struct {
	Hash        []byte          `json:"hash"`
	Number      int32           `json:"number"`
	ParentSlot  int32           `json:"parent_slot"`
	Raw         json.RawMessage `json:"-"`
}

// Config tunes the client's per-message timeout and reconnect backoff
// (spec §4.7, §6.5 GET_BLOCK_TIMEOUT_SEC/GET_STREAM_TIMEOUT_SEC).
type Config struct {
	Target           string
	MessageTimeout   time.Duration
	ReconnectBackoff time.Duration
}

// DefaultConfig mirrors spec §4.7/§6.5's documented defaults.
func DefaultConfig(target string) Config {
	return Config{Target: target, MessageTimeout: 30 * time.Second, ReconnectBackoff: 5 * time.Second}
}

// Client opens and re-opens a Blocks stream, always resuming from the
// last acknowledged block + 1 (spec §4.7: "at-least-once" delivery).
type Client struct {
	cfg  Config
	conn *grpc.ClientConn
	rpc  pb.ChainReaderClient
	log  *logging.Logger
}

// Dial establishes the underlying connection. Mirrors turbo-geth's
// dial option set: bounded reconnect backoff, keepalive, and a
// datasize-bounded max receive message size.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	dialOpts := []grpc.DialOption{
		grpc.WithInsecure(),
		grpc.WithConnectParams(grpc.ConnectParams{Backoff: backoff.DefaultConfig, MinConnectTimeout: 10 * time.Second}),
		grpc.WithDefaultCallOptions(grpc.MaxCallRecvMsgSize(int(16 * datasize.MB))),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{Time: 30 * time.Second, Timeout: 10 * time.Second}),
		grpc.WithStreamInterceptor(grpc_middleware.ChainStreamClient(grpc_prometheus.StreamClientInterceptor)),
		grpc.WithUnaryInterceptor(grpc_middleware.ChainUnaryClient(grpc_prometheus.UnaryClientInterceptor)),
	}
	conn, err := grpc.DialContext(ctx, cfg.Target, dialOpts...)
	if err != nil {
		return nil, err
	}
	return &Client{cfg: cfg, conn: conn, rpc: pb.NewChainReaderClient(conn), log: logging.New("blockstream")}, nil
}

// Close tears down the connection.
func (c *Client) Close() error { return c.conn.Close() }

// Handler is invoked once per decoded BlockRecord, in delivery order.
type Handler func(ctx context.Context, record BlockRecord) error

// Run streams blocks starting at fromBlock, invoking handle for each
// one, until ctx is cancelled. On timeout or transport error it tears
// down the stream and opens a new one from the last acknowledged block
// + 1 after ReconnectBackoff (spec §4.7).
func (c *Client) Run(ctx context.Context, deployment model.DeploymentHash, chainKind model.ChainKind, network string, filter []byte, fromBlock int32, handle Handler) error {
	next := fromBlock
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		acked, err := c.streamOnce(ctx, deployment, chainKind, network, filter, next, handle)
		next = acked + 1
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			streamReconnectsTotal.Inc()
			c.log.Warn("block stream interrupted, reconnecting", "deployment", string(deployment), "resume_from", next, "err", err.Error())
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.cfg.ReconnectBackoff):
		}
	}
}

// streamOnce opens exactly one Blocks call and drains it until error
// or ctx cancellation, returning the highest acknowledged block number.
func (c *Client) streamOnce(ctx context.Context, deployment model.DeploymentHash, chainKind model.ChainKind, network string, filter []byte, fromBlock int32, handle Handler) (int32, error) {
	acked := fromBlock - 1

	req := buildBlockRequest(deployment, chainKind, network, filter, fromBlock)

	stream, err := c.rpc.Blocks(ctx, req)
	if err != nil {
		return acked, err
	}

	for {
		msgCtx, cancel := context.WithTimeout(ctx, c.cfg.MessageTimeout)
		resp, err := recvWithTimeout(msgCtx, stream)
		cancel()
		if err != nil {
			return acked, err
		}

		var records []BlockRecord
		if err := json.Unmarshal(resp.Payload, &records); err != nil {
			return acked, err
		}
		for _, rec := range records {
			blocksReceivedTotal.Inc()
			if err := handle(ctx, rec); err != nil {
				return acked, err
			}
			acked = rec.Number
		}
	}
}

// buildBlockRequest constructs the unary request that opens a Blocks
// stream (spec §6.1).
func buildBlockRequest(deployment model.DeploymentHash, chainKind model.ChainKind, network string, filter []byte, fromBlock int32) *pb.BlockRequest {
	req := &pb.BlockRequest{
		IndexerHash:         string(deployment),
		StartBlockNumber:    uint64(fromBlock),
		HasStartBlockNumber: true,
		Network:             network,
		Filter:              filter,
	}
	if chainKind == model.ChainSolana {
		req.ChainKind = pb.ChainKind_SOLANA
	}
	return req
}

// recvWithTimeout races stream.Recv() against ctx's deadline, since
// the grpc stream's Recv itself doesn't take a context.
func recvWithTimeout(ctx context.Context, stream pb.ChainReader_BlocksClient) (*pb.BlockResponse, error) {
	type result struct {
		resp *pb.BlockResponse
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		resp, err := stream.Recv()
		ch <- result{resp, err}
	}()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		return r.resp, r.err
	}
}
