package blockstream

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counters, grounded on
// _examples/other_examples/2b04986d_grafana-tempo__tempodb-tempodb.go.go's
// package-level promauto.NewCounter var block.
var (
	blocksReceivedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "chainspool_indexer",
		Subsystem: "blockstream",
		Name:      "blocks_received_total",
		Help:      "Total number of block records received from the chain reader stream.",
	})
	streamReconnectsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "chainspool_indexer",
		Subsystem: "blockstream",
		Name:      "stream_reconnects_total",
		Help:      "Total number of times the block stream was torn down and reopened after an error.",
	})
)
