package runtime

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// blocksCommittedTotal counts blocks whose modifications were
// transactionally committed through store.Store, grounded on
// _examples/other_examples/2b04986d_grafana-tempo__tempodb-tempodb.go.go's
// package-level promauto.NewCounter var block.
var blocksCommittedTotal = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "chainspool_indexer",
	Subsystem: "runtime",
	Name:      "blocks_committed_total",
	Help:      "Total number of blocks whose entity modifications were committed to the indexer store.",
})
