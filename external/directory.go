package external

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/chainspool/indexer/model"
)

// SQLDeploymentDirectory implements DeploymentDirectory against the
// primary.deployments table store.Store already writes progress
// pointers to. No pack repo vendors a Postgres LISTEN/NOTIFY client,
// so change detection is a poll loop over the same sqlx handle the
// store package already uses, rather than a dropped dependency; see
// DESIGN.md.
type SQLDeploymentDirectory struct {
	db           *sqlx.DB
	pollInterval time.Duration
}

// NewSQLDeploymentDirectory builds a directory polling db every
// pollInterval (<= 0 selects 5s).
func NewSQLDeploymentDirectory(db *sqlx.DB, pollInterval time.Duration) *SQLDeploymentDirectory {
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	return &SQLDeploymentDirectory{db: db, pollInterval: pollInterval}
}

type deploymentRow struct {
	Hash              string `db:"hash"`
	Namespace         string `db:"namespace"`
	Network           string `db:"network"`
	GotBlock          int32  `db:"got_block"`
	LatestBlockHash   []byte `db:"latest_block_hash"`
	LatestBlockNumber int32  `db:"latest_block_number"`
}

func (r deploymentRow) toRecord() DeploymentRecord {
	return DeploymentRecord{
		Hash:              model.DeploymentHash(r.Hash),
		Namespace:         r.Namespace,
		Network:           r.Network,
		GotBlock:          r.GotBlock,
		LatestBlockHash:   r.LatestBlockHash,
		LatestBlockNumber: r.LatestBlockNumber,
	}
}

// ListDeployments returns every row currently in primary.deployments.
func (d *SQLDeploymentDirectory) ListDeployments(ctx context.Context) ([]DeploymentRecord, error) {
	var rows []deploymentRow
	if err := d.db.SelectContext(ctx, &rows,
		`select hash, namespace, network, got_block, latest_block_hash, latest_block_number from primary.deployments`,
	); err != nil {
		return nil, err
	}
	out := make([]DeploymentRecord, len(rows))
	for i, r := range rows {
		out[i] = r.toRecord()
	}
	return out, nil
}

// WatchChanges polls the table on an interval and diffs the known
// hash set, emitting DeploymentAdded/DeploymentRemoved notifications.
func (d *SQLDeploymentDirectory) WatchChanges(ctx context.Context) (<-chan DeploymentChange, error) {
	out := make(chan DeploymentChange)
	go func() {
		defer close(out)
		known := map[model.DeploymentHash]bool{}
		ticker := time.NewTicker(d.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			current, err := d.ListDeployments(ctx)
			if err != nil {
				continue
			}
			seen := map[model.DeploymentHash]bool{}
			for _, rec := range current {
				seen[rec.Hash] = true
				if !known[rec.Hash] {
					known[rec.Hash] = true
					select {
					case out <- DeploymentChange{Kind: DeploymentAdded, Record: rec}:
					case <-ctx.Done():
						return
					}
				}
			}
			for hash := range known {
				if !seen[hash] {
					delete(known, hash)
					select {
					case out <- DeploymentChange{Kind: DeploymentRemoved, Record: DeploymentRecord{Hash: hash}}:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()
	return out, nil
}
