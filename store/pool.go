// Package store implements the transactional per-block apply of entity
// modifications plus deployment pointer updates (component C5),
// grounded on _examples/other_examples/85921b0c_ethereum-go-ethereum__
// statediff-indexer-indexer.go.go's sqlx.Tx lifecycle and on
// original_source/store/postgres/src/connection_pool.rs for the
// primary/shard pool split.
package store

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// PoolConfig carries the environment-driven connection pool tuning of
// spec §6.5.
type PoolConfig struct {
	ConnectTimeout time.Duration
	MinIdle        int
	IdleTimeout    time.Duration
	MaxOpen        int
}

// DefaultPoolConfig mirrors spec §6.5's documented defaults.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		ConnectTimeout: 5 * time.Second,
		IdleTimeout:    600 * time.Second,
		MaxOpen:        10,
	}
}

func configure(db *sqlx.DB, cfg PoolConfig) {
	if cfg.MaxOpen > 0 {
		db.SetMaxOpenConns(cfg.MaxOpen)
	}
	if cfg.MinIdle > 0 {
		db.SetMaxIdleConns(cfg.MinIdle)
	}
	if cfg.IdleTimeout > 0 {
		db.SetConnMaxIdleTime(cfg.IdleTimeout)
	}
}

// PrimaryPool is a distinct type wrapping the connection pool to the
// instance-wide `primary` metadata schema (spec §6.2). Kept as its own
// type, rather than a bare *sqlx.DB, so a PrimaryPool and a ShardPool
// can never be accidentally interchanged: the never-hold-primary-
// while-acquiring-shard discipline (spec §4.5, §5) is enforced by never
// giving code that holds one a reference to the other.
type PrimaryPool struct {
	db *sqlx.DB
}

// NewPrimaryPool wraps db, applying cfg.
func NewPrimaryPool(db *sqlx.DB, cfg PoolConfig) *PrimaryPool {
	configure(db, cfg)
	return &PrimaryPool{db: db}
}

// WithConn runs fn with a connection checked out of the primary pool,
// the `with_conn(closure)` primitive of spec §5.
func (p *PrimaryPool) WithConn(ctx context.Context, fn func(*sqlx.Conn) error) error {
	conn, err := p.db.Connx(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()
	return fn(conn)
}

// ShardPool is the connection pool to one deployment's database schema
// (`sgdN`, spec §6.2). Distinct type for the same reason as PrimaryPool.
type ShardPool struct {
	db     *sqlx.DB
	Schema string
}

// NewShardPool wraps db scoped to schema, applying cfg.
func NewShardPool(db *sqlx.DB, schema string, cfg PoolConfig) *ShardPool {
	configure(db, cfg)
	return &ShardPool{db: db, Schema: schema}
}

// DB exposes the underlying *sqlx.DB for read-only query paths that
// don't need transaction framing (Get/GetMany).
func (p *ShardPool) DB() *sqlx.DB { return p.db }

// WithTx runs fn inside a single database transaction, committing on
// success and rolling back (including on panic) otherwise, in the
// teacher-adjacent Close()-closure style of the statediff indexer.
func (p *ShardPool) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) (err error) {
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()
	err = fn(tx)
	return err
}
