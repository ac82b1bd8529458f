// Command indexer is the fleet controller entrypoint: it connects to
// the primary metadata database and a shard database, then runs the
// Manager until terminated. Config is environment-driven per §6.5;
// no CLI framework is used, matching turbo-geth's own preference for
// explicit flags/env over a config library.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/chainspool/indexer/external"
	"github.com/chainspool/indexer/internal/logging"
	"github.com/chainspool/indexer/manager"
	"github.com/chainspool/indexer/runtime"
	"github.com/chainspool/indexer/store"
)

var log = logging.New("cmd.indexer")

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func poolConfigFromEnv() store.PoolConfig {
	cfg := store.DefaultPoolConfig()
	cfg.ConnectTimeout = time.Duration(getenvInt("DATABASE_CONNECTION_TIMEOUT", int(cfg.ConnectTimeout/time.Millisecond))) * time.Millisecond
	cfg.IdleTimeout = time.Duration(getenvInt("DATABASE_CONNECTION_IDLE_TIMEOUT", int(cfg.IdleTimeout/time.Second))) * time.Second
	cfg.MinIdle = getenvInt("DATABASE_CONNECTION_MIN_IDLE", cfg.MinIdle)
	return cfg
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutdown signal received")
		cancel()
	}()

	primaryDSN := getenv("PRIMARY_DATABASE_URL", "")
	shardDSN := getenv("SHARD_DATABASE_URL", primaryDSN)
	if primaryDSN == "" {
		log.Error("PRIMARY_DATABASE_URL is required")
		os.Exit(1)
	}

	poolCfg := poolConfigFromEnv()

	primaryDB, err := sqlx.Connect("postgres", primaryDSN)
	if err != nil {
		log.Error("failed to connect to primary database", "err", err.Error())
		os.Exit(1)
	}
	shardDB, err := sqlx.Connect("postgres", shardDSN)
	if err != nil {
		log.Error("failed to connect to shard database", "err", err.Error())
		os.Exit(1)
	}

	primaryPool := store.NewPrimaryPool(primaryDB, poolCfg)
	shardSchema := getenv("SHARD_SCHEMA", "shard_0")
	shardPool := store.NewShardPool(shardDB, shardSchema, poolCfg)

	ipfs := external.NewHTTPIPFSFetcher(getenv("IPFS_GATEWAY_URL", "http://127.0.0.1:5001"), nil)
	registry := newRegisteredMappings()

	entityCacheKB := getenvInt("ENTITY_CACHE_SIZE", 10_000)
	chainTarget := getenv("CHAIN_READER_TARGET", "127.0.0.1:9090")

	directory := external.NewSQLDeploymentDirectory(primaryDB, 5*time.Second)
	placement := external.SingleShardPlacement{Shard: shardSchema, Nodes: []string{getenv("NODE_NAME", "node-1")}}

	if metricsAddr := getenv("METRICS_ADDR", ""); metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		go func() {
			if err := http.ListenAndServe(metricsAddr, mux); err != nil {
				log.Error("metrics server exited", "err", err.Error())
			}
		}()
	}

	build := func(rec external.DeploymentRecord, shard string, nodes []string) (manager.Runnable, error) {
		rt := runtime.New(runtime.Config{
			Deployment:       rec.Hash,
			Namespace:        rec.Namespace,
			ManifestHash:     string(rec.Hash), // the deployment hash doubles as the manifest's content address (spec §6.2)
			ChainTarget:      chainTarget,
			IPFS:             ipfs,
			Registry:         registry,
			Shard:            shardPool,
			Primary:          primaryPool,
			EntityCacheBytes: entityCacheKB * 1024,
			ResumeFrom:       rec.GotBlock,
		})
		return rt, nil
	}

	m := manager.New(directory, placement, build)
	if err := m.Run(ctx); err != nil && ctx.Err() == nil {
		log.Error("manager exited with error", "err", err.Error())
		os.Exit(1)
	}
	log.Info("indexer shut down cleanly")
}
