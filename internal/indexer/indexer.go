// Copyright 2025 ChorusOne
// This file is part of the monad-staking-indexer library.
//
// This software is provided "as is", without warranty of any kind,
// express or implied, including but not limited to the warranties
// of merchantability, fitness for a particular purpose and
// noninfringement. In no event shall the authors or copyright
// holders be liable for any claim, damages, or other liability,
// whether in an action of contract, tort or otherwise, arising
// from, out of or in connection with the software or the use or
// other dealings in the software.

// Package indexer wires the six long-lived tasks described in spec.md §2
// (LiveIngestor, GapBackfiller, GapScanner, DbWriter, MetricsAggregator,
// plus the ReconnectProviders that back the two ingestion tasks) into one
// running system, exactly once at startup, the way cmd/indexer's main
// wires a node's subsystems in the teacher codebase.
package indexer

import (
	"context"
	"sync"

	"github.com/ChorusOne/monad-staking-indexer/internal/config"
	"github.com/ChorusOne/monad-staking-indexer/internal/events"
	"github.com/ChorusOne/monad-staking-indexer/internal/ingest"
	"github.com/ChorusOne/monad-staking-indexer/internal/metrics"
	"github.com/ChorusOne/monad-staking-indexer/internal/rpcprovider"
	"github.com/ChorusOne/monad-staking-indexer/internal/store"
	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
)

// Indexer owns every channel and task described in spec.md §5 and drives
// them for the lifetime of the process. Nothing outside this package holds
// a reference to an individual task.
type Indexer struct {
	cfg config.Config

	store      *store.Store
	writer     *store.Writer
	aggregator *metrics.Aggregator

	live     *ingest.LiveIngestor
	backfill *ingest.GapBackfiller
	scanner  *ingest.GapScanner
}

// New constructs every task and wires their channels, per the dependency
// order spec.md §2 lists (leaves first): ReconnectProvider ->
// {LiveIngestor, GapBackfiller} -> DbWriter -> {GapScanner}; MetricsAggregator
// stands beside as a passive observer. It opens the store (running schema
// migrations) but starts no goroutines; call Run for that.
func New(ctx context.Context, cfg config.Config, reg prometheus.Registerer) (*Indexer, error) {
	st, err := store.Open(ctx, cfg.DSN(), cfg.DatabaseMaxConns)
	if err != nil {
		return nil, err
	}

	startBlock, hasStart, err := st.GetMaxBlockNumber(ctx)
	if err != nil {
		st.Close()
		return nil, err
	}
	var startBlockPtr *uint64
	if hasStart {
		startBlockPtr = &startBlock
	}

	// gap_queue is specified as unbounded (spec.md §5); see the matching
	// note on store.reqsBufferSize for why a deep bounded buffer stands in
	// for that here instead of a literally unbounded channel.
	gapQueue := make(chan events.Range, 16384)
	aggregator := metrics.NewAggregator(reg)
	writer := store.NewWriter(st, gapQueue, aggregator.Queue(), cfg.DbOperationTimeoutDuration())

	liveProvider := rpcprovider.New(cfg.RPCURLs, cfg.WatchdogTimeout())
	backfillProvider := rpcprovider.New(cfg.RPCURLs, cfg.WatchdogTimeout())

	live := ingest.NewLiveIngestor(liveProvider, startBlockPtr, writer.Requests(), gapQueue, aggregator.Queue(), cfg.DbBatchSize)
	backfill := ingest.NewGapBackfiller(backfillProvider, gapQueue, writer.Requests(), aggregator.Queue(), cfg.BackfillChunkSize)
	scanner := ingest.NewGapScanner(writer.Requests(), cfg.GapCheckInterval())

	return &Indexer{
		cfg:        cfg,
		store:      st,
		writer:     writer,
		aggregator: aggregator,
		live:       live,
		backfill:   backfill,
		scanner:    scanner,
	}, nil
}

// Metrics returns the aggregator so a caller can request snapshots.
// cmd/indexer's promhttp handler does not use it; it serves the Prometheus
// registry the aggregator registered its counters with.
func (ix *Indexer) Metrics() *metrics.Aggregator { return ix.aggregator }

// Run starts every task and blocks until ctx is cancelled, then waits for
// all tasks to return before releasing the store. A task panic is left to
// propagate and crash the process (spec.md §5: "a task panic terminates
// the process").
func (ix *Indexer) Run(ctx context.Context) {
	var wg sync.WaitGroup
	run := func(name string, fn func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Info("task started", "task", name)
			fn(ctx)
			log.Info("task stopped", "task", name)
		}()
	}

	run("db_writer", ix.writer.Run)
	run("metrics_aggregator", ix.aggregator.Run)
	run("live_ingestor", ix.live.Run)
	run("gap_backfiller", ix.backfill.Run)
	run("gap_scanner", ix.scanner.Run)

	<-ctx.Done()
	log.Info("shutdown signal received, waiting for tasks to stop")
	wg.Wait()
	ix.store.Close()
}
