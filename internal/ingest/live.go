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

// Package ingest implements the three tasks that drive staking events into
// the store: LiveIngestor (the head of the chain), GapBackfiller (missing
// ranges) and GapScanner (the ticker that discovers those ranges).
package ingest

import (
	"context"
	"time"

	"github.com/ChorusOne/monad-staking-indexer/internal/errs"
	"github.com/ChorusOne/monad-staking-indexer/internal/events"
	"github.com/ChorusOne/monad-staking-indexer/internal/metrics"
	"github.com/ChorusOne/monad-staking-indexer/internal/rpcprovider"
	"github.com/ChorusOne/monad-staking-indexer/internal/store"
	"github.com/ethereum/go-ethereum/log"
)

const reconnectBackoff = time.Second

// StartBlockSource returns the indexer's resume cursor: the highest block
// number already committed, or (0, false) for a cold start.
type StartBlockSource interface {
	GetMaxBlockNumber(ctx context.Context) (uint64, bool, error)
}

// LiveIngestor consumes the head of the chain: it subscribes to new logs,
// seals one BlockBatch entry per block boundary crossed, and submits sealed
// batches to DbWriter once batchSize blocks have accumulated. On the first
// live event it ever sees, it compares the event's block number against the
// store's resume cursor and reports any gap between them so GapBackfiller
// can fill it (spec.md §4.2 scenario S6).
type LiveIngestor struct {
	provider   *rpcprovider.Provider
	dbRequests chan<- store.Request
	gapQueue   chan<- events.Range
	metrics    chan<- metrics.Metric
	batchSize  int

	startBlock *uint64
}

// NewLiveIngestor wires a LiveIngestor. batchSize is the number of sealed
// blocks accumulated before a batch is submitted to DbWriter. startBlock is
// the max block number already present in the store at startup, or nil for
// a cold start.
func NewLiveIngestor(
	provider *rpcprovider.Provider,
	startBlock *uint64,
	dbRequests chan<- store.Request,
	gapQueue chan<- events.Range,
	metricsQueue chan<- metrics.Metric,
	batchSize int,
) *LiveIngestor {
	if batchSize <= 0 {
		batchSize = 1
	}
	return &LiveIngestor{
		provider:   provider,
		dbRequests: dbRequests,
		gapQueue:   gapQueue,
		metrics:    metricsQueue,
		batchSize:  batchSize,
		startBlock: startBlock,
	}
}

// Run drives the task until ctx is cancelled. Any stream failure, including
// a watchdog-triggered disconnect, is logged and followed by a reconnect;
// the unsealed tail block at the moment of disconnect is discarded, per the
// documented open-question decision (spec.md §9): a block is only ever
// durable once GapBackfiller or the next live seal re-commits it, and the
// gap scanner will eventually discover anything left behind.
func (l *LiveIngestor) Run(ctx context.Context) {
	attempt := 0

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := l.provider.Connect(ctx, attempt); err != nil {
			l.emitConnectFailure(err)
			attempt++
			if !sleepOrDone(ctx, reconnectBackoff) {
				return
			}
			continue
		}
		attempt++

		stream, err := l.provider.StreamEvents(ctx)
		if err != nil {
			log.Error("failed to open live log subscription", "err", err)
			l.provider.Close()
			l.metrics <- metrics.RpcTimeout()
			if !sleepOrDone(ctx, reconnectBackoff) {
				return
			}
			continue
		}

		if !l.consume(ctx, stream) {
			return
		}
		// stream closed: provider already released its client (see
		// rpcprovider.StreamEvents); reconnect on the next loop iteration.
		l.metrics <- metrics.RpcTimeout()
	}
}

// consume reads raw events off stream, sealing one BlockBatch entry per
// block boundary and submitting every batchSize blocks. Returns false if
// ctx was cancelled while consuming.
func (l *LiveIngestor) consume(ctx context.Context, stream <-chan events.RawLog) bool {
	batch := events.NewBlockBatch()
	var currentBlock *events.BlockMeta
	var currentEvents []*events.StakingEvent

	sealCurrent := func() {
		if currentBlock == nil {
			return
		}
		batch.AddBlock(*currentBlock, currentEvents)
		currentBlock = nil
		currentEvents = nil
	}

	for {
		select {
		case <-ctx.Done():
			return false
		case raw, ok := <-stream:
			if !ok {
				// tail block, if any, is unsealed and intentionally dropped
				if batch.BlockCount() > 0 {
					l.submit(batch)
				}
				return true
			}

			ev, err := events.ExtractEvent(raw)
			if err != nil {
				log.Error("failed to decode live log", "err", err, "block", raw.BlockNumber)
				continue
			}
			if ev == nil {
				continue
			}

			meta := ev.BlockMeta()
			l.checkStartupGap(ctx, meta.BlockNumber)

			if currentBlock == nil {
				currentBlock = &meta
			} else if currentBlock.BlockNumber != meta.BlockNumber {
				// Only the block just crossed out of is complete. The new
				// block has only this one event observed so far and must
				// not be sealed here, or a later event for it would land
				// in a separate transaction after its row already exists.
				sealCurrent()
				currentBlock = &meta

				if batch.BlockCount() >= l.batchSize {
					l.submit(batch)
					batch = events.NewBlockBatch()
				}
			}
			currentEvents = append(currentEvents, ev)
		}
	}
}

// checkStartupGap runs once, on the first live event observed in this
// process's lifetime: if the DB's high-water mark s is behind the event's
// block number n, the skipped range [s, n) is reported as a gap. startBlock
// is then latched to nil so no further ranges are reported.
func (l *LiveIngestor) checkStartupGap(ctx context.Context, blockNumber uint64) {
	if l.startBlock == nil {
		return
	}
	s := *l.startBlock
	l.startBlock = nil
	if blockNumber > s {
		r := events.Range{Start: s, End: blockNumber}
		select {
		case l.gapQueue <- r:
		case <-ctx.Done():
		}
	}
}

func (l *LiveIngestor) submit(batch *events.BlockBatch) {
	if batch.Empty() {
		return
	}
	l.dbRequests <- store.InsertBatchRequest(batch)
}

func (l *LiveIngestor) emitConnectFailure(err error) {
	if errs.IsFatal(err) {
		log.Crit("fatal error connecting to RPC", "err", err)
	}
	if err == errs.ErrConnTimeout {
		l.metrics <- metrics.RpcTimeout()
		return
	}
	l.metrics <- metrics.RpcConnRefused()
}

// sleepOrDone waits for d or ctx cancellation, returning false if ctx fired
// first.
func sleepOrDone(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
