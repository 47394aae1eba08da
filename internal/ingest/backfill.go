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

package ingest

import (
	"context"

	"github.com/ChorusOne/monad-staking-indexer/internal/errs"
	"github.com/ChorusOne/monad-staking-indexer/internal/events"
	"github.com/ChorusOne/monad-staking-indexer/internal/metrics"
	"github.com/ChorusOne/monad-staking-indexer/internal/rpcprovider"
	"github.com/ChorusOne/monad-staking-indexer/internal/store"
	"github.com/ethereum/go-ethereum/log"
)

// GapBackfiller drains the gap queue, fetches historical logs for each
// range in bounded chunks, and submits one BlockBatch per chunk. A chunk
// failure is recorded and skipped rather than aborting the whole range: the
// next gap scan will rediscover whatever is still missing.
type GapBackfiller struct {
	provider   *rpcprovider.Provider
	gapQueue   <-chan events.Range
	dbRequests chan<- store.Request
	metrics    chan<- metrics.Metric
	chunkSize  uint64
}

// NewGapBackfiller wires a GapBackfiller. chunkSize bounds how many blocks
// a single historical_logs call covers.
func NewGapBackfiller(
	provider *rpcprovider.Provider,
	gapQueue <-chan events.Range,
	dbRequests chan<- store.Request,
	metricsQueue chan<- metrics.Metric,
	chunkSize uint64,
) *GapBackfiller {
	if chunkSize == 0 {
		chunkSize = 1
	}
	return &GapBackfiller{
		provider:   provider,
		gapQueue:   gapQueue,
		dbRequests: dbRequests,
		metrics:    metricsQueue,
		chunkSize:  chunkSize,
	}
}

// Run drives the task until ctx is cancelled.
func (g *GapBackfiller) Run(ctx context.Context) {
	attempt := 0
	for {
		select {
		case <-ctx.Done():
			return
		case r := <-g.gapQueue:
			attempt = g.backfillRange(ctx, r, attempt)
		}
	}
}

// backfillRange ensures a connected provider and processes every chunk of
// r, returning the next reconnect attempt counter.
func (g *GapBackfiller) backfillRange(ctx context.Context, r events.Range, attempt int) int {
	if r.Empty() {
		return attempt
	}

	for g.provider.Connect(ctx, attempt) != nil {
		attempt++
		if !sleepOrDone(ctx, reconnectBackoff) {
			return attempt
		}
		select {
		case <-ctx.Done():
			return attempt
		default:
		}
	}
	attempt++

	for _, chunk := range events.ChunkRange(r, g.chunkSize) {
		g.backfillChunk(ctx, chunk)
	}
	return attempt
}

func (g *GapBackfiller) backfillChunk(ctx context.Context, chunk events.Range) {
	raws, err := g.provider.HistoricalLogs(ctx, chunk)
	if err != nil {
		log.Error("failed to fetch historical logs", "range", chunk, "err", err)
		if errs.IsFatal(err) {
			log.Crit("fatal error fetching historical logs", "err", err)
		}
		g.provider.Close()
		g.metrics <- metrics.FailedToBackfill(chunk.Len())
		return
	}

	type indexedEvent struct {
		ev       *events.StakingEvent
		logIndex uint64
	}
	var decoded []indexedEvent
	for _, raw := range raws {
		ev, err := events.ExtractEvent(raw)
		if err != nil {
			log.Error("failed to decode backfilled log", "err", err, "block", raw.BlockNumber)
			continue
		}
		if ev == nil {
			continue
		}
		decoded = append(decoded, indexedEvent{ev: ev, logIndex: raw.LogIndex})
	}

	evs := make([]*events.StakingEvent, len(decoded))
	logIndex := make(map[*events.StakingEvent]uint64, len(decoded))
	for i, d := range decoded {
		evs[i] = d.ev
		logIndex[d.ev] = d.logIndex
	}
	events.SortLogs(evs, logIndex)

	batch := buildBatch(chunk, evs)
	if !batch.Empty() {
		g.dbRequests <- store.InsertBatchRequest(batch)
	}
	g.metrics <- metrics.BackfilledBlocks(chunk.Len())
}

// buildBatch groups sorted events into a single BlockBatch holding one
// BlockMeta entry per distinct block number, only sealing blocks that
// actually have events:
// blocks with zero events in the range are not backfilled rows — they will
// either already exist or the range will remain a gap until a block with
// activity is observed there.
func buildBatch(chunk events.Range, evs []*events.StakingEvent) *events.BlockBatch {
	batch := events.NewBlockBatch()
	var currentBlock *events.BlockMeta
	var currentEvents []*events.StakingEvent

	seal := func() {
		if currentBlock != nil {
			batch.AddBlock(*currentBlock, currentEvents)
		}
	}

	for _, ev := range evs {
		meta := ev.BlockMeta()
		if currentBlock == nil {
			currentBlock = &meta
		} else if currentBlock.BlockNumber != meta.BlockNumber {
			seal()
			currentBlock = &meta
			currentEvents = nil
		}
		currentEvents = append(currentEvents, ev)
	}
	seal()

	return batch
}
