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
	"testing"
	"time"

	"github.com/ChorusOne/monad-staking-indexer/internal/events"
	"github.com/ChorusOne/monad-staking-indexer/internal/metrics"
	"github.com/ChorusOne/monad-staking-indexer/internal/store"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uint64Ptr(n uint64) *uint64 { return &n }

var sigDelegateForTest = crypto.Keccak256Hash([]byte("Delegate(uint256,address,uint256,uint256)"))

// delegateRawLog builds a RawLog that decodes to a Delegate event, the way
// a real stream item would, so consume's batching logic is exercised
// end-to-end through events.ExtractEvent rather than against hand-built
// StakingEvent values.
func delegateRawLog(blockNumber uint64, txHash string, logIndex uint64) events.RawLog {
	var valIDWord, delegatorWord common.Hash
	b := uint256.NewInt(1).Bytes32()
	copy(valIDWord[:], b[:])
	copy(delegatorWord[12:], common.HexToAddress("0x9999999999999999999999999999999999999999").Bytes())

	return events.RawLog{
		Topics:         []common.Hash{sigDelegateForTest, valIDWord, delegatorWord},
		Data:           make([]byte, 64), // amount=0, activation_epoch=0
		BlockNumber:    blockNumber,
		BlockHash:      common.HexToHash("0x1234"),
		BlockTimestamp: 1000 + blockNumber,
		TxHash:         common.HexToHash(txHash),
		TxIndex:        0,
		LogIndex:       logIndex,
	}
}

// TestCheckStartupGapEmitsOnceOnFirstEvent covers spec.md §4.2 scenario S6:
// the first live event past the stored high-water mark reports the skipped
// range, and only once.
func TestCheckStartupGapEmitsOnceOnFirstEvent(t *testing.T) {
	dbRequests := make(chan store.Request, 1)
	gapQueue := make(chan events.Range, 4)
	metricsQueue := make(chan metrics.Metric, 4)

	l := NewLiveIngestor(nil, uint64Ptr(100), dbRequests, gapQueue, metricsQueue, 10)

	ctx := context.Background()
	l.checkStartupGap(ctx, 150)
	l.checkStartupGap(ctx, 160)

	select {
	case r := <-gapQueue:
		assert.Equal(t, events.Range{Start: 100, End: 150}, r)
	case <-time.After(time.Second):
		t.Fatal("expected a gap range on the first event")
	}

	select {
	case r := <-gapQueue:
		t.Fatalf("unexpected second gap range %+v", r)
	default:
	}
}

func TestCheckStartupGapNoOpWhenEventAtOrBeforeCursor(t *testing.T) {
	gapQueue := make(chan events.Range, 4)
	l := NewLiveIngestor(nil, uint64Ptr(100), nil, gapQueue, nil, 10)

	l.checkStartupGap(context.Background(), 100)

	select {
	case r := <-gapQueue:
		t.Fatalf("unexpected gap range %+v", r)
	default:
	}
}

func TestCheckStartupGapNoOpWithoutCursor(t *testing.T) {
	gapQueue := make(chan events.Range, 4)
	l := NewLiveIngestor(nil, nil, nil, gapQueue, nil, 10)

	l.checkStartupGap(context.Background(), 1)

	select {
	case r := <-gapQueue:
		t.Fatalf("unexpected gap range %+v", r)
	default:
	}
}

func TestSleepOrDoneReturnsFalseOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.False(t, sleepOrDone(ctx, time.Minute))
}

func TestSleepOrDoneReturnsTrueAfterDuration(t *testing.T) {
	require.True(t, sleepOrDone(context.Background(), time.Millisecond))
}

// TestConsumeSealsOnlyOnNextBlockBoundary covers spec.md §4.2's step 4/5:
// a block is sealed only once an event for a higher block number arrives,
// and the currently-accumulating block must never be sealed as a side
// effect of a batch-size submission. With batchSize=2 and five events
// spanning blocks 1 (x2), 2 (x2) and 3 (x1), the boundary into block 3 is
// what completes block 2 and triggers the submit; block 3 itself must
// still be unsealed and carried forward, not flushed early.
func TestConsumeSealsOnlyOnNextBlockBoundary(t *testing.T) {
	dbRequests := make(chan store.Request, 4)
	l := NewLiveIngestor(nil, nil, dbRequests, nil, make(chan metrics.Metric, 16), 2)

	stream := make(chan events.RawLog, 8)
	stream <- delegateRawLog(1, "0x1a", 0)
	stream <- delegateRawLog(1, "0x1b", 1)
	stream <- delegateRawLog(2, "0x2a", 0)
	stream <- delegateRawLog(2, "0x2b", 1)
	stream <- delegateRawLog(3, "0x3a", 0)
	close(stream)

	done := make(chan bool, 1)
	go func() { done <- l.consume(context.Background(), stream) }()

	select {
	case ok := <-done:
		require.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("consume did not return")
	}

	select {
	case req := <-dbRequests:
		require.Equal(t, store.RequestInsertBatch, req.Kind)
		require.Equal(t, 2, req.Batch.BlockCount())
		assert.Equal(t, uint64(1), req.Batch.Blocks[0].BlockNumber)
		assert.Equal(t, uint64(2), req.Batch.Blocks[1].BlockNumber)
		assert.Len(t, req.Batch.Delegate, 4)
	case <-time.After(time.Second):
		t.Fatal("expected a batch submission for blocks 1 and 2")
	}

	// Block 3 is the unsealed tail at the moment the stream closed: it is
	// dropped, never submitted (spec.md §4.2's documented open question).
	select {
	case req := <-dbRequests:
		t.Fatalf("unexpected second batch submission %+v", req)
	default:
	}
}

// TestConsumeDoesNotSealTailOnStreamClose asserts the narrower case
// directly: a single block with no boundary crossing ever is never
// submitted, even when the stream closes.
func TestConsumeDoesNotSealTailOnStreamClose(t *testing.T) {
	dbRequests := make(chan store.Request, 4)
	l := NewLiveIngestor(nil, nil, dbRequests, nil, make(chan metrics.Metric, 16), 10)

	stream := make(chan events.RawLog, 2)
	stream <- delegateRawLog(1, "0x1a", 0)
	stream <- delegateRawLog(1, "0x1b", 1)
	close(stream)

	ok := l.consume(context.Background(), stream)
	require.True(t, ok)

	select {
	case req := <-dbRequests:
		t.Fatalf("unexpected batch submission %+v", req)
	default:
	}
}
