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

package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/ChorusOne/monad-staking-indexer/internal/events"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregatorAccumulatesAndSnapshots(t *testing.T) {
	reg := prometheus.NewRegistry()
	agg := NewAggregator(reg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go agg.Run(ctx)

	agg.Queue() <- InsertedEvent(events.KindDelegate)
	agg.Queue() <- InsertedEvent(events.KindDelegate)
	agg.Queue() <- DuplicateEvent(events.KindWithdraw)
	agg.Queue() <- BackfilledBlocks(42)
	agg.Queue() <- RpcConnRefused()

	deadline, dCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer dCancel()

	require.Eventually(t, func() bool {
		snap, err := agg.RequestSnapshot(deadline)
		if err != nil {
			return false
		}
		return snap.InsertedEvents[events.KindDelegate] == 2 &&
			snap.DuplicateEvents[events.KindWithdraw] == 1 &&
			snap.BackfilledBlocks == 42 &&
			snap.RpcConnRefuseds == 1
	}, time.Second, 10*time.Millisecond)
}

func TestRequestSnapshotCancelledContext(t *testing.T) {
	agg := NewAggregator(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := agg.RequestSnapshot(ctx)
	assert.Error(t, err)
}
