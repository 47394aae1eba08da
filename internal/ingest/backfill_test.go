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
	"testing"

	"github.com/ChorusOne/monad-staking-indexer/internal/events"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func delegateAt(blockNumber uint64) *events.StakingEvent {
	return &events.StakingEvent{
		Kind: events.KindDelegate,
		Delegate: &events.Delegate{
			ValID:  1,
			Block:  events.BlockMeta{BlockNumber: blockNumber},
			Amount: decimal.NewFromInt(1),
		},
	}
}

func TestBuildBatchGroupsEventsByBlock(t *testing.T) {
	evs := []*events.StakingEvent{
		delegateAt(100),
		delegateAt(100),
		delegateAt(200),
	}

	batch := buildBatch(events.Range{Start: 100, End: 201}, evs)

	require.Len(t, batch.Blocks, 2)
	assert.Equal(t, uint64(100), batch.Blocks[0].BlockNumber)
	assert.Equal(t, uint64(200), batch.Blocks[1].BlockNumber)
	assert.Len(t, batch.Delegate, 3)
}

func TestBuildBatchEmptyInputYieldsEmptyBatch(t *testing.T) {
	batch := buildBatch(events.Range{Start: 1, End: 5}, nil)
	assert.True(t, batch.Empty())
}
