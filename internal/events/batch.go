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

package events

import "sort"

// BlockBatch stages a group of blocks and their fully-captured events for a
// single atomic commit. It is built incrementally by LiveIngestor or
// GapBackfiller, handed to DbWriter once sealed, and never mutated again.
type BlockBatch struct {
	Blocks []BlockMeta

	Delegate               []*Delegate
	Undelegate             []*Undelegate
	Withdraw               []*Withdraw
	ClaimRewards           []*ClaimRewards
	ValidatorRewarded      []*ValidatorRewarded
	EpochChanged           []*EpochChanged
	ValidatorCreated       []*ValidatorCreated
	ValidatorStatusChanged []*ValidatorStatusChanged
	CommissionChanged      []*CommissionChanged
}

// NewBlockBatch returns an empty batch ready for accumulation.
func NewBlockBatch() *BlockBatch {
	return &BlockBatch{}
}

// BlockCount reports how many sealed blocks this batch carries.
func (b *BlockBatch) BlockCount() int {
	return len(b.Blocks)
}

// Empty reports whether the batch has no sealed blocks at all; an empty
// batch must never be submitted to DbWriter.
func (b *BlockBatch) Empty() bool {
	return len(b.Blocks) == 0
}

// AddBlock appends a fully-captured block and its events, in order, to the
// batch. events must already be in the order they should be committed in.
func (b *BlockBatch) AddBlock(meta BlockMeta, blockEvents []*StakingEvent) {
	b.Blocks = append(b.Blocks, meta)
	for _, e := range blockEvents {
		b.add(e)
	}
}

func (b *BlockBatch) add(e *StakingEvent) {
	switch e.Kind {
	case KindDelegate:
		b.Delegate = append(b.Delegate, e.Delegate)
	case KindUndelegate:
		b.Undelegate = append(b.Undelegate, e.Undelegate)
	case KindWithdraw:
		b.Withdraw = append(b.Withdraw, e.Withdraw)
	case KindClaimRewards:
		b.ClaimRewards = append(b.ClaimRewards, e.ClaimRewards)
	case KindValidatorRewarded:
		b.ValidatorRewarded = append(b.ValidatorRewarded, e.ValidatorRewarded)
	case KindEpochChanged:
		b.EpochChanged = append(b.EpochChanged, e.EpochChanged)
	case KindValidatorCreated:
		b.ValidatorCreated = append(b.ValidatorCreated, e.ValidatorCreated)
	case KindValidatorStatusChanged:
		b.ValidatorStatusChanged = append(b.ValidatorStatusChanged, e.ValidatorStatusChanged)
	case KindCommissionChanged:
		b.CommissionChanged = append(b.CommissionChanged, e.CommissionChanged)
	}
}

// Range is a half-open [Start, End) interval of block numbers: a detected
// gap or a backfill chunk.
type Range struct {
	Start uint64
	End   uint64
}

// Empty reports whether the range contains no blocks.
func (r Range) Empty() bool {
	return r.End <= r.Start
}

// Len reports how many blocks the range covers.
func (r Range) Len() uint64 {
	if r.Empty() {
		return 0
	}
	return r.End - r.Start
}

// ChunkRange splits r into consecutive chunks of at most size blocks each,
// the final chunk truncated to r.End. An empty input range yields an empty
// output slice. size must be > 0.
func ChunkRange(r Range, size uint64) []Range {
	if r.Empty() {
		return nil
	}
	var chunks []Range
	for start := r.Start; start < r.End; start += size {
		end := start + size
		if end > r.End {
			end = r.End
		}
		chunks = append(chunks, Range{Start: start, End: end})
	}
	return chunks
}

// SortLogs orders decoded events by (block_number, transaction_index,
// log_index) as required for backfill commits (spec.md §8 property 5).
// logIndex is passed alongside each event since LogIndex is not part of
// the persisted envelope.
func SortLogs(evs []*StakingEvent, logIndex map[*StakingEvent]uint64) {
	sort.SliceStable(evs, func(i, j int) bool {
		bi, bj := evs[i].BlockMeta(), evs[j].BlockMeta()
		if bi.BlockNumber != bj.BlockNumber {
			return bi.BlockNumber < bj.BlockNumber
		}
		ti, tj := evs[i].TxMeta(), evs[j].TxMeta()
		if ti.TransactionIndex != tj.TransactionIndex {
			return ti.TransactionIndex < tj.TransactionIndex
		}
		return logIndex[evs[i]] < logIndex[evs[j]]
	})
}
