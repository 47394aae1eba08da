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

package store

import (
	"context"
	"testing"
	"time"

	"github.com/ChorusOne/monad-staking-indexer/internal/events"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func sampleBatch() *events.BlockBatch {
	b := events.NewBlockBatch()
	d := &events.Delegate{
		ValID: 1, Delegator: "aa", Amount: decimal.NewFromInt(1000), ActivationEpoch: 2,
		Block: events.BlockMeta{BlockNumber: 100, BlockHash: "abc", BlockTimestamp: 111},
		Tx:    events.TxMeta{TransactionHash: "tx1", TransactionIndex: 0},
	}
	b.AddBlock(d.Block, []*events.StakingEvent{{Kind: events.KindDelegate, Delegate: d}})
	return b
}

func TestInsertBatchEmptyIsNoOp(t *testing.T) {
	mock := newMock(t)
	s := New(mock)
	result, err := s.InsertBatch(context.Background(), events.NewBlockBatch(), time.Second)
	require.NoError(t, err)
	assert.Empty(t, result)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertBatchCommitsOneTransactionWithBlocksLast(t *testing.T) {
	mock := newMock(t)
	s := New(mock)
	batch := sampleBatch()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO delegate_events").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO blocks").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	result, err := s.InsertBatch(context.Background(), batch, time.Second)
	require.NoError(t, err)
	assert.Equal(t, UpsertResult{Inserted: 1, Total: 1}, result[events.KindDelegate])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertBatchDuplicateRowsAreNotErrors(t *testing.T) {
	mock := newMock(t)
	s := New(mock)
	batch := sampleBatch()

	mock.ExpectBegin()
	// ON CONFLICT DO NOTHING means 0 rows affected on a full duplicate —
	// this must not surface as an error (spec.md scenario S3).
	mock.ExpectExec("INSERT INTO delegate_events").
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectExec("INSERT INTO blocks").
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectCommit()

	result, err := s.InsertBatch(context.Background(), batch, time.Second)
	require.NoError(t, err)
	assert.Equal(t, UpsertResult{Inserted: 0, Total: 1}, result[events.KindDelegate])
}

func TestInsertBatchRollsBackOnFailure(t *testing.T) {
	mock := newMock(t)
	s := New(mock)
	batch := sampleBatch()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO delegate_events").
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	_, err := s.InsertBatch(context.Background(), batch, time.Second)
	assert.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetGapsConvertsInclusiveToHalfOpen(t *testing.T) {
	mock := newMock(t)
	s := New(mock)

	rows := pgxmock.NewRows([]string{"gap_start", "gap_end"}).
		AddRow(int64(11), int64(19)).
		AddRow(int64(30), int64(30))
	mock.ExpectQuery("WITH gaps AS").WillReturnRows(rows)

	got, err := s.GetGaps(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, events.Range{Start: 11, End: 20}, got[0])
	assert.Equal(t, events.Range{Start: 30, End: 31}, got[1])
}

func TestGetMaxBlockNumberEmptyTable(t *testing.T) {
	mock := newMock(t)
	s := New(mock)

	rows := pgxmock.NewRows([]string{"max"}).AddRow(nil)
	mock.ExpectQuery("SELECT MAX").WillReturnRows(rows)

	_, ok, err := s.GetMaxBlockNumber(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGetMaxBlockNumberNonEmptyTable(t *testing.T) {
	mock := newMock(t)
	s := New(mock)

	rows := pgxmock.NewRows([]string{"max"}).AddRow(ptrInt64(4242))
	mock.ExpectQuery("SELECT MAX").WillReturnRows(rows)

	n, ok, err := s.GetMaxBlockNumber(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(4242), n)
}

func ptrInt64(n int64) *int64 { return &n }
