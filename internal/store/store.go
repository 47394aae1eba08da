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

// Package store implements DbWriter: the single task permitted to mutate
// the relational schema. Every mutation happens inside one transaction per
// batch, bounded by an operation timeout, with idempotent upserts on each
// event table's natural key (spec.md §4.5).
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ChorusOne/monad-staking-indexer/internal/errs"
	"github.com/ChorusOne/monad-staking-indexer/internal/events"
	"github.com/ethereum/go-ethereum/log"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
)

// pgxIface is the narrow slice of *pgxpool.Pool that Store needs. Tests
// satisfy it with pgxmock instead of a live Postgres, matching spec.md's
// framing of the store as an external collaborator reachable only through
// a transaction/pool abstraction.
type pgxIface interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Close()
}

// Store owns the connection pool and performs every schema mutation.
type Store struct {
	pool pgxIface
}

// Open builds a pgxpool-backed Store and runs schema migrations.
func Open(ctx context.Context, dsn string, maxConns int) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("store: parse dsn: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = int32(maxConns)
	}
	// amount/commission columns round-trip through shopspring/decimal
	// losslessly; register its pgx type mapping on every pooled connection
	// so driver.Value/Scan is never needed.
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}

	s := &Store{pool: pool}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an already-constructed pgxIface (typically a pgxmock pool in
// tests). It does not run migrations.
func New(pool pgxIface) *Store {
	return &Store{pool: pool}
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Migrate applies the schema. Safe to call repeatedly; every statement is
// IF NOT EXISTS.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schema)
	if err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// UpsertResult reports, per variant, how many rows were actually inserted
// vs how many were submitted (the difference is duplicates rejected by
// ON CONFLICT DO NOTHING).
type UpsertResult struct {
	Inserted uint64
	Total    uint64
}

// InsertBatch commits batch under a single transaction bounded by timeout:
// every variant's rows are upserted first, block rows last, so a block row
// exists only if its entire event set committed (spec.md §4.5's ordering
// invariant). Returns errs.ErrOperationTimeout if the deadline expires.
func (s *Store) InsertBatch(ctx context.Context, batch *events.BlockBatch, timeout time.Duration) (map[events.Kind]UpsertResult, error) {
	if batch.Empty() {
		return map[events.Kind]UpsertResult{}, nil
	}

	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := s.insertBatchTx(opCtx, batch)
	if err != nil {
		if errors.Is(opCtx.Err(), context.DeadlineExceeded) {
			return nil, errs.ErrOperationTimeout
		}
		return nil, err
	}
	return result, nil
}

func (s *Store) insertBatchTx(ctx context.Context, batch *events.BlockBatch) (map[events.Kind]UpsertResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	result := make(map[events.Kind]UpsertResult, 9)

	if err := upsertDelegate(ctx, tx, batch.Delegate, result); err != nil {
		return nil, err
	}
	if err := upsertUndelegate(ctx, tx, batch.Undelegate, result); err != nil {
		return nil, err
	}
	if err := upsertWithdraw(ctx, tx, batch.Withdraw, result); err != nil {
		return nil, err
	}
	if err := upsertClaimRewards(ctx, tx, batch.ClaimRewards, result); err != nil {
		return nil, err
	}
	if err := upsertValidatorRewarded(ctx, tx, batch.ValidatorRewarded, result); err != nil {
		return nil, err
	}
	if err := upsertEpochChanged(ctx, tx, batch.EpochChanged, result); err != nil {
		return nil, err
	}
	if err := upsertValidatorCreated(ctx, tx, batch.ValidatorCreated, result); err != nil {
		return nil, err
	}
	if err := upsertValidatorStatusChanged(ctx, tx, batch.ValidatorStatusChanged, result); err != nil {
		return nil, err
	}
	if err := upsertCommissionChanged(ctx, tx, batch.CommissionChanged, result); err != nil {
		return nil, err
	}
	if err := insertBlocks(ctx, tx, batch.Blocks); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("store: commit: %w", err)
	}

	log.Debug("committed batch", "blocks", batch.BlockCount())
	return result, nil
}

// GetMaxBlockNumber returns the highest stored block number, used by
// LiveIngestor as its startup cursor. Returns (0, false, nil) if the
// blocks table is empty.
func (s *Store) GetMaxBlockNumber(ctx context.Context) (uint64, bool, error) {
	rows, err := s.pool.Query(ctx, "SELECT MAX(block_number) FROM blocks")
	if err != nil {
		return 0, false, fmt.Errorf("store: get max block number: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return 0, false, rows.Err()
	}
	var max *int64
	if err := rows.Scan(&max); err != nil {
		return 0, false, fmt.Errorf("store: scan max block number: %w", err)
	}
	if max == nil {
		return 0, false, nil
	}
	return uint64(*max), true, nil
}

const gapQuery = `
WITH gaps AS (
	SELECT block_number + 1 AS gap_start,
	       LEAD(block_number) OVER (ORDER BY block_number) - 1 AS gap_end
	FROM blocks
)
SELECT gap_start, gap_end
FROM gaps
WHERE gap_end IS NOT NULL
AND gap_end >= gap_start
ORDER BY gap_start
`

// GetGaps runs the window-function gap query and converts the store's
// inclusive (gap_start, gap_end) rows into canonical half-open ranges
// [gap_start, gap_end+1).
func (s *Store) GetGaps(ctx context.Context) ([]events.Range, error) {
	rows, err := s.pool.Query(ctx, gapQuery)
	if err != nil {
		return nil, fmt.Errorf("store: get gaps: %w", err)
	}
	defer rows.Close()

	var out []events.Range
	for rows.Next() {
		var start, end int64
		if err := rows.Scan(&start, &end); err != nil {
			return nil, fmt.Errorf("store: scan gap row: %w", err)
		}
		out = append(out, events.Range{Start: uint64(start), End: uint64(end) + 1})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: gap rows: %w", err)
	}
	return out, nil
}
