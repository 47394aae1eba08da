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
	"fmt"
	"strings"

	"github.com/ChorusOne/monad-staking-indexer/internal/events"
	"github.com/jackc/pgx/v5"
)

// multiRowUpsert builds "INSERT INTO table (cols) VALUES (...), (...), ...
// ON CONFLICT (conflictCols) DO NOTHING" and executes it, returning how many
// rows were actually inserted (vs submitted — the gap is duplicates).
func multiRowUpsert(ctx context.Context, tx pgx.Tx, table string, cols []string, conflictCols string, rows [][]any) (UpsertResult, error) {
	total := uint64(len(rows))
	if total == 0 {
		return UpsertResult{}, nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "INSERT INTO %s (%s) VALUES ", table, strings.Join(cols, ", "))

	args := make([]any, 0, len(rows)*len(cols))
	argN := 1
	for i, row := range rows {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(")
		for j := range row {
			if j > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "$%d", argN)
			argN++
		}
		sb.WriteString(")")
		args = append(args, row...)
	}
	fmt.Fprintf(&sb, " ON CONFLICT (%s) DO NOTHING", conflictCols)

	tag, err := tx.Exec(ctx, sb.String(), args...)
	if err != nil {
		return UpsertResult{}, fmt.Errorf("store: insert %s: %w", table, err)
	}
	return UpsertResult{Inserted: uint64(tag.RowsAffected()), Total: total}, nil
}

func upsertDelegate(ctx context.Context, tx pgx.Tx, evs []*events.Delegate, result map[events.Kind]UpsertResult) error {
	rows := make([][]any, len(evs))
	for i, e := range evs {
		rows[i] = []any{e.ValID, e.Delegator, e.Amount, e.ActivationEpoch, e.Block.BlockNumber, e.Tx.TransactionHash, e.Tx.TransactionIndex}
	}
	r, err := multiRowUpsert(ctx, tx, "delegate_events",
		[]string{"val_id", "delegator", "amount", "activation_epoch", "block_number", "transaction_hash", "transaction_index"},
		"val_id, transaction_hash", rows)
	if err != nil {
		return err
	}
	result[events.KindDelegate] = r
	return nil
}

func upsertUndelegate(ctx context.Context, tx pgx.Tx, evs []*events.Undelegate, result map[events.Kind]UpsertResult) error {
	rows := make([][]any, len(evs))
	for i, e := range evs {
		rows[i] = []any{e.ValID, e.Delegator, e.WithdrawalID, e.Amount, e.ActivationEpoch, e.Block.BlockNumber, e.Tx.TransactionHash, e.Tx.TransactionIndex}
	}
	r, err := multiRowUpsert(ctx, tx, "undelegate_events",
		[]string{"val_id", "delegator", "withdrawal_id", "amount", "activation_epoch", "block_number", "transaction_hash", "transaction_index"},
		"val_id, transaction_hash", rows)
	if err != nil {
		return err
	}
	result[events.KindUndelegate] = r
	return nil
}

func upsertWithdraw(ctx context.Context, tx pgx.Tx, evs []*events.Withdraw, result map[events.Kind]UpsertResult) error {
	rows := make([][]any, len(evs))
	for i, e := range evs {
		rows[i] = []any{e.ValID, e.Delegator, e.WithdrawalID, e.Amount, e.ActivationEpoch, e.Block.BlockNumber, e.Tx.TransactionHash, e.Tx.TransactionIndex}
	}
	r, err := multiRowUpsert(ctx, tx, "withdraw_events",
		[]string{"val_id", "delegator", "withdrawal_id", "amount", "activation_epoch", "block_number", "transaction_hash", "transaction_index"},
		"val_id, transaction_hash", rows)
	if err != nil {
		return err
	}
	result[events.KindWithdraw] = r
	return nil
}

func upsertClaimRewards(ctx context.Context, tx pgx.Tx, evs []*events.ClaimRewards, result map[events.Kind]UpsertResult) error {
	rows := make([][]any, len(evs))
	for i, e := range evs {
		rows[i] = []any{e.ValID, e.Delegator, e.Amount, e.Epoch, e.Block.BlockNumber, e.Tx.TransactionHash, e.Tx.TransactionIndex}
	}
	r, err := multiRowUpsert(ctx, tx, "claim_rewards_events",
		[]string{"val_id", "delegator", "amount", "epoch", "block_number", "transaction_hash", "transaction_index"},
		"val_id, transaction_hash", rows)
	if err != nil {
		return err
	}
	result[events.KindClaimRewards] = r
	return nil
}

func upsertValidatorRewarded(ctx context.Context, tx pgx.Tx, evs []*events.ValidatorRewarded, result map[events.Kind]UpsertResult) error {
	rows := make([][]any, len(evs))
	for i, e := range evs {
		rows[i] = []any{e.ValidatorID, e.From, e.Amount, e.Epoch, e.Block.BlockNumber, e.Tx.TransactionHash, e.Tx.TransactionIndex}
	}
	r, err := multiRowUpsert(ctx, tx, "validator_rewarded_events",
		[]string{"validator_id", "from_address", "amount", "epoch", "block_number", "transaction_hash", "transaction_index"},
		"transaction_hash", rows)
	if err != nil {
		return err
	}
	result[events.KindValidatorRewarded] = r
	return nil
}

func upsertEpochChanged(ctx context.Context, tx pgx.Tx, evs []*events.EpochChanged, result map[events.Kind]UpsertResult) error {
	rows := make([][]any, len(evs))
	for i, e := range evs {
		rows[i] = []any{e.OldEpoch, e.NewEpoch, e.Block.BlockNumber, e.Tx.TransactionHash, e.Tx.TransactionIndex}
	}
	r, err := multiRowUpsert(ctx, tx, "epoch_changed_events",
		[]string{"old_epoch", "new_epoch", "block_number", "transaction_hash", "transaction_index"},
		"transaction_hash", rows)
	if err != nil {
		return err
	}
	result[events.KindEpochChanged] = r
	return nil
}

func upsertValidatorCreated(ctx context.Context, tx pgx.Tx, evs []*events.ValidatorCreated, result map[events.Kind]UpsertResult) error {
	rows := make([][]any, len(evs))
	for i, e := range evs {
		rows[i] = []any{e.ValidatorID, e.AuthAddress, e.Commission, e.Block.BlockNumber, e.Tx.TransactionHash, e.Tx.TransactionIndex}
	}
	r, err := multiRowUpsert(ctx, tx, "validator_created_events",
		[]string{"validator_id", "auth_address", "commission", "block_number", "transaction_hash", "transaction_index"},
		"transaction_hash", rows)
	if err != nil {
		return err
	}
	result[events.KindValidatorCreated] = r
	return nil
}

func upsertValidatorStatusChanged(ctx context.Context, tx pgx.Tx, evs []*events.ValidatorStatusChanged, result map[events.Kind]UpsertResult) error {
	rows := make([][]any, len(evs))
	for i, e := range evs {
		rows[i] = []any{e.ValidatorID, e.Flags, e.Block.BlockNumber, e.Tx.TransactionHash, e.Tx.TransactionIndex}
	}
	r, err := multiRowUpsert(ctx, tx, "validator_status_changed_events",
		[]string{"validator_id", "flags", "block_number", "transaction_hash", "transaction_index"},
		"validator_id, transaction_hash", rows)
	if err != nil {
		return err
	}
	result[events.KindValidatorStatusChanged] = r
	return nil
}

func upsertCommissionChanged(ctx context.Context, tx pgx.Tx, evs []*events.CommissionChanged, result map[events.Kind]UpsertResult) error {
	rows := make([][]any, len(evs))
	for i, e := range evs {
		rows[i] = []any{e.ValidatorID, e.OldCommission, e.NewCommission, e.Block.BlockNumber, e.Tx.TransactionHash, e.Tx.TransactionIndex}
	}
	r, err := multiRowUpsert(ctx, tx, "commission_changed_events",
		[]string{"validator_id", "old_commission", "new_commission", "block_number", "transaction_hash", "transaction_index"},
		"validator_id, transaction_hash", rows)
	if err != nil {
		return err
	}
	result[events.KindCommissionChanged] = r
	return nil
}

func insertBlocks(ctx context.Context, tx pgx.Tx, blocks []events.BlockMeta) error {
	if len(blocks) == 0 {
		return nil
	}
	rows := make([][]any, len(blocks))
	for i, b := range blocks {
		rows[i] = []any{b.BlockNumber, b.BlockHash, b.BlockTimestamp}
	}
	_, err := multiRowUpsert(ctx, tx, "blocks", []string{"block_number", "block_hash", "block_timestamp"}, "block_number", rows)
	return err
}
