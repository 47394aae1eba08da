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

// Package events defines the StakingEvent sum type, the block/tx envelope
// shared by every variant, and the log batching unit (BlockBatch) that the
// ingestion tasks hand off to the store writer.
package events

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// BlockMeta identifies the block a staking event was emitted in.
type BlockMeta struct {
	BlockNumber    uint64
	BlockHash      string // lowercase hex, no 0x prefix
	BlockTimestamp uint64
}

// TxMeta identifies the transaction a staking event was emitted by.
type TxMeta struct {
	TransactionHash  string // lowercase hex, no 0x prefix
	TransactionIndex uint64
}

// LogIndex is carried separately from TxMeta: spec.md requires it only for
// backfill ordering, never for storage, so it never appears in the
// persisted envelope.

// Kind identifies a StakingEvent variant. The batcher switches on it, and
// DbWriter's per-variant results and the metric counters use it as a map key.
type Kind uint8

const (
	KindDelegate Kind = iota
	KindUndelegate
	KindWithdraw
	KindClaimRewards
	KindValidatorRewarded
	KindEpochChanged
	KindValidatorCreated
	KindValidatorStatusChanged
	KindCommissionChanged
	numKinds
)

func (k Kind) String() string {
	switch k {
	case KindDelegate:
		return "delegate"
	case KindUndelegate:
		return "undelegate"
	case KindWithdraw:
		return "withdraw"
	case KindClaimRewards:
		return "claim_rewards"
	case KindValidatorRewarded:
		return "validator_rewarded"
	case KindEpochChanged:
		return "epoch_changed"
	case KindValidatorCreated:
		return "validator_created"
	case KindValidatorStatusChanged:
		return "validator_status_changed"
	case KindCommissionChanged:
		return "commission_changed"
	default:
		return "unknown"
	}
}

// Delegate corresponds to StakingPrecompile::Delegate.
type Delegate struct {
	ValID            uint64
	Delegator        string
	Amount           decimal.Decimal
	ActivationEpoch  uint64
	Block            BlockMeta
	Tx               TxMeta
}

func (e *Delegate) String() string {
	return fmt.Sprintf("Delegate block=%d val_id=%d", e.Block.BlockNumber, e.ValID)
}

// Undelegate corresponds to StakingPrecompile::Undelegate.
type Undelegate struct {
	ValID           uint64
	Delegator       string
	WithdrawalID    int64
	Amount          decimal.Decimal
	ActivationEpoch uint64
	Block           BlockMeta
	Tx              TxMeta
}

func (e *Undelegate) String() string {
	return fmt.Sprintf("Undelegate block=%d val_id=%d", e.Block.BlockNumber, e.ValID)
}

// Withdraw corresponds to StakingPrecompile::Withdraw.
type Withdraw struct {
	ValID           uint64
	Delegator       string
	WithdrawalID    int64
	Amount          decimal.Decimal
	ActivationEpoch uint64
	Block           BlockMeta
	Tx              TxMeta
}

func (e *Withdraw) String() string {
	return fmt.Sprintf("Withdraw block=%d val_id=%d", e.Block.BlockNumber, e.ValID)
}

// ClaimRewards corresponds to StakingPrecompile::ClaimRewards.
type ClaimRewards struct {
	ValID     uint64
	Delegator string
	Amount    decimal.Decimal
	Epoch     uint64
	Block     BlockMeta
	Tx        TxMeta
}

func (e *ClaimRewards) String() string {
	return fmt.Sprintf("ClaimRewards block=%d val_id=%d", e.Block.BlockNumber, e.ValID)
}

// ValidatorRewarded corresponds to StakingPrecompile::ValidatorRewarded.
type ValidatorRewarded struct {
	ValidatorID uint64
	From        string
	Amount      decimal.Decimal
	Epoch       uint64
	Block       BlockMeta
	Tx          TxMeta
}

func (e *ValidatorRewarded) String() string {
	return fmt.Sprintf("ValidatorRewarded block=%d validator_id=%d", e.Block.BlockNumber, e.ValidatorID)
}

// EpochChanged corresponds to StakingPrecompile::EpochChanged.
type EpochChanged struct {
	OldEpoch uint64
	NewEpoch uint64
	Block    BlockMeta
	Tx       TxMeta
}

func (e *EpochChanged) String() string {
	return fmt.Sprintf("EpochChanged block=%d", e.Block.BlockNumber)
}

// ValidatorCreated corresponds to StakingPrecompile::ValidatorCreated.
type ValidatorCreated struct {
	ValidatorID uint64
	AuthAddress string
	Commission  decimal.Decimal
	Block       BlockMeta
	Tx          TxMeta
}

func (e *ValidatorCreated) String() string {
	return fmt.Sprintf("ValidatorCreated block=%d validator_id=%d", e.Block.BlockNumber, e.ValidatorID)
}

// ValidatorStatusChanged corresponds to StakingPrecompile::ValidatorStatusChanged.
type ValidatorStatusChanged struct {
	ValidatorID uint64
	Flags       uint64
	Block       BlockMeta
	Tx          TxMeta
}

func (e *ValidatorStatusChanged) String() string {
	return fmt.Sprintf("ValidatorStatusChanged block=%d validator_id=%d", e.Block.BlockNumber, e.ValidatorID)
}

// CommissionChanged corresponds to StakingPrecompile::CommissionChanged.
type CommissionChanged struct {
	ValidatorID   uint64
	OldCommission decimal.Decimal
	NewCommission decimal.Decimal
	Block         BlockMeta
	Tx            TxMeta
}

func (e *CommissionChanged) String() string {
	return fmt.Sprintf("CommissionChanged block=%d validator_id=%d", e.Block.BlockNumber, e.ValidatorID)
}

// StakingEvent is the tagged union of every precompile-emitted log record
// this indexer understands. Exactly one field is non-nil.
type StakingEvent struct {
	Kind Kind

	Delegate               *Delegate
	Undelegate             *Undelegate
	Withdraw               *Withdraw
	ClaimRewards           *ClaimRewards
	ValidatorRewarded      *ValidatorRewarded
	EpochChanged           *EpochChanged
	ValidatorCreated       *ValidatorCreated
	ValidatorStatusChanged *ValidatorStatusChanged
	CommissionChanged      *CommissionChanged
}

// BlockMeta returns the envelope block metadata shared by every variant.
func (e *StakingEvent) BlockMeta() BlockMeta {
	switch e.Kind {
	case KindDelegate:
		return e.Delegate.Block
	case KindUndelegate:
		return e.Undelegate.Block
	case KindWithdraw:
		return e.Withdraw.Block
	case KindClaimRewards:
		return e.ClaimRewards.Block
	case KindValidatorRewarded:
		return e.ValidatorRewarded.Block
	case KindEpochChanged:
		return e.EpochChanged.Block
	case KindValidatorCreated:
		return e.ValidatorCreated.Block
	case KindValidatorStatusChanged:
		return e.ValidatorStatusChanged.Block
	case KindCommissionChanged:
		return e.CommissionChanged.Block
	default:
		return BlockMeta{}
	}
}

// TxMeta returns the envelope transaction metadata shared by every variant.
func (e *StakingEvent) TxMeta() TxMeta {
	switch e.Kind {
	case KindDelegate:
		return e.Delegate.Tx
	case KindUndelegate:
		return e.Undelegate.Tx
	case KindWithdraw:
		return e.Withdraw.Tx
	case KindClaimRewards:
		return e.ClaimRewards.Tx
	case KindValidatorRewarded:
		return e.ValidatorRewarded.Tx
	case KindEpochChanged:
		return e.EpochChanged.Tx
	case KindValidatorCreated:
		return e.ValidatorCreated.Tx
	case KindValidatorStatusChanged:
		return e.ValidatorStatusChanged.Tx
	case KindCommissionChanged:
		return e.CommissionChanged.Tx
	default:
		return TxMeta{}
	}
}

func (e *StakingEvent) String() string {
	switch e.Kind {
	case KindDelegate:
		return e.Delegate.String()
	case KindUndelegate:
		return e.Undelegate.String()
	case KindWithdraw:
		return e.Withdraw.String()
	case KindClaimRewards:
		return e.ClaimRewards.String()
	case KindValidatorRewarded:
		return e.ValidatorRewarded.String()
	case KindEpochChanged:
		return e.EpochChanged.String()
	case KindValidatorCreated:
		return e.ValidatorCreated.String()
	case KindValidatorStatusChanged:
		return e.ValidatorStatusChanged.String()
	case KindCommissionChanged:
		return e.CommissionChanged.String()
	default:
		return "unknown staking event"
	}
}
