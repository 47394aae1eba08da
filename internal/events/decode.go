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

import (
	"encoding/hex"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// StakingPrecompileAddress is the fixed, process-wide address the indexer
// decodes logs for. It never changes at runtime.
var StakingPrecompileAddress = common.HexToAddress("0x0000000000000000000000000000000000001000")

// topic0 signature hashes for every known variant, keccak256 of the
// canonical event signature, matching the precompile's Solidity ABI.
var (
	sigDelegate               = crypto.Keccak256Hash([]byte("Delegate(uint256,address,uint256,uint256)"))
	sigUndelegate             = crypto.Keccak256Hash([]byte("Undelegate(uint256,address,uint256,uint256,uint256)"))
	sigWithdraw               = crypto.Keccak256Hash([]byte("Withdraw(uint256,address,uint256,uint256,uint256)"))
	sigClaimRewards           = crypto.Keccak256Hash([]byte("ClaimRewards(uint256,address,uint256,uint256)"))
	sigValidatorRewarded      = crypto.Keccak256Hash([]byte("ValidatorRewarded(uint256,address,uint256,uint256)"))
	sigEpochChanged           = crypto.Keccak256Hash([]byte("EpochChanged(uint256,uint256)"))
	sigValidatorCreated       = crypto.Keccak256Hash([]byte("ValidatorCreated(uint256,address,uint256)"))
	sigValidatorStatusChanged = crypto.Keccak256Hash([]byte("ValidatorStatusChanged(uint256,uint256)"))
	sigCommissionChanged      = crypto.Keccak256Hash([]byte("CommissionChanged(uint256,uint256,uint256)"))
)

// word returns the i-th 32-byte ABI word from data, or an error if data is
// too short. i is zero-based.
func word(data []byte, i int) ([32]byte, error) {
	var w [32]byte
	start := i * 32
	if start+32 > len(data) {
		return w, fmt.Errorf("log data too short for word %d: have %d bytes", i, len(data))
	}
	copy(w[:], data[start:start+32])
	return w, nil
}

func wordToUint64(w [32]byte) uint64 {
	return new(uint256.Int).SetBytes(w[:]).Uint64()
}

func wordToDecimal(w [32]byte) decimal.Decimal {
	u := new(uint256.Int).SetBytes(w[:])
	return decimal.RequireFromString(u.Dec())
}

func wordToAddress(w [32]byte) string {
	return hex.EncodeToString(w[12:])
}

// RawLog is the indexer's own projection of an RPC log entry. It is
// produced by internal/rpcprovider from both the live subscription and the
// historical getLogs path; unlike go-ethereum's core/types.Log it carries
// BlockTimestamp, which internal/rpcprovider resolves from the log's block
// header (spec.md §6, "External Interfaces / RPC").
type RawLog struct {
	Address        common.Address
	Topics         []common.Hash
	Data           []byte
	BlockNumber    uint64
	BlockHash      common.Hash
	BlockTimestamp uint64
	TxHash         common.Hash
	TxIndex        uint64
	LogIndex       uint64
}

// HasRequiredFields reports whether the block hash and transaction hash are
// both set (non-zero). The numeric fields (block number, timestamp, tx
// index, log index) are plain values and are not checked.
func (l RawLog) HasRequiredFields() bool {
	return l.BlockHash != (common.Hash{}) && l.TxHash != (common.Hash{})
}

// ExtractEvent decodes a single raw log into a StakingEvent. It returns
// (nil, nil) when topic[0] does not match any known signature — this is
// the normal case for unrelated logs and is not an error. A non-nil error
// means a required field was missing or the payload was malformed for a
// topic this package does recognize; callers must log and skip, never
// abort ingestion (spec.md §7, "Decode failure").
func ExtractEvent(log RawLog) (*StakingEvent, error) {
	if log.BlockHash == (common.Hash{}) {
		return nil, fmt.Errorf("missing block hash")
	}
	if log.TxHash == (common.Hash{}) {
		return nil, fmt.Errorf("missing transaction hash")
	}
	if len(log.Topics) == 0 {
		return nil, nil
	}
	return extract(log)
}

func (d RawLog) blockMeta() BlockMeta {
	return BlockMeta{
		BlockNumber:    d.BlockNumber,
		BlockHash:      hex.EncodeToString(d.BlockHash.Bytes()),
		BlockTimestamp: d.BlockTimestamp,
	}
}

func (d RawLog) txMeta() TxMeta {
	return TxMeta{
		TransactionHash:  hex.EncodeToString(d.TxHash.Bytes()),
		TransactionIndex: d.TxIndex,
	}
}

func extract(d RawLog) (*StakingEvent, error) {
	topic0 := d.Topics[0]
	block := d.blockMeta()
	tx := d.txMeta()

	switch topic0 {
	case sigDelegate:
		if len(d.Topics) < 3 {
			return nil, fmt.Errorf("delegate: expected 3 topics, got %d", len(d.Topics))
		}
		amount, err := word(d.Data, 0)
		if err != nil {
			return nil, fmt.Errorf("delegate: %w", err)
		}
		epoch, err := word(d.Data, 1)
		if err != nil {
			return nil, fmt.Errorf("delegate: %w", err)
		}
		return &StakingEvent{Kind: KindDelegate, Delegate: &Delegate{
			ValID:           wordToUint64(d.Topics[1]),
			Delegator:       wordToAddress(d.Topics[2]),
			Amount:          wordToDecimal(amount),
			ActivationEpoch: wordToUint64(epoch),
			Block:           block,
			Tx:              tx,
		}}, nil

	case sigUndelegate:
		if len(d.Topics) < 3 {
			return nil, fmt.Errorf("undelegate: expected 3 topics, got %d", len(d.Topics))
		}
		wID, err := word(d.Data, 0)
		if err != nil {
			return nil, fmt.Errorf("undelegate: %w", err)
		}
		amount, err := word(d.Data, 1)
		if err != nil {
			return nil, fmt.Errorf("undelegate: %w", err)
		}
		epoch, err := word(d.Data, 2)
		if err != nil {
			return nil, fmt.Errorf("undelegate: %w", err)
		}
		return &StakingEvent{Kind: KindUndelegate, Undelegate: &Undelegate{
			ValID:           wordToUint64(d.Topics[1]),
			Delegator:       wordToAddress(d.Topics[2]),
			WithdrawalID:    int64(wordToUint64(wID)),
			Amount:          wordToDecimal(amount),
			ActivationEpoch: wordToUint64(epoch),
			Block:           block,
			Tx:              tx,
		}}, nil

	case sigWithdraw:
		if len(d.Topics) < 3 {
			return nil, fmt.Errorf("withdraw: expected 3 topics, got %d", len(d.Topics))
		}
		wID, err := word(d.Data, 0)
		if err != nil {
			return nil, fmt.Errorf("withdraw: %w", err)
		}
		amount, err := word(d.Data, 1)
		if err != nil {
			return nil, fmt.Errorf("withdraw: %w", err)
		}
		epoch, err := word(d.Data, 2)
		if err != nil {
			return nil, fmt.Errorf("withdraw: %w", err)
		}
		return &StakingEvent{Kind: KindWithdraw, Withdraw: &Withdraw{
			ValID:           wordToUint64(d.Topics[1]),
			Delegator:       wordToAddress(d.Topics[2]),
			WithdrawalID:    int64(wordToUint64(wID)),
			Amount:          wordToDecimal(amount),
			ActivationEpoch: wordToUint64(epoch),
			Block:           block,
			Tx:              tx,
		}}, nil

	case sigClaimRewards:
		if len(d.Topics) < 3 {
			return nil, fmt.Errorf("claim_rewards: expected 3 topics, got %d", len(d.Topics))
		}
		amount, err := word(d.Data, 0)
		if err != nil {
			return nil, fmt.Errorf("claim_rewards: %w", err)
		}
		epoch, err := word(d.Data, 1)
		if err != nil {
			return nil, fmt.Errorf("claim_rewards: %w", err)
		}
		return &StakingEvent{Kind: KindClaimRewards, ClaimRewards: &ClaimRewards{
			ValID:     wordToUint64(d.Topics[1]),
			Delegator: wordToAddress(d.Topics[2]),
			Amount:    wordToDecimal(amount),
			Epoch:     wordToUint64(epoch),
			Block:     block,
			Tx:        tx,
		}}, nil

	case sigValidatorRewarded:
		if len(d.Topics) < 3 {
			return nil, fmt.Errorf("validator_rewarded: expected 3 topics, got %d", len(d.Topics))
		}
		amount, err := word(d.Data, 0)
		if err != nil {
			return nil, fmt.Errorf("validator_rewarded: %w", err)
		}
		epoch, err := word(d.Data, 1)
		if err != nil {
			return nil, fmt.Errorf("validator_rewarded: %w", err)
		}
		return &StakingEvent{Kind: KindValidatorRewarded, ValidatorRewarded: &ValidatorRewarded{
			ValidatorID: wordToUint64(d.Topics[1]),
			From:        wordToAddress(d.Topics[2]),
			Amount:      wordToDecimal(amount),
			Epoch:       wordToUint64(epoch),
			Block:       block,
			Tx:          tx,
		}}, nil

	case sigEpochChanged:
		oldE, err := word(d.Data, 0)
		if err != nil {
			return nil, fmt.Errorf("epoch_changed: %w", err)
		}
		newE, err := word(d.Data, 1)
		if err != nil {
			return nil, fmt.Errorf("epoch_changed: %w", err)
		}
		return &StakingEvent{Kind: KindEpochChanged, EpochChanged: &EpochChanged{
			OldEpoch: wordToUint64(oldE),
			NewEpoch: wordToUint64(newE),
			Block:    block,
			Tx:       tx,
		}}, nil

	case sigValidatorCreated:
		if len(d.Topics) < 3 {
			return nil, fmt.Errorf("validator_created: expected 3 topics, got %d", len(d.Topics))
		}
		commission, err := word(d.Data, 0)
		if err != nil {
			return nil, fmt.Errorf("validator_created: %w", err)
		}
		return &StakingEvent{Kind: KindValidatorCreated, ValidatorCreated: &ValidatorCreated{
			ValidatorID: wordToUint64(d.Topics[1]),
			AuthAddress: wordToAddress(d.Topics[2]),
			Commission:  wordToDecimal(commission),
			Block:       block,
			Tx:          tx,
		}}, nil

	case sigValidatorStatusChanged:
		if len(d.Topics) < 2 {
			return nil, fmt.Errorf("validator_status_changed: expected 2 topics, got %d", len(d.Topics))
		}
		flags, err := word(d.Data, 0)
		if err != nil {
			return nil, fmt.Errorf("validator_status_changed: %w", err)
		}
		return &StakingEvent{Kind: KindValidatorStatusChanged, ValidatorStatusChanged: &ValidatorStatusChanged{
			ValidatorID: wordToUint64(d.Topics[1]),
			Flags:       wordToUint64(flags),
			Block:       block,
			Tx:          tx,
		}}, nil

	case sigCommissionChanged:
		if len(d.Topics) < 2 {
			return nil, fmt.Errorf("commission_changed: expected 2 topics, got %d", len(d.Topics))
		}
		oldC, err := word(d.Data, 0)
		if err != nil {
			return nil, fmt.Errorf("commission_changed: %w", err)
		}
		newC, err := word(d.Data, 1)
		if err != nil {
			return nil, fmt.Errorf("commission_changed: %w", err)
		}
		return &StakingEvent{Kind: KindCommissionChanged, CommissionChanged: &CommissionChanged{
			ValidatorID:   wordToUint64(d.Topics[1]),
			OldCommission: wordToDecimal(oldC),
			NewCommission: wordToDecimal(newC),
			Block:         block,
			Tx:            tx,
		}}, nil

	default:
		return nil, nil
	}
}
