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
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wordFromUint256(u *uint256.Int) [32]byte {
	var w [32]byte
	b := u.Bytes32()
	copy(w[:], b[:])
	return w
}

func packWords(words ...[32]byte) []byte {
	out := make([]byte, 0, 32*len(words))
	for _, w := range words {
		out = append(out, w[:]...)
	}
	return out
}

func TestWordToDecimalU256Fidelity(t *testing.T) {
	maxU256, err := uint256.FromHex("0xffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff")
	require.NoError(t, err)

	cases := []*uint256.Int{
		uint256.NewInt(0),
		uint256.NewInt(12345),
		maxU256,
	}
	for _, u := range cases {
		w := wordFromUint256(u)
		got := wordToDecimal(w)
		assert.Equal(t, u.Dec(), got.String())
	}
}

func TestExtractEventDelegate(t *testing.T) {
	valID := wordFromUint256(uint256.NewInt(7))
	var delegatorWord [32]byte
	delegatorBytes := common.HexToAddress("0x00000000000000000000000000000000000090").Bytes()
	copy(delegatorWord[12:], delegatorBytes)

	amount := wordFromUint256(uint256.NewInt(1000))
	epoch := wordFromUint256(uint256.NewInt(1))

	log := RawLog{
		Topics:         []common.Hash{sigDelegate, common.Hash(valID), common.Hash(delegatorWord)},
		Data:           packWords(amount, epoch),
		BlockNumber:    100,
		BlockHash:      common.HexToHash("0xabc"),
		BlockTimestamp: 1000,
		TxHash:         common.HexToHash("0x123abc"),
		TxIndex:        0,
	}

	ev, err := ExtractEvent(log)
	require.NoError(t, err)
	require.NotNil(t, ev)
	require.Equal(t, KindDelegate, ev.Kind)
	assert.EqualValues(t, 7, ev.Delegate.ValID)
	assert.Equal(t, "1000", ev.Delegate.Amount.String())
	assert.EqualValues(t, 1, ev.Delegate.ActivationEpoch)
	assert.Equal(t, uint64(100), ev.Delegate.Block.BlockNumber)
}

func TestExtractEventUnknownTopicReturnsNilNil(t *testing.T) {
	log := RawLog{
		Topics:      []common.Hash{common.HexToHash("0xdeadbeef")},
		BlockHash:   common.HexToHash("0xabc"),
		TxHash:      common.HexToHash("0x123"),
		BlockNumber: 1,
	}
	ev, err := ExtractEvent(log)
	assert.NoError(t, err)
	assert.Nil(t, ev)
}

func TestExtractEventMissingTxHashIsError(t *testing.T) {
	log := RawLog{
		Topics:    []common.Hash{sigEpochChanged},
		BlockHash: common.HexToHash("0xabc"),
	}
	_, err := ExtractEvent(log)
	assert.Error(t, err)
}

func TestExtractEventShortDataIsError(t *testing.T) {
	log := RawLog{
		Topics:    []common.Hash{sigEpochChanged},
		BlockHash: common.HexToHash("0xabc"),
		TxHash:    common.HexToHash("0x123"),
		Data:      []byte{0x01},
	}
	_, err := ExtractEvent(log)
	assert.Error(t, err)
}
