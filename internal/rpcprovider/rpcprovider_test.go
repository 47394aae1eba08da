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

package rpcprovider

import (
	"context"
	"testing"

	"github.com/ChorusOne/monad-staking-indexer/internal/events"
	"github.com/stretchr/testify/assert"
)

func TestURLForAttemptRoundRobins(t *testing.T) {
	urls := []string{"ws://a", "ws://b", "ws://c"}
	assert.Equal(t, "ws://a", urlForAttempt(urls, 0))
	assert.Equal(t, "ws://b", urlForAttempt(urls, 1))
	assert.Equal(t, "ws://c", urlForAttempt(urls, 2))
	assert.Equal(t, "ws://a", urlForAttempt(urls, 3))
	assert.Equal(t, "ws://b", urlForAttempt(urls, 100))
}

func TestBlockNumberBig(t *testing.T) {
	assert.Equal(t, "0", blockNumberBig(0).String())
	assert.Equal(t, "18446744073709551615", blockNumberBig(^uint64(0)).String())
}

func TestNewPanicsOnEmptyURLs(t *testing.T) {
	assert.Panics(t, func() {
		New(nil, 0)
	})
}

func TestHistoricalLogsEmptyRangeIsNoOp(t *testing.T) {
	p := New([]string{"ws://a"}, 0)
	logs, err := p.HistoricalLogs(context.Background(), events.Range{Start: 5, End: 5})
	assert.NoError(t, err)
	assert.Nil(t, logs)
}

func TestHistoricalLogsRequiresConnection(t *testing.T) {
	p := New([]string{"ws://a"}, 0)
	_, err := p.HistoricalLogs(context.Background(), events.Range{Start: 5, End: 10})
	assert.Error(t, err)
}
