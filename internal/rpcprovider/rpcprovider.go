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

// Package rpcprovider implements ReconnectProvider: a connected-client
// supplier with URL round-robin failover, a 5s connect timeout, and a
// watchdog-guarded live log subscription. Every ingestion task (LiveIngestor,
// GapBackfiller) owns its own *Provider; none are shared.
package rpcprovider

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ChorusOne/monad-staking-indexer/internal/errs"
	"github.com/ChorusOne/monad-staking-indexer/internal/events"
	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/log"
)

const connectTimeout = 5 * time.Second

// Provider supplies a connected RPC client on demand and owns the
// reconnection strategy: URL round-robin across a failover list, a hard
// connect timeout, and a watchdog-guarded subscription.
type Provider struct {
	urls            []string
	watchdogTimeout time.Duration
	client          *ethclient.Client

	// tsCache memoizes block_hash -> block_timestamp lookups. This chain's
	// RPC does not stamp logs with a timestamp the way eth_getLogs does on
	// mainnet, so every log requires one extra header fetch; the cache
	// collapses that to one fetch per block instead of one per log.
	tsCache map[common.Hash]uint64
}

// New constructs a Provider. urls must be non-empty; watchdogTimeout bounds
// how long StreamEvents will wait for the next log before declaring the
// subscription dead.
func New(urls []string, watchdogTimeout time.Duration) *Provider {
	if len(urls) == 0 {
		panic("rpcprovider: urls list cannot be empty")
	}
	return &Provider{urls: urls, watchdogTimeout: watchdogTimeout, tsCache: make(map[common.Hash]uint64)}
}

// Connect dials urls[attempt % len(urls)] with a 5s timeout if no client is
// currently held. It is a no-op if a client is already connected. The
// returned error is errs.ErrConnRefused or errs.ErrConnTimeout on failure,
// so callers can map it to the matching metric.
func (p *Provider) Connect(ctx context.Context, attempt int) error {
	if p.client != nil {
		return nil
	}

	url := urlForAttempt(p.urls, attempt)
	log.Debug("connecting to RPC", "url", url, "attempt", attempt)

	dialCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := ethclient.DialContext(dialCtx, url)
	if err != nil {
		if dialCtx.Err() != nil {
			log.Error("timed out connecting to RPC", "url", url)
			return errs.ErrConnTimeout
		}
		log.Error("failed to connect to RPC", "url", url, "err", err)
		return errs.ErrConnRefused
	}

	log.Info("connected to RPC", "url", url)
	p.client = client
	return nil
}

// Close releases the held client, if any. Safe to call when disconnected.
func (p *Provider) Close() {
	if p.client != nil {
		p.client.Close()
		p.client = nil
	}
}

// HistoricalLogs fetches logs for the staking precompile address over the
// half-open range r, translated to the RPC's inclusive from/to convention
// as from=r.Start, to=r.End-1. Connect must have been called successfully
// first.
func (p *Provider) HistoricalLogs(ctx context.Context, r events.Range) ([]events.RawLog, error) {
	if r.Empty() {
		return nil, nil
	}
	if p.client == nil {
		return nil, fmt.Errorf("rpcprovider: not connected")
	}

	q := ethereum.FilterQuery{
		Addresses: []common.Address{events.StakingPrecompileAddress},
		FromBlock: blockNumberBig(r.Start),
		ToBlock:   blockNumberBig(r.End - 1),
	}

	logs, err := p.client.FilterLogs(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("rpcprovider: get_logs: %w", err)
	}

	out := make([]events.RawLog, 0, len(logs))
	for _, l := range logs {
		raw, err := toRawLog(ctx, p.client, p.tsCache, l)
		if err != nil {
			return nil, fmt.Errorf("rpcprovider: resolve block timestamp: %w", err)
		}
		out = append(out, raw)
	}
	return out, nil
}

// StreamEvents opens a live log subscription for the staking precompile
// address and returns a channel protected by a watchdog: if no log arrives
// within watchdogTimeout, the channel is closed and the held client
// released. The caller must treat channel closure as "stream dead, go
// reconnect" and must not call StreamEvents again without a fresh Connect.
func (p *Provider) StreamEvents(ctx context.Context) (<-chan events.RawLog, error) {
	if p.client == nil {
		return nil, fmt.Errorf("rpcprovider: not connected")
	}

	q := ethereum.FilterQuery{Addresses: []common.Address{events.StakingPrecompileAddress}}
	rawCh := make(chan types.Log)
	sub, err := p.client.SubscribeFilterLogs(ctx, q, rawCh)
	if err != nil {
		return nil, fmt.Errorf("rpcprovider: subscribe_logs: %w", err)
	}

	out := make(chan events.RawLog)
	client := p.client
	watchdogTimeout := p.watchdogTimeout
	tsCache := p.tsCache
	p.client = nil // the watchdog goroutine now owns this client's lifetime

	go func() {
		defer close(out)
		defer sub.Unsubscribe()
		defer client.Close()

		watchdog := time.NewTimer(watchdogTimeout)
		defer watchdog.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case err := <-sub.Err():
				if err != nil {
					log.Error("log subscription error", "err", err)
				}
				return
			case l, ok := <-rawCh:
				if !ok {
					return
				}
				if !watchdog.Stop() {
					<-watchdog.C
				}
				watchdog.Reset(watchdogTimeout)
				raw, err := toRawLog(ctx, client, tsCache, l)
				if err != nil {
					log.Error("failed to resolve block timestamp for streamed log", "err", err)
					continue
				}
				select {
				case out <- raw:
				case <-ctx.Done():
					return
				}
			case <-watchdog.C:
				log.Warn("log subscription watchdog fired, reconnect required")
				return
			}
		}
	}()

	return out, nil
}

// toRawLog resolves l's block timestamp (via tsCache, falling back to a
// HeaderByHash call) and projects l into this package's RawLog shape.
func toRawLog(ctx context.Context, client *ethclient.Client, tsCache map[common.Hash]uint64, l types.Log) (events.RawLog, error) {
	ts, ok := tsCache[l.BlockHash]
	if !ok {
		header, err := client.HeaderByHash(ctx, l.BlockHash)
		if err != nil {
			return events.RawLog{}, fmt.Errorf("header by hash %s: %w", l.BlockHash, err)
		}
		ts = header.Time
		tsCache[l.BlockHash] = ts
	}

	return events.RawLog{
		Address:        l.Address,
		Topics:         l.Topics,
		Data:           l.Data,
		BlockNumber:    l.BlockNumber,
		BlockHash:      l.BlockHash,
		BlockTimestamp: ts,
		TxHash:         l.TxHash,
		TxIndex:        uint64(l.TxIndex),
		LogIndex:       uint64(l.Index),
	}, nil
}

func blockNumberBig(n uint64) *big.Int {
	return new(big.Int).SetUint64(n)
}

// urlForAttempt selects urls[attempt % len(urls)], the round-robin failover
// rule shared by every reconnect path.
func urlForAttempt(urls []string, attempt int) string {
	return urls[attempt%len(urls)]
}
