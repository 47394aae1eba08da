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
	"context"
	"time"

	"github.com/ChorusOne/monad-staking-indexer/internal/store"
)

// GapScanner fires a GetGaps request to DbWriter on a fixed interval. The
// first tick happens immediately at startup so a gap already present at
// boot is backfilled even without any live activity.
type GapScanner struct {
	dbRequests chan<- store.Request
	interval   time.Duration
}

// NewGapScanner wires a GapScanner.
func NewGapScanner(dbRequests chan<- store.Request, interval time.Duration) *GapScanner {
	return &GapScanner{dbRequests: dbRequests, interval: interval}
}

// Run drives the task until ctx is cancelled.
func (s *GapScanner) Run(ctx context.Context) {
	s.tick(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *GapScanner) tick(ctx context.Context) {
	select {
	case s.dbRequests <- store.GetGapsRequest():
	case <-ctx.Done():
	}
}
