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

// Package errs defines the sentinel error kinds the task loops branch on.
// A task never treats an error as fatal unless it is wrapped with Fatal;
// everything else is logged and retried, per the "no inter-task
// cancellation" rule.
package errs

import "errors"

// ErrConnRefused means a websocket handshake to an RPC endpoint failed
// outright (as opposed to timing out).
var ErrConnRefused = errors.New("rpc: connection refused")

// ErrConnTimeout means a connection attempt exceeded its deadline.
var ErrConnTimeout = errors.New("rpc: connection timed out")

// ErrStreamDead means a live subscription's watchdog fired, or the
// underlying stream closed. Callers must reconnect.
var ErrStreamDead = errors.New("rpc: stream terminated")

// ErrOperationTimeout means a bounded operation (typically a DB
// transaction) was cancelled by its own deadline, not by the caller.
var ErrOperationTimeout = errors.New("operation timed out")

// Fatal wraps an error that should terminate the process rather than be
// retried. Task loops check for it with errors.As before looping.
type Fatal struct {
	Err error
}

func (f *Fatal) Error() string { return f.Err.Error() }

func (f *Fatal) Unwrap() error { return f.Err }

// AsFatal wraps err as a Fatal.
func AsFatal(err error) error {
	if err == nil {
		return nil
	}
	return &Fatal{Err: err}
}

// IsFatal reports whether err (or anything it wraps) is a Fatal.
func IsFatal(err error) bool {
	var f *Fatal
	return errors.As(err, &f)
}
