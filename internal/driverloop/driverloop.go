// Package driverloop implements component C8 of spec.md: the cooperative
// poll loop tying the scanner (C7), witness assembler (C4), and phase
// driver (C6) together, plus the cancellation policy of §5 ("the
// supervisor sets a running flag; the driver checks it only between
// top-level polls").
package driverloop

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/tokamak-network/optimism-oracle-service/internal/fraudtypes"
)

// Scanner is the C7 read surface the loop polls every tick.
type Scanner interface {
	Next(ctx context.Context, cursor fraudtypes.GlobalIndex) (fraudtypes.GlobalIndex, bool, error)
}

// WitnessAssembler is the C4 surface that turns a mismatch index into a
// complete, self-contained dispute witness.
type WitnessAssembler interface {
	Assemble(ctx context.Context, index fraudtypes.GlobalIndex) (*fraudtypes.FraudProofData, error)
}

// DisputeRunner is the C6 surface that drives one witness to completion
// and reports the cursor value to resume from.
type DisputeRunner interface {
	Run(ctx context.Context, data *fraudtypes.FraudProofData) (fraudtypes.GlobalIndex, error)
}

// Loop is the single-threaded, cooperative poll loop of spec.md §4.8/§5:
// sleep, scan, and on a hit assemble a witness and drive the dispute to
// completion. Any unhandled error is logged and the loop continues
// without advancing the cursor, so the same mismatch is retried on the
// next poll.
type Loop struct {
	Scanner         Scanner
	Witness         WitnessAssembler
	Driver          DisputeRunner
	PollingInterval time.Duration
	Log             log.Logger
}

// New constructs a Loop. logger may be nil, in which case a default
// logger tagged "component=driverloop" is used.
func New(scanner Scanner, witness WitnessAssembler, driver DisputeRunner, pollingInterval time.Duration, logger log.Logger) *Loop {
	if logger == nil {
		logger = log.New("component", "driverloop")
	}
	return &Loop{Scanner: scanner, Witness: witness, Driver: driver, PollingInterval: pollingInterval, Log: logger}
}

// Run polls until ctx is cancelled, starting from fromIndex. It returns
// nil on cancellation; it never returns due to a dispute or scan error,
// since those are recoverable by the next poll per spec.md §4.8.
func (l *Loop) Run(ctx context.Context, fromIndex fraudtypes.GlobalIndex) error {
	cursor := fromIndex
	ticker := time.NewTicker(l.PollingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		next, advanced := l.tick(ctx, cursor)
		if advanced {
			cursor = next
		}
	}
}

// tick runs one scan-and-dispute cycle and reports the cursor value to
// resume from, if any step made forward progress.
func (l *Loop) tick(ctx context.Context, cursor fraudtypes.GlobalIndex) (fraudtypes.GlobalIndex, bool) {
	mismatch, found, err := l.Scanner.Next(ctx, cursor)
	if err != nil {
		l.Log.Error("scanner failed", "cursor", cursor, "err", err)
		return cursor, false
	}
	if !found {
		return cursor, false
	}

	l.Log.Info("mismatch found", "index", mismatch)
	data, err := l.Witness.Assemble(ctx, mismatch)
	if err != nil {
		l.Log.Error("witness assembly failed", "index", mismatch, "err", err)
		return cursor, false
	}

	next, err := l.Driver.Run(ctx, data)
	if err != nil {
		l.Log.Error("dispute failed", "index", mismatch, "err", err)
		return cursor, false
	}

	l.Log.Info("dispute finalized", "index", mismatch, "nextCursor", next)
	return next, true
}
