// Package scanner implements component C7 of spec.md: a pure-read linear
// cursor over state-root indices that locates the next state root the
// settlement chain and the rollup node disagree about.
package scanner

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tokamak-network/optimism-oracle-service/internal/fraudtypes"
)

// L1Source is the settlement-chain read surface the scanner needs.
type L1Source interface {
	GetStateRootBatchHeader(ctx context.Context, index fraudtypes.GlobalIndex) (*fraudtypes.StateRootBatchHeader, error)
	GetStateRoot(ctx context.Context, index fraudtypes.GlobalIndex) (common.Hash, error)
}

// L2Source is the rollup-node read surface the scanner needs.
type L2Source interface {
	GetStateRoot(ctx context.Context, rollupBlock uint64) (common.Hash, error)
}

// Scanner walks the settlement chain's committed state roots forward from
// a cursor, comparing each against the rollup node's own root at the
// corresponding block, until it finds a mismatch or runs out of committed
// roots to check.
type Scanner struct {
	L1          L1Source
	L2          L2Source
	BlockOffset uint64
}

// New constructs a Scanner comparing L1's state root at index i against
// L2's state root at rollup block i+blockOffset.
func New(l1 L1Source, l2 L2Source, blockOffset uint64) *Scanner {
	return &Scanner{L1: l1, L2: l2, BlockOffset: blockOffset}
}

// Next scans forward from cursor and returns the index of the first state
// root the settlement chain and the rollup node disagree on. It returns
// (0, false, nil) if the settlement chain is caught up to its own tip
// without finding a mismatch: cursor should not advance on that outcome,
// since a later poll may observe a newly appended batch covering it.
//
// Next is pure-read and cheap enough to run on every poll of the driver
// loop (package driverloop).
func (s *Scanner) Next(ctx context.Context, cursor fraudtypes.GlobalIndex) (fraudtypes.GlobalIndex, bool, error) {
	for {
		if _, err := s.L1.GetStateRootBatchHeader(ctx, cursor); err != nil {
			if fraudtypes.IsKind(err, fraudtypes.KindNotFound) {
				return 0, false, nil
			}
			return 0, false, err
		}

		l1Root, err := s.L1.GetStateRoot(ctx, cursor)
		if err != nil {
			return 0, false, err
		}
		l2Root, err := s.L2.GetStateRoot(ctx, cursor+s.BlockOffset)
		if err != nil {
			return 0, false, err
		}
		if l1Root != l2Root {
			return cursor, true, nil
		}
		cursor++
	}
}
