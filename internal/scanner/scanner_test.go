package scanner

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tokamak-network/optimism-oracle-service/internal/fraudtypes"
)

type fakeL1 struct {
	tipTotal uint64
	roots    map[fraudtypes.GlobalIndex]common.Hash
}

func (f *fakeL1) GetStateRootBatchHeader(_ context.Context, index fraudtypes.GlobalIndex) (*fraudtypes.StateRootBatchHeader, error) {
	if index >= f.tipTotal {
		return nil, fraudtypes.Wrap(fraudtypes.KindNotFound, "fakeL1.GetStateRootBatchHeader", errors.New("beyond tip"))
	}
	return &fraudtypes.StateRootBatchHeader{BatchIndex: 0, BatchSize: f.tipTotal, PrevTotalElements: 0}, nil
}

func (f *fakeL1) GetStateRoot(_ context.Context, index fraudtypes.GlobalIndex) (common.Hash, error) {
	if r, ok := f.roots[index]; ok {
		return r, nil
	}
	return common.Hash{}, nil
}

type fakeL2 struct {
	roots map[uint64]common.Hash
}

func (f *fakeL2) GetStateRoot(_ context.Context, rollupBlock uint64) (common.Hash, error) {
	if r, ok := f.roots[rollupBlock]; ok {
		return r, nil
	}
	return common.Hash{}, nil
}

func TestNextReturnsFalseWhenChainIsCaughtUp(t *testing.T) {
	l1 := &fakeL1{tipTotal: 3, roots: map[fraudtypes.GlobalIndex]common.Hash{
		0: common.HexToHash("0x01"), 1: common.HexToHash("0x02"), 2: common.HexToHash("0x03"),
	}}
	l2 := &fakeL2{roots: map[uint64]common.Hash{
		0: common.HexToHash("0x01"), 1: common.HexToHash("0x02"), 2: common.HexToHash("0x03"),
	}}
	s := New(l1, l2, 0)

	idx, found, err := s.Next(context.Background(), 0)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if found {
		t.Fatalf("expected no mismatch, got index %d", idx)
	}
}

func TestNextFindsFirstMismatch(t *testing.T) {
	l1 := &fakeL1{tipTotal: 5, roots: map[fraudtypes.GlobalIndex]common.Hash{
		0: common.HexToHash("0x01"), 1: common.HexToHash("0x02"), 2: common.HexToHash("0xBAD"), 3: common.HexToHash("0x04"),
	}}
	l2 := &fakeL2{roots: map[uint64]common.Hash{
		0: common.HexToHash("0x01"), 1: common.HexToHash("0x02"), 2: common.HexToHash("0xC0FFEE"), 3: common.HexToHash("0x04"),
	}}
	s := New(l1, l2, 0)

	idx, found, err := s.Next(context.Background(), 0)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if !found || idx != 2 {
		t.Fatalf("Next() = (%d, %v), want (2, true)", idx, found)
	}
}

func TestNextAppliesBlockOffsetToL2Lookup(t *testing.T) {
	l1 := &fakeL1{tipTotal: 2, roots: map[fraudtypes.GlobalIndex]common.Hash{
		0: common.HexToHash("0x01"),
	}}
	l2 := &fakeL2{roots: map[uint64]common.Hash{
		// l2's root for l1 index 0 lives at rollup block 100 (BlockOffset).
		100: common.HexToHash("0x01"),
	}}
	s := New(l1, l2, 100)

	_, found, err := s.Next(context.Background(), 0)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if found {
		t.Fatal("expected no mismatch once the offset correctly lines up both roots")
	}
}

func TestNextPropagatesL1Error(t *testing.T) {
	wantErr := fraudtypes.Wrap(fraudtypes.KindTransport, "fakeL1.GetStateRoot", errors.New("boom"))
	l1 := &errL1{err: wantErr}
	l2 := &fakeL2{}
	s := New(l1, l2, 0)

	_, _, err := s.Next(context.Background(), 0)
	if !fraudtypes.IsKind(err, fraudtypes.KindTransport) {
		t.Fatalf("Next() error = %v, want KindTransport", err)
	}
}

type errL1 struct{ err error }

func (e *errL1) GetStateRootBatchHeader(context.Context, fraudtypes.GlobalIndex) (*fraudtypes.StateRootBatchHeader, error) {
	return &fraudtypes.StateRootBatchHeader{BatchSize: 10}, nil
}

func (e *errL1) GetStateRoot(context.Context, fraudtypes.GlobalIndex) (common.Hash, error) {
	return common.Hash{}, e.err
}
