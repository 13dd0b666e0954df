package driverloop

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/tokamak-network/optimism-oracle-service/internal/fraudtypes"
)

func discardLogger() log.Logger {
	return log.NewLogger(log.DiscardHandler())
}

type fakeScanner struct {
	found  fraudtypes.GlobalIndex
	hasHit bool
	err    error
	calls  int
}

func (f *fakeScanner) Next(context.Context, fraudtypes.GlobalIndex) (fraudtypes.GlobalIndex, bool, error) {
	f.calls++
	return f.found, f.hasHit, f.err
}

type fakeWitness struct {
	data *fraudtypes.FraudProofData
	err  error
}

func (f *fakeWitness) Assemble(context.Context, fraudtypes.GlobalIndex) (*fraudtypes.FraudProofData, error) {
	return f.data, f.err
}

type fakeDriver struct {
	next fraudtypes.GlobalIndex
	err  error
}

func (f *fakeDriver) Run(context.Context, *fraudtypes.FraudProofData) (fraudtypes.GlobalIndex, error) {
	return f.next, f.err
}

func TestTickReturnsUnchangedCursorWhenNoMismatch(t *testing.T) {
	l := &Loop{
		Scanner: &fakeScanner{hasHit: false},
		Witness: &fakeWitness{},
		Driver:  &fakeDriver{},
		Log:     discardLogger(),
	}
	next, advanced := l.tick(context.Background(), 5)
	if advanced {
		t.Fatal("expected no advance when scanner finds nothing")
	}
	if next != 5 {
		t.Fatalf("next = %d, want 5", next)
	}
}

func TestTickAdvancesCursorOnSuccessfulDispute(t *testing.T) {
	l := &Loop{
		Scanner: &fakeScanner{found: 9, hasHit: true},
		Witness: &fakeWitness{data: &fraudtypes.FraudProofData{}},
		Driver:  &fakeDriver{next: 3},
		Log:     discardLogger(),
	}
	next, advanced := l.tick(context.Background(), 9)
	if !advanced {
		t.Fatal("expected the cursor to advance on a successful dispute")
	}
	if next != 3 {
		t.Fatalf("next = %d, want 3", next)
	}
}

func TestTickDoesNotAdvanceOnScannerError(t *testing.T) {
	l := &Loop{
		Scanner: &fakeScanner{err: errors.New("boom")},
		Witness: &fakeWitness{},
		Driver:  &fakeDriver{},
		Log:     discardLogger(),
	}
	next, advanced := l.tick(context.Background(), 4)
	if advanced || next != 4 {
		t.Fatalf("tick() = (%d, %v), want (4, false)", next, advanced)
	}
}

func TestTickDoesNotAdvanceOnWitnessError(t *testing.T) {
	l := &Loop{
		Scanner: &fakeScanner{found: 2, hasHit: true},
		Witness: &fakeWitness{err: errors.New("corrupt")},
		Driver:  &fakeDriver{},
		Log:     discardLogger(),
	}
	next, advanced := l.tick(context.Background(), 2)
	if advanced || next != 2 {
		t.Fatalf("tick() = (%d, %v), want (2, false)", next, advanced)
	}
}

func TestTickDoesNotAdvanceOnDriverError(t *testing.T) {
	l := &Loop{
		Scanner: &fakeScanner{found: 6, hasHit: true},
		Witness: &fakeWitness{data: &fraudtypes.FraudProofData{}},
		Driver:  &fakeDriver{err: errors.New("submission failed")},
		Log:     discardLogger(),
	}
	next, advanced := l.tick(context.Background(), 6)
	if advanced || next != 6 {
		t.Fatalf("tick() = (%d, %v), want (6, false)", next, advanced)
	}
}

func TestRunStopsOnContextCancellation(t *testing.T) {
	l := New(&fakeScanner{}, &fakeWitness{}, &fakeDriver{}, time.Millisecond, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if err := l.Run(ctx, 0); err != nil {
		t.Fatalf("Run: %v", err)
	}
}
