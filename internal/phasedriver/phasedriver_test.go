package phasedriver

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/tokamak-network/optimism-oracle-service/internal/fraudtypes"
)

func TestSubmitClassifiesRaceRevertBeforeWaitingForReceipt(t *testing.T) {
	d := &Driver{}
	err := d.submit(context.Background(), "test.op", func() (*types.Transaction, error) {
		return nil, errors.New("execution reverted: already been proven")
	})
	if !fraudtypes.IsKind(err, fraudtypes.KindRace) {
		t.Fatalf("submit() = %v, want KindRace", err)
	}
}

func TestSubmitClassifiesUnrelatedRevertAsSubmission(t *testing.T) {
	d := &Driver{}
	err := d.submit(context.Background(), "test.op", func() (*types.Transaction, error) {
		return nil, errors.New("execution reverted: insufficient balance")
	})
	if !fraudtypes.IsKind(err, fraudtypes.KindSubmission) {
		t.Fatalf("submit() = %v, want KindSubmission", err)
	}
}

func TestIsPhaseGuardRevertMatchesOnlyItsOwnSubstring(t *testing.T) {
	if !isPhaseGuardRevert(errors.New("execution reverted: Function must be called during the correct phase")) {
		t.Fatal("expected phase-guard revert to match")
	}
	if isPhaseGuardRevert(errors.New("execution reverted: already been proven")) {
		t.Fatal("did not expect a different race substring to match the phase guard")
	}
	if isPhaseGuardRevert(nil) {
		t.Fatal("nil error should not match")
	}
}

func TestTxOptsCopiesSignerAndSetsGasAndContext(t *testing.T) {
	signer := &bind.TransactOpts{GasLimit: 1}
	d := &Driver{Signer: signer}

	ctx := context.Background()
	opts := d.txOpts(ctx, 500_000)

	if opts == signer {
		t.Fatal("txOpts must return a copy, not the shared signer")
	}
	if opts.GasLimit != 500_000 {
		t.Fatalf("GasLimit = %d, want 500000", opts.GasLimit)
	}
	if opts.Context != ctx {
		t.Fatal("txOpts did not set the call's context")
	}
	if signer.GasLimit != 1 {
		t.Fatal("txOpts mutated the shared signer's GasLimit")
	}
}

func TestCallOptsCarriesContext(t *testing.T) {
	d := &Driver{}
	ctx := context.Background()
	opts := d.callOpts(ctx)
	if opts.Context != ctx {
		t.Fatal("callOpts did not set context")
	}
}
