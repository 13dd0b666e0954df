package deployer

import (
	"bytes"
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/accounts/abi/bind/backends"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core"
	"github.com/ethereum/go-ethereum/crypto"
)

func newSimulatedDeployer(t *testing.T, gasLimit uint64) (*Deployer, *backends.SimulatedBackend) {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	auth, err := bind.NewKeyedTransactorWithChainID(key, big.NewInt(1337))
	if err != nil {
		t.Fatalf("transactor: %v", err)
	}

	alloc := core.GenesisAlloc{
		auth.From: {Balance: big.NewInt(9223372036854775807)},
	}
	sim := backends.NewSimulatedBackend(alloc, 8_000_000)
	return New(sim, auth, gasLimit), sim
}

type deployResult struct {
	addr common.Address
	err  error
}

// commitUntil drives sim.Commit() periodically until resCh delivers a
// result, since the simulated backend never mines on its own.
func commitUntil(sim *backends.SimulatedBackend, resCh <-chan deployResult) deployResult {
	for {
		select {
		case res := <-resCh:
			return res
		case <-time.After(10 * time.Millisecond):
			sim.Commit()
		}
	}
}

func TestDeployReturnsMatchingRuntimeCode(t *testing.T) {
	d, sim := newSimulatedDeployer(t, 500_000)
	defer sim.Close()

	runtimeCode := []byte{0x60, 0x01, 0x60, 0x02, 0x01, 0x00} // arbitrary bytes, never executed as init code

	resCh := make(chan deployResult, 1)
	go func() {
		addr, err := d.Deploy(context.Background(), runtimeCode)
		resCh <- deployResult{addr, err}
	}()

	res := commitUntil(sim, resCh)
	if res.err != nil {
		t.Fatalf("Deploy: %v", res.err)
	}

	code, err := sim.CodeAt(context.Background(), res.addr, nil)
	if err != nil {
		t.Fatalf("CodeAt: %v", err)
	}
	if !bytes.Equal(code, runtimeCode) {
		t.Fatalf("want runtime code %x, got %x", runtimeCode, code)
	}
}
