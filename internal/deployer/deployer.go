// Package deployer implements component C5 of spec.md: it deploys raw
// runtime bytecode to the settlement chain as a plain contract, used by
// the phase driver to give a disputed account's code a settlement-chain
// address the state transitioner can read from.
package deployer

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/tokamak-network/optimism-oracle-service/internal/fraudtypes"
)

// Backend is the subset of ethclient.Client (or, in tests, a simulated
// backend) that deploying and waiting for a contract needs.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
}

// initCodePrefix is a position-independent CODECOPY-RETURN shim: deployed
// as init code ahead of a contract's raw runtime bytecode, it causes the
// resulting contract's code to equal that bytecode byte-for-byte without
// ever executing it.
//
//	600D  PUSH1 0x0d   ; length of this prefix
//	38    CODESIZE
//	03    SUB          ; codesize - 0x0d == len(runtime code)
//	80    DUP1
//	600D  PUSH1 0x0d
//	6000  PUSH1 0x00
//	39    CODECOPY     ; copy runtime code to memory[0:]
//	6000  PUSH1 0x00
//	f3    RETURN       ; return memory[0:len(runtime code)]
var initCodePrefix = common.FromHex("600D380380600D6000396000f3")

// CodeCarrierSentinel is the fixed placeholder address the phase driver
// passes to proveContractState for accounts with no deployed code.
var CodeCarrierSentinel = common.HexToAddress("0x0000c0De0000C0DE0000c0de0000C0DE0000c0De")

// Deployer submits deployment transactions on behalf of one signing key.
type Deployer struct {
	client Backend
	signer *bind.TransactOpts
	gas    uint64
}

// New constructs a Deployer that signs deployment transactions with signer
// and bounds each one to gasLimit.
func New(client Backend, signer *bind.TransactOpts, gasLimit uint64) *Deployer {
	return &Deployer{client: client, signer: signer, gas: gasLimit}
}

// Deploy submits code as a contract's runtime bytecode and returns its
// settlement-chain address, blocking until the transaction is mined.
// Fails with KindSubmission on revert or if the transaction is never
// mined.
func (d *Deployer) Deploy(ctx context.Context, code []byte) (common.Address, error) {
	initCode := make([]byte, 0, len(initCodePrefix)+len(code))
	initCode = append(initCode, initCodePrefix...)
	initCode = append(initCode, code...)

	opts := *d.signer
	opts.Context = ctx
	opts.GasLimit = d.gas

	_, tx, _, err := bind.DeployContract(&opts, abi.ABI{}, initCode, d.client)
	if err != nil {
		return common.Address{}, fraudtypes.Wrap(fraudtypes.KindSubmission, "deployer.Deploy", err)
	}

	receipt, err := bind.WaitMined(ctx, d.client, tx)
	if err != nil {
		return common.Address{}, fraudtypes.Wrap(fraudtypes.KindSubmission, "deployer.Deploy", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return common.Address{}, fraudtypes.Wrap(fraudtypes.KindSubmission, "deployer.Deploy", errDeployReverted)
	}
	if receipt.ContractAddress == (common.Address{}) {
		return common.Address{}, fraudtypes.Wrap(fraudtypes.KindSubmission, "deployer.Deploy", errNoContractAddress)
	}
	return receipt.ContractAddress, nil
}

var errDeployReverted = errors.New("deployer: deployment transaction reverted")
var errNoContractAddress = errors.New("deployer: receipt carries no contract address")
