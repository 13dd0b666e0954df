package contracts

import (
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/tokamak-network/optimism-oracle-service/internal/fraudtypes"
)

const fraudVerifierABI = `[
  {"type":"function","name":"getStateTransitioner","stateMutability":"view",
   "inputs":[{"name":"_preStateRoot","type":"bytes32"},{"name":"_txHash","type":"bytes32"}],
   "outputs":[{"name":"","type":"address"}]},
  {"type":"function","name":"initializeFraudVerification","stateMutability":"nonpayable",
   "inputs":[
     {"name":"_preStateRootProof","type":"bytes"},
     {"name":"_transactionProof","type":"bytes"}
   ], "outputs":[]},
  {"type":"function","name":"finalizeFraudVerification","stateMutability":"nonpayable",
   "inputs":[
     {"name":"_preStateRootProof","type":"bytes"},
     {"name":"_postStateRootProof","type":"bytes"},
     {"name":"_txHash","type":"bytes32"}
   ], "outputs":[]}
]`

// FraudVerifier wraps the settlement-chain contract that creates
// per-dispute state transitioners and, once one completes, invalidates the
// fraudulent post-state root.
type FraudVerifier struct {
	base
}

// NewFraudVerifier binds to an already-deployed fraud-verifier contract.
func NewFraudVerifier(address common.Address, backend bind.ContractBackend) (*FraudVerifier, error) {
	return &FraudVerifier{base: newBase(address, mustParseABI(fraudVerifierABI), backend)}, nil
}

// StateTransitioner returns the transitioner address keyed by
// (preStateRoot, txHash), or the zero address if none has been created yet.
func (f *FraudVerifier) StateTransitioner(opts *bind.CallOpts, preStateRoot, txHash common.Hash) (common.Address, error) {
	var out []interface{}
	if err := f.call(opts, &out, "getStateTransitioner", preStateRoot, txHash); err != nil {
		return common.Address{}, err
	}
	return *abiAs[common.Address](out[0]), nil
}

// InitializeFraudVerification creates the transitioner for (pre, txp).
func (f *FraudVerifier) InitializeFraudVerification(opts *bind.TransactOpts, pre fraudtypes.StateRootBatchProof, txp fraudtypes.TransactionBatchProof) (*types.Transaction, error) {
	preEnc, err := encodeStateRootBatchProof(pre)
	if err != nil {
		return nil, err
	}
	txEnc, err := encodeTransactionBatchProof(txp)
	if err != nil {
		return nil, err
	}
	return f.transact(opts, "initializeFraudVerification", preEnc, txEnc)
}

// FinalizeFraudVerification invalidates the post-state root once the
// transitioner tied to (pre, txHash) has reached COMPLETE.
func (f *FraudVerifier) FinalizeFraudVerification(opts *bind.TransactOpts, pre, post fraudtypes.StateRootBatchProof, txHash common.Hash) (*types.Transaction, error) {
	preEnc, err := encodeStateRootBatchProof(pre)
	if err != nil {
		return nil, err
	}
	postEnc, err := encodeStateRootBatchProof(post)
	if err != nil {
		return nil, err
	}
	return f.transact(opts, "finalizeFraudVerification", preEnc, postEnc, txHash)
}
