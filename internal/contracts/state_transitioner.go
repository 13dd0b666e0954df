package contracts

import (
	"context"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/tokamak-network/optimism-oracle-service/internal/fraudtypes"
)

// Phase mirrors the transitioner's on-chain phase enum, per spec.md §4.6.1.
type Phase uint8

const (
	PhasePreExecution Phase = iota
	PhasePostExecution
	PhaseComplete
)

func (p Phase) String() string {
	switch p {
	case PhasePreExecution:
		return "PRE_EXECUTION"
	case PhasePostExecution:
		return "POST_EXECUTION"
	case PhaseComplete:
		return "COMPLETE"
	default:
		return "UNKNOWN"
	}
}

const stateTransitionerABI = `[
  {"type":"function","name":"currentTransitionPhase","stateMutability":"view",
   "inputs":[], "outputs":[{"name":"","type":"uint8"}]},
  {"type":"function","name":"stateManager","stateMutability":"view",
   "inputs":[], "outputs":[{"name":"","type":"address"}]},
  {"type":"function","name":"proveContractState","stateMutability":"nonpayable",
   "inputs":[
     {"name":"_address","type":"address"},
     {"name":"_codeContractAddress","type":"address"},
     {"name":"_stateTrieWitness","type":"bytes"}
   ], "outputs":[]},
  {"type":"function","name":"proveStorageSlot","stateMutability":"nonpayable",
   "inputs":[
     {"name":"_address","type":"address"},
     {"name":"_key","type":"bytes32"},
     {"name":"_storageTrieWitness","type":"bytes"}
   ], "outputs":[]},
  {"type":"function","name":"applyTransaction","stateMutability":"nonpayable",
   "inputs":[
     {"name":"_transaction","type":"bytes"}
   ], "outputs":[]},
  {"type":"function","name":"commitContractState","stateMutability":"nonpayable",
   "inputs":[
     {"name":"_address","type":"address"},
     {"name":"_stateTrieWitness","type":"bytes"}
   ], "outputs":[]},
  {"type":"function","name":"commitStorageSlot","stateMutability":"nonpayable",
   "inputs":[
     {"name":"_address","type":"address"},
     {"name":"_key","type":"bytes32"},
     {"name":"_storageTrieWitness","type":"bytes"}
   ], "outputs":[]},
  {"type":"function","name":"completeTransition","stateMutability":"nonpayable",
   "inputs":[], "outputs":[]},
  {"type":"event","name":"AccountCommitted","anonymous":false,
   "inputs":[{"name":"_address","type":"address"}]},
  {"type":"event","name":"ContractStorageCommitted","anonymous":false,
   "inputs":[{"name":"_address","type":"address"},{"name":"_key","type":"bytes32"}]}
]`

// StateTransitioner wraps the per-dispute contract that re-executes one
// disputed transaction in a sandboxed environment across the
// PRE_EXECUTION/POST_EXECUTION/COMPLETE protocol.
type StateTransitioner struct {
	base
}

// NewStateTransitioner binds to a transitioner instance returned by
// FraudVerifier.StateTransitioner.
func NewStateTransitioner(address common.Address, backend bind.ContractBackend) (*StateTransitioner, error) {
	return &StateTransitioner{base: newBase(address, mustParseABI(stateTransitionerABI), backend)}, nil
}

// Phase returns the transitioner's current phase.
func (t *StateTransitioner) Phase(opts *bind.CallOpts) (Phase, error) {
	var out []interface{}
	if err := t.call(opts, &out, "currentTransitionPhase"); err != nil {
		return 0, err
	}
	return Phase(*abiAs[uint8](out[0])), nil
}

// StateManager returns the address of this transitioner's state manager.
func (t *StateTransitioner) StateManager(opts *bind.CallOpts) (common.Address, error) {
	var out []interface{}
	if err := t.call(opts, &out, "stateManager"); err != nil {
		return common.Address{}, err
	}
	return *abiAs[common.Address](out[0]), nil
}

// ProveContractState submits the account's inclusion proof, using carrier
// as the code's settlement-chain address (either a freshly deployed copy
// or the fixed sentinel carrier when the account has no code).
func (t *StateTransitioner) ProveContractState(opts *bind.TransactOpts, address, carrier common.Address, accountProof [][]byte) (*types.Transaction, error) {
	witness, err := encodeAccountProof(accountProof)
	if err != nil {
		return nil, err
	}
	return t.transact(opts, "proveContractState", address, carrier, witness)
}

// ProveStorageSlot submits one storage slot's inclusion proof.
func (t *StateTransitioner) ProveStorageSlot(opts *bind.TransactOpts, address common.Address, key common.Hash, slotProof [][]byte) (*types.Transaction, error) {
	witness, err := encodeAccountProof(slotProof)
	if err != nil {
		return nil, err
	}
	return t.transact(opts, "proveStorageSlot", address, key, witness)
}

// ApplyTransaction re-executes the disputed transaction, advancing the
// transitioner from PRE_EXECUTION to POST_EXECUTION.
func (t *StateTransitioner) ApplyTransaction(opts *bind.TransactOpts, tx fraudtypes.OvmTransaction) (*types.Transaction, error) {
	enc, err := rlpEncodeOvmTransaction(tx)
	if err != nil {
		return nil, err
	}
	return t.transact(opts, "applyTransaction", enc)
}

// CommitContractState commits the local state trie's inclusion proof for
// address back to the transitioner.
func (t *StateTransitioner) CommitContractState(opts *bind.TransactOpts, address common.Address, stateTrieProof [][]byte) (*types.Transaction, error) {
	witness, err := encodeAccountProof(stateTrieProof)
	if err != nil {
		return nil, err
	}
	return t.transact(opts, "commitContractState", address, witness)
}

// CommitStorageSlot commits the local storage trie's inclusion proof for
// (address, key) back to the transitioner.
func (t *StateTransitioner) CommitStorageSlot(opts *bind.TransactOpts, address common.Address, key common.Hash, storageTrieProof [][]byte) (*types.Transaction, error) {
	witness, err := encodeAccountProof(storageTrieProof)
	if err != nil {
		return nil, err
	}
	return t.transact(opts, "commitStorageSlot", address, key, witness)
}

// CompleteTransition submits completeTransition() once both the account and
// storage uncommitted counters have reached zero.
func (t *StateTransitioner) CompleteTransition(opts *bind.TransactOpts) (*types.Transaction, error) {
	return t.transact(opts, "completeTransition")
}

// AccountCommittedEvents returns every address committed so far, across all
// provers, per spec.md §4.6.2(d) step 1.
func (t *StateTransitioner) AccountCommittedEvents(ctx context.Context) (map[common.Address]bool, error) {
	committed := make(map[common.Address]bool)
	err := t.filterLogs(ctx, "AccountCommitted",
		func() interface{} { return new(accountCommittedEvent) },
		func(v interface{}) error {
			committed[v.(*accountCommittedEvent).Address] = true
			return nil
		})
	if err != nil {
		return nil, err
	}
	return committed, nil
}

// StorageSlotCommittedEvents returns every (address, key) storage slot
// committed so far, across all provers.
func (t *StateTransitioner) StorageSlotCommittedEvents(ctx context.Context) (map[fraudtypes.StorageSlotKey]bool, error) {
	committed := make(map[fraudtypes.StorageSlotKey]bool)
	err := t.filterLogs(ctx, "ContractStorageCommitted",
		func() interface{} { return new(storageSlotCommittedEvent) },
		func(v interface{}) error {
			e := v.(*storageSlotCommittedEvent)
			committed[fraudtypes.StorageSlotKey{Address: e.Address, Key: e.Key}] = true
			return nil
		})
	if err != nil {
		return nil, err
	}
	return committed, nil
}

type accountCommittedEvent struct {
	Address common.Address
}

type storageSlotCommittedEvent struct {
	Address common.Address
	Key     common.Hash
}

func rlpEncodeOvmTransaction(tx fraudtypes.OvmTransaction) ([]byte, error) {
	return rlp.EncodeToBytes(&rlpOvmTransaction{
		Timestamp:     tx.Timestamp,
		BlockNumber:   tx.BlockNumber,
		L1QueueOrigin: tx.L1QueueOrigin,
		L1TxOrigin:    tx.L1TxOrigin,
		Entrypoint:    tx.Entrypoint,
		GasLimit:      tx.GasLimit,
		Data:          tx.Data,
	})
}
