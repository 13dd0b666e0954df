package contracts

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

const stateManagerABI = `[
  {"type":"function","name":"hasAccount","stateMutability":"view",
   "inputs":[{"name":"_address","type":"address"}], "outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"getAccount","stateMutability":"view",
   "inputs":[{"name":"_address","type":"address"}],
   "outputs":[
     {"name":"nonce","type":"uint256"},
     {"name":"balance","type":"uint256"},
     {"name":"storageRoot","type":"bytes32"},
     {"name":"codeHash","type":"bytes32"}
   ]},
  {"type":"function","name":"getStorage","stateMutability":"view",
   "inputs":[{"name":"_address","type":"address"},{"name":"_key","type":"bytes32"}],
   "outputs":[{"name":"","type":"bytes32"}]},
  {"type":"function","name":"wasAccountChanged","stateMutability":"view",
   "inputs":[{"name":"_address","type":"address"}], "outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"wasAccountCommitted","stateMutability":"view",
   "inputs":[{"name":"_address","type":"address"}], "outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"wasStorageSlotChanged","stateMutability":"view",
   "inputs":[{"name":"_address","type":"address"},{"name":"_key","type":"bytes32"}], "outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"wasStorageSlotCommitted","stateMutability":"view",
   "inputs":[{"name":"_address","type":"address"},{"name":"_key","type":"bytes32"}], "outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"getUncommittedAccountCount","stateMutability":"view",
   "inputs":[], "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"getUncommittedStorageSlotCount","stateMutability":"view",
   "inputs":[], "outputs":[{"name":"","type":"uint256"}]}
]`

// AccountState is the state manager's canonical view of one account, as
// reported after applyTransaction: the four fields the phase driver
// canonically RLP-encodes into the local state trie, per spec.md
// §4.6.2(d) step 2.
type AccountState struct {
	Nonce       uint64
	Balance     *uint256.Int
	StorageRoot common.Hash
	CodeHash    common.Hash
}

// StateManager wraps the per-dispute contract tracking which accounts and
// storage slots the disputed transaction touched, and which of those have
// since been committed back through the transitioner.
type StateManager struct {
	base
}

// NewStateManager binds to a state-manager instance returned by
// StateTransitioner.StateManager.
func NewStateManager(address common.Address, backend bind.ContractBackend) (*StateManager, error) {
	return &StateManager{base: newBase(address, mustParseABI(stateManagerABI), backend)}, nil
}

// HasAccount reports whether address has already been proven into this
// dispute's state manager.
func (s *StateManager) HasAccount(opts *bind.CallOpts, address common.Address) (bool, error) {
	var out []interface{}
	if err := s.call(opts, &out, "hasAccount", address); err != nil {
		return false, err
	}
	return *abiAs[bool](out[0]), nil
}

// Account returns address's current canonical fields.
func (s *StateManager) Account(opts *bind.CallOpts, address common.Address) (AccountState, error) {
	var out []interface{}
	if err := s.call(opts, &out, "getAccount", address); err != nil {
		return AccountState{}, err
	}
	nonce := *abiAs[*big.Int](out[0])
	balance := *abiAs[*big.Int](out[1])
	storageRoot := *abiAs[[32]byte](out[2])
	codeHash := *abiAs[[32]byte](out[3])
	bal, overflow := uint256.FromBig(balance)
	if overflow {
		bal = new(uint256.Int)
	}
	return AccountState{
		Nonce:       nonce.Uint64(),
		Balance:     bal,
		StorageRoot: common.Hash(storageRoot),
		CodeHash:    common.Hash(codeHash),
	}, nil
}

// Storage returns the current value of a storage slot.
func (s *StateManager) Storage(opts *bind.CallOpts, address common.Address, key common.Hash) (common.Hash, error) {
	var out []interface{}
	if err := s.call(opts, &out, "getStorage", address, key); err != nil {
		return common.Hash{}, err
	}
	raw := *abiAs[[32]byte](out[0])
	return common.Hash(raw), nil
}

// WasAccountChanged reports whether applyTransaction modified address.
func (s *StateManager) WasAccountChanged(opts *bind.CallOpts, address common.Address) (bool, error) {
	var out []interface{}
	if err := s.call(opts, &out, "wasAccountChanged", address); err != nil {
		return false, err
	}
	return *abiAs[bool](out[0]), nil
}

// WasAccountCommitted reports whether address's changes have already been
// committed back through commitContractState, the `!wasAccountCommitted`
// half of the §4.6.2(d)(3) candidate-selection predicate.
func (s *StateManager) WasAccountCommitted(opts *bind.CallOpts, address common.Address) (bool, error) {
	var out []interface{}
	if err := s.call(opts, &out, "wasAccountCommitted", address); err != nil {
		return false, err
	}
	return *abiAs[bool](out[0]), nil
}

// WasStorageSlotChanged reports whether applyTransaction modified
// (address, key).
func (s *StateManager) WasStorageSlotChanged(opts *bind.CallOpts, address common.Address, key common.Hash) (bool, error) {
	var out []interface{}
	if err := s.call(opts, &out, "wasStorageSlotChanged", address, key); err != nil {
		return false, err
	}
	return *abiAs[bool](out[0]), nil
}

// WasStorageSlotCommitted reports whether (address, key)'s change has
// already been committed back through commitStorageSlot, the
// `!wasStorageSlotCommitted` half of the §4.6.2(d)(3) candidate-selection
// predicate.
func (s *StateManager) WasStorageSlotCommitted(opts *bind.CallOpts, address common.Address, key common.Hash) (bool, error) {
	var out []interface{}
	if err := s.call(opts, &out, "wasStorageSlotCommitted", address, key); err != nil {
		return false, err
	}
	return *abiAs[bool](out[0]), nil
}

// UncommittedAccountCount returns the account sub-loop's termination
// counter: it reaches zero once every changed account has been committed
// by some prover.
func (s *StateManager) UncommittedAccountCount(opts *bind.CallOpts) (uint64, error) {
	var out []interface{}
	if err := s.call(opts, &out, "getUncommittedAccountCount"); err != nil {
		return 0, err
	}
	return (*abiAs[*big.Int](out[0])).Uint64(), nil
}

// UncommittedStorageSlotCount returns the storage sub-loop's termination
// counter.
func (s *StateManager) UncommittedStorageSlotCount(opts *bind.CallOpts) (uint64, error) {
	var out []interface{}
	if err := s.call(opts, &out, "getUncommittedStorageSlotCount"); err != nil {
		return 0, err
	}
	return (*abiAs[*big.Int](out[0])).Uint64(), nil
}
