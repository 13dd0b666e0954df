package contracts

import (
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

const addressManagerABI = `[
  {"type":"function","name":"getAddress","stateMutability":"view",
   "inputs":[{"name":"_name","type":"string"}],
   "outputs":[{"name":"","type":"address"}]}
]`

// AddressManager resolves named settlement-chain contracts (the
// state-commitment chain, canonical-transaction chain, and fraud verifier)
// to addresses, per spec.md §6.
type AddressManager struct {
	base
}

// NewAddressManager binds to an already-deployed address manager.
func NewAddressManager(address common.Address, backend bind.ContractBackend) (*AddressManager, error) {
	return &AddressManager{base: newBase(address, mustParseABI(addressManagerABI), backend)}, nil
}

// GetAddress resolves name to its current settlement-chain address. The
// zero address is returned, not an error, when the name is unregistered.
func (a *AddressManager) GetAddress(opts *bind.CallOpts, name string) (common.Address, error) {
	var out []interface{}
	if err := a.call(opts, &out, "getAddress", name); err != nil {
		return common.Address{}, err
	}
	return *abiAs[common.Address](out[0]), nil
}

func abiAs[T any](v interface{}) *T {
	t := v.(T)
	return &t
}
