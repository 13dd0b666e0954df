package contracts

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"

	"github.com/tokamak-network/optimism-oracle-service/internal/fraudtypes"
)

const stateCommitmentChainABI = `[
  {"type":"function","name":"getTotalElements","stateMutability":"view",
   "inputs":[], "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"getBatchLeaves","stateMutability":"view",
   "inputs":[{"name":"_batchIndex","type":"uint256"}],
   "outputs":[{"name":"","type":"bytes32[]"}]},
  {"type":"event","name":"StateBatchAppended","anonymous":false,
   "inputs":[
     {"name":"batchIndex","type":"uint256"},
     {"name":"batchRoot","type":"bytes32"},
     {"name":"batchSize","type":"uint256"},
     {"name":"prevTotalElements","type":"uint256"},
     {"name":"extraData","type":"bytes"}
   ]}
]`

// StateCommitmentChain wraps the settlement-chain contract that stores
// batches of rollup state roots.
type StateCommitmentChain struct {
	base
}

// NewStateCommitmentChain binds to an already-deployed state-commitment
// chain contract.
func NewStateCommitmentChain(address common.Address, backend bind.ContractBackend) (*StateCommitmentChain, error) {
	return &StateCommitmentChain{base: newBase(address, mustParseABI(stateCommitmentChainABI), backend)}, nil
}

// TotalElements returns the total number of state roots appended so far.
func (s *StateCommitmentChain) TotalElements(opts *bind.CallOpts) (*big.Int, error) {
	var out []interface{}
	if err := s.call(opts, &out, "getTotalElements"); err != nil {
		return nil, err
	}
	return *abiAs[*big.Int](out[0]), nil
}

// BatchLeaves returns every state root in the batch at batchIndex, in leaf
// order.
func (s *StateCommitmentChain) BatchLeaves(opts *bind.CallOpts, batchIndex uint64) ([]common.Hash, error) {
	var out []interface{}
	if err := s.call(opts, &out, "getBatchLeaves", new(big.Int).SetUint64(batchIndex)); err != nil {
		return nil, err
	}
	raw := *abiAs[[][32]byte](out[0])
	leaves := make([]common.Hash, len(raw))
	for i, r := range raw {
		leaves[i] = common.Hash(r)
	}
	return leaves, nil
}

type stateBatchAppendedEvent struct {
	BatchIndex        *big.Int
	BatchRoot         [32]byte
	BatchSize         *big.Int
	PrevTotalElements *big.Int
	ExtraData         []byte
}

// BatchAppendedEvents scans every StateBatchAppended event emitted by this
// contract, in ascending batch-index order, per spec.md §4.1's derivation
// policy.
func (s *StateCommitmentChain) BatchAppendedEvents(ctx context.Context) ([]fraudtypes.StateRootBatchHeader, error) {
	var headers []fraudtypes.StateRootBatchHeader
	err := s.filterLogs(ctx, "StateBatchAppended",
		func() interface{} { return new(stateBatchAppendedEvent) },
		func(v interface{}) error {
			e := v.(*stateBatchAppendedEvent)
			headers = append(headers, fraudtypes.StateRootBatchHeader{
				BatchIndex:        e.BatchIndex.Uint64(),
				BatchRoot:         common.Hash(e.BatchRoot),
				BatchSize:         e.BatchSize.Uint64(),
				PrevTotalElements: e.PrevTotalElements.Uint64(),
				ExtraData:         e.ExtraData,
			})
			return nil
		})
	if err != nil {
		return nil, err
	}
	sortHeadersByIndex(headers)
	return headers, nil
}

func sortHeadersByIndex(h []fraudtypes.StateRootBatchHeader) {
	for i := 1; i < len(h); i++ {
		for j := i; j > 0 && h[j-1].BatchIndex > h[j].BatchIndex; j-- {
			h[j-1], h[j] = h[j], h[j-1]
		}
	}
}
