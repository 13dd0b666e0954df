package contracts

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"

	"github.com/tokamak-network/optimism-oracle-service/internal/fraudtypes"
)

const canonicalTransactionChainABI = `[
  {"type":"function","name":"getTotalElements","stateMutability":"view",
   "inputs":[], "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"getBatchElements","stateMutability":"view",
   "inputs":[{"name":"_batchIndex","type":"uint256"}],
   "outputs":[{"name":"isSequenced","type":"bool[]"},
              {"name":"queueIndex","type":"uint256[]"},
              {"name":"timestamp","type":"uint256[]"},
              {"name":"blockNumber","type":"uint256[]"},
              {"name":"txData","type":"bytes[]"}]},
  {"type":"event","name":"TransactionBatchAppended","anonymous":false,
   "inputs":[
     {"name":"batchIndex","type":"uint256"},
     {"name":"batchRoot","type":"bytes32"},
     {"name":"batchSize","type":"uint256"},
     {"name":"prevTotalElements","type":"uint256"},
     {"name":"extraData","type":"bytes"}
   ]}
]`

// CanonicalTransactionChain wraps the settlement-chain contract that stores
// batches of OVM transactions.
type CanonicalTransactionChain struct {
	base
}

// NewCanonicalTransactionChain binds to an already-deployed
// canonical-transaction-chain contract.
func NewCanonicalTransactionChain(address common.Address, backend bind.ContractBackend) (*CanonicalTransactionChain, error) {
	return &CanonicalTransactionChain{base: newBase(address, mustParseABI(canonicalTransactionChainABI), backend)}, nil
}

// TotalElements returns the total number of transactions appended so far.
func (c *CanonicalTransactionChain) TotalElements(opts *bind.CallOpts) (*big.Int, error) {
	var out []interface{}
	if err := c.call(opts, &out, "getTotalElements"); err != nil {
		return nil, err
	}
	return *abiAs[*big.Int](out[0]), nil
}

// BatchElements returns every transaction-chain element in the batch at
// batchIndex, in leaf order.
func (c *CanonicalTransactionChain) BatchElements(opts *bind.CallOpts, batchIndex uint64) ([]fraudtypes.TransactionChainElement, error) {
	var out []interface{}
	if err := c.call(opts, &out, "getBatchElements", new(big.Int).SetUint64(batchIndex)); err != nil {
		return nil, err
	}
	isSequenced := *abiAs[[]bool](out[0])
	queueIndex := *abiAs[[]*big.Int](out[1])
	timestamp := *abiAs[[]*big.Int](out[2])
	blockNumber := *abiAs[[]*big.Int](out[3])
	txData := *abiAs[[][]byte](out[4])

	elements := make([]fraudtypes.TransactionChainElement, len(txData))
	for i := range elements {
		elements[i] = fraudtypes.TransactionChainElement{
			IsSequenced: isSequenced[i],
			QueueIndex:  queueIndex[i].Uint64(),
			Timestamp:   timestamp[i].Uint64(),
			BlockNumber: blockNumber[i].Uint64(),
			TxData:      txData[i],
		}
	}
	return elements, nil
}

// BatchAppendedEvents scans every TransactionBatchAppended event emitted by
// this contract, in ascending batch-index order.
func (c *CanonicalTransactionChain) BatchAppendedEvents(ctx context.Context) ([]fraudtypes.StateRootBatchHeader, error) {
	var headers []fraudtypes.StateRootBatchHeader
	err := c.filterLogs(ctx, "TransactionBatchAppended",
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
