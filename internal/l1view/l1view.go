// Package l1view implements component C1 of spec.md: a read-only adapter
// over the settlement chain resolving batch headers, state-root inclusion
// proofs, and transaction inclusion proofs by global index.
package l1view

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/tokamak-network/optimism-oracle-service/internal/contracts"
	"github.com/tokamak-network/optimism-oracle-service/internal/fraudtypes"
)

// View resolves settlement-chain data by global index. It holds no mutable
// state beyond its RPC handles: every method is a pure read.
type View struct {
	client *ethclient.Client
	scc    *contracts.StateCommitmentChain
	ctc    *contracts.CanonicalTransactionChain

	log log.Logger
}

// Dial connects to the settlement chain's JSON-RPC endpoint and resolves
// the state-commitment-chain and canonical-transaction-chain contracts
// through addrManager.
func Dial(ctx context.Context, rpcURL string, addrManager *contracts.AddressManager) (*View, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fraudtypes.Wrap(fraudtypes.KindTransport, "l1view.Dial", err)
	}
	sccAddr, err := addrManager.GetAddress(&bind.CallOpts{Context: ctx}, "StateCommitmentChain")
	if err != nil {
		return nil, fraudtypes.Wrap(fraudtypes.KindTransport, "l1view.Dial", err)
	}
	ctcAddr, err := addrManager.GetAddress(&bind.CallOpts{Context: ctx}, "CanonicalTransactionChain")
	if err != nil {
		return nil, fraudtypes.Wrap(fraudtypes.KindTransport, "l1view.Dial", err)
	}
	scc, err := contracts.NewStateCommitmentChain(sccAddr, client)
	if err != nil {
		return nil, fraudtypes.Wrap(fraudtypes.KindTransport, "l1view.Dial", err)
	}
	ctc, err := contracts.NewCanonicalTransactionChain(ctcAddr, client)
	if err != nil {
		return nil, fraudtypes.Wrap(fraudtypes.KindTransport, "l1view.Dial", err)
	}
	return &View{client: client, scc: scc, ctc: ctc, log: log.New("component", "l1view")}, nil
}

// Client exposes the underlying ethclient for callers (the bytecode
// deployer, the phase driver) that need to submit transactions against the
// same settlement-chain connection.
func (v *View) Client() *ethclient.Client { return v.client }

// GetStateRootBatchHeader returns the header of the batch containing index,
// or fraudtypes.KindNotFound if index lies beyond the last appended batch.
func (v *View) GetStateRootBatchHeader(ctx context.Context, index fraudtypes.GlobalIndex) (*fraudtypes.StateRootBatchHeader, error) {
	return findBatchHeader(ctx, "l1view.GetStateRootBatchHeader", index, v.scc.BatchAppendedEvents, v.scc.TotalElements)
}

// GetStateRoot returns the state root committed at index.
func (v *View) GetStateRoot(ctx context.Context, index fraudtypes.GlobalIndex) (common.Hash, error) {
	header, offset, leaves, err := v.resolveStateRootBatch(ctx, index)
	if err != nil {
		return common.Hash{}, err
	}
	_ = header
	return leaves[offset], nil
}

// GetStateRootBatchProof returns the inclusion proof for the state root at
// index against its enclosing batch's root.
func (v *View) GetStateRootBatchProof(ctx context.Context, index fraudtypes.GlobalIndex) (*fraudtypes.StateRootBatchProof, error) {
	header, offset, leaves, err := v.resolveStateRootBatch(ctx, index)
	if err != nil {
		return nil, err
	}
	proof := merkleProof(leaves, offset)
	return &fraudtypes.StateRootBatchProof{
		StateRoot:            leaves[offset],
		StateRootBatchHeader: *header,
		StateRootProof:       proof,
	}, nil
}

// GetTransactionBatchProof returns the inclusion proof for the transaction
// at index against its enclosing transaction batch.
func (v *View) GetTransactionBatchProof(ctx context.Context, index fraudtypes.GlobalIndex) (*fraudtypes.TransactionBatchProof, error) {
	header, offset, elements, err := v.resolveTransactionBatch(ctx, index)
	if err != nil {
		return nil, err
	}
	leaves := make([]common.Hash, len(elements))
	for i, e := range elements {
		leaves[i] = hashChainElement(e)
	}
	proof := merkleProof(leaves, offset)
	elem := elements[offset]
	return &fraudtypes.TransactionBatchProof{
		Transaction:             decodeOvmTransaction(elem),
		TransactionChainElement: elem,
		TransactionBatchHeader:  *header,
		TransactionProof:        proof,
	}, nil
}

// resolveStateRootBatch scans BatchAppended events in ascending order until
// it finds the batch covering index, per spec.md §4.1's derivation policy.
func (v *View) resolveStateRootBatch(ctx context.Context, index fraudtypes.GlobalIndex) (*fraudtypes.StateRootBatchHeader, uint64, []common.Hash, error) {
	header, err := v.GetStateRootBatchHeader(ctx, index)
	if err != nil {
		return nil, 0, nil, err
	}
	leaves, err := v.scc.BatchLeaves(&bind.CallOpts{Context: ctx}, header.BatchIndex)
	if err != nil {
		return nil, 0, nil, fraudtypes.Wrap(fraudtypes.KindTransport, "l1view.resolveStateRootBatch", err)
	}
	return header, index - header.PrevTotalElements, leaves, nil
}

func (v *View) resolveTransactionBatch(ctx context.Context, index fraudtypes.GlobalIndex) (*fraudtypes.StateRootBatchHeader, uint64, []fraudtypes.TransactionChainElement, error) {
	header, err := findBatchHeader(ctx, "l1view.resolveTransactionBatch", index, v.ctc.BatchAppendedEvents, v.ctc.TotalElements)
	if err != nil {
		return nil, 0, nil, err
	}
	elements, err := v.ctc.BatchElements(&bind.CallOpts{Context: ctx}, header.BatchIndex)
	if err != nil {
		return nil, 0, nil, fraudtypes.Wrap(fraudtypes.KindTransport, "l1view.resolveTransactionBatch", err)
	}
	return header, index - header.PrevTotalElements, elements, nil
}

// batchEventsFunc and totalElementsFunc abstract over the two chains'
// otherwise-identical append/total-elements shape so findBatchHeader can
// serve both GetStateRootBatchHeader and resolveTransactionBatch.
type batchEventsFunc func(ctx context.Context) ([]fraudtypes.StateRootBatchHeader, error)
type totalElementsFunc func(opts *bind.CallOpts) (*big.Int, error)

func findBatchHeader(ctx context.Context, op string, index fraudtypes.GlobalIndex, events batchEventsFunc, total totalElementsFunc) (*fraudtypes.StateRootBatchHeader, error) {
	totalN, err := total(&bind.CallOpts{Context: ctx})
	if err != nil {
		return nil, fraudtypes.Wrap(fraudtypes.KindTransport, op, err)
	}
	if totalN != nil && index >= totalN.Uint64() {
		return nil, fraudtypes.Wrap(fraudtypes.KindNotFound, op, fmt.Errorf("index %d beyond chain tip %d", index, totalN.Uint64()))
	}
	headers, err := events(ctx)
	if err != nil {
		return nil, fraudtypes.Wrap(fraudtypes.KindTransport, op, err)
	}
	for _, h := range headers {
		if index >= h.PrevTotalElements && index < h.PrevTotalElements+h.BatchSize {
			hc := h
			return &hc, nil
		}
	}
	return nil, fraudtypes.Wrap(fraudtypes.KindNotFound, op, fmt.Errorf("index %d not covered by any appended batch", index))
}

// merkleProof computes the sibling path proving leaves[offset] is included
// in the binary Merkle tree built from leaves, ordered from the leaf level
// up to the level just below the root.
func merkleProof(leaves []common.Hash, offset uint64) fraudtypes.MerkleProof {
	layer := append([]common.Hash(nil), leaves...)
	idx := offset
	var siblings []common.Hash
	for len(layer) > 1 {
		if idx%2 == 0 {
			if idx+1 < uint64(len(layer)) {
				siblings = append(siblings, layer[idx+1])
			} else {
				siblings = append(siblings, layer[idx])
			}
		} else {
			siblings = append(siblings, layer[idx-1])
		}
		layer = nextLayer(layer)
		idx /= 2
	}
	return fraudtypes.MerkleProof{Index: offset, Siblings: siblings}
}

func nextLayer(layer []common.Hash) []common.Hash {
	var out []common.Hash
	for i := 0; i < len(layer); i += 2 {
		if i+1 < len(layer) {
			out = append(out, hashPair(layer[i], layer[i+1]))
		} else {
			out = append(out, hashPair(layer[i], layer[i]))
		}
	}
	return out
}

func hashPair(a, b common.Hash) common.Hash {
	return crypto.Keccak256Hash(a.Bytes(), b.Bytes())
}

func hashChainElement(e fraudtypes.TransactionChainElement) common.Hash {
	return crypto.Keccak256Hash(e.TxData)
}

// ovmTransactionRLP mirrors fraudtypes.OvmTransaction field-for-field; a
// TransactionChainElement's TxData is its RLP encoding, exactly as the
// canonical-transaction-chain contract hashes it into the tx-batch tree.
type ovmTransactionRLP struct {
	Timestamp     uint64
	BlockNumber   uint64
	L1QueueOrigin uint8
	L1TxOrigin    common.Address
	Entrypoint    common.Address
	GasLimit      uint64
	Data          []byte
}

func decodeOvmTransaction(e fraudtypes.TransactionChainElement) fraudtypes.OvmTransaction {
	var tx ovmTransactionRLP
	if err := rlp.DecodeBytes(e.TxData, &tx); err != nil {
		// A malformed element still carries a valid inclusion proof over
		// its raw bytes; surface an empty transaction rather than fail
		// the whole lookup, matching the "proof is over TxData, decoding
		// is best-effort" split spec.md draws between TransactionProof
		// and Transaction.
		return fraudtypes.OvmTransaction{BlockNumber: e.BlockNumber, Timestamp: e.Timestamp}
	}
	return fraudtypes.OvmTransaction{
		Timestamp:     tx.Timestamp,
		BlockNumber:   tx.BlockNumber,
		L1QueueOrigin: tx.L1QueueOrigin,
		L1TxOrigin:    tx.L1TxOrigin,
		Entrypoint:    tx.Entrypoint,
		GasLimit:      tx.GasLimit,
		Data:          tx.Data,
	}
}
