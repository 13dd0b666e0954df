package contracts

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/tokamak-network/optimism-oracle-service/internal/fraudtypes"
)

// The settlement-chain contracts take proof structs as opaque RLP blobs,
// not as ABI tuples; the verifier and transitioner decode them on-chain.
// These mirror types exist only to give rlp a stable field order.

type rlpMerkleProof struct {
	Index    uint64
	Siblings []common.Hash
}

func toRLPMerkleProof(p fraudtypes.MerkleProof) rlpMerkleProof {
	return rlpMerkleProof{Index: p.Index, Siblings: p.Siblings}
}

type rlpStateRootBatchHeader struct {
	BatchIndex        uint64
	BatchRoot         common.Hash
	BatchSize         uint64
	PrevTotalElements uint64
	ExtraData         []byte
}

func toRLPHeader(h fraudtypes.StateRootBatchHeader) rlpStateRootBatchHeader {
	return rlpStateRootBatchHeader{
		BatchIndex:        h.BatchIndex,
		BatchRoot:         h.BatchRoot,
		BatchSize:         h.BatchSize,
		PrevTotalElements: h.PrevTotalElements,
		ExtraData:         h.ExtraData,
	}
}

type rlpStateRootBatchProof struct {
	StateRoot            common.Hash
	StateRootBatchHeader rlpStateRootBatchHeader
	StateRootProof       rlpMerkleProof
}

func encodeStateRootBatchProof(p fraudtypes.StateRootBatchProof) ([]byte, error) {
	return rlp.EncodeToBytes(&rlpStateRootBatchProof{
		StateRoot:            p.StateRoot,
		StateRootBatchHeader: toRLPHeader(p.StateRootBatchHeader),
		StateRootProof:       toRLPMerkleProof(p.StateRootProof),
	})
}

type rlpOvmTransaction struct {
	Timestamp     uint64
	BlockNumber   uint64
	L1QueueOrigin uint8
	L1TxOrigin    common.Address
	Entrypoint    common.Address
	GasLimit      uint64
	Data          []byte
}

type rlpTransactionChainElement struct {
	IsSequenced bool
	QueueIndex  uint64
	Timestamp   uint64
	BlockNumber uint64
	TxData      []byte
}

type rlpTransactionBatchProof struct {
	Transaction             rlpOvmTransaction
	TransactionChainElement rlpTransactionChainElement
	TransactionBatchHeader  rlpStateRootBatchHeader
	TransactionProof        rlpMerkleProof
}

func encodeTransactionBatchProof(p fraudtypes.TransactionBatchProof) ([]byte, error) {
	return rlp.EncodeToBytes(&rlpTransactionBatchProof{
		Transaction: rlpOvmTransaction{
			Timestamp:     p.Transaction.Timestamp,
			BlockNumber:   p.Transaction.BlockNumber,
			L1QueueOrigin: p.Transaction.L1QueueOrigin,
			L1TxOrigin:    p.Transaction.L1TxOrigin,
			Entrypoint:    p.Transaction.Entrypoint,
			GasLimit:      p.Transaction.GasLimit,
			Data:          p.Transaction.Data,
		},
		TransactionChainElement: rlpTransactionChainElement{
			IsSequenced: p.TransactionChainElement.IsSequenced,
			QueueIndex:  p.TransactionChainElement.QueueIndex,
			Timestamp:   p.TransactionChainElement.Timestamp,
			BlockNumber: p.TransactionChainElement.BlockNumber,
			TxData:      p.TransactionChainElement.TxData,
		},
		TransactionBatchHeader: toRLPHeader(p.TransactionBatchHeader),
		TransactionProof:       toRLPMerkleProof(p.TransactionProof),
	})
}

// encodeAccountProof RLP-encodes a raw MPT proof (a list of trie node
// blobs) into the single bytes argument proveContractState/
// proveStorageSlot expect.
func encodeAccountProof(proof [][]byte) ([]byte, error) {
	return rlp.EncodeToBytes(proof)
}

// HashOvmTransaction returns the hash the verifier keys a dispute's state
// transitioner under, alongside the pre-state root: keccak256 of tx's
// canonical RLP encoding.
func HashOvmTransaction(tx fraudtypes.OvmTransaction) (common.Hash, error) {
	enc, err := rlp.EncodeToBytes(&rlpOvmTransaction{
		Timestamp:     tx.Timestamp,
		BlockNumber:   tx.BlockNumber,
		L1QueueOrigin: tx.L1QueueOrigin,
		L1TxOrigin:    tx.L1TxOrigin,
		Entrypoint:    tx.Entrypoint,
		GasLimit:      tx.GasLimit,
		Data:          tx.Data,
	})
	if err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash(enc), nil
}
