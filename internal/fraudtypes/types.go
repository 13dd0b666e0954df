// Package fraudtypes defines the data model shared by every stage of the
// fraud-proof pipeline: the wire shapes read from the settlement chain and
// the rollup node, and the self-contained witness bundle the phase driver
// replays on-chain.
package fraudtypes

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/trie"
	"github.com/holiman/uint256"
)

// GlobalIndex is a 64-bit non-negative ordinal over rollup transactions; the
// same index numbers state roots (root i is produced by executing
// transaction i).
type GlobalIndex = uint64

// StateRootBatchHeader is the immutable header of a batch of state roots
// posted to the settlement chain.
type StateRootBatchHeader struct {
	BatchIndex        uint64
	BatchRoot         common.Hash
	BatchSize         uint64
	PrevTotalElements uint64
	ExtraData         []byte
}

// MerkleProof is a sibling path proving that a leaf at Index belongs to a
// Merkle tree, without naming which tree; StateRootBatchProof and
// TransactionBatchProof each embed one against their own batch root.
type MerkleProof struct {
	Index    uint64
	Siblings []common.Hash
}

// StateRootBatchProof proves that StateRoot is the (index -
// prevTotalElements)-th leaf of the batch whose root is
// Header.BatchRoot.
type StateRootBatchProof struct {
	StateRoot           common.Hash
	StateRootBatchHeader StateRootBatchHeader
	StateRootProof      MerkleProof
}

// OvmTransaction is the canonical OVM transaction shape posted to the
// canonical transaction chain.
type OvmTransaction struct {
	Timestamp      uint64
	BlockNumber    uint64
	L1QueueOrigin  uint8
	L1TxOrigin     common.Address
	Entrypoint     common.Address
	GasLimit       uint64
	Data           []byte
}

// TransactionChainElement is the metadata element that was actually hashed
// into the transaction-batch tree; it may differ from the transaction
// itself when the element represents a queued (L1-originated) transaction.
type TransactionChainElement struct {
	IsSequenced bool
	QueueIndex  uint64
	Timestamp   uint64
	BlockNumber uint64
	TxData      []byte
}

// TransactionBatchProof proves inclusion of Transaction (via
// TransactionChainElement) in the transaction batch described by Header.
type TransactionBatchProof struct {
	Transaction             OvmTransaction
	TransactionChainElement TransactionChainElement
	TransactionBatchHeader  StateRootBatchHeader
	TransactionProof        MerkleProof
}

// StorageStateProof is the minimal witness for a single storage slot: the
// slot's value and the MPT nodes proving its membership in the account's
// storage trie.
type StorageStateProof struct {
	Key   common.Hash
	Value common.Hash
	Proof [][]byte // RLP-encoded trie nodes.
}

// AccountStateProof is the minimal witness for a single account: its
// canonical fields, the MPT nodes proving membership in the state trie,
// and every storage slot read or written alongside it.
type AccountStateProof struct {
	Address      common.Address
	Nonce        uint64
	Balance      *uint256.Int
	CodeHash     common.Hash
	StorageRoot  common.Hash
	AccountProof [][]byte // RLP-encoded trie nodes.
	StorageProof []StorageStateProof
}

// StateDiffProofHeader carries the rollup block the diff was collected
// against.
type StateDiffProofHeader struct {
	BlockNumber uint64
	BlockHash   common.Hash
}

// StateDiffProof is the minimal witness for every account and slot read or
// written while executing a single transaction against its pre-state root.
type StateDiffProof struct {
	Header             StateDiffProofHeader
	AccountStateProofs []AccountStateProof
}

// FraudProofData is the complete, self-contained witness for one disputed
// state root: the batch-inclusion proofs for the surrounding state roots and
// the disputed transaction, the state-diff proof, and mutable local trie
// views that track on-chain commitments as the phase driver (package
// phasedriver) advances the dispute.
type FraudProofData struct {
	PreStateRootProof  StateRootBatchProof
	PostStateRootProof StateRootBatchProof
	TransactionProof   TransactionBatchProof
	StateDiffProof     StateDiffProof

	// StateTrie is the live state-trie view, seeded from
	// StateDiffProof.AccountStateProofs[*].AccountProof and updated in
	// lock-step with AccountCommitted events (see package phasedriver).
	StateTrie *trie.Trie

	// StorageTries holds one live storage-trie view per account touched
	// by the disputed transaction, seeded from the corresponding
	// StorageProof entries.
	StorageTries map[common.Address]*trie.Trie
}

// StorageSlotKey identifies a single storage slot by owning account and
// slot key; used to key the sets of committed/changed slots the phase
// driver tracks across its POST_EXECUTION sub-loop.
type StorageSlotKey struct {
	Address common.Address
	Key     common.Hash
}

// SuspectIndex returns the global index of the disputed state root.
func (d *FraudProofData) SuspectIndex() GlobalIndex {
	return d.PostStateRootProof.StateRootProof.Index + d.PostStateRootProof.StateRootBatchHeader.PrevTotalElements
}
