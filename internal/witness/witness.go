// Package witness implements component C4 of spec.md: given a disputed
// global index, it assembles the self-contained bundle the phase driver
// replays on-chain -- the surrounding state-root proofs, the disputed
// transaction's inclusion proof, the state-diff proof, and local trie
// views seeded from that diff.
package witness

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/trie"

	"github.com/tokamak-network/optimism-oracle-service/internal/fraudtypes"
	"github.com/tokamak-network/optimism-oracle-service/internal/l1view"
	"github.com/tokamak-network/optimism-oracle-service/internal/l2view"
	"github.com/tokamak-network/optimism-oracle-service/internal/trieutil"
)

// ErrZeroIndex is returned when asked to assemble a witness for index 0,
// which has no preceding state root to diff against.
var ErrZeroIndex = errors.New("witness: index 0 has no preceding state root")

// L1Source is the subset of l1view.View the assembler needs; named here so
// tests can substitute a fake without standing up a settlement chain.
type L1Source interface {
	GetStateRootBatchProof(ctx context.Context, index fraudtypes.GlobalIndex) (*fraudtypes.StateRootBatchProof, error)
	GetTransactionBatchProof(ctx context.Context, index fraudtypes.GlobalIndex) (*fraudtypes.TransactionBatchProof, error)
}

// L2Source is the subset of l2view.View the assembler needs.
type L2Source interface {
	GetStateDiffProof(ctx context.Context, rollupBlock uint64) (*fraudtypes.StateDiffProof, error)
}

var (
	_ L1Source = (*l1view.View)(nil)
	_ L2Source = (*l2view.View)(nil)
)

// Assembler wires together C1 and C2 to build a FraudProofData for one
// suspect index. It holds no state of its own beyond its collaborators.
type Assembler struct {
	L1          L1Source
	L2          L2Source
	BlockOffset uint64
}

// New constructs an Assembler over l1 and l2, using blockOffset to
// translate a global transaction index into the rollup block the
// state-diff proof is collected against.
func New(l1 L1Source, l2 L2Source, blockOffset uint64) *Assembler {
	return &Assembler{L1: l1, L2: l2, BlockOffset: blockOffset}
}

// Assemble gathers every piece of witness data for the disputed state
// root at index. All four upstream RPCs must succeed; any single failure
// discards the partial result and returns that failure's Kind unchanged
// (NotFound, Transport, Unsupported, or CorruptWitness), per spec.md §4.4.
func (a *Assembler) Assemble(ctx context.Context, index fraudtypes.GlobalIndex) (*fraudtypes.FraudProofData, error) {
	if index == 0 {
		return nil, fraudtypes.Wrap(fraudtypes.KindNotFound, "witness.Assemble", ErrZeroIndex)
	}

	pre, err := a.L1.GetStateRootBatchProof(ctx, index-1)
	if err != nil {
		return nil, err
	}
	post, err := a.L1.GetStateRootBatchProof(ctx, index)
	if err != nil {
		return nil, err
	}
	txp, err := a.L1.GetTransactionBatchProof(ctx, index)
	if err != nil {
		return nil, err
	}
	sdp, err := a.L2.GetStateDiffProof(ctx, index+a.BlockOffset-1)
	if err != nil {
		return nil, err
	}

	stateTrie, err := buildStateTrie(pre.StateRoot, sdp.AccountStateProofs)
	if err != nil {
		return nil, err
	}
	storageTries, err := buildStorageTries(sdp.AccountStateProofs)
	if err != nil {
		return nil, err
	}

	return &fraudtypes.FraudProofData{
		PreStateRootProof:  *pre,
		PostStateRootProof: *post,
		TransactionProof:   *txp,
		StateDiffProof:     *sdp,
		StateTrie:          stateTrie,
		StorageTries:       storageTries,
	}, nil
}

func buildStateTrie(stateRoot common.Hash, accounts []fraudtypes.AccountStateProof) (*trie.Trie, error) {
	lists := make([][][]byte, len(accounts))
	for i, a := range accounts {
		lists[i] = a.AccountProof
	}
	tr, err := trieutil.Build(stateRoot, lists...)
	if err != nil {
		return nil, fmt.Errorf("witness: build state trie: %w", err)
	}
	return tr, nil
}

func buildStorageTries(accounts []fraudtypes.AccountStateProof) (map[common.Address]*trie.Trie, error) {
	tries := make(map[common.Address]*trie.Trie, len(accounts))
	for _, a := range accounts {
		lists := make([][][]byte, len(a.StorageProof))
		for i, s := range a.StorageProof {
			lists[i] = s.Proof
		}
		tr, err := trieutil.Build(a.StorageRoot, lists...)
		if err != nil {
			return nil, fmt.Errorf("witness: build storage trie for %s: %w", a.Address, err)
		}
		tries[a.Address] = tr
	}
	return tries, nil
}
