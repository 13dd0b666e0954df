// Package trieutil builds in-memory Merkle-Patricia trie views from opaque
// proof node lists (component C3 of spec.md). It wraps go-ethereum's
// trie/ethdb packages rather than reimplementing an MPT: spec.md §1 lists
// "the trie/RLP primitive libraries" among the external collaborators this
// core treats as given.
package trieutil

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/rawdb"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethdb/memorydb"
	"github.com/ethereum/go-ethereum/trie"

	"github.com/tokamak-network/optimism-oracle-service/internal/fraudtypes"
)

// Build constructs a live *trie.Trie view rooted at root from a set of
// proof-node lists (one list per account or slot proof that was merged into
// the witness). Every node is keyed by its own keccak256 hash into a
// content-addressed store; insertion is order-independent, so the result
// is the union of every list's node set regardless of the order the lists
// are supplied in.
//
// Build fails with fraudtypes.KindCorruptWitness if two proof lists
// disagree about the bytes stored under the same node hash.
func Build(root common.Hash, proofLists ...[][]byte) (*trie.Trie, error) {
	store := rawdb.NewMemoryDatabase()
	for _, nodes := range proofLists {
		for _, node := range nodes {
			hash := crypto.Keccak256(node)
			if existing, err := store.Get(hash); err == nil {
				if !bytesEqual(existing, node) {
					return nil, fraudtypes.Wrap(fraudtypes.KindCorruptWitness, "trieutil.Build",
						fmt.Errorf("conflicting node bytes under hash %x", hash))
				}
				continue
			}
			if err := store.Put(hash, node); err != nil {
				return nil, fraudtypes.Wrap(fraudtypes.KindCorruptWitness, "trieutil.Build", err)
			}
		}
	}

	triedb := trie.NewDatabase(store, nil)
	tr, err := trie.New(trie.TrieID(root), triedb)
	if err != nil {
		return nil, fraudtypes.Wrap(fraudtypes.KindCorruptWitness, "trieutil.Build", err)
	}
	return tr, nil
}

// Prove generates an inclusion proof for key against tr, returning the
// ordered list of RLP-encoded trie nodes a verifier would need to walk from
// tr's root down to key.
func Prove(tr *trie.Trie, key []byte) ([][]byte, error) {
	proofDB := memorydb.New()
	if err := tr.Prove(key, proofDB); err != nil {
		return nil, fmt.Errorf("trieutil.Prove: %w", err)
	}
	it := proofDB.NewIterator(nil, nil)
	defer it.Release()
	var nodes [][]byte
	for it.Next() {
		node := make([]byte, len(it.Value()))
		copy(node, it.Value())
		nodes = append(nodes, node)
	}
	if err := it.Error(); err != nil {
		return nil, fmt.Errorf("trieutil.Prove: %w", err)
	}
	return nodes, nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
