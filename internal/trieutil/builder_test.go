package trieutil

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/rawdb"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/trie"
	"github.com/ethereum/go-ethereum/trie/trienode"
)

// seedTrie commits a small reference trie to a fresh in-memory database and
// returns its root plus a proof-node list for every key in entries, mimicking
// the AccountProof/StorageProof lists the witness assembler (package
// witness) would hand to Build.
func seedTrie(t *testing.T, entries map[string][]byte) (common.Hash, map[string][][]byte) {
	t.Helper()
	store := rawdb.NewMemoryDatabase()
	triedb := trie.NewDatabase(store, nil)
	tr, err := trie.New(trie.TrieID(common.Hash{}), triedb)
	if err != nil {
		t.Fatalf("trie.New: %v", err)
	}
	for k, v := range entries {
		if err := tr.Update([]byte(k), v); err != nil {
			t.Fatalf("Update: %v", err)
		}
	}
	root, nodeSet, err := tr.Commit(false)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	// Write every dirty node directly into the backing store, keyed by its
	// own hash -- the same content-addressed shape Build expects from a
	// witness's proof-node lists, bypassing trie.Database's own commit
	// bookkeeping since the test only needs the nodes to be retrievable by
	// hash for a subsequent trie.New/Prove.
	if nodeSet != nil {
		nodeSet.ForEachWithOrder(func(_ string, n *trienode.Node) {
			if n == nil || len(n.Blob) == 0 {
				return
			}
			_ = store.Put(crypto.Keccak256(n.Blob), n.Blob)
		})
	}

	committed, err := trie.New(trie.TrieID(root), trie.NewDatabase(store, nil))
	if err != nil {
		t.Fatalf("reopen trie at root: %v", err)
	}
	proofs := make(map[string][][]byte, len(entries))
	for k := range entries {
		nodes, err := Prove(committed, []byte(k))
		if err != nil {
			t.Fatalf("Prove(%x): %v", k, err)
		}
		proofs[k] = nodes
	}
	return root, proofs
}

func mustEncodeAccount(t *testing.T, nonce uint64, balance *big.Int) []byte {
	t.Helper()
	b, err := EncodeAccount(nonce, balance, common.Hash{}, common.Hash{})
	if err != nil {
		t.Fatalf("EncodeAccount: %v", err)
	}
	return b
}

func TestBuildReconstructsProvenValues(t *testing.T) {
	keyA := string(AddressKey(common.HexToAddress("0x01")))
	keyB := string(AddressKey(common.HexToAddress("0x02")))
	entries := map[string][]byte{
		keyA: mustEncodeAccount(t, 1, big.NewInt(100)),
		keyB: mustEncodeAccount(t, 2, big.NewInt(200)),
	}
	root, proofs := seedTrie(t, entries)

	tr, err := Build(root, proofs[keyA], proofs[keyB])
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	got, err := tr.Get([]byte(keyA))
	if err != nil {
		t.Fatalf("Get(keyA): %v", err)
	}
	if !bytes.Equal(got, entries[keyA]) {
		t.Fatalf("Get(keyA) = %x, want %x", got, entries[keyA])
	}
}

func TestBuildAcceptsIdenticalNodesAcrossLists(t *testing.T) {
	same := []byte("identical-node-bytes")
	if _, err := Build(common.Hash{}, [][]byte{same}, [][]byte{same}); err != nil {
		t.Fatalf("identical nodes across lists should not conflict: %v", err)
	}
}

func TestEncodeStorageValueStripsLeadingZeros(t *testing.T) {
	var h common.Hash
	h[31] = 0x07
	enc, err := EncodeStorageValue(h)
	if err != nil {
		t.Fatalf("EncodeStorageValue: %v", err)
	}
	// The stripped value is the single byte 0x07, which RLP encodes as itself.
	if !bytes.Equal(enc, []byte{0x07}) {
		t.Fatalf("EncodeStorageValue = %x, want 07", enc)
	}
}

func TestAddressKeyIsStable(t *testing.T) {
	addr := common.HexToAddress("0xdeadbeef")
	k1 := AddressKey(addr)
	k2 := AddressKey(addr)
	if len(k1) != 32 || !bytes.Equal(k1, k2) {
		t.Fatalf("expected stable 32-byte key, got %x and %x", k1, k2)
	}
}
