package trieutil

import (
	"bytes"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

// canonicalAccount is the wire shape spec.md §6 names for writing a
// committed account into the local state trie: canonical RLP over
// (nonce, balance, storageRoot, codeHash), nonce as a small integer.
type canonicalAccount struct {
	Nonce       uint64
	Balance     *big.Int
	StorageRoot common.Hash
	CodeHash    common.Hash
}

// EncodeAccount produces the canonical RLP encoding spec.md §6 requires
// when a committed account is written into the local state trie.
func EncodeAccount(nonce uint64, balance *big.Int, storageRoot, codeHash common.Hash) ([]byte, error) {
	if balance == nil {
		balance = new(big.Int)
	}
	return rlp.EncodeToBytes(&canonicalAccount{
		Nonce:       nonce,
		Balance:     balance,
		StorageRoot: storageRoot,
		CodeHash:    codeHash,
	})
}

// EncodeStorageValue produces the canonical RLP encoding spec.md §6
// requires for a committed storage slot value: RLP over the
// leading-zero-stripped big-endian representation.
func EncodeStorageValue(value common.Hash) ([]byte, error) {
	return rlp.EncodeToBytes(stripLeadingZeros(value.Bytes()))
}

func stripLeadingZeros(b []byte) []byte {
	i := 0
	for i < len(b) && b[i] == 0 {
		i++
	}
	return bytes.Clone(b[i:])
}

// AddressKey returns the trie key for an account: keccak256(address).
func AddressKey(addr common.Address) []byte {
	return crypto.Keccak256(addr.Bytes())
}

// SlotKey returns the trie key for a storage slot: keccak256(slot key).
func SlotKey(slot common.Hash) []byte {
	return crypto.Keccak256(slot.Bytes())
}
