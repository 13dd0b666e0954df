// Package l2view implements component C2 of spec.md: a read-only adapter
// over the rollup node exposing its state root and a JSON-RPC extension
// returning the full state-diff witness for one block.
package l2view

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/holiman/uint256"

	"github.com/tokamak-network/optimism-oracle-service/internal/fraudtypes"
)

// View is a read-only adapter over a rollup node. GetCode and GetStateRoot
// go through the standard ethclient; GetStateDiffProof calls a rollup-
// specific RPC extension the node may or may not implement.
type View struct {
	client *ethclient.Client
	rpc    *rpc.Client
	log    log.Logger
}

// Dial connects to the rollup node's JSON-RPC endpoint.
func Dial(ctx context.Context, rpcURL string) (*View, error) {
	rc, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fraudtypes.Wrap(fraudtypes.KindTransport, "l2view.Dial", err)
	}
	return &View{client: ethclient.NewClient(rc), rpc: rc, log: log.New("component", "l2view")}, nil
}

// GetStateRoot returns the rollup's state root at rollupBlock.
func (v *View) GetStateRoot(ctx context.Context, rollupBlock uint64) (common.Hash, error) {
	header, err := v.client.HeaderByNumber(ctx, new(big.Int).SetUint64(rollupBlock))
	if err != nil {
		return common.Hash{}, fraudtypes.Wrap(fraudtypes.KindTransport, "l2view.GetStateRoot", err)
	}
	return header.Root, nil
}

// GetCode returns the deployed bytecode at address as of rollupBlock. An
// empty slice means the account has no code (an EOA, or one yet to be
// deployed at this height).
func (v *View) GetCode(ctx context.Context, address common.Address, rollupBlock uint64) ([]byte, error) {
	code, err := v.client.CodeAt(ctx, address, new(big.Int).SetUint64(rollupBlock))
	if err != nil {
		return nil, fraudtypes.Wrap(fraudtypes.KindTransport, "l2view.GetCode", err)
	}
	return code, nil
}

// stateDiffProofRPC mirrors the wire shape of the rollup_getStateDiffProof
// extension: hex-encoded fields decoded into fraudtypes' canonical,
// already-typed StateDiffProof.
type stateDiffProofRPC struct {
	BlockNumber hexutil.Uint64 `json:"blockNumber"`
	BlockHash   common.Hash    `json:"blockHash"`
	Accounts    []accountRPC   `json:"accounts"`
}

type accountRPC struct {
	Address      common.Address  `json:"address"`
	Nonce        hexutil.Uint64  `json:"nonce"`
	Balance      *hexutil.Big    `json:"balance"`
	CodeHash     common.Hash     `json:"codeHash"`
	StorageRoot  common.Hash     `json:"storageRoot"`
	AccountProof []hexutil.Bytes `json:"accountProof"`
	StorageProof []storageRPC    `json:"storageProof"`
}

type storageRPC struct {
	Key   common.Hash     `json:"key"`
	Value common.Hash     `json:"value"`
	Proof []hexutil.Bytes `json:"proof"`
}

func hexBytesSlice(in []hexutil.Bytes) [][]byte {
	out := make([][]byte, len(in))
	for i, b := range in {
		out[i] = []byte(b)
	}
	return out
}

// GetStateDiffProof fetches the full state-diff witness for rollupBlock's
// single transaction: every account and storage slot it read or wrote,
// with MPT inclusion proofs against that block's pre-state trie. Fails
// with Unsupported when the node has no rollup_getStateDiffProof method,
// Transport on any other RPC error.
func (v *View) GetStateDiffProof(ctx context.Context, rollupBlock uint64) (*fraudtypes.StateDiffProof, error) {
	var raw stateDiffProofRPC
	err := v.rpc.CallContext(ctx, &raw, "rollup_getStateDiffProof", hexutil.Uint64(rollupBlock))
	if err != nil {
		if isMethodNotFound(err) {
			return nil, fraudtypes.Wrap(fraudtypes.KindUnsupported, "l2view.GetStateDiffProof", err)
		}
		return nil, fraudtypes.Wrap(fraudtypes.KindTransport, "l2view.GetStateDiffProof", err)
	}

	accounts := make([]fraudtypes.AccountStateProof, len(raw.Accounts))
	for i, a := range raw.Accounts {
		storage := make([]fraudtypes.StorageStateProof, len(a.StorageProof))
		for j, s := range a.StorageProof {
			storage[j] = fraudtypes.StorageStateProof{
				Key:   s.Key,
				Value: s.Value,
				Proof: hexBytesSlice(s.Proof),
			}
		}
		balance := new(uint256.Int)
		if a.Balance != nil {
			if overflow := balance.SetFromBig((*big.Int)(a.Balance)); overflow {
				balance = new(uint256.Int)
			}
		}
		accounts[i] = fraudtypes.AccountStateProof{
			Address:      a.Address,
			Nonce:        uint64(a.Nonce),
			Balance:      balance,
			CodeHash:     a.CodeHash,
			StorageRoot:  a.StorageRoot,
			AccountProof: hexBytesSlice(a.AccountProof),
			StorageProof: storage,
		}
	}

	return &fraudtypes.StateDiffProof{
		Header: fraudtypes.StateDiffProofHeader{
			BlockNumber: uint64(raw.BlockNumber),
			BlockHash:   raw.BlockHash,
		},
		AccountStateProofs: accounts,
	}, nil
}

// isMethodNotFound distinguishes "the node simply lacks this extension"
// from a genuine transport failure: go-ethereum's rpc.Client surfaces the
// former as an error satisfying rpc.Error with code -32601, but a plain
// string match covers nodes that don't implement that interface either.
func isMethodNotFound(err error) bool {
	type rpcError interface {
		ErrorCode() int
	}
	if rerr, ok := err.(rpcError); ok {
		return rerr.ErrorCode() == -32601
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "method not found") || strings.Contains(msg, "does not exist")
}
