package l2view

import (
	"context"
	"errors"
	"math/big"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	gethrpc "github.com/ethereum/go-ethereum/rpc"

	"github.com/tokamak-network/optimism-oracle-service/internal/fraudtypes"
)

// rollupService is registered under the "rollup" namespace; go-ethereum's
// rpc server exposes its exported methods as rollup_<lowerCamel>, so
// GetStateDiffProof becomes the rollup_getStateDiffProof extension method.
type rollupService struct {
	proof *stateDiffProofRPC
	err   error
}

func (s *rollupService) GetStateDiffProof(block hexutil.Uint64) (*stateDiffProofRPC, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.proof, nil
}

func newTestServer(t *testing.T, svc *rollupService) (*View, func()) {
	t.Helper()
	server := gethrpc.NewServer()
	if err := server.RegisterName("rollup", svc); err != nil {
		t.Fatalf("register rollup service: %v", err)
	}
	ts := httptest.NewServer(server)

	v, err := Dial(context.Background(), ts.URL)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return v, func() { ts.Close(); server.Stop() }
}

func TestGetStateDiffProofDecodesAccounts(t *testing.T) {
	addr := common.HexToAddress("0x1111111111111111111111111111111111111111")
	slot := common.HexToHash("0x01")
	val := common.HexToHash("0x2a")

	raw := &stateDiffProofRPC{
		BlockNumber: hexutil.Uint64(42),
		BlockHash:   common.HexToHash("0xaa"),
		Accounts: []accountRPC{
			{
				Address:      addr,
				Nonce:        hexutil.Uint64(3),
				Balance:      (*hexutil.Big)(new(big.Int).SetUint64(1000)),
				CodeHash:     common.HexToHash("0xbb"),
				StorageRoot:  common.HexToHash("0xcc"),
				AccountProof: []hexutil.Bytes{[]byte("node0"), []byte("node1")},
				StorageProof: []storageRPC{
					{Key: slot, Value: val, Proof: []hexutil.Bytes{[]byte("snode0")}},
				},
			},
		},
	}

	v, closeFn := newTestServer(t, &rollupService{proof: raw})
	defer closeFn()

	got, err := v.GetStateDiffProof(context.Background(), 42)
	if err != nil {
		t.Fatalf("GetStateDiffProof: %v", err)
	}
	if got.Header.BlockNumber != 42 {
		t.Fatalf("want block 42, got %d", got.Header.BlockNumber)
	}
	if len(got.AccountStateProofs) != 1 {
		t.Fatalf("want 1 account, got %d", len(got.AccountStateProofs))
	}
	acct := got.AccountStateProofs[0]
	if acct.Address != addr {
		t.Fatalf("want address %s, got %s", addr, acct.Address)
	}
	if acct.Nonce != 3 {
		t.Fatalf("want nonce 3, got %d", acct.Nonce)
	}
	if acct.Balance.Uint64() != 1000 {
		t.Fatalf("want balance 1000, got %s", acct.Balance)
	}
	if len(acct.AccountProof) != 2 {
		t.Fatalf("want 2 proof nodes, got %d", len(acct.AccountProof))
	}
	if len(acct.StorageProof) != 1 || acct.StorageProof[0].Key != slot || acct.StorageProof[0].Value != val {
		t.Fatalf("unexpected storage proof: %+v", acct.StorageProof)
	}
}

func TestGetStateDiffProofMethodNotFoundIsUnsupported(t *testing.T) {
	// No "rollup" namespace registered at all: the server itself returns
	// a method-not-found error, exercising the same path a rollup node
	// without the extension would produce.
	server := gethrpc.NewServer()
	ts := httptest.NewServer(server)
	defer ts.Close()
	defer server.Stop()

	v, err := Dial(context.Background(), ts.URL)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	_, err = v.GetStateDiffProof(context.Background(), 1)
	if err == nil {
		t.Fatal("want error, got nil")
	}
	if !fraudtypes.IsKind(err, fraudtypes.KindUnsupported) {
		t.Fatalf("want KindUnsupported, got %v", err)
	}
}

func TestGetStateDiffProofOtherErrorIsTransport(t *testing.T) {
	v, closeFn := newTestServer(t, &rollupService{err: errors.New("boom")})
	defer closeFn()

	_, err := v.GetStateDiffProof(context.Background(), 1)
	if err == nil {
		t.Fatal("want error, got nil")
	}
	if !fraudtypes.IsKind(err, fraudtypes.KindTransport) {
		t.Fatalf("want KindTransport, got %v", err)
	}
}
