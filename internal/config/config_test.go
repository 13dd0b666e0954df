package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestDefaultConfigValidateRequiresTransportAndKey(t *testing.T) {
	c := DefaultConfig()
	if err := c.Validate(); err == nil {
		t.Fatal("expected error for missing l1/l2 rpc urls and wallet key")
	}

	c.L1RpcUrl = "http://localhost:8545"
	c.L2RpcUrl = "http://localhost:9545"
	c.L1WalletKey = "0x1111111111111111111111111111111111111111111111111111111111111111"
	c.AddressManagerAddr = common.HexToAddress("0x1234")
	// Every required field is now present. Validate only checks presence,
	// not well-formedness of the key -- that is LoadSigningKey's job.
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateRejectsMissingAddressManager(t *testing.T) {
	c := DefaultConfig()
	c.L1RpcUrl, c.L2RpcUrl, c.L1WalletKey = "u", "u", "k"
	if err := c.Validate(); err == nil {
		t.Fatal("expected error for missing address manager address")
	}
}

func TestValidateRejectsZeroGasLimits(t *testing.T) {
	c := DefaultConfig()
	c.L1RpcUrl, c.L2RpcUrl, c.L1WalletKey = "u", "u", "k"
	c.AddressManagerAddr = common.HexToAddress("0x1234")
	c.DeployGasLimit = 0
	if err := c.Validate(); err == nil {
		t.Fatal("expected error for zero deploy gas limit")
	}
	c.DeployGasLimit = DefaultDeployGasLimit
	c.RunGasLimit = 0
	if err := c.Validate(); err == nil {
		t.Fatal("expected error for zero run gas limit")
	}
}

func TestLoadSigningKeyFromHex(t *testing.T) {
	c := Config{L1WalletKey: "df565bfb5a171999c63f06f8102b798efe9f6059bafc065a79e1b977bd92888e"}
	if _, err := c.LoadSigningKey(); err != nil {
		t.Fatalf("LoadSigningKey: %v", err)
	}
}

func TestLoadSigningKeyFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "key")
	key := "2fc661afa040dc245ee5212e49208227fc1b2bead12e09f9953d45a3937db885"
	if err := os.WriteFile(path, []byte(key+"\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	c := Config{L1WalletKey: path}
	pk, err := c.LoadSigningKey()
	if err != nil {
		t.Fatalf("LoadSigningKey: %v", err)
	}
	if pk == nil {
		t.Fatal("expected non-nil private key")
	}
}

func TestLoadSigningKeyRejectsGarbage(t *testing.T) {
	c := Config{L1WalletKey: "not-a-key-and-not-a-path"}
	if _, err := c.LoadSigningKey(); err == nil {
		t.Fatal("expected error for unresolvable wallet key")
	}
}
