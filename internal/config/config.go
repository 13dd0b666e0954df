// Package config holds the enumerated configuration of spec.md §6:
// transport endpoints, the submitter's signing key, gas limits, the
// polling interval, and the index-space offset between the rollup's block
// numbering and the global transaction index. Shape and defaulting follow
// the teacher's node.Config / DefaultConfig / Validate idiom.
package config

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Config holds everything the fraud-proof driver needs to boot.
type Config struct {
	// L2RpcUrl is the rollup node's JSON-RPC endpoint.
	L2RpcUrl string
	// L1RpcUrl is the settlement chain's JSON-RPC endpoint.
	L1RpcUrl string
	// L1WalletKey is the submitter's signing key: a hex-encoded private
	// key, or a path to a file containing one.
	L1WalletKey string

	// AddressManagerAddr is the settlement-chain address of the
	// address-manager contract every other contract address -- the
	// state-commitment chain, canonical-transaction chain, and fraud
	// verifier -- is resolved through at boot.
	AddressManagerAddr common.Address

	// DeployGasLimit bounds commit/deploy submissions.
	DeployGasLimit uint64
	// RunGasLimit bounds the applyTransaction submission.
	RunGasLimit uint64

	// PollingInterval, in milliseconds, between scanner polls.
	PollingIntervalMs uint64

	// BlockOffset translates a global transaction index to a rollup
	// block number.
	BlockOffset uint64

	// FromIndex is the scanner's initial cursor.
	FromIndex uint64
}

// Defaults per spec.md §6.
const (
	DefaultDeployGasLimit    = 4_000_000
	DefaultRunGasLimit       = 95_000_000
	DefaultPollingIntervalMs = 5_000
	DefaultBlockOffset       = 1
	DefaultFromIndex         = 0
)

// DefaultConfig returns a Config with every spec.md §6 default filled in
// and empty transport/key fields, which Validate will reject until the
// caller supplies them.
func DefaultConfig() Config {
	return Config{
		DeployGasLimit:    DefaultDeployGasLimit,
		RunGasLimit:       DefaultRunGasLimit,
		PollingIntervalMs: DefaultPollingIntervalMs,
		BlockOffset:       DefaultBlockOffset,
		FromIndex:         DefaultFromIndex,
	}
}

// Validate checks configuration values for correctness. It returns plain
// errors (config has no dependency on fraudtypes); cmd/fraud-prover logs
// a validation failure and exits with status 2.
func (c *Config) Validate() error {
	if c.L1RpcUrl == "" {
		return errors.New("config: l1 rpc url must not be empty")
	}
	if c.L2RpcUrl == "" {
		return errors.New("config: l2 rpc url must not be empty")
	}
	if c.L1WalletKey == "" {
		return errors.New("config: l1 wallet key must not be empty")
	}
	if c.AddressManagerAddr == (common.Address{}) {
		return errors.New("config: address manager address must not be empty")
	}
	if c.DeployGasLimit == 0 {
		return fmt.Errorf("config: invalid deploy gas limit: %d", c.DeployGasLimit)
	}
	if c.RunGasLimit == 0 {
		return fmt.Errorf("config: invalid run gas limit: %d", c.RunGasLimit)
	}
	if c.PollingIntervalMs == 0 {
		return fmt.Errorf("config: invalid polling interval: %d", c.PollingIntervalMs)
	}
	return nil
}

// LoadSigningKey resolves L1WalletKey into a private key. A value that
// decodes as hex is used directly; otherwise it is treated as a path to a
// keyfile containing one hex-encoded key per line (matching the style of
// geth's --keyfile conventions, minus passphrase-protected keystores,
// which are out of this driver's scope).
func (c *Config) LoadSigningKey() (*ecdsa.PrivateKey, error) {
	key := strings.TrimSpace(c.L1WalletKey)
	if pk, err := crypto.HexToECDSA(strings.TrimPrefix(key, "0x")); err == nil {
		return pk, nil
	}
	data, err := os.ReadFile(key)
	if err != nil {
		return nil, fmt.Errorf("config: l1 wallet key is neither valid hex nor a readable file: %w", err)
	}
	line := strings.TrimSpace(strings.SplitN(string(data), "\n", 2)[0])
	pk, err := crypto.HexToECDSA(strings.TrimPrefix(line, "0x"))
	if err != nil {
		return nil, fmt.Errorf("config: l1 wallet keyfile does not contain a valid private key: %w", err)
	}
	return pk, nil
}
