package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/log"

	"github.com/tokamak-network/optimism-oracle-service/internal/config"
	"github.com/tokamak-network/optimism-oracle-service/internal/contracts"
	"github.com/tokamak-network/optimism-oracle-service/internal/deployer"
	"github.com/tokamak-network/optimism-oracle-service/internal/driverloop"
	"github.com/tokamak-network/optimism-oracle-service/internal/l1view"
	"github.com/tokamak-network/optimism-oracle-service/internal/l2view"
	"github.com/tokamak-network/optimism-oracle-service/internal/phasedriver"
	"github.com/tokamak-network/optimism-oracle-service/internal/retry"
	"github.com/tokamak-network/optimism-oracle-service/internal/scanner"
	"github.com/tokamak-network/optimism-oracle-service/internal/witness"
)

var version = "v0.1.0"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("fraud-prover", flag.ContinueOnError)

	def := config.DefaultConfig()
	l1RpcURL := fs.String("l1.rpc", "", "Settlement-chain JSON-RPC endpoint")
	l2RpcURL := fs.String("l2.rpc", "", "Rollup-node JSON-RPC endpoint")
	walletKey := fs.String("l1.wallet-key", "", "Submitter signing key: hex-encoded, or a path to a keyfile")
	addressManager := fs.String("address-manager", "", "Settlement-chain address of the address-manager contract")
	deployGasLimit := fs.Uint64("gas.deploy", def.DeployGasLimit, "Gas limit for commit/deploy submissions")
	runGasLimit := fs.Uint64("gas.run", def.RunGasLimit, "Gas limit for the applyTransaction submission")
	pollingIntervalMs := fs.Uint64("polling-interval-ms", def.PollingIntervalMs, "Milliseconds between scanner polls")
	blockOffset := fs.Uint64("block-offset", def.BlockOffset, "Offset from global transaction index to rollup block number")
	fromIndex := fs.Uint64("from-index", def.FromIndex, "Initial scanner cursor")
	verbosity := fs.Int("verbosity", 3, "Log level 0-5 (0-1=error, 5=trace)")
	showVersion := fs.Bool("version", false, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}
	if *showVersion {
		fmt.Printf("fraud-prover %s\n", version)
		return 0
	}

	setupLogging(*verbosity)

	cfg := config.Config{
		L1RpcUrl:           *l1RpcURL,
		L2RpcUrl:           *l2RpcURL,
		L1WalletKey:        *walletKey,
		AddressManagerAddr: common.HexToAddress(*addressManager),
		DeployGasLimit:     *deployGasLimit,
		RunGasLimit:        *runGasLimit,
		PollingIntervalMs:  *pollingIntervalMs,
		BlockOffset:        *blockOffset,
		FromIndex:          *fromIndex,
	}
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "err", err)
		return 2
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	loop, err := boot(ctx, &cfg)
	if err != nil {
		log.Crit("failed to start fraud-prover", "err", err)
		return 1
	}

	log.Info("fraud-prover started", "fromIndex", cfg.FromIndex, "blockOffset", cfg.BlockOffset)
	if err := loop.Run(ctx, cfg.FromIndex); err != nil {
		log.Error("driver loop exited with error", "err", err)
		return 1
	}
	log.Info("shutdown complete")
	return 0
}

// boot dials both chains -- retrying each per spec.md §4.8's "up to 10
// times with 1-second spacing" policy -- resolves the settlement-chain
// contracts through the address manager, and wires the scanner, witness
// assembler, and phase driver into a poll loop.
func boot(ctx context.Context, cfg *config.Config) (*driverloop.Loop, error) {
	privKey, err := cfg.LoadSigningKey()
	if err != nil {
		return nil, err
	}

	l1Client, err := retry.Dial(ctx, "l1 settlement chain", retry.DefaultAttempts, retry.DefaultSpacing, func(ctx context.Context) (*ethclient.Client, error) {
		return ethclient.DialContext(ctx, cfg.L1RpcUrl)
	})
	if err != nil {
		return nil, err
	}

	addrManager, err := contracts.NewAddressManager(cfg.AddressManagerAddr, l1Client)
	if err != nil {
		return nil, err
	}

	l1, err := retry.Dial(ctx, "l1view", retry.DefaultAttempts, retry.DefaultSpacing, func(ctx context.Context) (*l1view.View, error) {
		return l1view.Dial(ctx, cfg.L1RpcUrl, addrManager)
	})
	if err != nil {
		return nil, err
	}

	l2, err := retry.Dial(ctx, "l2view", retry.DefaultAttempts, retry.DefaultSpacing, func(ctx context.Context) (*l2view.View, error) {
		return l2view.Dial(ctx, cfg.L2RpcUrl)
	})
	if err != nil {
		return nil, err
	}

	fraudVerifierAddr, err := addrManager.GetAddress(&bind.CallOpts{Context: ctx}, "FraudVerifier")
	if err != nil {
		return nil, err
	}
	fraudVerifier, err := contracts.NewFraudVerifier(fraudVerifierAddr, l1Client)
	if err != nil {
		return nil, err
	}

	chainID, err := l1Client.ChainID(ctx)
	if err != nil {
		return nil, err
	}
	signer, err := bind.NewKeyedTransactorWithChainID(privKey, chainID)
	if err != nil {
		return nil, err
	}

	dep := deployer.New(l1Client, signer, cfg.DeployGasLimit)
	driver := phasedriver.New(l1Client, fraudVerifier, dep, l2, signer, cfg.DeployGasLimit, cfg.RunGasLimit, cfg.BlockOffset, nil)
	scan := scanner.New(l1, l2, cfg.BlockOffset)
	wit := witness.New(l1, l2, cfg.BlockOffset)
	pollingInterval := time.Duration(cfg.PollingIntervalMs) * time.Millisecond

	return driverloop.New(scan, wit, driver, pollingInterval, nil), nil
}

func setupLogging(verbosity int) {
	var lvl slog.Level
	switch {
	case verbosity <= 1:
		lvl = slog.LevelError
	case verbosity == 2:
		lvl = slog.LevelWarn
	case verbosity == 3:
		lvl = slog.LevelInfo
	case verbosity == 4:
		lvl = slog.LevelDebug
	default:
		lvl = log.LevelTrace
	}
	log.SetDefault(log.NewLogger(log.NewTerminalHandlerWithLevel(os.Stderr, lvl, true)))
}
