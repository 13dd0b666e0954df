// Package phasedriver implements component C6 of spec.md: the core state
// machine that drives one dispute's state transitioner through
// PRE_EXECUTION, POST_EXECUTION, and COMPLETE, tolerating concurrent
// provers racing the same dispute via revert-message classification.
package phasedriver

import (
	"context"
	"errors"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"

	"github.com/tokamak-network/optimism-oracle-service/internal/contracts"
	"github.com/tokamak-network/optimism-oracle-service/internal/deployer"
	"github.com/tokamak-network/optimism-oracle-service/internal/fraudtypes"
	"github.com/tokamak-network/optimism-oracle-service/internal/trieutil"
)

var (
	errNoTransitioner = errors.New("phasedriver: initializeFraudVerification did not create a transitioner")
	errTxReverted     = errors.New("phasedriver: transaction reverted")
	errNoStorageTrie  = errors.New("phasedriver: no local storage trie for committed account")
)

// Backend is what the driver needs from its settlement-chain connection:
// enough to bind contracts, submit transactions, and wait for receipts.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
}

// L2CodeSource is the one rollup-node capability the driver needs
// directly: resolving an account's deployed code for the bytecode
// deployer.
type L2CodeSource interface {
	GetCode(ctx context.Context, address common.Address, rollupBlock uint64) ([]byte, error)
}

// Driver runs spec.md §4.6's state machine against one dispute at a time.
// It holds no per-dispute state between Run calls; everything mutable
// lives in the FraudProofData passed to Run.
type Driver struct {
	Backend  Backend
	Verifier *contracts.FraudVerifier
	Deployer *deployer.Deployer
	L2       L2CodeSource
	Signer   *bind.TransactOpts

	DeployGasLimit uint64
	RunGasLimit    uint64
	BlockOffset    uint64

	Log log.Logger
}

// New constructs a Driver. log may be nil, in which case a default logger
// tagged "component=phasedriver" is used.
func New(backend Backend, verifier *contracts.FraudVerifier, dep *deployer.Deployer, l2 L2CodeSource, signer *bind.TransactOpts, deployGasLimit, runGasLimit, blockOffset uint64, logger log.Logger) *Driver {
	if logger == nil {
		logger = log.New("component", "phasedriver")
	}
	return &Driver{
		Backend:        backend,
		Verifier:       verifier,
		Deployer:       dep,
		L2:             l2,
		Signer:         signer,
		DeployGasLimit: deployGasLimit,
		RunGasLimit:    runGasLimit,
		BlockOffset:    blockOffset,
		Log:            logger,
	}
}

// Run drives data's dispute to completion and returns the cursor value the
// scanner should resume from: the start of the batch containing the
// disputed root, so that any other mismatch in the same batch is
// re-examined under the corrected post-state (spec.md §4.6.2(f)).
//
// Run returns nil error only once finalizeFraudVerification has committed
// or been observed as already committed by a peer. Any other outcome --
// a transport failure, a non-race revert, or a witness inconsistency --
// is returned unchanged so the caller can log it and retry the same
// dispute on the next poll without advancing the cursor.
func (d *Driver) Run(ctx context.Context, data *fraudtypes.FraudProofData) (fraudtypes.GlobalIndex, error) {
	preRoot := data.PreStateRootProof.StateRoot
	txHash, err := contracts.HashOvmTransaction(data.TransactionProof.Transaction)
	if err != nil {
		return 0, fraudtypes.Wrap(fraudtypes.KindFatal, "phasedriver.Run", err)
	}

	if err := d.initialize(ctx, preRoot, txHash, data); err != nil {
		return 0, err
	}

	transitionerAddr, err := d.Verifier.StateTransitioner(d.callOpts(ctx), preRoot, txHash)
	if err != nil {
		return 0, fraudtypes.Wrap(fraudtypes.KindTransport, "phasedriver.Run", err)
	}
	if transitionerAddr == (common.Address{}) {
		return 0, fraudtypes.Wrap(fraudtypes.KindTransport, "phasedriver.Run", errNoTransitioner)
	}
	transitioner, err := contracts.NewStateTransitioner(transitionerAddr, d.Backend)
	if err != nil {
		return 0, fraudtypes.Wrap(fraudtypes.KindTransport, "phasedriver.Run", err)
	}
	stateManagerAddr, err := transitioner.StateManager(d.callOpts(ctx))
	if err != nil {
		return 0, fraudtypes.Wrap(fraudtypes.KindTransport, "phasedriver.Run", err)
	}
	stateManager, err := contracts.NewStateManager(stateManagerAddr, d.Backend)
	if err != nil {
		return 0, fraudtypes.Wrap(fraudtypes.KindTransport, "phasedriver.Run", err)
	}

	phase, err := transitioner.Phase(d.callOpts(ctx))
	if err != nil {
		return 0, fraudtypes.Wrap(fraudtypes.KindTransport, "phasedriver.Run", err)
	}
	if phase == contracts.PhasePreExecution {
		suspectIndex := data.SuspectIndex()
		if err := d.runPreExecution(ctx, transitioner, stateManager, data, suspectIndex); err != nil {
			return 0, err
		}
		phase, err = transitioner.Phase(d.callOpts(ctx))
		if err != nil {
			return 0, fraudtypes.Wrap(fraudtypes.KindTransport, "phasedriver.Run", err)
		}
	}

	if phase == contracts.PhasePostExecution {
		if err := d.runPostExecution(ctx, transitioner, stateManager, data); err != nil {
			return 0, err
		}
		phase, err = transitioner.Phase(d.callOpts(ctx))
		if err != nil {
			return 0, fraudtypes.Wrap(fraudtypes.KindTransport, "phasedriver.Run", err)
		}
	}

	if phase == contracts.PhaseComplete {
		if err := d.finalize(ctx, data, txHash); err != nil {
			return 0, err
		}
	}

	return data.PreStateRootProof.StateRootBatchHeader.PrevTotalElements, nil
}

func (d *Driver) initialize(ctx context.Context, preRoot, txHash common.Hash, data *fraudtypes.FraudProofData) error {
	existing, err := d.Verifier.StateTransitioner(d.callOpts(ctx), preRoot, txHash)
	if err != nil {
		return fraudtypes.Wrap(fraudtypes.KindTransport, "phasedriver.initialize", err)
	}
	if existing != (common.Address{}) {
		return nil // a peer initialized first.
	}
	err = d.submit(ctx, "phasedriver.initializeFraudVerification", func() (*types.Transaction, error) {
		return d.Verifier.InitializeFraudVerification(d.txOpts(ctx, d.DeployGasLimit), data.PreStateRootProof, data.TransactionProof)
	})
	if err != nil && !fraudtypes.IsKind(err, fraudtypes.KindRace) {
		return err
	}
	return nil
}

// resolveCarrier deploys a's deployed rollup-node code to the settlement
// chain and returns the resulting address, or the fixed sentinel carrier
// if the account has no code at the disputed height.
func (d *Driver) resolveCarrier(ctx context.Context, address common.Address, blockOffsetIndex fraudtypes.GlobalIndex) (common.Address, error) {
	code, err := d.L2.GetCode(ctx, address, blockOffsetIndex+d.BlockOffset)
	if err != nil {
		return common.Address{}, fraudtypes.Wrap(fraudtypes.KindTransport, "phasedriver.resolveCarrier", err)
	}
	if len(code) == 0 {
		return deployer.CodeCarrierSentinel, nil
	}
	addr, err := d.Deployer.Deploy(ctx, code)
	if err != nil {
		return common.Address{}, err
	}
	return addr, nil
}

func (d *Driver) runPreExecution(ctx context.Context, transitioner *contracts.StateTransitioner, stateManager *contracts.StateManager, data *fraudtypes.FraudProofData, suspectIndex fraudtypes.GlobalIndex) error {
	for _, a := range data.StateDiffProof.AccountStateProofs {
		has, err := stateManager.HasAccount(d.callOpts(ctx), a.Address)
		if err != nil {
			return fraudtypes.Wrap(fraudtypes.KindTransport, "phasedriver.runPreExecution", err)
		}
		if has {
			continue
		}
		carrier, err := d.resolveCarrier(ctx, a.Address, suspectIndex)
		if err != nil {
			return err
		}
		err = d.submit(ctx, "phasedriver.proveContractState", func() (*types.Transaction, error) {
			return transitioner.ProveContractState(d.txOpts(ctx, d.DeployGasLimit), a.Address, carrier, a.AccountProof)
		})
		if err != nil {
			if isPhaseGuardRevert(err) {
				return nil
			}
			if fraudtypes.IsKind(err, fraudtypes.KindRace) {
				continue
			}
			return err
		}
	}

	for _, a := range data.StateDiffProof.AccountStateProofs {
		for _, s := range a.StorageProof {
			slot := s
			acct := a
			err := d.submit(ctx, "phasedriver.proveStorageSlot", func() (*types.Transaction, error) {
				return transitioner.ProveStorageSlot(d.txOpts(ctx, d.DeployGasLimit), acct.Address, slot.Key, slot.Proof)
			})
			if err != nil {
				if isPhaseGuardRevert(err) {
					return nil
				}
				if fraudtypes.IsKind(err, fraudtypes.KindRace) {
					continue
				}
				return err
			}
		}
	}

	err := d.submit(ctx, "phasedriver.applyTransaction", func() (*types.Transaction, error) {
		return transitioner.ApplyTransaction(d.txOpts(ctx, d.RunGasLimit), data.TransactionProof.Transaction)
	})
	if err != nil && !fraudtypes.IsKind(err, fraudtypes.KindRace) && !isPhaseGuardRevert(err) {
		return err
	}
	return nil
}

// runPostExecution drains the account and storage commit sub-loops of
// §4.6.2(d) to completion. The two sub-loops are run one after the other
// rather than literally interleaved instruction-by-instruction: the
// driver is single-threaded and cooperative, and nothing in either
// sub-loop's termination condition depends on the other having run, so
// sequencing them is observationally equivalent and simpler to reason
// about.
func (d *Driver) runPostExecution(ctx context.Context, transitioner *contracts.StateTransitioner, stateManager *contracts.StateManager, data *fraudtypes.FraudProofData) error {
	if err := d.drainAccountCommits(ctx, transitioner, stateManager, data); err != nil {
		return err
	}
	if err := d.drainStorageCommits(ctx, transitioner, stateManager, data); err != nil {
		return err
	}
	err := d.submit(ctx, "phasedriver.completeTransition", func() (*types.Transaction, error) {
		return transitioner.CompleteTransition(d.txOpts(ctx, d.DeployGasLimit))
	})
	if err != nil && !fraudtypes.IsKind(err, fraudtypes.KindRace) {
		return err
	}
	return nil
}

func (d *Driver) drainAccountCommits(ctx context.Context, transitioner *contracts.StateTransitioner, stateManager *contracts.StateManager, data *fraudtypes.FraudProofData) error {
	ourAccounts := make(map[common.Address]fraudtypes.AccountStateProof, len(data.StateDiffProof.AccountStateProofs))
	for _, a := range data.StateDiffProof.AccountStateProofs {
		ourAccounts[a.Address] = a
	}

	for {
		count, err := stateManager.UncommittedAccountCount(d.callOpts(ctx))
		if err != nil {
			return fraudtypes.Wrap(fraudtypes.KindTransport, "phasedriver.drainAccountCommits", err)
		}
		if count == 0 {
			return nil
		}

		committed, err := transitioner.AccountCommittedEvents(ctx)
		if err != nil {
			return fraudtypes.Wrap(fraudtypes.KindTransport, "phasedriver.drainAccountCommits", err)
		}
		for addr := range ourAccounts {
			if !committed[addr] {
				continue
			}
			account, err := stateManager.Account(d.callOpts(ctx), addr)
			if err != nil {
				return fraudtypes.Wrap(fraudtypes.KindTransport, "phasedriver.drainAccountCommits", err)
			}
			enc, err := trieutil.EncodeAccount(account.Nonce, account.Balance.ToBig(), account.StorageRoot, account.CodeHash)
			if err != nil {
				return fraudtypes.Wrap(fraudtypes.KindFatal, "phasedriver.drainAccountCommits", err)
			}
			if err := data.StateTrie.Update(trieutil.AddressKey(addr), enc); err != nil {
				return fraudtypes.Wrap(fraudtypes.KindFatal, "phasedriver.drainAccountCommits", err)
			}
		}

		var candidate common.Address
		found := false
		for addr := range ourAccounts {
			changed, err := stateManager.WasAccountChanged(d.callOpts(ctx), addr)
			if err != nil {
				return fraudtypes.Wrap(fraudtypes.KindTransport, "phasedriver.drainAccountCommits", err)
			}
			if !changed {
				continue
			}
			committedOnChain, err := stateManager.WasAccountCommitted(d.callOpts(ctx), addr)
			if err != nil {
				return fraudtypes.Wrap(fraudtypes.KindTransport, "phasedriver.drainAccountCommits", err)
			}
			if committedOnChain {
				continue
			}
			candidate = addr
			found = true
			break
		}
		if !found {
			return fraudtypes.Wrap(fraudtypes.KindCorruptWitness, "phasedriver.drainAccountCommits", fraudtypes.ErrInconsistent)
		}

		proof, err := trieutil.Prove(data.StateTrie, trieutil.AddressKey(candidate))
		if err != nil {
			return fraudtypes.Wrap(fraudtypes.KindFatal, "phasedriver.drainAccountCommits", err)
		}
		err = d.submit(ctx, "phasedriver.commitContractState", func() (*types.Transaction, error) {
			return transitioner.CommitContractState(d.txOpts(ctx, d.DeployGasLimit), candidate, proof)
		})
		if err != nil {
			if fraudtypes.IsKind(err, fraudtypes.KindRace) {
				continue // peer's commit invalidated our root; re-read and retry.
			}
			return err
		}
	}
}

func (d *Driver) drainStorageCommits(ctx context.Context, transitioner *contracts.StateTransitioner, stateManager *contracts.StateManager, data *fraudtypes.FraudProofData) error {
	type slot struct {
		address common.Address
		key     common.Hash
	}
	var ourSlots []slot
	for _, a := range data.StateDiffProof.AccountStateProofs {
		for _, s := range a.StorageProof {
			ourSlots = append(ourSlots, slot{address: a.Address, key: s.Key})
		}
	}
	if len(ourSlots) == 0 {
		return nil
	}

	for {
		count, err := stateManager.UncommittedStorageSlotCount(d.callOpts(ctx))
		if err != nil {
			return fraudtypes.Wrap(fraudtypes.KindTransport, "phasedriver.drainStorageCommits", err)
		}
		if count == 0 {
			return nil
		}

		committed, err := transitioner.StorageSlotCommittedEvents(ctx)
		if err != nil {
			return fraudtypes.Wrap(fraudtypes.KindTransport, "phasedriver.drainStorageCommits", err)
		}
		for _, s := range ourSlots {
			key := fraudtypes.StorageSlotKey{Address: s.address, Key: s.key}
			if !committed[key] {
				continue
			}
			value, err := stateManager.Storage(d.callOpts(ctx), s.address, s.key)
			if err != nil {
				return fraudtypes.Wrap(fraudtypes.KindTransport, "phasedriver.drainStorageCommits", err)
			}
			enc, err := trieutil.EncodeStorageValue(value)
			if err != nil {
				return fraudtypes.Wrap(fraudtypes.KindFatal, "phasedriver.drainStorageCommits", err)
			}
			tr, ok := data.StorageTries[s.address]
			if !ok {
				return fraudtypes.Wrap(fraudtypes.KindCorruptWitness, "phasedriver.drainStorageCommits", errNoStorageTrie)
			}
			if err := tr.Update(trieutil.SlotKey(s.key), enc); err != nil {
				return fraudtypes.Wrap(fraudtypes.KindFatal, "phasedriver.drainStorageCommits", err)
			}
		}

		var candidate slot
		found := false
		for _, s := range ourSlots {
			changed, err := stateManager.WasStorageSlotChanged(d.callOpts(ctx), s.address, s.key)
			if err != nil {
				return fraudtypes.Wrap(fraudtypes.KindTransport, "phasedriver.drainStorageCommits", err)
			}
			if !changed {
				continue
			}
			committedOnChain, err := stateManager.WasStorageSlotCommitted(d.callOpts(ctx), s.address, s.key)
			if err != nil {
				return fraudtypes.Wrap(fraudtypes.KindTransport, "phasedriver.drainStorageCommits", err)
			}
			if committedOnChain {
				continue
			}
			candidate = s
			found = true
			break
		}
		if !found {
			return fraudtypes.Wrap(fraudtypes.KindCorruptWitness, "phasedriver.drainStorageCommits", fraudtypes.ErrInconsistent)
		}

		tr, ok := data.StorageTries[candidate.address]
		if !ok {
			return fraudtypes.Wrap(fraudtypes.KindCorruptWitness, "phasedriver.drainStorageCommits", errNoStorageTrie)
		}
		proof, err := trieutil.Prove(tr, trieutil.SlotKey(candidate.key))
		if err != nil {
			return fraudtypes.Wrap(fraudtypes.KindFatal, "phasedriver.drainStorageCommits", err)
		}
		err = d.submit(ctx, "phasedriver.commitStorageSlot", func() (*types.Transaction, error) {
			return transitioner.CommitStorageSlot(d.txOpts(ctx, d.DeployGasLimit), candidate.address, candidate.key, proof)
		})
		if err != nil {
			if fraudtypes.IsKind(err, fraudtypes.KindRace) {
				continue
			}
			return err
		}
	}
}

func (d *Driver) finalize(ctx context.Context, data *fraudtypes.FraudProofData, txHash common.Hash) error {
	err := d.submit(ctx, "phasedriver.finalizeFraudVerification", func() (*types.Transaction, error) {
		return d.Verifier.FinalizeFraudVerification(d.txOpts(ctx, d.DeployGasLimit), data.PreStateRootProof, data.PostStateRootProof, txHash)
	})
	if err != nil && !fraudtypes.IsKind(err, fraudtypes.KindRace) {
		return err
	}
	return nil
}

// submit runs fn, waits for the resulting transaction to mine, and
// classifies any failure per §4.6.3: a revert matching one of the race
// substrings is wrapped as KindRace (the caller decides whether that
// means "continue" or "done"); anything else is KindSubmission.
//
// Every txOpts call sets an explicit GasLimit, so bind.Transact never runs
// eth_estimateGas and a reverting call is happily sent, mined, and comes
// back as a failed receipt with no reason string attached. Submitting a
// transaction that fails this way is indistinguishable from a genuine
// submission failure unless the revert reason is recovered separately, so
// a failed receipt replays the same call as an eth_call against the
// mined block and classifies whatever revert message comes back.
func (d *Driver) submit(ctx context.Context, op string, fn func() (*types.Transaction, error)) error {
	tx, err := fn()
	if err != nil {
		if classifyRevert(err) {
			return fraudtypes.Wrap(fraudtypes.KindRace, op, err)
		}
		return fraudtypes.Wrap(fraudtypes.KindSubmission, op, err)
	}
	receipt, err := bind.WaitMined(ctx, d.Backend, tx)
	if err != nil {
		return fraudtypes.Wrap(fraudtypes.KindSubmission, op, err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		reason := d.revertReason(ctx, tx, receipt)
		if classifyRevert(reason) {
			return fraudtypes.Wrap(fraudtypes.KindRace, op, reason)
		}
		if reason != nil {
			return fraudtypes.Wrap(fraudtypes.KindSubmission, op, reason)
		}
		return fraudtypes.Wrap(fraudtypes.KindSubmission, op, errTxReverted)
	}
	return nil
}

// revertReason replays tx as an eth_call at the block it was mined in and
// returns whatever error comes back -- on a node that echoes the revert
// string, that error's message is exactly the substring classifyRevert
// matches against. Returns nil if the replay does not itself fail, which
// can happen if state moved between the failed receipt and this call; the
// caller falls back to a reasonless KindSubmission in that case.
func (d *Driver) revertReason(ctx context.Context, tx *types.Transaction, receipt *types.Receipt) error {
	msg := ethereum.CallMsg{
		From:     d.Signer.From,
		To:       tx.To(),
		Gas:      tx.Gas(),
		GasPrice: tx.GasPrice(),
		Value:    tx.Value(),
		Data:     tx.Data(),
	}
	_, err := d.Backend.CallContract(ctx, msg, receipt.BlockNumber)
	return err
}

func (d *Driver) callOpts(ctx context.Context) *bind.CallOpts {
	return &bind.CallOpts{Context: ctx}
}

func (d *Driver) txOpts(ctx context.Context, gas uint64) *bind.TransactOpts {
	opts := *d.Signer
	opts.Context = ctx
	opts.GasLimit = gas
	return &opts
}
