package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/G9000/argenta-finance-sub001/internal/metrics"
)

// Executor drives one chain through the deposit step sequence:
// switch -> allowance check -> approve (if needed) -> deposit -> confirm.
// It always produces a terminal result; retrying is the caller's
// responsibility, never done inside a step.
type Executor struct {
	wallet  Wallet
	reader  ChainReader
	watcher ConfirmationWatcher
	prep    *Preparer
	events  *Emitter
	cfg     BatchConfig
	logger  *zap.Logger
}

// NewExecutor wires the injected capabilities into a step executor. The
// emitter is shared with the orchestrator so consumers see one stream.
func NewExecutor(
	wallet Wallet,
	reader ChainReader,
	watcher ConfirmationWatcher,
	prep *Preparer,
	events *Emitter,
	cfg BatchConfig,
	logger *zap.Logger,
) *Executor {
	return &Executor{
		wallet:  wallet,
		reader:  reader,
		watcher: watcher,
		prep:    prep,
		events:  events,
		cfg:     cfg,
		logger:  logger,
	}
}

// ExecuteChain runs the full step sequence for one chain amount and returns
// its terminal result.
func (x *Executor) ExecuteChain(ctx context.Context, ca ChainAmount) *ChainResult {
	res := &ChainResult{ChainID: ca.ChainID, StartedAt: time.Now()}

	op, operr := x.prep.Prepare(ca.ChainID, ca.Amount)
	if operr != nil {
		return x.fail(res, operr)
	}
	if ca.AmountWei != nil && ca.AmountWei.Cmp(op.Amount) != 0 {
		return x.fail(res, validationError(ca.ChainID,
			fmt.Sprintf("amount_wei %s does not match amount %q", ca.AmountWei, ca.Amount), nil))
	}

	x.logger.Info("Executing chain deposit",
		zap.Uint64("chain_id", op.ChainID),
		zap.String("amount", ca.Amount),
		zap.String("amount_wei", op.Amount.String()))

	// Switch the signer to this chain.
	started := x.stepStarted(op, StepSwitch, 1)
	switchCtx, cancel := context.WithTimeout(ctx, x.cfg.Timeout)
	err := x.wallet.SwitchChain(switchCtx, op.ChainID)
	cancel()
	if err != nil {
		return x.fail(res, Classify(err).at(op.ChainID, StepSwitch))
	}
	x.stepCompleted(op, StepSwitch, 1, started)

	// Read the current allowance; reads fail fast rather than blocking.
	allowance, err := x.reader.Allowance(ctx, op.ChainID, op.TokenAddress, op.VaultAddress)
	if err != nil {
		return x.fail(res, Classify(err).at(op.ChainID, StepAllowance))
	}
	op.NeedsApproval = allowance.Cmp(op.Amount) < 0

	if op.NeedsApproval {
		started = x.stepStarted(op, StepApprove, 2)

		approveAmount := op.Amount
		if x.cfg.ApproveUnlimited {
			approveAmount = maxUint256
		}

		submitCtx, cancel := context.WithTimeout(ctx, x.cfg.Timeout)
		hash, err := x.wallet.Approve(submitCtx, op.ChainID, op.TokenAddress, op.VaultAddress, approveAmount)
		cancel()
		if err != nil {
			operr := Classify(err).at(op.ChainID, StepApprove)
			if operr.Kind == KindUserRejection {
				return x.cancelled(res, operr, "User cancelled approval")
			}
			return x.fail(res, operr)
		}
		x.submitted(op.ChainID, TxApproval, hash.Hex())

		if operr := x.waitConfirmed(ctx, op, hash); operr != nil {
			// ApprovalTxHash stays unset: the approval never landed.
			return x.fail(res, operr)
		}
		res.ApprovalTxHash = hash
		x.confirmed(op.ChainID, TxApproval, hash.Hex())
		x.stepCompleted(op, StepApprove, 2, started)
	} else {
		x.logger.Debug("Allowance sufficient, skipping approval",
			zap.Uint64("chain_id", op.ChainID),
			zap.String("allowance", allowance.String()))
	}

	depositIndex := 3
	if !op.NeedsApproval {
		depositIndex = 2
	}
	started = x.stepStarted(op, StepDeposit, depositIndex)

	submitCtx, cancel := context.WithTimeout(ctx, x.cfg.Timeout)
	hash, err := x.wallet.Deposit(submitCtx, op.ChainID, op.VaultAddress, op.Amount)
	cancel()
	if err != nil {
		operr := Classify(err).at(op.ChainID, StepDeposit)
		if operr.Kind == KindUserRejection {
			if res.HasApproval() {
				// Funds did not move, but the approval is on-chain.
				return x.partial(res, operr, "User cancelled deposit")
			}
			return x.cancelled(res, operr, "User cancelled deposit")
		}
		return x.fail(res, operr)
	}
	x.submitted(op.ChainID, TxDeposit, hash.Hex())

	if operr := x.waitConfirmed(ctx, op, hash); operr != nil {
		return x.fail(res, operr)
	}
	res.DepositTxHash = hash
	x.confirmed(op.ChainID, TxDeposit, hash.Hex())
	x.stepCompleted(op, StepDeposit, depositIndex, started)

	res.Status = StatusSuccess
	res.CompletedAt = time.Now()
	metrics.ChainsExecuted.WithLabelValues(string(StatusSuccess)).Inc()

	x.logger.Info("Chain deposit succeeded",
		zap.Uint64("chain_id", op.ChainID),
		zap.String("deposit_tx", hash.Hex()))
	return res
}

// waitConfirmed blocks until the transaction is mined or the confirmation
// timeout elapses. A reverted transaction or an elapsed timeout both come
// back as classified errors at the confirming step.
func (x *Executor) waitConfirmed(ctx context.Context, op *ChainOperation, hash common.Hash) *OpError {
	status, err := x.watcher.WaitForReceipt(ctx, op.ChainID, hash, x.cfg.ConfirmationTimeout)
	if err != nil {
		return Classify(err).at(op.ChainID, StepConfirm)
	}
	if status != ReceiptSuccess {
		return Classify(fmt.Errorf("transaction %s reverted on chain %d", hash.Hex(), op.ChainID)).
			at(op.ChainID, StepConfirm)
	}
	return nil
}

func (x *Executor) stepStarted(op *ChainOperation, step Step, index int) time.Time {
	x.events.Emit(EventStepStarted, StepStartedEvent{
		ChainID:   op.ChainID,
		Step:      step,
		StepIndex: index,
		StepTotal: op.stepTotal(),
	})
	return time.Now()
}

func (x *Executor) stepCompleted(op *ChainOperation, step Step, index int, started time.Time) {
	metrics.StepDuration.WithLabelValues(string(step)).Observe(time.Since(started).Seconds())
	x.events.Emit(EventStepCompleted, StepCompletedEvent{
		ChainID:   op.ChainID,
		Step:      step,
		StepIndex: index,
		StepTotal: op.stepTotal(),
	})
}

func (x *Executor) submitted(chainID uint64, typ TxType, hash string) {
	metrics.TransactionsSubmitted.WithLabelValues(string(typ)).Inc()
	x.events.Emit(EventTransactionSubmitted, TransactionSubmittedEvent{
		ChainID: chainID,
		Type:    typ,
		TxHash:  hash,
	})
}

func (x *Executor) confirmed(chainID uint64, typ TxType, hash string) {
	metrics.TransactionsConfirmed.WithLabelValues(string(typ)).Inc()
	x.events.Emit(EventTransactionConfirmed, TransactionConfirmedEvent{
		ChainID: chainID,
		Type:    typ,
		TxHash:  hash,
	})
}

func (x *Executor) fail(res *ChainResult, operr *OpError) *ChainResult {
	res.Status = StatusFailed
	res.Err = operr
	res.CompletedAt = time.Now()
	metrics.ChainsExecuted.WithLabelValues(string(StatusFailed)).Inc()
	metrics.ErrorsTotal.WithLabelValues(operr.Kind.String()).Inc()
	x.logger.Warn("Chain deposit failed",
		zap.Uint64("chain_id", res.ChainID),
		zap.String("step", string(operr.Step)),
		zap.String("kind", operr.Kind.String()),
		zap.Error(operr))
	return res
}

func (x *Executor) cancelled(res *ChainResult, operr *OpError, message string) *ChainResult {
	res.Status = StatusCancelled
	res.UserCancelled = true
	res.Err = withMessage(operr, message)
	res.CompletedAt = time.Now()
	metrics.ChainsExecuted.WithLabelValues(string(StatusCancelled)).Inc()
	x.logger.Info("Chain deposit cancelled by operator", zap.Uint64("chain_id", res.ChainID))
	return res
}

func (x *Executor) partial(res *ChainResult, operr *OpError, message string) *ChainResult {
	res.Status = StatusPartial
	res.UserCancelled = true
	res.Err = withMessage(operr, message)
	res.CompletedAt = time.Now()
	metrics.ChainsExecuted.WithLabelValues(string(StatusPartial)).Inc()
	x.logger.Info("Chain deposit partially completed, approval is on-chain",
		zap.Uint64("chain_id", res.ChainID),
		zap.String("approval_tx", res.ApprovalTxHash.Hex()))
	return res
}

func withMessage(operr *OpError, message string) *OpError {
	cp := *operr
	cp.Message = message
	return &cp
}

// stepTotal is the chain-relative step count used in step events: the
// switch, the optional approval, and the deposit.
func (op *ChainOperation) stepTotal() int {
	if op.NeedsApproval {
		return 3
	}
	return 2
}
