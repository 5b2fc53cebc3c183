// Package engine implements the batch deposit orchestration engine: it
// drives a single operator wallet through approve-and-deposit sequences on
// several independent EVM chains, one chain at a time, and reports partial
// progress through a typed event stream.
package engine

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ChainAmount is one requested deposit: a chain and a human-readable decimal
// amount. AmountWei, when set by the caller, must be the exact smallest-unit
// conversion of Amount at the token's precision; the preparer re-derives and
// cross-checks it.
type ChainAmount struct {
	ChainID   uint64
	Amount    string
	AmountWei *big.Int
}

// ChainStatus is the terminal (or in-flight) state of one chain's execution.
type ChainStatus string

const (
	// StatusSuccess means the deposit was mined successfully.
	StatusSuccess ChainStatus = "success"
	// StatusFailed means a step failed with a classified error.
	StatusFailed ChainStatus = "failed"
	// StatusCancelled means the operator rejected a signing prompt before
	// any transaction reached the chain.
	StatusCancelled ChainStatus = "cancelled"
	// StatusPartial means the approval was mined but the deposit was not:
	// no funds moved, but an allowance is now on-chain.
	StatusPartial ChainStatus = "partial"
	// StatusRetrying marks a chain that is being re-executed.
	StatusRetrying ChainStatus = "retrying"
)

// Terminal reports whether the status is final.
func (s ChainStatus) Terminal() bool {
	switch s {
	case StatusSuccess, StatusFailed, StatusCancelled, StatusPartial:
		return true
	}
	return false
}

// ChainResult is the per-chain outcome record. It is created when a chain's
// execution begins, mutated only by the executor driving that chain, and
// immutable once Status is terminal.
type ChainResult struct {
	ChainID        uint64
	Status         ChainStatus
	ApprovalTxHash common.Hash
	DepositTxHash  common.Hash
	Err            *OpError
	UserCancelled  bool
	StartedAt      time.Time
	CompletedAt    time.Time
}

// HasApproval reports whether an approval transaction was mined for this
// chain during the recorded execution.
func (r *ChainResult) HasApproval() bool {
	return r.ApprovalTxHash != (common.Hash{})
}

// HasDeposit reports whether the deposit transaction was submitted and mined.
func (r *ChainResult) HasDeposit() bool {
	return r.DepositTxHash != (common.Hash{})
}

// ChainOperation is the validated parameter set for one chain, assembled by
// the Preparer before any remote call. NeedsApproval starts out true as a
// default assumption; the executor revises it once the current allowance is
// known.
type ChainOperation struct {
	ChainID       uint64
	NeedsApproval bool
	Amount        *big.Int
	TokenAddress  common.Address
	VaultAddress  common.Address
}

// Step identifies one stage of a chain's execution.
type Step string

const (
	StepSwitch    Step = "switching"
	StepAllowance Step = "checking_allowance"
	StepApprove   Step = "approving"
	StepDeposit   Step = "depositing"
	StepConfirm   Step = "confirming"
)

// TxType distinguishes the two transaction kinds the engine submits.
type TxType string

const (
	TxApproval TxType = "approval"
	TxDeposit  TxType = "deposit"
)

// ReceiptStatus is the outcome of a confirmation wait.
type ReceiptStatus int

const (
	// ReceiptSuccess means the transaction was mined and did not revert.
	ReceiptSuccess ReceiptStatus = iota
	// ReceiptFailure means the transaction was mined but reverted.
	ReceiptFailure
)

// BatchConfig holds the engine tunables. It is read-only once a batch starts.
type BatchConfig struct {
	// Timeout bounds each remote submission call (chain switch, approve,
	// deposit).
	Timeout time.Duration
	// ConfirmationTimeout bounds each wait for a transaction to be mined.
	ConfirmationTimeout time.Duration
	// RetryAttempts is the maximum number of times one chain is executed
	// before its failure is recorded. Values below 1 are treated as 1.
	RetryAttempts uint
	// RetryDelay is the base delay between attempts.
	RetryDelay time.Duration
	// ApproveUnlimited approves max uint256 instead of the exact amount.
	ApproveUnlimited bool
}

// DefaultBatchConfig returns the process-wide defaults.
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		Timeout:             30 * time.Second,
		ConfirmationTimeout: 2 * time.Minute,
		RetryAttempts:       1,
		RetryDelay:          2 * time.Second,
	}
}

// Wallet is the injected signer capability. There is exactly one signer and
// it is attached to at most one active chain at a time; implementations must
// reject submissions for a chain that is not active.
type Wallet interface {
	// SwitchChain makes chainID the active signing chain.
	SwitchChain(ctx context.Context, chainID uint64) error
	// Approve submits an ERC-20 approval of amount for spender on token.
	Approve(ctx context.Context, chainID uint64, token, spender common.Address, amount *big.Int) (common.Hash, error)
	// Deposit submits a vault deposit of amount.
	Deposit(ctx context.Context, chainID uint64, vault common.Address, amount *big.Int) (common.Hash, error)
}

// ChainReader is the injected read capability used for allowance checks.
type ChainReader interface {
	Allowance(ctx context.Context, chainID uint64, token, spender common.Address) (*big.Int, error)
}

// ConfirmationWatcher waits for a submitted transaction to be mined.
type ConfirmationWatcher interface {
	WaitForReceipt(ctx context.Context, chainID uint64, tx common.Hash, timeout time.Duration) (ReceiptStatus, error)
}

// ChainAddresses is the resolved contract pair for one chain.
type ChainAddresses struct {
	TokenAddress common.Address
	VaultAddress common.Address
	// TokenDecimals is the token's decimal precision on this chain.
	TokenDecimals int
}

// AddressBook resolves per-chain contract addresses. It fails for chains the
// deployment does not support.
type AddressBook interface {
	ResolveAddresses(chainID uint64) (ChainAddresses, error)
}
