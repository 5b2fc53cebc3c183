package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Kind is the error classification that drives retryability decisions.
type Kind int

const (
	// KindValidation covers malformed input, addresses, or unsupported
	// chains, detected before any remote call.
	KindValidation Kind = iota
	// KindUserRejection means the signer declined a prompt.
	KindUserRejection
	// KindInsufficientFunds means the operator balance cannot cover the
	// transfer or its gas.
	KindInsufficientFunds
	// KindNetwork covers RPC and connectivity failures, including
	// confirmation timeouts.
	KindNetwork
	// KindTransaction means the transaction was rejected or reverted
	// on-chain.
	KindTransaction
	// KindService marks engine-level guard violations (overlapping batch
	// or retry calls). Service errors abort the call and never appear in
	// a ChainResult.
	KindService
	// KindUnknown is everything the classifier cannot place.
	KindUnknown
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUserRejection:
		return "user_rejection"
	case KindInsufficientFunds:
		return "insufficient_funds"
	case KindNetwork:
		return "network"
	case KindTransaction:
		return "transaction"
	case KindService:
		return "service"
	default:
		return "unknown"
	}
}

// Retryable returns the default retryability for the kind.
func (k Kind) Retryable() bool {
	switch k {
	case KindValidation, KindInsufficientFunds, KindService:
		return false
	}
	return true
}

// suggestedAction returns the operator-facing hint for the kind.
func (k Kind) suggestedAction() string {
	switch k {
	case KindValidation:
		return "fix the deposit parameters"
	case KindUserRejection:
		return "retry or skip"
	case KindInsufficientFunds:
		return "reduce amount or add funds"
	case KindNetwork:
		return "check connectivity and retry"
	case KindTransaction:
		return "inspect the transaction and retry"
	default:
		return "retry"
	}
}

// OpError is the engine's error value. Everything a non-success path
// produces is one of these; outside the classifier and the preparer they
// are never constructed by hand.
type OpError struct {
	Kind            Kind
	Code            int
	Message         string
	ChainID         uint64
	Step            Step
	Retryable       bool
	SuggestedAction string
	Err             error
}

func (e *OpError) Error() string {
	if e.ChainID != 0 {
		return fmt.Sprintf("%s (chain %d): %s", e.Kind, e.ChainID, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// at returns a copy annotated with the chain and step it occurred on.
func (e *OpError) at(chainID uint64, step Step) *OpError {
	cp := *e
	cp.ChainID = chainID
	cp.Step = step
	return &cp
}

// RPCError is the structured error surface injected capabilities should
// return for failures that carry a JSON-RPC/provider error code. The
// classifier trusts codes over message text.
type RPCError struct {
	Code    int
	Message string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Well-known provider error codes (EIP-1193 / JSON-RPC).
const (
	CodeUserRejected        = 4001
	CodeUnauthorized        = 4100
	CodeUnsupportedChain    = 4902
	CodeInternalError       = -32603
	CodeTransactionRejected = -32003
)

// Guard violations. These are the "service" error class: they abort the
// ExecuteBatch or RetryChain call itself.
var (
	ErrBatchInProgress     = errors.New("batch execution already in progress")
	ErrRetryWhileBatch     = errors.New("cannot retry while batch is running")
	ErrAnotherChainRetries = errors.New("another chain is currently retrying; wait for it to finish")
)

func serviceError(err error) *OpError {
	return &OpError{
		Kind:            KindService,
		Message:         err.Error(),
		Retryable:       false,
		SuggestedAction: "wait for the running operation to finish",
		Err:             err,
	}
}

func validationError(chainID uint64, message string, err error) *OpError {
	return &OpError{
		Kind:            KindValidation,
		Message:         message,
		ChainID:         chainID,
		Retryable:       false,
		SuggestedAction: KindValidation.suggestedAction(),
		Err:             err,
	}
}

// Classify maps an arbitrary failure from an injected capability to an
// OpError. It is pure and deterministic: the same input always yields the
// same kind and retryability. Structured codes are checked first; the
// message-substring heuristics are a documented best-effort fallback for
// errors originating outside the engine's control.
func Classify(err error) *OpError {
	if err == nil {
		return nil
	}

	// Already classified errors pass through untouched.
	var op *OpError
	if errors.As(err, &op) {
		return op
	}

	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		switch rpcErr.Code {
		case CodeUserRejected, CodeUnauthorized:
			return classified(KindUserRejection, rpcErr.Code, err)
		case CodeInternalError:
			return classified(KindNetwork, rpcErr.Code, err)
		case CodeTransactionRejected:
			return classified(KindTransaction, rpcErr.Code, err)
		case CodeUnsupportedChain:
			return classified(KindValidation, rpcErr.Code, err)
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return classified(KindNetwork, 0, err)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "rejected") || strings.Contains(msg, "denied"):
		return classified(KindUserRejection, 0, err)
	case strings.Contains(msg, "insufficient"):
		return classified(KindInsufficientFunds, 0, err)
	case strings.Contains(msg, "network") || strings.Contains(msg, "rpc") ||
		strings.Contains(msg, "connection") || strings.Contains(msg, "timeout"):
		return classified(KindNetwork, 0, err)
	case strings.Contains(msg, "revert") || strings.Contains(msg, "transaction") ||
		strings.Contains(msg, "execution"):
		return classified(KindTransaction, 0, err)
	}

	return classified(KindUnknown, 0, err)
}

func classified(kind Kind, code int, err error) *OpError {
	return &OpError{
		Kind:            kind,
		Code:            code,
		Message:         err.Error(),
		Retryable:       kind.Retryable(),
		SuggestedAction: kind.suggestedAction(),
		Err:             err,
	}
}
