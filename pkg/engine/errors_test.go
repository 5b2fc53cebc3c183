package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify_MessageHeuristics(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		kind      Kind
		retryable bool
	}{
		{"signer rejected", errors.New("user rejected the request"), KindUserRejection, true},
		{"signer denied", errors.New("signature denied by wallet"), KindUserRejection, true},
		{"insufficient funds", errors.New("insufficient funds for gas * price + value"), KindInsufficientFunds, false},
		{"network down", errors.New("network unreachable"), KindNetwork, true},
		{"rpc failure", errors.New("rpc call failed"), KindNetwork, true},
		{"connection refused", errors.New("connection refused"), KindNetwork, true},
		{"revert", errors.New("execution reverted: vault paused"), KindTransaction, true},
		{"tx failure", errors.New("transaction underpriced"), KindTransaction, true},
		{"anything else", errors.New("weird failure"), KindUnknown, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op := Classify(tt.err)
			require.NotNil(t, op)
			assert.Equal(t, tt.kind, op.Kind)
			assert.Equal(t, tt.retryable, op.Retryable)
			assert.NotEmpty(t, op.Message)
			assert.NotEmpty(t, op.SuggestedAction)
		})
	}
}

func TestClassify_StructuredCodesWinOverText(t *testing.T) {
	// The message alone would classify as network; the code says the
	// signer declined.
	err := fmt.Errorf("submit: %w", &RPCError{Code: CodeUserRejected, Message: "rpc connection dropped"})

	op := Classify(err)
	require.NotNil(t, op)
	assert.Equal(t, KindUserRejection, op.Kind)
	assert.Equal(t, CodeUserRejected, op.Code)
	assert.True(t, op.Retryable)
}

func TestClassify_KnownCodes(t *testing.T) {
	tests := []struct {
		code int
		kind Kind
	}{
		{CodeUserRejected, KindUserRejection},
		{CodeUnauthorized, KindUserRejection},
		{CodeInternalError, KindNetwork},
		{CodeTransactionRejected, KindTransaction},
		{CodeUnsupportedChain, KindValidation},
	}
	for _, tt := range tests {
		op := Classify(&RPCError{Code: tt.code, Message: "boom"})
		require.NotNil(t, op)
		assert.Equal(t, tt.kind, op.Kind, "code %d", tt.code)
	}
}

func TestClassify_DeadlineIsNetwork(t *testing.T) {
	op := Classify(fmt.Errorf("waiting for receipt: %w", context.DeadlineExceeded))
	require.NotNil(t, op)
	assert.Equal(t, KindNetwork, op.Kind)
	assert.True(t, op.Retryable)
}

func TestClassify_Deterministic(t *testing.T) {
	err := errors.New("execution reverted")
	first := Classify(err)
	for i := 0; i < 10; i++ {
		op := Classify(err)
		assert.Equal(t, first.Kind, op.Kind)
		assert.Equal(t, first.Retryable, op.Retryable)
	}
}

func TestClassify_NilAndPassthrough(t *testing.T) {
	assert.Nil(t, Classify(nil))

	original := &OpError{Kind: KindInsufficientFunds, Message: "no balance", Retryable: false}
	assert.Same(t, original, Classify(fmt.Errorf("wrapped: %w", original)))
}

func TestServiceErrors_NeverRetryable(t *testing.T) {
	op := serviceError(ErrBatchInProgress)
	assert.Equal(t, KindService, op.Kind)
	assert.False(t, op.Retryable)
	assert.True(t, errors.Is(op, ErrBatchInProgress))
}
