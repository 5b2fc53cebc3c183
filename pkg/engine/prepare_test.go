package engine

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToSmallestUnit(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		decimals int
		want     string
		wantErr  string
	}{
		{name: "whole amount", amount: "1", decimals: 6, want: "1000000"},
		{name: "fractional amount", amount: "1.5", decimals: 6, want: "1500000"},
		{name: "full precision", amount: "0.000001", decimals: 6, want: "1"},
		{name: "18 decimals", amount: "2.25", decimals: 18, want: "2250000000000000000"},
		{name: "zero", amount: "0", decimals: 6, wantErr: "positive"},
		{name: "negative", amount: "-1", decimals: 6, wantErr: "positive"},
		{name: "not a number", amount: "one", decimals: 6, wantErr: "parse decimal"},
		{name: "empty", amount: "", decimals: 6, wantErr: "parse decimal"},
		{name: "too precise", amount: "0.0000001", decimals: 6, wantErr: "decimal places"},
		{name: "converts to zero", amount: "0.0", decimals: 6, wantErr: "positive"},
		{
			name:     "exceeds uint256",
			amount:   "120000000000000000000000000000000000000000000000000000000000000000000000000000",
			decimals: 18,
			wantErr:  "max uint256",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToSmallestUnit(tt.amount, tt.decimals)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			want, ok := new(big.Int).SetString(tt.want, 10)
			require.True(t, ok)
			assert.Zero(t, got.Cmp(want))
		})
	}
}

func TestPreparer_Prepare(t *testing.T) {
	prep := NewPreparer(&MockBook{})

	op, operr := prep.Prepare(1, "1")
	require.Nil(t, operr)
	assert.Equal(t, uint64(1), op.ChainID)
	assert.True(t, op.NeedsApproval, "approval is the default assumption before the allowance is read")
	assert.Equal(t, "1000000", op.Amount.String())
	assert.NotZero(t, op.TokenAddress)
	assert.NotZero(t, op.VaultAddress)
}

func TestPreparer_UnsupportedChain(t *testing.T) {
	prep := NewPreparer(&MockBook{})

	op, operr := prep.Prepare(999, "1")
	assert.Nil(t, op)
	require.NotNil(t, operr)
	assert.Equal(t, KindValidation, operr.Kind)
	assert.False(t, operr.Retryable)
	assert.Equal(t, uint64(999), operr.ChainID)
	assert.Contains(t, operr.Message, "999")
}

func TestPreparer_InvalidAmount(t *testing.T) {
	prep := NewPreparer(&MockBook{})

	op, operr := prep.Prepare(1, "-3")
	assert.Nil(t, op)
	require.NotNil(t, operr)
	assert.Equal(t, KindValidation, operr.Kind)
	assert.Contains(t, operr.Message, `"-3"`)
}
