package engine

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// maxUint256 is the largest integer representable on-ledger.
var maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// Preparer validates and assembles the parameters needed to call approve
// and deposit on a given chain. It performs no remote calls.
type Preparer struct {
	book AddressBook
}

// NewPreparer returns a preparer backed by the given address book.
func NewPreparer(book AddressBook) *Preparer {
	return &Preparer{book: book}
}

// Prepare resolves the chain's contract addresses and converts amount to
// its smallest-unit integer. Failures are validation errors carrying the
// chain id and the underlying cause; they abort the chain's execution
// before any remote call.
func (p *Preparer) Prepare(chainID uint64, amount string) (*ChainOperation, *OpError) {
	addrs, err := p.book.ResolveAddresses(chainID)
	if err != nil {
		return nil, validationError(chainID,
			fmt.Sprintf("unsupported or misconfigured chain %d: %v", chainID, err), err)
	}

	wei, err := ToSmallestUnit(amount, addrs.TokenDecimals)
	if err != nil {
		return nil, validationError(chainID,
			fmt.Sprintf("invalid amount %q: %v", amount, err), err)
	}

	return &ChainOperation{
		ChainID: chainID,
		// Assume an approval is needed until the current allowance is read.
		NeedsApproval: true,
		Amount:        wei,
		TokenAddress:  addrs.TokenAddress,
		VaultAddress:  addrs.VaultAddress,
	}, nil
}

// ToSmallestUnit converts a positive decimal string to the token's
// smallest-unit integer at the given precision. It rejects non-positive
// values, amounts with more fractional digits than the token supports, and
// values above max uint256.
func ToSmallestUnit(amount string, decimals int) (*big.Int, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("parse decimal: %w", err)
	}
	if d.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}

	shifted := d.Shift(int32(decimals))
	if !shifted.IsInteger() {
		return nil, fmt.Errorf("more than %d decimal places", decimals)
	}

	wei := shifted.BigInt()
	if wei.Sign() == 0 {
		return nil, fmt.Errorf("amount converts to zero")
	}
	if wei.Cmp(maxUint256) > 0 {
		return nil, fmt.Errorf("amount exceeds max uint256")
	}
	return wei, nil
}
