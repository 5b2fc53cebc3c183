package engine

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// MockWallet is a func-field mock of the Wallet capability.
type MockWallet struct {
	SwitchChainFunc func(ctx context.Context, chainID uint64) error
	ApproveFunc     func(ctx context.Context, chainID uint64, token, spender common.Address, amount *big.Int) (common.Hash, error)
	DepositFunc     func(ctx context.Context, chainID uint64, vault common.Address, amount *big.Int) (common.Hash, error)
}

func (m *MockWallet) SwitchChain(ctx context.Context, chainID uint64) error {
	if m.SwitchChainFunc != nil {
		return m.SwitchChainFunc(ctx, chainID)
	}
	return nil
}

func (m *MockWallet) Approve(ctx context.Context, chainID uint64, token, spender common.Address, amount *big.Int) (common.Hash, error) {
	if m.ApproveFunc != nil {
		return m.ApproveFunc(ctx, chainID, token, spender, amount)
	}
	return common.HexToHash("0xaaaa"), nil
}

func (m *MockWallet) Deposit(ctx context.Context, chainID uint64, vault common.Address, amount *big.Int) (common.Hash, error) {
	if m.DepositFunc != nil {
		return m.DepositFunc(ctx, chainID, vault, amount)
	}
	return common.HexToHash("0xdddd"), nil
}

// MockReader is a func-field mock of the ChainReader capability.
type MockReader struct {
	AllowanceFunc func(ctx context.Context, chainID uint64, token, spender common.Address) (*big.Int, error)
}

func (m *MockReader) Allowance(ctx context.Context, chainID uint64, token, spender common.Address) (*big.Int, error) {
	if m.AllowanceFunc != nil {
		return m.AllowanceFunc(ctx, chainID, token, spender)
	}
	return big.NewInt(0), nil
}

// MockWatcher is a func-field mock of the ConfirmationWatcher capability.
type MockWatcher struct {
	WaitForReceiptFunc func(ctx context.Context, chainID uint64, tx common.Hash, timeout time.Duration) (ReceiptStatus, error)
}

func (m *MockWatcher) WaitForReceipt(ctx context.Context, chainID uint64, tx common.Hash, timeout time.Duration) (ReceiptStatus, error) {
	if m.WaitForReceiptFunc != nil {
		return m.WaitForReceiptFunc(ctx, chainID, tx, timeout)
	}
	return ReceiptSuccess, nil
}

// MockBook is a func-field mock of the AddressBook collaborator. The default
// resolution supports chains 1 and 137 with a 6-decimal token.
type MockBook struct {
	ResolveAddressesFunc func(chainID uint64) (ChainAddresses, error)
}

func (m *MockBook) ResolveAddresses(chainID uint64) (ChainAddresses, error) {
	if m.ResolveAddressesFunc != nil {
		return m.ResolveAddressesFunc(chainID)
	}
	switch chainID {
	case 1, 137:
		return ChainAddresses{
			TokenAddress:  common.HexToAddress("0x0000000000000000000000000000000000000001"),
			VaultAddress:  common.HexToAddress("0x0000000000000000000000000000000000000002"),
			TokenDecimals: 6,
		}, nil
	}
	return ChainAddresses{}, errUnsupportedChain
}

var errUnsupportedChain = &RPCError{Code: CodeUnsupportedChain, Message: "chain not configured"}

// recorder captures emitted events for assertions.
type recorder struct {
	names    []EventName
	payloads []any
}

func (r *recorder) subscribe(e *Engine, names ...EventName) {
	for _, name := range names {
		n := name
		e.On(n, func(payload any) {
			r.names = append(r.names, n)
			r.payloads = append(r.payloads, payload)
		})
	}
}

func (r *recorder) count(name EventName) int {
	total := 0
	for _, n := range r.names {
		if n == name {
			total++
		}
	}
	return total
}

func (r *recorder) payloadsOf(name EventName) []any {
	var out []any
	for i, n := range r.names {
		if n == name {
			out = append(out, r.payloads[i])
		}
	}
	return out
}

func newTestEngine(wallet Wallet, reader ChainReader, watcher ConfirmationWatcher) *Engine {
	if wallet == nil {
		wallet = &MockWallet{}
	}
	if reader == nil {
		reader = &MockReader{}
	}
	if watcher == nil {
		watcher = &MockWatcher{}
	}
	cfg := DefaultBatchConfig()
	cfg.RetryDelay = time.Millisecond
	return New(wallet, reader, watcher, &MockBook{}, cfg, zap.NewNop())
}
