// Package ethereum implements the engine's injected wallet, read, and
// confirmation capabilities on top of go-ethereum, for one operator key
// across several configured chains.
package ethereum

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	goethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"

	"github.com/G9000/argenta-finance-sub001/pkg/config"
	"github.com/G9000/argenta-finance-sub001/pkg/engine"
)

const erc20ABIJSON = `[
	{"name":"allowance","type":"function","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"approve","type":"function","stateMutability":"nonpayable","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]}
]`

const vaultABIJSON = `[
	{"name":"deposit","type":"function","stateMutability":"nonpayable","inputs":[{"name":"amount","type":"uint256"}],"outputs":[]}
]`

var (
	erc20ABI = mustParseABI(erc20ABIJSON)
	vaultABI = mustParseABI(vaultABIJSON)
)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}

// receiptPollInterval is how often WaitForReceipt polls for a mined
// transaction; polling keeps plain HTTP RPC endpoints usable.
const receiptPollInterval = 2 * time.Second

// backend holds one chain's RPC connection.
type backend struct {
	cfg      config.ChainConfig
	client   *ethclient.Client
	chainID  *big.Int
	verified bool
}

// Client is the multi-chain operator wallet. It holds exactly one signing
// key and tracks which chain it is currently attached to; submissions for
// any other chain are rejected.
type Client struct {
	backends   map[uint64]*backend
	privateKey *ecdsa.PrivateKey
	address    common.Address
	logger     *zap.Logger

	active uint64
}

// NewClient dials every configured chain and loads the operator key.
func NewClient(chains []config.ChainConfig, privateKeyHex string, logger *zap.Logger) (*Client, error) {
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to load operator key: %w", err)
	}
	address := crypto.PubkeyToAddress(privateKey.PublicKey)

	backends := make(map[uint64]*backend, len(chains))
	for _, c := range chains {
		client, err := ethclient.Dial(c.RPCURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to %s RPC: %w", c.Name, err)
		}
		backends[c.ChainID] = &backend{
			cfg:     c,
			client:  client,
			chainID: new(big.Int).SetUint64(c.ChainID),
		}
		logger.Info("Connected to chain",
			zap.String("name", c.Name),
			zap.Uint64("chain_id", c.ChainID),
			zap.String("rpc_url", c.RPCURL))
	}

	logger.Info("Operator wallet loaded", zap.String("address", address.Hex()))

	return &Client{
		backends:   backends,
		privateKey: privateKey,
		address:    address,
		logger:     logger,
	}, nil
}

// Close closes all chain connections.
func (c *Client) Close() {
	for _, b := range c.backends {
		b.client.Close()
	}
}

// Address returns the operator address.
func (c *Client) Address() common.Address {
	return c.address
}

// SwitchChain makes chainID the active signing chain. On the first switch
// to a chain it verifies the RPC endpoint actually serves that chain id.
func (c *Client) SwitchChain(ctx context.Context, chainID uint64) error {
	b, err := c.backend(chainID)
	if err != nil {
		return err
	}

	if !b.verified {
		reported, err := b.client.ChainID(ctx)
		if err != nil {
			return wrapRPCError(fmt.Errorf("failed to query chain id: %w", err))
		}
		if reported.Cmp(b.chainID) != 0 {
			return fmt.Errorf("rpc endpoint %s reports chain %s, expected %d",
				b.cfg.RPCURL, reported, chainID)
		}
		b.verified = true
	}

	c.active = chainID
	c.logger.Debug("Switched active chain", zap.Uint64("chain_id", chainID))
	return nil
}

// Approve submits an ERC-20 approval for spender on token.
func (c *Client) Approve(ctx context.Context, chainID uint64, token, spender common.Address, amount *big.Int) (common.Hash, error) {
	b, err := c.requireActive(chainID)
	if err != nil {
		return common.Hash{}, err
	}

	opts, err := c.transactor(ctx, b)
	if err != nil {
		return common.Hash{}, err
	}

	contract := bind.NewBoundContract(token, erc20ABI, b.client, b.client, b.client)
	tx, err := contract.Transact(opts, "approve", spender, amount)
	if err != nil {
		return common.Hash{}, wrapRPCError(fmt.Errorf("failed to submit approval: %w", err))
	}

	c.logger.Info("Approval transaction submitted",
		zap.Uint64("chain_id", chainID),
		zap.String("tx_hash", tx.Hash().Hex()),
		zap.String("spender", spender.Hex()),
		zap.String("amount", amount.String()))
	return tx.Hash(), nil
}

// Deposit submits a vault deposit of amount.
func (c *Client) Deposit(ctx context.Context, chainID uint64, vault common.Address, amount *big.Int) (common.Hash, error) {
	b, err := c.requireActive(chainID)
	if err != nil {
		return common.Hash{}, err
	}

	opts, err := c.transactor(ctx, b)
	if err != nil {
		return common.Hash{}, err
	}

	contract := bind.NewBoundContract(vault, vaultABI, b.client, b.client, b.client)
	tx, err := contract.Transact(opts, "deposit", amount)
	if err != nil {
		return common.Hash{}, wrapRPCError(fmt.Errorf("failed to submit deposit: %w", err))
	}

	c.logger.Info("Deposit transaction submitted",
		zap.Uint64("chain_id", chainID),
		zap.String("tx_hash", tx.Hash().Hex()),
		zap.String("vault", vault.Hex()),
		zap.String("amount", amount.String()))
	return tx.Hash(), nil
}

// Allowance reads the operator's current allowance for spender on token.
func (c *Client) Allowance(ctx context.Context, chainID uint64, token, spender common.Address) (*big.Int, error) {
	b, err := c.backend(chainID)
	if err != nil {
		return nil, err
	}

	contract := bind.NewBoundContract(token, erc20ABI, b.client, b.client, b.client)
	var out []interface{}
	if err := contract.Call(&bind.CallOpts{Context: ctx}, &out, "allowance", c.address, spender); err != nil {
		return nil, wrapRPCError(fmt.Errorf("failed to read allowance: %w", err))
	}
	allowance, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected allowance return type %T", out[0])
	}
	return allowance, nil
}

// WaitForReceipt polls for the transaction receipt until it is mined or
// timeout elapses.
func (c *Client) WaitForReceipt(ctx context.Context, chainID uint64, tx common.Hash, timeout time.Duration) (engine.ReceiptStatus, error) {
	b, err := c.backend(chainID)
	if err != nil {
		return engine.ReceiptFailure, err
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	for {
		receipt, err := b.client.TransactionReceipt(waitCtx, tx)
		if err == nil {
			if receipt.Status == types.ReceiptStatusSuccessful {
				return engine.ReceiptSuccess, nil
			}
			return engine.ReceiptFailure, nil
		}
		if !errors.Is(err, goethereum.NotFound) && waitCtx.Err() == nil {
			c.logger.Debug("Receipt poll failed",
				zap.String("tx_hash", tx.Hex()),
				zap.Error(err))
		}

		select {
		case <-waitCtx.Done():
			return engine.ReceiptFailure, fmt.Errorf("waiting for receipt of %s: %w", tx.Hex(), waitCtx.Err())
		case <-ticker.C:
		}
	}
}

// transactor builds signing options for one transaction on b, fetching the
// pending nonce so sequential submissions on one chain do not collide.
func (c *Client) transactor(ctx context.Context, b *backend) (*bind.TransactOpts, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(c.privateKey, b.chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to create transactor: %w", err)
	}

	nonce, err := b.client.PendingNonceAt(ctx, c.address)
	if err != nil {
		return nil, wrapRPCError(fmt.Errorf("failed to get nonce: %w", err))
	}
	opts.Nonce = new(big.Int).SetUint64(nonce)
	opts.Context = ctx
	return opts, nil
}

func (c *Client) backend(chainID uint64) (*backend, error) {
	b, ok := c.backends[chainID]
	if !ok {
		return nil, fmt.Errorf("chain %d is not configured", chainID)
	}
	return b, nil
}

// requireActive enforces the single-signer rule: a transaction may only be
// submitted on the chain the wallet was last switched to.
func (c *Client) requireActive(chainID uint64) (*backend, error) {
	if c.active != chainID {
		return nil, fmt.Errorf("chain %d is not the active signing chain (active: %d)", chainID, c.active)
	}
	return c.backend(chainID)
}

// wrapRPCError surfaces JSON-RPC error codes to the engine's classifier as
// its structured error type.
func wrapRPCError(err error) error {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return &engine.RPCError{Code: rpcErr.ErrorCode(), Message: err.Error()}
	}
	return err
}
