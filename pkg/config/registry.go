package config

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/G9000/argenta-finance-sub001/pkg/engine"
)

// Registry resolves per-chain token and vault addresses for the engine.
// It validates the configured hex addresses once, up front, so a malformed
// entry surfaces as a construction error instead of mid-batch.
type Registry struct {
	chains map[uint64]engine.ChainAddresses
}

// NewRegistry builds a registry from the configured chains.
func NewRegistry(chains []ChainConfig) (*Registry, error) {
	r := &Registry{chains: make(map[uint64]engine.ChainAddresses, len(chains))}
	for _, c := range chains {
		if !common.IsHexAddress(c.TokenContract) {
			return nil, fmt.Errorf("chain %d: malformed token contract address %q", c.ChainID, c.TokenContract)
		}
		if !common.IsHexAddress(c.VaultContract) {
			return nil, fmt.Errorf("chain %d: malformed vault contract address %q", c.ChainID, c.VaultContract)
		}
		r.chains[c.ChainID] = engine.ChainAddresses{
			TokenAddress:  common.HexToAddress(c.TokenContract),
			VaultAddress:  common.HexToAddress(c.VaultContract),
			TokenDecimals: c.TokenDecimals,
		}
	}
	return r, nil
}

// ResolveAddresses implements engine.AddressBook.
func (r *Registry) ResolveAddresses(chainID uint64) (engine.ChainAddresses, error) {
	addrs, ok := r.chains[chainID]
	if !ok {
		return engine.ChainAddresses{}, fmt.Errorf("chain %d is not configured", chainID)
	}
	return addrs, nil
}
