package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

const validConfig = `
operator:
  private_key: "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
chains:
  - name: ethereum
    chain_id: 1
    rpc_url: "http://localhost:8545"
    token_contract: "0x5FbDB2315678afecb367f032d93F642f64180aa3"
    vault_contract: "0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512"
    token_decimals: 6
  - name: polygon
    chain_id: 137
    rpc_url: "http://localhost:8546"
    token_contract: "0x5FbDB2315678afecb367f032d93F642f64180aa3"
    vault_contract: "0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512"
    token_decimals: 6
deposits:
  - chain_id: 1
    amount: "100.5"
  - chain_id: 137
    amount: "50"
`

func TestLoad_ValidConfig(t *testing.T) {
	cfg, err := Load(writeConfigFile(t, validConfig))
	require.NoError(t, err)

	assert.Len(t, cfg.Chains, 2)
	assert.Equal(t, uint64(137), cfg.Chains[1].ChainID)
	assert.Len(t, cfg.Deposits, 2)
	assert.Equal(t, "100.5", cfg.Deposits[0].Amount)

	// Defaults fill everything the file omits.
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Batch.Timeout)
	assert.Equal(t, 2*time.Minute, cfg.Batch.ConfirmationTimeout)
	assert.Equal(t, uint(1), cfg.Batch.RetryAttempts)
	assert.False(t, cfg.Batch.ApproveUnlimited)
	assert.True(t, cfg.Monitoring.Enabled)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		config  string
		wantErr string
	}{
		{
			name: "missing private key",
			config: `
chains:
  - chain_id: 1
    rpc_url: "http://localhost:8545"
    token_contract: "0x5FbDB2315678afecb367f032d93F642f64180aa3"
    vault_contract: "0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512"
    token_decimals: 6
`,
			wantErr: "operator.private_key is required",
		},
		{
			name: "no chains",
			config: `
operator:
  private_key: "0xabc"
`,
			wantErr: "at least one chain is required",
		},
		{
			name: "duplicate chain id",
			config: `
operator:
  private_key: "0xabc"
chains:
  - chain_id: 1
    rpc_url: "http://localhost:8545"
    token_contract: "0x5FbDB2315678afecb367f032d93F642f64180aa3"
    vault_contract: "0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512"
    token_decimals: 6
  - chain_id: 1
    rpc_url: "http://localhost:8546"
    token_contract: "0x5FbDB2315678afecb367f032d93F642f64180aa3"
    vault_contract: "0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512"
    token_decimals: 6
`,
			wantErr: "duplicate chain_id 1",
		},
		{
			name: "deposit references unknown chain",
			config: `
operator:
  private_key: "0xabc"
chains:
  - chain_id: 1
    rpc_url: "http://localhost:8545"
    token_contract: "0x5FbDB2315678afecb367f032d93F642f64180aa3"
    vault_contract: "0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512"
    token_decimals: 6
deposits:
  - chain_id: 42161
    amount: "1"
`,
			wantErr: "references unknown chain_id 42161",
		},
		{
			name: "missing token decimals",
			config: `
operator:
  private_key: "0xabc"
chains:
  - chain_id: 1
    rpc_url: "http://localhost:8545"
    token_contract: "0x5FbDB2315678afecb367f032d93F642f64180aa3"
    vault_contract: "0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512"
`,
			wantErr: "token_decimals is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfigFile(t, tt.config))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}
