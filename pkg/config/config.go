// Package config loads and validates the depositor configuration and
// provides the chain registry the engine resolves contract addresses from.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Operator   OperatorConfig   `mapstructure:"operator"`
	Chains     []ChainConfig    `mapstructure:"chains"`
	Batch      BatchConfig      `mapstructure:"batch"`
	Deposits   []DepositConfig  `mapstructure:"deposits"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// OperatorConfig contains the single wallet signer settings
type OperatorConfig struct {
	PrivateKey string `mapstructure:"private_key"`
}

// ChainConfig describes one supported chain: its RPC endpoint and the
// token/vault contract pair deployed on it.
type ChainConfig struct {
	Name          string `mapstructure:"name"`
	ChainID       uint64 `mapstructure:"chain_id"`
	RPCURL        string `mapstructure:"rpc_url"`
	TokenContract string `mapstructure:"token_contract"`
	VaultContract string `mapstructure:"vault_contract"`
	TokenDecimals int    `mapstructure:"token_decimals"`
}

// BatchConfig contains the engine tunables
type BatchConfig struct {
	Timeout             time.Duration `mapstructure:"timeout"`
	ConfirmationTimeout time.Duration `mapstructure:"confirmation_timeout"`
	RetryAttempts       uint          `mapstructure:"retry_attempts"`
	RetryDelay          time.Duration `mapstructure:"retry_delay"`
	ApproveUnlimited    bool          `mapstructure:"approve_unlimited"`
}

// DepositConfig is one requested deposit in the batch the binary executes
type DepositConfig struct {
	ChainID uint64 `mapstructure:"chain_id"`
	Amount  string `mapstructure:"amount"`
}

// MonitoringConfig contains monitoring and metrics settings
type MonitoringConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.shutdown_timeout", "30s")

	// Batch defaults
	viper.SetDefault("batch.timeout", "30s")
	viper.SetDefault("batch.confirmation_timeout", "2m")
	viper.SetDefault("batch.retry_attempts", 1)
	viper.SetDefault("batch.retry_delay", "2s")
	viper.SetDefault("batch.approve_unlimited", false)

	// Monitoring defaults
	viper.SetDefault("monitoring.enabled", true)

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output_path", "stdout")
}

func validate(config *Config) error {
	if config.Operator.PrivateKey == "" {
		return fmt.Errorf("operator.private_key is required")
	}
	if len(config.Chains) == 0 {
		return fmt.Errorf("at least one chain is required")
	}

	seen := make(map[uint64]bool, len(config.Chains))
	for i, chain := range config.Chains {
		if chain.ChainID == 0 {
			return fmt.Errorf("chains[%d].chain_id is required", i)
		}
		if seen[chain.ChainID] {
			return fmt.Errorf("duplicate chain_id %d", chain.ChainID)
		}
		seen[chain.ChainID] = true
		if chain.RPCURL == "" {
			return fmt.Errorf("chains[%d].rpc_url is required", i)
		}
		if chain.TokenContract == "" {
			return fmt.Errorf("chains[%d].token_contract is required", i)
		}
		if chain.VaultContract == "" {
			return fmt.Errorf("chains[%d].vault_contract is required", i)
		}
		if chain.TokenDecimals <= 0 {
			return fmt.Errorf("chains[%d].token_decimals is required", i)
		}
	}

	for i, dep := range config.Deposits {
		if !seen[dep.ChainID] {
			return fmt.Errorf("deposits[%d] references unknown chain_id %d", i, dep.ChainID)
		}
		if dep.Amount == "" {
			return fmt.Errorf("deposits[%d].amount is required", i)
		}
	}

	return nil
}
