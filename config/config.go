package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const (
	EnvPrefix      = "WALLET_SWAP"
	ConfigFileName = ".wallet-swap"
)

// Config holds the application configuration
type Config struct {
	Log            LogConfig      `mapstructure:"log"`
	HistoryPath    string         `mapstructure:"history_path"`
	MetricsAddr    string         `mapstructure:"metrics_addr"`
	RequestTimeout time.Duration  `mapstructure:"request_timeout"`
	Jupiter        JupiterConfig  `mapstructure:"jupiter"`
	ZeroX          ZeroXConfig    `mapstructure:"zerox"`
	GraphQL        GraphQLConfig  `mapstructure:"graphql"`
	OneClick       OneClickConfig `mapstructure:"oneclick"`
	Solana         SolanaConfig   `mapstructure:"solana"`
	Ethereum       EthereumConfig `mapstructure:"ethereum"`
	Watch          WatchConfig    `mapstructure:"watch"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type JupiterConfig struct {
	BaseURL     string `mapstructure:"base_url"`
	SlippageBps int    `mapstructure:"slippage_bps"`
}

type ZeroXConfig struct {
	BaseURL  string  `mapstructure:"base_url"`
	APIKey   string  `mapstructure:"api_key"`
	Slippage float64 `mapstructure:"slippage"`
}

type GraphQLConfig struct {
	Endpoint string `mapstructure:"endpoint"`
}

// OneClickConfig points at the token metadata service. The JWT is optional.
type OneClickConfig struct {
	BaseURL  string `mapstructure:"base_url"`
	JWTToken string `mapstructure:"jwt_token"`
}

type SolanaConfig struct {
	RPCURL        string `mapstructure:"rpc_url"`
	PrivateKey    string `mapstructure:"private_key"`
	WalletAddress string `mapstructure:"wallet_address"`
	Commitment    string `mapstructure:"commitment"`
	SkipPreflight bool   `mapstructure:"skip_preflight"`
}

type EthereumConfig struct {
	RPCURL        string `mapstructure:"rpc_url"`
	PrivateKey    string `mapstructure:"private_key"`
	WalletAddress string `mapstructure:"wallet_address"`
	ChainID       int64  `mapstructure:"chain_id"`
}

type WatchConfig struct {
	Debounce     time.Duration `mapstructure:"debounce"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("history_path", "")
	v.SetDefault("metrics_addr", "")
	v.SetDefault("request_timeout", 10*time.Second)

	v.SetDefault("jupiter.base_url", "https://jupiter.xnfts.dev/v6/")
	v.SetDefault("jupiter.slippage_bps", 100)

	v.SetDefault("zerox.base_url", "https://api.0x.org/swap/v1/")
	v.SetDefault("zerox.api_key", "")
	v.SetDefault("zerox.slippage", 0.01)

	v.SetDefault("graphql.endpoint", "https://backpack-api.xnfts.dev/v2/graphql")

	v.SetDefault("oneclick.base_url", "https://1click.chaindefuser.com")
	v.SetDefault("oneclick.jwt_token", "")

	v.SetDefault("solana.rpc_url", "https://api.mainnet-beta.solana.com")
	v.SetDefault("solana.private_key", "")
	v.SetDefault("solana.wallet_address", "")
	v.SetDefault("solana.commitment", "confirmed")
	v.SetDefault("solana.skip_preflight", false)

	v.SetDefault("ethereum.rpc_url", "https://cloudflare-eth.com")
	v.SetDefault("ethereum.private_key", "")
	v.SetDefault("ethereum.wallet_address", "")
	v.SetDefault("ethereum.chain_id", 1)

	v.SetDefault("watch.debounce", 400*time.Millisecond)
	v.SetDefault("watch.poll_interval", 30*time.Second)
}

// Load reads configuration from environment variables and the optional
// ~/.wallet-swap.yaml config file
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile reads configuration from the given file, or searches $HOME and
// the working directory when path is empty
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(ConfigFileName)
		v.SetConfigType("yaml")
		v.AddConfigPath("$HOME")
		v.AddConfigPath(".")
	}

	// Read from environment variables, e.g. WALLET_SWAP_SOLANA_RPC_URL
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The config file is optional unless one was named explicitly
	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound || path != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration for values the swap backends cannot use
func (c *Config) Validate() error {
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log.level: %w", err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("invalid log.format %q, expected text or json", c.Log.Format)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive")
	}
	if c.Jupiter.SlippageBps <= 0 || c.Jupiter.SlippageBps > 10000 {
		return fmt.Errorf("jupiter.slippage_bps must be between 1 and 10000, got %d", c.Jupiter.SlippageBps)
	}
	if c.ZeroX.Slippage <= 0 || c.ZeroX.Slippage >= 1 {
		return fmt.Errorf("zerox.slippage must be a fraction between 0 and 1, got %v", c.ZeroX.Slippage)
	}
	if c.Ethereum.ChainID <= 0 {
		return fmt.Errorf("ethereum.chain_id must be positive")
	}
	switch c.Solana.Commitment {
	case "processed", "confirmed", "finalized":
	default:
		return fmt.Errorf("invalid solana.commitment %q", c.Solana.Commitment)
	}
	if c.Watch.Debounce <= 0 {
		return fmt.Errorf("watch.debounce must be positive, got %s", c.Watch.Debounce)
	}
	if c.Watch.PollInterval <= 0 {
		return fmt.Errorf("watch.poll_interval must be positive, got %s", c.Watch.PollInterval)
	}
	return nil
}
