package config

import (
	"fmt"
	"log"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Facilitator FacilitatorConfig `mapstructure:"facilitator"`
	Networks    map[string]NetworkConfig `mapstructure:"networks"`
}

type ServerConfig struct {
	Port     string `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`
}

type AuthConfig struct {
	RequireAPIKey bool   `mapstructure:"require_api_key"`
	APIKey        string `mapstructure:"api_key"`
}

type RedisConfig struct {
	Addr                  string `mapstructure:"addr"`
	Password              string `mapstructure:"password"`
	DB                    int    `mapstructure:"db"`
	IdempotencyTTLSeconds int    `mapstructure:"idempotency_ttl_seconds"`
}

type DatabaseConfig struct {
	DSN                string `mapstructure:"dsn"`
	AuditRetentionDays int    `mapstructure:"audit_retention_days"`
}

type FacilitatorConfig struct {
	// Hex private key of the single account that signs and pays for all
	// relayed transactions. Its nonce-space is serialized in-process.
	PrivateKey string `mapstructure:"private_key"`

	DefaultNetwork        string  `mapstructure:"default_network"`
	GasLimit              uint64  `mapstructure:"gas_limit"`
	SubmitTimeoutSeconds  int     `mapstructure:"submit_timeout_seconds"`
	ReceiptTimeoutSeconds int     `mapstructure:"receipt_timeout_seconds"`
	ReceiptPollMillis     int     `mapstructure:"receipt_poll_millis"`
	MaxTransferUSDC       float64 `mapstructure:"max_transfer_usdc"`
	MaxDailyUSDC          float64 `mapstructure:"max_daily_usdc"`
	RateLimitRPS          float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst        int     `mapstructure:"rate_limit_burst"`
}

type NetworkConfig struct {
	RPCURL       string `mapstructure:"rpc_url"`
	ChainID      int64  `mapstructure:"chain_id"`
	CCTPContract string `mapstructure:"cctp_contract"`
	USDCContract string `mapstructure:"usdc_contract"`
	USDCName     string `mapstructure:"usdc_name"`
	USDCVersion  string `mapstructure:"usdc_version"`
	ExplorerURL  string `mapstructure:"explorer_url"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./configs")

	// Environment variables support
	// e.g. BURNGATE_FACILITATOR_PRIVATE_KEY
	viper.SetEnvPrefix("burngate")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Defaults
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("auth.require_api_key", false)
	viper.SetDefault("redis.idempotency_ttl_seconds", 86400)
	viper.SetDefault("database.audit_retention_days", 30)
	viper.SetDefault("facilitator.default_network", "sepolia")
	viper.SetDefault("facilitator.gas_limit", 300000)
	viper.SetDefault("facilitator.submit_timeout_seconds", 30)
	viper.SetDefault("facilitator.receipt_timeout_seconds", 90)
	viper.SetDefault("facilitator.receipt_poll_millis", 2000)
	viper.SetDefault("facilitator.rate_limit_rps", 10)
	viper.SetDefault("facilitator.rate_limit_burst", 20)

	viper.SetDefault("networks.sepolia.rpc_url", "https://sepolia.base.org")
	viper.SetDefault("networks.sepolia.chain_id", 84532)
	viper.SetDefault("networks.sepolia.cctp_contract", "0x4F26A0466F08BA8Ee601C661C0B2e8d75996a48c")
	viper.SetDefault("networks.sepolia.usdc_contract", "0x036CbD53842c5426634e7929541eC2318f3dCF7e")
	viper.SetDefault("networks.sepolia.usdc_name", "USDC")
	viper.SetDefault("networks.sepolia.usdc_version", "2")
	viper.SetDefault("networks.sepolia.explorer_url", "https://sepolia.basescan.org")

	viper.SetDefault("networks.mainnet.rpc_url", "https://mainnet.base.org")
	viper.SetDefault("networks.mainnet.chain_id", 8453)
	viper.SetDefault("networks.mainnet.usdc_contract", "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913")
	viper.SetDefault("networks.mainnet.usdc_name", "USDC")
	viper.SetDefault("networks.mainnet.usdc_version", "2")
	viper.SetDefault("networks.mainnet.explorer_url", "https://basescan.org")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("No config file found, using defaults and env vars")
		} else {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate performs the startup sanity checks that must fail fast instead of
// surfacing per-request.
func (c *Config) Validate() error {
	if len(c.Networks) == 0 {
		return fmt.Errorf("no networks configured")
	}
	if _, ok := c.Networks[c.Facilitator.DefaultNetwork]; !ok {
		return fmt.Errorf("default network %q is not configured", c.Facilitator.DefaultNetwork)
	}
	for name, net := range c.Networks {
		if net.RPCURL == "" {
			return fmt.Errorf("network %q: rpc_url is required", name)
		}
		if net.ChainID == 0 {
			return fmt.Errorf("network %q: chain_id is required", name)
		}
		if net.CCTPContract != "" && !common.IsHexAddress(net.CCTPContract) {
			return fmt.Errorf("network %q: invalid cctp_contract address", name)
		}
		if net.USDCContract != "" && !common.IsHexAddress(net.USDCContract) {
			return fmt.Errorf("network %q: invalid usdc_contract address", name)
		}
	}
	return nil
}
