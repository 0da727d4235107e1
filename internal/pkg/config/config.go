package config

import (
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const (
	ChainModeRPC       = "rpc"
	ChainModeSimulated = "simulated"
)

type Config struct {
	Port      string
	ChainMode string

	RpcUrl           string
	ContractAddress  string
	TokenAddress     string
	TokenDecimals    int
	TokenSymbol      string
	NativeSymbol     string
	SignerPrivateKey string

	RpcBatchSize   int
	RpcParallelism int

	DirectoryWindow       uint64
	DirectoryPollInterval time.Duration
	ActionTimeout         time.Duration

	MinStakeNative string
	MinStakeToken  string

	RedisUrl        string
	DbUrl           string
	GoogleProjectId string
	// chain indexers can poke the directory through this subscription
	RefreshSubscription string
	LogLevel            string
}

func SetupViper() *viper.Viper {
	v := viper.GetViper()
	v.AutomaticEnv()
	v.SetConfigFile("./.env")
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		log.Debug().Err(err).Msg("No .env file loaded, using environment only")
	}
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", ":8080")
	v.SetDefault("CHAIN_MODE", ChainModeRPC)
	v.SetDefault("TOKEN_DECIMALS", 6)
	v.SetDefault("TOKEN_SYMBOL", "USDC")
	v.SetDefault("NATIVE_SYMBOL", "ETH")
	v.SetDefault("RPC_BATCH_SIZE", 10)
	v.SetDefault("RPC_PARALLELISM", 4)
	v.SetDefault("DIRECTORY_WINDOW", 20)
	v.SetDefault("DIRECTORY_POLL_INTERVAL", "10s")
	v.SetDefault("ACTION_TIMEOUT", "3m")
	v.SetDefault("MIN_STAKE_NATIVE", "0.00004")
	v.SetDefault("MIN_STAKE_TOKEN", "0")
	v.SetDefault("LOG_LEVEL", "info")
}

// Load reads the typed configuration out of v, filling defaults first.
func Load(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	cfg := &Config{
		Port:                  v.GetString("PORT"),
		ChainMode:             strings.ToLower(strings.TrimSpace(v.GetString("CHAIN_MODE"))),
		RpcUrl:                strings.TrimSpace(v.GetString("RPC_URL")),
		ContractAddress:       strings.TrimSpace(v.GetString("CONTRACT_ADDRESS")),
		TokenAddress:          strings.TrimSpace(v.GetString("TOKEN_ADDRESS")),
		TokenDecimals:         v.GetInt("TOKEN_DECIMALS"),
		TokenSymbol:           v.GetString("TOKEN_SYMBOL"),
		NativeSymbol:          v.GetString("NATIVE_SYMBOL"),
		SignerPrivateKey:      strings.TrimSpace(v.GetString("SIGNER_PRIVATE_KEY")),
		RpcBatchSize:          v.GetInt("RPC_BATCH_SIZE"),
		RpcParallelism:        v.GetInt("RPC_PARALLELISM"),
		DirectoryWindow:       v.GetUint64("DIRECTORY_WINDOW"),
		DirectoryPollInterval: v.GetDuration("DIRECTORY_POLL_INTERVAL"),
		ActionTimeout:         v.GetDuration("ACTION_TIMEOUT"),
		MinStakeNative:        v.GetString("MIN_STAKE_NATIVE"),
		MinStakeToken:         v.GetString("MIN_STAKE_TOKEN"),
		RedisUrl:              strings.TrimSpace(v.GetString("REDIS_URL")),
		DbUrl:                 strings.TrimSpace(v.GetString("DB_URL")),
		GoogleProjectId:       strings.TrimSpace(v.GetString("GOOGLE_PROJECT_ID")),
		RefreshSubscription:   strings.TrimSpace(v.GetString("PUBSUB_REFRESH_SUBSCRIPTION")),
		LogLevel:              v.GetString("LOG_LEVEL"),
	}

	if cfg.RpcBatchSize <= 0 {
		cfg.RpcBatchSize = 10
	}
	if cfg.RpcParallelism <= 0 {
		cfg.RpcParallelism = 4
	}
	if cfg.DirectoryPollInterval <= 0 {
		cfg.DirectoryPollInterval = 10 * time.Second
	}
	if cfg.ActionTimeout <= 0 {
		cfg.ActionTimeout = 3 * time.Minute
	}

	switch cfg.ChainMode {
	case ChainModeSimulated:
	case ChainModeRPC:
		if cfg.RpcUrl == "" {
			return nil, errors.New("RPC_URL is required in rpc chain mode")
		}
		if cfg.ContractAddress == "" {
			return nil, errors.New("CONTRACT_ADDRESS is required in rpc chain mode")
		}
	default:
		return nil, errors.New("CHAIN_MODE must be rpc or simulated")
	}

	return cfg, nil
}
