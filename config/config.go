package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Log      LogConfig      `mapstructure:"log"`
	Chain    ChainConfig    `mapstructure:"chain"`
	Retry    RetryConfig    `mapstructure:"retry"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Batch    BatchConfig    `mapstructure:"batch"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"` // apply embedded schema on startup
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// JWTConfig configures bearer token validation. Tokens are issued elsewhere.
type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// ChainConfig configures the EVM RPC endpoints and the confirmation monitor.
type ChainConfig struct {
	PrimaryRPCURL   string        `mapstructure:"primary_rpc_url"`
	FallbackRPCURL  string        `mapstructure:"fallback_rpc_url"` // empty = no fallback
	ChainID         int64         `mapstructure:"chain_id"`
	SignerKey       string        `mapstructure:"signer_key"` // hex-encoded secp256k1 key of the custody signer
	TokenContract   string        `mapstructure:"token_contract"`
	GasLimit        uint64        `mapstructure:"gas_limit"`
	RPCRateLimit    float64       `mapstructure:"rpc_rate_limit"` // requests per second
	RPCBurst        int           `mapstructure:"rpc_burst"`
	Confirmations   uint64        `mapstructure:"confirmations"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	MaxWait         time.Duration `mapstructure:"max_wait"`
	MonitorWorkers  int           `mapstructure:"monitor_workers"`
	RecheckInterval time.Duration `mapstructure:"recheck_interval"`
	SignerLockTTL   time.Duration `mapstructure:"signer_lock_ttl"` // upper bound on one nonce allocation + broadcast
}

type RetryConfig struct {
	MaxAttempts    int           `mapstructure:"max_attempts"`
	InitialDelay   time.Duration `mapstructure:"initial_delay"`
	Multiplier     float64       `mapstructure:"multiplier"`
	AttemptTimeout time.Duration `mapstructure:"attempt_timeout"`
}

type CacheConfig struct {
	GasPriceTTL    time.Duration `mapstructure:"gas_price_ttl"`
	BlockNumberTTL time.Duration `mapstructure:"block_number_ttl"`
}

type BatchConfig struct {
	Workers int `mapstructure:"workers"`
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: AMS_ (Asset Marketplace Settlement).
// Nested keys use underscore: AMS_DATABASE_HOST, AMS_CHAIN_PRIMARY_RPC_URL, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "marketplace")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.auto_migrate", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", "24h")
	v.SetDefault("jwt.issuer", "marketplace-settlement")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("chain.primary_rpc_url", "http://localhost:8545")
	v.SetDefault("chain.fallback_rpc_url", "")
	v.SetDefault("chain.chain_id", 1337)
	v.SetDefault("chain.signer_key", "")
	v.SetDefault("chain.token_contract", "")
	v.SetDefault("chain.gas_limit", 200000)
	v.SetDefault("chain.rpc_rate_limit", 20)
	v.SetDefault("chain.rpc_burst", 5)
	v.SetDefault("chain.confirmations", 1)
	v.SetDefault("chain.poll_interval", "3s")
	v.SetDefault("chain.max_wait", "5m")
	v.SetDefault("chain.monitor_workers", 4)
	v.SetDefault("chain.recheck_interval", "1m")
	v.SetDefault("chain.signer_lock_ttl", "30s")
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_delay", "1s")
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("retry.attempt_timeout", "15s")
	v.SetDefault("cache.gas_price_ttl", "60s")
	v.SetDefault("cache.block_number_ttl", "10s")
	v.SetDefault("batch.workers", 4)

	// File config
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables: AMS_DATABASE_HOST -> database.host
	v.SetEnvPrefix("AMS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required, env vars can suffice)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects settings the settlement pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be >= 1, got %d", c.Retry.MaxAttempts)
	}
	if c.Retry.Multiplier < 1 {
		return fmt.Errorf("retry.multiplier must be >= 1, got %v", c.Retry.Multiplier)
	}
	if c.Chain.PollInterval <= 0 {
		return fmt.Errorf("chain.poll_interval must be positive")
	}
	if c.Chain.MonitorWorkers < 1 {
		return fmt.Errorf("chain.monitor_workers must be >= 1, got %d", c.Chain.MonitorWorkers)
	}
	if c.Batch.Workers < 1 {
		return fmt.Errorf("batch.workers must be >= 1, got %d", c.Batch.Workers)
	}
	return nil
}
