package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aman-zulfiqar/compressed-token-wallet/internal/constants"
)

type Config struct {
	// RPC settings
	RPCUrl            string
	CompressionRPCUrl string
	AssetIndexRPCUrl  string

	// Metadata services
	MetadataCacheURL   string // empty: read the local metadata store directly
	OnChainMetadataURL string // empty: resolve on-chain metadata in-process

	// Jupiter
	JupiterBaseURL  string
	JupiterPriceURL string
	JupiterAPIKey   string

	// API server
	APIAddr     string
	APIKey      string
	DevMode     bool
	ActionRate  float64 // requests per second per client on /v1/actions
	ActionBurst int

	// Metadata store backend: "redis" or "postgres"
	MetadataStore string
	RedisAddr     string
	PostgresDSN   string

	// ClickHouse settings
	ClickHouseAddr     string
	ClickHouseDatabase string
	ClickHouseUsername string
	ClickHousePassword string

	// HTTP client settings
	HTTPTimeout  time.Duration
	MaxRetries   int
	RetryBackoff time.Duration

	// Planner
	ComputeUnitLimit  int
	MaxPriceImpactBps int
	MaxSlippageBps    int
	AllowedMints      []string
	StateTree         string
	NullifierQueue    string

	// Local signer (optional)
	WalletPrivateKey string
	WalletCommitment string

	LogLevel string
}

func Load() *Config {
	compressionURL := getEnv("COMPRESSION_RPC_URL", "")
	return &Config{
		// RPC
		RPCUrl:            getEnv("SOLANA_RPC_URL", ""),
		CompressionRPCUrl: compressionURL,
		AssetIndexRPCUrl:  getEnv("ASSET_INDEX_RPC_URL", compressionURL),

		// Metadata
		MetadataCacheURL:   getEnv("METADATA_CACHE_URL", ""),
		OnChainMetadataURL: getEnv("ONCHAIN_METADATA_URL", ""),

		// Jupiter
		JupiterBaseURL:  getEnv("JUPITER_BASE_URL", ""),
		JupiterPriceURL: getEnv("JUPITER_PRICE_URL", ""),
		JupiterAPIKey:   getEnv("JUPITER_API_KEY", ""),

		// API
		APIAddr: getEnv("API_ADDR", ":8090"),
		APIKey:  getEnv("API_KEY", ""),
		DevMode: getBoolEnv("DEV_MODE", false),

		ActionRate:  getFloatEnv("ACTION_RATE", 2),
		ActionBurst: getIntEnv("ACTION_BURST", 5),

		// Storage
		MetadataStore: strings.ToLower(getEnv("METADATA_STORE", "redis")),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		PostgresDSN:   getEnv("POSTGRES_DSN", ""),

		// ClickHouse
		ClickHouseAddr:     getEnv("CLICKHOUSE_ADDR", ""),
		ClickHouseDatabase: getEnv("CLICKHOUSE_DATABASE", "wallet"),
		ClickHouseUsername: getEnv("CLICKHOUSE_USERNAME", "default"),
		ClickHousePassword: getEnv("CLICKHOUSE_PASSWORD", ""),

		// HTTP
		HTTPTimeout:  getDurationEnv("HTTP_TIMEOUT", 30*time.Second),
		MaxRetries:   getIntEnv("MAX_RETRIES", 3),
		RetryBackoff: getDurationEnv("RETRY_BACKOFF", 500*time.Millisecond),

		// Planner
		ComputeUnitLimit:  getIntEnv("COMPUTE_UNIT_LIMIT", constants.DefaultComputeUnitLimit),
		MaxPriceImpactBps: getIntEnv("MAX_PRICE_IMPACT_BPS", 500),
		MaxSlippageBps:    getIntEnv("MAX_SLIPPAGE_BPS", 1000),
		AllowedMints:      getListEnv("ALLOWED_MINTS"),
		StateTree:         getEnv("STATE_TREE", constants.DefaultStateTree),
		NullifierQueue:    getEnv("NULLIFIER_QUEUE", constants.DefaultNullifierQueue),

		// Wallet
		WalletPrivateKey: getEnv("WALLET_PRIVATE_KEY", ""),
		WalletCommitment: getEnv("WALLET_COMMITMENT", "confirmed"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// Validate reports every missing or malformed setting at once.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.RPCUrl) == "" {
		errs = append(errs, errors.New("SOLANA_RPC_URL is required"))
	}
	if strings.TrimSpace(c.CompressionRPCUrl) == "" {
		errs = append(errs, errors.New("COMPRESSION_RPC_URL is required"))
	}
	switch c.MetadataStore {
	case "redis":
	case "postgres":
		if c.PostgresDSN == "" {
			errs = append(errs, errors.New("POSTGRES_DSN is required when METADATA_STORE=postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("METADATA_STORE must be redis or postgres, got %q", c.MetadataStore))
	}
	if c.ComputeUnitLimit < 0 || c.ComputeUnitLimit > constants.MaxComputeUnitLimit {
		errs = append(errs, fmt.Errorf("COMPUTE_UNIT_LIMIT must be within 0..%d", constants.MaxComputeUnitLimit))
	}
	if c.MaxSlippageBps < 0 || c.MaxSlippageBps > 10_000 {
		errs = append(errs, errors.New("MAX_SLIPPAGE_BPS must be within 0..10000"))
	}
	if c.MaxPriceImpactBps < 0 || c.MaxPriceImpactBps > 10_000 {
		errs = append(errs, errors.New("MAX_PRICE_IMPACT_BPS must be within 0..10000"))
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getIntEnv(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getFloatEnv(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getBoolEnv(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getDurationEnv(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func getListEnv(key string) []string {
	var out []string
	for _, p := range strings.Split(os.Getenv(key), ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
