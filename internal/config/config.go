// Package config provides configuration management for the wallet gateway.
// It loads configuration from environment variables and .env files.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/zkrex/zkrex/internal/types"
)

// Config holds all application configuration
type Config struct {
	Server       ServerConfig
	Redis        RedisConfig
	Postgres     PostgresConfig
	Chain        ChainConfig
	Tokens       TokensConfig
	Verification VerificationConfig
	RateLimit    RateLimitConfig
	Logging      LoggingConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port string
	Host string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host           string
	Port           string
	Password       string
	DB             int
	MaxConnections int
}

// PostgresConfig holds the optional durable history backend configuration.
// History persistence falls back to Redis when Host is empty.
type PostgresConfig struct {
	Host           string
	Port           string
	Database       string
	User           string
	Password       string
	MaxConnections int
}

// Enabled reports whether the Postgres history backend is configured.
func (c PostgresConfig) Enabled() bool {
	return c.Host != ""
}

// DatabaseURL builds the connection URL used by the migration tool.
func (c PostgresConfig) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

// ChainConfig holds the single configured chain read endpoint.
type ChainConfig struct {
	Network        types.NetworkID
	RPCPrimary     string
	RPCSecondary   string
	NativeName     string
	NativeSymbol   string
	RequestTimeout time.Duration
}

// TokensConfig holds the curated token universe configuration.
type TokensConfig struct {
	// TokensJSON is the raw JSON-encoded token list; malformed input falls
	// back to an empty list.
	TokensJSON string
	// StablecoinAddress is a dedicated USDC address merged into the curated
	// list when not already present.
	StablecoinAddress string
}

// VerificationConfig holds identity verification configuration.
type VerificationConfig struct {
	// RegistryAddress is the on-chain registry contract exposing
	// isVerified(address). A value that is not a well-formed contract
	// address disables the pre-check path.
	RegistryAddress string
	AppName         string
	ScopeSeed       string
	// VerifierEndpoint is the backend proof verifier base URL.
	VerifierEndpoint string
	// ProofCallbackEndpoint is this gateway's own verify endpoint, handed to
	// the proof widget so the proving app knows where to submit.
	ProofCallbackEndpoint string
	MinimumAge            int
	RequireNationality    bool
	// SuccessCloseDelay is how long the verified confirmation stays visible
	// before the surrounding dialog auto-closes.
	SuccessCloseDelay time.Duration
	// CacheNamespace prefixes the verification cache keys.
	CacheNamespace string
}

// RateLimitConfig holds API rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int
	Burst             int
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// Load .env file (optional in production)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	config := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Redis: RedisConfig{
			Host:           getEnv("REDIS_HOST", "localhost"),
			Port:           getEnv("REDIS_PORT", "6379"),
			Password:       getEnv("REDIS_PASSWORD", ""),
			DB:             getEnvAsInt("REDIS_DB", 0),
			MaxConnections: getEnvAsInt("REDIS_MAX_CONNECTIONS", 50),
		},
		Postgres: PostgresConfig{
			Host:           getEnv("POSTGRES_HOST", ""),
			Port:           getEnv("POSTGRES_PORT", "5432"),
			Database:       getEnv("POSTGRES_DB", "zkrex"),
			User:           getEnv("POSTGRES_USER", "zkrex"),
			Password:       getEnv("POSTGRES_PASSWORD", ""),
			MaxConnections: getEnvAsInt("POSTGRES_MAX_CONNECTIONS", 20),
		},
		Chain: ChainConfig{
			Network:        types.NetworkID(getEnv("CHAIN_NETWORK", string(types.NetworkSapphireTestnet))),
			RPCPrimary:     getEnv("CHAIN_RPC_PRIMARY", "https://testnet.sapphire.oasis.io"),
			RPCSecondary:   getEnv("CHAIN_RPC_SECONDARY", ""),
			NativeName:     getEnv("NATIVE_ASSET_NAME", "ROSE (Testnet)"),
			NativeSymbol:   getEnv("NATIVE_ASSET_SYMBOL", "ROSEt"),
			RequestTimeout: getEnvAsDuration("CHAIN_REQUEST_TIMEOUT", 10*time.Second),
		},
		Tokens: TokensConfig{
			TokensJSON:        getEnv("TOKENS", ""),
			StablecoinAddress: getEnv("USDC_ADDRESS", ""),
		},
		Verification: VerificationConfig{
			RegistryAddress:       getEnv("VERIFICATION_REGISTRY_ADDRESS", ""),
			AppName:               getEnv("VERIFICATION_APP_NAME", "zkRex"),
			ScopeSeed:             getEnv("VERIFICATION_SCOPE_SEED", "zkRex-test"),
			VerifierEndpoint:      getEnv("VERIFIER_ENDPOINT", ""),
			ProofCallbackEndpoint: getEnv("PROOF_CALLBACK_ENDPOINT", "http://localhost:8080/api/verify"),
			MinimumAge:            getEnvAsInt("VERIFICATION_MINIMUM_AGE", 18),
			RequireNationality:    getEnvAsBool("VERIFICATION_REQUIRE_NATIONALITY", true),
			SuccessCloseDelay:     getEnvAsDuration("VERIFICATION_SUCCESS_CLOSE_DELAY", 2*time.Second),
			CacheNamespace:        getEnv("VERIFICATION_CACHE_NAMESPACE", "zkrex:identity"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getEnvAsInt("RATE_LIMIT_RPS", 20),
			Burst:             getEnvAsInt("RATE_LIMIT_BURST", 10),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	return config, nil
}

// CuratedTokens resolves the configured token universe, excluding the native
// asset. A malformed JSON list degrades to an empty list, the dedicated
// stablecoin address is merged in exactly once, and duplicates are dropped by
// lower-cased address with the first occurrence winning.
func (c *TokensConfig) CuratedTokens() []types.TokenDescriptor {
	// Raw entries may omit metadata; defaults mirror the display fallbacks
	// (name "Token", symbol "TKN", decimals 18).
	type tokenJSON struct {
		Address  string  `json:"address"`
		Name     *string `json:"name"`
		Symbol   *string `json:"symbol"`
		Decimals *uint8  `json:"decimals"`
	}

	var raw []tokenJSON
	if c.TokensJSON != "" {
		if err := json.Unmarshal([]byte(c.TokensJSON), &raw); err != nil {
			raw = nil
		}
	}

	list := make([]types.TokenDescriptor, 0, len(raw))
	for _, t := range raw {
		desc := types.TokenDescriptor{Address: t.Address, Name: "Token", Symbol: "TKN", Decimals: 18}
		switch {
		case t.Name != nil:
			desc.Name = *t.Name
		case t.Symbol != nil:
			desc.Name = *t.Symbol
		}
		switch {
		case t.Symbol != nil:
			desc.Symbol = *t.Symbol
		case t.Name != nil:
			desc.Symbol = *t.Name
		}
		if t.Decimals != nil {
			desc.Decimals = *t.Decimals
		}
		list = append(list, desc)
	}

	if addr := c.StablecoinAddress; addr != "" {
		target := types.NormalizeAddress(addr)
		found := false
		for _, t := range list {
			if types.NormalizeAddress(t.Address) == target {
				found = true
				break
			}
		}
		if !found {
			list = append(list, types.TokenDescriptor{
				Address:  addr,
				Name:     "USD Coin",
				Symbol:   "USDC",
				Decimals: 6,
			})
		}
	}

	seen := make(map[string]bool, len(list))
	out := make([]types.TokenDescriptor, 0, len(list))
	for _, t := range list {
		if t.Address == "" {
			continue
		}
		key := types.NormalizeAddress(t.Address)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, t)
	}
	return out
}

// NativeDescriptor returns the implicit native asset descriptor.
func (c *ChainConfig) NativeDescriptor() types.TokenDescriptor {
	return types.TokenDescriptor{
		Name:     c.NativeName,
		Symbol:   c.NativeSymbol,
		Decimals: types.NativeDecimals,
	}
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool gets an environment variable as a boolean with a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
