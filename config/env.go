package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Settings is the runtime configuration read from the environment
type Settings struct {
	ChainID            int64
	RPCURL             string
	PrizePoolAddress   string
	MulticallBatchSize int
	RPCRateLimit       float64
	RPCRateBurst       int

	DatabaseURL   string
	RedisURL      string
	RedisPassword string
	RedisDB       int

	ServerAddr string
	LogLevel   string
}

// Load reads .env (if present) and then the process environment
func Load() (*Settings, error) {
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("⚠️  .env file not found, using environment variables")
	}
	return FromEnv()
}

// FromEnv builds Settings from the current process environment
func FromEnv() (*Settings, error) {
	s := &Settings{
		RPCURL:           os.Getenv("RPC_URL"),
		PrizePoolAddress: os.Getenv("PRIZE_POOL_ADDRESS"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		RedisURL:         getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
		ServerAddr:       getEnv("SERVER_ADDR", DefaultServerAddr),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
	}

	var err error
	if s.ChainID, err = int64Env("CHAIN_ID", 10); err != nil {
		return nil, err
	}
	if s.MulticallBatchSize, err = intEnv("MULTICALL_BATCH_SIZE", DefaultMulticallBatchSize); err != nil {
		return nil, err
	}
	if s.RPCRateBurst, err = intEnv("RPC_RATE_BURST", DefaultRPCRateBurst); err != nil {
		return nil, err
	}
	if s.RedisDB, err = intEnv("REDIS_DB", 0); err != nil {
		return nil, err
	}

	s.RPCRateLimit = DefaultRPCRateLimit
	if v := os.Getenv("RPC_RATE_LIMIT"); v != "" {
		if s.RPCRateLimit, err = strconv.ParseFloat(v, 64); err != nil {
			return nil, fmt.Errorf("invalid RPC_RATE_LIMIT %q: %w", v, err)
		}
	}

	if s.MulticallBatchSize <= 0 {
		return nil, fmt.Errorf("MULTICALL_BATCH_SIZE must be positive, got %d", s.MulticallBatchSize)
	}
	return s, nil
}

// ConfigureLogging sets the level of the global logger. The zerolog global
// level is left at trace so a derived logger, such as one for a request that
// asks for debug output, can lower its own level below it.
func ConfigureLogging(level string) error {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid LOG_LEVEL %q: %w", level, err)
	}
	if lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(zerolog.TraceLevel)
	log.Logger = log.Logger.Level(lvl)
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func intEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

func int64Env(key string, fallback int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}
