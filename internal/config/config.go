package config

import (
	"math/big"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration values
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Chain    ChainConfig
	Energy   EnergyConfig
	Security SecurityConfig
	Sweep    SweepConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port string
	Env  string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// URL returns the database connection URL
func (c DatabaseConfig) URL() string {
	return "postgres://" + c.User + ":" + c.Password + "@" + c.Host + ":" + strconv.Itoa(c.Port) + "/" + c.DBName + "?sslmode=" + c.SSLMode + "&prepare_threshold=0"
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	URL      string
	Password string
}

// ChainConfig holds blockchain RPC configuration
type ChainConfig struct {
	RPCURL           string
	MinConfirmations uint64
	BroadcastTimeout time.Duration
}

// EnergyConfig holds energy/fee provisioner configuration
type EnergyConfig struct {
	BaseURL string
	Timeout time.Duration
}

// SecurityConfig holds the seed encryption key
type SecurityConfig struct {
	SeedEncryptionKey string // 32-bytes hex string
}

// SweepConfig holds tenant-level sweep tuning
type SweepConfig struct {
	Workers            int
	ClaimInterval      time.Duration
	MaxAttempts        int
	BackoffBase        time.Duration
	BackoffCap         time.Duration
	FeeReserve         *big.Int // base units reserved for gas when evaluating eligibility
	HighValueThreshold *big.Int // sweepable amount at or above this enqueues at high priority
	BatchMaxSize       int
	BatchMaxWait       time.Duration
	ReconcileInterval  time.Duration
	ReconcileGrace     time.Duration
}

// Load loads configuration from environment variables
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Env:  getEnv("SERVER_ENV", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "custody_sweep"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			URL:      getEnv("REDIS_URL", "redis://localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
		},
		Chain: ChainConfig{
			RPCURL:           getEnv("CHAIN_RPC_URL", "https://sepolia.base.org"),
			MinConfirmations: uint64(getEnvAsInt("CHAIN_MIN_CONFIRMATIONS", 12)),
			BroadcastTimeout: getEnvAsDuration("CHAIN_BROADCAST_TIMEOUT", 10*time.Second),
		},
		Energy: EnergyConfig{
			BaseURL: getEnv("ENERGY_PROVISIONER_URL", "http://localhost:8090"),
			Timeout: getEnvAsDuration("ENERGY_PROVISIONER_TIMEOUT", 10*time.Second),
		},
		Security: SecurityConfig{
			SeedEncryptionKey: getEnv("SEED_ENCRYPTION_KEY", "0000000000000000000000000000000000000000000000000000000000000000"), // 32-bytes hex string
		},
		Sweep: SweepConfig{
			Workers:            getEnvAsInt("SWEEP_WORKERS", 4),
			ClaimInterval:      getEnvAsDuration("SWEEP_CLAIM_INTERVAL", 5*time.Second),
			MaxAttempts:        getEnvAsInt("SWEEP_MAX_ATTEMPTS", 5),
			BackoffBase:        getEnvAsDuration("SWEEP_BACKOFF_BASE", 30*time.Second),
			BackoffCap:         getEnvAsDuration("SWEEP_BACKOFF_CAP", 30*time.Minute),
			FeeReserve:         getEnvAsBigInt("SWEEP_FEE_RESERVE", "1000000000000000"),                // 0.001 in 18-decimals
			HighValueThreshold: getEnvAsBigInt("SWEEP_HIGH_VALUE_THRESHOLD", "1000000000000000000000"), // 1000 in 18-decimals
			BatchMaxSize:       getEnvAsInt("SWEEP_BATCH_MAX_SIZE", 10),
			BatchMaxWait:       getEnvAsDuration("SWEEP_BATCH_MAX_WAIT", 30*time.Second),
			ReconcileInterval:  getEnvAsDuration("SWEEP_RECONCILE_INTERVAL", 30*time.Second),
			ReconcileGrace:     getEnvAsDuration("SWEEP_RECONCILE_GRACE", 10*time.Minute),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsBigInt(key, defaultValue string) *big.Int {
	if value := os.Getenv(key); value != "" {
		if v, ok := new(big.Int).SetString(value, 10); ok {
			return v
		}
	}
	v, _ := new(big.Int).SetString(defaultValue, 10)
	return v
}
