package config

import (
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Storage drivers.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Config holds application configuration.
type Config struct {
	DatabaseURL    string
	Port           string
	IsProduction   bool
	EnableDBCheck  bool
	LogLevel       string
	StorageDriver  string
	MigrationsPath string

	JWTSecret string
	JWTIssuer string

	// RateLimit uses the ulule/limiter format, e.g. "300-M".
	RateLimit          string
	CORSAllowedOrigins []string

	SettlementSweepInterval time.Duration
	SettlementBatchSize     int
	RiverMaxWorkers         int
}

// LoadConfig loads configuration from environment variables and .env file if present.
func LoadConfig() (*Config, error) {
	// Attempt to load .env file, ignore error if it doesn't exist
	_ = godotenv.Load()

	viper.SetDefault("PGSQL_URL", "")
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("IS_PRODUCTION", false)
	viper.SetDefault("ENABLE_DB_CHECK", true)
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("STORAGE_DRIVER", StoragePostgres)
	viper.SetDefault("MIGRATIONS_PATH", "")
	viper.SetDefault("JWT_SECRET", "a-very-secret-key-should-be-longer-and-random")
	viper.SetDefault("JWT_ISSUER", "curtain-escrow")
	viper.SetDefault("RATE_LIMIT", "300-M")
	viper.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000")
	viper.SetDefault("SETTLEMENT_SWEEP_INTERVAL", "5m")
	viper.SetDefault("SETTLEMENT_BATCH_SIZE", 100)
	viper.SetDefault("RIVER_MAX_WORKERS", 10)

	// Values from the environment (and the .env file loaded above) override the defaults.
	viper.AutomaticEnv()

	cfg := &Config{
		DatabaseURL:    viper.GetString("PGSQL_URL"),
		Port:           viper.GetString("PORT"),
		IsProduction:   viper.GetBool("IS_PRODUCTION"),
		EnableDBCheck:  viper.GetBool("ENABLE_DB_CHECK"),
		LogLevel:       strings.ToLower(viper.GetString("LOG_LEVEL")),
		StorageDriver:  strings.ToLower(viper.GetString("STORAGE_DRIVER")),
		MigrationsPath: viper.GetString("MIGRATIONS_PATH"),
		JWTSecret:      viper.GetString("JWT_SECRET"),
		JWTIssuer:      viper.GetString("JWT_ISSUER"),
		RateLimit:      viper.GetString("RATE_LIMIT"),
	}

	if cfg.StorageDriver != StorageMemory && cfg.StorageDriver != StoragePostgres {
		log.Printf("Warning: unknown STORAGE_DRIVER %q. Defaulting to %s.\n", cfg.StorageDriver, StoragePostgres)
		cfg.StorageDriver = StoragePostgres
	}
	if cfg.StorageDriver == StoragePostgres && cfg.DatabaseURL == "" {
		log.Println("Warning: PGSQL_URL environment variable not set.")
	}

	if cfg.Port == "" {
		cfg.Port = "8080" // Default port
		log.Printf("Warning: PORT environment variable not set. Defaulting to %s\n", cfg.Port)
	}

	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "a-very-secret-key-should-be-longer-and-random" // !! CHANGE IN PRODUCTION !!
		log.Println("Warning: JWT_SECRET environment variable not set. Using default insecure key.")
	}

	sweepStr := viper.GetString("SETTLEMENT_SWEEP_INTERVAL")
	sweepInterval, err := time.ParseDuration(sweepStr)
	if err != nil || sweepInterval <= 0 {
		sweepInterval = 5 * time.Minute
		log.Printf("Warning: Invalid value for SETTLEMENT_SWEEP_INTERVAL ('%s'). Defaulting to %s.\n", sweepStr, sweepInterval.String())
	}
	cfg.SettlementSweepInterval = sweepInterval

	cfg.SettlementBatchSize = viper.GetInt("SETTLEMENT_BATCH_SIZE")
	if cfg.SettlementBatchSize <= 0 {
		cfg.SettlementBatchSize = 100
	}
	cfg.RiverMaxWorkers = viper.GetInt("RIVER_MAX_WORKERS")
	if cfg.RiverMaxWorkers <= 0 {
		cfg.RiverMaxWorkers = 10
	}

	for _, origin := range strings.Split(viper.GetString("CORS_ALLOWED_ORIGINS"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, origin)
		}
	}

	return cfg, nil
}
