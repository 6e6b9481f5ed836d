package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds process-wide settings loaded once at startup.
// Values come from the environment, optionally seeded from a .env file.
type Config struct {
	Port string

	// SQLite database file and schema migrations directory
	DBPath        string
	MigrationsDir string

	// Redis cache (sessions rate-limit entries and list cache live here)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	BcryptCost int

	// Minimum interval between allowed mutating requests per session
	RateLimitCooldown time.Duration
}

// Load reads configuration from the environment. A missing .env file is not
// an error; explicit environment variables always win over defaults.
func Load() Config {
	// Ignore error: .env is optional in production deployments
	_ = godotenv.Load()

	return Config{
		Port:              getEnv("PORT", "8080"),
		DBPath:            getEnv("DB_PATH", "./todo_service.db"),
		MigrationsDir:     getEnv("MIGRATIONS_DIR", "./database/migrations"),
		RedisAddr:         getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		RedisDB:           getEnvInt("REDIS_DB", 0),
		BcryptCost:        getEnvInt("BCRYPT_COST", 12),
		RateLimitCooldown: time.Duration(getEnvInt("RATE_LIMIT_COOLDOWN_SECONDS", 5)) * time.Second,
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
