package config

import (
	"fmt"
	"os"
)

// Config holds environment-driven settings for the server and store.
type Config struct {
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	ServerPort string

	// StrictPercentages rejects percentage splits whose entries do not sum
	// to exactly 100. Off by default: a partial split is a valid way to
	// record a partial reimbursement.
	StrictPercentages bool
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		DBHost:            getEnv("DB_HOST", "localhost"),
		DBPort:            getEnv("DB_PORT", "5432"),
		DBUser:            getEnv("DB_USER", "postgres"),
		DBPassword:        getEnv("DB_PASSWORD", "password"),
		DBName:            getEnv("DB_NAME", "group_ledger"),
		ServerPort:        getEnv("SERVER_PORT", "8080"),
		StrictPercentages: getEnv("STRICT_PERCENTAGES", "false") == "true",
	}
}

// GetDBConnectionString builds the postgres connection string.
func (c *Config) GetDBConnectionString() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
