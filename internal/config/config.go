package config

import (
	"fmt"
	"os"
)

// Config holds application configuration
type Config struct {
	Port            string
	DBConn          string
	LogLevel        string
	JWTSecret       string
	SMTPHost        string
	SMTPPort        string
	SMTPUsername    string
	SMTPPassword    string
	SenderEmail     string
	RPCURL          string
	ContractAddress string
	IndexerSpec     string
	IndexerEnabled  bool
}

// NewConfig loads configuration from environment variables
func NewConfig() (*Config, error) {
	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		DBConn:          getEnv("DB_CONN", "host=localhost port=5432 user=spherre password=spherre dbname=spherre sslmode=disable"),
		LogLevel:        getEnv("LOG_LEVEL", "INFO"),
		JWTSecret:       getEnv("JWT_SECRET", "secret"),
		SMTPHost:        getEnv("SMTP_HOST", "localhost"),
		SMTPPort:        getEnv("SMTP_PORT", "587"),
		SMTPUsername:    getEnv("SMTP_USERNAME", ""),
		SMTPPassword:    getEnv("SMTP_PASSWORD", ""),
		SenderEmail:     getEnv("SENDER_EMAIL", "noreply@spherre.xyz"),
		RPCURL:          getEnv("RPC_URL", "https://starknet-sepolia.public.blastapi.io/rpc/v0_7"),
		ContractAddress: getEnv("CONTRACT_ADDRESS", ""),
		IndexerSpec:     getEnv("INDEXER_SPEC", "@every 15s"),
		IndexerEnabled:  getEnv("INDEXER_ENABLED", "true") == "true",
	}

	if cfg.DBConn == "" {
		return nil, fmt.Errorf("DB_CONN is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.IndexerEnabled && cfg.ContractAddress == "" {
		return nil, fmt.Errorf("CONTRACT_ADDRESS is required when the indexer is enabled")
	}

	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}
