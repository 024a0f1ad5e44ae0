package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port           string
	PostgresURL    string
	AllowedOrigins []string
	GinMode        string
	LogLevel       string
}

func Load() *Config {
	// .env is optional, real envs win
	godotenv.Load()

	return &Config{
		Port:           getEnv("PORT", "5000"),
		PostgresURL:    os.Getenv("POSTGRES_URL"),
		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "http://localhost:3000"), ","),
		GinMode:        getEnv("GIN_MODE", "debug"),
		LogLevel:       getEnv("LOG_LEVEL", "debug"),
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
