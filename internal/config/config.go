package config

import (
	"errors"
	"os"
	"strconv"
	"time"
)

// Config is loaded from environment variables.
type Config struct {
	Port            string
	MongoURI        string
	MongoDB         string
	RoomsCollection string
	RedisAddr       string
	JWTSecret       string
	GeminiAPIKey    string
	GeminiModel     string
	RoomIdleTTL     time.Duration
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:            getEnvOrDefault("PORT", "8080"),
		MongoURI:        os.Getenv("MONGO_URI"),
		MongoDB:         getEnvOrDefault("MONGO_DB", "coderoom"),
		RoomsCollection: getEnvOrDefault("ROOMS_COLLECTION", "rooms"),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		JWTSecret:       os.Getenv("JWT_SECRET"),
		GeminiAPIKey:    os.Getenv("GEMINI_API_KEY"),
		GeminiModel:     getEnvOrDefault("GEMINI_MODEL", "gemini-2.0-flash"),
		RoomIdleTTL:     time.Duration(getEnvIntOrDefault("ROOM_IDLE_TTL_MINUTES", 30)) * time.Minute,
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.MongoURI == "" {
		return errors.New("MONGO_URI is empty")
	}
	if cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET is empty")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil && n > 0 {
			return n
		}
	}
	return defaultValue
}
