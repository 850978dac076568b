package main

import (
	"os"
	"path/filepath"
	"time"

	"github.com/allisson/go-env"
	"github.com/joho/godotenv"
)

// serverConfig holds the fake server's environment-derived configuration.
type serverConfig struct {
	ListenAddr string

	MongoURI string
	MongoDB  string

	TokenTTL time.Duration

	RateLimitPerSec float64
	RateLimitBurst  int
}

// loadConfig loads configuration from environment variables and an
// optional .env file, the way a real deployment of this binary would.
func loadConfig() serverConfig {
	loadDotEnv()

	return serverConfig{
		ListenAddr: env.GetString("LISTEN_ADDR", ":8080"),

		MongoURI: env.GetString("MONGO_URI", ""),
		MongoDB:  env.GetString("MONGO_DB", "e3box_fakeserver"),

		TokenTTL: env.GetDuration("TOKEN_TTL_SECONDS", 3600, time.Second),

		RateLimitPerSec: env.GetFloat64("AUTH_RATE_LIMIT_PER_SEC", 5.0),
		RateLimitBurst:  env.GetInt("AUTH_RATE_LIMIT_BURST", 20),
	}
}

// loadDotEnv searches for a .env file recursively from the current
// directory up to the root and loads it if found.
func loadDotEnv() {
	cwd, err := os.Getwd()
	if err != nil {
		return
	}
	dir := cwd
	for {
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			_ = godotenv.Load(envPath)
			return
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
}
