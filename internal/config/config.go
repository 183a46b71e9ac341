package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port string
	Env  string

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// JWT
	JWTSecret string

	// Single local user
	AdminPasswordHash string

	// Gemini AI (cloud transcription, optional)
	GeminiAPIKey         string
	GeminiConcurrentReqs int

	// Local Whisper (optional)
	WhisperBin   string
	WhisperModel string

	// YouTube Data API
	YouTubeAPIKey string

	// Audio download passthrough
	ProxyURL    string
	CookiesFile string

	// Extraction engine
	ExtractConcurrency     int
	ProviderTimeoutSeconds int

	// Staged downloads
	StoragePath             string
	DownloadTokenTTLSeconds int

	// Frontend
	FrontendURL string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:                    getEnvOrDefault("PORT", "8080"),
		Env:                     getEnvOrDefault("ENV", "development"),
		DatabaseURL:             mustGetEnv("DATABASE_URL"),
		RedisURL:                mustGetEnv("REDIS_URL"),
		JWTSecret:               mustGetEnv("JWT_SECRET"),
		AdminPasswordHash:       mustGetEnv("ADMIN_PASSWORD_HASH"),
		GeminiAPIKey:            getEnvOrDefault("GEMINI_API_KEY", ""),
		GeminiConcurrentReqs:    getEnvAsIntOrDefault("GEMINI_CONCURRENT_REQUESTS", 2),
		WhisperBin:              getEnvOrDefault("WHISPER_BIN", ""),
		WhisperModel:            getEnvOrDefault("WHISPER_MODEL", ""),
		YouTubeAPIKey:           getEnvOrDefault("YOUTUBE_API_KEY", ""),
		ProxyURL:                getEnvOrDefault("PROXY_URL", ""),
		CookiesFile:             getEnvOrDefault("COOKIES_FILE", ""),
		ExtractConcurrency:      getEnvAsIntOrDefault("EXTRACT_CONCURRENCY", 3),
		ProviderTimeoutSeconds:  getEnvAsIntOrDefault("PROVIDER_TIMEOUT_SECONDS", 120),
		StoragePath:             getEnvOrDefault("STORAGE_PATH", "./tmp"),
		DownloadTokenTTLSeconds: getEnvAsIntOrDefault("DOWNLOAD_TOKEN_TTL_SECONDS", 600),
		FrontendURL:             getEnvOrDefault("FRONTEND_URL", "http://localhost:5173"),
	}

	return cfg
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}
