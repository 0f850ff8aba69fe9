package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	VerifyToken string
	PageToken   string

	DBDriver   string // "postgres" or "sqlite"
	DBPath     string // sqlite only
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	OpenAIKey      string
	OpenAIBaseURL  string
	ChatModel      string
	VisionModel    string
	LLMTimeoutSec  int
	ImageFetchSec  int
	SettingsTTLSec int
}

func LoadConfig() *Config {
	err := godotenv.Load()
	if err != nil {
		log.Println("Warning: Error loading .env file")
	}

	return &Config{
		Port:        getEnv("PORT", "8080"),
		VerifyToken: getEnv("VERIFY_TOKEN", ""),
		PageToken:   getEnv("PAGE_ACCESS_TOKEN", ""),

		DBDriver:   getEnv("DB_DRIVER", "sqlite"),
		DBPath:     getEnv("DB_PATH", "./messenger.db"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "messenger_commerce"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		OpenAIKey:      getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:  getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		ChatModel:      getEnv("CHAT_MODEL", "gpt-4o-mini"),
		VisionModel:    getEnv("VISION_MODEL", "gpt-4o-mini"),
		LLMTimeoutSec:  getEnvInt("LLM_TIMEOUT_SECONDS", 25),
		ImageFetchSec:  getEnvInt("IMAGE_FETCH_TIMEOUT_SECONDS", 10),
		SettingsTTLSec: getEnvInt("SETTINGS_CACHE_TTL_SECONDS", 300),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}
