package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds environment-backed defaults. Command-line flags override
// everything here.
type Config struct {
	CachePath   string
	HashMethod  string
	Threshold   int
	ModelPath   string
	ClassFile   string
	Confidence  float64
	IoU         float64
	InputWidth  int
	InputHeight int
	Workers     int
	OrtLibPath  string
	LogFile     string
}

// Load reads an optional .env file and returns configuration defaults
func Load() *Config {
	// A missing .env file is fine, the environment may be set directly
	_ = godotenv.Load()

	return &Config{
		CachePath:   getEnv("LABELT_CACHE", filepath.Join(".", "hashes.db")),
		HashMethod:  getEnv("LABELT_HASH", "ahash"),
		Threshold:   getEnvAsInt("LABELT_THRESHOLD", 10),
		ModelPath:   getEnv("LABELT_MODEL", ""),
		ClassFile:   getEnv("LABELT_CLASSES", ""),
		Confidence:  getEnvAsFloat("LABELT_CONF", 0.25),
		IoU:         getEnvAsFloat("LABELT_IOU", 0.45),
		InputWidth:  getEnvAsInt("LABELT_INPUT_WIDTH", 640),
		InputHeight: getEnvAsInt("LABELT_INPUT_HEIGHT", 640),
		Workers:     getEnvAsInt("LABELT_WORKERS", 0),
		OrtLibPath:  getEnv("LABELT_ORT_LIB", ""),
		LogFile:     getEnv("LABELT_LOGFILE", "labelt.log"),
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
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
