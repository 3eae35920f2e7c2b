package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"flowlens/internal/stats"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// AppConfig holds the complete application configuration.
type AppConfig struct {
	DataPath     string
	OutputDir    string
	LogDir       string
	SettingsPath string
	Workers      int
	// Today overrides the current date for age calculations; zero means the real today.
	Today stats.Date
}

// Load loads the configuration from .env files and environment variables.
func Load() (*AppConfig, error) {
	// 1. Try to load from the executable's directory
	exePath, err := os.Executable()
	exeDir := ""
	if err == nil {
		exeDir = filepath.Dir(exePath)
		envPath := filepath.Join(exeDir, ".env")
		if err := godotenv.Load(envPath); err == nil {
			log.Debug().Str("path", envPath).Msg("Loaded configuration from binary directory")
		}
	}

	// 2. Fallback to current working directory
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found in working directory, relying on environment variables or binary-relative .env")
	}

	// 3. Resolve Data Paths
	dataPath := os.Getenv("DATA_PATH")
	if dataPath == "" {
		if exeDir != "" {
			dataPath = exeDir
		} else {
			dataPath = "."
		}
	}

	cfg := &AppConfig{
		DataPath:     dataPath,
		OutputDir:    getEnv("OUTPUT_DIR", filepath.Join(dataPath, "output")),
		LogDir:       getEnv("LOGS_FOLDER", filepath.Join(dataPath, "logs")),
		SettingsPath: getEnv("FLOWLENS_SETTINGS", ""),
		Workers:      getEnvInt("FLOWLENS_WORKERS", 4),
	}

	if today := os.Getenv("FLOWLENS_TODAY"); today != "" {
		d, err := stats.ParseDate(today)
		if err != nil {
			return nil, err
		}
		cfg.Today = d
	}

	return cfg, nil
}

// TodayIn returns the configured today, or the current date in loc.
func (c *AppConfig) TodayIn(loc *time.Location) stats.Date {
	if !c.Today.IsZero() {
		return c.Today
	}
	return stats.DateOf(time.Now(), loc)
}

// EnsureOutputDir creates the output directory if needed.
func (c *AppConfig) EnsureOutputDir() error {
	return os.MkdirAll(c.OutputDir, 0755)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(value); err == nil && n > 0 {
			return n
		}
		log.Warn().Str("key", key).Str("value", value).Int("default", fallback).Msg("Invalid integer in environment, using default")
	}
	return fallback
}
