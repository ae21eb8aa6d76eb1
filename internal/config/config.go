package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

type Config struct {
	APIBaseURL          string
	DBPath              string
	ServerPort          string
	LogLevel            string
	HistoryDepthDays    int
	HistoryFloor        time.Time
	Location            *time.Location
	CompletionDebounce  time.Duration
	SeasonCacheTTL      time.Duration
	ClassificationTable string
}

func Load(logger zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg(".env file not found, using environment variables or defaults")
	}

	cfg := &Config{
		APIBaseURL:          getEnv("LADDER_API_BASE_URL", "https://sc2pulse.nephest.com/sc2"),
		DBPath:              getEnv("DB_PATH", "ladder.db"),
		ServerPort:          getEnv("SERVER_PORT", "8080"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		ClassificationTable: getEnv("CLASSIFICATION_TABLE", ""),
	}

	var err error
	if cfg.HistoryDepthDays, err = strconv.Atoi(getEnv("HISTORY_DEPTH_DAYS", "90")); err != nil || cfg.HistoryDepthDays <= 0 {
		return nil, fmt.Errorf("HISTORY_DEPTH_DAYS must be a positive integer")
	}
	if cfg.Location, err = time.LoadLocation(getEnv("TIMEZONE", "Local")); err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}
	if cfg.HistoryFloor, err = time.ParseInLocation(time.DateOnly, getEnv("HISTORY_FLOOR", "2021-01-19"), cfg.Location); err != nil {
		return nil, fmt.Errorf("invalid HISTORY_FLOOR: %w", err)
	}
	if cfg.CompletionDebounce, err = time.ParseDuration(getEnv("COMPLETION_DEBOUNCE", "400ms")); err != nil {
		return nil, fmt.Errorf("invalid COMPLETION_DEBOUNCE: %w", err)
	}
	if cfg.SeasonCacheTTL, err = time.ParseDuration(getEnv("SEASON_CACHE_TTL", "1h")); err != nil {
		return nil, fmt.Errorf("invalid SEASON_CACHE_TTL: %w", err)
	}
	if _, err := zerolog.ParseLevel(cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	logger.Info().
		Str("api_base_url", cfg.APIBaseURL).
		Str("db_path", cfg.DBPath).
		Str("server_port", cfg.ServerPort).
		Str("log_level", cfg.LogLevel).
		Int("history_depth_days", cfg.HistoryDepthDays).
		Time("history_floor", cfg.HistoryFloor).
		Str("timezone", cfg.Location.String()).
		Dur("completion_debounce", cfg.CompletionDebounce).
		Dur("season_cache_ttl", cfg.SeasonCacheTTL).
		Msg("configuration loaded")

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

var Module = fx.Provide(Load)
