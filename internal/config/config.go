package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"mines_client/internal/domain"
	"mines_client/internal/logger"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	ServerURL string
	AuthToken string
	JWTSecret string

	GateTimeout  time.Duration
	DegradeAfter int
	StatusAddr   string

	// Round history: Postgres wins over sqlite when both are set
	DatabaseURL       string
	HistorySQLitePath string

	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	IntentRateLimit  int
	IntentRateWindow time.Duration

	MinBet  decimal.Decimal
	MaxBet  decimal.Decimal
	Presets map[string]domain.Configuration

	LogLevel string
	LogJSON  bool

	// dev server
	DevAddr         string
	DevStartBalance decimal.Decimal
}

// Load reads .env and the environment for the client binary.
func Load() *Config {
	_ = godotenv.Load()

	cfg, err := Parse(os.Getenv)
	if err != nil {
		logger.Fatal("invalid configuration", "error", err)
	}
	if cfg.AuthToken == "" {
		logger.Fatal("AUTH_TOKEN is not set")
	}
	return cfg
}

// LoadServer reads the configuration for the dev server, which signs tokens itself.
func LoadServer() *Config {
	_ = godotenv.Load()

	cfg, err := Parse(os.Getenv)
	if err != nil {
		logger.Fatal("invalid configuration", "error", err)
	}
	if cfg.JWTSecret == "" {
		logger.Fatal("JWT_SECRET is not set")
	}
	return cfg
}

// Parse builds a Config from getenv, applying defaults.
func Parse(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		ServerURL:         getenv("SERVER_URL"),
		AuthToken:         strings.TrimSpace(getenv("AUTH_TOKEN")),
		JWTSecret:         getenv("JWT_SECRET"),
		StatusAddr:        getenv("STATUS_ADDR"),
		DatabaseURL:       getenv("DATABASE_URL"),
		HistorySQLitePath: getenv("HISTORY_SQLITE_PATH"),
		RedisAddr:         getenv("REDIS_ADDR"),
		RedisPassword:     getenv("REDIS_PASSWORD"),
		LogLevel:          getenv("LOG_LEVEL"),
		LogJSON:           getenv("LOG_JSON") == "true",
		DevAddr:           getenv("DEV_ADDR"),
	}
	if cfg.ServerURL == "" {
		cfg.ServerURL = "ws://127.0.0.1:8090/ws"
	}
	if cfg.StatusAddr == "" {
		cfg.StatusAddr = "127.0.0.1:8091"
	}
	if cfg.DevAddr == "" {
		cfg.DevAddr = "127.0.0.1:8090"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	var err error
	gateMs, err := intVar(getenv, "GATE_TIMEOUT_MS", 5000)
	if err != nil {
		return nil, err
	}
	cfg.GateTimeout = time.Duration(gateMs) * time.Millisecond

	if cfg.DegradeAfter, err = intVar(getenv, "DEGRADE_AFTER", 3); err != nil {
		return nil, err
	}
	if cfg.RedisDB, err = intVar(getenv, "REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.IntentRateLimit, err = intVar(getenv, "INTENT_RATE_LIMIT", 120); err != nil {
		return nil, err
	}
	if cfg.IntentRateWindow, err = durationVar(getenv, "INTENT_RATE_WINDOW", time.Minute); err != nil {
		return nil, err
	}

	// лимиты ставок, десятичные
	if cfg.MinBet, err = decimalVar(getenv, "MIN_BET", decimal.NewFromInt(1)); err != nil {
		return nil, err
	}
	if cfg.MaxBet, err = decimalVar(getenv, "MAX_BET", decimal.NewFromInt(100000)); err != nil {
		return nil, err
	}
	if cfg.MaxBet.LessThan(cfg.MinBet) {
		return nil, fmt.Errorf("MAX_BET %s is below MIN_BET %s", cfg.MaxBet, cfg.MinBet)
	}
	if cfg.DevStartBalance, err = decimalVar(getenv, "DEV_START_BALANCE", decimal.NewFromInt(1000)); err != nil {
		return nil, err
	}

	cfg.Presets = BuiltinPresets()
	if path := getenv("PRESETS_FILE"); path != "" {
		presets, err := LoadPresets(path)
		if err != nil {
			return nil, err
		}
		cfg.Presets = presets
	}
	return cfg, nil
}

func intVar(getenv func(string) string, key string, def int) (int, error) {
	v := strings.TrimSpace(getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s: expected a non-negative integer, got %q", key, v)
	}
	return n, nil
}

// durationVar accepts Go durations ("90s") or plain seconds ("60").
func durationVar(getenv func(string) string, key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(getenv(key))
	if v == "" {
		return def, nil
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s: expected a positive duration, got %q", key, v)
	}
	return d, nil
}

func decimalVar(getenv func(string) string, key string, def decimal.Decimal) (decimal.Decimal, error) {
	v := strings.TrimSpace(getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil || d.IsNegative() {
		return decimal.Decimal{}, fmt.Errorf("%s: expected a non-negative decimal, got %q", key, v)
	}
	return d, nil
}
