package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

const (
	configFilePathENV = "CONFIG_FILE"
	tokenTelegramENV  = "TELEGRAM_TOKEN"
	databaseDSN       = "DATABASE_DSN"
)

type Exchange struct {
	BaseURL   string        `yaml:"base_url" default:"https://api.india.delta.exchange" validate:"required,url"`
	APIKey    string        `yaml:"api_key"`
	APISecret string        `yaml:"api_secret"`
	ProductID int           `yaml:"product_id" default:"27" validate:"gt=0"`
	Timeout   time.Duration `yaml:"timeout" default:"10s" validate:"gt=0"`
}

type Feed struct {
	WSURL             string        `yaml:"ws_url" default:"wss://fstream.binance.com/ws" validate:"required"`
	Symbol            string        `yaml:"symbol" default:"BTCUSDT" validate:"required"`
	FirstPriceTimeout time.Duration `yaml:"first_price_timeout" default:"30s" validate:"gt=0"`
	SeedFromREST      bool          `yaml:"seed_from_rest" default:"true"`
	RESTBaseURL       string        `yaml:"rest_base_url"`
}

type Redis struct {
	Addr     string `yaml:"addr" default:"localhost:6379" validate:"required"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db" validate:"gte=0"`
	Mode     string `yaml:"mode" default:"list" validate:"oneof=list key"`
	Key      string `yaml:"key"`
}

type Trailing struct {
	TickInterval       time.Duration `yaml:"tick_interval" default:"1s" validate:"gt=0"`
	PositionRefresh    time.Duration `yaml:"position_refresh" default:"5s" validate:"gt=0"`
	FixedStopOffsetPct float64       `yaml:"fixed_stop_offset_pct" default:"0.5" validate:"gte=0"`
	LockFraction       float64       `yaml:"lock_fraction" default:"0.9" validate:"gt=0,lte=1"`
	PositionKey        string        `yaml:"position_key" default:"auto" validate:"oneof=auto composite exchange_id"`
	USDDivisor         float64       `yaml:"usd_divisor" default:"1000" validate:"gt=0"`
}

type Orders struct {
	Quantity               float64       `yaml:"quantity" default:"1" validate:"gt=0"`
	EntryOffsetPct         float64       `yaml:"entry_offset_pct" default:"0.1" validate:"gte=0"`
	SLOffsetPct            float64       `yaml:"sl_offset_pct" default:"0.5" validate:"gte=0"`
	TickSize               float64       `yaml:"tick_size" default:"0.5" validate:"gte=0"`
	SettleDelay            time.Duration `yaml:"settle_delay" default:"2s" validate:"gte=0"`
	PollInterval           time.Duration `yaml:"poll_interval" default:"5s" validate:"gt=0"`
	CloseOppositeOnInvalid bool          `yaml:"close_opposite_on_invalid" default:"true"`
	BracketTriggerMethod   string        `yaml:"bracket_trigger_method" default:"last_traded_price" validate:"oneof=last_traded_price mark_price spot_price"`
}

// Config ...
type Config struct {
	ServiceName string `yaml:"service_name" default:"signal_trader"`
	LogLevel    string `yaml:"log_level" default:"info" validate:"oneof=debug info warn error"`
	// Символ на бирже (Delta), например BTCUSD
	Symbol string `yaml:"symbol" default:"BTCUSD" validate:"required"`

	Exchange Exchange `yaml:"exchange"`
	Feed     Feed     `yaml:"feed"`
	Redis    Redis    `yaml:"redis"`
	Trailing Trailing `yaml:"trailing"`
	Orders   Orders   `yaml:"orders"`

	Telegram struct {
		Token  string `yaml:"token"`
		ChatID int64  `yaml:"chat_id"`
	} `yaml:"telegram"`
	DB     string `yaml:"db_dsn"`
	Health struct {
		Addr       string        `yaml:"addr" default:":8080"`
		StaleAfter time.Duration `yaml:"stale_after" default:"30s" validate:"gte=0"`
	} `yaml:"health"`
	Tracing struct {
		Enabled    bool    `yaml:"enabled"`
		Host       string  `yaml:"host" default:"localhost"`
		Port       int     `yaml:"port" default:"6831"`
		SampleRate float64 `yaml:"sample_rate" default:"1" validate:"gte=0,lte=1"`
	} `yaml:"tracing"`
}

// SignalKey resolves the Redis key for the configured mode.
func (c *Config) SignalKey() string {
	if c.Redis.Key != "" {
		return c.Redis.Key
	}
	if c.Redis.Mode == "key" {
		return "signal"
	}
	return c.Symbol + "_signal"
}

func NewConfig() (*Config, error) {
	_ = godotenv.Load()

	configFileName := getenvDefault(configFilePathENV, "values_local.yaml")
	return Load(filepath.Join("configs", configFileName))
}

// Load reads the YAML at path, fills defaults, applies env overrides and validates.
// A missing file is not an error: defaults and env are enough to start.
func Load(path string) (*Config, error) {
	var config Config
	if err := defaults.Set(&config); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to decode config file %s: %w", path, err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("failed to open config file %s: %w", path, err)
	}

	applyEnv(&config)

	if err := validator.New().Struct(&config); err != nil {
		return nil, fmt.Errorf("config invalid: %w", err)
	}
	return &config, nil
}

func applyEnv(config *Config) {
	config.Symbol = getenvDefault("SYMBOL", config.Symbol)
	config.LogLevel = strings.ToLower(getenvDefault("LOG_LEVEL", config.LogLevel))
	config.Exchange.APIKey = getenvDefault("DELTA_API_KEY", config.Exchange.APIKey)
	config.Exchange.APISecret = getenvDefault("DELTA_API_SECRET", config.Exchange.APISecret)
	config.Exchange.ProductID = intFromEnv("DELTA_PRODUCT_ID", config.Exchange.ProductID)
	config.Redis.Addr = getenvDefault("REDIS_ADDR", config.Redis.Addr)
	config.Redis.Mode = getenvDefault("REDIS_MODE", config.Redis.Mode)
	config.Trailing.FixedStopOffsetPct = floatFromEnv("FIXED_STOP_OFFSET_PERCENT", config.Trailing.FixedStopOffsetPct)
	config.Trailing.TickInterval = durationFromEnv("PROFIT_CHECK_INTERVAL", config.Trailing.TickInterval)
	config.Orders.Quantity = floatFromEnv("QUANTITY", config.Orders.Quantity)
	config.Orders.EntryOffsetPct = floatFromEnv("ORDER_ENTRY_OFFSET_PERCENT", config.Orders.EntryOffsetPct)
	config.Orders.SLOffsetPct = floatFromEnv("ORDER_SL_OFFSET_PERCENT", config.Orders.SLOffsetPct)
	config.Orders.PollInterval = durationFromEnv("SIGNAL_POLL_INTERVAL", config.Orders.PollInterval)
	config.Orders.CloseOppositeOnInvalid = boolFromEnv("CLOSE_OPPOSITE_ON_INVALID", config.Orders.CloseOppositeOnInvalid)
	config.Tracing.Enabled = boolFromEnv("TRACING_ENABLED", config.Tracing.Enabled)

	config.Telegram.Token = getenvDefault(tokenTelegramENV, config.Telegram.Token)
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			config.Telegram.ChatID = id
		}
	}

	config.DB = getenvDefault(databaseDSN, config.DB)
}

func intFromEnv(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func floatFromEnv(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func boolFromEnv(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if v == "1" || v == "true" || v == "TRUE" {
			return true
		}
		if v == "0" || v == "false" || v == "FALSE" {
			return false
		}
	}
	return def
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// durationFromEnv accepts Go durations ("1500ms") and bare seconds ("5").
func durationFromEnv(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(n * float64(time.Second))
	}
	return def
}
