package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Symbols []string `yaml:"symbols" default:"[\"BTCUSDT\",\"ETHUSDT\",\"BNBUSDT\",\"ADAUSDT\",\"DOGEUSDT\"]" validate:"min=1,dive,required"`
	Market  struct {
		BaseURL string        `yaml:"base_url" default:"https://api.binance.com" validate:"required,url"`
		Timeout time.Duration `yaml:"timeout" default:"30s"`
	} `yaml:"market"`
	Archive struct {
		BasePath string `yaml:"base_path" default:"data/archive" validate:"required"`
	} `yaml:"archive"`
	Schedule struct {
		IngestCron   string `yaml:"ingest_cron" default:"0 * * * * *" validate:"required"`
		ExportCron   string `yaml:"export_cron" default:"0 0 * * * *" validate:"required"`
		ForecastCron string `yaml:"forecast_cron" default:"0 30 0 * * *" validate:"required"`
	} `yaml:"schedule"`
	Backfill struct {
		Disabled      bool          `yaml:"disabled"`
		Delay         time.Duration `yaml:"delay" default:"1s"`
		LookbackHours int           `yaml:"lookback_hours" default:"24" validate:"gte=1,lte=1000"`
		Interval      string        `yaml:"interval" default:"1h" validate:"required"`
	} `yaml:"backfill"`
	Batch struct {
		Engine string `yaml:"engine" default:"local" validate:"oneof=local clickhouse"`
		Local  struct {
			Workers int `yaml:"workers" default:"4" validate:"gte=1"`
		} `yaml:"local"`
		ClickHouse struct {
			Host             string        `yaml:"host"`
			Port             int           `yaml:"port" default:"9000"`
			Database         string        `yaml:"database" default:"default"`
			User             string        `yaml:"user" default:"default"`
			Password         string        `yaml:"password"`
			UseHTTP          bool          `yaml:"use_http"`
			DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
			ReadTimeout      time.Duration `yaml:"read_timeout" default:"60s"`
			MaxExecutionTime time.Duration `yaml:"max_execution_time"`
			// ArchiveRoot is the archive base path as seen from the ClickHouse server's user_files.
			ArchiveRoot string `yaml:"archive_root"`
		} `yaml:"clickhouse"`
	} `yaml:"batch"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path" default:"data/cryptopulse.db"`
	} `yaml:"database"`
	Server struct {
		Disabled        bool          `yaml:"disabled"`
		Port            int           `yaml:"port" default:"8080" validate:"gte=1,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"30s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format string `yaml:"format" default:"console" validate:"oneof=console json"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"log"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Proxy      string `yaml:"proxy"`
	RunOnStart bool   `yaml:"run_on_start"`
}

var validate = validator.New()

// Load reads config from a YAML file, then applies environment variable overrides and defaults.
// A missing file is not an error: defaults and environment still apply.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)

	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	for i, s := range cfg.Symbols {
		cfg.Symbols[i] = strings.ToUpper(strings.TrimSpace(s))
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("SYMBOLS"); v != "" {
		cfg.Symbols = strings.Split(v, ",")
	}
	if v := os.Getenv("MARKET_BASE_URL"); v != "" {
		cfg.Market.BaseURL = v
	}
	if v := os.Getenv("ARCHIVE_BASE_PATH"); v != "" {
		cfg.Archive.BasePath = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("CRON_INGEST"); v != "" {
		cfg.Schedule.IngestCron = v
	}
	if v := os.Getenv("CRON_EXPORT"); v != "" {
		cfg.Schedule.ExportCron = v
	}
	if v := os.Getenv("CRON_FORECAST"); v != "" {
		cfg.Schedule.ForecastCron = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("BATCH_ENGINE"); v != "" {
		cfg.Batch.Engine = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		cfg.Batch.ClickHouse.Host = v
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		cfg.Batch.ClickHouse.Password = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if os.Getenv("RUN_ON_START") == "true" {
		cfg.RunOnStart = true
	}
}

// Validate checks field constraints declared on the struct.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}
	if c.Batch.Engine == "clickhouse" && c.Batch.ClickHouse.Host == "" {
		return fmt.Errorf("batch.clickhouse.host is required when batch.engine is clickhouse")
	}
	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		return fmt.Errorf("telegram.bot_token and telegram.chat_id must be set together")
	}
	return nil
}

// TelegramEnabled reports whether the notifier should be started.
func (c *Config) TelegramEnabled() bool {
	return c.Telegram.BotToken != "" && c.Telegram.ChatID != ""
}
