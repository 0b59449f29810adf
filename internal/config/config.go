package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"SignalRelay/internal/calendar"
)

// Config holds all application configuration.
type Config struct {
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Discord struct {
		Token       string   `yaml:"token"`
		ChannelName string   `yaml:"channel_name" default:"bobbypro-signals"`
		ChannelIDs  []string `yaml:"channel_ids"`
	} `yaml:"discord"`
	Store struct {
		Driver     string `yaml:"driver" default:"sqlite" validate:"oneof=sqlite memory"`
		SQLitePath string `yaml:"sqlite_path" default:"data/signals.db"`
	} `yaml:"store"`
	Schedule struct {
		Timezone             string        `yaml:"timezone" default:"America/New_York" validate:"required"`
		MarketOpen           string        `yaml:"market_open" default:"09:30" validate:"required"`
		MiddayDecision       string        `yaml:"midday_decision" default:"11:33" validate:"required"`
		Midnight             string        `yaml:"midnight" default:"00:00" validate:"required"`
		SignalInterval       time.Duration `yaml:"signal_interval" default:"30s" validate:"min=1s"`
		AnnouncementInterval time.Duration `yaml:"announcement_interval" default:"60s" validate:"min=1s"`
	} `yaml:"schedule"`
	Log struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format string `yaml:"format" default:"json" validate:"oneof=json console"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"log"`
	HTTP struct {
		Disabled bool   `yaml:"disabled"`
		Addr     string `yaml:"addr" default:":9090"`
	} `yaml:"http"`
	Proxy string `yaml:"proxy"`
}

var validate = validator.New()

// Load reads .env and the YAML file (both optional), applies environment
// variable overrides, then fills defaults.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

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

	// Environment variable overrides
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("DISCORD_TOKEN"); v != "" {
		cfg.Discord.Token = v
	}
	if v := os.Getenv("DISCORD_CHANNEL_NAME"); v != "" {
		cfg.Discord.ChannelName = v
	}
	if v := os.Getenv("DISCORD_CHANNEL_IDS"); v != "" {
		cfg.Discord.ChannelIDs = splitList(v)
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Store.SQLitePath = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}

	// Defaults
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}

	return cfg, nil
}

// Validate checks tags, then the cross-field rules tags cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Discord.Token == "" && (c.Telegram.BotToken == "" || c.Telegram.ChatID == "") {
		return fmt.Errorf("either discord.token or telegram.bot_token and telegram.chat_id are required")
	}
	if c.Store.Driver == "sqlite" && c.Store.SQLitePath == "" {
		return fmt.Errorf("store.sqlite_path is required for the sqlite driver")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if _, err := c.Calendar(); err != nil {
		return err
	}
	return nil
}

// Location loads the business timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Schedule.Timezone)
	if err != nil {
		return nil, fmt.Errorf("schedule.timezone: %w", err)
	}
	return loc, nil
}

// Calendar builds the announcement calendar from the schedule section.
func (c *Config) Calendar() (*calendar.Calendar, error) {
	loc, err := c.Location()
	if err != nil {
		return nil, err
	}
	open, err := calendar.ParseClock(c.Schedule.MarketOpen)
	if err != nil {
		return nil, fmt.Errorf("schedule.market_open: %w", err)
	}
	midday, err := calendar.ParseClock(c.Schedule.MiddayDecision)
	if err != nil {
		return nil, fmt.Errorf("schedule.midday_decision: %w", err)
	}
	midnight, err := calendar.ParseClock(c.Schedule.Midnight)
	if err != nil {
		return nil, fmt.Errorf("schedule.midnight: %w", err)
	}
	return calendar.New(loc, open, midday, midnight), nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
