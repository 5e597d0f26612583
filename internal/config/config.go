package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	apperrors "pricegrab/internal/errors"
)

// Config represents the complete application configuration.
//
// Environment keys derive from the field names under the PRICEGRAB prefix
// (PRICEGRAB_STORE_PATH, PRICEGRAB_SOURCE_SYMBOL, ...). No field carries an
// envconfig name tag: a name tag doubles as an unprefixed alternative key,
// which lets host variables like $PATH silently override the configuration.
type Config struct {
	Source   SourceConfig   `yaml:"source"`
	Store    StoreConfig    `yaml:"store"`
	Calendar CalendarConfig `yaml:"calendar"`
	Audit    AuditConfig    `yaml:"audit"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// SourceConfig describes where and how the daily quote row is fetched
type SourceConfig struct {
	// URL of the symbol's historical-data page.
	URL string `yaml:"url"`
	// Symbol is used for logging and for trading-calendar selection.
	Symbol    string        `yaml:"symbol"`
	Timeout   time.Duration `yaml:"timeout"`
	UserAgent string        `yaml:"user_agent" split_words:"true"`
	// UseBrowser switches the fetch collaborator to headless Chrome for
	// pages that only render the quote table under JavaScript.
	UseBrowser bool `yaml:"use_browser" split_words:"true"`
}

// StoreConfig describes the destination workbook
type StoreConfig struct {
	Path  string `yaml:"path"`
	Sheet string `yaml:"sheet"`
	// WeekCloseDay is the real-world weekday on which the most recent row is
	// treated as the last trading day of its week. The default Saturday
	// matches a scraper scheduled daily: the Saturday run finds no new
	// session and stamps Friday's row.
	WeekCloseDay string `yaml:"week_close_day" split_words:"true"`
}

// CalendarConfig controls the advisory trading-calendar lookup
type CalendarConfig struct {
	Enabled bool `yaml:"enabled"`
	// MIC is the ISO 10383 market identifier, e.g. "xnys".
	MIC string `yaml:"mic"`
}

// AuditConfig controls the sqlite run-history recorder
type AuditConfig struct {
	Enabled bool   `yaml:"enabled"`
	DBPath  string `yaml:"db_path" split_words:"true"`
}

// ScheduleConfig controls daemon mode
type ScheduleConfig struct {
	// Cron is a six-field spec (with seconds), e.g. "0 30 14 * * *".
	Cron string `yaml:"cron"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path" split_words:"true"`
}

// Default returns the built-in configuration. YAML and environment
// overrides are applied on top of this, so zero values never leak through.
func Default() Config {
	return Config{
		Source: SourceConfig{
			Symbol:    "CPSS",
			URL:       "https://finance.yahoo.com/quote/CPSS/history?p=CPSS",
			Timeout:   30 * time.Second,
			UserAgent: "Mozilla/5.0 (compatible; pricegrab/1.0)",
		},
		Store: StoreConfig{
			Path:         "PriceGrab.xlsx",
			Sheet:        "volume limit",
			WeekCloseDay: "Saturday",
		},
		Calendar: CalendarConfig{
			Enabled: true,
			MIC:     "xnys",
		},
		Audit: AuditConfig{
			Enabled: false,
			DBPath:  "pricegrab.db",
		},
		Schedule: ScheduleConfig{
			// Weekdays at 14:30 local; the source finalizes the session
			// around 2pm PT.
			Cron: "0 30 14 * * *",
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "console",
			FilePath: "logs/pricegrab.log",
		},
	}
}

// Load builds the effective configuration: built-in defaults, then the YAML
// file at path (if it exists), then PRICEGRAB_* environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, apperrors.NewConfigError(fmt.Sprintf("failed to parse config file %s", path), err)
			}
		} else if !os.IsNotExist(err) {
			return nil, apperrors.NewConfigError(fmt.Sprintf("failed to read config file %s", path), err)
		}
	}

	if err := envconfig.Process("PRICEGRAB", &cfg); err != nil {
		return nil, apperrors.NewConfigError("failed to load config from env", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the effective configuration for values the run cannot
// proceed without.
func (c *Config) Validate() error {
	if c.Source.URL == "" {
		return apperrors.NewConfigError("source.url must be set", nil)
	}
	if c.Store.Path == "" {
		return apperrors.NewConfigError("store.path must be set", nil)
	}
	if c.Store.Sheet == "" {
		return apperrors.NewConfigError("store.sheet must be set", nil)
	}
	if _, err := c.WeekCloseWeekday(); err != nil {
		return err
	}
	if c.Source.Timeout <= 0 {
		return apperrors.NewConfigError("source.timeout must be positive", nil)
	}
	switch strings.ToLower(c.Logging.Output) {
	case "console", "file", "both":
	default:
		return apperrors.NewConfigError(fmt.Sprintf("logging.output %q must be console, file or both", c.Logging.Output), nil)
	}
	return nil
}

// WeekCloseWeekday parses Store.WeekCloseDay into a time.Weekday.
func (c *Config) WeekCloseWeekday() (time.Weekday, error) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(d.String(), c.Store.WeekCloseDay) {
			return d, nil
		}
	}
	return 0, apperrors.NewConfigError(fmt.Sprintf("store.week_close_day %q is not a weekday name", c.Store.WeekCloseDay), nil)
}
