package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultBooks is the sportsbook allowlist used when `books` is omitted.
var DefaultBooks = []string{"draftkings", "fanduel", "betmgm", "williamhill_us", "espnbet", "ballybet"}

type Config struct {
	SportKey string        `yaml:"sport_key"`
	Timezone string        `yaml:"timezone"` // single zone for local dates, quiet window and trigger time
	Books    []string      `yaml:"books"`    // sportsbook allowlist
	Odds     OddsConfig    `yaml:"odds"`
	Poller   PollerConfig  `yaml:"poller"`
	Trigger  TriggerConfig `yaml:"trigger"`
	Storage  StorageConfig `yaml:"storage"`
	Lease    LeaseConfig   `yaml:"lease"`
	Report   ReportConfig  `yaml:"report"`
	Health   HealthConfig  `yaml:"health"`
	Logging  LoggingConfig `yaml:"logging"`
}

type OddsConfig struct {
	BaseURL   string        `yaml:"base_url"`
	APIKey    string        `yaml:"api_key"` // can be set via ODDS_API_KEY env
	Regions   []string      `yaml:"regions"` // queried in order, one request each
	Timeout   time.Duration `yaml:"timeout"`
	UserAgent string        `yaml:"user_agent"`
}

type PollerConfig struct {
	Interval     time.Duration `yaml:"interval"`
	NoGamesSleep time.Duration `yaml:"no_games_sleep"`
	StartLag     time.Duration `yaml:"start_lag"` // polling resumes this long before the first event
	TickTimeout  time.Duration `yaml:"tick_timeout"`
}

type TriggerConfig struct {
	TimeOfDay string        `yaml:"time_of_day"` // "HH:MM" in Config.Timezone
	Timeout   time.Duration `yaml:"timeout"`
}

type StorageConfig struct {
	Backend  string         `yaml:"backend"` // "postgres" or "filesystem"
	Root     string         `yaml:"root"`    // filesystem backend root dir
	Postgres PostgresConfig `yaml:"postgres"`
	Retry    RetryConfig    `yaml:"retry"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"` // can be set via POSTGRES_DSN env
}

type RetryConfig struct {
	MaxAttempts  int           `yaml:"max_attempts"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
}

type LeaseConfig struct {
	RedisAddr     string        `yaml:"redis_addr"` // empty = no lease, single writer not enforced
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	TTL           time.Duration `yaml:"ttl"`
}

type ReportConfig struct {
	Enabled  bool           `yaml:"enabled"`
	PDF      bool           `yaml:"pdf"` // render through headless Chrome
	Telegram TelegramConfig `yaml:"telegram"`
}

type TelegramConfig struct {
	Token  string `yaml:"token"` // can be set via TELEGRAM_BOT_TOKEN env
	ChatID int64  `yaml:"chat_id"`
}

type HealthConfig struct {
	Port              int           `yaml:"port"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`     // DEBUG, INFO, WARN, ERROR
	JSONFile string `yaml:"json_file"` // optional extra JSON sink
}

func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML, applies defaults and env overrides, then validates.
func Parse(data []byte) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyDefaults()
	config.applyEnv()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.SportKey == "" {
		c.SportKey = "basketball_nba"
	}
	if c.Timezone == "" {
		c.Timezone = "America/Los_Angeles"
	}
	if len(c.Books) == 0 {
		c.Books = append([]string(nil), DefaultBooks...)
	}
	if c.Odds.BaseURL == "" {
		c.Odds.BaseURL = "https://api.the-odds-api.com"
	}
	if len(c.Odds.Regions) == 0 {
		c.Odds.Regions = []string{"us", "us2"}
	}
	if c.Odds.Timeout <= 0 {
		c.Odds.Timeout = 20 * time.Second
	}
	if c.Poller.Interval == 0 {
		c.Poller.Interval = 30 * time.Second
	}
	if c.Poller.NoGamesSleep <= 0 {
		c.Poller.NoGamesSleep = 12 * time.Hour
	}
	if c.Poller.StartLag <= 0 {
		c.Poller.StartLag = 5 * time.Minute
	}
	if c.Poller.TickTimeout <= 0 {
		c.Poller.TickTimeout = 2 * time.Minute
	}
	if c.Trigger.TimeOfDay == "" {
		c.Trigger.TimeOfDay = "02:30"
	}
	if c.Trigger.Timeout <= 0 {
		c.Trigger.Timeout = 30 * time.Minute
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = "filesystem"
	}
	if c.Storage.Root == "" {
		c.Storage.Root = "data"
	}
	if c.Storage.Retry.MaxAttempts <= 0 {
		c.Storage.Retry.MaxAttempts = 5
	}
	if c.Storage.Retry.InitialDelay <= 0 {
		c.Storage.Retry.InitialDelay = 500 * time.Millisecond
	}
	if c.Storage.Retry.MaxDelay <= 0 {
		c.Storage.Retry.MaxDelay = 30 * time.Second
	}
	if c.Lease.TTL <= 0 {
		c.Lease.TTL = time.Hour
	}
	if c.Health.ReadHeaderTimeout <= 0 {
		c.Health.ReadHeaderTimeout = 5 * time.Second
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "INFO"
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv("ODDS_API_KEY"); v != "" {
		c.Odds.APIKey = v
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		c.Storage.Postgres.DSN = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Report.Telegram.Token = v
	}
}

// Validate reports every problem found, joined.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.SportKey) == "" {
		errs = append(errs, errors.New("sport_key is required"))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	if len(c.Books) == 0 {
		errs = append(errs, errors.New("books must not be empty"))
	}
	if len(c.Odds.Regions) == 0 {
		errs = append(errs, errors.New("odds.regions must not be empty"))
	}
	// Tick keys have one-second resolution and ticks align to wall-clock
	// multiples of the interval, so it must be whole seconds dividing an hour.
	switch iv := c.Poller.Interval; {
	case iv < time.Second:
		errs = append(errs, fmt.Errorf("poller.interval must be at least 1s, got %s", iv))
	case iv%time.Second != 0 || time.Hour%iv != 0:
		errs = append(errs, fmt.Errorf("poller.interval must be whole seconds dividing an hour, got %s", iv))
	}
	if _, _, err := c.Trigger.Clock(); err != nil {
		errs = append(errs, err)
	}
	if c.Lease.TTL <= c.Trigger.Timeout {
		errs = append(errs, fmt.Errorf("lease.ttl (%s) must exceed trigger.timeout (%s)", c.Lease.TTL, c.Trigger.Timeout))
	}
	switch c.Storage.Backend {
	case "filesystem":
	case "postgres":
		if c.Storage.Postgres.DSN == "" {
			errs = append(errs, errors.New("storage.postgres.dsn is required for postgres backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage.backend %q", c.Storage.Backend))
	}
	return errors.Join(errs...)
}

// Location loads Timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Clock parses TimeOfDay into hour and minute.
func (t TriggerConfig) Clock() (hour, minute int, err error) {
	parsed, err := time.Parse("15:04", t.TimeOfDay)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid trigger.time_of_day %q: %w", t.TimeOfDay, err)
	}
	return parsed.Hour(), parsed.Minute(), nil
}
