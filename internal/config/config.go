package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mattmezza/alertdesk/internal/instance"
	"github.com/mattmezza/alertdesk/internal/notifier"
	"github.com/mattmezza/alertdesk/internal/util"
)

const envPrefix = "ALERTDESK_"

type Config struct {
	Server    ServerConfig         `yaml:"server"`
	Client    ClientConfig         `yaml:"client"`
	Console   ConsoleConfig        `yaml:"console"`
	Notify    NotifyConfig         `yaml:"notify"`
	Templates TemplateConfig       `yaml:"templates"`
	Log       LogConfig            `yaml:"log"`
	Instances []SeedInstanceConfig `yaml:"instances"`
}

type ServerConfig struct {
	Listen             string  `yaml:"listen"`
	DBPath             string  `yaml:"db_path"`
	ReadTimeoutStr     string  `yaml:"read_timeout"`
	WriteTimeoutStr    string  `yaml:"write_timeout"`
	ShutdownTimeoutStr string  `yaml:"shutdown_timeout"`
	TestRateLimit      float64 `yaml:"test_rate_limit"` // test sends per second
	TestBurst          int     `yaml:"test_burst"`

	ReadTimeout     time.Duration `yaml:"-"` // Parsed
	WriteTimeout    time.Duration `yaml:"-"` // Parsed
	ShutdownTimeout time.Duration `yaml:"-"` // Parsed
}

type ClientConfig struct {
	URL        string        `yaml:"url"`
	TimeoutStr string        `yaml:"timeout"`
	Timeout    time.Duration `yaml:"-"` // Parsed
}

type ConsoleConfig struct {
	Locale string `yaml:"locale"`
	// Permissions lists the permission paths (or single segment globs)
	// granted to the console user.
	Permissions []string `yaml:"permissions"`
}

type NotifyConfig struct {
	DryRun      bool   `yaml:"dry_run"`
	MaxRetries  uint64 `yaml:"max_retries"`
	HistorySize int    `yaml:"history_size"`
}

type TemplateConfig struct {
	TestTitle   string `yaml:"test_title"`
	TestContent string `yaml:"test_content"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// SeedInstanceConfig is an alert instance created by `serve` when no
// instance with the same name exists yet.
type SeedInstanceConfig struct {
	Name    string                 `yaml:"name"`
	Type    string                 `yaml:"type"`
	Enabled *bool                  `yaml:"enabled"`
	Params  map[string]interface{} `yaml:"params"`
}

// Form returns the editor values for the seed.
func (s SeedInstanceConfig) Form() (instance.Form, error) {
	t, err := instance.ParseType(s.Type)
	if err != nil {
		return instance.Form{}, fmt.Errorf("instance '%s': %w", s.Name, err)
	}
	enabled := true
	if s.Enabled != nil {
		enabled = *s.Enabled
	}
	params := s.Params
	if params == nil {
		params = map[string]interface{}{}
	}
	return instance.Form{Name: s.Name, Type: t, Enabled: enabled, Params: params}, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	if err := cfg.finish(); err != nil {
		// Defaults always parse.
		panic(err)
	}
	return cfg
}

func LoadConfig(filePath string) (*Config, error) {
	if filePath == "" {
		cfg := &Config{}
		applyEnv(cfg)
		if err := cfg.finish(); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", filePath, err)
	}

	var cfg Config
	err = yaml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal config YAML from %s: %w", filePath, err)
	}
	applyEnv(&cfg)
	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv overrides endpoints and secrets from ALERTDESK_* variables.
func applyEnv(cfg *Config) {
	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(envPrefix + key); ok && v != "" {
			*dst = v
		}
	}
	setString("LISTEN", &cfg.Server.Listen)
	setString("DB_PATH", &cfg.Server.DBPath)
	setString("URL", &cfg.Client.URL)
	setString("LOCALE", &cfg.Console.Locale)
	setString("LOG_LEVEL", &cfg.Log.Level)
	setString("LOG_FORMAT", &cfg.Log.Format)
	if v := os.Getenv(envPrefix + "PERMISSIONS"); v != "" {
		cfg.Console.Permissions = util.SplitList(v)
	}
	if v := os.Getenv(envPrefix + "DRY_RUN"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Notify.DryRun = b
		}
	}

	// Secrets of seeded instances: ALERTDESK_<SECRET>_<INSTANCE_NAME>,
	// e.g. ALERTDESK_SMTP_PASSWORD_OPS_MAIL.
	for i := range cfg.Instances {
		seed := &cfg.Instances[i]
		t, err := instance.ParseType(seed.Type)
		if err != nil {
			continue // reported by finish
		}
		nameKey := util.EnvKey(seed.Name)
		for envKey, param := range secretParams[t] {
			if v := os.Getenv(envPrefix + envKey + "_" + nameKey); v != "" {
				if seed.Params == nil {
					seed.Params = make(map[string]interface{})
				}
				seed.Params[param] = v
			}
		}
	}
}

// secretParams maps env variable stems to the params key they fill.
var secretParams = map[instance.Type]map[string]string{
	instance.TypeDingTalk: {"WEBHOOK_SECRET": "secret"},
	instance.TypeFeiShu:   {"WEBHOOK_SECRET": "secret"},
	instance.TypeEmail:    {"SMTP_PASSWORD": "password"},
	instance.TypeSms:      {"SMS_SECRET": "accessKeySecret"},
	instance.TypeTelegram: {"TELEGRAM_TOKEN": "botToken"},
}

// finish validates the configuration and fills defaults and derived values.
func (cfg *Config) finish() error {
	var err error
	if strings.TrimSpace(cfg.Server.Listen) == "" {
		cfg.Server.Listen = ":8888"
	}
	if cfg.Server.DBPath == "" {
		cfg.Server.DBPath = "alertdesk.db"
	}
	if cfg.Server.ReadTimeoutStr == "" {
		cfg.Server.ReadTimeoutStr = "10s"
	}
	if cfg.Server.WriteTimeoutStr == "" {
		cfg.Server.WriteTimeoutStr = "30s"
	}
	if cfg.Server.ShutdownTimeoutStr == "" {
		cfg.Server.ShutdownTimeoutStr = "5s"
	}
	if cfg.Server.ReadTimeout, err = util.ParseDurationString(cfg.Server.ReadTimeoutStr); err != nil {
		return fmt.Errorf("server has invalid read_timeout: %w", err)
	}
	if cfg.Server.WriteTimeout, err = util.ParseDurationString(cfg.Server.WriteTimeoutStr); err != nil {
		return fmt.Errorf("server has invalid write_timeout: %w", err)
	}
	if cfg.Server.ShutdownTimeout, err = util.ParseDurationString(cfg.Server.ShutdownTimeoutStr); err != nil {
		return fmt.Errorf("server has invalid shutdown_timeout: %w", err)
	}
	if cfg.Server.TestRateLimit < 0 {
		return fmt.Errorf("server test_rate_limit must not be negative, got %v", cfg.Server.TestRateLimit)
	}
	if cfg.Server.TestRateLimit == 0 {
		cfg.Server.TestRateLimit = 1
	}
	if cfg.Server.TestBurst <= 0 {
		cfg.Server.TestBurst = 3
	}

	if cfg.Client.URL == "" {
		cfg.Client.URL = "http://localhost:8888"
	}
	cfg.Client.URL = strings.TrimRight(cfg.Client.URL, "/")
	if cfg.Client.TimeoutStr == "" {
		cfg.Client.TimeoutStr = "15s"
	}
	if cfg.Client.Timeout, err = util.ParseDurationString(cfg.Client.TimeoutStr); err != nil {
		return fmt.Errorf("client has invalid timeout: %w", err)
	}

	if cfg.Console.Locale == "" {
		cfg.Console.Locale = "en"
	}
	if cfg.Console.Permissions == nil {
		cfg.Console.Permissions = []string{"/registration/alert/instance/*"}
	}

	if cfg.Notify.HistorySize <= 0 {
		cfg.Notify.HistorySize = 20
	}

	switch strings.ToLower(cfg.Log.Format) {
	case "":
		cfg.Log.Format = "console"
	case "console", "json":
		cfg.Log.Format = strings.ToLower(cfg.Log.Format)
	default:
		return fmt.Errorf("log has invalid format '%s' (want console or json)", cfg.Log.Format)
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	seen := map[string]bool{}
	for i, seed := range cfg.Instances {
		if strings.TrimSpace(seed.Name) == "" {
			return fmt.Errorf("instance at index %d missing name", i)
		}
		key := strings.ToLower(strings.TrimSpace(seed.Name))
		if seen[key] {
			return fmt.Errorf("instance '%s' is defined more than once", seed.Name)
		}
		seen[key] = true
		if _, err := instance.ParseType(seed.Type); err != nil {
			return fmt.Errorf("instance '%s' has unknown type '%s'", seed.Name, seed.Type)
		}
	}

	// Default templates
	if cfg.Templates.TestTitle == "" {
		cfg.Templates.TestTitle = notifier.DefaultTestTitle
	}
	if cfg.Templates.TestContent == "" {
		cfg.Templates.TestContent = notifier.DefaultTestContent
	}
	return nil
}
