package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config is the top-level configuration.
type Config struct {
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
	Tokens  TokensConfig  `yaml:"tokens" mapstructure:"tokens"`
	Melt    MeltConfig    `yaml:"melt" mapstructure:"melt"`
	JSON    JSONConfig    `yaml:"json" mapstructure:"json"`
	Watch   WatchConfig   `yaml:"watch" mapstructure:"watch"`
	Catalog CatalogConfig `yaml:"catalog" mapstructure:"catalog"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
}

// TokensConfig locates the token dictionaries.
type TokensConfig struct {
	// Dir holds <game>.txt and <game>.yaml dictionaries.
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// MeltConfig configures binary to plaintext conversion.
type MeltConfig struct {
	UnknownKey  string `yaml:"unknown_key" mapstructure:"unknown_key"`
	Retain      bool   `yaml:"retain" mapstructure:"retain"`
	Concurrency int    `yaml:"concurrency" mapstructure:"concurrency"`
}

// JSONConfig configures JSON conversion.
type JSONConfig struct {
	DuplicateKeys string `yaml:"duplicate_keys" mapstructure:"duplicate_keys"`
	// Encoding applies to files that are not game saves.
	Encoding string `yaml:"encoding" mapstructure:"encoding"`
}

// WatchConfig configures the snapshot watcher.
type WatchConfig struct {
	DebounceMs     int `yaml:"debounce_ms" mapstructure:"debounce_ms"`
	RetryAttempts  int `yaml:"retry_attempts" mapstructure:"retry_attempts"`
	RetryBackoffMs int `yaml:"retry_backoff_ms" mapstructure:"retry_backoff_ms"`
}

// CatalogConfig configures the optional snapshot catalog. An empty driver
// disables it.
type CatalogConfig struct {
	Driver string `yaml:"driver" mapstructure:"driver"`
	DSN    string `yaml:"dsn" mapstructure:"dsn"`
	// BreakerThreshold consecutive failures stop catalog writes for
	// BreakerCooldownSecs.
	BreakerThreshold    int `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerCooldownSecs int `yaml:"breaker_cooldown_secs" mapstructure:"breaker_cooldown_secs"`
}

// ServerConfig configures the HTTP conversion service.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	MaxBodyMB      int      `yaml:"max_body_mb" mapstructure:"max_body_mb"`
	RateLimit      float64  `yaml:"rate_limit" mapstructure:"rate_limit"`
	RateBurst      int      `yaml:"rate_burst" mapstructure:"rate_burst"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if dir := userConfigDir(); dir != "" {
		v.AddConfigPath(dir)
	}

	// Environment
	v.SetEnvPrefix("RAKALY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("tokens.dir", "")
	v.SetDefault("melt.unknown_key", "error")
	v.SetDefault("melt.retain", false)
	v.SetDefault("melt.concurrency", 4)
	v.SetDefault("json.duplicate_keys", "preserve")
	v.SetDefault("json.encoding", "windows-1252")
	v.SetDefault("watch.debounce_ms", 500)
	v.SetDefault("watch.retry_attempts", 3)
	v.SetDefault("watch.retry_backoff_ms", 100)
	v.SetDefault("catalog.driver", "")
	v.SetDefault("catalog.dsn", "")
	v.SetDefault("catalog.breaker_threshold", 3)
	v.SetDefault("catalog.breaker_cooldown_secs", 60)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.max_body_mb", 256)
	v.SetDefault("server.rate_limit", 5.0)
	v.SetDefault("server.rate_burst", 10)
	v.SetDefault("server.allowed_origins", []string{"*"})

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

func userConfigDir() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "rakaly")
}

// Validate checks the settings a command depends on. mode is the command
// name; settings unused by that command are not checked.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch strings.ToLower(c.Melt.UnknownKey) {
	case "", "error", "stringify":
	default:
		problems = append(problems, "melt.unknown_key must be error or stringify")
	}
	if c.Melt.Concurrency < 1 {
		problems = append(problems, "melt.concurrency must be at least 1")
	}
	switch strings.ToLower(c.JSON.DuplicateKeys) {
	case "", "preserve", "group", "key-value-pairs", "kvp":
	default:
		problems = append(problems, "json.duplicate_keys must be preserve, group or key-value-pairs")
	}
	switch strings.ToLower(c.JSON.Encoding) {
	case "", "utf-8", "utf8", "windows-1252", "windows1252", "cp1252":
	default:
		problems = append(problems, "json.encoding must be utf-8 or windows-1252")
	}
	switch c.Catalog.Driver {
	case "":
	case "sqlite", "postgres":
		if c.Catalog.DSN == "" {
			problems = append(problems, "catalog.dsn is required when catalog.driver is set")
		}
	default:
		problems = append(problems, "catalog.driver must be sqlite or postgres")
	}

	switch mode {
	case "watch":
		if c.Watch.DebounceMs < 0 {
			problems = append(problems, "watch.debounce_ms must not be negative")
		}
	case "serve":
		if c.Server.Port < 1 || c.Server.Port > 65535 {
			problems = append(problems, "server.port must be between 1 and 65535")
		}
		if c.Server.MaxBodyMB < 1 {
			problems = append(problems, "server.max_body_mb must be at least 1")
		}
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger. Output goes to stderr so
// converted documents can be written to stdout.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.DisableStacktrace = true
	} else {
		zapCfg = zap.NewProductionConfig()
	}
	zapCfg.OutputPaths = []string{"stderr"}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
