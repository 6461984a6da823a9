package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application, parsed from a
// single YAML document. Typed fields cover what the wiring needs; the
// raw two-level map backs case-insensitive Lookup for everything else.
type Config struct {
	DB          DBConfig          `yaml:"db"`
	Redis       RedisConfig       `yaml:"redis"`
	Bot         BotConfig         `yaml:"bot"`
	Lavalink    LavalinkConfig    `yaml:"lavalink"`
	Tags        TagsConfig        `yaml:"tags"`
	Logging     map[string]string `yaml:"logging"`
	FileLogging FileLoggingConfig `yaml:"file_logging"`
	Commands    CommandsConfig    `yaml:"commands"`
	TMDB        TMDBConfig        `yaml:"tmdb"`

	raw map[string]map[string]string
}

// DBConfig holds relational store configuration.
type DBConfig struct {
	DSN        string `yaml:"DSN"`
	SQLLogging bool   `yaml:"SQL_logging"`
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// BotConfig holds Discord-specific configuration.
type BotConfig struct {
	DiscordToken    string `yaml:"DISCORD_TOKEN"`
	DefaultPrefix   string `yaml:"DEFAULT_PREFIX"`
	Color           int    `yaml:"color"`
	SpecialRoleName string `yaml:"SPECIAL_ROLE_NAME"`
}

// LavalinkConfig holds audio gateway configuration.
type LavalinkConfig struct {
	IP       string `yaml:"IP"`
	Password string `yaml:"PASSWORD"`
	Connect  bool   `yaml:"connect"`
}

// TagsConfig holds tag subsystem configuration.
type TagsConfig struct {
	PredictionAccuracy float64 `yaml:"prediction_accuracy"`
}

// FileLoggingConfig holds log file configuration.
type FileLoggingConfig struct {
	Enable bool   `yaml:"enable"`
	Path   string `yaml:"path"`
	Level  string `yaml:"level"`
}

// CommandsConfig holds command subsystem configuration.
type CommandsConfig struct {
	PollSyncTime time.Duration `yaml:"poll_sync_time"`
}

// TMDBConfig holds the TMDB API secret.
type TMDBConfig struct {
	Secret string `yaml:"SECRET"`
}

// UnknownPathError reports a Lookup against a section or key the config
// document does not contain.
type UnknownPathError struct {
	Section string
	Key     string
}

func (e *UnknownPathError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("unknown config section %q", e.Section)
	}
	return fmt.Sprintf("unknown config path %q.%q", e.Section, e.Key)
}

// Load reads and validates the YAML config at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse parses a YAML config document.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// Second pass builds the case-folded lookup map.
	var generic map[string]map[string]interface{}
	if err := yaml.Unmarshal(data, &generic); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.raw = make(map[string]map[string]string, len(generic))
	for section, keys := range generic {
		folded := make(map[string]string, len(keys))
		for key, value := range keys {
			folded[strings.ToLower(key)] = fmt.Sprintf("%v", value)
		}
		cfg.raw[strings.ToLower(section)] = folded
	}

	if cfg.Bot.DiscordToken == "" {
		return nil, fmt.Errorf("bot.DISCORD_TOKEN is required")
	}
	if cfg.Commands.PollSyncTime == 0 {
		cfg.Commands.PollSyncTime = 30 * time.Second
	}
	return &cfg, nil
}

// Lookup resolves a scalar by case-insensitive section and key.
func (c *Config) Lookup(section, key string) (string, error) {
	keys, ok := c.raw[strings.ToLower(section)]
	if !ok {
		return "", &UnknownPathError{Section: section}
	}
	value, ok := keys[strings.ToLower(key)]
	if !ok {
		return "", &UnknownPathError{Section: section, Key: key}
	}
	return value, nil
}
