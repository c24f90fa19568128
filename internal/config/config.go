// Package config provides Viper-based configuration loading for the game
// server.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/roamingroutes/undercover-backend/internal/engine"
)

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// GameConfig holds the room rules every game is created with.
type GameConfig struct {
	MinPlayers        int           `mapstructure:"min_players"`
	MaxPlayers        int           `mapstructure:"max_players"`
	DiscussionSeconds int           `mapstructure:"discussion_seconds"`
	VotingSeconds     int           `mapstructure:"voting_seconds"`
	ResultsSeconds    int           `mapstructure:"results_seconds"`
	RoomTTL           time.Duration `mapstructure:"room_ttl"`
	ReapInterval      time.Duration `mapstructure:"reap_interval"`
}

// Rules converts the configured values into the engine's rule set.
func (g GameConfig) Rules() engine.Rules {
	return engine.Rules{
		MinPlayers:    g.MinPlayers,
		MaxPlayers:    g.MaxPlayers,
		DiscussionSec: g.DiscussionSeconds,
		VotingSec:     g.VotingSeconds,
		ResultsSec:    g.ResultsSeconds,
	}
}

type WordsConfig struct {
	// Path is the YAML word-pair catalog location.
	Path string `mapstructure:"path"`
}

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
	Game    GameConfig    `mapstructure:"game"`
	Words   WordsConfig   `mapstructure:"words"`
}

func (c Config) Validate() error {
	var errs []string

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		errs = append(errs, fmt.Sprintf("logging.level must be one of [debug, info, warn, error], got %q", c.Logging.Level))
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		errs = append(errs, fmt.Sprintf("logging.format must be json or console, got %q", c.Logging.Format))
	}
	if c.Game.MinPlayers < 3 {
		errs = append(errs, fmt.Sprintf("game.min_players must be >= 3, got %d", c.Game.MinPlayers))
	}
	if c.Game.MaxPlayers < c.Game.MinPlayers {
		errs = append(errs, "game.max_players must not be below game.min_players")
	}
	if c.Game.DiscussionSeconds < 1 || c.Game.VotingSeconds < 1 || c.Game.ResultsSeconds < 1 {
		errs = append(errs, "game phase timers must all be >= 1 second")
	}
	if c.Game.RoomTTL <= 0 {
		errs = append(errs, "game.room_ttl must be positive")
	}
	if c.Game.ReapInterval <= 0 {
		errs = append(errs, "game.reap_interval must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Load reads configuration from an optional file path, with environment
// variable overrides under the UNDERCOVER_ prefix and built-in defaults.
func Load(path string) (Config, error) {
	v := viper.New()

	v.SetEnvPrefix("UNDERCOVER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("game.min_players", 3)
	v.SetDefault("game.max_players", 10)
	v.SetDefault("game.discussion_seconds", 300)
	v.SetDefault("game.voting_seconds", 60)
	v.SetDefault("game.results_seconds", 15)
	v.SetDefault("game.room_ttl", "1h")
	v.SetDefault("game.reap_interval", "1m")

	v.SetDefault("words.path", "data/wordpairs.yaml")
}
