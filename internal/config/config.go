// Package config loads server settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/DoyleJ11/nabi-draft/internal/engine"
)

type Config struct {
	Addr     string `env:"NABI_ADDR" envDefault:":8080"`
	LogLevel string `env:"NABI_LOG_LEVEL" envDefault:"info"`
	LogDev   bool   `env:"NABI_LOG_DEV" envDefault:"false"`

	// DatabaseURL enables the gorm/postgres champion catalog and match archive.
	DatabaseURL string `env:"DATABASE_URL"`
	// RedisAddr enables the confirmed-result cache.
	RedisAddr     string        `env:"REDIS_ADDR"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB" envDefault:"0"`
	ResultTTL     time.Duration `env:"NABI_RESULT_TTL" envDefault:"168h"`
	// NatsURL enables mirroring session events to NATS.
	NatsURL      string `env:"NATS_URL"`
	NatsSubject  string `env:"NATS_SUBJECT_PREFIX" envDefault:"draft.events"`
	DiscordToken string `env:"DISCORD_BOT_TOKEN"`
	DiscordAppID string `env:"DISCORD_APP_ID"`
	DiscordGuild string `env:"DISCORD_GUILD_ID"`
	// DiscordResultChannel announces results of sessions opened outside Discord.
	DiscordResultChannel string `env:"DISCORD_RESULT_CHANNEL"`
	PublicBaseURL        string `env:"NABI_PUBLIC_URL" envDefault:"http://localhost:8080"`

	MaxParticipants    int  `env:"NABI_MAX_PARTICIPANTS" envDefault:"10"`
	RequireFilledSeats bool `env:"NABI_REQUIRE_FILLED_SEATS" envDefault:"true"`
	BanTimerSec        int  `env:"NABI_BAN_TIMER_SEC" envDefault:"30"`
	PickTimerSec       int  `env:"NABI_PICK_TIMER_SEC" envDefault:"30"`
	AutoAdvance        bool `env:"NABI_AUTO_ADVANCE" envDefault:"true"`
	// TurnOrder is "default", "tournament" or a path to a YAML file.
	TurnOrder    string `env:"NABI_TURN_ORDER" envDefault:"default"`
	ChampionFile string `env:"NABI_CHAMPION_FILE"`

	AllowedOrigins []string      `env:"NABI_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
	WSCommandRate  float64       `env:"NABI_WS_COMMAND_RATE" envDefault:"5"`
	WSCommandBurst int           `env:"NABI_WS_COMMAND_BURST" envDefault:"10"`
	IOTimeout      time.Duration `env:"NABI_IO_TIMEOUT" envDefault:"5s"`
}

// Load reads .env files (when present) and then the process environment.
// Variables already set in the environment win over .env entries.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.BanTimerSec < 0 || c.PickTimerSec < 0 {
		return fmt.Errorf("turn timers must not be negative")
	}
	if c.MaxParticipants < 0 {
		return fmt.Errorf("NABI_MAX_PARTICIPANTS must not be negative")
	}
	return nil
}

func (c Config) Rules() engine.Rules {
	return engine.Rules{BanTimerSec: c.BanTimerSec, PickTimerSec: c.PickTimerSec}
}

// Template resolves TurnOrder to a validated turn order.
func (c Config) Template() (engine.Template, error) {
	switch c.TurnOrder {
	case "", "default":
		return engine.DefaultTemplate(), nil
	case "tournament":
		return engine.TournamentTemplate(), nil
	}
	f, err := os.Open(c.TurnOrder)
	if err != nil {
		return nil, fmt.Errorf("open turn order: %w", err)
	}
	defer f.Close()
	return LoadTemplate(f)
}

type templateFile struct {
	Turns engine.Template `yaml:"turns"`
}

// LoadTemplate reads a `turns:` list of {team, action, role} entries.
func LoadTemplate(r io.Reader) (engine.Template, error) {
	var f templateFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("decode turn order: %w", err)
	}
	if err := f.Turns.Validate(); err != nil {
		return nil, err
	}
	return f.Turns, nil
}
