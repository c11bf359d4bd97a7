package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// ErrParsingConfig wraps every environment parsing failure.
var ErrParsingConfig = errors.New("rendererctl: failed to parse configuration")

// Config is the process configuration read from the environment. A .env file
// in the working directory is loaded first when present.
type Config struct {
	Dir       string `env:"RENDERERCTL_DIR" envDefault:"."`
	LogLevel  string `env:"RENDERERCTL_LOG_LEVEL" envDefault:"warn"`
	LogFormat string `env:"RENDERERCTL_LOG_FORMAT" envDefault:"text"`
	// Rule replaces the default duplicate check when set.
	Rule       string `env:"RENDERERCTL_RULE"`
	RuleEngine string `env:"RENDERERCTL_RULE_ENGINE" envDefault:"expr"`
	Metrics    bool   `env:"RENDERERCTL_METRICS" envDefault:"false"`
	ActorID    string `env:"RENDERERCTL_ACTOR"`
	// ActivityVerbs limits the logged activity verbs. Empty logs all.
	ActivityVerbs []string `env:"RENDERERCTL_ACTIVITY_VERBS" envSeparator:","`
}

func loadConfig() (Config, error) {
	// the .env file is optional
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, errors.Join(ErrParsingConfig, err)
	}
	if _, err := parseLevel(cfg.LogLevel); err != nil {
		return Config{}, errors.Join(ErrParsingConfig, err)
	}
	switch cfg.LogFormat {
	case "text", "json":
	default:
		return Config{}, errors.Join(ErrParsingConfig,
			fmt.Errorf("invalid log format %q: must be \"text\" or \"json\"", cfg.LogFormat))
	}
	return cfg, nil
}

func parseLevel(level string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return 0, fmt.Errorf("invalid log level %q", level)
	}
	return l, nil
}

// newLogger builds the slog logger selected by cfg. Logs go to w so command
// output on stdout stays machine readable.
func newLogger(cfg Config, w io.Writer) *slog.Logger {
	level, _ := parseLevel(cfg.LogLevel)
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler).With(slog.String("component", "rendererctl"))
}
