package config

import (
	"flag"
	"fmt"
	"io"
)

// Flags holds command-line overrides. Nil fields were not set and leave the
// loaded configuration untouched.
type Flags struct {
	ConfigPath *string
	Port       *string
	LogLevel   *string
	DSN        *string
	NatsURL    *string
	Model      *string
}

// ParseFlags parses args (without the program name). Flags sit above
// environment variables in the precedence chain.
func ParseFlags(args []string) (*Flags, error) {
	fs := flag.NewFlagSet("actionforge", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var configPath, port, logLevel, dsn, natsURL, model string
	fs.StringVar(&configPath, "config", "", "path to YAML config file")
	fs.StringVar(&configPath, "c", "", "shorthand for --config")
	fs.StringVar(&port, "port", "", "HTTP listen port")
	fs.StringVar(&port, "p", "", "shorthand for --port")
	fs.StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	fs.StringVar(&dsn, "dsn", "", "PostgreSQL DSN")
	fs.StringVar(&natsURL, "nats-url", "", "NATS server URL")
	fs.StringVar(&model, "model", "", "generation model name")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	f := &Flags{}
	set := map[string]bool{}
	fs.Visit(func(fl *flag.Flag) { set[fl.Name] = true })
	pick := func(v string, names ...string) *string {
		for _, n := range names {
			if set[n] {
				return &v
			}
		}
		return nil
	}
	f.ConfigPath = pick(configPath, "config", "c")
	f.Port = pick(port, "port", "p")
	f.LogLevel = pick(logLevel, "log-level")
	f.DSN = pick(dsn, "dsn")
	f.NatsURL = pick(natsURL, "nats-url")
	f.Model = pick(model, "model")
	return f, nil
}

// Apply overlays the set flags onto cfg.
func (f *Flags) Apply(cfg *Config) {
	if f == nil {
		return
	}
	apply := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	apply(&cfg.Server.Port, f.Port)
	apply(&cfg.Logging.Level, f.LogLevel)
	apply(&cfg.Postgres.DSN, f.DSN)
	apply(&cfg.NATS.URL, f.NatsURL)
	apply(&cfg.Generation.Model, f.Model)
}

// LoadWithFlags runs the full hierarchy: defaults < YAML < ENV < flags.
func LoadWithFlags(args []string) (*Config, error) {
	f, err := ParseFlags(args)
	if err != nil {
		return nil, err
	}
	path := DefaultConfigFile
	if f.ConfigPath != nil {
		path = *f.ConfigPath
	}

	cfg := Defaults()
	if err := loadYAML(&cfg, path); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}
	loadEnv(&cfg)
	f.Apply(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}
	return &cfg, nil
}
