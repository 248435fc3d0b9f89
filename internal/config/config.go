package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// EnvPrefix marks environment variables that override the config file.
// MAILTX_PARSER_ALLOW_FUZZY=true sets parser.allow_fuzzy.
const EnvPrefix = "MAILTX_"

// Missing-date policies.
const (
	DateFallbackReceived = "received"
	DateFallbackNone     = "none"
)

// Config represents the top-level mailtx.yaml configuration.
type Config struct {
	Parser     ParserConfig     `yaml:"parser" koanf:"parser"`
	Filter     FilterConfig     `yaml:"filter" koanf:"filter"`
	Dictionary DictionaryConfig `yaml:"dictionary" koanf:"dictionary"`
	Log        LogConfig        `yaml:"log" koanf:"log"`
	Server     ServerConfig     `yaml:"server" koanf:"server"`
	Git        GitConfig        `yaml:"git" koanf:"git"`
}

// ParserConfig controls extraction.
type ParserConfig struct {
	AllowFuzzy   bool   `yaml:"allow_fuzzy" koanf:"allow_fuzzy"`
	Workers      int    `yaml:"workers" koanf:"workers"`
	DateFallback string `yaml:"date_fallback" koanf:"date_fallback"` // "received" or "none"
}

// FilterConfig is the pre-filter applied before mails reach the parser.
type FilterConfig struct {
	ExcludedSubjects []string `yaml:"excluded_subjects,omitempty" koanf:"excluded_subjects"`
	IncludeDomains   []string `yaml:"include_domains,omitempty" koanf:"include_domains"`
	ExcludeDomains   []string `yaml:"exclude_domains,omitempty" koanf:"exclude_domains"`
}

// DictionaryConfig points at the merchant dictionary, relative to the repo.
type DictionaryConfig struct {
	Path string `yaml:"path" koanf:"path"`
}

// LogConfig selects log level and format.
type LogConfig struct {
	Level  string `yaml:"level" koanf:"level"`
	Format string `yaml:"format" koanf:"format"` // "console" or "json"
}

// ServerConfig controls `mailtx serve`.
type ServerConfig struct {
	Addr string `yaml:"addr" koanf:"addr"`
}

// GitConfig controls git integration.
type GitConfig struct {
	AutoCommit  bool   `yaml:"auto_commit" koanf:"auto_commit"` // commit data/ and logs/ after parse and recurring
	AuthorName  string `yaml:"author_name" koanf:"author_name"`
	AuthorEmail string `yaml:"author_email" koanf:"author_email"`
}

// Load reads a mailtx.yaml file from disk and applies MAILTX_* overrides on
// top of it. Keys absent from both keep their default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	defaults, err := yamlv3.Marshal(Default())
	if err != nil {
		return nil, fmt.Errorf("marshaling defaults: %w", err)
	}

	// Later sources replace earlier values key by key; lists are replaced whole.
	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider(defaults), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}
	if err := k.Load(rawbytes.Provider(data), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envKey maps MAILTX_PARSER_ALLOW_FUZZY to parser.allow_fuzzy: the first
// segment is the section, the rest is the field name.
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	section, field, ok := strings.Cut(lower, "_")
	if !ok {
		return lower
	}
	return section + "." + field
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yamlv3.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config with sensible defaults for a new project.
func Default() *Config {
	return &Config{
		Parser: ParserConfig{
			AllowFuzzy:   false,
			Workers:      4,
			DateFallback: DateFallbackReceived,
		},
		Filter: FilterConfig{
			ExcludedSubjects: []string{"キャンペーン", "ポイント", "メールマガジン"},
		},
		Dictionary: DictionaryConfig{
			Path: "dictionary.yaml",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:8080",
		},
		Git: GitConfig{
			AuthorName:  "mailtx",
			AuthorEmail: "mailtx@localhost",
		},
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Parser.Workers < 1 {
		errs = append(errs, fmt.Errorf("parser.workers must be at least 1, got %d", c.Parser.Workers))
	}
	switch c.Parser.DateFallback {
	case DateFallbackReceived, DateFallbackNone:
	default:
		errs = append(errs, fmt.Errorf("parser.date_fallback must be %q or %q, got %q",
			DateFallbackReceived, DateFallbackNone, c.Parser.DateFallback))
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be \"console\" or \"json\", got %q", c.Log.Format))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
