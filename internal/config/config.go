// Package config loads scraper settings from defaults, an optional YAML file
// and environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/olgasafonova/country-leaders-scraper/internal/base"
	"github.com/olgasafonova/country-leaders-scraper/internal/leaders"
	"github.com/olgasafonova/country-leaders-scraper/internal/wikipedia"
)

// Config holds all runtime settings. The zero-config default scrapes every
// country from the public API into leaders.json.
type Config struct {
	API struct {
		BaseURL    string        `yaml:"base_url"`
		SessionTTL time.Duration `yaml:"session_ttl"`
		Timeout    time.Duration `yaml:"timeout"`
	} `yaml:"api"`

	Wikipedia struct {
		UserAgent         string        `yaml:"user_agent"`
		RequestsPerSecond float64       `yaml:"requests_per_second"`
		Burst             int           `yaml:"burst"`
		CacheTTL          time.Duration `yaml:"cache_ttl"`
		Enrich            bool          `yaml:"enrich"`
	} `yaml:"wikipedia"`

	Output struct {
		JSON string `yaml:"json"`
		CSV  string `yaml:"csv"`
		DB   string `yaml:"db"`
	} `yaml:"output"`

	Countries []string `yaml:"countries"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`

	Metrics struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`
}

// Default returns a configuration that needs no file, flags or environment.
func Default() Config {
	var c Config
	c.API.BaseURL = leaders.DefaultBaseURL
	c.API.SessionTTL = leaders.DefaultSessionTTL
	c.API.Timeout = base.DefaultTimeout
	c.Wikipedia.UserAgent = wikipedia.DefaultUserAgent
	c.Wikipedia.RequestsPerSecond = wikipedia.DefaultRequestsPerSecond
	c.Wikipedia.Burst = wikipedia.DefaultBurst
	c.Wikipedia.CacheTTL = base.DefaultCacheTTL
	c.Wikipedia.Enrich = true
	c.Output.JSON = "leaders.json"
	c.Log.Level = "info"
	c.Log.Format = "text"
	return c
}

// Load overlays the YAML file at path on Default. An empty path returns Default.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides settings from the environment.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("LEADERS_API_URL"); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv("LEADERS_OUTPUT"); v != "" {
		c.Output.JSON = v
	}
	if v := os.Getenv("LEADERS_DB"); v != "" {
		c.Output.DB = v
	}
	if v := os.Getenv("LEADERS_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("WIKIPEDIA_USER_AGENT"); v != "" {
		c.Wikipedia.UserAgent = v
	}
}

// Validate reports every invalid setting at once.
func Validate(c Config) error {
	var errs []string

	if c.API.BaseURL == "" {
		errs = append(errs, "api.base_url is required")
	} else if !strings.HasPrefix(c.API.BaseURL, "http://") && !strings.HasPrefix(c.API.BaseURL, "https://") {
		errs = append(errs, fmt.Sprintf("api.base_url must be an http(s) URL, got %q", c.API.BaseURL))
	}
	if c.API.SessionTTL < 0 {
		errs = append(errs, "api.session_ttl must be >= 0")
	}
	if c.API.Timeout <= 0 {
		errs = append(errs, "api.timeout must be > 0")
	}
	if c.Wikipedia.RequestsPerSecond < 0 {
		errs = append(errs, "wikipedia.requests_per_second must be >= 0")
	}
	if c.Wikipedia.Burst < 0 {
		errs = append(errs, "wikipedia.burst must be >= 0")
	}
	if c.Wikipedia.CacheTTL < 0 {
		errs = append(errs, "wikipedia.cache_ttl must be >= 0")
	}
	if c.Output.JSON == "" {
		errs = append(errs, "output.json is required")
	}
	for i, country := range c.Countries {
		if err := leaders.ValidateCountry(leaders.NormalizeCountry(country)); err != nil {
			errs = append(errs, fmt.Sprintf("countries[%d]: %v", i, err))
		}
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err.Error())
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Sprintf("log.format must be text or json, got %q", c.Log.Format))
	}

	if len(errs) > 0 {
		return errors.New("config validation failed:\n- " + strings.Join(errs, "\n- "))
	}
	return nil
}

// LogLevel returns the slog level for Log.Level, defaulting to info.
func (c Config) LogLevel() slog.Level {
	l, err := parseLevel(c.Log.Level)
	if err != nil {
		return slog.LevelInfo
	}
	return l
}

// CountryCodes returns the normalized country filter.
func (c Config) CountryCodes() []leaders.CountryCode {
	out := make([]leaders.CountryCode, 0, len(c.Countries))
	for _, s := range c.Countries {
		if code := leaders.NormalizeCountry(s); code != "" {
			out = append(out, code)
		}
	}
	return out
}

// LeadersConfig returns the leaders client settings.
func (c Config) LeadersConfig() leaders.Config {
	return leaders.Config{
		BaseURL:    c.API.BaseURL,
		SessionTTL: c.API.SessionTTL,
	}
}

// WikipediaConfig returns the Wikipedia client settings.
func (c Config) WikipediaConfig() wikipedia.Config {
	return wikipedia.Config{
		UserAgent:         c.Wikipedia.UserAgent,
		RequestsPerSecond: c.Wikipedia.RequestsPerSecond,
		Burst:             c.Wikipedia.Burst,
		CacheTTL:          c.Wikipedia.CacheTTL,
	}
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return l, fmt.Errorf("log.level must be debug, info, warn or error, got %q", s)
	}
	return l, nil
}
