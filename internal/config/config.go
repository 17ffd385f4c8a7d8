package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"chatwindow/internal/contextmgr"
	"chatwindow/pkg/logger"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the root of the application configuration.
type Config struct {
	Log      logger.LogConfig `mapstructure:"log" yaml:"log"`
	Storage  StorageConfig    `mapstructure:"storage" yaml:"storage"`
	Ollama   OllamaConfig     `mapstructure:"ollama" yaml:"ollama"`
	Context  ContextConfig    `mapstructure:"context" yaml:"context"`
	Profiles []ModelProfile   `mapstructure:"profiles" yaml:"profiles,omitempty"`
	Chat     ChatConfig       `mapstructure:"chat" yaml:"chat"`
	Metrics  MetricsConfig    `mapstructure:"metrics" yaml:"metrics"`
}

// StorageConfig locates the conversation database.
type StorageConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// OllamaConfig configures the local inference server.
type OllamaConfig struct {
	Endpoint  string `mapstructure:"endpoint" yaml:"endpoint"`
	Model     string `mapstructure:"model" yaml:"model"`
	Timeout   string `mapstructure:"timeout" yaml:"timeout"`
	KeepAlive string `mapstructure:"keep_alive" yaml:"keep_alive"`
}

// TimeoutDuration parses Timeout, defaulting to five minutes.
func (c OllamaConfig) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil || d <= 0 {
		return 5 * time.Minute
	}
	return d
}

// ContextConfig holds the base profile and summarization parameters.
type ContextConfig struct {
	DefaultLimit       int     `mapstructure:"default_limit" yaml:"default_limit"`
	SummarizePercent   int     `mapstructure:"summarize_percent" yaml:"summarize_percent"`
	NearLimitPercent   int     `mapstructure:"near_limit_percent" yaml:"near_limit_percent"`
	RecentMessages     int     `mapstructure:"recent_messages" yaml:"recent_messages"`
	SummaryTemperature float64 `mapstructure:"summary_temperature" yaml:"summary_temperature"`
	SummaryMaxTokens   int     `mapstructure:"summary_max_tokens" yaml:"summary_max_tokens"`
	ProfilesFile       string  `mapstructure:"profiles_file" yaml:"profiles_file,omitempty"`
}

// BaseProfile returns the profile applied to models without an entry.
func (c ContextConfig) BaseProfile() contextmgr.Profile {
	return contextmgr.Profile{
		ContextLimit:     c.DefaultLimit,
		SummarizePercent: c.SummarizePercent,
		NearLimitPercent: c.NearLimitPercent,
		RecentMessages:   c.RecentMessages,
	}
}

// ModelProfile overrides the profile of one model. Profiles are a list rather
// than a map because model ids contain dots, which viper treats as key paths.
type ModelProfile struct {
	Model              string `mapstructure:"model" yaml:"model"`
	contextmgr.Profile `mapstructure:",squash" yaml:",inline"`
}

// ChatConfig holds generation parameters of normal turns.
type ChatConfig struct {
	Temperature  float64 `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens    int     `mapstructure:"max_tokens" yaml:"max_tokens,omitempty"`
	SystemPrompt string  `mapstructure:"system_prompt" yaml:"system_prompt,omitempty"`
}

// MetricsConfig enables the Prometheus endpoint when Addr is set.
type MetricsConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr,omitempty"`
}

var (
	configPath string
	mu         sync.Mutex
)

// Load reads configuration with precedence env > file > defaults. A missing
// file is not an error; a malformed one is.
func Load(path string) (*Config, error) {
	mu.Lock()
	defer mu.Unlock()

	SetDefaults()

	viper.SetEnvPrefix("CHATWINDOW")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if path != "" {
		expanded, err := ExpandPath(path)
		if err != nil {
			return nil, err
		}
		configPath = expanded

		viper.SetConfigFile(expanded)
		if err := viper.ReadInConfig(); err != nil {
			var pathErr *os.PathError
			if !errors.As(err, &pathErr) && !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("read config %s: %w", expanded, err)
			}
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Path returns the config file path passed to the last Load.
func Path() string {
	mu.Lock()
	defer mu.Unlock()
	return configPath
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	var errs []error

	percent := func(name string, v int) {
		if v < 1 || v > 100 {
			errs = append(errs, fmt.Errorf("%s must be between 1 and 100, got %d", name, v))
		}
	}

	if c.Context.DefaultLimit <= 0 {
		errs = append(errs, fmt.Errorf("context.default_limit must be positive, got %d", c.Context.DefaultLimit))
	}
	percent("context.summarize_percent", c.Context.SummarizePercent)
	percent("context.near_limit_percent", c.Context.NearLimitPercent)
	if c.Context.RecentMessages <= 0 {
		errs = append(errs, fmt.Errorf("context.recent_messages must be positive, got %d", c.Context.RecentMessages))
	}

	errs = append(errs, validateProfiles(c.Profiles)...)
	return errors.Join(errs...)
}

func validateProfiles(profiles []ModelProfile) []error {
	var errs []error
	seen := make(map[string]bool, len(profiles))
	for i, p := range profiles {
		if p.Model == "" {
			errs = append(errs, fmt.Errorf("profiles[%d]: model is required", i))
			continue
		}
		if seen[p.Model] {
			errs = append(errs, fmt.Errorf("profiles[%d]: duplicate model %q", i, p.Model))
		}
		seen[p.Model] = true
		if p.ContextLimit < 0 || p.SummarizePercent < 0 || p.SummarizePercent > 100 ||
			p.NearLimitPercent < 0 || p.NearLimitPercent > 100 || p.RecentMessages < 0 {
			errs = append(errs, fmt.Errorf("profiles[%d] (%s): values out of range", i, p.Model))
		}
	}
	return errs
}

// ProfileEntries returns the built-in entries overridden by the configured ones.
func (c *Config) ProfileEntries() map[string]contextmgr.Profile {
	entries := contextmgr.BuiltinProfiles()
	for _, p := range c.Profiles {
		entries[p.Model] = p.Profile
	}
	return entries
}

// ProfileTable builds the profile table from the context section and profiles.
func (c *Config) ProfileTable() *contextmgr.Profiles {
	return contextmgr.NewProfiles(c.Context.BaseProfile(), c.ProfileEntries())
}

// profileFile is the layout of context.profiles_file.
type profileFile struct {
	Profiles []ModelProfile `yaml:"profiles"`
}

// ParseProfiles decodes a profiles file.
func ParseProfiles(data []byte) (map[string]contextmgr.Profile, error) {
	var f profileFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse profiles: %w", err)
	}
	if err := errors.Join(validateProfiles(f.Profiles)...); err != nil {
		return nil, err
	}

	out := make(map[string]contextmgr.Profile, len(f.Profiles))
	for _, p := range f.Profiles {
		out[p.Model] = p.Profile
	}
	return out, nil
}

// SaveTo writes cfg as YAML to path.
func SaveTo(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Reset clears the loaded state (mainly for tests).
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	configPath = ""
	viper.Reset()
}
