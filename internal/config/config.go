// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for cardiochat.
//
// Configuration file locations (in order of precedence):
//   - ~/.cardiochat/config.toml
//   - ~/.cardiochat/config.json
//   - Built-in defaults
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"

	"github.com/jeranaias/cardiochat/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete cardiochat configuration.
type Config struct {
	// Backend connection
	API APIConfig `toml:"api" json:"api" envPrefix:"API_"`

	// Conversation and reply shaping
	Chat ChatConfig `toml:"chat" json:"chat" envPrefix:"CHAT_"`

	// Image intake
	Upload UploadConfig `toml:"upload" json:"upload" envPrefix:"UPLOAD_"`

	// Terminal UI
	UI UIConfig `toml:"ui" json:"ui" envPrefix:"UI_"`
}

// APIConfig holds backend connection settings.
type APIConfig struct {
	// BaseURL is the backend origin; a trailing slash is stripped.
	BaseURL string `toml:"base_url" json:"base_url" env:"BASE_URL"`

	// ChatTimeoutSecs bounds a single /chat request.
	ChatTimeoutSecs int `toml:"chat_timeout_secs" json:"chat_timeout_secs" env:"CHAT_TIMEOUT_SECS"`

	// Provider selects the LLM backend: "groq" or "oss".
	Provider string `toml:"provider" json:"provider" env:"PROVIDER"`
}

// ChatConfig holds conversation settings.
type ChatConfig struct {
	// PostProcess enables patient-friendly reply rewriting.
	PostProcess bool `toml:"post_process" json:"post_process" env:"POST_PROCESS"`

	// MaxBullets caps consecutive bullet items in a reply.
	MaxBullets int `toml:"max_bullets" json:"max_bullets" env:"MAX_BULLETS"`

	// PhrasesFile is an optional YAML phrase substitution table.
	PhrasesFile string `toml:"phrases_file" json:"phrases_file" env:"PHRASES_FILE"`

	// Greeting is the assistant turn shown when the app starts.
	Greeting string `toml:"greeting" json:"greeting" env:"GREETING"`

	// ResetGreeting is the assistant turn shown after a new chat.
	ResetGreeting string `toml:"reset_greeting" json:"reset_greeting" env:"RESET_GREETING"`
}

// UploadConfig holds image intake settings.
type UploadConfig struct {
	// WatchDir, when set, is watched for dropped image files.
	WatchDir string `toml:"watch_dir" json:"watch_dir" env:"WATCH_DIR"`

	// MaxImageMB rejects larger files before they are read.
	MaxImageMB int `toml:"max_image_mb" json:"max_image_mb" env:"MAX_IMAGE_MB"`
}

// UIConfig holds terminal UI settings.
type UIConfig struct {
	// Theme is "auto", "dark" or "light".
	Theme string `toml:"theme" json:"theme" env:"THEME"`

	// ShowDisclaimer shows the non-diagnostic notice under the transcript.
	ShowDisclaimer bool `toml:"show_disclaimer" json:"show_disclaimer" env:"SHOW_DISCLAIMER"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

const (
	// DefaultBaseURL is used when neither the config file nor the environment names a backend.
	DefaultBaseURL = "http://localhost:7860"

	// DefaultChatTimeoutSecs matches the backend's expected worst-case LLM latency.
	DefaultChatTimeoutSecs = 60

	// DefaultProvider is the hosted provider.
	DefaultProvider = "groq"

	// DefaultMaxBullets is the bullet cap applied by the post-processor.
	DefaultMaxBullets = 3

	// DefaultMaxImageMB bounds the size of a selected file.
	DefaultMaxImageMB = 20

	// DefaultGreeting is the first assistant turn.
	DefaultGreeting = "Hello! I'm here to help you understand cardiac MRI images. You can ask me questions or upload an MRI scan for analysis. How can I assist you today?"

	// DefaultResetGreeting is the assistant turn after a new chat.
	DefaultResetGreeting = "New chat started. Ask anything about the MRI upload guidelines, the ML output, or general (non-diagnostic) information about CAD and next steps."

	// envPrefix namespaces the environment overrides.
	envPrefix = "CARDIOCHAT_"
)

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:         DefaultBaseURL,
			ChatTimeoutSecs: DefaultChatTimeoutSecs,
			Provider:        DefaultProvider,
		},
		Chat: ChatConfig{
			PostProcess:   true,
			MaxBullets:    DefaultMaxBullets,
			Greeting:      DefaultGreeting,
			ResetGreeting: DefaultResetGreeting,
		},
		Upload: UploadConfig{
			MaxImageMB: DefaultMaxImageMB,
		},
		UI: UIConfig{
			Theme:          "auto",
			ShowDisclaimer: true,
		},
	}
}

// =============================================================================
// PATH HELPERS
// =============================================================================

// ConfigDir returns the cardiochat configuration directory (~/.cardiochat).
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".cardiochat"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// EnsureConfigDir creates the config directory if it doesn't exist.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0700)
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the config file(s).
// Tries TOML first, then JSON, and falls back to defaults.
// Environment overrides are applied last.
// A file that fails to parse is reported alongside the defaults so the
// caller can warn and continue.
func Load() (*Config, error) {
	var loadErr error

	if path, err := ConfigPathTOML(); err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			cfg, err := LoadFromPath(path)
			if err == nil {
				return cfg, nil
			}
			loadErr = err
		}
	}

	if loadErr == nil {
		if path, err := ConfigPathJSON(); err == nil {
			if _, statErr := os.Stat(path); statErr == nil {
				cfg, err := LoadFromPath(path)
				if err == nil {
					return cfg, nil
				}
				loadErr = err
			}
		}
	}

	cfg := Default()
	if err := cfg.ApplyEnvOverrides(); err != nil {
		return cfg, errors.Join(loadErr, err)
	}
	if err := cfg.Validate(); err != nil {
		return Default(), errors.Join(loadErr, fmt.Errorf("invalid config: %w", err))
	}
	return cfg, loadErr
}

// LoadTOML decodes a TOML file over cfg.
func LoadTOML(cfg *Config, path string) error {
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	fillDefaults(cfg)
	return nil
}

// LoadJSON decodes a JSON file over cfg.
func LoadJSON(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	fillDefaults(cfg)
	return nil
}

// LoadFromPath loads configuration from a specific file path with full validation.
// Keys absent from the file keep their default values.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if strings.HasSuffix(path, ".json") {
		if err := LoadJSON(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
	} else {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}

	if err := cfg.ApplyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// fillDefaults replaces zero values that are never meaningful.
func fillDefaults(cfg *Config) {
	defaults := Default()

	cfg.API.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.API.BaseURL), "/")
	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = defaults.API.BaseURL
	}
	if cfg.API.ChatTimeoutSecs == 0 {
		cfg.API.ChatTimeoutSecs = defaults.API.ChatTimeoutSecs
	}
	if cfg.API.Provider == "" {
		cfg.API.Provider = defaults.API.Provider
	}
	// "grok" is a common misspelling the backend also accepts.
	if strings.EqualFold(cfg.API.Provider, "grok") {
		cfg.API.Provider = "groq"
	}
	cfg.API.Provider = strings.ToLower(cfg.API.Provider)

	if cfg.Chat.MaxBullets == 0 {
		cfg.Chat.MaxBullets = defaults.Chat.MaxBullets
	}
	if strings.TrimSpace(cfg.Chat.Greeting) == "" {
		cfg.Chat.Greeting = defaults.Chat.Greeting
	}
	if strings.TrimSpace(cfg.Chat.ResetGreeting) == "" {
		cfg.Chat.ResetGreeting = defaults.Chat.ResetGreeting
	}

	if cfg.Upload.MaxImageMB == 0 {
		cfg.Upload.MaxImageMB = defaults.Upload.MaxImageMB
	}

	if cfg.UI.Theme == "" {
		cfg.UI.Theme = defaults.UI.Theme
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// legacyEnv holds the unprefixed variable the web frontend used.
type legacyEnv struct {
	BaseURL string `env:"API_BASE_URL"`
}

// ApplyEnvOverrides applies CARDIOCHAT_* environment variables over c.
// Variables that are unset leave the corresponding field untouched.
// API_BASE_URL is honoured when CARDIOCHAT_API_BASE_URL is not set.
func (c *Config) ApplyEnvOverrides() error {
	return c.applyEnv(nil)
}

func (c *Config) applyEnv(environ map[string]string) error {
	var legacy legacyEnv
	if err := env.ParseWithOptions(&legacy, env.Options{Environment: environ}); err != nil {
		return fmt.Errorf("failed to parse environment: %w", err)
	}
	if legacy.BaseURL != "" {
		c.API.BaseURL = legacy.BaseURL
	}

	if err := env.ParseWithOptions(c, env.Options{Prefix: envPrefix, Environment: environ}); err != nil {
		return fmt.Errorf("failed to parse environment: %w", err)
	}

	fillDefaults(c)
	return nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	if err := EnsureConfigDir(); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes the configuration to a TOML file atomically.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	buf.WriteString("# cardiochat configuration file\n")
	buf.WriteString("# Environment variables (CARDIOCHAT_API_BASE_URL, ...) override these values.\n\n")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if u, err := url.Parse(c.API.BaseURL); err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		errs = append(errs, ValidationError{
			Field:   "api.base_url",
			Message: fmt.Sprintf("invalid URL '%s', must be an absolute http(s) URL", c.API.BaseURL),
		})
	}

	if c.API.ChatTimeoutSecs < 1 || c.API.ChatTimeoutSecs > 600 {
		errs = append(errs, ValidationError{
			Field:   "api.chat_timeout_secs",
			Message: fmt.Sprintf("must be between 1 and 600, got %d", c.API.ChatTimeoutSecs),
		})
	}

	switch c.API.Provider {
	case "groq", "oss":
	default:
		errs = append(errs, ValidationError{
			Field:   "api.provider",
			Message: fmt.Sprintf("invalid provider '%s', must be one of: groq, oss", c.API.Provider),
		})
	}

	if c.Chat.MaxBullets < 1 {
		errs = append(errs, ValidationError{
			Field:   "chat.max_bullets",
			Message: fmt.Sprintf("must be at least 1, got %d", c.Chat.MaxBullets),
		})
	}

	if c.Upload.MaxImageMB < 1 || c.Upload.MaxImageMB > 200 {
		errs = append(errs, ValidationError{
			Field:   "upload.max_image_mb",
			Message: fmt.Sprintf("must be between 1 and 200, got %d", c.Upload.MaxImageMB),
		})
	}

	switch strings.ToLower(c.UI.Theme) {
	case "auto", "dark", "light":
	default:
		errs = append(errs, ValidationError{
			Field:   "ui.theme",
			Message: fmt.Sprintf("invalid theme '%s', must be one of: auto, dark, light", c.UI.Theme),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// ACCESSORS
// =============================================================================

// MaxImageBytes returns the upload size limit in bytes.
func (c *Config) MaxImageBytes() int64 {
	return int64(c.Upload.MaxImageMB) << 20
}

// Get retrieves a configuration value using its file key (e.g., "api.base_url").
func (c *Config) Get(key string) (interface{}, error) {
	parts := strings.Split(key, ".")
	if key == "" {
		return nil, errors.New("empty key")
	}

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		field, ok := fieldByTag(v, part)
		if !ok {
			return nil, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			return field.Interface(), nil
		}
		if field.Kind() != reflect.Struct {
			return nil, fmt.Errorf("field '%s' is not a section", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return nil, fmt.Errorf("invalid key: %s", key)
}

// fieldByTag finds a struct field by its toml tag.
func fieldByTag(v reflect.Value, name string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		tag := strings.Split(t.Field(i).Tag.Get("toml"), ",")[0]
		if strings.EqualFold(tag, name) {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

// Clone returns a copy of the config.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// String returns a JSON rendering of the config for debugging.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// =============================================================================
// SINGLETON PATTERN (THREAD-SAFE)
// =============================================================================

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the global configuration instance.
// Loads configuration on first access. Thread-safe.
func Global() *Config {
	globalConfigOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
		}
		globalConfigMu.Lock()
		if globalConfig == nil {
			globalConfig = cfg
		}
		globalConfigMu.Unlock()
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// SetGlobal sets the global configuration instance. Thread-safe.
func SetGlobal(cfg *Config) {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting resets the global config state for testing.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}
