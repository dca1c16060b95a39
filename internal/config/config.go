// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/jeranaias/parley/internal/model"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete parley configuration.
type Config struct {
	Version string `toml:"version" validate:"required"`

	Backend  BackendConfig  `toml:"backend"`
	Document DocumentConfig `toml:"document"`
	Voice    VoiceConfig    `toml:"voice"`
	Speech   SpeechConfig   `toml:"speech"`
	UI       UIConfig       `toml:"ui"`
	Log      LogConfig      `toml:"log"`
}

// BackendConfig configures the chat and document service.
type BackendConfig struct {
	// BaseURL is the service root, e.g. http://127.0.0.1:8000
	BaseURL string `toml:"base_url" validate:"required,url"`

	// APIKey is forwarded to the service with every request.
	APIKey string `toml:"api_key"`

	// Model is the model identifier, see `parley config init` for choices.
	Model string `toml:"model" validate:"required"`

	// TimeoutSecs bounds single-shot requests.
	TimeoutSecs int `toml:"timeout_secs" validate:"gte=1,lte=3600"`

	// UploadTimeoutSecs bounds uploads, which include server-side indexing.
	UploadTimeoutSecs int `toml:"upload_timeout_secs" validate:"gte=1,lte=3600"`

	// StreamTimeoutSecs bounds a whole streamed answer; 0 disables the limit.
	StreamTimeoutSecs int `toml:"stream_timeout_secs" validate:"gte=0,lte=3600"`
}

// DocumentConfig configures document-grounded chat.
type DocumentConfig struct {
	// TopK is the number of retrieved chunks per question.
	TopK int `toml:"top_k" validate:"gte=1,lte=50"`

	// MaxUploadMB rejects larger files before upload.
	MaxUploadMB int `toml:"max_upload_mb" validate:"gte=1,lte=512"`
}

// VoiceConfig configures push-to-talk capture.
type VoiceConfig struct {
	Enabled bool `toml:"enabled"`

	// TriggerKey is the key held to talk, in Bubble Tea key notation.
	TriggerKey string `toml:"trigger_key" validate:"required"`

	// LongPressMs is how long the key must be held to start recording.
	LongPressMs int `toml:"long_press_ms" validate:"gte=50,lte=5000"`

	// CueDelayMs separates the begin cue from the start of recording.
	CueDelayMs int `toml:"cue_delay_ms" validate:"gte=0,lte=2000"`

	// ReleaseGapMs is the silence after which a held key counts as released.
	ReleaseGapMs int `toml:"release_gap_ms" validate:"gte=20,lte=2000"`

	// Locale is passed to the recognizer.
	Locale string `toml:"locale" validate:"required,bcp47_language_tag"`

	// RecognizerCommand records until interrupted and prints the transcript.
	// The argument "{locale}" is replaced by Locale.
	RecognizerCommand []string `toml:"recognizer_command"`

	// Cue is "bell" or "none".
	Cue string `toml:"cue" validate:"oneof=bell none"`
}

// SpeechConfig configures reading answers aloud.
type SpeechConfig struct {
	// Mode is "off", "voice" (answers to spoken questions) or "always".
	Mode string `toml:"mode" validate:"oneof=off voice always"`

	// Command reads text on stdin and speaks it.
	Command []string `toml:"command"`
}

// UIConfig holds interface preferences.
type UIConfig struct {
	// DeepDive starts sessions with detailed responses.
	DeepDive bool `toml:"deep_dive"`

	// Theme is "auto", "dark" or "light".
	Theme string `toml:"theme" validate:"oneof=auto dark light"`

	// ExportDir receives /export files. A leading ~ is the home directory.
	ExportDir string `toml:"export_dir"`
}

// LogConfig configures the rotating log file.
type LogConfig struct {
	// Path of the log file; empty means ~/.parley/parley.log
	Path       string `toml:"path"`
	Level      string `toml:"level" validate:"oneof=debug info warn error"`
	MaxSizeMB  int    `toml:"max_size_mb" validate:"gte=1"`
	MaxBackups int    `toml:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `toml:"max_age_days" validate:"gte=0"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Version: "1",
		Backend: BackendConfig{
			BaseURL:           "http://127.0.0.1:8000",
			Model:             model.DefaultModel,
			TimeoutSecs:       60,
			UploadTimeoutSecs: 300,
			StreamTimeoutSecs: 300,
		},
		Document: DocumentConfig{
			TopK:        4,
			MaxUploadMB: 25,
		},
		Voice: VoiceConfig{
			Enabled:      true,
			TriggerKey:   "space",
			LongPressMs:  300,
			CueDelayMs:   150,
			ReleaseGapMs: 120,
			Locale:       "en-US",
			Cue:          "bell",
		},
		Speech: SpeechConfig{
			Mode:    "off",
			Command: []string{"say"},
		},
		UI: UIConfig{
			Theme:     "auto",
			ExportDir: ".",
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
	}
}

// SetDefaults fills zero-value fields that have no meaningful zero.
func (c *Config) SetDefaults() {
	d := Default()

	if c.Version == "" {
		c.Version = d.Version
	}
	if c.Backend.BaseURL == "" {
		c.Backend.BaseURL = d.Backend.BaseURL
	}
	c.Backend.BaseURL = strings.TrimRight(c.Backend.BaseURL, "/")
	if c.Backend.Model == "" {
		c.Backend.Model = d.Backend.Model
	}
	if c.Backend.TimeoutSecs == 0 {
		c.Backend.TimeoutSecs = d.Backend.TimeoutSecs
	}
	if c.Backend.UploadTimeoutSecs == 0 {
		c.Backend.UploadTimeoutSecs = d.Backend.UploadTimeoutSecs
	}
	if c.Document.TopK == 0 {
		c.Document.TopK = d.Document.TopK
	}
	if c.Document.MaxUploadMB == 0 {
		c.Document.MaxUploadMB = d.Document.MaxUploadMB
	}
	if c.Voice.TriggerKey == "" {
		c.Voice.TriggerKey = d.Voice.TriggerKey
	}
	if c.Voice.LongPressMs == 0 {
		c.Voice.LongPressMs = d.Voice.LongPressMs
	}
	if c.Voice.ReleaseGapMs == 0 {
		c.Voice.ReleaseGapMs = d.Voice.ReleaseGapMs
	}
	if c.Voice.Locale == "" {
		c.Voice.Locale = d.Voice.Locale
	}
	if c.Voice.Cue == "" {
		c.Voice.Cue = d.Voice.Cue
	}
	if c.Speech.Mode == "" {
		c.Speech.Mode = d.Speech.Mode
	}
	if len(c.Speech.Command) == 0 {
		c.Speech.Command = d.Speech.Command
	}
	if c.UI.Theme == "" {
		c.UI.Theme = d.UI.Theme
	}
	if c.UI.ExportDir == "" {
		c.UI.ExportDir = d.UI.ExportDir
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = d.Log.MaxSizeMB
	}
}

// Duration helpers.

func (b BackendConfig) Timeout() time.Duration { return time.Duration(b.TimeoutSecs) * time.Second }
func (b BackendConfig) UploadTimeout() time.Duration {
	return time.Duration(b.UploadTimeoutSecs) * time.Second
}
func (b BackendConfig) StreamTimeout() time.Duration {
	return time.Duration(b.StreamTimeoutSecs) * time.Second
}
func (v VoiceConfig) LongPress() time.Duration  { return time.Duration(v.LongPressMs) * time.Millisecond }
func (v VoiceConfig) CueDelay() time.Duration   { return time.Duration(v.CueDelayMs) * time.Millisecond }
func (v VoiceConfig) ReleaseGap() time.Duration { return time.Duration(v.ReleaseGapMs) * time.Millisecond }

// MaxUploadBytes returns the upload limit in bytes.
func (d DocumentConfig) MaxUploadBytes() int64 {
	return int64(d.MaxUploadMB) << 20
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the parley configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".parley"), nil
}

// ConfigPath returns the path to the TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// DefaultLogPath returns the log file used when log.path is empty.
func DefaultLogPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "parley.log"), nil
}

// ensureSecurePermissions tightens a config file holding an API key to 0600.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode&0o077 != 0 {
		if err := os.Chmod(path, 0o600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD / SAVE
// =============================================================================

// Load reads configuration from path, or from ConfigPath when path is empty.
//
// Precedence, lowest first: defaults, the TOML file, a .env file in the
// working directory or config directory, PARLEY_* environment variables.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := ConfigPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg := Default()
	if _, err := os.Stat(path); err == nil {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, err
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to stat config: %w", err)
	}

	loadDotEnv(filepath.Dir(path))
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadTOML decodes the file at path over cfg.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}
	return nil
}

// loadDotEnv loads .env files without overriding variables already set.
func loadDotEnv(configDir string) {
	for _, p := range []string{".env", filepath.Join(configDir, ".env")} {
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Load(p)
		}
	}
}

// Save writes cfg to path, or to ConfigPath when path is empty.
// The file is created with 0600 permissions because it may hold an API key.
func Save(cfg *Config, path string) error {
	if path == "" {
		p, err := ConfigPath()
		if err != nil {
			return err
		}
		path = p
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	if err := os.Chmod(path, 0o600); err != nil {
		return fmt.Errorf("failed to set config file permissions: %w", err)
	}

	fmt.Fprintln(file, "# parley configuration file")
	fmt.Fprintln(file, "# Generated by parley - edit with care")
	fmt.Fprintln(file, "")

	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
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
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("toml"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Validate checks every field and returns ValidateErrors listing all problems.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if err := structValidator().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			errs = append(errs, ValidationError{
				Field:   strings.TrimPrefix(fe.Namespace(), "Config."),
				Message: describe(fe),
			})
		}
	}

	if !model.IsKnownModel(c.Backend.Model) {
		errs = append(errs, ValidationError{
			Field:   "backend.model",
			Message: fmt.Sprintf("unknown model %q", c.Backend.Model),
		})
	}
	if c.Voice.Enabled && c.Voice.ReleaseGapMs >= c.Voice.LongPressMs {
		errs = append(errs, ValidationError{
			Field:   "voice.release_gap_ms",
			Message: fmt.Sprintf("must be shorter than voice.long_press_ms (%d)", c.Voice.LongPressMs),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "url":
		return fmt.Sprintf("invalid URL %q", fe.Value())
	case "oneof":
		return fmt.Sprintf("invalid value %q, must be one of: %s", fe.Value(), strings.ReplaceAll(fe.Param(), " ", ", "))
	case "gte":
		return fmt.Sprintf("must be at least %s, got %v", fe.Param(), fe.Value())
	case "lte":
		return fmt.Sprintf("must be at most %s, got %v", fe.Param(), fe.Value())
	case "bcp47_language_tag":
		return fmt.Sprintf("invalid locale %q", fe.Value())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported variables:
//   - PARLEY_API_KEY: overrides backend.api_key
//   - PARLEY_BASE_URL: overrides backend.base_url
//   - PARLEY_MODEL: overrides backend.model
//   - PARLEY_LOG_LEVEL: overrides log.level
//   - PARLEY_SPEECH: overrides speech.mode
//   - PARLEY_VOICE: overrides voice.enabled
func (c *Config) ApplyEnvOverrides() {
	if key := os.Getenv("PARLEY_API_KEY"); key != "" {
		c.Backend.APIKey = key
	}
	if url := os.Getenv("PARLEY_BASE_URL"); url != "" {
		c.Backend.BaseURL = url
	}
	if m := os.Getenv("PARLEY_MODEL"); m != "" {
		c.Backend.Model = m
	}
	if level := os.Getenv("PARLEY_LOG_LEVEL"); level != "" {
		c.Log.Level = strings.ToLower(level)
	}
	if mode := os.Getenv("PARLEY_SPEECH"); mode != "" {
		c.Speech.Mode = strings.ToLower(mode)
	}
	if v := os.Getenv("PARLEY_VOICE"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			c.Voice.Enabled = enabled
		}
	}
}

// =============================================================================
// HELPERS
// =============================================================================

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	cp := *c
	cp.Voice.RecognizerCommand = append([]string(nil), c.Voice.RecognizerCommand...)
	cp.Speech.Command = append([]string(nil), c.Speech.Command...)
	return &cp
}

// String renders the config as TOML with the API key redacted.
func (c *Config) String() string {
	safe := c.Clone()
	if safe.Backend.APIKey != "" {
		safe.Backend.APIKey = "[REDACTED]"
	}
	var sb strings.Builder
	if err := toml.NewEncoder(&sb).Encode(safe); err != nil {
		return fmt.Sprintf("config: %v", err)
	}
	return sb.String()
}

// =============================================================================
// SINGLETON PATTERN (THREAD-SAFE)
// =============================================================================

var (
	globalConfig   *Config
	globalPath     string
	globalConfigMu sync.RWMutex
)

// Global returns the process-wide configuration, loading it from the default
// path on first use. Load errors fall back to defaults.
func Global() *Config {
	globalConfigMu.RLock()
	cfg := globalConfig
	globalConfigMu.RUnlock()
	if cfg != nil {
		return cfg
	}

	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	if globalConfig == nil {
		loaded, err := Load(globalPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
			loaded = Default()
		}
		globalConfig = loaded
	}
	return globalConfig
}

// SetGlobal sets the process-wide configuration and the path it came from.
func SetGlobal(cfg *Config, path string) {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
	globalPath = path
}

// ReloadGlobal reloads the process-wide configuration from its path.
func ReloadGlobal() (*Config, error) {
	globalConfigMu.RLock()
	path := globalPath
	globalConfigMu.RUnlock()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	globalConfigMu.Lock()
	globalConfig = cfg
	globalConfigMu.Unlock()
	return cfg, nil
}

// ResetGlobalForTesting clears the process-wide configuration.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalPath = ""
}
