// Package config handles configuration for ghostbar.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/diogo/ghostbar/internal/models"
)

// Environment variables read by ApplyEnv
const (
	EnvAPIKey   = "OPENAI_API_KEY"
	EnvModel    = "OPENAI_MODEL"
	EnvBaseURL  = "OPENAI_BASE_URL"
	EnvLogLevel = "GHOSTBAR_LOG_LEVEL"
	// EnvHome overrides the configuration directory
	EnvHome = "GHOSTBAR_HOME"
)

// Config represents the user configuration
type Config struct {
	APIKey       string  `json:"api_key,omitempty"`
	Model        string  `json:"model"`
	BaseURL      string  `json:"base_url"`
	MaxTokens    int     `json:"max_tokens"`
	Temperature  float64 `json:"temperature"`
	SystemPrompt string  `json:"system_prompt,omitempty"`
	// TimeoutSeconds bounds a blocking call and each wait of a streamed one
	TimeoutSeconds int  `json:"timeout_seconds"`
	Stream         bool `json:"stream"`
	// MaxImageDimension is the longest side of an attached screenshot, in pixels
	MaxImageDimension int    `json:"max_image_dimension"`
	CopyToClipboard   bool   `json:"copy_to_clipboard"`
	SaveHistory       bool   `json:"save_history"`
	LogLevel          string `json:"log_level"`
	LogFile           string `json:"log_file,omitempty"`
	// Theme names the overlay colour scheme
	Theme string `json:"theme"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		Model:             models.DefaultModel,
		BaseURL:           models.DefaultBaseURL,
		MaxTokens:         models.DefaultMaxTokens,
		Temperature:       models.DefaultTemperature,
		TimeoutSeconds:    30,
		Stream:            true,
		MaxImageDimension: 1568,
		CopyToClipboard:   false,
		SaveHistory:       false,
		LogLevel:          "info",
		Theme:             "ghost",
	}
}

// GetConfigDir returns the configuration directory path
func GetConfigDir() (string, error) {
	if dir := os.Getenv(EnvHome); dir != "" {
		return dir, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	return filepath.Join(home, ".ghostbar"), nil
}

// EnsureConfigDir creates the configuration directory if it doesn't exist
func EnsureConfigDir() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}

	// 0o700: the directory holds the API key and transcripts
	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return configDir, nil
}

// GetConfigPath returns the path to the config file
func GetConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.json"), nil
}

// GetLogPath returns the log file from config, or the default under the config dir
func GetLogPath(cfg Config) (string, error) {
	if cfg.LogFile != "" {
		return cfg.LogFile, nil
	}
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "ghostbar.log"), nil
}

// LoadConfig loads the configuration from disk
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()

	configPath, err := GetConfigPath()
	if err != nil {
		return cfg, err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Use defaults if config doesn't exist
		}
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to disk
func SaveConfig(cfg Config) error {
	configDir, err := EnsureConfigDir()
	if err != nil {
		return err
	}

	configPath := filepath.Join(configDir, "config.json")

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// 0o600: the file may contain the API key
	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadEnv loads .env files from the working directory and the config
// directory. Variables already set in the environment win.
func LoadEnv() []string {
	var loaded []string

	candidates := []string{".env"}
	if dir, err := GetConfigDir(); err == nil {
		candidates = append(candidates, filepath.Join(dir, ".env"))
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err == nil {
			loaded = append(loaded, path)
		}
	}

	return loaded
}

// ApplyEnv overlays environment variables on cfg
func ApplyEnv(cfg Config) Config {
	if v := strings.TrimSpace(os.Getenv(EnvAPIKey)); v != "" {
		cfg.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvModel)); v != "" {
		cfg.Model = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvBaseURL)); v != "" {
		cfg.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.LogLevel = v
	}
	return cfg
}

// Load reads .env files, the config file and the environment, in that order of precedence
func Load() (Config, error) {
	LoadEnv()
	cfg, err := LoadConfig()
	return ApplyEnv(cfg), err
}

// setters maps `config set` keys to field updates
var setters = map[string]func(*Config, string) error{
	"api_key":  func(c *Config, v string) error { c.APIKey = v; return nil },
	"model":    func(c *Config, v string) error { c.Model = v; return nil },
	"base_url": func(c *Config, v string) error { c.BaseURL = v; return nil },
	"system_prompt": func(c *Config, v string) error {
		c.SystemPrompt = v
		return nil
	},
	"log_level": func(c *Config, v string) error { c.LogLevel = v; return nil },
	"log_file":  func(c *Config, v string) error { c.LogFile = v; return nil },
	"theme":     func(c *Config, v string) error { c.Theme = strings.ToLower(v); return nil },
	"max_tokens": func(c *Config, v string) error {
		return setPositiveInt(&c.MaxTokens, v)
	},
	"timeout_seconds": func(c *Config, v string) error {
		return setPositiveInt(&c.TimeoutSeconds, v)
	},
	"max_image_dimension": func(c *Config, v string) error {
		return setPositiveInt(&c.MaxImageDimension, v)
	},
	"temperature": func(c *Config, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 || f > 2 {
			return fmt.Errorf("temperature must be a number between 0 and 2")
		}
		c.Temperature = f
		return nil
	},
	"stream":            func(c *Config, v string) error { return setBool(&c.Stream, v) },
	"copy_to_clipboard": func(c *Config, v string) error { return setBool(&c.CopyToClipboard, v) },
	"save_history":      func(c *Config, v string) error { return setBool(&c.SaveHistory, v) },
}

// Keys returns the keys accepted by Set, sorted
func Keys() []string {
	keys := make([]string, 0, len(setters))
	for k := range setters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Set updates one field by its JSON key
func (c *Config) Set(key, value string) error {
	set, ok := setters[strings.ToLower(strings.TrimSpace(key))]
	if !ok {
		return fmt.Errorf("unknown config key %q (valid: %s)", key, strings.Join(Keys(), ", "))
	}
	return set(c, strings.TrimSpace(value))
}

// Get returns one field by its JSON key, formatted for display
func (c Config) Get(key string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "api_key":
		return MaskKey(c.APIKey), nil
	case "model":
		return c.Model, nil
	case "base_url":
		return c.BaseURL, nil
	case "system_prompt":
		return c.SystemPrompt, nil
	case "log_level":
		return c.LogLevel, nil
	case "log_file":
		return c.LogFile, nil
	case "theme":
		return c.Theme, nil
	case "max_tokens":
		return strconv.Itoa(c.MaxTokens), nil
	case "timeout_seconds":
		return strconv.Itoa(c.TimeoutSeconds), nil
	case "max_image_dimension":
		return strconv.Itoa(c.MaxImageDimension), nil
	case "temperature":
		return strconv.FormatFloat(c.Temperature, 'f', -1, 64), nil
	case "stream":
		return strconv.FormatBool(c.Stream), nil
	case "copy_to_clipboard":
		return strconv.FormatBool(c.CopyToClipboard), nil
	case "save_history":
		return strconv.FormatBool(c.SaveHistory), nil
	default:
		return "", fmt.Errorf("unknown config key %q (valid: %s)", key, strings.Join(Keys(), ", "))
	}
}

// MaskKey hides all but the last four characters of a key
func MaskKey(key string) string {
	if key == "" {
		return "(not set)"
	}
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:3] + strings.Repeat("*", 8) + key[len(key)-4:]
}

func setPositiveInt(dst *int, v string) error {
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fmt.Errorf("value must be a positive integer, got %q", v)
	}
	*dst = n
	return nil
}

func setBool(dst *bool, v string) error {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("value must be true or false, got %q", v)
	}
	*dst = b
	return nil
}

// AvailableModels returns the known vision-capable model names
func AvailableModels() []string {
	return append([]string(nil), models.VisionModels...)
}
