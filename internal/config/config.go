// Package config handles configuration for geminiworkshop.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	apierrors "github.com/diogo/geminiworkshop/internal/errors"
)

// MarkdownConfig configures markdown rendering options
type MarkdownConfig struct {
	Style            string `json:"style" yaml:"style"`                           // "dark", "light", or path to JSON theme
	EnableEmoji      bool   `json:"enable_emoji" yaml:"enable_emoji"`             // Convert :emoji: to unicode
	PreserveNewLines bool   `json:"preserve_newlines" yaml:"preserve_newlines"`   // Preserve original line breaks
	TableWrap        bool   `json:"table_wrap" yaml:"table_wrap"`                 // Enable word wrap in table cells
	InlineTableLinks bool   `json:"inline_table_links" yaml:"inline_table_links"` // Render links inline in tables
}

// Config represents the user configuration
type Config struct {
	APIKey  string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`

	// Models per screen. The original app used a text model for the
	// text-only and chat screens and a vision model for text+image.
	TextModel   string `json:"text_model" yaml:"text_model"`
	VisionModel string `json:"vision_model" yaml:"vision_model"`
	ChatModel   string `json:"chat_model" yaml:"chat_model"`

	// TimeoutSeconds is the transport timeout for a single generate call.
	TimeoutSeconds int `json:"timeout_seconds" yaml:"timeout_seconds"`
	// ImageMaxDimension bounds the longest side of an attachment before upload.
	ImageMaxDimension int `json:"image_max_dimension" yaml:"image_max_dimension"`

	// Verbose enables detailed logging output during operations.
	Verbose         bool           `json:"verbose" yaml:"verbose"`
	CopyToClipboard bool           `json:"copy_to_clipboard" yaml:"copy_to_clipboard"`
	SnapshotDB      string         `json:"snapshot_db,omitempty" yaml:"snapshot_db,omitempty"` // SQLite file for screen state
	TUITheme        string         `json:"tui_theme,omitempty" yaml:"tui_theme,omitempty"`
	Markdown        MarkdownConfig `json:"markdown,omitempty" yaml:"markdown,omitempty"`
}

// DefaultMarkdownConfig returns the default markdown configuration
func DefaultMarkdownConfig() MarkdownConfig {
	return MarkdownConfig{
		Style:            "dark",
		EnableEmoji:      true,
		PreserveNewLines: true,
		TableWrap:        true,
		InlineTableLinks: false,
	}
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		TextModel:         "gemini-2.5-flash",
		VisionModel:       "gemini-2.5-flash",
		ChatModel:         "gemini-2.5-flash",
		TimeoutSeconds:    120,
		ImageMaxDimension: 768,
		Verbose:           false,
		CopyToClipboard:   false,
		TUITheme:          "tokyonight",
		Markdown:          DefaultMarkdownConfig(),
	}
}

// configDirOverride is set by --config-dir and tests
var configDirOverride string

// SetConfigDir overrides the configuration directory. An empty dir restores the default.
func SetConfigDir(dir string) {
	configDirOverride = dir
}

// GetConfigDir returns the configuration directory path
func GetConfigDir() (string, error) {
	if configDirOverride != "" {
		return configDirOverride, nil
	}
	if env := os.Getenv("GEMINIWORKSHOP_HOME"); env != "" {
		return env, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	return filepath.Join(home, ".geminiworkshop"), nil
}

// EnsureConfigDir creates the configuration directory if it doesn't exist
func EnsureConfigDir() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}

	// Use 0o700 for sensitive directories (contains the API key)
	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return configDir, nil
}

// GetConfigPath returns the path to the JSON config file
func GetConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.json"), nil
}

// GetSnapshotDBPath returns the SQLite file holding persisted screen state
func GetSnapshotDBPath(cfg Config) (string, error) {
	if cfg.SnapshotDB != "" {
		return cfg.SnapshotDB, nil
	}
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "state.db"), nil
}

// LoadConfig loads the configuration from disk.
// config.json wins over config.yaml when both exist. Environment variables
// are applied last.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()

	configDir, err := GetConfigDir()
	if err != nil {
		return cfg, err
	}

	loaded, err := loadFile(filepath.Join(configDir, "config.json"), json.Unmarshal, &cfg)
	if err != nil {
		return applyEnv(DefaultConfig()), err
	}
	if !loaded {
		for _, name := range []string{"config.yaml", "config.yml"} {
			loaded, err = loadFile(filepath.Join(configDir, name), yaml.Unmarshal, &cfg)
			if err != nil {
				return applyEnv(DefaultConfig()), err
			}
			if loaded {
				break
			}
		}
	}

	return applyEnv(cfg), nil
}

func loadFile(path string, unmarshal func([]byte, any) error, cfg *Config) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := unmarshal(data, cfg); err != nil {
		return false, fmt.Errorf("failed to parse config file %s: %w", filepath.Base(path), err)
	}
	return true, nil
}

// applyEnv applies environment overrides
func applyEnv(cfg Config) Config {
	if key := strings.TrimSpace(os.Getenv("GEMINI_API_KEY")); key != "" {
		cfg.APIKey = key
	} else if key := strings.TrimSpace(os.Getenv("GOOGLE_API_KEY")); key != "" {
		cfg.APIKey = key
	}
	if base := strings.TrimSpace(os.Getenv("GEMINI_BASE_URL")); base != "" {
		cfg.BaseURL = base
	}
	return cfg
}

// SaveConfig saves the configuration to disk as JSON
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

	// Use 0o600 for sensitive files (config may contain the API key)
	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// RequireAPIKey returns the configured key or ErrNoAPIKey
func (c Config) RequireAPIKey() (string, error) {
	key := strings.TrimSpace(c.APIKey)
	if key == "" {
		return "", fmt.Errorf("%w: set GEMINI_API_KEY or api_key in config", apierrors.ErrNoAPIKey)
	}
	return key, nil
}
