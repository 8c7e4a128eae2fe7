package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	ErrServerURLNotSet = errors.New("home assistant url is not configured")
	ErrTokenNotSet     = errors.New("home assistant token is not configured")
	ErrAgentNotSet     = errors.New("conversation agent is not configured")
	ErrInvalidInterval = errors.New("invalid duration value")
)

// DefaultPrompt is the translation instruction sent ahead of the release notes
// when the user has not configured one.
const DefaultPrompt = "You are a professional translator of software release notes. " +
	"Translate the following update summary into Simplified Chinese. " +
	"Keep version numbers and proper nouns (integration names, component names) unchanged. " +
	"Reply with the translated text only, without any preamble or explanation."

// Defaults for optional settings
const (
	DefaultPollInterval = 5 * time.Minute
	DefaultNotesTTL     = time.Hour
)

// Config represents the application configuration
type Config struct {
	HomeAssistant HomeAssistantConfig `yaml:"homeassistant"`
	Translator    TranslatorConfig    `yaml:"translator"`
	GitHub        GitHubConfig        `yaml:"github"`
}

// HomeAssistantConfig holds connection settings for the Home Assistant API
type HomeAssistantConfig struct {
	URL   string `yaml:"url"`   // Base URL, e.g. http://homeassistant.local:8123
	Token string `yaml:"token"` // Long-lived access token
}

// TranslatorConfig holds translation pipeline settings
type TranslatorConfig struct {
	Agent            string `yaml:"agent"`             // Conversation agent entity, e.g. conversation.chatgpt
	Prompt           string `yaml:"prompt"`            // Instruction prepended to the release notes
	PollInterval     string `yaml:"poll_interval"`     // How often the watcher polls (default: 5m)
	NotesTTL         string `yaml:"notes_ttl"`         // How long fetched release notes stay cached (default: 1h)
	Reapply          bool   `yaml:"reapply"`           // Re-write a stored translation when the host reverts it
	MirrorAttributes bool   `yaml:"mirror_attributes"` // Also write summary/release_notes/latest_version_notes
}

// GitHubConfig holds GitHub API settings
type GitHubConfig struct {
	Token string `yaml:"token"` // Personal access token for higher rate limits
}

// ConfigPaths returns all possible config file paths in priority order
// 1. ~/.config/hatrans/config.yaml (XDG standard - priority)
// 2. ~/.hatrans/config.yaml (legacy fallback)
func ConfigPaths() ([]string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	// Check XDG_CONFIG_HOME first, fallback to ~/.config
	xdgConfig := os.Getenv("XDG_CONFIG_HOME")
	if xdgConfig == "" {
		xdgConfig = filepath.Join(home, ".config")
	}

	return []string{
		filepath.Join(xdgConfig, "hatrans", "config.yaml"),
		filepath.Join(home, ".hatrans", "config.yaml"),
	}, nil
}

// DefaultConfigPath returns the default config file path (XDG standard)
func DefaultConfigPath() (string, error) {
	paths, err := ConfigPaths()
	if err != nil {
		return "", err
	}
	return paths[0], nil
}

// FindConfigPath returns the first existing config file path
// Returns the default path if no config file exists yet
func FindConfigPath() (string, error) {
	paths, err := ConfigPaths()
	if err != nil {
		return "", err
	}

	// Return first existing config file
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	// No config exists, return default (XDG) path for creation
	return paths[0], nil
}

// RulesPath returns the per-entity rules file, which lives next to the
// config file.
func RulesPath() (string, error) {
	configPath, err := FindConfigPath()
	if err != nil {
		return "", err
	}
	return filepath.Join(filepath.Dir(configPath), "entities.toml"), nil
}

// DataDir returns the directory for the ledger and the notes cache
// (XDG_DATA_HOME/hatrans, or ~/.local/share/hatrans)
func DataDir() (string, error) {
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "hatrans"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "share", "hatrans"), nil
}

// LedgerPath returns the translation ledger file path
func LedgerPath() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "ledger.json"), nil
}

// NotesCachePath returns the notes cache file path
func NotesCachePath() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "notes_cache.json"), nil
}

// Load reads configuration from the first available config file
// Priority: ~/.config/hatrans/config.yaml > ~/.hatrans/config.yaml
func Load() (*Config, error) {
	configPath, err := FindConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFrom(configPath)
}

// LoadFrom reads configuration from a specific file path
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Create default config
			cfg := Default()
			if saveErr := cfg.SaveTo(path); saveErr != nil {
				return nil, saveErr
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Default returns a configuration populated with default values.
// Connection settings are left empty and must be filled in by the user.
func Default() *Config {
	return &Config{
		Translator: TranslatorConfig{
			Prompt:       DefaultPrompt,
			PollInterval: DefaultPollInterval.String(),
			NotesTTL:     DefaultNotesTTL.String(),
			Reapply:      true,
		},
	}
}

// Save writes configuration to the default config file
func (c *Config) Save() error {
	configPath, err := DefaultConfigPath()
	if err != nil {
		return err
	}
	return c.SaveTo(configPath)
}

// SaveTo writes configuration to a specific file path
func (c *Config) SaveTo(path string) error {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	// Token-bearing file, keep it private
	return os.WriteFile(path, data, 0600)
}

// ServerURL returns the validated, normalized Home Assistant base URL
func (c *Config) ServerURL() (string, error) {
	if c.HomeAssistant.URL == "" {
		return "", ErrServerURLNotSet
	}

	u, err := url.Parse(c.HomeAssistant.URL)
	if err != nil {
		return "", fmt.Errorf("invalid home assistant url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("invalid home assistant url: scheme must be http or https, got %q", u.Scheme)
	}

	return strings.TrimRight(c.HomeAssistant.URL, "/"), nil
}

// Prompt returns the configured prompt, or the default when unset
func (c *Config) Prompt() string {
	if c.Translator.Prompt == "" {
		return DefaultPrompt
	}
	return c.Translator.Prompt
}

// PollInterval returns the parsed poll interval, or the default when unset
func (c *Config) PollInterval() (time.Duration, error) {
	return parseDuration(c.Translator.PollInterval, DefaultPollInterval)
}

// NotesTTL returns the parsed notes cache TTL, or the default when unset
func (c *Config) NotesTTL() (time.Duration, error) {
	return parseDuration(c.Translator.NotesTTL, DefaultNotesTTL)
}

func parseDuration(value string, fallback time.Duration) (time.Duration, error) {
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidInterval, value)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%w: %q must be positive", ErrInvalidInterval, value)
	}
	return d, nil
}

// ValidationError represents a configuration validation failure
type ValidationError struct {
	Path   string
	Errors []string
}

func (e *ValidationError) Error() string {
	msg := "configuration validation failed for " + e.Path + ":"
	for _, err := range e.Errors {
		msg += "\n  - " + err
	}
	msg += "\n\nSuggestion: run 'hatrans config init' or edit the configuration file"
	return msg
}

// Validate checks that the configuration is complete enough to run the
// translation pipeline. The path is only used for error reporting.
func (c *Config) Validate(path string) error {
	var errs []string

	if _, err := c.ServerURL(); err != nil {
		errs = append(errs, err.Error())
	}
	if c.HomeAssistant.Token == "" {
		errs = append(errs, ErrTokenNotSet.Error())
	}
	if c.Translator.Agent == "" {
		errs = append(errs, ErrAgentNotSet.Error())
	} else if !strings.HasPrefix(c.Translator.Agent, "conversation.") {
		errs = append(errs, fmt.Sprintf("agent %q is not a conversation entity", c.Translator.Agent))
	}
	if _, err := c.PollInterval(); err != nil {
		errs = append(errs, err.Error())
	}
	if _, err := c.NotesTTL(); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return &ValidationError{Path: path, Errors: errs}
	}
	return nil
}
