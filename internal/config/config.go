// Package config loads docchat configuration from defaults, YAML files and
// the environment.
package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Stale response policies.
const (
	// StalePolicyDrop discards responses of superseded requests.
	StalePolicyDrop = "drop"
	// StalePolicyLastWins applies every response in arrival order.
	StalePolicyLastWins = "last_wins"
)

const (
	// DefaultEndpoint is the base URL of the search backend.
	DefaultEndpoint = "http://localhost:3000"
	// DefaultSearchPath is the search route on the backend.
	DefaultSearchPath = "/api/search"
	// DefaultResultCount is the number of passages requested per query.
	DefaultResultCount = 4
	// MaxResultCount bounds the count parameter.
	MaxResultCount = 100
)

// projectConfigNames are probed in order inside the working directory.
var projectConfigNames = []string{".docchat.yaml", ".docchat.yml"}

// Config represents the complete docchat configuration.
type Config struct {
	Version int           `yaml:"version" json:"version"`
	Search  SearchConfig  `yaml:"search" json:"search"`
	Session SessionConfig `yaml:"session" json:"session"`
	UI      UIConfig      `yaml:"ui" json:"ui"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// SearchConfig configures the outbound search request.
type SearchConfig struct {
	// Endpoint is the scheme and host of the search backend.
	Endpoint string `yaml:"endpoint" json:"endpoint"`

	// Path is the route appended to Endpoint.
	Path string `yaml:"path" json:"path"`

	// ResultCount is sent as the count query parameter.
	ResultCount int `yaml:"result_count" json:"result_count"`

	// Timeout bounds a single request at the transport ("" or "0" means none).
	Timeout string `yaml:"timeout" json:"timeout"`
}

// SessionConfig configures the chat session.
type SessionConfig struct {
	// StalePolicy decides what happens to responses of superseded requests.
	StalePolicy string `yaml:"stale_policy" json:"stale_policy"`

	// Greeting replaces the seeded transcript when non-empty.
	Greeting []GreetingMessage `yaml:"greeting,omitempty" json:"greeting,omitempty"`

	// NoGreeting starts the session with an empty transcript.
	NoGreeting bool `yaml:"no_greeting" json:"no_greeting"`
}

// GreetingMessage is one seeded transcript entry.
type GreetingMessage struct {
	Text   string `yaml:"text" json:"text"`
	Origin string `yaml:"origin" json:"origin"` // "user" or "system"
}

// UIConfig configures rendering.
type UIConfig struct {
	Plain   bool `yaml:"plain" json:"plain"`
	NoColor bool `yaml:"no_color" json:"no_color"`
}

// LoggingConfig configures the diagnostic log file.
type LoggingConfig struct {
	Level     string `yaml:"level" json:"level"`
	File      string `yaml:"file" json:"file"`
	MaxSizeMB int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxFiles  int    `yaml:"max_files" json:"max_files"`
}

// DefaultGreeting is the transcript a new session starts with.
func DefaultGreeting() []GreetingMessage {
	return []GreetingMessage{
		{Text: "hello", Origin: "user"},
		{Text: "how can I help", Origin: "system"},
	}
}

// NewConfig creates a new Config with defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Search: SearchConfig{
			Endpoint:    DefaultEndpoint,
			Path:        DefaultSearchPath,
			ResultCount: DefaultResultCount,
			Timeout:     "", // the session never times out on its own
		},
		Session: SessionConfig{
			StalePolicy: StalePolicyDrop,
			Greeting:    DefaultGreeting(),
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSizeMB: 10,
			MaxFiles:  5,
		},
	}
}

// GetUserConfigPath returns the path to the user configuration file.
// It follows the XDG Base Directory specification:
//   - $XDG_CONFIG_HOME/docchat/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/docchat/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "docchat", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "docchat", "config.yaml")
	}
	return filepath.Join(home, ".config", "docchat", "config.yaml")
}

// GetUserConfigDir returns the directory containing the user configuration.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// LoadUserConfig loads the user configuration file on top of defaults.
// Returns nil config and nil error if the file doesn't exist.
func LoadUserConfig() (*Config, error) {
	configPath := GetUserConfigPath()
	if !fileExists(configPath) {
		return nil, nil
	}

	cfg := NewConfig()
	if err := cfg.loadYAML(configPath); err != nil {
		return nil, fmt.Errorf("failed to load user config from %s: %w", configPath, err)
	}
	return cfg, nil
}

// ReadFile parses a single YAML config file without applying defaults.
func ReadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return &cfg, nil
}

// FindProjectConfig returns the project config path inside dir, or "".
func FindProjectConfig(dir string) string {
	for _, name := range projectConfigNames {
		p := filepath.Join(dir, name)
		if fileExists(p) {
			return p
		}
	}
	return ""
}

// Load loads configuration for the given working directory.
// It applies configuration in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User config (~/.config/docchat/config.yaml)
//  3. Project config (.docchat.yaml in dir)
//  4. Environment variables (DOCCHAT_*)
//
// The merged result is validated.
func Load(dir string) (*Config, error) {
	cfg, err := Merge(dir)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Merge applies the same layers as Load without validating the result.
// Callers apply CLI flag overrides afterwards and call Validate themselves.
func Merge(dir string) (*Config, error) {
	cfg := NewConfig()

	if userPath := GetUserConfigPath(); fileExists(userPath) {
		if err := cfg.loadYAML(userPath); err != nil {
			return nil, fmt.Errorf("failed to load user config: %w", err)
		}
	}

	if projectPath := FindProjectConfig(dir); projectPath != "" {
		if err := cfg.loadYAML(projectPath); err != nil {
			return nil, err
		}
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// loadYAML parses a YAML file and merges its non-zero values into c.
func (c *Config) loadYAML(path string) error {
	parsed, err := ReadFile(path)
	if err != nil {
		return err
	}

	c.mergeWith(parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	if other.Search.Endpoint != "" {
		c.Search.Endpoint = other.Search.Endpoint
	}
	if other.Search.Path != "" {
		c.Search.Path = other.Search.Path
	}
	if other.Search.ResultCount != 0 {
		c.Search.ResultCount = other.Search.ResultCount
	}
	if other.Search.Timeout != "" {
		c.Search.Timeout = other.Search.Timeout
	}

	if other.Session.StalePolicy != "" {
		c.Session.StalePolicy = other.Session.StalePolicy
	}
	if len(other.Session.Greeting) > 0 {
		c.Session.Greeting = other.Session.Greeting
	}
	if other.Session.NoGreeting {
		c.Session.NoGreeting = true
	}

	// Booleans can only be switched on by a file.
	if other.UI.Plain {
		c.UI.Plain = true
	}
	if other.UI.NoColor {
		c.UI.NoColor = true
	}

	if other.Logging.Level != "" {
		c.Logging.Level = other.Logging.Level
	}
	if other.Logging.File != "" {
		c.Logging.File = other.Logging.File
	}
	if other.Logging.MaxSizeMB != 0 {
		c.Logging.MaxSizeMB = other.Logging.MaxSizeMB
	}
	if other.Logging.MaxFiles != 0 {
		c.Logging.MaxFiles = other.Logging.MaxFiles
	}
}

// applyEnvOverrides applies DOCCHAT_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("DOCCHAT_ENDPOINT"); v != "" {
		c.Search.Endpoint = v
	}
	if v := os.Getenv("DOCCHAT_RESULT_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Search.ResultCount = n
		}
	}
	if v := os.Getenv("DOCCHAT_TIMEOUT"); v != "" {
		c.Search.Timeout = v
	}
	if v := os.Getenv("DOCCHAT_STALE_POLICY"); v != "" {
		c.Session.StalePolicy = v
	}
	if v := os.Getenv("DOCCHAT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("DOCCHAT_PLAIN"); v != "" {
		c.UI.Plain = parseBool(v)
	}
	if v := os.Getenv("DOCCHAT_NO_COLOR"); v != "" {
		c.UI.NoColor = parseBool(v)
	}
}

func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "1" || s == "true" || s == "yes" || s == "on"
}

// RequestTimeout returns the parsed transport timeout; zero means none.
func (c *Config) RequestTimeout() time.Duration {
	if c.Search.Timeout == "" {
		return 0
	}
	d, err := time.ParseDuration(c.Search.Timeout)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Search.Endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("search.endpoint must be an http(s) URL with a host, got %q", c.Search.Endpoint)
	}
	if !strings.HasPrefix(c.Search.Path, "/") {
		return fmt.Errorf("search.path must start with '/', got %q", c.Search.Path)
	}
	if c.Search.ResultCount < 1 || c.Search.ResultCount > MaxResultCount {
		return fmt.Errorf("search.result_count must be between 1 and %d, got %d", MaxResultCount, c.Search.ResultCount)
	}
	if c.Search.Timeout != "" {
		d, err := time.ParseDuration(c.Search.Timeout)
		if err != nil {
			return fmt.Errorf("search.timeout must be a duration like 30s, got %q", c.Search.Timeout)
		}
		if d < 0 {
			return fmt.Errorf("search.timeout must be non-negative, got %s", c.Search.Timeout)
		}
	}

	switch c.Session.StalePolicy {
	case StalePolicyDrop, StalePolicyLastWins:
	default:
		return fmt.Errorf("session.stale_policy must be '%s' or '%s', got %q", StalePolicyDrop, StalePolicyLastWins, c.Session.StalePolicy)
	}
	for i, g := range c.Session.Greeting {
		switch strings.ToLower(g.Origin) {
		case "user", "system":
		default:
			return fmt.Errorf("session.greeting[%d].origin must be 'user' or 'system', got %q", i, g.Origin)
		}
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level)
	}
	if c.Logging.MaxSizeMB < 0 || c.Logging.MaxFiles < 0 {
		return fmt.Errorf("logging.max_size_mb and logging.max_files must be non-negative")
	}

	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// JSON returns the indented JSON form used by `config show --json`.
func (c *Config) JSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// MergeNewDefaults fills fields missing from an older config file with the
// current defaults. Returns the dotted names of the fields it added.
func (c *Config) MergeNewDefaults() []string {
	defaults := NewConfig()
	var added []string

	if c.Search.Path == "" {
		c.Search.Path = defaults.Search.Path
		added = append(added, "search.path")
	}
	if c.Search.ResultCount == 0 {
		c.Search.ResultCount = defaults.Search.ResultCount
		added = append(added, "search.result_count")
	}
	if c.Session.StalePolicy == "" {
		c.Session.StalePolicy = defaults.Session.StalePolicy
		added = append(added, "session.stale_policy")
	}
	if c.Logging.Level == "" {
		c.Logging.Level = defaults.Logging.Level
		added = append(added, "logging.level")
	}
	if c.Logging.MaxSizeMB == 0 {
		c.Logging.MaxSizeMB = defaults.Logging.MaxSizeMB
		added = append(added, "logging.max_size_mb")
	}
	if c.Logging.MaxFiles == 0 {
		c.Logging.MaxFiles = defaults.Logging.MaxFiles
		added = append(added, "logging.max_files")
	}

	return added
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
