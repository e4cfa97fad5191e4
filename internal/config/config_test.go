package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points the user config at an empty temp dir and clears DOCCHAT_* env.
func isolate(t *testing.T) string {
	t.Helper()
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	for _, k := range []string{
		"DOCCHAT_ENDPOINT", "DOCCHAT_RESULT_COUNT", "DOCCHAT_TIMEOUT",
		"DOCCHAT_STALE_POLICY", "DOCCHAT_LOG_LEVEL", "DOCCHAT_PLAIN", "DOCCHAT_NO_COLOR",
	} {
		t.Setenv(k, "")
	}
	return xdg
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestNewConfig_ReturnsDefaults(t *testing.T) {
	// Given: no configuration
	cfg := NewConfig()

	// Then: defaults match the search backend contract
	require.NotNil(t, cfg)
	assert.Equal(t, 1, cfg.Version)
	assert.Equal(t, "http://localhost:3000", cfg.Search.Endpoint)
	assert.Equal(t, "/api/search", cfg.Search.Path)
	assert.Equal(t, 4, cfg.Search.ResultCount)
	assert.Empty(t, cfg.Search.Timeout)
	assert.Equal(t, StalePolicyDrop, cfg.Session.StalePolicy)
	assert.Equal(t, DefaultGreeting(), cfg.Session.Greeting)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_NoFiles_UsesDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load(t.TempDir())

	require.NoError(t, err)
	assert.Equal(t, NewConfig(), cfg)
}

func TestLoad_Precedence(t *testing.T) {
	// Given: user config, project config and env all set
	xdg := isolate(t)
	writeFile(t, filepath.Join(xdg, "docchat", "config.yaml"), `
search:
  endpoint: https://user.example.com
  result_count: 6
session:
  stale_policy: last_wins
logging:
  level: warn
`)
	project := t.TempDir()
	writeFile(t, filepath.Join(project, ".docchat.yaml"), `
search:
  result_count: 8
  timeout: 15s
`)
	t.Setenv("DOCCHAT_LOG_LEVEL", "debug")

	// When: loading
	cfg, err := Load(project)

	// Then: later sources win field by field
	require.NoError(t, err)
	assert.Equal(t, "https://user.example.com", cfg.Search.Endpoint)
	assert.Equal(t, 8, cfg.Search.ResultCount)
	assert.Equal(t, 15*time.Second, cfg.RequestTimeout())
	assert.Equal(t, StalePolicyLastWins, cfg.Session.StalePolicy)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_ProjectYMLFallback(t *testing.T) {
	isolate(t)
	project := t.TempDir()
	writeFile(t, filepath.Join(project, ".docchat.yml"), "search:\n  endpoint: http://yml.local:9000\n")

	cfg, err := Load(project)

	require.NoError(t, err)
	assert.Equal(t, "http://yml.local:9000", cfg.Search.Endpoint)
	assert.Equal(t, filepath.Join(project, ".docchat.yml"), FindProjectConfig(project))
}

func TestLoad_EnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("DOCCHAT_ENDPOINT", "http://env.local")
	t.Setenv("DOCCHAT_RESULT_COUNT", "2")
	t.Setenv("DOCCHAT_TIMEOUT", "3s")
	t.Setenv("DOCCHAT_STALE_POLICY", "last_wins")
	t.Setenv("DOCCHAT_PLAIN", "true")
	t.Setenv("DOCCHAT_NO_COLOR", "1")

	cfg, err := Load(t.TempDir())

	require.NoError(t, err)
	assert.Equal(t, "http://env.local", cfg.Search.Endpoint)
	assert.Equal(t, 2, cfg.Search.ResultCount)
	assert.Equal(t, 3*time.Second, cfg.RequestTimeout())
	assert.Equal(t, StalePolicyLastWins, cfg.Session.StalePolicy)
	assert.True(t, cfg.UI.Plain)
	assert.True(t, cfg.UI.NoColor)
}

func TestLoad_GreetingOverride(t *testing.T) {
	isolate(t)
	project := t.TempDir()
	writeFile(t, filepath.Join(project, ".docchat.yaml"), `
session:
  greeting:
    - text: Welcome to the handbook search
      origin: system
`)

	cfg, err := Load(project)

	require.NoError(t, err)
	assert.Equal(t, []GreetingMessage{{Text: "Welcome to the handbook search", Origin: "system"}}, cfg.Session.Greeting)
}

func TestLoad_InvalidYAML(t *testing.T) {
	isolate(t)
	project := t.TempDir()
	writeFile(t, filepath.Join(project, ".docchat.yaml"), "search: [unclosed")

	_, err := Load(project)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestLoad_InvalidValues(t *testing.T) {
	isolate(t)
	t.Setenv("DOCCHAT_STALE_POLICY", "newest")

	_, err := Load(t.TempDir())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestMerge_DoesNotValidate(t *testing.T) {
	// Given: an invalid env override
	isolate(t)
	t.Setenv("DOCCHAT_STALE_POLICY", "newest")

	// When: merging without validation
	cfg, err := Merge(t.TempDir())

	// Then: the value is kept for the caller to fix or report
	require.NoError(t, err)
	assert.Equal(t, "newest", cfg.Session.StalePolicy)
	assert.Error(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid defaults", func(*Config) {}, ""},
		{"endpoint without scheme", func(c *Config) { c.Search.Endpoint = "localhost:3000" }, "search.endpoint"},
		{"endpoint ftp", func(c *Config) { c.Search.Endpoint = "ftp://host" }, "search.endpoint"},
		{"path without slash", func(c *Config) { c.Search.Path = "api/search" }, "search.path"},
		{"count zero", func(c *Config) { c.Search.ResultCount = 0 }, "search.result_count"},
		{"count too large", func(c *Config) { c.Search.ResultCount = 101 }, "search.result_count"},
		{"bad timeout", func(c *Config) { c.Search.Timeout = "soon" }, "search.timeout"},
		{"negative timeout", func(c *Config) { c.Search.Timeout = "-1s" }, "search.timeout"},
		{"bad policy", func(c *Config) { c.Session.StalePolicy = "first" }, "session.stale_policy"},
		{"bad greeting origin", func(c *Config) {
			c.Session.Greeting = []GreetingMessage{{Text: "hi", Origin: "bot"}}
		}, "session.greeting[0].origin"},
		{"bad level", func(c *Config) { c.Logging.Level = "trace" }, "logging.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)

			err := cfg.Validate()

			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRequestTimeout_Unset(t *testing.T) {
	cfg := NewConfig()
	assert.Equal(t, time.Duration(0), cfg.RequestTimeout())

	cfg.Search.Timeout = "garbage"
	assert.Equal(t, time.Duration(0), cfg.RequestTimeout())
}

func TestWriteYAML_RoundTripsThroughReadFile(t *testing.T) {
	// Given: a modified config written to disk
	cfg := NewConfig()
	cfg.Search.Endpoint = "https://search.example.com"
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, cfg.WriteYAML(path))

	// When: reading it back
	read, err := ReadFile(path)

	// Then: values survive
	require.NoError(t, err)
	assert.Equal(t, cfg, read)
}

func TestMergeNewDefaults(t *testing.T) {
	// Given: an old config file that only set the endpoint
	cfg := &Config{Search: SearchConfig{Endpoint: "http://old.local"}}

	// When: merging new defaults
	added := cfg.MergeNewDefaults()

	// Then: missing fields are filled and reported
	assert.Equal(t, []string{
		"search.path", "search.result_count", "session.stale_policy",
		"logging.level", "logging.max_size_mb", "logging.max_files",
	}, added)
	assert.Equal(t, "http://old.local", cfg.Search.Endpoint)
	assert.Equal(t, DefaultResultCount, cfg.Search.ResultCount)

	// And: a second merge is a no-op
	assert.Empty(t, cfg.MergeNewDefaults())
}

func TestUserConfigPath_XDG(t *testing.T) {
	xdg := isolate(t)

	assert.Equal(t, filepath.Join(xdg, "docchat", "config.yaml"), GetUserConfigPath())
	assert.Equal(t, filepath.Join(xdg, "docchat"), GetUserConfigDir())
	assert.False(t, UserConfigExists())

	cfg, err := LoadUserConfig()
	assert.NoError(t, err)
	assert.Nil(t, cfg)
}

func TestBackupUserConfig(t *testing.T) {
	xdg := isolate(t)

	// Given: no config yet
	path, err := BackupUserConfig()
	require.NoError(t, err)
	assert.Empty(t, path)

	// When: a config exists and is backed up more than MaxBackups times
	writeFile(t, filepath.Join(xdg, "docchat", "config.yaml"), "search:\n  result_count: 5\n")
	for i := 0; i < MaxBackups+2; i++ {
		path, err = BackupUserConfig()
		require.NoError(t, err)
		require.NotEmpty(t, path)
		time.Sleep(2 * time.Millisecond)
	}

	// Then: only MaxBackups remain and the newest is first
	backups, err := ListUserConfigBackups()
	require.NoError(t, err)
	assert.Len(t, backups, MaxBackups)
	assert.Equal(t, path, backups[0])

	data, err := os.ReadFile(backups[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), "result_count: 5")
}
