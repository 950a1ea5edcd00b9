// Package config provides configuration management for kavach.
package config

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// ConfigSuite is a test suite for config operations.
type ConfigSuite struct {
	suite.Suite
	tempDir     string
	origHomeDir string
}

func (s *ConfigSuite) SetupTest() {
	var err error
	s.tempDir, err = os.MkdirTemp("", "config-test-*")
	s.Require().NoError(err)

	// Save and override HOME
	s.origHomeDir = os.Getenv("HOME")
	os.Setenv("HOME", s.tempDir)

	cachedMu.Lock()
	cached = nil
	cachedMu.Unlock()
}

func (s *ConfigSuite) TearDownTest() {
	os.Setenv("HOME", s.origHomeDir)
	os.RemoveAll(s.tempDir)
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigSuite))
}

// TestDefault tests default configuration values.
func (s *ConfigSuite) TestDefault() {
	cfg := Default()

	s.Equal(DefaultListenPort, cfg.Server.Port)
	s.Equal("sqlite", cfg.Database.Driver)
	s.Equal(4, cfg.Database.MaxConns)
	s.Equal(3*time.Second, cfg.Classifier.Timeout)
	s.Empty(cfg.Classifier.Endpoint)
	s.Equal(DefaultPersona, cfg.Persona)
	s.Equal("info", cfg.LogLevel)
	s.InDelta(0.8, cfg.Threat.Lexical, 1e-9)
	s.InDelta(0.25, cfg.Threat.DecayAlpha, 1e-9)
}

// TestDataDir tests data directory path.
func (s *ConfigSuite) TestDataDir() {
	dir := DataDir()
	s.Contains(dir, ".kavach")
}

// TestDBPath tests database path.
func (s *ConfigSuite) TestDBPath() {
	path := DBPath()
	s.Contains(path, "kavach.db")
}

// TestConfigPath tests config file path.
func (s *ConfigSuite) TestConfigPath() {
	path := ConfigPath()
	s.Contains(path, "config.yaml")
}

// TestEnsureDataDir tests data directory creation.
func (s *ConfigSuite) TestEnsureDataDir() {
	err := EnsureDataDir()
	s.NoError(err)

	dir := DataDir()
	info, err := os.Stat(dir)
	s.NoError(err)
	s.True(info.IsDir())
}

// TestEnsureAll tests full initialization.
func (s *ConfigSuite) TestEnsureAll() {
	err := EnsureAll()
	s.NoError(err)

	_, err = os.Stat(DataDir())
	s.NoError(err)
	info, err := os.Stat(ConfigPath())
	s.NoError(err)
	s.False(info.IsDir())

	// Second call should not rewrite the existing file
	err = EnsureAll()
	s.NoError(err)
}

// TestLoad_TableDriven tests configuration loading with various scenarios.
func (s *ConfigSuite) TestLoad_TableDriven() {
	tests := []struct {
		name            string
		configYAML      string
		expectedPort    int
		expectedPersona string
		expectedLexical float64
	}{
		{
			name:            "no config file",
			configYAML:      "",
			expectedPort:    DefaultListenPort,
			expectedPersona: DefaultPersona,
			expectedLexical: 0.8,
		},
		{
			name:            "custom port",
			configYAML:      "server:\n  port: 38888\n",
			expectedPort:    38888,
			expectedPersona: DefaultPersona,
			expectedLexical: 0.8,
		},
		{
			name:            "custom persona",
			configYAML:      "persona: cautious_professional\n",
			expectedPort:    DefaultListenPort,
			expectedPersona: "cautious_professional",
			expectedLexical: 0.8,
		},
		{
			name:            "custom threat weights",
			configYAML:      "threat:\n  lexical: 0.9\n  behavioral: 0.8\n  classifier: 0.5\n  entity_boost: 0.15\n  rise_alpha: 0.7\n  decay_alpha: 0.25\n",
			expectedPort:    DefaultListenPort,
			expectedPersona: DefaultPersona,
			expectedLexical: 0.9,
		},
		{
			name:            "malformed YAML returns defaults",
			configYAML:      "{not yaml:::",
			expectedPort:    DefaultListenPort,
			expectedPersona: DefaultPersona,
			expectedLexical: 0.8,
		},
		{
			name:            "out of range port falls back",
			configYAML:      "server:\n  port: 99999\n",
			expectedPort:    DefaultListenPort,
			expectedPersona: DefaultPersona,
			expectedLexical: 0.8,
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			tempDir, err := os.MkdirTemp("", "config-test-*")
			s.Require().NoError(err)
			defer os.RemoveAll(tempDir)

			path := filepath.Join(tempDir, "config.yaml")
			if tt.configYAML != "" {
				s.Require().NoError(os.WriteFile(path, []byte(tt.configYAML), 0600))
			}

			cfg, err := Load(path)
			s.NoError(err)
			s.NotNil(cfg)
			s.Equal(tt.expectedPort, cfg.Server.Port)
			s.Equal(tt.expectedPersona, cfg.Persona)
			s.InDelta(tt.expectedLexical, cfg.Threat.Lexical, 1e-9)
		})
	}
}

// TestLoadRoundTrip tests Save followed by Load preserving values.
func (s *ConfigSuite) TestLoadRoundTrip() {
	cfg := Default()
	cfg.Server.Port = 40001
	cfg.Database.Driver = "postgres"
	cfg.Database.DSN = "host=localhost dbname=kavach"
	cfg.Classifier.Endpoint = "http://localhost:9090/classify"
	cfg.Redis.Addr = "localhost:6379"

	path := filepath.Join(s.tempDir, "config.yaml")
	s.Require().NoError(Save(cfg, path))

	loaded, err := Load(path)
	s.NoError(err)
	s.Equal(40001, loaded.Server.Port)
	s.Equal("postgres", loaded.Database.Driver)
	s.Equal("host=localhost dbname=kavach", loaded.Database.DSN)
	s.Equal("http://localhost:9090/classify", loaded.Classifier.Endpoint)
	s.Equal("localhost:6379", loaded.Redis.Addr)
}

// TestEnvOverrides tests environment variables taking precedence over the file.
func (s *ConfigSuite) TestEnvOverrides() {
	path := filepath.Join(s.tempDir, "config.yaml")
	s.Require().NoError(os.WriteFile(path, []byte("server:\n  port: 40002\n"), 0600))

	os.Setenv("KAVACH_PORT", "40003")
	os.Setenv("KAVACH_SIGNING_SECRET", "env-secret")
	defer os.Unsetenv("KAVACH_PORT")
	defer os.Unsetenv("KAVACH_SIGNING_SECRET")

	cfg, err := Load(path)
	s.NoError(err)
	s.Equal(40003, cfg.Server.Port)
	s.Equal("env-secret", cfg.Signing.Secret)
}

// TestGetReturnsLastLoaded tests the cached accessor.
func (s *ConfigSuite) TestGetReturnsLastLoaded() {
	path := filepath.Join(s.tempDir, "config.yaml")
	s.Require().NoError(os.WriteFile(path, []byte("server:\n  port: 40004\n"), 0600))

	_, err := Load(path)
	s.Require().NoError(err)

	s.Equal(40004, Get().Server.Port)
}

// TestWatcherReloadsOnWrite tests the hot reload path end to end.
func TestWatcherReloadsOnWrite(t *testing.T) {
	tempDir := t.TempDir()
	path := filepath.Join(tempDir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 40005\n"), 0600))

	var reloadedPort atomic.Int64
	w, err := NewWatcher(path, func(cfg *Config) {
		reloadedPort.Store(int64(cfg.Server.Port))
	})
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 40006\n"), 0600))

	require.Eventually(t, func() bool {
		return reloadedPort.Load() == 40006
	}, 3*time.Second, 20*time.Millisecond)
}

// TestWatcherStopIsIdempotent tests repeated Stop calls.
func TestWatcherStopIsIdempotent(t *testing.T) {
	tempDir := t.TempDir()
	path := filepath.Join(tempDir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("persona: confused_senior\n"), 0600))

	w, err := NewWatcher(path, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start())

	w.Stop()
	w.Stop()
}
