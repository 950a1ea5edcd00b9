// Package config provides configuration management for kavach.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kavach-labs/kavach/internal/threat"
)

const (
	// DefaultListenPort is the HTTP port the defense service binds when no
	// override is configured.
	DefaultListenPort = 7348

	// DefaultPersona is the persona engaged when a handoff request does not
	// name one.
	DefaultPersona = "confused_senior"

	dataDirName  = ".kavach"
	configName   = "config.yaml"
	dbName       = "kavach.db"
	lexiconName  = "lexicon.yaml"
	envPort      = "KAVACH_PORT"
	envSecret    = "KAVACH_SIGNING_SECRET"
	envRedisAddr = "KAVACH_REDIS_ADDR"
)

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// DatabaseConfig selects the evidence store backend.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Path     string `yaml:"path"`
	DSN      string `yaml:"dsn"`
	MaxConns int    `yaml:"max_conns"`
}

// ClassifierConfig points at the optional external scam classifier. An empty
// endpoint disables the classifier family entirely.
type ClassifierConfig struct {
	Endpoint string        `yaml:"endpoint"`
	Timeout  time.Duration `yaml:"timeout"`
}

// SigningConfig holds the evidence signing material. The secret is normally
// supplied through KAVACH_SIGNING_SECRET rather than the config file.
type SigningConfig struct {
	Secret   string `yaml:"secret"`
	SignedBy string `yaml:"signed_by"`
}

// RedisConfig points at the optional shared sighting counter. An empty
// address keeps counters process local.
type RedisConfig struct {
	Addr string `yaml:"addr"`
}

// Config holds all runtime settings for the defense pipeline.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Signing    SigningConfig    `yaml:"signing"`
	Redis      RedisConfig      `yaml:"redis"`
	Threat     threat.Weights   `yaml:"threat"`
	Persona    string           `yaml:"persona"`
	LogLevel   string           `yaml:"log_level"`
}

var (
	cached   *Config
	cachedMu sync.RWMutex
)

// Default returns the configuration used when no config file exists.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         DefaultListenPort,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:   "sqlite",
			Path:     DBPath(),
			MaxConns: 4,
		},
		Classifier: ClassifierConfig{
			Timeout: 3 * time.Second,
		},
		Signing: SigningConfig{
			SignedBy: "kavach-device",
		},
		Threat:   threat.DefaultWeights(),
		Persona:  DefaultPersona,
		LogLevel: "info",
	}
}

// DataDir returns the kavach data directory under the user's home.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, dataDirName)
}

// DBPath returns the default sqlite database path.
func DBPath() string {
	return filepath.Join(DataDir(), dbName)
}

// ConfigPath returns the config file path.
func ConfigPath() string {
	return filepath.Join(DataDir(), configName)
}

// LexiconPath returns the path for a user supplied lexicon override.
func LexiconPath() string {
	return filepath.Join(DataDir(), lexiconName)
}

// EnsureDataDir creates the data directory if missing.
func EnsureDataDir() error {
	if err := os.MkdirAll(DataDir(), 0750); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}
	return nil
}

// EnsureConfig writes a default config file if none exists.
func EnsureConfig() error {
	path := ConfigPath()
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return Save(Default(), path)
}

// EnsureAll initializes the data directory and config file.
func EnsureAll() error {
	if err := EnsureDataDir(); err != nil {
		return err
	}
	return EnsureConfig()
}

// Load reads configuration from the given path, layering it over defaults
// and then applying environment overrides. A missing or malformed file
// yields defaults rather than an error so the service always starts.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err == nil {
		if yerr := yaml.Unmarshal(data, cfg); yerr != nil {
			cfg = Default()
		}
	}

	applyEnv(cfg)
	cfg.normalize()

	cachedMu.Lock()
	cached = cfg
	cachedMu.Unlock()

	return cfg, nil
}

// Get returns the most recently loaded configuration, loading from the
// default path on first use.
func Get() *Config {
	cachedMu.RLock()
	c := cached
	cachedMu.RUnlock()
	if c != nil {
		return c
	}
	c, _ = Load(ConfigPath())
	return c
}

// Save writes the configuration as YAML.
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv(envPort); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 && port < 65536 {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv(envSecret); v != "" {
		cfg.Signing.Secret = v
	}
	if v := os.Getenv(envRedisAddr); v != "" {
		cfg.Redis.Addr = v
	}
}

func (c *Config) normalize() {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		c.Server.Port = DefaultListenPort
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Driver == "sqlite" && c.Database.Path == "" {
		c.Database.Path = DBPath()
	}
	if c.Database.MaxConns <= 0 {
		c.Database.MaxConns = 4
	}
	if c.Classifier.Timeout <= 0 {
		c.Classifier.Timeout = 3 * time.Second
	}
	if c.Persona == "" {
		c.Persona = DefaultPersona
	}
	if c.Threat == (threat.Weights{}) {
		c.Threat = threat.DefaultWeights()
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}
