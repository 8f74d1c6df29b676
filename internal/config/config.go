package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the celebtwin server configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Staging   StagingConfig   `yaml:"staging"`
	Inference InferenceConfig `yaml:"inference"`
	Auth      AuthConfig      `yaml:"auth"`
	CORS      CORSConfig      `yaml:"cors"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings. No keys disables auth.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// CORSConfig lists browser origins allowed to call the API.
// Localhost origins are always allowed.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int   `yaml:"port"`
	ReadTimeoutSec  int   `yaml:"read_timeout_sec"`
	WriteTimeoutSec int   `yaml:"write_timeout_sec"`
	ShutdownSec     int   `yaml:"shutdown_timeout_sec"`
	MaxUploadMB     int64 `yaml:"max_upload_mb"`
}

// StagingConfig holds the directory uploads are written to.
type StagingConfig struct {
	Dir string `yaml:"dir"`
}

// InferenceConfig describes how the inference process is launched.
type InferenceConfig struct {
	Workdir        string        `yaml:"workdir"`
	TimeoutSec     int           `yaml:"timeout_sec"`
	MaxOutputBytes int64         `yaml:"max_output_bytes"`
	// Env entries (KEY=value) extend the environment the process inherits.
	Env            []string      `yaml:"env"`
	Search         CommandConfig `yaml:"search"`
	Compare        CommandConfig `yaml:"compare"`
}

// CommandConfig is an executable plus the arguments placed before the
// staged image paths.
type CommandConfig struct {
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
}

// Timeout returns the invocation timeout.
func (c InferenceConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// MaxUploadBytes returns the request body limit in bytes.
func (c HTTPConfig) MaxUploadBytes() int64 {
	return c.MaxUploadMB << 20
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from an explicit YAML path.
func LoadFile(configPath string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.Inference.TimeoutSec <= 0 {
		c.Inference.TimeoutSec = 120
	}
	if c.Inference.MaxOutputBytes <= 0 {
		c.Inference.MaxOutputBytes = 10 << 20
	}
	if c.Inference.Search.Command == "" {
		c.Inference.Search = CommandConfig{Command: "python3", Args: []string{"search_api.py"}}
	}
	if c.Inference.Compare.Command == "" {
		c.Inference.Compare = CommandConfig{Command: "python3", Args: []string{"compare_api.py"}}
	}
	if c.Staging.Dir == "" {
		c.Staging.Dir = "/app/temp"
	}
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 30
	}
	// A response is only written after the process finishes.
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = c.Inference.TimeoutSec + 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = c.Inference.TimeoutSec + 10
	}
	if c.HTTP.MaxUploadMB <= 0 {
		c.HTTP.MaxUploadMB = 20
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.HTTP.WriteTimeoutSec <= c.Inference.TimeoutSec {
		return fmt.Errorf(
			"http.write_timeout_sec (%d) must exceed inference.timeout_sec (%d)",
			c.HTTP.WriteTimeoutSec, c.Inference.TimeoutSec,
		)
	}
	if c.Inference.Workdir != "" {
		info, err := os.Stat(c.Inference.Workdir)
		if err != nil {
			return fmt.Errorf("inference.workdir: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("inference.workdir %s is not a directory", c.Inference.Workdir)
		}
	}
	for _, kv := range c.Inference.Env {
		if k, _, ok := strings.Cut(kv, "="); !ok || k == "" {
			return fmt.Errorf("inference.env entry %q is not KEY=value", kv)
		}
	}
	for _, k := range c.Auth.APIKeys {
		if strings.TrimSpace(k) == "" {
			return fmt.Errorf("auth.api_keys must not contain empty keys")
		}
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
