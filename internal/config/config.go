// Package config handles the backup rule file and server settings.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/imedwei/s3-backup-checker/internal/age"
)

// TokenKey is the reserved root key holding the global access token.
const TokenKey = "token"

// MaxMinSize is the largest min_size (in kB) whose byte count fits in an int64.
const MaxMinSize = math.MaxInt64 / 1024

// Config holds the parsed rule file.
type Config struct {
	// Token protects every backup that does not define its own token.
	Token string

	// Environments keyed by name, e.g. "production".
	Environments map[string]Environment
}

// Environment groups the backups stored in one bucket.
type Environment struct {
	BucketName string `json:"bucket_name"`
	AccessKey  string `json:"access_key"`
	SecretKey  string `json:"secret_key"`
	Region     string `json:"region"`
	Endpoint   string `json:"endpoint"`   // Optional custom endpoint
	PathStyle  bool   `json:"path_style"` // For S3-compatible services

	Backups map[string]Backup `json:"backups"`
}

// Backup holds the rule for one backup stream.
type Backup struct {
	Age     Age    `json:"age"`
	Prefix  string `json:"prefix"`
	Suffix  string `json:"suffix"`
	MinSize int64  `json:"min_size"` // kB, 0 disables the check
	Token   string `json:"token"`
}

// Age is the raw age threshold. JSON strings and integers are accepted;
// integers are read as hours.
type Age string

// UnmarshalJSON implements json.Unmarshaler.
func (a *Age) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = Age(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("age must be a string or a number: %w", err)
	}
	*a = Age(n.String())
	return nil
}

// Duration parses the age threshold.
func (a Age) Duration() (time.Duration, error) {
	return age.Parse(string(a))
}

// UnmarshalJSON implements json.Unmarshaler. Every root key other than
// TokenKey is decoded as an environment.
func (c *Config) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	c.Environments = make(map[string]Environment, len(raw))
	for key, value := range raw {
		if key == TokenKey {
			if err := json.Unmarshal(value, &c.Token); err != nil {
				return fmt.Errorf("%s must be a string: %w", TokenKey, err)
			}
			continue
		}

		var env Environment
		dec := json.NewDecoder(bytes.NewReader(value))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&env); err != nil {
			return fmt.Errorf("environment %q: %w", key, err)
		}
		c.Environments[key] = env
	}

	return nil
}

// Load reads and validates the rule file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return cfg, nil
}

// Parse decodes and validates a rule file.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("could not decode config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if len(c.Environments) == 0 {
		return fmt.Errorf("no environment configured")
	}

	for _, name := range c.EnvironmentNames() {
		if strings.TrimSpace(name) == "" || strings.Contains(name, "/") {
			return fmt.Errorf("invalid environment name %q", name)
		}
		if err := c.Environments[name].Validate(); err != nil {
			return fmt.Errorf("environment %q: %w", name, err)
		}
	}

	return nil
}

// EnvironmentNames returns the configured environments in sorted order.
func (c *Config) EnvironmentNames() []string {
	names := make([]string, 0, len(c.Environments))
	for name := range c.Environments {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks a single environment.
func (e Environment) Validate() error {
	if e.BucketName == "" {
		return fmt.Errorf("bucket_name is required")
	}
	if (e.AccessKey == "") != (e.SecretKey == "") {
		return fmt.Errorf("access_key and secret_key must be set together")
	}
	if e.Region == "" && e.Endpoint == "" {
		return fmt.Errorf("region is required (unless endpoint is set)")
	}
	if len(e.Backups) == 0 {
		return fmt.Errorf("no backup configured")
	}

	for name, backup := range e.Backups {
		if strings.TrimSpace(name) == "" || strings.Contains(name, "/") {
			return fmt.Errorf("invalid backup name %q", name)
		}
		if err := backup.Validate(); err != nil {
			return fmt.Errorf("backup %q: %w", name, err)
		}
	}

	return nil
}

// Validate checks a single backup rule.
func (b Backup) Validate() error {
	if b.Age == "" {
		return fmt.Errorf("age is required")
	}
	if _, err := b.Age.Duration(); err != nil {
		return err
	}
	if b.MinSize < 0 {
		return fmt.Errorf("min_size must be non-negative")
	}
	if b.MinSize > MaxMinSize {
		return fmt.Errorf("min_size must be at most %d", int64(MaxMinSize))
	}
	return nil
}

// Server holds the HTTP server and storage client settings.
type Server struct {
	Port           int
	ConfigPath     string
	StorageTimeout time.Duration
	StorageRetries int
	StrictStatus   bool
	LogLevel       string
	LogFormat      string
}

// DefaultServer returns server settings from environment variables, falling
// back to built-in defaults.
func DefaultServer() Server {
	return Server{
		Port:           getEnvInt("BACKUP_CHECKER_PORT", 9090),
		ConfigPath:     getEnv("BACKUP_CHECKER_CONFIG", "./config.json"),
		StorageTimeout: getEnvDuration("BACKUP_CHECKER_STORAGE_TIMEOUT", 30*time.Second),
		StorageRetries: getEnvInt("BACKUP_CHECKER_STORAGE_RETRIES", 3),
		StrictStatus:   getEnvBool("BACKUP_CHECKER_STRICT_STATUS", false),
		LogLevel:       getEnv("BACKUP_CHECKER_LOG_LEVEL", "info"),
		LogFormat:      getEnv("BACKUP_CHECKER_LOG_FORMAT", "text"),
	}
}

// Validate checks if the server settings are valid.
func (s Server) Validate() error {
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	if s.StorageTimeout < 0 {
		return fmt.Errorf("storage timeout must be non-negative")
	}
	if s.StorageRetries < 1 {
		return fmt.Errorf("storage retries must be at least 1")
	}
	return nil
}

// getEnv gets a string from environment variable with a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer from environment variable with a default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

// getEnvBool gets a boolean from environment variable with a default value.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvDuration gets a duration from environment variable with a default value.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
