// Package config loads the store connection settings from the models
// directory. All paths are explicit parameters; nothing here reads or
// mutates the process working directory.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config describes the target store and session settings.
type Config struct {
	Driver         string `yaml:"driver"`
	DSN            string `yaml:"dsn"`
	Table          string `yaml:"table"`
	LockTimeoutSec int    `yaml:"lock_timeout_sec"`
}

func Default() *Config {
	return &Config{
		Driver:         "mysql",
		Table:          "schema_revisions",
		LockTimeoutSec: 30,
	}
}

// candidate file names inside the models directory, tried in order.
var fileNames = []string{"store.yml", "store.yaml"}

// Load reads the store configuration from the models directory. A missing
// file is not an error; defaults plus environment overrides then apply.
func Load(modelsDir string) (*Config, error) {
	cfg := Default()
	for _, name := range fileNames {
		b, err := os.ReadFile(filepath.Join(modelsDir, name))
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", name, err)
		}
		break
	}
	return cfg, nil
}

// MergeEnv overlays environment variables onto the configuration.
func MergeEnv(cfg *Config) *Config {
	if v := os.Getenv("DB_DRIVER"); v != "" {
		cfg.Driver = v
	}
	if v := os.Getenv("DB_DSN"); v != "" {
		cfg.DSN = v
	}
	if v := os.Getenv("MIGRATIONS_TABLE"); v != "" {
		cfg.Table = v
	}
	if v := os.Getenv("LOCK_TIMEOUT_SEC"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.LockTimeoutSec = i
		}
	}
	return cfg
}

func (c *Config) LockTimeout() time.Duration {
	if c.LockTimeoutSec <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.LockTimeoutSec) * time.Second
}

// DatabaseName extracts the database name from the DSN for lock scoping.
// MySQL DSNs look like user:pass@tcp(host:port)/dbname?params; for SQLite
// the DSN is the file path.
func (c *Config) DatabaseName() string {
	if c.Driver == "sqlite" {
		base := filepath.Base(c.DSN)
		if base == "." || base == string(filepath.Separator) {
			return "db"
		}
		return strings.TrimSuffix(base, filepath.Ext(base))
	}
	i := strings.LastIndex(c.DSN, "/")
	if i == -1 || i == len(c.DSN)-1 {
		return "db"
	}
	rest := c.DSN[i+1:]
	if j := strings.Index(rest, "?"); j != -1 {
		return rest[:j]
	}
	return rest
}
