// Package config loads the settings shared by the pixelset client and server.
//
// Every field is optional. The Get* methods supply defaults for anything the
// file leaves out, so partial configs are safe.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/banshee-data/pixelset/internal/grid"
)

// Cache backends.
const (
	CacheFile   = "file"
	CacheSQLite = "sqlite"
	CacheMemory = "memory"
)

const maxFileSize = 1 * 1024 * 1024 // 1MB

// Config is the root configuration. JSON and YAML use the same keys.
type Config struct {
	// Client
	RemoteURL         *string `json:"remote_url,omitempty" yaml:"remote_url,omitempty"`
	CacheBackend      *string `json:"cache_backend,omitempty" yaml:"cache_backend,omitempty"`
	CacheDir          *string `json:"cache_dir,omitempty" yaml:"cache_dir,omitempty"`
	GridRows          *int    `json:"grid_rows,omitempty" yaml:"grid_rows,omitempty"`
	GridCols          *int    `json:"grid_cols,omitempty" yaml:"grid_cols,omitempty"`
	RequestTimeout    *string `json:"request_timeout,omitempty" yaml:"request_timeout,omitempty"`       // duration string like "10s"
	ReconcileInterval *string `json:"reconcile_interval,omitempty" yaml:"reconcile_interval,omitempty"` // "0" disables
	ExportDir         *string `json:"export_dir,omitempty" yaml:"export_dir,omitempty"`

	// Server
	Listen       *string `json:"listen,omitempty" yaml:"listen,omitempty"`
	DBPath       *string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
	InsecureCSRF *bool   `json:"insecure_csrf,omitempty" yaml:"insecure_csrf,omitempty"`
}

// Load reads a .json, .yaml or .yml file. Fields omitted from the file keep
// their defaults.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	ext := filepath.Ext(cleanPath)
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if ext == ".json" {
		err = json.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", filepath.Base(cleanPath), err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *Config) Validate() error {
	if c.CacheBackend != nil {
		switch *c.CacheBackend {
		case CacheFile, CacheSQLite, CacheMemory:
		default:
			return fmt.Errorf("cache_backend must be %q, %q or %q, got %q", CacheFile, CacheSQLite, CacheMemory, *c.CacheBackend)
		}
	}
	for name, v := range map[string]*int{"grid_rows": c.GridRows, "grid_cols": c.GridCols} {
		if v != nil && (*v < 1 || *v > grid.MaxSize) {
			return fmt.Errorf("%s must be between 1 and %d, got %d", name, grid.MaxSize, *v)
		}
	}
	for name, v := range map[string]*string{"request_timeout": c.RequestTimeout, "reconcile_interval": c.ReconcileInterval} {
		if v == nil || *v == "" {
			continue
		}
		d, err := time.ParseDuration(*v)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
		}
		if d < 0 {
			return fmt.Errorf("%s must be non-negative, got %s", name, d)
		}
	}
	return nil
}

func (c *Config) GetRemoteURL() string {
	if c.RemoteURL == nil || *c.RemoteURL == "" {
		return "http://localhost:8000"
	}
	return *c.RemoteURL
}

func (c *Config) GetCacheBackend() string {
	if c.CacheBackend == nil {
		return CacheFile
	}
	return *c.CacheBackend
}

// GetCacheDir defaults to pixelset under the user's cache directory.
func (c *Config) GetCacheDir() string {
	if c.CacheDir != nil && *c.CacheDir != "" {
		return *c.CacheDir
	}
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "pixelset")
	}
	return ".pixelset"
}

func (c *Config) GetGridRows() int {
	if c.GridRows == nil {
		return grid.Medium
	}
	return *c.GridRows
}

func (c *Config) GetGridCols() int {
	if c.GridCols == nil {
		return grid.Medium
	}
	return *c.GridCols
}

func (c *Config) GetRequestTimeout() time.Duration {
	if c.RequestTimeout == nil || *c.RequestTimeout == "" {
		return 10 * time.Second
	}
	d, err := time.ParseDuration(*c.RequestTimeout)
	if err != nil {
		return 10 * time.Second
	}
	return d
}

// GetReconcileInterval returns zero when periodic reconciliation is off,
// which is the default.
func (c *Config) GetReconcileInterval() time.Duration {
	if c.ReconcileInterval == nil || *c.ReconcileInterval == "" {
		return 0
	}
	d, err := time.ParseDuration(*c.ReconcileInterval)
	if err != nil {
		return 0
	}
	return d
}

func (c *Config) GetExportDir() string {
	if c.ExportDir == nil || *c.ExportDir == "" {
		return "export"
	}
	return *c.ExportDir
}

func (c *Config) GetListen() string {
	if c.Listen == nil || *c.Listen == "" {
		return ":8000"
	}
	return *c.Listen
}

func (c *Config) GetDBPath() string {
	if c.DBPath == nil || *c.DBPath == "" {
		return "pixelset.db"
	}
	return *c.DBPath
}

func (c *Config) GetInsecureCSRF() bool {
	if c.InsecureCSRF == nil {
		return false
	}
	return *c.InsecureCSRF
}
