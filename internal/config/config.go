// Package config provides configuration loading and management for the GIS
// resource server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultCacheMaxEntries bounds each of the two access-policy caches.
	DefaultCacheMaxEntries = 1000

	// DefaultCacheTTLMinutes is the access-based expiry window for cache entries.
	DefaultCacheTTLMinutes = 30

	// DefaultCatalogueSearchPath is the catalogue search endpoint queried on
	// cache miss.
	DefaultCatalogueSearchPath = "/iudx/cat/v1/search"

	// DefaultCatalogueTimeout bounds a single outbound catalogue lookup.
	DefaultCatalogueTimeout = 10 * time.Second
)

// Config represents the root configuration structure
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	JWT       JWTConfig       `yaml:"jwt"`
	Catalogue CatalogueConfig `yaml:"catalogue"`
	Cache     CacheConfig     `yaml:"cache"`

	// OpenEndpoints lists API endpoints reachable without role/identity checks
	// when the requested resource is classified open.
	OpenEndpoints []string `yaml:"openEndpoints"`
}

// ServerConfig defines HTTP listener settings
type ServerConfig struct {
	// Address is the listen address, e.g. ":8080"
	Address string `yaml:"address"`
}

// JWTConfig defines the token verification settings
type JWTConfig struct {
	// Audience is the expected "aud" claim, compared case-insensitively
	Audience string `yaml:"audience"`

	// Issuer is the expected "iss" claim, compared case-insensitively
	Issuer string `yaml:"issuer"`

	// PublicKeyFile is the path to a PEM-encoded ES256 public key used to
	// verify token signatures
	PublicKeyFile string `yaml:"publicKeyFile"`
}

// CatalogueConfig defines the target of outbound catalogue lookups
type CatalogueConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// SearchPath overrides the catalogue search endpoint path
	SearchPath string `yaml:"searchPath,omitempty"`

	// Timeout is the per-request timeout (e.g. "10s")
	Timeout string `yaml:"timeout,omitempty"`

	// TLS enables https for catalogue lookups
	TLS bool `yaml:"tls,omitempty"`
}

// CacheConfig bounds the two access-policy caches
type CacheConfig struct {
	MaxEntries int `yaml:"maxEntries,omitempty"`
	TTLMinutes int `yaml:"ttlMinutes,omitempty"`
}

// LoadConfig loads and parses configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("path is required")
	}

	// Use filepath.Clean to prevent path traversal attacks
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	if c.Cache.MaxEntries == 0 {
		c.Cache.MaxEntries = DefaultCacheMaxEntries
	}
	if c.Cache.TTLMinutes == 0 {
		c.Cache.TTLMinutes = DefaultCacheTTLMinutes
	}
	if c.Catalogue.SearchPath == "" {
		c.Catalogue.SearchPath = DefaultCatalogueSearchPath
	}
}

// Validate performs validation on the configuration
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if c.JWT.Audience == "" {
		return fmt.Errorf("jwt.audience is required")
	}
	if c.JWT.Issuer == "" {
		return fmt.Errorf("jwt.issuer is required")
	}
	if c.JWT.PublicKeyFile == "" {
		return fmt.Errorf("jwt.publicKeyFile is required")
	}

	if c.Catalogue.Host == "" {
		return fmt.Errorf("catalogue.host is required")
	}
	if c.Catalogue.Port <= 0 || c.Catalogue.Port > 65535 {
		return fmt.Errorf("catalogue.port must be in (0, 65535], got %d", c.Catalogue.Port)
	}
	if c.Catalogue.Timeout != "" {
		if _, err := time.ParseDuration(c.Catalogue.Timeout); err != nil {
			return fmt.Errorf("catalogue.timeout must be a valid duration (e.g. '10s'): %w", err)
		}
	}
	if !strings.HasPrefix(c.Catalogue.SearchPath, "/") {
		return fmt.Errorf("catalogue.searchPath must start with '/', got %q", c.Catalogue.SearchPath)
	}

	if c.Cache.MaxEntries < 0 {
		return fmt.Errorf("cache.maxEntries must be positive, got %d", c.Cache.MaxEntries)
	}
	if c.Cache.TTLMinutes < 0 {
		return fmt.Errorf("cache.ttlMinutes must be positive, got %d", c.Cache.TTLMinutes)
	}

	return nil
}

// CacheTTL returns the configured access-based expiry window.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLMinutes) * time.Minute
}

// CatalogueTimeout returns the per-request catalogue timeout.
func (c *Config) CatalogueTimeout() time.Duration {
	if c.Catalogue.Timeout == "" {
		return DefaultCatalogueTimeout
	}
	d, err := time.ParseDuration(c.Catalogue.Timeout)
	if err != nil {
		return DefaultCatalogueTimeout
	}
	return d
}
