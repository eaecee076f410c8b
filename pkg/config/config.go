// Package config loads and validates application configuration from YAML
// files with environment-variable overrides. It provides typed structs for
// every subsystem (Server, Cache, Query, Browse, Frontend, etc.).
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Cache    CacheConfig    `yaml:"cache"`
	Query    QueryConfig    `yaml:"query"`
	Browse   BrowseConfig   `yaml:"browse"`
	Frontend FrontendConfig `yaml:"frontend"`
	Demo     DemoConfig     `yaml:"demo"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	CORS     CORSConfig     `yaml:"cors"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// CacheConfig controls the in-process run cache. MaxEntries bounds the
// number of parsed runs held at once; 0 disables eviction entirely.
type CacheConfig struct {
	MaxEntries int `yaml:"maxEntries"`
}

// QueryConfig carries the tolerance windows used by the query engine.
// The defaults match the scan rates of common LC-MS/MS acquisitions; they
// are configuration because their correctness depends on instrument-specific
// assumptions.
type QueryConfig struct {
	// MS2AnnotationRTWindow is how far (seconds) from an MS1 scan an MS2
	// acquisition may lie and still annotate that scan's peaks.
	MS2AnnotationRTWindow float64 `yaml:"ms2AnnotationRtWindow"`
	// MS2AnnotationMZTol is the m/z distance within which an MS1 peak is
	// considered to have triggered a fragmentation event.
	MS2AnnotationMZTol float64 `yaml:"ms2AnnotationMzTol"`
	// PrecursorMZTol is the precursor m/z tolerance for MS2 spectrum lookup.
	PrecursorMZTol float64 `yaml:"precursorMzTol"`
	// PrecursorRTWindow is the retention-time window (seconds) for MS2
	// spectrum lookup.
	PrecursorRTWindow float64 `yaml:"precursorRtWindow"`
	// MaxSeriesPoints caps the length of chromatogram series returned to
	// clients; longer series are stride-decimated.
	MaxSeriesPoints int `yaml:"maxSeriesPoints"`
}

// BrowseConfig controls the file browser. Root is the directory served when
// a browse request carries no path.
type BrowseConfig struct {
	Root string `yaml:"root"`
}

// FrontendConfig points at the prebuilt web UI bundle.
type FrontendConfig struct {
	DistDir string `yaml:"distDir"`
}

// DemoConfig points at a bundled demonstration run, if any.
type DemoConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// CORSConfig lists the origins the browser UI may call from.
type CORSConfig struct {
	AllowOrigins []string `yaml:"allowOrigins"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with sensible defaults for any
// missing values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// defaultConfig returns a Config with defaults suitable for local use.
func defaultConfig() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    120 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Cache: CacheConfig{
			MaxEntries: 4,
		},
		Query: QueryConfig{
			MS2AnnotationRTWindow: 60.0,
			MS2AnnotationMZTol:    0.1,
			PrecursorMZTol:        0.2,
			PrecursorRTWindow:     120.0,
			MaxSeriesPoints:       100000,
		},
		Browse: BrowseConfig{
			Root: home,
		},
		Frontend: FrontendConfig{
			DistDir: "frontend/dist",
		},
		Demo: DemoConfig{
			Path: "",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
		CORS: CORSConfig{
			AllowOrigins: []string{"http://localhost:5173"},
		},
	}
}

func (c *Config) validate() error {
	if c.Query.MS2AnnotationRTWindow <= 0 {
		return fmt.Errorf("query.ms2AnnotationRtWindow must be positive, got %v", c.Query.MS2AnnotationRTWindow)
	}
	if c.Query.MS2AnnotationMZTol <= 0 {
		return fmt.Errorf("query.ms2AnnotationMzTol must be positive, got %v", c.Query.MS2AnnotationMZTol)
	}
	if c.Query.PrecursorMZTol <= 0 {
		return fmt.Errorf("query.precursorMzTol must be positive, got %v", c.Query.PrecursorMZTol)
	}
	if c.Query.PrecursorRTWindow <= 0 {
		return fmt.Errorf("query.precursorRtWindow must be positive, got %v", c.Query.PrecursorRTWindow)
	}
	if c.Query.MaxSeriesPoints < 1 {
		return fmt.Errorf("query.maxSeriesPoints must be at least 1, got %d", c.Query.MaxSeriesPoints)
	}
	if c.Cache.MaxEntries < 0 {
		return fmt.Errorf("cache.maxEntries must not be negative, got %d", c.Cache.MaxEntries)
	}
	return nil
}

// applyEnvOverrides reads MZ_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MZ_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("MZ_CACHE_MAX_ENTRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Cache.MaxEntries = n
		}
	}
	if v := os.Getenv("MZ_BROWSE_ROOT"); v != "" {
		cfg.Browse.Root = v
	}
	if v := os.Getenv("MZ_FRONTEND_DIST_DIR"); v != "" {
		cfg.Frontend.DistDir = v
	}
	if v := os.Getenv("MZ_DEMO_PATH"); v != "" {
		cfg.Demo.Path = v
	}
	if v := os.Getenv("MZ_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("MZ_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("MZ_METRICS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Metrics.Port = port
		}
	}
}
