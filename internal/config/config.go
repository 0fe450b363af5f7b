// Package config loads the spider's TOML configuration into an
// immutable Config constructed once at startup and passed by reference
// into the services. A configuration failure at startup is the only
// fatal error class in the system.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/gridops/condor-spider/internal/core/domain"
)

// Duration wraps time.Duration so TOML values can be written as
// strings like "10m" or "60s".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the plain time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the process configuration.
type Config struct {
	Spider     SpiderConfig     `toml:"spider"`
	Schedd     KindConfig       `toml:"schedd"`
	Startd     KindConfig       `toml:"startd"`
	Elastic    ElasticConfig    `toml:"elastic"`
	Checkpoint CheckpointConfig `toml:"checkpoint"`
	Sources    []SourceConfig   `toml:"source"`
}

// SpiderConfig tunes the harvest loop.
type SpiderConfig struct {
	// Interval between polling cycles in daemon mode.
	Interval Duration `toml:"interval"`

	// Workers bounds concurrent sources per cycle.
	Workers int `toml:"workers"`

	// Lookback is the starting window for sources with no checkpoint.
	Lookback Duration `toml:"lookback"`

	// ReadOnly skips delivery and checkpoint advance.
	ReadOnly bool `toml:"read_only"`

	// DryRun discards at the delivery step and keeps checkpoints put.
	DryRun bool `toml:"dry_run"`
}

// KindConfig holds per-source-kind tunables.
type KindConfig struct {
	// Enabled switches harvesting of this kind on.
	Enabled bool `toml:"enabled"`

	// MaxRecords caps one cycle's pull per source. Zero = unlimited.
	MaxRecords int `toml:"max_records"`

	// QueryTimeout bounds one history query.
	QueryTimeout Duration `toml:"query_timeout"`
}

// ElasticConfig holds destination settings.
type ElasticConfig struct {
	Hosts         []string `toml:"hosts"`
	Username      string   `toml:"username"`
	Password      string   `toml:"password"`
	IndexTemplate string   `toml:"index_template"`

	// BunchSize is the bulk batch size.
	BunchSize int `toml:"bunch_size"`

	// Timeout bounds one bulk call.
	Timeout Duration `toml:"timeout"`

	// RateLimit caps bulk calls per second. Zero disables it.
	RateLimit float64 `toml:"rate_limit"`

	Retry RetryConfig `toml:"retry"`
}

// RetryConfig is the delivery retry policy.
type RetryConfig struct {
	MaxAttempts int      `toml:"max_attempts"`
	BaseDelay   Duration `toml:"base_delay"`
	MaxDelay    Duration `toml:"max_delay"`
	Factor      float64  `toml:"factor"`
}

// CheckpointConfig selects the checkpoint backend.
type CheckpointConfig struct {
	// Backend is "file" or "sqlite".
	Backend string `toml:"backend"`

	// Path is the checkpoint file or database path.
	Path string `toml:"path"`
}

// SourceConfig describes one remote source.
type SourceConfig struct {
	Name string `toml:"name"`
	Kind string `toml:"kind"`
	Host string `toml:"host"`
	Pool string `toml:"pool"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Spider: SpiderConfig{
			Interval: Duration(10 * time.Minute),
			Workers:  8,
			Lookback: Duration(12 * time.Hour),
		},
		Schedd: KindConfig{
			Enabled:      true,
			MaxRecords:   10000,
			QueryTimeout: Duration(11 * time.Minute),
		},
		Startd: KindConfig{
			Enabled:      false,
			MaxRecords:   10000,
			QueryTimeout: Duration(11 * time.Minute),
		},
		Elastic: ElasticConfig{
			Hosts:         []string{"http://localhost:9200"},
			IndexTemplate: "htcondor-jobs",
			BunchSize:     250,
			Timeout:       Duration(60 * time.Second),
			Retry: RetryConfig{
				MaxAttempts: 4,
				BaseDelay:   Duration(time.Second),
				MaxDelay:    Duration(30 * time.Second),
				Factor:      2,
			},
		},
		Checkpoint: CheckpointConfig{
			Backend: "file",
			Path:    "checkpoint.json",
		},
	}
}

// Load reads path over the defaults and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Spider.Workers <= 0 {
		return fmt.Errorf("spider.workers must be positive, got %d", c.Spider.Workers)
	}
	if c.Spider.Interval.Std() <= 0 {
		return fmt.Errorf("spider.interval must be positive, got %s", c.Spider.Interval.Std())
	}
	if len(c.Elastic.Hosts) == 0 {
		return fmt.Errorf("elastic.hosts must not be empty")
	}
	if c.Elastic.BunchSize <= 0 {
		return fmt.Errorf("elastic.bunch_size must be positive, got %d", c.Elastic.BunchSize)
	}
	switch c.Checkpoint.Backend {
	case "file", "sqlite":
	default:
		return fmt.Errorf("checkpoint.backend must be \"file\" or \"sqlite\", got %q", c.Checkpoint.Backend)
	}
	if len(c.Sources) == 0 {
		return fmt.Errorf("at least one [[source]] is required")
	}

	seen := make(map[string]bool, len(c.Sources))
	for i, src := range c.Sources {
		if src.Name == "" {
			return fmt.Errorf("source %d: name is required", i)
		}
		if seen[src.Name] {
			return fmt.Errorf("source %q: duplicate name", src.Name)
		}
		seen[src.Name] = true
		if !domain.SourceKind(src.Kind).Valid() {
			return fmt.Errorf("source %q: unknown kind %q", src.Name, src.Kind)
		}
		if src.Host == "" {
			return fmt.Errorf("source %q: host is required", src.Name)
		}
	}
	return nil
}

// DomainSources returns the configured sources whose kind is enabled,
// converted to domain descriptors.
func (c *Config) DomainSources() []domain.Source {
	out := make([]domain.Source, 0, len(c.Sources))
	for _, src := range c.Sources {
		kind := domain.SourceKind(src.Kind)
		if kind == domain.KindSchedd && !c.Schedd.Enabled {
			continue
		}
		if kind == domain.KindStartd && !c.Startd.Enabled {
			continue
		}
		out = append(out, domain.Source{
			Name: src.Name,
			Kind: kind,
			Host: src.Host,
			Pool: src.Pool,
		})
	}
	return out
}
