package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridops/condor-spider/internal/core/domain"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "spider.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const minimalConfig = `
[[source]]
name = "schedd1"
kind = "schedd"
host = "schedd1.example.org"
`

func TestLoad_Minimal(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	// Everything unset comes from the defaults.
	assert.Equal(t, 10*time.Minute, cfg.Spider.Interval.Std())
	assert.Equal(t, 8, cfg.Spider.Workers)
	assert.Equal(t, 12*time.Hour, cfg.Spider.Lookback.Std())
	assert.True(t, cfg.Schedd.Enabled)
	assert.False(t, cfg.Startd.Enabled)
	assert.Equal(t, 250, cfg.Elastic.BunchSize)
	assert.Equal(t, "htcondor-jobs", cfg.Elastic.IndexTemplate)
	assert.Equal(t, "file", cfg.Checkpoint.Backend)

	require.Len(t, cfg.Sources, 1)
	assert.Equal(t, "schedd1", cfg.Sources[0].Name)
}

func TestLoad_Full(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
[spider]
interval = "5m"
workers = 4
lookback = "6h"
dry_run = true

[startd]
enabled = true
max_records = 500
query_timeout = "2m"

[elastic]
hosts = ["http://es1:9200", "http://es2:9200"]
username = "spider"
password = "secret"
index_template = "pool-jobs"
bunch_size = 100
timeout = "30s"
rate_limit = 2.5

[elastic.retry]
max_attempts = 6
base_delay = "500ms"

[checkpoint]
backend = "sqlite"
path = "/var/lib/spider/checkpoints.db"

[[source]]
name = "schedd1"
kind = "schedd"
host = "schedd1.example.org"
pool = "collector.example.org"

[[source]]
name = "node1"
kind = "startd"
host = "node1.example.org"
`))
	require.NoError(t, err)

	assert.Equal(t, 5*time.Minute, cfg.Spider.Interval.Std())
	assert.Equal(t, 4, cfg.Spider.Workers)
	assert.True(t, cfg.Spider.DryRun)
	assert.True(t, cfg.Startd.Enabled)
	assert.Equal(t, 500, cfg.Startd.MaxRecords)
	assert.Equal(t, 2*time.Minute, cfg.Startd.QueryTimeout.Std())
	assert.Equal(t, []string{"http://es1:9200", "http://es2:9200"}, cfg.Elastic.Hosts)
	assert.Equal(t, 2.5, cfg.Elastic.RateLimit)
	assert.Equal(t, 6, cfg.Elastic.Retry.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.Elastic.Retry.BaseDelay.Std())
	assert.Equal(t, "sqlite", cfg.Checkpoint.Backend)
	require.Len(t, cfg.Sources, 2)
	assert.Equal(t, "collector.example.org", cfg.Sources[0].Pool)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}

func TestLoad_BadTOML(t *testing.T) {
	_, err := Load(writeConfig(t, "[[[not toml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no workers", func(c *Config) { c.Spider.Workers = 0 }},
		{"no interval", func(c *Config) { c.Spider.Interval = 0 }},
		{"no hosts", func(c *Config) { c.Elastic.Hosts = nil }},
		{"no bunch size", func(c *Config) { c.Elastic.BunchSize = 0 }},
		{"bad backend", func(c *Config) { c.Checkpoint.Backend = "etcd" }},
		{"no sources", func(c *Config) { c.Sources = nil }},
		{"unnamed source", func(c *Config) { c.Sources[0].Name = "" }},
		{"bad kind", func(c *Config) { c.Sources[0].Kind = "collector" }},
		{"no host", func(c *Config) { c.Sources[0].Host = "" }},
		{"duplicate name", func(c *Config) {
			c.Sources = append(c.Sources, c.Sources[0])
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Sources = []SourceConfig{{Name: "s1", Kind: "schedd", Host: "h1"}}
			require.NoError(t, cfg.Validate())

			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestDomainSources_FiltersDisabledKinds(t *testing.T) {
	cfg := Default()
	cfg.Sources = []SourceConfig{
		{Name: "s1", Kind: "schedd", Host: "h1"},
		{Name: "n1", Kind: "startd", Host: "h2"},
	}

	// Startd harvesting is off by default.
	sources := cfg.DomainSources()
	require.Len(t, sources, 1)
	assert.Equal(t, "s1", sources[0].Name)
	assert.Equal(t, domain.KindSchedd, sources[0].Kind)

	cfg.Startd.Enabled = true
	assert.Len(t, cfg.DomainSources(), 2)
}
