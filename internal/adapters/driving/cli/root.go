// Package cli wires the spider's services behind cobra commands.
package cli

import (
	"fmt"
	"os"
	"os/user"
	"time"

	"github.com/spf13/cobra"

	"github.com/gridops/condor-spider/internal/adapters/driven/checkpoint/file"
	"github.com/gridops/condor-spider/internal/adapters/driven/checkpoint/sqlite"
	"github.com/gridops/condor-spider/internal/adapters/driven/condor"
	"github.com/gridops/condor-spider/internal/adapters/driven/elastic"
	"github.com/gridops/condor-spider/internal/config"
	"github.com/gridops/condor-spider/internal/core/ports/driven"
	"github.com/gridops/condor-spider/internal/core/services"
	"github.com/gridops/condor-spider/internal/logger"
	"github.com/gridops/condor-spider/internal/normalise"
)

// version is set at build time via -ldflags.
var version = "dev"

var (
	cfgPath string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "spider",
	Short: "Harvest compute pool history into a search store",
	Long: `spider periodically pulls job and machine history from the pool's
schedulers and executors, normalises the raw ads into typed documents
and bulk-uploads them into Elasticsearch. Progress per source is
recorded in durable checkpoints, so restarts resume where the last
confirmed delivery left off.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "spider.toml", "path to the configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// pipeline bundles the wired services for one command invocation.
type pipeline struct {
	cfg       *config.Config
	harvester *services.Harvester
	closers   []func() error
}

// Close releases the pipeline's resources.
func (p *pipeline) Close() {
	for _, c := range p.closers {
		if err := c(); err != nil {
			logger.Warn("close: %v", err)
		}
	}
}

// buildPipeline loads the configuration and wires the full harvest
// pipeline. readOnly and dryRun are OR-ed with the configured values so
// the flags can only make a run safer.
func buildPipeline(readOnly, dryRun bool) (*pipeline, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	readOnly = readOnly || cfg.Spider.ReadOnly
	dryRun = dryRun || cfg.Spider.DryRun

	p := &pipeline{cfg: cfg}

	var checkpoints driven.CheckpointStore
	switch cfg.Checkpoint.Backend {
	case "sqlite":
		store, err := sqlite.NewStore(cfg.Checkpoint.Path)
		if err != nil {
			return nil, fmt.Errorf("open checkpoint store: %w", err)
		}
		p.closers = append(p.closers, store.Close)
		checkpoints = store
	default:
		store, err := file.NewStore(cfg.Checkpoint.Path)
		if err != nil {
			return nil, fmt.Errorf("open checkpoint store: %w", err)
		}
		checkpoints = store
	}

	writer, err := elastic.NewWriter(elastic.Config{
		Addresses: cfg.Elastic.Hosts,
		Username:  cfg.Elastic.Username,
		Password:  cfg.Elastic.Password,
		RateLimit: cfg.Elastic.RateLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("connect destination: %w", err)
	}

	launchTime := time.Now()
	uploader := services.NewUploader(writer, services.UploaderConfig{
		BatchSize:     cfg.Elastic.BunchSize,
		Timeout:       cfg.Elastic.Timeout.Std(),
		IndexTemplate: cfg.Elastic.IndexTemplate,
		Metadata:      collectMetadata(launchTime),
		DryRun:        dryRun,
		Retry: services.RetryPolicy{
			MaxAttempts: cfg.Elastic.Retry.MaxAttempts,
			BaseDelay:   cfg.Elastic.Retry.BaseDelay.Std(),
			MaxDelay:    cfg.Elastic.Retry.MaxDelay.Std(),
			Factor:      cfg.Elastic.Retry.Factor,
		},
	})

	factory := condor.NewFactory(
		condor.NewCommandClient(),
		cfg.Schedd.QueryTimeout.Std(),
		cfg.Startd.QueryTimeout.Std(),
	)

	p.harvester = services.NewHarvester(
		cfg.DomainSources(),
		factory,
		checkpoints,
		normalise.New(launchTime.Unix()),
		uploader,
		services.HarvesterConfig{
			Workers:          cfg.Spider.Workers,
			Lookback:         cfg.Spider.Lookback.Std(),
			ScheddMaxRecords: cfg.Schedd.MaxRecords,
			StartdMaxRecords: cfg.Startd.MaxRecords,
			ReadOnly:         readOnly,
			DryRun:           dryRun,
		},
	)
	return p, nil
}

// collectMetadata stamps who harvested and when onto every document.
func collectMetadata(launchTime time.Time) map[string]any {
	meta := map[string]any{
		"spider_runtime": launchTime.Unix(),
		"spider_source":  "condor_history",
	}
	if hostname, err := os.Hostname(); err == nil {
		meta["spider_hostname"] = hostname
	}
	if u, err := user.Current(); err == nil {
		meta["spider_username"] = u.Username
	}
	return meta
}
