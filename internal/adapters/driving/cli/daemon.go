package cli

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gridops/condor-spider/internal/core/services"
	"github.com/gridops/condor-spider/internal/logger"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Harvest on a fixed interval until interrupted",
	Long: `Runs harvest cycles on the configured interval. The first cycle
starts immediately. SIGINT or SIGTERM stops the loop; a cycle already
in flight is cancelled and its sources resume from their last
committed checkpoints on the next run.`,
	Args: cobra.NoArgs,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(daemonCmd)
}

func runDaemon(cmd *cobra.Command, _ []string) error {
	p, err := buildPipeline(false, false)
	if err != nil {
		return err
	}
	defer p.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	interval := p.cfg.Spider.Interval.Std()
	logger.Info("daemon started, harvesting every %s", interval)

	sched := services.NewScheduler(interval, p.harvester)
	err = sched.Start(ctx)

	logger.Info("shutting down")
	sched.Stop()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
