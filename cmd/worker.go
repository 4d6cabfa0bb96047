package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/frahmantamala/document-request/internal"
	"github.com/frahmantamala/document-request/internal/intent"
	"github.com/frahmantamala/document-request/pkg/logger"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start background workers",
	Long:  `Start background workers that keep shared state tidy between server instances.`,
}

// Intent sweeper worker command
var intentSweeperCmd = &cobra.Command{
	Use:   "intent-sweeper",
	Short: "Prune expired payment intents from redis",
	Long:  `Periodically remove index entries of payment intents whose keys expired. Only needed for the redis intent driver.`,
	Run: func(cmd *cobra.Command, args []string) {
		startIntentSweeper()
	},
}

var sweepInterval time.Duration

func startIntentSweeper() {
	config, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	lg := logger.LoggerWrapper()

	if config.Intent.Driver != internal.IntentDriverRedis {
		lg.Info("intent driver is not redis, the server sweeps its own memory store", "driver", config.Intent.Driver)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := intent.DialRedis(ctx, intent.RedisConfig{
		URL:      config.Redis.URL,
		DB:       config.Redis.DB,
		PoolSize: config.Redis.PoolSize,
	})
	if err != nil {
		lg.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	store := intent.NewRedisStore(client, config.Intent.TTL, intent.WithLogger(lg))
	interval := getDurationFlag(sweepInterval, config.Intent.SweepInterval)

	lg.Info("intent sweeper is running. Press Ctrl+C to stop.", "interval", interval, "ttl", config.Intent.TTL)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			lg.Info("intent sweeper shutdown complete")
			return
		case <-ticker.C:
			n, err := store.Sweep(ctx)
			if err != nil {
				lg.Warn("intent sweep failed", "error", err)
				continue
			}
			if n > 0 {
				lg.Info("swept expired payment intents", "removed", n)
			}
		}
	}
}

func getDurationFlag(flagValue, configValue time.Duration) time.Duration {
	if flagValue > 0 {
		return flagValue
	}
	if configValue > 0 {
		return configValue
	}
	return time.Minute
}

func init() {
	intentSweeperCmd.Flags().DurationVar(&sweepInterval, "interval", 0, "Sweep interval (overrides config)")

	workerCmd.AddCommand(intentSweeperCmd)

	rootCmd.AddCommand(workerCmd)
}
