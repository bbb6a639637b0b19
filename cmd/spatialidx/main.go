// Command spatialidx runs the partitioned spatial indexer and range-query
// engine as a batch tool (index, query) or as a long-running monitoring
// process (serve).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/smigliorini/spatialidx/internal/batch"
	"github.com/smigliorini/spatialidx/pkg/api/rest"
	"github.com/smigliorini/spatialidx/pkg/config"
	"github.com/smigliorini/spatialidx/pkg/jobs"
	"github.com/smigliorini/spatialidx/pkg/observability"
)

const version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "spatialidx",
	Short: "Partitioned spatial indexer and range-query engine",
	Long: `spatialidx partitions large point/box/polygon datasets into
quadtree-based spatial partitions and answers range queries against them
through a bulk-loaded R-tree, following task CSVs for both phases.`,
	Version: version,
}

var indexCmd = &cobra.Command{
	Use:   "index <task.csv>",
	Short: "Partition every dataset named in an indexing task CSV",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadFromEnv()
		if err := cfg.Validate(); err != nil {
			return err
		}
		log := observability.Default()
		metrics := observability.NewMetrics()

		tasks, err := batch.ReadIndexTasks(args[0], log)
		if err != nil {
			return fmt.Errorf("reading indexing task csv: %w", err)
		}
		batch.RunIndexBatch(tasks, cfg, log, metrics, nil)
		return nil
	},
}

var queryCmd = &cobra.Command{
	Use:   "query <task.csv>",
	Short: "Run every range-query task named in a query task CSV",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadFromEnv()
		if err := cfg.Validate(); err != nil {
			return err
		}
		log := observability.Default()
		metrics := observability.NewMetrics()

		tasks, err := batch.ReadQueryTasks(args[0], log)
		if err != nil {
			return fmt.Errorf("reading query task csv: %w", err)
		}
		batch.RunQueryBatch(tasks, cfg, log, metrics, nil)
		return nil
	},
}

var serveIndexTasksPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the monitoring/admin HTTP API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadFromEnv()
		if err := cfg.Validate(); err != nil {
			return err
		}
		log := observability.Default()
		metrics := observability.NewMetrics()
		registry := jobs.NewRegistry(500)

		return runServe(cfg, log, metrics, registry, serveIndexTasksPath)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveIndexTasksPath, "index-tasks", "", "indexing task CSV to resolve /v1/reindex dataset names against")

	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the spatialidx version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("spatialidx " + version)
		},
	})
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// runServe is split out from serveCmd.RunE so the signal-handling shutdown
// path stays testable in isolation.
func runServe(cfg *config.Config, log *observability.Logger, metrics *observability.Metrics, registry *jobs.Registry, indexTasksPath string) error {
	srv, err := rest.NewServer(cfg, log, metrics, registry, indexTasksPath)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
		log.Info("shutting down monitoring server")
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Monitoring.ShutdownTimeout)
		defer cancel()
		return srv.Stop(ctx)
	}
}
