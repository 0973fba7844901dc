package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"histcomp/internal/archive"
	"histcomp/internal/baseline"
	"histcomp/internal/casecfg"
	"histcomp/internal/comparator"
	"histcomp/internal/compare"
	"histcomp/internal/results"
)

var (
	// Global flags
	verbose    bool
	configPath string
	timeout    time.Duration

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "histcomp",
	Short: "histcomp - history file comparison and baseline management",
	Long: `histcomp compares the NetCDF history files a model run produced against a
saved batch from the same run, or against a blessed baseline tree, and
promotes run output to become the new baseline.

Pairwise file comparison is delegated to the cprnc tool; histcomp decides
which files to feed it and folds the per-file outcomes into one PASS/FAIL
verdict.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Initialize logger
		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "histcomp.yaml", "Case configuration file")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Minute, "Operation timeout")

	// Add commands to root
	rootCmd.AddCommand(compareCmd)
	rootCmd.AddCommand(baselineCmd)
	rootCmd.AddCommand(saveCmd)
	rootCmd.AddCommand(synopsisCmd)
	rootCmd.AddCommand(historyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// opContext returns a context that is cancelled by the timeout or by an
// interrupt signal.
func opContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			logger.Info("Received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// loadManager loads the case configuration and wires the collaborators every
// operation needs.
func loadManager() (*casecfg.Case, *baseline.Manager, error) {
	c, err := casecfg.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, nil, err
	}

	arch := archive.NewDirArchive(logger)
	tool := comparator.New(c.CprncPath, logger)
	orch := compare.New(c, arch, tool, logger)
	return c, baseline.NewManager(c, arch, orch, logger), nil
}

// recordResult appends the outcome to the results ledger when the case has
// one configured. Ledger failures are warnings, never verdict changes.
func recordResult(c *casecfg.Case, kind string, success bool, comments string) {
	if c.ResultsDB == "" {
		return
	}
	store, err := results.Open(c.ResultsDB)
	if err != nil {
		logger.Warn("could not open results ledger", zap.Error(err))
		return
	}
	defer store.Close()

	if _, err := store.Add(c.Name, kind, success, compare.Synopsize(comments)); err != nil {
		logger.Warn("could not record result", zap.Error(err))
	}
}
