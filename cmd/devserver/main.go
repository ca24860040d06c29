package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"dataexplorer/internal"
	"dataexplorer/internal/config"
	"dataexplorer/internal/metrics"
	"dataexplorer/internal/testkit"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "explorer-devserver",
		Short: "Reference analysis service for local development",
	}

	rootCmd.AddCommand(
		newServeCmd(),
		newSampleCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newServeCmd() *cobra.Command {
	var port string
	var dataDir string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the upload, eda, feature-selection, visualize and ask-ai endpoints",
		Long: `Serve the reference analysis service.

Settings come from the environment (or .env):
- DEVSERVER_PORT (default: 8000)
- DEVSERVER_DATA_DIR (default: $EXPLORER_STATE_DIR/cleaned_files)
- GIN_MODE=debug|release|test (default: release)

Prometheus metrics are exposed at /metrics.

Example: explorer-devserver serve --port 8000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if port != "" {
				cfg.DevServer.Port = port
			}
			if dataDir != "" {
				cfg.DevServer.DataDir = dataDir
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg)
		},
	}

	cmd.Flags().StringVar(&port, "port", "", "Port to listen on (overrides DEVSERVER_PORT)")
	cmd.Flags().StringVar(&dataDir, "data-dir", "", "Directory for cleaned files and charts")
	return cmd
}

func runServe(ctx context.Context, cfg *config.Config) error {
	logger := internal.NewLogger(internal.ParseLogLevel(cfg.Logging.Level))
	recorder := metrics.NewRecorder("explorer_devserver")

	server, err := testkit.NewServer(testkit.ServerOptions{
		DataDir:  cfg.DevServer.DataDir,
		GinMode:  cfg.DevServer.GinMode,
		Logger:   logger,
		Recorder: recorder,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	fmt.Printf("Analysis service on http://localhost:%s (files in %s)\n", cfg.DevServer.Port, cfg.DevServer.DataDir)
	return server.ListenAndServe(ctx, net.JoinHostPort("", cfg.DevServer.Port))
}

func newSampleCmd() *cobra.Command {
	var orders int
	var seed int64
	var missing float64

	cmd := &cobra.Command{
		Use:   "sample [output.csv]",
		Short: "Write a synthetic shopping dataset to upload",
		Long: `Generate a deterministic synthetic order dataset.

A non-zero --missing rate blanks one cell in that share of rows so the service's cleaning step
has rows to drop.

Example: explorer-devserver sample orders.csv --orders 500 --seed 42`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := testkit.DefaultShoppingConfig()
			cfg.OrderCount = orders
			cfg.Seed = seed
			cfg.MissingRate = missing

			data, err := testkit.NewShoppingDataGenerator(cfg).GenerateCSV()
			if err != nil {
				return fmt.Errorf("failed to generate sample: %w", err)
			}
			if err := os.WriteFile(args[0], data, 0o644); err != nil {
				return fmt.Errorf("failed to write sample: %w", err)
			}
			fmt.Printf("Wrote %d orders to %s\n", orders, args[0])
			return nil
		},
	}

	cmd.Flags().IntVar(&orders, "orders", 200, "Number of orders to generate")
	cmd.Flags().Int64Var(&seed, "seed", 42, "Random seed for deterministic output")
	cmd.Flags().Float64Var(&missing, "missing", 0.05, "Share of rows with one blank cell")
	return cmd
}
