package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"dataexplorer/domain/workflow"
	"dataexplorer/internal/config"
	"dataexplorer/internal/container"
	"dataexplorer/internal/report"
	"dataexplorer/ui"

	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags "-X main.Version=..."
var Version = "dev"

var apiURL string

func main() {
	rootCmd := &cobra.Command{
		Use:           "explorer",
		Short:         "Upload a dataset and explore the analysis service's results",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "Analysis service base URL (overrides EXPLORER_API_URL)")

	rootCmd.AddCommand(
		newUploadCmd(),
		newSessionCmd(),
		newAskCmd(),
		newReportCmd(),
		newExploreCmd(),
		newVersionCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("error: ")+err.Error())
		os.Exit(1)
	}
}

// openContainer loads configuration and wires every dependency
func openContainer() (*container.Container, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if apiURL != "" {
		cfg.API.BaseURL = strings.TrimRight(apiURL, "/")
		if err := config.Validate(cfg); err != nil {
			return nil, err
		}
	}
	return container.New(cfg)
}

func readCandidate(path string) (workflow.FileCandidate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return workflow.FileCandidate{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return workflow.FileCandidate{Name: filepath.Base(path), Data: data}, nil
}

// uploadAndWait runs the full workflow for one file and waits for every stage
func uploadAndWait(ctx context.Context, c *container.Container, path string, params *workflow.VisualizationParameters) error {
	file, err := readCandidate(path)
	if err != nil {
		return err
	}
	orch := c.Orchestrator
	orch.SelectFile(file)
	if err := orch.Upload(ctx); err != nil {
		return err
	}
	if params != nil {
		p := *params
		if p.Column == "" {
			p.Column = orch.Snapshot().Parameters.Column
		}
		if err := orch.SetVisualizationParameters(ctx, p); err != nil {
			return err
		}
	}
	orch.Wait()
	return nil
}

func newUploadCmd() *cobra.Command {
	var column string
	var chart string

	cmd := &cobra.Command{
		Use:   "upload [file]",
		Short: "Upload a CSV or XLSX file and print every analysis stage",
		Long: `Upload a file, preview the cleaned table, and run the summary,
feature-selection and visualization stages.

The session id returned by the service is persisted so that later
"ask" commands work without uploading again.

Example: explorer upload orders.csv --column unit_price --chart histogram`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := parseParams(column, chart)
			if err != nil {
				return err
			}

			c, err := openContainer()
			if err != nil {
				return err
			}
			defer c.Shutdown(context.Background())

			if err := uploadAndWait(cmd.Context(), c, args[0], params); err != nil {
				return err
			}
			printState(os.Stdout, c.Orchestrator.Snapshot())
			return nil
		},
	}

	cmd.Flags().StringVar(&column, "column", "", "Column to chart (default: first column)")
	cmd.Flags().StringVar(&chart, "chart", "", "Chart kind: bar|line|histogram|box|scatter|pie")
	return cmd
}

// parseParams returns nil when neither flag was given so the defaults apply
func parseParams(column, chart string) (*workflow.VisualizationParameters, error) {
	if column == "" && chart == "" {
		return nil, nil
	}
	kind := workflow.ChartBar
	if chart != "" {
		k, err := workflow.ParseChartKind(chart)
		if err != nil {
			return nil, err
		}
		kind = k
	}
	return &workflow.VisualizationParameters{Column: column, ChartKind: kind}, nil
}

func newSessionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "session",
		Short: "Show the persisted session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openContainer()
			if err != nil {
				return err
			}
			defer c.Shutdown(context.Background())

			if err := c.Sessions.Hydrate(cmd.Context()); err != nil {
				return err
			}
			sess, ok := c.Sessions.Get()
			if !ok {
				fmt.Println(mutedStyle.Render("No session. Upload a file first."))
				return nil
			}
			fmt.Printf("%s %s\n", labelStyle.Render("Session:"), sess.ID)
			fmt.Printf("%s %s (%s)\n", labelStyle.Render("Stored in:"), c.Config.Storage.StateDir, c.Config.Storage.SessionBackend)
			return nil
		},
	}
}

func newAskCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask [question...]",
		Short: "Ask a question about the active session's dataset",
		Long: `Ask the analysis service a free-form question about the dataset of the
persisted session.

Example: explorer ask "which columns have outliers?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openContainer()
			if err != nil {
				return err
			}
			defer c.Shutdown(context.Background())

			answer, err := c.Orchestrator.Ask(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Println(answer)
			return nil
		},
	}
}

func newReportCmd() *cobra.Command {
	var out string
	var column string
	var chart string

	cmd := &cobra.Command{
		Use:   "report [file]",
		Short: "Upload a file and write a Markdown or HTML report of every stage",
		Long: `Run the whole workflow for a file and export the results.

The format follows the output extension: .html or .htm writes a standalone
HTML page, anything else writes Markdown. Without --out the Markdown report
is printed.

Example: explorer report orders.csv --out report.html`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := parseParams(column, chart)
			if err != nil {
				return err
			}

			c, err := openContainer()
			if err != nil {
				return err
			}
			defer c.Shutdown(context.Background())

			if err := uploadAndWait(cmd.Context(), c, args[0], params); err != nil {
				return err
			}
			st := c.Orchestrator.Snapshot()

			if out == "" {
				fmt.Print(report.Render(st))
				return nil
			}
			var data []byte
			switch strings.ToLower(filepath.Ext(out)) {
			case ".html", ".htm":
				data = report.RenderHTML(st)
			default:
				data = []byte(report.Render(st))
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return fmt.Errorf("failed to write report: %w", err)
			}
			fmt.Printf("%s %s\n", okStyle.Render("Report written to"), out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "Output path (.md or .html)")
	cmd.Flags().StringVar(&column, "column", "", "Column to chart (default: first column)")
	cmd.Flags().StringVar(&chart, "chart", "", "Chart kind: bar|line|histogram|box|scatter|pie")
	return cmd
}

func newExploreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "explore [file]",
		Short: "Explore a dataset interactively",
		Long: `Open the interactive explorer. With a file argument the file is uploaded
immediately; without one, questions still work against the persisted session.

Keys: ←/→ column, ↑/↓ chart kind, r retry failed stages, a ask, q quit.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openContainer()
			if err != nil {
				return err
			}
			defer c.Shutdown(context.Background())

			opts := ui.Options{}
			if len(args) == 1 {
				file, err := readCandidate(args[0])
				if err != nil {
					return err
				}
				c.Orchestrator.SelectFile(file)
				opts.UploadOnStart = true
			}
			return ui.Run(cmd.Context(), c.Orchestrator, opts)
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("explorer " + Version)
		},
	}
}
