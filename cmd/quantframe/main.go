package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"

	"github.com/quantframe-lab/quantframe/internal/engine"
	"github.com/quantframe-lab/quantframe/internal/logger"
	"github.com/quantframe-lab/quantframe/internal/store"
	"github.com/quantframe-lab/quantframe/internal/version"
)

func main() {
	cmd := &cli.Command{
		Name:    "quantframe",
		Usage:   "Backtest trading strategies against OHLCV bar files",
		Version: version.Version,
		Commands: []*cli.Command{
			runCommand(),
			runsCommand(),
			exportCommand(),
			schemaCommand(),
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Run a backtest",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "data",
				Aliases:  []string{"d"},
				Usage:    "Path to the bar file (CSV or Parquet)",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "config",
				Aliases:  []string{"c"},
				Usage:    "Path to the YAML backtest config",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write the BacktestRun JSON to this file instead of stdout",
			},
			&cli.BoolFlag{
				Name:  "quiet",
				Usage: "Disable the progress bar",
			},
		},
		Action: runAction,
	}
}

func runAction(ctx context.Context, cmd *cli.Command) error {
	log, err := logger.NewLogger()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	config, err := engine.LoadConfig(cmd.String("config"))
	if err != nil {
		return err
	}

	opts := []engine.Option{}

	if !cmd.Bool("quiet") {
		var bar *progressbar.ProgressBar

		opts = append(opts, engine.WithProgress(func(processed, total int) {
			if bar == nil {
				bar = progressbar.NewOptions(total,
					progressbar.OptionSetDescription("replaying bars"),
					progressbar.OptionSetWriter(os.Stderr),
					progressbar.OptionShowCount(),
					progressbar.OptionClearOnFinish(),
				)
			}

			_ = bar.Set(processed)
		}))
	}

	e, err := engine.New(config, log, opts...)
	if err != nil {
		return err
	}
	defer func() { _ = e.Close() }()

	run, err := e.Run(ctx, cmd.String("data"))
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return err
	}

	if path := cmd.String("output"); path != "" {
		return os.WriteFile(path, append(out, '\n'), 0o644)
	}

	fmt.Println(string(out))

	return nil
}

func runsCommand() *cli.Command {
	dbFlag := &cli.StringFlag{
		Name:     "db",
		Usage:    "Path to the run store (DuckDB file)",
		Required: true,
	}

	return &cli.Command{
		Name:  "runs",
		Usage: "Inspect persisted runs",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List persisted runs, newest first",
				Flags: []cli.Flag{
					dbFlag,
					&cli.StringFlag{
						Name:  "strategy",
						Usage: "Only show runs of this strategy",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return withStore(cmd, func(s *store.DuckDBStore) error {
						runs, err := s.ListRuns(ctx, cmd.String("strategy"))
						if err != nil {
							return err
						}

						for _, info := range runs {
							fmt.Printf("%s  %-16s  equity=%.2f  return=%+.2f%%  trades=%d\n",
								info.RunID, info.StrategyName, info.FinalEquity, info.TotalReturnPct, info.TotalTrades)
						}

						return nil
					})
				},
			},
			{
				Name:      "show",
				Usage:     "Print one run as JSON",
				ArgsUsage: "<run-id>",
				Flags:     []cli.Flag{dbFlag},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return withStore(cmd, func(s *store.DuckDBStore) error {
						run, err := s.GetRun(ctx, cmd.Args().First())
						if err != nil {
							return err
						}

						out, err := json.MarshalIndent(run, "", "  ")
						if err != nil {
							return err
						}

						fmt.Println(string(out))

						return nil
					})
				},
			},
			{
				Name:      "delete",
				Usage:     "Delete one run",
				ArgsUsage: "<run-id>",
				Flags:     []cli.Flag{dbFlag},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return withStore(cmd, func(s *store.DuckDBStore) error {
						return s.DeleteRun(ctx, cmd.Args().First())
					})
				},
			},
		},
	}
}

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export the run store tables as Parquet files",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "db",
				Usage:    "Path to the run store (DuckDB file)",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "out",
				Usage:    "Directory to write Parquet files into",
				Required: true,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withStore(cmd, func(s *store.DuckDBStore) error {
				return s.ExportParquet(ctx, cmd.String("out"))
			})
		},
	}
}

func schemaCommand() *cli.Command {
	return &cli.Command{
		Name:  "schema",
		Usage: "Print the JSON schema of the backtest config",
		Action: func(_ context.Context, _ *cli.Command) error {
			schema, err := engine.ConfigSchemaJSON()
			if err != nil {
				return err
			}

			fmt.Println(schema)

			return nil
		},
	}
}

func withStore(cmd *cli.Command, fn func(*store.DuckDBStore) error) error {
	log, err := logger.NewLogger()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	s, err := store.NewDuckDBStore(cmd.String("db"), log)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	return fn(s)
}
