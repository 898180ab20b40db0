package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/cuongbtq/review-monitor/internal/api/storage"
	"github.com/cuongbtq/review-monitor/internal/bootstrap"
	"github.com/cuongbtq/review-monitor/internal/config"
	"github.com/cuongbtq/review-monitor/internal/domain"
	"github.com/cuongbtq/review-monitor/internal/worker"
	workerstorage "github.com/cuongbtq/review-monitor/internal/worker/storage"
	"github.com/cuongbtq/review-monitor/shared/logger"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var configPath string

func main() {
	_ = godotenv.Load()

	defaultConfigPath := os.Getenv("WORKER_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/worker-service/config.yaml"
	}

	rootCmd := &cobra.Command{
		Use:           "reviewctl",
		Short:         "Operate the review monitor record store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath, "path to configuration file")

	rootCmd.AddCommand(ingestCmd())
	rootCmd.AddCommand(logsCmd())
	rootCmd.AddCommand(trackedCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// env bundles what every subcommand opens
type env struct {
	cfg    *config.Config
	logger *logger.Logger
	store  *bootstrap.Storage
}

func openEnv(ctx context.Context) (*env, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	appLogger, err := bootstrap.InitLogger(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	store, err := bootstrap.OpenStorage(ctx, cfg, appLogger.Logger)
	if err != nil {
		appLogger.Close()
		return nil, err
	}

	return &env{cfg: cfg, logger: appLogger, store: store}, nil
}

func (e *env) Close() {
	e.store.Close()
	e.logger.Close()
}

func ingestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest",
		Short: "Run one review fetch and print its run log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			e, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			if err := e.cfg.ValidateWorkerConfig(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			ingestor := worker.NewIngestor(&worker.IngestorConfig{
				Logger:           e.logger.Logger,
				Source:           bootstrap.InitProvider(&e.cfg.Provider, e.logger.Logger),
				Storage:          workerstorage.NewStorage(e.store.Collections, e.logger.Logger),
				FetchConcurrency: e.cfg.Worker.FetchConcurrency,
				JobTimeout:       e.cfg.Worker.JobTimeout,
			})

			runLog, err := ingestor.Run(ctx)
			if runLog != nil {
				printJobLogs(cmd, []domain.JobRunLog{*runLog})
			}
			return err
		},
	}
}

func logsCmd() *cobra.Command {
	var (
		status string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "List the most recent job run logs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit <= 0 {
				return fmt.Errorf("limit must be greater than 0")
			}

			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			logs, err := storage.NewStorage(e.store.Collections).ListJobLogs(cmd.Context(), storage.JobFilter{
				Status:   status,
				PageSize: limit,
			})
			if err != nil {
				return err
			}
			if len(logs) > limit {
				logs = logs[:limit]
			}

			printJobLogs(cmd, logs)
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "filter by status (running, success, error)")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of logs")
	return cmd
}

func trackedCmd() *cobra.Command {
	var user string

	cmd := &cobra.Command{
		Use:   "tracked",
		Short: "List tracked companies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			s := storage.NewStorage(e.store.Collections)

			var companies []domain.TrackedCompany
			if user != "" {
				companies, err = s.TrackedCompanies(cmd.Context(), user)
			} else {
				companies, err = s.AllTrackedCompanies(cmd.Context())
			}
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "DOMAIN\tNAME\tUSER\tADDED")
			for _, c := range companies {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.Domain, c.Name, c.Owner, c.AddedAt.Format(time.RFC3339))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "only companies tracked by this user")
	return cmd
}

func printJobLogs(cmd *cobra.Command, logs []domain.JobRunLog) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "JOB ID\tSTATUS\tSTARTED\tENDED\tREVIEWS\tERROR")
	for _, l := range logs {
		ended := "-"
		if l.EndTime != nil {
			ended = l.EndTime.Format(time.RFC3339)
		}
		errMsg := "-"
		if l.ErrorMessage != nil {
			errMsg = *l.ErrorMessage
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
			l.JobID, l.Status, l.StartTime.Format(time.RFC3339), ended, l.ReviewsFetched, errMsg)
	}
	w.Flush()
}
