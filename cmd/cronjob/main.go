package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"coreshare-backend/internal/config"
	"coreshare-backend/internal/jobs"
	"coreshare-backend/internal/logger"
	"coreshare-backend/internal/mpesa"
	"coreshare-backend/internal/repository/postgres"
	"coreshare-backend/internal/scheduler"
	"coreshare-backend/internal/service"

	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:          "cronjob",
		Short:        "CoreShare background job runner",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config/config.dev.yaml", "Path to configuration file")
	root.AddCommand(startCmd(), runCmd(), migrateCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// jobEnv holds what every subcommand needs once configuration is loaded.
type jobEnv struct {
	cfg *config.Config
	db  *sql.DB
}

func setup() (*jobEnv, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting CoreShare Cronjob Runner...", "log_level", cfg.Log.Level)

	logger.Info("Connecting to database...", "host", cfg.Database.Host, "port", cfg.Database.Port)
	db, err := sql.Open("postgres", cfg.GetDatabaseConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	logger.Info("Database connection established")
	return &jobEnv{cfg: cfg, db: db}, nil
}

// jobRunner wires the database jobs. Chat sessions live in the API process, so chat
// expiry is not available here. Notifications are recorded but not pushed.
func (rt *jobEnv) jobRunner() *jobs.JobRunner {
	store := postgres.NewStore(rt.db)
	delivery := service.NewDeliveryQueue(nil, nil, store.Users, 0, 0, 0)
	gateway := mpesa.NewClient(mpesa.Config{
		ConsumerKey:     rt.cfg.Mpesa.ConsumerKey,
		ConsumerSecret:  rt.cfg.Mpesa.ConsumerSecret,
		ShortCode:       rt.cfg.Mpesa.ShortCode,
		PassKey:         rt.cfg.Mpesa.PassKey,
		CallbackBaseURL: rt.cfg.Mpesa.CallbackBaseURL,
		Environment:     rt.cfg.Mpesa.Environment,
		TestMode:        rt.cfg.Mpesa.TestMode,
		Timeout:         time.Duration(rt.cfg.Mpesa.TimeoutSeconds) * time.Second,
	})

	return jobs.NewJobRunner(&jobs.Services{
		Rental:  service.NewRentalService(store, store.Repositories, delivery),
		Payment: service.NewPaymentService(store, store.Repositories, gateway, delivery, rt.cfg.PaymentClaimTTL()),
	}, rt.cfg)
}

func startCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Run the job scheduler until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup()
			if err != nil {
				return err
			}
			defer rt.db.Close()

			cronScheduler, err := scheduler.NewScheduler(rt.jobRunner())
			if err != nil {
				return err
			}
			cronScheduler.Start()
			logger.Info("Cronjob scheduler is running. Press Ctrl+C to stop.")

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			<-ctx.Done()

			logger.Info("Shutting down cronjob scheduler...")
			cronScheduler.Stop()
			logger.Info("Cronjob scheduler stopped. Goodbye!")
			return nil
		},
	}
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "run <job>",
		Short:     "Run a single job once and exit",
		Args:      cobra.ExactArgs(1),
		ValidArgs: jobNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			job, ok := onceJobs[args[0]]
			if !ok {
				return fmt.Errorf("unknown job %q, available: %s", args[0], strings.Join(jobNames(), ", "))
			}
			rt, err := setup()
			if err != nil {
				return err
			}
			defer rt.db.Close()

			logger.Info("Running job once", "job", args[0])
			job(rt.jobRunner())
			logger.Info("Job execution completed", "job", args[0])
			return nil
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup()
			if err != nil {
				return err
			}
			defer rt.db.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()
			if err := postgres.Migrate(ctx, rt.db); err != nil {
				return err
			}
			logger.Info("Database schema applied")
			return nil
		},
	}
}

var onceJobs = map[string]func(*jobs.JobRunner){
	"reconcile-payments":     (*jobs.JobRunner).ReconcilePayments,
	"expire-stale-approvals": (*jobs.JobRunner).ExpireStaleApprovals,
	"all":                    (*jobs.JobRunner).RunAll,
}

func jobNames() []string {
	names := make([]string, 0, len(onceJobs))
	for name := range onceJobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
