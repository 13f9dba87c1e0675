package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	appsupply "github.com/medsupply/backend/internal/application/supply"
	"github.com/medsupply/backend/internal/infrastructure/config"
	"github.com/medsupply/backend/internal/infrastructure/logger"
	"github.com/medsupply/backend/internal/infrastructure/persistence"
	"github.com/medsupply/backend/internal/infrastructure/scheduler"
	"github.com/medsupply/backend/internal/infrastructure/telemetry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type worker struct {
	cfg         *config.Config
	log         *zap.Logger
	db          *persistence.Database
	mp          *telemetry.MeterProvider
	tp          *telemetry.TracerProvider
	departments []string
}

func main() {
	w := &worker{}
	root := &cobra.Command{
		Use:   "worker",
		Short: "Medical supply background worker",
		Long: `Runs reconciliation of dispensed against used supply quantities.

Settings come from config.toml and MEDSUPPLY_* environment variables;
reconciliation.interval and reconciliation.window control the schedule.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return w.setup(cmd.Context())
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			w.teardown()
		},
	}
	root.PersistentFlags().StringSliceVar(&w.departments, "department", nil,
		"department code to reconcile separately (repeatable, overrides reconciliation.departments)")

	root.AddCommand(w.runCmd(), w.reconcileCmd())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func (w *worker) setup(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	w.cfg = cfg

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	w.log = log.Named("worker")

	w.tp, err = telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName + "-worker",
		Insecure:          cfg.Telemetry.Insecure,
	}, w.log)
	if err != nil {
		return fmt.Errorf("failed to initialize tracer: %w", err)
	}
	w.mp, err = telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       cfg.Telemetry.ServiceName + "-worker",
		Insecure:          cfg.Telemetry.Insecure,
	}, w.log)
	if err != nil {
		return fmt.Errorf("failed to initialize meter provider: %w", err)
	}

	gormLog := logger.NewGormLogger(w.log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh), logger.WithMaxSQLLength(2048))
	w.db, err = persistence.NewDatabase(&cfg.Database,
		persistence.WithLogger(gormLog),
		persistence.WithPingRetry(5, time.Second),
	)
	if err != nil {
		return err
	}
	return telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
		DBSystem:        "postgresql",
	}, w.log).Register(w.db.DB)
}

func (w *worker) teardown() {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if w.db != nil {
		if err := w.db.Close(); err != nil {
			w.log.Error("Error closing database", zap.Error(err))
		}
	}
	if w.mp != nil {
		_ = w.mp.Shutdown(ctx)
	}
	if w.tp != nil {
		_ = w.tp.Shutdown(ctx)
	}
	if w.log != nil {
		_ = w.log.Sync()
	}
}

// newScheduler builds the reconciliation scheduler on top of the ledger and
// the dispensed feed
func (w *worker) newScheduler() (*scheduler.Scheduler, *telemetry.SupplyMetrics, error) {
	usageRepo := persistence.NewGormUsageRecordRepository(w.db.DB)
	dispensed := persistence.NewGormDispensedSource(w.db.DB)

	svc := appsupply.NewReconciliationService(usageRepo, dispensed, w.log,
		appsupply.WithDispensedTimeout(w.cfg.Dependencies.DispensedTimeout),
		appsupply.WithLedgerTimeout(w.cfg.Dependencies.LedgerTimeout),
	)
	metrics, err := telemetry.NewSupplyMetrics(telemetry.SupplyMetricsConfig{
		Meter:           w.mp.Meter("medsupply.worker"),
		Logger:          w.log,
		CollectInterval: w.cfg.Telemetry.MetricsInterval,
		Snapshot:        telemetry.NewGormLedgerSnapshotProvider(w.db.DB),
	})
	if err != nil {
		return nil, nil, err
	}
	svc.SetMetrics(metrics)

	departments := w.cfg.Reconciliation.Departments
	if len(w.departments) > 0 {
		departments = w.departments
	}
	sched, err := scheduler.NewScheduler(scheduler.Config{
		Interval:      w.cfg.Reconciliation.Interval,
		Window:        w.cfg.Reconciliation.Window,
		Timeout:       w.cfg.Reconciliation.Timeout,
		RetryAttempts: w.cfg.Reconciliation.RetryAttempts,
		RetryDelay:    w.cfg.Reconciliation.RetryDelay,
		Departments:   departments,
	}, svc, w.log)
	if err != nil {
		return nil, nil, err
	}
	return sched, metrics, nil
}

func (w *worker) runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Reconcile on the configured interval until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !w.cfg.Reconciliation.Enabled {
				w.log.Warn("Periodic reconciliation is disabled (reconciliation.enabled=false)")
				return nil
			}
			sched, metrics, err := w.newScheduler()
			if err != nil {
				return err
			}

			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error {
				if err := sched.Start(ctx); err != nil {
					return err
				}
				<-ctx.Done()
				stopCtx, cancel := context.WithTimeout(context.Background(), w.cfg.Reconciliation.Timeout)
				defer cancel()
				return sched.Stop(stopCtx)
			})
			g.Go(func() error {
				if w.mp.IsEnabled() {
					metrics.StartPeriodicCollection(ctx)
				}
				<-ctx.Done()
				metrics.Stop()
				return nil
			})

			err = g.Wait()
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}

func (w *worker) reconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Run one reconciliation pass over the trailing window and print a summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			sched, _, err := w.newScheduler()
			if err != nil {
				return err
			}
			jobs, runErr := sched.RunOnce(cmd.Context())
			printJobs(cmd.OutOrStdout(), jobs)
			return runErr
		},
	}
}

func printJobs(out io.Writer, jobs []scheduler.Job) {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "DEPARTMENT\tSTATUS\tROWS\tDISCREPANCIES\tCOMPLETE\tATTEMPTS\tERROR")
	for _, j := range jobs {
		dept := j.DepartmentCode
		if dept == "" {
			dept = "(all)"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%t\t%d\t%s\n",
			dept, j.Status, j.Rows, j.Discrepancies, j.Complete, j.Attempts, j.Error)
	}
	_ = tw.Flush()
}
