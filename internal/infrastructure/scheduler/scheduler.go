package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/medsupply/backend/internal/domain/supply"
	"go.uber.org/zap"
)

// Trigger labels a run as scheduled by the cron loop
const Trigger = "scheduled"

var (
	ErrInvalidConfig       = errors.New("scheduler: interval and window must be positive")
	ErrAlreadyRunning      = errors.New("scheduler: already running")
	ErrSchedulerNotRunning = errors.New("scheduler: not running")
)

// JobStatus represents the status of a reconciliation run
type JobStatus string

const (
	JobStatusRunning JobStatus = "RUNNING"
	JobStatusSuccess JobStatus = "SUCCESS"
	JobStatusFailed  JobStatus = "FAILED"
)

// Runner compares dispensed and used quantities over a window
type Runner interface {
	Run(ctx context.Context, window supply.Window, filter supply.ReconciliationFilter, trigger string) (*supply.ReconciliationReport, error)
}

// Job records one reconciliation pass
type Job struct {
	ID             uuid.UUID
	DepartmentCode string
	Window         supply.Window
	Status         JobStatus
	Error          string
	Attempts       int
	Rows           int
	Discrepancies  int
	Complete       bool
	StartedAt      time.Time
	CompletedAt    *time.Time

	err error
}

// Err returns the failure of the pass with its chain intact
func (j Job) Err() error { return j.err }

func (j *Job) finish(now time.Time, report *supply.ReconciliationReport, err error) {
	j.CompletedAt = &now
	if err != nil {
		j.Status = JobStatusFailed
		j.Error = err.Error()
		j.err = err
		return
	}
	j.Status = JobStatusSuccess
	j.Error = ""
	j.err = nil
	j.Rows = len(report.Results)
	j.Discrepancies = report.Discrepancies()
	j.Complete = report.Complete
}

// Config holds reconciliation scheduling configuration
type Config struct {
	Interval time.Duration
	Window   time.Duration
	// Timeout bounds one pass including retries
	Timeout       time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
	// Departments runs one pass per department; empty runs a single
	// unfiltered pass
	Departments []string
}

// DefaultConfig returns an hourly pass over the trailing 24 hours
func DefaultConfig() Config {
	return Config{
		Interval:      time.Hour,
		Window:        24 * time.Hour,
		Timeout:       5 * time.Minute,
		RetryAttempts: 2,
		RetryDelay:    10 * time.Second,
	}
}

func (c Config) validate() error {
	if c.Interval <= 0 || c.Window <= 0 {
		return ErrInvalidConfig
	}
	return nil
}

// Option configures a Scheduler
type Option func(*Scheduler)

// WithClock overrides the time source used for window ends
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// Scheduler runs reconciliation on a fixed interval over the trailing
// window. Passes never overlap; a pass still running when the next tick
// fires causes that tick to be skipped.
type Scheduler struct {
	config Config
	runner Runner
	logger *zap.Logger
	now    func() time.Time

	mu        sync.Mutex
	cron      gocron.Scheduler
	cancel    context.CancelFunc
	isRunning bool
	lastJobs  []Job
}

// NewScheduler creates a Scheduler
func NewScheduler(cfg Config, runner Runner, logger *zap.Logger, opts ...Option) (*Scheduler, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if runner == nil {
		return nil, ErrInvalidConfig
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scheduler{config: cfg, runner: runner, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Start registers the cron job and starts ticking. The first pass runs
// immediately.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return ErrAlreadyRunning
	}

	cron, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(ctx)
	_, err = cron.NewJob(
		gocron.DurationJob(s.config.Interval),
		gocron.NewTask(func() {
			if _, err := s.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Error("Scheduled reconciliation failed", zap.Error(err))
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
		gocron.WithName("reconciliation"),
	)
	if err != nil {
		cancel()
		return err
	}
	cron.Start()

	s.cron = cron
	s.cancel = cancel
	s.isRunning = true
	s.logger.Info("Reconciliation scheduler started",
		zap.Duration("interval", s.config.Interval),
		zap.Duration("window", s.config.Window),
		zap.Strings("departments", s.config.Departments),
	)
	return nil
}

// Stop cancels any running pass and waits for the cron loop to exit or ctx
// to end
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.isRunning = false
	cron, cancel := s.cron, s.cancel
	s.mu.Unlock()

	cancel()
	done := make(chan error, 1)
	go func() { done <- cron.Shutdown() }()

	select {
	case err := <-done:
		s.logger.Info("Reconciliation scheduler stopped")
		return err
	case <-ctx.Done():
		s.logger.Warn("Reconciliation scheduler stop timed out")
		return ctx.Err()
	}
}

// RunOnce runs one pass per configured department over the window ending
// now. It returns the jobs and the first error encountered; later
// departments still run after an earlier one fails.
func (s *Scheduler) RunOnce(ctx context.Context) ([]Job, error) {
	if s.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.Timeout)
		defer cancel()
	}

	window := supply.TrailingWindow(s.now().UTC(), s.config.Window)
	departments := s.config.Departments
	if len(departments) == 0 {
		departments = []string{""}
	}

	jobs := make([]Job, 0, len(departments))
	var firstErr error
	for _, dept := range departments {
		job := s.runJob(ctx, window, dept)
		if job.Status == JobStatusFailed && firstErr == nil {
			firstErr = job.Err()
		}
		jobs = append(jobs, job)
	}

	s.mu.Lock()
	s.lastJobs = jobs
	s.mu.Unlock()
	return jobs, firstErr
}

func (s *Scheduler) runJob(ctx context.Context, window supply.Window, dept string) Job {
	job := Job{
		ID:             uuid.New(),
		DepartmentCode: dept,
		Window:         window,
		Status:         JobStatusRunning,
		StartedAt:      s.now(),
	}
	filter := supply.ReconciliationFilter{DepartmentCode: dept}

	for {
		job.Attempts++
		report, err := s.runner.Run(ctx, window, filter, Trigger)
		if err == nil {
			job.finish(s.now(), report, nil)
			s.logger.Info("Reconciliation job completed",
				zap.String("job_id", job.ID.String()),
				zap.String("department_code", dept),
				zap.Int("rows", job.Rows),
				zap.Int("discrepancies", job.Discrepancies),
				zap.Bool("complete", job.Complete),
			)
			return job
		}
		if errors.Is(err, context.Canceled) {
			job.finish(s.now(), nil, err)
			s.logger.Info("Reconciliation job cancelled",
				zap.String("job_id", job.ID.String()),
				zap.String("department_code", dept),
			)
			return job
		}
		if !retryable(err) || job.Attempts > s.config.RetryAttempts {
			job.finish(s.now(), nil, err)
			s.logger.Error("Reconciliation job failed",
				zap.String("job_id", job.ID.String()),
				zap.String("department_code", dept),
				zap.Int("attempts", job.Attempts),
				zap.Error(err),
			)
			return job
		}
		s.logger.Warn("Reconciliation job will retry",
			zap.String("job_id", job.ID.String()),
			zap.Int("attempt", job.Attempts),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			job.finish(s.now(), nil, ctx.Err())
			return job
		case <-time.After(s.config.RetryDelay):
		}
	}
}

// LastJobs returns the jobs of the most recent pass
func (s *Scheduler) LastJobs() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Job, len(s.lastJobs))
	copy(out, s.lastJobs)
	return out
}

// IsRunning reports whether the cron loop is active
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

func retryable(err error) bool {
	var r interface{ Retryable() bool }
	return errors.As(err, &r) && r.Retryable()
}
