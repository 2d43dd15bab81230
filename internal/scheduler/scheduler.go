// Package scheduler fires the daily report once per civil date.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/campus-attendance/backend/internal/calendar"
)

// DefaultSpec fires at 09:45 in the reference zone, when the window closes.
const DefaultSpec = "45 9 * * *"

// ReportRunner runs the report of a civil date and reports success.
type ReportRunner interface {
	RunDailyReport(ctx context.Context, forDate time.Time) bool
}

// Config configures a Scheduler.
type Config struct {
	Spec     string
	Location *time.Location
	Timeout  time.Duration
}

// Scheduler runs the daily report on a cron schedule in the reference zone.
// The guard ensures at most one successful run per date across instances and
// repeated fires; a failed run releases its claim so a later fire retries.
type Scheduler struct {
	cron    *cron.Cron
	runner  ReportRunner
	guard   Guard
	loc     *time.Location
	timeout time.Duration
	logger  *zap.Logger
	now     func() time.Time
}

// New creates a scheduler. It does not start it.
func New(cfg Config, runner ReportRunner, guard Guard, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Spec == "" {
		cfg.Spec = DefaultSpec
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	cl := cronLogger{logger.Sugar()}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(cfg.Location),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		runner:  runner,
		guard:   guard,
		loc:     cfg.Location,
		timeout: cfg.Timeout,
		logger:  logger,
		now:     time.Now,
	}
	if _, err := s.cron.AddFunc(cfg.Spec, s.Fire); err != nil {
		return nil, fmt.Errorf("parse report schedule %q: %w", cfg.Spec, err)
	}
	return s, nil
}

// Start begins firing in a background goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
	for _, e := range s.cron.Entries() {
		s.logger.Info("report scheduler started", zap.Time("next_run", e.Next))
	}
}

// Stop stops the scheduler and returns a context done when a running fire completes.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// Fire runs the report for today's date in the reference zone.
func (s *Scheduler) Fire() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	s.RunFor(ctx, calendar.DateIn(s.now(), s.loc))
}

// RunFor runs the report for date unless it already ran. It returns whether
// the runner was invoked and whether it succeeded.
func (s *Scheduler) RunFor(ctx context.Context, date time.Time) (ran, ok bool) {
	log := s.logger.With(zap.String("date", calendar.FormatDate(date)))
	claimed, err := s.guard.Claim(ctx, date)
	if err != nil {
		log.Error("claim report date failed", zap.Error(err))
		return false, false
	}
	if !claimed {
		log.Info("daily report already sent, skipping")
		return false, false
	}

	log.Info("running daily report")
	ok = s.runner.RunDailyReport(ctx, date)
	if !ok {
		log.Error("daily report failed; releasing date for retry")
		if err := s.guard.Release(context.Background(), date); err != nil {
			log.Error("release report date failed", zap.Error(err))
		}
		return true, false
	}
	log.Info("daily report sent")
	return true, true
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
