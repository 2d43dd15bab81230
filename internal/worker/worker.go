package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/campus-attendance/backend/internal/calendar"
	"github.com/campus-attendance/backend/pkg/queue"
)

// ErrReportFailed is returned when the report runner reports failure.
var ErrReportFailed = errors.New("report delivery failed")

const dequeueTimeout = 5 * time.Second

// ReportRunner runs the report of a civil date and reports success.
type ReportRunner interface {
	RunDailyReport(ctx context.Context, forDate time.Time) bool
}

// JobQueue is the part of queue.Queue the processor uses.
type JobQueue interface {
	Dequeue(ctx context.Context, timeout time.Duration) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// ReportProcessor processes queued report jobs requested from the admin API.
type ReportProcessor struct {
	runner  ReportRunner
	queue   JobQueue
	logger  *zap.Logger
	backoff time.Duration
}

// NewReportProcessor creates a report job processor.
func NewReportProcessor(runner ReportRunner, q JobQueue, logger *zap.Logger) *ReportProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportProcessor{runner: runner, queue: q, logger: logger, backoff: queue.RetryBackoff}
}

// Process executes one report job.
func (p *ReportProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeDailyReport {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.ReportPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	date, err := calendar.ParseDate(payload.Date)
	if err != nil {
		return err
	}
	if !p.runner.RunDailyReport(ctx, date) {
		return ErrReportFailed
	}
	p.logger.Info("report job completed",
		zap.String("job_id", job.ID),
		zap.String("date", payload.Date),
		zap.String("requested_by", payload.RequestedBy),
	)
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *ReportProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("report worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx, dequeueTimeout)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			p.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			p.sleep(ctx)
		}
	}
}

func (p *ReportProcessor) sleep(ctx context.Context) {
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
