package report

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/campus-attendance/backend/internal/calendar"
	"github.com/campus-attendance/backend/internal/metrics"
	"github.com/campus-attendance/backend/internal/models"
	"github.com/campus-attendance/backend/internal/notify"
)

// ParticipantLister lists accounts by role.
type ParticipantLister interface {
	ListByRole(ctx context.Context, role models.Role) ([]models.User, error)
}

// CheckInLister lists the check-ins of a civil date.
type CheckInLister interface {
	ListByDate(ctx context.Context, date time.Time) ([]models.CheckInRow, error)
}

// DeliveryLog appends delivery records.
type DeliveryLog interface {
	Create(ctx context.Context, rec *models.DeliveryRecord) error
}

// ArchiveStore keeps a copy of each day's report and returns its key.
type ArchiveStore interface {
	PutReportArchive(ctx context.Context, date time.Time, data []byte) (string, error)
}

// TriggerDeps are the collaborators of a Trigger. Archive and Metrics may be nil.
type TriggerDeps struct {
	Participants ParticipantLister
	CheckIns     CheckInLister
	Builder      Builder
	Notifier     notify.Notifier
	Deliveries   DeliveryLog
	Archive      ArchiveStore
	Metrics      *metrics.Metrics
}

// Trigger runs the daily attendance report.
type Trigger struct {
	deps       TriggerDeps
	recipients []string
	loc        *time.Location
	logger     *zap.Logger
	now        func() time.Time
}

// NewTrigger creates a report trigger addressing recipients.
func NewTrigger(deps TriggerDeps, recipients []string, loc *time.Location, logger *zap.Logger) *Trigger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Trigger{deps: deps, recipients: recipients, loc: loc, logger: logger, now: time.Now}
}

// RunDailyReport reports on forDate (a civil date) and records exactly one
// delivery. It returns true when the notifier accepted the message.
func (t *Trigger) RunDailyReport(ctx context.Context, forDate time.Time) bool {
	date := calendar.DateIn(forDate, time.UTC)
	log := t.logger.With(zap.String("date", calendar.FormatDate(date)))

	rec := &models.DeliveryRecord{
		Date:       date,
		Recipients: t.recipients,
		Subject:    Summary{Date: date}.Subject(),
		Status:     models.DeliveryStatusFailed,
	}

	key, err := t.deliver(ctx, date, rec, log)
	rec.ArchiveKey = key
	if err != nil {
		rec.ErrorMessage = err.Error()
		log.Error("daily report failed", zap.Error(err))
	} else {
		rec.Status = models.DeliveryStatusSent
		log.Info("daily report sent", zap.Strings("recipients", t.recipients))
	}
	t.deps.Metrics.RecordDelivery(rec.Status)

	if err := t.deps.Deliveries.Create(ctx, rec); err != nil {
		log.Error("record delivery failed", zap.Error(err))
	}
	return rec.Status == models.DeliveryStatusSent
}

func (t *Trigger) deliver(ctx context.Context, date time.Time, rec *models.DeliveryRecord, log *zap.Logger) (string, error) {
	if len(t.recipients) == 0 {
		return "", notify.ErrNoRecipients
	}
	faculty, err := t.deps.Participants.ListByRole(ctx, models.RoleFaculty)
	if err != nil {
		return "", fmt.Errorf("list faculty: %w", err)
	}
	rows, err := t.deps.CheckIns.ListByDate(ctx, date)
	if err != nil {
		return "", fmt.Errorf("list check-ins: %w", err)
	}

	summary := Partition(date, t.loc, faculty, rows)
	bundle, err := t.deps.Builder.Build(ctx, summary)
	if err != nil {
		return "", fmt.Errorf("build report: %w", err)
	}
	rec.Subject = bundle.Subject

	var key string
	if t.deps.Archive != nil {
		key = t.archive(ctx, date, bundle, log)
	}

	err = t.deps.Notifier.Send(ctx, notify.Message{
		To:          t.recipients,
		Subject:     bundle.Subject,
		HTMLBody:    bundle.HTMLBody,
		Attachments: bundle.Attachments,
	})
	if err != nil {
		return key, fmt.Errorf("send report: %w", err)
	}
	return key, nil
}

// archive failures are logged and do not fail the delivery.
func (t *Trigger) archive(ctx context.Context, date time.Time, bundle *Bundle, log *zap.Logger) string {
	data, err := Archive(bundle, t.now())
	if err != nil {
		log.Warn("pack report archive failed", zap.Error(err))
		return ""
	}
	key, err := t.deps.Archive.PutReportArchive(ctx, date, data)
	if err != nil {
		log.Warn("upload report archive failed", zap.Error(err))
		return ""
	}
	return key
}
