// Package checkin admits faculty who present today's code inside the
// attendance window, recording at most one check-in per person per day.
package checkin

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campus-attendance/backend/internal/calendar"
	"github.com/campus-attendance/backend/internal/metrics"
	"github.com/campus-attendance/backend/internal/models"
)

// TokenSource resolves the active admission token of a civil date (nil if none).
type TokenSource interface {
	TokenForDate(ctx context.Context, date time.Time) (*models.AdmissionToken, error)
}

// Store persists check-ins. Create inserts ci unless the participant already
// has a check-in on ci.Date, atomically; it reports whether a row was written.
type Store interface {
	Create(ctx context.Context, ci *models.CheckIn) (bool, error)
	GetByUserAndDate(ctx context.Context, userID uuid.UUID, date time.Time) (*models.CheckIn, error)
	ListByDate(ctx context.Context, date time.Time) ([]models.CheckInRow, error)
}

// Publisher is notified of every committed check-in.
type Publisher interface {
	PublishCheckIn(ci models.CheckIn)
}

// Confirmation is returned for a successful scan.
type Confirmation struct {
	models.CheckIn
	ScannedAtLocal string `json:"scanned_at_local"`
}

// Status describes a participant's standing for today.
type Status struct {
	Date       string          `json:"date"`
	WindowOpen bool            `json:"window_open"`
	Window     string          `json:"window"`
	CheckedIn  bool            `json:"checked_in"`
	CheckIn    *models.CheckIn `json:"check_in,omitempty"`
	CanCheckIn bool            `json:"can_check_in"`
}

// Service validates scan attempts and commits check-ins.
type Service struct {
	window    calendar.Window
	tokens    TokenSource
	store     Store
	publisher Publisher
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// NewService creates a check-in service. publisher and m may be nil.
func NewService(window calendar.Window, tokens TokenSource, store Store, publisher Publisher, m *metrics.Metrics, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{window: window, tokens: tokens, store: store, publisher: publisher, metrics: m, logger: logger}
}

// Window returns the admission window the service enforces.
func (s *Service) Window() calendar.Window { return s.window }

// SubmitScan admits participantID if now is inside the window, code equals
// today's token and no check-in exists yet for today. The window is evaluated
// on every call. Exactly one row is written on success and none otherwise.
func (s *Service) SubmitScan(ctx context.Context, participantID uuid.UUID, code string, now time.Time) (*Confirmation, error) {
	if !s.window.IsOpen(now) {
		s.metrics.RecordScan(metrics.ScanWindowClosed)
		return nil, ErrWindowClosed
	}

	date := s.window.Today(now)
	tok, err := s.tokens.TokenForDate(ctx, date)
	if err != nil {
		return nil, s.storageFailure("resolve token", participantID, err)
	}
	if tok == nil || subtle.ConstantTimeCompare([]byte(tok.Code), []byte(code)) != 1 {
		s.metrics.RecordScan(metrics.ScanInvalidCode)
		return nil, ErrInvalidCode
	}

	ci := &models.CheckIn{
		UserID:    participantID,
		TokenID:   tok.ID,
		Date:      date,
		ScannedAt: now.UTC(),
		Status:    models.CheckInStatusPresent,
	}
	created, err := s.store.Create(ctx, ci)
	if err != nil {
		return nil, s.storageFailure("create check-in", participantID, err)
	}
	if !created {
		s.metrics.RecordScan(metrics.ScanAlreadyChecked)
		return nil, ErrAlreadyCheckedIn
	}

	s.metrics.RecordScan(metrics.ScanAccepted)
	s.logger.Info("check-in recorded",
		zap.String("user_id", participantID.String()),
		zap.String("date", calendar.FormatDate(date)),
		zap.Time("scanned_at", ci.ScannedAt),
	)
	if s.publisher != nil {
		s.publisher.PublishCheckIn(*ci)
	}
	return &Confirmation{CheckIn: *ci, ScannedAtLocal: s.LocalTime(ci.ScannedAt)}, nil
}

// Status reports whether participantID has checked in today and whether a
// scan would currently be accepted by the window.
func (s *Service) Status(ctx context.Context, participantID uuid.UUID, now time.Time) (*Status, error) {
	date := s.window.Today(now)
	ci, err := s.store.GetByUserAndDate(ctx, participantID, date)
	if err != nil {
		return nil, models.Storage("get check-in", err)
	}
	open := s.window.IsOpen(now)
	return &Status{
		Date:       calendar.FormatDate(date),
		WindowOpen: open,
		Window:     s.window.String(),
		CheckedIn:  ci != nil,
		CheckIn:    ci,
		CanCheckIn: open && ci == nil,
	}, nil
}

// ListByDate returns the check-ins of a civil date with participant details.
func (s *Service) ListByDate(ctx context.Context, date time.Time) ([]models.CheckInRow, error) {
	rows, err := s.store.ListByDate(ctx, date)
	if err != nil {
		return nil, models.Storage("list check-ins", err)
	}
	return rows, nil
}

// LocalTime renders an instant in the reference zone, e.g. "09:41 AM IST".
func (s *Service) LocalTime(t time.Time) string {
	return t.In(s.window.Location).Format("03:04 PM MST")
}

func (s *Service) storageFailure(op string, participantID uuid.UUID, err error) error {
	s.metrics.RecordScan(metrics.ScanStorageFailure)
	s.logger.Error("check-in storage failure",
		zap.String("op", op),
		zap.String("user_id", participantID.String()),
		zap.Error(err),
	)
	var se *models.StorageError
	if errors.As(err, &se) {
		return err
	}
	return models.Storage(op, err)
}
