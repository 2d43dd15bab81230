// Package codes owns the lifecycle of the daily admission tokens encoded in
// the QR codes faculty scan at the door.
package codes

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/campus-attendance/backend/internal/calendar"
	"github.com/campus-attendance/backend/internal/metrics"
	"github.com/campus-attendance/backend/internal/models"
)

const (
	// CodeLength is the number of characters in an admission code.
	CodeLength   = 32
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// Store persists admission tokens. GetActiveByDate returns nil, nil when no
// active token exists for the date. CreateBatch inserts atomically and
// skips dates that already have a token, returning only the inserted rows.
type Store interface {
	GetActiveByDate(ctx context.Context, date time.Time) (*models.AdmissionToken, error)
	ListRange(ctx context.Context, from, to time.Time) ([]models.AdmissionToken, error)
	CreateBatch(ctx context.Context, tokens []models.AdmissionToken) ([]models.AdmissionToken, error)
}

// GenerationError reports the dates that did not get a token. Generation is
// idempotent, so the caller can simply run it again.
type GenerationError struct {
	Dates []time.Time
	Err   error
}

func (e *GenerationError) Error() string {
	days := make([]string, len(e.Dates))
	for i, d := range e.Dates {
		days[i] = calendar.FormatDate(d)
	}
	return fmt.Sprintf("token generation failed for %s: %v", strings.Join(days, ", "), e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// Registry hands out today's token and fills months with new ones.
type Registry struct {
	store   Store
	loc     *time.Location
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
	newCode func() (string, error)
}

// NewRegistry creates a registry evaluating dates in loc.
func NewRegistry(store Store, loc *time.Location, m *metrics.Metrics, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		store:   store,
		loc:     loc,
		metrics: m,
		logger:  logger,
		now:     time.Now,
		newCode: func() (string, error) { return NewCode(CodeLength) },
	}
}

// Today returns the current civil date in the reference zone.
func (r *Registry) Today() time.Time {
	return calendar.DateIn(r.now(), r.loc)
}

// TodayToken returns the active token for today, or nil if none was generated.
func (r *Registry) TodayToken(ctx context.Context) (*models.AdmissionToken, error) {
	return r.TokenForDate(ctx, r.Today())
}

// TokenForDate returns the active token for a civil date, or nil.
func (r *Registry) TokenForDate(ctx context.Context, date time.Time) (*models.AdmissionToken, error) {
	tok, err := r.store.GetActiveByDate(ctx, date)
	if err != nil {
		return nil, models.Storage("get token", err)
	}
	return tok, nil
}

// ListMonth returns the tokens of the month containing ref, ordered by date.
func (r *Registry) ListMonth(ctx context.Context, ref time.Time) ([]models.AdmissionToken, error) {
	dates := calendar.MonthDates(ref)
	list, err := r.store.ListRange(ctx, dates[0], dates[len(dates)-1])
	if err != nil {
		return nil, models.Storage("list tokens", err)
	}
	return list, nil
}

// GenerateForMonth creates a token for every date of the month containing
// reference that has none yet, and returns only the new tokens. reference is
// converted to the reference zone before the month is computed.
func (r *Registry) GenerateForMonth(ctx context.Context, reference time.Time) ([]models.AdmissionToken, error) {
	dates := calendar.MonthDates(calendar.DateIn(reference, r.loc))
	first, last := dates[0], dates[len(dates)-1]

	existing, err := r.store.ListRange(ctx, first, last)
	if err != nil {
		return nil, &GenerationError{Dates: dates, Err: models.Storage("list tokens", err)}
	}
	have := make(map[time.Time]struct{}, len(existing))
	for _, t := range existing {
		have[t.Date] = struct{}{}
	}

	var missing []time.Time
	var pending []models.AdmissionToken
	for _, d := range dates {
		if _, ok := have[d]; ok {
			continue
		}
		missing = append(missing, d)
		code, err := r.newCode()
		if err != nil {
			return nil, &GenerationError{Dates: missingFrom(dates, have), Err: fmt.Errorf("random code: %w", err)}
		}
		pending = append(pending, models.AdmissionToken{Code: code, Date: d, IsActive: true})
	}
	if len(pending) == 0 {
		r.logger.Info("admission tokens already generated", zap.String("month", first.Format("2006-01")))
		return nil, nil
	}

	created, err := r.store.CreateBatch(ctx, pending)
	if err != nil {
		r.logger.Error("create admission tokens failed", zap.Error(err), zap.Int("dates", len(missing)))
		return nil, &GenerationError{Dates: missing, Err: models.Storage("create tokens", err)}
	}
	for _, t := range created {
		r.logger.Info("generated admission token", zap.String("date", calendar.FormatDate(t.Date)))
	}
	r.metrics.RecordTokensGenerated(len(created))
	return created, nil
}

func missingFrom(dates []time.Time, have map[time.Time]struct{}) []time.Time {
	var out []time.Time
	for _, d := range dates {
		if _, ok := have[d]; !ok {
			out = append(out, d)
		}
	}
	return out
}

// NewCode returns n characters drawn uniformly from [A-Za-z0-9] using the
// operating system's CSPRNG.
func NewCode(n int) (string, error) {
	max := big.NewInt(int64(len(codeAlphabet)))
	b := make([]byte, n)
	for i := range b {
		k, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = codeAlphabet[k.Int64()]
	}
	return string(b), nil
}
