package codes

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-attendance/backend/internal/models"
)

// memStore is an in-memory Store keyed by date.
type memStore struct {
	mu         sync.Mutex
	tokens     map[time.Time]models.AdmissionToken
	createErr  error
	listErr    error
	createCall int
}

func newMemStore() *memStore {
	return &memStore{tokens: make(map[time.Time]models.AdmissionToken)}
}

func (s *memStore) GetActiveByDate(_ context.Context, date time.Time) (*models.AdmissionToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[date]
	if !ok || !t.IsActive {
		return nil, nil
	}
	return &t, nil
}

func (s *memStore) ListRange(_ context.Context, from, to time.Time) ([]models.AdmissionToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []models.AdmissionToken
	for d, t := range s.tokens {
		if !d.Before(from) && !d.After(to) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s *memStore) CreateBatch(_ context.Context, tokens []models.AdmissionToken) ([]models.AdmissionToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createCall++
	if s.createErr != nil {
		return nil, s.createErr
	}
	var created []models.AdmissionToken
	for _, t := range tokens {
		if _, ok := s.tokens[t.Date]; ok {
			continue
		}
		t.ID = uuid.New()
		t.CreatedAt = time.Now().UTC()
		s.tokens[t.Date] = t
		created = append(created, t)
	}
	return created, nil
}

func (s *memStore) put(date time.Time, code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[date] = models.AdmissionToken{ID: uuid.New(), Code: code, Date: date, IsActive: true}
}

func ist(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)
	return loc
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newTestRegistry(t *testing.T, store Store, now time.Time) *Registry {
	r := NewRegistry(store, ist(t), nil, nil)
	r.now = func() time.Time { return now }
	return r
}

func TestGenerateForMonth_December(t *testing.T) {
	loc := ist(t)
	store := newMemStore()
	r := newTestRegistry(t, store, time.Date(2024, 12, 15, 10, 0, 0, 0, loc))

	created, err := r.GenerateForMonth(context.Background(), time.Date(2024, 12, 15, 10, 0, 0, 0, loc))
	require.NoError(t, err)
	require.Len(t, created, 31)

	seen := make(map[string]bool)
	for i, tok := range created {
		assert.Equal(t, day(2024, 12, i+1), tok.Date)
		assert.True(t, tok.IsActive)
		assert.Len(t, tok.Code, CodeLength)
		assert.False(t, seen[tok.Code], "duplicate code")
		seen[tok.Code] = true
	}
	_, hasJan := store.tokens[day(2025, 1, 1)]
	assert.False(t, hasJan)
	_, hasNov := store.tokens[day(2024, 11, 30)]
	assert.False(t, hasNov)
}

func TestGenerateForMonth_Idempotent(t *testing.T) {
	loc := ist(t)
	store := newMemStore()
	ref := time.Date(2024, 2, 10, 9, 0, 0, 0, loc)
	r := newTestRegistry(t, store, ref)

	first, err := r.GenerateForMonth(context.Background(), ref)
	require.NoError(t, err)
	require.Len(t, first, 29)
	before := make(map[time.Time]string)
	for d, tok := range store.tokens {
		before[d] = tok.Code
	}

	second, err := r.GenerateForMonth(context.Background(), ref)
	require.NoError(t, err)
	assert.Empty(t, second)
	for d, tok := range store.tokens {
		assert.Equal(t, before[d], tok.Code)
	}
	assert.Len(t, store.tokens, 29)
}

func TestGenerateForMonth_FillsOnlyMissingDates(t *testing.T) {
	loc := ist(t)
	store := newMemStore()
	store.put(day(2024, 4, 1), "existing-first")
	store.put(day(2024, 4, 15), "existing-middle")
	r := newTestRegistry(t, store, time.Date(2024, 4, 15, 9, 0, 0, 0, loc))

	created, err := r.GenerateForMonth(context.Background(), time.Date(2024, 4, 15, 9, 0, 0, 0, loc))
	require.NoError(t, err)
	assert.Len(t, created, 28)
	assert.Equal(t, "existing-first", store.tokens[day(2024, 4, 1)].Code)
	assert.Equal(t, "existing-middle", store.tokens[day(2024, 4, 15)].Code)
}

func TestGenerateForMonth_UsesReferenceZone(t *testing.T) {
	store := newMemStore()
	r := newTestRegistry(t, store, time.Now())

	// 20:00 UTC on Nov 30 is already Dec 1 in IST.
	created, err := r.GenerateForMonth(context.Background(), time.Date(2024, 11, 30, 20, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.NotEmpty(t, created)
	assert.Equal(t, time.December, created[0].Date.Month())
}

func TestGenerateForMonth_StorageFailureReportsDates(t *testing.T) {
	loc := ist(t)
	store := newMemStore()
	store.put(day(2024, 6, 1), "kept")
	store.createErr = errors.New("connection reset")
	r := newTestRegistry(t, store, time.Date(2024, 6, 3, 9, 0, 0, 0, loc))

	created, err := r.GenerateForMonth(context.Background(), time.Date(2024, 6, 3, 9, 0, 0, 0, loc))
	assert.Nil(t, created)

	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Len(t, genErr.Dates, 29)
	assert.Equal(t, day(2024, 6, 2), genErr.Dates[0])
	assert.Equal(t, day(2024, 6, 30), genErr.Dates[28])

	var storeErr *models.StorageError
	assert.ErrorAs(t, err, &storeErr)
	assert.Contains(t, err.Error(), "2024-06-02")
	assert.Len(t, store.tokens, 1)
}

func TestGenerateForMonth_RandomSourceFailure(t *testing.T) {
	loc := ist(t)
	store := newMemStore()
	r := newTestRegistry(t, store, time.Date(2024, 9, 1, 9, 0, 0, 0, loc))
	calls := 0
	r.newCode = func() (string, error) {
		calls++
		if calls == 3 {
			return "", errors.New("entropy exhausted")
		}
		return NewCode(CodeLength)
	}

	_, err := r.GenerateForMonth(context.Background(), time.Date(2024, 9, 1, 9, 0, 0, 0, loc))

	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Len(t, genErr.Dates, 30)
	assert.Zero(t, store.createCall)
	assert.Empty(t, store.tokens)
}

func TestTodayToken(t *testing.T) {
	store := newMemStore()
	// 19:00 UTC Mar 4 is Mar 5 00:30 IST.
	r := newTestRegistry(t, store, time.Date(2024, 3, 4, 19, 0, 0, 0, time.UTC))

	tok, err := r.TodayToken(context.Background())
	require.NoError(t, err)
	assert.Nil(t, tok)

	store.put(day(2024, 3, 4), "yesterday")
	store.put(day(2024, 3, 5), "today")
	tok, err = r.TodayToken(context.Background())
	require.NoError(t, err)
	require.NotNil(t, tok)
	assert.Equal(t, "today", tok.Code)
}

func TestTodayToken_IgnoresInactive(t *testing.T) {
	store := newMemStore()
	store.tokens[day(2024, 3, 5)] = models.AdmissionToken{Code: "off", Date: day(2024, 3, 5), IsActive: false}
	r := newTestRegistry(t, store, time.Date(2024, 3, 5, 4, 0, 0, 0, time.UTC))

	tok, err := r.TodayToken(context.Background())
	require.NoError(t, err)
	assert.Nil(t, tok)
}

func TestNewCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		code, err := NewCode(CodeLength)
		require.NoError(t, err)
		require.Len(t, code, CodeLength)
		for _, ch := range code {
			assert.True(t, strings.ContainsRune(codeAlphabet, ch), "unexpected rune %q", ch)
		}
		assert.False(t, seen[code])
		seen[code] = true
	}
}

func TestQRCodePNG(t *testing.T) {
	png, err := QRCodePNG("abcDEF123")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, png[:4])
}
