package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/campus-attendance/backend/internal/calendar"
)

// GuardTTL bounds how long a claimed date is remembered.
const GuardTTL = 48 * time.Hour

// Guard tracks which dates have already been reported.
type Guard interface {
	// Claim marks date as taken and reports whether this caller got it.
	Claim(ctx context.Context, date time.Time) (bool, error)
	// Release gives up a claim after a failed run.
	Release(ctx context.Context, date time.Time) error
}

// GuardKey is the Redis key of a date's claim.
func GuardKey(date time.Time) string {
	return "scheduler:daily_report:" + calendar.FormatDate(date)
}

// RedisGuard is a Guard shared by every worker using the same Redis.
type RedisGuard struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisGuard creates a Redis-backed guard.
func NewRedisGuard(client redis.UniversalClient) *RedisGuard {
	return &RedisGuard{client: client, ttl: GuardTTL}
}

// Claim implements Guard with SET NX.
func (g *RedisGuard) Claim(ctx context.Context, date time.Time) (bool, error) {
	return g.client.SetNX(ctx, GuardKey(date), time.Now().UTC().Format(time.RFC3339), g.ttl).Result()
}

// Release implements Guard.
func (g *RedisGuard) Release(ctx context.Context, date time.Time) error {
	return g.client.Del(ctx, GuardKey(date)).Err()
}

// MemoryGuard is an in-process Guard for a single worker.
type MemoryGuard struct {
	mu   sync.Mutex
	sent map[string]struct{}
}

// NewMemoryGuard creates an empty MemoryGuard.
func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{sent: make(map[string]struct{})}
}

// Claim implements Guard.
func (g *MemoryGuard) Claim(_ context.Context, date time.Time) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	k := GuardKey(date)
	if _, ok := g.sent[k]; ok {
		return false, nil
	}
	g.sent[k] = struct{}{}
	return true, nil
}

// Release implements Guard.
func (g *MemoryGuard) Release(_ context.Context, date time.Time) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.sent, GuardKey(date))
	return nil
}
