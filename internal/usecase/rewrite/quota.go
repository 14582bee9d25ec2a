package rewrite

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/fallsearch/internal/domain"
)

// QuotaAction defines behavior once a rewrite quota is used up.
type QuotaAction string

const (
	// QuotaActionWarn logs and lets the call through.
	QuotaActionWarn QuotaAction = "warn"
	// QuotaActionReject fails the call with domain.ErrQuotaExceeded.
	QuotaActionReject QuotaAction = "reject"
)

const (
	dailyCounterTTL   = 48 * time.Hour
	monthlyCounterTTL = 62 * 24 * time.Hour
	persistTimeout    = 2 * time.Second
)

// CounterStore persists quota counters. Add must create missing keys.
type CounterStore interface {
	Add(ctx context.Context, key string, n int64, ttl time.Duration) error
	Load(ctx context.Context, key string) (int64, error)
}

// QuotaLimits caps provider calls per UTC day and month. Zero means unlimited.
type QuotaLimits struct {
	Daily   int64
	Monthly int64
	Action  QuotaAction
}

// Quota counts rewrite provider calls in memory with optional write-behind persistence.
type Quota struct {
	mu          sync.Mutex
	limits      QuotaLimits
	provider    string
	dailyUsed   int64
	monthlyUsed int64
	day         time.Time
	month       time.Time
	store       CounterStore
	now         func() time.Time
	logger      *zap.Logger
}

// NewQuota creates a quota for provider. An empty action means reject.
func NewQuota(provider string, limits QuotaLimits, logger *zap.Logger) *Quota {
	if limits.Action == "" {
		limits.Action = QuotaActionReject
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	q := &Quota{
		limits:   limits,
		provider: provider,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   logger,
	}
	q.day, q.month = periods(q.now())
	return q
}

// WithStore attaches persistence and loads the current period's counters.
// A load failure is logged and counting starts from zero.
func (q *Quota) WithStore(ctx context.Context, store CounterStore) *Quota {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.store = store
	now := q.now()
	if v, err := store.Load(ctx, q.dailyKey(now)); err == nil {
		q.dailyUsed = v
	} else {
		q.logger.Warn("Failed to load daily rewrite quota", zap.Error(err))
	}
	if v, err := store.Load(ctx, q.monthlyKey(now)); err == nil {
		q.monthlyUsed = v
	} else {
		q.logger.Warn("Failed to load monthly rewrite quota", zap.Error(err))
	}
	return q
}

func (q *Quota) dailyKey(t time.Time) string {
	return fmt.Sprintf("quota:%s:daily:%s", q.provider, t.Format("2006-01-02"))
}

func (q *Quota) monthlyKey(t time.Time) string {
	return fmt.Sprintf("quota:%s:monthly:%s", q.provider, t.Format("2006-01"))
}

// Allow reports whether another provider call fits in the quota.
func (q *Quota) Allow() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.roll()

	daily := q.limits.Daily > 0 && q.dailyUsed >= q.limits.Daily
	monthly := q.limits.Monthly > 0 && q.monthlyUsed >= q.limits.Monthly
	if !daily && !monthly {
		return nil
	}
	if q.limits.Action == QuotaActionReject {
		return domain.ErrQuotaExceeded
	}
	q.logger.Warn("Rewrite quota exceeded",
		zap.String("provider", q.provider),
		zap.Int64("daily_used", q.dailyUsed),
		zap.Int64("daily_limit", q.limits.Daily),
		zap.Int64("monthly_used", q.monthlyUsed),
		zap.Int64("monthly_limit", q.limits.Monthly),
	)
	return nil
}

// Record counts one provider call and persists it if a store is attached.
func (q *Quota) Record() {
	q.mu.Lock()
	q.roll()
	q.dailyUsed++
	q.monthlyUsed++
	store := q.store
	now := q.now()
	q.mu.Unlock()

	if store == nil {
		return
	}

	// Detached from the caller so a cancelled search still gets counted.
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := store.Add(ctx, q.dailyKey(now), 1, dailyCounterTTL); err != nil {
		q.logger.Warn("Failed to persist daily rewrite quota", zap.Error(err))
	}
	if err := store.Add(ctx, q.monthlyKey(now), 1, monthlyCounterTTL); err != nil {
		q.logger.Warn("Failed to persist monthly rewrite quota", zap.Error(err))
	}
}

// Remaining returns calls left today and this month; -1 means unlimited.
func (q *Quota) Remaining() (daily, monthly int64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.roll()
	return remaining(q.limits.Daily, q.dailyUsed), remaining(q.limits.Monthly, q.monthlyUsed)
}

func remaining(limit, used int64) int64 {
	if limit == 0 {
		return -1
	}
	return max(limit-used, 0)
}

// roll zeroes counters when the day or month changes. Caller holds mu.
func (q *Quota) roll() {
	day, month := periods(q.now())
	if day.After(q.day) {
		q.dailyUsed = 0
		q.day = day
	}
	if month.After(q.month) {
		q.monthlyUsed = 0
		q.month = month
	}
}

func periods(t time.Time) (day, month time.Time) {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC),
		time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// Metered gates a Rewriter behind a Quota. Every call that reaches the
// provider is counted, successful or not.
type Metered struct {
	inner Rewriter
	quota *Quota
}

// NewMetered wraps inner with quota.
func NewMetered(inner Rewriter, quota *Quota) *Metered {
	return &Metered{inner: inner, quota: quota}
}

// Rewrite implements Rewriter.
func (m *Metered) Rewrite(ctx context.Context, query string) (string, error) {
	if err := m.quota.Allow(); err != nil {
		return "", fmt.Errorf("rewrite: %w", err)
	}
	out, err := m.inner.Rewrite(ctx, query)
	m.quota.Record()
	return out, err
}
