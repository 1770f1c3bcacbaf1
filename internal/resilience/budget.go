package resilience

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// BudgetExhaustedError reports that a source's daily request budget has
// been used up for the current UTC day.
type BudgetExhaustedError struct {
	Source string
	Used   int64
	Limit  int64
	ResetAt time.Time
}

func (e *BudgetExhaustedError) Error() string {
	return fmt.Sprintf("daily budget exhausted for %s: %d/%d requests used, resets at %s",
		e.Source, e.Used, e.Limit, e.ResetAt.Format("15:04 UTC"))
}

// BudgetTracker enforces a UTC-day request budget for one source. A limit
// of 0 means unlimited; BudgetTracker always allows requests for such a
// source (used for the synthetic/mock source, which never hits a real
// network quota).
type BudgetTracker struct {
	limit     int64
	used      int64
	resetHour int

	mu        sync.Mutex
	lastReset time.Time
}

// NewBudgetTracker builds a tracker resetting at resetHour UTC (0-23).
func NewBudgetTracker(limit int64, resetHour int) *BudgetTracker {
	if resetHour < 0 || resetHour > 23 {
		resetHour = 0
	}
	now := time.Now().UTC()
	return &BudgetTracker{
		limit:     limit,
		resetHour: resetHour,
		lastReset: lastResetBefore(now, resetHour),
	}
}

func lastResetBefore(now time.Time, resetHour int) time.Time {
	today := time.Date(now.Year(), now.Month(), now.Day(), resetHour, 0, 0, 0, time.UTC)
	if now.Hour() >= resetHour {
		return today
	}
	return today.AddDate(0, 0, -1)
}

func (t *BudgetTracker) resetIfDue() {
	now := time.Now().UTC()
	t.mu.Lock()
	defer t.mu.Unlock()
	if now.After(t.lastReset.Add(24 * time.Hour)) {
		atomic.StoreInt64(&t.used, 0)
		t.lastReset = lastResetBefore(now, t.resetHour)
	}
}

func (t *BudgetTracker) nextReset() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastReset.Add(24 * time.Hour)
}

// Consume records one request against the budget, returning
// *BudgetExhaustedError if the limit has already been reached. The
// rejected attempt is not counted.
func (t *BudgetTracker) Consume(source string) error {
	if t.limit <= 0 {
		return nil
	}
	t.resetIfDue()

	newUsed := atomic.AddInt64(&t.used, 1)
	if newUsed > t.limit {
		atomic.AddInt64(&t.used, -1)
		return &BudgetExhaustedError{Source: source, Used: newUsed - 1, Limit: t.limit, ResetAt: t.nextReset()}
	}
	return nil
}

// Used reports the current day's consumed request count.
func (t *BudgetTracker) Used() int64 {
	t.resetIfDue()
	return atomic.LoadInt64(&t.used)
}

// BudgetManager holds one BudgetTracker per source.
type BudgetManager struct {
	mu       sync.RWMutex
	trackers map[string]*BudgetTracker
}

// NewBudgetManager builds an empty manager.
func NewBudgetManager() *BudgetManager {
	return &BudgetManager{trackers: make(map[string]*BudgetTracker)}
}

// AddSource registers a tracker for a source.
func (m *BudgetManager) AddSource(name string, limit int64, resetHour int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trackers[name] = NewBudgetTracker(limit, resetHour)
}

// Consume records one request against source's budget. A source with no
// registered tracker is unrestricted.
func (m *BudgetManager) Consume(source string) error {
	m.mu.RLock()
	t, ok := m.trackers[source]
	m.mu.RUnlock()
	if !ok {
		return nil
	}
	return t.Consume(source)
}
