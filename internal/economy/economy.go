// Package economy owns the point balance, the productivity streak and daily statistics.
package economy

import (
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/pointgate/internal/config"
	"github.com/eliteGoblin/focusd/pointgate/internal/domain"
)

// DayLayout keys DailyStats by local calendar day.
const DayLayout = "2006-01-02"

// Economy is the single owner of the PointLedger. Every mutation runs under mu
// and persists a full snapshot before returning.
type Economy struct {
	mu     sync.Mutex
	ledger domain.PointLedger
	cfg    config.Config
	store  domain.LedgerStore
	logger *zap.Logger
	now    func() time.Time
}

// Option configures an Economy.
type Option func(*Economy)

// WithClock overrides time.Now (for testing).
func WithClock(now func() time.Time) Option {
	return func(e *Economy) { e.now = now }
}

// New loads the ledger from store. A read failure starts from an empty ledger.
func New(cfg config.Config, store domain.LedgerStore, logger *zap.Logger, opts ...Option) *Economy {
	e := &Economy{
		cfg:    cfg,
		store:  store,
		logger: logger,
		now:    time.Now,
		ledger: domain.PointLedger{DailyStats: make(map[string]domain.DailyStats)},
	}
	for _, opt := range opts {
		opt(e)
	}

	loaded, err := store.Load()
	switch {
	case err != nil:
		logger.Warn("failed to load ledger, starting empty", zap.Error(err))
	case loaded != nil:
		e.ledger = loaded.Clone()
		if e.ledger.Points < 0 {
			e.ledger.Points = 0
		}
		if e.ledger.Streak < 0 {
			e.ledger.Streak = 0
		}
	}
	return e
}

// AddPoints credits productive points (with streak bonus) or debits entertainment points.
// Returns the amount actually applied to the balance.
func (e *Economy) AddPoints(amount int, reason domain.Reason) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	applied := e.applyLocked(amount, reason)
	e.persistLocked()
	return applied
}

// SpendPoints deducts amount if the balance covers it. Unchanged ledger on false.
func (e *Economy) SpendPoints(amount int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.spendLocked(amount)
}

// CanAfford reports whether minutes of entertainment are covered by the balance.
func (e *Economy) CanAfford(minutes int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.Points >= e.costLocked(minutes)
}

// Purchase is CanAfford followed by SpendPoints inside one critical section.
func (e *Economy) Purchase(minutes int) (int, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	cost := e.costLocked(minutes)
	if e.ledger.Points < cost {
		return cost, false
	}
	return cost, e.spendLocked(cost)
}

// Stats is a read-only view of the ledger.
type Stats struct {
	Points     int
	Streak     int
	Multiplier float64
	Today      domain.DailyStats
	Ledger     domain.PointLedger
}

// Snapshot returns a copy of the ledger plus derived values.
func (e *Economy) Snapshot() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Stats{
		Points:     e.ledger.Points,
		Streak:     e.ledger.Streak,
		Multiplier: e.multiplierLocked(e.ledger.Streak),
		Today:      e.ledger.DailyStats[e.now().Format(DayLayout)],
		Ledger:     e.ledger.Clone(),
	}
}

func (e *Economy) applyLocked(amount int, reason domain.Reason) int {
	now := e.now()
	day := e.ledger.DailyStats[now.Format(DayLayout)]

	switch reason {
	case domain.ReasonProductive:
		window := 2 * e.cfg.CheckInterval()
		if !e.ledger.LastProductive.IsZero() && now.Sub(e.ledger.LastProductive) <= window {
			e.ledger.Streak++
		} else {
			e.ledger.Streak = 1
		}
		e.ledger.LastProductive = now

		raw := amount
		amount = int(math.Floor(float64(amount) * e.multiplierLocked(e.ledger.Streak)))
		if amount < 0 {
			amount = 0
		}
		e.ledger.Points += amount
		day.PointsEarned += amount
		day.ProductiveMinutes += perMinute(raw, e.cfg.ProductivePointsPerMinute)

	case domain.ReasonEntertainment:
		if amount < 0 {
			amount = -amount
		}
		// Free entertainment is not a debit and leaves the streak alone
		if amount == 0 {
			return 0
		}
		if amount > e.ledger.Points {
			amount = e.ledger.Points
		}
		e.ledger.Points -= amount
		e.ledger.Streak = 0
		day.PointsSpent += amount
		day.EntertainmentMinutes += perMinute(amount, e.cfg.EntertainmentCostPerMinute)

	default:
		return 0
	}

	if e.ledger.Points < 0 {
		e.ledger.Points = 0
	}
	if e.ledger.DailyStats == nil {
		e.ledger.DailyStats = make(map[string]domain.DailyStats)
	}
	e.ledger.DailyStats[now.Format(DayLayout)] = day
	e.ledger.LastUpdated = now
	return amount
}

func (e *Economy) spendLocked(amount int) bool {
	if amount < 0 || e.ledger.Points < amount {
		return false
	}
	if amount == 0 {
		return true
	}
	e.applyLocked(amount, domain.ReasonEntertainment)
	e.persistLocked()
	return true
}

func (e *Economy) costLocked(minutes int) int {
	if minutes < 0 {
		minutes = 0
	}
	return minutes * e.cfg.EntertainmentCostPerMinute
}

func (e *Economy) multiplierLocked(streak int) float64 {
	return math.Min(1+float64(streak)*e.cfg.StreakBonusMultiplier, e.cfg.MaxStreakBonus)
}

// persistLocked saves the ledger. On failure the in-memory state is kept;
// the next successful save catches up.
func (e *Economy) persistLocked() {
	if err := e.store.Save(e.ledger.Clone()); err != nil {
		e.logger.Warn("failed to save ledger", zap.Error(err))
	}
}

func perMinute(points, rate int) int {
	if rate <= 0 {
		return 0
	}
	return points / rate
}

// Ensure Economy satisfies the enforcer's wallet.
var _ domain.Wallet = (*Economy)(nil)
