package usecase

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/pointgate/internal/domain"
)

// Categorizer classifies a window.
type Categorizer interface {
	Categorize(windowTitle, processName string) domain.Category
}

// PointSink receives productive credit.
type PointSink interface {
	AddPoints(amount int, reason domain.Reason) int
}

// TrackerConfig holds tracker tunables.
type TrackerConfig struct {
	CheckInterval             time.Duration // accrual tick
	ProductivePointsPerMinute int
	BlockDurationMinutes      int
}

// trackedActivity is the current activity plus its billing cursors.
type trackedActivity struct {
	domain.Activity
	creditedUntil time.Time // productive minutes credited up to here
	paidUntil     time.Time // entertainment prepaid up to here
}

// ActivityTracker settles time spent in the foreground app against the economy.
// Productive time is credited per whole minute; entertainment is prepaid one
// minute at a time and blocked when the balance runs out.
type ActivityTracker struct {
	config     TrackerConfig
	classifier Categorizer
	points     PointSink
	enforcer   domain.Enforcer
	journal    domain.ActivityJournal
	logger     *zap.Logger
	now        func() time.Time

	mu      sync.Mutex
	current *trackedActivity
}

// NewActivityTracker creates a tracker. journal may be nil.
func NewActivityTracker(
	config TrackerConfig,
	classifier Categorizer,
	points PointSink,
	enforcer domain.Enforcer,
	journal domain.ActivityJournal,
	logger *zap.Logger,
) *ActivityTracker {
	return &ActivityTracker{
		config:     config,
		classifier: classifier,
		points:     points,
		enforcer:   enforcer,
		journal:    journal,
		logger:     logger,
		now:        time.Now,
	}
}

// Current returns the activity being billed, if any.
func (t *ActivityTracker) Current() (domain.Activity, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil {
		return domain.Activity{}, false
	}
	return t.current.Activity, true
}

// Run consumes window changes and accrues on every CheckInterval until ctx is cancelled.
// The open activity is settled and journaled on exit.
func (t *ActivityTracker) Run(ctx context.Context, events <-chan domain.WindowChange) error {
	t.logger.Info("activity tracker started", zap.Duration("check_interval", t.config.CheckInterval))

	ticker := time.NewTicker(t.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.Flush(context.WithoutCancel(ctx))
			t.logger.Info("activity tracker stopping")
			return nil
		case ev := <-events:
			t.Handle(ctx, ev)
		case <-ticker.C:
			t.Accrue(ctx)
		}
	}
}

// Handle applies one window change.
func (t *ActivityTracker) Handle(ctx context.Context, ev domain.WindowChange) {
	now := t.now()
	name := domain.NormalizeApp(ev.ProcessName)

	t.mu.Lock()
	defer t.mu.Unlock()

	if ev.Kind == domain.WindowClosed {
		if t.current != nil && t.current.App == name {
			t.closeLocked(ctx, now)
		}
		return
	}

	category := t.classifier.Categorize(ev.Title, name)

	if t.current != nil && t.current.App == name && t.current.Category == category {
		t.current.Title = ev.Title
		return
	}

	t.closeLocked(ctx, now)

	// The sweep is already killing it; don't bill a relaunch
	if category == domain.CategoryEntertainment && t.enforcer.IsBlocked(name) {
		return
	}

	t.current = &trackedActivity{
		Activity: domain.Activity{
			App:      name,
			Title:    ev.Title,
			Category: category,
			Since:    now,
		},
		creditedUntil: now,
		paidUntil:     now,
	}
	t.logger.Debug("activity started", zap.String("app", name), zap.String("category", string(category)))

	if category == domain.CategoryEntertainment {
		t.chargeLocked(ctx, now)
	}
}

// Accrue bills the current activity up to now.
func (t *ActivityTracker) Accrue(ctx context.Context) {
	now := t.now()
	t.mu.Lock()
	defer t.mu.Unlock()
	t.settleLocked(ctx, now)
}

// Flush settles and journals the current activity.
func (t *ActivityTracker) Flush(ctx context.Context) {
	now := t.now()
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closeLocked(ctx, now)
}

func (t *ActivityTracker) settleLocked(ctx context.Context, now time.Time) {
	if t.current == nil {
		return
	}
	switch t.current.Category {
	case domain.CategoryProductive:
		t.creditLocked(now)
	case domain.CategoryEntertainment:
		t.chargeLocked(ctx, now)
	}
}

// creditLocked credits whole elapsed minutes since the last credit.
func (t *ActivityTracker) creditLocked(now time.Time) {
	minutes := int(now.Sub(t.current.creditedUntil) / time.Minute)
	if minutes <= 0 {
		return
	}
	applied := t.points.AddPoints(minutes*t.config.ProductivePointsPerMinute, domain.ReasonProductive)
	t.current.creditedUntil = t.current.creditedUntil.Add(time.Duration(minutes) * time.Minute)
	t.current.PointsEarned += applied
}

// chargeLocked prepays every minute that has started since paidUntil.
// A denial blocks the app and ends the activity.
func (t *ActivityTracker) chargeLocked(ctx context.Context, now time.Time) {
	for !now.Before(t.current.paidUntil) {
		app := t.current.App
		d := t.enforcer.CheckAppPermission(app, 1)
		if !d.Allowed {
			t.logger.Info("blocking entertainment app, balance exhausted",
				zap.String("app", app),
				zap.Int("cost", d.Cost))
			t.enforcer.Block(app, t.config.BlockDurationMinutes)
			t.recordLocked(ctx, now)
			t.current = nil
			return
		}
		t.current.paidUntil = t.current.paidUntil.Add(time.Minute)
		t.current.PointsSpent += d.Cost
	}
}

func (t *ActivityTracker) closeLocked(ctx context.Context, now time.Time) {
	if t.current == nil {
		return
	}
	if t.current.Category == domain.CategoryProductive {
		t.creditLocked(now)
	}
	t.recordLocked(ctx, now)
	t.current = nil
}

func (t *ActivityTracker) recordLocked(ctx context.Context, now time.Time) {
	if t.journal == nil {
		return
	}
	rec := domain.ActivityRecord{
		App:       t.current.App,
		Title:     t.current.Title,
		Category:  t.current.Category,
		StartedAt: t.current.Since,
		EndedAt:   now,
		Earned:    t.current.PointsEarned,
		Spent:     t.current.PointsSpent,
	}
	if err := t.journal.Record(ctx, rec); err != nil {
		t.logger.Warn("failed to journal activity", zap.String("app", rec.App), zap.Error(err))
	}
}
