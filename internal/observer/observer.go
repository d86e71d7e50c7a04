// Package observer polls visible windows and reports which applications appear,
// retitle or go away.
package observer

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/pointgate/internal/domain"
)

// Config holds observer tunables.
type Config struct {
	Interval    time.Duration // poll period (default 2s)
	CacheTTL    time.Duration // process metadata lifetime
	EventBuffer int           // change channel capacity
}

// WindowInfo is the snapshot entry for one process name.
type WindowInfo struct {
	Title    string
	WindowID uint32
	PID      int
	ExePath  string
}

// Observer is the only writer of the process cache and the window snapshot.
type Observer struct {
	config  Config
	windows domain.WindowSource
	procs   domain.ProcessManager
	logger  *zap.Logger
	now     func() time.Time

	selfPID  int
	selfName string

	cache map[int]domain.ProcessRecord // only touched by Tick

	mu       sync.RWMutex
	snapshot map[string]WindowInfo

	events  chan domain.WindowChange
	dropped atomic.Int64
}

// New creates an observer. selfName is the host binary name and is never reported.
func New(cfg Config, windows domain.WindowSource, procs domain.ProcessManager, selfName string, logger *zap.Logger) *Observer {
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = 1
	}
	return &Observer{
		config:   cfg,
		windows:  windows,
		procs:    procs,
		logger:   logger,
		now:      time.Now,
		selfPID:  procs.GetCurrentPID(),
		selfName: domain.NormalizeApp(selfName),
		cache:    make(map[int]domain.ProcessRecord),
		snapshot: make(map[string]WindowInfo),
		events:   make(chan domain.WindowChange, cfg.EventBuffer),
	}
}

// Events returns the change stream. The channel is never closed.
func (o *Observer) Events() <-chan domain.WindowChange {
	return o.events
}

// Dropped returns how many events were discarded because the channel was full.
func (o *Observer) Dropped() int64 {
	return o.dropped.Load()
}

// Snapshot returns a copy of the current name -> window map. Names whose
// change could not be queued still show their previously reported entry.
func (o *Observer) Snapshot() map[string]WindowInfo {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make(map[string]WindowInfo, len(o.snapshot))
	for k, v := range o.snapshot {
		out[k] = v
	}
	return out
}

// Run polls until ctx is cancelled.
func (o *Observer) Run(ctx context.Context) error {
	o.logger.Info("process observer started", zap.Duration("interval", o.config.Interval))

	o.Tick(ctx)

	ticker := time.NewTicker(o.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			o.logger.Info("process observer stopping")
			return nil
		case <-ticker.C:
			o.Tick(ctx)
		}
	}
}

// Tick performs one poll. Must not be called concurrently with itself.
func (o *Observer) Tick(ctx context.Context) {
	now := o.now()
	o.evict(now)

	wins, err := o.windows.Windows(ctx)
	if err != nil {
		o.logger.Warn("failed to enumerate windows", zap.Error(err))
		return
	}

	next := make(map[string]WindowInfo, len(wins))
	for _, w := range wins {
		if w.Tool || strings.TrimSpace(w.Title) == "" || w.PID <= 0 || w.PID == o.selfPID {
			continue
		}
		rec, ok := o.resolve(w.PID, now)
		if !ok {
			continue
		}
		name := processKey(rec)
		if name == "" || name == o.selfName {
			continue
		}
		// Several windows per process collapse to the last one seen
		next[name] = WindowInfo{Title: w.Title, WindowID: w.ID, PID: w.PID, ExePath: rec.ExePath}
	}

	o.mu.RLock()
	prev := o.snapshot
	o.mu.RUnlock()

	// A dropped change keeps that name's previous entry so the next tick diffs it again
	committed := make(map[string]WindowInfo, len(next))
	for name, info := range next {
		committed[name] = info
	}
	for name, info := range next {
		old, existed := prev[name]
		switch {
		case !existed:
			if !o.emit(change(domain.WindowOpened, name, info, now)) {
				delete(committed, name)
			}
		case old.Title != info.Title:
			if !o.emit(change(domain.WindowChanged, name, info, now)) {
				committed[name] = old
			}
		}
	}
	for name, info := range prev {
		if _, still := next[name]; !still {
			if !o.emit(change(domain.WindowClosed, name, info, now)) {
				committed[name] = info
			}
		}
	}

	o.mu.Lock()
	o.snapshot = committed
	o.mu.Unlock()
}

func (o *Observer) evict(now time.Time) {
	for pid, rec := range o.cache {
		if now.Sub(rec.ObservedAt) > o.config.CacheTTL {
			delete(o.cache, pid)
		}
	}
}

// resolve returns cached metadata for pid, inspecting the process on a miss.
func (o *Observer) resolve(pid int, now time.Time) (domain.ProcessRecord, bool) {
	if rec, ok := o.cache[pid]; ok {
		return rec, true
	}
	rec, err := o.procs.Inspect(pid)
	if err != nil {
		o.logger.Debug("skipping window, process not inspectable", zap.Int("pid", pid), zap.Error(err))
		return domain.ProcessRecord{}, false
	}
	rec.PID = pid
	rec.ObservedAt = now
	o.cache[pid] = rec
	return rec, true
}

// emit reports whether ev was queued.
func (o *Observer) emit(ev domain.WindowChange) bool {
	select {
	case o.events <- ev:
		return true
	default:
		n := o.dropped.Add(1)
		o.logger.Warn("event channel full, dropping window change",
			zap.String("app", ev.ProcessName),
			zap.String("kind", string(ev.Kind)),
			zap.Int64("dropped_total", n))
		return false
	}
}

func change(kind domain.WindowChangeKind, name string, info WindowInfo, at time.Time) domain.WindowChange {
	return domain.WindowChange{
		Kind:        kind,
		Title:       info.Title,
		ProcessName: name,
		ExePath:     info.ExePath,
		PID:         info.PID,
		WindowID:    info.WindowID,
		At:          at,
	}
}

// processKey prefers the process name and falls back to the executable's base name.
func processKey(rec domain.ProcessRecord) string {
	if n := domain.NormalizeApp(rec.Name); n != "" {
		return n
	}
	if rec.ExePath != "" {
		return domain.NormalizeApp(filepath.Base(rec.ExePath))
	}
	return ""
}
