// Package usecase contains application business logic.
package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/pointgate/internal/domain"
)

// EnforcerConfig holds enforcer tunables.
type EnforcerConfig struct {
	Interval         time.Duration // sweep period (default 1s)
	TerminateTimeout time.Duration // grace before kill escalation
	InstalledAppsTTL time.Duration // InstalledApps cache lifetime
	Grace            time.Duration // free access after a passed challenge
}

// EnforcerImpl implements domain.Enforcer.
type EnforcerImpl struct {
	config         EnforcerConfig
	processManager domain.ProcessManager
	wallet         domain.Wallet
	gate           domain.ChallengeGate
	discoverer     domain.AppDiscoverer
	logger         *zap.Logger
	now            func() time.Time

	mu     sync.Mutex
	blocks map[string]domain.BlockEntry
	grants map[string]time.Time

	appsMu      sync.Mutex
	apps        []string
	appsFetched time.Time
}

// NewEnforcer creates a new block enforcer. gate and discoverer may be nil.
func NewEnforcer(
	config EnforcerConfig,
	pm domain.ProcessManager,
	wallet domain.Wallet,
	gate domain.ChallengeGate,
	discoverer domain.AppDiscoverer,
	logger *zap.Logger,
) *EnforcerImpl {
	return &EnforcerImpl{
		config:         config,
		processManager: pm,
		wallet:         wallet,
		gate:           gate,
		discoverer:     discoverer,
		logger:         logger,
		now:            time.Now,
		blocks:         make(map[string]domain.BlockEntry),
		grants:         make(map[string]time.Time),
	}
}

// Block restricts app. A repeated block only refreshes the expiry.
// A new block terminates matching processes and presents the challenge.
func (e *EnforcerImpl) Block(app string, minutes int) bool {
	name := domain.NormalizeApp(app)
	if name == "" {
		return false
	}

	now := e.now()
	entry := domain.BlockEntry{App: name, Indefinite: minutes <= 0}
	if !entry.Indefinite {
		entry.Expiry = now.Add(time.Duration(minutes) * time.Minute)
	}

	e.mu.Lock()
	e.pruneLocked(now)
	if until, ok := e.grants[name]; ok && now.Before(until) {
		e.mu.Unlock()
		e.logger.Debug("block skipped, app has a challenge grace period", zap.String("app", name))
		return false
	}
	_, existed := e.blocks[name]
	e.blocks[name] = entry
	e.mu.Unlock()

	if existed {
		e.logger.Debug("block refreshed", zap.String("app", name), zap.Int("minutes", minutes))
		return false
	}

	e.logger.Info("app blocked", zap.String("app", name), zap.Int("minutes", minutes))

	pids, err := e.processManager.FindByName(name)
	if err != nil {
		e.logger.Warn("failed to find processes", zap.String("app", name), zap.Error(err))
	}
	for _, pid := range pids {
		e.terminate(pid, name)
	}

	e.presentGate(name)
	return true
}

// Unblock lifts a block early.
func (e *EnforcerImpl) Unblock(app string) bool {
	name := domain.NormalizeApp(app)

	e.mu.Lock()
	e.pruneLocked(e.now())
	_, ok := e.blocks[name]
	delete(e.blocks, name)
	e.mu.Unlock()

	if ok {
		e.logger.Info("app unblocked", zap.String("app", name))
	}
	return ok
}

// UnblockAll clears every block. Called on shutdown.
func (e *EnforcerImpl) UnblockAll() int {
	e.mu.Lock()
	n := len(e.blocks)
	e.blocks = make(map[string]domain.BlockEntry)
	e.mu.Unlock()

	if n > 0 {
		e.logger.Info("all apps unblocked", zap.Int("count", n))
	}
	return n
}

func (e *EnforcerImpl) IsBlocked(app string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pruneLocked(e.now())
	_, ok := e.blocks[domain.NormalizeApp(app)]
	return ok
}

// Blocked returns unexpired blocks sorted by app name.
func (e *EnforcerImpl) Blocked() []domain.BlockEntry {
	e.mu.Lock()
	e.pruneLocked(e.now())
	out := make([]domain.BlockEntry, 0, len(e.blocks))
	for _, b := range e.blocks {
		out = append(out, b)
	}
	e.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].App < out[j].App })
	return out
}

// Grant lets app run for free for d, typically after a passed challenge.
func (e *EnforcerImpl) Grant(app string, d time.Duration) {
	if d <= 0 {
		return
	}
	e.mu.Lock()
	e.grants[domain.NormalizeApp(app)] = e.now().Add(d)
	e.mu.Unlock()
}

// CheckAppPermission buys minutes of entertainment for app. An active
// grace period allows it at no cost.
func (e *EnforcerImpl) CheckAppPermission(app string, minutes int) domain.Decision {
	name := domain.NormalizeApp(app)

	e.mu.Lock()
	until, granted := e.grants[name]
	granted = granted && e.now().Before(until)
	e.mu.Unlock()

	if granted {
		return domain.Decision{Allowed: true, Granted: true}
	}

	cost, ok := e.wallet.Purchase(minutes)
	if !ok {
		e.logger.Info("insufficient points for entertainment",
			zap.String("app", name),
			zap.Int("minutes", minutes),
			zap.Int("cost", cost))
	}
	return domain.Decision{Allowed: ok, Cost: cost}
}

// Sweep prunes expired blocks and terminates every running blocked process.
func (e *EnforcerImpl) Sweep() domain.EnforcementResult {
	start := e.now()
	result := domain.EnforcementResult{
		Pruned:     make([]string, 0),
		Terminated: make(map[int]domain.TerminateResult),
		Apps:       make(map[int]string),
		Errors:     make([]error, 0),
		ExecutedAt: start,
	}

	e.mu.Lock()
	result.Pruned = append(result.Pruned, e.pruneLocked(start)...)
	blocked := make(map[string]struct{}, len(e.blocks))
	for name := range e.blocks {
		blocked[name] = struct{}{}
	}
	e.mu.Unlock()

	if len(blocked) == 0 {
		return result
	}

	procs, err := e.processManager.List()
	if err != nil {
		e.logger.Warn("failed to list processes", zap.Error(err))
		result.Errors = append(result.Errors, err)
		return result
	}

	self := e.processManager.GetCurrentPID()
	var killedApp string
	for _, p := range procs {
		if p.PID == self {
			continue
		}
		name := domain.NormalizeApp(p.Name)
		if _, ok := blocked[name]; !ok {
			continue
		}
		res := e.terminate(p.PID, name)
		result.Terminated[p.PID] = res
		result.Apps[p.PID] = name
		if res == domain.Terminated && killedApp == "" {
			killedApp = name
		}
	}

	if killedApp != "" {
		e.presentGate(killedApp)
	}

	result.DurationMs = e.now().Sub(start).Milliseconds()
	return result
}

// Run sweeps on the configured interval until ctx is cancelled.
func (e *EnforcerImpl) Run(ctx context.Context) error {
	e.logger.Info("enforcer started", zap.Duration("interval", e.config.Interval))

	ticker := time.NewTicker(e.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("enforcer stopping")
			return nil
		case <-ticker.C:
			res := e.Sweep()
			if len(res.Terminated) > 0 {
				e.logger.Info("sweep completed",
					zap.Int("processes", len(res.Terminated)),
					zap.Strings("pruned", res.Pruned))
			}
		}
	}
}

// InstalledApps returns discovered app names plus running process names,
// served from cache within the TTL.
func (e *EnforcerImpl) InstalledApps(ctx context.Context) []string {
	e.appsMu.Lock()
	defer e.appsMu.Unlock()

	now := e.now()
	if e.apps != nil && now.Sub(e.appsFetched) < e.config.InstalledAppsTTL {
		return append([]string(nil), e.apps...)
	}

	seen := make(map[string]struct{})
	if e.discoverer != nil {
		names, err := e.discoverer.Discover(ctx)
		if err != nil {
			e.logger.Warn("app discovery failed", zap.Error(err))
		}
		for _, n := range names {
			seen[domain.NormalizeApp(n)] = struct{}{}
		}
	}
	if procs, err := e.processManager.List(); err != nil {
		e.logger.Warn("failed to list processes", zap.Error(err))
	} else {
		for _, p := range procs {
			seen[domain.NormalizeApp(p.Name)] = struct{}{}
		}
	}
	delete(seen, "")

	apps := make([]string, 0, len(seen))
	for n := range seen {
		apps = append(apps, n)
	}
	sort.Strings(apps)

	e.apps = apps
	e.appsFetched = now
	return append([]string(nil), apps...)
}

// pruneLocked drops expired blocks and grants, returning the pruned app names.
func (e *EnforcerImpl) pruneLocked(now time.Time) []string {
	var pruned []string
	for name, b := range e.blocks {
		if b.Expired(now) {
			delete(e.blocks, name)
			pruned = append(pruned, name)
		}
	}
	for name, until := range e.grants {
		if !now.Before(until) {
			delete(e.grants, name)
		}
	}
	if len(pruned) > 0 {
		sort.Strings(pruned)
		e.logger.Info("block expired", zap.Strings("apps", pruned))
	}
	return pruned
}

func (e *EnforcerImpl) terminate(pid int, app string) domain.TerminateResult {
	res := e.processManager.Terminate(pid, e.config.TerminateTimeout)
	switch res {
	case domain.Terminated:
		e.logger.Info("terminated blocked process", zap.String("app", app), zap.Int("pid", pid))
	case domain.NotFound:
		e.logger.Debug("blocked process already gone", zap.String("app", app), zap.Int("pid", pid))
	default:
		e.logger.Warn("failed to terminate blocked process",
			zap.String("app", app),
			zap.Int("pid", pid),
			zap.String("result", string(res)))
	}
	return res
}

// presentGate shows the challenge unless one is already on screen.
// Passing it unblocks app and grants the grace period.
func (e *EnforcerImpl) presentGate(app string) {
	if e.gate == nil || e.gate.Visible() {
		return
	}
	e.gate.Present(app, func(name string) {
		e.Unblock(name)
		e.Grant(name, e.config.Grace)
		e.logger.Info("challenge passed", zap.String("app", name), zap.Duration("grace", e.config.Grace))
	})
}

// Ensure EnforcerImpl implements domain.Enforcer.
var _ domain.Enforcer = (*EnforcerImpl)(nil)
