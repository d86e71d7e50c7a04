package usecase

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/pointgate/internal/domain"
)

// mockProcessManager implements domain.ProcessManager for testing
type mockProcessManager struct {
	mu          sync.Mutex
	procs       []domain.RunningProcess
	listErr     error
	results     map[int]domain.TerminateResult // default Terminated
	terminated  []int
	keepRunning bool // terminated processes stay in the list
	listCalls   int
}

func (m *mockProcessManager) List() ([]domain.RunningProcess, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	if m.listErr != nil {
		return nil, m.listErr
	}
	return append([]domain.RunningProcess(nil), m.procs...), nil
}

func (m *mockProcessManager) FindByName(name string) ([]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var pids []int
	for _, p := range m.procs {
		if domain.NormalizeApp(p.Name) == domain.NormalizeApp(name) {
			pids = append(pids, p.PID)
		}
	}
	return pids, nil
}

func (m *mockProcessManager) Inspect(pid int) (domain.ProcessRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.procs {
		if p.PID == pid {
			return domain.ProcessRecord{PID: pid, Name: p.Name}, nil
		}
	}
	return domain.ProcessRecord{}, errors.New("no such process")
}

func (m *mockProcessManager) Terminate(pid int, timeout time.Duration) domain.TerminateResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.terminated = append(m.terminated, pid)
	res := domain.Terminated
	if r, ok := m.results[pid]; ok {
		res = r
	}
	if res == domain.Terminated && !m.keepRunning {
		kept := m.procs[:0]
		for _, p := range m.procs {
			if p.PID != pid {
				kept = append(kept, p)
			}
		}
		m.procs = kept
	}
	return res
}

func (m *mockProcessManager) IsRunning(pid int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.procs {
		if p.PID == pid {
			return true
		}
	}
	return false
}

func (m *mockProcessManager) GetCurrentPID() int {
	return os.Getpid()
}

func (m *mockProcessManager) spawn(pid int, name string) {
	m.mu.Lock()
	m.procs = append(m.procs, domain.RunningProcess{PID: pid, Name: name})
	m.mu.Unlock()
}

func (m *mockProcessManager) terminatedPIDs() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.terminated...)
}

// mockWallet implements domain.Wallet with a plain balance
type mockWallet struct {
	mu      sync.Mutex
	balance int
	rate    int
}

func (w *mockWallet) Purchase(minutes int) (int, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	cost := minutes * w.rate
	if w.balance < cost {
		return cost, false
	}
	w.balance -= cost
	return cost, true
}

// mockGate implements domain.ChallengeGate and records presentations
type mockGate struct {
	mu        sync.Mutex
	visible   bool
	presented []string
	onSuccess func(string)
}

func (g *mockGate) Present(app string, onSuccess func(string)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.presented = append(g.presented, app)
	g.onSuccess = onSuccess
	g.visible = true
}

func (g *mockGate) Visible() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.visible
}

func (g *mockGate) pass(app string) {
	g.mu.Lock()
	cb := g.onSuccess
	g.visible = false
	g.mu.Unlock()
	cb(app)
}

func (g *mockGate) count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.presented)
}

// mockDiscoverer implements domain.AppDiscoverer
type mockDiscoverer struct {
	names []string
	calls int
}

func (d *mockDiscoverer) Discover(ctx context.Context) ([]string, error) {
	d.calls++
	return d.names, nil
}

type enforcerFixture struct {
	enforcer *EnforcerImpl
	pm       *mockProcessManager
	wallet   *mockWallet
	gate     *mockGate
	apps     *mockDiscoverer
	now      *time.Time
}

func newEnforcerFixture(t *testing.T) *enforcerFixture {
	t.Helper()
	f := &enforcerFixture{
		pm:     &mockProcessManager{results: map[int]domain.TerminateResult{}},
		wallet: &mockWallet{rate: 2},
		gate:   &mockGate{},
		apps:   &mockDiscoverer{},
	}
	cfg := EnforcerConfig{
		Interval:         10 * time.Millisecond,
		TerminateTimeout: 10 * time.Millisecond,
		InstalledAppsTTL: 5 * time.Minute,
		Grace:            5 * time.Minute,
	}
	f.enforcer = NewEnforcer(cfg, f.pm, f.wallet, f.gate, f.apps, zap.NewNop())
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	f.now = &now
	f.enforcer.now = func() time.Time { return *f.now }
	return f
}

func (f *enforcerFixture) advance(d time.Duration) { *f.now = f.now.Add(d) }

func TestBlock_NewBlockTerminatesAndPresents(t *testing.T) {
	f := newEnforcerFixture(t)
	f.pm.spawn(4242, "Game.exe")

	assert.True(t, f.enforcer.Block("game.exe", 30))

	assert.True(t, f.enforcer.IsBlocked("GAME.EXE"))
	assert.Equal(t, []int{4242}, f.pm.terminatedPIDs())
	assert.Equal(t, []string{"game.exe"}, f.gate.presented)
}

func TestBlock_RefreshOnly(t *testing.T) {
	f := newEnforcerFixture(t)

	require.True(t, f.enforcer.Block("steam", 30))
	f.advance(10 * time.Minute)
	assert.False(t, f.enforcer.Block("steam", 30))

	blocked := f.enforcer.Blocked()
	require.Len(t, blocked, 1)
	assert.Equal(t, 30*time.Minute, blocked[0].Remaining(*f.now))
	assert.Equal(t, 1, f.gate.count(), "refresh must not present again")
}

func TestBlock_RecordedDespiteFailedTermination(t *testing.T) {
	f := newEnforcerFixture(t)
	f.pm.spawn(1, "steam")
	f.pm.results[1] = domain.PermissionDenied

	assert.True(t, f.enforcer.Block("steam", 30))
	assert.True(t, f.enforcer.IsBlocked("steam"))
}

func TestBlock_GateAlreadyVisible(t *testing.T) {
	f := newEnforcerFixture(t)
	f.gate.visible = true

	f.enforcer.Block("steam", 30)

	assert.Equal(t, 0, f.gate.count())
}

func TestBlock_Indefinite(t *testing.T) {
	f := newEnforcerFixture(t)

	f.enforcer.Block("steam", 0)
	f.advance(1000 * time.Hour)

	assert.True(t, f.enforcer.IsBlocked("steam"))
	assert.True(t, f.enforcer.Blocked()[0].Indefinite)
}

func TestBlock_EmptyName(t *testing.T) {
	f := newEnforcerFixture(t)
	assert.False(t, f.enforcer.Block("  ", 30))
	assert.Empty(t, f.enforcer.Blocked())
}

func TestExpiry_PrunedBeforeRead(t *testing.T) {
	f := newEnforcerFixture(t)

	f.enforcer.Block("steam", 1)
	f.advance(time.Minute)

	assert.False(t, f.enforcer.IsBlocked("steam"))
	assert.Empty(t, f.enforcer.Blocked())
}

func TestUnblock(t *testing.T) {
	f := newEnforcerFixture(t)
	f.enforcer.Block("steam", 30)
	f.enforcer.Block("discord", 30)

	assert.True(t, f.enforcer.Unblock("Steam"))
	assert.False(t, f.enforcer.Unblock("steam"))
	assert.Equal(t, 1, f.enforcer.UnblockAll())
	assert.Empty(t, f.enforcer.Blocked())
}

func TestSweep_TerminatesRelaunchedApp(t *testing.T) {
	f := newEnforcerFixture(t)
	f.enforcer.Block("game.exe", 30)
	f.gate.visible = false
	f.gate.presented = nil

	f.pm.spawn(5000, "game.exe")
	f.pm.spawn(5001, "code")

	res := f.enforcer.Sweep()

	assert.Equal(t, map[int]domain.TerminateResult{5000: domain.Terminated}, res.Terminated)
	assert.Equal(t, "game.exe", res.Apps[5000])
	assert.Equal(t, []string{"game.exe"}, f.gate.presented, "kill should re-present the gate")
}

func TestSweep_StillRunningRetriedNextTick(t *testing.T) {
	f := newEnforcerFixture(t)
	f.enforcer.Block("game.exe", 30)
	f.pm.spawn(5000, "game.exe")
	f.pm.results[5000] = domain.StillRunning

	first := f.enforcer.Sweep()
	second := f.enforcer.Sweep()

	assert.Equal(t, domain.StillRunning, first.Terminated[5000])
	assert.Equal(t, domain.StillRunning, second.Terminated[5000])
	assert.Len(t, f.pm.terminatedPIDs(), 2)
}

func TestSweep_PrunesExpired(t *testing.T) {
	f := newEnforcerFixture(t)
	f.enforcer.Block("steam", 1)
	f.pm.spawn(7, "steam")
	f.advance(2 * time.Minute)

	res := f.enforcer.Sweep()

	assert.Equal(t, []string{"steam"}, res.Pruned)
	assert.Empty(t, res.Terminated)
}

func TestSweep_NoBlocksSkipsListing(t *testing.T) {
	f := newEnforcerFixture(t)

	f.enforcer.Sweep()

	assert.Equal(t, 0, f.pm.listCalls)
}

func TestSweep_ListError(t *testing.T) {
	f := newEnforcerFixture(t)
	f.enforcer.Block("steam", 30)
	f.pm.listErr = errors.New("proc unavailable")

	res := f.enforcer.Sweep()

	require.Len(t, res.Errors, 1)
	assert.True(t, f.enforcer.IsBlocked("steam"))
}

func TestSweep_SkipsSelf(t *testing.T) {
	f := newEnforcerFixture(t)
	f.enforcer.Block("pointgate", 30)
	f.pm.spawn(os.Getpid(), "pointgate")

	res := f.enforcer.Sweep()

	assert.Empty(t, res.Terminated)
}

func TestCheckAppPermission(t *testing.T) {
	f := newEnforcerFixture(t)
	f.wallet.balance = 10

	d := f.enforcer.CheckAppPermission("game.exe", 5)
	assert.True(t, d.Allowed)
	assert.Equal(t, 10, d.Cost)
	assert.Equal(t, 0, f.wallet.balance)

	d = f.enforcer.CheckAppPermission("game.exe", 1)
	assert.False(t, d.Allowed)
	assert.Equal(t, 2, d.Cost)
}

func TestChallengeSuccess_UnblocksAndGrants(t *testing.T) {
	f := newEnforcerFixture(t)
	f.enforcer.Block("game.exe", 30)
	require.True(t, f.enforcer.IsBlocked("game.exe"))

	f.gate.pass("game.exe")

	assert.False(t, f.enforcer.IsBlocked("game.exe"))
	d := f.enforcer.CheckAppPermission("game.exe", 1)
	assert.True(t, d.Allowed)
	assert.True(t, d.Granted)
	assert.False(t, f.enforcer.Block("game.exe", 30), "grace period must suppress new blocks")

	f.advance(6 * time.Minute)
	assert.False(t, f.enforcer.CheckAppPermission("game.exe", 1).Allowed)
	assert.True(t, f.enforcer.Block("game.exe", 30))
}

func TestInstalledApps_CachedWithinTTL(t *testing.T) {
	f := newEnforcerFixture(t)
	f.apps.names = []string{"Steam", "code"}
	f.pm.spawn(10, "firefox")
	ctx := context.Background()

	apps := f.enforcer.InstalledApps(ctx)
	assert.Equal(t, []string{"code", "firefox", "steam"}, apps)

	f.apps.names = []string{"other"}
	assert.Equal(t, apps, f.enforcer.InstalledApps(ctx))
	assert.Equal(t, 1, f.apps.calls)

	f.advance(6 * time.Minute)
	assert.Equal(t, []string{"firefox", "other"}, f.enforcer.InstalledApps(ctx))
	assert.Equal(t, 2, f.apps.calls)
}

func TestConcurrentBlockAndSweep(t *testing.T) {
	f := newEnforcerFixture(t)
	f.enforcer.now = time.Now
	f.pm.keepRunning = true
	f.pm.spawn(1, "steam")

	var wg sync.WaitGroup
	newBlocks := make(chan bool, 20)
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			newBlocks <- f.enforcer.Block("steam", 30)
		}()
		go func() {
			defer wg.Done()
			f.enforcer.Sweep()
			_ = f.enforcer.Blocked()
		}()
	}
	wg.Wait()
	close(newBlocks)

	count := 0
	for created := range newBlocks {
		if created {
			count++
		}
	}
	assert.Equal(t, 1, count, "exactly one Block call creates the entry")
}

func TestRun_StopsOnCancel(t *testing.T) {
	f := newEnforcerFixture(t)
	f.enforcer.now = time.Now
	f.enforcer.Block("steam", 30)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.enforcer.Run(ctx) }()

	f.pm.spawn(99, "steam")
	assert.Eventually(t, func() bool {
		return !f.pm.IsRunning(99)
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("enforcer did not stop")
	}
}
