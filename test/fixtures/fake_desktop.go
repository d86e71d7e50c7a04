// Package fixtures provides test helpers for integration tests.
package fixtures

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/eliteGoblin/focusd/pointgate/internal/domain"
)

// FakeDesktop is an in-memory process table where every process owns one
// titled window. It implements domain.ProcessManager and domain.WindowSource.
type FakeDesktop struct {
	mu         sync.Mutex
	nextPID    int
	procs      map[int]string
	titles     map[int]string
	terminated []string
}

// NewFakeDesktop creates an empty desktop.
func NewFakeDesktop() *FakeDesktop {
	return &FakeDesktop{
		nextPID: 5000,
		procs:   make(map[int]string),
		titles:  make(map[int]string),
	}
}

// Launch starts a fake app with a window title and returns its PID.
func (d *FakeDesktop) Launch(name, title string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextPID++
	d.procs[d.nextPID] = name
	d.titles[d.nextPID] = title
	return d.nextPID
}

// Quit closes an app as the user would.
func (d *FakeDesktop) Quit(pid int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.procs, pid)
	delete(d.titles, pid)
}

// Running reports whether any process named name is alive.
func (d *FakeDesktop) Running(name string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, n := range d.procs {
		if strings.EqualFold(n, name) {
			return true
		}
	}
	return false
}

// Terminated returns the names of apps killed through Terminate, in order.
func (d *FakeDesktop) Terminated() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.terminated...)
}

func (d *FakeDesktop) List() ([]domain.RunningProcess, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]domain.RunningProcess, 0, len(d.procs))
	for pid, name := range d.procs {
		out = append(out, domain.RunningProcess{PID: pid, Name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PID < out[j].PID })
	return out, nil
}

func (d *FakeDesktop) FindByName(name string) ([]int, error) {
	procs, _ := d.List()
	var pids []int
	for _, p := range procs {
		if strings.EqualFold(p.Name, name) {
			pids = append(pids, p.PID)
		}
	}
	return pids, nil
}

func (d *FakeDesktop) Inspect(pid int) (domain.ProcessRecord, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	name, ok := d.procs[pid]
	if !ok {
		return domain.ProcessRecord{}, fmt.Errorf("process %d not found", pid)
	}
	return domain.ProcessRecord{PID: pid, Name: name, ExePath: "/opt/" + name, ObservedAt: time.Now()}, nil
}

func (d *FakeDesktop) Terminate(pid int, timeout time.Duration) domain.TerminateResult {
	d.mu.Lock()
	defer d.mu.Unlock()
	name, ok := d.procs[pid]
	if !ok {
		return domain.NotFound
	}
	delete(d.procs, pid)
	delete(d.titles, pid)
	d.terminated = append(d.terminated, name)
	return domain.Terminated
}

func (d *FakeDesktop) IsRunning(pid int) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.procs[pid]
	return ok || pid == os.Getpid()
}

func (d *FakeDesktop) GetCurrentPID() int {
	return os.Getpid()
}

func (d *FakeDesktop) Windows(ctx context.Context) ([]domain.WindowRecord, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]domain.WindowRecord, 0, len(d.titles))
	for pid, title := range d.titles {
		out = append(out, domain.WindowRecord{ID: uint32(pid), Title: title, PID: pid})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PID < out[j].PID })
	return out, nil
}

func (d *FakeDesktop) Close() error { return nil }

// Discover returns every launched app name.
func (d *FakeDesktop) Discover(ctx context.Context) ([]string, error) {
	procs, _ := d.List()
	seen := make(map[string]struct{})
	var out []string
	for _, p := range procs {
		name := domain.NormalizeApp(p.Name)
		if _, ok := seen[name]; !ok {
			seen[name] = struct{}{}
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out, nil
}

var (
	_ domain.ProcessManager = (*FakeDesktop)(nil)
	_ domain.WindowSource   = (*FakeDesktop)(nil)
	_ domain.AppDiscoverer  = (*FakeDesktop)(nil)
)
