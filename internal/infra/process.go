// Package infra implements infrastructure concerns (processes, windows, storage).
package infra

import (
	"errors"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/eliteGoblin/focusd/pointgate/internal/domain"
)

// How often Terminate re-checks a process while waiting for it to exit.
const exitPollInterval = 50 * time.Millisecond

// ProcessManagerImpl implements domain.ProcessManager using gopsutil.
type ProcessManagerImpl struct{}

// NewProcessManager creates a new process manager.
func NewProcessManager() domain.ProcessManager {
	return &ProcessManagerImpl{}
}

// List returns every process whose name can be read. Vanished or protected processes are skipped.
func (pm *ProcessManagerImpl) List() ([]domain.RunningProcess, error) {
	procs, err := process.Processes()
	if err != nil {
		return nil, err
	}

	out := make([]domain.RunningProcess, 0, len(procs))
	for _, p := range procs {
		name, err := p.Name()
		if err != nil {
			continue // Process may have exited
		}
		out = append(out, domain.RunningProcess{PID: int(p.Pid), Name: name})
	}
	return out, nil
}

// FindByName returns PIDs whose process name equals name, ignoring case.
func (pm *ProcessManagerImpl) FindByName(name string) ([]int, error) {
	procs, err := pm.List()
	if err != nil {
		return nil, err
	}

	var found []int
	for _, p := range procs {
		if strings.EqualFold(p.Name, name) {
			found = append(found, p.PID)
		}
	}
	return found, nil
}

// Inspect resolves a PID's name and executable. A hidden executable path is not an error.
func (pm *ProcessManagerImpl) Inspect(pid int) (domain.ProcessRecord, error) {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return domain.ProcessRecord{}, err
	}
	name, err := p.Name()
	if err != nil {
		return domain.ProcessRecord{}, err
	}
	exe, _ := p.Exe()

	return domain.ProcessRecord{
		PID:        pid,
		Name:       name,
		ExePath:    exe,
		ObservedAt: time.Now(),
	}, nil
}

// Terminate sends SIGTERM, waits up to timeout, then escalates to SIGKILL.
func (pm *ProcessManagerImpl) Terminate(pid int, timeout time.Duration) domain.TerminateResult {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return domain.NotFound
	}

	if err := p.Terminate(); err != nil {
		if res, done := classifySignalError(err); done {
			return res
		}
	}
	if pm.waitExit(pid, timeout) {
		return domain.Terminated
	}

	if err := p.Kill(); err != nil {
		if res, done := classifySignalError(err); done {
			return res
		}
	}
	if pm.waitExit(pid, exitPollInterval*4) {
		return domain.Terminated
	}
	return domain.StillRunning
}

func (pm *ProcessManagerImpl) waitExit(pid int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if !pm.IsRunning(pid) {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(exitPollInterval)
	}
}

// classifySignalError maps a signal failure to a final result, if it is one.
func classifySignalError(err error) (domain.TerminateResult, bool) {
	switch {
	case errors.Is(err, os.ErrPermission), errors.Is(err, syscall.EPERM):
		return domain.PermissionDenied, true
	case errors.Is(err, os.ErrProcessDone), errors.Is(err, syscall.ESRCH), errors.Is(err, process.ErrorProcessNotRunning):
		return domain.NotFound, true
	}
	return "", false
}

// IsRunning checks if a PID exists and is not a zombie.
func (pm *ProcessManagerImpl) IsRunning(pid int) bool {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return false
	}
	running, err := p.IsRunning()
	if err != nil || !running {
		return false
	}
	status, err := p.Status()
	if err == nil {
		for _, s := range status {
			if s == process.Zombie {
				return false
			}
		}
	}
	return true
}

// GetCurrentPID returns the current process PID.
func (pm *ProcessManagerImpl) GetCurrentPID() int {
	return os.Getpid()
}

// Ensure ProcessManagerImpl implements domain.ProcessManager.
var _ domain.ProcessManager = (*ProcessManagerImpl)(nil)
