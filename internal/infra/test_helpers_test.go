package infra

import (
	"errors"
	"os"
	"time"

	"github.com/eliteGoblin/focusd/pointgate/internal/domain"
)

// mockProcessManager is a test double for ProcessManager
type mockProcessManager struct {
	procs   []domain.RunningProcess
	listErr error
}

func newMockProcessManager(procs ...domain.RunningProcess) *mockProcessManager {
	return &mockProcessManager{procs: procs}
}

func (m *mockProcessManager) List() ([]domain.RunningProcess, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.procs, nil
}

func (m *mockProcessManager) FindByName(name string) ([]int, error) {
	var pids []int
	for _, p := range m.procs {
		if domain.NormalizeApp(p.Name) == domain.NormalizeApp(name) {
			pids = append(pids, p.PID)
		}
	}
	return pids, nil
}

func (m *mockProcessManager) Inspect(pid int) (domain.ProcessRecord, error) {
	for _, p := range m.procs {
		if p.PID == pid {
			return domain.ProcessRecord{PID: pid, Name: p.Name}, nil
		}
	}
	return domain.ProcessRecord{}, errors.New("no such process")
}

func (m *mockProcessManager) Terminate(pid int, timeout time.Duration) domain.TerminateResult {
	return domain.NotFound
}

func (m *mockProcessManager) IsRunning(pid int) bool {
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

// Ensure mockProcessManager implements domain.ProcessManager
var _ domain.ProcessManager = (*mockProcessManager)(nil)
