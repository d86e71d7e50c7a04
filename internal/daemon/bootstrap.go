package daemon

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/eliteGoblin/focusd/pointgate/internal/domain"
)

// StaleAfter is how old state.json may get before the daemon is presumed dead.
const StaleAfter = 3 * StateInterval

// StartDaemon spawns the daemon from the current executable.
func StartDaemon(dataDir string) (int, error) {
	executable, err := os.Executable()
	if err != nil {
		return 0, err
	}
	return StartDaemonWithPath(executable, dataDir)
}

// StartDaemonWithPath spawns binaryPath as a detached daemon process.
// Hidden "daemon" command: pointgate daemon --data-dir <dir>
func StartDaemonWithPath(binaryPath, dataDir string) (int, error) {
	cmd := exec.Command(binaryPath, "daemon", "--data-dir", dataDir)

	// Detach from parent process
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true, // Create new session (detach from terminal)
	}

	// No stdin/stdout/stderr - fully detached
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("failed to start daemon: %w", err)
	}
	pid := cmd.Process.Pid
	// Reap nothing; the child outlives us
	_ = cmd.Process.Release()
	return pid, nil
}

// Running reports the published daemon state if a live daemon owns it.
func Running(states domain.StateStore, pm domain.ProcessManager, now time.Time) (*domain.DaemonState, bool) {
	st, err := states.Load()
	if err != nil || st == nil {
		return nil, false
	}
	if st.PID <= 0 || !pm.IsRunning(st.PID) {
		return st, false
	}
	if now.Sub(st.UpdatedAt) > StaleAfter {
		return st, false
	}
	return st, true
}
