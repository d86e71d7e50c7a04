package domain

import (
	"context"
	"time"
)

// ProcessManager handles OS process operations.
// Implementation: uses gopsutil for cross-platform support.
type ProcessManager interface {
	// List returns all running processes that could be inspected.
	List() ([]RunningProcess, error)

	// FindByName returns PIDs of processes whose name equals name (case-insensitive).
	FindByName(name string) ([]int, error)

	// Inspect resolves the name and executable path of a PID.
	Inspect(pid int) (ProcessRecord, error)

	// Terminate asks the process to exit and waits up to timeout, escalating to kill.
	Terminate(pid int, timeout time.Duration) TerminateResult

	// IsRunning checks if a PID exists and is running.
	IsRunning(pid int) bool

	// GetCurrentPID returns the current process PID.
	GetCurrentPID() int
}

// WindowSource enumerates visible top-level windows.
// Implementation: X11 EWMH via xgb.
type WindowSource interface {
	// Windows returns the currently mapped top-level windows.
	Windows(ctx context.Context) ([]WindowRecord, error)

	// Close releases the display connection.
	Close() error
}

// AppDiscoverer scans install and shortcut directories for application names.
type AppDiscoverer interface {
	Discover(ctx context.Context) ([]string, error)
}

// LedgerStore persists full PointLedger snapshots. Latest write wins.
type LedgerStore interface {
	// Load returns the stored ledger, or (nil, nil) when none exists yet.
	Load() (*PointLedger, error)

	// Save writes a full snapshot.
	Save(ledger PointLedger) error
}

// CategoryStore persists the productive/entertainment registries.
type CategoryStore interface {
	// Load returns the stored registry, or (nil, nil) when none exists yet.
	Load() (*CategoryRegistry, error)

	// Save writes the whole registry.
	Save(reg CategoryRegistry) error

	// Path returns the backing file (watched for hot reload).
	Path() string
}

// ActivityJournal records closed activities for reporting.
type ActivityJournal interface {
	Record(ctx context.Context, rec ActivityRecord) error
	Usage(ctx context.Context, since time.Time) ([]AppUsage, error)
	Close() error
}

// ChallengeGate is the user-facing prompt that can lift a block early.
// The presentation layer lives outside the engine.
type ChallengeGate interface {
	// Present shows the challenge for app. onSuccess is invoked once the user passes it.
	Present(app string, onSuccess func(app string))

	// Visible reports whether a prompt is currently on screen.
	Visible() bool
}

// Wallet is the slice of the economy the enforcer needs.
type Wallet interface {
	// Purchase atomically checks affordability of minutes of entertainment and deducts the cost.
	Purchase(minutes int) (cost int, ok bool)
}

// KeyProvider abstracts the source of encryption keys.
type KeyProvider interface {
	// GetKey returns the encryption key bytes.
	GetKey() ([]byte, error)

	// StoreKey persists a new encryption key.
	StoreKey(key []byte) error

	// KeyExists checks if a key has been generated.
	KeyExists() bool
}

// Enforcer owns the block registry and the termination loop.
type Enforcer interface {
	// Block restricts app for minutes (<= 0 means indefinitely). Returns true only for a new block.
	Block(app string, minutes int) bool

	// Unblock lifts a block. Returns false if app was not blocked.
	Unblock(app string) bool

	// UnblockAll clears the registry and returns how many entries were removed.
	UnblockAll() int

	// IsBlocked reports whether app currently has an unexpired block.
	IsBlocked(app string) bool

	// Blocked lists unexpired blocks.
	Blocked() []BlockEntry

	// Sweep terminates every running blocked process once.
	Sweep() EnforcementResult

	// CheckAppPermission buys minutes of entertainment for app.
	CheckAppPermission(app string, minutes int) Decision
}

// CommandQueue carries CLI requests to the running daemon.
type CommandQueue interface {
	// Submit enqueues a command.
	Submit(cmd Command) error

	// Drain removes and returns all pending commands, oldest first.
	Drain() ([]Command, error)
}

// StateStore publishes the daemon's runtime state.
type StateStore interface {
	Save(state DaemonState) error

	// Load returns the last published state, or (nil, nil) if none.
	Load() (*DaemonState, error)
}
