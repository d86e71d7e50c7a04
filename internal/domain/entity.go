// Package domain contains core business entities and interfaces.
// This is the innermost layer in Clean Architecture - no external dependencies.
package domain

import (
	"strings"
	"time"
)

// Category is the classification of an application.
type Category string

const (
	CategoryProductive    Category = "productive"
	CategoryEntertainment Category = "entertainment"
	CategoryNeutral       Category = "neutral"
)

// Reason tags a ledger mutation.
type Reason string

const (
	ReasonProductive    Reason = "productive"
	ReasonEntertainment Reason = "entertainment"
)

// NormalizeApp returns the registry key for an app name (trimmed, lower-cased).
func NormalizeApp(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ProcessRecord is cached process metadata, keyed by PID in the observer.
type ProcessRecord struct {
	PID        int
	Name       string
	ExePath    string
	ObservedAt time.Time
}

// RunningProcess is a live OS process as seen by the enforcer.
type RunningProcess struct {
	PID  int
	Name string
}

// WindowRecord is a visible top-level window. Rebuilt every poll, never persisted.
type WindowRecord struct {
	ID    uint32
	Title string
	PID   int
	Tool  bool // utility/toolbar/dock/desktop/menu/splash/notification
}

// WindowChangeKind describes what happened to a process's representative window.
type WindowChangeKind string

const (
	WindowOpened  WindowChangeKind = "opened"
	WindowChanged WindowChangeKind = "changed"
	WindowClosed  WindowChangeKind = "closed"
)

// WindowChange is emitted by the observer when a window appears, retitles or goes away.
type WindowChange struct {
	Kind        WindowChangeKind
	Title       string
	ProcessName string
	ExePath     string
	PID         int
	WindowID    uint32
	At          time.Time
}

// BlockEntry is a restricted app. An entry with Expiry <= now is logically absent.
type BlockEntry struct {
	App        string
	Expiry     time.Time
	Indefinite bool
}

// Remaining returns the time left on the block (zero for indefinite blocks).
func (b BlockEntry) Remaining(now time.Time) time.Duration {
	if b.Indefinite {
		return 0
	}
	return b.Expiry.Sub(now)
}

// Expired reports whether the entry should be pruned.
func (b BlockEntry) Expired(now time.Time) bool {
	return !b.Indefinite && !b.Expiry.After(now)
}

// CategoryRegistry holds the two disjoint app sets, as persisted.
type CategoryRegistry struct {
	Productive    []string `json:"productive"`
	Entertainment []string `json:"entertainment"`
}

// DailyStats aggregates ledger activity for one local calendar day.
type DailyStats struct {
	PointsEarned         int `json:"points_earned"`
	PointsSpent          int `json:"points_spent"`
	ProductiveMinutes    int `json:"productive_minutes"`
	EntertainmentMinutes int `json:"entertainment_minutes"`
}

// PointLedger is the full persisted economy snapshot.
type PointLedger struct {
	Points         int                   `json:"points"`
	Streak         int                   `json:"streak"`
	LastUpdated    time.Time             `json:"last_updated"`
	LastProductive time.Time             `json:"last_productive"`
	DailyStats     map[string]DailyStats `json:"daily_stats"`
}

// Clone returns a deep copy of the ledger.
func (l PointLedger) Clone() PointLedger {
	out := l
	out.DailyStats = make(map[string]DailyStats, len(l.DailyStats))
	for k, v := range l.DailyStats {
		out.DailyStats[k] = v
	}
	return out
}

// TerminateResult is the outcome of a single termination attempt.
type TerminateResult string

const (
	Terminated       TerminateResult = "terminated"
	StillRunning     TerminateResult = "still_running"
	PermissionDenied TerminateResult = "permission_denied"
	NotFound         TerminateResult = "not_found"
)

// Decision is the result of an entertainment permission check.
type Decision struct {
	Allowed bool
	Cost    int
	Granted bool // allowed for free by a challenge grace period
}

// EnforcementResult captures what happened during a single sweep.
type EnforcementResult struct {
	Pruned     []string
	Terminated map[int]TerminateResult
	Apps       map[int]string
	Errors     []error
	ExecutedAt time.Time
	DurationMs int64
}

// Activity is the app currently being billed by the tracker.
type Activity struct {
	App          string    `json:"app"`
	Title        string    `json:"title"`
	Category     Category  `json:"category"`
	Since        time.Time `json:"since"`
	PointsEarned int       `json:"points_earned"`
	PointsSpent  int       `json:"points_spent"`
}

// ActivityRecord is a closed activity as written to the journal.
type ActivityRecord struct {
	App       string
	Title     string
	Category  Category
	StartedAt time.Time
	EndedAt   time.Time
	Earned    int
	Spent     int
}

// AppUsage is one row of the per-app journal report.
type AppUsage struct {
	App      string
	Category Category
	Seconds  int64
	Earned   int
	Spent    int
}

// CommandKind names a request queued for the running daemon.
type CommandKind string

const (
	CommandBlock     CommandKind = "block"
	CommandUnblock   CommandKind = "unblock"
	CommandChallenge CommandKind = "challenge"
)

// Command is a request from the CLI to the running daemon.
type Command struct {
	Kind     CommandKind `json:"kind"`
	App      string      `json:"app,omitempty"`
	Minutes  int         `json:"minutes,omitempty"`
	Response string      `json:"response,omitempty"`
	IssuedAt time.Time   `json:"issued_at"`
}

// BlockStatus is a block as reported in the daemon state file.
type BlockStatus struct {
	App              string `json:"app"`
	Indefinite       bool   `json:"indefinite"`
	RemainingSeconds int64  `json:"remaining_seconds"`
}

// DaemonState is the periodic snapshot the daemon publishes for the CLI.
type DaemonState struct {
	PID           int           `json:"pid"`
	StartedAt     time.Time     `json:"started_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
	WindowSource  string        `json:"window_source"`
	Blocked       []BlockStatus `json:"blocked"`
	Current       *Activity     `json:"current,omitempty"`
	Challenge     string        `json:"challenge,omitempty"` // app of the visible prompt
	Windows       int           `json:"windows"`
	DroppedEvents int64         `json:"dropped_events"`
}
