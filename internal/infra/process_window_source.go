package infra

import (
	"context"

	"github.com/eliteGoblin/focusd/pointgate/internal/domain"
)

// ProcessWindowSource is the fallback domain.WindowSource when no X display is reachable.
// Every named process becomes a pseudo-window titled with its own name.
type ProcessWindowSource struct {
	pm domain.ProcessManager
}

// NewProcessWindowSource wraps a process manager.
func NewProcessWindowSource(pm domain.ProcessManager) *ProcessWindowSource {
	return &ProcessWindowSource{pm: pm}
}

func (s *ProcessWindowSource) Windows(ctx context.Context) ([]domain.WindowRecord, error) {
	procs, err := s.pm.List()
	if err != nil {
		return nil, err
	}
	out := make([]domain.WindowRecord, 0, len(procs))
	for _, p := range procs {
		out = append(out, domain.WindowRecord{Title: p.Name, PID: p.PID})
	}
	return out, nil
}

func (s *ProcessWindowSource) Close() error { return nil }

// NewWindowSource prefers X11 and falls back to the process table.
func NewWindowSource(pm domain.ProcessManager) (domain.WindowSource, string) {
	if src, err := NewX11WindowSource(); err == nil {
		return src, "x11"
	}
	return NewProcessWindowSource(pm), "process"
}

var _ domain.WindowSource = (*ProcessWindowSource)(nil)
