// Package daemon supervises the engine loops and spawns the detached daemon process.
package daemon

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/pointgate/internal/domain"
)

// Loop is a long-running component. Run must return once ctx is cancelled.
type Loop struct {
	Name string
	Run  func(ctx context.Context) error
}

// Daemon runs every loop in its own goroutine and tears down in order:
// cancel, wait for all loops, then lift every block.
type Daemon struct {
	loops    []Loop
	enforcer domain.Enforcer
	logger   *zap.Logger
}

// New creates a supervisor for loops.
func New(enforcer domain.Enforcer, logger *zap.Logger, loops ...Loop) *Daemon {
	return &Daemon{loops: loops, enforcer: enforcer, logger: logger}
}

// Run blocks until ctx is cancelled and every loop has returned.
// A loop that fails early is logged; the others keep running.
func (d *Daemon) Run(ctx context.Context) error {
	d.logger.Info("daemon started", zap.Int("loops", len(d.loops)))

	var wg sync.WaitGroup
	for _, l := range d.loops {
		wg.Add(1)
		go func(l Loop) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					d.logger.Error("loop panicked", zap.String("loop", l.Name), zap.Error(fmt.Errorf("%v", r)))
				}
			}()
			if err := l.Run(ctx); err != nil {
				d.logger.Error("loop exited with error", zap.String("loop", l.Name), zap.Error(err))
				return
			}
			d.logger.Debug("loop stopped", zap.String("loop", l.Name))
		}(l)
	}

	<-ctx.Done()
	d.logger.Info("daemon stopping, waiting for loops")
	wg.Wait()

	n := d.enforcer.UnblockAll()
	d.logger.Info("daemon stopped", zap.Int("unblocked", n))
	return nil
}
