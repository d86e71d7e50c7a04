// Package challenge implements the prompt that lets a user lift a block early.
package challenge

import (
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/pointgate/internal/domain"
)

var (
	// ErrNotVisible is returned by Complete when no challenge is on screen.
	ErrNotVisible = errors.New("no challenge is being presented")

	// ErrRejected is returned by Complete when the response fails validation.
	ErrRejected = errors.New("challenge response rejected")
)

// Validator decides whether a response passes the challenge.
type Validator func(response string) bool

// ThreeLineValidator accepts a response with at least three non-empty lines.
func ThreeLineValidator(response string) bool {
	n := 0
	for _, line := range strings.Split(response, "\n") {
		if strings.TrimSpace(line) != "" {
			n++
		}
	}
	return n >= 3
}

// Prompt describes the challenge currently on screen.
type Prompt struct {
	App       string
	Presented time.Time
	Deadline  time.Time
}

// TimedGate is a domain.ChallengeGate that stays visible until it is
// completed or its timeout passes. A UI reads Current and calls Complete.
type TimedGate struct {
	timeout   time.Duration
	validator Validator
	logger    *zap.Logger
	now       func() time.Time

	mu        sync.Mutex
	prompt    *Prompt
	onSuccess func(app string)
	timer     *time.Timer
	notify    chan Prompt
}

// NewTimedGate creates a gate. A nil validator uses ThreeLineValidator.
func NewTimedGate(timeout time.Duration, validator Validator, logger *zap.Logger) *TimedGate {
	if validator == nil {
		validator = ThreeLineValidator
	}
	return &TimedGate{
		timeout:   timeout,
		validator: validator,
		logger:    logger,
		now:       time.Now,
		notify:    make(chan Prompt, 1),
	}
}

// Present shows a challenge for app. Ignored while another is visible.
func (g *TimedGate) Present(app string, onSuccess func(app string)) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.prompt != nil {
		return
	}

	now := g.now()
	p := Prompt{App: app, Presented: now, Deadline: now.Add(g.timeout)}
	g.prompt = &p
	g.onSuccess = onSuccess
	g.timer = time.AfterFunc(g.timeout, func() { g.expire(p) })

	select {
	case g.notify <- p:
	default:
	}
	g.logger.Info("challenge presented", zap.String("app", app), zap.Duration("timeout", g.timeout))
}

// Visible reports whether a challenge is on screen.
func (g *TimedGate) Visible() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.prompt != nil
}

// Current returns the visible prompt.
func (g *TimedGate) Current() (Prompt, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.prompt == nil {
		return Prompt{}, false
	}
	return *g.prompt, true
}

// Prompts delivers each newly presented challenge. Drops if nobody is listening.
func (g *TimedGate) Prompts() <-chan Prompt {
	return g.notify
}

// Complete submits a response. On success the gate is dismissed and the
// success callback runs outside the gate's lock.
func (g *TimedGate) Complete(response string) error {
	g.mu.Lock()
	if g.prompt == nil {
		g.mu.Unlock()
		return ErrNotVisible
	}
	if !g.validator(response) {
		g.mu.Unlock()
		g.logger.Info("challenge response rejected")
		return ErrRejected
	}

	app := g.prompt.App
	cb := g.onSuccess
	g.dismissLocked()
	g.mu.Unlock()

	g.logger.Info("challenge completed", zap.String("app", app))
	if cb != nil {
		cb(app)
	}
	return nil
}

// Dismiss closes the challenge without lifting the block.
func (g *TimedGate) Dismiss() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.dismissLocked()
}

func (g *TimedGate) expire(p Prompt) {
	g.mu.Lock()
	defer g.mu.Unlock()
	// A newer prompt may have replaced the one this timer belonged to
	if g.prompt == nil || *g.prompt != p {
		return
	}
	g.logger.Info("challenge timed out", zap.String("app", p.App))
	g.dismissLocked()
}

func (g *TimedGate) dismissLocked() {
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
	g.prompt = nil
	g.onSuccess = nil
}

var _ domain.ChallengeGate = (*TimedGate)(nil)
