// Package classify maps running applications to productive, entertainment or neutral.
package classify

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/pointgate/internal/domain"
)

// Classifier owns the category registry. All access goes through mu.
type Classifier struct {
	mu            sync.RWMutex
	productive    map[string]struct{}
	entertainment map[string]struct{}
	store         domain.CategoryStore
	logger        *zap.Logger
}

// NewClassifier loads the registry from store. A read failure starts with empty sets.
func NewClassifier(store domain.CategoryStore, logger *zap.Logger) *Classifier {
	c := &Classifier{
		productive:    make(map[string]struct{}),
		entertainment: make(map[string]struct{}),
		store:         store,
		logger:        logger,
	}
	if err := c.Reload(); err != nil {
		logger.Warn("failed to load app categories, starting empty", zap.Error(err))
	}
	return c
}

// Categorize classifies a window. Registry lookups win over keywords,
// entertainment is checked before productive at both stages. Never fails.
func (c *Classifier) Categorize(windowTitle, processName string) domain.Category {
	name := domain.NormalizeApp(processName)
	title := strings.ToLower(windowTitle)

	c.mu.RLock()
	_, isEntertainment := c.entertainment[name]
	_, isProductive := c.productive[name]
	c.mu.RUnlock()

	if isEntertainment {
		return domain.CategoryEntertainment
	}
	if isProductive {
		return domain.CategoryProductive
	}

	if matchesAny(entertainmentKeywords, title, name) {
		return domain.CategoryEntertainment
	}
	if matchesAny(productiveKeywords, title, name) {
		return domain.CategoryProductive
	}
	return domain.CategoryNeutral
}

// UpdateCategories replaces both registries. Names present in both lists are dropped from both.
func (c *Classifier) UpdateCategories(productive, entertainment []string) error {
	p := toSet(productive)
	e := toSet(entertainment)
	for name := range p {
		if _, dup := e[name]; dup {
			delete(p, name)
			delete(e, name)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.productive, c.entertainment = p, e
	return c.persistLocked()
}

// AddProductive registers name as productive, removing it from entertainment.
func (c *Classifier) AddProductive(name string) error {
	return c.mutate(func() {
		if n := domain.NormalizeApp(name); n != "" {
			delete(c.entertainment, n)
			c.productive[n] = struct{}{}
		}
	})
}

// AddEntertainment registers name as entertainment, removing it from productive.
func (c *Classifier) AddEntertainment(name string) error {
	return c.mutate(func() {
		if n := domain.NormalizeApp(name); n != "" {
			delete(c.productive, n)
			c.entertainment[n] = struct{}{}
		}
	})
}

func (c *Classifier) RemoveProductive(name string) error {
	return c.mutate(func() { delete(c.productive, domain.NormalizeApp(name)) })
}

func (c *Classifier) RemoveEntertainment(name string) error {
	return c.mutate(func() { delete(c.entertainment, domain.NormalizeApp(name)) })
}

// Registry returns a sorted copy of both sets.
func (c *Classifier) Registry() domain.CategoryRegistry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.registryLocked()
}

// Reload replaces the in-memory registry with the store's contents.
// Overlapping names in the file are dropped from both sets.
func (c *Classifier) Reload() error {
	reg, err := c.store.Load()
	if err != nil {
		return err
	}
	if reg == nil {
		return nil
	}

	p := toSet(reg.Productive)
	e := toSet(reg.Entertainment)
	for name := range p {
		if _, dup := e[name]; dup {
			delete(p, name)
			delete(e, name)
		}
	}

	c.mu.Lock()
	c.productive, c.entertainment = p, e
	c.mu.Unlock()
	return nil
}

func (c *Classifier) mutate(fn func()) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn()
	return c.persistLocked()
}

// persistLocked saves the registry. The in-memory state is kept on failure.
func (c *Classifier) persistLocked() error {
	if err := c.store.Save(c.registryLocked()); err != nil {
		c.logger.Warn("failed to save app categories", zap.Error(err))
		return fmt.Errorf("failed to save app categories: %w", err)
	}
	return nil
}

func (c *Classifier) registryLocked() domain.CategoryRegistry {
	return domain.CategoryRegistry{
		Productive:    sortedKeys(c.productive),
		Entertainment: sortedKeys(c.entertainment),
	}
}

func matchesAny(keywords []string, title, name string) bool {
	for _, kw := range keywords {
		if strings.Contains(title, kw) || strings.Contains(name, kw) {
			return true
		}
	}
	return false
}

func toSet(names []string) map[string]struct{} {
	out := make(map[string]struct{}, len(names))
	for _, n := range names {
		if n = domain.NormalizeApp(n); n != "" {
			out[n] = struct{}{}
		}
	}
	return out
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedUnique(in []string) []string {
	return sortedKeys(toSet(in))
}
