// Package policy defines built-in app presets: named bundles of process names
// that can be applied to the category registry in one step.
package policy

import (
	"github.com/eliteGoblin/focusd/pointgate/internal/domain"
)

// AppPolicy describes one preset.
type AppPolicy interface {
	// ID returns unique identifier (e.g., "steam", "dota2").
	ID() string

	// Name returns human-readable name for display.
	Name() string

	// Category is where ProcessPatterns are filed when the preset is applied.
	Category() domain.Category

	// ProcessPatterns returns the process names the app runs as.
	ProcessPatterns() []string

	// InstallGlobs returns install locations for app discovery.
	// Supports ~ expansion for home directory.
	InstallGlobs() []string
}

// Categorizer is the part of the classifier a preset writes to.
type Categorizer interface {
	AddProductive(name string) error
	AddEntertainment(name string) error
}

// Apply files every process pattern of p under its category.
// Returns the normalized names that were added.
func Apply(p AppPolicy, c Categorizer) ([]string, error) {
	add := c.AddEntertainment
	if p.Category() == domain.CategoryProductive {
		add = c.AddProductive
	}

	seen := make(map[string]struct{})
	var added []string
	for _, pattern := range p.ProcessPatterns() {
		name := domain.NormalizeApp(pattern)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		if err := add(name); err != nil {
			return added, err
		}
		added = append(added, name)
	}
	return added, nil
}
