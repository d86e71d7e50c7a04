package policy

import (
	"fmt"
	"sort"
)

// Registry holds all app presets.
type Registry struct {
	policies map[string]AppPolicy
}

// NewRegistry creates a registry with all default presets.
func NewRegistry() *Registry {
	return NewRegistryWithPolicies(
		NewSteamPolicy(),
		NewDota2Policy(),
		NewEditorsPolicy(),
	)
}

// NewRegistryWithPolicies creates a registry with custom presets (for testing).
func NewRegistryWithPolicies(policies ...AppPolicy) *Registry {
	r := &Registry{
		policies: make(map[string]AppPolicy),
	}
	for _, p := range policies {
		r.Register(p)
	}
	return r
}

// Register adds a preset to the registry.
func (r *Registry) Register(p AppPolicy) {
	r.policies[p.ID()] = p
}

// Get returns a preset by ID.
func (r *Registry) Get(id string) (AppPolicy, error) {
	p, ok := r.policies[id]
	if !ok {
		return nil, fmt.Errorf("preset not found: %s (known: %v)", id, r.List())
	}
	return p, nil
}

// GetAll returns all registered presets, sorted by ID.
func (r *Registry) GetAll() []AppPolicy {
	result := make([]AppPolicy, 0, len(r.policies))
	for _, id := range r.List() {
		result = append(result, r.policies[id])
	}
	return result
}

// List returns all preset IDs, sorted.
func (r *Registry) List() []string {
	ids := make([]string, 0, len(r.policies))
	for id := range r.policies {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// InstallGlobs merges the install locations of every preset.
func (r *Registry) InstallGlobs() []string {
	var out []string
	for _, p := range r.GetAll() {
		out = append(out, p.InstallGlobs()...)
	}
	return out
}
