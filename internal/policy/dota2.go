package policy

import (
	"github.com/eliteGoblin/focusd/pointgate/internal/domain"
)

// Dota2Policy is the preset for Dota 2.
type Dota2Policy struct{}

// NewDota2Policy creates the Dota 2 preset.
func NewDota2Policy() *Dota2Policy {
	return &Dota2Policy{}
}

func (p *Dota2Policy) ID() string {
	return "dota2"
}

func (p *Dota2Policy) Name() string {
	return "Dota 2"
}

func (p *Dota2Policy) Category() domain.Category {
	return domain.CategoryEntertainment
}

func (p *Dota2Policy) ProcessPatterns() []string {
	return []string{
		"dota2",
		"dota2.exe",
		"dota_osx64",
		"Dota 2",
		"dota2_launcher",
	}
}

func (p *Dota2Policy) InstallGlobs() []string {
	return []string{
		"~/.steam/steam/steamapps/common/dota 2 beta/game/bin/*/dota2",
	}
}

var _ AppPolicy = (*Dota2Policy)(nil)
