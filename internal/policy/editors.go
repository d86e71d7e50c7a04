package policy

import (
	"github.com/eliteGoblin/focusd/pointgate/internal/domain"
)

// EditorsPolicy is a productive preset of common editors and terminals.
type EditorsPolicy struct{}

// NewEditorsPolicy creates the editors preset.
func NewEditorsPolicy() *EditorsPolicy {
	return &EditorsPolicy{}
}

func (p *EditorsPolicy) ID() string {
	return "editors"
}

func (p *EditorsPolicy) Name() string {
	return "Editors and terminals"
}

func (p *EditorsPolicy) Category() domain.Category {
	return domain.CategoryProductive
}

func (p *EditorsPolicy) ProcessPatterns() []string {
	return []string{
		"code",
		"Code.exe",
		"nvim",
		"vim",
		"emacs",
		"idea",
		"goland",
		"gnome-terminal-server",
		"konsole",
		"alacritty",
		"kitty",
		"wezterm-gui",
	}
}

func (p *EditorsPolicy) InstallGlobs() []string {
	return nil
}

var _ AppPolicy = (*EditorsPolicy)(nil)
