package policy

import (
	"github.com/eliteGoblin/focusd/pointgate/internal/domain"
)

// SteamPolicy is the preset for the Steam client.
type SteamPolicy struct{}

// NewSteamPolicy creates the Steam preset.
func NewSteamPolicy() *SteamPolicy {
	return &SteamPolicy{}
}

func (p *SteamPolicy) ID() string {
	return "steam"
}

func (p *SteamPolicy) Name() string {
	return "Steam"
}

func (p *SteamPolicy) Category() domain.Category {
	return domain.CategoryEntertainment
}

// ProcessPatterns returns Steam process names across Linux, macOS and Windows.
func (p *SteamPolicy) ProcessPatterns() []string {
	return []string{
		"steam",
		"Steam",
		"steam.exe",
		"steam_osx",
		"steamwebhelper",
		"steamwebhelper.exe",
		"Steam Helper",
	}
}

// InstallGlobs returns where Steam keeps installed games.
func (p *SteamPolicy) InstallGlobs() []string {
	return []string{
		"~/.steam/steam/steamapps/common/*",
		"~/.local/share/Steam/steamapps/common/*",
		"~/Library/Application Support/Steam/steamapps/common/*",
	}
}

// Ensure SteamPolicy implements AppPolicy.
var _ AppPolicy = (*SteamPolicy)(nil)
