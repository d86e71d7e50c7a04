package infra

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestAppDirScanner_Discover(t *testing.T) {
	home := t.TempDir()
	apps := filepath.Join(home, ".local", "share", "applications")

	writeFile(t, filepath.Join(apps, "firefox.desktop"), "[Desktop Entry]\nName=Firefox\nExec=/usr/lib/firefox/firefox %u\n")
	writeFile(t, filepath.Join(apps, "game.desktop"), "[Desktop Entry]\nExec=env WINEPREFIX=/x \"/opt/Game/Game.exe\"\n")
	writeFile(t, filepath.Join(apps, "NoExec.desktop"), "[Desktop Entry]\nName=Thing\n")
	require.NoError(t, os.MkdirAll(filepath.Join(home, "Applications", "Slack.app"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(home, "steam", "common", "Dota 2"), 0755))

	scanner := NewAppDirScannerWithHome(home, []string{
		"~/.local/share/applications/*.desktop",
		"~/Applications/*.app",
		"~/steam/common/*",
		"~/missing/*",
	})

	got, err := scanner.Discover(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"dota 2", "firefox", "game.exe", "noexec", "slack"}, got)
}

func TestAppDirScanner_Deduplicates(t *testing.T) {
	home := t.TempDir()
	writeFile(t, filepath.Join(home, "a", "code.desktop"), "Exec=code\n")
	writeFile(t, filepath.Join(home, "b", "code-url.desktop"), "Exec=/usr/bin/code --open-url\n")

	got, err := NewAppDirScannerWithHome(home, []string{"~/a/*.desktop", "~/b/*.desktop"}).Discover(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"code"}, got)
}

func TestAppDirScanner_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewAppDirScannerWithHome(t.TempDir(), []string{"~/*"}).Discover(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAppDirScanner_ExpandHome(t *testing.T) {
	s := NewAppDirScannerWithHome("/home/alex", nil)
	tests := []struct {
		in   string
		want string
	}{
		{"~/Applications", "/home/alex/Applications"},
		{"~", "/home/alex"},
		{"/usr/share", "/usr/share"},
		{"~other/x", "~other/x"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, s.ExpandHome(tt.in))
		})
	}
}
