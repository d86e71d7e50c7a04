package infra

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/eliteGoblin/focusd/pointgate/internal/domain"
)

// Known install and shortcut locations. Supports ~ expansion and glob patterns.
var defaultAppDirs = []string{
	"/usr/share/applications/*.desktop",
	"/usr/local/share/applications/*.desktop",
	"/var/lib/flatpak/exports/share/applications/*.desktop",
	"~/.local/share/applications/*.desktop",
	"/Applications/*.app",
	"~/Applications/*.app",
}

// AppDirScanner implements domain.AppDiscoverer by globbing install directories.
type AppDirScanner struct {
	homeDir  string
	patterns []string
}

// NewAppDirScanner creates a scanner over the default locations plus extra.
func NewAppDirScanner(extra ...string) *AppDirScanner {
	home, _ := os.UserHomeDir()
	patterns := append(append([]string{}, defaultAppDirs...), extra...)
	return &AppDirScanner{homeDir: home, patterns: patterns}
}

// NewAppDirScannerWithHome creates a scanner with custom home and patterns (for testing).
func NewAppDirScannerWithHome(home string, patterns []string) *AppDirScanner {
	return &AppDirScanner{homeDir: home, patterns: patterns}
}

// Discover returns lower-cased, de-duplicated app names. Unreadable entries are skipped.
func (s *AppDirScanner) Discover(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	for _, pattern := range s.patterns {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		matches, err := filepath.Glob(s.ExpandHome(pattern))
		if err != nil {
			continue
		}
		for _, m := range matches {
			if name := appName(m); name != "" {
				seen[name] = struct{}{}
			}
		}
	}

	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Strings(out)
	return out, nil
}

// ExpandHome expands ~ to the user's home directory.
func (s *AppDirScanner) ExpandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(s.homeDir, path[2:])
	}
	if path == "~" {
		return s.homeDir
	}
	return path
}

// appName derives a process-like name from an install artifact.
func appName(path string) string {
	base := filepath.Base(path)
	switch filepath.Ext(base) {
	case ".desktop":
		if exe := desktopExec(path); exe != "" {
			return domain.NormalizeApp(filepath.Base(exe))
		}
		return domain.NormalizeApp(strings.TrimSuffix(base, ".desktop"))
	case ".app":
		return domain.NormalizeApp(strings.TrimSuffix(base, ".app"))
	}
	return domain.NormalizeApp(base)
}

// desktopExec returns the binary of the first Exec= line of a .desktop entry.
func desktopExec(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if !strings.HasPrefix(line, "Exec=") {
			continue
		}
		fields := strings.Fields(strings.TrimPrefix(line, "Exec="))
		for _, tok := range fields {
			// Skip env assignments like "env FOO=1"
			if tok == "env" || strings.Contains(tok, "=") {
				continue
			}
			return strings.Trim(tok, `"`)
		}
	}
	return ""
}

// Ensure AppDirScanner implements domain.AppDiscoverer.
var _ domain.AppDiscoverer = (*AppDirScanner)(nil)
