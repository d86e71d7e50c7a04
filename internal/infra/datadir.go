package infra

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
)

const (
	// DataDirEnv overrides the default data directory.
	DataDirEnv = "POINTGATE_DATA_DIR"

	defaultDataSubdir = ".pointgate"
)

// ResolveDataDir picks the data directory: explicit flag, then $POINTGATE_DATA_DIR,
// then ~/.pointgate of the real user.
func ResolveDataDir(flag string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if env := os.Getenv(DataDirEnv); env != "" {
		return filepath.Abs(env)
	}
	home := GetRealUserHome()
	if home == "" {
		return "", fmt.Errorf("failed to resolve home directory; set --data-dir or $%s", DataDirEnv)
	}
	return filepath.Join(home, defaultDataSubdir), nil
}

// GetRealUserHome returns the real user's home directory, even when running under sudo.
// Under sudo, os.UserHomeDir() returns root's home, so we use SUDO_USER to find the real user.
func GetRealUserHome() string {
	// Check if running under sudo
	if sudoUser := os.Getenv("SUDO_USER"); sudoUser != "" {
		if u, err := user.Lookup(sudoUser); err == nil {
			return u.HomeDir
		}
	}
	// Fall back to default
	home, _ := os.UserHomeDir()
	return home
}
