package infra

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/eliteGoblin/focusd/pointgate/internal/domain"
)

const (
	ledgerKeyFile = "ledger.key"
	keySize       = 32 // 256-bit SQLCipher key
)

// ErrLedgerKeyMissing means ledger.db exists but its key file is gone. A new
// key could never open that database, so none is generated.
var ErrLedgerKeyMissing = errors.New("encrypted ledger exists but its key file is missing")

// FileKeyProvider keeps the ledger key next to ledger.db, base64 encoded, mode 0600.
type FileKeyProvider struct {
	keyPath string
}

// NewFileKeyProvider creates a FileKeyProvider for the given data directory.
func NewFileKeyProvider(dataDir string) *FileKeyProvider {
	return &FileKeyProvider{keyPath: filepath.Join(dataDir, ledgerKeyFile)}
}

// Path returns the key file path.
func (p *FileKeyProvider) Path() string {
	return p.keyPath
}

// GetKey reads and decodes the ledger key.
func (p *FileKeyProvider) GetKey() ([]byte, error) {
	encoded, err := os.ReadFile(p.keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger key: %w", err)
	}
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(encoded)))
	if err != nil {
		return nil, fmt.Errorf("failed to decode ledger key: %w", err)
	}
	if len(key) != keySize {
		return nil, fmt.Errorf("invalid key size: got %d, want %d", len(key), keySize)
	}
	return key, nil
}

// StoreKey atomically replaces the key file.
func (p *FileKeyProvider) StoreKey(key []byte) error {
	if len(key) != keySize {
		return fmt.Errorf("invalid key size: got %d, want %d", len(key), keySize)
	}
	if err := os.MkdirAll(filepath.Dir(p.keyPath), 0700); err != nil {
		return fmt.Errorf("failed to create key directory: %w", err)
	}

	tmpPath := fmt.Sprintf("%s.%d.tmp", p.keyPath, os.Getpid())
	if err := os.WriteFile(tmpPath, []byte(base64.StdEncoding.EncodeToString(key)), 0600); err != nil {
		return fmt.Errorf("failed to write ledger key: %w", err)
	}
	if err := os.Rename(tmpPath, p.keyPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to install ledger key: %w", err)
	}
	return nil
}

// KeyExists checks if the key file exists.
func (p *FileKeyProvider) KeyExists() bool {
	_, err := os.Stat(p.keyPath)
	return err == nil
}

// GenerateKey creates a new random 256-bit key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, keySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate random key: %w", err)
	}
	return key, nil
}

// EnsureKey returns the key for the ledger at dbPath. A key is generated only
// when neither the key nor the database exists yet.
func EnsureKey(provider domain.KeyProvider, dbPath string) ([]byte, error) {
	if provider.KeyExists() {
		return provider.GetKey()
	}
	if _, err := os.Stat(dbPath); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrLedgerKeyMissing, dbPath)
	}
	key, err := GenerateKey()
	if err != nil {
		return nil, err
	}
	if err := provider.StoreKey(key); err != nil {
		return nil, err
	}
	return key, nil
}

// LedgerPath returns where the encrypted ledger lives in dataDir.
func LedgerPath(dataDir string) string {
	return filepath.Join(dataDir, ledgerDBName)
}

var _ domain.KeyProvider = (*FileKeyProvider)(nil)
