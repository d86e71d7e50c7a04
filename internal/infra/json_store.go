package infra

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/eliteGoblin/focusd/pointgate/internal/domain"
)

const (
	userDataFile      = "user_data.json"
	appCategoriesFile = "app_categories.json"
)

// jsonFile reads and atomically rewrites a single JSON document.
type jsonFile struct {
	mu   sync.Mutex
	path string
}

// load decodes the file into v. Returns false when the file does not exist.
func (f *jsonFile) load(v any) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("failed to parse %s: %w", filepath.Base(f.path), err)
	}
	return true, nil
}

// atomicWrite writes v to file atomically (write + rename).
func (f *jsonFile) atomicWrite(v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0700); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	// Write to temp file first (unique per process to avoid race)
	tmpPath := fmt.Sprintf("%s.%d.tmp", f.path, os.Getpid())
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}

	// Atomic rename
	if err := os.Rename(tmpPath, f.path); err != nil {
		os.Remove(tmpPath) // Clean up on failure
		return err
	}
	return nil
}

// JSONLedgerStore implements domain.LedgerStore as user_data.json.
type JSONLedgerStore struct {
	file jsonFile
}

// NewJSONLedgerStore creates a ledger store inside dataDir.
func NewJSONLedgerStore(dataDir string) *JSONLedgerStore {
	return NewJSONLedgerStoreWithPath(filepath.Join(dataDir, userDataFile))
}

// NewJSONLedgerStoreWithPath creates a ledger store at a specific path (for testing).
func NewJSONLedgerStoreWithPath(path string) *JSONLedgerStore {
	return &JSONLedgerStore{file: jsonFile{path: path}}
}

func (s *JSONLedgerStore) Load() (*domain.PointLedger, error) {
	var ledger domain.PointLedger
	found, err := s.file.load(&ledger)
	if err != nil || !found {
		return nil, err
	}
	return &ledger, nil
}

func (s *JSONLedgerStore) Save(ledger domain.PointLedger) error {
	return s.file.atomicWrite(ledger)
}

// JSONCategoryStore implements domain.CategoryStore as app_categories.json.
type JSONCategoryStore struct {
	file jsonFile
}

// NewJSONCategoryStore creates a category store inside dataDir.
func NewJSONCategoryStore(dataDir string) *JSONCategoryStore {
	return NewJSONCategoryStoreWithPath(filepath.Join(dataDir, appCategoriesFile))
}

// NewJSONCategoryStoreWithPath creates a category store at a specific path (for testing).
func NewJSONCategoryStoreWithPath(path string) *JSONCategoryStore {
	return &JSONCategoryStore{file: jsonFile{path: path}}
}

func (s *JSONCategoryStore) Load() (*domain.CategoryRegistry, error) {
	var reg domain.CategoryRegistry
	found, err := s.file.load(&reg)
	if err != nil || !found {
		return nil, err
	}
	return &reg, nil
}

func (s *JSONCategoryStore) Save(reg domain.CategoryRegistry) error {
	if reg.Productive == nil {
		reg.Productive = []string{}
	}
	if reg.Entertainment == nil {
		reg.Entertainment = []string{}
	}
	return s.file.atomicWrite(reg)
}

func (s *JSONCategoryStore) Path() string {
	return s.file.path
}

// Ensure stores implement their domain interfaces.
var _ domain.LedgerStore = (*JSONLedgerStore)(nil)
var _ domain.CategoryStore = (*JSONCategoryStore)(nil)
