package infra

import (
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"time"

	// Ensure sqlcipher driver is registered.
	_ "github.com/mutecomm/go-sqlcipher/v4"

	"github.com/eliteGoblin/focusd/pointgate/internal/domain"
)

const ledgerDBName = "ledger.db"

// EncryptedLedgerStore implements domain.LedgerStore on a SQLCipher database.
// Keeping the balance out of a plain JSON file stops casual edits to the points.
type EncryptedLedgerStore struct {
	db     *sql.DB
	dbPath string
	key    []byte
}

// NewEncryptedLedgerStore opens (or creates) the encrypted ledger in dataDir.
// The key is used as the SQLCipher passphrase via PRAGMA key.
func NewEncryptedLedgerStore(dataDir string, key []byte) (*EncryptedLedgerStore, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := LedgerPath(dataDir)
	dsn := fmt.Sprintf("%s?_pragma_key=x'%s'&_pragma_cipher_page_size=4096", dbPath, hex.EncodeToString(key))
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open encrypted ledger: %w", err)
	}
	// PRAGMA rekey applies to one connection; keep the pool at one
	db.SetMaxOpenConns(1)

	// A wrong key only surfaces on the first real query
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to encrypted ledger: %w", err)
	}

	s := &EncryptedLedgerStore{db: db, dbPath: dbPath, key: append([]byte(nil), key...)}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

func (s *EncryptedLedgerStore) createTables() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS ledger (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		snapshot TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);`)
	return err
}

// Load returns the latest snapshot, or (nil, nil) if none was saved yet.
func (s *EncryptedLedgerStore) Load() (*domain.PointLedger, error) {
	var raw string
	err := s.db.QueryRow(`SELECT snapshot FROM ledger WHERE id = 1`).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var ledger domain.PointLedger
	if err := json.Unmarshal([]byte(raw), &ledger); err != nil {
		return nil, fmt.Errorf("failed to decode ledger snapshot: %w", err)
	}
	return &ledger, nil
}

// Save replaces the single snapshot row.
func (s *EncryptedLedgerStore) Save(ledger domain.PointLedger) error {
	data, err := json.Marshal(ledger)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT OR REPLACE INTO ledger (id, snapshot, updated_at) VALUES (1, ?, ?)`,
		string(data), time.Now().Unix())
	return err
}

// RotateKey re-encrypts the ledger under a fresh key and hands it to provider.
// If the new key cannot be stored the database is rekeyed back to the old one.
func (s *EncryptedLedgerStore) RotateKey(provider domain.KeyProvider) error {
	key, err := GenerateKey()
	if err != nil {
		return err
	}
	if err := s.rekey(key); err != nil {
		return fmt.Errorf("failed to rekey ledger: %w", err)
	}
	if err := provider.StoreKey(key); err != nil {
		if rbErr := s.rekey(s.key); rbErr != nil {
			return fmt.Errorf("failed to store new key (%v) and to restore the old one: %w", err, rbErr)
		}
		return err
	}
	s.key = key
	return nil
}

func (s *EncryptedLedgerStore) rekey(key []byte) error {
	_, err := s.db.Exec(fmt.Sprintf(`PRAGMA rekey = "x'%s'"`, hex.EncodeToString(key)))
	return err
}

// Path returns the database file path.
func (s *EncryptedLedgerStore) Path() string {
	return s.dbPath
}

// Close releases the database connection.
func (s *EncryptedLedgerStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ensure EncryptedLedgerStore implements domain.LedgerStore.
var _ domain.LedgerStore = (*EncryptedLedgerStore)(nil)
