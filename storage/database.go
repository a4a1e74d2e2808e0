package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const (
	// DefaultDBFileName is the SQLite filename under the vault data dir.
	DefaultDBFileName = "vault.db"
	// DefaultMaintenanceInterval is how often the WAL is truncated and expired rows pruned.
	DefaultMaintenanceInterval = time.Hour
	// DefaultSecurityEventRetention controls automatic security event pruning.
	DefaultSecurityEventRetention = 90 * 24 * time.Hour
	// DefaultReceiptRetention bounds how long an idempotency key replays its message.
	DefaultReceiptRetention = 24 * time.Hour
)

type migration struct {
	name string
	sql  string
}

// migrations are applied in order; PRAGMA user_version records how many have run.
var migrations = []migration{
	{"accounts", `
CREATE TABLE IF NOT EXISTS accounts (
  id             INTEGER PRIMARY KEY AUTOINCREMENT,
  username       TEXT NOT NULL UNIQUE,
  password_hash  TEXT NOT NULL,
  face_embedding TEXT,
  created_at     INTEGER NOT NULL
);
`},
	{"messages", `
CREATE TABLE IF NOT EXISTS messages (
  id           INTEGER PRIMARY KEY AUTOINCREMENT,
  sender       TEXT NOT NULL CHECK(sender <> ''),
  recipient    TEXT NOT NULL CHECK(recipient <> ''),
  scheme       TEXT NOT NULL CHECK(scheme IN ('text_super_cipher','steganographic','authenticated_file')),
  payload      BLOB NOT NULL,
  display_name TEXT,
  created_at   INTEGER NOT NULL,
  is_read      INTEGER NOT NULL DEFAULT 0
);
`},
	{"messages_recipient_index", `
CREATE INDEX IF NOT EXISTS idx_messages_recipient_time
ON messages (recipient, created_at DESC, id DESC);
`},
	{"messages_sender_index", `
CREATE INDEX IF NOT EXISTS idx_messages_sender_time
ON messages (sender, created_at DESC, id DESC);
`},
	{"messages_created_index", `
CREATE INDEX IF NOT EXISTS idx_messages_created_at
ON messages (created_at);
`},
	{"messages_immutable_trigger", `
CREATE TRIGGER IF NOT EXISTS messages_content_immutable
BEFORE UPDATE OF sender, recipient, scheme, payload, display_name, created_at ON messages
BEGIN
  SELECT RAISE(ABORT, 'message content is immutable');
END;
`},
	{"send_receipts", `
CREATE TABLE IF NOT EXISTS send_receipts (
  sender          TEXT NOT NULL,
  idempotency_key TEXT NOT NULL,
  message_id      INTEGER NOT NULL,
  created_at      INTEGER NOT NULL,
  PRIMARY KEY (sender, idempotency_key)
);
`},
	{"send_receipts_created_index", `
CREATE INDEX IF NOT EXISTS idx_send_receipts_created_at
ON send_receipts (created_at);
`},
	{"security_events", `
CREATE TABLE IF NOT EXISTS security_events (
  id         INTEGER PRIMARY KEY AUTOINCREMENT,
  event_type TEXT NOT NULL,
  account    TEXT,
  details    TEXT NOT NULL,
  severity   TEXT NOT NULL CHECK(severity IN ('info','warning','critical')),
  timestamp  INTEGER NOT NULL
);
`},
	{"security_events_time_index", `
CREATE INDEX IF NOT EXISTS idx_security_events_time
ON security_events (timestamp DESC, id DESC);
`},
	{"security_events_type_index", `
CREATE INDEX IF NOT EXISTS idx_security_events_type
ON security_events (event_type, timestamp DESC, id DESC);
`},
	{"security_events_account_index", `
CREATE INDEX IF NOT EXISTS idx_security_events_account
ON security_events (account, timestamp DESC, id DESC);
`},
	// history_after is the highest message id that existed when the account was created.
	// Messages at or below it belong to an earlier holder of the same username.
	{"accounts_history_after", `
ALTER TABLE accounts ADD COLUMN history_after INTEGER NOT NULL DEFAULT 0;
`},
	{"send_receipts_fingerprint", `
ALTER TABLE send_receipts ADD COLUMN fingerprint BLOB;
`},
}

// Store is a thin wrapper around a SQLite connection.
type Store struct {
	db *sql.DB

	maintenanceInterval    time.Duration
	maintenanceStop        chan struct{}
	maintenanceWG          sync.WaitGroup
	securityEventRetention time.Duration
	receiptRetention       time.Duration
	closeOnce              sync.Once
}

// Open opens (or creates) vault.db under the given data directory and runs migrations.
func Open(dataDir string) (*Store, string, error) {
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, "", fmt.Errorf("create storage directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, DefaultDBFileName)
	store, err := OpenPath(dbPath)
	if err != nil {
		return nil, "", err
	}

	return store, dbPath, nil
}

// OpenPath opens SQLite at an explicit path and runs schema migrations.
func OpenPath(dbPath string) (*Store, error) {
	// Immediate transactions take the write lock up front so concurrent sends queue on
	// busy_timeout instead of failing a read-to-write upgrade.
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000&_txlock=immediate", filepath.ToSlash(dbPath))
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite database: %w", err)
	}

	store := &Store{
		db:                     db,
		maintenanceInterval:    DefaultMaintenanceInterval,
		maintenanceStop:        make(chan struct{}),
		securityEventRetention: DefaultSecurityEventRetention,
		receiptRetention:       DefaultReceiptRetention,
	}
	if err := store.enableWALMode(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := store.applyMigrations(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := store.maintain(time.Now()); err != nil {
		_ = db.Close()
		return nil, err
	}
	store.startMaintenanceLoop()

	return store, nil
}

// Close closes the SQLite connection. Calls made after Close fail with ErrUnavailable.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	var closeErr error
	s.closeOnce.Do(func() {
		if s.maintenanceStop != nil {
			close(s.maintenanceStop)
			s.maintenanceWG.Wait()
		}
		closeErr = s.db.Close()
	})
	return closeErr
}

func (s *Store) applyMigrations() error {
	var version int
	if err := s.db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	if version >= len(migrations) {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin migration transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for i := version; i < len(migrations); i++ {
		if _, err := tx.Exec(migrations[i].sql); err != nil {
			return fmt.Errorf("apply migration %d (%s): %w", i+1, migrations[i].name, err)
		}
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d;", i+1)); err != nil {
			return fmt.Errorf("set schema version %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration transaction: %w", err)
	}

	return nil
}

func (s *Store) enableWALMode() error {
	var journalMode string
	if err := s.db.QueryRow("PRAGMA journal_mode=WAL;").Scan(&journalMode); err != nil {
		return fmt.Errorf("enable WAL mode: %w", err)
	}
	if !strings.EqualFold(journalMode, "wal") {
		return fmt.Errorf("enable WAL mode: unexpected journal mode %q", journalMode)
	}
	return nil
}

func (s *Store) checkpointWAL() error {
	if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE);"); err != nil {
		return fmt.Errorf("wal checkpoint truncate: %w", err)
	}
	return nil
}

func (s *Store) startMaintenanceLoop() {
	interval := s.maintenanceInterval
	if interval <= 0 || s.maintenanceStop == nil {
		return
	}

	s.maintenanceWG.Add(1)
	go func() {
		defer s.maintenanceWG.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case now := <-ticker.C:
				_ = s.maintain(now)
			case <-s.maintenanceStop:
				return
			}
		}
	}()
}

// maintain truncates the WAL and drops receipts and security events past retention.
func (s *Store) maintain(now time.Time) error {
	var errs []error
	if err := s.checkpointWAL(); err != nil {
		errs = append(errs, err)
	}
	if s.receiptRetention > 0 {
		if _, err := s.PruneReceipts(now.Add(-s.receiptRetention).UnixMilli()); err != nil {
			errs = append(errs, err)
		}
	}
	if s.securityEventRetention > 0 {
		if _, err := s.PruneSecurityEvents(now.Add(-s.securityEventRetention).UnixMilli()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
