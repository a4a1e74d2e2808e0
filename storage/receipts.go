package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type receipt struct {
	messageID   int64
	fingerprint []byte
}

func lookupReceipt(tx *sql.Tx, sender, key string) (*receipt, error) {
	var rec receipt
	err := tx.QueryRow(
		`SELECT message_id, fingerprint FROM send_receipts WHERE sender = ? AND idempotency_key = ?`,
		sender,
		key,
	).Scan(&rec.messageID, &rec.fingerprint)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("look up send receipt", err)
	}
	return &rec, nil
}

func insertReceipt(tx *sql.Tx, sender, key string, messageID, createdAt int64, fingerprint []byte) error {
	if _, err := tx.Exec(
		`INSERT INTO send_receipts (sender, idempotency_key, message_id, created_at, fingerprint)
		VALUES (?, ?, ?, ?, ?)`,
		sender,
		key,
		messageID,
		createdAt,
		fingerprint,
	); err != nil {
		return unavailable("insert send receipt", err)
	}
	return nil
}

// SetReceiptRetention configures how long idempotency keys are remembered.
func (s *Store) SetReceiptRetention(retention time.Duration) {
	if retention <= 0 {
		retention = DefaultReceiptRetention
	}
	s.receiptRetention = retention
}

// PruneReceipts removes send receipts older than cutoffTimestamp. A pruned key no longer
// deduplicates; the messages themselves are untouched.
func (s *Store) PruneReceipts(cutoffTimestamp int64) (int64, error) {
	if cutoffTimestamp <= 0 {
		return 0, errors.New("cutoff timestamp must be > 0")
	}

	res, err := s.db.Exec(`DELETE FROM send_receipts WHERE created_at < ?`, cutoffTimestamp)
	if err != nil {
		return 0, unavailable("prune send receipts", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("read rows affected for receipt prune: %w", err)
	}

	return rowsAffected, nil
}
