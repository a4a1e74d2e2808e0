package storage

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"aethersecure/models"
)

// SendMessage stores a new immutable message and returns its metadata. The insert is
// atomic: concurrent readers see either every field or no row at all.
//
// When msg.IdempotencyKey is set and the sender already used it, the earlier message is
// returned instead of storing a duplicate. Reusing the key for a different recipient,
// scheme, payload or display name fails with ErrIdempotencyConflict.
func (s *Store) SendMessage(msg NewMessage) (models.MessageSummary, error) {
	msg.Sender = strings.TrimSpace(msg.Sender)
	msg.Recipient = strings.TrimSpace(msg.Recipient)
	if msg.Sender == "" {
		return models.MessageSummary{}, errors.New("sender is required")
	}
	if msg.Recipient == "" {
		return models.MessageSummary{}, errors.New("recipient is required")
	}
	if !msg.Scheme.Valid() {
		return models.MessageSummary{}, fmt.Errorf("invalid scheme %q", msg.Scheme)
	}
	payload := msg.Payload
	if payload == nil {
		payload = []byte{}
	}

	var displayName *string
	if name := strings.TrimSpace(msg.DisplayName); name != "" {
		displayName = &name
	}

	tx, err := s.db.Begin()
	if err != nil {
		return models.MessageSummary{}, unavailable("begin send transaction", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if msg.IdempotencyKey != "" {
		rec, err := lookupReceipt(tx, msg.Sender, msg.IdempotencyKey)
		if err != nil {
			return models.MessageSummary{}, err
		}
		if rec != nil {
			existing, err := getMessage(tx, rec.messageID)
			if err != nil {
				return models.MessageSummary{}, unavailable("load replayed message", err)
			}
			if !rec.matches(existing, msg, payload, displayName) {
				return models.MessageSummary{}, ErrIdempotencyConflict
			}
			return existing.Summary(), nil
		}
	}

	// created_at never goes backwards relative to id, even if the wall clock does.
	res, err := tx.Exec(
		`INSERT INTO messages (
			sender,
			recipient,
			scheme,
			payload,
			display_name,
			created_at,
			is_read
		) VALUES (?, ?, ?, ?, ?, MAX(?, COALESCE((SELECT MAX(created_at) FROM messages), 0)), 0)`,
		msg.Sender,
		msg.Recipient,
		string(msg.Scheme),
		payload,
		nullString(displayName),
		nowUnixMilli(),
	)
	if err != nil {
		return models.MessageSummary{}, unavailable("insert message", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.MessageSummary{}, unavailable("read message id", err)
	}

	var createdAt int64
	if err := tx.QueryRow(`SELECT created_at FROM messages WHERE id = ?`, id).Scan(&createdAt); err != nil {
		return models.MessageSummary{}, unavailable("read message timestamp", err)
	}

	if msg.IdempotencyKey != "" {
		if err := insertReceipt(tx, msg.Sender, msg.IdempotencyKey, id, createdAt, msg.Fingerprint); err != nil {
			return models.MessageSummary{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return models.MessageSummary{}, unavailable("commit send transaction", err)
	}

	stored := Message{
		ID:          id,
		Sender:      msg.Sender,
		Recipient:   msg.Recipient,
		Scheme:      msg.Scheme,
		DisplayName: displayName,
		CreatedAt:   createdAt,
	}
	return stored.Summary(), nil
}

// ListInbox returns metadata for every message addressed to recipient, newest first.
// Like every read below, it skips messages left by an earlier account of the same name.
func (s *Store) ListInbox(recipient string) ([]models.MessageSummary, error) {
	return s.listSummaries("recipient", recipient)
}

// ListOutbox returns metadata for every message sent by sender, newest first.
func (s *Store) ListOutbox(sender string) ([]models.MessageSummary, error) {
	return s.listSummaries("sender", sender)
}

func (s *Store) listSummaries(column, account string) ([]models.MessageSummary, error) {
	if account == "" {
		return nil, fmt.Errorf("%s is required", column)
	}

	rows, err := s.db.Query(
		`SELECT
			id,
			sender,
			recipient,
			scheme,
			display_name,
			created_at,
			is_read
		FROM messages
		WHERE `+column+` = ? AND id > `+historyAfter+`
		ORDER BY created_at DESC, id DESC`,
		account,
		account,
	)
	if err != nil {
		return nil, unavailable(fmt.Sprintf("list messages by %s", column), err)
	}
	defer rows.Close()

	summaries := make([]models.MessageSummary, 0)
	for rows.Next() {
		message, err := scanMessageMeta(rows)
		if err != nil {
			return nil, unavailable("scan message row", err)
		}
		summaries = append(summaries, message.Summary())
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate message rows", err)
	}

	return summaries, nil
}

// FetchMessage returns the full message if requester is its recipient. A missing id and
// a foreign message both return exactly ErrMessageUnavailable and both are recorded as
// a security event.
func (s *Store) FetchMessage(id int64, requester string) (*Message, error) {
	if id <= 0 || requester == "" {
		s.recordDeniedFetch(id, requester)
		return nil, ErrMessageUnavailable
	}

	message, err := getMessage(s.db, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.recordDeniedFetch(id, requester)
			return nil, ErrMessageUnavailable
		}
		return nil, unavailable(fmt.Sprintf("get message %d", id), err)
	}
	if message.Recipient != requester {
		s.recordDeniedFetch(id, requester)
		return nil, ErrMessageUnavailable
	}
	var after int64
	if err := s.db.QueryRow(`SELECT `+historyAfter, requester).Scan(&after); err != nil {
		return nil, unavailable(fmt.Sprintf("read history of %q", requester), err)
	}
	if message.ID <= after {
		s.recordDeniedFetch(id, requester)
		return nil, ErrMessageUnavailable
	}

	return message, nil
}

// FetchPayload returns only the payload bytes of a message, under the same access rule
// as FetchMessage.
func (s *Store) FetchPayload(id int64, requester string) ([]byte, error) {
	message, err := s.FetchMessage(id, requester)
	if err != nil {
		return nil, err
	}
	return message.Payload, nil
}

// MarkRead flags a message as read. Only the recipient may do so.
func (s *Store) MarkRead(id int64, requester string) error {
	if id <= 0 || requester == "" {
		return ErrMessageUnavailable
	}

	res, err := s.db.Exec(
		`UPDATE messages SET is_read = 1 WHERE id = ? AND recipient = ? AND id > `+historyAfter,
		id,
		requester,
		requester,
	)
	if err != nil {
		return unavailable(fmt.Sprintf("mark message %d read", id), err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return unavailable("read rows affected for mark read", err)
	}
	if rowsAffected == 0 {
		return ErrMessageUnavailable
	}
	return nil
}

func (s *Store) recordDeniedFetch(id int64, requester string) {
	details, _ := json.Marshal(map[string]any{"message_id": id})
	event := SecurityEvent{
		EventType: SecurityEventPayloadAccessDenied,
		Details:   string(details),
		Severity:  SecuritySeverityWarning,
	}
	if requester != "" {
		event.Account = &requester
	}
	_ = s.LogSecurityEvent(event)
}

// historyAfter selects the history_after of the account named by the bound parameter,
// or 0 when no such account exists.
const historyAfter = `COALESCE((SELECT history_after FROM accounts WHERE username = ?), 0)`

type queryRower interface {
	QueryRow(query string, args ...any) *sql.Row
}

// matches reports whether msg repeats the send that produced existing.
func (r *receipt) matches(existing *Message, msg NewMessage, payload []byte, displayName *string) bool {
	if existing.Recipient != msg.Recipient || existing.Scheme != msg.Scheme {
		return false
	}
	if (existing.DisplayName == nil) != (displayName == nil) {
		return false
	}
	if displayName != nil && *existing.DisplayName != *displayName {
		return false
	}
	if len(r.fingerprint) > 0 || len(msg.Fingerprint) > 0 {
		return bytes.Equal(r.fingerprint, msg.Fingerprint)
	}
	return bytes.Equal(existing.Payload, payload)
}

func getMessage(q queryRower, id int64) (*Message, error) {
	row := q.QueryRow(
		`SELECT
			id,
			sender,
			recipient,
			scheme,
			payload,
			display_name,
			created_at,
			is_read
		FROM messages
		WHERE id = ?`,
		id,
	)
	return scanMessage(row)
}

func scanMessage(row scanner) (*Message, error) {
	var (
		message     Message
		scheme      string
		displayName sql.NullString
		isRead      int
	)
	if err := row.Scan(
		&message.ID,
		&message.Sender,
		&message.Recipient,
		&scheme,
		&message.Payload,
		&displayName,
		&message.CreatedAt,
		&isRead,
	); err != nil {
		return nil, err
	}

	if message.Payload == nil {
		message.Payload = []byte{}
	}
	message.Scheme = models.Scheme(scheme)
	message.DisplayName = stringPtr(displayName)
	message.IsRead = isRead == 1
	return &message, nil
}

func scanMessageMeta(row scanner) (*Message, error) {
	var (
		message     Message
		scheme      string
		displayName sql.NullString
		isRead      int
	)
	if err := row.Scan(
		&message.ID,
		&message.Sender,
		&message.Recipient,
		&scheme,
		&displayName,
		&message.CreatedAt,
		&isRead,
	); err != nil {
		return nil, err
	}

	message.Scheme = models.Scheme(scheme)
	message.DisplayName = stringPtr(displayName)
	message.IsRead = isRead == 1
	return &message, nil
}
