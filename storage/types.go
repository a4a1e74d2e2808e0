package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"aethersecure/models"
)

var (
	// ErrNotFound indicates a requested row does not exist.
	ErrNotFound = errors.New("storage: record not found")
	// ErrAccountExists indicates a username is already registered.
	ErrAccountExists = errors.New("storage: account already exists")
	// ErrMessageUnavailable is returned both when a message does not exist and when the
	// requester is not its recipient, so callers cannot probe for other users' ids.
	ErrMessageUnavailable = errors.New("storage: message not found or unauthorized")
	// ErrIdempotencyConflict indicates a sender reused an idempotency key for a
	// different message.
	ErrIdempotencyConflict = errors.New("storage: idempotency key reused for a different message")
	// ErrUnavailable wraps failures of the database itself.
	ErrUnavailable = errors.New("storage: unavailable")
)

const (
	// SecuritySeverityInfo indicates informational security event context.
	SecuritySeverityInfo = "info"
	// SecuritySeverityWarning indicates potentially suspicious behavior.
	SecuritySeverityWarning = "warning"
	// SecuritySeverityCritical indicates serious security failures.
	SecuritySeverityCritical = "critical"
)

const (
	SecurityEventPayloadAccessDenied = "payload_access_denied"
	SecurityEventLoginFailed         = "login_failed"
	SecurityEventFaceMismatch        = "face_mismatch"
)

// Account is the SQLite representation of a registered user.
type Account struct {
	ID            int64
	Username      string
	PasswordHash  string
	FaceEmbedding *string
	CreatedAt     int64
}

// NewMessage is the input to SendMessage.
type NewMessage struct {
	Sender      string
	Recipient   string
	Scheme      models.Scheme
	Payload     []byte
	DisplayName string
	// IdempotencyKey, when set, makes a repeated send by the same sender return the
	// message stored by the first call.
	IdempotencyKey string
	// Fingerprint identifies the request behind Payload when re-running it would not
	// reproduce the same bytes. A replay then compares fingerprints instead of payloads.
	Fingerprint []byte
}

// Message is a stored message including its opaque payload.
type Message struct {
	ID          int64
	Sender      string
	Recipient   string
	Scheme      models.Scheme
	Payload     []byte
	DisplayName *string
	CreatedAt   int64
	IsRead      bool
}

// Summary returns the metadata view of m.
func (m *Message) Summary() models.MessageSummary {
	summary := models.MessageSummary{
		ID:        m.ID,
		Sender:    m.Sender,
		Recipient: m.Recipient,
		Scheme:    m.Scheme,
		CreatedAt: time.UnixMilli(m.CreatedAt).UTC(),
		IsRead:    m.IsRead,
	}
	if m.DisplayName != nil {
		summary.DisplayName = *m.DisplayName
	}
	return summary
}

// SecurityEvent stores structured security-relevant runtime events.
type SecurityEvent struct {
	ID        int64
	EventType string
	Account   *string
	Details   string
	Severity  string
	Timestamp int64
}

// SecurityEventFilter narrows GetSecurityEvents query results.
type SecurityEventFilter struct {
	EventType     string
	Account       string
	Severity      string
	FromTimestamp *int64
	ToTimestamp   *int64
	Limit         int
	Offset        int
}

type scanner interface {
	Scan(dest ...any) error
}

func validateSecuritySeverity(severity string) error {
	switch severity {
	case SecuritySeverityInfo, SecuritySeverityWarning, SecuritySeverityCritical:
		return nil
	default:
		return fmt.Errorf("invalid security event severity %q", severity)
	}
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}

func nullString(ptr *string) sql.NullString {
	if ptr == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *ptr, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func nowUnixMilli() int64 {
	return time.Now().UnixMilli()
}
