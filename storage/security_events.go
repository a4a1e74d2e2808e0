package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	defaultSecurityEventLimit = 100
	maxSecurityEventLimit     = 1000
)

// SetSecurityEventRetention sets how long security events are kept by the maintenance loop.
func (s *Store) SetSecurityEventRetention(retention time.Duration) {
	if retention <= 0 {
		retention = DefaultSecurityEventRetention
	}
	s.securityEventRetention = retention
}

// LogSecurityEvent records one audit event. Details must be a JSON document; secrets never
// belong in it.
func (s *Store) LogSecurityEvent(event SecurityEvent) error {
	if err := event.normalize(); err != nil {
		return err
	}

	if _, err := s.db.Exec(
		`INSERT INTO security_events (event_type, account, details, severity, timestamp)
		 VALUES (?, ?, ?, ?, ?)`,
		event.EventType,
		nullString(event.Account),
		event.Details,
		event.Severity,
		event.Timestamp,
	); err != nil {
		return unavailable(fmt.Sprintf("insert security event %q", event.EventType), err)
	}
	return nil
}

func (e *SecurityEvent) normalize() error {
	e.EventType = strings.TrimSpace(e.EventType)
	if e.EventType == "" {
		return errors.New("event_type is required")
	}
	if e.Severity == "" {
		e.Severity = SecuritySeverityInfo
	}
	if err := validateSecuritySeverity(e.Severity); err != nil {
		return err
	}
	if e.Details == "" {
		e.Details = "{}"
	}
	if !json.Valid([]byte(e.Details)) {
		return errors.New("details must be valid JSON text")
	}
	if e.Timestamp == 0 {
		e.Timestamp = nowUnixMilli()
	}
	if e.Account != nil {
		if trimmed := strings.TrimSpace(*e.Account); trimmed != "" {
			e.Account = &trimmed
		} else {
			e.Account = nil
		}
	}
	return nil
}

// GetSecurityEvents returns matching events, newest first.
func (s *Store) GetSecurityEvents(filter SecurityEventFilter) ([]SecurityEvent, error) {
	where, args, err := filter.where()
	if err != nil {
		return nil, err
	}
	limit, offset := filter.page()

	query := `SELECT id, event_type, account, details, severity, timestamp FROM security_events` +
		where + ` ORDER BY timestamp DESC, id DESC LIMIT ? OFFSET ?`
	rows, err := s.db.Query(query, append(args, limit, offset)...)
	if err != nil {
		return nil, unavailable("get security events", err)
	}
	defer rows.Close()

	events := make([]SecurityEvent, 0)
	for rows.Next() {
		event, err := scanSecurityEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan security event row: %w", err)
		}
		events = append(events, *event)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate security event rows", err)
	}

	return events, nil
}

// CountSecurityEvents returns how many events match filter, ignoring Limit and Offset.
func (s *Store) CountSecurityEvents(filter SecurityEventFilter) (int, error) {
	where, args, err := filter.where()
	if err != nil {
		return 0, err
	}

	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM security_events`+where, args...).Scan(&count); err != nil {
		return 0, unavailable("count security events", err)
	}
	return count, nil
}

func (f SecurityEventFilter) where() (string, []any, error) {
	if f.Severity != "" {
		if err := validateSecuritySeverity(f.Severity); err != nil {
			return "", nil, err
		}
	}

	var (
		clauses []string
		args    []any
	)
	add := func(clause string, arg any) {
		clauses = append(clauses, clause)
		args = append(args, arg)
	}
	if f.EventType != "" {
		add("event_type = ?", f.EventType)
	}
	if f.Account != "" {
		add("account = ?", f.Account)
	}
	if f.Severity != "" {
		add("severity = ?", f.Severity)
	}
	if f.FromTimestamp != nil {
		add("timestamp >= ?", *f.FromTimestamp)
	}
	if f.ToTimestamp != nil {
		add("timestamp <= ?", *f.ToTimestamp)
	}

	if len(clauses) == 0 {
		return "", nil, nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args, nil
}

func (f SecurityEventFilter) page() (limit, offset int) {
	limit = min(f.Limit, maxSecurityEventLimit)
	if limit <= 0 {
		limit = defaultSecurityEventLimit
	}
	return limit, max(f.Offset, 0)
}

// PruneSecurityEvents removes security events older than cutoffTimestamp.
func (s *Store) PruneSecurityEvents(cutoffTimestamp int64) (int64, error) {
	if cutoffTimestamp <= 0 {
		return 0, errors.New("cutoff timestamp must be > 0")
	}

	res, err := s.db.Exec(`DELETE FROM security_events WHERE timestamp < ?`, cutoffTimestamp)
	if err != nil {
		return 0, unavailable("prune security events", err)
	}
	return res.RowsAffected()
}

func scanSecurityEvent(row scanner) (*SecurityEvent, error) {
	var (
		event   SecurityEvent
		account sql.NullString
	)
	if err := row.Scan(&event.ID, &event.EventType, &account, &event.Details, &event.Severity, &event.Timestamp); err != nil {
		return nil, err
	}
	event.Account = stringPtr(account)
	return &event, nil
}
