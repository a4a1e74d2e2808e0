package storage

import (
	"testing"
	"time"
)

func TestLogAndQuerySecurityEvents(t *testing.T) {
	store := newTestStore(t)

	now := nowUnixMilli()
	account := "alice"

	if err := store.LogSecurityEvent(SecurityEvent{
		EventType: SecurityEventLoginFailed,
		Account:   &account,
		Details:   `{"reason":"bad_password"}`,
		Severity:  SecuritySeverityWarning,
		Timestamp: now - 1_000,
	}); err != nil {
		t.Fatalf("LogSecurityEvent login_failed failed: %v", err)
	}
	if err := store.LogSecurityEvent(SecurityEvent{
		EventType: SecurityEventPayloadAccessDenied,
		Account:   &account,
		Details:   `{"message_id":2}`,
		Severity:  SecuritySeverityCritical,
		Timestamp: now,
	}); err != nil {
		t.Fatalf("LogSecurityEvent payload_access_denied failed: %v", err)
	}

	all, err := store.GetSecurityEvents(SecurityEventFilter{
		Account: account,
		Limit:   10,
	})
	if err != nil {
		t.Fatalf("GetSecurityEvents all failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 security events, got %d", len(all))
	}
	if all[0].EventType != SecurityEventPayloadAccessDenied {
		t.Fatalf("expected newest event type payload_access_denied, got %q", all[0].EventType)
	}
	if all[1].EventType != SecurityEventLoginFailed {
		t.Fatalf("expected older event type login_failed, got %q", all[1].EventType)
	}

	filtered, err := store.GetSecurityEvents(SecurityEventFilter{
		EventType: SecurityEventLoginFailed,
		Account:   account,
		Severity:  SecuritySeverityWarning,
		Limit:     10,
	})
	if err != nil {
		t.Fatalf("GetSecurityEvents filtered failed: %v", err)
	}
	if len(filtered) != 1 {
		t.Fatalf("expected 1 filtered security event, got %d", len(filtered))
	}
	if filtered[0].Details != `{"reason":"bad_password"}` {
		t.Fatalf("unexpected filtered event details: %q", filtered[0].Details)
	}
}

func TestSecurityEventRetentionPrunesOldRows(t *testing.T) {
	store := newTestStore(t)
	store.SetSecurityEventRetention(1 * time.Second)

	now := nowUnixMilli()

	if err := store.LogSecurityEvent(SecurityEvent{
		EventType: "old_event",
		Details:   `{"state":"old"}`,
		Severity:  SecuritySeverityInfo,
		Timestamp: now - 10_000,
	}); err != nil {
		t.Fatalf("LogSecurityEvent old_event failed: %v", err)
	}
	if err := store.LogSecurityEvent(SecurityEvent{
		EventType: "new_event",
		Details:   `{"state":"new"}`,
		Severity:  SecuritySeverityInfo,
		Timestamp: now,
	}); err != nil {
		t.Fatalf("LogSecurityEvent new_event failed: %v", err)
	}

	if err := store.maintain(time.Now()); err != nil {
		t.Fatalf("maintain failed: %v", err)
	}

	events, err := store.GetSecurityEvents(SecurityEventFilter{Limit: 10})
	if err != nil {
		t.Fatalf("GetSecurityEvents failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event after retention prune, got %d", len(events))
	}
	if events[0].EventType != "new_event" {
		t.Fatalf("expected retained event type new_event, got %q", events[0].EventType)
	}
}

func TestCountSecurityEventsMatchesFilter(t *testing.T) {
	store := newTestStore(t)

	alice, blank := "alice", "   "
	for i := 0; i < 3; i++ {
		if err := store.LogSecurityEvent(SecurityEvent{
			EventType: SecurityEventLoginFailed,
			Account:   &alice,
			Severity:  SecuritySeverityWarning,
		}); err != nil {
			t.Fatalf("LogSecurityEvent failed: %v", err)
		}
	}
	if err := store.LogSecurityEvent(SecurityEvent{EventType: SecurityEventFaceMismatch, Account: &blank}); err != nil {
		t.Fatalf("LogSecurityEvent blank account failed: %v", err)
	}

	count, err := store.CountSecurityEvents(SecurityEventFilter{Account: alice, EventType: SecurityEventLoginFailed, Limit: 1})
	if err != nil {
		t.Fatalf("CountSecurityEvents failed: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 matching events, got %d", count)
	}

	events, err := store.GetSecurityEvents(SecurityEventFilter{EventType: SecurityEventFaceMismatch})
	if err != nil {
		t.Fatalf("GetSecurityEvents failed: %v", err)
	}
	if len(events) != 1 || events[0].Account != nil {
		t.Fatalf("expected one event with a nil account, got %+v", events)
	}
	if events[0].Severity != SecuritySeverityInfo || events[0].Details != "{}" {
		t.Fatalf("expected defaults for severity and details, got %+v", events[0])
	}

	if _, err := store.CountSecurityEvents(SecurityEventFilter{Severity: "loud"}); err == nil {
		t.Fatalf("expected invalid severity to be rejected")
	}
	if err := store.LogSecurityEvent(SecurityEvent{EventType: "x", Details: "not json"}); err == nil {
		t.Fatalf("expected invalid details to be rejected")
	}
}

func TestSecurityEventFilterPage(t *testing.T) {
	cases := []struct {
		filter     SecurityEventFilter
		wantLimit  int
		wantOffset int
	}{
		{SecurityEventFilter{}, defaultSecurityEventLimit, 0},
		{SecurityEventFilter{Limit: 5, Offset: 3}, 5, 3},
		{SecurityEventFilter{Limit: 5000, Offset: -1}, maxSecurityEventLimit, 0},
	}
	for _, tc := range cases {
		limit, offset := tc.filter.page()
		if limit != tc.wantLimit || offset != tc.wantOffset {
			t.Fatalf("page(%+v) = %d, %d; want %d, %d", tc.filter, limit, offset, tc.wantLimit, tc.wantOffset)
		}
	}
}
