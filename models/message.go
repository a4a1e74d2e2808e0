package models

import "time"

// MessageSummary is the metadata view of a stored message. It never carries the payload.
type MessageSummary struct {
	ID          int64     `json:"id"`
	Sender      string    `json:"sender"`
	Recipient   string    `json:"recipient"`
	Scheme      Scheme    `json:"scheme"`
	DisplayName string    `json:"display_name,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	IsRead      bool      `json:"is_read"`
}

// MessageEvent is pushed to a recipient's live connections when a message arrives.
type MessageEvent struct {
	Type    string         `json:"type"`
	Message MessageSummary `json:"message"`
}

// MessageEventNew is the MessageEvent type for a newly stored message.
const MessageEventNew = "new_message"
