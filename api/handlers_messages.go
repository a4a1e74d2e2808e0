package api

import (
	"net/http"
	"strings"

	"aethersecure/models"
	"aethersecure/vault"
)

const idempotencyKeyHeader = "Idempotency-Key"

type sendTextRequest struct {
	RecipientUsername string `json:"recipient_username"`
	Plaintext         string `json:"plaintext"`
	CaesarShift       int    `json:"caesar_shift"`
	XORKey            string `json:"xor_key"`
}

func (s *Server) envelope(r *http.Request, recipient string) vault.Envelope {
	return vault.Envelope{
		Sender:         usernameFrom(r.Context()),
		Recipient:      strings.TrimSpace(recipient),
		IdempotencyKey: strings.TrimSpace(r.Header.Get(idempotencyKeyHeader)),
	}
}

func (s *Server) handleInbox(w http.ResponseWriter, r *http.Request) {
	messages, err := s.vault.Inbox(usernameFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

func (s *Server) handleOutbox(w http.ResponseWriter, r *http.Request) {
	messages, err := s.vault.Outbox(usernameFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

func (s *Server) handleSendText(w http.ResponseWriter, r *http.Request) {
	var req sendTextRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	summary, err := s.vault.SendText(s.envelope(r, req.RecipientUsername), req.Plaintext, req.CaesarShift, req.XORKey)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, summary)
}

func (s *Server) handleSendStego(w http.ResponseWriter, r *http.Request) {
	if err := s.parseMultipart(r); err != nil {
		s.writeError(w, r, err)
		return
	}
	recipient, err := requiredField(r, "recipient")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	message, err := requiredField(r, "message")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	cover, coverName, err := requiredFile(r, "image")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	summary, err := s.vault.SendStego(s.envelope(r, recipient), cover, coverName, message)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, summary)
}

func (s *Server) handleSendFile(w http.ResponseWriter, r *http.Request) {
	if err := s.parseMultipart(r); err != nil {
		s.writeError(w, r, err)
		return
	}
	recipient, err := requiredField(r, "recipient")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	password, err := requiredPassword(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	data, fileName, err := requiredFile(r, "file")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	summary, err := s.vault.SendFile(s.envelope(r, recipient), data, fileName, password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, summary)
}

// handleSendRaw stores a blob the client encrypted itself.
func (s *Server) handleSendRaw(w http.ResponseWriter, r *http.Request) {
	if err := s.parseMultipart(r); err != nil {
		s.writeError(w, r, err)
		return
	}
	recipient, err := requiredField(r, "recipient")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	rawScheme, err := requiredField(r, "scheme")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	scheme, err := models.ParseScheme(rawScheme)
	if err != nil {
		s.writeError(w, r, badRequest("unknown scheme"))
		return
	}
	payload, fileName, err := requiredFile(r, "file")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if name := optionalField(r, "display_name"); name != "" {
		fileName = name
	}

	summary, err := s.vault.SendRaw(s.envelope(r, recipient), scheme, payload, fileName)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, summary)
}

func (s *Server) handleMessageData(w http.ResponseWriter, r *http.Request) {
	id, err := messageID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	message, err := s.vault.Fetch(id, usernameFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	name := ""
	if message.DisplayName != nil {
		name = *message.DisplayName
	}
	writeAttachment(w, message.Scheme.ContentType(), name, message.Payload)
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	id, err := messageID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.vault.MarkRead(id, usernameFrom(r.Context())); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
