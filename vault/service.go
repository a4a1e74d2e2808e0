// Package vault composes the encryption schemes with the message store: each send
// transforms its input with one scheme and stores only the resulting blob.
package vault

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"

	"aethersecure/crypto"
	"aethersecure/models"
	"aethersecure/stego"
	"aethersecure/storage"

	"github.com/sirupsen/logrus"
)

const (
	textDisplayName = "message.txt"
	maxDisplayName  = 255
)

// ErrUnknownRecipient is returned when sending to a username with no account.
var ErrUnknownRecipient = errors.New("vault: recipient does not exist")

// Store is the persistence the service needs.
type Store interface {
	GetAccount(username string) (*storage.Account, error)
	SendMessage(msg storage.NewMessage) (models.MessageSummary, error)
	ListInbox(recipient string) ([]models.MessageSummary, error)
	ListOutbox(sender string) ([]models.MessageSummary, error)
	FetchMessage(id int64, requester string) (*storage.Message, error)
	MarkRead(id int64, requester string) error
}

// Notifier is told about every stored message.
type Notifier interface {
	NotifyNewMessage(summary models.MessageSummary)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(summary models.MessageSummary)

// NotifyNewMessage calls f.
func (f NotifierFunc) NotifyNewMessage(summary models.MessageSummary) {
	f(summary)
}

// Envelope addresses one send.
type Envelope struct {
	Sender    string
	Recipient string
	// IdempotencyKey deduplicates client retries; empty means never deduplicate.
	IdempotencyKey string
}

// Service implements the messaging operations.
type Service struct {
	store    Store
	notifier Notifier
	log      *logrus.Entry
}

// NewService returns a Service. notifier and logger may be nil.
func NewService(store Store, notifier Notifier, logger *logrus.Logger) *Service {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Service{
		store:    store,
		notifier: notifier,
		log:      logger.WithField("component", "vault"),
	}
}

// SendText super-encrypts plaintext and stores the base64 ciphertext.
func (s *Service) SendText(env Envelope, plaintext string, shift int, xorKey string) (models.MessageSummary, error) {
	ciphertext, err := crypto.SuperEncryptText(plaintext, shift, xorKey)
	if err != nil {
		return models.MessageSummary{}, err
	}
	return s.send(env, models.SchemeTextSuperCipher, []byte(ciphertext), textDisplayName, nil)
}

// SendStego hides secret in cover and stores the resulting PNG.
func (s *Service) SendStego(env Envelope, cover []byte, coverName, secret string) (models.MessageSummary, error) {
	stegoImage, err := stego.Hide(cover, secret)
	if err != nil {
		return models.MessageSummary{}, err
	}
	return s.send(env, models.SchemeSteganographic, stegoImage, StegoDisplayName(coverName), nil)
}

// SendFile encrypts data with a password-derived key and stores the blob. Every call
// draws a fresh salt and nonce, so retries are recognised by the plaintext's digest.
func (s *Service) SendFile(env Envelope, data []byte, fileName, password string) (models.MessageSummary, error) {
	blob, err := crypto.EncryptFile(data, password)
	if err != nil {
		return models.MessageSummary{}, err
	}
	var fingerprint []byte
	if env.IdempotencyKey != "" {
		sum := sha256.Sum256(data)
		fingerprint = sum[:]
	}
	return s.send(env, models.SchemeAuthenticatedFile, blob, EncryptedDisplayName(fileName), fingerprint)
}

// SendRaw stores a blob the client already encrypted. The payload is not inspected.
func (s *Service) SendRaw(env Envelope, scheme models.Scheme, payload []byte, displayName string) (models.MessageSummary, error) {
	if !scheme.Valid() {
		return models.MessageSummary{}, fmt.Errorf("invalid scheme %q", scheme)
	}
	return s.send(env, scheme, payload, SanitizeFileName(displayName), nil)
}

// Inbox lists the metadata of messages addressed to username.
func (s *Service) Inbox(username string) ([]models.MessageSummary, error) {
	return s.store.ListInbox(username)
}

// Outbox lists the metadata of messages sent by username.
func (s *Service) Outbox(username string) ([]models.MessageSummary, error) {
	return s.store.ListOutbox(username)
}

// Fetch returns a message with its payload if requester is the recipient.
func (s *Service) Fetch(id int64, requester string) (*storage.Message, error) {
	message, err := s.store.FetchMessage(id, requester)
	if err != nil {
		if errors.Is(err, storage.ErrMessageUnavailable) {
			s.log.WithFields(logrus.Fields{
				"message_id": id,
				"requester":  requester,
			}).Warn("payload access denied")
		}
		return nil, err
	}
	return message, nil
}

// MarkRead flags one of requester's inbox messages as read.
func (s *Service) MarkRead(id int64, requester string) error {
	return s.store.MarkRead(id, requester)
}

func (s *Service) send(env Envelope, scheme models.Scheme, payload []byte, displayName string, fingerprint []byte) (models.MessageSummary, error) {
	recipient := strings.TrimSpace(env.Recipient)
	if recipient == "" {
		return models.MessageSummary{}, ErrUnknownRecipient
	}
	if _, err := s.store.GetAccount(recipient); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.MessageSummary{}, ErrUnknownRecipient
		}
		return models.MessageSummary{}, fmt.Errorf("look up recipient: %w", err)
	}

	summary, err := s.store.SendMessage(storage.NewMessage{
		Sender:         env.Sender,
		Recipient:      recipient,
		Scheme:         scheme,
		Payload:        payload,
		DisplayName:    displayName,
		IdempotencyKey: env.IdempotencyKey,
		Fingerprint:    fingerprint,
	})
	if err != nil {
		return models.MessageSummary{}, err
	}

	s.log.WithFields(logrus.Fields{
		"message_id": summary.ID,
		"sender":     summary.Sender,
		"recipient":  summary.Recipient,
		"scheme":     summary.Scheme,
		"bytes":      len(payload),
	}).Info("message stored")

	if s.notifier != nil {
		s.notifier.NotifyNewMessage(summary)
	}
	return summary, nil
}
