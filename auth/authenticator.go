package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"

	"aethersecure/crypto"
	"aethersecure/face"
	"aethersecure/models"
	"aethersecure/storage"
)

const maxUsernameLength = 64

var (
	// ErrInvalidCredentials is returned for every failed login, whatever the cause.
	ErrInvalidCredentials = errors.New("auth: incorrect username or password")
	// ErrInvalidUsername rejects empty, overlong or oddly-charactered usernames.
	ErrInvalidUsername = errors.New("auth: invalid username")
	// ErrPasswordRequired rejects registration without a password.
	ErrPasswordRequired = errors.New("auth: password is required")
)

// AccountStore is the persistence the authenticator needs.
type AccountStore interface {
	CreateAccount(account storage.Account) (*storage.Account, error)
	GetAccount(username string) (*storage.Account, error)
	DeleteAccount(username string) error
	LogSecurityEvent(event storage.SecurityEvent) error
}

// Authenticator registers accounts and checks login credentials.
type Authenticator struct {
	store            AccountStore
	requireFaceMatch bool

	dummyOnce sync.Once
	dummyHash string
}

// NewAuthenticator returns an Authenticator. With requireFaceMatch set, login also needs
// a face embedding matching the enrolled one.
func NewAuthenticator(store AccountStore, requireFaceMatch bool) *Authenticator {
	return &Authenticator{store: store, requireFaceMatch: requireFaceMatch}
}

// Register creates an account. embedding may be nil.
func (a *Authenticator) Register(username, password string, embedding face.Embedding) (*models.Account, error) {
	username = strings.TrimSpace(username)
	if err := validateUsername(username); err != nil {
		return nil, err
	}
	if password == "" {
		return nil, ErrPasswordRequired
	}

	hash, err := crypto.HashPassword(password)
	if err != nil {
		return nil, err
	}

	account := storage.Account{Username: username, PasswordHash: hash}
	if len(embedding) > 0 {
		encoded := embedding.String()
		account.FaceEmbedding = &encoded
	}

	created, err := a.store.CreateAccount(account)
	if err != nil {
		return nil, err
	}
	view := accountView(created)
	return &view, nil
}

// Login verifies a password and, when required or offered, a face embedding.
func (a *Authenticator) Login(username, password string, probe face.Embedding) (*models.Account, error) {
	username = strings.TrimSpace(username)

	account, err := a.store.GetAccount(username)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("load account: %w", err)
	}
	if account == nil {
		// Spend the same bcrypt work as a real comparison.
		crypto.VerifyPassword(password, a.fallbackHash())
		a.recordFailure(storage.SecurityEventLoginFailed, username, "unknown_account")
		return nil, ErrInvalidCredentials
	}
	if !crypto.VerifyPassword(password, account.PasswordHash) {
		a.recordFailure(storage.SecurityEventLoginFailed, username, "bad_password")
		return nil, ErrInvalidCredentials
	}

	if a.requireFaceMatch || (len(probe) > 0 && account.FaceEmbedding != nil) {
		if !faceMatches(account.FaceEmbedding, probe) {
			a.recordFailure(storage.SecurityEventFaceMismatch, username, "face_mismatch")
			return nil, ErrInvalidCredentials
		}
	}

	view := accountView(account)
	return &view, nil
}

// Account returns the public view of one account.
func (a *Authenticator) Account(username string) (*models.Account, error) {
	account, err := a.store.GetAccount(username)
	if err != nil {
		return nil, err
	}
	view := accountView(account)
	return &view, nil
}

// Delete removes an account after re-checking its password. Its messages are kept;
// a later account with the same username does not see them.
func (a *Authenticator) Delete(username, password string) error {
	account, err := a.store.GetAccount(username)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrInvalidCredentials
		}
		return fmt.Errorf("load account: %w", err)
	}
	if !crypto.VerifyPassword(password, account.PasswordHash) {
		a.recordFailure(storage.SecurityEventLoginFailed, username, "bad_password")
		return ErrInvalidCredentials
	}
	return a.store.DeleteAccount(username)
}

func (a *Authenticator) fallbackHash() string {
	a.dummyOnce.Do(func() {
		a.dummyHash, _ = crypto.HashPassword("aethersecure-unknown-account")
	})
	return a.dummyHash
}

func (a *Authenticator) recordFailure(eventType, username, reason string) {
	details, _ := json.Marshal(map[string]string{"reason": reason})
	event := storage.SecurityEvent{
		EventType: eventType,
		Details:   string(details),
		Severity:  storage.SecuritySeverityWarning,
	}
	if username != "" {
		event.Account = &username
	}
	_ = a.store.LogSecurityEvent(event)
}

func faceMatches(enrolled *string, probe face.Embedding) bool {
	if enrolled == nil || len(probe) == 0 {
		return false
	}
	stored, err := face.ParseEmbedding(*enrolled)
	if err != nil {
		return false
	}
	return face.Match(stored, probe)
}

func validateUsername(username string) error {
	if username == "" || len(username) > maxUsernameLength {
		return ErrInvalidUsername
	}
	for _, r := range username {
		if r > unicode.MaxASCII {
			return ErrInvalidUsername
		}
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '-' && r != '.' {
			return ErrInvalidUsername
		}
	}
	return nil
}

func accountView(account *storage.Account) models.Account {
	return models.Account{
		ID:               account.ID,
		Username:         account.Username,
		HasFaceEmbedding: account.FaceEmbedding != nil,
		CreatedAt:        time.UnixMilli(account.CreatedAt).UTC(),
	}
}
