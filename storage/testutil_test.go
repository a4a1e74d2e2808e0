package storage

import (
	"testing"

	"aethersecure/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	dataDir := t.TempDir()
	store, _, err := Open(dataDir)
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close test store: %v", err)
		}
	})

	return store
}

func mustCreateAccount(t *testing.T, store *Store, username string) {
	t.Helper()

	if _, err := store.CreateAccount(Account{
		Username:     username,
		PasswordHash: "hash-" + username,
	}); err != nil {
		t.Fatalf("create account %q: %v", username, err)
	}
}

func mustSend(t *testing.T, store *Store, sender, recipient string, payload []byte) models.MessageSummary {
	t.Helper()

	summary, err := store.SendMessage(NewMessage{
		Sender:    sender,
		Recipient: recipient,
		Scheme:    models.SchemeTextSuperCipher,
		Payload:   payload,
	})
	if err != nil {
		t.Fatalf("send %s -> %s: %v", sender, recipient, err)
	}
	return summary
}
