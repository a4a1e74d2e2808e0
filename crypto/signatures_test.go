package crypto

import (
	"path/filepath"
	"testing"
)

func newTestSigningKey(t *testing.T) *SigningKeyPair {
	t.Helper()

	dir := t.TempDir()
	keys, err := EnsureSigningKeyPair(filepath.Join(dir, "priv.pem"), filepath.Join(dir, "pub.pem"))
	if err != nil {
		t.Fatalf("EnsureSigningKeyPair failed: %v", err)
	}
	return keys
}

func TestSignatureValidity(t *testing.T) {
	keys := newTestSigningKey(t)

	data := []byte("signed payload")
	signature, err := keys.Sign(data)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	if !keys.Verify(data, signature) {
		t.Fatalf("expected signature verification to succeed")
	}
}

func TestSignatureTamperingRejected(t *testing.T) {
	keys := newTestSigningKey(t)

	signature, err := keys.Sign([]byte("message to protect"))
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	if keys.Verify([]byte("message to protect!"), signature) {
		t.Fatalf("expected signature verification to fail for tampered data")
	}
	if keys.Verify([]byte("message to protect"), signature[:10]) {
		t.Fatalf("expected truncated signature to be rejected")
	}
}
