package crypto

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestEnsureSigningKeyPairIsStable(t *testing.T) {
	tempDir := t.TempDir()
	privatePath := filepath.Join(tempDir, "keys", "signing_private.pem")
	publicPath := filepath.Join(tempDir, "keys", "signing_public.pem")

	first, err := EnsureSigningKeyPair(privatePath, publicPath)
	if err != nil {
		t.Fatalf("first EnsureSigningKeyPair failed: %v", err)
	}
	second, err := EnsureSigningKeyPair(privatePath, publicPath)
	if err != nil {
		t.Fatalf("second EnsureSigningKeyPair failed: %v", err)
	}

	if !bytes.Equal(first.Private, second.Private) {
		t.Fatalf("expected stable private key across runs")
	}
	if !bytes.Equal(first.Public, second.Public) {
		t.Fatalf("expected stable public key across runs")
	}

	info, err := os.Stat(privatePath)
	if err != nil {
		t.Fatalf("stat private key: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("expected private key mode 0600, got %v", info.Mode().Perm())
	}
}

func TestEnsureSigningKeyPairRewritesMissingPublicKey(t *testing.T) {
	tempDir := t.TempDir()
	privatePath := filepath.Join(tempDir, "signing_private.pem")
	publicPath := filepath.Join(tempDir, "signing_public.pem")

	first, err := EnsureSigningKeyPair(privatePath, publicPath)
	if err != nil {
		t.Fatalf("EnsureSigningKeyPair failed: %v", err)
	}
	if err := os.Remove(publicPath); err != nil {
		t.Fatalf("remove public key: %v", err)
	}

	second, err := EnsureSigningKeyPair(privatePath, publicPath)
	if err != nil {
		t.Fatalf("EnsureSigningKeyPair after removal failed: %v", err)
	}
	if !bytes.Equal(first.Public, second.Public) {
		t.Fatalf("expected public key to be derived from the stored private key")
	}
	if _, err := os.Stat(publicPath); err != nil {
		t.Fatalf("expected public key to be rewritten: %v", err)
	}
}

func TestFormatFingerprint(t *testing.T) {
	if got := FormatFingerprint("abcdef0123456789"); got != "ABCD EF01 2345 6789" {
		t.Fatalf("unexpected format %q", got)
	}
	if got := FormatFingerprint(""); got != "" {
		t.Fatalf("expected empty format, got %q", got)
	}
}
