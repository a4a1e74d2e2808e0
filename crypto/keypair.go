package crypto

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const (
	signingPrivatePEMType = "ED25519 PRIVATE KEY"
	signingPublicPEMType  = "ED25519 PUBLIC KEY"
)

// SigningKeyPair is the instance key used to sign session tokens.
type SigningKeyPair struct {
	Private ed25519.PrivateKey
	Public  ed25519.PublicKey
}

// EnsureSigningKeyPair loads the token signing keypair from disk, generating it on first run.
// A missing or stale public key file is rewritten from the private key.
func EnsureSigningKeyPair(privatePath, publicPath string) (*SigningKeyPair, error) {
	privateKey, err := loadPEMKey(privatePath, signingPrivatePEMType, ed25519.PrivateKeySize)
	if err == nil {
		pair := &SigningKeyPair{
			Private: ed25519.PrivateKey(privateKey),
			Public:  ed25519.PrivateKey(privateKey).Public().(ed25519.PublicKey),
		}

		storedPublic, pubErr := loadPEMKey(publicPath, signingPublicPEMType, ed25519.PublicKeySize)
		if pubErr != nil || !bytes.Equal(storedPublic, pair.Public) {
			if err := savePEMKey(publicPath, signingPublicPEMType, pair.Public, 0o644); err != nil {
				return nil, err
			}
		}
		return pair, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	publicKey, newPrivate, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate signing keypair: %w", err)
	}
	if err := savePEMKey(privatePath, signingPrivatePEMType, newPrivate, 0o600); err != nil {
		return nil, err
	}
	if err := savePEMKey(publicPath, signingPublicPEMType, publicKey, 0o644); err != nil {
		return nil, err
	}

	return &SigningKeyPair{Private: newPrivate, Public: publicKey}, nil
}

func loadPEMKey(path, pemType string, size int) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", strings.ToLower(pemType), err)
	}

	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("decode %s: no PEM block", strings.ToLower(pemType))
	}
	if block.Type != pemType {
		return nil, fmt.Errorf("decode %s: unexpected type %q", strings.ToLower(pemType), block.Type)
	}
	if len(block.Bytes) != size {
		return nil, fmt.Errorf("decode %s: invalid key size %d", strings.ToLower(pemType), len(block.Bytes))
	}
	return block.Bytes, nil
}

func savePEMKey(path, pemType string, key []byte, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create key directory: %w", err)
	}

	block := &pem.Block{Type: pemType, Bytes: key}
	if err := os.WriteFile(path, pem.EncodeToMemory(block), perm); err != nil {
		return fmt.Errorf("write %s: %w", strings.ToLower(pemType), err)
	}
	return nil
}

// KeyFingerprint returns the truncated SHA-256 hex fingerprint of a public key.
func KeyFingerprint(publicKey ed25519.PublicKey) string {
	sum := sha256.Sum256(publicKey)
	return hex.EncodeToString(sum[:16])
}

// FormatFingerprint groups fingerprint text in uppercase chunks of 4.
func FormatFingerprint(fingerprint string) string {
	clean := strings.ToUpper(strings.ReplaceAll(fingerprint, " ", ""))

	var b strings.Builder
	for i := 0; i < len(clean); i += 4 {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(clean[i:min(i+4, len(clean))])
	}
	return b.String()
}
