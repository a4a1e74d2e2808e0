package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

// Authenticated file format: salt(16) || nonce(12) || tag(16) || ciphertext(N).
const (
	SaltSize   = 16
	NonceSize  = gcmNonceSize
	TagSize    = gcmTagSize
	HeaderSize = SaltSize + NonceSize + TagSize

	// PBKDF2Iterations is compiled in; blobs carry only the salt.
	PBKDF2Iterations = 100_000
	// FileKeySize is the derived AES-256 key length.
	FileKeySize = aes256KeySize
)

// randReader is swapped in tests to exercise entropy failures.
var randReader io.Reader = rand.Reader

// DeriveFileKey derives the AES-256 key for a password and salt with PBKDF2-HMAC-SHA256.
func DeriveFileKey(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, PBKDF2Iterations, FileKeySize, sha256.New)
}

// EncryptFile encrypts plaintext under a password-derived key with a fresh random salt
// and nonce. An empty plaintext produces a HeaderSize-byte blob.
func EncryptFile(plaintext []byte, password string) ([]byte, error) {
	header := make([]byte, SaltSize+NonceSize)
	if _, err := io.ReadFull(randReader, header); err != nil {
		return nil, fmt.Errorf("generate salt and nonce: %w", err)
	}
	salt, nonce := header[:SaltSize], header[SaltSize:]

	tag, ciphertext, err := sealDetached(DeriveFileKey(password, salt), nonce, plaintext)
	if err != nil {
		return nil, fmt.Errorf("seal file payload: %w", err)
	}

	blob := make([]byte, 0, HeaderSize+len(ciphertext))
	blob = append(blob, salt...)
	blob = append(blob, nonce...)
	blob = append(blob, tag...)
	blob = append(blob, ciphertext...)
	return blob, nil
}

// DecryptFile reverses EncryptFile. A wrong password and a corrupted blob both return
// exactly ErrDecryptionFailed; no partial plaintext is ever returned.
func DecryptFile(blob []byte, password string) ([]byte, error) {
	if len(blob) < HeaderSize {
		return nil, ErrMalformedBlob
	}

	salt := blob[:SaltSize]
	nonce := blob[SaltSize : SaltSize+NonceSize]
	tag := blob[SaltSize+NonceSize : HeaderSize]
	ciphertext := blob[HeaderSize:]

	return openDetached(DeriveFileKey(password, salt), nonce, tag, ciphertext)
}
