package crypto

import (
	"crypto/ed25519"
	"errors"
	"fmt"
)

// Sign signs data with the instance signing key.
func (k *SigningKeyPair) Sign(data []byte) ([]byte, error) {
	if k == nil || len(k.Private) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("sign: %w", ErrInvalidKey)
	}
	if len(data) == 0 {
		return nil, errors.New("data is required")
	}

	return ed25519.Sign(k.Private, data), nil
}

// Verify checks a signature produced by Sign. Malformed inputs are a failed verification.
func (k *SigningKeyPair) Verify(data, signature []byte) bool {
	if k == nil || len(k.Public) != ed25519.PublicKeySize {
		return false
	}
	if len(data) == 0 || len(signature) != ed25519.SignatureSize {
		return false
	}

	return ed25519.Verify(k.Public, data, signature)
}
