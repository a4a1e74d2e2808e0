package crypto

import "errors"

var (
	// ErrInvalidKey indicates empty or malformed key material.
	ErrInvalidKey = errors.New("crypto: invalid key")
	// ErrDecryptionFailed covers wrong keys, wrong passwords and corrupted ciphertext alike.
	ErrDecryptionFailed = errors.New("crypto: decryption failed")
	// ErrMalformedBlob indicates an authenticated blob shorter than the fixed header.
	ErrMalformedBlob = errors.New("crypto: malformed blob")

	// ErrEmptyKey is returned by the stream layer for a zero-length key. It matches ErrInvalidKey.
	ErrEmptyKey error = &keyError{reason: "key is empty"}
	// ErrInvalidShift is returned for a rotation shift outside MinShift..MaxShift. It matches ErrInvalidKey.
	ErrInvalidShift error = &keyError{reason: "shift out of range"}
)

type keyError struct {
	reason string
}

func (e *keyError) Error() string {
	return ErrInvalidKey.Error() + ": " + e.reason
}

func (e *keyError) Is(target error) bool {
	return target == ErrInvalidKey
}
