package models

import "fmt"

// Scheme names how a stored payload was protected. The server stores the payload
// opaquely and never holds the key for any scheme.
type Scheme string

const (
	// SchemeTextSuperCipher is base64 text from the Caesar+XOR super-cipher.
	SchemeTextSuperCipher Scheme = "text_super_cipher"
	// SchemeSteganographic is a PNG with a hidden message in its pixel LSBs.
	SchemeSteganographic Scheme = "steganographic"
	// SchemeAuthenticatedFile is a PBKDF2 + AES-256-GCM blob.
	SchemeAuthenticatedFile Scheme = "authenticated_file"
)

// Schemes lists every supported scheme.
var Schemes = []Scheme{SchemeTextSuperCipher, SchemeSteganographic, SchemeAuthenticatedFile}

// Valid reports whether s is one of the supported schemes.
func (s Scheme) Valid() bool {
	switch s {
	case SchemeTextSuperCipher, SchemeSteganographic, SchemeAuthenticatedFile:
		return true
	default:
		return false
	}
}

// ContentType is the media type a payload of this scheme is served with.
func (s Scheme) ContentType() string {
	switch s {
	case SchemeTextSuperCipher:
		return "text/plain; charset=utf-8"
	case SchemeSteganographic:
		return "image/png"
	default:
		return "application/octet-stream"
	}
}

// ParseScheme validates a scheme name.
func ParseScheme(raw string) (Scheme, error) {
	s := Scheme(raw)
	if !s.Valid() {
		return "", fmt.Errorf("invalid scheme %q", raw)
	}
	return s, nil
}
