package crypto

import (
	"encoding/base64"
	"unicode/utf8"
)

// SuperEncryptText runs plaintext through the rotation layer, then the XOR layer, and
// returns standard padded base64 with no line wrapping.
func SuperEncryptText(plaintext string, shift int, xorKey string) (string, error) {
	if err := checkTextKey(shift, xorKey); err != nil {
		return "", err
	}

	rotated := Rotate(plaintext, shift)
	masked, err := XORTransform([]byte(rotated), []byte(xorKey))
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(masked), nil
}

// SuperDecryptText reverses SuperEncryptText.
//
// Malformed base64 and non-UTF-8 output both return ErrDecryptionFailed. The scheme carries
// no integrity check, so a wrong key that happens to yield valid UTF-8 returns garbage text
// instead of an error; the two cases cannot be told apart at this layer.
func SuperDecryptText(ciphertext string, shift int, xorKey string) (string, error) {
	if err := checkTextKey(shift, xorKey); err != nil {
		return "", err
	}

	masked, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	rotated, err := XORTransform(masked, []byte(xorKey))
	if err != nil {
		return "", err
	}
	if !utf8.Valid(rotated) {
		return "", ErrDecryptionFailed
	}
	return Rotate(string(rotated), -shift), nil
}

func checkTextKey(shift int, xorKey string) error {
	if !ValidShift(shift) {
		return ErrInvalidShift
	}
	if xorKey == "" {
		return ErrEmptyKey
	}
	return nil
}
