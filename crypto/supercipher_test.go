package crypto

import (
	"bytes"
	"encoding/base64"
	"errors"
	"testing"
)

func TestRotateWrapsAndPreservesNonLetters(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		shift int
		want  string
	}{
		{name: "upper", text: "HELLO", shift: 3, want: "KHOOR"},
		{name: "wrap lower", text: "xyz", shift: 3, want: "abc"},
		{name: "negative", text: "abc", shift: -3, want: "xyz"},
		{name: "large shift", text: "abc", shift: 55, want: "def"},
		{name: "mixed", text: "Go 1.25, héllo!", shift: 1, want: "Hp 1.25, iémmp!"},
		{name: "empty", text: "", shift: 5, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Rotate(tt.text, tt.shift); got != tt.want {
				t.Fatalf("Rotate(%q, %d) = %q, want %q", tt.text, tt.shift, got, tt.want)
			}
		})
	}
}

func TestRotateInverse(t *testing.T) {
	text := "The Quick Brown Fox, 12345 · ünïcødé"
	for shift := MinShift; shift <= MaxShift; shift++ {
		if got := Rotate(Rotate(text, shift), -shift); got != text {
			t.Fatalf("shift %d: round trip = %q", shift, got)
		}
	}
}

func TestXORTransformSelfInverse(t *testing.T) {
	data := []byte{0x00, 0xff, 0x10, 0x7f, 0x80, 'a', 'b'}
	key := []byte("key")

	masked, err := XORTransform(data, key)
	if err != nil {
		t.Fatalf("XORTransform failed: %v", err)
	}
	if bytes.Equal(masked, data) {
		t.Fatalf("expected masked bytes to differ from input")
	}
	restored, err := XORTransform(masked, key)
	if err != nil {
		t.Fatalf("second XORTransform failed: %v", err)
	}
	if !bytes.Equal(restored, data) {
		t.Fatalf("round trip mismatch: got %v want %v", restored, data)
	}
}

func TestXORTransformRejectsEmptyKey(t *testing.T) {
	if _, err := XORTransform([]byte("data"), nil); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
}

func TestSuperEncryptTextKnownVector(t *testing.T) {
	got, err := SuperEncryptText("HELLO", 3, "k")
	if err != nil {
		t.Fatalf("SuperEncryptText failed: %v", err)
	}
	if got != "ICMkJDk=" {
		t.Fatalf("unexpected ciphertext %q", got)
	}

	plain, err := SuperDecryptText(got, 3, "k")
	if err != nil {
		t.Fatalf("SuperDecryptText failed: %v", err)
	}
	if plain != "HELLO" {
		t.Fatalf("expected HELLO, got %q", plain)
	}
}

func TestSuperCipherRoundTrip(t *testing.T) {
	texts := []string{"", "hello world", "Mixed CASE 123 !?", "multi-byte: żółć 日本語"}
	keys := []string{"k", "secret", "ключ"}

	for _, text := range texts {
		for _, key := range keys {
			for shift := MinShift; shift <= MaxShift; shift += 6 {
				ciphertext, err := SuperEncryptText(text, shift, key)
				if err != nil {
					t.Fatalf("encrypt %q/%d/%q: %v", text, shift, key, err)
				}
				got, err := SuperDecryptText(ciphertext, shift, key)
				if err != nil {
					t.Fatalf("decrypt %q/%d/%q: %v", text, shift, key, err)
				}
				if got != text {
					t.Fatalf("round trip mismatch: got %q want %q", got, text)
				}
			}
		}
	}
}

func TestSuperCipherKeyValidation(t *testing.T) {
	for _, shift := range []int{0, 26, -1} {
		if _, err := SuperEncryptText("x", shift, "k"); !errors.Is(err, ErrInvalidKey) {
			t.Fatalf("shift %d: expected ErrInvalidKey, got %v", shift, err)
		}
		if _, err := SuperDecryptText("eA==", shift, "k"); !errors.Is(err, ErrInvalidKey) {
			t.Fatalf("shift %d: expected ErrInvalidKey on decrypt, got %v", shift, err)
		}
	}
	if _, err := SuperEncryptText("x", 3, ""); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey for empty xor key, got %v", err)
	}
}

func TestSuperDecryptTextFailuresAreUniform(t *testing.T) {
	// 0xff ^ 'k' and 0xfe ^ 'k' never form valid UTF-8 after unmasking with "k".
	invalidUTF8, err := XORTransform([]byte{0xff, 0xfe}, []byte("k"))
	if err != nil {
		t.Fatalf("XORTransform failed: %v", err)
	}

	cases := map[string]string{
		"bad base64":   "@@not-base64@@",
		"invalid utf8": base64.StdEncoding.EncodeToString(invalidUTF8),
	}
	for name, ciphertext := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := SuperDecryptText(ciphertext, 3, "k")
			if err != ErrDecryptionFailed {
				t.Fatalf("expected bare ErrDecryptionFailed, got %v", err)
			}
		})
	}
}
