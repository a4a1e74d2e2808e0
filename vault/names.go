package vault

import (
	"path"
	"strings"
)

const encryptedSuffix = ".enc"

// SanitizeFileName reduces a client-supplied name to a bare file name.
func SanitizeFileName(name string) string {
	name = strings.ReplaceAll(strings.TrimSpace(name), "\\", "/")
	name = path.Base(name)
	if name == "." || name == "/" || name == ".." {
		return ""
	}
	name = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f || r == '"' {
			return -1
		}
		return r
	}, name)
	if len(name) > maxDisplayName {
		name = strings.ToValidUTF8(name[:maxDisplayName], "")
	}
	return name
}

// StegoDisplayName names a stego image after its cover. Output is always PNG.
func StegoDisplayName(coverName string) string {
	name := SanitizeFileName(coverName)
	base := strings.TrimSuffix(name, path.Ext(name))
	if base == "" {
		base = "image"
	}
	return "stego_" + base + ".png"
}

// EncryptedDisplayName appends the encrypted-file suffix.
func EncryptedDisplayName(fileName string) string {
	name := SanitizeFileName(fileName)
	if name == "" {
		name = "file"
	}
	return name + encryptedSuffix
}

// DecryptedFileName reverses EncryptedDisplayName, or prefixes names without the suffix.
func DecryptedFileName(fileName string) string {
	name := SanitizeFileName(fileName)
	if trimmed, ok := strings.CutSuffix(name, encryptedSuffix); ok && trimmed != "" {
		return trimmed
	}
	if name == "" {
		name = "file"
	}
	return "decrypted_" + name
}
