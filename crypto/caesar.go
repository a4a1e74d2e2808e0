package crypto

const (
	// MinShift is the smallest rotation accepted by the text super-cipher.
	MinShift = 1
	// MaxShift is the largest rotation accepted by the text super-cipher.
	MaxShift = 25

	alphabetSize = 26
)

// Rotate applies a Caesar rotation to Latin letters and passes every other character through.
//
// Any shift is accepted; it is reduced mod 26, so Rotate(Rotate(s, n), -n) == s.
// Letters are ASCII and UTF-8 continuation bytes are never ASCII, so the rotation works
// byte-wise and leaves multi-byte characters intact.
func Rotate(text string, shift int) string {
	shift %= alphabetSize
	if shift < 0 {
		shift += alphabetSize
	}
	if shift == 0 {
		return text
	}

	out := []byte(text)
	for i, c := range out {
		switch {
		case c >= 'a' && c <= 'z':
			out[i] = 'a' + (c-'a'+byte(shift))%alphabetSize
		case c >= 'A' && c <= 'Z':
			out[i] = 'A' + (c-'A'+byte(shift))%alphabetSize
		}
	}
	return string(out)
}

// ValidShift reports whether shift is usable as a super-cipher key.
func ValidShift(shift int) bool {
	return shift >= MinShift && shift <= MaxShift
}
