package crypto

// XORTransform XORs data with a repeating key. Applying it twice with the same key
// restores the input.
func XORTransform(data, key []byte) ([]byte, error) {
	if len(key) == 0 {
		return nil, ErrEmptyKey
	}

	out := make([]byte, len(data))
	for i, b := range data {
		out[i] = b ^ key[i%len(key)]
	}
	return out, nil
}
