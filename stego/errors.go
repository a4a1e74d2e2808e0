package stego

import "errors"

var (
	// ErrPayloadTooLarge indicates the cover image has too few pixels for the payload.
	ErrPayloadTooLarge = errors.New("stego: payload too large for cover image")
	// ErrNoPayloadFound indicates the image was exhausted without reaching the sentinel.
	ErrNoPayloadFound = errors.New("stego: no payload found")
	// ErrUnsupportedText indicates a secret that cannot be embedded one byte per character.
	ErrUnsupportedText = errors.New("stego: unsupported secret text")
	// ErrUnsupportedImage indicates an undecodable or lossy image.
	ErrUnsupportedImage = errors.New("stego: unsupported image")
)
