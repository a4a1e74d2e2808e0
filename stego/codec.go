package stego

import (
	"bytes"
	"fmt"
	"image"
	"strings"
)

const (
	// Sentinel terminates every embedded payload.
	Sentinel = "::EOF::"
	// ScanOrder is the bit layout contract between Hide and Extract. Changing the
	// iteration order breaks every previously produced image, so bump the version.
	ScanOrder = "row-major/rgb/lsb1"
	// ScanOrderVersion is advertised alongside ScanOrder.
	ScanOrderVersion = 1

	channelsPerPixel = 3
	bitsPerChar      = 8
)

// Hide embeds secret into cover and returns the stego image as PNG.
func Hide(cover []byte, secret string) ([]byte, error) {
	// Extract stops at the first sentinel, so a secret ending in a sentinel
	// prefix such as "::EOF" would come back truncated.
	if strings.Index(secret+Sentinel, Sentinel) != len(secret) {
		return nil, fmt.Errorf("%w: secret overlaps the %q sentinel", ErrUnsupportedText, Sentinel)
	}
	payload, err := encodeLatin1(secret + Sentinel)
	if err != nil {
		return nil, err
	}

	img, err := decodeRGB(cover)
	if err != nil {
		return nil, err
	}
	if err := embed(img, payload); err != nil {
		return nil, err
	}
	return encodePNG(img)
}

// Extract recovers the secret embedded by Hide.
func Extract(stegoImage []byte) (string, error) {
	img, err := decodeRGB(stegoImage)
	if err != nil {
		return "", err
	}

	payload, ok := scan(img)
	if !ok {
		return "", ErrNoPayloadFound
	}
	return decodeLatin1(payload), nil
}

// Capacity returns the longest secret, in characters, that Hide can embed in cover.
func Capacity(cover []byte) (int, error) {
	img, err := decodeRGB(cover)
	if err != nil {
		return 0, err
	}
	return max(channelBits(img)/bitsPerChar-len(Sentinel), 0), nil
}

func channelBits(img *image.NRGBA) int {
	b := img.Bounds()
	return b.Dx() * b.Dy() * channelsPerPixel
}

func embed(img *image.NRGBA, payload []byte) error {
	total := len(payload) * bitsPerChar
	if available := channelBits(img); available < total {
		need := (total + channelsPerPixel - 1) / channelsPerPixel
		return fmt.Errorf("%w: need %d pixels, cover has %d", ErrPayloadTooLarge, need, available/channelsPerPixel)
	}

	b := img.Bounds()
	bit := 0
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			off := img.PixOffset(x, y)
			for c := 0; c < channelsPerPixel; c++ {
				if bit == total {
					return nil
				}
				v := payload[bit/bitsPerChar] >> (bitsPerChar - 1 - bit%bitsPerChar) & 1
				img.Pix[off+c] = img.Pix[off+c]&0xfe | v
				bit++
			}
		}
	}
	return nil
}

// scan reads LSBs in ScanOrder and returns the bytes preceding the first sentinel.
func scan(img *image.NRGBA) ([]byte, bool) {
	sentinel := []byte(Sentinel)
	out := make([]byte, 0, 64)

	var cur byte
	n := 0
	b := img.Bounds()
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			off := img.PixOffset(x, y)
			for c := 0; c < channelsPerPixel; c++ {
				cur = cur<<1 | img.Pix[off+c]&1
				n++
				if n < bitsPerChar {
					continue
				}
				out = append(out, cur)
				cur, n = 0, 0
				if bytes.HasSuffix(out, sentinel) {
					return out[:len(out)-len(sentinel)], true
				}
			}
		}
	}
	return nil, false
}

func encodeLatin1(s string) ([]byte, error) {
	out := make([]byte, 0, len(s))
	for i, r := range s {
		if r > 0xff {
			return nil, fmt.Errorf("%w: character %q at byte %d does not fit in one byte", ErrUnsupportedText, r, i)
		}
		out = append(out, byte(r))
	}
	return out, nil
}

func decodeLatin1(b []byte) string {
	runes := make([]rune, len(b))
	for i, c := range b {
		runes[i] = rune(c)
	}
	return string(runes)
}
