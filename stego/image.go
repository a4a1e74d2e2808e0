package stego

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// losslessFormats lists the decoders whose pixel values survive a round trip exactly.
// JPEG and other lossy formats are refused even if a decoder is registered elsewhere.
var losslessFormats = map[string]bool{
	"png":  true,
	"bmp":  true,
	"tiff": true,
}

// decodeRGB decodes a lossless image into an opaque 8-bit RGB grid. Alpha is dropped,
// matching a plain RGB conversion.
func decodeRGB(data []byte) (*image.NRGBA, error) {
	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	if !losslessFormats[format] {
		return nil, fmt.Errorf("%w: %s is not a lossless format", ErrUnsupportedImage, format)
	}

	bounds := src.Bounds()
	rgb := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	if nrgba, ok := src.(*image.NRGBA); ok {
		// Copy stored channel values as-is; a premultiplied round trip would perturb
		// translucent pixels.
		for y := 0; y < bounds.Dy(); y++ {
			from := nrgba.PixOffset(bounds.Min.X, bounds.Min.Y+y)
			copy(rgb.Pix[y*rgb.Stride:(y+1)*rgb.Stride], nrgba.Pix[from:from+rgb.Stride])
		}
	} else {
		draw.Draw(rgb, rgb.Bounds(), src, bounds.Min, draw.Src)
	}
	for i := 3; i < len(rgb.Pix); i += 4 {
		rgb.Pix[i] = 0xff
	}
	return rgb, nil
}

// encodePNG writes img as PNG. Output is always lossless; never re-encode stego images
// with a lossy codec.
func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
