// Package stego hides short text in the least-significant bits of a lossless raster image.
//
// Bits are written and read in the order named by ScanOrder: pixels row-major from the top
// left, and within each pixel the R, G, then B channel. One payload bit replaces the low bit
// of one channel value. The payload is the secret followed by Sentinel, one byte per
// character, most significant bit first. Characters are limited to code points 0-255
// (Latin-1); Hide rejects anything wider instead of truncating it.
package stego
