// Package common contains the math, image and logging helpers shared by the pipeline, the renderer backends and the viewers.
// They are plain value types and functions, not interface-wrapped structs.
package common

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// ImageFormat describes the channel layout of raw texture pixels.
type ImageFormat int

const (
	ImageFormatRGBA ImageFormat = iota
	ImageFormatBGRA
	ImageFormatRGB
	ImageFormatBGR
	ImageFormatLuminanceAlpha
	ImageFormatLuminance
	ImageFormatAlpha
)

// String returns a readable name for the format.
func (f ImageFormat) String() string {
	switch f {
	case ImageFormatRGBA:
		return "RGBA"
	case ImageFormatBGRA:
		return "BGRA"
	case ImageFormatRGB:
		return "RGB"
	case ImageFormatBGR:
		return "BGR"
	case ImageFormatLuminanceAlpha:
		return "LuminanceAlpha"
	case ImageFormatLuminance:
		return "Luminance"
	case ImageFormatAlpha:
		return "Alpha"
	default:
		return fmt.Sprintf("ImageFormat(%d)", int(f))
	}
}

// Components returns the number of bytes per pixel for the format.
//
// Returns:
//   - int: 4 for RGBA/BGRA, 3 for RGB/BGR, 2 for luminance-alpha, 1 for luminance or alpha, 0 if unknown
func (f ImageFormat) Components() int {
	switch f {
	case ImageFormatRGBA, ImageFormatBGRA:
		return 4
	case ImageFormatRGB, ImageFormatBGR:
		return 3
	case ImageFormatLuminanceAlpha:
		return 2
	case ImageFormatLuminance, ImageFormatAlpha:
		return 1
	default:
		return 0
	}
}

// UnpackAlignment returns the row alignment to use when uploading pixels of this format.
// Power-of-two pixel sizes keep their natural alignment, everything else is byte aligned.
func (f ImageFormat) UnpackAlignment() int {
	c := f.Components()
	if c > 0 && c&(c-1) == 0 {
		return c
	}
	return 1
}

// ToRGBA expands tightly packed pixels of the given format into RGBA8.
// Luminance is replicated into the color channels; formats without alpha get an opaque alpha.
//
// Parameters:
//   - f: the layout of pixels
//   - pixels: tightly packed source data
//   - width, height: image size in pixels
//
// Returns:
//   - []byte: RGBA8 data with 4*width*height bytes
//   - error: error if the data length does not match the dimensions or the format is unknown
func ToRGBA(f ImageFormat, pixels []byte, width, height int) ([]byte, error) {
	c := f.Components()
	if c == 0 {
		return nil, fmt.Errorf("unknown image format %d", int(f))
	}
	n := width * height
	if len(pixels) < n*c {
		return nil, fmt.Errorf("pixel data too short for %dx%d %s: have %d bytes, need %d", width, height, f, len(pixels), n*c)
	}

	out := make([]byte, n*4)
	for i := 0; i < n; i++ {
		src := pixels[i*c : i*c+c]
		dst := out[i*4 : i*4+4]
		switch f {
		case ImageFormatRGBA:
			copy(dst, src)
		case ImageFormatBGRA:
			dst[0], dst[1], dst[2], dst[3] = src[2], src[1], src[0], src[3]
		case ImageFormatRGB:
			dst[0], dst[1], dst[2], dst[3] = src[0], src[1], src[2], 0xff
		case ImageFormatBGR:
			dst[0], dst[1], dst[2], dst[3] = src[2], src[1], src[0], 0xff
		case ImageFormatLuminanceAlpha:
			dst[0], dst[1], dst[2], dst[3] = src[0], src[0], src[0], src[1]
		case ImageFormatLuminance:
			dst[0], dst[1], dst[2], dst[3] = src[0], src[0], src[0], 0xff
		case ImageFormatAlpha:
			dst[0], dst[1], dst[2], dst[3] = 0xff, 0xff, 0xff, src[0]
		}
	}
	return out, nil
}

// DecodeImage decodes a PNG, JPEG, BMP or WebP image into tightly packed RGBA pixels.
// Reference: https://pkg.go.dev/image
//
// Parameters:
//   - r: the encoded image stream
//
// Returns:
//   - []byte: RGBA pixel data (4 bytes per pixel, top row first)
//   - int: width in pixels
//   - int: height in pixels
//   - error: error if decoding fails
func DecodeImage(r io.Reader) ([]byte, int, int, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)

	return rgba.Pix, bounds.Dx(), bounds.Dy(), nil
}

// DecodeImageBytes is DecodeImage over an in-memory buffer.
func DecodeImageBytes(data []byte) ([]byte, int, int, error) {
	return DecodeImage(bytes.NewReader(data))
}

// DecodeImageFile opens path and decodes it with DecodeImage.
func DecodeImageFile(path string) ([]byte, int, int, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to open image file %s: %w", path, err)
	}
	defer file.Close()

	pix, w, h, err := DecodeImage(file)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("%s: %w", path, err)
	}
	return pix, w, h, nil
}
