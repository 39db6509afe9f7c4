package common

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImageFormatComponents(t *testing.T) {
	tests := []struct {
		format     ImageFormat
		components int
		alignment  int
	}{
		{ImageFormatRGBA, 4, 4},
		{ImageFormatBGRA, 4, 4},
		{ImageFormatRGB, 3, 1},
		{ImageFormatBGR, 3, 1},
		{ImageFormatLuminanceAlpha, 2, 2},
		{ImageFormatLuminance, 1, 1},
		{ImageFormatAlpha, 1, 1},
		{ImageFormat(99), 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.format.String(), func(t *testing.T) {
			assert.Equal(t, tt.components, tt.format.Components())
			assert.Equal(t, tt.alignment, tt.format.UnpackAlignment())
		})
	}
}

func TestToRGBA(t *testing.T) {
	tests := []struct {
		name   string
		format ImageFormat
		in     []byte
		want   []byte
	}{
		{"bgra swaps red and blue", ImageFormatBGRA, []byte{1, 2, 3, 4}, []byte{3, 2, 1, 4}},
		{"rgb gets opaque alpha", ImageFormatRGB, []byte{1, 2, 3}, []byte{1, 2, 3, 255}},
		{"bgr", ImageFormatBGR, []byte{1, 2, 3}, []byte{3, 2, 1, 255}},
		{"luminance alpha", ImageFormatLuminanceAlpha, []byte{9, 7}, []byte{9, 9, 9, 7}},
		{"luminance", ImageFormatLuminance, []byte{9}, []byte{9, 9, 9, 255}},
		{"alpha", ImageFormatAlpha, []byte{7}, []byte{255, 255, 255, 7}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToRGBA(tt.format, tt.in, 1, 1)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ToRGBA(ImageFormatRGBA, []byte{1, 2, 3}, 1, 1)
	assert.Error(t, err)
}

func TestDecodeImageBytes(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	src.Set(0, 0, color.NRGBA{R: 255, A: 255})
	src.Set(1, 0, color.NRGBA{B: 255, A: 255})

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, src))

	pix, w, h, err := DecodeImageBytes(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 2, w)
	assert.Equal(t, 1, h)
	assert.Equal(t, []byte{255, 0, 0, 255, 0, 0, 255, 255}, pix)

	_, _, _, err = DecodeImageBytes([]byte("not an image"))
	assert.Error(t, err)
}

func TestCoalesce(t *testing.T) {
	assert.Equal(t, 3, Coalesce(0, 0, 3, 4))
	assert.Equal(t, "", Coalesce("", ""))
	assert.Equal(t, float32(60), Coalesce(float32(0), float32(60)))
}

func TestClamp(t *testing.T) {
	assert.Equal(t, float32(1), Clamp(float32(3), 0, 1))
	assert.Equal(t, 0, Clamp(-2, 0, 10))
	assert.Equal(t, 5, Clamp(5, 0, 10))
	assert.Equal(t, 4, Clamp(1, 4, 2))
}
