package images

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/chai2010/webp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestFormatFromPath maps extensions to formats regardless of case.
func TestFormatFromPath(t *testing.T) {
	tests := []struct {
		path     string
		expected ImageFormat
		wantErr  bool
	}{
		{path: "frame-1.jpg", expected: FormatJPEG},
		{path: "/tmp/frame-1.JPEG", expected: FormatJPEG},
		{path: "frame.png", expected: FormatPNG},
		{path: "frame.webp", expected: FormatWebP},
		{path: "frame.bmp", wantErr: true},
		{path: "README", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			format, err := FormatFromPath(tt.path)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, format)
		})
	}
}

// TestImage_Decode decodes PNG and lossless WebP frames.
func TestImage_Decode(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 4, 3))
	src.Set(1, 1, color.RGBA{R: 255, A: 255})

	var pngData bytes.Buffer
	require.NoError(t, png.Encode(&pngData, src))

	var webpData bytes.Buffer
	require.NoError(t, webp.Encode(&webpData, src, &webp.Options{Lossless: true}))

	for _, img := range []Image{
		{Format: FormatPNG, Data: pngData.Bytes()},
		{Format: FormatWebP, Data: webpData.Bytes()},
	} {
		t.Run(string(img.Format), func(t *testing.T) {
			decoded, err := img.Decode()
			require.NoError(t, err)
			assert.Equal(t, 4, decoded.Bounds().Dx())
			assert.Equal(t, 3, decoded.Bounds().Dy())

			r, g, _, _ := decoded.At(1, 1).RGBA()
			assert.Equal(t, uint32(0xffff), r)
			assert.Zero(t, g)
		})
	}
}

// TestImage_Decode_Errors rejects empty, corrupt and unknown data.
func TestImage_Decode_Errors(t *testing.T) {
	_, err := Image{Format: FormatPNG}.Decode()
	assert.Error(t, err)

	_, err = Image{Format: FormatJPEG, Data: []byte("not a jpeg")}.Decode()
	assert.Error(t, err)

	_, err = Image{Format: "gif", Data: []byte{1}}.Decode()
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}
