package images

import (
	"bytes"
	"image"
	"image/jpeg"
	"image/png"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	"github.com/pkg/errors"
)

// ErrUnsupportedFormat is returned for files that are not a known image format.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// ImageFormat represents supported image formats
type ImageFormat string

// ImageFormat constants
const (
	// FormatJPEG is the JPEG image format.
	FormatJPEG ImageFormat = "jpeg"
	// FormatWebP is the WebP image format.
	FormatWebP ImageFormat = "webp"
	// FormatPNG is the PNG image format.
	FormatPNG ImageFormat = "png"
)

// Image is an encoded frame read from disk or the network.
type Image struct {
	// The format of the image.
	Format ImageFormat `json:"format" yaml:"format"`
	// The data of the image.
	Data []byte `json:"data" yaml:"data"`
}

// FormatFromPath returns the format implied by the file extension.
//
// Arguments:
//   - path: The file name or path.
//
// Returns:
//   - ImageFormat: The format.
//   - error: ErrUnsupportedFormat for any other extension.
func FormatFromPath(path string) (ImageFormat, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return FormatJPEG, nil
	case ".png":
		return FormatPNG, nil
	case ".webp":
		return FormatWebP, nil
	default:
		return "", errors.Wrap(ErrUnsupportedFormat, path)
	}
}

// Decode decodes the image data.
//
// Returns:
//   - image.Image: The decoded image.
//   - error: Error if the data is empty, corrupt or of an unknown format.
func (i Image) Decode() (image.Image, error) {
	if len(i.Data) == 0 {
		return nil, errors.New("empty image data")
	}

	r := bytes.NewReader(i.Data)
	switch i.Format {
	case FormatJPEG:
		return jpeg.Decode(r)
	case FormatPNG:
		return png.Decode(r)
	case FormatWebP:
		return webp.Decode(r)
	default:
		return nil, errors.Wrapf(ErrUnsupportedFormat, "%q", i.Format)
	}
}
