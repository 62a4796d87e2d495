package images

import (
	"image"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"
)

// ErrTensorTooSmall is returned when the destination buffer cannot hold the input blob.
var ErrTensorTooSmall = errors.New("destination tensor too small")

// PrepareInput writes img into dst as a planar (CHW) float32 blob of size x size.
//
// The image is stretched to the square input resolution with Lanczos3, pixel
// values are scaled to [0, 1], and planes are ordered red, green, blue. This
// matches gocv.BlobFromImage(frame, 1/255, size, 0, swapRB=true, crop=false)
// on a BGR frame.
//
// Arguments:
//   - img: The frame to prepare.
//   - size: The square network input resolution (416 for YOLOv4-tiny).
//   - dst: The destination buffer, at least 3*size*size long.
//
// Returns:
//   - error: ErrTensorTooSmall if dst is too short.
func PrepareInput(img image.Image, size int, dst []float32) error {
	channelSize := size * size
	if size <= 0 || len(dst) < channelSize*3 {
		return errors.Wrapf(ErrTensorTooSmall, "holds %d floats, needs %d", len(dst), channelSize*3)
	}
	red := dst[0:channelSize]
	green := dst[channelSize : channelSize*2]
	blue := dst[channelSize*2 : channelSize*3]

	b := img.Bounds()
	if b.Dx() != size || b.Dy() != size {
		img = resize.Resize(uint(size), uint(size), img, resize.Lanczos3)
		b = img.Bounds()
	}

	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			red[i] = float32(r>>8) / 255.0
			green[i] = float32(g>>8) / 255.0
			blue[i] = float32(bl>>8) / 255.0
			i++
		}
	}
	return nil
}
