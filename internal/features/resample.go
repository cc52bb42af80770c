package features

import (
	"image"

	"github.com/nfnt/resize"
)

// Resampler converts an arbitrary image into a size×size grayscale grid.
// Aspect ratio is not preserved.
type Resampler interface {
	Resample(img image.Image, size int) (*image.Gray, error)
}

// BilinearResampler converts to luminance first and then resizes with
// bilinear interpolation. It needs no cgo.
type BilinearResampler struct{}

func (BilinearResampler) Resample(img image.Image, size int) (*image.Gray, error) {
	if isEmpty(img) {
		return nil, ErrEmptyImage
	}

	gray := toGray(img)
	resized := resize.Resize(uint(size), uint(size), gray, resize.Bilinear)
	return toGray(resized), nil
}
