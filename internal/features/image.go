package features

import (
	"errors"
	"fmt"
	"image"
	"image/color"
)

var ErrEmptyImage = errors.New("image has no pixels")

// FromSamples wraps an interleaved 8-bit sample buffer with 1 (gray) or
// 3 (RGB) channels.
func FromSamples(width, height, channels int, pix []uint8) (image.Image, error) {
	if width <= 0 || height <= 0 {
		return nil, ErrEmptyImage
	}
	if channels != 1 && channels != 3 {
		return nil, fmt.Errorf("unsupported channel count %d", channels)
	}
	if want := width * height * channels; len(pix) != want {
		return nil, fmt.Errorf("expected %d samples for %dx%dx%d, got %d", want, width, height, channels, len(pix))
	}

	rect := image.Rect(0, 0, width, height)
	if channels == 1 {
		gray := image.NewGray(rect)
		copy(gray.Pix, pix)
		return gray, nil
	}

	rgba := image.NewRGBA(rect)
	for i := 0; i < width*height; i++ {
		rgba.Pix[4*i] = pix[3*i]
		rgba.Pix[4*i+1] = pix[3*i+1]
		rgba.Pix[4*i+2] = pix[3*i+2]
		rgba.Pix[4*i+3] = 0xff
	}
	return rgba, nil
}

// toGray converts img to single-channel luminance. Gray images are
// returned unchanged.
func toGray(img image.Image) *image.Gray {
	if gray, ok := img.(*image.Gray); ok {
		return gray
	}

	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.GrayModel.Convert(img.At(x, y)).(color.Gray)
			gray.Pix[(y-b.Min.Y)*gray.Stride+(x-b.Min.X)] = c.Y
		}
	}
	return gray
}

func isEmpty(img image.Image) bool {
	if img == nil {
		return true
	}
	return img.Bounds().Empty()
}
