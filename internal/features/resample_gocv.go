//go:build gocv
// +build gocv

package features

import (
	"errors"
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// OpenCVResampler matches the preprocessing the model was trained with:
// cvtColor to gray, then resize with INTER_LINEAR.
// gocv image conversions produce BGR mats, hence ColorBGRToGray below.
type OpenCVResampler struct{}

func defaultResampler() Resampler {
	return OpenCVResampler{}
}

func (OpenCVResampler) Resample(img image.Image, size int) (*image.Gray, error) {
	if isEmpty(img) {
		return nil, ErrEmptyImage
	}

	gray, err := toGrayMat(img)
	if err != nil {
		return nil, err
	}
	defer gray.Close()

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(gray, &resized, image.Pt(size, size), 0, 0, gocv.InterpolationLinear)

	out, err := resized.ToImage()
	if err != nil {
		return nil, fmt.Errorf("mat to image: %w", err)
	}
	return toGray(out), nil
}

func toGrayMat(img image.Image) (gocv.Mat, error) {
	if g, ok := img.(*image.Gray); ok {
		mat, err := gocv.ImageGrayToMatGray(g)
		if err != nil {
			return gocv.NewMat(), fmt.Errorf("gray image to mat: %w", err)
		}
		return mat, nil
	}

	bgr, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("image to mat: %w", err)
	}
	defer bgr.Close()
	if bgr.Empty() {
		return gocv.NewMat(), errors.New("empty image")
	}

	gray := gocv.NewMat()
	gocv.CvtColor(bgr, &gray, gocv.ColorBGRToGray)
	return gray, nil
}
