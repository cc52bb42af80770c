//go:build !gocv
// +build !gocv

package features

func defaultResampler() Resampler {
	return BilinearResampler{}
}
