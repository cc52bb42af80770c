package features

import (
	"fmt"
	"image"
)

// Extractor turns images into HOG descriptors. It holds no mutable state
// and may be shared between goroutines.
type Extractor struct {
	cfg       Config
	resampler Resampler
}

// NewExtractor returns an extractor for cfg. A nil resampler selects the
// build's default backend.
func NewExtractor(cfg Config, resampler Resampler) (*Extractor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid hog config: %w", err)
	}
	if resampler == nil {
		resampler = defaultResampler()
	}
	return &Extractor{cfg: cfg, resampler: resampler}, nil
}

// NewDefaultExtractor uses DefaultConfig and the default resampler.
func NewDefaultExtractor() *Extractor {
	return &Extractor{cfg: DefaultConfig(), resampler: defaultResampler()}
}

func (e *Extractor) Config() Config {
	return e.cfg
}

// Extract converts img to grayscale, resamples it to the configured square
// grid and returns its HOG descriptor. Uniform images are valid input and
// produce an all-zero descriptor.
func (e *Extractor) Extract(img image.Image) ([]float32, error) {
	if isEmpty(img) {
		return nil, ErrEmptyImage
	}

	gray, err := e.resampler.Resample(img, e.cfg.ImageSize)
	if err != nil {
		return nil, fmt.Errorf("resample: %w", err)
	}

	descriptor := HOG(gray, e.cfg)
	if want := e.cfg.DescriptorLen(); len(descriptor) != want {
		return nil, fmt.Errorf("descriptor has %d values, expected %d", len(descriptor), want)
	}
	return descriptor, nil
}

// Extract runs the default extractor.
func Extract(img image.Image) ([]float32, error) {
	return NewDefaultExtractor().Extract(img)
}
