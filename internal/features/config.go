package features

import "fmt"

// Config is the HOG recipe the classifier was fit on. Changing any field
// changes the descriptor length and invalidates the model artifact.
type Config struct {
	Orientations  int  // orientation bins over [0, 180)
	CellSize      int  // cell side in pixels
	BlockSize     int  // block side in cells
	ImageSize     int  // side of the resampled grid
	TransformSqrt bool // square-root contrast transform before gradients
}

// DescriptorLen is the descriptor length produced by DefaultConfig.
const DescriptorLen = 6084

func DefaultConfig() Config {
	return Config{
		Orientations:  9,
		CellSize:      16,
		BlockSize:     2,
		ImageSize:     224,
		TransformSqrt: true,
	}
}

func (c Config) cells() int {
	return c.ImageSize / c.CellSize
}

func (c Config) blocks() int {
	return c.cells() - c.BlockSize + 1
}

// DescriptorLen returns the number of values Extract produces under c.
func (c Config) DescriptorLen() int {
	n := c.blocks()
	if n <= 0 {
		return 0
	}
	return n * n * c.BlockSize * c.BlockSize * c.Orientations
}

func (c Config) Validate() error {
	switch {
	case c.Orientations <= 0:
		return fmt.Errorf("orientations must be positive, got %d", c.Orientations)
	case c.CellSize <= 0:
		return fmt.Errorf("cell size must be positive, got %d", c.CellSize)
	case c.BlockSize <= 0:
		return fmt.Errorf("block size must be positive, got %d", c.BlockSize)
	case c.blocks() <= 0:
		return fmt.Errorf("image size %d is too small for %dx%d cell blocks of %dpx",
			c.ImageSize, c.BlockSize, c.BlockSize, c.CellSize)
	}
	return nil
}
