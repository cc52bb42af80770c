package features

import (
	"image"
	"math"
)

// l1Epsilon keeps uniform blocks finite under L1 normalisation.
const l1Epsilon = 1e-5

// HOG computes the histogram of oriented gradients of gray under cfg.
// Cells that do not fit entirely inside the image are dropped.
func HOG(gray *image.Gray, cfg Config) []float32 {
	b := gray.Bounds()
	w, h := b.Dx(), b.Dy()

	intensity := make([]float64, w*h)
	for y := 0; y < h; y++ {
		row := gray.Pix[gray.PixOffset(b.Min.X, b.Min.Y+y):]
		for x := 0; x < w; x++ {
			v := float64(row[x])
			if cfg.TransformSqrt {
				v = math.Sqrt(v)
			}
			intensity[y*w+x] = v
		}
	}

	magnitude, orientation := gradients(intensity, w, h)

	cellsX, cellsY := w/cfg.CellSize, h/cfg.CellSize
	hist := cellHistograms(magnitude, orientation, w, cellsX, cellsY, cfg)

	return normalizeBlocks(hist, cellsX, cellsY, cfg)
}

// gradients uses central differences and leaves the outermost rows and
// columns at zero.
func gradients(intensity []float64, w, h int) (magnitude, orientation []float64) {
	magnitude = make([]float64, w*h)
	orientation = make([]float64, w*h)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var gy, gx float64
			if y > 0 && y < h-1 {
				gy = intensity[(y+1)*w+x] - intensity[(y-1)*w+x]
			}
			if x > 0 && x < w-1 {
				gx = intensity[y*w+x+1] - intensity[y*w+x-1]
			}
			i := y*w + x
			magnitude[i] = math.Hypot(gy, gx)
			orientation[i] = unsignedAngle(gy, gx)
		}
	}
	return magnitude, orientation
}

// unsignedAngle returns the gradient direction in degrees within [0, 180).
func unsignedAngle(gy, gx float64) float64 {
	deg := math.Mod(math.Atan2(gy, gx)*(180/math.Pi), 180)
	if deg < 0 {
		deg += 180
	}
	if deg >= 180 {
		deg = 0
	}
	return deg
}

// binOf maps an angle in [0, 180) to its bin. Bin i covers
// [i*width, (i+1)*width).
func binOf(angle, width float64, bins int) int {
	bin := int(angle / width)
	if bin > 0 && angle < width*float64(bin) {
		bin--
	}
	if angle >= width*float64(bin+1) {
		bin++
	}
	if bin >= bins {
		bin = bins - 1
	}
	return bin
}

// cellHistograms returns cellsY*cellsX*bins values; each bin holds the
// mean magnitude of the cell's pixels oriented within it.
func cellHistograms(magnitude, orientation []float64, w, cellsX, cellsY int, cfg Config) []float64 {
	bins := cfg.Orientations
	width := 180.0 / float64(bins)
	area := float64(cfg.CellSize * cfg.CellSize)

	hist := make([]float64, cellsY*cellsX*bins)
	for cy := 0; cy < cellsY; cy++ {
		for cx := 0; cx < cellsX; cx++ {
			cell := hist[(cy*cellsX+cx)*bins : (cy*cellsX+cx+1)*bins]
			for y := cy * cfg.CellSize; y < (cy+1)*cfg.CellSize; y++ {
				for x := cx * cfg.CellSize; x < (cx+1)*cfg.CellSize; x++ {
					i := y*w + x
					cell[binOf(orientation[i], width, bins)] += magnitude[i]
				}
			}
			for k := range cell {
				cell[k] /= area
			}
		}
	}
	return hist
}

// normalizeBlocks slides a BlockSize×BlockSize window over the cell grid
// with a stride of one cell and L1-normalises each window. Output is in
// raster order of blocks, then row-major cells, then bins.
func normalizeBlocks(hist []float64, cellsX, cellsY int, cfg Config) []float32 {
	bins := cfg.Orientations
	bs := cfg.BlockSize
	blocksX, blocksY := cellsX-bs+1, cellsY-bs+1
	if blocksX <= 0 || blocksY <= 0 {
		return []float32{}
	}

	blockLen := bs * bs * bins
	out := make([]float32, 0, blocksX*blocksY*blockLen)
	block := make([]float64, blockLen)

	for by := 0; by < blocksY; by++ {
		for bx := 0; bx < blocksX; bx++ {
			block = block[:0]
			for dy := 0; dy < bs; dy++ {
				for dx := 0; dx < bs; dx++ {
					off := ((by+dy)*cellsX + bx + dx) * bins
					block = append(block, hist[off:off+bins]...)
				}
			}

			var sum float64
			for _, v := range block {
				sum += math.Abs(v)
			}
			norm := sum + l1Epsilon
			for _, v := range block {
				out = append(out, float32(v/norm))
			}
		}
	}
	return out
}
