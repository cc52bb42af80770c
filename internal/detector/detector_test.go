package detector

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Brownie44l1/crack-api/internal/features"
	"github.com/Brownie44l1/crack-api/internal/logging"
	"github.com/Brownie44l1/crack-api/internal/model"
)

// stumpForest splits on the first descriptor value: <= threshold is
// NoCrack with probability 0.8, otherwise Crack with probability 0.9.
func stumpForest(threshold float64) *model.Forest {
	return &model.Forest{
		NFeatures: features.DescriptorLen,
		Classes:   []int{0, 1},
		Trees: []model.Tree{{
			ChildrenLeft:  []int{1, -1, -1},
			ChildrenRight: []int{2, -1, -1},
			Feature:       []int{0, -2, -2},
			Threshold:     []float64{threshold, -2, -2},
			Value:         [][]float64{{0, 0}, {8, 2}, {1, 9}},
		}},
	}
}

func newTestDetector(t *testing.T, c model.Classifier) *Detector {
	t.Helper()
	engine := model.NewEngine(nil)
	require.Equal(t, model.StateReady, engine.Init(func() (model.Classifier, error) { return c, nil }))
	return New(features.NewDefaultExtractor(), engine, nil)
}

func grayImage(w, h int, v uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = v
	}
	return img
}

func TestDetectNoInput(t *testing.T) {
	d := newTestDetector(t, stumpForest(0.5))

	res := d.Detect(context.Background(), nil)
	require.Equal(t, KindNoInput, res.Kind)
	require.False(t, res.OK())
	require.False(t, res.Timed)
	require.Equal(t, "Please upload an image.", res.Message())
	require.Equal(t, "-", res.ConfidenceText())
	require.Equal(t, "-", res.ElapsedText())
	require.Zero(t, res.ConfidencePercent())
	require.NotEmpty(t, res.RequestID)
}

func TestDetectModelUnavailable(t *testing.T) {
	engine := model.NewEngine(nil)
	state := engine.Load(model.LoadOptions{ModelPath: filepath.Join(t.TempDir(), "final_crack_detector_rf.json")})
	require.Equal(t, model.StateDisabled, state)
	d := New(features.NewDefaultExtractor(), engine, nil)

	var first string
	for i := 0; i < 3; i++ {
		res := d.Detect(context.Background(), grayImage(50, 50, 128))
		require.Equal(t, KindModelUnavailable, res.Kind)
		require.ErrorIs(t, res.Err, model.ErrModelUnavailable)
		if i == 0 {
			first = res.Message()
		}
		require.Equal(t, first, res.Message())
		require.Equal(t, "-", res.ConfidenceText())
	}
}

func TestDetectUniformGray(t *testing.T) {
	d := newTestDetector(t, stumpForest(0.5))

	res := d.Detect(context.Background(), grayImage(50, 50, 128))
	require.True(t, res.OK(), "unexpected error: %v", res.Err)
	require.Equal(t, model.NoCrack, res.Label)
	require.GreaterOrEqual(t, res.ConfidencePercent(), 50.0)
	require.LessOrEqual(t, res.ConfidencePercent(), 100.0)
	require.Equal(t, "80.0%", res.ConfidenceText())
	require.Equal(t, "✅ NO CRACK DETECTED (Safe)", res.Message())
	require.InDelta(t, 1.0, res.Probabilities[0]+res.Probabilities[1], 1e-12)
	require.Equal(t, res.Confidence, max(res.Probabilities[0], res.Probabilities[1]))
	require.True(t, res.Timed)
	require.Contains(t, res.ElapsedText(), "ms")
}

func TestDetectCrack(t *testing.T) {
	d := newTestDetector(t, stumpForest(-1))

	res := d.Detect(context.Background(), grayImage(300, 120, 30))
	require.True(t, res.OK())
	require.Equal(t, model.Crack, res.Label)
	require.Equal(t, "⚠️ CRACK DETECTED", res.Message())
	require.Equal(t, "90.0%", res.ConfidenceText())
}

func TestDetectDeterministic(t *testing.T) {
	d := newTestDetector(t, stumpForest(0.5))
	img := grayImage(64, 64, 200)
	img.Pix[100] = 0

	first := d.Detect(context.Background(), img)
	second := d.Detect(context.Background(), img)
	require.Equal(t, first.Label, second.Label)
	require.Equal(t, first.Confidence, second.Confidence)
	require.Equal(t, first.Probabilities, second.Probabilities)
}

func TestDetectTieResolvesToNoCrack(t *testing.T) {
	tie := &model.Forest{
		NFeatures: features.DescriptorLen,
		Classes:   []int{0, 1},
		Trees: []model.Tree{{
			ChildrenLeft:  []int{-1},
			ChildrenRight: []int{-1},
			Feature:       []int{-2},
			Threshold:     []float64{-2},
			Value:         [][]float64{{3, 3}},
		}},
	}
	d := newTestDetector(t, tie)

	res := d.Detect(context.Background(), grayImage(10, 10, 1))
	require.True(t, res.OK())
	require.Equal(t, model.NoCrack, res.Label)
	require.Equal(t, "50.0%", res.ConfidenceText())
}

func TestClassifyDescriptorDimensionMismatch(t *testing.T) {
	d := newTestDetector(t, stumpForest(0.5))

	for _, n := range []int{0, 100, features.DescriptorLen + 1} {
		res := d.ClassifyDescriptor(context.Background(), make([]float32, n))
		require.Equal(t, KindDimensionMismatch, res.Kind)
		require.ErrorIs(t, res.Err, model.ErrDimensionMismatch)
		require.Contains(t, res.Message(), "model expects 6084")
	}

	res := d.ClassifyDescriptor(context.Background(), nil)
	require.Equal(t, KindNoInput, res.Kind)

	res = d.ClassifyDescriptor(context.Background(), make([]float32, features.DescriptorLen))
	require.True(t, res.OK())
}

type panickingExtractor struct{}

func (panickingExtractor) Extract(image.Image) ([]float32, error) {
	panic("index out of range")
}

type failingExtractor struct{}

func (failingExtractor) Extract(image.Image) ([]float32, error) {
	return nil, errors.New("decoder exploded")
}

func TestDetectRecoversFromFailures(t *testing.T) {
	engine := model.NewEngine(nil)
	engine.Init(func() (model.Classifier, error) { return stumpForest(0.5), nil })

	res := New(panickingExtractor{}, engine, nil).Detect(context.Background(), grayImage(4, 4, 0))
	require.Equal(t, KindInternal, res.Kind)
	require.Contains(t, res.Message(), "Error: ")
	require.Contains(t, res.Message(), "index out of range")

	res = New(failingExtractor{}, engine, nil).Detect(context.Background(), grayImage(4, 4, 0))
	require.Equal(t, KindInternal, res.Kind)
	require.Contains(t, res.Err.Error(), "decoder exploded")
}

func TestDetectEmptyImage(t *testing.T) {
	d := newTestDetector(t, stumpForest(0.5))
	res := d.Detect(context.Background(), image.NewGray(image.Rect(0, 0, 0, 0)))
	require.Equal(t, KindInvalidImage, res.Kind)
	require.ErrorIs(t, res.Err, features.ErrEmptyImage)
}

func TestDetectElapsedWithinWallClock(t *testing.T) {
	d := newTestDetector(t, stumpForest(0.5))

	before := time.Now()
	res := d.Detect(context.Background(), grayImage(120, 80, 90))
	outer := time.Since(before)

	require.True(t, res.OK())
	require.GreaterOrEqual(t, res.Elapsed, time.Duration(0))
	require.LessOrEqual(t, res.Elapsed, outer)
	require.GreaterOrEqual(t, res.ElapsedMillis(), 0.0)
}

func TestDetectBytes(t *testing.T) {
	d := newTestDetector(t, stumpForest(0.5))

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, grayImage(40, 30, 77)))

	res := d.DetectBytes(context.Background(), buf.Bytes())
	require.True(t, res.OK())
	require.Equal(t, model.NoCrack, res.Label)

	res = d.DetectBytes(context.Background(), []byte("definitely not an image"))
	require.Equal(t, KindInvalidImage, res.Kind)
	require.Equal(t, "-", res.ElapsedText())

	res = d.DetectBytes(context.Background(), nil)
	require.Equal(t, KindNoInput, res.Kind)
}

func TestDetectUsesContextRequestID(t *testing.T) {
	d := newTestDetector(t, stumpForest(0.5))
	ctx := logging.ContextWithRequestID(context.Background(), "req-42")

	require.Equal(t, "req-42", d.Detect(ctx, nil).RequestID)
	require.Equal(t, "req-42", d.Detect(ctx, grayImage(8, 8, 8)).RequestID)
}

func TestErrorFormatting(t *testing.T) {
	err := newError(KindInternal, "boom", errors.New("root"))
	require.Equal(t, "internal: boom (caused by: root)", err.Error())
	require.EqualError(t, errors.Unwrap(err), "root")
	require.Equal(t, "no_input: nothing", newError(KindNoInput, "nothing", nil).Error())
}
