package detector

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Brownie44l1/crack-api/internal/features"
	"github.com/Brownie44l1/crack-api/internal/logging"
	"github.com/Brownie44l1/crack-api/internal/model"
)

// Extractor produces a descriptor from an image.
type Extractor interface {
	Extract(img image.Image) ([]float32, error)
}

// Classifier maps a descriptor to a prediction. *model.Engine satisfies it.
type Classifier interface {
	Classify(features []float32) (*model.Prediction, error)
}

// Detector is the single entry point front ends call. It never panics and
// never retries; every call yields a Result.
type Detector struct {
	extractor  Extractor
	classifier Classifier
	logger     *zap.Logger
}

func New(extractor Extractor, classifier Classifier, logger *zap.Logger) *Detector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Detector{
		extractor:  extractor,
		classifier: classifier,
		logger:     logger.Named("detector"),
	}
}

// Detect classifies one image. Elapsed covers extraction and prediction.
func (d *Detector) Detect(ctx context.Context, img image.Image) *Result {
	res := &Result{RequestID: requestID(ctx)}
	opLogger := logging.WithOperation(d.logger, "detector.detect", res.RequestID)

	if img == nil {
		return d.fail(opLogger, res, newError(KindNoInput, msgNoInput, nil))
	}

	start := time.Now()
	pred, err := d.run(func() (*model.Prediction, error) {
		vec, err := d.extractor.Extract(img)
		if err != nil {
			return nil, fmt.Errorf("extract features: %w", err)
		}
		return d.classifier.Classify(vec)
	})
	res.Elapsed = time.Since(start)
	res.Timed = true

	if err != nil {
		return d.fail(opLogger, res, classifyError(err))
	}
	return d.succeed(opLogger, res, pred)
}

// DetectBytes decodes an encoded image (JPEG, PNG or GIF) and detects on it.
func (d *Detector) DetectBytes(ctx context.Context, data []byte) *Result {
	if len(data) == 0 {
		return d.Detect(ctx, nil)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		res := &Result{RequestID: requestID(ctx)}
		opLogger := logging.WithOperation(d.logger, "detector.decode", res.RequestID)
		return d.fail(opLogger, res, newError(KindInvalidImage, "unsupported or corrupt image", err))
	}

	d.logger.Debug("decoded image",
		zap.String("format", format),
		zap.Int("width", img.Bounds().Dx()),
		zap.Int("height", img.Bounds().Dy()))
	return d.Detect(ctx, img)
}

// ClassifyDescriptor skips extraction and runs the classifier on a
// precomputed descriptor.
func (d *Detector) ClassifyDescriptor(ctx context.Context, descriptor []float32) *Result {
	res := &Result{RequestID: requestID(ctx)}
	opLogger := logging.WithOperation(d.logger, "detector.classify_descriptor", res.RequestID)

	if descriptor == nil {
		return d.fail(opLogger, res, newError(KindNoInput, "no descriptor supplied", nil))
	}

	start := time.Now()
	pred, err := d.run(func() (*model.Prediction, error) {
		return d.classifier.Classify(descriptor)
	})
	res.Elapsed = time.Since(start)
	res.Timed = true

	if err != nil {
		return d.fail(opLogger, res, classifyError(err))
	}
	return d.succeed(opLogger, res, pred)
}

// run converts a panic anywhere in the pipeline into an error.
func (d *Detector) run(fn func() (*model.Prediction, error)) (pred *model.Prediction, err error) {
	defer func() {
		if r := recover(); r != nil {
			pred = nil
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}

func (d *Detector) succeed(opLogger *zap.Logger, res *Result, pred *model.Prediction) *Result {
	res.Kind = KindOK
	res.Label = pred.Label
	res.Probabilities = pred.Probabilities
	res.Confidence = pred.Confidence

	opLogger.Info("prediction",
		zap.Stringer("label", pred.Label),
		zap.Float64("confidence", pred.Confidence),
		zap.Duration("elapsed", res.Elapsed))
	return res
}

func (d *Detector) fail(opLogger *zap.Logger, res *Result, e *Error) *Result {
	res.Kind = e.Kind
	res.Err = e

	switch e.Kind {
	case KindNoInput, KindInvalidImage:
		opLogger.Warn("rejected input", zap.String("kind", string(e.Kind)), zap.Error(e))
	default:
		opLogger.Error("detection failed", zap.String("kind", string(e.Kind)), zap.Error(e))
	}
	return res
}

func classifyError(err error) *Error {
	var dimErr *model.DimensionError
	switch {
	case errors.Is(err, model.ErrModelUnavailable):
		return newError(KindModelUnavailable, msgModelUnavailable, err)
	case errors.As(err, &dimErr):
		return newError(KindDimensionMismatch, dimErr.Error(), err)
	case errors.Is(err, features.ErrEmptyImage):
		return newError(KindInvalidImage, "image has no pixels", err)
	default:
		return newError(KindInternal, err.Error(), err)
	}
}

func requestID(ctx context.Context) string {
	if id := logging.RequestIDFromContext(ctx); id != "" {
		return id
	}
	return uuid.NewString()
}
