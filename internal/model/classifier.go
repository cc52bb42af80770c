package model

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"
)

// Classifier is a loaded binary model artifact. Implementations must be
// safe for concurrent PredictProba calls.
type Classifier interface {
	// InputDim is the descriptor length the artifact was fit on.
	InputDim() int
	// PredictProba returns one probability per class, indexed by Label.
	PredictProba(features []float32) ([]float64, error)
	Close() error
}

// LoadOptions locates a model artifact on disk.
type LoadOptions struct {
	ModelPath      string
	MetadataPath   string // ONNX only; defaults to model_metadata.json beside the model
	RuntimeLibrary string // ONNX only; onnxruntime shared library
}

// OpenClassifier picks the artifact format from the file extension.
func OpenClassifier(opts LoadOptions) (Classifier, error) {
	if opts.ModelPath == "" {
		return nil, errors.New("model path is empty")
	}

	switch ext := strings.ToLower(filepath.Ext(opts.ModelPath)); ext {
	case ".json":
		return LoadForest(opts.ModelPath)
	case ".onnx":
		metadataPath := opts.MetadataPath
		if metadataPath == "" {
			metadataPath = filepath.Join(filepath.Dir(opts.ModelPath), "model_metadata.json")
		}
		return LoadONNX(opts.ModelPath, metadataPath, opts.RuntimeLibrary)
	default:
		return nil, fmt.Errorf("unsupported model format %q", ext)
	}
}

// newPrediction turns raw class scores into a Prediction. Scores are
// renormalised so they sum to one; on an exact tie the lower class index
// (NoCrack) wins.
func newPrediction(scores []float64) (*Prediction, error) {
	if len(scores) != 2 {
		return nil, fmt.Errorf("expected 2 class probabilities, got %d", len(scores))
	}

	var sum float64
	for i, s := range scores {
		if math.IsNaN(s) || math.IsInf(s, 0) || s < 0 {
			return nil, fmt.Errorf("invalid probability %v for class %d", s, i)
		}
		sum += s
	}
	if sum == 0 {
		return nil, errors.New("class probabilities sum to zero")
	}

	p := &Prediction{Probabilities: [2]float64{scores[0] / sum, scores[1] / sum}}
	p.Label = NoCrack
	if p.Probabilities[Crack] > p.Probabilities[NoCrack] {
		p.Label = Crack
	}
	p.Confidence = p.Probabilities[p.Label]
	return p, nil
}
