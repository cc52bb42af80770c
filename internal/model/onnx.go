package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// ONNXClassifier runs a scikit-learn classifier exported with skl2onnx
// (zipmap disabled). Input and output tensors are allocated once, so runs
// are serialised.
type ONNXClassifier struct {
	session  *ort.AdvancedSession
	Metadata Metadata

	input  *ort.Tensor[float32]
	labels *ort.Tensor[int64]
	proba  *ort.Tensor[float32]

	mu sync.Mutex
}

func LoadONNX(modelPath, metadataPath, runtimeLibrary string) (*ONNXClassifier, error) {
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("model file missing at %s: %w", modelPath, err)
	}

	metaFile, err := os.ReadFile(metadataPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}

	var metadata Metadata
	if err := json.Unmarshal(metaFile, &metadata); err != nil {
		return nil, fmt.Errorf("failed to parse metadata: %w", err)
	}
	metadata.applyDefaults()
	if metadata.inputSize() <= 0 {
		return nil, errors.New("metadata input_shape must be non-empty and positive")
	}
	if len(metadata.Classes) != 2 {
		return nil, fmt.Errorf("expected 2 classes in metadata, got %d", len(metadata.Classes))
	}

	if lib := resolveSharedLibraryPath(runtimeLibrary, filepath.Dir(modelPath)); lib != "" {
		ort.SetSharedLibraryPath(lib)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize ONNX environment: %w", err)
		}
	}

	input, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(metadata.inputSize())))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	labels, err := ort.NewEmptyTensor[int64](ort.NewShape(1))
	if err != nil {
		input.Destroy()
		return nil, fmt.Errorf("failed to create label tensor: %w", err)
	}

	proba, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(len(metadata.Classes))))
	if err != nil {
		input.Destroy()
		labels.Destroy()
		return nil, fmt.Errorf("failed to create probability tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{metadata.InputName},
		[]string{metadata.LabelOutput, metadata.ProbabilityOutput},
		[]ort.Value{input}, []ort.Value{labels, proba},
		nil)
	if err != nil {
		input.Destroy()
		labels.Destroy()
		proba.Destroy()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &ONNXClassifier{
		session:  session,
		Metadata: metadata,
		input:    input,
		labels:   labels,
		proba:    proba,
	}, nil
}

func (c *ONNXClassifier) InputDim() int {
	return c.Metadata.inputSize()
}

func (c *ONNXClassifier) PredictProba(features []float32) ([]float64, error) {
	if len(features) != c.InputDim() {
		return nil, &DimensionError{Expected: c.InputDim(), Got: len(features)}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	copy(c.input.GetData(), features)
	if err := c.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	raw := c.proba.GetData()
	out := make([]float64, len(raw))
	for i, v := range raw {
		out[i] = float64(v)
	}
	return out, nil
}

func (c *ONNXClassifier) Close() error {
	if c.input != nil {
		c.input.Destroy()
	}
	if c.labels != nil {
		c.labels.Destroy()
	}
	if c.proba != nil {
		c.proba.Destroy()
	}
	if c.session != nil {
		return c.session.Destroy()
	}
	return nil
}

// resolveSharedLibraryPath prefers an explicit path, then
// ONNXRUNTIME_SHARED_LIBRARY_PATH, then common install locations. An empty
// result leaves onnxruntime_go on its platform default.
func resolveSharedLibraryPath(explicit, modelDir string) string {
	if explicit != "" {
		return explicit
	}
	if env := strings.TrimSpace(os.Getenv("ONNXRUNTIME_SHARED_LIBRARY_PATH")); env != "" {
		return env
	}

	names := []string{
		"libonnxruntime.so",
		"onnxruntime.so",
		"libonnxruntime.dylib",
		"onnxruntime.dll",
	}
	dirs := []string{
		modelDir,
		filepath.Join(modelDir, "lib"),
		"/usr/local/lib",
		"/usr/lib",
		"/opt/homebrew/lib",
	}
	for _, dir := range dirs {
		for _, name := range names {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate
			}
		}
	}
	return ""
}
