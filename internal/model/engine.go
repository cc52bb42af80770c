package model

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

var (
	// ErrModelUnavailable is returned by Classify while the engine is not READY.
	ErrModelUnavailable = errors.New("model unavailable")
	// ErrDimensionMismatch means the descriptor and the artifact disagree on
	// input length: a deployment/versioning defect, not a bad request.
	ErrDimensionMismatch = errors.New("descriptor dimensionality mismatch")
)

// DimensionError reports a descriptor whose length differs from the
// artifact's input dimensionality.
type DimensionError struct {
	Expected int
	Got      int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("descriptor has %d values, model expects %d", e.Got, e.Expected)
}

func (e *DimensionError) Unwrap() error {
	return ErrDimensionMismatch
}

type State int32

const (
	StateUninitialized State = iota
	StateLoading
	StateReady
	StateDisabled
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}

// Engine owns the classifier artifact. It is loaded at most once; READY
// and DISABLED are terminal. After loading, the engine is read-only and
// safe for concurrent Classify calls.
type Engine struct {
	once       sync.Once
	state      atomic.Int32
	classifier Classifier
	loadErr    error
	logger     *zap.Logger
}

func NewEngine(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{logger: logger.Named("model_engine")}
}

// Load opens the artifact described by opts. A failure leaves the engine
// DISABLED; it never aborts the caller.
func (e *Engine) Load(opts LoadOptions) State {
	return e.Init(func() (Classifier, error) {
		return OpenClassifier(opts)
	})
}

// Init runs open exactly once. Later calls return the settled state
// without calling open.
func (e *Engine) Init(open func() (Classifier, error)) State {
	e.once.Do(func() {
		e.state.Store(int32(StateLoading))

		classifier, err := open()
		if err == nil && classifier == nil {
			err = errors.New("no classifier returned")
		}
		if err != nil {
			e.loadErr = err
			e.state.Store(int32(StateDisabled))
			e.logger.Error("model load failed, classification disabled", zap.Error(err))
			return
		}

		e.classifier = classifier
		e.state.Store(int32(StateReady))
		e.logger.Info("model loaded", zap.Int("input_dim", classifier.InputDim()))
	})
	return e.State()
}

func (e *Engine) State() State {
	return State(e.state.Load())
}

// LoadError is the reason the engine is DISABLED, if it is.
func (e *Engine) LoadError() error {
	if e.State() != StateDisabled {
		return nil
	}
	return e.loadErr
}

// InputDim is the descriptor length the loaded artifact expects, or 0.
func (e *Engine) InputDim() int {
	if e.State() != StateReady {
		return 0
	}
	return e.classifier.InputDim()
}

// Classify predicts the label for one descriptor. It never retries.
func (e *Engine) Classify(features []float32) (*Prediction, error) {
	if e.State() != StateReady {
		return nil, ErrModelUnavailable
	}

	if dim := e.classifier.InputDim(); len(features) != dim {
		return nil, &DimensionError{Expected: dim, Got: len(features)}
	}

	scores, err := e.classifier.PredictProba(features)
	if err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}
	return newPrediction(scores)
}

func (e *Engine) Close() error {
	if e.State() != StateReady {
		return nil
	}
	return e.classifier.Close()
}
