package detector

import (
	"fmt"
	"time"

	"github.com/Brownie44l1/crack-api/internal/model"
)

const (
	msgNoInput          = "Please upload an image."
	msgInvalidImage     = "Could not read the image. Supported formats: JPEG, PNG, GIF."
	msgModelUnavailable = "Model is not available. Please try again later."
	msgCrack            = "⚠️ CRACK DETECTED"
	msgNoCrack          = "✅ NO CRACK DETECTED (Safe)"

	placeholder = "-"
)

// Result is what the core hands to a front end. On failure Err is set and
// Label, Confidence and Probabilities are zero.
type Result struct {
	RequestID     string
	Kind          Kind
	Label         model.Label
	Probabilities [2]float64
	Confidence    float64
	Elapsed       time.Duration
	Timed         bool
	Err           *Error
}

func (r *Result) OK() bool {
	return r.Kind == KindOK
}

// Message is the headline shown to a user.
func (r *Result) Message() string {
	switch r.Kind {
	case KindOK:
		if r.Label == model.Crack {
			return msgCrack
		}
		return msgNoCrack
	case KindNoInput:
		return msgNoInput
	case KindInvalidImage:
		return msgInvalidImage
	case KindModelUnavailable:
		return msgModelUnavailable
	default:
		if r.Err == nil {
			return "Error: unknown failure"
		}
		return "Error: " + r.Err.Message
	}
}

// ConfidencePercent is the confidence as a percentage rounded to one
// decimal place, or 0 for failed results.
func (r *Result) ConfidencePercent() float64 {
	if !r.OK() {
		return 0
	}
	p := model.Prediction{Confidence: r.Confidence}
	return p.ConfidencePercent()
}

func (r *Result) ConfidenceText() string {
	if !r.OK() {
		return placeholder
	}
	return fmt.Sprintf("%.1f%%", r.ConfidencePercent())
}

func (r *Result) ElapsedText() string {
	if !r.Timed {
		return placeholder
	}
	return fmt.Sprintf("%d ms", r.Elapsed.Round(time.Millisecond).Milliseconds())
}

// ElapsedMillis is Elapsed in milliseconds with sub-millisecond precision.
func (r *Result) ElapsedMillis() float64 {
	return float64(r.Elapsed) / float64(time.Millisecond)
}
