package model

import "math"

// Label is the class index the classifier was trained with.
type Label int

const (
	NoCrack Label = 0
	Crack   Label = 1
)

func (l Label) String() string {
	switch l {
	case NoCrack:
		return "no_crack"
	case Crack:
		return "crack"
	default:
		return "unknown"
	}
}

// Metadata describes an ONNX artifact. It lives next to the model as
// model_metadata.json.
type Metadata struct {
	InputShape        []int64  `json:"input_shape"`
	InputName         string   `json:"input_name"`
	LabelOutput       string   `json:"label_output"`
	ProbabilityOutput string   `json:"probability_output"`
	Classes           []string `json:"classes"`
	ImageSize         int      `json:"image_size"`
}

func (m *Metadata) applyDefaults() {
	if m.InputName == "" {
		m.InputName = "float_input"
	}
	if m.LabelOutput == "" {
		m.LabelOutput = "output_label"
	}
	if m.ProbabilityOutput == "" {
		m.ProbabilityOutput = "output_probability"
	}
	if len(m.Classes) == 0 {
		m.Classes = []string{NoCrack.String(), Crack.String()}
	}
}

// inputSize is the number of values one sample occupies.
func (m *Metadata) inputSize() int {
	if len(m.InputShape) == 0 {
		return 0
	}
	size := 1
	for _, dim := range m.InputShape {
		size *= int(dim)
	}
	return size
}

// Prediction is the engine's answer for one descriptor.
type Prediction struct {
	Label         Label
	Probabilities [2]float64 // indexed by Label, sums to 1
	Confidence    float64    // probability of Label
}

// ConfidencePercent is the confidence scaled to a percentage and rounded
// to one decimal place.
func (p *Prediction) ConfidencePercent() float64 {
	return math.Round(p.Confidence*1000) / 10
}
