package handlers

import (
	"github.com/Brownie44l1/crack-api/internal/detector"
	"github.com/Brownie44l1/crack-api/internal/model"
)

type PredictionRequest struct {
	Features []float32 `json:"features"`
}

type PredictionResponse struct {
	RequestID      string             `json:"request_id"`
	Kind           detector.Kind      `json:"kind"`
	Message        string             `json:"message"`
	Class          string             `json:"class,omitempty"`
	Confidence     float64            `json:"confidence"`
	ConfidenceText string             `json:"confidence_text"`
	Predictions    map[string]float64 `json:"predictions,omitempty"`
	ElapsedMs      float64            `json:"elapsed_ms"`
	ElapsedText    string             `json:"elapsed_text"`
	Error          string             `json:"error,omitempty"`
}

func newPredictionResponse(res *detector.Result) PredictionResponse {
	resp := PredictionResponse{
		RequestID:      res.RequestID,
		Kind:           res.Kind,
		Message:        res.Message(),
		ConfidenceText: res.ConfidenceText(),
		ElapsedText:    res.ElapsedText(),
	}
	if res.Timed {
		resp.ElapsedMs = res.ElapsedMillis()
	}

	if !res.OK() {
		if res.Err != nil {
			resp.Error = res.Err.Error()
		}
		return resp
	}

	resp.Class = res.Label.String()
	resp.Confidence = res.ConfidencePercent()
	resp.Predictions = map[string]float64{
		model.NoCrack.String(): res.Probabilities[model.NoCrack],
		model.Crack.String():   res.Probabilities[model.Crack],
	}
	return resp
}
