// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

// Label is the classifier verdict.
type Label string

const (
	LabelNormal Label = "Normal"
	LabelSick   Label = "Sick"
)

// Prediction is the classification result produced by the backend.
// Field names mirror the wire format exactly; values are never rewritten.
type Prediction struct {
	Label       Label   `json:"label"`
	IsSick      bool    `json:"is_sick"`
	ProbSick    float64 `json:"prob_sick"`
	ProbNormal  float64 `json:"prob_normal"`
	Threshold   float64 `json:"threshold"`
	ModelRepo   string  `json:"model_repo"`
	ModelFile   string  `json:"model_file"`
	ImageSize   int     `json:"image_size"`
	InferenceMs int     `json:"inference_ms"`
}

// Clone returns a copy of p, or nil if p is nil.
func (p *Prediction) Clone() *Prediction {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}
