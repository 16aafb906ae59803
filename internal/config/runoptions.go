package config

import (
	"bytes"
	"encoding/json"

	"github.com/saladfingers379/RIS-SIONNA/internal/apperr"
)

// GridRequest is the §4.3 GridAligner input, as embedded in a sim job's
// radio_map block.
type GridRequest struct {
	RequestedSize [2]float64 `json:"requested_size,omitempty" yaml:"requested_size,omitempty"`
	CellSize      [2]float64 `json:"cell_size" yaml:"cell_size" validate:"required"`
	Center        [3]float64 `json:"center" yaml:"center" validate:"required"`
	AutoSize      bool       `json:"auto_size,omitempty" yaml:"auto_size,omitempty"`
	Padding       float64    `json:"padding,omitempty" yaml:"padding,omitempty"`
	Enabled       bool       `json:"enabled" yaml:"enabled"`
}

// RunOptions is the §6 `POST /api/jobs` request body for sim jobs.
type RunOptions struct {
	Kind       string                 `json:"kind" yaml:"kind" validate:"required,eq=run"`
	Profile    string                 `json:"profile" yaml:"profile"`
	BaseConfig string                 `json:"base_config" yaml:"base_config"`
	Preset     string                 `json:"preset,omitempty" yaml:"preset,omitempty"`
	Runtime    map[string]any         `json:"runtime,omitempty" yaml:"runtime,omitempty"`
	Simulation map[string]any         `json:"simulation,omitempty" yaml:"simulation,omitempty"`
	RadioMap   *GridRequest           `json:"radio_map,omitempty" yaml:"radio_map,omitempty"`
	Scene      map[string]any         `json:"scene" yaml:"scene" validate:"required"`
	Ris        map[string]any         `json:"ris,omitempty" yaml:"ris,omitempty"`
}

// ParseRunOptions decodes and validates a sim job submission payload.
// Unknown top-level fields are rejected.
func ParseRunOptions(jsonBytes []byte) (*RunOptions, error) {
	dec := json.NewDecoder(bytes.NewReader(jsonBytes))
	dec.DisallowUnknownFields()
	var opts RunOptions
	if err := dec.Decode(&opts); err != nil {
		return nil, apperr.Wrap(apperr.KindInvalidConfig, "decode run options", err)
	}
	if err := validate.Struct(&opts); err != nil {
		return nil, apperr.Wrap(apperr.KindInvalidConfig, "validate run options", err)
	}
	return &opts, nil
}

// RisJobRequest is the §6 `POST /api/ris/jobs` request body.
type RisJobRequest struct {
	Action     string `json:"action" yaml:"action" validate:"required,oneof=run validate"`
	ConfigPath string `json:"config_path,omitempty" yaml:"config_path,omitempty"`
	ConfigData string `json:"config_data,omitempty" yaml:"config_data,omitempty"`
	Mode       string `json:"mode,omitempty" yaml:"mode,omitempty" validate:"omitempty,oneof=pattern link"`
	Ref        string `json:"ref,omitempty" yaml:"ref,omitempty"`
}

// ParseRisJobRequest decodes and validates a RIS job submission payload.
func ParseRisJobRequest(jsonBytes []byte) (*RisJobRequest, error) {
	dec := json.NewDecoder(bytes.NewReader(jsonBytes))
	dec.DisallowUnknownFields()
	var req RisJobRequest
	if err := dec.Decode(&req); err != nil {
		return nil, apperr.Wrap(apperr.KindInvalidConfig, "decode ris job request", err)
	}
	if err := validate.Struct(&req); err != nil {
		return nil, apperr.Wrap(apperr.KindInvalidConfig, "validate ris job request", err)
	}
	if req.ConfigPath == "" && req.ConfigData == "" {
		return nil, apperr.New(apperr.KindInvalidConfig, "one of config_path or config_data is required")
	}
	if req.Action == "validate" && req.Ref == "" {
		return nil, apperr.New(apperr.KindInvalidConfig, "action=validate requires ref")
	}
	return &req, nil
}
