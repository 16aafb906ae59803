// Package config defines the tagged-variant configuration schemas accepted
// by the gateway: RisConfig for RIS Lab jobs, RunOptions for sim jobs, and
// the grid-alignment request embedded in a sim job's radio_map block.
//
// Decoding is strict: unknown fields are rejected before validation runs,
// so a typo in a submitted payload fails fast instead of silently using a
// default (design notes, spec.md §9).
package config

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/saladfingers379/RIS-SIONNA/internal/apperr"
)

// GeometryMode selects how RisGeometry's effective nx/ny/dx/dy are derived.
// "legacy" is the form spec.md §3 describes directly; "size_driven" and
// "spacing_driven" are carried over from the original implementation
// (SPEC_FULL §SUPPLEMENTED item 1).
type GeometryMode string

const (
	GeometryLegacy        GeometryMode = "legacy"
	GeometrySizeDriven     GeometryMode = "size_driven"
	GeometrySpacingDriven  GeometryMode = "spacing_driven"
)

// Vec3 is a 3-vector used for origin/normal/x_axis_hint/focal points.
type Vec3 [3]float64

// RisGeometry is §3's `geometry` block, extended with the geometry-mode
// derivation inputs from SPEC_FULL.
type RisGeometry struct {
	Mode GeometryMode `json:"geometry_mode" yaml:"geometry_mode" validate:"omitempty,oneof=legacy size_driven spacing_driven"`

	NX int     `json:"nx" yaml:"nx" validate:"omitempty,min=1"`
	NY int     `json:"ny" yaml:"ny" validate:"omitempty,min=1"`
	DX float64 `json:"dx" yaml:"dx" validate:"omitempty,gt=0"`
	DY float64 `json:"dy" yaml:"dy" validate:"omitempty,gt=0"`

	// SizeDriven inputs (mode == size_driven).
	WidthM              float64 `json:"width_m,omitempty" yaml:"width_m,omitempty"`
	HeightM             float64 `json:"height_m,omitempty" yaml:"height_m,omitempty"`
	TargetDXM           float64 `json:"target_dx_m,omitempty" yaml:"target_dx_m,omitempty"`
	TargetDYM           float64 `json:"target_dy_m,omitempty" yaml:"target_dy_m,omitempty"`
	TargetDensityPerM2  float64 `json:"target_density_per_m2,omitempty" yaml:"target_density_per_m2,omitempty"`

	// SpacingDriven inputs (mode == spacing_driven).
	NumCellsX int `json:"num_cells_x,omitempty" yaml:"num_cells_x,omitempty"`
	NumCellsY int `json:"num_cells_y,omitempty" yaml:"num_cells_y,omitempty"`

	Origin     Vec3 `json:"origin" yaml:"origin" validate:"required"`
	Normal     Vec3 `json:"normal" yaml:"normal" validate:"required"`
	XAxisHint  Vec3 `json:"x_axis_hint" yaml:"x_axis_hint" validate:"required"`

	// AllowSubWavelengthSpacing overrides the min(dx,dy) >= lambda/10
	// invariant; only honored when Quantization.Bits == 0.
	AllowSubWavelengthSpacing bool `json:"allow_sub_wavelength_spacing,omitempty" yaml:"allow_sub_wavelength_spacing,omitempty"`
}

// RisControlMode tags the §3 `control` variant.
type RisControlMode string

const (
	ControlSteer    RisControlMode = "steer"
	ControlUniform  RisControlMode = "uniform"
	ControlFocus    RisControlMode = "focus"
	ControlGradient RisControlMode = "gradient"
)

// RisControl is the tagged-variant phase-control configuration. Exactly one
// of the mode-specific parameter groups is meaningful, selected by Mode.
type RisControl struct {
	Mode RisControlMode `json:"mode" yaml:"mode" validate:"required,oneof=steer uniform focus gradient"`

	// steer
	AzDeg         float64 `json:"az_deg,omitempty" yaml:"az_deg,omitempty"`
	ElDeg         float64 `json:"el_deg,omitempty" yaml:"el_deg,omitempty"`
	PhaseOffsetDeg float64 `json:"phase_offset_deg,omitempty" yaml:"phase_offset_deg,omitempty"`

	// uniform
	PhaseDeg float64 `json:"phase_deg,omitempty" yaml:"phase_deg,omitempty"`

	// focus
	FocalPoint Vec3 `json:"focal_point,omitempty" yaml:"focal_point,omitempty"`

	// gradient (reflector mode)
	Sources Vec3 `json:"sources,omitempty" yaml:"sources,omitempty"`
	Targets Vec3 `json:"targets,omitempty" yaml:"targets,omitempty"`
}

// RisQuantization is §3's `quantization` block.
type RisQuantization struct {
	Bits int `json:"bits" yaml:"bits" validate:"min=0"`
}

// RxSweep describes the principal-cut angular sweep in degrees.
type RxSweep struct {
	Start float64 `json:"start" yaml:"start"`
	Stop  float64 `json:"stop" yaml:"stop" validate:"gtfield=Start"`
	Step  float64 `json:"step" yaml:"step" validate:"gt=0"`
}

// Normalization selects the pattern-sweep normalization mode.
type Normalization string

const (
	NormPeak0dB Normalization = "peak_0db"
	NormNone    Normalization = "none"
)

// RisPatternMode is §3's `pattern_mode` block.
type RisPatternMode struct {
	Normalization Normalization `json:"normalization" yaml:"normalization" validate:"required,oneof=peak_0db none"`
	RxSweepDeg    RxSweep        `json:"rx_sweep_deg" yaml:"rx_sweep_deg" validate:"required"`
}

// LinkMode is SPEC_FULL's supplemented single-angle link-budget action
// (original_source item 2).
type LinkMode struct {
	Enabled    bool    `json:"enabled" yaml:"enabled"`
	RxAngleDeg float64 `json:"rx_angle_deg" yaml:"rx_angle_deg"`
}

// RisExperiment is §3's `experiment` block.
type RisExperiment struct {
	FrequencyHz     float64 `json:"frequency_hz" yaml:"frequency_hz" validate:"required,gt=0"`
	TxAngleDeg      float64 `json:"tx_angle_deg" yaml:"tx_angle_deg"`
	TxDistanceM     float64 `json:"tx_distance_m" yaml:"tx_distance_m" validate:"required,gt=0"`
	RxDistanceM     float64 `json:"rx_distance_m" yaml:"rx_distance_m" validate:"required,gt=0"`
	TxGainDBI       float64 `json:"tx_gain_dbi" yaml:"tx_gain_dbi"`
	RxGainDBI       float64 `json:"rx_gain_dbi" yaml:"rx_gain_dbi"`
	TxPowerDBM      float64 `json:"tx_power_dbm" yaml:"tx_power_dbm"`
	ReflectionCoeff float64 `json:"reflection_coeff" yaml:"reflection_coeff" validate:"gte=0,lte=1"`
}

// ValidationThresholds carries the pass/fail thresholds of §4.4 op 5.
// Fixed at the contract values; exposed so callers can see what a run was
// judged against, not so they can be tuned away from the contract.
type ValidationThresholds struct {
	RMSEDBMax        float64 `json:"rmse_db_max" yaml:"rmse_db_max"`
	PeakDegErrMax    float64 `json:"peak_deg_err_max" yaml:"peak_deg_err_max"`
}

// DefaultValidationThresholds returns the spec-mandated pass/fail bounds.
func DefaultValidationThresholds() ValidationThresholds {
	return ValidationThresholds{RMSEDBMax: 3.0, PeakDegErrMax: 2.0}
}

// RisConfig is the full, validated RIS Lab configuration (§3).
type RisConfig struct {
	SchemaVersion int             `json:"schema_version" yaml:"schema_version"`
	Geometry      RisGeometry     `json:"geometry" yaml:"geometry" validate:"required"`
	Control       RisControl      `json:"control" yaml:"control" validate:"required"`
	Quantization  RisQuantization `json:"quantization" yaml:"quantization"`
	PatternMode   RisPatternMode  `json:"pattern_mode" yaml:"pattern_mode" validate:"required"`
	LinkMode      LinkMode        `json:"link_mode" yaml:"link_mode"`
	Experiment    RisExperiment   `json:"experiment" yaml:"experiment" validate:"required"`
	Validation    ValidationThresholds `json:"validation" yaml:"validation"`
}

const speedOfLightMPerS = 299_792_458.0

// Wavelength returns c/f for the configured experiment frequency.
func (c *RisConfig) Wavelength() float64 {
	return speedOfLightMPerS / c.Experiment.FrequencyHz
}

var validate = validator.New()

// rawRisGeometry mirrors the original implementation's accepted legacy field
// spellings (SPEC_FULL §SUPPLEMENTED item 4). Applied before validation so
// unknown-field rejection still fires on anything outside this table.
type rawRisGeometry struct {
	N    *int     `yaml:"n" json:"n"`
	M    *int     `yaml:"m" json:"m"`
	DXM  *float64 `yaml:"dx_m" json:"dx_m"`
	DYM  *float64 `yaml:"dy_m" json:"dy_m"`
}

// ParseRisConfig decodes, alias-normalizes, and validates a RIS Lab config
// from canonical YAML bytes. Unknown top-level and nested fields are
// rejected.
func ParseRisConfig(yamlBytes []byte) (*RisConfig, error) {
	dec := yaml.NewDecoder(bytes.NewReader(yamlBytes))
	dec.KnownFields(true)
	var cfg RisConfig
	if err := dec.Decode(&cfg); err != nil {
		return nil, apperr.Wrap(apperr.KindInvalidConfig, "decode ris config", err)
	}
	applyAliases(yamlBytes, &cfg)
	cfg.Validation = DefaultValidationThresholds()
	if cfg.SchemaVersion == 0 {
		cfg.SchemaVersion = 1
	}
	if err := validateRisConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyAliases(yamlBytes []byte, cfg *RisConfig) {
	var probe struct {
		Geometry rawRisGeometry `yaml:"geometry"`
	}
	if err := yaml.Unmarshal(yamlBytes, &probe); err != nil {
		return
	}
	if cfg.Geometry.NX == 0 && probe.Geometry.N != nil {
		cfg.Geometry.NX = *probe.Geometry.N
	}
	if cfg.Geometry.NY == 0 && probe.Geometry.M != nil {
		cfg.Geometry.NY = *probe.Geometry.M
	}
	if cfg.Geometry.DX == 0 && probe.Geometry.DXM != nil {
		cfg.Geometry.DX = *probe.Geometry.DXM
	}
	if cfg.Geometry.DY == 0 && probe.Geometry.DYM != nil {
		cfg.Geometry.DY = *probe.Geometry.DYM
	}
}

func validateRisConfig(cfg *RisConfig) error {
	if err := validate.Struct(cfg); err != nil {
		return apperr.Wrap(apperr.KindInvalidConfig, "validate ris config", err)
	}
	if err := resolveGeometry(&cfg.Geometry); err != nil {
		return err
	}
	if err := checkNormalNotParallel(cfg.Geometry.Normal, cfg.Geometry.XAxisHint); err != nil {
		return err
	}
	if err := checkElementSpacing(cfg); err != nil {
		return err
	}
	if cfg.Quantization.Bits < 0 {
		return apperr.New(apperr.KindInvalidConfig, "quantization.bits must be >= 0")
	}
	return nil
}

func checkNormalNotParallel(normal, hint Vec3) error {
	nx, ny, nz := normal[0], normal[1], normal[2]
	nnorm := nx*nx + ny*ny + nz*nz
	if nnorm == 0 {
		return apperr.New(apperr.KindInvalidConfig, "geometry.normal must be non-zero")
	}
	hx, hy, hz := hint[0], hint[1], hint[2]
	hnorm := hx*hx + hy*hy + hz*hz
	if hnorm == 0 {
		return apperr.New(apperr.KindInvalidConfig, "geometry.x_axis_hint must be non-zero")
	}
	dot := nx*hx + ny*hy + nz*hz
	cos := dot * dot / (nnorm * hnorm)
	if cos > 0.999999 {
		return apperr.New(apperr.KindInvalidConfig, "geometry.normal and geometry.x_axis_hint must not be parallel")
	}
	return nil
}

func checkElementSpacing(cfg *RisConfig) error {
	if cfg.Geometry.AllowSubWavelengthSpacing && cfg.Quantization.Bits == 0 {
		return nil
	}
	lambda := cfg.Wavelength()
	min := cfg.Geometry.DX
	if cfg.Geometry.DY < min {
		min = cfg.Geometry.DY
	}
	if min < lambda/10 {
		return apperr.New(apperr.KindInvalidConfig, fmt.Sprintf(
			"element spacing %.6g m is below lambda/10 (%.6g m); set allow_sub_wavelength_spacing with quantization.bits=0 to override", min, lambda/10))
	}
	return nil
}

// MarshalCanonicalJSON returns the canonical JSON encoding used for
// config_hash (§3 "Artifact hash"): the same two-space-indented encoding
// CanonicalJSON produces and config.json is written in. Struct field order
// is already deterministic, so the encoding is stable across platforms.
func (c *RisConfig) MarshalCanonicalJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}
