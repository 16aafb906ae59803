package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"gopkg.in/yaml.v3"

	"github.com/saladfingers379/RIS-SIONNA/internal/apperr"
	"github.com/saladfingers379/RIS-SIONNA/internal/riskernel"
)

// RisSummary is the always-present ris-run summary.json.
type RisSummary struct {
	RunID     string `json:"run_id"`
	Mode      string `json:"mode"` // pattern|link
	Action    string `json:"action"`
	ConfigRef string `json:"config_ref,omitempty"`
	Status    string `json:"status"`
}

// RisMetrics is the always-present ris-run metrics.json: the pattern-mode
// sidelobe metrics plus, in validate mode, the validation result.
type RisMetrics struct {
	Peak         float64             `json:"peak_db"`
	PeakDeg      float64             `json:"peak_deg"`
	FirstNullDeg *float64            `json:"first_null_deg"`
	SLLDB        *float64            `json:"sll_db"`
	Validation   *riskernel.ValidationResult `json:"validation,omitempty"`
}

// WriteConfigSnapshot renders config.yaml, config.json, and config_hash
// (spec.md §6 "Config snapshot"): byte-identical YAML/JSON forms and their
// SHA-256 content hash, computed over the canonical JSON form so it is
// stable across YAML formatting differences.
func (w *Writer) WriteConfigSnapshot(cfg any) (string, error) {
	yamlBytes, err := yaml.Marshal(cfg)
	if err != nil {
		return "", apperr.Wrap(apperr.KindIO, "marshal config.yaml", err)
	}
	if err := w.writeBytes("config.yaml", yamlBytes); err != nil {
		return "", err
	}

	jsonBytes, err := canonicalJSON(cfg)
	if err != nil {
		return "", err
	}
	if err := w.writeBytes("config.json", jsonBytes); err != nil {
		return "", err
	}

	sum := sha256.Sum256(jsonBytes)
	hash := hex.EncodeToString(sum[:])
	if err := w.writeBytes("config_hash", []byte(hash)); err != nil {
		return "", err
	}
	return hash, nil
}

func canonicalJSON(v any) ([]byte, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, apperr.Wrap(apperr.KindIO, "marshal config.json", err)
	}
	return b, nil
}

// WriteRisSummary renders summary.json for a ris run.
func (w *Writer) WriteRisSummary(s *RisSummary) error {
	return w.writeJSON("summary.json", s)
}

// WriteRisMetrics renders metrics.json (pattern or validate mode).
func (w *Writer) WriteRisMetrics(m *RisMetrics) error {
	return w.writeJSON("metrics.json", m)
}

// WritePatternData renders the data/*.npy set for pattern mode: phase_map,
// theta_deg, pattern_linear, pattern_db.
func (w *Writer) WritePatternData(phase riskernel.PhaseMap, thetaDeg, patternLinear, patternDB []float64) error {
	phaseRows := make([][]float64, len(phase))
	copy(phaseRows, phase)
	phaseNPY, err := encodeNPY2D(phaseRows)
	if err != nil {
		return err
	}
	if err := w.writeBytes("data/phase_map.npy", phaseNPY); err != nil {
		return err
	}
	for name, vals := range map[string][]float64{
		"theta_deg":      thetaDeg,
		"pattern_linear": patternLinear,
		"pattern_db":     patternDB,
	} {
		npy, err := encodeNPY1D(vals)
		if err != nil {
			return err
		}
		if err := w.writeBytes("data/"+name+".npy", npy); err != nil {
			return err
		}
	}
	return nil
}

// WritePatternPlots atomically replaces the three pattern-mode plot PNGs.
func (w *Writer) WritePatternPlots(phaseMap, patternCartesian, patternPolar []byte) error {
	for name, png := range map[string][]byte{
		"phase_map":        phaseMap,
		"pattern_cartesian": patternCartesian,
		"pattern_polar":    patternPolar,
	} {
		if err := w.writeBytes("plots/"+name+".png", png); err != nil {
			return err
		}
	}
	return nil
}

// WriteValidationOverlay renders plots/validation_overlay.png, the one
// additional plot validate mode adds over pattern mode.
func (w *Writer) WriteValidationOverlay(png []byte) error {
	return w.writeBytes("plots/validation_overlay.png", png)
}
