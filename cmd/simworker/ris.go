package main

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"strconv"

	"github.com/saladfingers379/RIS-SIONNA/internal/artifact"
	"github.com/saladfingers379/RIS-SIONNA/internal/config"
	"github.com/saladfingers379/RIS-SIONNA/internal/render"
	"github.com/saladfingers379/RIS-SIONNA/internal/riskernel"
	"github.com/saladfingers379/RIS-SIONNA/internal/runstore"
)

// runRisJob resolves a RisConfig, synthesizes and quantizes the panel's
// phase map, and runs either pattern-mode, link-mode, or validate-mode
// analysis, writing every ris artifact spec.md §6 lists. Returns the
// worker exit code (spec.md §6).
func runRisJob(root, runID, action, mode string, jc *jobConfigFile) int {
	store, err := runstore.New(root)
	if err != nil {
		emitProgress(runstore.StatusFailed, 0, "init", 5, nil, err.Error())
		return exitOther
	}
	run, err := store.Open(runID)
	if err != nil {
		emitProgress(runstore.StatusFailed, 0, "init", 5, nil, err.Error())
		return exitOther
	}
	w := artifact.New(store, run)

	cfg, err := loadRisConfig(jc)
	if err != nil {
		emitProgress(runstore.StatusFailed, 0, "load_config", 5, nil, err.Error())
		return exitInvalidConfig
	}
	configHash, err := w.WriteConfigSnapshot(cfg)
	if err != nil {
		emitProgress(runstore.StatusFailed, 0, "load_config", 5, nil, err.Error())
		return exitOther
	}
	emitProgress(runstore.StatusRunning, 0, "load_config", 5, f64(0.1), "")

	geom, err := riskernel.ComputeElementCenters(
		cfg.Geometry.NX, cfg.Geometry.NY, cfg.Geometry.DX, cfg.Geometry.DY,
		toVec3(cfg.Geometry.Origin), toVec3(cfg.Geometry.Normal), toVec3(cfg.Geometry.XAxisHint),
	)
	if err != nil {
		emitProgress(runstore.StatusFailed, 1, "build_geometry", 5, nil, err.Error())
		return exitInvalidConfig
	}
	emitProgress(runstore.StatusRunning, 1, "build_geometry", 5, f64(0.25), "")

	phase, err := synthesizePhase(geom, cfg)
	if err != nil {
		emitProgress(runstore.StatusFailed, 2, "synthesize_phase", 5, nil, err.Error())
		return exitInvalidConfig
	}
	phase, err = riskernel.Quantize(phase, cfg.Quantization.Bits)
	if err != nil {
		emitProgress(runstore.StatusFailed, 2, "synthesize_phase", 5, nil, err.Error())
		return exitInvalidConfig
	}
	emitProgress(runstore.StatusRunning, 2, "synthesize_phase", 5, f64(0.4), "")

	effectiveMode := mode
	if effectiveMode == "" {
		if cfg.LinkMode.Enabled {
			effectiveMode = "link"
		} else {
			effectiveMode = "pattern"
		}
	}

	switch {
	case action == "validate":
		return runRisValidate(w, runID, cfg, geom, phase, configHash, jc)
	case effectiveMode == "link":
		return runRisLink(w, runID, cfg, geom, phase, configHash)
	default:
		return runRisPattern(w, runID, cfg, geom, phase, configHash)
	}
}

func toVec3(v config.Vec3) riskernel.Vec3 {
	return riskernel.Vec3{X: v[0], Y: v[1], Z: v[2]}
}

func loadRisConfig(jc *jobConfigFile) (*config.RisConfig, error) {
	if pathRaw, ok := jc.Payload["config_path"]; ok {
		if path, _ := pathRaw.(string); path != "" {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("read ris config: %w", err)
			}
			return config.ParseRisConfig(data)
		}
	}
	if dataRaw, ok := jc.Payload["config_data"]; ok {
		if data, _ := dataRaw.(string); data != "" {
			return config.ParseRisConfig([]byte(data))
		}
	}
	return nil, fmt.Errorf("ris job payload has neither config_path nor config_data set")
}

// synthesizePhase dispatches on control.mode per spec.md §4.4 op 1.
func synthesizePhase(geom *riskernel.Geometry, cfg *config.RisConfig) (riskernel.PhaseMap, error) {
	ctrl := cfg.Control
	freq := cfg.Experiment.FrequencyHz
	switch ctrl.Mode {
	case config.ControlSteer:
		return riskernel.SynthesizeSteer(geom, freq, ctrl.AzDeg, ctrl.ElDeg, ctrl.PhaseOffsetDeg), nil
	case config.ControlUniform:
		return riskernel.SynthesizeUniform(geom, ctrl.PhaseDeg*math.Pi/180), nil
	case config.ControlFocus:
		return riskernel.SynthesizeFocus(geom, freq, toVec3(ctrl.FocalPoint)), nil
	case config.ControlGradient:
		return riskernel.SynthesizeGradient(geom, freq, toVec3(ctrl.Sources), toVec3(ctrl.Targets)), nil
	default:
		return nil, fmt.Errorf("unsupported control.mode %q", ctrl.Mode)
	}
}

func sweepPattern(cfg *config.RisConfig, geom *riskernel.Geometry, phase riskernel.PhaseMap) (thetaDeg, patternLinear, patternDB []float64) {
	sweep := riskernel.RxSweep{
		StartDeg: cfg.PatternMode.RxSweepDeg.Start,
		StopDeg:  cfg.PatternMode.RxSweepDeg.Stop,
		StepDeg:  cfg.PatternMode.RxSweepDeg.Step,
	}
	norm := riskernel.NormNone
	if cfg.PatternMode.Normalization == config.NormPeak0dB {
		norm = riskernel.NormPeak0dB
	}
	return riskernel.PatternSweep(geom, phase, sweep, cfg.Experiment.FrequencyHz, cfg.Experiment.TxAngleDeg, norm)
}

func runRisPattern(w *artifact.Writer, runID string, cfg *config.RisConfig, geom *riskernel.Geometry, phase riskernel.PhaseMap, configHash string) int {
	thetaDeg, patternLinear, patternDB := sweepPattern(cfg, geom, phase)
	emitProgress(runstore.StatusRunning, 3, "pattern_sweep", 5, f64(0.65), "")

	sidelobe := riskernel.ComputeSidelobeMetrics(thetaDeg, patternDB)

	if err := w.WritePatternData(phase, thetaDeg, patternLinear, patternDB); err != nil {
		emitProgress(runstore.StatusFailed, 4, "write_artifacts", 5, nil, err.Error())
		return exitOther
	}
	plots := render.CartesianPattern(thetaDeg, patternDB)
	polar := render.PolarPattern(thetaDeg, patternDB)
	phaseMapPNG := render.PhaseMap(phase)
	if err := w.WritePatternPlots(phaseMapPNG, plots, polar); err != nil {
		emitProgress(runstore.StatusFailed, 4, "write_artifacts", 5, nil, err.Error())
		return exitOther
	}
	if err := w.WriteRisMetrics(&artifact.RisMetrics{
		Peak:         sidelobe.PeakDB,
		PeakDeg:      sidelobe.PeakDeg,
		FirstNullDeg: sidelobe.FirstNullDeg,
		SLLDB:        sidelobe.SLLDB,
	}); err != nil {
		emitProgress(runstore.StatusFailed, 4, "write_artifacts", 5, nil, err.Error())
		return exitOther
	}
	if err := w.WriteRisSummary(&artifact.RisSummary{
		RunID:     runID,
		Mode:      "pattern",
		Action:    "run",
		ConfigRef: configHash,
		Status:    string(runstore.StatusCompleted),
	}); err != nil {
		emitProgress(runstore.StatusFailed, 4, "write_artifacts", 5, nil, err.Error())
		return exitOther
	}

	emitProgress(runstore.StatusCompleted, 5, "done", 5, f64(1), "")
	return exitSuccess
}

// runRisLink implements SPEC_FULL's supplemented link mode (original_source
// item 2): a single-angle link-gain evaluation instead of a full sweep.
func runRisLink(w *artifact.Writer, runID string, cfg *config.RisConfig, geom *riskernel.Geometry, phase riskernel.PhaseMap, configHash string) int {
	rxAngle := cfg.LinkMode.RxAngleDeg
	linear, db := riskernel.LinkGain(geom, phase, cfg.Experiment.FrequencyHz, cfg.Experiment.TxAngleDeg, rxAngle)
	emitProgress(runstore.StatusRunning, 3, "link_gain", 5, f64(0.65), "")

	phaseMapPNG := render.PhaseMap(phase)
	blank := render.CartesianPattern(nil, nil)
	if err := w.WritePatternPlots(phaseMapPNG, blank, blank); err != nil {
		emitProgress(runstore.StatusFailed, 4, "write_artifacts", 5, nil, err.Error())
		return exitOther
	}
	if err := w.WriteRisMetrics(&artifact.RisMetrics{
		Peak:    db,
		PeakDeg: rxAngle,
	}); err != nil {
		emitProgress(runstore.StatusFailed, 4, "write_artifacts", 5, nil, err.Error())
		return exitOther
	}
	if err := w.WriteRisSummary(&artifact.RisSummary{
		RunID:     runID,
		Mode:      "link",
		Action:    "run",
		ConfigRef: configHash,
		Status:    string(runstore.StatusCompleted),
	}); err != nil {
		emitProgress(runstore.StatusFailed, 4, "write_artifacts", 5, nil, err.Error())
		return exitOther
	}

	_ = linear
	emitProgress(runstore.StatusCompleted, 5, "done", 5, f64(1), "")
	return exitSuccess
}

// runRisValidate implements spec.md §4.4 op 5, sourcing the reference
// pattern from a CSV file named in the job payload's "ref" field
// (SPEC_FULL §SUPPLEMENTED item 5: theta_deg plus pattern_db or
// pattern_linear columns).
func runRisValidate(w *artifact.Writer, runID string, cfg *config.RisConfig, geom *riskernel.Geometry, phase riskernel.PhaseMap, configHash string, jc *jobConfigFile) int {
	thetaDeg, _, patternDB := sweepPattern(cfg, geom, phase)
	emitProgress(runstore.StatusRunning, 3, "pattern_sweep", 5, f64(0.5), "")

	refPath, _ := jc.Payload["ref"].(string)
	if refPath == "" {
		emitProgress(runstore.StatusFailed, 3, "load_reference", 5, nil, "validate action requires a ref csv path")
		return exitInvalidConfig
	}
	refTheta, refPattern, err := loadReferencePattern(refPath)
	if err != nil {
		emitProgress(runstore.StatusFailed, 3, "load_reference", 5, nil, err.Error())
		return exitInvalidConfig
	}
	emitProgress(runstore.StatusRunning, 4, "validate", 5, f64(0.75), "")

	result := riskernel.Validate(thetaDeg, patternDB, refTheta, refPattern, riskernel.ValidationThresholds{
		RMSEDBMax:     cfg.Validation.RMSEDBMax,
		PeakDegErrMax: cfg.Validation.PeakDegErrMax,
	})

	if err := w.WritePatternData(phase, thetaDeg, nil, patternDB); err != nil {
		emitProgress(runstore.StatusFailed, 4, "write_artifacts", 5, nil, err.Error())
		return exitOther
	}
	plots := render.CartesianPattern(thetaDeg, patternDB)
	polar := render.PolarPattern(thetaDeg, patternDB)
	phaseMapPNG := render.PhaseMap(phase)
	if err := w.WritePatternPlots(phaseMapPNG, plots, polar); err != nil {
		emitProgress(runstore.StatusFailed, 4, "write_artifacts", 5, nil, err.Error())
		return exitOther
	}
	overlay := render.ValidationOverlay(thetaDeg, peakNormalize(patternDB), peakNormalize(resampleOnto(thetaDeg, refTheta, refPattern)))
	if err := w.WriteValidationOverlay(overlay); err != nil {
		emitProgress(runstore.StatusFailed, 4, "write_artifacts", 5, nil, err.Error())
		return exitOther
	}
	sidelobe := riskernel.ComputeSidelobeMetrics(thetaDeg, patternDB)
	if err := w.WriteRisMetrics(&artifact.RisMetrics{
		Peak:         sidelobe.PeakDB,
		PeakDeg:      sidelobe.PeakDeg,
		FirstNullDeg: sidelobe.FirstNullDeg,
		SLLDB:        sidelobe.SLLDB,
		Validation:   &result,
	}); err != nil {
		emitProgress(runstore.StatusFailed, 4, "write_artifacts", 5, nil, err.Error())
		return exitOther
	}

	status := runstore.StatusCompleted
	if !result.Pass {
		status = runstore.StatusFailed
	}
	if err := w.WriteRisSummary(&artifact.RisSummary{
		RunID:     runID,
		Mode:      "pattern",
		Action:    "validate",
		ConfigRef: configHash,
		Status:    string(status),
	}); err != nil {
		emitProgress(runstore.StatusFailed, 4, "write_artifacts", 5, nil, err.Error())
		return exitOther
	}

	if !result.Pass {
		emitProgress(runstore.StatusFailed, 5, "done", 5, f64(1), "validation thresholds not met")
		return exitOther
	}
	emitProgress(runstore.StatusCompleted, 5, "done", 5, f64(1), "")
	return exitSuccess
}

// loadReferencePattern reads a CSV with a theta_deg column and either a
// pattern_db or pattern_linear column, converting linear values to dB.
func loadReferencePattern(path string) (thetaDeg, patternDB []float64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open reference csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("read reference csv: %w", err)
	}
	if len(rows) < 2 {
		return nil, nil, fmt.Errorf("reference csv has no data rows")
	}

	thetaIdx, valIdx, valIsDB := -1, -1, true
	for i, h := range rows[0] {
		switch h {
		case "theta_deg":
			thetaIdx = i
		case "pattern_db":
			valIdx, valIsDB = i, true
		case "pattern_linear":
			if valIdx == -1 {
				valIdx, valIsDB = i, false
			}
		}
	}
	if thetaIdx == -1 || valIdx == -1 {
		return nil, nil, fmt.Errorf("reference csv needs a theta_deg column and a pattern_db or pattern_linear column")
	}

	for _, row := range rows[1:] {
		t, err := strconv.ParseFloat(row[thetaIdx], 64)
		if err != nil {
			return nil, nil, fmt.Errorf("parse theta_deg: %w", err)
		}
		v, err := strconv.ParseFloat(row[valIdx], 64)
		if err != nil {
			return nil, nil, fmt.Errorf("parse pattern value: %w", err)
		}
		thetaDeg = append(thetaDeg, t)
		if valIsDB {
			patternDB = append(patternDB, v)
		} else {
			patternDB = append(patternDB, 10*math.Log10(math.Max(v, 1e-12)))
		}
	}
	return thetaDeg, patternDB, nil
}

func peakNormalize(db []float64) []float64 {
	if len(db) == 0 {
		return db
	}
	peak := db[0]
	for _, v := range db {
		if v > peak {
			peak = v
		}
	}
	out := make([]float64, len(db))
	for i, v := range db {
		out[i] = v - peak
	}
	return out
}

func resampleOnto(xq, xs, ys []float64) []float64 {
	out := make([]float64, len(xq))
	for i, x := range xq {
		out[i] = interp1(xs, ys, x)
	}
	return out
}

func interp1(xs, ys []float64, x float64) float64 {
	n := len(xs)
	if n == 0 {
		return 0
	}
	if n == 1 || x <= xs[0] {
		return ys[0]
	}
	if x >= xs[n-1] {
		return ys[n-1]
	}
	for i := 1; i < n; i++ {
		if x <= xs[i] {
			x0, x1 := xs[i-1], xs[i]
			y0, y1 := ys[i-1], ys[i]
			if x1 == x0 {
				return y0
			}
			t := (x - x0) / (x1 - x0)
			return y0 + t*(y1-y0)
		}
	}
	return ys[n-1]
}
