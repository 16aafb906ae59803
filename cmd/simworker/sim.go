package main

import (
	"context"
	"encoding/json"

	"github.com/saladfingers379/RIS-SIONNA/internal/artifact"
	"github.com/saladfingers379/RIS-SIONNA/internal/config"
	"github.com/saladfingers379/RIS-SIONNA/internal/gridalign"
	"github.com/saladfingers379/RIS-SIONNA/internal/runstore"
	"github.com/saladfingers379/RIS-SIONNA/internal/tracer"
)

// sceneSpec is the worker's own decoding of a sim job's scene block. The
// scene loader itself is out of scope (spec.md §1); this is only the
// subset of fields the core's own viewer artifacts need.
type sceneSpec struct {
	Name        string           `json:"name"`
	Transmitter [3]float64       `json:"transmitter"`
	Receivers   [][3]float64     `json:"receivers"`
	Objects     []sceneObjectSpec `json:"objects"`
	FrequencyHz float64          `json:"frequency_hz"`
	TxPowerDBM  float64          `json:"tx_power_dbm"`
}

type sceneObjectSpec struct {
	Name     string     `json:"name"`
	Kind     string     `json:"kind"`
	Position [3]float64 `json:"position"`
}

func decodeInto(src any, dst any) error {
	b, err := json.Marshal(src)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, dst)
}

// runSimJob resolves the Tracer facade for a sim job's requested backend,
// runs the radio-map + path trace, and writes every sim artifact spec.md
// §4.5 lists. Returns the worker exit code (spec.md §6).
func runSimJob(root, runID string, jc *jobConfigFile) int {
	store, err := runstore.New(root)
	if err != nil {
		emitProgress(runstore.StatusFailed, 0, "init", 4, nil, err.Error())
		return exitOther
	}
	run, err := store.Open(runID)
	if err != nil {
		emitProgress(runstore.StatusFailed, 0, "init", 4, nil, err.Error())
		return exitOther
	}
	w := artifact.New(store, run)

	var scene sceneSpec
	scene.FrequencyHz = 2.4e9
	scene.TxPowerDBM = 20
	if sceneRaw, ok := jc.Payload["scene"]; ok && sceneRaw != nil {
		if err := decodeInto(sceneRaw, &scene); err != nil {
			emitProgress(runstore.StatusFailed, 0, "parse_scene", 4, nil, err.Error())
			return exitInvalidConfig
		}
	}
	emitProgress(runstore.StatusRunning, 0, "parse_scene", 4, f64(0), "")

	var grid *gridalign.Grid
	if gridRaw, ok := jc.Payload["radio_map"]; ok && gridRaw != nil {
		var gr config.GridRequest
		if err := decodeInto(gridRaw, &gr); err != nil {
			emitProgress(runstore.StatusFailed, 1, "align_grid", 4, nil, err.Error())
			return exitInvalidConfig
		}
		if gr.Enabled {
			devices := make([]gridalign.Device, 0, len(scene.Receivers)+len(scene.Objects))
			for _, rx := range scene.Receivers {
				devices = append(devices, gridalign.Device{X: rx[0], Y: rx[1]})
			}
			for _, obj := range scene.Objects {
				devices = append(devices, gridalign.Device{X: obj.Position[0], Y: obj.Position[1]})
			}
			grid, err = gridalign.Align(gridalign.Request{
				RequestedSize: gr.RequestedSize,
				CellSize:      gr.CellSize,
				Center:        gr.Center,
				AutoSize:      gr.AutoSize,
				Padding:       gr.Padding,
				Devices:       devices,
			})
			if err != nil {
				emitProgress(runstore.StatusFailed, 1, "align_grid", 4, nil, err.Error())
				return exitInvalidConfig
			}
		}
	}
	emitProgress(runstore.StatusRunning, 1, "align_grid", 4, f64(0.25), "")

	rays := toInt(jc.Payload["rays"], 64)
	maxDepth := toInt(jc.Payload["max_depth"], 4)
	backend := tracer.BackendCPU
	allowFallback := true
	if sim, ok := jc.Payload["simulation"].(map[string]any); ok {
		if b, _ := sim["backend"].(string); b == string(tracer.BackendGPU) {
			backend = tracer.BackendGPU
		}
		if v, ok := sim["allow_backend_fallback"].(bool); ok {
			allowFallback = v
		}
		if v, ok := sim["rays"]; ok {
			rays = toInt(v, rays)
		}
		if v, ok := sim["max_depth"]; ok {
			maxDepth = toInt(v, maxDepth)
		}
	}

	tr, err := tracer.Select(backend, allowFallback, tracer.DefaultGPUProbe)
	if err != nil {
		emitProgress(runstore.StatusFailed, 2, "select_backend", 4, nil, err.Error())
		return exitResourceExhaustion
	}
	emitProgress(runstore.StatusRunning, 2, "trace", 4, f64(0.5), "")

	result, err := tr.Trace(context.Background(), tracer.Request{
		Scene: tracer.Scene{
			Name:        scene.Name,
			Transmitter: scene.Transmitter,
			Receivers:   scene.Receivers,
			FrequencyHz: scene.FrequencyHz,
			TxPowerDBM:  scene.TxPowerDBM,
		},
		Grid:     grid,
		Rays:     rays,
		MaxDepth: maxDepth,
	})
	if err != nil {
		emitProgress(runstore.StatusFailed, 2, "trace", 4, nil, err.Error())
		return exitOther
	}

	if err := writeSimArtifacts(w, runID, scene, grid, result, jc.vramGuardApplied()); err != nil {
		emitProgress(runstore.StatusFailed, 3, "write_artifacts", 4, nil, err.Error())
		return exitOther
	}

	emitProgress(runstore.StatusCompleted, 4, "done", 4, f64(1), "")
	return exitSuccess
}

func writeSimArtifacts(w *artifact.Writer, runID string, scene sceneSpec, grid *gridalign.Grid, result *tracer.Result, vramGuardApplied bool) error {
	if grid != nil && result.HeatmapDB != nil {
		h := artifact.NewHeatmap("rx_power_dbm", grid, result.HeatmapDB)
		if err := w.WriteHeatmap(h); err != nil {
			return err
		}
	}

	markers := make([]artifact.Marker, 0, len(result.Markers))
	for id, pos := range result.Markers {
		kind := "receiver"
		if id == "tx" {
			kind = "transmitter"
		}
		markers = append(markers, artifact.Marker{ID: id, Kind: kind, Position: pos})
	}
	if err := w.WriteMarkers(markers); err != nil {
		return err
	}

	paths := make([]artifact.Path, 0, len(result.Paths))
	for _, p := range result.Paths {
		interactions := make([]artifact.PathInteraction, 0, len(p.Interactions))
		for _, in := range p.Interactions {
			interactions = append(interactions, artifact.PathInteraction{Type: in.Type, Position: in.Position})
		}
		paths = append(paths, artifact.Path{
			PathID:       p.PathID,
			Points:       p.Points,
			Order:        p.Order,
			Type:         p.Type,
			PathLengthM:  p.PathLengthM,
			DelaySeconds: p.DelaySeconds,
			PowerDB:      p.PowerDB,
			Interactions: interactions,
		})
	}
	if err := w.WritePaths(paths); err != nil {
		return err
	}

	objNames := make([]string, 0, len(scene.Objects))
	boundsMin, boundsMax := [3]float64{}, [3]float64{}
	for i, obj := range scene.Objects {
		objNames = append(objNames, obj.Name)
		if i == 0 {
			boundsMin, boundsMax = obj.Position, obj.Position
		} else {
			for axis := 0; axis < 3; axis++ {
				if obj.Position[axis] < boundsMin[axis] {
					boundsMin[axis] = obj.Position[axis]
				}
				if obj.Position[axis] > boundsMax[axis] {
					boundsMax[axis] = obj.Position[axis]
				}
			}
		}
	}
	if err := w.WriteSceneManifest(&artifact.SceneManifest{
		SceneName: scene.Name,
		Objects:   objNames,
		BoundsMin: boundsMin,
		BoundsMax: boundsMax,
	}); err != nil {
		return err
	}

	guardApplied := vramGuardApplied
	return w.WriteSimSummary(&artifact.SimSummary{
		RunID:     runID,
		Profile:   "default",
		Scene:     scene.Name,
		Status:    string(runstore.StatusCompleted),
		VRAMGuard: &guardApplied,
	})
}

func toInt(v any, def int) int {
	switch t := v.(type) {
	case int:
		return t
	case float64:
		return int(t)
	default:
		return def
	}
}
