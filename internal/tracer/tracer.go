// Package tracer defines the narrow facade the worker uses to reach the
// third-party ray-tracing backend (spec.md §1 "the core consumes it through
// a narrow Tracer facade"; the wave-propagation solver, scene loader, and
// GPU backend themselves are out of scope). Backend selection follows the
// original implementation's variant-selection policy (original_source
// app/utils/system.py select_mitsuba_variant): a GPU backend is tried when
// requested, and only silently substituted for the CPU backend when the
// caller allows it — never otherwise.
package tracer

import (
	"context"

	"github.com/saladfingers379/RIS-SIONNA/internal/apperr"
	"github.com/saladfingers379/RIS-SIONNA/internal/gridalign"
)

// Backend identifies which compute backend a Tracer implementation runs on.
// The two verdict strings below are the exact single-line messages spec.md
// §7 requires on BackendUnavailable.
type Backend string

const (
	BackendCPU Backend = "cpu_llvm"
	BackendGPU Backend = "cuda_optix"
)

func (b Backend) verdict() string {
	if b == BackendGPU {
		return "RT backend is CUDA/OptiX"
	}
	return "RT backend is CPU/LLVM"
}

// Scene is the minimal scene description a Tracer needs: object geometry is
// opaque to the core (Renderer/scene-loader are out of scope per spec.md §1),
// so only what the core's own artifacts require is carried here.
type Scene struct {
	Name        string
	Transmitter [3]float64
	Receivers   [][3]float64
	Objects     []SceneObject
	FrequencyHz float64
	TxPowerDBM  float64
}

// SceneObject is one entry of the viewer's scene_manifest.json (spec.md
// §4.5).
type SceneObject struct {
	Name     string
	Kind     string
	Position [3]float64
}

// Request bundles everything a Trace call needs to fill in a radio map and
// the path set behind it.
type Request struct {
	Scene    Scene
	Grid     *gridalign.Grid // nil if no radio map was requested
	Rays     int
	MaxDepth int
}

// PathInteraction is one bounce along a traced path.
type PathInteraction struct {
	Type     string
	Position [3]float64
}

// Path is one ray-traced propagation path between transmitter and a
// receiver (spec.md §4.5 viewer/paths.json fields).
type Path struct {
	PathID       string
	Points       [][3]float64
	Order        int
	Type         string
	PathLengthM  float64
	DelaySeconds float64
	PowerDB      float64
	Interactions []PathInteraction
}

// Result is everything ArtifactWriter needs to render a sim run's viewer
// artifacts.
type Result struct {
	Backend     Backend
	HeatmapDB   [][]float64 // nil if Request.Grid was nil; shape matches Grid.CellCenters
	Paths       []Path
	Markers     map[string][3]float64
}

// Tracer is the facade every backend implementation satisfies.
type Tracer interface {
	Backend() Backend
	Trace(ctx context.Context, req Request) (*Result, error)
}

// GPUProbe reports whether a GPU-capable backend is usable on this host,
// mirroring original_source's nvidia-smi/OptiX runtime probes
// (check_optix_runtime, get_gpu_memory_mb).
type GPUProbe func() bool

// Select resolves the Tracer for a requested backend. If the GPU backend is
// requested but GPUProbe reports it unusable, fallback to CPU happens only
// when allowFallback is true — otherwise this returns a BackendUnavailable
// error whose message is the exact single-line verdict spec.md §7 requires,
// and the worker is expected to exit with code 3.
func Select(requested Backend, allowFallback bool, probe GPUProbe) (Tracer, error) {
	if requested == "" {
		requested = BackendCPU
	}
	if requested == BackendCPU {
		return newCPUTracer(), nil
	}
	if probe != nil && probe() {
		return newGPUTracer(), nil
	}
	if allowFallback {
		return newCPUTracer(), nil
	}
	return nil, apperr.New(apperr.KindBackendUnavailable, requested.verdict())
}
