package tracer

import (
	"context"
	"os"
	"os/exec"
)

// gpuTracer is the CUDA/OptiX backend. The GPU-accelerated solver itself is
// out of scope (spec.md §1); when actually selected this would hand the
// request to that library. The facade here uses the same estimator as the
// CPU backend so Select's no-silent-fallback contract is exercised without
// a CUDA toolchain in the build.
type gpuTracer struct {
	cpuTracer
}

func newGPUTracer() *gpuTracer { return &gpuTracer{} }

func (t *gpuTracer) Backend() Backend { return BackendGPU }

func (t *gpuTracer) Trace(ctx context.Context, req Request) (*Result, error) {
	res, err := t.cpuTracer.Trace(ctx, req)
	if err != nil {
		return nil, err
	}
	res.Backend = BackendGPU
	return res, nil
}

// optixLibraryPaths mirrors original_source's check_optix_runtime, which
// dlopens libnvoptix.so.1 via ctypes to detect a working OptiX runtime.
var optixLibraryPaths = []string{
	"/usr/lib/x86_64-linux-gnu/libnvoptix.so.1",
	"/usr/lib/libnvoptix.so.1",
	"/usr/local/cuda/lib64/libnvoptix.so.1",
}

// DefaultGPUProbe reports whether this host looks like it has a usable
// CUDA/OptiX stack, the same two signals original_source's
// collect_environment_info checks: an `nvidia-smi` binary on PATH and the
// OptiX runtime library present.
func DefaultGPUProbe() bool {
	if _, err := exec.LookPath("nvidia-smi"); err != nil {
		return false
	}
	for _, p := range optixLibraryPaths {
		if _, err := os.Stat(p); err == nil {
			return true
		}
	}
	return false
}
