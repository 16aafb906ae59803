package scheduler

// FreeMemoryFunc reports free device memory in bytes; the scheduler treats
// a nil func as "no VRAM guard configured" (spec.md §4.6 "an optional
// hook").
type FreeMemoryFunc func() (freeBytes int64, ok bool)

// estimateCost mirrors original_source/app/sim_jobs.py:_estimate_job_cost:
// a cheap heuristic over the radio-map grid size and ray-tracing depth/ray
// count. It is recorded in the job's VRAM-guard record (the job block of
// job_config.json) for post-mortem; the downgrade decision itself compares
// only free memory with the threshold, and summary.json does not carry it.
func estimateCost(gridCells, rays, maxDepth int) CostEstimate {
	score := float64(gridCells) * float64(rays) * float64(maxDepth+1)
	return CostEstimate{Score: score, GridCells: gridCells, Rays: rays, MaxDepth: maxDepth}
}

// defaultVRAMThresholdBytes is the default "below this, downgrade" threshold;
// overridable per-scheduler via Config.VRAMThresholdBytes.
const defaultVRAMThresholdBytes int64 = 1 << 30 // 1 GiB

// applyVRAMGuard downgrades rays/maxDepth in place when free memory is
// below threshold, returning the guard record to attach to the job. Never
// blocks on another job — a guard decision is made purely from the current
// free-memory reading (spec.md §5 "best-effort and non-blocking").
func applyVRAMGuard(freeFn FreeMemoryFunc, thresholdBytes int64, gridCells int, rays, maxDepth *int) *VRAMGuard {
	if freeFn == nil {
		return nil
	}
	free, ok := freeFn()
	if !ok {
		return nil
	}
	est := estimateCost(gridCells, *rays, *maxDepth)
	guard := &VRAMGuard{FreeBytes: free, ThresholdBytes: thresholdBytes, CostEstimate: &est}
	if free >= thresholdBytes {
		return guard
	}
	guard.Applied = true
	if *rays > 1 {
		*rays /= 2
	}
	if *maxDepth > 1 {
		*maxDepth--
	}
	return guard
}
