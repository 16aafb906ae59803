// Package scheduler implements JobScheduler (spec.md §4.6): two independent
// FIFO queues (sim, ris) with bounded concurrency, worker subprocess
// spawning, VRAM guarding, and terminal-status reaping.
package scheduler

import "time"

// Kind is the job family a Job belongs to; it doubles as the queue name
// and the runstore.Kind of the run it allocates.
type Kind string

const (
	KindSim Kind = "sim"
	KindRis Kind = "ris"
)

// Status is a job's lifecycle stage (spec.md §4.6).
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// CostEstimate is the VRAM-guard cost estimate supplemented from
// original_source/app/sim_jobs.py:_estimate_job_cost — computed before the
// guard decision and persisted alongside it for post-mortem.
type CostEstimate struct {
	Score     float64 `json:"score"`
	GridCells int     `json:"grid_cells"`
	Rays      int     `json:"rays"`
	MaxDepth  int     `json:"max_depth"`
}

// VRAMGuard records whether the guard fired and what it changed.
type VRAMGuard struct {
	Applied      bool           `json:"applied"`
	FreeBytes    int64          `json:"free_bytes,omitempty"`
	ThresholdBytes int64        `json:"threshold_bytes,omitempty"`
	CostEstimate *CostEstimate  `json:"cost_estimate,omitempty"`
}

// Job is a scheduled unit (spec.md §3 GLOSSARY).
type Job struct {
	JobID     string         `json:"job_id"`
	RunID     string         `json:"run_id"`
	Kind      Kind           `json:"kind"`
	Action    string         `json:"action"` // run|validate
	Mode      string         `json:"mode,omitempty"` // pattern|link
	CreatedAt time.Time      `json:"created_at"`
	Status    Status         `json:"status"`
	Error     string         `json:"error,omitempty"`
	VRAMGuard *VRAMGuard     `json:"vram_guard,omitempty"`
	Payload   map[string]any `json:"payload_snapshot"`
}
