package scheduler

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/saladfingers379/RIS-SIONNA/internal/apperr"
	"github.com/saladfingers379/RIS-SIONNA/internal/progress"
	"github.com/saladfingers379/RIS-SIONNA/internal/runstore"
	"github.com/saladfingers379/RIS-SIONNA/pkg/metrics"
)

const maxAllocateAttempts = 3

// Config configures one Scheduler instance.
type Config struct {
	SimConcurrency     int64
	RisConcurrency     int64
	WorkerBinary       string
	FreeMemory         FreeMemoryFunc
	VRAMThresholdBytes int64
	Metrics            *metrics.Registry
}

// DefaultConfig returns the spec.md §4.6 default concurrency caps (1/1,
// "heavy jobs").
func DefaultConfig(workerBinary string) Config {
	return Config{
		SimConcurrency:     1,
		RisConcurrency:     1,
		WorkerBinary:       workerBinary,
		VRAMThresholdBytes: defaultVRAMThresholdBytes,
	}
}

// Submission is the caller-supplied description of a job to enqueue.
type Submission struct {
	Kind      Kind
	Action    string
	Mode      string
	Payload   map[string]any
	GridCells int // sim only, feeds the VRAM-guard cost estimate
	Rays      int // sim only
	MaxDepth  int // sim only
}

// Scheduler owns the two FIFO queues and the job table (spec.md §4.6, §5).
type Scheduler struct {
	store   *runstore.Store
	journal *progress.Journal
	log     *slog.Logger
	cfg     Config

	simSem *semaphore.Weighted
	risSem *semaphore.Weighted

	simQueue chan *Job
	risQueue chan *Job

	mu   sync.Mutex
	jobs map[string]*Job

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Scheduler and starts its two dispatcher loops.
func New(store *runstore.Store, journal *progress.Journal, log *slog.Logger, cfg Config) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		store:    store,
		journal:  journal,
		log:      log,
		cfg:      cfg,
		simSem:   semaphore.NewWeighted(cfg.SimConcurrency),
		risSem:   semaphore.NewWeighted(cfg.RisConcurrency),
		simQueue: make(chan *Job, 4096),
		risQueue: make(chan *Job, 4096),
		jobs:     map[string]*Job{},
		ctx:      ctx,
		cancel:   cancel,
	}
	s.wg.Add(2)
	go s.dispatchLoop(KindSim, s.simQueue, s.simSem)
	go s.dispatchLoop(KindRis, s.risQueue, s.risSem)
	return s
}

// Submit allocates a run id and job id, records the job as queued, and
// returns immediately — the request is never blocked on completion
// (spec.md §4.6).
func (s *Scheduler) Submit(sub Submission) (*Job, error) {
	runKind := runstore.KindSim
	if sub.Kind == KindRis {
		runKind = runstore.KindRis
	}
	run, err := s.store.AllocateWithRetry(runKind, maxAllocateAttempts)
	if err != nil {
		return nil, err
	}
	if sub.Kind == KindSim {
		if sub.Payload == nil {
			sub.Payload = map[string]any{}
		}
		if sub.GridCells > 0 {
			sub.Payload["grid_cells_hint"] = sub.GridCells
		}
		if sub.Rays > 0 {
			sub.Payload["rays"] = sub.Rays
		}
		if sub.MaxDepth > 0 {
			sub.Payload["max_depth"] = sub.MaxDepth
		}
	}

	job := &Job{
		JobID:     uuid.NewString(),
		RunID:     run.ID,
		Kind:      sub.Kind,
		Action:    sub.Action,
		Mode:      sub.Mode,
		CreatedAt: time.Now().UTC(),
		Status:    StatusQueued,
		Payload:   sub.Payload,
	}

	s.mu.Lock()
	s.jobs[job.JobID] = job
	s.mu.Unlock()

	if err := s.journal.Update(run.ID, progress.Record{Status: runstore.StatusQueued}); err != nil {
		s.log.Warn("failed to write initial progress record", "run_id", run.ID, "error", err)
	}

	queue := s.simQueue
	if sub.Kind == KindRis {
		queue = s.risQueue
	}
	select {
	case queue <- job:
	default:
		return nil, apperr.New(apperr.KindIO, "job queue full")
	}
	s.reportQueueDepth(sub.Kind)
	return job, nil
}

func (s *Scheduler) reportQueueDepth(kind Kind) {
	if s.cfg.Metrics == nil {
		return
	}
	s.mu.Lock()
	depth := 0
	for _, j := range s.jobs {
		if j.Kind == kind && (j.Status == StatusQueued || j.Status == StatusRunning) {
			depth++
		}
	}
	s.mu.Unlock()
	s.cfg.Metrics.SetQueueDepth(string(kind), depth)
}

// Get returns a snapshot of one job's current state.
func (s *Scheduler) Get(jobID string) (*Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[jobID]
	if !ok {
		return nil, false
	}
	copy := *j
	return &copy, true
}

// List returns all known jobs of a kind, in submission order.
func (s *Scheduler) List(kind Kind) []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Job
	for _, j := range s.jobs {
		if j.Kind == kind {
			out = append(out, *j)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.Before(out[b].CreatedAt) })
	return out
}

// dispatchLoop is the per-queue dispatcher: it pops jobs in submission
// order and, respecting the queue's concurrency cap, spawns a worker for
// each. Dispatch order equals submission order (spec.md §5 guarantee 1);
// completion order is whatever the semaphore and OS scheduler produce.
func (s *Scheduler) dispatchLoop(kind Kind, queue chan *Job, sem *semaphore.Weighted) {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case job, ok := <-queue:
			if !ok {
				return
			}
			if err := sem.Acquire(s.ctx, 1); err != nil {
				return
			}
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				defer sem.Release(1)
				s.runJob(job)
			}()
		}
	}
}

// runJob transitions a job queued -> running -> {completed|failed},
// spawning and reaping the worker process in between (spec.md §4.6).
func (s *Scheduler) runJob(job *Job) {
	start := time.Now()
	s.setStatus(job, StatusRunning, "")
	s.reportQueueDepth(job.Kind)
	if err := s.journal.Update(job.RunID, progress.Record{Status: runstore.StatusRunning, StepIndex: 0}); err != nil {
		s.log.Warn("failed to write running progress record", "run_id", job.RunID, "error", err)
	}
	defer func() {
		s.reportQueueDepth(job.Kind)
		if s.cfg.Metrics != nil {
			j, _ := s.Get(job.JobID)
			status := StatusFailed
			if j != nil {
				status = j.Status
			}
			s.cfg.Metrics.ObserveJob(string(job.Kind), string(status), time.Since(start).Seconds())
		}
	}()

	if job.Kind == KindSim {
		gridCells := toInt(job.Payload["grid_cells_hint"], 0)
		rays := toInt(job.Payload["rays"], 64)
		depth := toInt(job.Payload["max_depth"], 4)
		job.VRAMGuard = applyVRAMGuard(s.cfg.FreeMemory, s.cfg.VRAMThresholdBytes, gridCells, &rays, &depth)
		if job.VRAMGuard != nil && job.VRAMGuard.Applied {
			job.Payload["rays"] = rays
			job.Payload["max_depth"] = depth
		}
	}

	run, err := s.store.Open(job.RunID)
	if err != nil {
		s.fail(job, "resolve run directory: "+err.Error())
		return
	}
	if err := s.writeEffectiveConfig(run, job); err != nil {
		s.fail(job, "write effective config: "+err.Error())
		return
	}

	exitCode, lastStderr, err := s.spawnWorker(job)
	if err != nil {
		s.fail(job, err.Error())
		return
	}
	switch exitCode {
	case 0:
		s.setStatus(job, StatusCompleted, "")
		_ = s.journal.Update(job.RunID, progress.Record{Status: runstore.StatusCompleted, StepIndex: 1, Progress: f64ptr(1)})
	case 2:
		s.fail(job, "invalid config")
	case 3:
		s.fail(job, "resource exhaustion (vram)")
	default:
		msg := lastStderr
		if msg == "" {
			msg = fmt.Sprintf("exit %d", exitCode)
		}
		s.fail(job, msg)
	}
}

func (s *Scheduler) fail(job *Job, message string) {
	s.setStatus(job, StatusFailed, message)
	errMsg := message
	_ = s.journal.Update(job.RunID, progress.Record{Status: runstore.StatusFailed, Error: &errMsg})
}

func (s *Scheduler) setStatus(job *Job, status Status, errMsg string) {
	s.mu.Lock()
	if j, ok := s.jobs[job.JobID]; ok {
		j.Status = status
		j.Error = errMsg
	}
	s.mu.Unlock()
	s.store.NoteStatus(job.RunID, runstoreKind(job.Kind), runstore.Status(status))
}

// runstoreKind maps a scheduler queue name to the runstore.Kind of the run
// it allocates (spec.md §4.6: kind doubles as both).
func runstoreKind(k Kind) runstore.Kind {
	if k == KindRis {
		return runstore.KindRis
	}
	return runstore.KindSim
}

// writeEffectiveConfig persists the post-merge, post-VRAM-guard config the
// worker must resolve, before the worker is ever spawned (spec.md §4.6: "the
// scheduler writes the resolved config... into the run directory, then
// spawns a child process"). A write failure fails the job without spawning
// a worker.
func (s *Scheduler) writeEffectiveConfig(run *runstore.Run, job *Job) error {
	snapshot := map[string]any{
		"job_id":  job.JobID,
		"run_id":  job.RunID,
		"kind":    job.Kind,
		"action":  job.Action,
		"mode":    job.Mode,
		"payload": job.Payload,
		"job": map[string]any{
			"vram_guard": job.VRAMGuard,
		},
	}
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return apperr.Wrap(apperr.KindIO, "marshal effective config", err)
	}
	return s.store.WriteAtomic(run, "job_config.json", data)
}

// spawnWorker runs cmd/simworker for job, line-capturing combined
// stdout+stderr into run.log and routing "PROGRESS {json}" stdout lines to
// the ProgressJournal (spec.md §4.6, §6 progress-line protocol).
func (s *Scheduler) spawnWorker(job *Job) (exitCode int, lastStderr string, err error) {
	args := []string{"worker", string(job.Kind), job.Action, "--run-id", job.RunID, "--root", s.store.Root}
	if job.Mode != "" {
		args = append(args, "--mode", job.Mode)
	}
	cmd := exec.Command(s.cfg.WorkerBinary, args...)
	setProcessGroup(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return 0, "", apperr.Wrap(apperr.KindIO, "open worker stdout", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return 0, "", apperr.Wrap(apperr.KindIO, "open worker stderr", err)
	}

	if err := cmd.Start(); err != nil {
		return 0, "", apperr.Wrap(apperr.KindWorkerCrash, "start worker", err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.captureStdout(job, stdout)
	}()
	go func() {
		defer wg.Done()
		lastStderr = s.captureStderr(job, stderr)
	}()
	wg.Wait()

	waitErr := cmd.Wait()
	if waitErr == nil {
		return 0, lastStderr, nil
	}
	if exitErr, ok := waitErr.(*exec.ExitError); ok {
		return exitErr.ExitCode(), lastStderr, nil
	}
	return 1, lastStderr, apperr.Wrap(apperr.KindWorkerCrash, "wait for worker", waitErr)
}

func (s *Scheduler) captureStdout(job *Job, r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if rec, ok := parseProgressLine(line); ok {
			if err := s.journal.Update(job.RunID, rec); err != nil {
				s.log.Warn("progress update from worker line failed", "run_id", job.RunID, "error", err)
			}
			continue
		}
		_ = s.journal.AppendLog(job.RunID, line)
	}
}

func (s *Scheduler) captureStderr(job *Job, r io.Reader) (last string) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		_ = s.journal.AppendLog(job.RunID, line)
		if strings.TrimSpace(line) != "" {
			last = line
		}
	}
	return last
}

// Shutdown signals an orderly drain: no new dispatches occur; in-flight
// workers are left to run to completion (spec.md §5 "Cancellation/timeout").
func (s *Scheduler) Shutdown() {
	s.cancel()
	s.wg.Wait()
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

func f64ptr(v float64) *float64 { return &v }
