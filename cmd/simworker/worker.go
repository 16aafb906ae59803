package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/saladfingers379/RIS-SIONNA/internal/progress"
	"github.com/saladfingers379/RIS-SIONNA/internal/runstore"
)

// Exit codes per spec.md §6: 0 success, 2 invalid config, 3 resource
// exhaustion (VRAM), 1 anything else. The scheduler reaps these directly.
const (
	exitSuccess            = 0
	exitOther              = 1
	exitInvalidConfig      = 2
	exitResourceExhaustion = 3
)

var workerFlags struct {
	root  string
	runID string
	mode  string
}

var workerCmd = &cobra.Command{
	Use:       "worker <kind> <action>",
	Short:     "Run one sim or ris job (invoked by simcore's scheduler, not by hand)",
	Args:          cobra.ExactArgs(2),
	RunE:          runWorker,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	workerCmd.Flags().StringVar(&workerFlags.root, "root", "./runs", "run directory root")
	workerCmd.Flags().StringVar(&workerFlags.runID, "run-id", "", "run id allocated by the scheduler")
	workerCmd.Flags().StringVar(&workerFlags.mode, "mode", "", "ris pattern|link mode")
	_ = workerCmd.MarkFlagRequired("run-id")
	rootCmd.AddCommand(workerCmd)
}

// jobConfigFile mirrors the snapshot internal/scheduler.writeEffectiveConfig
// writes into the run directory before spawning this process (spec.md
// §4.6: "the scheduler writes the resolved config... then spawns a child
// process").
type jobConfigFile struct {
	JobID   string         `json:"job_id"`
	RunID   string         `json:"run_id"`
	Kind    string         `json:"kind"`
	Action  string         `json:"action"`
	Mode    string         `json:"mode"`
	Payload map[string]any `json:"payload"`
	Job     map[string]any `json:"job"`
}

// vramGuardApplied reports whether the scheduler's VRAM guard downgraded
// this job's parameters, read back out of the job block
// writeEffectiveConfig wrote (spec.md §4.6, [SUPPLEMENTED] #3).
func (jc *jobConfigFile) vramGuardApplied() bool {
	guard, ok := jc.Job["vram_guard"].(map[string]any)
	if !ok {
		return false
	}
	applied, _ := guard["applied"].(bool)
	return applied
}

func loadJobConfig(root, runID string) (*jobConfigFile, error) {
	data, err := os.ReadFile(filepath.Join(root, runID, "job_config.json"))
	if err != nil {
		return nil, fmt.Errorf("read job_config.json: %w", err)
	}
	var jc jobConfigFile
	if err := json.Unmarshal(data, &jc); err != nil {
		return nil, fmt.Errorf("decode job_config.json: %w", err)
	}
	return &jc, nil
}

func runWorker(cmd *cobra.Command, args []string) error {
	kind, action := args[0], args[1]
	jc, err := loadJobConfig(workerFlags.root, workerFlags.runID)
	if err != nil {
		emitProgress(runstore.StatusFailed, 0, "load_config", 1, nil, err.Error())
		return exitWith(exitInvalidConfig)
	}

	switch kind {
	case "sim":
		return exitWith(runSimJob(workerFlags.root, workerFlags.runID, jc))
	case "ris":
		return exitWith(runRisJob(workerFlags.root, workerFlags.runID, action, workerFlags.mode, jc))
	default:
		emitProgress(runstore.StatusFailed, 0, "dispatch", 1, nil, "unknown job kind: "+kind)
		return exitWith(exitInvalidConfig)
	}
}

// exitWith turns an exit code into the error Execute() needs to make
// os.Exit non-zero, without printing anything extra (the caller already
// emitted a PROGRESS line or stderr message).
func exitWith(code int) error {
	if code == exitSuccess {
		return nil
	}
	return exitCodeError(code)
}

type exitCodeError int

func (e exitCodeError) Error() string { return fmt.Sprintf("exit %d", int(e)) }

// emitProgress writes one "PROGRESS {json}" line to stdout, the protocol
// internal/scheduler's captureStdout recognizes (spec.md §6).
func emitProgress(status runstore.Status, stepIndex int, stepName string, totalSteps int, progressValue *float64, errMsg string) {
	rec := progress.Record{
		Status:     status,
		StepIndex:  stepIndex,
		StepName:   stepName,
		TotalSteps: totalSteps,
		Progress:   progressValue,
	}
	if errMsg != "" {
		rec.Error = &errMsg
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return
	}
	fmt.Println("PROGRESS " + string(payload))
}

func f64(v float64) *float64 { return &v }
