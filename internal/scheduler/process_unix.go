//go:build unix

package scheduler

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// setProcessGroup puts the worker in its own process group so a drain/kill
// targets the whole subtree, not just the immediate child (spec.md §5
// "in-flight workers run to completion or are killed by the operator").
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// killProcessGroup sends sig to the process group led by pid.
func killProcessGroup(pid int, sig syscall.Signal) error {
	return unix.Kill(-pid, sig)
}
