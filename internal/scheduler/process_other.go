//go:build !unix

package scheduler

import (
	"os/exec"
	"syscall"
)

func setProcessGroup(cmd *exec.Cmd) {}

func killProcessGroup(pid int, sig syscall.Signal) error { return nil }
