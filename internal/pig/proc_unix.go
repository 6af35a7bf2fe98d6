//go:build !windows

package pig

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
)

// setProcessGroup starts the child in its own process group so Kill also
// reaches anything it spawned that still holds the output pipe.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// processAlive reports whether p has not been reaped yet.
func processAlive(p *os.Process) bool {
	return !errors.Is(p.Signal(syscall.Signal(0)), os.ErrProcessDone)
}

// killProcess sends SIGKILL to the process group led by p.
func killProcess(p *os.Process) error {
	if err := syscall.Kill(-p.Pid, syscall.SIGKILL); err != nil {
		return p.Kill()
	}
	return nil
}
