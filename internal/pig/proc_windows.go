//go:build windows

package pig

import (
	"os"
	"os/exec"
)

func setProcessGroup(cmd *exec.Cmd) {}

// processAlive cannot check liveness without signals here; Kill reports ErrProcessDone instead.
func processAlive(p *os.Process) bool {
	return true
}

func killProcess(p *os.Process) error {
	return p.Kill()
}
