//go:build windows

package harness

import (
	"os"
	"os/exec"
)

func setProcessGroup(cmd *exec.Cmd) {}

// windows has no SIGTERM; both stages kill the process
func terminate(p *os.Process) error {
	return p.Kill()
}

func kill(p *os.Process) error {
	return p.Kill()
}
