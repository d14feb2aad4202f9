//go:build unix

package ytdlp

import (
	"os/exec"
	"syscall"
)

// killProcessGroup starts cmd in its own process group and kills the whole group on cancellation, so that children
// holding the output pipe open die with it.
func killProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
