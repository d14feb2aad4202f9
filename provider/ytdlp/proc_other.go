//go:build !unix

package ytdlp

import "os/exec"

// Only the process itself is killed; WaitDelay bounds how long stray children can hold the output pipe.
func killProcessGroup(cmd *exec.Cmd) {}
