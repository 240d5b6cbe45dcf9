//go:build unix

package job

import (
	"os/exec"
	"syscall"
)

// detach starts the job in its own process group so terminal signals aimed
// at the daemon do not reach it, and so a timeout kills the whole group.
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
