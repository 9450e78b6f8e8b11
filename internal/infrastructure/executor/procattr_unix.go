//go:build !windows

package executor

import (
	"os/exec"
	"syscall"
)

// configureProcessGroup puts the child in its own process group so a timeout
// kills everything the shell spawned.
func configureProcessGroup(c *exec.Cmd) {
	c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	c.Cancel = func() error {
		if c.Process == nil {
			return nil
		}
		return syscall.Kill(-c.Process.Pid, syscall.SIGKILL)
	}
}
