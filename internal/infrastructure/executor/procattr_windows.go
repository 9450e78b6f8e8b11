//go:build windows

package executor

import (
	"os/exec"
	"strconv"
	"syscall"

	"golang.org/x/sys/windows"
)

func configureProcessGroup(c *exec.Cmd) {
	c.SysProcAttr = &syscall.SysProcAttr{CreationFlags: windows.CREATE_NEW_PROCESS_GROUP}
	c.Cancel = func() error {
		if c.Process == nil {
			return nil
		}
		// taskkill /T takes the whole tree down with the shell.
		kill := exec.Command("taskkill", "/F", "/T", "/PID", strconv.Itoa(c.Process.Pid))
		if err := kill.Run(); err != nil {
			return c.Process.Kill()
		}
		return nil
	}
}
