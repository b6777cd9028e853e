//go:build unix

package command

import (
	"errors"
	"os/exec"
	"syscall"
)

// setProcessGroup puts the child in its own group so a shell and everything
// it started can be signalled together.
func setProcessGroup(c *exec.Cmd) {
	c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func terminate(c *exec.Cmd) error {
	return syscall.Kill(-c.Process.Pid, syscall.SIGTERM)
}

func kill(c *exec.Cmd) error {
	return syscall.Kill(-c.Process.Pid, syscall.SIGKILL)
}

func isNoSuchProcess(err error) bool {
	return errors.Is(err, syscall.ESRCH)
}
