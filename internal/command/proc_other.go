//go:build !unix

package command

import (
	"os"
	"os/exec"
)

func setProcessGroup(*exec.Cmd) {}

// Without process groups terminate and kill both kill the direct child.
func terminate(c *exec.Cmd) error {
	return c.Process.Signal(os.Kill)
}

func kill(c *exec.Cmd) error {
	return c.Process.Kill()
}

func isNoSuchProcess(error) bool {
	return false
}
