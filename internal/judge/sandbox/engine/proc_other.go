//go:build !linux

package engine

import (
	"os"
	"os/exec"
	"syscall"
)

func buildSysProcAttr() *syscall.SysProcAttr {
	return nil
}

// waitProcess reaps the child before exited runs; without process groups
// there is no group id that could be reused.
func waitProcess(cmd *exec.Cmd, exited func()) error {
	err := cmd.Wait()
	exited()
	return err
}

// killProcessTree only reaches the direct child outside Linux.
func killProcessTree(cmd *exec.Cmd) {
	if cmd == nil || cmd.Process == nil {
		return
	}
	_ = cmd.Process.Kill()
}

func signalName(state *os.ProcessState) string {
	return ""
}
