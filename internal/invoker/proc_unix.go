//go:build unix

package invoker

import (
	"errors"
	"os/exec"
	"syscall"
)

// configureProcess puts the child in its own process group so that a kill
// reaches anything it spawned (interpreters, model loader workers).
func configureProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		if err := killGroup(cmd.Process.Pid); err != nil {
			return cmd.Process.Kill()
		}
		return nil
	}
}

// reapGroup kills whatever is left in the child's group once the child has
// exited.
func reapGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	_ = killGroup(cmd.Process.Pid)
}

// killGroup sends SIGKILL to process group pgid. An empty group is not an error.
func killGroup(pgid int) error {
	// Negative pid addresses the whole group.
	err := syscall.Kill(-pgid, syscall.SIGKILL)
	if err != nil && !errors.Is(err, syscall.ESRCH) {
		return err
	}
	return nil
}
