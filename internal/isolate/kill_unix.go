//go:build unix

package isolate

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// configureKill puts the worker in its own process group and makes context
// cancellation SIGKILL the whole group.
func configureKill(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		err := unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
		if err == unix.ESRCH {
			return nil
		}
		return err
	}
}
