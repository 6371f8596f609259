//go:build unix

package daemon

import (
	"os/exec"
	"syscall"
)

// setProcessGroup puts cmd in its own process group so killProcessGroup can
// later reach every descendant a fetch stub's `make` recipe spawns, not just
// make itself.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// killProcessGroup sends SIGKILL to the process group led by pid.
func killProcessGroup(pid int) {
	_ = syscall.Kill(-pid, syscall.SIGKILL)
}
