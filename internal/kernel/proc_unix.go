//go:build unix

package kernel

import (
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

// procAttrNewGroup puts the child in its own process group so a kill
// can target every process it spawned, not just the direct child.
func procAttrNewGroup() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}

// killProcessGroup sends SIGKILL to the whole group (negative pid).
func killProcessGroup(proc *os.Process) {
	if proc == nil {
		return
	}
	_ = unix.Kill(-proc.Pid, unix.SIGKILL)
}
