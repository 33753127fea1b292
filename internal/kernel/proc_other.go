//go:build !unix

package kernel

import (
	"os"
	"syscall"
)

// procAttrNewGroup has no process-group equivalent wired up on
// non-Unix platforms; the child is killed directly instead.
func procAttrNewGroup() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{}
}

func killProcessGroup(proc *os.Process) {
	if proc == nil {
		return
	}
	_ = proc.Kill()
}
