//go:build !windows

package pidfile

import "golang.org/x/sys/unix"

// alive sends signal 0. EPERM means the process exists under another user.
func alive(pid int) bool {
	err := unix.Kill(pid, 0)
	return err == nil || err == unix.EPERM
}
