//go:build linux

package pool

import (
	"golang.org/x/sys/unix"
)

// SetRealtime moves the calling thread into the SCHED_RR class at the given
// priority. The caller must be locked to its OS thread. Requires
// CAP_SYS_NICE; failure is reported so callers can continue at default
// priority.
func SetRealtime(priority int) error {
	if priority <= 0 {
		return nil
	}

	attr := unix.SchedAttr{
		Size:     unix.SizeofSchedAttr,
		Policy:   unix.SCHED_RR,
		Priority: uint32(priority),
	}
	return unix.SchedSetAttr(0, &attr, 0)
}
