//go:build !linux

package pool

import "errors"

// SetRealtime is a no-op stub on platforms without SCHED_RR.
func SetRealtime(priority int) error {
	if priority <= 0 {
		return nil
	}
	return errors.ErrUnsupported
}
