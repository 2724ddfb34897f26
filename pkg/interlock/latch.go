// Package interlock enforces the proximity and stall shutdowns and owns
// the process-wide Stopped latch.
package interlock

import (
	"github.com/golang/glog"
	"go.uber.org/atomic"
)

// Latch is the process-wide Stopped flag. Once stopped, motion commands
// are suppressed until Clear.
type Latch struct {
	stopped atomic.Bool
}

// Stop sets the latch and tells if it was running before.
func (l *Latch) Stop() bool {
	if l.stopped.CompareAndSwap(false, true) {
		glog.Warning("stopped latch set")
		return true
	}
	return false
}

// Clear releases the latch and tells if it was stopped before.
func (l *Latch) Clear() bool {
	if l.stopped.CompareAndSwap(true, false) {
		glog.Info("stopped latch cleared")
		return true
	}
	return false
}

// Stopped implements driver.Latch.
func (l *Latch) Stopped() bool {
	return l.stopped.Load()
}
