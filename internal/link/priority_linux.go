//go:build linux

package link

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// raisePriority pins the calling goroutine to its OS thread and asks for the
// highest nice level for that thread. Without CAP_SYS_NICE the kernel refuses
// and the thread keeps its default priority.
//
// release puts the previous nice level back before handing the thread to the
// scheduler. If that fails the thread stays locked and exits with the
// goroutine.
func raisePriority() (release func(), err error) {
	runtime.LockOSThread()
	tid := unix.Gettid()

	// The raw syscall reports 20 - nice.
	prev, err := unix.Getpriority(unix.PRIO_PROCESS, tid)
	if err != nil {
		return runtime.UnlockOSThread, err
	}
	if err := unix.Setpriority(unix.PRIO_PROCESS, tid, -20); err != nil {
		return runtime.UnlockOSThread, err
	}
	return func() {
		if unix.Setpriority(unix.PRIO_PROCESS, tid, 20-prev) == nil {
			runtime.UnlockOSThread()
		}
	}, nil
}
