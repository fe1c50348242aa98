//go:build !linux

package link

import "runtime"

func raisePriority() (release func(), err error) {
	runtime.LockOSThread()
	return runtime.UnlockOSThread, nil
}
