// File: affinity/affinity.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral API for CPU affinity. Platform-specific implementations are
// located in separate files guarded by build tags.

package affinity

import (
	"fmt"
	"runtime"
)

// Pin locks the calling goroutine to its OS thread and binds that thread to
// cpuID. The goroutine stays locked: when it exits the runtime terminates the
// thread, so the narrowed mask never reaches other goroutines.
func Pin(cpuID int) error {
	if cpuID < 0 || cpuID >= runtime.NumCPU() {
		return fmt.Errorf("affinity: cpu %d out of range [0,%d)", cpuID, runtime.NumCPU())
	}
	runtime.LockOSThread()
	if err := setAffinityPlatform(cpuID); err != nil {
		runtime.UnlockOSThread()
		return err
	}
	return nil
}
