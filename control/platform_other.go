//go:build !linux
// +build !linux

package control

import "runtime"

// RegisterPlatformProbes adds the CPU count.
func RegisterPlatformProbes(dp *DebugProbes) {
	dp.RegisterProbe("platform.cpus", func() any {
		return runtime.NumCPU()
	})
}
