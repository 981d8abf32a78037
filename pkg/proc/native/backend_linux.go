//go:build linux

package native

import (
	"runtime"

	"github.com/ilian/rdbg/pkg/proc"
)

// NewLinuxBackend wires every function in this package into a
// proc.OsBackend, the single point where the Debugger facade learns
// about the host kernel's ptrace primitives (§9: "selected once at
// Debugger construction").
func NewLinuxBackend() *proc.OsBackend {
	return &proc.OsBackend{
		OS:   "linux",
		Arch: runtime.GOARCH,
		Bits: regProfile.Bits,

		Attach: attach,
		Detach: detach,
		Select: selectThread,

		Step:            step,
		Continue:        cont,
		ContinueSyscall: continueSyscall,

		Wait: wait,
		Kill: kill,

		ReadRegisters:  readRegisters,
		WriteRegisters: writeRegisters,

		Processes:   processList,
		Threads:     threadList,
		Maps:        mapList,
		Descriptors: descriptorList,

		MapAlloc:    mapAlloc,
		MapDealloc:  mapDealloc,
		MapProtect:  mapProtect,
		PromoteHuge: promoteHuge,

		HWBreakpoint: hwBreakpoint,

		GCore: gcore,

		Profile: regProfile,
	}
}
