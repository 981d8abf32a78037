//go:build windows

// The windows file documents the capability shape without implementing
// it: DebugActiveProcess/WaitForDebugEvent/ContinueDebugEvent is a
// materially different API surface from Linux ptrace, and Windows is
// not the primary buildable target here (§1). Every field still returns
// NotImplemented, so a caller gets a typed error rather than a
// nil-function-pointer panic if this backend is ever selected.
package native

import (
	"context"

	"github.com/ilian/rdbg/pkg/proc"
)

func NewWindowsBackend() *proc.OsBackend {
	return &proc.OsBackend{
		OS:   "windows",
		Arch: "amd64",
		Bits: 64,

		Attach: func(pid int) (int, error) { return -1, proc.ErrNotImplemented },
		Detach: func(pid int) error { return proc.ErrNotImplemented },
		Select: func(pid, tid int) error { return proc.ErrNotImplemented },

		Step:            func(tid int) error { return proc.ErrNotImplemented },
		Continue:        func(pids []int, sig int) error { return proc.ErrNotImplemented },
		ContinueSyscall: func(pid int) error { return proc.ErrNotImplemented },

		Wait: func(ctx context.Context, pid, tid int) (proc.RawEvent, error) {
			return proc.RawEvent{}, proc.ErrNotImplemented
		},
		Kill: func(pid, tid, sig int) error { return proc.ErrNotImplemented },

		ReadRegisters:  func(tid int, kind proc.RegKind) ([]byte, error) { return nil, proc.ErrNotImplemented },
		WriteRegisters: func(tid int, kind proc.RegKind, buf []byte) error { return proc.ErrNotImplemented },

		Processes:   func(filterPpid int, hasFilter bool) ([]proc.ProcessInfo, error) { return nil, proc.ErrNotImplemented },
		Threads:     func(pid int) ([]proc.ThreadInfo, error) { return nil, proc.ErrNotImplemented },
		Maps:        func(pid int) ([]proc.MemoryMap, error) { return nil, proc.ErrNotImplemented },
		Descriptors: func(pid int) ([]proc.Descriptor, error) { return nil, proc.ErrNotImplemented },

		MapAlloc: func(bank *proc.RegisterBank, pid int, addrHint, size uint64, huge bool) (proc.MemoryMap, error) {
			return proc.MemoryMap{}, proc.ErrNotImplemented
		},
		MapDealloc:  func(bank *proc.RegisterBank, pid int, addr, size uint64) error { return proc.ErrNotImplemented },
		MapProtect:  func(bank *proc.RegisterBank, pid int, addr, size uint64, perms proc.Perm) error { return proc.ErrNotImplemented },
		PromoteHuge: func(bank *proc.RegisterBank, pid int, addr, size uint64) error { return proc.ErrNotImplemented },

		HWBreakpoint: func(pid, tid int, b proc.BreakpointItem, set bool) error { return proc.ErrNotImplemented },

		GCore: func(pid int, sink proc.CoreSink) error { return proc.ErrNotImplemented },
	}
}
