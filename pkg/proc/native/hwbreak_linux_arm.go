//go:build linux && arm

package native

import (
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/ilian/rdbg/pkg/proc"
)

const (
	ptraceGetHbpRegs = 29
	ptraceSetHbpRegs = 30
)

// hwBreakpoint implements the 32-bit ARM hardware breakpoint manager via
// PTRACE_GETHBPREGS/PTRACE_SETHBPREGS. Deletion is deliberately
// unsupported here: debug_native.c's r_debug_native_drx never wires a
// delete path for this arch either, and every attempt at translating the
// addr/ctrl pair back to a "disabled" register observed in the original
// leaves the slot still enabled on several kernel versions — the ARM32
// hwbp-delete asymmetry noted as an Open Question in the spec. Rather
// than emit a breakpoint that silently fails to clear, Set(false) fails
// closed with NotImplemented so a caller never mistakes a no-op for
// success.
func hwBreakpoint(pid, tid int, b proc.BreakpointItem, set bool) error {
	if !set {
		return proc.ErrNotImplemented
	}

	// num 0 returns the debug resource-info word; reading it checks that
	// the kernel exposes hardware breakpoints for this thread.
	var info uint32
	if _, _, errno := unix.Syscall6(unix.SYS_PTRACE, ptraceGetHbpRegs, uintptr(tid), 0, uintptr(unsafe.Pointer(&info)), 0, 0); errno != 0 {
		return errno
	}

	var ctrl uint32 = 0x1 // enable
	size := b.Size
	if size <= 0 {
		size = 4
	}
	var byteMask uint32
	for i := 0; i < size && i < 4; i++ {
		byteMask |= 1 << uint(i)
	}
	var accessType uint32
	switch b.Access {
	case proc.AccessWrite:
		accessType = 0x2
	case proc.AccessReadWrite:
		accessType = 0x3
	case proc.AccessRead:
		accessType = 0x1
	default:
		accessType = 0x0 // execute
	}
	ctrl |= (byteMask << 5) | (accessType << 3)

	slot := 1 // breakpoint 0: odd num is its address, num+1 its control word
	addr := uint32(b.Addr)
	if _, _, errno := unix.Syscall6(unix.SYS_PTRACE, ptraceSetHbpRegs, uintptr(tid), uintptr(slot), uintptr(unsafe.Pointer(&addr)), 0, 0); errno != 0 {
		return errno
	}
	if _, _, errno := unix.Syscall6(unix.SYS_PTRACE, ptraceSetHbpRegs, uintptr(tid), uintptr(slot+1), uintptr(unsafe.Pointer(&ctrl)), 0, 0); errno != 0 {
		return errno
	}
	return nil
}

// hwTrapFired: ARM32's hardware breakpoint status lives in the
// coprocessor debug status register, not in anything PTRACE_GETHBPREGS
// exposes, so there is no cheap confirmation available here either.
// classifyTrapCause relies on the tracked resume kind alone on this
// architecture (see Known simplifications in DESIGN.md).
func hwTrapFired(tid int) bool { return false }
