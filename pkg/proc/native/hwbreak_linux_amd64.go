//go:build linux && amd64

package native

import (
	"github.com/ilian/rdbg/pkg/proc"
)

// hwBreakpoint arms or disarms one of the four x86 debug-register slots
// (DR0-DR3 under control of DR7), grounded on aarzilli-delve's
// setHardwareBreakpoint/clearHardwareBreakpoint. It always reads DR7
// before touching anything (the "sync" step of invariant 4's
// sync->modify->set discipline), and when clearing it reads DR0-DR3 of
// the enabled slots to find the one holding b.Addr, since slot occupancy
// is derived from the live register contents rather than kept in a
// separate table here —
// the proc package's hwState already tracks logical ownership; this
// layer only needs to find a register slot consistent with that intent.
func hwBreakpoint(pid, tid int, b proc.BreakpointItem, set bool) error {
	dr7, err := ptracePeekUser(tid, drRegisterOffset(7))
	if err != nil {
		return err
	}

	if set {
		slot := -1
		for i := 0; i < 4; i++ {
			if dr7&(1<<uint(i*2+1)) == 0 {
				slot = i
				break
			}
		}
		if slot < 0 {
			return proc.ErrFull
		}
		if err := ptracePokeUser(tid, drRegisterOffset(slot), uintptr(b.Addr)); err != nil {
			return err
		}
		dr7 = setSlotControl(dr7, slot, b)
		dr7 |= 1 << uint(slot*2+1) // global enable bit (Gi); §8 scenario 1 expects DR7's low nibble == 0x02 for slot 0
		return ptracePokeUser(tid, drRegisterOffset(7), uintptr(dr7))
	}

	slot := -1
	for i := 0; i < 4; i++ {
		if dr7&(1<<uint(i*2+1)) == 0 {
			continue
		}
		addr, err := ptracePeekUser(tid, drRegisterOffset(i))
		if err != nil {
			return err
		}
		if uint64(addr) == b.Addr {
			slot = i
			break
		}
	}
	if slot < 0 {
		return proc.ErrInvalid
	}
	dr7 &^= 1 << uint(slot*2+1)
	dr7 = clearSlotControl(dr7, slot)
	return ptracePokeUser(tid, drRegisterOffset(7), uintptr(dr7))
}

// rwBits/lenBits implement the DR7 condition/length field encoding
// (Intel SDM Vol 3B §17.2.4): 00=execute, 01=write, 11=read-or-write,
// and length 00=1 byte, 01=2 bytes, 11=4 bytes, 10=8 bytes (amd64 only).
func rwBits(access proc.BreakpointAccess) uintptr {
	switch access {
	case proc.AccessWrite:
		return 0x1
	case proc.AccessReadWrite:
		return 0x3
	case proc.AccessRead:
		return 0x3 // x86 has no read-only watchpoint; read-write is the closest fit
	default:
		return 0x0 // execute
	}
}

func lenBits(size int) uintptr {
	switch size {
	case 2:
		return 0x1
	case 8:
		return 0x2
	case 4:
		return 0x3
	default:
		return 0x0
	}
}

func setSlotControl(dr7 uintptr, slot int, b proc.BreakpointItem) uintptr {
	shift := uint(16 + slot*4)
	mask := uintptr(0xF) << shift
	field := (rwBits(b.Access) | lenBits(b.Size)<<2) << shift
	return (dr7 &^ mask) | field
}

func clearSlotControl(dr7 uintptr, slot int) uintptr {
	shift := uint(16 + slot*4)
	mask := uintptr(0xF) << shift
	return dr7 &^ mask
}

// hwTrapFired reads DR6, the status register the CPU sets the B0-B3
// bits of when a debug-register condition actually traps, matching
// radare2's debug_native.c sync_drx_regs/set_drx_regs discipline of
// carrying dr6 through the same sync as dr0-dr3/dr7. A plain SIGTRAP
// with no PTRACE_EVENT_* code is ambiguous between a single-step
// completion and a hardware breakpoint hit; this is what lets
// classifyTrapCause tell them apart instead of guessing.
func hwTrapFired(tid int) bool {
	dr6, err := ptracePeekUser(tid, drRegisterOffset(6))
	if err != nil {
		return false
	}
	return dr6&0xF != 0
}
