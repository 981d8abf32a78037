//go:build linux && arm

package native

import (
	"strconv"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/ilian/rdbg/pkg/proc"
)

var regProfile = buildARMProfile()

// ARM uregs layout (arch/arm/include/uapi/asm/ptrace.h struct pt_regs):
// r0-r12, sp, lr, pc, cpsr, orig_r0.
func buildARMProfile() *proc.RegisterProfile {
	var r unix.PtraceRegs
	records := make([]proc.RegisterRecord, 0, 18)
	for i := 0; i <= 12; i++ {
		role := proc.RoleNone
		switch i {
		case 0:
			role = proc.RoleSyscallRet
		case 7:
			role = proc.RoleSyscallNum
		}
		records = append(records, proc.RegisterRecord{Name: "r" + strconv.Itoa(i), Offset: i * 4, Size: 4, Kind: proc.RegGPR, Role: role})
	}
	records = append(records,
		proc.RegisterRecord{Name: "sp", Offset: 13 * 4, Size: 4, Kind: proc.RegGPR, Role: proc.RoleSP},
		proc.RegisterRecord{Name: "lr", Offset: 14 * 4, Size: 4, Kind: proc.RegGPR},
		proc.RegisterRecord{Name: "pc", Offset: 15 * 4, Size: 4, Kind: proc.RegGPR, Role: proc.RolePC},
		proc.RegisterRecord{Name: "cpsr", Offset: 16 * 4, Size: 4, Kind: proc.RegFlags, Role: proc.RoleFlags},
		proc.RegisterRecord{Name: "orig_r0", Offset: 17 * 4, Size: 4, Kind: proc.RegGPR},
	)
	return &proc.RegisterProfile{OS: "linux", Arch: "arm", Bits: 32, Records: records, BufSize: int(unsafe.Sizeof(r))}
}

func pcOf(r *unix.PtraceRegs) uint64         { return uint64(r.Uregs[15]) }
func syscallRetOf(r *unix.PtraceRegs) uint64 { return uint64(r.Uregs[0]) }

func ptraceRegsToBytesARM(r *unix.PtraceRegs) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(r)), unsafe.Sizeof(*r))
}

func readRegisters(tid int, kind proc.RegKind) ([]byte, error) {
	switch kind {
	case proc.RegGPR:
		var r unix.PtraceRegs
		if err := ptraceGetRegs(tid, &r); err != nil {
			return nil, err
		}
		out := make([]byte, unsafe.Sizeof(r))
		copy(out, ptraceRegsToBytesARM(&r))
		return out, nil
	default:
		return nil, proc.ErrNotImplemented
	}
}

func writeRegisters(tid int, kind proc.RegKind, buf []byte) error {
	switch kind {
	case proc.RegGPR:
		var r unix.PtraceRegs
		if len(buf) != int(unsafe.Sizeof(r)) {
			return proc.ErrInvalid
		}
		copy(ptraceRegsToBytesARM(&r), buf)
		return ptraceSetRegs(tid, &r)
	default:
		return proc.ErrNotImplemented
	}
}
