//go:build linux && amd64

package native

import (
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/ilian/rdbg/pkg/proc"
)

// regProfile is the RegisterProfile for linux/amd64, its field offsets
// matching the in-memory layout of unix.PtraceRegs (struct user_regs_struct
// in the kernel headers). Offsets are computed once at package init from
// field addresses rather than hand-copied, so a future unix.PtraceRegs
// layout change cannot silently desync the schema.
var regProfile = buildAMD64Profile()

func buildAMD64Profile() *proc.RegisterProfile {
	var r unix.PtraceRegs
	base := uintptr(unsafe.Pointer(&r))
	off := func(p *uint64) int { return int(uintptr(unsafe.Pointer(p)) - base) }

	records := []proc.RegisterRecord{
		{Name: "r15", Offset: off(&r.R15), Size: 8, Kind: proc.RegGPR},
		{Name: "r14", Offset: off(&r.R14), Size: 8, Kind: proc.RegGPR},
		{Name: "r13", Offset: off(&r.R13), Size: 8, Kind: proc.RegGPR},
		{Name: "r12", Offset: off(&r.R12), Size: 8, Kind: proc.RegGPR},
		{Name: "rbp", Offset: off(&r.Rbp), Size: 8, Kind: proc.RegGPR},
		{Name: "rbx", Offset: off(&r.Rbx), Size: 8, Kind: proc.RegGPR},
		{Name: "r11", Offset: off(&r.R11), Size: 8, Kind: proc.RegGPR},
		{Name: "r10", Offset: off(&r.R10), Size: 8, Kind: proc.RegGPR},
		{Name: "r9", Offset: off(&r.R9), Size: 8, Kind: proc.RegGPR},
		{Name: "r8", Offset: off(&r.R8), Size: 8, Kind: proc.RegGPR},
		{Name: "rax", Offset: off(&r.Rax), Size: 8, Kind: proc.RegGPR, Role: proc.RoleSyscallRet},
		{Name: "rcx", Offset: off(&r.Rcx), Size: 8, Kind: proc.RegGPR},
		{Name: "rdx", Offset: off(&r.Rdx), Size: 8, Kind: proc.RegGPR, Role: proc.RoleSyscallArg},
		{Name: "rsi", Offset: off(&r.Rsi), Size: 8, Kind: proc.RegGPR, Role: proc.RoleSyscallArg},
		{Name: "rdi", Offset: off(&r.Rdi), Size: 8, Kind: proc.RegGPR, Role: proc.RoleSyscallArg},
		{Name: "orig_rax", Offset: off(&r.Orig_rax), Size: 8, Kind: proc.RegGPR, Role: proc.RoleSyscallNum},
		{Name: "rip", Offset: off(&r.Rip), Size: 8, Kind: proc.RegGPR, Role: proc.RolePC},
		{Name: "cs", Offset: off(&r.Cs), Size: 8, Kind: proc.RegSegment},
		{Name: "eflags", Offset: off(&r.Eflags), Size: 8, Kind: proc.RegFlags, Role: proc.RoleFlags},
		{Name: "rsp", Offset: off(&r.Rsp), Size: 8, Kind: proc.RegGPR, Role: proc.RoleSP},
		{Name: "ss", Offset: off(&r.Ss), Size: 8, Kind: proc.RegSegment},
		{Name: "fs_base", Offset: off(&r.Fs_base), Size: 8, Kind: proc.RegSegment},
		{Name: "gs_base", Offset: off(&r.Gs_base), Size: 8, Kind: proc.RegSegment},
		{Name: "ds", Offset: off(&r.Ds), Size: 8, Kind: proc.RegSegment},
		{Name: "es", Offset: off(&r.Es), Size: 8, Kind: proc.RegSegment},
		{Name: "fs", Offset: off(&r.Fs), Size: 8, Kind: proc.RegSegment},
		{Name: "gs", Offset: off(&r.Gs), Size: 8, Kind: proc.RegSegment},
	}
	return &proc.RegisterProfile{
		OS:      "linux",
		Arch:    "amd64",
		Bits:    64,
		Records: records,
		BufSize: int(unsafe.Sizeof(r)),
	}
}

func ptraceRegsToBytes(r *unix.PtraceRegs) []byte {
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
		copy(out, ptraceRegsToBytes(&r))
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
		copy(ptraceRegsToBytes(&r), buf)
		return ptraceSetRegs(tid, &r)
	default:
		return proc.ErrNotImplemented
	}
}

func pcOf(r *unix.PtraceRegs) uint64      { return r.Rip }
func syscallRetOf(r *unix.PtraceRegs) uint64 { return r.Rax }

// drRegisterOffset returns the offset of debug register DRn inside the
// PTRACE_PEEKUSER/POKEUSER "user area", i.e. offsetof(struct user,
// u_debugreg[n]) on linux/amd64. The user area layout is stable ABI, not
// exposed by golang.org/x/sys/unix as a Go struct, so the offset is the
// well-known constant glibc/gdb/delve all hardcode: 848 + n*8.
func drRegisterOffset(n int) uintptr {
	const debugRegBase = 848
	return uintptr(debugRegBase + n*8)
}
