//go:build linux && arm64

package native

import (
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/ilian/rdbg/pkg/proc"
)

var regProfile = buildARM64Profile()

func buildARM64Profile() *proc.RegisterProfile {
	var r unix.PtraceRegs
	base := uintptr(unsafe.Pointer(&r))

	records := make([]proc.RegisterRecord, 0, 33)
	for i := range r.Regs {
		role := proc.RoleNone
		switch i {
		case 0:
			role = proc.RoleSyscallRet // aarch64 syscall ABI: x0 is both arg1 and the return value
		case 8:
			role = proc.RoleSyscallNum
		}
		records = append(records, proc.RegisterRecord{
			Name:   xregName(i),
			Offset: int(uintptr(unsafe.Pointer(&r.Regs[i])) - base),
			Size:   8,
			Kind:   proc.RegGPR,
			Role:   role,
		})
	}
	records = append(records,
		proc.RegisterRecord{Name: "sp", Offset: int(uintptr(unsafe.Pointer(&r.Sp)) - base), Size: 8, Kind: proc.RegGPR, Role: proc.RoleSP},
		proc.RegisterRecord{Name: "pc", Offset: int(uintptr(unsafe.Pointer(&r.Pc)) - base), Size: 8, Kind: proc.RegGPR, Role: proc.RolePC},
		proc.RegisterRecord{Name: "pstate", Offset: int(uintptr(unsafe.Pointer(&r.Pstate)) - base), Size: 8, Kind: proc.RegFlags, Role: proc.RoleFlags},
	)

	return &proc.RegisterProfile{
		OS:      "linux",
		Arch:    "arm64",
		Bits:    64,
		Records: records,
		BufSize: int(unsafe.Sizeof(r)),
	}
}

func xregName(i int) string {
	return "x" + itoa(i)
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	var buf [4]byte
	n := len(buf)
	for i > 0 {
		n--
		buf[n] = byte('0' + i%10)
		i /= 10
	}
	return string(buf[n:])
}

func pcOf(r *unix.PtraceRegs) uint64         { return r.Pc }
func syscallRetOf(r *unix.PtraceRegs) uint64 { return r.Regs[0] }

func ptraceRegsToBytesARM64(r *unix.PtraceRegs) []byte {
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
		copy(out, ptraceRegsToBytesARM64(&r))
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
		copy(ptraceRegsToBytesARM64(&r), buf)
		return ptraceSetRegs(tid, &r)
	default:
		return proc.ErrNotImplemented
	}
}
