//go:build linux

package native

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/ilian/rdbg/pkg/proc"
)

// LinuxSyscallTable implements proc.SyscallTable (§6's external
// syscall-table collaborator) for the handful of syscalls the code
// injector needs names for, including the 386/arm32 mmap2-instead-of-
// mmap split. A host that wants a different table (e.g. a seccomp-aware
// substitute) can install its own implementation with SetSyscallTable
// without this package's injector call sites changing at all.
type LinuxSyscallTable struct{}

func (LinuxSyscallTable) NumOf(name string, arch string, bits int) (int, error) {
	switch name {
	case "mmap":
		if arch == "386" || (arch == "arm" && bits == 32) {
			return 192, nil // __NR_mmap2 on 386 and arm; unix.SYS_MMAP2 is not defined on 64-bit builds
		}
		return unix.SYS_MMAP, nil
	case "munmap":
		return unix.SYS_MUNMAP, nil
	case "mprotect":
		return unix.SYS_MPROTECT, nil
	case "madvise":
		return unix.SYS_MADVISE, nil
	default:
		return 0, fmt.Errorf("native: no syscall number known for %q on %s/%d", name, arch, bits)
	}
}

// syscallTable is the SyscallTable consulted by mapAlloc/mapDealloc/
// mapProtect/promoteHuge, resolved once per process the way regProfile
// is (§9: capability selected once at construction), overridable by a
// host via SetSyscallTable.
var syscallTable proc.SyscallTable = LinuxSyscallTable{}

// SetSyscallTable installs the collaborator used to resolve syscall
// numbers for code injection (§6).
func SetSyscallTable(t proc.SyscallTable) {
	if t == nil {
		t = LinuxSyscallTable{}
	}
	syscallTable = t
}

func syscallNum(name string) (int64, error) {
	n, err := syscallTable.NumOf(name, regProfile.Arch, regProfile.Bits)
	if err != nil {
		return 0, err
	}
	return int64(n), nil
}
