//go:build linux

package native

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/ilian/rdbg/pkg/proc"
)

const (
	protReadWrite = unix.PROT_READ | unix.PROT_WRITE
	mapAnonPriv   = unix.MAP_PRIVATE | unix.MAP_ANONYMOUS
)

// mapAlloc implements §4.6's map_alloc: inject an mmap(2) call into the
// inferior and report back the resulting range as a MemoryMap. huge
// requests MAP_HUGETLB directly rather than relying on THP, matching
// r_debug_native's distinction between an explicit hugetlb mapping and
// the separate madvise-based THP promotion path (SUPPLEMENTED FEATURES
// item 6).
func mapAlloc(bank *proc.RegisterBank, pid int, addrHint, size uint64, huge bool) (proc.MemoryMap, error) {
	flags := uint64(mapAnonPriv)
	if huge {
		flags |= unix.MAP_HUGETLB
	}
	nr, err := syscallNum("mmap")
	if err != nil {
		return proc.MemoryMap{}, err
	}
	stub := buildSyscallStub(nr, addrHint, size, uint64(protReadWrite), flags, ^uint64(0), 0)
	ret, err := injectAndRun(bank, pid, stub)
	if err != nil {
		return proc.MemoryMap{}, err
	}
	if ret < 0 {
		return proc.MemoryMap{}, unix.Errno(-ret)
	}
	addr := uint64(ret)
	return proc.MemoryMap{
		Start: addr,
		End:   addr + size,
		Perms: proc.PermRead | proc.PermWrite,
	}, nil
}

// mapDealloc implements §4.6's map_dealloc: inject munmap(2).
func mapDealloc(bank *proc.RegisterBank, pid int, addr, size uint64) error {
	nr, err := syscallNum("munmap")
	if err != nil {
		return err
	}
	stub := buildSyscallStub(nr, addr, size, 0, 0, 0, 0)
	ret, err := injectAndRun(bank, pid, stub)
	if err != nil {
		return err
	}
	if ret < 0 {
		return unix.Errno(-ret)
	}
	return nil
}

// mapProtect implements §4.6's map_protect: inject mprotect(2).
func mapProtect(bank *proc.RegisterBank, pid int, addr, size uint64, perms proc.Perm) error {
	var prot uint64
	if perms&proc.PermRead != 0 {
		prot |= unix.PROT_READ
	}
	if perms&proc.PermWrite != 0 {
		prot |= unix.PROT_WRITE
	}
	if perms&proc.PermExec != 0 {
		prot |= unix.PROT_EXEC
	}
	nr, err := syscallNum("mprotect")
	if err != nil {
		return err
	}
	stub := buildSyscallStub(nr, addr, size, prot, 0, 0, 0)
	ret, err := injectAndRun(bank, pid, stub)
	if err != nil {
		return err
	}
	if ret < 0 {
		return unix.Errno(-ret)
	}
	return nil
}

// promoteHuge implements SUPPLEMENTED FEATURES item 6: request
// transparent-huge-page promotion via a second, separate madvise(2)
// injection (MADV_HUGEPAGE), preconditioned on the host's THP mode being
// "madvise" (checked here) and on size being a 2MiB multiple (enforced
// by the caller, proc.Debugger.PromoteHugePage).
func promoteHuge(bank *proc.RegisterBank, pid int, addr, size uint64) error {
	mode, err := os.ReadFile("/sys/kernel/mm/transparent_hugepage/enabled")
	if err != nil {
		return err
	}
	if !strings.Contains(string(mode), "[madvise]") {
		return fmt.Errorf("transparent huge pages are not in madvise mode: %s", strings.TrimSpace(string(mode)))
	}
	nr, err := syscallNum("madvise")
	if err != nil {
		return err
	}
	stub := buildSyscallStub(nr, addr, size, unix.MADV_HUGEPAGE, 0, 0, 0)
	ret, err := injectAndRun(bank, pid, stub)
	if err != nil {
		return err
	}
	if ret < 0 {
		return unix.Errno(-ret)
	}
	return nil
}
