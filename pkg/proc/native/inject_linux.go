//go:build linux

package native

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/ilian/rdbg/pkg/proc"
)

// injectAndRun implements the §4.6/§9 code-injection discipline shared
// by map_alloc, map_dealloc, map_protect and the THP madvise promotion:
// snapshot registers onto bank's arena (the same RegisterBank
// Debugger.Registers() exposes), overwrite the instruction stream at PC
// with a small syscall stub plus trailing trap, run to that trap, read
// the syscall's return register, then pop the arena and restore both
// the registers and the code bytes unconditionally — even when an
// intermediate step failed — so the call is transparent to the
// inferior (invariant 5). bank must be the caller's live RegisterBank;
// ArenaPush/ArenaPop are the mechanism, not a side channel of their own.
func injectAndRun(bank *proc.RegisterBank, tid int, stub []byte) (ret int64, err error) {
	raw, err := readRegisters(tid, proc.RegGPR)
	if err != nil {
		return 0, err
	}
	bank.Load(raw)
	if err := bank.ArenaPush(); err != nil {
		return 0, err
	}
	pc, err := bank.PC()
	if err != nil {
		_ = bank.ArenaPop()
		return 0, err
	}

	origCode := make([]byte, len(stub))
	if n, perr := ptracePeekData(tid, uintptr(pc), origCode); perr != nil || n != len(origCode) {
		if perr == nil {
			perr = fmt.Errorf("short code read: %d/%d bytes", n, len(origCode))
		}
		_ = bank.ArenaPop()
		return 0, perr
	}

	restore := func() {
		if _, werr := ptracePokeData(tid, uintptr(pc), origCode); werr != nil {
			err = firstNonNil(err, werr)
		}
		if perr := bank.ArenaPop(); perr != nil {
			err = firstNonNil(err, perr)
			return
		}
		if werr := writeRegisters(tid, proc.RegGPR, bank.Raw()); werr != nil {
			err = firstNonNil(err, werr)
		}
	}
	defer restore()

	if n, werr := ptracePokeData(tid, uintptr(pc), stub); werr != nil || n != len(stub) {
		if werr == nil {
			werr = fmt.Errorf("short code write: %d/%d bytes", n, len(stub))
		}
		return 0, werr
	}

	if werr := ptraceCont(tid, 0); werr != nil {
		return 0, werr
	}
	if _, ws, werr := wait4(tid, 0); werr != nil {
		return 0, werr
	} else if !ws.Stopped() || ws.StopSignal() != unix.SIGTRAP {
		return 0, fmt.Errorf("injected stub stopped unexpectedly: %v", ws)
	}

	after, werr := readRegisters(tid, proc.RegGPR)
	if werr != nil {
		return 0, werr
	}
	bank.Load(after)
	retVal, werr := bank.SyscallRet()
	if werr != nil {
		return 0, werr
	}
	return int64(retVal), nil
}

func firstNonNil(a, b error) error {
	if a != nil {
		return a
	}
	return b
}
