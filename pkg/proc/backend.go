package proc

import "context"

// TrapCause disambiguates a SIGTRAP-class stop into the kernel's own
// terms (ptrace event-msg on Linux, Mach exception code on Darwin, a
// DEBUG_EVENT discriminant on Windows) before the generic decoder in
// eventloop.go turns it into a StopReason (§4.2 rule 3).
type TrapCause int

const (
	TrapNone TrapCause = iota
	TrapBreakpoint
	TrapStep
	TrapNewTid
	TrapExitTid
	TrapNewLib
	TrapExitLib
	TrapForkOrClone
	TrapSilentProbe
)

// RawEvent is what an OsBackend.Wait call hands back: the kernel
// notification in typed, OS-agnostic form. The generic decoder
// (decodeReason) is the only thing that turns this into a StopReason;
// backends never construct a StopReason themselves.
type RawEvent struct {
	Tid int

	Exited     bool
	ExitStatus int

	Terminated bool
	TermSignal int

	Stopped    bool
	StopSignal int
	Trap       TrapCause

	// NewPid/NewTid/ExitTid carry the auxiliary id for TrapForkOrClone/
	// TrapNewTid/TrapExitTid events.
	NewPid int
	NewTid int

	// MachReceiveInterrupted is Darwin-only: the wait call was
	// interrupted by mach_msg and should be retried unless a console
	// break is pending (§4.2 rule 5).
	MachReceiveInterrupted bool

	// WeInitiatedStop is true when the backend itself sent the SIGSTOP/
	// equivalent that produced this event (used to classify UserSuspend
	// vs an externally-delivered stop, §4.2 rule 3 last bullet).
	WeInitiatedStop bool
}

// OsBackend is the single capability surface every OS-specific debugging
// primitive shim implements. The Debugger facade has no OS knowledge: it
// is selected once at construction (§9 "Preprocessor-selected OS
// backends -> tagged variants + capability interfaces").
type OsBackend struct {
	// OS/Arch/Bits identify which RegisterProfile to load.
	OS   string
	Arch string
	Bits int

	Attach func(pid int) (tid int, err error)
	Detach func(pid int) error
	Select func(pid, tid int) error

	Step            func(tid int) error
	Continue        func(pids []int, sig int) error
	ContinueSyscall func(pid int) error

	// Wait blocks until the kernel delivers one event. ctx carries the
	// cancellation token wired to ConsoleBreak; cancellation is
	// delivered to the inferior as SIGINT/Mach interrupt by the backend,
	// never via a source-level signal handler in this package.
	Wait func(ctx context.Context, pid, tid int) (RawEvent, error)

	Kill func(pid, tid, sig int) error

	ReadRegisters  func(tid int, kind RegKind) ([]byte, error)
	WriteRegisters func(tid int, kind RegKind, buf []byte) error

	Processes   func(filterPpid int, hasFilter bool) ([]ProcessInfo, error)
	Threads     func(pid int) ([]ThreadInfo, error)
	Maps        func(pid int) ([]MemoryMap, error)
	Descriptors func(pid int) ([]Descriptor, error)

	// MapAlloc/MapDealloc/MapProtect/PromoteHuge take the caller's
	// RegisterBank so the code injector can back its register
	// save/restore with ArenaPush/ArenaPop (§4.3, §4.6) instead of a
	// side channel the bank never sees.
	MapAlloc    func(bank *RegisterBank, pid int, addrHint uint64, size uint64, huge bool) (MemoryMap, error)
	MapDealloc  func(bank *RegisterBank, pid int, addr, size uint64) error
	MapProtect  func(bank *RegisterBank, pid int, addr, size uint64, perms Perm) error
	PromoteHuge func(bank *RegisterBank, pid int, addr, size uint64) error

	HWBreakpoint func(pid, tid int, b BreakpointItem, set bool) error

	GCore func(pid int, sink CoreSink) error

	// Profile is the register schema for this (OS, Arch, Bits) tuple.
	Profile *RegisterProfile
}

// CoreSink is an append-only byte sink a gcore operation writes into.
type CoreSink interface {
	Write(p []byte) (n int, err error)
}
