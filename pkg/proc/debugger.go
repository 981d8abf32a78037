package proc

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// State is the Debugger's own lifecycle state (§4.7). It is tracked
// separately from the inferior's kernel-level status so that operations
// other than detach/enumerators can be rejected with InferiorDead once
// terminal, per §4.7's "Terminal state: Dead" rule.
type State int

const (
	StateDetached State = iota
	StateStopped
	StateRunning
	StateDead
)

// Debugger is the process-wide handle described in §3. It owns no OS
// knowledge directly; all OS-specific work is delegated to the
// OsBackend supplied at construction (§9).
type Debugger struct {
	backend *OsBackend
	log     *logrus.Entry

	config       Config
	consoleBreak ConsoleBreak

	state State

	pid int
	tid int

	continueAllThreads bool
	breakOnConsoleInt  bool
	absorbThreadNotifications bool

	lastReason StopReason

	regs *RegisterBank

	// knownTids holds the thread ids seen at attach and via NewPid/NewTid
	// events, used to validate Select and to resume every tracked tid
	// when continueAllThreads is set. ExitTid events and ThreadList do
	// not change it.
	knownTids map[int]bool

	hw   *hwState
	disa Disassembler
}

// SetDisassembler installs the collaborator used by StepInstrLen to
// verify single-step width (§8). Optional: nil leaves that
// verification unavailable without affecting Step/Continue/Wait.
func (d *Debugger) SetDisassembler(disa Disassembler) { d.disa = disa }

// StepInstrLen reports the byte width of the instruction at code's
// front via the installed Disassembler, for callers that want to assert
// PC advanced by exactly that many bytes after a Step.
func (d *Debugger) StepInstrLen(code []byte) (int, error) {
	if d.disa == nil {
		return 0, newErr("step_instr_len", KindNotImplemented, nil)
	}
	arch := "amd64"
	bits := 64
	if d.backend != nil {
		arch, bits = d.backend.Arch, d.backend.Bits
	}
	n, err := d.disa.InstrLen(code, arch, bits)
	if err != nil {
		return 0, newErr("step_instr_len", KindInvalid, err)
	}
	return n, nil
}

// NewDebugger constructs a Debugger bound to backend. The Debugger
// starts Detached with pid == -1 (invariant 1).
func NewDebugger(backend *OsBackend, cfg Config, cb ConsoleBreak) *Debugger {
	if cfg == nil {
		cfg = StaticConfig{}
	}
	if cb == nil {
		cb = noopConsoleBreak{}
	}
	d := &Debugger{
		backend:      backend,
		log:          logrus.WithField("component", "proc.Debugger"),
		config:       cfg,
		consoleBreak: cb,
		state:        StateDetached,
		pid:          -1,
		tid:          -1,
		knownTids:    map[int]bool{},
	}
	if backend != nil && backend.Profile != nil {
		d.regs = NewRegisterBank(backend.Profile)
		d.hw = newHWState(backend.Profile)
	}
	return d
}

// Pid returns the selected process id, -1 when no inferior.
func (d *Debugger) Pid() int { return d.pid }

// Tid returns the selected thread id, -1 when no inferior.
func (d *Debugger) Tid() int { return d.tid }

// State returns the Debugger's own lifecycle state.
func (d *Debugger) State() State { return d.state }

// LastReason returns the StopReason recorded by the most recent Wait
// call.
func (d *Debugger) LastReason() StopReason { return d.lastReason }

func (d *Debugger) requireAlive(op string) error {
	if d.state == StateDead {
		return newErr(op, KindInferiorDead, nil)
	}
	return nil
}

// Attach attaches to pid. Idempotent when pid == current pid (invariant
// per §4.1); otherwise a caller must detach first since the inferior is
// an exclusive resource (§5).
func (d *Debugger) Attach(pid int) (int, error) {
	if d.pid == pid && d.state != StateDetached && d.state != StateDead {
		return d.tid, nil
	}
	if d.backend == nil || d.backend.Attach == nil {
		return -1, newErr("attach", KindNotImplemented, nil)
	}
	tid, err := d.backend.Attach(pid)
	if err != nil {
		return -1, classifyAttachErr(err)
	}
	d.pid = pid
	d.tid = tid
	d.knownTids = map[int]bool{tid: true}
	d.state = StateStopped
	d.lastReason = StopReason{}
	return tid, nil
}

func classifyAttachErr(err error) error {
	return newErr("attach", KindPermissionDenied, err)
}

// Detach releases all kernel-level tracing. Hardware breakpoints are
// cleared first (§4.1). Failure is logged but not fatal: the Debugger
// transitions to Detached regardless so callers can retry with a fresh
// attach (§7).
func (d *Debugger) Detach(pid int) error {
	if d.hw != nil {
		if err := d.hw.clearAll(d, pid); err != nil {
			d.log.WithError(err).Warn("failed clearing hardware breakpoints before detach")
		}
	}
	var detachErr error
	if d.backend != nil && d.backend.Detach != nil {
		detachErr = d.backend.Detach(pid)
		if detachErr != nil {
			d.log.WithError(detachErr).Warn("detach failed, forcing Detached state anyway")
		}
	}
	d.state = StateDetached
	d.pid = -1
	d.tid = -1
	d.knownTids = map[int]bool{}
	return nil
}

// Select changes the selected thread without resuming. Fails if tid is
// unknown at this stop. Idempotent: calling it twice with the same
// arguments has the same observable effect as once (§8).
func (d *Debugger) Select(pid, tid int) error {
	if err := d.requireAlive("select"); err != nil {
		return err
	}
	if pid != d.pid {
		return newErr("select", KindInvalid, fmt.Errorf("pid %d is not attached", pid))
	}
	if !d.knownTids[tid] {
		return newErr("select", KindInvalid, fmt.Errorf("tid %d unknown at this stop", tid))
	}
	if d.backend != nil && d.backend.Select != nil {
		if err := d.backend.Select(pid, tid); err != nil {
			return newErr("select", KindOsError, err)
		}
	}
	d.tid = tid
	return nil
}

// Step advances the selected thread exactly one instruction. Guarantees
// exactly one user-observable stop reason on the next Wait, with reason
// StepComplete or a Signal/BreakpointHit if one intervenes (§4.1).
func (d *Debugger) Step() error {
	if err := d.requireAlive("step"); err != nil {
		return err
	}
	if d.backend == nil || d.backend.Step == nil {
		return newErr("step", KindNotImplemented, nil)
	}
	if err := d.backend.Step(d.tid); err != nil {
		return newErr("step", KindOsError, err)
	}
	d.state = StateRunning
	return nil
}

// Continue resumes. If continue-all-threads is true, every tracked tid
// is resumed with the same signal; otherwise only the selected tid. The
// signal, if absent (-1), defaults to the last reason's carried signum,
// zero when the stop was a trap (§4.1).
func (d *Debugger) Continue(signal int) error {
	if err := d.requireAlive("continue"); err != nil {
		return err
	}
	if d.backend == nil || d.backend.Continue == nil {
		return newErr("continue", KindNotImplemented, nil)
	}
	sig := signal
	if sig < 0 {
		sig = d.lastReason.Signum
		switch d.lastReason.Type {
		case ReasonBreakpointHit, ReasonTrap, ReasonStepComplete, ReasonNewPid,
			ReasonNewTid, ReasonExitTid, ReasonNewLib, ReasonExitLib:
			sig = 0 // trap stops carry SIGTRAP, which is not re-delivered
		}
	}
	var targets []int
	if d.continueAllThreads {
		for t := range d.knownTids {
			targets = append(targets, t)
		}
	} else {
		targets = []int{d.tid}
	}
	if err := d.backend.Continue(targets, sig); err != nil {
		return newErr("continue", KindOsError, err)
	}
	d.state = StateRunning
	return nil
}

// ContinueSyscall resumes with syscall-entry/exit stops enabled.
func (d *Debugger) ContinueSyscall() error {
	if err := d.requireAlive("continue_syscall"); err != nil {
		return err
	}
	if d.backend == nil || d.backend.ContinueSyscall == nil {
		return newErr("continue_syscall", KindNotImplemented, nil)
	}
	if err := d.backend.ContinueSyscall(d.pid); err != nil {
		return newErr("continue_syscall", KindOsError, err)
	}
	d.state = StateRunning
	return nil
}

// SetContinueAllThreads toggles the continue-all-threads flag (§3).
func (d *Debugger) SetContinueAllThreads(v bool) { d.continueAllThreads = v }

// SetBreakOnConsoleInterrupt toggles the break-on-console-interrupt flag
// (§3).
func (d *Debugger) SetBreakOnConsoleInterrupt(v bool) { d.breakOnConsoleInt = v }

// Wait blocks until the kernel delivers an event, applying the §4.2
// decoder rules, and returns exactly one user-visible StopReason. It
// loops internally absorbing ReasonNone events (silent events, §4.2
// rule 4) and retrying interrupted Mach receives (§4.2 rule 5) until a
// user-visible reason is produced.
func (d *Debugger) Wait(ctx context.Context) (StopReason, error) {
	if err := d.requireAlive("wait"); err != nil {
		return StopReason{}, err
	}
	if d.backend == nil || d.backend.Wait == nil {
		return StopReason{}, newErr("wait", KindNotImplemented, nil)
	}

	tok := newCancelToken(ctx)
	defer tok.cancel()
	d.consoleBreak.Push(tok.cancel)
	defer d.consoleBreak.Pop()

	for {
		ev, err := d.backend.Wait(tok.ctx, d.pid, d.tid)
		if err != nil {
			return StopReason{}, newErr("wait", KindOsError, err)
		}
		reason, err := d.decode(ev)
		if err != nil {
			return StopReason{}, err
		}
		d.recordReason(reason)
		if reason.Type == ReasonNone || reason.Type == ReasonMachReceiveInterrupted {
			continue
		}
		return reason, nil
	}
}

func (d *Debugger) recordReason(r StopReason) {
	d.lastReason = r
	switch r.Type {
	case ReasonDead:
		d.state = StateDead
		d.pid, d.tid = -1, -1
	case ReasonNewPid:
		d.state = StateStopped
		d.pid = r.NewPid
		d.tid = r.NewTid
		d.knownTids = map[int]bool{r.NewTid: true}
	case ReasonNone:
		// state unchanged; Wait loops again.
	default:
		d.state = StateStopped
	}
}

// Kill always attempts the kill even if the inferior is currently
// running; if sig is SIGKILL-equivalent the internal thread list is
// cleared (§4.1). The caller passes the OS's numeric terminate signal so
// this package stays syscall-package-agnostic.
func (d *Debugger) Kill(pid, tid, sig int, isTerminate bool) error {
	if d.backend == nil || d.backend.Kill == nil {
		return newErr("kill", KindNotImplemented, nil)
	}
	err := d.backend.Kill(pid, tid, sig)
	if isTerminate {
		d.knownTids = map[int]bool{}
	}
	if err != nil {
		return newErr("kill", KindOsError, err)
	}
	return nil
}

// ReadRegisters returns the raw bytes for the given kind. Unsupported
// kinds fail with NotImplemented.
func (d *Debugger) ReadRegisters(kind RegKind) ([]byte, error) {
	if err := d.requireAlive("registers_read"); err != nil {
		return nil, err
	}
	if d.backend == nil || d.backend.ReadRegisters == nil {
		return nil, newErr("registers_read", KindNotImplemented, nil)
	}
	buf, err := d.backend.ReadRegisters(d.tid, kind)
	if err != nil {
		return nil, newErr("registers_read", KindOsError, err)
	}
	if kind == RegGPR && d.regs != nil {
		d.regs.Load(buf)
	}
	return buf, nil
}

// WriteRegisters writes back raw bytes for the given kind.
func (d *Debugger) WriteRegisters(kind RegKind, buf []byte) error {
	if err := d.requireAlive("registers_write"); err != nil {
		return err
	}
	if d.backend == nil || d.backend.WriteRegisters == nil {
		return newErr("registers_write", KindNotImplemented, nil)
	}
	if err := d.backend.WriteRegisters(d.tid, kind, buf); err != nil {
		return newErr("registers_write", KindOsError, err)
	}
	if kind == RegGPR && d.regs != nil {
		d.regs.Load(buf)
	}
	return nil
}

// Registers exposes the typed RegisterBank for callers that want named
// access (PC/SP/arena) rather than raw bytes.
func (d *Debugger) Registers() *RegisterBank { return d.regs }

// MapGet returns every memory map of the selected process (§4.4). Like
// ProcessList/ThreadList/DescriptorList, this is an enumerator and is
// exempt from requireAlive (§4.7): the last known maps remain readable
// after the inferior has exited.
func (d *Debugger) MapGet() ([]MemoryMap, error) {
	if d.backend == nil || d.backend.Maps == nil {
		return nil, newErr("map_get", KindNotImplemented, nil)
	}
	maps, err := d.backend.Maps(d.pid)
	if err != nil {
		return nil, newErr("map_get", KindOsError, err)
	}
	return maps, nil
}

// ModulesGet derives the module list from MapGet by keeping only the
// first map per absolute path (§4.4).
func (d *Debugger) ModulesGet() ([]MemoryMap, error) {
	maps, err := d.MapGet()
	if err != nil {
		return nil, err
	}
	return coalesceModules(maps), nil
}

func coalesceModules(maps []MemoryMap) []MemoryMap {
	seen := map[string]bool{}
	out := make([]MemoryMap, 0, len(maps))
	for _, m := range maps {
		if m.Path == "" || seen[m.Path] {
			continue
		}
		seen[m.Path] = true
		out = append(out, m)
	}
	return out
}

// ProcessList enumerates OS processes, optionally filtered by ppid
// (§4.4).
func (d *Debugger) ProcessList(ppid int, hasFilter bool) ([]ProcessInfo, error) {
	if d.backend == nil || d.backend.Processes == nil {
		return nil, newErr("process_list", KindNotImplemented, nil)
	}
	procs, err := d.backend.Processes(ppid, hasFilter)
	if err != nil {
		return nil, newErr("process_list", KindOsError, err)
	}
	return procs, nil
}

// ThreadList enumerates the threads of pid (§4.4).
func (d *Debugger) ThreadList(pid int) ([]ThreadInfo, error) {
	if d.backend == nil || d.backend.Threads == nil {
		return nil, newErr("thread_list", KindNotImplemented, nil)
	}
	threads, err := d.backend.Threads(pid)
	if err != nil {
		return nil, newErr("thread_list", KindOsError, err)
	}
	return threads, nil
}

// DescriptorList enumerates open descriptors of pid (§4.4).
func (d *Debugger) DescriptorList(pid int) ([]Descriptor, error) {
	if d.backend == nil || d.backend.Descriptors == nil {
		return nil, newErr("descriptor_list", KindNotImplemented, nil)
	}
	descs, err := d.backend.Descriptors(pid)
	if err != nil {
		return nil, newErr("descriptor_list", KindOsError, err)
	}
	return descs, nil
}

// MapAlloc allocates addr_hint..+size in the inferior via injected code
// (§4.6).
func (d *Debugger) MapAlloc(addrHint uint64, size uint64, huge bool) (MemoryMap, error) {
	if err := d.requireAlive("map_alloc"); err != nil {
		return MemoryMap{}, err
	}
	if d.backend == nil || d.backend.MapAlloc == nil {
		return MemoryMap{}, newErr("map_alloc", KindNotImplemented, nil)
	}
	m, err := d.backend.MapAlloc(d.regs, d.pid, addrHint, size, huge)
	if err != nil {
		return MemoryMap{}, newErr("map_alloc", KindOsError, err)
	}
	return m, nil
}

// MapDealloc frees addr..+size in the inferior (§4.6).
func (d *Debugger) MapDealloc(addr, size uint64) error {
	if err := d.requireAlive("map_dealloc"); err != nil {
		return err
	}
	if d.backend == nil || d.backend.MapDealloc == nil {
		return newErr("map_dealloc", KindNotImplemented, nil)
	}
	if err := d.backend.MapDealloc(d.regs, d.pid, addr, size); err != nil {
		return newErr("map_dealloc", KindOsError, err)
	}
	return nil
}

// MapProtect reprotects addr..+size in the inferior (§4.6).
func (d *Debugger) MapProtect(addr, size uint64, perms Perm) error {
	if err := d.requireAlive("map_protect"); err != nil {
		return err
	}
	if d.backend == nil || d.backend.MapProtect == nil {
		return newErr("map_protect", KindNotImplemented, nil)
	}
	if err := d.backend.MapProtect(d.regs, d.pid, addr, size, perms); err != nil {
		return newErr("map_protect", KindOsError, err)
	}
	return nil
}

// PromoteHugePage requests transparent-huge-page promotion for
// addr..+size via a second madvise injection (§4.6 item 7).
func (d *Debugger) PromoteHugePage(addr, size uint64) error {
	if err := d.requireAlive("map_promote_huge"); err != nil {
		return err
	}
	if size%(2<<20) != 0 {
		return newErr("map_promote_huge", KindInvalid, fmt.Errorf("size must be a multiple of 2MiB"))
	}
	if d.backend == nil || d.backend.PromoteHuge == nil {
		return newErr("map_promote_huge", KindNotImplemented, nil)
	}
	if err := d.backend.PromoteHuge(d.regs, d.pid, addr, size); err != nil {
		return newErr("map_promote_huge", KindOsError, err)
	}
	return nil
}

// HWBreakpoint arms or disarms a hardware breakpoint (§4.5).
func (d *Debugger) HWBreakpoint(b BreakpointItem, set bool) error {
	if err := d.requireAlive("hw_breakpoint"); err != nil {
		return err
	}
	if d.hw == nil {
		return newErr("hw_breakpoint", KindNotImplemented, nil)
	}
	return d.hw.apply(d, d.pid, d.tid, b, set)
}

// GCore emits an ELF/Mach-O core of the inferior into sink (§4.1).
func (d *Debugger) GCore(sink CoreSink) error {
	if err := d.requireAlive("gcore"); err != nil {
		return err
	}
	if d.backend == nil || d.backend.GCore == nil {
		return newErr("gcore", KindNotImplemented, nil)
	}
	if err := d.backend.GCore(d.pid, sink); err != nil {
		return newErr("gcore", KindOsError, err)
	}
	return nil
}
