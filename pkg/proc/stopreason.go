package proc

// ReasonType is the discriminated classification of why the inferior is
// currently not running. The event loop (wait) is the only place these
// values are produced; §4.2 of the spec is the authoritative decoder.
type ReasonType int

const (
	ReasonUnknown ReasonType = iota
	ReasonError
	// ReasonNone means a silent event was absorbed by the decoder and
	// the caller should treat this as "nothing happened, call wait
	// again" rather than a user-visible stop.
	ReasonNone
	ReasonSignal
	ReasonBreakpointHit
	ReasonTrap
	ReasonSegFault
	ReasonAbort
	ReasonStepComplete
	ReasonNewPid
	ReasonNewTid
	ReasonExitTid
	ReasonNewLib
	ReasonExitLib
	ReasonUserSuspend
	ReasonMachReceiveInterrupted
	ReasonDead
)

func (r ReasonType) String() string {
	switch r {
	case ReasonError:
		return "error"
	case ReasonNone:
		return "none"
	case ReasonSignal:
		return "signal"
	case ReasonBreakpointHit:
		return "breakpoint-hit"
	case ReasonTrap:
		return "trap"
	case ReasonSegFault:
		return "segfault"
	case ReasonAbort:
		return "abort"
	case ReasonStepComplete:
		return "step-complete"
	case ReasonNewPid:
		return "new-pid"
	case ReasonNewTid:
		return "new-tid"
	case ReasonExitTid:
		return "exit-tid"
	case ReasonNewLib:
		return "new-lib"
	case ReasonExitLib:
		return "exit-lib"
	case ReasonUserSuspend:
		return "user-suspend"
	case ReasonMachReceiveInterrupted:
		return "mach-receive-interrupted"
	case ReasonDead:
		return "dead"
	default:
		return "unknown"
	}
}

// StopReason is the tagged union the event loop produces on every
// Debugger.Wait call.
type StopReason struct {
	Type ReasonType
	// Tid is the thread the kernel event concerned (event_tid in the
	// spec), not necessarily the user's selected thread.
	Tid int
	// Signum is the carried signal number: the stop or terminating
	// signal (SIGTRAP for the trap-class reasons), zero for Dead and
	// UserSuspend.
	Signum int
	// NewPid/NewTid are populated for ReasonNewPid/ReasonNewTid/
	// ReasonExitTid events.
	NewPid int
	NewTid int
}
