package proc

// ProcStatus is the coarse status of an OS process, derived the way
// r_debug_native_info's kinfo_proc branches do on BSD (SSLEEP/SSTOP/
// SZOMB/SRUN -> Sleeping/Stopped/Zombie/Running) and generalized to the
// Linux /proc/pid/stat state letter by native.statusFromProcStat.
type ProcStatus int

const (
	StatusUnknown ProcStatus = iota
	StatusRunning
	StatusSleeping
	StatusStopped
	StatusZombie
	StatusDead
)

func (s ProcStatus) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusSleeping:
		return "sleeping"
	case StatusStopped:
		return "stopped"
	case StatusZombie:
		return "zombie"
	case StatusDead:
		return "dead"
	default:
		return "unknown"
	}
}

// ProcessInfo is a read-only snapshot of a single OS process. Stale the
// moment the inferior resumes.
type ProcessInfo struct {
	Pid    int
	Ppid   int
	Uid    int
	Gid    int
	Exe    string
	Status ProcStatus
}

// ThreadInfo is a read-only snapshot of a single OS thread.
type ThreadInfo struct {
	Tid        int
	Pid        int
	Status     ProcStatus
	StartAddr  uint64
	HasStartAddr bool
}

// Perm is a bitmask of memory/descriptor permissions.
type Perm uint8

const (
	PermRead Perm = 1 << iota
	PermWrite
	PermExec
)

func (p Perm) String() string {
	buf := [3]byte{'-', '-', '-'}
	if p&PermRead != 0 {
		buf[0] = 'r'
	}
	if p&PermWrite != 0 {
		buf[1] = 'w'
	}
	if p&PermExec != 0 {
		buf[2] = 'x'
	}
	return string(buf[:])
}

// MemoryMap is one [Start, End) range of the inferior's address space.
type MemoryMap struct {
	Start, End uint64
	Perms      Perm
	Shared     bool
	Offset     uint64
	// Path is the backing file, or a synthesized "unkN" when anonymous
	// and unnamed, matching the Linux /proc/pid/maps convention of
	// labeling anonymous regions.
	Path string
}

func (m MemoryMap) Len() uint64 { return m.End - m.Start }

// DescriptorKind classifies an open file descriptor of the inferior.
type DescriptorKind int

const (
	DescUnknown DescriptorKind = iota
	DescVnode
	DescSocket
	DescPipe
	DescFifo
	DescKqueue
	DescShm
	DescPts
	DescSem
	DescOther
)

// Descriptor is a read-only snapshot of one open file descriptor.
type Descriptor struct {
	Fd     int
	Path   string
	Perms  Perm
	Kind   DescriptorKind
	Offset int64
}

// BreakpointAccess describes which accesses a hardware breakpoint traps
// on.
type BreakpointAccess int

const (
	AccessExec BreakpointAccess = iota
	AccessRead
	AccessWrite
	AccessReadWrite
)

// BreakpointKind distinguishes software (byte-patched, owned by a
// separate breakpoint manager) from hardware (CPU debug-register-backed,
// owned by this package) breakpoints. This core only arms hardware
// breakpoints; BreakpointKind exists so BreakpointItem can describe both
// without this package reaching into the software breakpoint manager.
type BreakpointKind int

const (
	BreakpointSoftware BreakpointKind = iota
	BreakpointHardware
)

// BreakpointItem describes a single breakpoint request passed to
// Debugger.HWBreakpoint.
type BreakpointItem struct {
	Addr   uint64
	Size   int
	Kind   BreakpointKind
	Access BreakpointAccess
}

// RegKind selects which register bank a ReadRegisters/WriteRegisters
// call targets.
type RegKind int

const (
	RegGPR RegKind = iota
	RegFPU
	RegSIMD
	RegSegment
	RegFlags
	RegDebug
)
