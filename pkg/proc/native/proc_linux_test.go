//go:build linux

package native

import (
	"testing"

	"golang.org/x/sys/unix"

	"github.com/ilian/rdbg/pkg/proc"
)

func stopStatus(sig int, event int) unix.WaitStatus {
	return unix.WaitStatus(0x7f | (sig << 8) | (event << 16))
}

func TestClassifyTrapCauseStepCompletionIsNotBreakpoint(t *testing.T) {
	ws := stopStatus(int(unix.SIGTRAP), 0)
	var ev proc.RawEvent
	got := classifyTrapCause(-1, ws, &ev, resumeStep)
	if got != proc.TrapStep {
		t.Fatalf("plain SIGTRAP after a tracked single-step resume must be TrapStep, got %v", got)
	}
}

func TestClassifyTrapCauseContinueWithNoHWConditionIsNotBreakpoint(t *testing.T) {
	ws := stopStatus(int(unix.SIGTRAP), 0)
	var ev proc.RawEvent
	got := classifyTrapCause(-1, ws, &ev, resumeCont)
	if got == proc.TrapBreakpoint {
		t.Fatalf("plain SIGTRAP after continue with no confirmed HW condition must not guess TrapBreakpoint, got %v", got)
	}
}

func TestClassifyTrapCauseSyscallStopIsNotStep(t *testing.T) {
	ws := stopStatus(int(unix.SIGTRAP)|0x80, 0)
	var ev proc.RawEvent
	got := classifyTrapCause(-1, ws, &ev, resumeContSyscall)
	if got == proc.TrapStep {
		t.Fatalf("a PTRACE_SYSCALL syscall-stop must not be classified as TrapStep, got %v", got)
	}
}

func TestClassifyTrapCauseExecEvent(t *testing.T) {
	ws := stopStatus(int(unix.SIGTRAP), unix.PTRACE_EVENT_EXEC)
	var ev proc.RawEvent
	got := classifyTrapCause(-1, ws, &ev, resumeCont)
	if got != proc.TrapNewLib {
		t.Fatalf("PTRACE_EVENT_EXEC should classify as TrapNewLib, got %v", got)
	}
}

func TestClassifyTrapCauseExitEvent(t *testing.T) {
	ws := stopStatus(int(unix.SIGTRAP), unix.PTRACE_EVENT_EXIT)
	var ev proc.RawEvent
	got := classifyTrapCause(-1, ws, &ev, resumeCont)
	if got != proc.TrapExitTid {
		t.Fatalf("PTRACE_EVENT_EXIT should classify as TrapExitTid, got %v", got)
	}
}

func TestDecodeWaitStatusConsumesTrackedResumeKind(t *testing.T) {
	tid := 999999 // never a real pid; exercises the bookkeeping, not the syscalls it guards
	lastResume[tid] = resumeStep
	ev := decodeWaitStatus(tid, stopStatus(int(unix.SIGTRAP), 0))
	if ev.Trap != proc.TrapStep {
		t.Fatalf("expected TrapStep for a tracked step resume, got %v", ev.Trap)
	}
	if _, ok := lastResume[tid]; ok {
		t.Fatalf("decodeWaitStatus must consume (delete) the tracked resume kind")
	}
}
