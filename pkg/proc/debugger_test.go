package proc

import (
	"context"
	"testing"
)

// fakeBackendWithEvents drives the event loop's decision logic without a
// real kernel, the way delve's own proc tests stand up a mock target
// rather than exec'ing a binary for every assertion.
func newTestDebugger() (*Debugger, chan RawEvent) {
	backend, events := fakeBackendWithEvents()
	d := NewDebugger(backend, nil, nil)
	return d, events
}

func fakeBackendWithEvents() (*OsBackend, chan RawEvent) {
	events := make(chan RawEvent, 16)
	profile := &RegisterProfile{
		OS: "fake", Arch: "amd64", Bits: 64, BufSize: 8,
		Records: []RegisterRecord{
			{Name: "pc", Offset: 0, Size: 8, Role: RolePC},
		},
	}
	b := &OsBackend{
		OS: "fake", Arch: "amd64", Bits: 64,
		Attach: func(pid int) (int, error) { return pid, nil },
		Detach: func(pid int) error { return nil },
		Select: func(pid, tid int) error { return nil },
		Step:   func(tid int) error { return nil },
		Continue: func(pids []int, sig int) error {
			return nil
		},
		Wait: func(ctx context.Context, pid, tid int) (RawEvent, error) {
			select {
			case ev := <-events:
				return ev, nil
			case <-ctx.Done():
				return RawEvent{}, ctx.Err()
			}
		},
		Kill:           func(pid, tid, sig int) error { return nil },
		ReadRegisters:  func(tid int, kind RegKind) ([]byte, error) { return make([]byte, 8), nil },
		WriteRegisters: func(tid int, kind RegKind, buf []byte) error { return nil },
		Profile:        profile,
	}
	return b, events
}

func TestAttachStartsDetachedThenStopped(t *testing.T) {
	d, _ := newTestDebugger()
	if d.State() != StateDetached {
		t.Fatalf("new Debugger should start Detached, got %v", d.State())
	}
	tid, err := d.Attach(42)
	if err != nil {
		t.Fatal(err)
	}
	if tid != 42 {
		t.Fatalf("expected tid 42, got %d", tid)
	}
	if d.State() != StateStopped {
		t.Fatalf("expected Stopped after attach, got %v", d.State())
	}
}

func TestAttachIdempotent(t *testing.T) {
	d, _ := newTestDebugger()
	if _, err := d.Attach(7); err != nil {
		t.Fatal(err)
	}
	tid, err := d.Attach(7)
	if err != nil {
		t.Fatal(err)
	}
	if tid != 7 {
		t.Fatalf("idempotent re-attach should return same tid, got %d", tid)
	}
}

func TestWaitReportsBreakpointHit(t *testing.T) {
	d, events := newTestDebugger()
	if _, err := d.Attach(1); err != nil {
		t.Fatal(err)
	}
	events <- RawEvent{Tid: 1, Stopped: true, StopSignal: 5, Trap: TrapBreakpoint}
	reason, err := d.Wait(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if reason.Type != ReasonBreakpointHit {
		t.Fatalf("expected BreakpointHit, got %v", reason.Type)
	}
}

func TestWaitAbsorbsSilentProbeAndReselects(t *testing.T) {
	d, events := newTestDebugger()
	if _, err := d.Attach(1); err != nil {
		t.Fatal(err)
	}
	events <- RawEvent{Tid: 1, Stopped: true, StopSignal: 5, Trap: TrapSilentProbe}
	events <- RawEvent{Tid: 1, Stopped: true, StopSignal: 5, Trap: TrapStep}
	reason, err := d.Wait(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if reason.Type != ReasonStepComplete {
		t.Fatalf("silent probe should be absorbed, next wait should surface StepComplete; got %v", reason.Type)
	}
}

func TestWaitSurfacesNewTidByDefault(t *testing.T) {
	d, events := newTestDebugger()
	if _, err := d.Attach(1); err != nil {
		t.Fatal(err)
	}
	events <- RawEvent{Tid: 1, Stopped: true, StopSignal: 5, Trap: TrapNewTid, NewTid: 2}
	reason, err := d.Wait(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if reason.Type != ReasonNewTid || reason.NewTid != 2 {
		t.Fatalf("expected visible NewTid(2), got %+v", reason)
	}
}

func TestWaitAbsorbsThreadNotificationsWhenOptedIn(t *testing.T) {
	d, events := newTestDebugger()
	if _, err := d.Attach(1); err != nil {
		t.Fatal(err)
	}
	d.SetAbsorbThreadNotifications(true)
	events <- RawEvent{Tid: 1, Stopped: true, StopSignal: 5, Trap: TrapNewTid, NewTid: 2}
	events <- RawEvent{Tid: 1, Stopped: true, StopSignal: 5, Trap: TrapStep}
	reason, err := d.Wait(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if reason.Type != ReasonStepComplete {
		t.Fatalf("NewTid should be absorbed when opted in; got %v", reason.Type)
	}
}

func TestWaitReportsDeadAndTerminatesState(t *testing.T) {
	d, events := newTestDebugger()
	if _, err := d.Attach(1); err != nil {
		t.Fatal(err)
	}
	events <- RawEvent{Tid: 1, Exited: true, ExitStatus: 0}
	reason, err := d.Wait(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if reason.Type != ReasonDead {
		t.Fatalf("expected Dead, got %v", reason.Type)
	}
	if d.State() != StateDead {
		t.Fatalf("expected Debugger state Dead, got %v", d.State())
	}
	if err := d.Step(); err == nil {
		t.Fatal("expected operations after Dead to fail with InferiorDead")
	}
}

func TestSelectRejectsUnknownTid(t *testing.T) {
	d, _ := newTestDebugger()
	if _, err := d.Attach(1); err != nil {
		t.Fatal(err)
	}
	if err := d.Select(1, 99); err == nil {
		t.Fatal("expected Select on unknown tid to fail")
	}
}

func TestSelectIdempotent(t *testing.T) {
	d, events := newTestDebugger()
	if _, err := d.Attach(1); err != nil {
		t.Fatal(err)
	}
	events <- RawEvent{Tid: 1, Stopped: true, StopSignal: 5, Trap: TrapForkOrClone, NewPid: 55, NewTid: 55}
	if _, err := d.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := d.Select(55, 55); err != nil {
		t.Fatal(err)
	}
	if err := d.Select(55, 55); err != nil {
		t.Fatalf("second identical Select should also succeed: %v", err)
	}
}

func TestRegisterBankArenaRoundTrip(t *testing.T) {
	profile := &RegisterProfile{
		Arch: "amd64", Bits: 64, BufSize: 16,
		Records: []RegisterRecord{
			{Name: "rip", Offset: 0, Size: 8, Role: RolePC},
			{Name: "rsp", Offset: 8, Size: 8, Role: RoleSP},
		},
	}
	bank := NewRegisterBank(profile)
	bank.Load(make([]byte, 16))
	if err := bank.SetPC(0x1000); err != nil {
		t.Fatal(err)
	}
	if err := bank.ArenaPush(); err != nil {
		t.Fatal(err)
	}
	if err := bank.SetPC(0x2000); err != nil {
		t.Fatal(err)
	}
	if err := bank.ArenaPop(); err != nil {
		t.Fatal(err)
	}
	pc, err := bank.PC()
	if err != nil {
		t.Fatal(err)
	}
	if pc != 0x1000 {
		t.Fatalf("ArenaPop should restore pre-push PC 0x1000, got %#x", pc)
	}
	if bank.ArenaDepth() != 0 {
		t.Fatalf("expected empty arena after balanced push/pop, depth=%d", bank.ArenaDepth())
	}
}

func TestRegisterBankArenaOverflowFailsClosed(t *testing.T) {
	profile := &RegisterProfile{BufSize: 1}
	bank := NewRegisterBank(profile)
	bank.maxDepth = 2
	if err := bank.ArenaPush(); err != nil {
		t.Fatal(err)
	}
	if err := bank.ArenaPush(); err != nil {
		t.Fatal(err)
	}
	if err := bank.ArenaPush(); err == nil {
		t.Fatal("expected overflow past maxDepth to fail")
	}
}

func TestHWBreakpointSlotLifecycle(t *testing.T) {
	profile := &RegisterProfile{Arch: "amd64"}
	var armed []BreakpointItem
	backend := &OsBackend{
		Profile: profile,
		HWBreakpoint: func(pid, tid int, b BreakpointItem, set bool) error {
			if set {
				armed = append(armed, b)
			}
			return nil
		},
	}
	d := NewDebugger(backend, nil, nil)
	b := BreakpointItem{Addr: 0x4000, Size: 1, Kind: BreakpointHardware, Access: AccessExec}
	d.pid, d.tid, d.state = 1, 1, StateStopped
	if err := d.HWBreakpoint(b, true); err != nil {
		t.Fatal(err)
	}
	if len(armed) != 1 {
		t.Fatalf("expected one armed breakpoint, got %d", len(armed))
	}
	if err := d.HWBreakpoint(b, true); err == nil {
		t.Fatal("expected double-arm at same address to fail")
	}
	if err := d.HWBreakpoint(b, false); err != nil {
		t.Fatal(err)
	}
}

func TestPromoteHugePageRejectsNonMultipleOf2MiB(t *testing.T) {
	d, _ := newTestDebugger()
	d.pid, d.state = 1, StateStopped
	if err := d.PromoteHugePage(0x1000, 3000); err == nil {
		t.Fatal("expected size not a multiple of 2MiB to be rejected")
	}
}
