//go:build linux && amd64

package native

import (
	"testing"

	"github.com/ilian/rdbg/pkg/proc"
)

func TestSetSlotControlEncodesExecuteLen1(t *testing.T) {
	b := proc.BreakpointItem{Addr: 0x1000, Size: 1, Access: proc.AccessExec}
	dr7 := setSlotControl(0, 0, b)
	field := (dr7 >> 16) & 0xF
	if field != 0 {
		t.Fatalf("execute/1-byte breakpoint should encode rw=00 len=00, got %#x", field)
	}
}

func TestSetSlotControlEncodesWriteLen4(t *testing.T) {
	b := proc.BreakpointItem{Addr: 0x2000, Size: 4, Access: proc.AccessWrite}
	dr7 := setSlotControl(0, 1, b)
	field := (dr7 >> 20) & 0xF
	wantRW := uintptr(0x1)
	wantLen := uintptr(0x3)
	if field&0x3 != wantRW {
		t.Fatalf("write access should set rw=01, got %#x", field&0x3)
	}
	if (field>>2)&0x3 != wantLen {
		t.Fatalf("4-byte length should encode len=11, got %#x", (field>>2)&0x3)
	}
}

func TestClearSlotControlOnlyTouchesOwnSlot(t *testing.T) {
	b := proc.BreakpointItem{Addr: 0x3000, Size: 1, Access: proc.AccessExec}
	dr7 := setSlotControl(0, 2, b)
	dr7 |= 1 << 4 // local enable bit for slot 2
	dr7 = clearSlotControl(dr7, 2)
	if (dr7>>24)&0xF != 0 {
		t.Fatalf("expected slot 2's condition/length field cleared, dr7=%#x", dr7)
	}
	if dr7&(1<<4) == 0 {
		t.Fatalf("clearSlotControl must leave the enable bits alone, dr7=%#x", dr7)
	}
}
