package proc

import "fmt"

// hwState is the Debugger-owned hardware breakpoint slot table (§9:
// "Global breakpoint slot table -> owned state inside the Debugger, not
// module-level"). It tracks which BreakpointItem occupies which logical
// slot so Get/Remove-by-address can be answered without re-reading the
// kernel, while every mutation still goes through the backend's
// sync->modify->set discipline (invariant 4) because hwState never pokes
// registers itself — it only records what apply() already committed.
type hwState struct {
	maxSlots int
	slots    []*BreakpointItem
}

func newHWState(profile *RegisterProfile) *hwState {
	n := 4
	switch profile.Arch {
	case "arm64", "arm":
		n = 1
	}
	return &hwState{maxSlots: n, slots: make([]*BreakpointItem, n)}
}

func (h *hwState) findSlot(addr uint64) int {
	for i, s := range h.slots {
		if s != nil && s.Addr == addr {
			return i
		}
	}
	return -1
}

func (h *hwState) freeSlot() int {
	for i, s := range h.slots {
		if s == nil {
			return i
		}
	}
	return -1
}

// apply arms or disarms b against the kernel via backend.HWBreakpoint,
// then mirrors the result into the slot table (read-bank -> mutate ->
// write-bank per invariant 4, here read/write-bank being the slot
// table rather than raw DR bytes since those live behind the backend).
func (h *hwState) apply(d *Debugger, pid, tid int, b BreakpointItem, set bool) error {
	if d.backend == nil || d.backend.HWBreakpoint == nil {
		return newErr("hw_breakpoint", KindNotImplemented, nil)
	}
	if set {
		if existing := h.findSlot(b.Addr); existing >= 0 {
			return newErr("hw_breakpoint", KindInvalid, fmt.Errorf("breakpoint already set at %#x", b.Addr))
		}
		slot := h.freeSlot()
		if slot < 0 {
			return newErr("hw_breakpoint", KindFull, nil)
		}
		if err := d.backend.HWBreakpoint(pid, tid, b, true); err != nil {
			return newErr("hw_breakpoint", KindOsError, err)
		}
		item := b
		h.slots[slot] = &item
		return nil
	}

	slot := h.findSlot(b.Addr)
	if slot < 0 {
		return newErr("hw_breakpoint", KindInvalid, fmt.Errorf("no breakpoint set at %#x", b.Addr))
	}
	if err := d.backend.HWBreakpoint(pid, tid, b, false); err != nil {
		return newErr("hw_breakpoint", KindOsError, err)
	}
	h.slots[slot] = nil
	return nil
}

// clearAll removes every armed hardware breakpoint, used by Detach
// (§4.1: "HW breakpoints are cleared first").
func (h *hwState) clearAll(d *Debugger, pid int) error {
	var firstErr error
	for i, s := range h.slots {
		if s == nil {
			continue
		}
		if d.backend != nil && d.backend.HWBreakpoint != nil {
			if err := d.backend.HWBreakpoint(pid, d.tid, *s, false); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		h.slots[i] = nil
	}
	return firstErr
}

// HWSlots returns a snapshot of the current hardware breakpoint slot
// table, for tests and introspection.
func (d *Debugger) HWSlots() []*BreakpointItem {
	if d.hw == nil {
		return nil
	}
	out := make([]*BreakpointItem, len(d.hw.slots))
	copy(out, d.hw.slots)
	return out
}
