//go:build linux

// Package native implements proc.OsBackend for the host kernel's native
// debugging primitives: ptrace on Linux. It is the "OS primitives shim"
// of §2 component 1 — thin, typed wrappers that never surface a raw
// errno upward; every exported function here returns a plain Go error
// that the proc package's Debugger facade then classifies into a
// proc.Error (NoSuchProcess/PermissionDenied/OsError/...).
package native

import (
	"fmt"
	"runtime"
	"sync"

	"golang.org/x/sys/unix"
)

// ptraceThread pins every ptrace call to the same OS thread, the way
// delve's execPtraceFunc / ptraceChan does (see the undoio-delve
// proc_linux.go `onPtraceThread` call sites): ptrace requires every
// request for a given tracee to come from the thread that attached to
// it, and Go's scheduler is otherwise free to move a goroutine between
// OS threads between calls.
type ptraceThread struct {
	once sync.Once
	reqs chan func()
}

var pt = &ptraceThread{}

func (p *ptraceThread) start() {
	p.reqs = make(chan func())
	go func() {
		runtime.LockOSThread()
		for fn := range p.reqs {
			fn()
		}
	}()
}

// do runs fn on the dedicated ptrace thread and waits for it to finish.
func (p *ptraceThread) do(fn func()) {
	p.once.Do(p.start)
	done := make(chan struct{})
	p.reqs <- func() {
		fn()
		close(done)
	}
	<-done
}

func ptraceAttach(pid int) error {
	var err error
	pt.do(func() { err = unix.PtraceAttach(pid) })
	return err
}

func ptraceDetach(pid int) error {
	var err error
	pt.do(func() { err = unix.PtraceDetach(pid) })
	return err
}

func ptraceCont(tid, sig int) error {
	var err error
	pt.do(func() { err = unix.PtraceCont(tid, sig) })
	return err
}

func ptraceSingleStep(tid int) error {
	var err error
	pt.do(func() { err = unix.PtraceSingleStep(tid) })
	return err
}

func ptraceSyscall(tid int) error {
	var err error
	pt.do(func() { err = unix.PtraceSyscall(tid, 0) })
	return err
}

func ptraceSetOptions(tid, options int) error {
	var err error
	pt.do(func() { err = unix.PtraceSetOptions(tid, options) })
	return err
}

func ptraceGetEventMsg(tid int) (uint, error) {
	var msg uint
	var err error
	pt.do(func() { msg, err = unix.PtraceGetEventMsg(tid) })
	return msg, err
}

func ptracePeekUser(tid int, addr uintptr) (uintptr, error) {
	var out [8]byte
	var n int
	var err error
	pt.do(func() { n, err = unix.PtracePeekUser(tid, addr, out[:]) })
	if err != nil {
		return 0, err
	}
	if n != len(out) {
		return 0, fmt.Errorf("short PEEKUSER read: %d bytes", n)
	}
	var v uintptr
	for i := 7; i >= 0; i-- {
		v = v<<8 | uintptr(out[i])
	}
	return v, nil
}

func ptracePokeUser(tid int, addr uintptr, data uintptr) error {
	var buf [8]byte
	d := uint64(data)
	for i := 0; i < 8; i++ {
		buf[i] = byte(d)
		d >>= 8
	}
	var err error
	pt.do(func() { err = unix.PtracePokeUser(tid, addr, buf[:]) })
	return err
}

func ptraceGetRegs(tid int, regs *unix.PtraceRegs) error {
	var err error
	pt.do(func() { err = unix.PtraceGetRegs(tid, regs) })
	return err
}

func ptraceSetRegs(tid int, regs *unix.PtraceRegs) error {
	var err error
	pt.do(func() { err = unix.PtraceSetRegs(tid, regs) })
	return err
}

func ptracePeekData(tid int, addr uintptr, out []byte) (int, error) {
	var n int
	var err error
	pt.do(func() { n, err = unix.PtracePeekData(tid, addr, out) })
	return n, err
}

func ptracePokeData(tid int, addr uintptr, data []byte) (int, error) {
	var n int
	var err error
	pt.do(func() { n, err = unix.PtracePokeData(tid, addr, data) })
	return n, err
}

func wait4(pid int, flags int) (int, unix.WaitStatus, error) {
	var ws unix.WaitStatus
	wpid, err := unix.Wait4(pid, &ws, flags, nil)
	return wpid, ws, err
}
