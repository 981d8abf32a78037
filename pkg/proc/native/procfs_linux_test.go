//go:build linux

package native

import (
	"testing"

	"github.com/ilian/rdbg/pkg/proc"
)

func TestParseMapLineSkipsMalformed(t *testing.T) {
	cases := []struct {
		line string
		ok   bool
	}{
		{"7f1234560000-7f1234580000 r-xp 00000000 08:01 131073 /lib/x86_64-linux-gnu/libc.so.6", true},
		{"7f1234560000-7f1234580000 rw-p 00000000 00:00 0 ", true},
		{"not a maps line at all", false},
		{"7f1234560000 r-xp 00000000 08:01 131073", false},
	}
	for _, c := range cases {
		_, ok := parseMapLine(c.line)
		if ok != c.ok {
			t.Errorf("parseMapLine(%q) ok=%v, want %v", c.line, ok, c.ok)
		}
	}
}

func TestMapEntryToMemoryMapPerms(t *testing.T) {
	e, ok := parseMapLine("00400000-00401000 r-xp 00000000 08:01 131073 /bin/true")
	if !ok {
		t.Fatal("expected line to parse")
	}
	n := 0
	m := e.toMemoryMap(&n)
	if m.Perms&proc.PermRead == 0 || m.Perms&proc.PermExec == 0 {
		t.Fatalf("expected read+exec perms, got %v", m.Perms)
	}
	if m.Perms&proc.PermWrite != 0 {
		t.Fatalf("expected no write perm, got %v", m.Perms)
	}
	if m.Path != "/bin/true" {
		t.Fatalf("expected path /bin/true, got %q", m.Path)
	}
}

func TestMapEntryAnonymousGetsSyntheticPath(t *testing.T) {
	e, ok := parseMapLine("00600000-00601000 rw-p 00000000 00:00 0")
	if !ok {
		t.Fatal("expected line to parse")
	}
	n := 0
	m := e.toMemoryMap(&n)
	if m.Path != "unk1" {
		t.Fatalf("expected synthesized unk1 path, got %q", m.Path)
	}
}

func TestStatusFromProcStat(t *testing.T) {
	cases := map[byte]proc.ProcStatus{
		'R': proc.StatusRunning,
		'S': proc.StatusSleeping,
		'D': proc.StatusSleeping,
		'T': proc.StatusStopped,
		'Z': proc.StatusZombie,
		'X': proc.StatusDead,
		'?': proc.StatusUnknown,
	}
	for letter, want := range cases {
		if got := statusFromProcStat(letter); got != want {
			t.Errorf("statusFromProcStat(%q) = %v, want %v", letter, got, want)
		}
	}
}

func TestDescriptorKindFromTarget(t *testing.T) {
	cases := map[string]proc.DescriptorKind{
		"socket:[12345]":  proc.DescSocket,
		"pipe:[12345]":    proc.DescPipe,
		"/dev/pts/3":      proc.DescPts,
		"/home/u/file.go": proc.DescVnode,
		"anon_inode:[eventfd]": proc.DescOther,
	}
	for target, want := range cases {
		if got := descriptorKindFromTarget(target); got != want {
			t.Errorf("descriptorKindFromTarget(%q) = %v, want %v", target, got, want)
		}
	}
}
