//go:build linux

package native

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ilian/rdbg/pkg/proc"
)

// statusFromProcStat maps the /proc/pid/stat state letter to
// proc.ProcStatus, generalizing the kinfo_proc branches of
// r_debug_native_info in debug_native.c (SSLEEP->Sleeping,
// SSTOP->Stopped, SZOMB->Zombie, SRUN/SIDL->Running, default->Dead) to
// the Linux state-letter convention (§6: "Line formats are the standard
// kernel formats").
func statusFromProcStat(letter byte) proc.ProcStatus {
	switch letter {
	case 'R':
		return proc.StatusRunning
	case 'S', 'D', 'I':
		return proc.StatusSleeping
	case 'T', 't':
		return proc.StatusStopped
	case 'Z':
		return proc.StatusZombie
	case 'X', 'x':
		return proc.StatusDead
	default:
		return proc.StatusUnknown
	}
}

// readProcStat extracts (ppid, state letter) from /proc/pid/stat. The
// second field is the comm name in parens, which may itself contain
// spaces or parens; like the delve-lineage `status()` helper (see
// undoio-delve proc_linux.go), we scan from the last ')' rather than
// trying to parse the comm field.
func readProcStat(pid int) (ppid int, state byte, err error) {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		return 0, 0, err
	}
	s := string(data)
	close := strings.LastIndexByte(s, ')')
	if close < 0 || close+2 >= len(s) {
		return 0, 0, fmt.Errorf("malformed /proc/%d/stat", pid)
	}
	rest := strings.Fields(s[close+2:])
	if len(rest) < 2 {
		return 0, 0, fmt.Errorf("malformed /proc/%d/stat", pid)
	}
	state = rest[0][0]
	ppid, err = strconv.Atoi(rest[1])
	if err != nil {
		return 0, 0, err
	}
	return ppid, state, nil
}

func readComm(pid int) string {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/comm", pid))
	if err != nil {
		return ""
	}
	return strings.TrimRight(string(data), "\n")
}

func readCmdline(pid int) string {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/cmdline", pid))
	if err != nil || len(data) == 0 {
		return ""
	}
	parts := strings.Split(strings.TrimRight(string(data), "\x00"), "\x00")
	return strings.Join(parts, " ")
}

func readExe(pid int) string {
	link, err := os.Readlink(fmt.Sprintf("/proc/%d/exe", pid))
	if err != nil {
		return ""
	}
	return link
}

func readOwner(pid int) (uid, gid int) {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/status", pid))
	if err != nil {
		return -1, -1
	}
	uid, gid = -1, -1
	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		switch fields[0] {
		case "Uid:":
			if v, err := strconv.Atoi(fields[1]); err == nil {
				uid = v
			}
		case "Gid:":
			if v, err := strconv.Atoi(fields[1]); err == nil {
				gid = v
			}
		}
	}
	return uid, gid
}

// processList implements §4.4's process enumerator: read /proc/*/stat
// (ppid, state), /proc/*/status (uid, gid) and the /proc/*/exe link
// (executable path), filtering by ppid when a pid is given (returns
// children plus the pid itself labeled "(ppid)" — here surfaced simply
// as that pid's own ProcessInfo, the caller distinguishes by Ppid).
func processList(filterPpid int, hasFilter bool) ([]proc.ProcessInfo, error) {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return nil, err
	}
	var out []proc.ProcessInfo
	for _, e := range entries {
		pid, err := strconv.Atoi(e.Name())
		if err != nil {
			continue // not a pid directory; skip rather than abort (§7)
		}
		ppid, state, err := readProcStat(pid)
		if err != nil {
			continue // malformed/vanished; skip (§7)
		}
		if hasFilter && ppid != filterPpid && pid != filterPpid {
			continue
		}
		uid, gid := readOwner(pid)
		info := proc.ProcessInfo{
			Pid:    pid,
			Ppid:   ppid,
			Uid:    uid,
			Gid:    gid,
			Exe:    readExe(pid),
			Status: statusFromProcStat(state),
		}
		out = append(out, info)
	}
	return out, nil
}

// threadList implements the Linux branch of §4.4's thread enumerator:
// read /proc/pid/task.
func threadList(pid int) ([]proc.ThreadInfo, error) {
	entries, err := os.ReadDir(fmt.Sprintf("/proc/%d/task", pid))
	if err != nil {
		return nil, err
	}
	var out []proc.ThreadInfo
	for _, e := range entries {
		tid, err := strconv.Atoi(e.Name())
		if err != nil {
			continue
		}
		_, state, err := readProcStat(tid)
		status := proc.StatusUnknown
		if err == nil {
			status = statusFromProcStat(state)
		}
		out = append(out, proc.ThreadInfo{Tid: tid, Pid: pid, Status: status})
	}
	return out, nil
}

// mapEntry is the explicit field schema for one /proc/pid/maps line
// (§9 design note: "streaming parsers with explicit field schemas").
type mapEntry struct {
	start, end uint64
	perms      string
	offset     uint64
	path       string
}

func parseMapLine(line string) (mapEntry, bool) {
	fields := strings.Fields(line)
	if len(fields) < 5 {
		return mapEntry{}, false
	}
	rng := strings.SplitN(fields[0], "-", 2)
	if len(rng) != 2 {
		return mapEntry{}, false
	}
	start, err := strconv.ParseUint(rng[0], 16, 64)
	if err != nil {
		return mapEntry{}, false
	}
	end, err := strconv.ParseUint(rng[1], 16, 64)
	if err != nil {
		return mapEntry{}, false
	}
	offset, err := strconv.ParseUint(fields[2], 16, 64)
	if err != nil {
		return mapEntry{}, false
	}
	path := ""
	if len(fields) >= 6 {
		path = strings.Join(fields[5:], " ")
	}
	return mapEntry{start: start, end: end, perms: fields[1], offset: offset, path: path}, true
}

func (e mapEntry) toMemoryMap(unkCounter *int) proc.MemoryMap {
	var perms proc.Perm
	if strings.ContainsRune(e.perms, 'r') {
		perms |= proc.PermRead
	}
	if strings.ContainsRune(e.perms, 'w') {
		perms |= proc.PermWrite
	}
	if strings.ContainsRune(e.perms, 'x') {
		perms |= proc.PermExec
	}
	shared := strings.ContainsRune(e.perms, 's')
	path := e.path
	if path == "" {
		*unkCounter++
		path = fmt.Sprintf("unk%d", *unkCounter)
	}
	return proc.MemoryMap{Start: e.start, End: e.end, Perms: perms, Shared: shared, Offset: e.offset, Path: path}
}

// mapList implements the Linux branch of §4.4's map enumerator: parse
// /proc/pid/maps line by line. Lines with map_start == map_end or end ==
// 0 are skipped (§4.4), and malformed lines are skipped rather than
// aborting the whole enumeration (§7).
func mapList(pid int) ([]proc.MemoryMap, error) {
	f, err := os.Open(fmt.Sprintf("/proc/%d/maps", pid))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []proc.MemoryMap
	unkCounter := 0
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 4096), 1<<20)
	for sc.Scan() {
		entry, ok := parseMapLine(sc.Text())
		if !ok {
			continue
		}
		if entry.start == entry.end || entry.end == 0 {
			continue
		}
		out = append(out, entry.toMemoryMap(&unkCounter))
	}
	if err := sc.Err(); err != nil {
		return out, err
	}
	return out, nil
}

// descriptorKindFromTarget classifies a /proc/pid/fd/N symlink target
// into a proc.DescriptorKind, matching the kinds enumerated in §3.
func descriptorKindFromTarget(target string) proc.DescriptorKind {
	switch {
	case strings.HasPrefix(target, "socket:"):
		return proc.DescSocket
	case strings.HasPrefix(target, "pipe:"):
		return proc.DescPipe
	case strings.HasPrefix(target, "anon_inode:[eventpoll]"), strings.HasPrefix(target, "anon_inode:[eventfd]"):
		return proc.DescOther
	case strings.Contains(target, "/dev/pts/"):
		return proc.DescPts
	case strings.HasPrefix(target, "/SYSV") || strings.HasPrefix(target, "/dev/shm"):
		return proc.DescShm
	default:
		if filepath.IsAbs(target) {
			return proc.DescVnode
		}
		return proc.DescOther
	}
}

// descriptorList implements the Linux branch of §4.4's descriptor
// enumerator: scan /proc/pid/fd.
func descriptorList(pid int) ([]proc.Descriptor, error) {
	dir := fmt.Sprintf("/proc/%d/fd", pid)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []proc.Descriptor
	for _, e := range entries {
		fd, err := strconv.Atoi(e.Name())
		if err != nil {
			continue
		}
		target, err := os.Readlink(filepath.Join(dir, e.Name()))
		if err != nil {
			continue // fd closed between readdir and readlink; skip (§7)
		}
		perms := fdPermsFromFdinfo(pid, fd)
		out = append(out, proc.Descriptor{
			Fd:    fd,
			Path:  target,
			Perms: perms,
			Kind:  descriptorKindFromTarget(target),
		})
	}
	return out, nil
}

// fdPermsFromFdinfo reads the O_RDONLY/O_WRONLY/O_RDWR bits out of
// /proc/pid/fdinfo/N's "flags:" line.
func fdPermsFromFdinfo(pid, fd int) proc.Perm {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/fdinfo/%d", pid, fd))
	if err != nil {
		return 0
	}
	for _, line := range strings.Split(string(data), "\n") {
		if !strings.HasPrefix(line, "flags:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		v, err := strconv.ParseInt(fields[1], 8, 64)
		if err != nil {
			continue
		}
		const oAccMode = 3
		switch v & oAccMode {
		case 0: // O_RDONLY
			return proc.PermRead
		case 1: // O_WRONLY
			return proc.PermWrite
		default: // O_RDWR
			return proc.PermRead | proc.PermWrite
		}
	}
	return 0
}
