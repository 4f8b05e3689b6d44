// Package proctable tracks live processes by enumerating /proc, reading
// each one's command line, and asking the fd resolver to refresh which
// connections it currently owns.
package proctable

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/berghetti/netproc/internal/model"
	"github.com/berghetti/netproc/internal/procscan"
)

// maxCommandLen bounds how much of argv gets kept for display.
const maxCommandLen = 512

// Resolver refreshes a Process' owned connection list. conntrack.Table
// satisfies the lookup half of this through fdresolve.Resolver; proctable
// only depends on the narrow interface it actually calls.
type Resolver interface {
	RefreshProcess(pid int) (inodes []uint64, err error)
}

// Process is one tracked process (component C's owned record). Its
// Connections slice holds non-owning inode handles into the connection
// table — never pointers — so there is no ownership cycle between the
// process and connection tables.
type Process struct {
	PID         int
	Command     string
	Connections []uint64
	Stat        model.NetStat

	active bool
}

// Table owns every tracked Process exclusively.
type Table struct {
	mu       sync.Mutex
	byPID    map[int]*Process
	procRoot string
}

// New constructs an empty process table.
func New() *Table {
	return &Table{
		byPID:    make(map[int]*Process),
		procRoot: "/proc",
	}
}

// SetProcRoot overrides the /proc mount point; used by tests.
func (t *Table) SetProcRoot(root string) { t.procRoot = root }

// Init verifies /proc can be enumerated at all. A failure here is the
// fatal initialization error described in the external interfaces
// section — the caller should exit nonzero rather than start the scan
// loop against a procfs it can never read.
func (t *Table) Init() error {
	if _, err := os.ReadDir(t.procRoot); err != nil {
		return fmt.Errorf("proctable: cannot enumerate %s: %w", t.procRoot, err)
	}
	return nil
}

// Update enumerates /proc, creating, refreshing, or evicting Process
// records, and asks resolver to repopulate each process' owned
// connections.
func (t *Table) Update(resolver Resolver) error {
	pids, err := procscan.NumericEntries(t.procRoot)
	if err != nil {
		return fmt.Errorf("proctable: enumerate %s: %w", t.procRoot, err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	for _, pid := range pids {
		p, ok := t.byPID[pid]
		if !ok {
			p = &Process{
				PID:     pid,
				Command: t.readCommand(pid),
			}
			t.byPID[pid] = p
		}
		p.active = true

		inodes, err := resolver.RefreshProcess(pid)
		if err != nil {
			// Per-process resolution errors are non-fatal; the process
			// simply keeps its previous connection list for this tick.
			// (fdresolve.Resolver reports a vanished or unreadable fd
			// directory as an empty list, not as an error.)
			continue
		}
		p.Connections = inodes
	}

	for pid, p := range t.byPID {
		if !p.active {
			delete(t.byPID, pid)
			continue
		}
		p.active = false
	}

	return nil
}

// ForEach visits every live process.
func (t *Table) ForEach(visitor func(*Process) bool) {
	t.mu.Lock()
	procs := make([]*Process, 0, len(t.byPID))
	for _, p := range t.byPID {
		procs = append(procs, p)
	}
	t.mu.Unlock()

	for _, p := range procs {
		if !visitor(p) {
			return
		}
	}
}

// Len returns the number of tracked processes.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.byPID)
}

// Free drops all process records.
func (t *Table) Free() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byPID = make(map[int]*Process)
}

// readCommand reads /proc/<pid>/cmdline: NUL-separated argv, joined with
// spaces for display and truncated to maxCommandLen. A process that has
// already exited or whose cmdline is unreadable (kernel threads have an
// empty cmdline) yields an empty string rather than an error.
func (t *Table) readCommand(pid int) string {
	raw, err := os.ReadFile(t.procRoot + "/" + strconv.Itoa(pid) + "/cmdline")
	if err != nil {
		return ""
	}

	trimmed := strings.TrimRight(string(raw), "\x00")
	cmd := strings.ReplaceAll(trimmed, "\x00", " ")
	if len(cmd) > maxCommandLen {
		cmd = cmd[:maxCommandLen]
	}
	return cmd
}
