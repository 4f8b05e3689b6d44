// Package fdresolve maps a process' open file descriptors to the
// connections it owns, by reading each numeric fd's symlink target and
// matching the kernel's "socket:[<inode>]" naming convention.
package fdresolve

import (
	"os"
	"regexp"
	"strconv"

	"github.com/berghetti/netproc/internal/conntrack"
	"github.com/berghetti/netproc/internal/procscan"
)

// socketTarget matches the symlink target fd/<n> points at for a socket
// file descriptor, e.g. "socket:[20911]".
var socketTarget = regexp.MustCompile(`^socket:\[([0-9]+)\]$`)

// Resolver implements proctable.Resolver against a live connection table.
type Resolver struct {
	conns    *conntrack.Table
	procRoot string
}

// New builds a Resolver that looks up inodes in conns.
func New(conns *conntrack.Table) *Resolver {
	return &Resolver{conns: conns, procRoot: "/proc"}
}

// SetProcRoot overrides the /proc mount point; used by tests.
func (r *Resolver) SetProcRoot(root string) { r.procRoot = root }

// RefreshProcess enumerates /proc/<pid>/fd and returns the deduplicated
// set of connection inodes this process currently holds open. A process
// whose fd directory has vanished, or whose entries cannot be read
// because it belongs to another user, yields an empty (not erroring)
// result — both are expected, routine conditions, not failures.
func (r *Resolver) RefreshProcess(pid int) ([]uint64, error) {
	fdDir := r.procRoot + "/" + strconv.Itoa(pid) + "/fd"

	fds, err := procscan.NumericEntries(fdDir)
	if err != nil {
		// The fd directory vanished with its process, or belongs to
		// another user. Routine for non-root runs; report no sockets.
		return nil, nil
	}

	seen := make(map[uint64]bool, len(fds))
	var inodes []uint64

	for _, fd := range fds {
		target, err := os.Readlink(fdDir + "/" + strconv.Itoa(fd))
		if err != nil {
			// Broken symlink, permission denied, or the fd closed between
			// enumeration and readlink. All routine; skip silently.
			continue
		}

		m := socketTarget.FindStringSubmatch(target)
		if m == nil {
			continue // not a socket fd
		}

		inode, err := strconv.ParseUint(m[1], 10, 64)
		if err != nil {
			continue
		}

		if seen[inode] {
			continue // dup fd onto the same socket
		}

		if _, ok := r.conns.GetByInode(inode); !ok {
			continue // not (yet) a tracked connection
		}

		seen[inode] = true
		inodes = append(inodes, inode)
	}

	return inodes, nil
}
