package fdresolve

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/berghetti/netproc/internal/conntrack"
)

func makeFakeProc(t *testing.T, pid int, links map[string]string) string {
	t.Helper()
	root := t.TempDir()
	fdDir := filepath.Join(root, strconv.Itoa(pid), "fd")
	if err := os.MkdirAll(fdDir, 0o755); err != nil {
		t.Fatal(err)
	}
	for name, target := range links {
		if err := os.Symlink(target, filepath.Join(fdDir, name)); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func tableWithTCPConn(t *testing.T, root string, line string) *conntrack.Table {
	t.Helper()
	netDir := filepath.Join(root, "net")
	if err := os.MkdirAll(netDir, 0o755); err != nil {
		t.Fatal(err)
	}
	header := "  sl  local_address rem_address   st tx_queue rx_queue tr tm->when retrnsmt   uid  timeout inode\n"
	if err := os.WriteFile(filepath.Join(netDir, "tcp"), []byte(header+line), 0o644); err != nil {
		t.Fatal(err)
	}
	tbl := conntrack.New()
	tbl.SetProcRoot(root)
	if err := tbl.Update(conntrack.TCP); err != nil {
		t.Fatalf("seed conntrack: %v", err)
	}
	return tbl
}

// S1-adjacent: a process with an fd symlinked to a tracked inode resolves
// to that connection.
func TestRefreshProcessResolvesSocketFD(t *testing.T) {
	root := makeFakeProc(t, 100, map[string]string{
		"3": "socket:[20911]",
		"4": "pipe:[999]", // non-socket fd, must be ignored
	})
	tbl := tableWithTCPConn(t, root,
		"0: 3500007F:0035 00000000:0000 01 00000000:00000000 00:00000000 00000000  1000        0 20911 1 0000000000000000 100 0 0 10 0\n")

	r := New(tbl)
	r.SetProcRoot(root)

	inodes, err := r.RefreshProcess(100)
	if err != nil {
		t.Fatalf("RefreshProcess: %v", err)
	}
	if len(inodes) != 1 || inodes[0] != 20911 {
		t.Errorf("inodes = %v, want [20911]", inodes)
	}
}

func TestRefreshProcessDedupsSameInode(t *testing.T) {
	root := makeFakeProc(t, 100, map[string]string{
		"3": "socket:[20911]",
		"4": "socket:[20911]", // dup fd, forked process
	})
	tbl := tableWithTCPConn(t, root,
		"0: 3500007F:0035 00000000:0000 01 00000000:00000000 00:00000000 00000000  1000        0 20911 1 0000000000000000 100 0 0 10 0\n")

	r := New(tbl)
	r.SetProcRoot(root)

	inodes, err := r.RefreshProcess(100)
	if err != nil {
		t.Fatalf("RefreshProcess: %v", err)
	}
	if len(inodes) != 1 {
		t.Errorf("expected dedup to one inode, got %v", inodes)
	}
}

func TestRefreshProcessIgnoresUntrackedInode(t *testing.T) {
	root := makeFakeProc(t, 100, map[string]string{
		"3": "socket:[99999]",
	})
	tbl := conntrack.New()
	tbl.SetProcRoot(t.TempDir())

	r := New(tbl)
	r.SetProcRoot(root)

	inodes, err := r.RefreshProcess(100)
	if err != nil {
		t.Fatalf("RefreshProcess: %v", err)
	}
	if len(inodes) != 0 {
		t.Errorf("expected no inodes for an untracked socket, got %v", inodes)
	}
}

// S6 — a vanished fd directory (or one this user can't read) yields an
// empty result, not an error.
func TestRefreshProcessMissingFdDirIsNotAnError(t *testing.T) {
	tbl := conntrack.New()
	tbl.SetProcRoot(t.TempDir())

	r := New(tbl)
	r.SetProcRoot(t.TempDir()) // no pid subdirectory at all

	inodes, err := r.RefreshProcess(12345)
	if err != nil {
		t.Fatalf("expected no error for a missing fd dir, got %v", err)
	}
	if len(inodes) != 0 {
		t.Errorf("expected empty result, got %v", inodes)
	}
}
