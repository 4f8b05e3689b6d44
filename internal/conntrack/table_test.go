package conntrack

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/berghetti/netproc/internal/model"
)

const tcpHeader = "  sl  local_address rem_address   st tx_queue rx_queue tr tm->when retrnsmt   uid  timeout inode\n"

func writeProcNet(t *testing.T, root, name, body string) {
	t.Helper()
	dir := filepath.Join(root, "net")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), []byte(tcpHeader+body), 0o644); err != nil {
		t.Fatal(err)
	}
}

// newTestTable points a fresh Table at an empty fixture root. Both TCP
// files are required by Update, so an empty tcp6 is written up front;
// tests then supply the tcp contents they need.
func newTestTable(t *testing.T) (*Table, string) {
	t.Helper()
	root := t.TempDir()
	writeProcNet(t, root, "tcp6", "")
	tbl := New()
	tbl.SetProcRoot(root)
	return tbl, root
}

// S1 — new connection surfacing: one ESTABLISHED line inserts a record
// reachable by both inode and tuple.
func TestUpdateSurfacesNewConnection(t *testing.T) {
	tbl, root := newTestTable(t)
	writeProcNet(t, root, "tcp",
		"0: 3500007F:0035 00000000:0000 01 00000000:00000000 00:00000000 00000000  1000        0 20911 1 0000000000000000 100 0 0 10 0\n")

	if err := tbl.Update(TCP); err != nil {
		t.Fatalf("Update: %v", err)
	}

	conn, ok := tbl.GetByInode(20911)
	if !ok {
		t.Fatal("expected connection reachable by inode 20911")
	}
	byTuple, ok := tbl.GetByTuple(conn.Tuple)
	if !ok || byTuple != conn {
		t.Fatal("expected get_by_tuple to return the same record as get_by_inode")
	}
	if conn.Tuple.LocalPort != 0x0035 {
		t.Errorf("local port = %d, want %d", conn.Tuple.LocalPort, 0x0035)
	}
}

// S2 — LISTEN/TIME_WAIT states are filtered out; the same inode later
// reported ESTABLISHED is then tracked.
func TestUpdateIgnoresListenAndTimeWait(t *testing.T) {
	tbl, root := newTestTable(t)
	writeProcNet(t, root, "tcp",
		"0: 3500007F:0035 00000000:0000 0A 00000000:00000000 00:00000000 00000000  1000        0 20911 1 0000000000000000 100 0 0 10 0\n")
	if err := tbl.Update(TCP); err != nil {
		t.Fatalf("Update tick1: %v", err)
	}
	if tbl.Len() != 0 {
		t.Fatalf("LISTEN state should not be tracked, got %d connections", tbl.Len())
	}

	writeProcNet(t, root, "tcp",
		"0: 3500007F:0035 00000000:0000 01 00000000:00000000 00:00000000 00000000  1000        0 20911 1 0000000000000000 100 0 0 10 0\n")
	if err := tbl.Update(TCP); err != nil {
		t.Fatalf("Update tick2: %v", err)
	}
	if _, ok := tbl.GetByInode(20911); !ok {
		t.Fatal("expected connection tracked once ESTABLISHED")
	}
}

// S3 — aging: a connection present in one update and absent from the
// next is evicted from both indexes by the end of that second update.
func TestUpdateAgesOutMissingConnection(t *testing.T) {
	tbl, root := newTestTable(t)
	writeProcNet(t, root, "tcp",
		"0: 3500007F:0035 00000000:0000 01 00000000:00000000 00:00000000 00000000  1000        0 20911 1 0000000000000000 100 0 0 10 0\n")
	if err := tbl.Update(TCP); err != nil {
		t.Fatalf("Update tick1: %v", err)
	}
	conn, ok := tbl.GetByInode(20911)
	if !ok {
		t.Fatal("expected connection present after tick1")
	}
	tuple := conn.Tuple

	writeProcNet(t, root, "tcp", "")
	if err := tbl.Update(TCP); err != nil {
		t.Fatalf("Update tick2: %v", err)
	}

	if _, ok := tbl.GetByInode(20911); ok {
		t.Error("expected get_by_inode to miss after eviction")
	}
	if _, ok := tbl.GetByTuple(tuple); ok {
		t.Error("expected get_by_tuple to miss after eviction")
	}
	if conn.Phase() != PhaseEvicted {
		t.Errorf("phase = %v, want PhaseEvicted", conn.Phase())
	}
}

// S5 — inode reuse: the same inode reappearing with a different tuple
// evicts the old record and creates a fresh one.
func TestUpdateHandlesInodeReuse(t *testing.T) {
	tbl, root := newTestTable(t)
	writeProcNet(t, root, "tcp",
		"0: 3500007F:0035 00000000:0000 01 00000000:00000000 00:00000000 00000000  1000        0 50000 1 0000000000000000 100 0 0 10 0\n")
	if err := tbl.Update(TCP); err != nil {
		t.Fatalf("Update tick1: %v", err)
	}
	first, ok := tbl.GetByInode(50000)
	if !ok {
		t.Fatal("expected first connection present")
	}
	firstTuple := first.Tuple

	writeProcNet(t, root, "tcp",
		"0: 6400007F:0050 00000000:0000 01 00000000:00000000 00:00000000 00000000  1000        0 50000 1 0000000000000000 100 0 0 10 0\n")
	if err := tbl.Update(TCP); err != nil {
		t.Fatalf("Update tick2: %v", err)
	}

	second, ok := tbl.GetByInode(50000)
	if !ok {
		t.Fatal("expected a fresh connection under the reused inode")
	}
	if second == first {
		t.Fatal("expected a new record, not the stale one, under the reused inode")
	}
	if _, ok := tbl.GetByTuple(firstTuple); ok {
		t.Error("expected the old tuple to no longer resolve")
	}
	if _, ok := tbl.GetByTuple(second.Tuple); !ok {
		t.Error("expected the new tuple to resolve")
	}
}

func TestUpdateMalformedLineAbortsWholeTick(t *testing.T) {
	tbl, root := newTestTable(t)
	writeProcNet(t, root, "tcp", "this is not a valid connection line\n")

	if err := tbl.Update(TCP); err == nil {
		t.Fatal("expected malformed line to return an error")
	}
}

func TestUpdateMissingTCPFileIsAnError(t *testing.T) {
	tbl := New()
	tbl.SetProcRoot(t.TempDir()) // no /net/tcp written

	if err := tbl.Update(TCP); err == nil {
		t.Fatal("expected missing required tcp file to error")
	}
}

func TestUpdateMissingUDPFileIsNotAnError(t *testing.T) {
	tbl, root := newTestTable(t)
	writeProcNet(t, root, "tcp", "")
	// no udp/udp6 files written — should be tolerated.
	if err := tbl.Update(TCP | UDP); err != nil {
		t.Fatalf("missing optional udp file should not fail update: %v", err)
	}
}

func TestParseHexAddrIPv4(t *testing.T) {
	ip, port, err := parseHexAddr("0100007F:0050", afINET)
	if err != nil {
		t.Fatal(err)
	}
	if got := ip.String(); got != "127.0.0.1" {
		t.Errorf("ip = %s, want 127.0.0.1", got)
	}
	if port != 80 {
		t.Errorf("port = %d, want 80", port)
	}
}

func TestParseHexAddrIPv6(t *testing.T) {
	// ::1 stored as 4 little-endian uint32 groups
	ip, port, err := parseHexAddr("00000000000000000000000001000000:0050", afINET6)
	if err != nil {
		t.Fatal(err)
	}
	if got := ip.String(); got != "0:0:0:0:0:0:0:1" {
		t.Errorf("ip = %s, want 0:0:0:0:0:0:0:1", got)
	}
	if port != 80 {
		t.Errorf("port = %d, want 80", port)
	}
}

func TestParseHexAddrRejectsWrongLength(t *testing.T) {
	if _, _, err := parseHexAddr("0100007F:0050", afINET6); err == nil {
		t.Error("expected error for an 8-char address parsed as IPv6")
	}
	if _, _, err := parseHexAddr("00000000000000000000000001000000:0050", afINET); err == nil {
		t.Error("expected error for a 32-char address parsed as IPv4")
	}
}

func TestRecordPacketAndRoll(t *testing.T) {
	conn := &Connection{}
	conn.RecordPacket(model.DirTx, 100, 1)
	conn.RecordPacket(model.DirTx, 50, 1)
	conn.RecordPacket(model.DirRx, 200, 2)

	stat := conn.Roll(2.0)
	if stat.BpsTx != 75 {
		t.Errorf("BpsTx = %v, want 75", stat.BpsTx)
	}
	if stat.BpsRx != 100 {
		t.Errorf("BpsRx = %v, want 100", stat.BpsRx)
	}
	if stat.BytesTxTick != 0 || stat.BytesRxTick != 0 {
		t.Error("tick counters should be zero immediately after Roll")
	}
	if stat.BytesTxTotal != 150 || stat.BytesRxTotal != 200 {
		t.Errorf("totals after roll = tx:%d rx:%d, want tx:150 rx:200", stat.BytesTxTotal, stat.BytesRxTotal)
	}

	conn.RecordPacket(model.DirTx, 10, 1)
	if got := conn.Stat().BytesTxTick; got != 10 {
		t.Errorf("tick counter after next record_packet = %d, want 10", got)
	}
}
