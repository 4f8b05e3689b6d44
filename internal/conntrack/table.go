// Package conntrack tracks live TCP/UDP connections by periodically
// parsing the kernel's connection tables (/proc/net/{tcp,tcp6,udp,udp6})
// and exposing them through two independent lookup paths — by socket
// inode and by 5-tuple — that always resolve to the same record.
//
// Each lookup path is its own generically-typed hashindex.Index, so the
// key shape is fixed at the call site. Both indexes hold one reference to
// a shared Connection record; the record goes away only once both drop it.
package conntrack

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/berghetti/netproc/internal/hashindex"
	"github.com/berghetti/netproc/internal/model"
)

// Phase is the connection's position in the per-tick lifecycle state
// machine: NEW on first insert, ACTIVE while observed, STALE for the
// single tick in which it was missed, EVICTED once removed from both
// indexes.
type Phase uint8

const (
	PhaseNew Phase = iota
	PhaseActive
	PhaseStale
	PhaseEvicted
)

// Connection is one tracked TCP/UDP flow. It is owned exclusively by the
// Table; Process records only ever hold its Inode as a non-owning handle.
type Connection struct {
	Tuple model.Tuple
	Inode uint64
	State model.SocketState

	statMu sync.Mutex
	stat   model.NetStat

	active   atomic.Bool
	phase    atomic.Uint32
	refcount atomic.Int32
}

func (c *Connection) Phase() Phase { return Phase(c.phase.Load()) }

// RecordPacket folds one packet observation into this connection's tick
// counters. Safe for concurrent use by an arbitrary number of ingest
// callers and serialized against Roll.
func (c *Connection) RecordPacket(dir model.Direction, bytes, packets uint64) {
	c.statMu.Lock()
	c.stat.Add(dir, bytes, packets)
	c.statMu.Unlock()
}

// Roll finalizes the current tick: derives bps/pps, folds tick counters
// into totals, zeroes the tick counters, and returns the post-roll stat
// for snapshotting.
func (c *Connection) Roll(intervalSeconds float64) model.NetStat {
	c.statMu.Lock()
	defer c.statMu.Unlock()
	c.stat.Roll(intervalSeconds)
	return c.stat
}

// Stat returns a copy of the current counters without rolling them.
func (c *Connection) Stat() model.NetStat {
	c.statMu.Lock()
	defer c.statMu.Unlock()
	return c.stat
}

// AdoptBuffered merges tick counters observed before this connection
// existed in the table — packets the statistics engine had to hold in its
// side buffer — into the live record.
func (c *Connection) AdoptBuffered(s model.NetStat) {
	c.statMu.Lock()
	c.stat.Merge(s)
	c.statMu.Unlock()
}

// kernelFile describes one /proc/net/{tcp,tcp6,udp,udp6} file to parse.
type kernelFile struct {
	path   string
	family addrFamily
	proto  model.Protocol
}

type addrFamily uint8

const (
	afINET addrFamily = iota
	afINET6
)

// Protocols is a bitmask selecting which kernel families Update refreshes.
type Protocols uint8

const (
	TCP Protocols = 1 << iota
	UDP
)

// Table is the connection table (component B). It maintains the dual
// inode/tuple index described in the data model and ages out connections
// that stop appearing in the kernel's connection files.
type Table struct {
	byInode *hashindex.Index[uint64, *Connection]
	byTuple *hashindex.Index[model.Tuple, *Connection]

	// procRoot allows tests to point parsing at a fixture directory
	// instead of the real /proc.
	procRoot string
}

// New constructs a Table with both indexes ready for use.
func New() *Table {
	t := &Table{procRoot: "/proc"}
	free := func(c *Connection) {
		if c.refcount.Add(-1) == 0 {
			c.phase.Store(uint32(PhaseEvicted))
		} else if c.refcount.Load() < 0 {
			panic("conntrack: refcount underflow — double free of connection record")
		}
	}
	t.byInode = hashindex.New[uint64, *Connection](free)
	t.byTuple = hashindex.New[model.Tuple, *Connection](free)
	return t
}

// SetProcRoot overrides the /proc mount point; used by tests.
func (t *Table) SetProcRoot(root string) { t.procRoot = root }

// GetByInode looks up a connection by its kernel socket inode.
func (t *Table) GetByInode(inode uint64) (*Connection, bool) {
	return t.byInode.Get(inode)
}

// GetByTuple looks up a connection by its 5-tuple.
func (t *Table) GetByTuple(tp model.Tuple) (*Connection, bool) {
	return t.byTuple.Get(tp)
}

// ForEach visits every live connection.
func (t *Table) ForEach(visitor func(*Connection) bool) {
	t.byInode.ForEach(func(_ uint64, c *Connection) bool { return visitor(c) })
}

// Len returns the number of tracked connections.
func (t *Table) Len() int { return t.byInode.Len() }

// Free drops both indexes and all records.
func (t *Table) Free() {
	t.byInode.Destroy()
	t.byTuple.Destroy()
}

var kernelFiles = []kernelFile{
	{"/net/tcp", afINET, model.ProtoTCP},
	{"/net/tcp6", afINET6, model.ProtoTCP},
	{"/net/udp", afINET, model.ProtoUDP},
	{"/net/udp6", afINET6, model.ProtoUDP},
}

// Update refreshes the table from the requested kernel connection files.
//
// A failure to open a required file or a malformed line aborts the whole
// update and returns an error; the aging sweep is skipped, so no record
// is evicted, while records inserted or refreshed earlier in this same
// call remain (partial state is acceptable), and the caller should reuse
// the last-known state for this tick. On full success, every connection not
// observed in this pass is evicted from both indexes: one missed scan is
// enough — PhaseStale exists only within the sweep, not across ticks.
func (t *Table) Update(protocols Protocols) error {
	for _, kf := range kernelFiles {
		if kf.proto == model.ProtoTCP && protocols&TCP == 0 {
			continue
		}
		if kf.proto == model.ProtoUDP && protocols&UDP == 0 {
			continue
		}
		if err := t.updateFile(kf); err != nil {
			return fmt.Errorf("conntrack: update %s: %w", kf.path, err)
		}
	}

	t.ageSweep()
	return nil
}

func (t *Table) updateFile(kf kernelFile) error {
	f, err := os.Open(t.procRoot + kf.path)
	if err != nil {
		// UDP files are optional on some kernel configs (e.g. CONFIG_IPV6=n
		// removes udp6); TCP must exist.
		if kf.proto == model.ProtoUDP {
			return nil
		}
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		return scanner.Err() // header line missing/unreadable
	}

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := t.applyLine(line, kf.family, kf.proto); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// applyLine parses one /proc/net/{tcp,tcp6,udp,udp6} record:
//
//	sl  local_address rem_address   st tx_queue rx_queue tr tm->when retrnsmt   uid  timeout inode
//	0: 3500007F:0035 00000000:0000 0A 00000000:00000000 00:00000000 00000000   101        0 20911 ...
func (t *Table) applyLine(line string, family addrFamily, proto model.Protocol) error {
	fields := strings.Fields(line)
	if len(fields) < 10 {
		return fmt.Errorf("malformed connection line: %d fields", len(fields))
	}

	localIP, localPort, err := parseHexAddr(fields[1], family)
	if err != nil {
		return fmt.Errorf("local address: %w", err)
	}
	remoteIP, remotePort, err := parseHexAddr(fields[2], family)
	if err != nil {
		return fmt.Errorf("remote address: %w", err)
	}
	stateVal, err := strconv.ParseUint(fields[3], 16, 8)
	if err != nil {
		return fmt.Errorf("state: %w", err)
	}
	inode, err := strconv.ParseUint(fields[9], 10, 64)
	if err != nil {
		return fmt.Errorf("inode: %w", err)
	}

	state := model.SocketState(stateVal)
	if state == model.StateTimeWait || state == model.StateListen {
		return nil // not attributable to a meaningful traffic flow
	}

	if conn, ok := t.byInode.Get(inode); ok {
		tp := model.Tuple{LocalIP: localIP, LocalPort: localPort, RemoteIP: remoteIP, RemotePort: remotePort, Proto: proto}
		if conn.Tuple != tp {
			// Inode reuse (invariant 5): the kernel recycled this inode for
			// an unrelated socket. Evict the stale record and fall through
			// to create a fresh one under the same inode.
			t.evict(conn)
		} else {
			conn.active.Store(true)
			conn.phase.Store(uint32(PhaseActive))
			return nil
		}
	}

	conn := &Connection{
		Tuple: model.Tuple{LocalIP: localIP, LocalPort: localPort, RemoteIP: remoteIP, RemotePort: remotePort, Proto: proto},
		Inode: inode,
		State: state,
	}
	conn.active.Store(true)
	conn.phase.Store(uint32(PhaseNew))
	conn.refcount.Store(2)

	t.byInode.Set(inode, conn)
	t.byTuple.Set(conn.Tuple, conn)
	return nil
}

// ageSweep evicts every connection not observed during the update just
// completed, and clears the active flag on the rest for the next cycle.
func (t *Table) ageSweep() {
	var stale []*Connection
	t.byInode.ForEach(func(_ uint64, c *Connection) bool {
		if c.active.Load() {
			c.active.Store(false)
			c.phase.Store(uint32(PhaseActive))
		} else {
			c.phase.Store(uint32(PhaseStale))
			stale = append(stale, c)
		}
		return true
	})
	for _, c := range stale {
		t.evict(c)
	}
}

// evict removes a connection from both indexes. The hashindex free
// callback drops the refcount on each removal; once both have fired the
// record is marked PhaseEvicted and is unreachable from either index.
func (t *Table) evict(c *Connection) {
	t.byInode.Remove(c.Inode)
	t.byTuple.Remove(c.Tuple)
}

// parseHexAddr parses a /proc/net address of the form "HEXIP:HEXPORT".
// IPv4 addresses are 8 hex chars (4 bytes); IPv6 addresses are 32 hex
// chars (16 bytes). Both are stored host-endian as written by the kernel,
// one 32-bit group at a time.
func parseHexAddr(s string, family addrFamily) (model.Addr, uint16, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return model.Addr{}, 0, fmt.Errorf("invalid address %q", s)
	}

	port, err := strconv.ParseUint(parts[1], 16, 16)
	if err != nil {
		return model.Addr{}, 0, fmt.Errorf("invalid port: %w", err)
	}

	ipHex := parts[0]
	wantLen := 8
	if family == afINET6 {
		wantLen = 32
	}
	if len(ipHex) != wantLen {
		return model.Addr{}, 0, fmt.Errorf("unexpected address length %d", len(ipHex))
	}

	raw := make([]byte, wantLen/2)
	for i := 0; i < len(raw); i++ {
		b, err := strconv.ParseUint(ipHex[i*2:i*2+2], 16, 8)
		if err != nil {
			return model.Addr{}, 0, fmt.Errorf("invalid ip hex: %w", err)
		}
		raw[i] = byte(b)
	}

	if family == afINET {
		// 4 bytes stored as a little-endian uint32; reverse to get
		// network byte order.
		var b4 [4]byte
		b4[0], b4[1], b4[2], b4[3] = raw[3], raw[2], raw[1], raw[0]
		return model.AddrFromIPv4(b4), uint16(port), nil
	}

	// IPv6: four little-endian uint32 groups.
	var b16 [16]byte
	for g := 0; g < 4; g++ {
		b16[g*4+0] = raw[g*4+3]
		b16[g*4+1] = raw[g*4+2]
		b16[g*4+2] = raw[g*4+1]
		b16[g*4+3] = raw[g*4+0]
	}
	return model.AddrFromIPv6(b16), uint16(port), nil
}
