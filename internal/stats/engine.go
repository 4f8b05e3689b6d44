// Package stats folds packet observations from an external packet source
// into per-connection rolling counters and derives per-process totals and
// rates once per scan tick.
package stats

import (
	"sync"

	"github.com/berghetti/netproc/internal/conntrack"
	"github.com/berghetti/netproc/internal/model"
	"github.com/berghetti/netproc/internal/proctable"
)

// maxBufferedTuples bounds the side buffer for packets observed before
// their connection has surfaced in the kernel table. Once full, the
// oldest buffered tuple is dropped to make room — packets that arrive
// faster than the connection table can catch up are lossy by design
// rather than unbounded.
const maxBufferedTuples = 4096

// IfaceSource supplies the supplementary per-interface throughput shown
// alongside the per-process breakdown. It is never required for
// correctness of the core accounting.
type IfaceSource func() ([]model.InterfaceStat, error)

// Engine is the statistics engine (component E).
type Engine struct {
	conns *conntrack.Table
	procs *proctable.Table
	iface IfaceSource

	bufMu   sync.Mutex
	buf     map[model.Tuple]*model.NetStat
	bufFIFO []model.Tuple
}

// New constructs a statistics engine bound to the given connection and
// process tables.
func New(conns *conntrack.Table, procs *proctable.Table, iface IfaceSource) *Engine {
	return &Engine{
		conns: conns,
		procs: procs,
		iface: iface,
		buf:   make(map[model.Tuple]*model.NetStat),
	}
}

// RecordPacket folds one packet observation into the owning connection's
// tick counters. If the tuple has no connection record yet — the packet
// arrived before the next connection-table refresh — it is buffered and
// drained into the record once the connection surfaces.
func (e *Engine) RecordPacket(tuple model.Tuple, dir model.Direction, bytes, packets uint64) {
	if conn, ok := e.conns.GetByTuple(tuple); ok {
		conn.RecordPacket(dir, bytes, packets)
		return
	}
	e.bufferPacket(tuple, dir, bytes, packets)
}

func (e *Engine) bufferPacket(tuple model.Tuple, dir model.Direction, bytes, packets uint64) {
	e.bufMu.Lock()
	defer e.bufMu.Unlock()

	s, ok := e.buf[tuple]
	if !ok {
		if len(e.bufFIFO) >= maxBufferedTuples {
			oldest := e.bufFIFO[0]
			e.bufFIFO = e.bufFIFO[1:]
			delete(e.buf, oldest)
		}
		s = &model.NetStat{}
		e.buf[tuple] = s
		e.bufFIFO = append(e.bufFIFO, tuple)
	}
	s.Add(dir, bytes, packets)
}

// drainInto hands any buffered observations for tuple to conn and forgets
// them. Called once a connection with that tuple has surfaced.
func (e *Engine) drainInto(conn *conntrack.Connection, tuple model.Tuple) {
	e.bufMu.Lock()
	s, ok := e.buf[tuple]
	if ok {
		delete(e.buf, tuple)
		for i, tp := range e.bufFIFO {
			if tp == tuple {
				e.bufFIFO = append(e.bufFIFO[:i], e.bufFIFO[i+1:]...)
				break
			}
		}
	}
	e.bufMu.Unlock()

	if ok {
		conn.AdoptBuffered(*s)
	}
}

type connMeta struct {
	tuple model.Tuple
	state model.SocketState
}

// Tick finalizes one scan cycle: rolls every connection's tick counters
// into bps/pps and totals, aggregates per-process sums over each
// process' currently owned connections, and returns the resulting
// snapshot. Tick counters are zero again (per connection.Roll) before
// this call returns, satisfying the "tick reset happens before the next
// record_packet" invariant.
func (e *Engine) Tick(intervalSeconds float64) model.Snapshot {
	for _, tuple := range e.pendingDrainCandidates() {
		if conn, ok := e.conns.GetByTuple(tuple); ok {
			e.drainInto(conn, tuple)
		}
	}

	rolled := make(map[uint64]model.NetStat)
	meta := make(map[uint64]connMeta)
	e.conns.ForEach(func(c *conntrack.Connection) bool {
		rolled[c.Inode] = c.Roll(intervalSeconds)
		meta[c.Inode] = connMeta{tuple: c.Tuple, state: c.State}
		return true
	})

	var processes []model.ProcessSnapshot
	e.procs.ForEach(func(p *proctable.Process) bool {
		var procStat model.NetStat
		conns := make([]model.ConnectionSnapshot, 0, len(p.Connections))
		for _, inode := range p.Connections {
			st, ok := rolled[inode]
			if !ok {
				continue
			}
			m := meta[inode]
			conns = append(conns, model.ConnectionSnapshot{
				Tuple: m.tuple,
				Inode: inode,
				State: m.state,
				Stat:  st,
			})
			procStat.Merge(st)
		}
		p.Stat = procStat
		processes = append(processes, model.ProcessSnapshot{
			PID:         p.PID,
			Command:     p.Command,
			Stat:        procStat,
			Connections: conns,
		})
		return true
	})

	var ifaces []model.InterfaceStat
	if e.iface != nil {
		if got, err := e.iface(); err == nil {
			ifaces = got
		}
	}

	return model.Snapshot{Processes: processes, Interfaces: ifaces}
}

// pendingDrainCandidates returns a snapshot of buffered tuples so Tick can
// check each against the connection table without holding bufMu across
// the conns.GetByTuple calls.
func (e *Engine) pendingDrainCandidates() []model.Tuple {
	e.bufMu.Lock()
	defer e.bufMu.Unlock()
	out := make([]model.Tuple, len(e.bufFIFO))
	copy(out, e.bufFIFO)
	return out
}
