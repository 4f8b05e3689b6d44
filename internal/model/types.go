// Package model holds the shared data types for the attribution and
// accounting pipeline: connection tuples, rolling statistics, connection
// and process records, and the immutable snapshot handed to the UI.
package model

import "fmt"

// Protocol identifies the transport protocol of a connection.
type Protocol uint8

const (
	ProtoTCP Protocol = iota
	ProtoUDP
)

func (p Protocol) String() string {
	switch p {
	case ProtoTCP:
		return "TCP"
	case ProtoUDP:
		return "UDP"
	default:
		return "???"
	}
}

// SocketState mirrors the kernel TCP state codes found in /proc/net/tcp.
// UDP sockets carry whatever code the kernel writes for them (ESTABLISHED
// for connected sockets, CLOSE otherwise); the kernel does not give UDP a
// richer state machine.
type SocketState uint8

const (
	StateUnknown SocketState = iota
	StateEstablished
	StateSynSent
	StateSynRecv
	StateFinWait1
	StateFinWait2
	StateTimeWait
	StateClose
	StateCloseWait
	StateLastAck
	StateListen
	StateClosing
)

var stateNames = [...]string{
	StateUnknown:     "UNKNOWN",
	StateEstablished: "ESTABLISHED",
	StateSynSent:     "SYN_SENT",
	StateSynRecv:     "SYN_RECV",
	StateFinWait1:    "FIN_WAIT1",
	StateFinWait2:    "FIN_WAIT2",
	StateTimeWait:    "TIME_WAIT",
	StateClose:       "CLOSE",
	StateCloseWait:   "CLOSE_WAIT",
	StateLastAck:     "LAST_ACK",
	StateListen:      "LISTEN",
	StateClosing:     "CLOSING",
}

func (s SocketState) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "UNKNOWN"
}

// Addr is a 16-byte address storage shared by IPv4 (as a v4-mapped address)
// and IPv6, so that Tuple stays comparable and usable as a map key.
type Addr [16]byte

// AddrFromIPv4 packs 4 big-endian bytes as a v4-mapped IPv6 address.
func AddrFromIPv4(b [4]byte) Addr {
	var a Addr
	a[10] = 0xff
	a[11] = 0xff
	a[12], a[13], a[14], a[15] = b[0], b[1], b[2], b[3]
	return a
}

// AddrFromIPv6 copies 16 bytes verbatim.
func AddrFromIPv6(b [16]byte) Addr {
	return Addr(b)
}

// IsV4Mapped reports whether the address is a packed IPv4 address.
func (a Addr) IsV4Mapped() bool {
	for i := 0; i < 10; i++ {
		if a[i] != 0 {
			return false
		}
	}
	return a[10] == 0xff && a[11] == 0xff
}

func (a Addr) String() string {
	if a.IsV4Mapped() {
		return fmt.Sprintf("%d.%d.%d.%d", a[12], a[13], a[14], a[15])
	}
	return fmt.Sprintf("%x:%x:%x:%x:%x:%x:%x:%x",
		uint16(a[0])<<8|uint16(a[1]), uint16(a[2])<<8|uint16(a[3]),
		uint16(a[4])<<8|uint16(a[5]), uint16(a[6])<<8|uint16(a[7]),
		uint16(a[8])<<8|uint16(a[9]), uint16(a[10])<<8|uint16(a[11]),
		uint16(a[12])<<8|uint16(a[13]), uint16(a[14])<<8|uint16(a[15]))
}

// Tuple is the 5-tuple identity of a connection. It is value-equal: two
// tuples with identical fields are the same key, which lets it double as
// a comparable Go map key without any hashing boilerplate.
type Tuple struct {
	LocalIP    Addr
	RemoteIP   Addr
	LocalPort  uint16
	RemotePort uint16
	Proto      Protocol
}

func (t Tuple) String() string {
	return fmt.Sprintf("%s %s:%d -> %s:%d", t.Proto, t.LocalIP, t.LocalPort, t.RemoteIP, t.RemotePort)
}

// Direction is the flow direction of an observed packet, relative to the
// local side of a connection.
type Direction uint8

const (
	DirTx Direction = iota
	DirRx
)

// NetStat holds rolling byte/packet counters for one aggregation unit —
// a connection or a process. Tick counters are folded into the totals and
// reset at each tick boundary; the tx/rx derived rates are averages over
// the interval that just elapsed, not instantaneous values.
type NetStat struct {
	BytesTxTotal   uint64
	BytesRxTotal   uint64
	PacketsTxTotal uint64
	PacketsRxTotal uint64

	BytesTxTick   uint64
	BytesRxTick   uint64
	PacketsTxTick uint64
	PacketsRxTick uint64

	BpsTx float64
	BpsRx float64
	PpsTx float64
	PpsRx float64
}

// Add folds one packet observation into the tick counters.
func (s *NetStat) Add(dir Direction, bytes uint64, packets uint64) {
	switch dir {
	case DirTx:
		s.BytesTxTick += bytes
		s.PacketsTxTick += packets
	case DirRx:
		s.BytesRxTick += bytes
		s.PacketsRxTick += packets
	}
}

// Roll computes the derived per-interval rates from the current tick
// counters, folds them into the totals, then zeroes the tick counters.
// Must be called once per tick; the computed rates are left in the
// Bps*/Pps* fields until the next Roll.
func (s *NetStat) Roll(intervalSeconds float64) {
	if intervalSeconds <= 0 {
		intervalSeconds = 1
	}
	s.BpsTx = float64(s.BytesTxTick) / intervalSeconds
	s.BpsRx = float64(s.BytesRxTick) / intervalSeconds
	s.PpsTx = float64(s.PacketsTxTick) / intervalSeconds
	s.PpsRx = float64(s.PacketsRxTick) / intervalSeconds

	s.BytesTxTotal += s.BytesTxTick
	s.BytesRxTotal += s.BytesRxTick
	s.PacketsTxTotal += s.PacketsTxTick
	s.PacketsRxTotal += s.PacketsRxTick

	s.BytesTxTick = 0
	s.BytesRxTick = 0
	s.PacketsTxTick = 0
	s.PacketsRxTick = 0
}

// Merge adds every counter and derived rate of another NetStat into this
// one. Used when a process' NetStat is derived as the sum over its owned
// connections.
func (s *NetStat) Merge(o NetStat) {
	s.BytesTxTotal += o.BytesTxTotal
	s.BytesRxTotal += o.BytesRxTotal
	s.PacketsTxTotal += o.PacketsTxTotal
	s.PacketsRxTotal += o.PacketsRxTotal
	s.BytesTxTick += o.BytesTxTick
	s.BytesRxTick += o.BytesRxTick
	s.PacketsTxTick += o.PacketsTxTick
	s.PacketsRxTick += o.PacketsRxTick
	s.BpsTx += o.BpsTx
	s.BpsRx += o.BpsRx
	s.PpsTx += o.PpsTx
	s.PpsRx += o.PpsRx
}

// ConnectionSnapshot is the immutable, read-only view of one connection
// handed to the UI as part of a Snapshot.
type ConnectionSnapshot struct {
	Tuple Tuple
	Inode uint64
	State SocketState
	Stat  NetStat
}

// ProcessSnapshot is the immutable, read-only view of one process handed
// to the UI as part of a Snapshot.
type ProcessSnapshot struct {
	PID         int
	Command     string
	Stat        NetStat
	Connections []ConnectionSnapshot
}

// Snapshot is the immutable, consistent view of all processes and their
// connections produced at a tick boundary. Ordering of Processes and of
// each process' Connections is unspecified by the core; the UI sorts.
type Snapshot struct {
	Processes  []ProcessSnapshot
	Interfaces []InterfaceStat
}

// InterfaceStat is a supplementary, non-core view of per-NIC throughput
// read from /proc/net/dev, shown alongside the per-process breakdown.
type InterfaceStat struct {
	Name      string
	BytesRecv uint64
	BytesSent uint64
	RecvRate  float64
	SendRate  float64
}
