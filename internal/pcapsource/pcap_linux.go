//go:build linux

// Package pcapsource is the packet capture collaborator: an AF_PACKET raw
// socket that observes every frame crossing the host and feeds byte/packet
// counts into the statistics engine. It is the external, replaceable
// "packet source" the accounting pipeline depends on — nothing else in
// this module opens a socket of its own.
package pcapsource

import (
	"encoding/binary"
	"log"
	"sync"
	"syscall"
	"unsafe"

	"github.com/berghetti/netproc/internal/conntrack"
	"github.com/berghetti/netproc/internal/model"
)

// RecordPacket is the narrow interface pcapsource depends on — satisfied
// by *stats.Engine.
type RecordPacket interface {
	RecordPacket(tuple model.Tuple, dir model.Direction, bytes, packets uint64)
}

// TupleLookup is the narrow interface pcapsource needs from the connection
// table: enough to recognize which side of a captured packet is "local"
// for a connection it already knows about.
type TupleLookup interface {
	GetByTuple(model.Tuple) (*conntrack.Connection, bool)
}

// Source captures every packet on the host via AF_PACKET and attributes
// it to a known connection's tuple, in whichever direction the capture
// matched.
type Source struct {
	fd     int
	conns  TupleLookup
	sink   RecordPacket
	stopCh chan struct{}
	done   chan struct{}
	once   sync.Once
}

// Open creates an AF_PACKET socket capturing every protocol on every
// interface. It returns an error if the socket cannot be opened — most
// commonly a missing CAP_NET_RAW — which the caller should treat as
// "run without live packet attribution" rather than fatal, since
// connection and process enumeration still work without it.
func Open(conns TupleLookup, sink RecordPacket) (*Source, error) {
	fd, err := syscall.Socket(syscall.AF_PACKET, syscall.SOCK_DGRAM, int(htons(syscall.ETH_P_ALL)))
	if err != nil {
		return nil, err
	}

	syscall.SetsockoptInt(fd, syscall.SOL_SOCKET, syscall.SO_RCVBUF, 4*1024*1024)
	tv := syscall.Timeval{Sec: 0, Usec: 200_000}
	syscall.SetsockoptTimeval(fd, syscall.SOL_SOCKET, syscall.SO_RCVTIMEO, &tv)

	s := &Source{
		fd:     fd,
		conns:  conns,
		sink:   sink,
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}

	go s.captureLoop()
	log.Printf("pcapsource: capturing via AF_PACKET")
	return s, nil
}

// Close stops the capture loop and releases the socket.
func (s *Source) Close() {
	s.once.Do(func() {
		close(s.stopCh)
		<-s.done
		syscall.Close(s.fd)
	})
}

func (s *Source) captureLoop() {
	defer close(s.done)
	buf := make([]byte, 65536)

	for {
		select {
		case <-s.stopCh:
			return
		default:
		}

		n, _, err := syscall.Recvfrom(s.fd, buf, 0)
		if err != nil {
			continue // timeout (EAGAIN) or interrupted; re-check stopCh
		}
		if n < 1 {
			continue
		}
		s.processPacket(buf[:n])
	}
}

// processPacket parses an IPv4 or IPv6 frame down to its transport header
// and folds it into the engine if — and only if — it matches a tuple the
// connection table already knows about in either direction. Packets for
// connections not yet surfaced are dropped here rather than buffered:
// unlike record_packet's own side buffer, a raw capture has no way to
// tell which address is "local" until a conntrack lookup confirms it, so
// there is no canonical tuple to buffer under.
func (s *Source) processPacket(pkt []byte) {
	if len(pkt) < 1 {
		return
	}

	var proto uint8
	var srcAddr, dstAddr model.Addr
	var payloadOffset, totalLen int

	switch pkt[0] >> 4 {
	case 4:
		if len(pkt) < 20 {
			return
		}
		ihl := int(pkt[0]&0x0f) * 4
		if len(pkt) < ihl {
			return
		}
		totalLen = int(binary.BigEndian.Uint16(pkt[2:4]))
		if totalLen > len(pkt) {
			totalLen = len(pkt)
		}
		proto = pkt[9]
		srcAddr = model.AddrFromIPv4([4]byte{pkt[12], pkt[13], pkt[14], pkt[15]})
		dstAddr = model.AddrFromIPv4([4]byte{pkt[16], pkt[17], pkt[18], pkt[19]})
		payloadOffset = ihl

	case 6:
		if len(pkt) < 40 {
			return
		}
		payloadLen := int(binary.BigEndian.Uint16(pkt[4:6]))
		totalLen = 40 + payloadLen
		if totalLen > len(pkt) {
			totalLen = len(pkt)
		}
		var src16, dst16 [16]byte
		copy(src16[:], pkt[8:24])
		copy(dst16[:], pkt[24:40])
		srcAddr = model.AddrFromIPv6(src16)
		dstAddr = model.AddrFromIPv6(dst16)
		proto, payloadOffset = walkIPv6ExtHeaders(pkt, pkt[6], 40)

	default:
		return
	}

	if proto != 6 && proto != 17 {
		return
	}
	if len(pkt) < payloadOffset+4 {
		return
	}

	srcPort := binary.BigEndian.Uint16(pkt[payloadOffset : payloadOffset+2])
	dstPort := binary.BigEndian.Uint16(pkt[payloadOffset+2 : payloadOffset+4])

	p := model.ProtoTCP
	if proto == 17 {
		p = model.ProtoUDP
	}

	txTuple := model.Tuple{LocalIP: srcAddr, LocalPort: srcPort, RemoteIP: dstAddr, RemotePort: dstPort, Proto: p}
	if _, ok := s.conns.GetByTuple(txTuple); ok {
		s.sink.RecordPacket(txTuple, model.DirTx, uint64(totalLen), 1)
		return
	}

	rxTuple := model.Tuple{LocalIP: dstAddr, LocalPort: dstPort, RemoteIP: srcAddr, RemotePort: srcPort, Proto: p}
	if _, ok := s.conns.GetByTuple(rxTuple); ok {
		s.sink.RecordPacket(rxTuple, model.DirRx, uint64(totalLen), 1)
	}
}

// walkIPv6ExtHeaders follows the IPv6 extension header chain to find the
// transport protocol and its offset.
func walkIPv6ExtHeaders(pkt []byte, nextHdr uint8, offset int) (proto uint8, transportOffset int) {
	for i := 0; i < 8; i++ {
		switch nextHdr {
		case 6, 17:
			return nextHdr, offset
		case 0, 43, 60:
			if len(pkt) < offset+2 {
				return nextHdr, offset
			}
			nextHdr = pkt[offset]
			offset += int(pkt[offset+1]+1) * 8
		case 44:
			if len(pkt) < offset+8 {
				return nextHdr, offset
			}
			nextHdr = pkt[offset]
			offset += 8
		default:
			return nextHdr, offset
		}
	}
	return nextHdr, offset
}

func htons(v uint16) uint16 {
	b := (*[2]byte)(unsafe.Pointer(&v))
	return binary.BigEndian.Uint16(b[:])
}
