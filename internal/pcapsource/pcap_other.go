//go:build !linux

package pcapsource

import (
	"errors"

	"github.com/berghetti/netproc/internal/conntrack"
	"github.com/berghetti/netproc/internal/model"
)

// RecordPacket is the narrow interface pcapsource depends on — satisfied
// by *stats.Engine.
type RecordPacket interface {
	RecordPacket(tuple model.Tuple, dir model.Direction, bytes, packets uint64)
}

// TupleLookup is the narrow interface pcapsource needs from the connection
// table.
type TupleLookup interface {
	GetByTuple(model.Tuple) (*conntrack.Connection, bool)
}

// Source is a no-op placeholder outside Linux: AF_PACKET raw capture is a
// Linux-specific mechanism, and per-process attribution still works from
// connection and process enumeration alone — just without live packet
// byte counts.
type Source struct{}

// Open always fails on non-Linux platforms.
func Open(conns TupleLookup, sink RecordPacket) (*Source, error) {
	return nil, errors.New("pcapsource: AF_PACKET capture is only available on linux")
}

// Close is a no-op.
func (s *Source) Close() {}
