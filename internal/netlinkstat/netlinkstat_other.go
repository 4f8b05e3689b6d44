//go:build !linux

package netlinkstat

import (
	"errors"

	"github.com/berghetti/netproc/internal/model"
)

// RecordPacket is the narrow interface netlinkstat depends on — satisfied
// by *stats.Engine.
type RecordPacket interface {
	RecordPacket(tuple model.Tuple, dir model.Direction, bytes, packets uint64)
}

// Collector is a no-op placeholder outside Linux: NETLINK_SOCK_DIAG is a
// Linux-specific mechanism.
type Collector struct{}

// Open always fails on non-Linux platforms.
func Open() (*Collector, error) {
	return nil, errors.New("netlinkstat: NETLINK_SOCK_DIAG is only available on linux")
}

// Poll is a no-op.
func (c *Collector) Poll(sink RecordPacket) error { return nil }

// Close is a no-op.
func (c *Collector) Close() error { return nil }
