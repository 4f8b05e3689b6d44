// Package ifacestat parses /proc/net/dev to produce per-NIC throughput
// figures, the supplementary interface view shown alongside the
// per-process breakdown. It is intentionally independent of conntrack and
// proctable: interface counters come straight from the kernel and need no
// process or connection correlation.
package ifacestat

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/berghetti/netproc/internal/model"
)

// Collector tracks cumulative /proc/net/dev counters across calls so it
// can derive a rate for each interface, the same way conntrack derives
// connection rates across ticks.
type Collector struct {
	procRoot string
	prev     map[string]sample
}

type sample struct {
	bytesRecv uint64
	bytesSent uint64
	at        time.Time
}

// New constructs a Collector reading from the real /proc mount.
func New() *Collector {
	return &Collector{procRoot: "/proc", prev: make(map[string]sample)}
}

// SetProcRoot overrides the /proc mount point; used by tests.
func (c *Collector) SetProcRoot(root string) { c.procRoot = root }

// Collect reads /proc/net/dev and returns one InterfaceStat per interface,
// with RecvRate/SendRate computed against the previous call's sample. The
// first observation of an interface reports a zero rate, since there is no
// prior sample to difference against.
func (c *Collector) Collect() ([]model.InterfaceStat, error) {
	f, err := os.Open(c.procRoot + "/net/dev")
	if err != nil {
		return nil, fmt.Errorf("ifacestat: open: %w", err)
	}
	defer f.Close()

	now := time.Now()

	scanner := bufio.NewScanner(f)
	// First two lines are headers:
	//   Inter-|   Receive                                                |  Transmit
	//    face |bytes    packets errs drop fifo frame compressed multicast|bytes    ...
	if !scanner.Scan() {
		return nil, scanner.Err()
	}
	if !scanner.Scan() {
		return nil, scanner.Err()
	}

	var out []model.InterfaceStat
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			continue
		}
		name := strings.TrimSpace(parts[0])
		fields := strings.Fields(parts[1])
		if len(fields) < 9 {
			continue
		}

		bytesRecv, err := strconv.ParseUint(fields[0], 10, 64)
		if err != nil {
			continue
		}
		bytesSent, err := strconv.ParseUint(fields[8], 10, 64)
		if err != nil {
			continue
		}

		stat := model.InterfaceStat{
			Name:      name,
			BytesRecv: bytesRecv,
			BytesSent: bytesSent,
		}

		if prev, ok := c.prev[name]; ok {
			elapsed := now.Sub(prev.at).Seconds()
			if elapsed > 0 {
				stat.RecvRate = deltaRate(prev.bytesRecv, bytesRecv, elapsed)
				stat.SendRate = deltaRate(prev.bytesSent, bytesSent, elapsed)
			}
		}
		c.prev[name] = sample{bytesRecv: bytesRecv, bytesSent: bytesSent, at: now}

		out = append(out, stat)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return out, nil
}

// deltaRate computes a bytes/second rate, treating a counter that went
// backwards (interface reset, 32-bit wrap) as a missing sample rather than
// reporting a nonsensical negative rate.
func deltaRate(prev, cur uint64, elapsedSeconds float64) float64 {
	if cur < prev {
		return 0
	}
	return float64(cur-prev) / elapsedSeconds
}
