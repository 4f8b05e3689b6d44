// Package scan implements the tick coordinator (component F): one full
// scan cycle refreshes the connection table, refreshes the process table
// against it, rolls the statistics engine, and publishes the resulting
// snapshot. A shutdown signal is only honored between cycles (see Run):
// once a cycle has started it runs all three phases, so it always leaves
// the tables in a consistent state. Tick itself does not check for
// cancellation between its phases.
package scan

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/berghetti/netproc/internal/conntrack"
	"github.com/berghetti/netproc/internal/fdresolve"
	"github.com/berghetti/netproc/internal/model"
	"github.com/berghetti/netproc/internal/proctable"
	"github.com/berghetti/netproc/internal/stats"
)

// Coordinator owns one full scan cycle's worth of state.
type Coordinator struct {
	conns     *conntrack.Table
	procs     *proctable.Table
	resolver  *fdresolve.Resolver
	engine    *stats.Engine
	protocols conntrack.Protocols
}

// New wires a Coordinator from its already-constructed components. procs
// must have been Init'd by the caller; a failure there is fatal and the
// caller should never reach this constructor.
func New(conns *conntrack.Table, procs *proctable.Table, engine *stats.Engine, protocols conntrack.Protocols) *Coordinator {
	return &Coordinator{
		conns:     conns,
		procs:     procs,
		resolver:  fdresolve.New(conns),
		engine:    engine,
		protocols: protocols,
	}
}

// SetProcRoot overrides the /proc mount point used by the fd resolver;
// used by tests. The connection and process tables are pointed at their
// roots through their own SetProcRoot methods.
func (c *Coordinator) SetProcRoot(root string) { c.resolver.SetProcRoot(root) }

// Tick runs exactly one scan cycle and returns the resulting snapshot.
// Failures in the connection-table or process-table refresh phase are
// logged and downgraded to "reuse last known state" — only the
// statistics roll always runs, since it operates entirely on records
// already held by the tables regardless of whether this cycle's refresh
// succeeded.
func (c *Coordinator) Tick(intervalSeconds float64) model.Snapshot {
	if err := c.conns.Update(c.protocols); err != nil {
		log.Printf("scan: connection table refresh failed, reusing last state: %v", err)
	}
	if err := c.procs.Update(c.resolver); err != nil {
		log.Printf("scan: process table refresh failed, reusing last state: %v", err)
	}
	return c.engine.Tick(intervalSeconds)
}

// Run drives Tick on a fixed interval until ctx is canceled. The cancel
// check happens only between ticks — a tick already in flight always
// finishes — and each resulting snapshot is handed to onSnapshot from the
// same goroutine that called Run.
func Run(ctx context.Context, c *Coordinator, interval float64, tick <-chan struct{}, onSnapshot func(model.Snapshot)) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			onSnapshot(c.Tick(interval))
		}
	}
}

// IntervalTicker is a time.Ticker whose period can be changed while it is
// running, the way the UI's refresh-interval control needs: operator
// presses +/- and the very next tick reflects the new period, without
// tearing down and rebuilding the scan goroutine.
type IntervalTicker struct {
	mu       sync.Mutex
	interval time.Duration

	C      chan struct{}
	reset  chan time.Duration
	stopCh chan struct{}
}

// NewIntervalTicker constructs a ticker firing every interval until Run's
// context is canceled or Stop is called.
func NewIntervalTicker(interval time.Duration) *IntervalTicker {
	return &IntervalTicker{
		interval: interval,
		C:        make(chan struct{}, 1),
		reset:    make(chan time.Duration, 1),
		stopCh:   make(chan struct{}),
	}
}

// SetInterval changes the ticking period. Run restarts the pending timer
// with the new period right away, so the next tick comes one new period
// after the change. Implements ui.IntervalSetter.
func (it *IntervalTicker) SetInterval(d time.Duration) {
	it.mu.Lock()
	it.interval = d
	it.mu.Unlock()
	select {
	case it.reset <- d:
	default:
	}
}

// Seconds returns the current period as a float64, the unit Tick expects.
func (it *IntervalTicker) Seconds() float64 {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.interval.Seconds()
}

// Stop halts the ticker's background goroutine.
func (it *IntervalTicker) Stop() { close(it.stopCh) }

// Run drives the timer loop; call it in its own goroutine. A fired tick
// is dropped, not blocked on, if the previous one hasn't been consumed
// yet — the coordinator is still mid-cycle and a queued extra tick would
// only add backlog once it catches up.
func (it *IntervalTicker) Run(ctx context.Context) {
	timer := time.NewTimer(time.Duration(it.Seconds() * float64(time.Second)))
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-it.stopCh:
			return
		case d := <-it.reset:
			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(d)
		case <-timer.C:
			select {
			case it.C <- struct{}{}:
			default:
			}
			timer.Reset(time.Duration(it.Seconds() * float64(time.Second)))
		}
	}
}
