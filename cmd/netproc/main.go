// Command netproc shows real-time per-process network traffic on the
// local host: which processes own which connections, and how many bytes
// and packets each is moving, refreshed on a configurable interval.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/berghetti/netproc/internal/conntrack"
	"github.com/berghetti/netproc/internal/ifacestat"
	"github.com/berghetti/netproc/internal/model"
	"github.com/berghetti/netproc/internal/netlinkstat"
	"github.com/berghetti/netproc/internal/pcapsource"
	"github.com/berghetti/netproc/internal/platform"
	"github.com/berghetti/netproc/internal/proctable"
	"github.com/berghetti/netproc/internal/scan"
	"github.com/berghetti/netproc/internal/stats"
	"github.com/berghetti/netproc/internal/ui"
)

const defaultInterval = 1 * time.Second

func main() {
	// Redirect log output to a file so it doesn't interfere with the TUI.
	logFile, err := os.CreateTemp("", "netproc-*.log")
	if err == nil {
		log.SetOutput(logFile)
		defer logFile.Close()
	}

	conns := conntrack.New()
	procs := proctable.New()

	if err := procs.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "netproc: %v\n", err)
		os.Exit(1)
	}

	ifaces := ifacestat.New()
	engine := stats.New(conns, procs, ifaces.Collect)
	coord := scan.New(conns, procs, engine, conntrack.TCP|conntrack.UDP)

	// Packet-level accounting is layered on top of the core attribution
	// pipeline through two independent, optional sources. Neither failing
	// to open is fatal: the tables and per-connection lifecycle still work
	// without packet counters, just with zero traffic figures.
	if src, err := pcapsource.Open(conns, engine); err != nil {
		log.Printf("netproc: raw packet capture unavailable: %v", err)
	} else {
		defer src.Close()
	}

	var nlCollector *netlinkstat.Collector
	if nl, err := netlinkstat.Open(); err != nil {
		log.Printf("netproc: netlink socket accounting unavailable: %v", err)
	} else {
		nlCollector = nl
		defer nl.Close()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ticker := scan.NewIntervalTicker(defaultInterval)
	go ticker.Run(ctx)

	snapCh := make(chan model.Snapshot, 1)
	go runScanLoop(ctx, coord, ticker, nlCollector, engine, snapCh)

	appModel := ui.New(snapCh)
	appModel.SetDefaultInterface(platform.DetectDefaultInterface())
	appModel.SetCollector(ticker)

	prog := tea.NewProgram(appModel, tea.WithAltScreen(), tea.WithMouseCellMotion())

	if _, err := prog.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "netproc: %v\n", err)
		cancel()
		os.Exit(1)
	}
	cancel()
}

// runScanLoop drives the coordinator on ticker's cadence, re-reading the
// current interval on every fire so a mid-run interval change (the UI's
// +/- keys) takes effect on the very next tick rather than requiring a
// restart. When a netlink collector is available it is polled first, in
// the same tick, so its byte deltas are folded into the engine before the
// tick rolls the statistics.
func runScanLoop(ctx context.Context, coord *scan.Coordinator, ticker *scan.IntervalTicker, nl *netlinkstat.Collector, sink netlinkstat.RecordPacket, snapCh chan model.Snapshot) {
	defer close(snapCh)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if nl != nil {
				if err := nl.Poll(sink); err != nil {
					log.Printf("netproc: netlink poll failed: %v", err)
				}
			}
			snap := coord.Tick(ticker.Seconds())
			select {
			case snapCh <- snap:
			default:
				// UI hasn't drained the previous snapshot yet; drop it in
				// favor of the freshest one rather than block the scan loop.
				select {
				case <-snapCh:
				default:
				}
				snapCh <- snap
			}
		}
	}
}
