package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/berghetti/netproc/internal/model"
)

// renderHeader summarizes the current snapshot: total attributed
// processes/connections and, if an interface filter is active, its name
// and throughput.
func renderHeader(snap model.Snapshot, width int, paused bool, activeIface string) string {
	var conns int
	for _, p := range snap.Processes {
		conns += len(p.Connections)
	}

	title := styleHeaderTitle.Render("netproc")
	stats := fmt.Sprintf("%s %s  %s %s",
		styleHeaderLabel.Render("processes:"), styleHeaderValue.Render(fmt.Sprint(len(snap.Processes))),
		styleHeaderLabel.Render("connections:"), styleHeaderValue.Render(fmt.Sprint(conns)))

	line1 := title + "   " + stats
	if paused {
		line1 += "  " + stylePaused.Render("PAUSED")
	}

	var line2 string
	if activeIface != "" {
		for _, iface := range snap.Interfaces {
			if iface.Name == activeIface {
				line2 = fmt.Sprintf("%s %s  %s %s/s  %s %s/s",
					styleHeaderLabel.Render("iface:"), styleHeaderValue.Render(iface.Name),
					styleHeaderLabel.Render("rx:"), styleHeaderValue.Render(formatBytes(uint64(iface.RecvRate))),
					styleHeaderLabel.Render("tx:"), styleHeaderValue.Render(formatBytes(uint64(iface.SendRate))))
				break
			}
		}
	} else {
		line2 = styleHeaderLabel.Render(fmt.Sprintf("interfaces tracked: %d", len(snap.Interfaces)))
	}

	return line1 + "\n" + line2
}

func renderHelp(width, height int) string {
	lines := []string{
		styleHeaderTitle.Render("netproc — keys"),
		"",
		styleFooterKey.Render("↑/k ↓/j") + "  move selection",
		styleFooterKey.Render("enter") + "    process detail",
		styleFooterKey.Render("esc") + "      back",
		styleFooterKey.Render("/") + "        filter by command",
		styleFooterKey.Render("s") + "        cycle sort",
		styleFooterKey.Render("i") + "        cycle interface",
		styleFooterKey.Render("+/-") + "      adjust refresh interval",
		styleFooterKey.Render("space") + "    pause/resume",
		styleFooterKey.Render("x") + "        send signal to process",
		styleFooterKey.Render("q") + "        quit",
		"",
		styleDetailLabel.Render("press any key to close"),
	}
	box := strings.Join(lines, "\n")
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, box)
}
