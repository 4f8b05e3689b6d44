package ui

import (
	"fmt"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"

	"github.com/berghetti/netproc/internal/model"
)

// killOverlay is the confirm-and-signal dialog for the selected process.
// It shows what the process is doing on the network right now — its owned
// connections and live rates from the snapshot — so the operator sees
// exactly which traffic goes away before picking a signal.
type killOverlay struct {
	active  bool
	proc    model.ProcessSnapshot
	choice  int
	outcome string
	failed  bool
	done    bool
}

// Signals offered, in rough escalation order. SIGCONT comes last so a
// mistaken SIGSTOP can be undone from the same dialog.
var killSignals = []struct {
	sig  syscall.Signal
	name string
}{
	{syscall.SIGTERM, "TERM"},
	{syscall.SIGINT, "INT"},
	{syscall.SIGHUP, "HUP"},
	{syscall.SIGKILL, "KILL"},
	{syscall.SIGSTOP, "STOP"},
	{syscall.SIGCONT, "CONT"},
}

// maxKillConns bounds how many connections the dialog lists before
// collapsing the rest into a count.
const maxKillConns = 4

func (k *killOverlay) open(p model.ProcessSnapshot) {
	*k = killOverlay{active: true, proc: p}
}

func (k *killOverlay) close() {
	k.active = false
	k.done = false
}

func (k *killOverlay) prev() {
	if k.choice > 0 {
		k.choice--
	}
}

func (k *killOverlay) next() {
	if k.choice < len(killSignals)-1 {
		k.choice++
	}
}

func (k *killOverlay) deliver() {
	c := killSignals[k.choice]
	if err := syscall.Kill(k.proc.PID, c.sig); err != nil {
		k.failed = true
		k.outcome = fmt.Sprintf("SIG%s to pid %d failed: %v", c.name, k.proc.PID, err)
	} else {
		k.failed = false
		k.outcome = fmt.Sprintf("SIG%s sent to pid %d", c.name, k.proc.PID)
	}
	k.done = true
}

var (
	styleKillFrame = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(colorRed).
			Padding(1, 2)

	styleKillTitle   = lipgloss.NewStyle().Foreground(colorRed).Bold(true)
	styleKillChip    = lipgloss.NewStyle().Foreground(colorFg).Padding(0, 1)
	styleKillChipSel = lipgloss.NewStyle().Background(colorSelection).Foreground(colorYellow).Bold(true).Padding(0, 1)
	styleKillOK      = lipgloss.NewStyle().Foreground(colorGreen).Bold(true)
	styleKillErr     = lipgloss.NewStyle().Foreground(colorRed).Bold(true)
)

func (k *killOverlay) render(width, height int) string {
	var lines []string

	if k.done {
		style := styleKillOK
		if k.failed {
			style = styleKillErr
		}
		lines = append(lines,
			style.Render(k.outcome),
			"",
			styleDetailLabel.Render("press any key to close"),
		)
	} else {
		p := k.proc
		lines = append(lines,
			styleKillTitle.Render(fmt.Sprintf("Signal pid %d", p.PID)),
			styleHeaderValue.Render(truncate(p.Command, 48)),
			"",
			styleHeaderLabel.Render(fmt.Sprintf("%d connections   tx %s   rx %s   total %s",
				len(p.Connections),
				formatRate(p.Stat.BpsTx), formatRate(p.Stat.BpsRx),
				formatBytes(p.Stat.BytesTxTotal+p.Stat.BytesRxTotal))),
		)

		for i, c := range p.Connections {
			if i == maxKillConns {
				lines = append(lines, styleDetailLabel.Render(
					fmt.Sprintf("  … %d more", len(p.Connections)-maxKillConns)))
				break
			}
			lines = append(lines, styleDetailLabel.Render(
				fmt.Sprintf("  %s  %s", c.Tuple, formatRate(c.Stat.BpsTx+c.Stat.BpsRx))))
		}

		chips := make([]string, len(killSignals))
		for i, s := range killSignals {
			if i == k.choice {
				chips[i] = styleKillChipSel.Render(s.name)
			} else {
				chips[i] = styleKillChip.Render(s.name)
			}
		}
		lines = append(lines,
			"",
			lipgloss.JoinHorizontal(lipgloss.Top, chips...),
			"",
			styleDetailLabel.Render("j/k choose   enter send   esc cancel"),
		)
	}

	box := styleKillFrame.Render(strings.Join(lines, "\n"))
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, box)
}
