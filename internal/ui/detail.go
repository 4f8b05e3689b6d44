package ui

import (
	"fmt"
	"strings"

	"github.com/berghetti/netproc/internal/model"
)

// processDetail shows the per-connection breakdown for one selected
// process.
type processDetail struct {
	pid    int
	cursor int
	offset int
}

func newProcessDetail(pid int) processDetail {
	return processDetail{pid: pid}
}

func (d *processDetail) moveUp() {
	if d.cursor > 0 {
		d.cursor--
	}
	d.syncOffset()
}

func (d *processDetail) moveDown(maxIdx int) {
	if d.cursor < maxIdx {
		d.cursor++
	}
	d.syncOffset()
}

func (d *processDetail) pageUp() {
	d.cursor -= 10
	if d.cursor < 0 {
		d.cursor = 0
	}
	d.syncOffset()
}

func (d *processDetail) pageDown(maxIdx int) {
	d.cursor += 10
	if d.cursor > maxIdx {
		d.cursor = maxIdx
	}
	if d.cursor < 0 {
		d.cursor = 0
	}
	d.syncOffset()
}

func (d *processDetail) syncOffset() {
	if d.cursor < d.offset {
		d.offset = d.cursor
	}
	if d.cursor >= d.offset+20 {
		d.offset = d.cursor - 19
	}
}

func (d *processDetail) render(proc *model.ProcessSnapshot, width, height int) string {
	if proc == nil {
		return styleDetailLabel.Render("process exited")
	}

	title := styleHeaderTitle.Render(fmt.Sprintf("PID %d — %s", proc.PID, proc.Command))
	header := styleTableHeader.Render(fmt.Sprintf("%-6s %-22s %-22s %-10s %10s %10s", "PROTO", "LOCAL", "REMOTE", "STATE", "BPS TX", "BPS RX"))

	var rows []string
	rows = append(rows, title, header)

	visible := height - 2
	if visible < 1 {
		visible = 1
	}
	end := d.offset + visible
	if end > len(proc.Connections) {
		end = len(proc.Connections)
	}
	for i := d.offset; i < end; i++ {
		c := proc.Connections[i]
		local := fmt.Sprintf("%s:%d", c.Tuple.LocalIP, c.Tuple.LocalPort)
		remote := fmt.Sprintf("%s:%d", c.Tuple.RemoteIP, c.Tuple.RemotePort)
		line := fmt.Sprintf("%-6s %-22s %-22s %-10s %10s %10s",
			c.Tuple.Proto, truncate(local, 22), truncate(remote, 22), c.State,
			formatRate(c.Stat.BpsTx), formatRate(c.Stat.BpsRx))
		if i == d.cursor {
			rows = append(rows, styleTableRowSel.Render(line))
		} else {
			rows = append(rows, styleTableRow.Render(line))
		}
	}

	return strings.Join(rows, "\n")
}
