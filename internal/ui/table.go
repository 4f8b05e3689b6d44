package ui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/berghetti/netproc/internal/collector"
	"github.com/berghetti/netproc/internal/model"
)

type sortMode int

const (
	sortByBps sortMode = iota
	sortByTotal
	sortByPID
	sortByCommand
	sortModeCount
)

func (s sortMode) String() string {
	switch s {
	case sortByBps:
		return "rate"
	case sortByTotal:
		return "total"
	case sortByPID:
		return "pid"
	case sortByCommand:
		return "cmd"
	default:
		return "?"
	}
}

// processTable is the primary view: one row per attributed process,
// sorted and optionally filtered by command substring.
type processTable struct {
	all      []model.ProcessSnapshot
	filtered []model.ProcessSnapshot
	filter   string
	sort     sortMode
	cursor   int
	offset   int

	// smoothers and trend hold the per-process smoothed combined rate
	// and its recent history, purely for the sparkline column — the
	// underlying bps/pps figures displayed elsewhere are always the raw,
	// unsmoothed per-tick values from the statistics engine.
	smoothers map[int]*collector.Smoother
	trend     map[int]*collector.History
}

const trendLen = 16

func newProcessTable() processTable {
	return processTable{
		smoothers: make(map[int]*collector.Smoother),
		trend:     make(map[int]*collector.History),
	}
}

func (t *processTable) update(procs []model.ProcessSnapshot) {
	t.all = procs
	for _, p := range procs {
		sm, ok := t.smoothers[p.PID]
		if !ok {
			sm = collector.NewSmoother(0.3)
			t.smoothers[p.PID] = sm
			t.trend[p.PID] = collector.NewHistory(trendLen)
		}
		smoothed := sm.Update(p.Stat.BpsTx + p.Stat.BpsRx)
		t.trend[p.PID].Push(smoothed)
	}
	t.applyFilterAndSort()
}

func (t *processTable) applyFilterAndSort() {
	t.filtered = t.filtered[:0]
	for _, p := range t.all {
		if t.filter == "" || strings.Contains(strings.ToLower(p.Command), strings.ToLower(t.filter)) {
			t.filtered = append(t.filtered, p)
		}
	}

	switch t.sort {
	case sortByBps:
		sort.Slice(t.filtered, func(i, j int) bool {
			ri := t.filtered[i].Stat.BpsTx + t.filtered[i].Stat.BpsRx
			rj := t.filtered[j].Stat.BpsTx + t.filtered[j].Stat.BpsRx
			return ri > rj
		})
	case sortByTotal:
		sort.Slice(t.filtered, func(i, j int) bool {
			ti := t.filtered[i].Stat.BytesTxTotal + t.filtered[i].Stat.BytesRxTotal
			tj := t.filtered[j].Stat.BytesTxTotal + t.filtered[j].Stat.BytesRxTotal
			return ti > tj
		})
	case sortByPID:
		sort.Slice(t.filtered, func(i, j int) bool { return t.filtered[i].PID < t.filtered[j].PID })
	case sortByCommand:
		sort.Slice(t.filtered, func(i, j int) bool { return t.filtered[i].Command < t.filtered[j].Command })
	}

	if t.cursor >= len(t.filtered) {
		t.cursor = len(t.filtered) - 1
	}
	if t.cursor < 0 {
		t.cursor = 0
	}
}

func (t *processTable) nextSort() {
	t.sort = (t.sort + 1) % sortModeCount
	t.applyFilterAndSort()
}

func (t *processTable) selected() *model.ProcessSnapshot {
	if t.cursor < 0 || t.cursor >= len(t.filtered) {
		return nil
	}
	return &t.filtered[t.cursor]
}

func (t *processTable) moveUp() {
	if t.cursor > 0 {
		t.cursor--
	}
	t.syncOffset(20)
}

func (t *processTable) moveDown() {
	if t.cursor < len(t.filtered)-1 {
		t.cursor++
	}
	t.syncOffset(20)
}

func (t *processTable) pageUp() {
	t.cursor -= 10
	if t.cursor < 0 {
		t.cursor = 0
	}
	t.syncOffset(20)
}

func (t *processTable) pageDown() {
	t.cursor += 10
	if t.cursor >= len(t.filtered) {
		t.cursor = len(t.filtered) - 1
	}
	if t.cursor < 0 {
		t.cursor = 0
	}
	t.syncOffset(20)
}

func (t *processTable) goHome() {
	t.cursor = 0
	t.offset = 0
}

func (t *processTable) goEnd() {
	t.cursor = len(t.filtered) - 1
	if t.cursor < 0 {
		t.cursor = 0
	}
	t.syncOffset(20)
}

func (t *processTable) syncOffset(visible int) {
	if t.cursor < t.offset {
		t.offset = t.cursor
	}
	if t.cursor >= t.offset+visible {
		t.offset = t.cursor - visible + 1
	}
}

func (t *processTable) render(width, height int) string {
	header := styleTableHeader.Render(fmt.Sprintf("%-8s %-30s %10s %10s %12s %12s  %s", "PID", "COMMAND", "BPS TX", "BPS RX", "TOTAL TX", "TOTAL RX", "TREND"))

	var rows []string
	rows = append(rows, header)

	visible := height - 1
	if visible < 1 {
		visible = 1
	}

	end := t.offset + visible
	if end > len(t.filtered) {
		end = len(t.filtered)
	}
	for i := t.offset; i < end; i++ {
		p := t.filtered[i]
		var trend string
		if rb, ok := t.trend[p.PID]; ok {
			trend = sparkline(rb.Samples())
		}
		line := fmt.Sprintf("%-8d %-30s %10s %10s %12s %12s  %s",
			p.PID, truncate(p.Command, 30),
			formatRate(p.Stat.BpsTx), formatRate(p.Stat.BpsRx),
			formatBytes(p.Stat.BytesTxTotal), formatBytes(p.Stat.BytesRxTotal), trend)
		if i == t.cursor {
			rows = append(rows, styleTableRowSel.Render(line))
		} else {
			rows = append(rows, styleTableRow.Render(line))
		}
	}

	return strings.Join(rows, "\n")
}

var sparkBlocks = []rune(" ▁▂▃▄▅▆▇█")

// sparkline renders a recent-history ring buffer as a compact block
// graph scaled to its own maximum.
func sparkline(samples []float64) string {
	if len(samples) == 0 {
		return ""
	}
	max := samples[0]
	for _, v := range samples {
		if v > max {
			max = v
		}
	}
	if max <= 0 {
		max = 1
	}

	runes := make([]rune, len(samples))
	for i, v := range samples {
		idx := int(v / max * float64(len(sparkBlocks)-1))
		if idx < 0 {
			idx = 0
		}
		if idx >= len(sparkBlocks) {
			idx = len(sparkBlocks) - 1
		}
		runes[i] = sparkBlocks[idx]
	}
	return string(runes)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n < 1 {
		return ""
	}
	return s[:n-1] + "…"
}

func formatRate(bps float64) string {
	return formatBytes(uint64(bps)) + "/s"
}

func formatBytes(b uint64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := uint64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}
