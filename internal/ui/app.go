package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/berghetti/netproc/internal/model"
)

// ViewMode tracks which view is active.
type ViewMode int

const (
	ViewProcessTable ViewMode = iota
	ViewProcessDetail
)

// SnapshotMsg delivers a new snapshot to the UI.
type SnapshotMsg model.Snapshot

// IntervalSetter lets the UI drive the scan coordinator's tick rate.
type IntervalSetter interface {
	SetInterval(d time.Duration)
}

// Preset refresh interval steps (sorted fastest→slowest).
var intervalPresets = []time.Duration{
	250 * time.Millisecond,
	500 * time.Millisecond,
	1 * time.Second,
	2 * time.Second,
	5 * time.Second,
	10 * time.Second,
}

// Model is the root bubbletea model for netproc.
type Model struct {
	width  int
	height int

	mode     ViewMode
	snapshot model.Snapshot

	table  processTable
	detail processDetail

	showHelp bool
	kill     killOverlay

	searching   bool
	searchInput textinput.Model

	paused bool

	ifaceNames  []string
	ifaceIdx    int
	activeIface string

	intervalIdx int
	collector   IntervalSetter

	snapCh <-chan model.Snapshot
}

// New creates a new UI model reading snapshots from ch.
func New(snapCh <-chan model.Snapshot) Model {
	ti := textinput.New()
	ti.Prompt = "/"
	ti.CharLimit = 64

	return Model{
		table:       newProcessTable(),
		searchInput: ti,
		snapCh:      snapCh,
		ifaceIdx:    -1,
		intervalIdx: 2, // default 1s
	}
}

// SetCollector wires the scan coordinator's interval control into the UI.
func (m *Model) SetCollector(c IntervalSetter) {
	m.collector = c
}

// SetDefaultInterface sets the initial active interface (auto-detected).
func (m *Model) SetDefaultInterface(name string) {
	if name != "" {
		m.activeIface = name
		m.ifaceIdx = 0
	}
}

// WaitForSnapshot returns a tea.Cmd that waits for the next snapshot, or
// quits once the producing goroutine closes the channel.
func WaitForSnapshot(ch <-chan model.Snapshot) tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-ch
		if !ok {
			return tea.Quit()
		}
		return SnapshotMsg(snap)
	}
}

func (m Model) Init() tea.Cmd {
	return WaitForSnapshot(m.snapCh)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case SnapshotMsg:
		snap := model.Snapshot(msg)
		m.updateIfaceList(snap.Interfaces)

		if !m.paused {
			m.snapshot = snap
			m.table.update(m.snapshot.Processes)

			if m.mode == ViewProcessDetail {
				found := false
				for _, p := range m.snapshot.Processes {
					if p.PID == m.detail.pid {
						found = true
						break
					}
				}
				if !found {
					m.mode = ViewProcessTable
				}
			}
		}

		return m, WaitForSnapshot(m.snapCh)

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		return m.handleMouse(msg)
	}

	return m, nil
}

func (m *Model) updateIfaceList(ifaces []model.InterfaceStat) {
	names := make([]string, len(ifaces))
	for i, iface := range ifaces {
		names[i] = iface.Name
	}
	m.ifaceNames = names

	if m.activeIface != "" {
		m.ifaceIdx = -1
		for i, name := range names {
			if name == m.activeIface {
				m.ifaceIdx = i
				break
			}
		}
		if m.ifaceIdx < 0 {
			m.activeIface = ""
		}
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.kill.active {
		if m.kill.done {
			m.kill.close()
			return m, nil
		}
		switch matchKey(msg) {
		case keyUp:
			m.kill.prev()
		case keyDown:
			m.kill.next()
		case keyEnter:
			m.kill.deliver()
		case keyEsc:
			m.kill.close()
		}
		return m, nil
	}

	if m.showHelp {
		m.showHelp = false
		return m, nil
	}

	if m.searching {
		switch msg.String() {
		case "enter", "esc":
			m.searching = false
			if msg.String() == "esc" {
				m.searchInput.SetValue("")
			}
			m.table.filter = m.searchInput.Value()
			m.table.applyFilterAndSort()
			m.searchInput.Blur()
			return m, nil
		default:
			var cmd tea.Cmd
			m.searchInput, cmd = m.searchInput.Update(msg)
			m.table.filter = m.searchInput.Value()
			m.table.applyFilterAndSort()
			return m, cmd
		}
	}

	action := matchKey(msg)

	switch action {
	case keyHelp:
		m.showHelp = !m.showHelp
		return m, nil
	case keyPause:
		m.paused = !m.paused
		return m, nil
	case keyNextIface:
		m.cycleInterface()
		return m, nil
	case keyIntervalUp:
		m.changeInterval(-1)
		return m, nil
	case keyIntervalDown:
		m.changeInterval(1)
		return m, nil
	}

	switch m.mode {
	case ViewProcessTable:
		switch action {
		case keyQuit:
			return m, tea.Quit
		case keyUp:
			m.table.moveUp()
		case keyDown:
			m.table.moveDown()
		case keyPageUp:
			m.table.pageUp()
		case keyPageDown:
			m.table.pageDown()
		case keyHome:
			m.table.goHome()
		case keyEnd:
			m.table.goEnd()
		case keyEnter:
			if sel := m.table.selected(); sel != nil {
				m.mode = ViewProcessDetail
				m.detail = newProcessDetail(sel.PID)
			}
		case keySortNext:
			m.table.nextSort()
		case keySearch:
			m.searching = true
			m.searchInput.Focus()
			return m, m.searchInput.Cursor.BlinkCmd()
		case keyKillProcess:
			if sel := m.table.selected(); sel != nil {
				m.kill.open(*sel)
			}
		}

	case ViewProcessDetail:
		proc := m.findProcess(m.detail.pid)
		switch action {
		case keyQuit:
			return m, tea.Quit
		case keyEsc:
			m.mode = ViewProcessTable
		case keyUp:
			m.detail.moveUp()
		case keyDown:
			if proc != nil {
				m.detail.moveDown(len(proc.Connections) - 1)
			}
		case keyPageUp:
			m.detail.pageUp()
		case keyPageDown:
			if proc != nil {
				m.detail.pageDown(len(proc.Connections) - 1)
			}
		case keyKillProcess:
			if proc != nil {
				m.kill.open(*proc)
			}
		}
	}

	return m, nil
}

func (m Model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if m.kill.active || m.showHelp {
		return m, nil
	}

	if msg.Action != tea.MouseActionPress {
		return m, nil
	}

	switch msg.Button {
	case tea.MouseButtonWheelUp:
		switch m.mode {
		case ViewProcessTable:
			m.table.moveUp()
		case ViewProcessDetail:
			m.detail.moveUp()
		}
	case tea.MouseButtonWheelDown:
		switch m.mode {
		case ViewProcessTable:
			m.table.moveDown()
		case ViewProcessDetail:
			if proc := m.findProcess(m.detail.pid); proc != nil {
				m.detail.moveDown(len(proc.Connections) - 1)
			}
		}
	}

	return m, nil
}

func (m *Model) changeInterval(delta int) {
	newIdx := m.intervalIdx + delta
	if newIdx < 0 {
		newIdx = 0
	}
	if newIdx >= len(intervalPresets) {
		newIdx = len(intervalPresets) - 1
	}
	if newIdx == m.intervalIdx {
		return
	}
	m.intervalIdx = newIdx
	if m.collector != nil {
		m.collector.SetInterval(intervalPresets[m.intervalIdx])
	}
}

func (m *Model) cycleInterface() {
	if len(m.ifaceNames) == 0 {
		return
	}
	m.ifaceIdx++
	if m.ifaceIdx >= len(m.ifaceNames) {
		m.ifaceIdx = -1
	}
	if m.ifaceIdx < 0 {
		m.activeIface = ""
	} else {
		m.activeIface = m.ifaceNames[m.ifaceIdx]
	}
}

func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	snap := m.snapshot
	header := renderHeader(snap, m.width, m.paused, m.activeIface)
	headerHeight := strings.Count(header, "\n") + 1

	footer := m.renderFooter()
	footerHeight := 1

	contentHeight := m.height - headerHeight - footerHeight
	if contentHeight < 1 {
		contentHeight = 1
	}

	var content string
	switch m.mode {
	case ViewProcessTable:
		content = m.table.render(m.width, contentHeight)
	case ViewProcessDetail:
		proc := m.findProcess(m.detail.pid)
		content = m.detail.render(proc, m.width, contentHeight)
	}

	contentLines := strings.Count(content, "\n") + 1
	if contentLines < contentHeight {
		content += strings.Repeat("\n", contentHeight-contentLines)
	}

	if m.searching {
		footer = styleSearchPrompt.Render("Filter: ") + m.searchInput.View()
	}

	result := lipgloss.JoinVertical(lipgloss.Left, header, content, footer)

	if m.kill.active {
		result = m.kill.render(m.width, m.height)
	} else if m.showHelp {
		result = renderHelp(m.width, m.height)
	}

	return result
}

func (m Model) renderFooter() string {
	parts := []string{
		styleFooterKey.Render("?") + styleFooter.Render(" help"),
		styleFooterKey.Render("/") + styleFooter.Render(" filter"),
		styleFooterKey.Render("s") + styleFooter.Render(" sort:" + m.table.sort.String()),
		styleFooterKey.Render("q") + styleFooter.Render(" quit"),
	}

	if m.table.filter != "" && !m.searching {
		parts = append(parts, styleSearchPrompt.Render("filter:")+styleFooter.Render(m.table.filter))
	}
	if m.paused {
		parts = append(parts, stylePaused.Render("PAUSED"))
	}

	interval := intervalPresets[m.intervalIdx]
	parts = append(parts, styleFooterKey.Render("+/-")+styleFooter.Render(" ")+styleHeaderValue.Render(formatInterval(interval)))

	return "  " + strings.Join(parts, "  ")
}

func formatInterval(d time.Duration) string {
	ms := d.Milliseconds()
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	s := float64(ms) / 1000.0
	if s == float64(int(s)) {
		return fmt.Sprintf("%ds", int(s))
	}
	return fmt.Sprintf("%.1fs", s)
}

func (m Model) findProcess(pid int) *model.ProcessSnapshot {
	for i := range m.snapshot.Processes {
		if m.snapshot.Processes[i].PID == pid {
			return &m.snapshot.Processes[i]
		}
	}
	return nil
}
