package ui

import tea "github.com/charmbracelet/bubbletea"

type keyAction int

const (
	keyNone keyAction = iota
	keyQuit
	keyUp
	keyDown
	keyPageUp
	keyPageDown
	keyHome
	keyEnd
	keyEnter
	keyEsc
	keyHelp
	keyPause
	keyNextIface
	keyIntervalUp
	keyIntervalDown
	keySortNext
	keySearch
	keyKillProcess
)

func matchKey(msg tea.KeyMsg) keyAction {
	switch msg.String() {
	case "q", "ctrl+c":
		return keyQuit
	case "up", "k":
		return keyUp
	case "down", "j":
		return keyDown
	case "pgup":
		return keyPageUp
	case "pgdown":
		return keyPageDown
	case "home", "g":
		return keyHome
	case "end", "G":
		return keyEnd
	case "enter":
		return keyEnter
	case "esc":
		return keyEsc
	case "?":
		return keyHelp
	case " ":
		return keyPause
	case "i":
		return keyNextIface
	case "+", "=":
		return keyIntervalUp
	case "-", "_":
		return keyIntervalDown
	case "s":
		return keySortNext
	case "/":
		return keySearch
	case "x":
		return keyKillProcess
	}
	return keyNone
}
