// Package monitor is the interactive serial monitor: a bubbletea TUI
// with a scrollback viewport and a send line, attached to one port.
package monitor

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/muesli/reflow/ansi"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/reflow/wrap"

	"github.com/buckleypaul/kiln/internal/serialport"
	"github.com/buckleypaul/kiln/internal/store"
	"github.com/buckleypaul/kiln/internal/ui"
)

type keyMap struct {
	Quit       key.Binding
	Clear      key.Binding
	Send       key.Binding
	ScrollUp   key.Binding
	ScrollDn   key.Binding
	ToggleTail key.Binding
}

var keys = keyMap{
	Quit:       key.NewBinding(key.WithKeys("ctrl+c", "esc"), key.WithHelp("esc", "quit")),
	Clear:      key.NewBinding(key.WithKeys("ctrl+l"), key.WithHelp("ctrl+l", "clear")),
	Send:       key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "send")),
	ScrollUp:   key.NewBinding(key.WithKeys("pgup"), key.WithHelp("pgup", "scroll up")),
	ScrollDn:   key.NewBinding(key.WithKeys("pgdown"), key.WithHelp("pgdn", "scroll down")),
	ToggleTail: key.NewBinding(key.WithKeys("ctrl+t"), key.WithHelp("ctrl+t", "tail on/off")),
}

// dataMsg carries one chunk read from the serial port.
type dataMsg string

// disconnectedMsg signals the read side went away.
type disconnectedMsg struct{}

// Model is the monitor TUI state.
type Model struct {
	mon  *serialport.Monitor
	port string
	baud int

	viewport viewport.Model
	input    textinput.Model
	output   strings.Builder
	tail     bool
	logFile  *os.File

	width, height int
	ready         bool
	err           error
}

// New builds a monitor model over an already connected serial monitor.
func New(mon *serialport.Monitor, port string, baud int, logFile *os.File) Model {
	input := textinput.New()
	input.Placeholder = "type and press enter to send"
	input.Prompt = "> "
	input.Focus()

	return Model{
		mon:     mon,
		port:    port,
		baud:    baud,
		input:   input,
		tail:    true,
		logFile: logFile,
	}
}

func (m Model) Init() tea.Cmd {
	return m.waitForData()
}

// waitForData blocks on the monitor's data channel and resurfaces each
// chunk as a message.
func (m Model) waitForData() tea.Cmd {
	return func() tea.Msg {
		data, ok := <-m.mon.DataChan()
		if !ok {
			return disconnectedMsg{}
		}
		return dataMsg(data)
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		vpHeight := m.height - 4 // title, input line, status bar, spacing
		if vpHeight < 3 {
			vpHeight = 3
		}
		if !m.ready {
			m.viewport = viewport.New(m.width, vpHeight)
			m.ready = true
		} else {
			m.viewport.Width = m.width
			m.viewport.Height = vpHeight
		}
		m.refreshViewport()
		return m, nil

	case dataMsg:
		m.output.WriteString(string(msg))
		if m.logFile != nil {
			m.logFile.WriteString(string(msg))
		}
		m.refreshViewport()
		if m.tail {
			m.viewport.GotoBottom()
		}
		return m, m.waitForData()

	case disconnectedMsg:
		m.err = fmt.Errorf("port %s disconnected", m.port)
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.mon.Disconnect()
			return m, tea.Quit
		case key.Matches(msg, keys.Clear):
			m.output.Reset()
			m.refreshViewport()
			return m, nil
		case key.Matches(msg, keys.ToggleTail):
			m.tail = !m.tail
			return m, nil
		case key.Matches(msg, keys.Send):
			line := m.input.Value()
			m.input.SetValue("")
			if err := m.mon.Write([]byte(line + "\n")); err != nil {
				m.err = err
			}
			return m, nil
		case key.Matches(msg, keys.ScrollUp), key.Matches(msg, keys.ScrollDn):
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) refreshViewport() {
	if !m.ready || m.viewport.Width <= 0 {
		return
	}
	wrapped := wrap.String(m.output.String(), m.viewport.Width)
	lines := strings.Split(wrapped, "\n")
	for i, line := range lines {
		if ansi.PrintableRuneWidth(line) > m.viewport.Width {
			lines[i] = truncate.String(line, uint(m.viewport.Width))
		}
	}
	m.viewport.SetContent(strings.Join(lines, "\n"))
}

func (m Model) View() string {
	if !m.ready {
		return "connecting..."
	}

	title := ui.Title(fmt.Sprintf("Monitor %s @ %d", m.port, m.baud))

	status := ui.StatusKey("esc", "quit") + " " +
		ui.StatusKey("enter", "send") + " " +
		ui.StatusKey("ctrl+l", "clear") + " " +
		ui.StatusKey("ctrl+t", "tail")
	if m.tail {
		status += " " + ui.SuccessBadge("tail")
	}
	if m.err != nil {
		status += " " + ui.ErrorBadge(m.err.Error())
	}

	return title + "\n" + m.viewport.View() + "\n" + m.input.View() + "\n" + status
}

// Run connects to the port, records the session, and blocks in the
// TUI until the user quits.
func Run(port string, baud int, st *store.Store) error {
	mon := serialport.NewMonitor()
	if err := mon.Connect(port, baud); err != nil {
		return fmt.Errorf("open %s: %w", port, err)
	}
	defer mon.Disconnect()

	var logFile *os.File
	if st != nil {
		if dir, err := st.LogsDir(); err == nil {
			name := fmt.Sprintf("serial_%s.log", time.Now().Format("20060102_150405"))
			logFile, _ = os.Create(filepath.Join(dir, name))
			if logFile != nil {
				defer logFile.Close()
				st.AddSerialLog(store.SerialLog{
					Port:      port,
					BaudRate:  baud,
					Timestamp: time.Now(),
					LogFile:   logFile.Name(),
				})
			}
		}
	}

	program := tea.NewProgram(New(mon, port, baud, logFile), tea.WithAltScreen())
	_, err := program.Run()
	return err
}
