package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	wasmalloc "github.com/wippyai/wasm-alloc"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

const maxHistory = 12

type entry struct {
	cmd string
	out string
	err error
}

type interactiveModel struct {
	probe   *probe
	title   string
	input   textinput.Model
	history []entry
}

func newInteractiveModel(p *probe, cfg config) *interactiveModel {
	ti := textinput.New()
	ti.Placeholder = "alloc 64 8"
	ti.Prompt = promptStyle.Render("> ")
	ti.Width = 40
	ti.Focus()

	title := cfg.Backend
	if cfg.Abort {
		title += " (abort on OOM)"
	}
	return &interactiveModel{probe: p, title: title, input: ti}
}

func (m *interactiveModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit

		case "enter":
			line := strings.TrimSpace(m.input.Value())
			m.input.Reset()
			if line == "" {
				return m, nil
			}
			if line == "quit" || line == "exit" {
				return m, tea.Quit
			}
			out, err := m.probe.exec(line)
			m.history = append(m.history, entry{cmd: line, out: out, err: err})
			if len(m.history) > maxHistory {
				m.history = m.history[len(m.history)-maxHistory:]
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *interactiveModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Alloc Probe"))
	b.WriteString(" ")
	b.WriteString(m.title)
	b.WriteString("\n\n")

	for _, e := range m.history {
		b.WriteString(helpStyle.Render("> " + e.cmd))
		b.WriteString("\n")
		if e.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", e.err)))
		} else if e.out != "" {
			b.WriteString(resultStyle.Render(e.out))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n\n")
	b.WriteString(helpStyle.Render("enter run • help commands • esc quit"))

	return b.String()
}

func runInteractive(p *probe, cfg config) error {
	prog := tea.NewProgram(newInteractiveModel(p, cfg), tea.WithAltScreen())

	prev := wasmalloc.TakeAllocErrorHook()
	wasmalloc.SetAllocErrorHook(releaseOnAbort(prog.ReleaseTerminal, os.Stderr, prev))
	defer wasmalloc.SetAllocErrorHook(prev)

	_, err := prog.Run()
	return err
}

// releaseOnAbort returns a hook that hands the terminal back before an
// allocation failure ends the process, then reports the failure through
// prev or as a plain line on w.
func releaseOnAbort(release func() error, w io.Writer, prev wasmalloc.AllocErrorHook) wasmalloc.AllocErrorHook {
	return func(layout wasmalloc.Layout, cause error) {
		_ = release()
		if prev != nil {
			prev(layout, cause)
			return
		}
		fmt.Fprintf(w, "memory allocation of %d bytes failed\n", layout.Size())
	}
}
