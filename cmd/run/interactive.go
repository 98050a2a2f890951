package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/wasishim/config"
	"github.com/wippyai/wasishim/runtime"
	"github.com/wippyai/wasishim/wasi/preview1/filesystem"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	inputEchoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// chrome is the number of lines used around the output pane.
const chrome = 5

type outputMsg struct {
	text   string
	stderr bool
}

type exitMsg struct {
	code uint32
	err  error
}

type interactiveModel struct {
	err      error
	stdin    io.WriteCloser
	cancel   context.CancelFunc
	filename string
	output   strings.Builder
	pane     viewport.Model
	input    textinput.Model
	code     uint32
	ready    bool
	exited   bool
}

func newInteractiveModel(filename string, stdin io.WriteCloser, cancel context.CancelFunc) *interactiveModel {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "type a line for the guest's stdin"
	ti.Focus()

	return &interactiveModel{
		filename: filename,
		stdin:    stdin,
		cancel:   cancel,
		input:    ti,
		pane:     viewport.New(80, 20),
	}
}

func (m *interactiveModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.pane.Width = msg.Width
		m.pane.Height = max(msg.Height-chrome, 1)
		m.input.Width = max(msg.Width-4, 10)
		m.ready = true

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.shutdown()
			return m, tea.Quit

		case "ctrl+d":
			_ = m.stdin.Close()
			return m, nil

		case "enter":
			if m.exited {
				m.shutdown()
				return m, tea.Quit
			}
			line := m.input.Value()
			m.input.Reset()
			m.appendOutput(inputEchoStyle.Render(line) + "\n")
			return m, m.feed(line + "\n")

		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.pane, cmd = m.pane.Update(msg)
			return m, cmd
		}

	case outputMsg:
		if msg.stderr {
			m.appendOutput(errorStyle.Render(msg.text))
		} else {
			m.appendOutput(msg.text)
		}
		return m, nil

	case exitMsg:
		m.exited = true
		m.code = msg.code
		m.err = msg.err
		m.input.Blur()
		return m, nil
	}

	if !m.exited {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

func (m *interactiveModel) appendOutput(s string) {
	m.output.WriteString(s)
	m.pane.SetContent(m.output.String())
	m.pane.GotoBottom()
}

// feed writes to the guest's stdin off the update loop; the pipe blocks
// until the guest reads.
func (m *interactiveModel) feed(line string) tea.Cmd {
	w := m.stdin
	return func() tea.Msg {
		if _, err := io.WriteString(w, line); err != nil {
			return outputMsg{text: fmt.Sprintf("stdin closed: %v\n", err), stderr: true}
		}
		return nil
	}
}

func (m *interactiveModel) shutdown() {
	_ = m.stdin.Close()
	m.cancel()
}

func (m *interactiveModel) View() string {
	if !m.ready {
		return "Starting guest..."
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("WASI Runner"))
	b.WriteString(" ")
	b.WriteString(m.filename)
	b.WriteString("\n\n")
	b.WriteString(m.pane.View())
	b.WriteString("\n")

	switch {
	case m.err != nil:
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("enter/esc quit"))
	case m.exited:
		b.WriteString(resultStyle.Render(fmt.Sprintf("guest exited with code %d", m.code)))
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("enter/esc quit"))
	default:
		b.WriteString(m.input.View())
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("enter send • ctrl+d end input • pgup/pgdown scroll • esc quit"))
	}

	return b.String()
}

// runInteractive runs the guest behind a console showing its output and
// feeding typed lines to its stdin.
func runInteractive(ctx context.Context, filename string, wasm []byte, cfg *config.Config, opts []runtime.Option) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	pr, pw := io.Pipe()
	model := newInteractiveModel(filename, pw, cancel)
	p := tea.NewProgram(model, tea.WithAltScreen())

	sink := func(stderr bool) filesystem.Sink {
		fn := func(s string) { p.Send(outputMsg{text: s, stderr: stderr}) }
		if cfg.Output == config.OutputRaw {
			return rawSink(fn)
		}
		return filesystem.TextSink(fn)
	}
	stdio := guestIO{
		stdin:  filesystem.ReaderSource(pr),
		stdout: sink(false),
		stderr: sink(true),
	}

	go func() {
		code, err := execute(ctx, wasm, cfg, stdio, opts)
		p.Send(exitMsg{code: code, err: err})
	}()

	if _, err := p.Run(); err != nil {
		return err
	}
	if model.err != nil {
		return model.err
	}
	if model.exited && model.code != 0 {
		return &exitError{code: model.code}
	}
	return nil
}

// rawSink forwards bytes unchanged. The console still renders them as text.
func rawSink(fn func(string)) filesystem.Sink {
	return filesystem.SinkFunc(func(p []byte) (int, error) {
		fn(string(p))
		return len(p), nil
	})
}
