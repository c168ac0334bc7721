package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/leegramling/modhost/engine"
	"github.com/leegramling/modhost/host"
	"github.com/leegramling/modhost/loader"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	opStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#98FB98"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type operation struct {
	name       string
	desc       string
	prompt     string
	needsInput bool
}

var operations = []operation{
	{name: "initialize", desc: "run lib_initialize"},
	{name: "process", desc: "reverse + uppercase through lib_process_data", prompt: "input text: ", needsInput: true},
	{name: "callback", desc: "lib_execute_callback with the doubling callback", prompt: "value: ", needsInput: true},
	{name: "increment", desc: "lib_increment_counter"},
	{name: "counter", desc: "read lib_global_counter"},
	{name: "version", desc: "read lib_version"},
}

type inspectorState int

const (
	stateSelectOp inspectorState = iota
	stateInputArg
	stateShowResult
)

type inspectorModel struct {
	err      error
	eng      *engine.Engine
	bindings *loader.Bindings
	filename string
	result   string
	input    textinput.Model
	selected int
	state    inspectorState
}

type boundMsg struct {
	err      error
	eng      *engine.Engine
	bindings *loader.Bindings
}

type opResultMsg struct {
	err    error
	result string
}

func newInspectorModel(filename string) *inspectorModel {
	return &inspectorModel{filename: filename, state: stateSelectOp}
}

func (m *inspectorModel) Init() tea.Cmd {
	return m.bindModule
}

func (m *inspectorModel) bindModule() tea.Msg {
	ctx := context.Background()

	eng, err := engine.New(ctx)
	if err != nil {
		return boundMsg{err: err}
	}

	b, err := loader.Bind(ctx, eng, m.filename, loader.DefaultSurface(), nil)
	if err != nil {
		eng.Close(ctx)
		return boundMsg{err: err}
	}

	return boundMsg{eng: eng, bindings: b}
}

func (m *inspectorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if m.state == stateInputArg && msg.String() == "q" {
				break // let the text input take the keystroke
			}
			ctx := context.Background()
			if m.bindings != nil {
				m.bindings.Release(ctx)
			}
			if m.eng != nil {
				m.eng.Close(ctx)
			}
			return m, tea.Quit

		case "up", "k":
			if m.state == stateSelectOp && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateSelectOp && m.selected < len(operations)-1 {
				m.selected++
			}

		case "enter":
			switch m.state {
			case stateSelectOp:
				if operations[m.selected].needsInput {
					ti := textinput.New()
					ti.Prompt = operations[m.selected].prompt
					ti.Width = 40
					ti.Focus()
					m.input = ti
					m.state = stateInputArg
					return m, nil
				}
				return m, m.invoke

			case stateInputArg:
				return m, m.invoke

			case stateShowResult:
				m.state = stateSelectOp
				m.result = ""
				m.err = nil
			}

		case "esc":
			if m.state == stateInputArg || m.state == stateShowResult {
				m.state = stateSelectOp
				m.result = ""
				m.err = nil
			}
		}

	case boundMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.eng = msg.eng
		m.bindings = msg.bindings

	case opResultMsg:
		m.result = msg.result
		m.err = msg.err
		m.state = stateShowResult
	}

	if m.state == stateInputArg {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *inspectorModel) invoke() tea.Msg {
	if m.bindings == nil {
		return opResultMsg{err: fmt.Errorf("module not bound")}
	}

	ctx := context.Background()
	arg := m.input.Value()

	switch operations[m.selected].name {
	case "initialize":
		status, err := m.bindings.Initialize(ctx)
		if err != nil {
			return opResultMsg{err: err}
		}
		return opResultMsg{result: fmt.Sprintf("status %d", status)}

	case "process":
		out, n, err := m.bindings.ProcessData(ctx, arg, 256)
		if err != nil {
			return opResultMsg{err: err}
		}
		return opResultMsg{result: fmt.Sprintf("%q (%d bytes)", out, n)}

	case "callback":
		v, err := strconv.ParseInt(arg, 10, 32)
		if err != nil {
			return opResultMsg{err: fmt.Errorf("not an s32: %q", arg)}
		}
		result, err := m.bindings.ExecuteCallback(ctx, host.Doubling, int32(v))
		if err != nil {
			return opResultMsg{err: err}
		}
		return opResultMsg{result: fmt.Sprintf("doubling(%d*11+10) = %d", v, result)}

	case "increment":
		if err := m.bindings.IncrementCounter(ctx); err != nil {
			return opResultMsg{err: err}
		}
		v, err := m.bindings.Counter.Get()
		if err != nil {
			return opResultMsg{err: err}
		}
		return opResultMsg{result: fmt.Sprintf("counter now %d", v)}

	case "counter":
		v, err := m.bindings.Counter.Get()
		if err != nil {
			return opResultMsg{err: err}
		}
		return opResultMsg{result: fmt.Sprintf("counter = %d", v)}

	case "version":
		v, err := m.bindings.Version(ctx)
		if err != nil {
			return opResultMsg{err: err}
		}
		return opResultMsg{result: v}
	}

	return opResultMsg{err: fmt.Errorf("unknown operation")}
}

func (m *inspectorModel) View() string {
	if m.err != nil && m.state != stateShowResult {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}

	if m.bindings == nil {
		return "Loading module..."
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("Module Inspector"))
	b.WriteString(" ")
	b.WriteString(m.filename)
	b.WriteString("\n\n")

	switch m.state {
	case stateSelectOp:
		b.WriteString("Select an operation:\n\n")
		for i, op := range operations {
			line := op.name + ": " + op.desc
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + line))
			} else {
				b.WriteString("  " + opStyle.Render(op.name) + ": " + op.desc)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter run • q quit"))

	case stateInputArg:
		b.WriteString(opStyle.Render(operations[m.selected].name))
		b.WriteString("\n\n")
		b.WriteString(m.input.View())
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter run • esc back"))

	case stateShowResult:
		b.WriteString(fmt.Sprintf("Result of %s:\n\n", opStyle.Render(operations[m.selected].name)))
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			b.WriteString(resultStyle.Render(m.result))
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter continue • q quit"))
	}

	return b.String()
}

func runInteractive(filename string) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("interactive mode needs a terminal")
	}
	p := tea.NewProgram(newInspectorModel(filename), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
