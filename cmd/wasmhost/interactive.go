package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wasm-host/exports"
	"github.com/wippyai/wasm-host/loader"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	funcStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

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

type interactiveModel struct {
	ctx      context.Context
	err      error
	env      *env
	instance *loader.Instance
	registry *exports.Registry
	name     string
	result   string
	funcs    []exports.Export
	inputs   []textinput.Model
	selected int
	focusIdx int
	textMode bool
	state    modelState
}

type modelState int

const (
	stateSelectFunc modelState = iota
	stateInputArgs
	stateShowResult
)

func newInteractiveModel(ctx context.Context, e *env, name string) *interactiveModel {
	return &interactiveModel{
		ctx:   ctx,
		env:   e,
		name:  name,
		state: stateSelectFunc,
	}
}

type loadedMsg struct {
	err      error
	instance *loader.Instance
	registry *exports.Registry
}

type callResultMsg struct {
	err    error
	result string
}

func (m *interactiveModel) Init() tea.Cmd {
	return m.loadModule
}

func (m *interactiveModel) loadModule() tea.Msg {
	inst, err := m.env.load(m.ctx, m.name)
	if err != nil {
		return loadedMsg{err: err}
	}
	reg, err := exports.Resolve(inst)
	if err != nil {
		_ = inst.Close(m.ctx)
		return loadedMsg{err: err}
	}
	return loadedMsg{instance: inst, registry: reg}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if m.state != stateInputArgs || msg.String() == "ctrl+c" {
				if m.instance != nil {
					_ = m.instance.Close(m.ctx)
				}
				return m, tea.Quit
			}

		case "up", "k":
			if m.state == stateSelectFunc && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateSelectFunc && m.selected < len(m.funcs)-1 {
				m.selected++
			}

		case "enter":
			switch m.state {
			case stateSelectFunc:
				if len(m.funcs) == 0 {
					return m, nil
				}
				m.prepareInputs()
				if len(m.inputs) == 0 {
					return m, m.callFunction
				}
				m.state = stateInputArgs

			case stateInputArgs:
				return m, m.callFunction

			case stateShowResult:
				m.state = stateSelectFunc
				m.result = ""
				m.err = nil
			}

		case "tab":
			if m.state == stateInputArgs && len(m.inputs) > 1 {
				m.inputs[m.focusIdx].Blur()
				m.focusIdx = (m.focusIdx + 1) % len(m.inputs)
				m.inputs[m.focusIdx].Focus()
			}

		case "esc":
			switch m.state {
			case stateInputArgs:
				m.state = stateSelectFunc
				m.inputs = nil
			case stateShowResult:
				m.state = stateSelectFunc
				m.result = ""
				m.err = nil
			}
		}

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.instance = msg.instance
		m.registry = msg.registry
		for _, name := range msg.registry.Names() {
			e, _ := msg.registry.Lookup(name)
			m.funcs = append(m.funcs, e)
		}

	case callResultMsg:
		m.result = msg.result
		m.err = msg.err
		m.state = stateShowResult
	}

	if m.state == stateInputArgs {
		var cmds []tea.Cmd
		for i := range m.inputs {
			var cmd tea.Cmd
			m.inputs[i], cmd = m.inputs[i].Update(msg)
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)
	}

	return m, nil
}

// prepareInputs builds one field per parameter. A leading (i32, i32) pair
// is offered as a single text field passed as (ptr, len).
func (m *interactiveModel) prepareInputs() {
	f := m.funcs[m.selected]
	params := f.Params
	m.textMode = len(params) >= 2 && params[0] == api.ValueTypeI32 && params[1] == api.ValueTypeI32
	if m.textMode {
		params = params[2:]
	}

	m.inputs = nil
	if m.textMode {
		ti := textinput.New()
		ti.Placeholder = "text"
		ti.Prompt = "text: "
		ti.Width = 40
		m.inputs = append(m.inputs, ti)
	}
	for i, p := range params {
		ti := textinput.New()
		ti.Placeholder = api.ValueTypeName(p)
		ti.Prompt = fmt.Sprintf("arg%d: ", i)
		ti.Width = 40
		m.inputs = append(m.inputs, ti)
	}
	if len(m.inputs) > 0 {
		m.inputs[0].Focus()
	}
	m.focusIdx = 0
}

func (m *interactiveModel) callFunction() tea.Msg {
	f := m.funcs[m.selected]
	marshaler, err := m.instance.Marshaler()
	if err != nil {
		return callResultMsg{err: err}
	}

	var params []uint64
	inputs := m.inputs
	if m.textMode {
		region, err := marshaler.WriteText(0, inputs[0].Value())
		if err != nil {
			return callResultMsg{err: err}
		}
		defer func() { _ = marshaler.Zero(region) }()
		params = append(params, region.Params()...)
		inputs = inputs[1:]
	}
	for i, input := range inputs {
		v, err := encodeArg(input.Value(), f.Params[len(params)])
		if err != nil {
			return callResultMsg{err: fmt.Errorf("arg%d: %w", i, err)}
		}
		params = append(params, v)
	}

	results, err := m.registry.Call(m.ctx, f.Name, params...)
	if err != nil {
		return callResultMsg{err: err}
	}

	out := formatResults(results, f.Results)
	if m.textMode {
		if text, err := marshaler.ReadText(0, uint32(len(m.inputs[0].Value()))+1); err == nil {
			out += "\ntext: " + text
		}
	}
	return callResultMsg{result: out}
}

func (m *interactiveModel) View() string {
	if m.err != nil && m.state != stateShowResult {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}

	if m.registry == nil {
		return "Loading module..."
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("wasmhost"))
	b.WriteString(" ")
	b.WriteString(m.name)
	b.WriteString("\n\n")

	switch m.state {
	case stateSelectFunc:
		if len(m.funcs) == 0 {
			b.WriteString("Module exports no functions.\n\n")
			b.WriteString(helpStyle.Render("q quit"))
			break
		}
		b.WriteString("Select a function to call:\n\n")
		for i, f := range m.funcs {
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + formatFunc(f)))
			} else {
				b.WriteString("  " + formatFunc(f))
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter call • q quit"))

	case stateInputArgs:
		f := m.funcs[m.selected]
		b.WriteString(fmt.Sprintf("Calling %s\n\n", funcStyle.Render(f.Name)))
		for _, input := range m.inputs {
			b.WriteString(input.View())
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("tab next field • enter call • esc back"))

	case stateShowResult:
		f := m.funcs[m.selected]
		b.WriteString(fmt.Sprintf("Result of %s:\n\n", funcStyle.Render(f.Name)))
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

func formatFunc(f exports.Export) string {
	return funcStyle.Render(f.Name) + typeStyle.Render(f.Signature())
}

func runInteractive(ctx context.Context, e *env, name string) error {
	p := tea.NewProgram(newInteractiveModel(ctx, e, name), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
