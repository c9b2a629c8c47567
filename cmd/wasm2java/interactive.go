package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	wasmexporter "github.com/wippyai/wasm-exporter"
	"github.com/wippyai/wasm-exporter/exporter"
	"github.com/wippyai/wasm-exporter/exporter/java"
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

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type modelState int

const (
	stateLoading modelState = iota
	stateBrowse
	stateSource
)

// browserModel lists the emitted functions of a module and shows the Java
// source of the selected one.
type browserModel struct {
	ctx      context.Context
	err      error
	res      *java.Result
	cfg      java.Config
	filename string
	data     []byte
	funcs    []*exporter.Function
	visible  []*exporter.Function
	filter   textinput.Model
	view     viewport.Model
	selected int
	width    int
	height   int
	state    modelState
}

type exportedMsg struct {
	err error
	res *java.Result
}

func newBrowserModel(ctx context.Context, filename string, data []byte, cfg java.Config, width, height int) *browserModel {
	filter := textinput.New()
	filter.Prompt = "/ "
	filter.Placeholder = "filter functions"
	filter.CharLimit = 128

	return &browserModel{
		ctx:      ctx,
		cfg:      cfg,
		filename: filename,
		data:     data,
		filter:   filter,
		view:     viewport.New(width, max(height-4, 1)),
		width:    width,
		height:   height,
		state:    stateLoading,
	}
}

func (m *browserModel) Init() tea.Cmd {
	return m.export
}

func (m *browserModel) export() tea.Msg {
	res, err := wasmexporter.ExportJavaContext(m.ctx, m.data, m.cfg)
	return exportedMsg{res: res, err: err}
}

func (m *browserModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.view.Width = msg.Width
		m.view.Height = max(msg.Height-4, 1)
		return m, nil

	case exportedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.res = msg.res
		m.funcs = msg.res.Output.Funcs
		m.applyFilter()
		m.state = stateBrowse
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		switch m.state {
		case stateLoading:
			if msg.String() == "q" {
				return m, tea.Quit
			}
		case stateBrowse:
			return m.updateBrowse(msg)
		case stateSource:
			return m.updateSource(msg)
		}
	}
	return m, nil
}

func (m *browserModel) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.filter.Focused() {
		switch msg.String() {
		case "enter", "esc":
			m.filter.Blur()
			return m, nil
		}
		var cmd tea.Cmd
		m.filter, cmd = m.filter.Update(msg)
		m.applyFilter()
		return m, cmd
	}

	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "/":
		return m, m.filter.Focus()
	case "up", "k":
		if m.selected > 0 {
			m.selected--
		}
	case "down", "j":
		if m.selected < len(m.visible)-1 {
			m.selected++
		}
	case "enter":
		if m.selected < len(m.visible) {
			m.show(m.source(m.visible[m.selected]))
		}
	case "a":
		m.show(m.res.Source)
	}
	return m, nil
}

func (m *browserModel) updateSource(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "esc", "backspace":
		m.state = stateBrowse
		return m, nil
	}
	var cmd tea.Cmd
	m.view, cmd = m.view.Update(msg)
	return m, cmd
}

func (m *browserModel) show(content string) {
	m.view.SetContent(content)
	m.view.GotoTop()
	m.state = stateSource
}

func (m *browserModel) applyFilter() {
	needle := strings.ToLower(m.filter.Value())
	m.visible = m.visible[:0]
	for _, fn := range m.funcs {
		if needle == "" || strings.Contains(strings.ToLower(fn.Name), needle) {
			m.visible = append(m.visible, fn)
		}
	}
	if m.selected >= len(m.visible) {
		m.selected = max(len(m.visible)-1, 0)
	}
}

// source renders a function body with its faults appended as comments.
func (m *browserModel) source(fn *exporter.Function) string {
	var b strings.Builder
	b.WriteString(m.formatFunc(fn))
	b.WriteString("\n\n")
	b.WriteString(fn.Body.String())
	for _, f := range fn.Context.Faults() {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render("// " + f.Error()))
	}
	return b.String()
}

func (m *browserModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(fmt.Sprintf("wasm2java: %s -> %s", m.filename, m.cfg.ClassName)))
	b.WriteString("\n\n")

	if m.err != nil {
		b.WriteString(errorStyle.Render("Error: " + m.err.Error()))
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("ctrl+c quit"))
		return b.String()
	}

	switch m.state {
	case stateLoading:
		b.WriteString("Exporting...\n")

	case stateBrowse:
		b.WriteString(m.filter.View())
		b.WriteString("\n\n")
		rows := max(m.height-8, 1)
		start := 0
		if m.selected >= rows {
			start = m.selected - rows + 1
		}
		for i := start; i < len(m.visible) && i < start+rows; i++ {
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + m.visible[i].Name))
			} else {
				b.WriteString("  " + m.formatFunc(m.visible[i]))
			}
			b.WriteString("\n")
		}
		if faults := len(m.res.Faults()); faults > 0 {
			b.WriteString("\n")
			b.WriteString(errorStyle.Render(fmt.Sprintf("%d fault(s)", faults)))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter view • / filter • a whole class • q quit"))

	case stateSource:
		b.WriteString(m.view.View())
		b.WriteString("\n")
		b.WriteString(helpStyle.Render(fmt.Sprintf("%3.f%% • ↑/↓ scroll • esc back • q quit", m.view.ScrollPercent()*100)))
	}

	return b.String()
}

func (m *browserModel) formatFunc(fn *exporter.Function) string {
	sig := fn.Func.Sig
	params := make([]string, len(sig.Params))
	for i, t := range sig.Params {
		params[i] = typeStyle.Render(t.String())
	}
	s := funcStyle.Render(fn.Name) + "(" + strings.Join(params, ", ") + ")"
	s += " -> " + typeStyle.Render(sig.Result.String())
	if n := len(fn.Context.Faults()); n > 0 {
		s += errorStyle.Render(fmt.Sprintf(" [%d]", n))
	}
	return s
}

func runInteractive(ctx context.Context, filename string, data []byte, cfg java.Config) error {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return fmt.Errorf("-i needs a terminal on stdout")
	}
	width, height, err := term.GetSize(fd)
	if err != nil {
		width, height = 80, 24
	}

	p := tea.NewProgram(newBrowserModel(ctx, filename, data, cfg, width, height), tea.WithAltScreen())
	_, err = p.Run()
	return err
}
