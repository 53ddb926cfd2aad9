package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"gopkg.in/urfave/cli.v1"

	"github.com/chartbuild/cbscript/cbs"
	"github.com/chartbuild/cbscript/chart"
)

var replCommand = cli.Command{
	Action: replAction,
	Name:   "repl",
	Usage:  "Start an interactive session against a scratch chart",
	Flags:  []cli.Flag{maxStepsFlag},
}

// replResult is the hidden global that receives evaluated expressions.
const replResult = "__repl"

var (
	accentColor    = lipgloss.Color("#3B82F6")
	successColor   = lipgloss.Color("#10B981")
	errorColor     = lipgloss.Color("#EF4444")
	mutedColor     = lipgloss.Color("#6B7280")
	highlightColor = lipgloss.Color("#F59E0B")

	promptStyle = lipgloss.NewStyle().
			Foreground(accentColor).
			Bold(true)

	resultStyle = lipgloss.NewStyle().
			Foreground(successColor)

	errorStyle = lipgloss.NewStyle().
			Foreground(errorColor)

	mutedStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	headerStyle = lipgloss.NewStyle().
			Foreground(accentColor).
			Bold(true).
			Padding(0, 1)

	helpKeyStyle = lipgloss.NewStyle().
			Foreground(highlightColor)

	helpDescStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	borderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accentColor).
			Padding(0, 1)
)

// sessionFactory builds the engine and chart a single evaluation runs
// against.
type sessionFactory func() (*cbs.Engine, *chart.Chart, error)

type historyEntry struct {
	input  string
	output string
	isErr  bool
}

type replVar struct {
	name  string
	typ   string
	value string
}

type replModel struct {
	textInput   textinput.Model
	newSession  sessionFactory
	version     string
	transcript  []string
	vars        []replVar
	chart       *chart.Chart
	history     []historyEntry
	cmdHistory  []string
	historyIdx  int
	width       int
	height      int
	showHelp    bool
	showVars    bool
	quitting    bool
	initialized bool
}

type keyMap struct {
	Up    key.Binding
	Down  key.Binding
	Enter key.Binding
	CtrlC key.Binding
	CtrlD key.Binding
	CtrlL key.Binding
	Tab   key.Binding
	CtrlV key.Binding
	CtrlK key.Binding
}

var keys = keyMap{
	Up: key.NewBinding(
		key.WithKeys("up"),
		key.WithHelp("↑", "previous input"),
	),
	Down: key.NewBinding(
		key.WithKeys("down"),
		key.WithHelp("↓", "next input"),
	),
	Enter: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "execute"),
	),
	CtrlC: key.NewBinding(
		key.WithKeys("ctrl+c"),
		key.WithHelp("ctrl+c", "quit"),
	),
	CtrlD: key.NewBinding(
		key.WithKeys("ctrl+d"),
		key.WithHelp("ctrl+d", "quit"),
	),
	CtrlL: key.NewBinding(
		key.WithKeys("ctrl+l"),
		key.WithHelp("ctrl+l", "clear"),
	),
	Tab: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("tab", "autocomplete"),
	),
	CtrlV: key.NewBinding(
		key.WithKeys("ctrl+v"),
		key.WithHelp("ctrl+v", "toggle vars"),
	),
	CtrlK: key.NewBinding(
		key.WithKeys("ctrl+k"),
		key.WithHelp("ctrl+k", "toggle help"),
	),
}

func replAction(ctx *cli.Context) error {
	if !isTerminal(os.Stdin) {
		return errors.New("cbs repl: stdin is not a terminal")
	}
	cfg, err := makeConfig(ctx)
	if err != nil {
		return err
	}
	factory := func() (*cbs.Engine, *chart.Chart, error) {
		engine, err := cbs.NewEngine(cbs.Config{
			Versions:  cfg.Engine.Versions,
			CacheSize: -1,
			MaxSteps:  cfg.Engine.MaxSteps,
			// The alternate screen owns the terminal.
			Logger: log.New(io.Discard),
		})
		if err != nil {
			return nil, nil, err
		}
		c := chart.New(cfg.Chart.Version)
		chart.Bind(engine, c)
		return engine, c, nil
	}
	if _, _, err := factory(); err != nil {
		return err
	}
	version := cbs.DefaultVersions[0]
	if len(cfg.Engine.Versions) > 0 {
		version = cfg.Engine.Versions[0]
	}
	p := tea.NewProgram(newREPLModel(factory, version), tea.WithAltScreen())
	_, err = p.Run()
	return err
}

// newREPLModel starts a session whose transcript opens with the given
// language version.
func newREPLModel(factory sessionFactory, version string) replModel {
	ti := textinput.New()
	ti.Placeholder = "type a statement or expression..."
	ti.Focus()
	ti.CharLimit = 500
	ti.Width = 60
	ti.PromptStyle = promptStyle
	ti.Prompt = "cbs> "

	return replModel{
		textInput:  ti,
		newSession: factory,
		version:    version,
		transcript: []string{versionDirective(version)},
		history:    make([]historyEntry, 0),
		cmdHistory: make([]string, 0),
		historyIdx: -1,
	}
}

func (m replModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m replModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.textInput.Width = msg.Width - 10
		m.initialized = true
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.CtrlC), key.Matches(msg, keys.CtrlD):
			m.quitting = true
			return m, tea.Quit

		case key.Matches(msg, keys.CtrlL):
			m.history = make([]historyEntry, 0)
			return m, nil

		case key.Matches(msg, keys.CtrlV):
			m.showVars = !m.showVars
			return m, nil

		case key.Matches(msg, keys.CtrlK):
			m.showHelp = !m.showHelp
			return m, nil

		case key.Matches(msg, keys.Up):
			if len(m.cmdHistory) > 0 {
				if m.historyIdx == -1 {
					m.historyIdx = len(m.cmdHistory) - 1
				} else if m.historyIdx > 0 {
					m.historyIdx--
				}
				m.textInput.SetValue(m.cmdHistory[m.historyIdx])
				m.textInput.CursorEnd()
			}
			return m, nil

		case key.Matches(msg, keys.Down):
			if m.historyIdx != -1 {
				if m.historyIdx < len(m.cmdHistory)-1 {
					m.historyIdx++
					m.textInput.SetValue(m.cmdHistory[m.historyIdx])
				} else {
					m.historyIdx = -1
					m.textInput.SetValue("")
				}
				m.textInput.CursorEnd()
			}
			return m, nil

		case key.Matches(msg, keys.Tab):
			m = m.handleAutocomplete()
			return m, nil

		case key.Matches(msg, keys.Enter):
			input := strings.TrimSpace(m.textInput.Value())
			if input == "" {
				return m, nil
			}
			m.textInput.SetValue("")
			m.historyIdx = -1

			if strings.HasPrefix(input, ":") {
				return m.handleCommand(input)
			}

			var output string
			var isErr bool
			m, output, isErr = m.evaluate(input)
			m.history = append(m.history, historyEntry{
				input:  input,
				output: output,
				isErr:  isErr,
			})
			m.cmdHistory = append(m.cmdHistory, input)
			return m, nil
		}
	}

	m.textInput, cmd = m.textInput.Update(msg)
	return m, cmd
}

func (m replModel) handleCommand(input string) (replModel, tea.Cmd) {
	cmd := strings.Fields(input)[0]

	switch cmd {
	case ":help", ":h":
		m.showHelp = !m.showHelp
	case ":clear", ":c":
		m.history = make([]historyEntry, 0)
	case ":vars", ":v":
		m.showVars = !m.showVars
	case ":chart":
		if m.chart == nil {
			m.history = append(m.history, historyEntry{input: input, output: "Chart is empty"})
			break
		}
		var b strings.Builder
		printChartSummary(&b, m.chart)
		m.history = append(m.history, historyEntry{input: input, output: strings.TrimRight(b.String(), "\n")})
	case ":reset", ":r":
		m.transcript = []string{versionDirective(m.version)}
		m.vars = nil
		m.chart = nil
		m.history = append(m.history, historyEntry{
			input:  input,
			output: "Session reset",
		})
	case ":quit", ":q":
		m.quitting = true
		return m, tea.Quit
	default:
		m.history = append(m.history, historyEntry{
			input:  input,
			output: fmt.Sprintf("Unknown command: %s", cmd),
			isErr:  true,
		})
	}
	return m, nil
}

func (m replModel) handleAutocomplete() replModel {
	input := m.textInput.Value()
	if input == "" {
		return m
	}

	cut := strings.LastIndexFunc(input, func(r rune) bool { return !isWordRune(r) })
	lastWord := input[cut+1:]
	if lastWord == "" {
		return m
	}

	candidates := append(cbs.Keywords(), cbs.TypeNames()...)
	if engine, _, err := m.newSession(); err == nil {
		for name := range engine.Globals() {
			candidates = append(candidates, name)
		}
	}
	for _, v := range m.vars {
		candidates = append(candidates, v.name)
	}

	seen := make(map[string]struct{})
	var completions []string
	for _, c := range candidates {
		if _, ok := seen[c]; ok || !strings.HasPrefix(c, lastWord) {
			continue
		}
		seen[c] = struct{}{}
		completions = append(completions, c)
	}
	sort.Strings(completions)

	switch {
	case len(completions) == 1:
		m.textInput.SetValue(input[:cut+1] + completions[0])
		m.textInput.CursorEnd()
	case len(completions) > 1:
		m.history = append(m.history, historyEntry{
			output: "Completions: " + strings.Join(completions, ", "),
		})
	}
	return m
}

// evaluate runs input after replaying the accepted transcript against a
// fresh session. Pure expressions are shown and forgotten; everything else
// that succeeds joins the transcript.
func (m replModel) evaluate(input string) (replModel, string, bool) {
	stmt := input
	if !strings.HasSuffix(stmt, ";") && !strings.HasSuffix(stmt, "}") {
		stmt += ";"
	}
	prefix := strings.Join(m.transcript, "\n")

	if expr, ok := replExpression(stmt); ok {
		wrapped := fmt.Sprintf("%s\nlet %s: any = 0;\n%s = (%s);", prefix, replResult, replResult, strings.TrimSuffix(stmt, ";"))
		script, c, err := m.compile(wrapped)
		if err == nil {
			if err := script.Run(context.Background()); err != nil {
				return m, err.Error(), true
			}
			if _, call := expr.(*cbs.CallExpr); call {
				m.transcript = append(m.transcript, stmt)
			}
			m = m.capture(script, c)
			result, _ := script.Global(replResult)
			return m, result.String(), false
		}
	}

	script, c, err := m.compile(prefix + "\n" + stmt)
	if err != nil {
		return m, err.Error(), true
	}
	if err := script.Run(context.Background()); err != nil {
		return m, err.Error(), true
	}
	m.transcript = append(m.transcript, stmt)
	m = m.capture(script, c)

	tokens, _ := cbs.Tokenize(stmt)
	if program, errs := cbs.Parse(tokens); len(errs) == 0 && len(program.Body.Statements) > 0 {
		if decl, ok := program.Body.Statements[0].(*cbs.VarDecl); ok {
			for _, v := range m.vars {
				if v.name == decl.Name {
					return m, fmt.Sprintf("%s = %s", v.name, v.value), false
				}
			}
		}
	}
	return m, "ok", false
}

func versionDirective(version string) string {
	return "#version " + version + ";"
}

func (m replModel) compile(source string) (*cbs.Script, *chart.Chart, error) {
	engine, c, err := m.newSession()
	if err != nil {
		return nil, nil, err
	}
	script, err := engine.Compile(source)
	if err != nil {
		return nil, nil, err
	}
	return script, c, nil
}

// replExpression reports whether stmt is a single expression without an
// assignment at its root.
func replExpression(stmt string) (cbs.Expression, bool) {
	tokens, err := cbs.Tokenize(stmt)
	if err != nil {
		return nil, false
	}
	program, errs := cbs.Parse(tokens)
	if len(errs) > 0 || len(program.Body.Statements) != 1 {
		return nil, false
	}
	es, ok := program.Body.Statements[0].(*cbs.ExprStmt)
	if !ok {
		return nil, false
	}
	switch e := es.Expr.(type) {
	case *cbs.AssignExpr:
		return nil, false
	case *cbs.UnaryExpr:
		if op := string(e.Operator); op == "++" || op == "--" {
			return nil, false
		}
	}
	return es.Expr, true
}

func (m replModel) capture(script *cbs.Script, c *chart.Chart) replModel {
	m.chart = c
	m.vars = m.vars[:0:0]
	program := script.Program()
	for _, sym := range program.Scopes.Symbols(program.Body.Scope) {
		if strings.HasPrefix(sym.Name, "__") || sym.Function != nil {
			continue
		}
		v, ok := script.Global(sym.Name)
		if !ok {
			if !sym.Known {
				continue
			}
			v = sym.Value
		}
		m.vars = append(m.vars, replVar{name: sym.Name, typ: sym.Type.Name(), value: v.String()})
	}
	sort.Slice(m.vars, func(i, j int) bool { return m.vars[i].name < m.vars[j].name })
	return m
}

func (m replModel) View() string {
	if !m.initialized {
		return "Loading..."
	}

	if m.quitting {
		return mutedStyle.Render("Goodbye!\n")
	}

	var b strings.Builder

	header := headerStyle.Render("cbs REPL")
	version := mutedStyle.Render("v" + appVersion)
	b.WriteString(header + " " + version + "\n")
	b.WriteString(mutedStyle.Render(strings.Repeat("─", max(0, min(m.width-2, 60)))) + "\n\n")

	reservedLines := 8
	if m.showHelp {
		reservedLines += 11
	}
	if m.showVars {
		reservedLines += len(m.vars) + 3
	}
	availableHeight := max(0, m.height-reservedLines)

	historyStart := 0
	if len(m.history) > availableHeight {
		historyStart = len(m.history) - availableHeight
	}

	for i := historyStart; i < len(m.history); i++ {
		entry := m.history[i]
		if entry.input != "" {
			b.WriteString(mutedStyle.Render("  › ") + entry.input + "\n")
		}
		if entry.isErr {
			b.WriteString("  " + errorStyle.Render("✗ "+entry.output) + "\n")
		} else {
			b.WriteString("  " + resultStyle.Render("→ "+entry.output) + "\n")
		}
		b.WriteString("\n")
	}

	if m.showVars {
		b.WriteString(renderVarsPanel(m.vars))
		b.WriteString("\n")
	}

	if m.showHelp {
		b.WriteString(renderHelpPanel())
		b.WriteString("\n")
	}

	b.WriteString(m.textInput.View() + "\n\n")

	footer := helpKeyStyle.Render("ctrl+k") + helpDescStyle.Render(" help  ") +
		helpKeyStyle.Render("ctrl+v") + helpDescStyle.Render(" vars  ") +
		helpKeyStyle.Render("ctrl+l") + helpDescStyle.Render(" clear  ") +
		helpKeyStyle.Render("ctrl+c") + helpDescStyle.Render(" quit")
	b.WriteString(footer)

	return b.String()
}

func renderVarsPanel(vars []replVar) string {
	if len(vars) == 0 {
		return borderStyle.Render(mutedStyle.Render("No variables defined"))
	}

	lines := []string{lipgloss.NewStyle().Bold(true).Foreground(accentColor).Render("Variables")}
	varNameStyle := lipgloss.NewStyle().Foreground(highlightColor)
	for _, v := range vars {
		lines = append(lines, fmt.Sprintf("  %s: %s = %s", varNameStyle.Render(v.name), mutedStyle.Render(v.typ), v.value))
	}
	return borderStyle.Render(strings.Join(lines, "\n"))
}

func renderHelpPanel() string {
	help := []struct {
		key  string
		desc string
	}{
		{"↑/↓", "Navigate input history"},
		{"Tab", "Autocomplete"},
		{"Enter", "Execute statement or expression"},
		{":help", "Toggle this help"},
		{":vars", "Toggle variables panel"},
		{":chart", "Summarize the scratch chart"},
		{":clear", "Clear history"},
		{":reset", "Forget every statement"},
		{":quit", "Exit REPL"},
	}

	lines := []string{lipgloss.NewStyle().Bold(true).Foreground(accentColor).Render("Help")}
	for _, h := range help {
		lines = append(lines, fmt.Sprintf("  %s  %s",
			helpKeyStyle.Render(fmt.Sprintf("%-8s", h.key)),
			helpDescStyle.Render(h.desc)))
	}
	return borderStyle.Render(strings.Join(lines, "\n"))
}
