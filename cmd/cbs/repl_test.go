package main

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/chartbuild/cbscript/cbs"
	"github.com/chartbuild/cbscript/chart"
)

func newTestREPL() replModel {
	return newREPLModel(func() (*cbs.Engine, *chart.Chart, error) {
		engine, err := cbs.NewEngine(cbs.Config{CacheSize: -1, MaxSteps: 100_000})
		if err != nil {
			return nil, nil, err
		}
		c := chart.New("1.0")
		chart.Bind(engine, c)
		return engine, c, nil
	}, "v0")
}

func enter(t *testing.T, m replModel, input string) (replModel, tea.Cmd) {
	t.Helper()
	m.textInput.SetValue(input)
	model, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	rm, ok := model.(replModel)
	if !ok {
		t.Fatalf("unexpected model type %T", model)
	}
	return rm, cmd
}

func lastOutput(t *testing.T, m replModel) historyEntry {
	t.Helper()
	if len(m.history) == 0 {
		t.Fatalf("history is empty")
	}
	return m.history[len(m.history)-1]
}

func TestUpdateQuitCommandReturnsQuit(t *testing.T) {
	rm, cmd := enter(t, newTestREPL(), ":quit")

	if !rm.quitting {
		t.Fatalf("quitting flag not set")
	}
	if rm.textInput.Value() != "" {
		t.Fatalf("input not cleared after quit command")
	}
	if cmd == nil {
		t.Fatalf("expected tea.Quit command")
	}
	if msg := cmd(); msg != nil {
		if _, ok := msg.(tea.QuitMsg); !ok {
			t.Fatalf("expected QuitMsg, got %T", msg)
		}
	}
}

func TestUpdateNonQuitCommandDoesNotReturnCmd(t *testing.T) {
	rm, cmd := enter(t, newTestREPL(), ":help")

	if cmd != nil {
		t.Fatalf("expected no command for non-quit input")
	}
	if rm.quitting {
		t.Fatalf("quitting should remain false")
	}
	if !rm.showHelp {
		t.Fatalf("help toggle should be enabled")
	}
	if rm.textInput.Value() != "" {
		t.Fatalf("input not cleared after command")
	}
}

func TestUnknownCommandIsReported(t *testing.T) {
	rm, _ := enter(t, newTestREPL(), ":bogus")
	entry := lastOutput(t, rm)
	if !entry.isErr || !strings.Contains(entry.output, ":bogus") {
		t.Fatalf("unexpected entry: %#v", entry)
	}
}

func TestEvaluateDeclarationJoinsTranscript(t *testing.T) {
	m := newTestREPL()

	m, output, isErr := m.evaluate("let score = 42")
	if isErr {
		t.Fatalf("unexpected eval error: %s", output)
	}
	if output != "score = 42" {
		t.Fatalf("unexpected output %q", output)
	}
	if len(m.transcript) != 2 || m.transcript[1] != "let score = 42;" {
		t.Fatalf("unexpected transcript %q", m.transcript)
	}

	m, output, isErr = m.evaluate("score * 2")
	if isErr || output != "84" {
		t.Fatalf("unexpected expression result %q (err %v)", output, isErr)
	}
	if len(m.transcript) != 2 {
		t.Fatalf("pure expressions must not join the transcript: %q", m.transcript)
	}
}

func TestEvaluateEqualityDoesNotOverwriteVariable(t *testing.T) {
	m := newTestREPL()
	m, _, _ = m.evaluate("let a = 5;")

	m, output, isErr := m.evaluate("a == 5")
	if isErr || output != "true" {
		t.Fatalf("unexpected result %q (err %v)", output, isErr)
	}

	m, output, isErr = m.evaluate("a")
	if isErr || output != "5" {
		t.Fatalf("variable a was clobbered: %q", output)
	}
}

func TestEvaluateErrorsLeaveTranscriptAlone(t *testing.T) {
	m := newTestREPL()
	m, output, isErr := m.evaluate("let x = missing;")
	if !isErr || !strings.Contains(output, "UndefinedIdentifier") {
		t.Fatalf("expected analysis error, got %q", output)
	}
	if len(m.transcript) != 1 {
		t.Fatalf("failed input joined the transcript: %q", m.transcript)
	}
}

func TestEvaluateBuildsChart(t *testing.T) {
	m := newTestREPL()
	m, _, isErr := m.evaluate(`let judge = chart.group("main").line("judge");`)
	if isErr {
		t.Fatalf("declaration failed")
	}
	m, output, isErr := m.evaluate(`judge.note(0, "tap")`)
	if isErr {
		t.Fatalf("note failed: %s", output)
	}
	m, output, isErr = m.evaluate("len(judge.notes)")
	if isErr || output != "1" {
		t.Fatalf("unexpected note count %q (err %v)", output, isErr)
	}

	rm, _ := enter(t, m, ":chart")
	if entry := lastOutput(t, rm); !strings.Contains(entry.output, "1 line(s), 1 note(s)") {
		t.Fatalf("unexpected chart summary: %q", entry.output)
	}

	rm, _ = enter(t, rm, ":reset")
	if len(rm.transcript) != 1 || rm.chart != nil || len(rm.vars) != 0 {
		t.Fatalf("reset kept session state")
	}
}

func TestVarsPanelHidesInternals(t *testing.T) {
	m := newTestREPL()
	m, _, _ = m.evaluate("let n = 1;")
	m, _, _ = m.evaluate("n += 1;")
	m, _, _ = m.evaluate("n + 10")

	if len(m.vars) != 1 || m.vars[0].name != "n" || m.vars[0].value != "2" {
		t.Fatalf("unexpected vars %#v", m.vars)
	}
	if panel := renderVarsPanel(m.vars); !strings.Contains(panel, "Variables") {
		t.Fatalf("unexpected vars panel: %q", panel)
	}
}

func TestAutocompleteSingleMatch(t *testing.T) {
	m := newTestREPL()
	m.textInput.SetValue("let x = cla")
	m = m.handleAutocomplete()
	if got := m.textInput.Value(); got != "let x = clamp" {
		t.Fatalf("unexpected completion %q", got)
	}
}

func TestReplExpression(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"1 + 2;", true},
		{"f(3);", true},
		{"x = 3;", false},
		{"x++;", false},
		{"let y = 2;", false},
		{"if (true) { }", false},
	}
	for _, tt := range tests {
		if _, got := replExpression(tt.input); got != tt.want {
			t.Fatalf("replExpression(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}
