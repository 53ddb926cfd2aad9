package cbs

import (
	"fmt"
	"strconv"
	"strings"
)

// FormatDiagnostic renders err followed by a code frame pointing at its
// position in source.
func FormatDiagnostic(source string, err *Error) string {
	frame := formatCodeFrame(source, err.Pos)
	if frame == "" {
		return err.Error()
	}
	return err.Error() + "\n" + frame
}

func formatCodeFrame(source string, pos Position) string {
	if source == "" || pos.Line <= 0 {
		return ""
	}

	lines := strings.Split(strings.ReplaceAll(source, "\r\n", "\n"), "\n")
	if pos.Line > len(lines) {
		return ""
	}

	rawRunes := []rune(lines[pos.Line-1])
	column := pos.Column
	if column <= 0 {
		column = 1
	}
	if column > len(rawRunes)+1 {
		column = len(rawRunes) + 1
	}

	// Tabs are expanded so the caret lines up regardless of terminal settings.
	lineText := expandTabs(string(rawRunes))
	caretPad := len([]rune(expandTabs(string(rawRunes[:column-1]))))

	lineLabel := strconv.Itoa(pos.Line)
	gutterPad := strings.Repeat(" ", len(lineLabel))

	var b strings.Builder
	fmt.Fprintf(&b, "  --> line %d, column %d\n", pos.Line, column)
	if pos.Line > 1 {
		prev := expandTabs(lines[pos.Line-2])
		if strings.TrimSpace(prev) != "" {
			fmt.Fprintf(&b, " %*d | %s\n", len(lineLabel), pos.Line-1, prev)
		}
	}
	fmt.Fprintf(&b, " %s | %s\n", lineLabel, lineText)
	fmt.Fprintf(&b, " %s | %s^", gutterPad, strings.Repeat(" ", caretPad))
	return b.String()
}

func expandTabs(s string) string {
	return strings.ReplaceAll(s, "\t", "    ")
}
