package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/chartbuild/cbscript/cbs"
)

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

type palette struct {
	err  *color.Color
	ok   *color.Color
	path *color.Color
}

func newPalette(w io.Writer) palette {
	p := palette{
		err:  color.New(color.FgRed, color.Bold),
		ok:   color.New(color.FgGreen),
		path: color.New(color.Bold),
	}
	if !isTerminal(w) || os.Getenv("NO_COLOR") != "" {
		p.err.DisableColor()
		p.ok.DisableColor()
		p.path.DisableColor()
	}
	return p
}

// printDiagnostics writes every diagnostic in err with a code frame. It
// returns the number of diagnostics written.
func printDiagnostics(w io.Writer, path, source string, err error) int {
	p := newPalette(w)
	var ce *cbs.CompileError
	if !errors.As(err, &ce) {
		fmt.Fprintf(w, "%s: %s\n", p.path.Sprint(path), p.err.Sprint(err.Error()))
		return 1
	}
	for _, diag := range ce.Errors {
		fmt.Fprintf(w, "%s:%d:%d: %s\n",
			p.path.Sprint(path), diag.Pos.Line, diag.Pos.Column, p.err.Sprint(diag.Kind.String()))
		fmt.Fprintln(w, cbs.FormatDiagnostic(source, diag))
	}
	return len(ce.Errors)
}

// runtimeDiagnostic formats an error raised while a script ran.
func runtimeDiagnostic(path, source string, err error) string {
	var se *cbs.Error
	if errors.As(err, &se) && se.Pos.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s", path, se.Pos.Line, se.Pos.Column, cbs.FormatDiagnostic(source, se))
	}
	return err.Error()
}
