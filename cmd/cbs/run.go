package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/urfave/cli.v1"

	"github.com/chartbuild/cbscript/cbs"
	"github.com/chartbuild/cbscript/chart"
)

var (
	functionFlag = cli.StringFlag{
		Name:  "function",
		Usage: "top-level function to call after the script body has run",
	}
	untilFlag = cli.Float64Flag{
		Name:  "until",
		Usage: "advance the chart to this time, firing registered callbacks",
	}
	summaryFlag = cli.BoolFlag{
		Name:  "summary",
		Usage: "print a table of the judge lines the script built",
	}

	runCommand = cli.Command{
		Action:    runAction,
		Name:      "run",
		Usage:     "Run a script against an empty chart",
		ArgsUsage: "<script> [args...]",
		Flags:     []cli.Flag{functionFlag, untilFlag, summaryFlag, maxStepsFlag},
		Description: `The run command compiles the script, runs its body with the
global "chart" bound to a fresh chart and optionally calls one of
its functions with the remaining arguments.`,
	}

	checkCommand = cli.Command{
		Action:    checkAction,
		Name:      "check",
		Usage:     "Report diagnostics without running",
		ArgsUsage: "<script>...",
	}
)

func runAction(ctx *cli.Context) error {
	path, source, err := readScript(ctx, "run")
	if err != nil {
		return err
	}
	engine, cfg, err := makeEngine(ctx)
	if err != nil {
		return err
	}
	c := chart.New(cfg.Chart.Version)
	binding := chart.Bind(engine, c)

	script, err := engine.Compile(source)
	if err != nil {
		n := printDiagnostics(ctx.App.ErrWriter, path, source, err)
		return fmt.Errorf("compile failed: %d error(s)", n)
	}

	runCtx := context.Background()
	if err := script.Run(runCtx); err != nil {
		return fmt.Errorf("execution failed: %s", runtimeDiagnostic(path, source, err))
	}

	if name := ctx.String(functionFlag.Name); name != "" {
		args := make([]cbs.Value, 0, ctx.NArg())
		for _, raw := range ctx.Args().Tail() {
			args = append(args, parseArgument(raw))
		}
		result, err := script.Call(runCtx, name, args...)
		if err != nil {
			return fmt.Errorf("execution failed: %s", runtimeDiagnostic(path, source, err))
		}
		if !result.IsNull() {
			fmt.Fprintln(ctx.App.Writer, result.String())
		}
	}

	if ctx.IsSet(untilFlag.Name) {
		fired, err := binding.Fire(script.Invoker(runCtx), float32(ctx.Float64(untilFlag.Name)))
		engine.Logger().Info("advanced chart", "until", ctx.Float64(untilFlag.Name), "callbacks", fired)
		if err != nil {
			return fmt.Errorf("callback failed: %s", runtimeDiagnostic(path, source, err))
		}
	}

	if ctx.Bool(summaryFlag.Name) {
		printChartSummary(ctx.App.Writer, c)
	}
	return nil
}

// parseArgument turns a command-line argument into the narrowest script
// value that represents it.
func parseArgument(raw string) cbs.Value {
	if n, err := strconv.ParseInt(raw, 10, 32); err == nil {
		return cbs.NewI32(int32(n))
	}
	if f, err := strconv.ParseFloat(raw, 32); err == nil {
		return cbs.NewF32(float32(f))
	}
	if b, err := strconv.ParseBool(raw); err == nil {
		return cbs.NewBool(b)
	}
	return cbs.NewString(raw)
}

func printChartSummary(w io.Writer, c *chart.Chart) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Group", "Line", "X", "Y", "Rotation", "Alpha", "Notes", "Events"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	for _, g := range c.Groups {
		for _, l := range g.Lines {
			table.Append([]string{
				g.Name,
				l.Name,
				formatFloat(l.X),
				formatFloat(l.Y),
				formatFloat(l.Rotation),
				formatFloat(l.Alpha),
				strconv.Itoa(len(l.Notes)),
				strconv.Itoa(len(l.Events)),
			})
		}
	}
	table.Render()
	fmt.Fprintf(w, "%d line(s), %d note(s), %d tempo change(s)\n", len(c.Lines()), c.NoteCount(), len(c.Tempo))
}

func formatFloat(f float32) string {
	return strconv.FormatFloat(float64(f), 'g', -1, 32)
}

func checkAction(ctx *cli.Context) error {
	if ctx.NArg() == 0 {
		return errors.New("cbs check: script path required")
	}
	engine, cfg, err := makeEngine(ctx)
	if err != nil {
		return err
	}
	chart.Bind(engine, chart.New(cfg.Chart.Version))

	p := newPalette(ctx.App.Writer)
	failed := 0
	for _, arg := range ctx.Args() {
		path, source, err := readPath(arg)
		if err != nil {
			return err
		}
		if _, err := engine.Analyze(source); err != nil {
			failed++
			printDiagnostics(ctx.App.Writer, path, source, err)
			continue
		}
		fmt.Fprintf(ctx.App.Writer, "%s: %s\n", path, p.ok.Sprint("ok"))
	}
	if failed > 0 {
		return fmt.Errorf("cbs check: %d file(s) have errors", failed)
	}
	return nil
}
