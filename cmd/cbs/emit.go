package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/davecgh/go-spew/spew"
	"github.com/olekukonko/tablewriter"
	"gopkg.in/urfave/cli.v1"

	"github.com/chartbuild/cbscript/cbs"
	"github.com/chartbuild/cbscript/chart"
)

var (
	parseOnlyFlag = cli.BoolFlag{
		Name:  "parse-only",
		Usage: "show the tree before analysis",
	}
	rawFlag = cli.BoolFlag{
		Name:  "raw",
		Usage: "dump the Go structures instead of the s-expression form",
	}
	depthFlag = cli.IntFlag{
		Name:  "depth",
		Usage: "maximum nesting depth of --raw dumps",
		Value: 8,
	}
	slotsFlag = cli.BoolFlag{
		Name:  "slots",
		Usage: "also print the slot table",
	}

	emitCommand = cli.Command{
		Name:  "emit",
		Usage: "Print an intermediate form of a script",
		Subcommands: []cli.Command{
			{
				Action:    emitTokensAction,
				Name:      "tokens",
				Usage:     "Print the token stream",
				ArgsUsage: "<script>",
			},
			{
				Action:    emitASTAction,
				Name:      "ast",
				Usage:     "Print the syntax tree",
				ArgsUsage: "<script>",
				Flags:     []cli.Flag{parseOnlyFlag, rawFlag, depthFlag},
			},
			{
				Action:    emitBytecodeAction,
				Name:      "bytecode",
				Usage:     "Print the disassembled bytecode",
				ArgsUsage: "<script>",
				Flags:     []cli.Flag{slotsFlag},
			},
		},
	}
)

func emitTokensAction(ctx *cli.Context) error {
	_, source, err := readScript(ctx, "emit tokens")
	if err != nil {
		return err
	}
	tokens, err := cbs.Tokenize(source)
	for _, tok := range tokens {
		fmt.Fprintf(ctx.App.Writer, "%d:%d\t%s\t%q\n", tok.Pos.Line, tok.Pos.Column, tok.Type, tok.Literal)
	}
	return err
}

func emitASTAction(ctx *cli.Context) error {
	path, source, err := readScript(ctx, "emit ast")
	if err != nil {
		return err
	}

	var program *cbs.Program
	if ctx.Bool(parseOnlyFlag.Name) {
		tokens, err := cbs.Tokenize(source)
		if err != nil {
			printDiagnostics(ctx.App.ErrWriter, path, source, err)
			return fmt.Errorf("cbs emit ast: cannot tokenize %s", path)
		}
		program, _ = cbs.Parse(tokens)
	} else {
		engine, cfg, err := makeEngine(ctx)
		if err != nil {
			return err
		}
		chart.Bind(engine, chart.New(cfg.Chart.Version))
		program, err = engine.Analyze(source)
		if program == nil {
			printDiagnostics(ctx.App.ErrWriter, path, source, err)
			return fmt.Errorf("cbs emit ast: cannot parse %s", path)
		}
		if err != nil {
			printDiagnostics(ctx.App.ErrWriter, path, source, err)
		}
	}

	if ctx.Bool(rawFlag.Name) {
		dumper := spew.ConfigState{
			Indent:                  "  ",
			MaxDepth:                ctx.Int(depthFlag.Name),
			DisablePointerAddresses: true,
			DisableCapacities:       true,
			SortKeys:                true,
		}
		dumper.Fdump(ctx.App.Writer, program.Body)
		return nil
	}
	fmt.Fprintln(ctx.App.Writer, cbs.Sprint(program))
	return nil
}

func emitBytecodeAction(ctx *cli.Context) error {
	path, source, err := readScript(ctx, "emit bytecode")
	if err != nil {
		return err
	}
	engine, cfg, err := makeEngine(ctx)
	if err != nil {
		return err
	}
	chart.Bind(engine, chart.New(cfg.Chart.Version))
	script, err := engine.Compile(source)
	if err != nil {
		n := printDiagnostics(ctx.App.ErrWriter, path, source, err)
		return fmt.Errorf("compile failed: %d error(s)", n)
	}
	bc := script.Bytecode()
	if err := writeInstructions(ctx.App.Writer, bc); err != nil {
		return err
	}
	if ctx.Bool(slotsFlag.Name) {
		writeSlots(ctx.App.Writer, bc)
	}
	return nil
}

func writeInstructions(w io.Writer, bc *cbs.Bytecode) error {
	instructions, err := bc.Instructions()
	if err != nil {
		return err
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"PC", "Function", "Instruction"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	for _, ins := range instructions {
		fn, _ := bc.FunctionAt(ins.PC)
		table.Append([]string{strconv.FormatUint(uint64(ins.PC), 10), fn, ins.Format(bc.SlotNames)})
	}
	table.Render()
	return nil
}

func writeSlots(w io.Writer, bc *cbs.Bytecode) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Slot", "Name", "Type", "Initial"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	for i, v := range bc.Slots {
		name := ""
		if i < len(bc.SlotNames) {
			name = bc.SlotNames[i]
		}
		table.Append([]string{strconv.Itoa(i), name, v.Type().Name(), v.String()})
	}
	table.Render()
}
