// Command cbs runs, checks and inspects chart-build scripts.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/urfave/cli.v1"
)

const appVersion = "0.1.0"

var (
	configFileFlag = cli.StringFlag{
		Name:  "config",
		Usage: "TOML configuration file",
	}
	logLevelFlag = cli.StringFlag{
		Name:  "log-level",
		Usage: "log level: debug, info, warn or error",
	}
)

func main() {
	if err := runCLI(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runCLI(args []string) error {
	return newApp(os.Stdout, os.Stderr).Run(args)
}

func newApp(stdout, stderr io.Writer) *cli.App {
	app := cli.NewApp()
	app.Name = "cbs"
	app.Usage = "chart-build script toolchain"
	app.Version = appVersion
	app.Writer = stdout
	app.ErrWriter = stderr
	app.Flags = []cli.Flag{configFileFlag, logLevelFlag}
	app.Commands = []cli.Command{
		runCommand,
		checkCommand,
		emitCommand,
		fmtCommand,
		lspCommand,
		replCommand,
	}
	app.Action = func(ctx *cli.Context) error {
		if ctx.NArg() > 0 {
			return fmt.Errorf("invalid command %q", ctx.Args().First())
		}
		if err := cli.ShowAppHelp(ctx); err != nil {
			return err
		}
		return fmt.Errorf("invalid command: none given")
	}
	return app
}

// readScript loads the script named by the first argument.
func readScript(ctx *cli.Context, command string) (string, string, error) {
	path := ctx.Args().First()
	if path == "" {
		return "", "", fmt.Errorf("cbs %s: script path required", command)
	}
	return readPath(path)
}

func readPath(path string) (string, string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", "", fmt.Errorf("resolve script path: %w", err)
	}
	input, err := os.ReadFile(abs)
	if err != nil {
		return "", "", fmt.Errorf("read script: %w", err)
	}
	return abs, string(input), nil
}
