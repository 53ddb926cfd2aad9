package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/urfave/cli.v1"

	"github.com/chartbuild/cbscript/cbs"
)

const scriptExt = ".cbs"

var (
	writeFlag = cli.BoolFlag{
		Name:  "w",
		Usage: "write result to source files instead of stdout",
	}
	checkFormatFlag = cli.BoolFlag{
		Name:  "check",
		Usage: "fail if any source file needs formatting",
	}

	fmtCommand = cli.Command{
		Action:    fmtAction,
		Name:      "fmt",
		Usage:     "Normalize whitespace in scripts",
		ArgsUsage: "<path>...",
		Flags:     []cli.Flag{writeFlag, checkFormatFlag},
	}
)

func fmtAction(ctx *cli.Context) error {
	targets := []string(ctx.Args())
	if len(targets) == 0 {
		return errors.New("cbs fmt: path required")
	}
	write, check := ctx.Bool(writeFlag.Name), ctx.Bool(checkFormatFlag.Name)

	files, err := collectScriptFiles(targets)
	if err != nil {
		return err
	}

	changedCount := 0
	for _, path := range files {
		originalBytes, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		original := string(originalBytes)
		if _, err := cbs.Tokenize(original); err != nil {
			return fmt.Errorf("cbs fmt: %s: %w", path, err)
		}
		formatted := formatScriptSource(original)
		changed := formatted != original
		if changed {
			changedCount++
		}

		switch {
		case write && changed:
			info, err := os.Stat(path)
			if err != nil {
				return fmt.Errorf("stat %s: %w", path, err)
			}
			if err := os.WriteFile(path, []byte(formatted), info.Mode().Perm()); err != nil {
				return fmt.Errorf("write %s: %w", path, err)
			}
		case check && changed:
			fmt.Fprintln(ctx.App.Writer, path)
		case !write && !check:
			fmt.Fprint(ctx.App.Writer, formatted)
		}
	}

	if check && changedCount > 0 {
		return fmt.Errorf("cbs fmt: %d file(s) need formatting", changedCount)
	}
	return nil
}

func collectScriptFiles(targets []string) ([]string, error) {
	seen := make(map[string]struct{})
	files := make([]string, 0)
	addFile := func(path string, explicit bool) {
		if !explicit && filepath.Ext(path) != scriptExt {
			return
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			return
		}
		if _, ok := seen[abs]; ok {
			return
		}
		seen[abs] = struct{}{}
		files = append(files, abs)
	}

	for _, target := range targets {
		info, err := os.Stat(target)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", target, err)
		}
		if !info.IsDir() {
			addFile(target, true)
			continue
		}
		err = filepath.WalkDir(target, func(path string, entry fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if entry.IsDir() {
				return nil
			}
			addFile(path, false)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", target, err)
		}
	}

	sort.Strings(files)
	return files, nil
}

// formatScriptSource normalizes line endings, strips trailing whitespace,
// collapses runs of blank lines and ends the file with one newline.
func formatScriptSource(source string) string {
	normalized := strings.ReplaceAll(source, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")

	lines := strings.Split(normalized, "\n")
	out := make([]string, 0, len(lines))
	blank := 0
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if line == "" {
			blank++
			if blank > 1 {
				continue
			}
		} else {
			blank = 0
		}
		out = append(out, line)
	}

	joined := strings.Join(out, "\n")
	joined = strings.Trim(joined, "\n")
	return joined + "\n"
}
