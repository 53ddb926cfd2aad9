package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"reflect"

	"github.com/charmbracelet/log"
	"github.com/naoina/toml"
	"gopkg.in/urfave/cli.v1"

	"github.com/chartbuild/cbscript/cbs"
)

// These settings ensure that TOML keys use the same names as Go struct fields.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string {
		return key
	},
	FieldToKey: func(rt reflect.Type, field string) string {
		return field
	},
	MissingField: func(rt reflect.Type, field string) error {
		return fmt.Errorf("field '%s' is not defined in %s", field, rt.String())
	},
}

type engineConfig struct {
	Versions  []string `toml:",omitempty"`
	CacheSize int
	MaxSteps  uint64
}

type chartConfig struct {
	Version string
}

type logConfig struct {
	Level string
}

type cbsConfig struct {
	Engine engineConfig
	Chart  chartConfig
	Log    logConfig
}

func defaultConfig() cbsConfig {
	return cbsConfig{
		Engine: engineConfig{MaxSteps: 50_000_000},
		Chart:  chartConfig{Version: "1.0"},
		Log:    logConfig{Level: "warn"},
	}
}

func loadConfig(file string, cfg *cbsConfig) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	err = tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(cfg)
	// Add file name to errors that have a line number.
	if _, ok := err.(*toml.LineError); ok {
		err = errors.New(file + ", " + err.Error())
	}
	return err
}

var maxStepsFlag = cli.Uint64Flag{
	Name:  "max-steps",
	Usage: "stop scripts after this many VM instructions (0 = unlimited)",
}

// makeConfig loads defaults, then the config file, then flags.
func makeConfig(ctx *cli.Context) (cbsConfig, error) {
	cfg := defaultConfig()
	if file := ctx.GlobalString(configFileFlag.Name); file != "" {
		if err := loadConfig(file, &cfg); err != nil {
			return cfg, err
		}
	}
	if ctx.GlobalIsSet(logLevelFlag.Name) {
		cfg.Log.Level = ctx.GlobalString(logLevelFlag.Name)
	}
	if ctx.IsSet(maxStepsFlag.Name) {
		cfg.Engine.MaxSteps = ctx.Uint64(maxStepsFlag.Name)
	}
	return cfg, nil
}

func makeLogger(ctx *cli.Context, cfg cbsConfig) (*log.Logger, error) {
	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	return log.NewWithOptions(ctx.App.ErrWriter, log.Options{
		Level:  level,
		Prefix: "cbs",
	}), nil
}

// makeEngine builds an engine from the merged configuration.
func makeEngine(ctx *cli.Context) (*cbs.Engine, cbsConfig, error) {
	cfg, err := makeConfig(ctx)
	if err != nil {
		return nil, cfg, err
	}
	logger, err := makeLogger(ctx, cfg)
	if err != nil {
		return nil, cfg, err
	}
	engine, err := cbs.NewEngine(cbs.Config{
		Versions:  cfg.Engine.Versions,
		CacheSize: cfg.Engine.CacheSize,
		MaxSteps:  cfg.Engine.MaxSteps,
		Logger:    logger,
	})
	if err != nil {
		return nil, cfg, err
	}
	return engine, cfg, nil
}
