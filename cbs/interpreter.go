package cbs

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"maps"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/crypto/sha3"
)

const defaultCacheSize = 64

// Config controls how an Engine analyzes and runs scripts.
type Config struct {
	// Versions accepted by `#version`. Empty means DefaultVersions.
	Versions []string
	// CacheSize bounds the number of compiled scripts kept by source hash.
	// Zero selects the default; a negative size disables caching.
	CacheSize int
	// MaxSteps bounds the instructions a single Run or Call may execute.
	// Zero means unlimited.
	MaxSteps uint64
	Logger   *log.Logger
}

// Engine compiles chart-build scripts against a set of host globals.
type Engine struct {
	config Config
	logger *log.Logger

	mu      sync.RWMutex
	globals map[string]Value
	cache   *lru.ARCCache
}

// NewEngine constructs an Engine and registers the builtin natives.
func NewEngine(cfg Config) (*Engine, error) {
	if len(cfg.Versions) == 0 {
		cfg.Versions = DefaultVersions
	}
	for _, v := range cfg.Versions {
		if v == "" {
			return nil, fmt.Errorf("cbs: version name cannot be empty")
		}
	}
	if cfg.CacheSize == 0 {
		cfg.CacheSize = defaultCacheSize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	engine := &Engine{
		config:  cfg,
		logger:  logger,
		globals: make(map[string]Value),
	}
	if cfg.CacheSize > 0 {
		cache, err := lru.NewARC(cfg.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("cbs: compile cache: %w", err)
		}
		engine.cache = cache
	}
	for name, b := range builtins {
		engine.globals[name] = NewNative(name, b.pure, b.fn)
	}
	return engine, nil
}

// MustNewEngine constructs an Engine or panics if the config is invalid.
func MustNewEngine(cfg Config) *Engine {
	engine, err := NewEngine(cfg)
	if err != nil {
		panic(err)
	}
	return engine
}

// RegisterNative exposes a host function to scripts under name. Pure
// natives may be evaluated by the analyzer when all arguments are constant.
func (e *Engine) RegisterNative(name string, fn NativeFn, pure bool) {
	e.RegisterValue(name, NewNative(name, pure, fn))
}

// RegisterObject exposes a host object to scripts under name.
func (e *Engine) RegisterObject(name string, obj Object) {
	e.RegisterValue(name, NewObject(obj))
}

// RegisterValue exposes v as a read-only global. Scripts compiled before the
// call keep the globals they were compiled against.
func (e *Engine) RegisterValue(name string, v Value) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.globals[name] = v
	if e.cache != nil {
		e.cache.Purge()
	}
}

// Globals returns a copy of the registered host globals.
func (e *Engine) Globals() map[string]Value {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[string]Value, len(e.globals))
	maps.Copy(out, e.globals)
	return out
}

// Logger returns the engine's logger.
func (e *Engine) Logger() *log.Logger { return e.logger }

// Analyze parses and analyzes source without compiling it. Diagnostics are
// returned as a *CompileError; the program is returned either way when it
// could be parsed at all.
func (e *Engine) Analyze(source string) (*Program, error) {
	tokens, err := Tokenize(source)
	if err != nil {
		var se *Error
		if errors.As(err, &se) {
			return nil, newCompileError(source, []*Error{se})
		}
		return nil, err
	}
	program, _ := Parse(tokens)
	Analyze(program, AnalyzeOptions{Versions: e.config.Versions, Globals: e.Globals()})
	if len(program.Errors) > 0 {
		return program, newCompileError(source, program.Errors)
	}
	return program, nil
}

// Compile analyzes, compiles and verifies source. Results are cached by the
// SHA3-256 of the source until the next host registration.
func (e *Engine) Compile(source string) (*Script, error) {
	sum := sha3.Sum256([]byte(source))
	key := hex.EncodeToString(sum[:])

	e.mu.RLock()
	cache := e.cache
	e.mu.RUnlock()
	if cache != nil {
		if cached, ok := cache.Get(key); ok {
			e.logger.Debug("compile cache hit", "key", key[:12])
			return cached.(*compiled).script(e), nil
		}
	}

	start := time.Now()
	program, err := e.Analyze(source)
	if err != nil {
		e.logger.Debug("analysis failed", "key", key[:12], "err", err)
		return nil, err
	}
	bc, err := CompileProgram(program)
	if err != nil {
		return nil, err
	}
	if errs := Verify(bc); len(errs) > 0 {
		return nil, fmt.Errorf("cbs: generated bytecode failed verification: %w", errs[0])
	}
	c := &compiled{program: program, bytecode: bc, source: source}
	if cache != nil {
		cache.Add(key, c)
	}
	e.logger.Debug("compiled script",
		"key", key[:12],
		"bytes", len(bc.Code),
		"slots", len(bc.Slots),
		"functions", len(bc.Functions),
		"elapsed", time.Since(start),
	)
	return c.script(e), nil
}

// CacheLen reports the number of compiled scripts currently cached.
func (e *Engine) CacheLen() int {
	if e.cache == nil {
		return 0
	}
	return e.cache.Len()
}

// compiled is the immutable result of a compilation; every Script built
// from it runs on its own VM.
type compiled struct {
	program  *Program
	bytecode *Bytecode
	source   string
}

func (c *compiled) script(e *Engine) *Script {
	return &Script{compiled: c, maxSteps: e.config.MaxSteps, logger: e.logger}
}
