package cbs

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
)

// Script is a compiled program bound to its own machine state. A Script is
// not safe for concurrent use; compile the same source again to run it in
// parallel.
type Script struct {
	*compiled
	maxSteps uint64
	logger   *log.Logger

	vm *VM
}

// Program returns the analyzed syntax tree.
func (s *Script) Program() *Program { return s.program }

// Bytecode returns the compiled image.
func (s *Script) Bytecode() *Bytecode { return s.bytecode }

// Source returns the text the script was compiled from.
func (s *Script) Source() string { return s.source }

func (s *Script) newVM(ctx context.Context) *VM {
	vm := NewVM(s.bytecode)
	vm.SetStepLimit(s.maxSteps)
	vm.SetContext(ctx)
	return vm
}

// machine returns the VM of the last Run, creating one for scripts that
// were never run.
func (s *Script) machine(ctx context.Context) *VM {
	if s.vm == nil {
		s.vm = s.newVM(ctx)
	}
	s.vm.SetContext(ctx)
	s.vm.steps = 0
	return s.vm
}

// Run executes the top-level body on a fresh machine. Globals keep their
// final values for Global, Call and Invoke.
func (s *Script) Run(ctx context.Context) error {
	s.vm = s.newVM(ctx)
	if err := s.vm.Run(); err != nil {
		s.logger.Debug("script failed", "pc", s.vm.PC(), "steps", s.vm.Steps(), "err", err)
		return err
	}
	s.logger.Debug("script finished", "steps", s.vm.Steps())
	return nil
}

// Global returns the current value of a top-level variable, function or
// host global.
func (s *Script) Global(name string) (Value, bool) {
	if s.vm == nil {
		slot, ok := s.bytecode.Globals[name]
		if !ok {
			return Value{}, false
		}
		return s.bytecode.Slots[slot], true
	}
	return s.vm.Global(name)
}

// Call invokes the top-level function name.
func (s *Script) Call(ctx context.Context, name string, args ...Value) (Value, error) {
	fn, ok := s.Global(name)
	if !ok {
		return Value{}, fmt.Errorf("cbs: function %s not found", name)
	}
	if !fn.Callable() {
		return Value{}, newError(NotCallable, Position{}, "%s is not callable", name)
	}
	return s.Invoke(ctx, fn, args...)
}

// Invoke calls a callable value produced by this script, such as a closure a
// script handed to a host object, or a host native.
func (s *Script) Invoke(ctx context.Context, fn Value, args ...Value) (Value, error) {
	return s.machine(ctx).Invoke(fn, args...)
}

// Invoker adapts the script for host registries that call back into it.
func (s *Script) Invoker(ctx context.Context) Invoker {
	return scriptInvoker{s: s, ctx: ctx}
}

type scriptInvoker struct {
	s   *Script
	ctx context.Context
}

func (i scriptInvoker) Invoke(fn Value, args ...Value) (Value, error) {
	return i.s.Invoke(i.ctx, fn, args...)
}
