package main_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/project-octo/octovm/internal/asm"
	"github.com/project-octo/octovm/internal/log"
	"github.com/project-octo/octovm/internal/monitor"
	"github.com/project-octo/octovm/internal/vm"
)

type testHarness struct {
	*testing.T
}

// timeout is how long to wait for the machine to stop running. It is very likely to take less
// than 200 ms.
var (
	timeout    = 1 * time.Second
	statusTick = 25 * time.Millisecond
)

// Context creates a test context. The context is cancelled after a timeout.
func (testHarness) Context() (ctx context.Context,
	cause context.CancelCauseFunc,
	cancel context.CancelFunc,
) {
	ctx = context.Background()
	ctx, cause = context.WithCancelCause(ctx)
	ctx, cancel = context.WithTimeout(ctx, timeout)

	return ctx, cause, cancel
}

func (testHarness) Make() *vm.VM {
	return vm.New(1, 256, 128,
		monitor.WithDefaultSystemImage(),
		vm.WithUserMode(),
		vm.WithEntryPoint(0x3800),
	)
}

func TestMain(tt *testing.T) {
	t := testHarness{tt}
	start := time.Now()

	log.LogLevel.Set(log.Error)

	machine := t.Make()

	parser := asm.NewParser(log.DefaultLogger())
	parser.Parse(strings.NewReader("\n.org 0x3800\nhlt\n"))

	if err := parser.Err(); err != nil {
		t.Fatalf("parse: %s", err)
	}

	code, err := asm.NewAssembler().Assemble(parser.Statements())
	if err != nil {
		t.Fatalf("assemble: %s", err)
	}

	loader := vm.NewLoader(machine.Bus)
	if _, err := loader.Load(code); err != nil {
		t.Fatalf("load: %s", err)
	}

	ctx, cause, cancel := t.Context()
	defer cancel()

	go func() {
		for {
			select {
			case <-time.After(statusTick):
				t.Log("in progress, PC:", machine.CPU.PC.String(), "mode:", machine.CPU.Mode.String())
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		t.Logf("running")

		err := machine.Run(ctx)

		select {
		case <-ctx.Done():
			return
		default:
		}

		if err != nil {
			t.Error(err)
			cause(err)
		}

		cancel()
	}()

	<-ctx.Done()

	elapsed := time.Since(start)
	err = context.Cause(ctx)

	switch {
	case err == nil:
		t.Logf("test: ok, elapsed: %s", elapsed)
	case errors.Is(err, context.Canceled):
		t.Logf("test: ok, err: %s, elapsed: %s", err, elapsed)
	default:
		t.Errorf("test: error: %s: elapsed: %s, %s", err, elapsed, timeout)
	}
}
