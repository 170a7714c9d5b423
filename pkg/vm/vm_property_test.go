package vm

import (
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/unitscript/unitscript/pkg/compiler"
	"github.com/unitscript/unitscript/pkg/host"
	"github.com/unitscript/unitscript/pkg/opcode"
)

// TestPropertyHaltIsTerminalRegardlessOfBudget checks that HALT is terminal
// and idempotent: once reached, repeated Run calls of any budget never
// change state again.
func TestPropertyHaltIsTerminalRegardlessOfBudget(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("stepping a halted VM is always a no-op", prop.ForAll(
		func(extraBudget int) bool {
			v := mustCompileVM(t, "x = 1\ny = x + 1\n")
			v.Run(1000)
			if !v.GetState().Halted {
				return false
			}
			before := v.GetState()
			v.Run(extraBudget)
			after := v.GetState()
			return reflect.DeepEqual(before, after)
		},
		gen.IntRange(0, 50),
	))

	properties.TestingRun(t)
}

// TestPropertyStackDepthZeroAtTopLevelStatementBoundaries checks that the
// operand stack returns to empty between top-level statements, by running
// a varying number of simple arithmetic assignment statements to
// completion and inspecting the stack.
func TestPropertyStackDepthZeroAtTopLevelStatementBoundaries(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("the operand stack is empty once the program halts", prop.ForAll(
		func(n int) bool {
			src := ""
			for i := 0; i < n; i++ {
				src += "v = 1 + 2 * 3\n"
			}
			if src == "" {
				src = "v = 0\n"
			}
			v := mustCompileVM(t, src)
			v.Run(100000)
			return len(v.stack) == 0
		},
		gen.IntRange(0, 20),
	))

	properties.TestingRun(t)
}

// TestPropertyJumpTargetsAlwaysInRange checks that every jump instruction's
// Arg is a valid index into the owning program's Code (or exactly its
// length, for a jump to end-of-program), across randomly sized for-loop
// bodies.
func TestPropertyJumpTargetsAlwaysInRange(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("jump targets never point outside the code array", prop.ForAll(
		func(n int) bool {
			src := "total = 0\nfor x in ["
			for i := 0; i < n; i++ {
				if i > 0 {
					src += ", "
				}
				src += "1"
			}
			src += "]:\n    if x == 1:\n        total += 1\n    else:\n        continue\n"
			prog, diags := compiler.Compile(src, host.AnyTag, nil)
			if len(diags) != 0 {
				return false
			}
			return allJumpsInRange(prog)
		},
		gen.IntRange(0, 10),
	))

	properties.TestingRun(t)
}

func mustCompileVM(t *testing.T, src string) *VM {
	t.Helper()
	prog, diags := compiler.Compile(src, host.AnyTag, nil)
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %+v", diags)
	}
	return New(prog)
}

// allJumpsInRange checks prog and every nested function body recursively,
// since a FUNCTION_DEF's Body is a wholly separate Program with its own
// Code slice and jump targets are always relative to the owning Program.
func allJumpsInRange(prog *opcode.Program) bool {
	for _, instr := range prog.Code {
		if !instr.Op.IsJump() {
			continue
		}
		target, ok := instr.Arg.(int)
		if !ok || target < 0 || target > len(prog.Code) {
			return false
		}
	}
	for _, fn := range prog.Functions {
		if !allJumpsInRange(fn.Body) {
			return false
		}
	}
	return true
}
