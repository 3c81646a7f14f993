// Package vm implements the stack-based bytecode interpreter: it drives a
// Compiler to fill a Chunk, then walks that Chunk's instructions with a
// fixed-capacity value stack, a global variable table, and the object heap
// shared by every compile on this VM instance.
package vm

import (
	"fmt"
	"io"
	"os"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"loxvm/internal/chunk"
	"loxvm/internal/compiler"
	"loxvm/internal/value"
)

// InterpretResult reports how Interpret finished, for callers (the REPL and
// file driver) to translate into process exit codes.
type InterpretResult int

const (
	InterpretOK InterpretResult = iota
	InterpretCompileError
	InterpretRuntimeError
)

// stackMax is the operand stack's fixed capacity (spec §3).
const stackMax = 256

// VM is long-lived across multiple Interpret calls (each REPL line, or a
// single whole-file run): the heap and the global table persist so that
// `var x = 1;` on one REPL line is visible to the next.
type VM struct {
	chunk   *chunk.Chunk
	ip      int
	stack   [stackMax]value.Value
	sp      int
	globals map[string]value.Value
	heap    *value.Heap
	log     *logrus.Logger

	trace       bool
	disassemble bool

	out    io.Writer
	errOut io.Writer
}

// New builds a VM. log is used for gated execution-trace and disassembly
// output (configure its level to Debug and point it at stdout to see either);
// trace/disassemble independently select which of those two outputs to emit.
// print output and diagnostics default to os.Stdout/os.Stderr; tests retarget
// them with SetOutput.
func New(log *logrus.Logger, trace, disassemble bool) *VM {
	return &VM{
		globals:     make(map[string]value.Value),
		heap:        value.NewHeap(),
		log:         log,
		trace:       trace,
		disassemble: disassemble,
		out:         os.Stdout,
		errOut:      os.Stderr,
	}
}

// SetOutput retargets print output (out) and diagnostics (errOut), mirroring
// cobra's SetOut/SetErr. Tests use this to capture output without touching
// the process's real stdio.
func (vm *VM) SetOutput(out, errOut io.Writer) {
	vm.out = out
	vm.errOut = errOut
}

// Close releases the VM's heap. Call once the VM is done for good (process
// exit, or REPL EOF) — not between Interpret calls.
func (vm *VM) Close() {
	vm.heap.Teardown()
}

// Interpret compiles source and, on success, runs it to completion.
func (vm *VM) Interpret(source string) InterpretResult {
	c := chunk.New()
	comp := compiler.New(source, vm.heap, c)
	if err := comp.Compile(); err != nil {
		vm.printCompileErrors(err)
		return InterpretCompileError
	}

	if vm.disassemble {
		chunk.DisassembleAll(c, vm.heap, "code", vm.log)
	}

	vm.chunk = c
	vm.ip = 0
	return vm.run()
}

func (vm *VM) push(v value.Value) {
	vm.stack[vm.sp] = v
	vm.sp++
}

func (vm *VM) pop() value.Value {
	vm.sp--
	return vm.stack[vm.sp]
}

func (vm *VM) peek(distance int) value.Value {
	return vm.stack[vm.sp-1-distance]
}

func (vm *VM) resetStack() {
	vm.sp = 0
}

// runtimeError reports a runtime failure with the current instruction's
// source line (spec §7) and unwinds the stack so the VM is ready for the
// next Interpret call.
func (vm *VM) runtimeError(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	line := vm.chunk.Lines[vm.ip-1]
	fmt.Fprintf(vm.errOut, "%s\n[line %d] in script\n", msg, line)
	vm.resetStack()
}

// printCompileErrors prints one diagnostic per line to stderr. errorAt
// already formats each individual message; multierror just accumulates them.
func (vm *VM) printCompileErrors(err error) {
	if merr, ok := err.(*multierror.Error); ok {
		for _, e := range merr.Errors {
			fmt.Fprintln(vm.errOut, e)
		}
		return
	}
	fmt.Fprintln(vm.errOut, err)
}

func (vm *VM) readByte() byte {
	b := vm.chunk.Code[vm.ip]
	vm.ip++
	return b
}

func (vm *VM) readConstant() value.Value {
	return vm.chunk.Constants[vm.readByte()]
}

func (vm *VM) run() InterpretResult {
	for {
		if vm.trace {
			vm.traceStack()
			chunk.DisassembleInstruction(vm.chunk, vm.heap, vm.ip, vm.log)
		}

		switch op := chunk.OpCode(vm.readByte()); op {
		case chunk.OpConstant:
			vm.push(vm.readConstant())

		case chunk.OpNil:
			vm.push(value.NewNil())
		case chunk.OpTrue:
			vm.push(value.NewBool(true))
		case chunk.OpFalse:
			vm.push(value.NewBool(false))

		case chunk.OpPop:
			vm.pop()

		case chunk.OpGetLocal:
			slot := vm.readByte()
			vm.push(vm.stack[slot])
		case chunk.OpSetLocal:
			slot := vm.readByte()
			vm.stack[slot] = vm.peek(0)

		case chunk.OpGetGlobal:
			name := vm.heap.String(vm.readConstant())
			v, ok := vm.globals[name]
			if !ok {
				vm.runtimeError("Undefined variable '%s'.", name)
				return InterpretRuntimeError
			}
			vm.push(v)
		case chunk.OpDefineGlobal:
			name := vm.heap.String(vm.readConstant())
			vm.globals[name] = vm.peek(0)
			vm.pop()
		case chunk.OpSetGlobal:
			name := vm.heap.String(vm.readConstant())
			if _, ok := vm.globals[name]; !ok {
				vm.runtimeError("Undefined variable '%s'.", name)
				return InterpretRuntimeError
			}
			vm.globals[name] = vm.peek(0)

		case chunk.OpEqual:
			b := vm.pop()
			a := vm.pop()
			vm.push(value.NewBool(value.Equal(a, b)))
		case chunk.OpGreater:
			if !vm.numericBinaryOp(func(a, b float64) value.Value { return value.NewBool(a > b) }) {
				return InterpretRuntimeError
			}
		case chunk.OpLess:
			if !vm.numericBinaryOp(func(a, b float64) value.Value { return value.NewBool(a < b) }) {
				return InterpretRuntimeError
			}

		case chunk.OpAdd:
			if !vm.add() {
				return InterpretRuntimeError
			}
		case chunk.OpSubtract:
			if !vm.numericBinaryOp(func(a, b float64) value.Value { return value.NewNumber(a - b) }) {
				return InterpretRuntimeError
			}
		case chunk.OpMultiply:
			if !vm.numericBinaryOp(func(a, b float64) value.Value { return value.NewNumber(a * b) }) {
				return InterpretRuntimeError
			}
		case chunk.OpDivide:
			if !vm.numericBinaryOp(func(a, b float64) value.Value { return value.NewNumber(a / b) }) {
				return InterpretRuntimeError
			}

		case chunk.OpNot:
			vm.push(value.NewBool(value.IsFalsey(vm.pop())))
		case chunk.OpNegate:
			if vm.peek(0).Kind != value.Number {
				vm.runtimeError("Operand(s) must be number(s).")
				return InterpretRuntimeError
			}
			vm.push(value.NewNumber(-vm.pop().Num))

		case chunk.OpPrint:
			fmt.Fprintln(vm.out, value.Render(vm.heap, vm.pop()))

		case chunk.OpReturn:
			return InterpretOK
		}
	}
}

func (vm *VM) numericBinaryOp(fn func(a, b float64) value.Value) bool {
	if vm.peek(0).Kind != value.Number || vm.peek(1).Kind != value.Number {
		vm.runtimeError("Operand(s) must be number(s).")
		return false
	}
	b := vm.pop()
	a := vm.pop()
	vm.push(fn(a.Num, b.Num))
	return true
}

func (vm *VM) add() bool {
	a, b := vm.peek(1), vm.peek(0)
	switch {
	case a.Kind == value.Number && b.Kind == value.Number:
		vm.pop()
		vm.pop()
		vm.push(value.NewNumber(a.Num + b.Num))
		return true
	case a.Kind == value.Obj && b.Kind == value.Obj:
		vm.pop()
		vm.pop()
		vm.push(vm.heap.InternString(vm.heap.String(a) + vm.heap.String(b)))
		return true
	default:
		vm.runtimeError("Operands must be two numbers or two strings.")
		return false
	}
}

func (vm *VM) traceStack() {
	if vm.sp == 0 {
		vm.log.Debug("          ")
		return
	}
	parts := make([]string, vm.sp)
	for i := 0; i < vm.sp; i++ {
		parts[i] = fmt.Sprintf("[ %s ]", value.RenderQuoted(vm.heap, vm.stack[i]))
	}
	line := ""
	for _, p := range parts {
		line += p
	}
	vm.log.Debug(line)
}
