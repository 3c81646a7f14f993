// Package chunk is the growable bytecode buffer the compiler emits into and
// the VM reads from: a byte stream, a parallel per-instruction line table,
// and a constant pool.
package chunk

import (
	"fmt"

	"loxvm/internal/value"
)

type OpCode byte

const (
	OpConstant OpCode = iota
	OpNil
	OpTrue
	OpFalse
	OpPop
	OpGetLocal
	OpSetLocal
	OpGetGlobal
	OpDefineGlobal
	OpSetGlobal
	OpEqual
	OpGreater
	OpLess
	OpAdd
	OpSubtract
	OpMultiply
	OpDivide
	OpNot
	OpNegate
	OpPrint
	OpReturn
)

var names = map[OpCode]string{
	OpConstant:     "OP_CONSTANT",
	OpNil:          "OP_NIL",
	OpTrue:         "OP_TRUE",
	OpFalse:        "OP_FALSE",
	OpPop:          "OP_POP",
	OpGetLocal:     "OP_GET_LOCAL",
	OpSetLocal:     "OP_SET_LOCAL",
	OpGetGlobal:    "OP_GET_GLOBAL",
	OpDefineGlobal: "OP_DEFINE_GLOBAL",
	OpSetGlobal:    "OP_SET_GLOBAL",
	OpEqual:        "OP_EQUAL",
	OpGreater:      "OP_GREATER",
	OpLess:         "OP_LESS",
	OpAdd:          "OP_ADD",
	OpSubtract:     "OP_SUBTRACT",
	OpMultiply:     "OP_MULTIPLY",
	OpDivide:       "OP_DIVIDE",
	OpNot:          "OP_NOT",
	OpNegate:       "OP_NEGATE",
	OpPrint:        "OP_PRINT",
	OpReturn:       "OP_RETURN",
}

func (op OpCode) String() string {
	if s, ok := names[op]; ok {
		return s
	}
	return fmt.Sprintf("OP_%d", byte(op))
}

// minCapacity is the initial backing size for Code/Lines; both double from
// here as Write appends past capacity.
const minCapacity = 8

// Chunk is a self-contained unit of compiled bytecode: the instruction
// stream, its constant pool, and a line number parallel to every byte in
// Code (not run-length compressed — see spec Design Notes).
type Chunk struct {
	Code      []byte
	Lines     []int
	Constants []value.Value
}

func New() *Chunk {
	return &Chunk{
		Code:  make([]byte, 0, minCapacity),
		Lines: make([]int, 0, minCapacity),
	}
}

// Write appends one byte of bytecode, recording the source line it came
// from. len(Code) == len(Lines) is maintained as an invariant.
func (c *Chunk) Write(b byte, line int) {
	c.Code = append(c.Code, b)
	c.Lines = append(c.Lines, line)
}

// AddConstant appends v to the constant pool and returns its index. Callers
// must check the result against the 1-byte operand limit (255) themselves —
// the Chunk has no opinion on how many constants "too many" is.
func (c *Chunk) AddConstant(v value.Value) int {
	c.Constants = append(c.Constants, v)
	return len(c.Constants) - 1
}
