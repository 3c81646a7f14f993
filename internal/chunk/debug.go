package chunk

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"loxvm/internal/value"
)

// DisassembleAll pretty-prints name's instructions at Debug level. Nothing is
// printed unless the logger's level allows Debug — callers don't need their
// own gate, they just configure the logger once at startup (see cmd/lox).
func DisassembleAll(c *Chunk, heap *value.Heap, name string, log *logrus.Logger) {
	log.Debugf("== %s ==", name)
	for offset := 0; offset < len(c.Code); {
		offset = DisassembleInstruction(c, heap, offset, log)
	}
}

// DisassembleInstruction prints the instruction at offset and returns the
// offset of the next one (one or two bytes further, per §4.5).
func DisassembleInstruction(c *Chunk, heap *value.Heap, offset int, log *logrus.Logger) int {
	line := "   |"
	if offset == 0 || c.Lines[offset] != c.Lines[offset-1] {
		line = fmt.Sprintf("%4d", c.Lines[offset])
	}

	op := OpCode(c.Code[offset])
	switch op {
	case OpConstant, OpGetGlobal, OpDefineGlobal, OpSetGlobal:
		return constantInstruction(c, heap, op, offset, line, log)
	case OpGetLocal, OpSetLocal:
		return byteInstruction(c, op, offset, line, log)
	default:
		log.Debugf("%04d %s %s", offset, line, op)
		return offset + 1
	}
}

func constantInstruction(c *Chunk, heap *value.Heap, op OpCode, offset int, line string, log *logrus.Logger) int {
	idx := c.Code[offset+1]
	log.Debugf("%04d %s %-16s %4d '%s'", offset, line, op, idx, value.RenderQuoted(heap, c.Constants[idx]))
	return offset + 2
}

func byteInstruction(c *Chunk, op OpCode, offset int, line string, log *logrus.Logger) int {
	slot := c.Code[offset+1]
	log.Debugf("%04d %s %-16s %4d", offset, line, op, slot)
	return offset + 2
}
