// Package compiler is the single-pass Pratt compiler: it drives a Scanner
// token by token and emits bytecode directly into a Chunk, with no
// intermediate AST. Precedence climbing and a per-token rule table
// (prefix/infix/precedence) do the expression parsing; a flat Local table
// does scope resolution for block-scoped variables.
package compiler

import (
	"fmt"

	"github.com/hashicorp/go-multierror"

	"loxvm/internal/chunk"
	"loxvm/internal/scanner"
	"loxvm/internal/token"
	"loxvm/internal/value"
)

// Precedence is the climbing ladder used by parsePrecedence, low to high.
type Precedence int

const (
	PrecNone       Precedence = iota
	PrecAssignment            // =
	PrecOr                    // or
	PrecAnd                   // and
	PrecEquality              // == !=
	PrecComparison            // < > <= >=
	PrecTerm                  // + -
	PrecFactor                // * /
	PrecUnary                 // ! -
	PrecCall                  // . ()
	PrecPrimary
)

type parseFn func(c *Compiler, canAssign bool)

type parseRule struct {
	prefix parseFn
	infix  parseFn
	prec   Precedence
}

var rules map[token.Type]parseRule

func init() {
	rules = map[token.Type]parseRule{
		token.LEFT_PAREN:    {(*Compiler).grouping, nil, PrecNone},
		token.MINUS:         {(*Compiler).unary, (*Compiler).binary, PrecTerm},
		token.PLUS:          {nil, (*Compiler).binary, PrecTerm},
		token.SLASH:         {nil, (*Compiler).binary, PrecFactor},
		token.STAR:          {nil, (*Compiler).binary, PrecFactor},
		token.BANG:          {(*Compiler).unary, nil, PrecNone},
		token.BANG_EQUAL:    {nil, (*Compiler).binary, PrecEquality},
		token.EQUAL_EQUAL:   {nil, (*Compiler).binary, PrecEquality},
		token.GREATER:       {nil, (*Compiler).binary, PrecComparison},
		token.GREATER_EQUAL: {nil, (*Compiler).binary, PrecComparison},
		token.LESS:          {nil, (*Compiler).binary, PrecComparison},
		token.LESS_EQUAL:    {nil, (*Compiler).binary, PrecComparison},
		token.IDENTIFIER:    {(*Compiler).variable, nil, PrecNone},
		token.STRING:        {(*Compiler).stringLiteral, nil, PrecNone},
		token.NUMBER:        {(*Compiler).number, nil, PrecNone},
		token.FALSE:         {(*Compiler).literal, nil, PrecNone},
		token.TRUE:          {(*Compiler).literal, nil, PrecNone},
		token.NIL:           {(*Compiler).literal, nil, PrecNone},
	}
}

func ruleFor(t token.Type) parseRule {
	if r, ok := rules[t]; ok {
		return r
	}
	return parseRule{prec: PrecNone}
}

// maxLocals is the Local table cap (spec §3: 256 entries).
const maxLocals = 256

// maxConstants is the number of distinct constants a single chunk can index
// with the 1-byte CONSTANT operand.
const maxConstants = 256

type local struct {
	name  string
	depth int // -1 means declared but not yet initialized
}

// Compiler holds one compile's parser state and local-scope table. One
// instance exists per call to Compile.
type Compiler struct {
	scanner *scanner.Scanner
	heap    *value.Heap
	chunk   *chunk.Chunk

	current  token.Token
	previous token.Token

	panicMode bool
	errs      *multierror.Error

	locals     []local
	scopeDepth int
}

// New binds a Compiler to source text, a heap (for string interning), and
// the Chunk it will fill — mirroring the VM constructing the Chunk first and
// handing it to the Compiler (spec §2).
func New(source string, heap *value.Heap, c *chunk.Chunk) *Compiler {
	return &Compiler{
		scanner: scanner.New(source),
		heap:    heap,
		chunk:   c,
	}
}

// Compile runs the whole single-pass parse+emit and returns the accumulated
// compile errors, if any. On a non-nil error the Chunk may be partially
// filled; callers must not execute it.
func (c *Compiler) Compile() error {
	c.advance()
	for !c.match(token.EOF) {
		c.declaration()
	}
	c.emitByte(byte(chunk.OpReturn))
	return c.errs.ErrorOrNil()
}

/* ---- token stream plumbing ---- */

func (c *Compiler) advance() {
	c.previous = c.current
	for {
		c.current = c.scanner.NextToken()
		if c.current.Type != token.ERROR {
			break
		}
		c.errorAtCurrent(c.current.Lexeme)
	}
}

func (c *Compiler) check(t token.Type) bool {
	return c.current.Type == t
}

func (c *Compiler) match(t token.Type) bool {
	if !c.check(t) {
		return false
	}
	c.advance()
	return true
}

func (c *Compiler) consume(t token.Type, message string) {
	if c.current.Type == t {
		c.advance()
		return
	}
	c.errorAtCurrent(message)
}

/* ---- error reporting ---- */

func (c *Compiler) errorAt(tok token.Token, message string) {
	if c.panicMode {
		return
	}
	c.panicMode = true

	var where string
	switch tok.Type {
	case token.EOF:
		where = "at the end"
	case token.ERROR:
		where = ""
	default:
		where = fmt.Sprintf("at '%s'", tok.Lexeme)
	}

	var text string
	if where == "" {
		text = fmt.Sprintf("(%d:%d) Error: %s", tok.Line, tok.Column, message)
	} else {
		text = fmt.Sprintf("(%d:%d) Error %s: %s", tok.Line, tok.Column, where, message)
	}
	c.errs = multierror.Append(c.errs, fmt.Errorf("%s", text))
}

func (c *Compiler) errorAtCurrent(message string) { c.errorAt(c.current, message) }
func (c *Compiler) error(message string)          { c.errorAt(c.previous, message) }

// synchronize skips tokens until it finds a statement boundary, clearing
// panicMode so subsequent real errors are reported again.
func (c *Compiler) synchronize() {
	c.panicMode = false

	for c.current.Type != token.EOF {
		if c.previous.Type == token.SEMICOLON {
			return
		}
		switch c.current.Type {
		case token.CLASS, token.FUN, token.VAR, token.FOR,
			token.IF, token.WHILE, token.PRINT, token.RETURN:
			return
		}
		c.advance()
	}
}

/* ---- emission ---- */

func (c *Compiler) emitByte(b byte) {
	c.chunk.Write(b, c.previous.Line)
}

func (c *Compiler) emitBytes(b1, b2 byte) {
	c.emitByte(b1)
	c.emitByte(b2)
}

func (c *Compiler) makeConstant(v value.Value) byte {
	idx := c.chunk.AddConstant(v)
	if idx > maxConstants-1 {
		c.error("Too many constants in one chunk.")
		return 0
	}
	return byte(idx)
}

func (c *Compiler) emitConstant(v value.Value) {
	c.emitBytes(byte(chunk.OpConstant), c.makeConstant(v))
}

/* ---- declarations & statements ---- */

func (c *Compiler) declaration() {
	if c.match(token.VAR) {
		c.varDeclaration()
	} else {
		c.statement()
	}
	if c.panicMode {
		c.synchronize()
	}
}

func (c *Compiler) varDeclaration() {
	global := c.parseVariable("Expect variable name.")

	if c.match(token.EQUAL) {
		c.expression()
	} else {
		c.emitByte(byte(chunk.OpNil))
	}
	c.consume(token.SEMICOLON, "Expect ';' after variable declaration.")

	c.defineVariable(global)
}

func (c *Compiler) statement() {
	switch {
	case c.match(token.PRINT):
		c.printStatement()
	case c.match(token.LEFT_BRACE):
		c.beginScope()
		c.block()
		c.endScope()
	default:
		c.expressionStatement()
	}
}

func (c *Compiler) printStatement() {
	c.expression()
	c.consume(token.SEMICOLON, "Expect ';' after value.")
	c.emitByte(byte(chunk.OpPrint))
}

func (c *Compiler) expressionStatement() {
	c.expression()
	c.consume(token.SEMICOLON, "Expect ';' after expression.")
	c.emitByte(byte(chunk.OpPop))
}

func (c *Compiler) block() {
	for !c.check(token.RIGHT_BRACE) && !c.check(token.EOF) {
		c.declaration()
	}
	c.consume(token.RIGHT_BRACE, "Expect '}' after block.")
}

func (c *Compiler) beginScope() { c.scopeDepth++ }

func (c *Compiler) endScope() {
	c.scopeDepth--
	for len(c.locals) > 0 && c.locals[len(c.locals)-1].depth > c.scopeDepth {
		c.emitByte(byte(chunk.OpPop))
		c.locals = c.locals[:len(c.locals)-1]
	}
}

/* ---- variables ---- */

func (c *Compiler) parseVariable(message string) byte {
	c.consume(token.IDENTIFIER, message)

	c.declareLocal()
	if c.scopeDepth > 0 {
		return 0 // locals aren't referenced through the constant table
	}
	return c.identifierConstant(c.previous)
}

func (c *Compiler) identifierConstant(name token.Token) byte {
	return c.makeConstant(c.heap.InternString(name.Lexeme))
}

func (c *Compiler) declareLocal() {
	if c.scopeDepth == 0 {
		return
	}
	name := c.previous

	for i := len(c.locals) - 1; i >= 0; i-- {
		l := c.locals[i]
		if l.depth != -1 && l.depth < c.scopeDepth {
			break
		}
		if l.name == name.Lexeme {
			c.error("Already variable with this name in this scope.")
		}
	}
	c.addLocal(name)
}

func (c *Compiler) addLocal(name token.Token) {
	if len(c.locals) >= maxLocals {
		c.error("Too many local variables in function.")
		return
	}
	c.locals = append(c.locals, local{name: name.Lexeme, depth: -1})
}

func (c *Compiler) markInitialized() {
	if c.scopeDepth == 0 {
		return
	}
	c.locals[len(c.locals)-1].depth = c.scopeDepth
}

func (c *Compiler) defineVariable(global byte) {
	if c.scopeDepth > 0 {
		c.markInitialized()
		return
	}
	c.emitBytes(byte(chunk.OpDefineGlobal), global)
}

func (c *Compiler) resolveLocal(name token.Token) int {
	for i := len(c.locals) - 1; i >= 0; i-- {
		l := c.locals[i]
		if l.name == name.Lexeme {
			if l.depth == -1 {
				c.error("Can't read local variable in its own initializer.")
			}
			return i
		}
	}
	return -1
}

func (c *Compiler) namedVariable(name token.Token, canAssign bool) {
	var getOp, setOp chunk.OpCode
	var arg byte

	if slot := c.resolveLocal(name); slot != -1 {
		arg = byte(slot)
		getOp, setOp = chunk.OpGetLocal, chunk.OpSetLocal
	} else {
		arg = c.identifierConstant(name)
		getOp, setOp = chunk.OpGetGlobal, chunk.OpSetGlobal
	}

	if canAssign && c.match(token.EQUAL) {
		c.expression()
		c.emitBytes(byte(setOp), arg)
	} else {
		c.emitBytes(byte(getOp), arg)
	}
}

/* ---- expressions ---- */

func (c *Compiler) expression() {
	c.parsePrecedence(PrecAssignment)
}

func (c *Compiler) parsePrecedence(prec Precedence) {
	c.advance()
	prefix := ruleFor(c.previous.Type).prefix
	if prefix == nil {
		c.error("Expect expression.")
		return
	}

	canAssign := prec <= PrecAssignment
	prefix(c, canAssign)

	for prec <= ruleFor(c.current.Type).prec {
		c.advance()
		infix := ruleFor(c.previous.Type).infix
		infix(c, canAssign)
	}

	if canAssign && c.match(token.EQUAL) {
		c.error("Invalid assignment target.")
	}
}

func (c *Compiler) number(_ bool) {
	var f float64
	fmt.Sscanf(c.previous.Lexeme, "%g", &f)
	c.emitConstant(value.NewNumber(f))
}

func (c *Compiler) stringLiteral(_ bool) {
	text := c.previous.Lexeme
	unquoted := text[1 : len(text)-1]
	c.emitConstant(c.heap.InternString(unquoted))
}

func (c *Compiler) literal(_ bool) {
	switch c.previous.Type {
	case token.FALSE:
		c.emitByte(byte(chunk.OpFalse))
	case token.TRUE:
		c.emitByte(byte(chunk.OpTrue))
	case token.NIL:
		c.emitByte(byte(chunk.OpNil))
	}
}

func (c *Compiler) grouping(_ bool) {
	c.expression()
	c.consume(token.RIGHT_PAREN, "Expect ')' after expression.")
}

func (c *Compiler) unary(_ bool) {
	opType := c.previous.Type
	c.parsePrecedence(PrecUnary)
	switch opType {
	case token.BANG:
		c.emitByte(byte(chunk.OpNot))
	case token.MINUS:
		c.emitByte(byte(chunk.OpNegate))
	}
}

func (c *Compiler) binary(_ bool) {
	opType := c.previous.Type
	rule := ruleFor(opType)
	c.parsePrecedence(rule.prec + 1)

	switch opType {
	case token.BANG_EQUAL:
		c.emitBytes(byte(chunk.OpEqual), byte(chunk.OpNot))
	case token.EQUAL_EQUAL:
		c.emitByte(byte(chunk.OpEqual))
	case token.GREATER:
		c.emitByte(byte(chunk.OpGreater))
	case token.GREATER_EQUAL:
		c.emitBytes(byte(chunk.OpLess), byte(chunk.OpNot))
	case token.LESS:
		c.emitByte(byte(chunk.OpLess))
	case token.LESS_EQUAL:
		c.emitBytes(byte(chunk.OpGreater), byte(chunk.OpNot))
	case token.PLUS:
		c.emitByte(byte(chunk.OpAdd))
	case token.MINUS:
		c.emitByte(byte(chunk.OpSubtract))
	case token.STAR:
		c.emitByte(byte(chunk.OpMultiply))
	case token.SLASH:
		c.emitByte(byte(chunk.OpDivide))
	}
}

func (c *Compiler) variable(canAssign bool) {
	c.namedVariable(c.previous, canAssign)
}
