package vm

import (
	"bytes"
	"strings"
	"testing"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type vmTestCase struct {
	input    string
	expected string
}

func newTestVM() (*VM, *bytes.Buffer, *bytes.Buffer) {
	log := logrus.New()
	log.SetOutput(&bytes.Buffer{})
	machine := New(log, false, false)
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	machine.SetOutput(out, errOut)
	return machine, out, errOut
}

func runVmTests(t *testing.T, tests []vmTestCase) {
	for _, tt := range tests {
		machine, out, _ := newTestVM()
		result := machine.Interpret(tt.input)
		require.Equal(t, InterpretOK, result, "input: %s", tt.input)
		assert.Equal(t, tt.expected+"\n", out.String(), "input: %s", tt.input)
	}
}

func TestArithmeticPrecedence(t *testing.T) {
	runVmTests(t, []vmTestCase{
		{"print 1 + 2 * 3;", "7"},
		{"print (1 + 2) * 3;", "9"},
		{"print 50 / 2 * 2 + 10;", "60"},
		{"print -5 + 10;", "5"},
	})
}

func TestComparisonAndEquality(t *testing.T) {
	runVmTests(t, []vmTestCase{
		{"print 1 < 2;", "true"},
		{"print 1 > 2;", "false"},
		{"print 1 <= 1;", "true"},
		{"print 1 >= 2;", "false"},
		{"print 1 == 1;", "true"},
		{"print 1 != 1;", "false"},
		{"print !true;", "false"},
		{"print !nil;", "true"},
	})
}

func TestStringConcatAndEquality(t *testing.T) {
	runVmTests(t, []vmTestCase{
		{`var a = "foo"; var b = "bar"; print a + b;`, "foobar"},
		{`print "hi" == "hi";`, "true"},
	})
}

func TestBlockScopeShadowing(t *testing.T) {
	machine, out, _ := newTestVM()
	source := heredoc.Doc(`
		var a = 1;
		{
			var a = 2;
			print a;
		}
		print a;
	`)
	result := machine.Interpret(source)
	require.Equal(t, InterpretOK, result)
	assert.Equal(t, "2\n1\n", out.String())
}

func TestGlobalAssignmentPersistsAcrossCalls(t *testing.T) {
	machine, out, _ := newTestVM()
	require.Equal(t, InterpretOK, machine.Interpret("var a = 1;"))
	require.Equal(t, InterpretOK, machine.Interpret("a = 2; print a;"))
	assert.Equal(t, "2\n", out.String())
}

func TestUndefinedGlobalRead(t *testing.T) {
	machine, _, errOut := newTestVM()
	result := machine.Interpret("print x;")
	assert.Equal(t, InterpretRuntimeError, result)
	assert.True(t, strings.Contains(errOut.String(), "Undefined variable 'x'."))
}

func TestUndefinedGlobalAssign(t *testing.T) {
	machine, _, errOut := newTestVM()
	result := machine.Interpret("x = 1;")
	assert.Equal(t, InterpretRuntimeError, result)
	assert.True(t, strings.Contains(errOut.String(), "Undefined variable 'x'."))
}

func TestAddTypeMismatch(t *testing.T) {
	machine, _, errOut := newTestVM()
	result := machine.Interpret(`1 + "a";`)
	assert.Equal(t, InterpretRuntimeError, result)
	assert.True(t, strings.Contains(errOut.String(), "Operands must be two numbers or two strings."))
}

func TestNumericOperandTrap(t *testing.T) {
	machine, _, errOut := newTestVM()
	result := machine.Interpret(`print -"a";`)
	assert.Equal(t, InterpretRuntimeError, result)
	assert.True(t, strings.Contains(errOut.String(), "Operand(s) must be number(s)."))
}

func TestRuntimeErrorResetsStack(t *testing.T) {
	machine, out, _ := newTestVM()
	result := machine.Interpret("print x;")
	require.Equal(t, InterpretRuntimeError, result)
	result = machine.Interpret("print 1;")
	require.Equal(t, InterpretOK, result)
	assert.Equal(t, "1\n", out.String())
}
