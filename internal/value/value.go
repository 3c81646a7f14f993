// Package value implements the tagged Value representation and the heap of
// allocated objects (currently just interned strings) that Values of kind Obj
// refer to.
package value

import (
	"strconv"

	"github.com/josharian/intern"
)

type Kind int

const (
	Nil Kind = iota
	Bool
	Number
	Obj
)

// Handle is an index into a Heap's object arena. It substitutes for the
// intrusive linked-list pointer the original implementation threads through
// every heap record: the arena is the sole owner, and a Handle is only ever
// meaningful relative to the Heap that produced it.
type Handle int32

// Value is a tagged union over nil/bool/number/object. Exactly one of
// Bool/Num/Obj is meaningful, selected by Kind.
type Value struct {
	Kind Kind
	Bool bool
	Num  float64
	Obj  Handle
}

func NewNil() Value              { return Value{Kind: Nil} }
func NewBool(b bool) Value       { return Value{Kind: Bool, Bool: b} }
func NewNumber(n float64) Value  { return Value{Kind: Number, Num: n} }
func newObj(h Handle) Value      { return Value{Kind: Obj, Obj: h} }

// IsFalsey implements the truthiness rule: nil is false, bool is itself,
// every other value (including the number zero) is truthy.
func IsFalsey(v Value) bool {
	switch v.Kind {
	case Nil:
		return true
	case Bool:
		return !v.Bool
	default:
		return false
	}
}

// Equal implements the equality rule: comparable only within the same kind,
// except that Nil equals Nil unconditionally. Obj equality reduces to handle
// identity because every Obj Value is produced by the intern table.
func Equal(a, b Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case Nil:
		return true
	case Bool:
		return a.Bool == b.Bool
	case Number:
		return a.Num == b.Num
	case Obj:
		return a.Obj == b.Obj
	default:
		return false
	}
}

// ObjectKind distinguishes heap record variants. The core only needs String,
// but the type exists so the heap shape can grow without disturbing Value.
type ObjectKind int

const (
	StringObj ObjectKind = iota
)

type Object struct {
	Kind ObjectKind
	Str  string
}

// Heap owns every live Object and the string intern table. It is created
// once per VM and lives for the VM's entire lifetime (across every REPL line,
// so that string identity is preserved between `interpret` calls); Teardown
// drops the arena in one step, standing in for the source's walk-the-list
// deallocation pass.
type Heap struct {
	objects  []*Object
	interned map[string]Handle
}

func NewHeap() *Heap {
	return &Heap{interned: make(map[string]Handle)}
}

// InternString returns the Value for s, reusing an existing heap record if
// one with equal content already exists. At most one Object per distinct
// byte sequence is ever live in the heap.
func (h *Heap) InternString(s string) Value {
	// Canonicalize the Go string itself first so repeated interning of the
	// same content usually shares one backing array (intern.String is
	// best-effort; the map below is what guarantees one Object per content).
	s = intern.String(s)
	if handle, ok := h.interned[s]; ok {
		return newObj(handle)
	}
	handle := Handle(len(h.objects))
	h.objects = append(h.objects, &Object{Kind: StringObj, Str: s})
	h.interned[s] = handle
	return newObj(handle)
}

// String returns the backing text of an Obj Value. The caller must know the
// Value is a string (the core has no other Obj variant).
func (h *Heap) String(v Value) string {
	return h.objects[v.Obj].Str
}

// Teardown releases the arena. In a garbage-collected target this only
// drops references; it stands in for the source's single pass over the
// object list at VM shutdown.
func (h *Heap) Teardown() {
	h.objects = nil
	h.interned = nil
}

// Render produces the textual form used by `print` and the REPL: nil, bool
// literals, default (no trailing zero) number formatting, and raw string
// text.
func Render(h *Heap, v Value) string {
	switch v.Kind {
	case Nil:
		return "nil"
	case Bool:
		if v.Bool {
			return "true"
		}
		return "false"
	case Number:
		return strconv.FormatFloat(v.Num, 'g', -1, 64)
	case Obj:
		return h.String(v)
	default:
		return "<?>"
	}
}

// RenderQuoted is Render, except string constants are quoted — used only by
// the debug disassembler so it reads unambiguously next to numeric operands.
func RenderQuoted(h *Heap, v Value) string {
	if v.Kind == Obj {
		return strconv.Quote(h.String(v))
	}
	return Render(h, v)
}
