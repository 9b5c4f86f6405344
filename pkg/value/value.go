// Package value defines the tagged value universe that circulates on the
// HCB virtual machine's stack: Nil, Bool, a single widened integer tag, a
// single float tag, immutable strings, and insertion-ordered integer-keyed
// tables.
//
// The on-disk format distinguishes I8/I16/I32 literal encodings, but per the
// design notes in spec.md §9 those widths are collapsed to one Int tag the
// moment a literal is pushed; only the literal opcodes themselves are
// narrow.
package value

import "fmt"

// Kind discriminates the tagged variants of Value.
type Kind int

const (
	Nil Kind = iota
	Bool
	Int
	Float
	String
	Table
)

func (k Kind) String() string {
	switch k {
	case Nil:
		return "Nil"
	case Bool:
		return "Bool"
	case Int:
		return "Int"
	case Float:
		return "Float"
	case String:
		return "String"
	case Table:
		return "Table"
	default:
		return "Unknown"
	}
}

// Value is a dynamically-typed VM value. The zero Value is Nil.
type Value struct {
	kind Kind
	b    bool
	i    int32
	f    float32
	s    string
	t    *TableValue
}

// TableValue is a mutable, insertion-ordered mapping from int32 key to
// Value. Iteration order follows first-insertion order, matching the
// "ordered-by-insertion" requirement in spec §4.4.
type TableValue struct {
	order []int32
	m     map[int32]Value
}

// NewTable creates an empty table.
func NewTable() *TableValue {
	return &TableValue{m: make(map[int32]Value)}
}

// Get returns the value mapped to key, or (Nil, false) if absent.
func (t *TableValue) Get(key int32) (Value, bool) {
	v, ok := t.m[key]
	return v, ok
}

// Set inserts or updates key -> v, recording insertion order for new keys.
func (t *TableValue) Set(key int32, v Value) {
	if _, ok := t.m[key]; !ok {
		t.order = append(t.order, key)
	}
	t.m[key] = v
}

// Keys returns the table's keys in insertion order.
func (t *TableValue) Keys() []int32 {
	out := make([]int32, len(t.order))
	copy(out, t.order)
	return out
}

// Len returns the number of entries in the table.
func (t *TableValue) Len() int { return len(t.order) }

// NilValue is the absent-value singleton. All Nil values compare equal
// regardless of how they were produced.
func NilValue() Value { return Value{kind: Nil} }

// BoolValue constructs a tagged boolean.
func BoolValue(b bool) Value { return Value{kind: Bool, b: b} }

// IntValue constructs a tagged 32-bit integer, widened from any on-disk
// I8/I16/I32 literal.
func IntValue(i int32) Value { return Value{kind: Int, i: i} }

// FloatValue constructs a tagged 32-bit float.
func FloatValue(f float32) Value { return Value{kind: Float, f: f} }

// StringValue constructs a tagged immutable string.
func StringValue(s string) Value { return Value{kind: String, s: s} }

// TableValueOf wraps an existing table as a Value.
func TableValueOf(t *TableValue) Value { return Value{kind: Table, t: t} }

// Kind reports the value's tag.
func (v Value) Kind() Kind { return v.kind }

// IsNil reports whether v is the Nil tag.
func (v Value) IsNil() bool { return v.kind == Nil }

// Bool returns the boolean payload; only meaningful when Kind() == Bool.
func (v Value) Bool() bool { return v.b }

// Int returns the integer payload; only meaningful when Kind() == Int.
func (v Value) Int() int32 { return v.i }

// Float returns the float payload; only meaningful when Kind() == Float.
func (v Value) Float() float32 { return v.f }

// Str returns the string payload; only meaningful when Kind() == String.
func (v Value) Str() string { return v.s }

// TableVal returns the table payload; only meaningful when Kind() == Table.
func (v Value) TableVal() *TableValue { return v.t }

// Truthy implements the conditional-branch truthiness rule of spec §4.4:
// Nil is false, Bool is its own value, anything else is true.
func (v Value) Truthy() bool {
	switch v.kind {
	case Nil:
		return false
	case Bool:
		return v.b
	default:
		return true
	}
}

// Equal implements the VM's `==`: values compare equal only when their tags
// match (int vs float never auto-coerce), except that all Nils are equal to
// each other regardless of provenance.
func Equal(a, b Value) bool {
	if a.kind == Nil || b.kind == Nil {
		return a.kind == Nil && b.kind == Nil
	}
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case Bool:
		return a.b == b.b
	case Int:
		return a.i == b.i
	case Float:
		return a.f == b.f
	case String:
		return a.s == b.s
	case Table:
		return a.t == b.t
	default:
		return false
	}
}

// Compare implements the default comparator used by SetLt/SetLe/SetGt/SetGe:
// two ints, two floats, or two strings (lexicographically). Any other
// combination — including mixed int/float — is not comparable and returns
// ok == false so the caller can raise TypeError.
func Compare(a, b Value) (cmp int, ok bool) {
	if a.kind != b.kind {
		return 0, false
	}
	switch a.kind {
	case Int:
		switch {
		case a.i < b.i:
			return -1, true
		case a.i > b.i:
			return 1, true
		default:
			return 0, true
		}
	case Float:
		switch {
		case a.f < b.f:
			return -1, true
		case a.f > b.f:
			return 1, true
		default:
			return 0, true
		}
	case String:
		switch {
		case a.s < b.s:
			return -1, true
		case a.s > b.s:
			return 1, true
		default:
			return 0, true
		}
	default:
		return 0, false
	}
}

// String renders v for logging and disassembly, not for VM-observable
// behavior.
func (v Value) String() string {
	switch v.kind {
	case Nil:
		return "nil"
	case Bool:
		if v.b {
			return "true"
		}
		return "false"
	case Int:
		return fmt.Sprintf("%d", v.i)
	case Float:
		return fmt.Sprintf("%g", v.f)
	case String:
		return fmt.Sprintf("%q", v.s)
	case Table:
		return fmt.Sprintf("table(%d entries)", v.t.Len())
	default:
		return "<invalid>"
	}
}
