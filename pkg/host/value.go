// Package host defines the tagged Value taxonomy the VM operates on and the
// protocol a host application implements to supply HostObjects, callables,
// and the global environment a unit script runs against.
package host

import (
	"fmt"
	"strconv"
	"strings"
)

// ValueType names a runtime value's tag.
type ValueType string

const (
	NumberType   ValueType = "NUMBER"
	StringType   ValueType = "STRING"
	BoolType     ValueType = "BOOL"
	NoneType     ValueType = "NONE"
	ListType     ValueType = "LIST"
	HostType     ValueType = "HOST_OBJECT"
	FunctionType ValueType = "FUNCTION"
	BuiltinType  ValueType = "BUILTIN"
	YieldedType  ValueType = "YIELDED"
)

// Value is implemented by every runtime value the VM's stack can hold.
type Value interface {
	Type() ValueType
	String() string
	// Truthy implements the truthiness rule of the host-value protocol:
	// Number 0/0.0, None, empty String, and empty List are false; Bool
	// passes through as itself; everything else is true.
	Truthy() bool
}

// Number is a numeric value. The language does not distinguish integers
// from floats at the value level.
type Number float64

func (n Number) Type() ValueType { return NumberType }
func (n Number) String() string  { return strconv.FormatFloat(float64(n), 'g', -1, 64) }
func (n Number) Truthy() bool    { return n != 0 }

// String is a string value.
type String string

func (s String) Type() ValueType { return StringType }
func (s String) String() string  { return string(s) }
func (s String) Truthy() bool    { return s != "" }

// Bool is a boolean value.
type Bool bool

func (b Bool) Type() ValueType { return BoolType }
func (b Bool) String() string  { return strconv.FormatBool(bool(b)) }
func (b Bool) Truthy() bool    { return bool(b) }

// None is the unit script's None. There is exactly one meaningful instance,
// NoneValue.
type None struct{}

func (None) Type() ValueType { return NoneType }
func (None) String() string  { return "None" }
func (None) Truthy() bool    { return false }

// NoneValue is the canonical None value.
var NoneValue = None{}

// List is an ordered, 0-indexed sequence of Values. Ownership transfers to
// the VM once pushed; the host must not mutate a List it has handed off
// while the VM is running.
type List struct {
	Elements []Value
}

func (l *List) Type() ValueType { return ListType }
func (l *List) Truthy() bool    { return len(l.Elements) > 0 }
func (l *List) String() string {
	parts := make([]string, len(l.Elements))
	for i, e := range l.Elements {
		parts[i] = e.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Handle is an opaque identity a host attaches to a HostObject. The VM
// never inspects it; it is forwarded back to the host on GetAttr/Call.
type Handle any

// HostObject is an opaque value whose attributes and calls are resolved by
// the embedding host through the Environment protocol (see host.go). The
// VM never writes attributes on a HostObject and never inspects Handle.
type HostObject struct {
	TypeTag TypeTag
	Handle  Handle
}

func (h *HostObject) Type() ValueType { return HostType }
func (h *HostObject) Truthy() bool    { return true }
func (h *HostObject) String() string  { return fmt.Sprintf("<%s>", h.TypeTag) }

// Function is a reference to a user-defined function: its parameter names
// and the nested bytecode body the compiler produced for it. The concrete
// body type is supplied by the vm package through the FunctionBody
// interface to avoid host depending on opcode's Program type directly.
type Function struct {
	Name       string
	Parameters []string
	Body       FunctionBody
}

func (f *Function) Type() ValueType { return FunctionType }
func (f *Function) Truthy() bool    { return true }
func (f *Function) String() string  { return fmt.Sprintf("<function %s>", f.Name) }

// FunctionBody is satisfied by *opcode.Program. It is declared here as a
// marker interface so pkg/host has no import-time dependency on pkg/opcode.
type FunctionBody interface {
	IsFunctionBody()
}

// Builtin is a VM- or host-provided function reachable by name in the
// global environment (len, range, abs, selectors, host-installed
// functions). It receives already-evaluated argument Values and returns a
// Value or an error; the VM turns a non-nil *AttributeError into a runtime
// AttributeError and any other error into a runtime TypeError.
type Builtin func(args []Value) (Value, error)

// BuiltinValue wraps a Builtin so it can sit on the VM's value stack like
// any other callable.
type BuiltinValue struct {
	Name string
	Fn   Builtin
}

func (b *BuiltinValue) Type() ValueType { return BuiltinType }
func (b *BuiltinValue) Truthy() bool    { return true }
func (b *BuiltinValue) String() string  { return fmt.Sprintf("<builtin %s>", b.Name) }

// yielded is the sentinel Environment.Call or a Builtin returns for a blocking call the host
// has not yet resolved. Its identity (not its value) matters: the VM
// compares against Yielded to decide whether to retry the CALL instruction
// on the next budgeted step instead of advancing past it.
type yielded struct{}

func (yielded) Type() ValueType { return YieldedType }
func (yielded) Truthy() bool    { return false }
func (yielded) String() string  { return "<yielded>" }

// Yielded is returned by an Environment.Call or Builtin implementation to signal that a
// blocking host call (e.g. a weapon still on cooldown) has not completed.
// The VM does not advance past the CALL instruction when it sees Yielded;
// the same call is reattempted on the VM's next run.
var Yielded Value = yielded{}

// IsYielded reports whether v is the Yielded sentinel.
func IsYielded(v Value) bool {
	_, ok := v.(yielded)
	return ok
}
