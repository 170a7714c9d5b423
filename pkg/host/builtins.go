package host

import (
	"fmt"
	"math"
)

// Len implements the reserved `len` builtin: length of a List or String.
func Len(args []Value) (Value, error) {
	if len(args) != 1 {
		return nil, &TypeError{Message: fmt.Sprintf("len() takes exactly 1 argument (%d given)", len(args))}
	}
	switch v := args[0].(type) {
	case *List:
		return Number(len(v.Elements)), nil
	case String:
		return Number(len(v)), nil
	default:
		return nil, &TypeError{Message: fmt.Sprintf("len() has no meaning for %s", v.Type())}
	}
}

// Range implements the reserved `range` builtin: range(n) or range(a, b),
// producing a List of Numbers, matching Python's half-open interval.
func Range(args []Value) (Value, error) {
	var start, stop float64
	switch len(args) {
	case 1:
		n, ok := args[0].(Number)
		if !ok {
			return nil, &TypeError{Message: "range() argument must be a number"}
		}
		stop = float64(n)
	case 2:
		a, ok1 := args[0].(Number)
		b, ok2 := args[1].(Number)
		if !ok1 || !ok2 {
			return nil, &TypeError{Message: "range() arguments must be numbers"}
		}
		start, stop = float64(a), float64(b)
	default:
		return nil, &TypeError{Message: fmt.Sprintf("range() takes 1 or 2 arguments (%d given)", len(args))}
	}
	var elems []Value
	for i := start; i < stop; i++ {
		elems = append(elems, Number(i))
	}
	return &List{Elements: elems}, nil
}

// Abs implements the reserved `abs` builtin.
func Abs(args []Value) (Value, error) {
	if len(args) != 1 {
		return nil, &TypeError{Message: fmt.Sprintf("abs() takes exactly 1 argument (%d given)", len(args))}
	}
	n, ok := args[0].(Number)
	if !ok {
		return nil, &TypeError{Message: "abs() argument must be a number"}
	}
	return Number(math.Abs(float64(n))), nil
}

// DefaultBuiltins returns the VM-level builtins (len, range, abs) that need
// no host access. Selectors (nearest, furthest, weakest, strongest) and
// ammo constants are host-supplied, since they depend on live game state;
// see pkg/vm's Option for installing them into a VM instance's globals.
func DefaultBuiltins() map[string]Value {
	return map[string]Value{
		NameLen:   &BuiltinValue{Name: NameLen, Fn: Len},
		NameRange: &BuiltinValue{Name: NameRange, Fn: Range},
		NameAbs:   &BuiltinValue{Name: NameAbs, Fn: Abs},
	}
}
