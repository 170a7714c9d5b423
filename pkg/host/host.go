package host

import "fmt"

// Environment is the protocol a host application implements to let the VM
// resolve attributes and calls on HostObjects. The VM never writes
// attributes; GetAttr is read-only from the VM's perspective.
type Environment interface {
	// GetAttr resolves obj.name. A host returning an error here becomes a
	// runtime AttributeError in the VM.
	GetAttr(obj *HostObject, name string) (Value, error)
	// Call invokes a HostObject or host-provided callable with already
	// evaluated args. Returning Yielded signals a blocking call that has
	// not completed; the VM retries the same CALL next run.
	Call(callee Value, args []Value) (Value, error)
}

// AttributeError is returned by an Environment when a HostObject does not
// have the requested attribute at runtime (a compile-time miss is instead
// caught statically by the compiler's schema check).
type AttributeError struct {
	TypeTag TypeTag
	Name    string
}

func (e *AttributeError) Error() string {
	return fmt.Sprintf("%s has no attribute %s", e.TypeTag, e.Name)
}

// TypeError is returned by an Environment when Call is invoked on a value
// that is not callable.
type TypeError struct {
	Message string
}

func (e *TypeError) Error() string { return e.Message }

// Reserved names the environment schema and a host's installed global
// variables are expected to provide. True/False/None are lexer keywords;
// the compiler keeps its own list of known names, and the VM's default
// global vars hold only len/range/abs (DefaultBuiltins), so the rest are
// installed by the host. A host may add more names through env_types / its
// own vars map, but these never need to be declared explicitly by unit
// script source.
const (
	NameTrue  = "True"
	NameFalse = "False"
	NameNone  = "None"

	NameNearest   = "nearest"
	NameFurthest  = "furthest"
	NameWeakest   = "weakest"
	NameStrongest = "strongest"

	NameLen   = "len"
	NameRange = "range"
	NameAbs   = "abs"

	NameCore = "CORE"
	NameSelf = "self"
)

// AmmoConstants are the reserved ammo-type names every environment resolves
// to a distinct Value (their concrete values are host-assigned; the core
// only reserves the names).
var AmmoConstants = []string{"BULLET", "ROCKET", "LASER", "ICE", "GRENADE"}

// ReservedNames lists every identifier the compiler's default scope
// predeclares, besides pattern-matched bindings (see InferTypeTag).
func ReservedNames() []string {
	names := []string{
		NameTrue, NameFalse, NameNone,
		NameNearest, NameFurthest, NameWeakest, NameStrongest,
		NameLen, NameRange, NameAbs,
		NameCore, NameSelf,
	}
	return append(names, AmmoConstants...)
}
