// Package vm provides the stack-based virtual machine that executes a
// compiled unit-script opcode.Program against a host-supplied environment.
// Execution is single-threaded and strictly budgeted: a host calls
// Run(budget) to advance the program by at most budget instructions,
// which gives deterministic per-tick scheduling across many unit VMs.
package vm

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/unitscript/unitscript/pkg/host"
	"github.com/unitscript/unitscript/pkg/logger"
	"github.com/unitscript/unitscript/pkg/opcode"
)

// MaxStackDepth is the maximum call stack depth before stack overflow.
const MaxStackDepth = 1000

// Fault is a runtime error raised during execution: NameError, AttributeError,
// TypeError, IndexError, or StackOverflow.
type Fault struct {
	Kind    string
	Message string
	Line    int
}

func (f *Fault) Error() string {
	return fmt.Sprintf("%s at line %d: %s", f.Kind, f.Line, f.Message)
}

// callFrame records where to resume the caller's program once the callee
// returns. Parameters and locals are not snapshotted here: the engine's
// single global variable scope means a function's parameters are bound as
// ordinary entries in vm.vars, not a separate per-frame namespace.
type callFrame struct {
	prog     *opcode.Program
	returnIP int
}

// VM executes one compiled Program. It is not safe for concurrent use by
// multiple goroutines calling Step/Run concurrently; State is guarded by mu
// only so GetState/IsRunning can be read from another goroutine while a
// Run is in progress.
type VM struct {
	prog *opcode.Program
	ip   int

	stack []host.Value
	vars  map[string]host.Value

	frames []callFrame

	running bool
	paused  bool
	halted  bool
	err     *Fault

	env host.Environment

	mu  sync.RWMutex
	log *slog.Logger
}

// Option is a functional option for configuring a VM at construction time.
type Option func(*VM)

// WithLogger sets a custom logger.
func WithLogger(log *slog.Logger) Option {
	return func(v *VM) { v.log = log }
}

// WithBuiltins installs additional global bindings (selectors, ammo
// constants, self, CORE) on top of host.DefaultBuiltins(). Values supplied
// here take priority over the defaults.
func WithBuiltins(vars map[string]host.Value) Option {
	return func(v *VM) {
		for name, val := range vars {
			v.vars[name] = val
		}
	}
}

// WithEnvironment installs the host.Environment implementation CALL and
// LOAD_ATTR dispatch to for HostObjects and host-supplied callables.
func WithEnvironment(env host.Environment) Option {
	return func(v *VM) { v.env = env }
}

// New creates a VM ready to execute prog. Default builtins (len, range,
// abs) are installed before any Option runs, so WithBuiltins can override
// them if a host ever needs to.
func New(prog *opcode.Program, opts ...Option) *VM {
	v := &VM{
		prog:     prog,
		ip:       0,
		stack:    make([]host.Value, 0, 64),
		vars:     make(map[string]host.Value),
		frames:   make([]callFrame, 0, 8),
		running:  false,
		paused:   false,
		halted:   false,
		log:      logger.GetLogger(),
	}
	for name, val := range host.DefaultBuiltins() {
		v.vars[name] = val
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Load resets the VM to execute a new program from its first instruction,
// clearing the stack and call frames but preserving vars (globals persist
// across a load the way a host reuses one VM per unit across re-compiles).
func (v *VM) Load(prog *opcode.Program) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.prog = prog
	v.ip = 0
	v.stack = v.stack[:0]
	v.frames = v.frames[:0]
	v.running = false
	v.paused = false
	v.halted = false
	v.err = nil
}

// SetEnvironment installs the host.Environment used for HostObject
// attribute lookups and non-builtin calls.
func (v *VM) SetEnvironment(env host.Environment) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.env = env
}

// SetVar installs or overwrites a single global binding, e.g. the host's
// per-tick `self` HostObject.
func (v *VM) SetVar(name string, val host.Value) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.vars[name] = val
}

// IsRunning reports whether the VM has neither halted nor been paused.
func (v *VM) IsRunning() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return !v.halted && !v.paused
}

// State is a snapshot of the VM's externally observable state.
type State struct {
	IP         int
	Running    bool
	Paused     bool
	Halted     bool
	Error      *Fault
	StackDepth int
	Vars       map[string]host.Value
}

// GetState returns a snapshot of the VM's execution state for host
// introspection, debuggers, and telemetry: IP, run state, any fault, the
// current stack depth, and a copy of every global variable binding. Vars
// is a copy, so a caller can't mutate live VM bindings through the
// snapshot; the stack is reported only as its depth.
func (v *VM) GetState() State {
	v.mu.RLock()
	defer v.mu.RUnlock()
	vars := make(map[string]host.Value, len(v.vars))
	for name, val := range v.vars {
		vars[name] = val
	}
	return State{
		IP:         v.ip,
		Running:    v.running,
		Paused:     v.paused,
		Halted:     v.halted,
		Error:      v.err,
		StackDepth: len(v.stack),
		Vars:       vars,
	}
}

// Vars returns a copy of the VM's current global variable bindings, for
// hosts that only need variable values without a full State snapshot.
func (v *VM) Vars() map[string]host.Value {
	v.mu.RLock()
	defer v.mu.RUnlock()
	vars := make(map[string]host.Value, len(v.vars))
	for name, val := range v.vars {
		vars[name] = val
	}
	return vars
}

// Pause suspends execution; Step/Run become no-ops until Resume.
func (v *VM) Pause() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.paused = true
}

// Resume clears a prior Pause.
func (v *VM) Resume() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.paused = false
}

// Stop halts the VM permanently: cooperative cancellation with no exception
// machinery, the host simply stops calling Run.
func (v *VM) Stop() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.halted = true
	v.running = false
}

// Run executes up to budget instructions and returns whether the VM is
// still running afterward. A yielded host call counts as one consumed
// step without advancing ip and ends the Run, so the same CALL is retried
// on the next Run.
func (v *VM) Run(budget int) bool {
	for i := 0; i < budget; i++ {
		v.mu.RLock()
		prog, ip := v.prog, v.ip
		v.mu.RUnlock()
		if !v.Step() {
			return false
		}
		// Every instruction but a yielded CALL moves ip or switches program.
		v.mu.RLock()
		yielded := v.prog == prog && v.ip == ip
		v.mu.RUnlock()
		if yielded {
			break
		}
	}
	return v.IsRunning()
}

// Step executes exactly one instruction unless the VM is halted or
// paused, and returns true iff the VM is still running after the step.
func (v *VM) Step() bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.halted || v.paused {
		return false
	}
	if !v.running {
		v.running = true
	}

	if v.ip >= len(v.prog.Code) {
		v.halted = true
		v.running = false
		return false
	}

	instr := v.prog.Code[v.ip]
	if instr.Op == opcode.Halt {
		v.halted = true
		v.running = false
		return false
	}

	if err := v.dispatch(instr); err != nil {
		v.setFault(err, instr.Line)
		return false
	}
	return true
}

func (v *VM) setFault(err error, line int) {
	var f *Fault
	switch e := err.(type) {
	case *Fault:
		f = e
	default:
		f = &Fault{Kind: "TypeError", Message: e.Error(), Line: line}
	}
	if f.Line == 0 {
		f.Line = line
	}
	v.err = f
	v.running = false
	v.halted = true
	v.log.Error("unit script fault", "kind", f.Kind, "line", f.Line, "message", f.Message)
}

func (v *VM) push(val host.Value) { v.stack = append(v.stack, val) }

func (v *VM) pop() host.Value {
	n := len(v.stack)
	val := v.stack[n-1]
	v.stack = v.stack[:n-1]
	return val
}

func (v *VM) popN(n int) []host.Value {
	start := len(v.stack) - n
	vals := append([]host.Value(nil), v.stack[start:]...)
	v.stack = v.stack[:start]
	return vals
}
