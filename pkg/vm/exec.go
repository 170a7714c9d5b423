package vm

import (
	"fmt"
	"math"

	"github.com/unitscript/unitscript/pkg/host"
	"github.com/unitscript/unitscript/pkg/opcode"
)

// dispatch executes one instruction and advances v.ip, except where the
// instruction itself sets ip (jumps, calls, returns). The caller holds
// v.mu for the duration.
func (v *VM) dispatch(instr opcode.Instruction) error {
	switch instr.Op {
	case opcode.LoadConst:
		v.push(constantToValue(v.prog.Constants[instr.Arg.(int)]))
		v.ip++

	case opcode.LoadVar:
		name := instr.Arg.(string)
		val, ok := v.vars[name]
		if !ok {
			return &Fault{Kind: "NameError", Message: fmt.Sprintf("%s is not defined", name)}
		}
		v.push(val)
		v.ip++

	case opcode.StoreVar:
		name := instr.Arg.(string)
		v.vars[name] = v.pop()
		v.ip++

	case opcode.LoadAttr:
		name := instr.Arg.(string)
		obj := v.pop()
		hostObj, ok := obj.(*host.HostObject)
		if !ok {
			return &Fault{Kind: "TypeError", Message: fmt.Sprintf("%s has no attributes", obj.Type())}
		}
		if v.env == nil {
			return &Fault{Kind: "AttributeError", Message: fmt.Sprintf("%s has no attribute %s", hostObj.TypeTag, name)}
		}
		val, err := v.env.GetAttr(hostObj, name)
		if err != nil {
			return wrapHostError(err)
		}
		v.push(val)
		v.ip++

	case opcode.BuildList:
		n := instr.Arg.(int)
		elems := v.popN(n)
		v.push(&host.List{Elements: elems})
		v.ip++

	case opcode.GetIndex:
		idx := v.pop()
		container := v.pop()
		val, err := indexValue(container, idx)
		if err != nil {
			return err
		}
		v.push(val)
		v.ip++

	case opcode.Pop:
		v.pop()
		v.ip++

	case opcode.BinaryAdd, opcode.BinarySub, opcode.BinaryMul, opcode.BinaryDiv,
		opcode.BinaryFloorDiv, opcode.BinaryMod, opcode.BinaryPow:
		right := v.pop()
		left := v.pop()
		val, err := binaryArith(instr.Op, left, right)
		if err != nil {
			return err
		}
		v.push(val)
		v.ip++

	case opcode.CompareEQ, opcode.CompareNE, opcode.CompareLT,
		opcode.CompareGT, opcode.CompareLE, opcode.CompareGE:
		right := v.pop()
		left := v.pop()
		val, err := compareValues(instr.Op, left, right)
		if err != nil {
			return err
		}
		v.push(val)
		v.ip++

	case opcode.UnaryNeg:
		operand := v.pop()
		n, ok := operand.(host.Number)
		if !ok {
			return &Fault{Kind: "TypeError", Message: fmt.Sprintf("unary - has no meaning for %s", operand.Type())}
		}
		v.push(-n)
		v.ip++

	case opcode.UnaryNot:
		operand := v.pop()
		v.push(host.Bool(!operand.Truthy()))
		v.ip++

	case opcode.Jump:
		v.ip = instr.Arg.(int)

	case opcode.PopJumpIfFalse:
		cond := v.pop()
		if !cond.Truthy() {
			v.ip = instr.Arg.(int)
		} else {
			v.ip++
		}

	case opcode.JumpIfFalse:
		cond := v.stack[len(v.stack)-1]
		if !cond.Truthy() {
			v.ip = instr.Arg.(int)
		} else {
			v.ip++
		}

	case opcode.JumpIfTrue:
		cond := v.stack[len(v.stack)-1]
		if cond.Truthy() {
			v.ip = instr.Arg.(int)
		} else {
			v.ip++
		}

	case opcode.GetIter:
		v.push(host.Number(0))
		v.ip++

	case opcode.ForIter:
		cursor := v.stack[len(v.stack)-1].(host.Number)
		list, ok := v.stack[len(v.stack)-2].(*host.List)
		if !ok {
			return &Fault{Kind: "TypeError", Message: fmt.Sprintf("%s is not iterable", v.stack[len(v.stack)-2].Type())}
		}
		idx := int(cursor)
		if idx >= len(list.Elements) {
			v.pop()
			v.pop()
			v.ip = instr.Arg.(int)
		} else {
			v.stack[len(v.stack)-1] = host.Number(idx + 1)
			v.push(list.Elements[idx])
			v.ip++
		}

	case opcode.Call:
		return v.execCall(instr)

	case opcode.MakeFunction:
		proto := v.prog.Functions[instr.Arg.(int)]
		v.push(&host.Function{Name: proto.Name, Parameters: proto.Parameters, Body: proto.Body})
		v.ip++

	case opcode.ReturnValue:
		result := v.pop()
		if len(v.frames) == 0 {
			v.push(result)
			v.ip++
			return nil
		}
		frame := v.frames[len(v.frames)-1]
		v.frames = v.frames[:len(v.frames)-1]
		v.prog = frame.prog
		v.ip = frame.returnIP
		v.push(result)

	case opcode.Nop:
		v.ip++

	default:
		return &Fault{Kind: "TypeError", Message: fmt.Sprintf("unhandled opcode %s", instr.Op)}
	}
	return nil
}

func (v *VM) execCall(instr opcode.Instruction) error {
	arity := instr.Arg.(int)
	args := v.popN(arity)
	callee := v.pop()

	switch fn := callee.(type) {
	case *host.Function:
		if len(v.frames) >= MaxStackDepth {
			return &Fault{Kind: "StackOverflow", Message: fmt.Sprintf("maximum call depth %d exceeded", MaxStackDepth)}
		}
		body, ok := fn.Body.(*opcode.Program)
		if !ok {
			return &Fault{Kind: "TypeError", Message: "function body is not an executable program"}
		}
		for i, p := range fn.Parameters {
			if i < len(args) {
				v.vars[p] = args[i]
			} else {
				v.vars[p] = host.NoneValue
			}
		}
		v.frames = append(v.frames, callFrame{prog: v.prog, returnIP: v.ip + 1})
		v.prog = body
		v.ip = 0
		return nil

	case *host.BuiltinValue:
		result, err := fn.Fn(args)
		if err != nil {
			return wrapHostError(err)
		}
		if host.IsYielded(result) {
			v.log.Debug("call yielded, retrying next step", "name", fn.Name)
			v.push(callee)
			for _, a := range args {
				v.push(a)
			}
			return nil
		}
		v.push(result)
		v.ip++
		return nil

	default:
		if v.env == nil {
			return &Fault{Kind: "TypeError", Message: fmt.Sprintf("%s is not callable", callee.Type())}
		}
		result, err := v.env.Call(callee, args)
		if err != nil {
			return wrapHostError(err)
		}
		if host.IsYielded(result) {
			v.log.Debug("host call yielded, retrying next step")
			v.push(callee)
			for _, a := range args {
				v.push(a)
			}
			return nil
		}
		v.push(result)
		v.ip++
		return nil
	}
}

func wrapHostError(err error) error {
	switch e := err.(type) {
	case *host.AttributeError:
		return &Fault{Kind: "AttributeError", Message: e.Error()}
	case *host.TypeError:
		return &Fault{Kind: "TypeError", Message: e.Error()}
	default:
		return &Fault{Kind: "TypeError", Message: err.Error()}
	}
}

func constantToValue(c any) host.Value {
	switch val := c.(type) {
	case nil:
		return host.NoneValue
	case float64:
		return host.Number(val)
	case string:
		return host.String(val)
	case bool:
		return host.Bool(val)
	case host.Value:
		return val
	default:
		return host.NoneValue
	}
}

func toNumber(v host.Value) (float64, bool) {
	switch n := v.(type) {
	case host.Number:
		return float64(n), true
	case host.Bool:
		if n {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

func binaryArith(op opcode.Op, left, right host.Value) (host.Value, error) {
	if op == opcode.BinaryAdd {
		if ls, ok := left.(host.String); ok {
			if rs, ok := right.(host.String); ok {
				return ls + rs, nil
			}
		}
	}

	ln, lok := toNumber(left)
	rn, rok := toNumber(right)
	if !lok || !rok {
		return nil, &Fault{Kind: "TypeError", Message: fmt.Sprintf("unsupported operand types for %s: %s and %s", op, left.Type(), right.Type())}
	}

	switch op {
	case opcode.BinaryAdd:
		return host.Number(ln + rn), nil
	case opcode.BinarySub:
		return host.Number(ln - rn), nil
	case opcode.BinaryMul:
		return host.Number(ln * rn), nil
	case opcode.BinaryDiv:
		return host.Number(ln / rn), nil
	case opcode.BinaryFloorDiv:
		return host.Number(math.Floor(ln / rn)), nil
	case opcode.BinaryMod:
		return host.Number(math.Mod(ln, rn)), nil
	case opcode.BinaryPow:
		return host.Number(math.Pow(ln, rn)), nil
	default:
		return nil, &Fault{Kind: "TypeError", Message: fmt.Sprintf("not an arithmetic opcode: %s", op)}
	}
}

func compareValues(op opcode.Op, left, right host.Value) (host.Value, error) {
	if op == opcode.CompareEQ || op == opcode.CompareNE {
		eq := valuesEqual(left, right)
		if op == opcode.CompareEQ {
			return host.Bool(eq), nil
		}
		return host.Bool(!eq), nil
	}

	ln, lok := toNumber(left)
	rn, rok := toNumber(right)
	if !lok || !rok {
		return nil, &Fault{Kind: "TypeError", Message: fmt.Sprintf("unsupported operand types for %s: %s and %s", op, left.Type(), right.Type())}
	}

	switch op {
	case opcode.CompareLT:
		return host.Bool(ln < rn), nil
	case opcode.CompareGT:
		return host.Bool(ln > rn), nil
	case opcode.CompareLE:
		return host.Bool(ln <= rn), nil
	case opcode.CompareGE:
		return host.Bool(ln >= rn), nil
	default:
		return nil, &Fault{Kind: "TypeError", Message: fmt.Sprintf("not a comparison opcode: %s", op)}
	}
}

func valuesEqual(a, b host.Value) bool {
	an, aok := toNumber(a)
	bn, bok := toNumber(b)
	if aok && bok {
		return an == bn
	}
	as, aok := a.(host.String)
	bs, bok := b.(host.String)
	if aok && bok {
		return as == bs
	}
	if _, aNone := a.(host.None); aNone {
		_, bNone := b.(host.None)
		return bNone
	}
	return a == b
}

func indexValue(container, idx host.Value) (host.Value, error) {
	n, ok := toNumber(idx)
	if !ok {
		return nil, &Fault{Kind: "TypeError", Message: fmt.Sprintf("list indices must be numbers, not %s", idx.Type())}
	}
	i := int(n)
	switch c := container.(type) {
	case *host.List:
		if i < 0 {
			i += len(c.Elements)
		}
		if i < 0 || i >= len(c.Elements) {
			return nil, &Fault{Kind: "IndexError", Message: fmt.Sprintf("list index %d out of range", int(n))}
		}
		return c.Elements[i], nil
	case host.String:
		if i < 0 {
			i += len(c)
		}
		if i < 0 || i >= len(c) {
			return nil, &Fault{Kind: "IndexError", Message: fmt.Sprintf("string index %d out of range", int(n))}
		}
		return host.String(c[i : i+1]), nil
	default:
		return nil, &Fault{Kind: "TypeError", Message: fmt.Sprintf("%s is not indexable", container.Type())}
	}
}
