// Package compiler lowers unit-script source through the lexer and parser
// into a linear opcode.Program, performing static name resolution and
// attribute checking against a host.Schema along the way.
package compiler

import (
	"fmt"
	"strings"

	"github.com/unitscript/unitscript/pkg/compiler/lexer"
	"github.com/unitscript/unitscript/pkg/compiler/parser"
	"github.com/unitscript/unitscript/pkg/host"
	"github.com/unitscript/unitscript/pkg/opcode"
)

// exprType is the compiler's best-effort static type for an expression:
// a TypeTag, plus (when Tag is host.ListTag) the element TypeTag known for
// attribute chains like `self.scan()[i]`.
type exprType struct {
	Tag     host.TypeTag
	ElemTag host.TypeTag
}

var anyType = exprType{Tag: host.AnyTag}

// loopFrame tracks the jump targets `break` and `continue` resolve to while
// compiling a while/for body. cleanupPops counts extra stack slots a `break`
// must discard before jumping out: a for-loop's GET_ITER leaves the
// iterated list and its cursor on the stack for the duration of the loop
// (mirrored by FOR_ITER's own pop on natural exhaustion), so a break taken
// mid-loop must pop both itself; a while loop has none.
type loopFrame struct {
	start       int
	breakJumps  []int
	cleanupPops int
}

// Compiler holds the state threaded through one Compile call.
type Compiler struct {
	prog      *opcode.Program
	diags     []Diagnostic
	lines     []string
	schema    *host.Schema
	selfType  host.TypeTag
	envTypes  map[string]host.TypeTag
	varTypes  map[string]exprType
	globals   map[string]bool
	loopStack []*loopFrame
}

// Compile runs the full lexer -> parser -> compiler pipeline. On success it
// returns a Program whose last instruction is HALT and a nil diagnostics
// slice. On any fatal diagnostic, the returned Program is nil.
func Compile(source string, selfType host.TypeTag, envTypes map[string]host.TypeTag) (*opcode.Program, []Diagnostic) {
	lines := strings.Split(source, "\n")

	tokens, err := lexer.Tokenize(source)
	if err != nil {
		return nil, []Diagnostic{lexDiagnostic(err, lines)}
	}

	astProg, err := parser.Parse(tokens)
	if err != nil {
		return nil, []Diagnostic{parseDiagnostic(err, lines)}
	}

	c := &Compiler{
		prog:     &opcode.Program{},
		lines:    lines,
		schema:   host.DefaultSchema(),
		selfType: selfType,
		envTypes: envTypes,
		varTypes: make(map[string]exprType),
		globals:  make(map[string]bool),
	}
	if c.envTypes == nil {
		c.envTypes = map[string]host.TypeTag{}
	}
	collectNames(astProg.Statements, c.globals)

	for _, stmt := range astProg.Statements {
		c.compileStatement(stmt)
	}

	lastLine := 1
	if len(astProg.Statements) > 0 {
		lastLine = astProg.Statements[len(astProg.Statements)-1].Line()
	}
	c.emit(opcode.Halt, nil, lastLine)

	if len(c.diags) > 0 {
		return nil, c.diags
	}
	return c.prog, nil
}

func lexDiagnostic(err error, lines []string) Diagnostic {
	se, ok := err.(*lexer.SyntaxError)
	if !ok {
		return Diagnostic{Phase: "lexer", Kind: SyntaxErrorKind, Message: err.Error()}
	}
	return Diagnostic{
		Phase: "lexer", Kind: SyntaxErrorKind, Message: se.Message,
		Line: se.Line, Column: se.Column, Context: buildContext(lines, se.Line, se.Column),
	}
}

func parseDiagnostic(err error, lines []string) Diagnostic {
	se, ok := err.(*parser.SyntaxError)
	if !ok {
		return Diagnostic{Phase: "parser", Kind: SyntaxErrorKind, Message: err.Error()}
	}
	return Diagnostic{
		Phase: "parser", Kind: SyntaxErrorKind, Message: se.Message,
		Line: se.Line, Column: se.Column, Context: buildContext(lines, se.Line, se.Column),
	}
}

// collectNames walks every statement, including inside function bodies,
// gathering every name ever assigned, used as a loop variable, or declared
// as a function/parameter. This mirrors the single shared global namespace:
// a name is resolvable anywhere in the program once bound anywhere, with no
// strict per-function isolation.
func collectNames(stmts []parser.Statement, out map[string]bool) {
	for _, s := range stmts {
		switch st := s.(type) {
		case *parser.AssignStatement:
			out[st.Name] = true
		case *parser.AugAssignStatement:
			out[st.Name] = true
		case *parser.ForStatement:
			out[st.Var] = true
			collectNames(st.Body, out)
		case *parser.IfStatement:
			collectNames(st.Then, out)
			for _, e := range st.Elifs {
				collectNames(e.Body, out)
			}
			collectNames(st.Else, out)
		case *parser.WhileStatement:
			collectNames(st.Body, out)
		case *parser.FunctionDefStatement:
			out[st.Name] = true
			for _, p := range st.Parameters {
				out[p] = true
			}
			collectNames(st.Body, out)
		}
	}
}

func (c *Compiler) emit(op opcode.Op, arg any, line int) int {
	return c.prog.Emit(opcode.Instruction{Op: op, Arg: arg, Line: line})
}

func (c *Compiler) addDiagnostic(kind DiagnosticKind, message string, line, column int) {
	c.diags = append(c.diags, Diagnostic{
		Phase: "compiler", Kind: kind, Message: message,
		Line: line, Column: column, Context: buildContext(c.lines, line, column),
	})
}

// isKnownName reports whether name resolves: as something assigned
// somewhere in the program, a reserved builtin/selector/ammo name, self,
// CORE, a pattern-matched unit name, or an injected env_types key.
func (c *Compiler) isKnownName(name string) bool {
	if c.globals[name] {
		return true
	}
	switch name {
	case host.NameSelf, host.NameCore,
		host.NameLen, host.NameRange, host.NameAbs,
		host.NameNearest, host.NameFurthest, host.NameWeakest, host.NameStrongest:
		return true
	}
	for _, a := range host.AmmoConstants {
		if a == name {
			return true
		}
	}
	if _, ok := host.InferTypeTag(name); ok {
		return true
	}
	if _, ok := c.envTypes[name]; ok {
		return true
	}
	return false
}

func (c *Compiler) checkNameResolved(name string, line int) {
	if !c.isKnownName(name) {
		c.addDiagnostic(NameErrorKind, fmt.Sprintf("%s is not defined", name), line, 0)
	}
}

// typeOf computes the compiler's best-effort static TypeTag for an
// expression, falling back to AnyTag whenever it can't be determined.
func (c *Compiler) typeOf(e parser.Expression) exprType {
	switch ex := e.(type) {
	case *parser.NameExpr:
		if t, ok := c.varTypes[ex.Name]; ok {
			return t
		}
		if ex.Name == host.NameSelf {
			return exprType{Tag: c.selfType}
		}
		if ex.Name == host.NameCore {
			return exprType{Tag: host.CoreTag}
		}
		if tag, ok := host.InferTypeTag(ex.Name); ok {
			return exprType{Tag: tag}
		}
		if tag, ok := c.envTypes[ex.Name]; ok {
			return exprType{Tag: tag}
		}
		return anyType
	case *parser.AttrExpr:
		objType := c.typeOf(ex.Object)
		if c.schema.Known(objType.Tag) {
			if d, ok := c.schema.Lookup(objType.Tag, ex.Name); ok {
				return exprType{Tag: d.Result, ElemTag: d.ElemType}
			}
		}
		return anyType
	case *parser.IndexExpr:
		ct := c.typeOf(ex.Container)
		if ct.Tag == host.ListTag && ct.ElemTag != "" {
			return exprType{Tag: ct.ElemTag}
		}
		return anyType
	case *parser.CallExpr:
		return c.typeOf(ex.Callee)
	case *parser.NumberLiteral:
		return exprType{Tag: host.NumberTag}
	case *parser.ListExpr:
		return exprType{Tag: host.ListTag}
	default:
		return anyType
	}
}

// --- Statements -----------------------------------------------------------

func (c *Compiler) compileBlock(stmts []parser.Statement) {
	for _, s := range stmts {
		c.compileStatement(s)
	}
}

func (c *Compiler) compileStatement(s parser.Statement) {
	switch st := s.(type) {
	case *parser.AssignStatement:
		c.compileAssign(st)
	case *parser.AugAssignStatement:
		c.compileAugAssign(st)
	case *parser.ExprStatement:
		c.compileExpr(st.Expr)
		c.emit(opcode.Pop, nil, st.Line())
	case *parser.IfStatement:
		c.compileIf(st)
	case *parser.WhileStatement:
		c.compileWhile(st)
	case *parser.ForStatement:
		c.compileFor(st)
	case *parser.FunctionDefStatement:
		c.compileFunctionDef(st)
	case *parser.ReturnStatement:
		c.compileReturn(st)
	case *parser.BreakStatement:
		c.compileBreak(st)
	case *parser.ContinueStatement:
		c.compileContinue(st)
	}
}

func (c *Compiler) compileAssign(s *parser.AssignStatement) {
	c.compileExpr(s.Value)
	c.emit(opcode.StoreVar, s.Name, s.Line())
}

var augAssignOpcodes = map[string]opcode.Op{
	"+": opcode.BinaryAdd,
	"-": opcode.BinarySub,
	"*": opcode.BinaryMul,
	"/": opcode.BinaryDiv,
}

func (c *Compiler) compileAugAssign(s *parser.AugAssignStatement) {
	c.checkNameResolved(s.Name, s.Line())
	c.emit(opcode.LoadVar, s.Name, s.Line())
	c.compileExpr(s.Value)
	c.emit(augAssignOpcodes[s.Op], nil, s.Line())
	c.emit(opcode.StoreVar, s.Name, s.Line())
}

func (c *Compiler) compileIf(s *parser.IfStatement) {
	var endJumps []int

	c.compileExpr(s.Cond)
	nextJump := c.emit(opcode.PopJumpIfFalse, nil, s.Line())
	c.compileBlock(s.Then)
	endJumps = append(endJumps, c.emit(opcode.Jump, nil, s.Line()))
	c.prog.PatchJump(nextJump)

	for _, elif := range s.Elifs {
		c.compileExpr(elif.Cond)
		nextJump = c.emit(opcode.PopJumpIfFalse, nil, elif.LineNo)
		c.compileBlock(elif.Body)
		endJumps = append(endJumps, c.emit(opcode.Jump, nil, elif.LineNo))
		c.prog.PatchJump(nextJump)
	}

	if s.Else != nil {
		c.compileBlock(s.Else)
	}

	for _, j := range endJumps {
		c.prog.PatchJump(j)
	}
}

// compileWhile lowers `while C: B` as: Lstart: compile C;
// POP_JUMP_IF_FALSE Lend; compile B; JUMP Lstart; Lend.
func (c *Compiler) compileWhile(s *parser.WhileStatement) {
	lstart := len(c.prog.Code)
	c.compileExpr(s.Cond)
	jumpEnd := c.emit(opcode.PopJumpIfFalse, nil, s.Line())

	frame := &loopFrame{start: lstart, cleanupPops: 0}
	c.loopStack = append(c.loopStack, frame)
	c.compileBlock(s.Body)
	c.loopStack = c.loopStack[:len(c.loopStack)-1]

	c.emit(opcode.Jump, lstart, s.Line())
	lend := len(c.prog.Code)
	c.prog.PatchJumpTo(jumpEnd, lend)
	for _, bj := range frame.breakJumps {
		c.prog.PatchJumpTo(bj, lend)
	}
}

// compileFor lowers `for v in E: B` as: compile E; GET_ITER;
// Lstart: FOR_ITER Lend; STORE_VAR v; compile B; JUMP Lstart; Lend.
func (c *Compiler) compileFor(s *parser.ForStatement) {
	iterType := c.typeOf(s.Iterable)
	c.compileExpr(s.Iterable)
	c.emit(opcode.GetIter, nil, s.Line())

	lstart := len(c.prog.Code)
	forIter := c.emit(opcode.ForIter, nil, s.Line())

	if iterType.Tag == host.ListTag && iterType.ElemTag != "" {
		c.varTypes[s.Var] = exprType{Tag: iterType.ElemTag}
	} else {
		c.varTypes[s.Var] = anyType
	}
	c.emit(opcode.StoreVar, s.Var, s.Line())

	frame := &loopFrame{start: lstart, cleanupPops: 2}
	c.loopStack = append(c.loopStack, frame)
	c.compileBlock(s.Body)
	c.loopStack = c.loopStack[:len(c.loopStack)-1]

	c.emit(opcode.Jump, lstart, s.Line())
	lend := len(c.prog.Code)
	c.prog.PatchJumpTo(forIter, lend)
	for _, bj := range frame.breakJumps {
		c.prog.PatchJumpTo(bj, lend)
	}
}

// compileFunctionDef emits the function's body as a nested Program and a
// single MAKE_FUNCTION + STORE_VAR in the enclosing code.
func (c *Compiler) compileFunctionDef(s *parser.FunctionDefStatement) {
	inner := &opcode.Program{}
	savedProg, savedLoops := c.prog, c.loopStack
	c.prog, c.loopStack = inner, nil

	c.compileBlock(s.Body)
	noneIdx := c.prog.AddConstant(nil)
	c.emit(opcode.LoadConst, noneIdx, s.Line())
	c.emit(opcode.ReturnValue, nil, s.Line())

	c.prog, c.loopStack = savedProg, savedLoops

	protoIdx := len(c.prog.Functions)
	c.prog.Functions = append(c.prog.Functions, &opcode.FunctionProto{
		Name:       s.Name,
		Parameters: s.Parameters,
		Body:       inner,
	})
	c.emit(opcode.MakeFunction, protoIdx, s.Line())
	c.emit(opcode.StoreVar, s.Name, s.Line())
}

func (c *Compiler) compileReturn(s *parser.ReturnStatement) {
	if s.Value != nil {
		c.compileExpr(s.Value)
	} else {
		idx := c.prog.AddConstant(nil)
		c.emit(opcode.LoadConst, idx, s.Line())
	}
	c.emit(opcode.ReturnValue, nil, s.Line())
}

func (c *Compiler) compileBreak(s *parser.BreakStatement) {
	if len(c.loopStack) == 0 {
		c.addDiagnostic(SyntaxErrorKind, "'break' outside loop", s.Line(), 0)
		return
	}
	frame := c.loopStack[len(c.loopStack)-1]
	for i := 0; i < frame.cleanupPops; i++ {
		c.emit(opcode.Pop, nil, s.Line())
	}
	idx := c.emit(opcode.Jump, nil, s.Line())
	frame.breakJumps = append(frame.breakJumps, idx)
}

func (c *Compiler) compileContinue(s *parser.ContinueStatement) {
	if len(c.loopStack) == 0 {
		c.addDiagnostic(SyntaxErrorKind, "'continue' outside loop", s.Line(), 0)
		return
	}
	frame := c.loopStack[len(c.loopStack)-1]
	c.emit(opcode.Jump, frame.start, s.Line())
}

// --- Expressions ------------------------------------------------------

var binaryOpcodes = map[string]opcode.Op{
	"+":  opcode.BinaryAdd,
	"-":  opcode.BinarySub,
	"*":  opcode.BinaryMul,
	"/":  opcode.BinaryDiv,
	"//": opcode.BinaryFloorDiv,
	"%":  opcode.BinaryMod,
	"**": opcode.BinaryPow,
}

var compareOpcodes = map[string]opcode.Op{
	"==": opcode.CompareEQ,
	"!=": opcode.CompareNE,
	"<":  opcode.CompareLT,
	">":  opcode.CompareGT,
	"<=": opcode.CompareLE,
	">=": opcode.CompareGE,
}

func (c *Compiler) compileExpr(e parser.Expression) {
	switch ex := e.(type) {
	case *parser.NumberLiteral:
		idx := c.prog.AddConstant(ex.Value)
		c.emit(opcode.LoadConst, idx, ex.Line())
	case *parser.StringLiteral:
		idx := c.prog.AddConstant(ex.Value)
		c.emit(opcode.LoadConst, idx, ex.Line())
	case *parser.BoolLiteral:
		idx := c.prog.AddConstant(ex.Value)
		c.emit(opcode.LoadConst, idx, ex.Line())
	case *parser.NoneLiteral:
		idx := c.prog.AddConstant(nil)
		c.emit(opcode.LoadConst, idx, ex.Line())
	case *parser.NameExpr:
		c.checkNameResolved(ex.Name, ex.Line())
		c.emit(opcode.LoadVar, ex.Name, ex.Line())
	case *parser.BinaryExpr:
		c.compileExpr(ex.Left)
		c.compileExpr(ex.Right)
		c.emit(binaryOpcodes[ex.Op], nil, ex.Line())
	case *parser.UnaryExpr:
		c.compileExpr(ex.Operand)
		c.emit(opcode.UnaryNeg, nil, ex.Line())
	case *parser.CompareExpr:
		c.compileExpr(ex.Left)
		c.compileExpr(ex.Right)
		c.emit(compareOpcodes[ex.Op], nil, ex.Line())
	case *parser.LogicalExpr:
		c.compileLogical(ex)
	case *parser.NotExpr:
		c.compileExpr(ex.Operand)
		c.emit(opcode.UnaryNot, nil, ex.Line())
	case *parser.CallExpr:
		c.compileExpr(ex.Callee)
		for _, a := range ex.Args {
			c.compileExpr(a)
		}
		c.emit(opcode.Call, len(ex.Args), ex.Line())
	case *parser.AttrExpr:
		c.compileAttr(ex)
	case *parser.IndexExpr:
		c.compileExpr(ex.Container)
		c.compileExpr(ex.Index)
		c.emit(opcode.GetIndex, nil, ex.Line())
	case *parser.ListExpr:
		for _, el := range ex.Elements {
			c.compileExpr(el)
		}
		c.emit(opcode.BuildList, len(ex.Elements), ex.Line())
	}
}

// compileLogical lowers short-circuit `and`/`or`:
// `a and b`: compile a; JUMP_IF_FALSE Lend (non-popping); POP; compile b;
// Lend. `a or b` is symmetric with JUMP_IF_TRUE.
func (c *Compiler) compileLogical(ex *parser.LogicalExpr) {
	c.compileExpr(ex.Left)
	jumpOp := opcode.JumpIfFalse
	if ex.Op == "or" {
		jumpOp = opcode.JumpIfTrue
	}
	jumpIdx := c.emit(jumpOp, nil, ex.Line())
	c.emit(opcode.Pop, nil, ex.Line())
	c.compileExpr(ex.Right)
	c.prog.PatchJump(jumpIdx)
}

func (c *Compiler) compileAttr(ex *parser.AttrExpr) {
	c.compileExpr(ex.Object)
	objType := c.typeOf(ex.Object)
	if c.schema.Known(objType.Tag) {
		if _, ok := c.schema.Lookup(objType.Tag, ex.Name); !ok {
			msg := fmt.Sprintf("%s has no attribute %s", objType.Tag, ex.Name)
			if suggestion, ok := suggestAttribute(c.schema.Names(objType.Tag), ex.Name); ok {
				msg += fmt.Sprintf("; did you mean '%s'?", suggestion)
			}
			c.addDiagnostic(AttributeErrorKind, msg, ex.Line(), 0)
		}
	}
	c.emit(opcode.LoadAttr, ex.Name, ex.Line())
}
