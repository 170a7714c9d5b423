package parser

import (
	"testing"

	"github.com/unitscript/unitscript/pkg/compiler/lexer"
)

func parseSource(t *testing.T, src string) *Program {
	t.Helper()
	tokens, err := lexer.Tokenize(src)
	if err != nil {
		t.Fatalf("lex error: %v", err)
	}
	prog, err := Parse(tokens)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	return prog
}

func TestParseAssignment(t *testing.T) {
	prog := parseSource(t, "x = 1 + 2 * 3\n")
	if len(prog.Statements) != 1 {
		t.Fatalf("expected 1 statement, got %d", len(prog.Statements))
	}
	assign, ok := prog.Statements[0].(*AssignStatement)
	if !ok {
		t.Fatalf("expected *AssignStatement, got %T", prog.Statements[0])
	}
	if assign.Name != "x" {
		t.Errorf("expected target x, got %s", assign.Name)
	}
	bin, ok := assign.Value.(*BinaryExpr)
	if !ok || bin.Op != "+" {
		t.Fatalf("expected top-level +, got %#v", assign.Value)
	}
	rhs, ok := bin.Right.(*BinaryExpr)
	if !ok || rhs.Op != "*" {
		t.Fatalf("expected * to bind tighter than +, got %#v", bin.Right)
	}
}

func TestParsePowerIsRightAssociativeAndBindsTighterThanUnaryMinus(t *testing.T) {
	prog := parseSource(t, "x = -2 ** 2\n")
	assign := prog.Statements[0].(*AssignStatement)
	unary, ok := assign.Value.(*UnaryExpr)
	if !ok {
		t.Fatalf("expected outer UnaryExpr (- binds loosest), got %#v", assign.Value)
	}
	pow, ok := unary.Operand.(*BinaryExpr)
	if !ok || pow.Op != "**" {
		t.Fatalf("expected inner power expression, got %#v", unary.Operand)
	}

	prog = parseSource(t, "x = 2 ** 3 ** 2\n")
	outer, ok := prog.Statements[0].(*AssignStatement).Value.(*BinaryExpr)
	if !ok || outer.Op != "**" {
		t.Fatalf("expected outer power expression, got %#v", prog.Statements[0])
	}
	if _, ok := outer.Left.(*NumberLiteral); !ok {
		t.Fatalf("expected 2 ** (3 ** 2), got left operand %#v", outer.Left)
	}
	inner, ok := outer.Right.(*BinaryExpr)
	if !ok || inner.Op != "**" {
		t.Fatalf("expected 2 ** (3 ** 2), got right operand %#v", outer.Right)
	}
}

func TestParseIfElifElse(t *testing.T) {
	src := "if a:\n    x = 1\nelif b:\n    x = 2\nelse:\n    x = 3\n"
	prog := parseSource(t, src)
	ifStmt, ok := prog.Statements[0].(*IfStatement)
	if !ok {
		t.Fatalf("expected *IfStatement, got %T", prog.Statements[0])
	}
	if len(ifStmt.Then) != 1 {
		t.Errorf("expected 1 then-statement, got %d", len(ifStmt.Then))
	}
	if len(ifStmt.Elifs) != 1 {
		t.Fatalf("expected 1 elif clause, got %d", len(ifStmt.Elifs))
	}
	if ifStmt.Else == nil || len(ifStmt.Else) != 1 {
		t.Errorf("expected 1 else-statement")
	}
}

func TestParseWhileLoop(t *testing.T) {
	src := "while count < 10:\n    count = count + 1\n"
	prog := parseSource(t, src)
	w, ok := prog.Statements[0].(*WhileStatement)
	if !ok {
		t.Fatalf("expected *WhileStatement, got %T", prog.Statements[0])
	}
	cmp, ok := w.Cond.(*CompareExpr)
	if !ok || cmp.Op != "<" {
		t.Fatalf("expected < comparison, got %#v", w.Cond)
	}
}

func TestParseForLoopOverListLiteral(t *testing.T) {
	src := "for i in [1, 2, 3]:\n    total = total + i\n"
	prog := parseSource(t, src)
	f, ok := prog.Statements[0].(*ForStatement)
	if !ok {
		t.Fatalf("expected *ForStatement, got %T", prog.Statements[0])
	}
	if f.Var != "i" {
		t.Errorf("expected loop var i, got %s", f.Var)
	}
	list, ok := f.Iterable.(*ListExpr)
	if !ok || len(list.Elements) != 3 {
		t.Fatalf("expected a 3-element list literal, got %#v", f.Iterable)
	}
}

func TestParseFunctionDefAndRecursiveCall(t *testing.T) {
	src := "def factorial(n):\n    if n <= 1:\n        return 1\n    return n * factorial(n - 1)\n"
	prog := parseSource(t, src)
	def, ok := prog.Statements[0].(*FunctionDefStatement)
	if !ok {
		t.Fatalf("expected *FunctionDefStatement, got %T", prog.Statements[0])
	}
	if def.Name != "factorial" || len(def.Parameters) != 1 || def.Parameters[0] != "n" {
		t.Fatalf("unexpected function signature: %+v", def)
	}
	if len(def.Body) != 2 {
		t.Fatalf("expected 2 body statements, got %d", len(def.Body))
	}
}

func TestParseAttributeAndCallChain(t *testing.T) {
	prog := parseSource(t, "self.scan().first()\n")
	exprStmt, ok := prog.Statements[0].(*ExprStatement)
	if !ok {
		t.Fatalf("expected *ExprStatement, got %T", prog.Statements[0])
	}
	outer, ok := exprStmt.Expr.(*CallExpr)
	if !ok {
		t.Fatalf("expected outer CallExpr, got %#v", exprStmt.Expr)
	}
	attr, ok := outer.Callee.(*AttrExpr)
	if !ok || attr.Name != "first" {
		t.Fatalf("expected .first attribute callee, got %#v", outer.Callee)
	}
	inner, ok := attr.Object.(*CallExpr)
	if !ok {
		t.Fatalf("expected inner CallExpr, got %#v", attr.Object)
	}
	innerAttr, ok := inner.Callee.(*AttrExpr)
	if !ok || innerAttr.Name != "scan" {
		t.Fatalf("expected .scan attribute callee, got %#v", inner.Callee)
	}
}

func TestParseIndexExpression(t *testing.T) {
	prog := parseSource(t, "x = enemies[0]\n")
	assign := prog.Statements[0].(*AssignStatement)
	idx, ok := assign.Value.(*IndexExpr)
	if !ok {
		t.Fatalf("expected *IndexExpr, got %#v", assign.Value)
	}
	if _, ok := idx.Container.(*NameExpr); !ok {
		t.Errorf("expected name container, got %#v", idx.Container)
	}
}

func TestParseAugmentedAssignment(t *testing.T) {
	prog := parseSource(t, "total += i * i\n")
	aug, ok := prog.Statements[0].(*AugAssignStatement)
	if !ok {
		t.Fatalf("expected *AugAssignStatement, got %T", prog.Statements[0])
	}
	if aug.Name != "total" || aug.Op != "+" {
		t.Errorf("unexpected augmented assignment: %+v", aug)
	}
}

func TestParseBreakAndContinueInsideLoop(t *testing.T) {
	src := "while True:\n    if x == 3:\n        continue\n    if x == 9:\n        break\n"
	prog := parseSource(t, src)
	w := prog.Statements[0].(*WhileStatement)
	if len(w.Body) != 2 {
		t.Fatalf("expected 2 body statements, got %d", len(w.Body))
	}
}

func TestParseLogicalShortCircuitNodes(t *testing.T) {
	prog := parseSource(t, "x = a and b or c\n")
	assign := prog.Statements[0].(*AssignStatement)
	top, ok := assign.Value.(*LogicalExpr)
	if !ok || top.Op != "or" {
		t.Fatalf("expected top-level 'or' (lowest precedence), got %#v", assign.Value)
	}
	left, ok := top.Left.(*LogicalExpr)
	if !ok || left.Op != "and" {
		t.Fatalf("expected 'and' to bind tighter than 'or', got %#v", top.Left)
	}
}

func TestParseUnexpectedTokenIsFatalSyntaxError(t *testing.T) {
	tokens, err := lexer.Tokenize("x = = 1\n")
	if err != nil {
		t.Fatalf("lex error: %v", err)
	}
	_, err = Parse(tokens)
	if err == nil {
		t.Fatal("expected a SyntaxError for a malformed assignment")
	}
	if _, ok := err.(*SyntaxError); !ok {
		t.Fatalf("expected *SyntaxError, got %T", err)
	}
}

func TestParseMismatchedParenIsFatalSyntaxError(t *testing.T) {
	tokens, err := lexer.Tokenize("x = (1 + 2\n")
	if err != nil {
		t.Fatalf("lex error: %v", err)
	}
	_, err = Parse(tokens)
	if err == nil {
		t.Fatal("expected a SyntaxError for an unterminated group")
	}
}
