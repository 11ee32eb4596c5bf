package parser

import (
	"testing"

	"emberc/pkg/ast"
	"emberc/pkg/lexer"
	"emberc/pkg/token"
)

func parseSrc(t *testing.T, src string) (*ast.Program, error) {
	t.Helper()
	toks, err := lexer.Lex([]rune(src))
	if err != nil {
		t.Fatalf("lex(%q) failed: %v", src, err)
	}
	return Parse(toks)
}

// evalProgram is a tiny tree-walking interpreter over the AST, used only
// by tests to assert on precedence/associativity without shelling out to
// cc to assemble and link.
func evalProgram(prog *ast.Program) (int64, error) {
	vars := map[string]int64{}
	for _, stmt := range prog.Stmts {
		if fn, ok := stmt.(*ast.FunctionDef); ok && fn.Name == "main" {
			return evalBlock(fn.Body, vars)
		}
	}
	return 0, nil
}

func evalBlock(b *ast.Block, vars map[string]int64) (int64, error) {
	for _, stmt := range b.Stmts {
		switch s := stmt.(type) {
		case *ast.LetStmt:
			v, err := evalExpr(s.Init, vars)
			if err != nil {
				return 0, err
			}
			vars[s.Name] = v
		case *ast.Assign:
			v, err := evalExpr(s.Value, vars)
			if err != nil {
				return 0, err
			}
			vars[s.Name] = v
		case *ast.Return:
			return evalExpr(s.Value, vars)
		case *ast.WhileStmt:
			for {
				c, err := evalExpr(s.Cond, vars)
				if err != nil {
					return 0, err
				}
				if c == 0 {
					break
				}
				if v, err := evalBlock(s.Body, vars); err != nil || hasReturnValue(s.Body) {
					return v, err
				}
			}
		}
	}
	return 0, nil
}

func hasReturnValue(b *ast.Block) bool {
	for _, s := range b.Stmts {
		if _, ok := s.(*ast.Return); ok {
			return true
		}
	}
	return false
}

func evalExpr(e ast.Expr, vars map[string]int64) (int64, error) {
	switch v := e.(type) {
	case *ast.IntLit:
		return v.Value, nil
	case *ast.Ident:
		return vars[v.Name], nil
	case *ast.BinaryOp:
		l, err := evalExpr(v.Left, vars)
		if err != nil {
			return 0, err
		}
		r, err := evalExpr(v.Right, vars)
		if err != nil {
			return 0, err
		}
		switch v.Op {
		case token.Plus:
			return l + r, nil
		case token.Minus:
			return l - r, nil
		case token.Star:
			return l * r, nil
		case token.Percent:
			return l % r, nil
		case token.Eq:
			return boolToInt(l == r), nil
		case token.Lt:
			return boolToInt(l < r), nil
		case token.Gt:
			return boolToInt(l > r), nil
		}
	}
	return 0, nil
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func TestPrecedence(t *testing.T) {
	prog, err := parseSrc(t, "define main() { return 1+2*3; }")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	got, err := evalProgram(prog)
	if err != nil {
		t.Fatalf("eval error: %v", err)
	}
	if got != 7 {
		t.Errorf("1+2*3 = %d, want 7", got)
	}

	prog, err = parseSrc(t, "define main() { return (1+2)*3; }")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	got, err = evalProgram(prog)
	if err != nil {
		t.Fatalf("eval error: %v", err)
	}
	if got != 9 {
		t.Errorf("(1+2)*3 = %d, want 9", got)
	}
}

func TestModulo(t *testing.T) {
	prog, err := parseSrc(t, "define main() { return 5%2; }")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	got, err := evalProgram(prog)
	if err != nil {
		t.Fatalf("eval error: %v", err)
	}
	if got != 1 {
		t.Errorf("5%%2 = %d, want 1", got)
	}
}

func TestLeftAssociativity(t *testing.T) {
	prog, err := parseSrc(t, "define main() { return 10-4-3; }")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	got, err := evalProgram(prog)
	if err != nil {
		t.Fatalf("eval error: %v", err)
	}
	if got != 3 {
		t.Errorf("10-4-3 = %d, want 3", got)
	}
}

func TestUseBeforeDeclare(t *testing.T) {
	_, err := parseSrc(t, "define main() { let x = x; return x; }")
	if err == nil {
		t.Fatal("expected a name-resolution error for let x = x;")
	}
	if _, ok := err.(*NameError); !ok {
		t.Fatalf("expected *parser.NameError, got %T: %v", err, err)
	}
}

func TestCallBeforeDefine(t *testing.T) {
	_, err := parseSrc(t, "define main() { return f(0); }")
	if err == nil {
		t.Fatal("expected a name-resolution error calling an undefined function")
	}
}

func TestRecursiveSelfCallAllowed(t *testing.T) {
	_, err := parseSrc(t, "define fact(n) { if (n < 2) { return 1; } else { return n * fact(n-1); } } define main() { return fact(5); }")
	if err != nil {
		t.Fatalf("recursive self-call should be permitted: %v", err)
	}
}

func TestReturnOutsideFunctionRejected(t *testing.T) {
	_, err := parseSrc(t, "{ return 1; }")
	if err == nil {
		t.Fatal("expected return outside a function body to be rejected")
	}
}

func TestBlockExpressionRequiresReturn(t *testing.T) {
	_, err := parseSrc(t, "define main() { let x = { let y = 1; }; return x; }")
	if err == nil {
		t.Fatal("expected a block-expression with no return to be rejected")
	}
}

func TestReturnNestedInsideIf(t *testing.T) {
	_, err := parseSrc(t, "define main() { if (1 == 1) { return 7; } else { return 9; } }")
	if err != nil {
		t.Fatalf("return nested inside if/else bodies should be legal: %v", err)
	}
}

func TestSemicolonSeparatedParamsAndArgs(t *testing.T) {
	_, err := parseSrc(t, "define add(x; y) { return x + y; } define main() { return add(20; 22); }")
	if err != nil {
		t.Fatalf("semicolon-separated params/args should parse: %v", err)
	}
}

func TestForLoopHeader(t *testing.T) {
	_, err := parseSrc(t, "define main() { for (let i = 0; i < 5; i = i + 1) { } return 0; }")
	if err != nil {
		t.Fatalf("for-loop header should parse: %v", err)
	}
}
