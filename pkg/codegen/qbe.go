package codegen

import (
	"bytes"
	"fmt"
	"strings"

	"emberc/pkg/ast"
	"emberc/pkg/token"
	"modernc.org/libqbe"
)

// QBEBackend lowers the same Program the primary X86Backend consumes
// into QBE intermediate language text, then asks libqbe to assemble it.
// It is not on the default compile path (see NewX86Backend): its only
// job is to act as an independent correctness oracle that cmd/embertest
// differentially checks against the hand-written backend's observed
// exit codes. Locals are modeled as memory slots (alloc8/load/store)
// rather than true SSA values, the same non-optimized legalization
// approach a production QBE frontend uses and leaves to QBE's own
// mem2reg pass.
type QBEBackend struct {
	target     string
	out        strings.Builder
	tmpCount   int
	blockCount int
}

// NewQBEBackend builds a QBEBackend targeting goos/goarch, resolved via
// libqbe.DefaultTarget.
func NewQBEBackend(goos, goarch string) (*QBEBackend, error) {
	target := libqbe.DefaultTarget(goos, goarch)
	if target == "" {
		return nil, fmt.Errorf("emberc: no libqbe target for %s/%s", goos, goarch)
	}
	return &QBEBackend{target: target}, nil
}

type qbeFnState struct {
	slots map[string]string // variable name -> %slot temp
}

func (b *QBEBackend) Generate(prog *ast.Program) (string, error) {
	b.out.Reset()
	b.tmpCount = 0
	b.blockCount = 0

	for _, stmt := range prog.Stmts {
		fn, ok := stmt.(*ast.FunctionDef)
		if !ok {
			continue
		}
		if err := b.genFunction(fn); err != nil {
			return "", err
		}
	}

	qbeIR := b.out.String()
	var asmBuf bytes.Buffer
	if err := libqbe.Main(b.target, "ember.ssa", strings.NewReader(qbeIR), &asmBuf, nil); err != nil {
		return "", fmt.Errorf("libqbe: %w\n--- generated IL ---\n%s", err, qbeIR)
	}
	// The IL cannot express a raw syscall, so the exit helper and the
	// _start entry point (same sequence as X86Backend's) are appended as
	// assembly after libqbe's output.
	asmBuf.WriteString("\n.text\n.globl ember_exit\nember_exit:\n\tmov $60, %rax\n\tsyscall\n")
	asmBuf.WriteString("\n.globl _start\n_start:\n\tcall main\n\tmov %rax, %rdi\n\tmov $60, %rax\n\tsyscall\n")
	return asmBuf.String(), nil
}

func (b *QBEBackend) newTemp() string {
	b.tmpCount++
	return fmt.Sprintf("%%t%d", b.tmpCount)
}

func (b *QBEBackend) newBlock(name string) string {
	b.blockCount++
	return fmt.Sprintf("@%s%d", name, b.blockCount)
}

func (b *QBEBackend) genFunction(fn *ast.FunctionDef) error {
	st := &qbeFnState{slots: make(map[string]string)}

	paramList := make([]string, len(fn.Params))
	for i, name := range fn.Params {
		paramList[i] = fmt.Sprintf("l %%p_%s", name)
	}
	fmt.Fprintf(&b.out, "export function l $%s(%s) {\n@start\n", fn.Name, strings.Join(paramList, ", "))

	for _, name := range fn.Params {
		slot := fmt.Sprintf("%%s_%s", name)
		fmt.Fprintf(&b.out, "\t%s =l alloc8 8\n", slot)
		fmt.Fprintf(&b.out, "\tstorel %%p_%s, %s\n", name, slot)
		st.slots[name] = slot
	}

	for _, stmt := range fn.Body.Stmts {
		if err := b.genStmt(stmt, st); err != nil {
			return err
		}
	}

	b.out.WriteString("\tret 0\n}\n\n")
	return nil
}

func (b *QBEBackend) allocSlot(st *qbeFnState, name string) string {
	slot := fmt.Sprintf("%%s_%s_%d", name, len(st.slots))
	fmt.Fprintf(&b.out, "\t%s =l alloc8 8\n", slot)
	st.slots[name] = slot
	return slot
}

func (b *QBEBackend) genStmt(stmt ast.Stmt, st *qbeFnState) error {
	switch s := stmt.(type) {
	case *ast.LetStmt:
		v, err := b.genExpr(s.Init, st)
		if err != nil {
			return err
		}
		slot := b.allocSlot(st, s.Name)
		fmt.Fprintf(&b.out, "\tstorel %s, %s\n", v, slot)

	case *ast.Assign:
		v, err := b.genExpr(s.Value, st)
		if err != nil {
			return err
		}
		slot, ok := st.slots[s.Name]
		if !ok {
			return fmt.Errorf("emberc: internal error: qbe assign to unknown slot %q", s.Name)
		}
		fmt.Fprintf(&b.out, "\tstorel %s, %s\n", v, slot)

	case *ast.IfStmt:
		return b.genIf(s, st)

	case *ast.WhileStmt:
		return b.genWhile(s, st)

	case *ast.ForStmt:
		return b.genFor(s, st)

	case *ast.Return:
		v, err := b.genExpr(s.Value, st)
		if err != nil {
			return err
		}
		fmt.Fprintf(&b.out, "\tret %s\n", v)
		cont := b.newBlock("aftret")
		fmt.Fprintf(&b.out, "%s\n", cont)

	case *ast.ExitStmt:
		v, err := b.genExpr(s.Value, st)
		if err != nil {
			return err
		}
		fmt.Fprintf(&b.out, "\tcall $ember_exit(l %s)\n", v)
		cont := b.newBlock("aftexit")
		fmt.Fprintf(&b.out, "%s\n", cont)

	case *ast.Block:
		for _, inner := range s.Stmts {
			if err := b.genStmt(inner, st); err != nil {
				return err
			}
		}

	case *ast.ExprStmt:
		_, err := b.genExpr(s.Value, st)
		return err

	default:
		return fmt.Errorf("emberc: internal error: unhandled statement %T", s)
	}
	return nil
}

func (b *QBEBackend) genIf(s *ast.IfStmt, st *qbeFnState) error {
	cond, err := b.genExpr(s.Cond, st)
	if err != nil {
		return err
	}
	thenL := b.newBlock("then")
	elseL := b.newBlock("else")
	endL := b.newBlock("endif")
	fmt.Fprintf(&b.out, "\tjnz %s, %s, %s\n", cond, thenL, elseL)
	fmt.Fprintf(&b.out, "%s\n", thenL)
	for _, inner := range s.Then.Stmts {
		if err := b.genStmt(inner, st); err != nil {
			return err
		}
	}
	fmt.Fprintf(&b.out, "\tjmp %s\n%s\n", endL, elseL)
	if s.Else != nil {
		for _, inner := range s.Else.Stmts {
			if err := b.genStmt(inner, st); err != nil {
				return err
			}
		}
	}
	fmt.Fprintf(&b.out, "\tjmp %s\n%s\n", endL, endL)
	return nil
}

func (b *QBEBackend) genWhile(s *ast.WhileStmt, st *qbeFnState) error {
	startL := b.newBlock("while")
	bodyL := b.newBlock("whilebody")
	endL := b.newBlock("endwhile")
	fmt.Fprintf(&b.out, "\tjmp %s\n%s\n", startL, startL)
	cond, err := b.genExpr(s.Cond, st)
	if err != nil {
		return err
	}
	fmt.Fprintf(&b.out, "\tjnz %s, %s, %s\n", cond, bodyL, endL)
	fmt.Fprintf(&b.out, "%s\n", bodyL)
	for _, inner := range s.Body.Stmts {
		if err := b.genStmt(inner, st); err != nil {
			return err
		}
	}
	fmt.Fprintf(&b.out, "\tjmp %s\n%s\n", startL, endL)
	return nil
}

func (b *QBEBackend) genFor(s *ast.ForStmt, st *qbeFnState) error {
	if err := b.genStmt(s.Init, st); err != nil {
		return err
	}
	startL := b.newBlock("for")
	bodyL := b.newBlock("forbody")
	endL := b.newBlock("endfor")
	fmt.Fprintf(&b.out, "\tjmp %s\n%s\n", startL, startL)
	cond, err := b.genExpr(s.Cond, st)
	if err != nil {
		return err
	}
	fmt.Fprintf(&b.out, "\tjnz %s, %s, %s\n", cond, bodyL, endL)
	fmt.Fprintf(&b.out, "%s\n", bodyL)
	for _, inner := range s.Body.Stmts {
		if err := b.genStmt(inner, st); err != nil {
			return err
		}
	}
	if err := b.genStmt(s.Step, st); err != nil {
		return err
	}
	fmt.Fprintf(&b.out, "\tjmp %s\n%s\n", startL, endL)
	return nil
}

func (b *QBEBackend) genExpr(expr ast.Expr, st *qbeFnState) (string, error) {
	switch e := expr.(type) {
	case *ast.IntLit:
		t := b.newTemp()
		fmt.Fprintf(&b.out, "\t%s =l copy %d\n", t, e.Value)
		return t, nil

	case *ast.Ident:
		slot, ok := st.slots[e.Name]
		if !ok {
			return "", fmt.Errorf("emberc: internal error: qbe reference to unknown slot %q", e.Name)
		}
		t := b.newTemp()
		fmt.Fprintf(&b.out, "\t%s =l loadl %s\n", t, slot)
		return t, nil

	case *ast.BinaryOp:
		return b.genBinaryOp(e, st)

	case *ast.FunctionCall:
		return b.genCall(e, st)

	case *ast.BlockExpr:
		var last string
		for _, inner := range e.Block.Stmts {
			if _, ok := inner.(*ast.Return); ok {
				// A Return placed directly in a block-expression
				// yields the block's value rather than returning from
				// the enclosing function. A Return nested deeper (in
				// an if/while/for body) goes through genStmt and still
				// returns from the function.
				r := inner.(*ast.Return)
				v, err := b.genExpr(r.Value, st)
				if err != nil {
					return "", err
				}
				last = v
				continue
			}
			if err := b.genStmt(inner, st); err != nil {
				return "", err
			}
		}
		return last, nil

	default:
		return "", fmt.Errorf("emberc: internal error: unhandled expression %T", e)
	}
}

func (b *QBEBackend) genBinaryOp(e *ast.BinaryOp, st *qbeFnState) (string, error) {
	l, err := b.genExpr(e.Left, st)
	if err != nil {
		return "", err
	}
	r, err := b.genExpr(e.Right, st)
	if err != nil {
		return "", err
	}
	t := b.newTemp()
	switch e.Op {
	case token.Plus:
		fmt.Fprintf(&b.out, "\t%s =l add %s, %s\n", t, l, r)
	case token.Minus:
		fmt.Fprintf(&b.out, "\t%s =l sub %s, %s\n", t, l, r)
	case token.Star:
		fmt.Fprintf(&b.out, "\t%s =l mul %s, %s\n", t, l, r)
	case token.Percent:
		fmt.Fprintf(&b.out, "\t%s =l rem %s, %s\n", t, l, r)
	case token.Eq:
		fmt.Fprintf(&b.out, "\t%s =l ceql %s, %s\n", t, l, r)
	case token.Lt:
		fmt.Fprintf(&b.out, "\t%s =l csltl %s, %s\n", t, l, r)
	case token.Gt:
		fmt.Fprintf(&b.out, "\t%s =l csgtl %s, %s\n", t, l, r)
	default:
		return "", fmt.Errorf("emberc: internal error: unhandled operator %s", e.Op)
	}
	return t, nil
}

func (b *QBEBackend) genCall(e *ast.FunctionCall, st *qbeFnState) (string, error) {
	argVals := make([]string, len(e.Args))
	for i, arg := range e.Args {
		v, err := b.genExpr(arg, st)
		if err != nil {
			return "", err
		}
		argVals[i] = "l " + v
	}
	t := b.newTemp()
	fmt.Fprintf(&b.out, "\t%s =l call $%s(%s)\n", t, e.Name, strings.Join(argVals, ", "))
	return t, nil
}
