package codegen

import (
	"fmt"
	"strings"

	"emberc/pkg/ast"
	"emberc/pkg/token"
)

// argRegs is the System V AMD64 integer argument register order.
var argRegs = []string{"%rdi", "%rsi", "%rdx", "%rcx", "%r8", "%r9"}

// X86Backend is the primary, default backend: a direct, non-optimizing
// stack-machine emitter of GNU-assembler AT&T x86-64 text targeting the
// System V AMD64 ABI on Linux. It deliberately reproduces the frame-size
// counting limitation documented alongside this package rather than
// fixing it.
type X86Backend struct {
	out        strings.Builder
	labelCount int
}

func NewX86Backend() *X86Backend { return &X86Backend{} }

// fnState is the per-function generator state: the symbol table mapping
// a local or parameter name to its %rbp-relative offset, and the next
// free local slot index.
type fnState struct {
	slots    map[string]int
	nextSlot int
}

func (b *X86Backend) Generate(prog *ast.Program) (string, error) {
	b.out.Reset()
	b.labelCount = 0

	b.out.WriteString(".text\n")
	for _, stmt := range prog.Stmts {
		fn, ok := stmt.(*ast.FunctionDef)
		if !ok {
			// Non-function top-level statements are part of the
			// grammar but have no entry point to run from; the
			// generator ignores them, per the emission order rule.
			continue
		}
		if err := b.genFunction(fn); err != nil {
			return "", err
		}
	}

	b.out.WriteString("\n.globl _start\n_start:\n")
	b.out.WriteString("\tcall main\n")
	b.out.WriteString("\tmov %rax, %rdi\n")
	b.out.WriteString("\tmov $60, %rax\n")
	b.out.WriteString("\tsyscall\n")

	return b.out.String(), nil
}

func (b *X86Backend) newLabel(prefix string) string {
	b.labelCount++
	return fmt.Sprintf(".L%s_%d", prefix, b.labelCount)
}

// countTopLevelLets counts LetStmt nodes directly in a statement list,
// not recursively into nested if/while/for/block bodies. Nested lets
// still receive a symbol-table slot at codegen time (see genStmt) but no
// extra stack space is reserved for them here — the documented latent
// bug this backend reproduces faithfully rather than fixes.
func countTopLevelLets(stmts []ast.Stmt) int {
	n := 0
	for _, s := range stmts {
		if _, ok := s.(*ast.LetStmt); ok {
			n++
		}
	}
	return n
}

func (b *X86Backend) genFunction(fn *ast.FunctionDef) error {
	st := &fnState{slots: make(map[string]int)}

	fmt.Fprintf(&b.out, "%s:\n", fn.Name)
	b.out.WriteString("\tpush %rbp\n")
	b.out.WriteString("\tmov %rsp, %rbp\n")

	if n := countTopLevelLets(fn.Body.Stmts); n > 0 {
		fmt.Fprintf(&b.out, "\tsub $%d, %%rsp\n", n*8)
	}

	for i, name := range fn.Params {
		offset := -(i + 1) * 8
		st.slots[name] = offset
		if i < 6 {
			fmt.Fprintf(&b.out, "\tmov %s, %d(%%rbp)\n", argRegs[i], offset)
		} else {
			stackOff := (i - 5) * 8
			fmt.Fprintf(&b.out, "\tmov %d(%%rbp), %%rax\n", stackOff)
			fmt.Fprintf(&b.out, "\tmov %%rax, %d(%%rbp)\n", offset)
		}
	}
	st.nextSlot = len(fn.Params)

	for _, stmt := range fn.Body.Stmts {
		if err := b.genStmt(stmt, st); err != nil {
			return err
		}
	}

	b.out.WriteString("\tmov %rbp, %rsp\n")
	b.out.WriteString("\tpop %rbp\n")
	b.out.WriteString("\tret\n")
	return nil
}

func (b *X86Backend) allocSlot(st *fnState, name string) int {
	offset := -(st.nextSlot + 1) * 8
	st.slots[name] = offset
	st.nextSlot++
	return offset
}

func (b *X86Backend) genStmt(stmt ast.Stmt, st *fnState) error {
	switch s := stmt.(type) {
	case *ast.LetStmt:
		if err := b.genExpr(s.Init, st); err != nil {
			return err
		}
		offset := b.allocSlot(st, s.Name)
		fmt.Fprintf(&b.out, "\tmov %%rax, %d(%%rbp)\n", offset)

	case *ast.Assign:
		if err := b.genExpr(s.Value, st); err != nil {
			return err
		}
		offset, ok := st.slots[s.Name]
		if !ok {
			return fmt.Errorf("emberc: internal error: assign to unknown slot %q", s.Name)
		}
		fmt.Fprintf(&b.out, "\tmov %%rax, %d(%%rbp)\n", offset)

	case *ast.IfStmt:
		return b.genIf(s, st)

	case *ast.WhileStmt:
		return b.genWhile(s, st)

	case *ast.ForStmt:
		return b.genFor(s, st)

	case *ast.Return:
		if err := b.genExpr(s.Value, st); err != nil {
			return err
		}
		b.out.WriteString("\tmov %rbp, %rsp\n")
		b.out.WriteString("\tpop %rbp\n")
		b.out.WriteString("\tret\n")

	case *ast.ExitStmt:
		if err := b.genExpr(s.Value, st); err != nil {
			return err
		}
		b.out.WriteString("\tmov %rax, %rdi\n")
		b.out.WriteString("\tmov $60, %rax\n")
		b.out.WriteString("\tsyscall\n")

	case *ast.Block:
		for _, inner := range s.Stmts {
			if err := b.genStmt(inner, st); err != nil {
				return err
			}
		}

	case *ast.ExprStmt:
		return b.genExpr(s.Value, st)

	default:
		return fmt.Errorf("emberc: internal error: unhandled statement %T", s)
	}
	return nil
}

func (b *X86Backend) genIf(s *ast.IfStmt, st *fnState) error {
	elseLabel := b.newLabel("else")
	endLabel := b.newLabel("endif")

	if err := b.genExpr(s.Cond, st); err != nil {
		return err
	}
	b.out.WriteString("\tcmp $0, %rax\n")
	fmt.Fprintf(&b.out, "\tje %s\n", elseLabel)
	for _, inner := range s.Then.Stmts {
		if err := b.genStmt(inner, st); err != nil {
			return err
		}
	}
	fmt.Fprintf(&b.out, "\tjmp %s\n", endLabel)
	fmt.Fprintf(&b.out, "%s:\n", elseLabel)
	if s.Else != nil {
		for _, inner := range s.Else.Stmts {
			if err := b.genStmt(inner, st); err != nil {
				return err
			}
		}
	}
	fmt.Fprintf(&b.out, "%s:\n", endLabel)
	return nil
}

func (b *X86Backend) genWhile(s *ast.WhileStmt, st *fnState) error {
	startLabel := b.newLabel("while")
	endLabel := b.newLabel("endwhile")

	fmt.Fprintf(&b.out, "%s:\n", startLabel)
	if err := b.genExpr(s.Cond, st); err != nil {
		return err
	}
	b.out.WriteString("\tcmp $0, %rax\n")
	fmt.Fprintf(&b.out, "\tje %s\n", endLabel)
	for _, inner := range s.Body.Stmts {
		if err := b.genStmt(inner, st); err != nil {
			return err
		}
	}
	fmt.Fprintf(&b.out, "\tjmp %s\n", startLabel)
	fmt.Fprintf(&b.out, "%s:\n", endLabel)
	return nil
}

// genFor desugars the three-clause loop into the same label scheme as
// genWhile, with the step assignment run at the end of each iteration;
// No distinct emission rule is given for ForStmt, so this follows
// WhileStmt's shape, the nearest-specified case.
func (b *X86Backend) genFor(s *ast.ForStmt, st *fnState) error {
	if err := b.genStmt(s.Init, st); err != nil {
		return err
	}
	startLabel := b.newLabel("for")
	endLabel := b.newLabel("endfor")

	fmt.Fprintf(&b.out, "%s:\n", startLabel)
	if err := b.genExpr(s.Cond, st); err != nil {
		return err
	}
	b.out.WriteString("\tcmp $0, %rax\n")
	fmt.Fprintf(&b.out, "\tje %s\n", endLabel)
	for _, inner := range s.Body.Stmts {
		if err := b.genStmt(inner, st); err != nil {
			return err
		}
	}
	if err := b.genStmt(s.Step, st); err != nil {
		return err
	}
	fmt.Fprintf(&b.out, "\tjmp %s\n", startLabel)
	fmt.Fprintf(&b.out, "%s:\n", endLabel)
	return nil
}

func (b *X86Backend) genExpr(expr ast.Expr, st *fnState) error {
	switch e := expr.(type) {
	case *ast.IntLit:
		fmt.Fprintf(&b.out, "\tmov $%d, %%rax\n", e.Value)

	case *ast.Ident:
		offset, ok := st.slots[e.Name]
		if !ok {
			return fmt.Errorf("emberc: internal error: reference to unknown slot %q", e.Name)
		}
		fmt.Fprintf(&b.out, "\tmov %d(%%rbp), %%rax\n", offset)

	case *ast.BinaryOp:
		return b.genBinaryOp(e, st)

	case *ast.FunctionCall:
		return b.genCall(e, st)

	case *ast.BlockExpr:
		for _, inner := range e.Block.Stmts {
			if err := b.genStmt(inner, st); err != nil {
				return err
			}
		}

	default:
		return fmt.Errorf("emberc: internal error: unhandled expression %T", e)
	}
	return nil
}

func (b *X86Backend) genBinaryOp(e *ast.BinaryOp, st *fnState) error {
	if err := b.genExpr(e.Right, st); err != nil {
		return err
	}
	b.out.WriteString("\tpush %rax\n")
	if err := b.genExpr(e.Left, st); err != nil {
		return err
	}
	b.out.WriteString("\tpop %rbx\n")

	switch e.Op {
	case token.Plus:
		b.out.WriteString("\tadd %rbx, %rax\n")
	case token.Minus:
		b.out.WriteString("\tsub %rbx, %rax\n")
	case token.Star:
		b.out.WriteString("\timul %rbx\n")
	case token.Percent:
		b.out.WriteString("\txor %rdx, %rdx\n")
		b.out.WriteString("\tidiv %rbx\n")
		b.out.WriteString("\tmov %rdx, %rax\n")
	case token.Eq:
		b.out.WriteString("\tcmp %rbx, %rax\n")
		b.out.WriteString("\tsete %al\n")
		b.out.WriteString("\tmovzbq %al, %rax\n")
	case token.Lt:
		b.out.WriteString("\tcmp %rbx, %rax\n")
		b.out.WriteString("\tsetl %al\n")
		b.out.WriteString("\tmovzbq %al, %rax\n")
	case token.Gt:
		b.out.WriteString("\tcmp %rbx, %rax\n")
		b.out.WriteString("\tsetg %al\n")
		b.out.WriteString("\tmovzbq %al, %rax\n")
	default:
		return fmt.Errorf("emberc: internal error: unhandled operator %s", e.Op)
	}
	return nil
}

func (b *X86Backend) genCall(e *ast.FunctionCall, st *fnState) error {
	for _, r := range argRegs {
		fmt.Fprintf(&b.out, "\tpush %s\n", r)
	}

	for i := len(e.Args) - 1; i >= 0; i-- {
		if err := b.genExpr(e.Args[i], st); err != nil {
			return err
		}
		b.out.WriteString("\tpush %rax\n")
	}

	n := len(e.Args)
	popCount := n
	if popCount > 6 {
		popCount = 6
	}
	for i := 0; i < popCount; i++ {
		fmt.Fprintf(&b.out, "\tpop %s\n", argRegs[i])
	}

	fmt.Fprintf(&b.out, "\tcall %s\n", e.Name)

	if n > 6 {
		fmt.Fprintf(&b.out, "\tadd $%d, %%rsp\n", (n-6)*8)
	}

	for i := len(argRegs) - 1; i >= 0; i-- {
		fmt.Fprintf(&b.out, "\tpop %s\n", argRegs[i])
	}
	return nil
}
