package codegen

import (
	"regexp"
	"strings"
	"testing"

	"emberc/pkg/lexer"
	"emberc/pkg/parser"
)

func generate(t *testing.T, src string) string {
	t.Helper()
	toks, err := lexer.Lex([]rune(src))
	if err != nil {
		t.Fatalf("lex error: %v", err)
	}
	prog, err := parser.Parse(toks)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	asm, err := NewX86Backend().Generate(prog)
	if err != nil {
		t.Fatalf("generate error: %v", err)
	}
	return asm
}

func TestEntryPointCallsMain(t *testing.T) {
	asm := generate(t, "define main() { return 42; }")
	if !strings.Contains(asm, "_start:") {
		t.Error("missing _start entry point")
	}
	if !strings.Contains(asm, "call main") {
		t.Error("entry point must call main")
	}
	if !strings.Contains(asm, "mov $60, %rax") || !strings.Contains(asm, "syscall") {
		t.Error("entry point must issue exit(60) syscall")
	}
}

func TestLabelUniqueness(t *testing.T) {
	asm := generate(t, `
		define main() {
			if (1 == 1) { let a = 1; } else { let a = 2; }
			if (2 == 2) { let b = 1; } else { let b = 2; }
			return 0;
		}
	`)
	labelDef := regexp.MustCompile(`(?m)^\.L\w+:`)
	seen := map[string]bool{}
	for _, m := range labelDef.FindAllString(asm, -1) {
		if seen[m] {
			t.Errorf("duplicate label definition %q", m)
		}
		seen[m] = true
	}
	if len(seen) == 0 {
		t.Fatal("expected at least one control-flow label")
	}
}

func TestABICompliancyUpToSix(t *testing.T) {
	asm := generate(t, "define f(a; b; c; d; e; g) { return a + g; } define main() { return f(1;2;3;4;5;6); }")
	for _, reg := range []string{"%rdi", "%rsi", "%rdx", "%rcx", "%r8", "%r9"} {
		if !strings.Contains(asm, "mov "+reg+", ") {
			t.Errorf("expected prologue to spill %s for a 6-parameter function", reg)
		}
	}
}

func TestABICompliancyAboveSix(t *testing.T) {
	asm := generate(t, "define f(a; b; c; d; e; g; h) { return h; } define main() { return f(1;2;3;4;5;6;7); }")
	if !strings.Contains(asm, "8(%rbp)") {
		t.Error("expected the 7th parameter to be fetched from a positive stack offset")
	}
}

func TestLocalVariableCountingLatentBug(t *testing.T) {
	// Only the two top-level LetStmts should count toward the frame
	// size; the let nested inside the if body gets a symbol-table
	// slot but no extra stack space, a faithfully reproduced quirk.
	asm := generate(t, `
		define main() {
			let a = 1;
			let b = 2;
			if (a == 1) {
				let c = 3;
			}
			return a + b;
		}
	`)
	if !strings.Contains(asm, "sub $16, %rsp") {
		t.Errorf("expected a frame of exactly 16 bytes (2 top-level lets), got:\n%s", asm)
	}
}

func TestExprLeavesResultInRax(t *testing.T) {
	asm := generate(t, "define main() { return 1 + 2; }")
	if !strings.Contains(asm, "mov $1, %rax") {
		t.Error("expected the literal 1 to be materialized into %rax")
	}
}
