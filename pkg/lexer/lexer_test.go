package lexer

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"emberc/pkg/token"
)

func kinds(toks []token.Token) []token.Kind {
	ks := make([]token.Kind, len(toks))
	for i, t := range toks {
		ks[i] = t.Kind
	}
	return ks
}

func lexOK(t *testing.T, src string) []token.Token {
	t.Helper()
	toks, err := Lex([]rune(src))
	if err != nil {
		t.Fatalf("Lex(%q) returned error: %v", src, err)
	}
	return toks
}

func TestDeterminism(t *testing.T) {
	src := "let x = 1 + 2 * 3;"
	a := lexOK(t, src)
	b := lexOK(t, src)
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("Lex is not deterministic (-first +second):\n%s", diff)
	}
}

func TestTokenBoundary(t *testing.T) {
	toks := lexOK(t, "; ; ;")
	got := kinds(toks)
	want := []token.Kind{token.EOS, token.EOS, token.EOS}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("token boundary mismatch (-want +got):\n%s", diff)
	}

	toks = lexOK(t, "a;b")
	got = kinds(toks)
	want = []token.Kind{token.Ident, token.EOS, token.Ident}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("a;b mismatch (-want +got):\n%s", diff)
	}
}

func TestKeywordVsIdentifier(t *testing.T) {
	toks := lexOK(t, "exits exit")
	if toks[0].Kind != token.Ident || toks[0].Lexeme != "exits" {
		t.Errorf("exits: got %v, want Ident(exits)", toks[0])
	}
	if toks[1].Kind != token.Exit {
		t.Errorf("exit: got %v, want Exit", toks[1])
	}
}

func TestEqualityVsAssignment(t *testing.T) {
	toks := lexOK(t, "a==b")
	want := []token.Kind{token.Ident, token.Eq, token.Ident}
	if diff := cmp.Diff(want, kinds(toks)); diff != "" {
		t.Errorf("a==b mismatch (-want +got):\n%s", diff)
	}

	toks = lexOK(t, "a=b")
	want = []token.Kind{token.Ident, token.Assign, token.Ident}
	if diff := cmp.Diff(want, kinds(toks)); diff != "" {
		t.Errorf("a=b mismatch (-want +got):\n%s", diff)
	}
}

func TestLineComment(t *testing.T) {
	toks := lexOK(t, "let x = 1; /> this is ignored\nlet y = 2;")
	got := kinds(toks)
	want := []token.Kind{
		token.Let, token.Ident, token.Assign, token.Int, token.EOS,
		token.Let, token.Ident, token.Assign, token.Int, token.EOS,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("comment handling mismatch (-want +got):\n%s", diff)
	}
}

func TestMalformedInteger(t *testing.T) {
	_, err := Lex([]rune("let x = 12ab;"))
	if err == nil {
		t.Fatal("expected an error for a malformed integer literal")
	}
	lexErr, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *lexer.Error, got %T", err)
	}
	if lexErr.Lexeme != "12ab" {
		t.Errorf("got lexeme %q, want %q", lexErr.Lexeme, "12ab")
	}
}

func TestUnrecognizedCharacter(t *testing.T) {
	_, err := Lex([]rune("let x = #1;"))
	if err == nil {
		t.Fatal("expected an error for an unrecognized character")
	}
}

func TestNoTrailingEOS(t *testing.T) {
	toks := lexOK(t, "let x = 1")
	if len(toks) == 0 || toks[len(toks)-1].Kind == token.EOS {
		t.Errorf("expected no implicit trailing EOS, got %v", toks)
	}
}
