// Package util renders structured diagnostics — source line, caret,
// optional ANSI color — the way the rest of the corpus's compilers do.
// Library code (lexer/parser/codegen) never calls
// into this package directly: it returns plain errors, and only the
// driver (cmd/emberc) formats and prints them, here, once, at the
// process boundary.
package util

import (
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"emberc/pkg/token"
)

// Source holds a single file's name and content for caret rendering.
type Source struct {
	Name    string
	Content []rune
}

// colorEnabled reports whether w should receive ANSI escapes: only when
// it is a real terminal and the caller hasn't forced color off.
func colorEnabled(w *os.File, forceOff bool) bool {
	if forceOff {
		return false
	}
	return isatty.IsTerminal(w.Fd()) || isatty.IsCygwinTerminal(w.Fd())
}

func lineAt(content []rune, line int) string {
	cur := 1
	start := 0
	for i, r := range content {
		if cur == line {
			start = i
			break
		}
		if r == '\n' {
			cur++
		}
	}
	if cur != line {
		return ""
	}
	end := len(content)
	for i := start; i < len(content); i++ {
		if content[i] == '\n' {
			end = i
			break
		}
	}
	return string(content[start:end])
}

func caret(col int) string {
	if col < 1 {
		col = 1
	}
	return strings.Repeat(" ", col-1) + "^"
}

// PrintError writes a fatal-looking diagnostic (no exit — the driver
// decides when to exit) in the file:line:col: error: msg shape, followed
// by the source line and a caret, colored when w is a terminal and
// noColor is false.
func PrintError(w *os.File, noColor bool, src *Source, tok token.Token, msg string) {
	color := colorEnabled(w, noColor)
	printDiag(w, color, "error", "\033[31m", src, tok, msg)
}

// PrintWarn writes a non-fatal diagnostic in the same shape, tagged
// "warning" instead of "error".
func PrintWarn(w *os.File, noColor bool, src *Source, tok token.Token, msg string) {
	color := colorEnabled(w, noColor)
	printDiag(w, color, "warning", "\033[33m", src, tok, msg)
}

func filename(src *Source) string {
	if src == nil {
		return "<input>"
	}
	return src.Name
}

func printDiag(w *os.File, color bool, tag, esc string, src *Source, tok token.Token, msg string) {
	if color {
		fmt.Fprintf(w, "%s:%d:%d: %s%s:\033[0m %s\n", filename(src), tok.Line, tok.Col, esc, tag, msg)
	} else {
		fmt.Fprintf(w, "%s:%d:%d: %s: %s\n", filename(src), tok.Line, tok.Col, tag, msg)
	}
	if src == nil {
		return
	}
	line := lineAt(src.Content, tok.Line)
	if line == "" {
		return
	}
	if color {
		fmt.Fprintf(w, "  %s\n  %s%s\033[0m\n", line, "\033[32m", caret(tok.Col))
	} else {
		fmt.Fprintf(w, "  %s\n  %s\n", line, caret(tok.Col))
	}
}
