// Command emberc drives the ember compiler pipeline: lex, parse,
// generate, then hand the generated assembly to an external assembler
// and linker. The pipeline itself (lexer, parser, codegen) lives in
// pkg/; this file is the external-collaborator shell around it.
package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/goforj/godump"
	"github.com/google/uuid"

	"emberc/pkg/ast"
	"emberc/pkg/cli"
	"emberc/pkg/codegen"
	"emberc/pkg/config"
	"emberc/pkg/lexer"
	"emberc/pkg/parser"
	"emberc/pkg/token"
	"emberc/pkg/util"
)

func main() {
	app := cli.NewApp("emberc", "[options] <input.em>")

	var (
		outFile        string
		stopAtAsm      bool
		dumpTokens     bool
		dumpAST        bool
		backendName    string
		verbose        bool
		noColor        bool
		noWarnTopLevel bool
	)

	fs := app.FlagSet
	fs.String(&outFile, "output", "o", "a.out", "place the linked executable at <file>")
	fs.Bool(&stopAtAsm, "S", "S", false, "stop after writing the .s file; skip assembling and linking")
	fs.Bool(&dumpTokens, "dump-tokens", "", false, "print the lexed token stream and exit")
	fs.Bool(&dumpAST, "dump-ast", "", false, "pretty-print the parsed AST and exit")
	fs.String(&backendName, "backend", "", "x86", "select the code generation backend: x86 or qbe")
	fs.Bool(&verbose, "verbose", "v", false, "print pipeline stage timing and sizes")
	fs.Bool(&noColor, "no-color", "", false, "disable ANSI diagnostics regardless of TTY detection")
	fs.Bool(&noWarnTopLevel, "Wno-top-level-stmt", "", false, "suppress the top-level-stmt warning")

	if err := fs.Parse(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		app.PrintUsage(os.Stderr)
		os.Exit(1)
	}

	args := fs.Args()
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "emberc: exactly one source file is required")
		app.PrintUsage(os.Stderr)
		os.Exit(1)
	}
	srcPath := args[0]

	cfg := config.New()
	switch backendName {
	case "x86":
		cfg.Backend = config.BackendX86
	case "qbe":
		cfg.Backend = config.BackendQBE
	default:
		fmt.Fprintf(os.Stderr, "emberc: unknown backend %q\n", backendName)
		os.Exit(1)
	}
	cfg.Verbose = verbose
	cfg.NoColor = noColor
	if noWarnTopLevel {
		cfg.SetWarning(config.WarnTopLevelStmt, false)
	}

	if err := run(srcPath, outFile, stopAtAsm, dumpTokens, dumpAST, cfg); err != nil {
		os.Exit(1)
	}
}

func run(srcPath, outFile string, stopAtAsm, dumpTokens, dumpAST bool, cfg *config.Config) error {
	raw, err := os.ReadFile(srcPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "emberc: %v\nusage: emberc [options] <input.em>\n", err)
		return err
	}
	src := &util.Source{Name: srcPath, Content: []rune(string(raw))}

	t0 := time.Now()
	toks, err := lexer.Lex(src.Content)
	if err != nil {
		reportLexError(src, cfg, err)
		return err
	}
	lexDur := time.Since(t0)

	if dumpTokens {
		for _, tk := range toks {
			fmt.Println(tk.String())
		}
		return nil
	}

	t1 := time.Now()
	prog, err := parser.Parse(toks)
	if err != nil {
		reportParseError(src, cfg, err)
		return err
	}
	parseDur := time.Since(t1)

	if cfg.IsWarningEnabled(config.WarnTopLevelStmt) {
		warnTopLevelStmts(src, cfg, prog)
	}

	if dumpAST {
		godump.Dump(prog)
		return nil
	}

	var backend codegen.Backend
	switch cfg.Backend {
	case config.BackendQBE:
		backend, err = codegen.NewQBEBackend(cfg.GOOS, cfg.GOARCH)
		if err != nil {
			fmt.Fprintf(os.Stderr, "emberc: %v\n", err)
			return err
		}
	default:
		backend = codegen.NewX86Backend()
	}

	t2 := time.Now()
	asm, err := backend.Generate(prog)
	if err != nil {
		fmt.Fprintf(os.Stderr, "emberc: %v\n", err)
		return err
	}
	genDur := time.Since(t2)

	if cfg.Verbose {
		fmt.Fprintf(os.Stderr, "emberc: lexed %s in %s, parsed %d statements in %s, generated %s of assembly in %s\n",
			humanize.Bytes(uint64(len(raw))), lexDur, len(prog.Stmts), parseDur,
			humanize.Bytes(uint64(len(asm))), genDur)
	}

	asmPath := strings.TrimSuffix(srcPath, filepath.Ext(srcPath)) + ".s"
	if err := os.WriteFile(asmPath, []byte(asm), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "emberc: %v\n", err)
		return err
	}
	if stopAtAsm {
		return nil
	}

	return assembleAndLink(asmPath, outFile, cfg)
}

// assembleAndLink hands the generated assembly to cc, the one external
// collaborator this repository never reimplements: cc's own assembler
// understands the GNU AT&T syntax x86.go emits directly, so it stands in
// for both the assembler and the linker. The link step passes -nostdlib
// so cc's own crt1.o (which also defines _start) never collides with the
// _start the generator writes; -static avoids a dynamic loader for a
// binary that never calls into libc. Temp object files are named with a
// uuid suffix rather than os.CreateTemp's default pattern, so two
// concurrent emberc invocations in the same TMPDIR (e.g. a parallel
// embertest run) never collide.
func assembleAndLink(asmPath, outFile string, cfg *config.Config) error {
	objPath := filepath.Join(os.TempDir(), "emberc-"+uuid.NewString()+".o")
	defer os.Remove(objPath)

	t0 := time.Now()
	asCmd := exec.Command("cc", "-c", "-o", objPath, asmPath)
	asCmd.Stderr = os.Stderr
	if err := asCmd.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "emberc: assemble failed: %v\n", err)
		return err
	}

	ldCmd := exec.Command("cc", "-nostdlib", "-static", "-o", outFile, objPath)
	ldCmd.Stderr = os.Stderr
	if err := ldCmd.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "emberc: link failed: %v\n", err)
		return err
	}
	if cfg.Verbose {
		fmt.Fprintf(os.Stderr, "emberc: assembled and linked %s in %s\n", outFile, time.Since(t0))
	}
	return nil
}

// warnTopLevelStmts raises WarnTopLevelStmt for every non-FunctionDef
// statement at Program scope: it parses but the generator never emits
// it (see X86Backend.Generate's emission-order skip), so it is parsed
// and then silently dropped unless flagged here.
func warnTopLevelStmts(src *util.Source, cfg *config.Config, prog *ast.Program) {
	for _, stmt := range prog.Stmts {
		if _, ok := stmt.(*ast.FunctionDef); ok {
			continue
		}
		util.PrintWarn(os.Stderr, cfg.NoColor, src, stmt.Pos(), "top-level statement is parsed but never run")
	}
}

func reportLexError(src *util.Source, cfg *config.Config, err error) {
	if lexErr, ok := err.(*lexer.Error); ok {
		tok := token.Token{Line: lexErr.Line, Col: lexErr.Col, Lexeme: lexErr.Lexeme}
		util.PrintError(os.Stderr, cfg.NoColor, src, tok, lexErr.Msg)
		return
	}
	fmt.Fprintf(os.Stderr, "emberc: %v\n", err)
}

func reportParseError(src *util.Source, cfg *config.Config, err error) {
	switch e := err.(type) {
	case *parser.Error:
		pos := e.Pos
		if !e.AtEOF {
			pos = e.Got
		}
		util.PrintError(os.Stderr, cfg.NoColor, src, pos, e.Error())
	case *parser.NameError:
		util.PrintError(os.Stderr, cfg.NoColor, src, e.Pos, e.Msg)
	default:
		fmt.Fprintf(os.Stderr, "emberc: %v\n", err)
	}
}
