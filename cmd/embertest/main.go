// Command embertest is a golden/e2e harness: it assembles, links, and
// runs a fixed set of source fixtures through emberc and checks the
// resulting executable's exit status against the expected value,
// trimmed to this language's much smaller scope. With -differential it additionally compiles each
// fixture with the QBE backend and fails if the two backends disagree
// on the observed exit code — the only use the QBE backend has in this
// repository.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
	"github.com/google/go-cmp/cmp"
)

// Fixture is one end-to-end scenario: source text and the exit status a
// correct implementation must produce.
type Fixture struct {
	Name     string
	Source   string
	ExitCode int
}

// fixtures mirrors the six worked codegen scenarios.
var fixtures = []Fixture{
	{"return-literal", `define main() { return 42; }`, 42},
	{"arith-precedence", `define main() { let a = 2; let b = 3; return a + b * 4; }`, 14},
	{"call-semicolon-args", `define add(x; y) { return x + y; } define main() { return add(20; 22); }`, 42},
	{"while-loop", `define main() { let i = 0; let s = 0; while (i < 5) { s = s + i; i = i + 1; } return s; }`, 10},
	{"if-else", `define main() { if (1 == 1) { return 7; } else { return 9; } }`, 7},
	{"recursive-fact", `define fact(n) { if (n < 2) { return 1; } else { return n * fact(n - 1); } } define main() { return fact(5); }`, 120},
}

var (
	compilerPath  = flag.String("compiler", "./emberc", "path to the emberc binary under test")
	differential  = flag.Bool("differential", false, "also compile each fixture with the QBE backend and compare exit codes")
	verbose       = flag.Bool("v", false, "log each fixture's compile and run steps")
)

func main() {
	flag.Parse()
	log.SetFlags(0)

	tempDir, err := os.MkdirTemp("", "embertest-*")
	if err != nil {
		log.Fatalf("embertest: %v", err)
	}
	defer os.RemoveAll(tempDir)

	failures := 0
	for _, fx := range fixtures {
		if err := runFixture(fx, tempDir); err != nil {
			fmt.Printf("FAIL %-24s %v\n", fx.Name, err)
			failures++
			continue
		}
		fmt.Printf("PASS %-24s\n", fx.Name)
	}

	if failures > 0 {
		os.Exit(1)
	}
}

func runFixture(fx Fixture, tempDir string) error {
	srcPath := filepath.Join(tempDir, fx.Name+".em")
	if err := os.WriteFile(srcPath, []byte(fx.Source), 0o644); err != nil {
		return err
	}
	hash := contentHash(fx.Source)

	x86Exit, err := compileAndRun(srcPath, tempDir, "x86", hash)
	if err != nil {
		return fmt.Errorf("x86 backend: %w", err)
	}
	if x86Exit != fx.ExitCode {
		return fmt.Errorf("x86 backend: exit %d, want %d", x86Exit, fx.ExitCode)
	}

	if !*differential {
		return nil
	}
	qbeExit, err := compileAndRun(srcPath, tempDir, "qbe", hash)
	if err != nil {
		return fmt.Errorf("qbe backend: %w", err)
	}
	if diff := cmp.Diff(x86Exit, qbeExit); diff != "" {
		return fmt.Errorf("backends disagree on exit code (-x86 +qbe):\n%s", diff)
	}
	return nil
}

// contentHash fingerprints a fixture's source so golden runs can be
// labelled by content rather than by file path, the same role
// xxhash plays in other Go build harnesses.
func contentHash(src string) string {
	h := xxhash.New()
	io.WriteString(h, src)
	return fmt.Sprintf("%x", h.Sum64())
}

func compileAndRun(srcPath, tempDir, backend, hash string) (int, error) {
	outPath := filepath.Join(tempDir, backend+"-"+hash)
	cc := exec.Command(*compilerPath, "-backend", backend, "-o", outPath, srcPath)
	if *verbose {
		log.Printf("compiling %s with %s backend", srcPath, backend)
	}
	if out, err := cc.CombinedOutput(); err != nil {
		return 0, fmt.Errorf("compile failed: %v\n%s", err, out)
	}

	if *verbose {
		log.Printf("running %s", outPath)
	}
	run := exec.Command(outPath)
	err := run.Run()
	if err == nil {
		return 0, nil
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode(), nil
	}
	return 0, err
}
