package codegen

import "emberc/pkg/ast"

// Backend is the interface every code generation backend implements: take
// a parsed Program, produce target text or an error.
type Backend interface {
	Generate(prog *ast.Program) (string, error)
}
