// Package config holds the compiler-wide toggles the driver consults:
// which backend to target, whether a stray top-level statement warns, and
// how diagnostics are colored. The lexer, parser and code generator do not
// read it.
package config

type Warning int

const (
	WarnTopLevelStmt Warning = iota
	WarnCount
)

type WarningInfo struct {
	Name        string
	Enabled     bool
	Description string
}

// Backend names the code generation backend selected on the CLI.
type Backend string

const (
	BackendX86 Backend = "x86"
	BackendQBE Backend = "qbe"
)

// Config is the small, trimmed-down registry this language needs — a
// single struct with one warning map and no feature table, since ember
// has one warning worth naming.
type Config struct {
	Warnings map[Warning]WarningInfo

	Backend  Backend
	GOOS     string
	GOARCH   string
	NoColor  bool
	Verbose  bool
}

func New() *Config {
	return &Config{
		Warnings: map[Warning]WarningInfo{
			WarnTopLevelStmt: {
				Name:        "top-level-stmt",
				Enabled:     true,
				Description: "a non-function statement at program top level is parsed but never run",
			},
		},
		Backend: BackendX86,
		GOOS:    "linux",
		GOARCH:  "amd64",
	}
}

func (c *Config) IsWarningEnabled(w Warning) bool {
	info, ok := c.Warnings[w]
	return ok && info.Enabled
}

func (c *Config) SetWarning(w Warning, enabled bool) {
	if info, ok := c.Warnings[w]; ok {
		info.Enabled = enabled
		c.Warnings[w] = info
	}
}
