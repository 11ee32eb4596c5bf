// Package cli is a small hand-rolled flag parser and usage-page renderer,
// purpose-built rather than the standard
// library's flag package: named values, long/short forms, and a
// terminal-width-aware help page.
package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"
)

type value interface {
	String() string
	Set(string) error
}

type stringValue struct{ p *string }

func (v *stringValue) Set(s string) error { *v.p = s; return nil }
func (v *stringValue) String() string     { return *v.p }

type boolValue struct{ p *bool }

func (v *boolValue) Set(s string) error {
	if s == "" {
		*v.p = true
		return nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return fmt.Errorf("invalid boolean value %q: %w", s, err)
	}
	*v.p = b
	return nil
}
func (v *boolValue) String() string { return strconv.FormatBool(*v.p) }

type Flag struct {
	Name      string
	Shorthand string
	Usage     string
	Value     value
	DefValue  string
}

// FlagSet parses a flat argument list into registered flags plus a list
// of positional arguments.
type FlagSet struct {
	name       string
	flags      map[string]*Flag
	shorthands map[string]*Flag
	order      []*Flag
	args       []string
}

func NewFlagSet(name string) *FlagSet {
	return &FlagSet{name: name, flags: make(map[string]*Flag), shorthands: make(map[string]*Flag)}
}

func (f *FlagSet) Args() []string { return f.args }

func (f *FlagSet) String(p *string, name, shorthand, def, usage string) {
	*p = def
	f.add(&Flag{Name: name, Shorthand: shorthand, Usage: usage, Value: &stringValue{p}, DefValue: def})
}

func (f *FlagSet) Bool(p *bool, name, shorthand string, def bool, usage string) {
	*p = def
	f.add(&Flag{Name: name, Shorthand: shorthand, Usage: usage, Value: &boolValue{p}, DefValue: strconv.FormatBool(def)})
}

func (f *FlagSet) add(flag *Flag) {
	f.flags[flag.Name] = flag
	if flag.Shorthand != "" {
		f.shorthands[flag.Shorthand] = flag
	}
	f.order = append(f.order, flag)
}

func (f *FlagSet) Parse(arguments []string) error {
	f.args = nil
	for i := 0; i < len(arguments); i++ {
		arg := arguments[i]
		switch {
		case arg == "--":
			f.args = append(f.args, arguments[i+1:]...)
			return nil
		case len(arg) < 2 || arg[0] != '-':
			f.args = append(f.args, arg)
		case strings.HasPrefix(arg, "--"):
			if err := f.parseLong(arg, arguments, &i); err != nil {
				return err
			}
		default:
			if err := f.parseDash(arg, arguments, &i); err != nil {
				return err
			}
		}
	}
	return nil
}

func (f *FlagSet) parseLong(arg string, arguments []string, i *int) error {
	body := arg[2:]
	name, inlineVal, hasInline := strings.Cut(body, "=")
	flag, ok := f.flags[name]
	if !ok {
		return fmt.Errorf("unknown flag: --%s", name)
	}
	if hasInline {
		return flag.Value.Set(inlineVal)
	}
	if _, isBool := flag.Value.(*boolValue); isBool {
		return flag.Value.Set("")
	}
	if *i+1 >= len(arguments) {
		return fmt.Errorf("flag needs an argument: --%s", name)
	}
	*i++
	return flag.Value.Set(arguments[*i])
}

// parseDash handles a single-dash argument. A single-dash argument can
// name either a long flag with no shorthand (e.g. -backend, -dump-ast)
// or a shorthand (e.g. -o, -S), so the full name after the dash is
// looked up in f.flags first; only a miss there falls back to
// shorthand parsing.
func (f *FlagSet) parseDash(arg string, arguments []string, i *int) error {
	name, inlineVal, hasInline := strings.Cut(arg[1:], "=")
	flag, ok := f.flags[name]
	if !ok {
		return f.parseShort(arg, arguments, i)
	}
	if hasInline {
		return flag.Value.Set(inlineVal)
	}
	if _, isBool := flag.Value.(*boolValue); isBool {
		return flag.Value.Set("")
	}
	if *i+1 >= len(arguments) {
		return fmt.Errorf("flag needs an argument: -%s", name)
	}
	*i++
	return flag.Value.Set(arguments[*i])
}

func (f *FlagSet) parseShort(arg string, arguments []string, i *int) error {
	name := arg[1:2]
	flag, ok := f.shorthands[name]
	if !ok {
		return fmt.Errorf("unknown flag: -%s", name)
	}
	if _, isBool := flag.Value.(*boolValue); isBool {
		return flag.Value.Set("")
	}
	rest := arg[2:]
	if rest != "" {
		return flag.Value.Set(rest)
	}
	if *i+1 >= len(arguments) {
		return fmt.Errorf("flag needs an argument: -%s", name)
	}
	*i++
	return flag.Value.Set(arguments[*i])
}

// App binds a FlagSet to a name and synopsis, and renders a usage page
// wrapped to the terminal width when one is available.
type App struct {
	Name     string
	Synopsis string
	FlagSet  *FlagSet
}

func NewApp(name, synopsis string) *App {
	return &App{Name: name, Synopsis: synopsis, FlagSet: NewFlagSet(name)}
}

func terminalWidth() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	return 80
}

func (a *App) PrintUsage(w *os.File) {
	width := terminalWidth()
	fmt.Fprintf(w, "%s\n\n%s\n\nOptions:\n", a.Name, a.Synopsis)
	for _, flag := range a.FlagSet.order {
		head := "  --" + flag.Name
		if flag.Shorthand != "" {
			head += ", -" + flag.Shorthand
		}
		line := fmt.Sprintf("%-24s%s", head, flag.Usage)
		fmt.Fprintln(w, wrap(line, width))
	}
}

// wrap folds s to width by breaking at the last space before the limit;
// ember's usage lines are short enough that one fold is always enough.
func wrap(s string, width int) string {
	if width <= 0 || len(s) <= width {
		return s
	}
	cut := strings.LastIndex(s[:width], " ")
	if cut <= 0 {
		return s
	}
	return s[:cut] + "\n" + strings.Repeat(" ", 24) + strings.TrimLeft(s[cut:], " ")
}
