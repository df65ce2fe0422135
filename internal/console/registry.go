package console

import (
	"flag"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/mattn/go-shellwords"
)

// Builder defines a command's flags on a fresh FlagSet and returns the
// function to run once the flags are parsed. Run receives the remaining
// positional arguments and returns the reply shown to the user.
type Builder func(fs *flag.FlagSet) (run func(args []string) (string, error))

// Command is a console command.
type Command struct {
	Name  string
	Usage string
	Build Builder
}

// Registry holds commands by name. Add commands with Register; run with Execute.
type Registry struct {
	cmds map[string]*Command
}

// NewRegistry returns an empty command registry.
func NewRegistry() *Registry {
	return &Registry{cmds: make(map[string]*Command)}
}

// Register adds a command. Every Execute builds a new FlagSet, so flag
// values never leak from one invocation into the next.
func (r *Registry) Register(name, usage string, build Builder) {
	r.cmds[name] = &Command{Name: name, Usage: usage, Build: build}
}

// Names returns the registered command names in order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.cmds))
	for name := range r.cmds {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Usage returns the usage line of a command.
func (r *Registry) Usage(name string) string {
	if cmd, ok := r.cmds[name]; ok {
		return cmd.Usage
	}
	return ""
}

// Parse splits a console line into words, honouring shell quoting so mesh
// paths and labels may contain spaces.
func Parse(line string) ([]string, error) {
	args, err := shellwords.Parse(strings.TrimSpace(line))
	if err != nil {
		return nil, fmt.Errorf("console: %w", err)
	}
	return args, nil
}

// Execute runs the command in args[0] with args[1:] as flag/positional arguments.
func (r *Registry) Execute(args []string) (string, error) {
	if len(args) == 0 {
		return "", fmt.Errorf("missing command")
	}
	name := args[0]
	cmd, ok := r.cmds[name]
	if !ok {
		return "", fmt.Errorf("unknown command: %s", name)
	}
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	run := cmd.Build(fs)
	pos, err := parseInterspersed(fs, args[1:])
	if err != nil {
		return "", fmt.Errorf("%s: %w (usage: %s)", name, err, cmd.Usage)
	}
	return run(pos)
}

// parseInterspersed parses flags that may appear before, between or after
// positional arguments and returns the positionals in order. flag.Parse
// stops at the first positional, so it is resumed after each one. Negative
// numbers are positionals, not flags.
func parseInterspersed(fs *flag.FlagSet, rest []string) ([]string, error) {
	var pos []string
	for len(rest) > 0 {
		if isNumber(rest[0]) {
			pos = append(pos, rest[0])
			rest = rest[1:]
			continue
		}
		if err := fs.Parse(rest); err != nil {
			return nil, err
		}
		if fs.NArg() == 0 {
			break
		}
		pos = append(pos, fs.Arg(0))
		rest = fs.Args()[1:]
	}
	return pos, nil
}

func isNumber(s string) bool {
	if len(s) < 2 || s[0] != '-' {
		return false
	}
	c := s[1]
	return c == '.' || (c >= '0' && c <= '9')
}
