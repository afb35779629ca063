package execution

import (
	"errors"
	"strings"

	"albumrun/internal/classify"
	"albumrun/internal/config"
)

// Command is one invocable external process.
type Command struct {
	Program string
	Args    []string
	Dir     string
	// Env entries are appended to the parent environment.
	Env []string
}

// String renders the command line with shell-style quoting for logs.
func (c Command) String() string {
	parts := make([]string, 0, len(c.Args)+1)
	parts = append(parts, quoteArg(c.Program))
	for _, arg := range c.Args {
		parts = append(parts, quoteArg(arg))
	}
	return strings.Join(parts, " ")
}

func quoteArg(arg string) string {
	if arg == "" {
		return "''"
	}
	if strings.ContainsAny(arg, " \t\n'\"\\$`*?[]{}()<>|&;#~") {
		return "'" + strings.ReplaceAll(arg, "'", `'\''`) + "'"
	}
	return arg
}

// CommandBuilder maps a work unit to the command run for each attempt.
type CommandBuilder interface {
	Build(unit classify.WorkUnit) (Command, error)
}

// CommandBuilderFunc adapts a function to CommandBuilder.
type CommandBuilderFunc func(unit classify.WorkUnit) (Command, error)

// Build implements CommandBuilder.
func (f CommandBuilderFunc) Build(unit classify.WorkUnit) (Command, error) {
	return f(unit)
}

const (
	placeholderPath = "{path}"
	placeholderID   = "{id}"
	placeholderKind = "{kind}"
)

// TemplateBuilder expands {path}, {id} and {kind} in a fixed argument list.
// Passthrough arguments are appended verbatim after the template. When no
// template argument references {path}, the unit path is appended last.
type TemplateBuilder struct {
	Program     string
	Args        []string
	Passthrough []string
	Dir         string
	Env         []string
}

// NewTemplateBuilder builds a TemplateBuilder from the [command] config section.
func NewTemplateBuilder(cmd config.Command, passthrough []string) *TemplateBuilder {
	return &TemplateBuilder{
		Program:     cmd.Program,
		Args:        append([]string(nil), cmd.Args...),
		Passthrough: append([]string(nil), passthrough...),
		Dir:         cmd.WorkingDir,
		Env:         append([]string(nil), cmd.Env...),
	}
}

// Build implements CommandBuilder.
func (b *TemplateBuilder) Build(unit classify.WorkUnit) (Command, error) {
	program := strings.TrimSpace(b.Program)
	if program == "" {
		return Command{}, errors.New("command program is empty")
	}
	replacer := strings.NewReplacer(
		placeholderPath, unit.Path,
		placeholderID, unit.ID,
		placeholderKind, string(unit.Kind),
	)
	args := make([]string, 0, len(b.Args)+len(b.Passthrough)+1)
	hasPath := false
	for _, arg := range b.Args {
		if strings.Contains(arg, placeholderPath) {
			hasPath = true
		}
		args = append(args, replacer.Replace(arg))
	}
	args = append(args, b.Passthrough...)
	if !hasPath {
		args = append(args, unit.Path)
	}
	return Command{
		Program: program,
		Args:    args,
		Dir:     b.Dir,
		Env:     append([]string(nil), b.Env...),
	}, nil
}
