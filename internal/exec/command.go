package exec

import (
	"context"
	"strings"

	"github.com/kballard/go-shellquote"
)

// Command is a single external command invocation.
type Command struct {
	// Dir is the working directory, empty for the current one.
	Dir string
	// Name is the program, or the full command line when Shell is set.
	Name string
	// Args are passed to the program verbatim.
	Args []string
	// Shell runs Name through "sh -c".
	Shell bool
}

// Cmd builds a Command for name with args.
func Cmd(name string, args ...string) Command {
	return Command{Name: name, Args: args}
}

// ShellCmd builds a Command run through the shell.
func ShellCmd(line string) Command {
	return Command{Name: line, Shell: true}
}

// In returns a copy of c that runs in dir.
func (c Command) In(dir string) Command {
	c.Dir = dir
	return c
}

// Line returns the command line without the working directory.
func (c Command) Line() string {
	if c.Shell {
		return c.Name
	}
	return shellquote.Join(append([]string{c.Name}, c.Args...)...)
}

// String renders c as shell text. Commands with a working directory are
// prefixed with a cd so the text can be pasted into a terminal.
func (c Command) String() string {
	if c.Dir == "" {
		return c.Line()
	}
	return "cd " + shellquote.Join(c.Dir) + "; " + c.Line()
}

// Run executes c with r.
func (c Command) Run(ctx context.Context, r CommandRunner) ([]byte, error) {
	if c.Shell {
		return r.RunShell(ctx, c.Dir, c.Name)
	}
	return r.Run(ctx, c.Dir, c.Name, c.Args...)
}

// Script is an ordered list of commands making up one stage.
type Script []Command

// String joins the commands with "; ".
func (s Script) String() string {
	parts := make([]string, 0, len(s))
	dir := ""
	for _, c := range s {
		if c.Dir != "" && c.Dir != dir {
			parts = append(parts, c.String())
			dir = c.Dir
			continue
		}
		parts = append(parts, c.Line())
	}
	return strings.Join(parts, "; ")
}
