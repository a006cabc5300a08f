package shell

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/pkg/errors"
)

// A single external command invocation.
type Command struct {
	Args []string // Command and arguments. Args[0] is the binary.
	Dir  string   // Working directory. Empty runs in the caller's directory.
	Env  []string // Environment overrides, merged over the parent environment.
}

// Runs external commands on behalf of the build pipeline.
type Executor interface {

	// Runs the command to completion. A non-zero exit status is an error.
	Run(ctx context.Context, cmd Command) error
}

// Executes commands on the local system.
//
// Output is streamed to Stdout and Stderr as the command produces it, so
// the operator sees build tool output live. Nil streams default to the
// process's own stdout and stderr.
type Local struct {
	Stdout io.Writer
	Stderr io.Writer
}

// Runs the command, streaming its output.
//
// The command's environment is the parent environment with cmd.Env merged
// on top. A non-zero exit status is returned as an error naming the full
// command line.
func (l *Local) Run(ctx context.Context, cmd Command) error {
	if len(cmd.Args) == 0 {
		return errors.New("empty command")
	}

	slog.Debug("run", "command", strings.Join(cmd.Args, " "), "dir", cmd.Dir)

	c := exec.CommandContext(ctx, cmd.Args[0], cmd.Args[1:]...)
	c.Dir = cmd.Dir
	c.Env = MergeEnv(os.Environ(), cmd.Env)
	c.Stdout = l.stdout()
	c.Stderr = l.stderr()

	if err := c.Run(); err != nil {
		return errors.Wrapf(err, "%s", strings.Join(cmd.Args, " "))
	}
	return nil
}

func (l *Local) stdout() io.Writer {
	if l.Stdout != nil {
		return l.Stdout
	}
	return os.Stdout
}

func (l *Local) stderr() io.Writer {
	if l.Stderr != nil {
		return l.Stderr
	}
	return os.Stderr
}

// Merges override env vars on top of a base env slice.
//
// Later entries win. Malformed entries without an equals sign are dropped.
func MergeEnv(base, overrides []string) []string {
	merged := make(map[string]string, len(base)+len(overrides))
	order := make([]string, 0, len(base)+len(overrides))

	put := func(entry string) {
		k, v, ok := strings.Cut(entry, "=")
		if !ok {
			return
		}
		if _, seen := merged[k]; !seen {
			order = append(order, k)
		}
		merged[k] = v
	}

	for _, entry := range base {
		put(entry)
	}
	for _, entry := range overrides {
		put(entry)
	}

	result := make([]string, 0, len(order))
	for _, k := range order {
		result = append(result, k+"="+merged[k])
	}
	return result
}
