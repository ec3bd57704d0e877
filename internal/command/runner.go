// Package command runs external tools (the YOLO CLI, exiftool, nvidia-smi)
// behind an interface so callers can be tested without them installed.
package command

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// Runner executes an external command and returns its combined output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec. Stdout and stderr are captured
// together so failures carry the tool's own message.
type ExecRunner struct {
	// Dir is the working directory; empty means the current one.
	Dir string
	// Output, when set, also receives the command's output as it runs.
	Output io.Writer
}

// NewExecRunner returns a Runner backed by os/exec.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = r.Dir

	var out bytes.Buffer
	var w io.Writer = &out
	if r.Output != nil {
		w = io.MultiWriter(&out, r.Output)
	}
	cmd.Stdout = w
	cmd.Stderr = w

	if err := cmd.Run(); err != nil {
		return out.Bytes(), &Error{Name: name, Args: args, Output: out.String(), Err: err}
	}
	return out.Bytes(), nil
}

// Error describes a command that could not start or exited non-zero.
type Error struct {
	Name   string
	Args   []string
	Output string
	Err    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s %s: %v", e.Name, strings.Join(e.Args, " "), e.Err)
	if tail := lastLine(e.Output); tail != "" {
		msg += ": " + tail
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
