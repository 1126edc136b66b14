package invoker

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"strings"
)

const redacted = "***"

// Request describes one download client invocation.
type Request struct {
	Model    string
	RepoType string
	Revision string
	LocalDir string
	Token    string
	CacheDir string
}

// BuildArgs returns the download client arguments for req. The argument list
// is passed to the client verbatim, never through a shell.
func BuildArgs(req Request) []string {
	args := []string{
		"download",
		"--local-dir-use-symlinks", "False",
		"--resume-download",
		"--force-download",
		"--max-workers", "1",
	}

	if req.CacheDir != "" {
		args = append(args, "--cache-dir", req.CacheDir)
	}
	if req.Token != "" {
		args = append(args, "--token", req.Token)
	}
	if req.RepoType != "" {
		args = append(args, "--repo-type", req.RepoType)
	}
	if req.Revision != "" {
		args = append(args, "--revision", req.Revision)
	}

	args = append(args, req.Model)

	if req.LocalDir != "" {
		args = append(args, "--local-dir", req.LocalDir)
	}

	return args
}

// Redact returns a copy of args with the value following --token masked.
func Redact(args []string) []string {
	out := make([]string, len(args))
	copy(out, args)

	for i := 0; i < len(out)-1; i++ {
		if out[i] == "--token" {
			out[i+1] = redacted
		}
	}

	return out
}

type Command struct {
	Path   string
	Args   []string
	Env    []string
	Dir    string
	Stdout io.Writer
	Stderr io.Writer
}

// String renders the command for logs with secrets masked.
func (c Command) String() string {
	return strings.Join(append([]string{c.Path}, Redact(c.Args)...), " ")
}

// Runner runs a command and reports its exit code. A command that ran and
// exited non-zero is not an error; an error means it could not run at all.
type Runner interface {
	Run(ctx context.Context, cmd Command) (int, error)
}

type RunnerFunc func(ctx context.Context, cmd Command) (int, error)

func (f RunnerFunc) Run(ctx context.Context, cmd Command) (int, error) {
	return f(ctx, cmd)
}

// ExecRunner runs commands as child processes. Cancelling ctx kills the child.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, cmd Command) (int, error) {
	c := exec.CommandContext(ctx, cmd.Path, cmd.Args...)
	c.Env = cmd.Env
	c.Dir = cmd.Dir

	c.Stdout = cmd.Stdout
	if c.Stdout == nil {
		c.Stdout = os.Stdout
	}
	c.Stderr = cmd.Stderr
	if c.Stderr == nil {
		c.Stderr = os.Stderr
	}

	err := c.Run()
	if err == nil {
		return 0, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}

	return -1, err
}
