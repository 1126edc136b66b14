package invoker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

const (
	DefaultBinary   = "huggingface-cli"
	DefaultAttempts = 3
	DefaultDelay    = 5 * time.Second
)

var (
	ErrNonZeroExit    = errors.New("download client exited with a non-zero code")
	ErrBinaryNotFound = errors.New("download client not found")
)

// Attempt is the outcome of one client invocation.
type Attempt struct {
	Number      int
	Accelerated bool
	ExitCode    int
	Err         error
	StartedAt   time.Time
	Duration    time.Duration
}

func (a Attempt) Succeeded() bool {
	return a.Err == nil && a.ExitCode == 0
}

// Invoker runs the download client with a fixed-delay retry policy.
type Invoker struct {
	runner   Runner
	binary   string
	attempts int
	delay    time.Duration
	stdout   io.Writer
	stderr   io.Writer
	lookPath func(string) (string, error)
	logger   *zap.Logger
}

type OptionFunc func(i *Invoker)

func WithBinary(binary string) OptionFunc {
	return func(i *Invoker) {
		if binary != "" {
			i.binary = binary
		}
	}
}

func WithAttempts(attempts int) OptionFunc {
	return func(i *Invoker) {
		if attempts > 0 {
			i.attempts = attempts
		}
	}
}

func WithDelay(delay time.Duration) OptionFunc {
	return func(i *Invoker) {
		if delay >= 0 {
			i.delay = delay
		}
	}
}

func WithOutput(stdout, stderr io.Writer) OptionFunc {
	return func(i *Invoker) {
		i.stdout = stdout
		i.stderr = stderr
	}
}

func WithLookPath(lookPath func(string) (string, error)) OptionFunc {
	return func(i *Invoker) {
		i.lookPath = lookPath
	}
}

func New(runner Runner, logger *zap.Logger, options ...OptionFunc) *Invoker {
	if runner == nil {
		runner = ExecRunner{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	i := &Invoker{
		runner:   runner,
		binary:   DefaultBinary,
		attempts: DefaultAttempts,
		delay:    DefaultDelay,
		lookPath: exec.LookPath,
		logger:   logger.Named("invoker"),
	}

	for _, opt := range options {
		opt(i)
	}

	return i
}

func (i *Invoker) Binary() string {
	return i.binary
}

// CheckBinary resolves the client binary on PATH.
func (i *Invoker) CheckBinary() (string, error) {
	path, err := i.lookPath(i.binary)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrBinaryNotFound, i.binary, err)
	}

	return path, nil
}

// Command builds the client command for req with the given child environment.
func (i *Invoker) Command(req Request, env []string) Command {
	return Command{
		Path:   i.binary,
		Args:   BuildArgs(req),
		Env:    env,
		Stdout: i.stdout,
		Stderr: i.stderr,
	}
}

// Invoke runs the client up to the configured number of attempts, waiting the
// fixed delay after each failure, and stops at the first zero exit code.
func (i *Invoker) Invoke(ctx context.Context, req Request, env []string, accelerated bool) ([]Attempt, bool) {
	cmd := i.Command(req, env)
	logger := i.logger.With(zap.String("model", req.Model), zap.Bool("accelerated", accelerated))

	var attempts []Attempt
	operation := func() error {
		attempt := Attempt{
			Number:      len(attempts) + 1,
			Accelerated: accelerated,
			StartedAt:   time.Now(),
		}

		logger.Info("running download command", zap.Int("attempt", attempt.Number), zap.String("command", cmd.String()))
		code, err := i.runner.Run(ctx, cmd)

		attempt.ExitCode = code
		attempt.Err = err
		attempt.Duration = time.Since(attempt.StartedAt)
		attempts = append(attempts, attempt)

		if err != nil {
			return err
		}
		if code != 0 {
			return fmt.Errorf("%w: %d", ErrNonZeroExit, code)
		}
		return nil
	}

	notify := func(err error, wait time.Duration) {
		logger.Warn("download attempt failed, retrying",
			zap.Int("attempt", len(attempts)),
			zap.Int("max_attempts", i.attempts),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(i.delay), uint64(i.attempts-1)),
		ctx,
	)

	if err := backoff.RetryNotify(operation, b, notify); err != nil {
		logger.Error("download failed", zap.Int("attempts", len(attempts)), zap.Error(err))
		return attempts, false
	}

	logger.Info("download command succeeded", zap.Int("attempts", len(attempts)))
	return attempts, true
}
