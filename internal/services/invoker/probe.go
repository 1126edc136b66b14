package invoker

import (
	"context"
	"io"

	"go.uber.org/zap"
)

const (
	DefaultPython       = "python3"
	accelerationPackage = "hf_transfer"
)

// Probe reports whether accelerated transfer can be used.
type Probe interface {
	Available(ctx context.Context) bool
}

type ProbeFunc func(ctx context.Context) bool

func (f ProbeFunc) Available(ctx context.Context) bool {
	return f(ctx)
}

// PythonProbe checks that the hf_transfer package imports in the Python
// interpreter the download client runs on.
type PythonProbe struct {
	Python string
	Runner Runner
	Logger *zap.Logger
}

func (p PythonProbe) Available(ctx context.Context) bool {
	python := p.Python
	if python == "" {
		python = DefaultPython
	}

	runner := p.Runner
	if runner == nil {
		runner = ExecRunner{}
	}

	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	code, err := runner.Run(ctx, Command{
		Path:   python,
		Args:   []string{"-c", "import " + accelerationPackage},
		Stdout: io.Discard,
		Stderr: io.Discard,
	})
	if err != nil || code != 0 {
		logger.Debug("acceleration package not importable",
			zap.String("python", python),
			zap.Int("exit_code", code),
			zap.Error(err),
		)
		return false
	}

	return true
}
