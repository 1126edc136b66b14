package invoker

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func TestInvokeRetriesUntilSuccess(t *testing.T) {
	calls := 0
	runner := RunnerFunc(func(ctx context.Context, cmd Command) (int, error) {
		calls++
		if calls < 3 {
			return 1, nil
		}
		return 0, nil
	})

	inv := New(runner, zaptest.NewLogger(t), WithDelay(time.Millisecond))
	attempts, ok := inv.Invoke(context.Background(), Request{Model: "org/sample"}, nil, true)

	if !ok {
		t.Fatal("expected success")
	}
	if calls != 3 {
		t.Errorf("runner called %d times, want 3", calls)
	}
	if len(attempts) != 3 {
		t.Fatalf("got %d attempts, want 3", len(attempts))
	}
	for i, a := range attempts {
		if a.Number != i+1 {
			t.Errorf("attempt %d numbered %d", i, a.Number)
		}
		if !a.Accelerated {
			t.Errorf("attempt %d not marked accelerated", i)
		}
	}
	if !attempts[2].Succeeded() || attempts[0].Succeeded() {
		t.Error("attempt outcomes not recorded")
	}
}

func TestInvokeStopsAfterMaxAttempts(t *testing.T) {
	calls := 0
	runner := RunnerFunc(func(ctx context.Context, cmd Command) (int, error) {
		calls++
		return 1, nil
	})

	delay := 20 * time.Millisecond
	inv := New(runner, zaptest.NewLogger(t), WithDelay(delay), WithAttempts(3))

	start := time.Now()
	attempts, ok := inv.Invoke(context.Background(), Request{Model: "org/sample"}, nil, false)
	elapsed := time.Since(start)

	if ok {
		t.Fatal("expected failure")
	}
	if calls != 3 || len(attempts) != 3 {
		t.Errorf("calls = %d attempts = %d, want 3", calls, len(attempts))
	}
	if elapsed < 2*delay {
		t.Errorf("elapsed %v, want at least %v between attempts", elapsed, 2*delay)
	}
}

func TestInvokeFirstAttemptSucceeds(t *testing.T) {
	calls := 0
	runner := RunnerFunc(func(ctx context.Context, cmd Command) (int, error) {
		calls++
		return 0, nil
	})

	inv := New(runner, zaptest.NewLogger(t), WithDelay(time.Hour))
	if _, ok := inv.Invoke(context.Background(), Request{Model: "org/sample"}, nil, false); !ok {
		t.Fatal("expected success")
	}
	if calls != 1 {
		t.Errorf("runner called %d times, want 1", calls)
	}
}

func TestInvokeRetriesRunnerErrors(t *testing.T) {
	calls := 0
	runner := RunnerFunc(func(ctx context.Context, cmd Command) (int, error) {
		calls++
		if calls == 1 {
			return -1, errNotStarted
		}
		return 0, nil
	})

	inv := New(runner, zaptest.NewLogger(t), WithDelay(time.Millisecond))
	attempts, ok := inv.Invoke(context.Background(), Request{Model: "org/sample"}, nil, false)
	if !ok {
		t.Fatal("expected success on second attempt")
	}
	if !errors.Is(attempts[0].Err, errNotStarted) {
		t.Errorf("first attempt error = %v", attempts[0].Err)
	}
}

func TestInvokeCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	runner := RunnerFunc(func(ctx context.Context, cmd Command) (int, error) {
		calls++
		cancel()
		return 1, nil
	})

	inv := New(runner, zaptest.NewLogger(t), WithDelay(time.Hour))
	if _, ok := inv.Invoke(ctx, Request{Model: "org/sample"}, nil, false); ok {
		t.Fatal("expected failure")
	}
	if calls != 1 {
		t.Errorf("runner called %d times after cancel, want 1", calls)
	}
}

func TestInvokePassesCommand(t *testing.T) {
	var got Command
	runner := RunnerFunc(func(ctx context.Context, cmd Command) (int, error) {
		got = cmd
		return 0, nil
	})

	env := []string{"HF_ENDPOINT=https://mirror.test"}
	inv := New(runner, zaptest.NewLogger(t), WithBinary("/opt/bin/huggingface-cli"))
	inv.Invoke(context.Background(), Request{Model: "org/sample", CacheDir: "/cache"}, env, false)

	if got.Path != "/opt/bin/huggingface-cli" {
		t.Errorf("Path = %q", got.Path)
	}
	if len(got.Env) != 1 || got.Env[0] != env[0] {
		t.Errorf("Env = %q", got.Env)
	}
	if got.Args[len(got.Args)-1] != "org/sample" {
		t.Errorf("Args = %q", got.Args)
	}
}

func TestCheckBinary(t *testing.T) {
	inv := New(nil, zaptest.NewLogger(t), WithLookPath(func(string) (string, error) {
		return "", errors.New("executable file not found in $PATH")
	}))

	if _, err := inv.CheckBinary(); !errors.Is(err, ErrBinaryNotFound) {
		t.Errorf("CheckBinary() error = %v, want ErrBinaryNotFound", err)
	}

	inv = New(nil, zaptest.NewLogger(t), WithLookPath(func(name string) (string, error) {
		return "/usr/bin/" + name, nil
	}))
	path, err := inv.CheckBinary()
	if err != nil || path != "/usr/bin/huggingface-cli" {
		t.Errorf("CheckBinary() = %q, %v", path, err)
	}
}

func TestPythonProbe(t *testing.T) {
	var gotArgs []string
	probe := PythonProbe{
		Python: "python3",
		Runner: RunnerFunc(func(ctx context.Context, cmd Command) (int, error) {
			gotArgs = cmd.Args
			return 0, nil
		}),
	}

	if !probe.Available(context.Background()) {
		t.Error("expected probe to pass")
	}
	if len(gotArgs) != 2 || gotArgs[1] != "import hf_transfer" {
		t.Errorf("probe args = %q", gotArgs)
	}

	probe.Runner = RunnerFunc(func(ctx context.Context, cmd Command) (int, error) {
		return 1, nil
	})
	if probe.Available(context.Background()) {
		t.Error("expected probe to fail on non-zero exit")
	}
}
